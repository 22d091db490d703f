package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/listing-assistant/backend/internal/handler/chat"
	"github.com/zhouzirui/listing-assistant/backend/internal/handler/health"
	middlewarePkg "github.com/zhouzirui/listing-assistant/backend/internal/middleware"
	chatService "github.com/zhouzirui/listing-assistant/backend/internal/service/chat"
)

// NewRouter wires HTTP routes to core services. provider names the configured
// model vendor and is empty when none is available.
func NewRouter(chatSvc *chatService.Service, provider string, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(allowedOrigins))

	chatHandler := chat.New(chatSvc)
	healthHandler := health.New(chatSvc, provider)

	chatHandler.RegisterRoutes(r)
	healthHandler.RegisterRoutes(r)

	return r
}
