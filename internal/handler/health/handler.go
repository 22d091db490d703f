package health

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/listing-assistant/backend/pkg/utils"
)

// Source reports runtime state for the health endpoint.
type Source interface {
	Sessions() int
}

// Handler 健康检查处理器
type Handler struct {
	source   Source
	provider string
}

// New 创建健康检查处理器。provider 为空表示模型未配置。
func New(source Source, provider string) *Handler {
	return &Handler{source: source, provider: provider}
}

// RegisterRoutes 注册健康检查路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/health", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	provider := h.provider
	if provider == "" {
		provider = "unavailable"
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"provider": provider,
		"sessions": h.source.Sessions(),
	})
}
