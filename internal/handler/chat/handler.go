package chat

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatService "github.com/zhouzirui/listing-assistant/backend/internal/service/chat"
	"github.com/zhouzirui/listing-assistant/backend/pkg/utils"
)

// Router 抽象会话路由，便于测试替换
type Router interface {
	HandleChat(ctx context.Context, userID, message string) (chatService.Reply, error)
}

// Handler 聊天服务的HTTP处理器
type Handler struct {
	router Router
}

// New 创建聊天处理器
func New(router Router) *Handler {
	return &Handler{router: router}
}

// RegisterRoutes 注册聊天相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleChat)
	r.Get("/chat/ws", h.handleWebSocket)
}

// Request is the body of POST /chat.
type Request struct {
	UserID  string `json:"user_id"`
	Message string `json:"message"`
}

// Response carries either a reply or an error.
type Response struct {
	Reply string `json:"reply,omitempty"`
	Error string `json:"error,omitempty"`
}

// handleChat 处理一次对话请求
func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var payload Request
	if err := utils.DecodeJSON(w, r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status, resp := h.process(r.Context(), payload)
	utils.RespondJSON(w, status, resp)
}

// process runs one turn and maps the outcome to an HTTP status.
func (h *Handler) process(ctx context.Context, payload Request) (int, Response) {
	reply, err := h.router.HandleChat(ctx, payload.UserID, payload.Message)
	if err != nil {
		return statusFor(err), Response{Error: err.Error()}
	}
	return http.StatusOK, Response{Reply: reply.Text}
}

// statusFor maps validation failures to 400. Provider and store failures are 500.
func statusFor(err error) int {
	if chatService.IsValidation(err) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
