package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zhouzirui/listing-assistant/backend/pkg/utils"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

type wsResponse struct {
	Reply  string `json:"reply,omitempty"`
	Error  string `json:"error,omitempty"`
	Status int    `json:"status"`
}

// handleWebSocket 在长连接上提供与 POST /chat 相同的请求/应答协议，每帧一条完整回复
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(utils.MaxBodyBytes)

	ctx := r.Context()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) {
				log.Printf("[ws] read failed: %v", err)
			}
			return
		}

		var out wsResponse
		var payload Request
		if err := json.Unmarshal(data, &payload); err != nil {
			out = wsResponse{Error: "invalid request body", Status: http.StatusBadRequest}
		} else {
			status, resp := h.process(ctx, payload)
			out = wsResponse{Reply: resp.Reply, Error: resp.Error, Status: status}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(out); err != nil {
			log.Printf("[ws] write failed: %v", err)
			return
		}
	}
}
