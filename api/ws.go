package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/homewright/homewright/llm"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The fronting proxy enforces origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsInbound struct {
	Content   string `json:"content"`
	ProjectID string `json:"project_id"`
}

// wsEvent is the outbound frame: "delta" carries a text chunk, "done"
// carries the persisted assistant message with usage, "error" terminates
// the turn.
type wsEvent struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Message interface{} `json:"message,omitempty"`
	Usage   *llm.Usage  `json:"usage,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StreamConversation upgrades to a websocket and runs streaming chat turns
// until the client disconnects. One message in flight at a time.
func (h *Handler) StreamConversation(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	conversationID := c.Param("conversationID")
	user := userID(c)

	for {
		var in wsInbound
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		if in.Content == "" || in.ProjectID == "" {
			conn.WriteJSON(wsEvent{Type: "error", Error: "content and project_id are required"})
			continue
		}

		events, err := h.chats.StreamMessage(c.Request.Context(), conversationID, in.Content, user, in.ProjectID)
		if err != nil {
			conn.WriteJSON(wsEvent{Type: "error", Error: err.Error()})
			continue
		}

		terminal := false
		for ev := range events {
			switch {
			case ev.Err != nil:
				conn.WriteJSON(wsEvent{Type: "error", Error: ev.Err.Error()})
				terminal = true
			case ev.Response != nil:
				conn.WriteJSON(wsEvent{
					Type:    "done",
					Content: ev.Response.Content,
					Usage:   ev.Response.Usage,
				})
				terminal = true
			default:
				conn.WriteJSON(wsEvent{Type: "delta", Content: ev.Delta})
			}
		}
		if !terminal {
			conn.WriteJSON(wsEvent{Type: "error", Error: "stream ended unexpectedly"})
		}
	}
}
