package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homewright/homewright/stores"
)

// messageResponse shapes a stored message for API consumers, unpacking the
// metadata blob.
type messageResponse struct {
	MessageID      string      `json:"message_id"`
	ConversationID string      `json:"conversation_id"`
	Role           string      `json:"role"`
	Content        string      `json:"content"`
	Metadata       interface{} `json:"metadata,omitempty"`
	TokenCount     int         `json:"token_count"`
	CreatedAt      string      `json:"created_at"`
}

func toMessageResponse(m stores.Message) messageResponse {
	out := messageResponse{
		MessageID:      m.MessageID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		TokenCount:     m.TokenCount,
		CreatedAt:      m.CreatedAt.Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if m.MetadataJSON != "" && m.MetadataJSON != "{}" {
		var meta interface{}
		if err := json.Unmarshal([]byte(m.MetadataJSON), &meta); err == nil {
			out.Metadata = meta
		}
	}
	return out
}

// GetMessages returns a conversation's full message log, oldest first.
func (h *Handler) GetMessages(c *gin.Context) {
	msgs, err := h.store.FetchHistory(c.Param("conversationID"), 0)
	if err != nil {
		h.writeError(c, err)
		return
	}

	out := make([]messageResponse, len(msgs))
	for i, m := range msgs {
		out[i] = toMessageResponse(m)
	}
	c.JSON(http.StatusOK, gin.H{"messages": out})
}

type postMessageRequest struct {
	Content   string `json:"content" binding:"required"`
	ProjectID string `json:"project_id" binding:"required"`
}

// PostMessage runs one chat turn and returns the assistant's reply.
func (h *Handler) PostMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.chats.ProcessMessage(c.Request.Context(),
		c.Param("conversationID"), req.Content, userID(c), req.ProjectID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": toMessageResponse(*result.Message),
		"usage":   result.Usage,
	})
}
