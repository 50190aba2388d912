package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homewright/homewright/stores"
)

type createConversationRequest struct {
	Title string `json:"title"`
}

// CreateConversation starts a new conversation in a project.
func (h *Handler) CreateConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conv := &stores.Conversation{
		ProjectID: c.Param("projectID"),
		UserID:    userID(c),
		Title:     req.Title,
	}
	if err := h.store.CreateConversation(conv); err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"conversation_id": conv.ConversationID,
		"project_id":      conv.ProjectID,
		"title":           conv.Title,
	})
}

// ListConversations returns the caller's conversations for a project,
// most recently updated first.
func (h *Handler) ListConversations(c *gin.Context) {
	convs, err := h.store.ListConversationsForUser(c.Param("projectID"), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

type updateConversationRequest struct {
	Title    *string `json:"title"`
	Archived *bool   `json:"archived"`
}

// UpdateConversation renames or archives a conversation.
func (h *Handler) UpdateConversation(c *gin.Context) {
	var req updateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == nil && req.Archived == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "nothing to update"})
		return
	}

	if err := h.store.UpdateConversation(c.Param("conversationID"), req.Title, req.Archived); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteConversation removes a conversation and its messages.
func (h *Handler) DeleteConversation(c *gin.Context) {
	if err := h.store.DeleteConversation(c.Param("conversationID")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
