// Package api exposes the Homewright chat backend over HTTP: conversation
// management, message turns, chat settings, provider credential validation
// and a websocket streaming variant.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/homewright/homewright/chat"
	"github.com/homewright/homewright/llm"
	"github.com/homewright/homewright/stores"
)

// ChatService is the slice of the orchestrator the handlers need.
// *chat.Orchestrator satisfies it.
type ChatService interface {
	ProcessMessage(ctx context.Context, conversationID, userMessage, userID, projectID string) (*chat.TurnResult, error)
	StreamMessage(ctx context.Context, conversationID, userMessage, userID, projectID string) (<-chan llm.StreamEvent, error)
	ResolveSettings(projectID, userID string) (*stores.ChatSettings, error)
}

// ProviderValidator constructs uncached adapters for credential checks.
// *llm.Factory satisfies it.
type ProviderValidator interface {
	CreateProvider(cfg llm.ProviderConfig) (llm.Provider, error)
}

// Handler carries the dependencies shared by all endpoints.
type Handler struct {
	store      stores.ChatStore
	chats      ChatService
	validators ProviderValidator
	logger     *zap.Logger
}

// NewHandler wires an API handler.
func NewHandler(store stores.ChatStore, chats ChatService, validators ProviderValidator, logger *zap.Logger) *Handler {
	return &Handler{store: store, chats: chats, validators: validators, logger: logger}
}

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.Default()

	api := router.Group("/api")
	{
		api.POST("/projects/:projectID/conversations", h.CreateConversation)
		api.GET("/projects/:projectID/conversations", h.ListConversations)
		api.PATCH("/conversations/:conversationID", h.UpdateConversation)
		api.DELETE("/conversations/:conversationID", h.DeleteConversation)

		api.GET("/conversations/:conversationID/messages", h.GetMessages)
		api.POST("/conversations/:conversationID/messages", h.PostMessage)

		api.GET("/projects/:projectID/chat-settings", h.GetChatSettings)
		api.PUT("/projects/:projectID/chat-settings", h.PutChatSettings)

		api.POST("/providers/validate", h.ValidateProvider)
	}

	router.GET("/ws/conversations/:conversationID", h.StreamConversation)
	router.GET("/health", h.Health)

	return router
}

// userID resolves the acting user. Authentication is delegated to the
// fronting proxy, which forwards the identity in a header.
func userID(c *gin.Context) string {
	if id := c.GetHeader("X-User-ID"); id != "" {
		return id
	}
	return "local"
}

// writeError maps the error taxonomy onto HTTP statuses.
func (h *Handler) writeError(c *gin.Context, err error) {
	var (
		confErr        *llm.ConfigurationError
		unsupportedErr *llm.UnsupportedProviderError
		providerErr    *llm.ProviderError
		transportErr   *llm.TransportError
		persistErr     *stores.PersistenceError
	)

	switch {
	case errors.As(err, &confErr), errors.As(err, &unsupportedErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.As(err, &providerErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.As(err, &transportErr):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	case errors.As(err, &persistErr):
		h.logger.Error("persistence failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage failure"})
	default:
		h.logger.Error("request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
