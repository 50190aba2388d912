package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homewright/homewright/llm"
	"github.com/homewright/homewright/stores"
)

// chatSettingsResponse is the wire shape for chat settings. API keys never
// appear here; they live in the environment.
type chatSettingsResponse struct {
	ProjectID             string  `json:"project_id"`
	Provider              string  `json:"provider"`
	Model                 string  `json:"model"`
	Temperature           float64 `json:"temperature"`
	MaxTokens             int     `json:"max_tokens"`
	SystemPrompt          string  `json:"system_prompt"`
	RestrictToProjectData bool    `json:"restrict_to_project_data"`
	EnableWebSearch       bool    `json:"enable_web_search"`
	MaxConversationLength int     `json:"max_conversation_length"`
}

func toSettingsResponse(s *stores.ChatSettings) chatSettingsResponse {
	return chatSettingsResponse{
		ProjectID:             s.ProjectID,
		Provider:              s.Provider,
		Model:                 s.ChatModel,
		Temperature:           s.Temperature,
		MaxTokens:             s.MaxTokens,
		SystemPrompt:          s.SystemPrompt,
		RestrictToProjectData: s.RestrictToProjectData,
		EnableWebSearch:       s.EnableWebSearch,
		MaxConversationLength: s.MaxConversationLength,
	}
}

// GetChatSettings returns the caller's settings for a project, creating the
// default row on first access.
func (h *Handler) GetChatSettings(c *gin.Context) {
	settings, err := h.chats.ResolveSettings(c.Param("projectID"), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSettingsResponse(settings))
}

type putChatSettingsRequest struct {
	Provider              string   `json:"provider" binding:"required"`
	Model                 string   `json:"model"`
	Temperature           *float64 `json:"temperature"`
	MaxTokens             *int     `json:"max_tokens"`
	SystemPrompt          *string  `json:"system_prompt"`
	RestrictToProjectData *bool    `json:"restrict_to_project_data"`
	EnableWebSearch       *bool    `json:"enable_web_search"`
	MaxConversationLength *int     `json:"max_conversation_length"`
}

// PutChatSettings updates the caller's settings for a project. Omitted
// optional fields keep their stored values.
func (h *Handler) PutChatSettings(c *gin.Context) {
	var req putChatSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if llm.DefaultModel(req.Provider) == "" {
		h.writeError(c, &llm.UnsupportedProviderError{Provider: req.Provider})
		return
	}

	settings, err := h.chats.ResolveSettings(c.Param("projectID"), userID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	settings.Provider = req.Provider
	if req.Model != "" {
		settings.ChatModel = req.Model
	} else {
		settings.ChatModel = llm.DefaultModel(req.Provider)
	}
	if req.Temperature != nil {
		settings.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		settings.MaxTokens = *req.MaxTokens
	}
	if req.SystemPrompt != nil {
		settings.SystemPrompt = *req.SystemPrompt
	}
	if req.RestrictToProjectData != nil {
		settings.RestrictToProjectData = *req.RestrictToProjectData
	}
	if req.EnableWebSearch != nil {
		settings.EnableWebSearch = *req.EnableWebSearch
	}
	if req.MaxConversationLength != nil {
		settings.MaxConversationLength = *req.MaxConversationLength
	}

	if err := h.store.UpdateSettings(settings); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSettingsResponse(settings))
}
