package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/homewright/homewright/llm"
)

type validateProviderRequest struct {
	Provider string `json:"provider" binding:"required"`
	APIKey   string `json:"api_key"`
	Model    string `json:"model"`
	BaseURL  string `json:"base_url"`
}

// ValidateProvider tests user-supplied credentials with a lightweight
// vendor call before they are saved. The adapter is built uncached so a bad
// key never pollutes the factory.
func (h *Handler) ValidateProvider(c *gin.Context) {
	var req validateProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	provider, err := h.validators.CreateProvider(llm.ProviderConfig{
		Provider: req.Provider,
		Model:    req.Model,
		APIKey:   req.APIKey,
		BaseURL:  req.BaseURL,
	})
	if err != nil {
		// A construction failure (missing key, unknown provider) means the
		// credentials are not valid; the reason helps the settings screen.
		c.JSON(http.StatusOK, gin.H{"valid": false, "reason": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"valid": provider.Validate(c.Request.Context())})
}
