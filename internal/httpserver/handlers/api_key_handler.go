package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/unsungfields/gateway/internal/httpserver/middlewares"
	"github.com/unsungfields/gateway/internal/httpserver/responses"
	"github.com/unsungfields/gateway/internal/metrics"
	"github.com/unsungfields/gateway/pkg/apikey"
)

// APIKeyHandler manages API key HTTP endpoints.
type APIKeyHandler struct {
	registry *apikey.Registry
	logger   zerolog.Logger
}

// NewAPIKeyHandler constructs a new API key handler.
func NewAPIKeyHandler(registry *apikey.Registry, logger zerolog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		registry: registry,
		logger:   logger.With().Str("component", "api-key-handler").Logger(),
	}
}

type createKeyRequest struct {
	DisplayName string `json:"display_name"`
}

type apiKeySummary struct {
	DisplayName string `json:"display_name"`
	Key         string `json:"key"`
}

// Create issues a new API key for the caller.
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleBindError(c, err)
		return
	}

	key, err := h.registry.Issue(c.Request.Context(), middlewares.UserIDFromContext(c), req.DisplayName)
	if err != nil {
		metrics.RecordAPIKeyOperation("issue", "error")
		h.logger.Warn().Err(err).Msg("failed to create api key")
		responses.HandleError(c, err)
		return
	}
	metrics.RecordAPIKeyOperation("issue", "ok")

	c.JSON(http.StatusCreated, gin.H{
		"message": "API Key created successfully",
		"api_key": key.Value,
	})
}

// List returns the caller's keys with only a preview of each value.
func (h *APIKeyHandler) List(c *gin.Context) {
	items, err := h.registry.List(c.Request.Context(), middlewares.UserIDFromContext(c))
	if err != nil {
		metrics.RecordAPIKeyOperation("list", "error")
		h.logger.Error().Err(err).Msg("failed to list api keys")
		responses.HandleError(c, err)
		return
	}
	metrics.RecordAPIKeyOperation("list", "ok")

	resp := make([]apiKeySummary, 0, len(items))
	for _, item := range items {
		resp = append(resp, apiKeySummary{DisplayName: item.DisplayName, Key: item.Preview})
	}
	responses.OK(c, gin.H{"api_keys": resp})
}

// Delete revokes the key named in the path.
func (h *APIKeyHandler) Delete(c *gin.Context) {
	value := c.Param("api_key")

	if err := h.registry.Revoke(c.Request.Context(), middlewares.UserIDFromContext(c), value); err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			metrics.RecordAPIKeyOperation("revoke", "not_found")
		} else {
			metrics.RecordAPIKeyOperation("revoke", "error")
			h.logger.Error().Err(err).Msg("failed to revoke api key")
		}
		responses.HandleError(c, err)
		return
	}
	metrics.RecordAPIKeyOperation("revoke", "ok")

	responses.OK(c, gin.H{"message": fmt.Sprintf("API Key %s deleted successfully", value)})
}
