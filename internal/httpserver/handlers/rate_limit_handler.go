package handlers

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/unsungfields/gateway/internal/generation"
	"github.com/unsungfields/gateway/internal/httpserver/middlewares"
	"github.com/unsungfields/gateway/internal/httpserver/responses"
	"github.com/unsungfields/gateway/internal/metrics"
	"github.com/unsungfields/gateway/pkg/limiter"
)

// RateLimitHandler serves the metered generation endpoint and the bucket
// status.
type RateLimitHandler struct {
	limiter   limiter.RateLimiter
	generator generation.Generator
	model     string
	logger    zerolog.Logger
}

// NewRateLimitHandler constructs a RateLimitHandler. model only labels metrics.
func NewRateLimitHandler(l limiter.RateLimiter, g generation.Generator, model string, logger zerolog.Logger) *RateLimitHandler {
	return &RateLimitHandler{
		limiter:   l,
		generator: g,
		model:     model,
		logger:    logger.With().Str("component", "rate-limit-handler").Logger(),
	}
}

type statusResponse struct {
	Status  string `json:"status"`
	Tokens  int64  `json:"tokens"`
	Message string `json:"message"`
}

// Status reports the caller's bucket.
func (h *RateLimitHandler) Status(c *gin.Context) {
	userID := middlewares.UserIDFromContext(c)

	st, err := h.limiter.Status(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to read rate limit status")
		responses.HandleError(c, err)
		return
	}

	msg := fmt.Sprintf("✅ You have %d tokens left.", st.Tokens)
	if st.Exceeded {
		msg = fmt.Sprintf("❌ Rate limit exceeded. Please try again after %d seconds.", int64(st.TimeLeft.Seconds()))
	}
	responses.OK(c, statusResponse{Status: st.Label(), Tokens: st.Tokens, Message: msg})
}

type generateRequest struct {
	Prompt      string   `json:"prompt"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens" binding:"omitempty,gt=0,lte=4096"`
}

type generateResponse struct {
	Response        string  `json:"response"`
	Latency         float64 `json:"latency"`
	TokensPerSecond float64 `json:"tokens_per_second"`
}

// Generate validates the body, consumes tokens from the caller's bucket and
// forwards the prompt to the generation backend. Rejected bodies cost nothing.
func (h *RateLimitHandler) Generate(c *gin.Context) {
	userID := middlewares.UserIDFromContext(c)

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.HandleBindError(c, err)
		return
	}

	dec, err := h.limiter.Check(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("rate limit check failed")
		responses.HandleError(c, err)
		return
	}
	c.Header("X-RateLimit-Remaining", strconv.FormatInt(dec.Remaining, 10))
	if !dec.Allow {
		responses.HandleError(c, dec.Err())
		return
	}

	genReq := generation.Request{
		Prompt:      req.Prompt,
		Temperature: generation.DefaultTemperature,
		MaxTokens:   generation.DefaultMaxTokens,
	}
	if req.Temperature != nil {
		genReq.Temperature = *req.Temperature
	}
	if req.MaxTokens != nil {
		genReq.MaxTokens = *req.MaxTokens
	}

	res, err := h.generator.Generate(c.Request.Context(), genReq)
	if err != nil {
		metrics.RecordGeneration(h.model, "error", 0, 0)
		responses.HandleError(c, err)
		return
	}
	metrics.RecordGeneration(h.model, "ok", res.Latency.Seconds(), res.Tokens)

	responses.OK(c, generateResponse{
		Response:        res.Response,
		Latency:         res.LatencyMillis(),
		TokensPerSecond: res.TokensPerSecond(),
	})
}
