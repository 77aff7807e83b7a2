// Package generation calls the text-generation backend on behalf of the
// gateway. Any OpenAI-compatible completions endpoint will do.
package generation

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/unsungfields/gateway/pkg/apperrors"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 100
)

// Request is one generation call.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Result is the generated text together with timing figures.
type Result struct {
	Response string
	Latency  time.Duration
	// Tokens counts prompt and generated tokens, as reported by the backend.
	Tokens int
}

// LatencyMillis returns the latency in milliseconds rounded to two decimals.
func (r Result) LatencyMillis() float64 {
	return round2(float64(r.Latency) / float64(time.Millisecond))
}

// TokensPerSecond returns throughput rounded to two decimals.
func (r Result) TokensPerSecond() float64 {
	if r.Latency <= 0 {
		return 0
	}
	return round2(float64(r.Tokens) / r.Latency.Seconds())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Config configures Client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client is a Generator backed by an OpenAI-compatible completions API.
type Client struct {
	api    *openai.Client
	model  string
	logger zerolog.Logger
	now    func() time.Time
}

// NewClient constructs a Client.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		api:    openai.NewClientWithConfig(oc),
		model:  cfg.Model,
		logger: logger.With().Str("component", "generation-client").Logger(),
		now:    time.Now,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate sends req to the backend.
func (c *Client) Generate(ctx context.Context, req Request) (Result, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	start := c.now()
	resp, err := c.api.CreateCompletion(ctx, openai.CompletionRequest{
		Model:       c.model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	latency := c.now().Sub(start)
	if err != nil {
		c.logger.Warn().Err(err).Str("model", c.model).Dur("latency", latency).Msg("generation failed")
		return Result{}, classify(err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, apperrors.New(apperrors.KindUpstream, "generation backend returned no choices")
	}

	tokens := resp.Usage.TotalTokens
	if tokens == 0 {
		tokens = resp.Usage.CompletionTokens
	}
	return Result{
		Response: req.Prompt + resp.Choices[0].Text,
		Latency:  latency,
		Tokens:   tokens,
	}, nil
}

func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.KindUpstream, "generation backend timed out", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusBadRequest {
		return apperrors.Wrap(apperrors.KindValidation, "generation backend rejected the request", err)
	}
	return apperrors.Wrap(apperrors.KindUpstream, "generation backend failed", err)
}
