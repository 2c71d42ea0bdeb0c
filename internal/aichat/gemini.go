// Package aichat talks to the Gemini generateContent API on behalf of Zep AI.
package aichat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"zephyr/internal/observability"
	"zephyr/internal/resilience"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"
)

// SystemInstruction scopes the assistant to gaming topics.
const SystemInstruction = `You are Zep AI, an assistant for Zephyr, a social platform for gamers. The name Zep comes from Zephyr.
Help with video games, platforms and hardware, tips and strategies, gaming news and releases, esports, game recommendations and gaming-related technical issues.
Be friendly and enthusiastic.
Only answer gaming-related questions. For anything else, reply that you cannot answer because it is not gaming related and steer the conversation back to gaming.`

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("aichat: gemini api key not configured")
	// ErrEmptyResponse is returned when the model produced no text.
	ErrEmptyResponse = errors.New("aichat: empty response from model")
)

// Config configures a Client.
type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	QPS         int
	MaxFailures int
	Timeout     time.Duration
}

// Client calls Gemini with a client-side rate limit and a circuit breaker.
type Client struct {
	cfg        Config
	httpClient *http.Client
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker
}

// NewClient creates a Gemini client.
func NewClient(cfg Config) *Client {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	qps := cfg.QPS
	if qps <= 0 {
		qps = 5
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(qps), qps),
		cb:         resilience.NewBreaker("gemini", cfg.MaxFailures, cfg.Timeout),
	}
}

// IsConfigured reports whether an API key is present.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != ""
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	SystemInstruction content          `json:"system_instruction"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Generate sends prompt and returns the model's text reply.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.IsConfigured() {
		return "", ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(generateRequest{
		SystemInstruction: content{Parts: []part{{Text: SystemInstruction}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig:  generationConfig{Temperature: 0.7, TopP: 0.95, TopK: 64, MaxOutputTokens: 8192},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini request: %w", err)
	}

	start := time.Now()
	ctx, finish := observability.StartClientSpan(ctx, "gemini", "generate_content")
	out, err := c.cb.Execute(func() (any, error) {
		return c.post(ctx, body)
	})
	finish(err)
	observability.ObserveOutbound("gemini", start, err)
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) post(ctx context.Context, body []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("gemini API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	var sb strings.Builder
	for _, cand := range gr.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			break
		}
	}
	if sb.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
