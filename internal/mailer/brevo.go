// Package mailer delivers transactional email through the Brevo API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"zephyr/internal/observability"
	"zephyr/internal/resilience"

	"github.com/sony/gobreaker"
)

const defaultBrevoURL = "https://api.brevo.com/v3/smtp/email"

// OTPSubject is the subject line of verification mail.
const OTPSubject = "Zephyr email verification"

// ErrNotConfigured is returned when no API key or sender is set.
var ErrNotConfigured = errors.New("mailer: brevo client not configured")

var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; background: #0f1020; color: #e8e8f0; padding: 24px;">
  <h2 style="margin: 0 0 12px;">Welcome to Zephyr</h2>
  <p>Use the code below to verify your email address. It expires in 60 seconds.</p>
  <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">{{.Code}}</p>
  <p style="color: #9a9ab0;">If you did not request this, you can ignore this email.</p>
</body>
</html>`))

// Config configures a Client.
type Config struct {
	APIKey      string
	FromEmail   string
	FromName    string
	BaseURL     string
	MaxFailures int
	Timeout     time.Duration
}

// Client sends email through Brevo's transactional endpoint.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

// NewClient creates a Brevo client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBrevoURL
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cb:         resilience.NewBreaker("brevo", cfg.MaxFailures, cfg.Timeout),
	}
}

// IsConfigured reports whether the client has credentials and a sender.
func (c *Client) IsConfigured() bool {
	return c.cfg.APIKey != "" && c.cfg.FromEmail != ""
}

type address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type sendEmailRequest struct {
	Sender      address   `json:"sender"`
	To          []address `json:"to"`
	Subject     string    `json:"subject"`
	HTMLContent string    `json:"htmlContent"`
}

// SendOTP mails a verification code to email.
func (c *Client) SendOTP(ctx context.Context, email, code string) error {
	var buf bytes.Buffer
	if err := otpTemplate.Execute(&buf, struct{ Code string }{code}); err != nil {
		return fmt.Errorf("render otp template: %w", err)
	}
	return c.Send(ctx, email, OTPSubject, buf.String())
}

// Send delivers one HTML email.
func (c *Client) Send(ctx context.Context, to, subject, html string) error {
	if !c.IsConfigured() {
		return ErrNotConfigured
	}
	if to == "" || subject == "" || html == "" {
		return errors.New("mailer: recipient, subject and content are required")
	}

	body, err := json.Marshal(sendEmailRequest{
		Sender:      address{Email: c.cfg.FromEmail, Name: c.cfg.FromName},
		To:          []address{{Email: to}},
		Subject:     subject,
		HTMLContent: html,
	})
	if err != nil {
		return fmt.Errorf("marshal brevo request: %w", err)
	}

	start := time.Now()
	ctx, finish := observability.StartClientSpan(ctx, "brevo", "send_email")
	_, err = c.cb.Execute(func() (any, error) {
		return nil, c.post(ctx, body)
	})
	finish(err)
	observability.ObserveOutbound("brevo", start, err)
	return err
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build brevo request: %w", err)
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo API error: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
