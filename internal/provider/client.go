// Package provider is the HTTP client of the external payment processor: card charges, ACH transfers
// and refunds. Every mutating call carries an idempotency key.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/SscSPs/payment_ledger/internal/apperrors"
	"github.com/SscSPs/payment_ledger/internal/middleware"
	"golang.org/x/time/rate"
)

// Config configures a Client.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
}

// Client calls the processor's REST API. Outbound calls are rate limited.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client. A zero RatePerSecond disables rate limiting.
func NewClient(cfg Config) *Client {
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// do sends one request and decodes a 2xx JSON body into out. 429, 5xx and transport failures are
// recoverable; every other non 2xx status is terminal.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &apperrors.ProviderError{Recoverable: true, Message: "rate limiter", Err: err}
	}

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode provider request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	logger := middleware.GetLoggerFromCtx(ctx)
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &apperrors.ProviderError{Recoverable: true, Message: method + " " + path, Err: err}
	}
	defer resp.Body.Close()
	logger.Debug("Provider call",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperrors.ProviderError{Recoverable: true, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		return &apperrors.ProviderError{
			Recoverable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			StatusCode:  resp.StatusCode,
			Code:        eb.Error.Code,
			Message:     eb.Error.Message,
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperrors.Invariantf("undecodable provider response for %s %s: %v", method, path, err)
	}
	return nil
}

func requireID(id, object string) error {
	if id == "" {
		return apperrors.Invariantf("provider created a %s without an id", object)
	}
	return nil
}
