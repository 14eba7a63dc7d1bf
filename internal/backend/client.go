// Package backend is the REST client for the decision-analysis service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/decisions/internal/domain"
	"github.com/ashureev/decisions/internal/identity"
	"github.com/ashureev/decisions/internal/retry"
)

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 << 10

// IdentitySource supplies the correlation identifier for outbound requests.
type IdentitySource interface {
	UserID(ctx context.Context) (string, error)
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	// HTTPClient overrides the default client; Timeout is ignored when set.
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Retry overrides the backoff delays. MaxAttempts is always per operation.
	Retry retry.Options
}

// Client talks to the analysis service. It holds no global state and is
// safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	ids        IdentitySource
	logger     *slog.Logger
	backoff    retry.Options
}

// NewClient creates a Client.
func NewClient(cfg Config, ids IdentitySource) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}
	if ids == nil {
		return nil, errors.New("identity source is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		ids:        ids,
		logger:     logger,
		backoff:    cfg.Retry,
	}, nil
}

// BaseURL returns the configured service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListDecisions returns the caller's decisions. Retried up to 3 attempts.
func (c *Client) ListDecisions(ctx context.Context) ([]domain.Decision, error) {
	const op = "list decisions"
	return retry.Do(ctx, c.retryOptions(op, 3), func(ctx context.Context) ([]domain.Decision, error) {
		var out []domain.Decision
		if err := c.do(ctx, op, http.MethodGet, "/decisions", nil, &out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Analyze submits a decision for analysis. Retried up to 2 attempts; the
// service is trusted to tolerate a re-submission.
func (c *Client) Analyze(ctx context.Context, req domain.AnalyzeRequest) (domain.AnalyzeResponse, error) {
	const op = "analyze decision"
	return retry.Do(ctx, c.retryOptions(op, 2), func(ctx context.Context) (domain.AnalyzeResponse, error) {
		var out domain.AnalyzeResponse
		err := c.do(ctx, op, http.MethodPost, "/analysis/analyze", req, &out)
		return out, err
	})
}

// AnalysisStatus polls one analysis. Not retried: the polling loop decides.
func (c *Client) AnalysisStatus(ctx context.Context, decisionID string) (domain.StatusResponse, error) {
	var out domain.StatusResponse
	err := c.do(ctx, "poll analysis status", http.MethodGet, "/analysis/"+url.PathEscape(decisionID)+"/status", nil, &out)
	return out, err
}

// RecordOutcome records what happened after a decision. Retried up to 3 attempts.
func (c *Client) RecordOutcome(ctx context.Context, decisionID string, update domain.OutcomeUpdate) (domain.Decision, error) {
	const op = "record outcome"
	path := "/decisions/" + url.PathEscape(decisionID) + "/outcome"
	return retry.Do(ctx, c.retryOptions(op, 3), func(ctx context.Context) (domain.Decision, error) {
		var out domain.Decision
		err := c.do(ctx, op, http.MethodPatch, path, update, &out)
		return out, err
	})
}

// Health checks the service's health endpoint. Any non-2xx status is an error.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health check", http.MethodGet, "/health", nil, nil)
}

func (c *Client) retryOptions(op string, attempts int) retry.Options {
	opts := c.backoff
	opts.MaxAttempts = attempts
	opts.ShouldRetry = retryable
	opts.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warn("Retrying request",
			"op", op,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)
	}
	return opts
}

// do performs one request. body and out may be nil.
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	userID, err := c.ids.UserID(ctx)
	if err != nil {
		return &Error{Op: op, Kind: KindUnexpected, Message: fallbackMessage, Err: fmt.Errorf("resolve user id: %w", err)}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Kind: KindUnexpected, Message: fallbackMessage, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Op: op, Kind: KindUnexpected, Message: fallbackMessage, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(identity.HeaderName, userID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return contextError(op, ctx.Err())
		}
		return networkError(op, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("Failed to close response body", "op", op, "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := responseError(op, resp.StatusCode, data)
		c.logger.Debug("Request failed", "op", op, "status", resp.StatusCode, "kind", apiErr.Kind)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.logger.Warn("Undecodable response", "op", op, "status", resp.StatusCode, "error", err)
		return &Error{
			Op:      op,
			Kind:    KindInvalidResponse,
			Message: "Invalid response from server.",
			Err:     fmt.Errorf("decode response: %w", err),
		}
	}
	return nil
}

// Ensure *identity.Provider satisfies IdentitySource.
var _ IdentitySource = (*identity.Provider)(nil)
