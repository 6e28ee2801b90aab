package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/sethvargo/go-retry"

	"timer-powerup/internal/domain"
)

// ErrNotConfigured is returned in a result when no URL is known for an action.
var ErrNotConfigured = errors.New("webhook url not configured")

// URLFunc maps an action to its webhook URL; "" means not configured.
type URLFunc func(action string) string

// Client implements ports.Gateway for the workflow-automation webhooks.
type Client struct {
	urlFor  URLFunc
	apiKey  string
	timeout time.Duration
	retries int
	delay   time.Duration
	http    *http.Client
	log     *slog.Logger
}

// Options configures a Client.
type Options struct {
	URLFor        URLFunc
	APIKey        string
	Timeout       time.Duration // per attempt
	RetryAttempts int           // attempts after the first one
	RetryDelay    time.Duration
	HTTPClient    *http.Client
}

func NewClient(opts Options, log *slog.Logger) *Client {
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RetryAttempts < 0 {
		opts.RetryAttempts = 0
	}
	// retry.NewConstant rejects non-positive durations.
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = time.Millisecond
	}
	return &Client{
		urlFor:  opts.URLFor,
		apiKey:  opts.APIKey,
		timeout: opts.Timeout,
		retries: opts.RetryAttempts,
		delay:   opts.RetryDelay,
		http:    opts.HTTPClient,
		log:     log,
	}
}

// Send posts env to the action's webhook. Non-2xx responses, timeouts and
// transport errors are retried with a constant delay until the attempt
// budget is spent. All attempts share one X-Request-Id.
func (c *Client) Send(ctx context.Context, action domain.WebhookAction, env domain.Envelope) domain.DeliveryResult {
	result := domain.DeliveryResult{RequestID: uuid.NewString()}

	target := ""
	if c.urlFor != nil {
		target = c.urlFor(string(action))
	}
	if target == "" {
		result.Err = goerr.Wrap(ErrNotConfigured, "cannot send webhook", goerr.V("action", action))
		return result
	}

	body, err := json.Marshal(env)
	if err != nil {
		result.Err = goerr.Wrap(err, "failed to encode envelope", goerr.V("action", action))
		return result
	}

	backoff := retry.WithMaxRetries(uint64(c.retries), retry.NewConstant(c.delay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		result.Attempts++
		status, err := c.post(ctx, target, body, result.RequestID)
		result.StatusCode = status
		if err != nil {
			c.log.Warn("webhook attempt failed",
				slog.String("action", string(action)),
				slog.Int("attempt", result.Attempts),
				slog.Int("max_attempts", c.retries+1),
				slog.String("error", err.Error()),
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		result.Err = goerr.Wrap(err, "webhook delivery exhausted",
			goerr.V("action", action),
			goerr.V("attempts", result.Attempts),
			goerr.V("request_id", result.RequestID),
		)
		c.log.Error("webhook delivery exhausted",
			slog.String("action", string(action)),
			slog.Int("attempts", result.Attempts),
			slog.String("request_id", result.RequestID),
			slog.String("error", err.Error()),
		)
		return result
	}

	result.Outcome = domain.DeliveryDelivered
	c.log.Info("webhook delivered",
		slog.String("action", string(action)),
		slog.Int("status", result.StatusCode),
		slog.Int("attempts", result.Attempts),
		slog.String("request_id", result.RequestID),
	)
	return result
}

// post performs one attempt bounded by the per-attempt timeout.
func (c *Client) post(ctx context.Context, target string, body []byte, requestID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, goerr.Wrap(err, "webhook timed out", goerr.V("timeout", c.timeout.String()))
		}
		return 0, goerr.Wrap(err, "webhook request failed")
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, goerr.New("webhook returned non-success status",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(text)),
		)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
