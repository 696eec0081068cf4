package forecasters

import (
	"context"
	"fmt"
	"time"

	"StayCast/internal/service/ratelimit"
	"StayCast/pkg/config"
	xhttp "StayCast/pkg/http"
)

// ServiceBase centralizes HTTP access to the external model service: client
// construction, JSON POST handling, request rate limiting, and bounded retry
// of transient failures.
type ServiceBase struct {
	baseURL string
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	maxRPS  float64
	retries int
}

// NewServiceBase builds an HTTP client with timeout and base URL from config.
func NewServiceBase(cfg *config.Config) *ServiceBase {
	timeout := cfg.MLService.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ServiceBase{
		baseURL: cfg.MLService.URL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
		limiter: ratelimit.New(),
		maxRPS:  cfg.MLService.MaxRPS,
		retries: cfg.MLService.RetryLimit,
	}
}

// PostJSON posts the given payload to `path` under baseURL and decodes JSON
// into dest, retrying transient failures up to the configured limit.
func (b *ServiceBase) PostJSON(ctx context.Context, path string, payload interface{}, dest interface{}) error {
	if b.client == nil || b.baseURL == "" {
		return fmt.Errorf("model service client not initialized")
	}

	attempts := b.retries + 1
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if werr := b.waitForToken(ctx); werr != nil {
			return werr
		}
		err = b.client.SendAndParse(ctx, &xhttp.RequestOptions{
			Method: xhttp.MethodPost,
			URL:    b.baseURL + path,
			Headers: map[string]string{
				"Content-Type": "application/json",
			},
			Body: payload,
		}, dest)
		if err == nil {
			return nil
		}
		// simple backoff
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("post %s: %w", path, err)
}

// waitForToken blocks until the rate limiter grants a token or ctx ends.
func (b *ServiceBase) waitForToken(ctx context.Context) error {
	if b.maxRPS <= 0 {
		return nil
	}
	for {
		if b.limiter.Allow("ml_service", b.maxRPS, b.maxRPS) {
			return nil
		}
		select {
		case <-time.After(10 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
