// Package fetch is the upstream HTTP layer: per-location rate-limited
// requests with bounded retry, outcome classification and secret
// masking on every logged URL.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/riftdata/pipeline/internal/ratelimit"
	"github.com/riftdata/pipeline/internal/telemetry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Outcome classifies one fetch.
type Outcome int

const (
	// OK means a 2xx response carrying valid JSON.
	OK Outcome = iota
	// HTTPNonRetryable means a non-2xx status outside the retryable
	// set; the request is not reattempted.
	HTTPNonRetryable
	// NonJSON means a 2xx response whose body failed JSON parsing.
	NonJSON
	// RetryExhausted means every attempt failed with a transient error.
	RetryExhausted
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case HTTPNonRetryable:
		return "http_non_retryable"
	case NonJSON:
		return "non_json"
	case RetryExhausted:
		return "retry_exhausted"
	}
	return "unknown"
}

// Result is the terminal state of one fetch. Data is set only on OK.
type Result struct {
	Data    []byte
	Outcome Outcome
	Status  int
}

const (
	maxAttempts     = 5
	initialInterval = time.Second
	maxInterval     = 10 * time.Second
	previewLimit    = 200
)

var apiKeyParam = regexp.MustCompile(`(api_key=)[^&]+`)

// MaskAPIKey rewrites any api_key query parameter so the secret never
// reaches a log record.
func MaskAPIKey(url string) string {
	return apiKeyParam.ReplaceAllString(url, "${1}*")
}

// BodyPreview flattens and truncates a response body for logging.
func BodyPreview(body []byte) string {
	s := strings.NewReplacer("\n", " ", "\r", " ").Replace(string(body))
	if len(s) > previewLimit {
		s = s[:previewLimit]
	}
	return s
}

// Client issues rate-limited upstream requests. One client lives for
// one stage run; the limiter registry it holds outlives it.
type Client struct {
	http     *http.Client
	apiKey   string
	calls    int
	period   time.Duration
	limiters *ratelimit.Registry
	metrics  *telemetry.Metrics
	log      *zap.Logger

	retryInitial time.Duration
	retryMax     time.Duration
}

// NewClient builds a fetch client. limiters is shared across stage
// runs so permit timelines survive client turnover.
func NewClient(apiKey string, calls int, period time.Duration, limiters *ratelimit.Registry, metrics *telemetry.Metrics, log *zap.Logger) *Client {
	return &Client{
		http:     &http.Client{Timeout: 30 * time.Second},
		apiKey:   apiKey,
		calls:    calls,
		period:   period,
		limiters: limiters,
		metrics:  metrics,
		log:      log.Named("fetch"),

		retryInitial: initialInterval,
		retryMax:     maxInterval,
	}
}

// Fetch issues GET url routed through the location's limiter. The
// returned Result is always meaningful; the error is non-nil only when
// ctx ended the fetch.
func (c *Client) Fetch(ctx context.Context, url, location string) (Result, error) {
	limiter, err := c.limiters.For(ratelimit.Spec{
		Location: location,
		Calls:    c.calls,
		Period:   c.period,
	})
	if err != nil {
		return Result{Outcome: RetryExhausted}, err
	}

	var res Result
	attempt := 0

	op := func() error {
		attempt++
		if err := limiter.Acquire(ctx); err != nil {
			return backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("X-Riot-Token", c.apiKey)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.log.Info("transport error",
				zap.String("url", MaskAPIKey(url)),
				zap.Int("attempt", attempt),
				zap.Error(err))
			return err
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.metrics.ObserveHTTPError(resp.StatusCode)
			if telemetry.IsRetryableStatus(resp.StatusCode) {
				c.log.Info("retryable status",
					zap.String("url", MaskAPIKey(url)),
					zap.Int("status", resp.StatusCode),
					zap.Int("attempt", attempt))
				return fmt.Errorf("fetch: status %d", resp.StatusCode)
			}
			c.log.Warn("non-retryable status",
				zap.String("url", MaskAPIKey(url)),
				zap.Int("status", resp.StatusCode))
			res = Result{Outcome: HTTPNonRetryable, Status: resp.StatusCode}
			return nil
		}

		if !json.Valid(body) {
			c.log.Warn("2xx body is not JSON",
				zap.String("url", MaskAPIKey(url)),
				zap.Int("status", resp.StatusCode),
				zap.String("preview", BodyPreview(body)))
			res = Result{Outcome: NonJSON, Status: resp.StatusCode}
			return nil
		}

		res = Result{Data: body, Outcome: OK, Status: resp.StatusCode}
		return nil
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.retryInitial
	expo.MaxInterval = c.retryMax
	expo.MaxElapsedTime = 0

	err = backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(expo, maxAttempts-1), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return Result{Outcome: RetryExhausted}, ctx.Err()
		}
		c.log.Warn("retries exhausted",
			zap.String("url", MaskAPIKey(url)),
			zap.Int("attempts", attempt),
			zap.Error(err))
		return Result{Outcome: RetryExhausted}, nil
	}
	return res, nil
}
