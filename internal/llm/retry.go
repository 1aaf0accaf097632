package llm

import (
	"context"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
)

// Transient backend failures worth a reattempt: timeouts, rate limits,
// server-side errors and overload signals. Everything else (auth,
// malformed requests, parse failures) fails fast.
var retryablePattern = regexp.MustCompile(
	`(?i)timed?\s*out|deadline exceeded|\b429\b|rate.?limit|\b50[023]\b|\b529\b|overloaded|unavailable`,
)

// IsRetryable reports whether an error looks transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return retryablePattern.MatchString(err.Error())
}

// RetryClient decorates a Client with bounded retry and exponential
// backoff. The wrapped client's signature and return values are
// unchanged; after the retry budget is spent the last error propagates
// exactly as the provider produced it.
type RetryClient struct {
	inner      Client
	maxRetries int
	baseDelay  time.Duration
}

// NewRetryClient wraps inner with up to maxRetries additional attempts.
// Delay before attempt n (zero-based) is baseDelay * 2^n.
func NewRetryClient(inner Client, maxRetries int, baseDelay time.Duration) *RetryClient {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &RetryClient{inner: inner, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (c *RetryClient) ModelName() string { return c.inner.ModelName() }

// Generate calls the wrapped client, sleeping between attempts on
// retryable failures. The sleep blocks only the calling worker; callers
// needing a hard deadline must set it on each attempt's transport, since
// a retry sequence runs to completion once started.
func (c *RetryClient) Generate(ctx context.Context, prompt, system string, out any) (*Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.inner.Generate(ctx, prompt, system, out)
		if err == nil {
			return resp, nil
		}
		if !IsRetryable(err) || attempt == c.maxRetries {
			return nil, err
		}
		delay := c.baseDelay * (1 << attempt)
		log.Warn().
			Int("attempt", attempt+1).
			Int("max_retries", c.maxRetries).
			Dur("delay", delay).
			Err(err).
			Msg("retrying LLM call")
		time.Sleep(delay)
	}
}
