// Package retry provides retry-with-backoff for read-side broker/market-
// data operations. Order submission itself is never retried here — per
// spec §4.11 the Order Gate submits exactly once, since a retry risks a
// duplicate order; the broker is authoritative.
package retry

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"
)

// Config contains retry configuration parameters.
type Config struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Timeout        time.Duration
}

// DefaultConfig provides sensible defaults for read-side retries.
var DefaultConfig = Config{
	MaxRetries:     3,
	InitialBackoff: 1 * time.Second,
	MaxBackoff:     30 * time.Second,
	Timeout:        30 * time.Second,
}

// Client wraps an arbitrary operation with retry logic.
type Client struct {
	logger *log.Logger
	config Config
}

// NewClient creates a new retry client with the given optional config.
func NewClient(logger *log.Logger, config ...Config) *Client {
	cfg := DefaultConfig
	if len(config) > 0 {
		cfg = config[0]
	}

	if logger == nil {
		logger = log.Default()
	}

	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultConfig.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = DefaultConfig.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultConfig.MaxBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig.Timeout
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	return &Client{logger: logger, config: cfg}
}

// Do runs op, retrying with exponential backoff and jitter on transient
// errors until MaxRetries is exhausted, the per-call Timeout elapses, or
// ctx is cancelled. The transient patterns include no 401 status: the REST
// transport handles a 401 itself with one token refresh and retry, and a
// 401 error that still reaches Do is returned without retrying unless its
// message contains one of the transient patterns.
func (c *Client) Do(ctx context.Context, label string, op func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	backoff := c.config.InitialBackoff

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: canceled: %w", label, err)
		}

		err := op(opCtx)
		if err == nil {
			return nil
		}

		lastErr = err
		c.logger.Printf("%s attempt %d/%d failed: %v", label, attempt+1, c.config.MaxRetries+1, err)

		if !c.isTransientError(err) || attempt >= c.config.MaxRetries {
			break
		}

		c.logger.Printf("%s: transient error, retrying in %v", label, backoff)
		select {
		case <-time.After(backoff):
			backoff = c.calculateNextBackoff(backoff)
		case <-opCtx.Done():
			return fmt.Errorf("%s: timed out during backoff: %w", label, opCtx.Err())
		case <-ctx.Done():
			return fmt.Errorf("%s: canceled during backoff: %w", label, ctx.Err())
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", label, c.config.MaxRetries+1, lastErr)
}

func (c *Client) calculateNextBackoff(currentBackoff time.Duration) time.Duration {
	backoff := time.Duration(float64(currentBackoff) * 1.5)
	if backoff > c.config.MaxBackoff {
		backoff = c.config.MaxBackoff
	}

	maxJitter := int64(backoff / 4)
	if maxJitter > 0 {
		jitterVal, err := rand.Int(rand.Reader, big.NewInt(maxJitter))
		if err != nil {
			c.logger.Printf("failed to generate jitter: %v", err)
		} else {
			backoff += time.Duration(jitterVal.Int64())
		}
	}

	return backoff
}

func (c *Client) isTransientError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	transientPatterns := []string{
		"timeout",
		"i/o timeout",
		"connection refused",
		"connection reset",
		"temporary failure",
		"temporarily unavailable",
		"server error",
		"rate limit",
		"429",
		"502",
		"503",
		"504",
		"network",
		"dns",
		"tcp",
		"no such host",
		"deadline exceeded",
		"tls handshake",
		"broken pipe",
		"eof",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
