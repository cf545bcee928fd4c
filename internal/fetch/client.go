package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"jobspider/internal/cache"
	"jobspider/internal/config"
	"jobspider/internal/errors"
	"jobspider/internal/telemetry"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("jobspider/fetch")

// Status codes worth another attempt, mirroring the crawl settings the
// spiders have always run with.
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
	522:                            true,
	524:                            true,
	999:                            true,
}

type Client struct {
	client *http.Client
	logger *zap.Logger
	config *config.Config
	cache  cache.Cache
}

func NewClient(logger *zap.Logger, config *config.Config, pageCache cache.Cache) *Client {
	return &Client{
		client: &http.Client{
			Timeout: config.HTTPTimeout,
		},
		logger: logger,
		config: config,
		cache:  pageCache,
	}
}

// Page fetches the HTML body of url, retrying transient failures with a
// fixed delay. Successful bodies are cached; cache failures only warn.
func (c *Client) Page(ctx context.Context, url string) (string, error) {
	ctx, span := tracer.Start(ctx, "Client.Page")
	defer span.End()
	span.SetAttributes(telemetry.String("http.url", url))

	cacheKey := pageKey(url)

	var cached string
	err := c.cache.Get(ctx, cacheKey, &cached)
	if err == nil {
		span.SetAttributes(telemetry.String("cache.result", "hit"))
		c.logger.Debug("cache hit", zap.String("url", url))
		return cached, nil
	} else if err != cache.ErrNotFound {
		span.SetAttributes(telemetry.String("cache.result", "error"))
		span.RecordError(err)
		c.logger.Warn("cache error", zap.String("url", url), zap.Error(err))
	} else {
		span.SetAttributes(telemetry.String("cache.result", "miss"))
	}

	body, err := c.fetchWithRetry(ctx, url)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	if err := c.cache.Set(ctx, cacheKey, body, c.config.CacheTTL); err != nil {
		c.logger.Warn("failed to cache page", zap.String("url", url), zap.Error(err))
	}

	return body, nil
}

// Invalidate drops the cached copy of url so the next Page call refetches it.
func (c *Client) Invalidate(ctx context.Context, url string) error {
	return c.cache.Delete(ctx, pageKey(url))
}

func (c *Client) fetchWithRetry(ctx context.Context, url string) (string, error) {
	attempts := c.config.MaxRetries + 1
	lastStatus := 0
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		body, status, err := c.fetch(ctx, url)

		switch {
		case err == nil && status == http.StatusOK:
			return body, nil

		case err == nil && status == http.StatusNotFound:
			return "", errors.NotFound(fmt.Sprintf("page not found: %s", url), nil)

		case err == nil && !retryableStatus[status]:
			return "", errors.Internal(
				fmt.Sprintf("unexpected status code %d for %s", status, url), nil)

		case err != nil:
			// A stale retryable status must not classify this failure.
			lastStatus = 0
			lastErr = err
			c.logger.Warn("request failed",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err))

		default:
			lastStatus = status
			lastErr = nil
			c.logger.Warn("retryable status",
				zap.String("url", url),
				zap.Int("status_code", status),
				zap.Int("attempt", attempt))
		}

		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(c.config.RetryDelay):
		}
	}

	if lastStatus == http.StatusTooManyRequests {
		return "", errors.RateLimit(
			fmt.Sprintf("rate limited after %d attempts: %s", attempts, url), nil)
	}
	return "", errors.Unavailable(
		fmt.Sprintf("giving up after %d attempts: %s", attempts, url), lastErr)
}

func (c *Client) fetch(ctx context.Context, url string) (string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", 0, errors.Internal("creating request", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn("failed to close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return "", resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", resp.StatusCode, err
	}

	return string(body), resp.StatusCode, nil
}

func pageKey(url string) string {
	return fmt.Sprintf("spider:page:%x", sha256.Sum256([]byte(url)))
}
