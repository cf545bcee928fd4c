package fetch

import (
	"context"
	"encoding"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jobspider/internal/cache"
	"jobspider/internal/config"
	"jobspider/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memCache is an in-memory stand-in for the Redis page cache.
type memCache struct {
	mutex sync.Mutex
	data  map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string][]byte)}
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	switch v := value.(type) {
	case string:
		c.data[key] = []byte(v)
	case encoding.BinaryMarshaler:
		data, err := v.MarshalBinary()
		if err != nil {
			return err
		}
		c.data[key] = data
	default:
		return cache.ErrInvalidValue
	}
	return nil
}

func (c *memCache) Get(_ context.Context, key string, value interface{}) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	data, ok := c.data[key]
	if !ok {
		return cache.ErrNotFound
	}
	switch v := value.(type) {
	case *string:
		*v = string(data)
	case encoding.BinaryUnmarshaler:
		return v.UnmarshalBinary(data)
	default:
		return cache.ErrInvalidValue
	}
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memCache) Close() error { return nil }

func testConfig() *config.Config {
	return &config.Config{
		UserAgent:   "spider-test-agent",
		HTTPTimeout: 5 * time.Second,
		MaxRetries:  2,
		RetryDelay:  time.Millisecond,
		CacheTTL:    time.Minute,
	}
}

func TestPageCachesBody(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "spider-test-agent", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), testConfig(), newMemCache())

	body, err := client.Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)

	body, err = client.Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", body)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPageRetriesTransientStatus(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), testConfig(), newMemCache())

	body, err := client.Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), testConfig(), newMemCache())

	_, err := client.Page(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NoError(t, client.Invalidate(context.Background(), srv.URL))

	_, err = client.Page(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestPageRateLimitExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), testConfig(), newMemCache())

	_, err := client.Page(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeRateLimit))
}

func TestPageTransportErrorAfterRateLimit(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		// Drop the connection mid-request.
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		_ = conn.Close()
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), testConfig(), newMemCache())

	_, err := client.Page(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeUnavailable))
	assert.False(t, errors.IsType(err, errors.ErrTypeRateLimit))
}

func TestPageNotFoundDoesNotRetry(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), testConfig(), newMemCache())

	_, err := client.Page(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeNotFound))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPageUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(zap.NewNop(), testConfig(), newMemCache())

	_, err := client.Page(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrTypeInternal))
}
