package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeHealthChecker_AllPassing(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("database", func(context.Context) error { return nil })
	c.AddOptionalCheck("cache", func(context.Context) error { return nil })

	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.False(t, status.Degraded)
	assert.Equal(t, "All checks passed", status.Message)
	assert.Len(t, status.Checks, 2)
}

func TestCompositeHealthChecker_RequiredFailure(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("database", func(context.Context) error { return errors.New("connection refused") })
	c.AddOptionalCheck("cache", func(context.Context) error { return nil })

	status := c.Check(context.Background())

	assert.False(t, status.Healthy)
	assert.False(t, status.Ready)
	assert.Equal(t, "Some checks failed: database", status.Message)
	assert.Equal(t, "connection refused", status.Checks["database"].Message)
}

func TestCompositeHealthChecker_OptionalFailureDegrades(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("database", func(context.Context) error { return nil })
	c.AddOptionalCheck("notification_sink", NewBreakerCheck(func() bool { return true }))

	status := c.Check(context.Background())

	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.True(t, status.Degraded)
	assert.Equal(t, "Degraded: notification_sink", status.Message)
	assert.True(t, status.Checks["notification_sink"].Optional)
}

func TestCompositeHealthChecker_RemoveCheck(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddCheck("database", func(context.Context) error { return errors.New("down") })
	c.RemoveCheck("database")

	status := c.Check(context.Background())
	assert.True(t, status.Healthy)
	assert.Equal(t, "No health checks registered", status.Message)
}

func TestCompositeHealthChecker_DetailedCheck(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.AddDetailedCheck("database", func(context.Context) (map[string]any, error) {
		return map[string]any{"total_conns": 4}, nil
	})
	c.AddCheck("queue", func(context.Context) error { return nil })

	status := c.Check(context.Background())

	require.True(t, status.Healthy)
	assert.Equal(t, map[string]any{"total_conns": 4}, status.Checks["database"].Details)
	assert.Nil(t, status.Checks["queue"].Details)

	c.AddDetailedCheck("database", func(context.Context) (map[string]any, error) {
		return nil, errors.New("ping failed")
	})
	status = c.Check(context.Background())
	assert.False(t, status.Ready)
	assert.Equal(t, "ping failed", status.Checks["database"].Message)
}

func TestCompositeHealthChecker_SetTimeout(t *testing.T) {
	c := NewCompositeHealthChecker("test")
	c.SetTimeout(20 * time.Millisecond)
	c.SetTimeout(0)
	c.AddCheck("database", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	status := c.Check(context.Background())

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.False(t, status.Healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["database"].Message)
}

func TestChainHandler_Order(t *testing.T) {
	var order []string
	mw := func(name string) MiddlewareFunc {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := ChainHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("first"), mw("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestSecurityAndNoCacheHeaders(t *testing.T) {
	h := ChainHandler(http.NotFoundHandler(), SecurityHeadersMiddleware, NoCacheMiddleware)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
}

func TestRequestSizeLimitMiddleware(t *testing.T) {
	called := false
	h := RequestSizeLimitMiddleware(8)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"notes":"far too long"}`))
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.False(t, called)
	assert.Contains(t, rec.Body.String(), "payload_too_large")
}
