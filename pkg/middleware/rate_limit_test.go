package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/studyhub/studyhub/pkg/metrics"
	"github.com/stretchr/testify/require"
)

func requestFrom(path, addr string) *http.Request {
	req := httptest.NewRequest("GET", path, nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimitMiddleware_AllowsUnderLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(10, 2))
	r.GET("/ok", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, requestFrom("/ok", "10.0.0.1:1000"))
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, requestFrom("/ok", "10.0.0.1:1000"))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, http.StatusOK, w2.Code)
	require.Equal(t, before+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}

func TestRateLimitMiddleware_BlocksWhenExceeded(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(2, 1))
	r.GET("/limited", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, requestFrom("/limited", "10.0.0.2:1000"))
	require.Equal(t, http.StatusOK, w1.Code)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, requestFrom("/limited", "10.0.0.2:1000"))
	require.Equal(t, http.StatusTooManyRequests, w2.Code)
	require.Equal(t, "1", w2.Header().Get("Retry-After"))

	// one token replenishes after half a second
	time.Sleep(600 * time.Millisecond)
	w3 := httptest.NewRecorder()
	r.ServeHTTP(w3, requestFrom("/limited", "10.0.0.2:1000"))
	require.Equal(t, http.StatusOK, w3.Code)
}

func TestRateLimitMiddleware_UsesSubjectWhenPresent(t *testing.T) {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(SubjectKey, "user-123")
		c.Next()
	})
	r.Use(RateLimitMiddleware(0.5, 1))
	r.GET("/u", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, requestFrom("/u", "10.0.0.3:1000"))
	require.Equal(t, http.StatusOK, w1.Code)

	// same subject from a different address is still limited
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, requestFrom("/u", "10.0.0.4:1000"))
	require.Equal(t, http.StatusTooManyRequests, w2.Code)
}

func TestLimiterSet_DropsRefilledBuckets(t *testing.T) {
	now := time.Unix(1000, 0)
	set := newLimiterSet(2, 4) // a drained bucket refills in 2s
	set.now = func() time.Time { return now }

	for i := 0; i < 4; i++ {
		require.True(t, set.allow("ws-a"))
	}
	require.False(t, set.allow("ws-a"))
	require.True(t, set.allow("ws-b"))
	require.Equal(t, 2, set.len())

	now = now.Add(time.Second)
	require.True(t, set.allow("ws-b"))
	require.Equal(t, 2, set.len(), "ws-a has not refilled yet")

	now = now.Add(2500 * time.Millisecond)
	require.True(t, set.allow("ws-c"))
	require.Equal(t, 1, set.len())
}

func TestRateLimitMiddleware_SeparateInstancesDoNotShareBuckets(t *testing.T) {
	a := gin.New()
	a.Use(RateLimitMiddleware(0.5, 1))
	a.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	b := gin.New()
	b.Use(RateLimitMiddleware(0.5, 1))
	b.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	a.ServeHTTP(w, requestFrom("/x", "10.0.0.9:1000"))
	require.Equal(t, http.StatusOK, w.Code)
	w = httptest.NewRecorder()
	b.ServeHTTP(w, requestFrom("/x", "10.0.0.9:1000"))
	require.Equal(t, http.StatusOK, w.Code)
}
