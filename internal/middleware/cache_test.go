package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/smart-seat-booking/internal/config"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newTestCache(rdb *redis.Client, maxBody int) *ResponseCache {
	return NewResponseCache(config.CacheConfig{
		Enabled:      true,
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          time.Minute,
		Prefix:       "chart",
		MaxBodyBytes: maxBody,
	}, rdb)
}

// asSession stands in for JWTAuth.
func asSession(id string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(SessionKey, id)
			return next(c)
		}
	}
}

func serve(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestResponseCache_MissThenHit(t *testing.T) {
	mr, rdb := newTestRedis(t)
	rc := newTestCache(rdb, 1024)

	e := echo.New()
	e.Use(asSession("s1"))
	calls := 0
	e.GET("/v1/chart", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, "chart-v1")
	}, rc.Middleware())

	first := serve(e, http.MethodGet, "/v1/chart")
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))
	assert.Equal(t, "chart-v1", first.Body.String())

	second := serve(e, http.MethodGet, "/v1/chart")
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "chart-v1", second.Body.String())
	assert.Equal(t, echo.MIMETextPlainCharsetUTF8, second.Header().Get(echo.HeaderContentType))
	assert.Equal(t, 1, calls)

	key := rc.key("s1", "/v1/chart")
	assert.True(t, mr.Exists(key))
	assert.Greater(t, mr.TTL(key), time.Duration(0))

	// Another query string is another field of the same hash.
	text := serve(e, http.MethodGet, "/v1/chart?format=text")
	assert.Equal(t, "MISS", text.Header().Get("X-Cache"))
	assert.Equal(t, 2, calls)
	fields, err := mr.HKeys(key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"", "format=text"}, fields)
}

func TestResponseCache_SkipsErrorsAndLargeBodies(t *testing.T) {
	mr, rdb := newTestRedis(t)
	rc := newTestCache(rdb, 4)

	e := echo.New()
	e.Use(asSession("s1"))
	e.GET("/large", func(c echo.Context) error {
		return c.String(http.StatusOK, "more than four bytes")
	}, rc.Middleware())
	e.GET("/missing", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
	}, rc.Middleware())

	for _, path := range []string{"/large", "/missing"} {
		serve(e, http.MethodGet, path)
		rec := serve(e, http.MethodGet, path)
		assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), path)
		assert.False(t, mr.Exists(rc.key("s1", path)), path)
	}
	assert.Equal(t, "more than four bytes", serve(e, http.MethodGet, "/large").Body.String())
}

func TestResponseCache_SessionsAreIsolated(t *testing.T) {
	_, rdb := newTestRedis(t)
	rc := newTestCache(rdb, 1024)

	e := echo.New()
	handler := func(c echo.Context) error { return c.String(http.StatusOK, SessionID(c)) }
	e.GET("/a/v1/chart", handler, asSession("a"), rc.Middleware())
	e.GET("/b/v1/chart", handler, asSession("b"), rc.Middleware())

	serve(e, http.MethodGet, "/a/v1/chart")
	rec := serve(e, http.MethodGet, "/b/v1/chart")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "b", rec.Body.String())
}

func TestResponseCache_InvalidateOnSuccessfulWrite(t *testing.T) {
	mr, rdb := newTestRedis(t)
	rc := newTestCache(rdb, 1024)

	var mu sync.Mutex
	state := "v1"
	e := echo.New()
	e.Use(asSession("s1"))
	e.GET("/v1/chart", func(c echo.Context) error {
		mu.Lock()
		defer mu.Unlock()
		return c.String(http.StatusOK, state)
	}, rc.Middleware())
	e.POST("/v1/chart/allocate", func(c echo.Context) error {
		mu.Lock()
		defer mu.Unlock()
		state = "v2"
		return c.NoContent(http.StatusOK)
	}, rc.Invalidate("/v1/chart"))
	e.POST("/v1/chart/rejected", func(c echo.Context) error {
		return c.JSON(http.StatusConflict, echo.Map{"error": "no seats"})
	}, rc.Invalidate("/v1/chart"))

	serve(e, http.MethodGet, "/v1/chart")
	require.Equal(t, "HIT", serve(e, http.MethodGet, "/v1/chart").Header().Get("X-Cache"))

	serve(e, http.MethodPost, "/v1/chart/rejected")
	assert.Equal(t, "HIT", serve(e, http.MethodGet, "/v1/chart").Header().Get("X-Cache"))

	serve(e, http.MethodPost, "/v1/chart/allocate")
	assert.False(t, mr.Exists(rc.key("s1", "/v1/chart")))
	ver, err := mr.Get(rc.versionKey("s1"))
	require.NoError(t, err)
	assert.Equal(t, "1", ver)

	rec := serve(e, http.MethodGet, "/v1/chart")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "v2", rec.Body.String())
}

func TestResponseCache_ReadRacingWriteIsNotStored(t *testing.T) {
	_, rdb := newTestRedis(t)
	rc := newTestCache(rdb, 1024)

	var mu sync.Mutex
	state := "v1"
	first := true
	reading := make(chan struct{})
	release := make(chan struct{})

	e := echo.New()
	e.Use(asSession("s1"))
	e.GET("/v1/chart", func(c echo.Context) error {
		mu.Lock()
		body, block := state, first
		first = false
		mu.Unlock()
		if block {
			close(reading)
			<-release
		}
		return c.String(http.StatusOK, body)
	}, rc.Middleware())
	e.POST("/v1/chart/allocate", func(c echo.Context) error {
		mu.Lock()
		defer mu.Unlock()
		state = "v2"
		return c.NoContent(http.StatusOK)
	}, rc.Invalidate("/v1/chart"))

	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- serve(e, http.MethodGet, "/v1/chart") }()

	<-reading
	require.Equal(t, http.StatusOK, serve(e, http.MethodPost, "/v1/chart/allocate").Code)
	close(release)
	slow := <-done
	assert.Equal(t, "v1", slow.Body.String())

	rec := serve(e, http.MethodGet, "/v1/chart")
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "v2", rec.Body.String(), "chart read before the write was cached")

	rec = serve(e, http.MethodGet, "/v1/chart")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, "v2", rec.Body.String())
}

func TestResponseCache_HitForEndedSessionFallsThrough(t *testing.T) {
	mr, rdb := newTestRedis(t)
	live := true
	rc := newTestCache(rdb, 1024).WithSessionCheck(func(session string) bool {
		return session == "s1" && live
	})

	e := echo.New()
	e.Use(asSession("s1"))
	e.GET("/v1/chart", func(c echo.Context) error {
		if !live {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "session not found"})
		}
		return c.String(http.StatusOK, "chart")
	}, rc.Middleware())

	serve(e, http.MethodGet, "/v1/chart")
	require.Equal(t, "HIT", serve(e, http.MethodGet, "/v1/chart").Header().Get("X-Cache"))

	live = false
	rec := serve(e, http.MethodGet, "/v1/chart")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotEqual(t, "HIT", rec.Header().Get("X-Cache"))
	assert.False(t, mr.Exists(rc.key("s1", "/v1/chart")))
}
