package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tutor-marketplace/internal/config"
	"github.com/iliyamo/tutor-marketplace/internal/utils"
)

const testSecret = "jwt-secret"

func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func bearer(t *testing.T, userID uint64, role string) string {
	t.Helper()

	tok, err := utils.NewAccessToken(testSecret, userID, role, 5)
	require.NoError(t, err)
	return "Bearer " + tok.Token
}

func serve(e *echo.Echo, method, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func whoami(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"id": UserID(c), "role": Role(c)})
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth(testSecret))

	rec := serve(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/me", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/me", bearer(t, 7, "teacher"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":7,"role":"teacher"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/admin", whoami, JWTAuth(testSecret), RequireRole("admin"))
	e.GET("/teach", whoami, JWTAuth(testSecret), RequireRole("teacher", "admin"))

	assert.Equal(t, http.StatusForbidden, serve(e, http.MethodGet, "/admin", bearer(t, 1, "student")).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/admin", bearer(t, 1, "admin")).Code)
	assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/teach", bearer(t, 2, "teacher")).Code)
}

func TestTokenBucket(t *testing.T) {
	rdb := setupTestRedis(t)
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: time.Hour,
		TTL: 2 * time.Hour, KeyStrategy: "user_route", Prefix: "rl",
	}
	e := echo.New()
	e.GET("/limited", whoami, JWTAuth(testSecret), NewTokenBucket(cfg, rdb, zap.NewNop()))

	alice := bearer(t, 1, "student")
	for i := 0; i < 2; i++ {
		rec := serve(e, http.MethodGet, "/limited", alice)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, strconv.Itoa(1-i), rec.Header().Get("X-RateLimit-Remaining"))
	}
	rec := serve(e, http.MethodGet, "/limited", alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// buckets are per user
	rec = serve(e, http.MethodGet, "/limited", bearer(t, 2, "student"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
	e := echo.New()
	mw := NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1}, nil, zap.NewNop())
	e.GET("/open", whoami, mw)
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve(e, http.MethodGet, "/open", "").Code)
	}
}

func TestRedisCache_PerUser(t *testing.T) {
	rdb := setupTestRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute,
		KeyStrategy: "user_route_query", Prefix: "cache", MaxBodyBytes: 1 << 20,
	}
	calls := 0
	e := echo.New()
	e.GET("/lessons", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"owner": UserID(c), "calls": calls})
	}, JWTAuth(testSecret), NewRedisCache(cfg, rdb, zap.NewNop()))

	alice, bob := bearer(t, 1, "student"), bearer(t, 2, "student")

	rec := serve(e, http.MethodGet, "/lessons?page=1", alice)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	rec = serve(e, http.MethodGet, "/lessons?page=1", alice)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"owner":1,"calls":1}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/lessons?page=1", bob)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"owner":2,"calls":2}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/lessons?page=2", alice)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 3, calls)
}

func TestRedisCache_SkipsErrorsAndBypass(t *testing.T) {
	rdb := setupTestRedis(t)
	cfg := config.CacheConfig{
		Enabled: true, Methods: map[string]bool{http.MethodGet: true}, TTL: time.Minute,
		KeyStrategy: "route_query", Prefix: "cache",
	}
	calls := 0
	e := echo.New()
	mw := NewRedisCache(cfg, rdb, zap.NewNop())
	e.GET("/fail", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	}, mw)
	e.GET("/ok", func(c echo.Context) error {
		calls++
		return c.String(http.StatusOK, strconv.Itoa(calls))
	}, mw)

	serve(e, http.MethodGet, "/fail", "")
	serve(e, http.MethodGet, "/fail", "")
	assert.Equal(t, 2, calls, "non-200 responses are not cached")

	serve(e, http.MethodGet, "/ok", "")
	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("Cache-Control", "no-cache")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "4", rec.Body.String())
}

func TestPayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": []string{"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)

	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 1})
	assert.False(t, ok)
}
