package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/doppl/internal/ctxkeys"
	"github.com/BaSui01/doppl/internal/metrics"
	"github.com/BaSui01/doppl/internal/ratelimit"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func serve(h http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestSecurityHeaders(t *testing.T) {
	w := serve(SecurityHeaders()(okHandler), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "strict-origin-when-cross-origin", w.Header().Get("Referrer-Policy"))
	assert.Equal(t, "default-src 'none'", w.Header().Get("Content-Security-Policy"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	serve(Chain(okHandler, mark("a"), mark("b"), mark("c")), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ctxkeys.RequestID(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
	})

	t.Run("preserved", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Request-ID", "client-id-1")
		w := serve(h, r)
		assert.Equal(t, "client-id-1", seen)
		assert.Equal(t, "client-id-1", w.Header().Get("X-Request-ID"))
	})
}

func TestRecovery(t *testing.T) {
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), Recovery(zap.NewNop()), RequestID())

	w := serve(h, httptest.NewRequest(http.MethodPost, routeGenerate, nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"INTERNAL_ERROR"`)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestAPIKeyAuth(t *testing.T) {
	h := APIKeyAuth([]string{"k1", "k2"}, publicPaths, true, zap.NewNop())(okHandler)

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{name: "valid header", path: routeGenerate, header: "k1", wantStatus: http.StatusOK},
		{name: "invalid header", path: routeGenerate, header: "nope", wantStatus: http.StatusUnauthorized},
		{name: "missing", path: routeGenerate, wantStatus: http.StatusUnauthorized},
		{name: "query param", path: routeGenerate + "?api_key=k2", wantStatus: http.StatusOK},
		{name: "public path", path: "/healthz", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("X-API-Key", tt.header)
			}
			w := serve(h, r)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"UNAUTHORIZED"`)
			}
		})
	}
}

func TestAPIKeyAuth_QueryDisabled(t *testing.T) {
	h := APIKeyAuth([]string{"k1"}, nil, false, zap.NewNop())(okHandler)

	w := serve(h, httptest.NewRequest(http.MethodPost, routeGenerate+"?api_key=k1", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func signToken(t *testing.T, secret string, claims jwt.RegisteredClaims, method jwt.SigningMethod) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestJWTAuth(t *testing.T) {
	const secret = "test-secret-0123456789"
	var subject string
	h := JWTAuth(secret, "doppl-ui", publicPaths, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = ctxkeys.Subject(r.Context())
	}))

	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name        string
		token       string
		wantStatus  int
		wantSubject string
	}{
		{
			name:        "valid",
			token:       signToken(t, secret, jwt.RegisteredClaims{Subject: "user-7", Issuer: "doppl-ui", ExpiresAt: future}, jwt.SigningMethodHS256),
			wantStatus:  http.StatusOK,
			wantSubject: "user-7",
		},
		{
			name:       "expired",
			token:      signToken(t, secret, jwt.RegisteredClaims{Subject: "u", Issuer: "doppl-ui", ExpiresAt: past}, jwt.SigningMethodHS256),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong issuer",
			token:      signToken(t, secret, jwt.RegisteredClaims{Subject: "u", Issuer: "other", ExpiresAt: future}, jwt.SigningMethodHS256),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong secret",
			token:      signToken(t, "another-secret-value", jwt.RegisteredClaims{Issuer: "doppl-ui", ExpiresAt: future}, jwt.SigningMethodHS256),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "disallowed algorithm",
			token:      signToken(t, secret, jwt.RegisteredClaims{Issuer: "doppl-ui", ExpiresAt: future}, jwt.SigningMethodHS512),
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			r := httptest.NewRequest(http.MethodPost, routeGenerate, nil)
			r.Header.Set("Authorization", "Bearer "+tt.token)
			w := serve(h, r)
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantSubject, subject)
		})
	}

	t.Run("missing header", func(t *testing.T) {
		w := serve(h, httptest.NewRequest(http.MethodPost, routeGenerate, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("public path", func(t *testing.T) {
		w := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

type stubLimiter struct {
	allow bool
	err   error
	keys  []string
}

func (l *stubLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allow, l.err
}

func TestRateLimiter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h := RateLimiter(ratelimit.NewLocal(ctx, 1, 2), zap.NewNop())(okHandler)

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		r := httptest.NewRequest(http.MethodPost, routeGenerate, nil)
		r.RemoteAddr = "10.0.0.1:5555"
		codes = append(codes, serve(h, r).Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// 不同 IP 独立计数
	r := httptest.NewRequest(http.MethodPost, routeGenerate, nil)
	r.RemoteAddr = "10.0.0.2:5555"
	assert.Equal(t, http.StatusOK, serve(h, r).Code)
}

func TestRateLimiter_KeysByIP(t *testing.T) {
	stub := &stubLimiter{allow: false}
	h := RateLimiter(stub, zap.NewNop())(okHandler)

	r := httptest.NewRequest(http.MethodPost, routeGenerate, nil)
	r.RemoteAddr = "192.0.2.7:40000"
	w := serve(h, r)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), `"RATE_LIMITED"`)
	assert.Equal(t, []string{"192.0.2.7"}, stub.keys)
}

func TestRateLimiter_FailsOpen(t *testing.T) {
	h := RateLimiter(&stubLimiter{err: errors.New("redis down")}, zap.NewNop())(okHandler)

	w := serve(h, httptest.NewRequest(http.MethodPost, routeGenerate, nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.doppl.example"})(okHandler)

	t.Run("allowed preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, routeGenerate, nil)
		r.Header.Set("Origin", "https://app.doppl.example")
		w := serve(h, r)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "https://app.doppl.example", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed preflight", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodOptions, routeGenerate, nil)
		r.Header.Set("Origin", "https://evil.example")
		w := serve(h, r)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("same origin", func(t *testing.T) {
		w := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, routeGenerate, normalizePath(routeGenerate))
	assert.Equal(t, "/readyz", normalizePath("/readyz"))
	assert.Equal(t, "other", normalizePath("/wp-login.php"))
	assert.Equal(t, "other", normalizePath("/api/v1/vton/generate/123"))
}

func TestMetricsMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector("mwtest", zap.NewNop(), reg)
	h := MetricsMiddleware(collector)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	serve(h, httptest.NewRequest(http.MethodGet, "/some/random/path", nil))

	count, err := testutil.GatherAndCount(reg, "mwtest_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
