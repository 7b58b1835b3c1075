package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"storefront_back_end/internal/logger"
)

var testSecret = []byte("test-secret")

func init() { gin.SetMode(gin.TestMode) }

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func authRouter() *gin.Engine {
	r := gin.New()
	r.GET("/me", AuthRequired(testSecret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(ContextUserID), "email": c.GetString(ContextEmail)})
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	valid := signToken(t, jwt.MapClaims{"user_id": "u1", "email": "a@b.c", "exp": time.Now().Add(time.Hour).Unix()})
	expired := signToken(t, jwt.MapClaims{"user_id": "u1", "exp": time.Now().Add(-time.Hour).Unix()})
	noUser := signToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	noExp := signToken(t, jwt.MapClaims{"user_id": "u1"})

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"bearer", "Bearer " + valid, "", http.StatusOK},
		{"query token", "", valid, http.StatusOK},
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, "", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, "", http.StatusUnauthorized},
		{"no exp", "Bearer " + noExp, "", http.StatusUnauthorized},
		{"no user", "Bearer " + noUser, "", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", "", http.StatusUnauthorized},
	}
	r := authRouter()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := "/me"
			if tc.query != "" {
				target += "?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			if w.Code != tc.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tc.want, w.Body.String())
			}
		})
	}
}

type fakeCounter struct {
	hits map[string]int64
	err  error
}

func (f *fakeCounter) Hit(_ context.Context, key string, _ time.Duration) (int64, time.Duration, error) {
	if f.err != nil {
		return 0, 0, f.err
	}
	f.hits[key]++
	return f.hits[key], 30 * time.Second, nil
}

func TestRateLimit(t *testing.T) {
	counter := &fakeCounter{hits: map[string]int64{}}
	r := gin.New()
	r.POST("/cart", func(c *gin.Context) { c.Set(ContextUserID, "u1") }, RateLimit(counter, "cart_add", 2, time.Minute),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/cart", nil))
		codes = append(codes, w.Code)
		if i == 2 && w.Header().Get("Retry-After") != "30" {
			t.Fatalf("Retry-After = %q", w.Header().Get("Retry-After"))
		}
	}
	if codes[0] != 200 || codes[1] != 200 || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("codes = %v", codes)
	}
	if counter.hits["cart_add:u1"] != 3 {
		t.Fatalf("hits = %v", counter.hits)
	}
}

func TestRateLimitFailsOpen(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimit(&fakeCounter{err: errors.New("redis down")}, "x", 1, time.Minute),
		func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/orders/:id", func(c *gin.Context) {
		logger.FromContext(c.Request.Context(), nil).Info("inside handler")
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/orders/42", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get(HeaderRequestID) != "req-1" {
		t.Fatalf("request id header = %q", w.Header().Get(HeaderRequestID))
	}
	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].ContextMap()["request_id"] != "req-1" {
		t.Fatalf("handler log missing request id: %v", entries[0].ContextMap())
	}
	access := entries[1]
	if access.Level != zap.WarnLevel || access.ContextMap()["path"] != "/orders/:id" {
		t.Fatalf("access log = %v %v", access.Level, access.ContextMap())
	}
}
