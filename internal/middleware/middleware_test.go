package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/octobees/leads-enrichment/api/internal/config"
	"github.com/octobees/leads-enrichment/api/internal/logger"
)

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := logger.NewWithCore(core)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-123")

	err := Logging(log)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	entries := logs.FilterMessage("request handled").FilterField(zap.String("request_id", "rid-123")).All()
	if len(entries) != 1 {
		t.Fatalf("expected one request log with request id, got %v", logs.All())
	}

	// ensure errors are propagated and logged
	rec = httptest.NewRecorder()
	c = e.NewContext(req, rec)
	c.Set(ContextKeyRequestID, "rid-456")
	c.Set(ContextKeyOrgID, uuid.New())
	expected := errors.New("boom")
	err = Logging(log)(func(c echo.Context) error {
		return expected
	})(c)
	if logs.FilterMessage("request failed").FilterField(zap.String("request_id", "rid-456")).Len() != 1 {
		t.Fatalf("expected failed request entry with new request id")
	}
	if !errors.Is(err, expected) {
		t.Fatalf("expected error to bubble up")
	}
}

func TestRateLimiter(t *testing.T) {
	cfg := config.RateLimitConfig{Requests: 1, Interval: time.Second}
	mw := RateLimiter(cfg, "/scrape", "/enrich/bulk")

	e := echo.New()
	nextCalls := 0
	next := func(c echo.Context) error {
		nextCalls++
		return c.NoContent(http.StatusOK)
	}
	orgA, orgB := uuid.New(), uuid.New()

	call := func(path string, orgID uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetPath(path)
		if orgID != uuid.Nil {
			c.Set(ContextKeyOrgID, orgID)
		}
		_ = mw(next)(c)
		return rec
	}

	if rec := call("/scrape", orgA); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := call("/scrape", orgA)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request rejected, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After header, got %q", rec.Header().Get("Retry-After"))
	}

	// limits are per organization
	if rec := call("/scrape", orgB); rec.Code != http.StatusOK {
		t.Fatalf("expected other org to pass, got %d", rec.Code)
	}

	// unlisted paths bypass the limiter
	if rec := call("/credits", orgA); rec.Code != http.StatusOK {
		t.Fatalf("expected unlisted path to pass")
	}

	// anonymous callers share a per-IP bucket
	if rec := call("/enrich/bulk", uuid.Nil); rec.Code != http.StatusOK {
		t.Fatalf("expected anonymous first request to pass, got %d", rec.Code)
	}
	if rec := call("/enrich/bulk", uuid.Nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected anonymous second request rejected, got %d", rec.Code)
	}

	// zero config should behave as passthrough
	mw = RateLimiter(config.RateLimitConfig{}, "/scrape")
	if rec := call("/scrape", orgA); rec.Code != http.StatusOK {
		t.Fatalf("expected passthrough when limiter disabled")
	}
	if nextCalls == 0 {
		t.Fatalf("expected next handler to be invoked")
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	mw := RequireRole("admin")

	t.Run("missing role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		_ = mw(func(c echo.Context) error { return nil })(c)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("incorrect role", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ContextKeyMemberRole, "member")

		_ = mw(func(c echo.Context) error { return nil })(c)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.Set(ContextKeyMemberRole, "admin")

		called := false
		if err := mw(func(c echo.Context) error {
			called = true
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !called {
			t.Fatalf("expected handler to run")
		}
	})
}

func TestRequestIDMiddleware(t *testing.T) {
	e := echo.New()
	handler := RequestID()

	t.Run("reuse incoming header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "incoming")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(func(c echo.Context) error {
			if RequestIDFromContext(c) != "incoming" {
				t.Fatalf("expected request id to be stored")
			}
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if rec.Header().Get("X-Request-ID") != "incoming" {
			t.Fatalf("expected response header to propagate request id")
		}
	})

	t.Run("generate when missing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := handler(func(c echo.Context) error {
			if RequestIDFromContext(c) == "" {
				t.Fatalf("expected generated request id")
			}
			return c.NoContent(http.StatusOK)
		})(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if rec.Header().Get("X-Request-ID") == "" {
			t.Fatalf("expected response header set")
		}
	})
}
