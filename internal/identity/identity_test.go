package identity

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestValid(t *testing.T) {
	t.Parallel()

	for _, id := range []string{"1", "123456789", "1234567890123456"} {
		if !Valid(id) {
			t.Errorf("Valid(%q) = false, want true", id)
		}
	}
	for _, id := range []string{"", "abc", "12a34", "-1", "12345678901234567"} {
		if Valid(id) {
			t.Errorf("Valid(%q) = true, want false", id)
		}
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = PatientIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware()(next)

	t.Run("header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(PatientHeaderName, "123456789")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || seen != "123456789" {
			t.Fatalf("code = %d, seen = %q", rec.Code, seen)
		}
	})

	t.Run("query fallback", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/?patient_id=42", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || seen != "42" {
			t.Fatalf("code = %d, seen = %q", rec.Code, seen)
		}
	})

	t.Run("invalid id rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(PatientHeaderName, "bogus!")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("code = %d, want 400", rec.Code)
		}
	})

	t.Run("missing id passes through empty", func(t *testing.T) {
		seen = "sentinel"
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK || seen != "" {
			t.Fatalf("code = %d, seen = %q", rec.Code, seen)
		}
	})
}
