package middleware

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

type observed struct {
	method, route string
	status        int
}

type recordingObserver struct {
	calls []observed
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.calls = append(o.calls, observed{method, route, status})
}

func TestMetricsUsesRoutePattern(t *testing.T) {
	obs := &recordingObserver{}
	r := chi.NewRouter()
	r.Use(Metrics(obs))
	r.Get("/api/v1/tours/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tours/abc", nil))

	if len(obs.calls) != 1 {
		t.Fatalf("expected one observation, got %d", len(obs.calls))
	}
	got := obs.calls[0]
	if got.route != "/api/v1/tours/{id}" || got.status != http.StatusNotFound || got.method != http.MethodGet {
		t.Fatalf("unexpected observation %+v", got)
	}
}

func TestRecovererReturns500(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "error" {
		t.Fatalf("expected error envelope, got %v", body)
	}
}

func TestDebugExposesStack(t *testing.T) {
	handler := Debug(true)(Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["stack"] == nil {
		t.Fatalf("expected stack in debug mode, got %v", body)
	}
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	handler := BodyLimit(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 64))))

	var maxErr *http.MaxBytesError
	if readErr == nil || !errors.As(readErr, &maxErr) {
		t.Fatalf("expected MaxBytesError, got %v", readErr)
	}
}

func TestRequestIDSources(t *testing.T) {
	handler := RequestID(nil)(okHandler())
	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"caller id", map[string]string{"X-Request-Id": "abc-123"}, "abc-123"},
		{"cloud trace", map[string]string{"X-Cloud-Trace-Context": "105445aa7843bc8bf206b120001000/1;o=1"}, "105445aa7843bc8bf206b120001000"},
		{"caller id wins", map[string]string{"X-Request-Id": "abc-123", "X-Cloud-Trace-Context": "trace/1"}, "abc-123"},
		{"control chars", map[string]string{"X-Request-Id": "abc\x01def"}, ""},
		{"too long", map[string]string{"X-Request-Id": strings.Repeat("a", maxRequestIDLen+1)}, ""},
		{"missing", nil, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get("X-Request-Id")
			if tc.want != "" && got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
			if tc.want == "" && (got == "" || got == tc.headers["X-Request-Id"]) {
				t.Fatalf("expected a generated id, got %q", got)
			}
		})
	}
}
