package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/querytalk/querytalk/internal/config"
)

func TestTraceMiddlewareGeneratesTraceID(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if seen == "" {
		t.Fatal("trace ID was not injected into the request context")
	}
	if got := recorder.Header().Get("X-Trace-ID"); got != seen {
		t.Fatalf("X-Trace-ID header = %q, want %q", got, seen)
	}
}

func TestTraceMiddlewarePropagatesIncomingTraceID(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	request.Header.Set("X-Trace-ID", "trace-123")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	if seen != "trace-123" {
		t.Fatalf("trace ID = %q, want %q", seen, "trace-123")
	}
}

func TestTraceMiddlewareReplacesMalformedTraceID(t *testing.T) {
	var seen string
	handler := TraceMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceIDFromContext(r.Context())
	}))

	request := httptest.NewRequest(http.MethodGet, "/v1/health", nil)
	request.Header.Set("X-Trace-ID", "bad id\nwith newline")
	handler.ServeHTTP(httptest.NewRecorder(), request)

	if seen == "" || seen == "bad id\nwith newline" {
		t.Fatalf("trace ID = %q, want a freshly generated id", seen)
	}
}

func TestRouteLabelCollapsesSessionPaths(t *testing.T) {
	if got := routeLabel("/v1/conversations/8e3a2f10"); got != "/v1/conversations/{session}" {
		t.Fatalf("routeLabel() = %q", got)
	}
	if got := routeLabel("/v1/query"); got != "/v1/query" {
		t.Fatalf("routeLabel() = %q", got)
	}
}

func TestLoggingMiddlewareEmitsRequestLine(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ask", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["msg"] != "http_request" {
		t.Fatalf("msg = %v", entry["msg"])
	}
	if entry["path"] != "/v1/ask" {
		t.Fatalf("path = %v", entry["path"])
	}
	if entry["status"] != float64(http.StatusTeapot) {
		t.Fatalf("status = %v", entry["status"])
	}
	if _, ok := entry["duration_ms"]; !ok {
		t.Fatalf("entry missing duration_ms: %v", entry)
	}
}

func TestLoggingMiddlewareLogsHealthChecksAtDebug(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if buf.Len() != 0 {
		t.Fatalf("health check logged at info level:\n%s", buf.String())
	}
}

func TestNewLoggerCarriesServiceAttributes(t *testing.T) {
	cfg, err := config.Load("querytalk-api", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Observability.LogJSON = true

	var buf bytes.Buffer
	logger := NewLogger(cfg, &buf)
	logger.InfoContext(context.Background(), "hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["service"] != "querytalk-api" {
		t.Fatalf("service = %v", entry["service"])
	}
	if entry["profile"] != "dev" {
		t.Fatalf("profile = %v", entry["profile"])
	}
	if entry["dataset"] != "entertainment" {
		t.Fatalf("dataset = %v", entry["dataset"])
	}
}
