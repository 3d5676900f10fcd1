package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/smazurov/bellbridge/internal/logging"
)

// requestIDHeader carries the request id; a client-supplied value is kept
// so webhook senders can correlate their retries.
const requestIDHeader = "X-Request-ID"

// HTTPLoggingMiddleware tags each request with an id and logs it once it
// completes, at a level chosen from the status code.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	requestID := ctx.Header(requestIDHeader)
	if requestID == "" || len(requestID) > 64 {
		requestID = uuid.NewString()
	}
	ctx.SetHeader(requestIDHeader, requestID)

	method := ctx.Method()
	path := ctx.URL().Path
	attrs := []slog.Attr{
		slog.String("request_id", requestID),
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", ctx.RemoteAddr()),
	}
	if cam := ctx.Query("camera"); cam != "" {
		attrs = append(attrs, slog.String("camera", cam))
	}
	if ua := ctx.Header("User-Agent"); ua != "" {
		attrs = append(attrs, slog.String("user_agent", ua))
	}

	// Event streams stay open for the life of the client.
	if path == "/api/events" {
		logger.LogAttrs(ctx.Context(), slog.LevelInfo, "Event stream opened", attrs...)
	}

	next(ctx)

	status := ctx.Status()
	attrs = append(attrs,
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)
	logger.LogAttrs(ctx.Context(), requestLevel(method, path, status), "HTTP request completed", attrs...)
}

// requestLevel keeps polling traffic at debug and surfaces failures.
func requestLevel(method, path string, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	case method == http.MethodOptions, method == http.MethodGet && !strings.HasPrefix(path, "/hooks/"):
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
