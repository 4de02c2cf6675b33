package obs

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// NewLogger configures a zerolog logger using the provided format and level.
func NewLogger(format, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	writer := os.Stdout
	var out io.Writer = writer
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "text":
		out = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

// RequestLogger records structured HTTP request logs enriched with tracing metadata.
// The request scoped logger is attached to the context for handlers to use.
type RequestLogger struct {
	Logger zerolog.Logger
}

// Middleware implements chi middleware for structured request logs.
func (l RequestLogger) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := middleware.GetReqID(r.Context())
		traceID := ""
		spanID := ""
		if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.IsValid() {
			traceID = spanCtx.TraceID().String()
			spanID = spanCtx.SpanID().String()
		}
		scoped := l.Logger.With().Str("request_id", reqID).Logger()
		if traceID != "" {
			scoped = scoped.With().Str("trace_id", traceID).Logger()
		}

		recorder := NewStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(recorder, r.WithContext(scoped.WithContext(r.Context())))

		route := routeFor(r)
		if route == "" {
			route = r.URL.Path
		}
		evt := l.Logger.Info().
			Str("method", r.Method).
			Str("route", route).
			Str("path", r.URL.Path).
			Int("status", recorder.Status()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Int64("bytes", recorder.BytesWritten()).
			Str("request_id", reqID).
			Str("trace_id", traceID).
			Str("span_id", spanID)
		if ip := strings.TrimSpace(r.RemoteAddr); ip != "" {
			evt = evt.Str("remote_addr", ip)
		}
		if ua := strings.TrimSpace(r.UserAgent()); ua != "" {
			evt = evt.Str("user_agent", ua)
		}
		evt.Msg("http_request")
	})
}

// StripeLogger adapts zerolog to the leveled logger interface of the stripe SDK.
type StripeLogger struct {
	Logger zerolog.Logger
}

// Debugf logs SDK debug output.
func (s StripeLogger) Debugf(format string, v ...interface{}) {
	s.Logger.Debug().Str("component", "stripe").Msgf(format, v...)
}

// Infof logs SDK request summaries. They are demoted to debug to keep the
// request log as the single info line per call.
func (s StripeLogger) Infof(format string, v ...interface{}) {
	s.Logger.Debug().Str("component", "stripe").Msgf(format, v...)
}

// Warnf logs SDK warnings.
func (s StripeLogger) Warnf(format string, v ...interface{}) {
	s.Logger.Warn().Str("component", "stripe").Msgf(format, v...)
}

// Errorf logs SDK errors.
func (s StripeLogger) Errorf(format string, v ...interface{}) {
	s.Logger.Error().Str("component", "stripe").Msgf(format, v...)
}

// AsynqLogger adapts zerolog to asynq.Logger for the worker server.
type AsynqLogger struct {
	Logger zerolog.Logger
}

func (a AsynqLogger) Debug(args ...interface{}) { a.Logger.Debug().Msg(fmt.Sprint(args...)) }
func (a AsynqLogger) Info(args ...interface{})  { a.Logger.Info().Msg(fmt.Sprint(args...)) }
func (a AsynqLogger) Warn(args ...interface{})  { a.Logger.Warn().Msg(fmt.Sprint(args...)) }
func (a AsynqLogger) Error(args ...interface{}) { a.Logger.Error().Msg(fmt.Sprint(args...)) }

// Fatal logs and exits, as asynq expects.
func (a AsynqLogger) Fatal(args ...interface{}) { a.Logger.Fatal().Msg(fmt.Sprint(args...)) }
