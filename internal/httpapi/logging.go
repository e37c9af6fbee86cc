package httpapi

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"cmdgen/internal/generator"
)

// zlog is the HTTP layer's structured logger. Silent until SetLogger.
var zlog = zerolog.Nop()

// SetLogger installs a structured logger used by the HTTP layer.
func SetLogger(l zerolog.Logger) { zlog = l }

// EnvHTTPLog sets the default per-request log level (off|error|info|debug).
const EnvHTTPLog = "CMDGEN_HTTP_LOG"

// parseLevel maps a request log setting onto a zerolog level. "off" and the
// empty string disable request logging; unknown values mean info.
func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "none":
		return zerolog.Disabled
	case "1", "debug":
		return zerolog.DebugLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

var defaultLogLevel = func() zerolog.Level {
	if v, ok := os.LookupEnv(EnvHTTPLog); ok {
		return parseLevel(v)
	}
	return zerolog.InfoLevel
}()

// requestLogLevel lets a caller raise or silence logging for one request via
// ?log= or the X-Log-Level header.
func requestLogLevel(r *http.Request) zerolog.Level {
	if v := r.URL.Query().Get("log"); v != "" {
		return parseLevel(v)
	}
	if v := r.Header.Get("X-Log-Level"); v != "" {
		return parseLevel(v)
	}
	return defaultLogLevel
}

// logGenerate writes one record per /generate call. Failures carry the error
// kind; successes are skipped when the request asked for errors only.
func logGenerate(r *http.Request, lvl zerolog.Level, status int, start time.Time, backend string, err error) {
	if lvl == zerolog.Disabled || (err == nil && lvl > zerolog.InfoLevel) {
		return
	}
	var ev *zerolog.Event
	if err != nil {
		ev = zlog.Warn().Err(err).Str("kind", generator.KindOf(err).String())
	} else {
		ev = zlog.Info().Str("backend", backend)
	}
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		ev = ev.Str("request_id", rid)
	}
	ev.Int("status", status).Dur("dur", time.Since(start)).Msg("generate end")
}
