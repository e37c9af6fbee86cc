package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"cmdgen/internal/generator"
	"cmdgen/pkg/types"
)

// Service defines the methods required by the HTTP API layer. It is satisfied
// by *generator.FallbackGenerator.
type Service interface {
	GenerateCommand(ctx context.Context, req generator.CommandRequest) (*generator.GeneratedCommand, error)
	IsAvailable(ctx context.Context) bool
	Backends() []generator.BackendStatus
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	r.Use(middleware.Compress(5))
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		var body types.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		req, err := toCommandRequest(body)
		if err != nil {
			writeGeneratorError(w, err)
			return
		}

		start := time.Now()
		lvl := requestLogLevel(r)
		if lvl <= zerolog.DebugLevel {
			zlog.Debug().Str("request_id", middleware.GetReqID(r.Context())).Str("shell", string(req.Shell)).
				Str("safety", string(req.Safety)).Int("prompt_bytes", len(req.Prompt)).Msg("generate start")
		}
		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if generateTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, generateTimeout)
			defer tcancel()
		}
		cmd, err := svc.GenerateCommand(ctx, req)
		if err != nil {
			// client went away; nobody to answer
			if r.Context().Err() != nil {
				return
			}
			observeGenerate("", err)
			status := writeGeneratorError(w, err)
			logGenerate(r, lvl, status, start, "", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(types.GenerateResponse{
			Command:      cmd.Command,
			Explanation:  cmd.Explanation,
			BackendUsed:  cmd.BackendUsed,
			Confidence:   cmd.Confidence,
			GenerationMS: cmd.GenerationTime.Milliseconds(),
			Warnings:     cmd.Warnings,
		})
		observeGenerate(cmd.BackendUsed, nil)
		logGenerate(r, lvl, http.StatusOK, start, cmd.BackendUsed, nil)
	})

	r.Get("/backends", func(w http.ResponseWriter, r *http.Request) {
		resp := BackendsResponse(r.Context(), svc)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
		}
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.IsAvailable(r.Context()) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no backend available"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}

// BackendsResponse reports svc's backends in priority order with their
// runtime status, and whether any of them can serve.
func BackendsResponse(ctx context.Context, svc Service) types.BackendsResponse {
	sts := svc.Backends()
	resp := types.BackendsResponse{
		Backends:  make([]types.BackendStatus, 0, len(sts)),
		Available: svc.IsAvailable(ctx),
	}
	for _, st := range sts {
		resp.Backends = append(resp.Backends, types.BackendStatus{
			Type:              string(st.Type),
			ModelName:         st.ModelName,
			SupportsStreaming: st.SupportsStreaming,
			MaxTokens:         st.MaxTokens,
			TypicalLatencyMS:  st.TypicalLatencyMS,
			MemoryMB:          st.MemoryMB,
			Version:           st.Version,
			Requests:          st.Requests,
			Failures:          st.Failures,
			SuccessRate:       st.SuccessRate,
			AvailabilityScore: st.AvailabilityScore,
			AvgLatencyMS:      st.AvgLatency.Milliseconds(),
			LastUsed:          timePtr(st.LastUsed),
			LastProbe:         timePtr(st.LastProbe),
			LastProbeOK:       st.LastProbeOK,
		})
	}
	return resp
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func toCommandRequest(body types.GenerateRequest) (generator.CommandRequest, error) {
	shell, err := generator.ParseShell(body.Shell)
	if err != nil {
		return generator.CommandRequest{}, err
	}
	safety, err := generator.ParseSafety(body.Safety)
	if err != nil {
		return generator.CommandRequest{}, err
	}
	req := generator.CommandRequest{Prompt: body.Prompt, Shell: shell, Safety: safety}
	return req, req.Validate()
}
