package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/proplens/proplens/internal/fetcher"
	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/pkg/geocode"
)

const (
	purgeInterval   = 10 * time.Minute
	shutdownTimeout = 10 * time.Second
	maxRequestBytes = 1 << 20
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(cfg)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gCtx := errgroup.WithContext(ctx)

		g.Go(func() error {
			env.purgeLoop(gCtx, purgeInterval)
			return nil
		})

		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})

		g.Go(func() error {
			<-gCtx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := contextWithTimeout(shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Error("server shutdown", zap.Error(err))
			}
			return nil
		})

		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// newRouter mounts the API routes over env.
func newRouter(env *appEnv) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", env.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/geocode", env.handleGeocode)
		r.Post("/facts", env.handleFacts)
	})

	return r
}

type healthResponse struct {
	Status string         `json:"status"`
	Fetch  *fetcher.Stats `json:"fetch,omitempty"`
}

func (e *appEnv) handleHealth(w http.ResponseWriter, _ *http.Request) {
	body := healthResponse{Status: "ok"}
	if e.Governor != nil {
		stats := e.Governor.Stats()
		body.Fetch = &stats
	}
	writeJSON(w, http.StatusOK, body)
}

type geocodeCandidate struct {
	Index int `json:"index"`
	model.ResolvedAddress
	Match float64 `json:"match"`
	Best  bool    `json:"best"`
}

func (e *appEnv) handleGeocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("q is required"))
		return
	}
	candidates, err := e.Geocoder.Search(r.Context(), q)
	if err != nil {
		zap.L().Warn("geocode failed", zap.String("query", q), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorBody("geocoding failed"))
		return
	}

	best, _ := geocode.BestMatch(q, candidates)
	out := make([]geocodeCandidate, 0, len(candidates))
	for i, c := range candidates {
		out = append(out, geocodeCandidate{
			Index:           i,
			ResolvedAddress: c,
			Match:           geocode.Similarity(q, c.DisplayName),
			Best:            i == best,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"candidates": out})
}

func (e *appEnv) handleFacts(w http.ResponseWriter, r *http.Request) {
	// finance fields absent from the body keep the configured defaults
	fin := e.Finance
	req := lookupRequest{Finance: &fin}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid request body"))
		return
	}
	if req.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query is required"))
		return
	}

	res, err := e.lookup(r.Context(), req)
	if err != nil {
		status, msg := lookupStatus(err)
		if status >= http.StatusInternalServerError {
			zap.L().Error("lookup failed", zap.String("query", req.Query), zap.Error(err))
		}
		writeJSON(w, status, errorBody(msg))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// lookupStatus maps a lookup error to an HTTP status and client message.
func lookupStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, errNoCandidates):
		return http.StatusNotFound, errNoCandidates.Error()
	default:
		return http.StatusBadGateway, "lookup failed"
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("json encode failed", zap.Error(err))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
