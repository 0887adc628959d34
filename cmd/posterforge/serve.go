package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gnemet/PosterForge/internal/database"
	"github.com/gnemet/PosterForge/internal/i18n"
	"github.com/gnemet/PosterForge/internal/layers"
	"github.com/gnemet/PosterForge/internal/metrics"
	"github.com/gnemet/PosterForge/internal/poster"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve poster updates over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runner, cleanup, err := newRunner(ctx, newEngine(cfg, ""), nil)
		if err != nil {
			return err
		}
		defer cleanup()

		reg := prometheus.NewRegistry()
		runner.Metrics = metrics.New(reg)

		s := &server{
			runner:        runner,
			templatePath:  cfg.Storage.Template,
			defaultFolder: cfg.Storage.Output,
			logger:        logger,
			gatherer:      reg,
		}
		if h, ok := runner.Recorder.(runHistory); ok {
			s.history = h
		}

		httpServer := &http.Server{
			Addr:              cfg.Application.Addr(),
			Handler:           s.routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info("PosterForge listening", zap.String("addr", httpServer.Addr))
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return httpServer.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runHistory lists recorded runs; *database.RunRepository satisfies it.
type runHistory interface {
	RecentRuns(ctx context.Context, limit int) ([]database.Run, error)
}

const defaultRunsLimit = 20

type server struct {
	runner        *poster.Runner
	templatePath  string
	defaultFolder string
	logger        *zap.Logger
	gatherer      prometheus.Gatherer
	history       runHistory // nil without a database

	// Every run writes the same two file names, so runs are serialized.
	mu sync.Mutex
}

type updateResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type fieldsResponse struct {
	Template string   `json:"template"`
	Fields   []string `json:"fields"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Post("/posters", s.handleUpdate)
	r.Get("/fields", s.handleFields)
	r.Get("/langs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, i18n.GetAvailableLangs())
	})
	if s.history != nil {
		r.Get("/runs", s.handleRuns)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req poster.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	folder, err := resolveFolder(s.defaultFolder, req.Folder)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Folder = folder

	var shown poster.Notification
	runner := *s.runner
	runner.Lang = i18n.GetLang(r)
	runner.Notifier = poster.NotifierFunc(func(_ context.Context, n poster.Notification) error {
		shown = n
		return nil
	})

	err = s.run(r.Context(), &runner, req)

	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, updateResponse{Status: shown.Outcome.String(), Message: shown.Message})
}

func (s *server) run(ctx context.Context, runner *poster.Runner, req poster.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return runner.Run(ctx, req)
}

// resolveFolder maps a client supplied folder onto the output directory.
// Only local relative paths are accepted, so requests cannot write outside base.
func resolveFolder(base, folder string) (string, error) {
	if folder == "" {
		return base, nil
	}
	if !filepath.IsLocal(folder) {
		return "", fmt.Errorf("invalid folder %q: must be a relative path inside the output directory", folder)
	}
	return filepath.Join(base, folder), nil
}

func (s *server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.history.RecentRuns(r.Context(), limit)
	if err != nil {
		s.logger.Warn("Failed to load run history", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []database.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *server) handleFields(w http.ResponseWriter, r *http.Request) {
	doc, err := layers.LoadTemplate(s.templatePath)
	if err != nil {
		s.logger.Warn("Failed to open template", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, fieldsResponse{
		Template: s.templatePath,
		Fields:   layers.TextLayerNames(doc),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
