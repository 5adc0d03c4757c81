// Package api serves persisted pipeline runs over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"trafficsense/adapters/plot"
	"trafficsense/adapters/postgres"
)

// RunReader is the slice of the run repository the API needs.
type RunReader interface {
	ListRuns(ctx context.Context) ([]postgres.RunRecord, error)
	GetRun(ctx context.Context, runID string) (*postgres.RunRecord, error)
	GetSeries(ctx context.Context, runID string) ([]postgres.SampleRecord, error)
}

// App represents the API application
type App struct {
	router *chi.Mux
	runs   RunReader
	port   string
}

// Config holds API application configuration
type Config struct {
	Port string
}

// NewApp creates a new API application
func NewApp(config Config, runs RunReader) *App {
	app := &App{
		router: chi.NewRouter(),
		runs:   runs,
		port:   config.Port,
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app
}

// Start launches the HTTP server.
func (a *App) Start() error {
	server := &http.Server{
		Addr:              ":" + a.port,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

// Router exposes the mux for tests.
func (a *App) Router() http.Handler {
	return a.router
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)
	a.router.Get("/runs", a.handleListRuns)
	a.router.Get("/runs/{id}", a.handleGetRun)
	a.router.Get("/runs/{id}/series", a.handleGetSeries)
	a.router.Get("/runs/{id}/plot", a.handleGetPlot)
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := a.runs.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, runListResponse{Runs: toRunViews(runs)})
}

func (a *App) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := a.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunView(*run))
}

func (a *App) handleGetSeries(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	if _, err := a.runs.GetRun(r.Context(), runID); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	samples, err := a.runs.GetSeries(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, seriesResponse{RunID: runID, Samples: toSampleViews(samples)})
}

func (a *App) handleGetPlot(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	run, err := a.runs.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	samples, err := a.runs.GetSeries(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := plot.RenderTo(w, run.SensorName, toSeries(samples)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
