package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"timetrack/internal/domain"
	"timetrack/internal/export"
	"timetrack/internal/usecase"
)

// UserHeader carries the id of the authenticated user, set by the gateway in
// front of this service.
const UserHeader = "X-User-ID"

// HTTPServer returns a configured http.Server exposing the time tracking API.
// Call ListenAndServe on the returned server in a goroutine and Shutdown it on exit.
func (a *App) HTTPServer(addr string, timeout time.Duration) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Handler(timeout),
		ReadHeaderTimeout: timeout,
	}
	a.log.Info("http server configured", slog.String("addr", addr))
	return srv
}

// Handler returns the routed API. Every request handler runs with timeout.
func (a *App) Handler(timeout time.Duration) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := a.store.Ping(ctx); err != nil {
			a.log.Warn("health check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// timer
	mux.Handle("POST /api/timer/start", a.authed(timeout, a.handleStart))
	mux.Handle("GET /api/timer/running", a.authed(timeout, a.handleRunning))
	mux.Handle("POST /api/timer/stop", a.authed(timeout, a.handleStop))

	// entries
	mux.Handle("POST /api/time-entries", a.authed(timeout, a.handleCreateManual))
	mux.Handle("GET /api/time-entries", a.authed(timeout, a.handleList))
	mux.Handle("GET /api/time-entries/{id}", a.authed(timeout, a.handleGet))
	mux.Handle("PATCH /api/time-entries/{id}", a.authed(timeout, a.handleUpdate))
	mux.Handle("DELETE /api/time-entries/{id}", a.authed(timeout, a.handleDelete))

	// reports
	mux.Handle("GET /api/timesheet", a.authed(timeout, a.handleTimesheet))
	mux.Handle("GET /api/timesheet/export", a.authed(timeout, a.handleExport))

	return loggingMiddleware(a.log, mux)
}

type userHandler func(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string)

// authed extracts the acting user and bounds the request with timeout.
func (a *App) authed(timeout time.Duration, h userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "missing " + UserHeader, "code": "unauthenticated"})
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		h(ctx, w, r, userID)
	})
}

type startIn struct {
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
}

type stopIn struct {
	EntryID string `json:"entry_id"`
}

type manualIn struct {
	TaskID          string     `json:"task_id"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"duration_minutes"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	EndTime         *time.Time `json:"end_time,omitempty"`
}

type patchIn struct {
	Description     *string `json:"description,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
}

type runningOut struct {
	Running        *domain.TimeEntry `json:"running"`
	ElapsedSeconds int64             `json:"elapsed_seconds"`
}

func (a *App) handleStart(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	var in startIn
	if !decode(w, r, &in) {
		return
	}
	e, err := a.timer.Start(ctx, userID, in.TaskID, in.Description)
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *App) handleRunning(ctx context.Context, w http.ResponseWriter, _ *http.Request, userID string) {
	rt, err := a.timer.GetRunning(ctx, userID)
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, toRunningOut(rt))
}

func (a *App) handleStop(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	var in stopIn
	if !decode(w, r, &in) {
		return
	}
	e, err := a.timer.Stop(ctx, userID, in.EntryID)
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *App) handleCreateManual(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	var in manualIn
	if !decode(w, r, &in) {
		return
	}
	e, err := a.timer.CreateManual(ctx, userID, usecase.ManualEntry{
		TaskID:          in.TaskID,
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
	})
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (a *App) handleList(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	rng, err := ParseRange(q, time.Now())
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	items, err := a.timer.List(ctx, userID, domain.EntryFilter{
		Range:     rng,
		TaskID:    q.Get("task_id"),
		ProjectID: q.Get("project_id"),
	})
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": items})
}

func (a *App) handleGet(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	e, err := a.timer.Get(ctx, userID, r.PathValue("id"))
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *App) handleUpdate(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	var in patchIn
	if !decode(w, r, &in) {
		return
	}
	e, err := a.timer.Update(ctx, userID, r.PathValue("id"), domain.EntryPatch{
		Description:     in.Description,
		DurationMinutes: in.DurationMinutes,
	})
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (a *App) handleDelete(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	if err := a.timer.Delete(ctx, userID, r.PathValue("id")); err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) summarize(ctx context.Context, r *http.Request, userID string) (domain.Timesheet, error) {
	q := r.URL.Query()
	rng, err := ParseRange(q, time.Now())
	if err != nil {
		return domain.Timesheet{}, err
	}
	return a.timesheet.Summarize(ctx, userID, rng, usecase.TimesheetFilter{
		TaskID:    q.Get("task_id"),
		ProjectID: q.Get("project_id"),
	})
}

func (a *App) handleTimesheet(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	ts, err := a.summarize(ctx, r, userID)
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	writeJSON(w, http.StatusOK, ts)
}

func (a *App) handleExport(ctx context.Context, w http.ResponseWriter, r *http.Request, userID string) {
	ts, err := a.summarize(ctx, r, userID)
	if err != nil {
		a.writeErr(ctx, w, userID, err)
		return
	}
	name := fmt.Sprintf("timesheet-%s-%s.csv", ts.Range.From.Format("2006-01-02"), ts.Range.To.Format("2006-01-02"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if err := export.WriteCSV(w, ts.Entries); err != nil {
		a.log.Error("csv export failed", slog.String("user", userID), slog.String("error", err.Error()))
	}
}

func toRunningOut(rt *domain.RunningTimer) runningOut {
	if rt == nil {
		return runningOut{}
	}
	e := rt.Entry
	return runningOut{Running: &e, ElapsedSeconds: int64(rt.Elapsed / time.Second)}
}

// writeErr maps domain errors to status codes. Business rule failures carry a
// stable code so clients can tell "timer already running" from "try again".
func (a *App) writeErr(ctx context.Context, w http.ResponseWriter, userID string, err error) {
	body := map[string]any{"error": err.Error()}
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrActiveTimerConflict):
		status, body["code"] = http.StatusConflict, "active_timer_conflict"
		// Hand the client the timer that won so it can display it.
		if rt, gerr := a.timer.GetRunning(ctx, userID); gerr == nil && rt != nil {
			body["running"] = toRunningOut(rt)
		}
	case errors.Is(err, domain.ErrInvalidState):
		status, body["code"] = http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrNotOwner):
		status, body["code"] = http.StatusForbidden, "not_owner"
	case errors.Is(err, domain.ErrEntryNotFound):
		status, body["code"] = http.StatusNotFound, "entry_not_found"
	case errors.Is(err, domain.ErrTaskNotFound):
		status, body["code"] = http.StatusUnprocessableEntity, "task_not_found"
	case errors.Is(err, domain.ErrInvalidDuration):
		status, body["code"] = http.StatusBadRequest, "invalid_duration"
	case errors.Is(err, domain.ErrInvalidRange):
		status, body["code"] = http.StatusBadRequest, "invalid_range"
	case errors.Is(err, domain.ErrBadArguments):
		status, body["code"] = http.StatusBadRequest, "bad_arguments"
	case errors.Is(err, domain.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		a.log.Warn("dependency unavailable", slog.String("user", userID), slog.String("error", err.Error()))
		status, body["code"] = http.StatusServiceUnavailable, "unavailable"
		body["error"] = "service temporarily unavailable"
	default:
		a.log.Error("request failed", slog.String("user", userID), slog.String("error", err.Error()))
		body["error"] = "internal error"
		body["code"] = "internal"
	}
	writeJSON(w, status, body)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json", "code": "bad_arguments"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// loggingMiddleware provides basic request logging.
func loggingMiddleware(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Info("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Duration("dur", time.Since(start)),
		)
	})
}
