package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"timetrack/internal/adapter/directory"
	"timetrack/internal/adapter/sqlstore"
	"timetrack/internal/domain"
	"timetrack/internal/migrate"
)

const testCatalogue = `
projects:
  - id: p1
    name: Website
    tasks:
      - id: t1
        name: Design
  - id: p2
    name: Mobile
    tasks:
      - id: t2
        name: Review
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := sqlstore.Open(ctx, "sqlite3", "file:"+filepath.Join(t.TempDir(), "app.db"), log)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := migrate.Run(ctx, store.DB(), log); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	tasks, err := directory.Parse([]byte(testCatalogue))
	if err != nil {
		t.Fatalf("catalogue: %v", err)
	}
	a := NewWithDeps(log, store, tasks)
	srv := httptest.NewServer(a.Handler(5 * time.Second))
	t.Cleanup(func() {
		srv.Close()
		_ = a.Close()
	})
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, user string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.Header.Set(UserHeader, user)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status %d, want %d: %s", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, b)
	}
}

func TestTimerFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/timer/start", "alice", map[string]string{"task_id": "t1", "description": "hero"})
	expectStatus(t, resp, http.StatusCreated)
	started := decodeBody[domain.TimeEntry](t, resp)
	if !started.IsRunning || started.ProjectID != "p1" {
		t.Fatalf("unexpected start response %+v", started)
	}

	resp = do(t, srv, http.MethodPost, "/api/timer/start", "alice", map[string]string{"task_id": "t2"})
	expectStatus(t, resp, http.StatusConflict)
	conflict := decodeBody[struct {
		Code    string     `json:"code"`
		Running runningOut `json:"running"`
	}](t, resp)
	if conflict.Code != "active_timer_conflict" || conflict.Running.Running == nil || conflict.Running.Running.ID != started.ID {
		t.Fatalf("conflict body = %+v", conflict)
	}

	resp = do(t, srv, http.MethodGet, "/api/timer/running", "alice", nil)
	expectStatus(t, resp, http.StatusOK)
	running := decodeBody[runningOut](t, resp)
	if running.Running == nil || running.Running.ID != started.ID || running.ElapsedSeconds < 0 {
		t.Fatalf("running = %+v", running)
	}

	resp = do(t, srv, http.MethodPost, "/api/timer/stop", "mallory", map[string]string{"entry_id": started.ID})
	expectStatus(t, resp, http.StatusForbidden)

	resp = do(t, srv, http.MethodPost, "/api/timer/stop", "alice", map[string]string{"entry_id": started.ID})
	expectStatus(t, resp, http.StatusOK)
	stopped := decodeBody[domain.TimeEntry](t, resp)
	if stopped.IsRunning || stopped.DurationMinutes == nil {
		t.Fatalf("stop response %+v", stopped)
	}

	resp = do(t, srv, http.MethodPost, "/api/timer/stop", "alice", map[string]string{"entry_id": started.ID})
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, srv, http.MethodGet, "/api/timer/running", "alice", nil)
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody[runningOut](t, resp); got.Running != nil {
		t.Fatalf("expected no running timer, got %+v", got)
	}
}

func TestEntriesAndTimesheet(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodPost, "/api/timer/start", "alice", map[string]string{"task_id": "t2"})
	expectStatus(t, resp, http.StatusCreated)

	// Manual entries are accepted while a timer runs.
	resp = do(t, srv, http.MethodPost, "/api/time-entries", "alice", map[string]any{"task_id": "t1", "duration_minutes": 60, "description": "wireframes"})
	expectStatus(t, resp, http.StatusCreated)
	m1 := decodeBody[domain.TimeEntry](t, resp)

	resp = do(t, srv, http.MethodPost, "/api/time-entries", "alice", map[string]any{"task_id": "t2", "duration_minutes": 40})
	expectStatus(t, resp, http.StatusCreated)

	resp = do(t, srv, http.MethodPost, "/api/time-entries", "alice", map[string]any{"task_id": "t1", "duration_minutes": 0})
	expectStatus(t, resp, http.StatusBadRequest)
	resp = do(t, srv, http.MethodPost, "/api/time-entries", "alice", map[string]any{"task_id": "nope", "duration_minutes": 5})
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	resp = do(t, srv, http.MethodGet, "/api/time-entries", "alice", nil)
	expectStatus(t, resp, http.StatusOK)
	list := decodeBody[struct {
		Entries []domain.TimeEntry `json:"entries"`
	}](t, resp)
	if len(list.Entries) != 3 {
		t.Fatalf("listed %d entries, want 3 (running included)", len(list.Entries))
	}

	resp = do(t, srv, http.MethodGet, "/api/timesheet", "alice", nil)
	expectStatus(t, resp, http.StatusOK)
	ts := decodeBody[domain.Timesheet](t, resp)
	if ts.GrandTotalMinutes != 100 || ts.EntryCount != 2 || len(ts.ByProject) != 2 {
		t.Fatalf("timesheet = %+v", ts)
	}
	if ts.ByProject[0].ProjectID != "p1" || ts.ByProject[0].Percentage != 60 {
		t.Fatalf("first group = %+v", ts.ByProject[0])
	}

	resp = do(t, srv, http.MethodGet, "/api/timesheet/export?project_id=p1", "alice", nil)
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type = %q", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Fatalf("content disposition = %q", cd)
	}
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "Design" || rows[1][2] != "Website" || rows[1][4] != "1.00" {
		t.Fatalf("csv rows = %v", rows)
	}

	resp = do(t, srv, http.MethodPatch, "/api/time-entries/"+m1.ID, "alice", map[string]any{"duration_minutes": 90})
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody[domain.TimeEntry](t, resp); got.Minutes() != 90 {
		t.Fatalf("patched duration = %d", got.Minutes())
	}

	resp = do(t, srv, http.MethodGet, "/api/time-entries/"+m1.ID, "bob", nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = do(t, srv, http.MethodDelete, "/api/time-entries/"+m1.ID, "alice", nil)
	expectStatus(t, resp, http.StatusNoContent)
	resp = do(t, srv, http.MethodGet, "/api/time-entries/"+m1.ID, "alice", nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestRequestValidation(t *testing.T) {
	srv := newTestServer(t)

	resp := do(t, srv, http.MethodGet, "/api/timer/running", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = do(t, srv, http.MethodGet, "/api/timesheet?start_date=2025-03-10&end_date=2025-03-01", "alice", nil)
	expectStatus(t, resp, http.StatusBadRequest)
	if got := decodeBody[map[string]any](t, resp); got["code"] != "invalid_range" {
		t.Fatalf("code = %v", got["code"])
	}

	resp = do(t, srv, http.MethodGet, "/api/timesheet?start_date=yesterday", "alice", nil)
	expectStatus(t, resp, http.StatusBadRequest)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/timer/start", strings.NewReader("{"))
	req.Header.Set(UserHeader, "alice")
	r2, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer r2.Body.Close()
	expectStatus(t, r2, http.StatusBadRequest)

	resp = do(t, srv, http.MethodGet, "/healthz", "", nil)
	expectStatus(t, resp, http.StatusOK)
}
