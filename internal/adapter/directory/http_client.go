package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"timetrack/internal/domain"
	"timetrack/internal/ports"
)

// HTTPClient implements ports.TaskDirectory against the project-management
// REST API.
type HTTPClient struct {
	baseURL  string
	apiToken string
	http     *http.Client
	log      *slog.Logger
}

var _ ports.TaskDirectory = (*HTTPClient)(nil)

func NewHTTPClient(baseURL, apiToken string, timeout time.Duration, log *slog.Logger) *HTTPClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:  baseURL,
		apiToken: apiToken,
		http: &http.Client{
			Timeout: timeout,
		},
		log: log,
	}
}

// ResolveTask fetches a task and its parent project.
// GET /api/tasks/{id}
func (c *HTTPClient) ResolveTask(ctx context.Context, taskID string) (domain.TaskRef, error) {
	// The id must stay a single segment under /api/tasks.
	if taskID == "" || taskID == "." || taskID == ".." || strings.ContainsAny(taskID, `/\`) {
		return domain.TaskRef{}, domain.ErrTaskNotFound
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return domain.TaskRef{}, err
	}
	u = u.JoinPath("api", "tasks", url.PathEscape(taskID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.TaskRef{}, err
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.TaskRef{}, fmt.Errorf("%w: task directory: %v", domain.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.TaskRef{}, domain.ErrTaskNotFound
	case resp.StatusCode >= http.StatusInternalServerError:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.TaskRef{}, fmt.Errorf("%w: task directory status %d: %s", domain.ErrUnavailable, resp.StatusCode, string(body))
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.TaskRef{}, fmt.Errorf("task directory: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var raw rawTask
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return domain.TaskRef{}, fmt.Errorf("task directory: decode task: %w", err)
	}
	if raw.ID != taskID {
		c.log.Warn("task directory returned another task", slog.String("requested", taskID), slog.String("got", raw.ID))
		return domain.TaskRef{}, domain.ErrTaskNotFound
	}
	if raw.ProjectID == "" {
		return domain.TaskRef{}, errors.New("task directory: task has no project")
	}
	c.log.Debug("resolved task", slog.String("task", raw.ID), slog.String("project", raw.ProjectID))
	return domain.TaskRef{
		ID:          raw.ID,
		Name:        raw.Name,
		ProjectID:   raw.ProjectID,
		ProjectName: raw.Project.Name,
	}, nil
}

// rawTask mirrors the task JSON of the project-management API.
type rawTask struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ProjectID string `json:"project_id"`
	Project   struct {
		Name string `json:"name"`
	} `json:"project"`
}
