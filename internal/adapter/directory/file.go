package directory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"timetrack/internal/domain"
	"timetrack/internal/ports"
)

// FileDirectory serves tasks from a YAML catalogue, for deployments without
// the project-management API:
//
//	projects:
//	  - id: p1
//	    name: Website
//	    tasks:
//	      - id: t1
//	        name: Landing page
type FileDirectory struct {
	tasks map[string]domain.TaskRef
}

var _ ports.TaskDirectory = (*FileDirectory)(nil)

type catalogue struct {
	Projects []struct {
		domain.Project `yaml:",inline"`
		Tasks          []struct {
			ID   string `yaml:"id"`
			Name string `yaml:"name"`
		} `yaml:"tasks"`
	} `yaml:"projects"`
}

// LoadFile reads and indexes the catalogue at path.
func LoadFile(path string) (*FileDirectory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(b)
}

// Parse builds a directory from YAML. Task ids must be unique across projects.
func Parse(b []byte) (*FileDirectory, error) {
	var c catalogue
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse task catalogue: %w", err)
	}
	d := &FileDirectory{tasks: make(map[string]domain.TaskRef)}
	for _, p := range c.Projects {
		if p.ID == "" {
			return nil, fmt.Errorf("task catalogue: project %q has no id", p.Name)
		}
		for _, t := range p.Tasks {
			if t.ID == "" {
				return nil, fmt.Errorf("task catalogue: task %q in project %s has no id", t.Name, p.ID)
			}
			if _, dup := d.tasks[t.ID]; dup {
				return nil, fmt.Errorf("task catalogue: duplicate task id %s", t.ID)
			}
			d.tasks[t.ID] = domain.TaskRef{
				ID:          t.ID,
				Name:        t.Name,
				ProjectID:   p.ID,
				ProjectName: p.Name,
			}
		}
	}
	return d, nil
}

func (d *FileDirectory) ResolveTask(_ context.Context, taskID string) (domain.TaskRef, error) {
	t, ok := d.tasks[taskID]
	if !ok {
		return domain.TaskRef{}, domain.ErrTaskNotFound
	}
	return t, nil
}
