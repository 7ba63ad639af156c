package domain

// Project is a project as known to the external task directory.
type Project struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
}

// TaskRef is what the task directory returns for a task: enough to attribute
// time to it and to its parent project.
type TaskRef struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
}
