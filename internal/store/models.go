package store

import "time"

// Run describes one pipeline execution and the file it produced.
type Run struct {
	ID         string    `json:"id"`
	Pipeline   string    `json:"pipeline"`
	Source     string    `json:"source"`
	Output     string    `json:"output"`
	ObjectKey  string    `json:"object_key,omitempty"`
	Rows       int       `json:"rows"`
	Skipped    []string  `json:"skipped,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration is the wall time of the run.
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
