// Package jobs runs the scraping engine in the background, one job at a time.
//
// The Orchestrator owns a single mutex-guarded Job cell. The same lock covers
// the "is a job running" decision in Launch and every state transition made
// by the worker, so a launch racing a completion always resolves to exactly
// one running job. The engine runs on one dedicated worker goroutine; Launch
// only hands it a task and returns.
package jobs

import (
	"time"
)

// Status is the lifecycle state of a job
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether s is Completed or Failed
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress counts engine invocations of a job
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// Percentage calculates progress as a percentage (0-100)
func (p Progress) Percentage() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Current) / float64(p.Total) * 100
}

// Job is one tracked execution of the scraping engine.
// Values returned by the Orchestrator are snapshots.
type Job struct {
	ID         string      `json:"id,omitempty"`
	Status     Status      `json:"status"`
	Parameters *Parameters `json:"parameters,omitempty"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Error      string      `json:"error,omitempty"` // set only when Failed
	ErrorCode  ErrorCode   `json:"error_code,omitempty"`
	Progress   Progress    `json:"progress"`
	Log        []string    `json:"log,omitempty"`
}

// Duration is how long the job ran, or has been running
func (j Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.FinishedAt == nil {
		return time.Since(*j.StartedAt)
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

func (j Job) snapshot() Job {
	if j.Parameters != nil {
		p := j.Parameters.clone()
		j.Parameters = &p
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		j.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		j.FinishedAt = &t
	}
	j.Log = append([]string(nil), j.Log...)
	return j
}
