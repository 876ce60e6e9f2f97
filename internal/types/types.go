// Package types defines the core domain types shared across the pipeline.
package types

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of a pipeline run
type RunStatus string

const (
	// RunStatusRunning means the run is in progress
	RunStatusRunning RunStatus = "running"
	// RunStatusSucceeded means every step completed
	RunStatusSucceeded RunStatus = "succeeded"
	// RunStatusFailed means the run halted at some step
	RunStatusFailed RunStatus = "failed"
)

// Pipeline step names, recorded against failed runs
const (
	StepConfig  = "config"
	StepFetch   = "fetch"
	StepFlatten = "flatten"
	StepUpload  = "upload"
	StepLoad    = "load"
	StepQuery   = "query"
)

// Run represents one pipeline execution recorded in run history
type Run struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
	Status       RunStatus  `json:"status"`
	FailedStep   *string    `json:"failedStep,omitempty"`
	RowCount     int64      `json:"rowCount"`
	CSVObjectKey *string    `json:"csvObjectKey,omitempty"`
	LogObjectKey *string    `json:"logObjectKey,omitempty"`
	ErrorMessage *string    `json:"errorMessage,omitempty"`
}

// NewRun creates a run in the running state with a fresh ID
func NewRun() *Run {
	return &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		Status:    RunStatusRunning,
	}
}

// MarkSucceeded finishes the run as succeeded
func (r *Run) MarkSucceeded() {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = RunStatusSucceeded
}

// MarkFailed finishes the run as failed at the given step
func (r *Run) MarkFailed(step string, err error) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = RunStatusFailed
	r.FailedStep = &step
	if err != nil {
		msg := err.Error()
		r.ErrorMessage = &msg
	}
}

// QueryResult represents the tabular output of one analytical query
type QueryResult struct {
	Name    string          `json:"name"`
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}
