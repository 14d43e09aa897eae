// Package domain defines flow runs, task runs and deployments for the
// orchestrator
package domain

import (
	"context"
	"encoding/json"
	"time"
)

// State is the lifecycle state of a flow or task run
type State string

// Run states
const (
	StateScheduled State = "Scheduled"
	StatePending   State = "Pending"
	StateRunning   State = "Running"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
	StateCancelled State = "Cancelled"
	StateCached    State = "Cached"
)

// Terminal reports whether no further transition happens from s
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled, StateCached:
		return true
	}
	return false
}

// Valid reports whether s is a known state
func (s State) Valid() bool {
	switch s {
	case StateScheduled, StatePending, StateRunning, StateCompleted, StateFailed, StateCancelled, StateCached:
		return true
	}
	return false
}

// DefaultWorkQueue is used when a deployment names none
const DefaultWorkQueue = "default"

// FlowRun is one execution of a flow
type FlowRun struct {
	ID          string          `json:"id"`
	Flow        string          `json:"flow"`
	Name        string          `json:"name"`
	Deployment  string          `json:"deployment,omitempty"`
	WorkQueue   string          `json:"work_queue,omitempty"`
	State       State           `json:"state"`
	Params      json.RawMessage `json:"params,omitempty"`
	Error       string          `json:"error,omitempty"`
	ScheduledAt time.Time       `json:"scheduled_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	EndedAt     *time.Time      `json:"ended_at,omitempty"`
}

// TaskRun is one attempt of a task inside a flow run
type TaskRun struct {
	ID        string     `json:"id"`
	FlowRunID string     `json:"flow_run_id"`
	Task      string     `json:"task"`
	Attempt   int        `json:"attempt"`
	State     State      `json:"state"`
	CacheKey  string     `json:"cache_key,omitempty"`
	Error     string     `json:"error,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Deployment binds a flow to parameters, a work queue and an optional cron
type Deployment struct {
	Name      string          `json:"name"`
	Flow      string          `json:"flow"`
	Cron      string          `json:"cron,omitempty"`
	WorkQueue string          `json:"work_queue"`
	Params    json.RawMessage `json:"params,omitempty"`
	Paused    bool            `json:"paused"`
	NextRunAt *time.Time      `json:"next_run_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Scheduled reports whether d carries a cron
func (d Deployment) Scheduled() bool { return d.Cron != "" }

// RunFilter narrows flow run listings
type RunFilter struct {
	State State
	Flow  string
	Limit int
}

// FlowFunc is the body of a flow; params are the run's JSON parameters
type FlowFunc func(ctx context.Context, params json.RawMessage) error
