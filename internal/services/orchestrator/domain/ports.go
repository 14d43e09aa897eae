package domain

import (
	"context"
	"encoding/json"
	"time"
)

// RuntimePort runs flows in-process with a ledger row
type RuntimePort interface {
	RunFlow(ctx context.Context, flow, deployment string, params json.RawMessage, fn FlowFunc) (FlowRun, error)
}

// DeployPort manages deployments and their runs
type DeployPort interface {
	Deploy(ctx context.Context, name, cron string, params json.RawMessage) (DeployResult, error)
	ListDeployments(ctx context.Context) ([]Deployment, error)
	// CreateRun schedules a run of the deployment's flow for now
	CreateRun(ctx context.Context, deployment string, params json.RawMessage) (FlowRun, error)
}

// QueryPort reads the ledger
type QueryPort interface {
	ListFlowRuns(ctx context.Context, f RunFilter) ([]FlowRun, error)
	GetFlowRun(ctx context.Context, id string) (FlowRun, []TaskRun, error)
}

// AgentPort runs the scheduler and the workers until ctx ends
type AgentPort interface {
	Run(ctx context.Context) error
}

// Cache stores task results by key
type Cache interface {
	// Get returns ok=false for absent or expired keys
	Get(ctx context.Context, key string) (val json.RawMessage, ok bool, err error)
	Put(ctx context.Context, key, task string, val json.RawMessage, ttl time.Duration) error
}

// DeployResult reports what Deploy did
type DeployResult struct {
	Deployment Deployment `json:"deployment"`
	// Run is set for unscheduled deployments, which run once immediately
	Run *FlowRun `json:"run,omitempty"`
}
