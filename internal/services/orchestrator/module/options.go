package module

import (
	"time"

	"crimetrends/internal/platform/config"
)

// Cache backends
const (
	CachePG    = "pg"
	CacheRedis = "redis"
	CacheOff   = "off"
)

// Options controls the runtime and the agent
type Options struct {
	// Runtime
	Cache        string
	LockTimeout  time.Duration
	FlowTimeout  time.Duration
	TaskTimeout  time.Duration
	DBTimeout    time.Duration
	DeployWait   time.Duration
	DefaultFlow  string
	RunListLimit int

	// Agent
	PollInterval  time.Duration
	Workers       int
	WorkQueue     string
	ScheduleBatch int
	RunLease      time.Duration
}

// FromConfig reads CORE_ORCH_ and CORE_AGENT_
func FromConfig(cfg config.Conf) Options {
	o := cfg.Prefix("CORE_ORCH_")
	a := cfg.Prefix("CORE_AGENT_")
	return Options{
		Cache:        o.MayEnum("CACHE", CachePG, CachePG, CacheRedis, CacheOff),
		LockTimeout:  o.MayDuration("LOCK_TIMEOUT", 2*time.Second),
		FlowTimeout:  o.MayDuration("FLOW_TIMEOUT", 0),
		TaskTimeout:  o.MayDuration("TASK_TIMEOUT", 0),
		DBTimeout:    o.MayDuration("DB_TIMEOUT", 5*time.Second),
		DeployWait:   o.MayDuration("DEPLOY_WAIT", 10*time.Second),
		DefaultFlow:  o.MayString("DEFAULT_FLOW", "parent-flow"),
		RunListLimit: o.MayInt("RUN_LIST_LIMIT", 500),

		PollInterval:  a.MayDuration("POLL_INTERVAL", 5*time.Second),
		Workers:       a.MayInt("WORKERS", 2),
		WorkQueue:     a.MayString("WORK_QUEUE", "default"),
		ScheduleBatch: a.MayInt("SCHEDULE_BATCH", 16),
		RunLease:      a.MayDuration("RUN_LEASE", 2*time.Minute),
	}
}
