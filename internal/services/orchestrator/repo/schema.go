package repo

// Schema creates the ledger tables; statements are idempotent
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS deployments (
		name        text PRIMARY KEY,
		flow        text NOT NULL,
		cron        text NOT NULL DEFAULT '',
		work_queue  text NOT NULL DEFAULT 'default',
		params      jsonb NOT NULL DEFAULT '{}'::jsonb,
		paused      boolean NOT NULL DEFAULT false,
		next_run_at timestamptz,
		updated_at  timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS flow_runs (
		id           uuid PRIMARY KEY,
		flow         text NOT NULL,
		name         text NOT NULL,
		deployment   text,
		work_queue   text,
		state        text NOT NULL,
		params       jsonb NOT NULL DEFAULT '{}'::jsonb,
		error        text,
		scheduled_at timestamptz NOT NULL DEFAULT now(),
		started_at   timestamptz,
		ended_at     timestamptz,
		created_at   timestamptz NOT NULL DEFAULT now()
	)`,
	`ALTER TABLE flow_runs ADD COLUMN IF NOT EXISTS heartbeat_at timestamptz`,
	`CREATE INDEX IF NOT EXISTS flow_runs_live_idx ON flow_runs (work_queue, heartbeat_at) WHERE state IN ('Pending', 'Running')`,
	`CREATE INDEX IF NOT EXISTS flow_runs_claim_idx ON flow_runs (work_queue, scheduled_at) WHERE state = 'Scheduled'`,
	`CREATE INDEX IF NOT EXISTS flow_runs_state_idx ON flow_runs (state, scheduled_at DESC)`,
	`CREATE TABLE IF NOT EXISTS task_runs (
		id          uuid PRIMARY KEY,
		flow_run_id uuid NOT NULL REFERENCES flow_runs (id) ON DELETE CASCADE,
		task        text NOT NULL,
		attempt     int NOT NULL,
		state       text NOT NULL,
		cache_key   text,
		error       text,
		started_at  timestamptz NOT NULL DEFAULT now(),
		ended_at    timestamptz
	)`,
	`CREATE INDEX IF NOT EXISTS task_runs_flow_idx ON task_runs (flow_run_id, started_at)`,
	`CREATE TABLE IF NOT EXISTS task_cache (
		cache_key  text PRIMARY KEY,
		task       text NOT NULL,
		value      jsonb NOT NULL,
		expires_at timestamptz NOT NULL,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS schedule_leases (
		deployment   text NOT NULL,
		scheduled_at timestamptz NOT NULL,
		claimed_at   timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (deployment, scheduled_at)
	)`,
}
