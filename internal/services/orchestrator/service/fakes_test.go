package service

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"crimetrends/internal/adapters/notify"
	"crimetrends/internal/modkit/repokit"
	perr "crimetrends/internal/platform/errors"
	"crimetrends/internal/services/orchestrator/domain"
	"crimetrends/internal/services/orchestrator/repo"
)

type cacheEntry struct {
	val json.RawMessage
	exp time.Time
}

// memLedger is an in-memory repo.Storage shared across binds
type memLedger struct {
	mu       sync.Mutex
	runs     map[string]domain.FlowRun
	tasks    []domain.TaskRun
	deps     map[string]domain.Deployment
	leases   map[string]bool
	beats    map[string]time.Time
	cache    map[string]cacheEntry
	clock    func() time.Time
	failNext error
}

func newMemLedger(clock func() time.Time) *memLedger {
	return &memLedger{
		runs:   map[string]domain.FlowRun{},
		deps:   map[string]domain.Deployment{},
		leases: map[string]bool{},
		beats:  map[string]time.Time{},
		cache:  map[string]cacheEntry{},
		clock:  clock,
	}
}

func (m *memLedger) InsertFlowRun(_ context.Context, r domain.FlowRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext != nil {
		err := m.failNext
		m.failNext = nil
		return err
	}
	m.runs[r.ID] = r
	return nil
}

func (m *memLedger) SetFlowRunState(_ context.Context, id string, state domain.State, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return perr.ErrNotFound
	}
	now := m.clock()
	r.State = state
	r.Error = errText
	if state == domain.StateRunning && r.StartedAt == nil {
		r.StartedAt = &now
	}
	if state.Terminal() {
		r.EndedAt = &now
		delete(m.beats, id)
	} else {
		m.beats[id] = now
	}
	m.runs[id] = r
	return nil
}

func (m *memLedger) GetFlowRun(_ context.Context, id string) (domain.FlowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return domain.FlowRun{}, perr.NotFoundf("flow run %s not found", id)
	}
	return r, nil
}

func (m *memLedger) ListFlowRuns(_ context.Context, f domain.RunFilter) ([]domain.FlowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FlowRun
	for _, r := range m.runs {
		if f.State != "" && r.State != f.State {
			continue
		}
		if f.Flow != "" && r.Flow != f.Flow {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	if len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memLedger) ClaimFlowRun(_ context.Context, queue string, now time.Time) (domain.FlowRun, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *domain.FlowRun
	for _, r := range m.runs {
		if r.State != domain.StateScheduled || r.WorkQueue != queue || r.ScheduledAt.After(now) {
			continue
		}
		if best == nil || r.ScheduledAt.Before(best.ScheduledAt) {
			c := r
			best = &c
		}
	}
	if best == nil {
		return domain.FlowRun{}, false, nil
	}
	best.State = domain.StatePending
	m.runs[best.ID] = *best
	m.beats[best.ID] = now
	return *best, true, nil
}

func (m *memLedger) TouchFlowRuns(_ context.Context, ids []string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		if r, ok := m.runs[id]; ok && (r.State == domain.StatePending || r.State == domain.StateRunning) {
			m.beats[id] = now
		}
	}
	return nil
}

func (m *memLedger) ReclaimStaleRuns(_ context.Context, queue string, before time.Time, errText string) ([]domain.FlowRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.FlowRun
	for id, r := range m.runs {
		if r.WorkQueue != queue || (r.State != domain.StatePending && r.State != domain.StateRunning) {
			continue
		}
		beat, ok := m.beats[id]
		if !ok {
			beat = r.ScheduledAt
		}
		if !beat.Before(before) {
			continue
		}
		if r.State == domain.StatePending {
			r.State = domain.StateScheduled
		} else {
			now := m.clock()
			r.State = domain.StateFailed
			r.Error = errText
			r.EndedAt = &now
		}
		delete(m.beats, id)
		m.runs[id] = r
		out = append(out, r)
	}
	return out, nil
}

func (m *memLedger) InsertTaskRun(_ context.Context, r domain.TaskRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks = append(m.tasks, r)
	return nil
}

func (m *memLedger) FinishTaskRun(_ context.Context, id string, state domain.State, errText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.tasks {
		if m.tasks[i].ID == id {
			now := m.clock()
			m.tasks[i].State = state
			m.tasks[i].Error = errText
			m.tasks[i].EndedAt = &now
			return nil
		}
	}
	return perr.ErrNotFound
}

func (m *memLedger) ListTaskRuns(_ context.Context, flowRunID string) ([]domain.TaskRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TaskRun
	for _, t := range m.tasks {
		if t.FlowRunID == flowRunID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memLedger) UpsertDeployment(_ context.Context, d domain.Deployment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d.UpdatedAt = m.clock()
	m.deps[d.Name] = d
	return nil
}

func (m *memLedger) GetDeployment(_ context.Context, name string) (domain.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deps[name]
	if !ok {
		return domain.Deployment{}, perr.NotFoundf("deployment %q not found", name)
	}
	return d, nil
}

func (m *memLedger) ListDeployments(context.Context) ([]domain.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Deployment
	for _, d := range m.deps {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memLedger) DueDeployments(_ context.Context, now time.Time, limit int) ([]domain.Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Deployment
	for _, d := range m.deps {
		if d.Cron == "" || d.Paused || d.NextRunAt == nil || d.NextRunAt.After(now) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(*out[j].NextRunAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLedger) SetNextRun(_ context.Context, name string, next time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deps[name]
	if !ok {
		return perr.ErrNotFound
	}
	d.NextRunAt = &next
	m.deps[name] = d
	return nil
}

func (m *memLedger) ClaimScheduleSlot(_ context.Context, deployment string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := deployment + "@" + at.UTC().Format(time.RFC3339Nano)
	if m.leases[k] {
		return false, nil
	}
	m.leases[k] = true
	return true, nil
}

func (m *memLedger) CacheGet(_ context.Context, key string, now time.Time) (json.RawMessage, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.cache[key]
	if !ok || !e.exp.After(now) {
		return nil, false, nil
	}
	return e.val, true, nil
}

func (m *memLedger) CachePut(_ context.Context, key, _ string, val json.RawMessage, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = cacheEntry{val: val, exp: expiresAt}
	return nil
}

func (m *memLedger) taskRuns(task string) []domain.TaskRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.TaskRun
	for _, t := range m.tasks {
		if t.Task == task {
			out = append(out, t)
		}
	}
	return out
}

func (m *memLedger) run(id string) domain.FlowRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runs[id]
}

type memState struct {
	runs   map[string]domain.FlowRun
	deps   map[string]domain.Deployment
	leases map[string]bool
	beats  map[string]time.Time
	tasks  []domain.TaskRun
}

func (m *memLedger) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return memState{
		runs:   maps.Clone(m.runs),
		deps:   maps.Clone(m.deps),
		leases: maps.Clone(m.leases),
		beats:  maps.Clone(m.beats),
		tasks:  slices.Clone(m.tasks),
	}
}

func (m *memLedger) restore(st memState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs, m.deps, m.leases, m.beats, m.tasks = st.runs, st.deps, st.leases, st.beats, st.tasks
}

// memTx runs fn against mem and rolls mem back when fn fails
type memTx struct {
	repokit.Queryer
	mem *memLedger
}

func (t memTx) Tx(_ context.Context, fn func(q repokit.Queryer) error) error {
	st := t.mem.snapshot()
	if err := fn(nil); err != nil {
		t.mem.restore(st)
		return err
	}
	return nil
}

// nopTx runs fn with a nil Queryer; the mem binder ignores it
type nopTx struct{ repokit.Queryer }

func (nopTx) Tx(_ context.Context, fn func(q repokit.Queryer) error) error { return fn(nil) }

// fakeClock is a settable time source
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// recPublisher records published events
type recPublisher struct {
	mu     sync.Mutex
	events []notify.FlowRunEvent
}

func (p *recPublisher) FlowRunFinished(_ context.Context, e notify.FlowRunEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recPublisher) Close() error { return nil }

type harness struct {
	rt    *Runtime
	mem   *memLedger
	clock *fakeClock
	pub   *recPublisher
}

func newHarness(cfg Config) *harness {
	clock := &fakeClock{t: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)}
	mem := newMemLedger(clock.Now)
	binder := repokit.BindFunc[repo.Storage](func(repokit.Queryer) repo.Storage { return mem })
	cache := NewPGCache(nopTx{}, binder)
	cache.now = clock.Now
	pub := &recPublisher{}

	rt := New(memTx{mem: mem}, binder, cache, pub, cfg)
	rt.now = clock.Now
	var seq int
	var seqMu sync.Mutex
	rt.newID = func() string {
		seqMu.Lock()
		defer seqMu.Unlock()
		seq++
		return fmt.Sprintf("00000000-0000-0000-0000-%012d", seq)
	}
	return &harness{rt: rt, mem: mem, clock: clock, pub: pub}
}
