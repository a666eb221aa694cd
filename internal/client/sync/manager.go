package sync

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/lskl-cc/souzou/internal/client/driver"
	"github.com/lskl-cc/souzou/internal/client/transport"
	"github.com/lskl-cc/souzou/internal/logging"
	"github.com/lskl-cc/souzou/internal/models"
)

// Status is the manager's externally visible state. Transitions:
// IDLE -> SYNCING -> (IDLE | ERROR); ERROR -> SYNCING on the next trigger,
// errors are not sticky.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// Result is delivered to sync subscribers after a successful cycle.
type Result struct {
	Pulled    int
	Pushed    int
	Timestamp string
}

// Syncer is the orchestrator seam the manager drives.
type Syncer interface {
	SyncNow(ctx context.Context) (Summary, error)
}

// Deps bundles the singleton collaborators the manager owns.
type Deps struct {
	Driver       driver.Driver
	Transport    transport.Transport
	Orchestrator Syncer
}

// Factory constructs the manager's dependencies exactly once, on first use.
type Factory func(ctx context.Context) (*Deps, error)

// Manager is the process-wide sync coordinator. It lazily initializes its
// dependencies (concurrent first-callers share one in-flight construction),
// serializes cycles with an in-flight guard, and fans results and status
// changes out to subscribers. Cycle errors never escape it: they surface
// only through StatusError and logging, so a failed background sync cannot
// break foreground work.
type Manager struct {
	factory   Factory
	log       logging.Logger
	initGroup singleflight.Group

	mu         sync.Mutex
	deps       *Deps
	status     Status
	inflight   int
	nextSub    int
	syncSubs   map[int]func(Result)
	statusSubs map[int]func(Status)
}

func NewManager(factory Factory, log logging.Logger) *Manager {
	return &Manager{
		factory:    factory,
		log:        log,
		status:     StatusIdle,
		syncSubs:   make(map[int]func(Result)),
		statusSubs: make(map[int]func(Status)),
	}
}

// Initialize constructs the driver/transport/orchestrator once. Safe to call
// repeatedly and concurrently: parallel callers converge on the same
// in-flight construction instead of racing to build two instances.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	ready := m.deps != nil
	m.mu.Unlock()
	if ready {
		return nil
	}

	_, err, _ := m.initGroup.Do("init", func() (any, error) {
		deps, err := m.factory(ctx)
		if err != nil {
			return nil, err
		}
		m.mu.Lock()
		m.deps = deps
		m.mu.Unlock()
		return nil, nil
	})
	return err
}

// Driver exposes the singleton driver, initializing on first use. Services
// read and write through this handle.
func (m *Manager) Driver(ctx context.Context) (driver.Driver, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deps.Driver, nil
}

// Transport exposes the singleton transport, initializing on first use.
func (m *Manager) Transport(ctx context.Context) (transport.Transport, error) {
	if err := m.Initialize(ctx); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deps.Transport, nil
}

// Status returns the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Sync runs one cycle. While a cycle is in flight further calls are no-ops
// (the caller retries later, nothing is queued) unless force is true.
// Returns whether a cycle actually ran. Errors are swallowed here: logged
// and reflected in the status, never rethrown to the trigger site.
func (m *Manager) Sync(ctx context.Context, force bool) bool {
	if err := m.Initialize(ctx); err != nil {
		m.log.Error(ctx, "sync init failed", "error", err)
		m.setStatus(StatusError)
		return false
	}

	m.mu.Lock()
	if m.inflight > 0 && !force {
		m.mu.Unlock()
		m.log.Debug(ctx, "sync already in progress, skipping")
		return false
	}
	m.inflight++
	orch := m.deps.Orchestrator
	m.mu.Unlock()

	m.setStatus(StatusSyncing)

	summary, err := orch.SyncNow(ctx)

	m.mu.Lock()
	m.inflight--
	m.mu.Unlock()

	if err != nil {
		m.log.Error(ctx, "sync cycle failed", "error", err)
		m.setStatus(StatusError)
		return true
	}

	m.setStatus(StatusIdle)
	m.log.Info(ctx, "sync cycle complete", "pulled", summary.Pulled, "pushed", summary.Pushed)
	m.notifySync(ctx, Result{Pulled: summary.Pulled, Pushed: summary.Pushed, Timestamp: models.Now()})
	return true
}

// ResetCursorAndSync rewinds the cursor to the epoch and forces a full
// re-pull; used for full-resync recovery.
func (m *Manager) ResetCursorAndSync(ctx context.Context) error {
	d, err := m.Driver(ctx)
	if err != nil {
		return err
	}
	if err := d.SetCursor(ctx, models.EpochCursor); err != nil {
		return err
	}
	m.Sync(ctx, true)
	return nil
}

// OnSync subscribes to successful cycle completions. The returned function
// unsubscribes.
func (m *Manager) OnSync(cb func(Result)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.syncSubs[id] = cb
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.syncSubs, id)
	}
}

// OnStatusChange subscribes to status transitions. The returned function
// unsubscribes.
func (m *Manager) OnStatusChange(cb func(Status)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.statusSubs[id] = cb
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.statusSubs, id)
	}
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	subs := make([]func(Status), 0, len(m.statusSubs))
	for _, cb := range m.statusSubs {
		subs = append(subs, cb)
	}
	m.mu.Unlock()

	for _, cb := range subs {
		m.safeNotifyStatus(cb, s)
	}
}

func (m *Manager) notifySync(ctx context.Context, r Result) {
	m.mu.Lock()
	subs := make([]func(Result), 0, len(m.syncSubs))
	for _, cb := range m.syncSubs {
		subs = append(subs, cb)
	}
	m.mu.Unlock()

	for _, cb := range subs {
		m.safeNotifySync(ctx, cb, r)
	}
}

// A panicking listener must never break the notification loop for the rest.
func (m *Manager) safeNotifySync(ctx context.Context, cb func(Result), r Result) {
	defer func() {
		if p := recover(); p != nil {
			m.log.Error(ctx, "sync listener panicked", "panic", p)
		}
	}()
	cb(r)
}

func (m *Manager) safeNotifyStatus(cb func(Status), s Status) {
	defer func() {
		if p := recover(); p != nil {
			m.log.Error(context.Background(), "status listener panicked", "panic", p)
		}
	}()
	cb(s)
}
