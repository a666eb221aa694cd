package sync

import (
	"context"
	"time"

	"github.com/lskl-cc/souzou/internal/logging"
)

const defaultPingTimeout = 3 * time.Second

// Watcher decouples "is sync possible" from "should sync happen": it probes
// the authority's liveness endpoint on an interval and asks the manager to
// sync when the authority comes back from unreachable, plus periodically
// while it stays reachable.
type Watcher struct {
	manager     *Manager
	interval    time.Duration
	pingTimeout time.Duration

	// syncEvery is how many successful probes pass between periodic syncs
	// while online.
	syncEvery int

	log logging.Logger
}

func NewWatcher(m *Manager, interval time.Duration, syncEvery int, log logging.Logger) *Watcher {
	if syncEvery < 1 {
		syncEvery = 1
	}
	return &Watcher{
		manager:     m,
		interval:    interval,
		pingTimeout: defaultPingTimeout,
		syncEvery:   syncEvery,
		log:         log,
	}
}

// Run blocks, probing until ctx is cancelled. Call it from its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	online := false
	probes := 0

	for {
		select {
		case <-ticker.C:
			tr, err := w.manager.Transport(ctx)
			if err != nil {
				w.log.Error(ctx, "watcher init failed", "error", err)
				continue
			}

			pingCtx, cancel := context.WithTimeout(ctx, w.pingTimeout)
			err = tr.Ping(pingCtx)
			cancel()

			if err != nil {
				if online {
					w.log.Info(ctx, "server unreachable, pausing sync")
				}
				online = false
				probes = 0
				continue
			}

			wasOffline := !online
			online = true
			probes++

			if wasOffline {
				w.log.Info(ctx, "server reachable, syncing")
				w.manager.Sync(ctx, false)
			} else if probes%w.syncEvery == 0 {
				w.manager.Sync(ctx, false)
			}

		case <-ctx.Done():
			return
		}
	}
}
