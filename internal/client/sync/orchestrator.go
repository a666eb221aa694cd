// Package sync coordinates the bidirectional synchronization between the
// local store and the remote authority: a pull-then-push orchestrator, a
// process-wide manager with status and subscriptions, and a connectivity
// watcher that triggers cycles.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lskl-cc/souzou/internal/client/driver"
	"github.com/lskl-cc/souzou/internal/client/transport"
	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/logging"
	"github.com/lskl-cc/souzou/internal/models"
	"github.com/lskl-cc/souzou/internal/syncapi"
)

// DefaultPushBatchSize bounds how many outbox items one cycle pushes.
// Anything left over is picked up by the next cycle.
const DefaultPushBatchSize = 100

// Summary reports what one cycle did.
type Summary struct {
	Pulled int
	Pushed int
}

// Orchestrator executes exactly one pull-then-push cycle per SyncNow call.
// It is stateless between calls except for what it reads and writes through
// the driver, so a failed cycle is retried wholesale by the next trigger.
type Orchestrator struct {
	driver    driver.Driver
	transport transport.Transport
	log       logging.Logger
	batchSize int
}

func NewOrchestrator(d driver.Driver, t transport.Transport, log logging.Logger) *Orchestrator {
	return &Orchestrator{driver: d, transport: t, log: log, batchSize: DefaultPushBatchSize}
}

// SyncNow pulls remote changes into the driver, advances the cursor, then
// flushes the outbox and applies the per-item results. Pull always precedes
// push; conflict detection is delegated entirely to the authority's
// revision check.
func (o *Orchestrator) SyncNow(ctx context.Context) (Summary, error) {
	var s Summary

	cursor, err := o.driver.GetCursor(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to read cursor: %w", err)
	}

	pull, err := o.transport.Pull(ctx, cursor)
	if err != nil {
		return s, err
	}

	// Remote state is authoritative once pulled: upserts overwrite local
	// records unconditionally, deletes tombstone them.
	for i := range pull.Changes.Entities.Upserts {
		if err := o.driver.PutEntity(ctx, &pull.Changes.Entities.Upserts[i]); err != nil {
			return s, fmt.Errorf("failed to apply pulled entity: %w", err)
		}
		s.Pulled++
	}
	for _, id := range pull.Changes.Entities.Deletes {
		if err := o.driver.DeleteEntity(ctx, id); err != nil {
			return s, fmt.Errorf("failed to apply pulled entity delete: %w", err)
		}
		s.Pulled++
	}
	for i := range pull.Changes.Tags.Upserts {
		if err := o.driver.PutTag(ctx, &pull.Changes.Tags.Upserts[i]); err != nil {
			return s, fmt.Errorf("failed to apply pulled tag: %w", err)
		}
		s.Pulled++
	}
	for _, id := range pull.Changes.Tags.Deletes {
		if err := o.driver.DeleteTag(ctx, id); err != nil {
			return s, fmt.Errorf("failed to apply pulled tag delete: %w", err)
		}
		s.Pulled++
	}

	// Only now that every pulled change is applied does the watermark move.
	if err := o.driver.SetCursor(ctx, pull.Cursor); err != nil {
		return s, fmt.Errorf("failed to persist cursor: %w", err)
	}

	items, err := o.driver.PeekOutbox(ctx, o.batchSize)
	if err != nil {
		return s, fmt.Errorf("failed to read outbox: %w", err)
	}
	if len(items) == 0 {
		return s, nil
	}

	req := &syncapi.PushRequest{Entities: []models.ChangeOp{}, Tags: []models.ChangeOp{}}
	for _, item := range items {
		switch item.Kind {
		case models.KindTag:
			req.Tags = append(req.Tags, item.ChangeOp())
		default:
			req.Entities = append(req.Entities, item.ChangeOp())
		}
	}

	resp, err := o.transport.Push(ctx, req)
	if err != nil {
		return s, err
	}

	var settled []string
	for _, item := range resp.Entities {
		done, err := o.applyEntityResult(ctx, item)
		if err != nil {
			return s, err
		}
		if done {
			settled = append(settled, item.ID)
			s.Pushed++
		}
	}
	for _, item := range resp.Tags {
		done, err := o.applyTagResult(ctx, item)
		if err != nil {
			return s, err
		}
		if done {
			settled = append(settled, item.ID)
			s.Pushed++
		}
	}

	// One batch removal for everything applied or conflicted; error items
	// stay queued for the next cycle.
	if err := o.driver.RemoveFromOutbox(ctx, settled); err != nil {
		return s, fmt.Errorf("failed to settle outbox: %w", err)
	}

	return s, nil
}

// applyEntityResult handles one push verdict. It reports whether the outbox
// item is settled and may be removed.
func (o *Orchestrator) applyEntityResult(ctx context.Context, item syncapi.PushResultItem) (bool, error) {
	switch item.Status {
	case syncapi.StatusApplied:
		e, err := o.driver.GetEntity(ctx, item.ID)
		if errors.Is(err, common.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		e.Rev = item.Rev
		e.ServerUpdatedAt = item.ServerUpdatedAt
		if err := o.driver.PutEntity(ctx, e); err != nil {
			return false, fmt.Errorf("failed to stamp entity %s: %w", item.ID, err)
		}
		return true, nil

	case syncapi.StatusConflict:
		// Server wins unconditionally; the losing local edit is discarded.
		if len(item.Server) > 0 {
			var e models.Entity
			if err := json.Unmarshal(item.Server, &e); err != nil {
				return false, fmt.Errorf("failed to decode server entity %s: %w", item.ID, err)
			}
			if err := o.driver.PutEntity(ctx, &e); err != nil {
				return false, fmt.Errorf("failed to apply server entity %s: %w", item.ID, err)
			}
		}
		o.log.Warn(ctx, "entity conflict resolved server-wins", "id", item.ID)
		return true, nil

	case syncapi.StatusError:
		o.log.Warn(ctx, "entity push rejected, will retry", "id", item.ID, "error", item.Error)
		return false, nil

	default:
		o.log.Warn(ctx, "unknown push status, leaving item queued", "id", item.ID, "status", item.Status)
		return false, nil
	}
}

func (o *Orchestrator) applyTagResult(ctx context.Context, item syncapi.PushResultItem) (bool, error) {
	switch item.Status {
	case syncapi.StatusApplied:
		t, err := o.driver.GetTag(ctx, item.ID)
		if errors.Is(err, common.ErrNotFound) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		t.Rev = item.Rev
		t.ServerUpdatedAt = item.ServerUpdatedAt
		if err := o.driver.PutTag(ctx, t); err != nil {
			return false, fmt.Errorf("failed to stamp tag %s: %w", item.ID, err)
		}
		return true, nil

	case syncapi.StatusConflict:
		if len(item.Server) > 0 {
			var t models.Tag
			if err := json.Unmarshal(item.Server, &t); err != nil {
				return false, fmt.Errorf("failed to decode server tag %s: %w", item.ID, err)
			}
			if err := o.driver.PutTag(ctx, &t); err != nil {
				return false, fmt.Errorf("failed to apply server tag %s: %w", item.ID, err)
			}
		}
		o.log.Warn(ctx, "tag conflict resolved server-wins", "id", item.ID)
		return true, nil

	case syncapi.StatusError:
		o.log.Warn(ctx, "tag push rejected, will retry", "id", item.ID, "error", item.Error)
		return false, nil

	default:
		o.log.Warn(ctx, "unknown push status, leaving item queued", "id", item.ID, "status", item.Status)
		return false, nil
	}
}
