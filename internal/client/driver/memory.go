package driver

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/models"
)

// MemoryDriver is an ephemeral Driver used for tests and throwaway
// sessions. Semantics match the SQLite driver, including tombstones,
// outbox coalescing and updated-since listing.
type MemoryDriver struct {
	mu       sync.RWMutex
	entities map[string]*models.Entity
	tags     map[string]*models.Tag
	outbox   map[string]*models.OutboxItem // keyed by target id
	seq      int64
	cursor   string
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{
		entities: make(map[string]*models.Entity),
		tags:     make(map[string]*models.Tag),
		outbox:   make(map[string]*models.OutboxItem),
	}
}

func (d *MemoryDriver) GetEntity(ctx context.Context, id string) (*models.Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
	}
	return cloneEntity(e), nil
}

func (d *MemoryDriver) PutEntity(ctx context.Context, e *models.Entity) error {
	e.Normalize()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entities[e.ID] = cloneEntity(e)
	return nil
}

func (d *MemoryDriver) DeleteEntity(ctx context.Context, id string) error {
	now := models.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.entities[id]
	if !ok {
		e = &models.Entity{ID: id}
		e.Normalize()
		d.entities[id] = e
	}
	e.Deleted = true
	e.DeletedAt = now
	e.UpdatedAt = now
	return nil
}

func (d *MemoryDriver) ListEntitiesUpdatedSince(ctx context.Context, cursor string) ([]*models.Entity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []*models.Entity
	for _, e := range d.entities {
		if e.UpdatedAt == "" || e.UpdatedAt >= cursor {
			result = append(result, cloneEntity(e))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt < result[j].UpdatedAt })
	return result, nil
}

func (d *MemoryDriver) GetTag(ctx context.Context, id string) (*models.Tag, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tags[id]
	if !ok {
		return nil, fmt.Errorf("tag %s: %w", id, common.ErrNotFound)
	}
	return cloneTag(t), nil
}

func (d *MemoryDriver) PutTag(ctx context.Context, t *models.Tag) error {
	t.Normalize()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tags[t.ID] = cloneTag(t)
	return nil
}

func (d *MemoryDriver) DeleteTag(ctx context.Context, id string) error {
	now := models.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	t, ok := d.tags[id]
	if !ok {
		t = &models.Tag{ID: id}
		t.Normalize()
		d.tags[id] = t
	}
	t.Deleted = true
	t.DeletedAt = now
	t.UpdatedAt = now
	return nil
}

func (d *MemoryDriver) ListTagsUpdatedSince(ctx context.Context, cursor string) ([]*models.Tag, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var result []*models.Tag
	for _, t := range d.tags {
		if t.UpdatedAt == "" || t.UpdatedAt >= cursor {
			result = append(result, cloneTag(t))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UpdatedAt < result[j].UpdatedAt })
	return result, nil
}

func (d *MemoryDriver) EnqueueEntity(ctx context.Context, item *models.OutboxItem) error {
	item.Kind = models.KindEntity
	return d.enqueue(item)
}

func (d *MemoryDriver) EnqueueTag(ctx context.Context, item *models.OutboxItem) error {
	item.Kind = models.KindTag
	return d.enqueue(item)
}

func (d *MemoryDriver) enqueue(item *models.OutboxItem) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	queued := *item
	if existing, ok := d.outbox[item.TargetID]; ok {
		// Coalesce in place, keeping the first-edit FIFO position.
		queued.Seq = existing.Seq
	} else {
		d.seq++
		queued.Seq = d.seq
	}
	d.outbox[item.TargetID] = &queued
	return nil
}

func (d *MemoryDriver) PeekOutbox(ctx context.Context, limit int) ([]*models.OutboxItem, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	items := make([]*models.OutboxItem, 0, len(d.outbox))
	for _, item := range d.outbox {
		queued := *item
		items = append(items, &queued)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Seq < items[j].Seq })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (d *MemoryDriver) RemoveFromOutbox(ctx context.Context, targetIDs []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range targetIDs {
		delete(d.outbox, id)
	}
	return nil
}

func (d *MemoryDriver) GetCursor(ctx context.Context) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cursor, nil
}

func (d *MemoryDriver) SetCursor(ctx context.Context, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cursor = value
	return nil
}

func (d *MemoryDriver) ClearAllData(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entities = make(map[string]*models.Entity)
	d.tags = make(map[string]*models.Tag)
	d.outbox = make(map[string]*models.OutboxItem)
	d.cursor = ""
	d.seq = 0
	return nil
}

func (d *MemoryDriver) Close() error { return nil }

func cloneEntity(e *models.Entity) *models.Entity {
	c := *e
	if e.Parent != nil {
		p := *e.Parent
		c.Parent = &p
	}
	c.Metadata = make(map[string]any, len(e.Metadata))
	for k, v := range e.Metadata {
		c.Metadata[k] = v
	}
	c.Tags = append([]string(nil), e.Tags...)
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return &c
}

func cloneTag(t *models.Tag) *models.Tag {
	c := *t
	if t.Parent != nil {
		p := *t.Parent
		c.Parent = &p
	}
	return &c
}
