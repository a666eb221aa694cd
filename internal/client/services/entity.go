// Package services is the only legitimate write path from application logic
// into the local store. Every mutation updates the driver and queues the
// matching outbox op in the same logical step.
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/lskl-cc/souzou/internal/client/driver"
	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/logging"
	"github.com/lskl-cc/souzou/internal/models"
)

// CreateEntityParams carries the caller-supplied fields of a new entity.
type CreateEntityParams struct {
	Type     models.EntityType
	Title    string
	Content  string
	Parent   *string
	Metadata map[string]any
	Tags     []string
}

// UpdateEntityParams is a partial patch; nil fields stay unchanged.
// ClearParent detaches the entity from its parent.
type UpdateEntityParams struct {
	Type        *models.EntityType
	Title       *string
	Content     *string
	Parent      *string
	ClearParent bool
	Metadata    map[string]any
	Tags        []string
}

type EntityService interface {
	Create(ctx context.Context, p CreateEntityParams) (*models.Entity, error)
	Update(ctx context.Context, id string, p UpdateEntityParams) (*models.Entity, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Entity, error)
	Fetch(ctx context.Context) ([]*models.Entity, error)
}

type entityService struct {
	driver driver.Driver
	log    logging.Logger
}

func NewEntityService(d driver.Driver, log logging.Logger) EntityService {
	return &entityService{driver: d, log: log}
}

func (s *entityService) Create(ctx context.Context, p CreateEntityParams) (*models.Entity, error) {
	if p.Title == "" {
		return nil, fmt.Errorf("title is required: %w", common.ErrValidation)
	}
	if p.Type == "" {
		p.Type = models.EntityTypeNote
	}
	if !models.ValidEntityType(p.Type) {
		return nil, fmt.Errorf("unknown entity type %q: %w", p.Type, common.ErrValidation)
	}

	now := models.Now()
	e := &models.Entity{
		ID:        uuid.NewString(),
		Type:      p.Type,
		Title:     p.Title,
		Content:   p.Content,
		Parent:    p.Parent,
		Metadata:  p.Metadata,
		Tags:      p.Tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	e.Normalize()

	if err := s.driver.PutEntity(ctx, e); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	if err := s.enqueueUpsert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *entityService) Update(ctx context.Context, id string, p UpdateEntityParams) (*models.Entity, error) {
	e, err := s.driver.GetEntity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error retrieving entity: %w", err)
	}
	if e.Deleted {
		return nil, fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
	}

	if p.Type != nil {
		if !models.ValidEntityType(*p.Type) {
			return nil, fmt.Errorf("unknown entity type %q: %w", *p.Type, common.ErrValidation)
		}
		e.Type = *p.Type
	}
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Content != nil {
		e.Content = *p.Content
	}
	if p.ClearParent {
		e.Parent = nil
	} else if p.Parent != nil {
		e.Parent = p.Parent
	}
	if p.Metadata != nil {
		e.Metadata = p.Metadata
	}
	if p.Tags != nil {
		e.Tags = p.Tags
	}
	e.UpdatedAt = models.Now()
	e.Normalize()

	if err := s.driver.PutEntity(ctx, e); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	if err := s.enqueueUpsert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *entityService) Delete(ctx context.Context, id string) error {
	e, err := s.driver.GetEntity(ctx, id)
	if err != nil {
		return fmt.Errorf("error retrieving entity: %w", err)
	}

	if err := s.driver.DeleteEntity(ctx, id); err != nil {
		return fmt.Errorf("error deleting entity: %w", err)
	}

	item := &models.OutboxItem{
		Op:        models.OpDelete,
		TargetID:  id,
		ClientRev: e.Rev + 1,
	}
	if err := s.driver.EnqueueEntity(ctx, item); err != nil {
		return fmt.Errorf("error queueing delete: %w", err)
	}
	return nil
}

// Get returns a single live entity; tombstones read as not found.
func (s *entityService) Get(ctx context.Context, id string) (*models.Entity, error) {
	e, err := s.driver.GetEntity(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error retrieving entity: %w", err)
	}
	if e.Deleted {
		return nil, fmt.Errorf("entity %s: %w", id, common.ErrNotFound)
	}
	return e, nil
}

// Fetch returns every live entity; tombstones never reach the caller.
func (s *entityService) Fetch(ctx context.Context) ([]*models.Entity, error) {
	all, err := s.driver.ListEntitiesUpdatedSince(ctx, models.EpochCursor)
	if err != nil {
		return nil, fmt.Errorf("error listing entities: %w", err)
	}
	result := make([]*models.Entity, 0, len(all))
	for _, e := range all {
		if e.Deleted {
			continue
		}
		result = append(result, e)
	}
	return result, nil
}

// The outbox op carries a full snapshot of the record as written, with
// client_rev derived from the last known server rev. The server remains the
// arbiter of the final rev.
func (s *entityService) enqueueUpsert(ctx context.Context, e *models.Entity) error {
	data, err := e.Snapshot()
	if err != nil {
		return fmt.Errorf("error encoding entity: %w", err)
	}
	item := &models.OutboxItem{
		Op:        models.OpUpsert,
		TargetID:  e.ID,
		ClientRev: e.Rev + 1,
		Data:      data,
	}
	if err := s.driver.EnqueueEntity(ctx, item); err != nil {
		return fmt.Errorf("error queueing change: %w", err)
	}
	return nil
}
