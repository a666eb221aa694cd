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

type CreateTagParams struct {
	Name        string
	Color       string
	Description string
	Parent      *string
}

// UpdateTagParams is a partial patch; nil fields stay unchanged.
type UpdateTagParams struct {
	Name        *string
	Color       *string
	Description *string
	Parent      *string
	ClearParent bool
}

type TagService interface {
	Create(ctx context.Context, p CreateTagParams) (*models.Tag, error)
	Update(ctx context.Context, id string, p UpdateTagParams) (*models.Tag, error)
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*models.Tag, error)
	Fetch(ctx context.Context) ([]*models.Tag, error)
}

type tagService struct {
	driver driver.Driver
	log    logging.Logger
}

func NewTagService(d driver.Driver, log logging.Logger) TagService {
	return &tagService{driver: d, log: log}
}

func (s *tagService) Create(ctx context.Context, p CreateTagParams) (*models.Tag, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("name is required: %w", common.ErrValidation)
	}

	now := models.Now()
	t := &models.Tag{
		ID:          uuid.NewString(),
		Name:        p.Name,
		Color:       p.Color,
		Description: p.Description,
		Parent:      p.Parent,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	t.Normalize()

	if err := s.driver.PutTag(ctx, t); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	if err := s.enqueueUpsert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tagService) Update(ctx context.Context, id string, p UpdateTagParams) (*models.Tag, error) {
	t, err := s.driver.GetTag(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error retrieving tag: %w", err)
	}
	if t.Deleted {
		return nil, fmt.Errorf("tag %s: %w", id, common.ErrNotFound)
	}

	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Color != nil {
		t.Color = *p.Color
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.ClearParent {
		t.Parent = nil
	} else if p.Parent != nil {
		t.Parent = p.Parent
	}
	t.UpdatedAt = models.Now()
	t.Normalize()

	if err := s.driver.PutTag(ctx, t); err != nil {
		return nil, fmt.Errorf("saving error: %w", err)
	}
	if err := s.enqueueUpsert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tagService) Delete(ctx context.Context, id string) error {
	t, err := s.driver.GetTag(ctx, id)
	if err != nil {
		return fmt.Errorf("error retrieving tag: %w", err)
	}

	if err := s.driver.DeleteTag(ctx, id); err != nil {
		return fmt.Errorf("error deleting tag: %w", err)
	}

	item := &models.OutboxItem{
		Op:        models.OpDelete,
		TargetID:  id,
		ClientRev: t.Rev + 1,
	}
	if err := s.driver.EnqueueTag(ctx, item); err != nil {
		return fmt.Errorf("error queueing delete: %w", err)
	}
	return nil
}

func (s *tagService) Get(ctx context.Context, id string) (*models.Tag, error) {
	t, err := s.driver.GetTag(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("error retrieving tag: %w", err)
	}
	if t.Deleted {
		return nil, fmt.Errorf("tag %s: %w", id, common.ErrNotFound)
	}
	return t, nil
}

func (s *tagService) Fetch(ctx context.Context) ([]*models.Tag, error) {
	all, err := s.driver.ListTagsUpdatedSince(ctx, models.EpochCursor)
	if err != nil {
		return nil, fmt.Errorf("error listing tags: %w", err)
	}
	result := make([]*models.Tag, 0, len(all))
	for _, t := range all {
		if t.Deleted {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (s *tagService) enqueueUpsert(ctx context.Context, t *models.Tag) error {
	data, err := t.Snapshot()
	if err != nil {
		return fmt.Errorf("error encoding tag: %w", err)
	}
	item := &models.OutboxItem{
		Op:        models.OpUpsert,
		TargetID:  t.ID,
		ClientRev: t.Rev + 1,
		Data:      data,
	}
	if err := s.driver.EnqueueTag(ctx, item); err != nil {
		return fmt.Errorf("error queueing change: %w", err)
	}
	return nil
}
