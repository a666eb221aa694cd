package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lskl-cc/souzou/internal/client/driver"
	"github.com/lskl-cc/souzou/internal/common"
	"github.com/lskl-cc/souzou/internal/models"
)

func newTagService(t *testing.T) (TagService, *driver.MemoryDriver) {
	t.Helper()
	d := driver.NewMemoryDriver()
	return NewTagService(d, testLogger()), d
}

func TestTagCreate(t *testing.T) {
	svc, d := newTagService(t)
	ctx := context.Background()

	tag, err := svc.Create(ctx, CreateTagParams{Name: "work", Color: "#ff0000"})
	require.NoError(t, err)
	assert.NotEmpty(t, tag.ID)

	items, err := d.PeekOutbox(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.KindTag, items[0].Kind)
	assert.Equal(t, models.OpUpsert, items[0].Op)
}

func TestTagCreate_NameRequired(t *testing.T) {
	svc, _ := newTagService(t)

	_, err := svc.Create(context.Background(), CreateTagParams{})
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestTagUpdate_Hierarchy(t *testing.T) {
	svc, _ := newTagService(t)
	ctx := context.Background()

	root, err := svc.Create(ctx, CreateTagParams{Name: "projects"})
	require.NoError(t, err)
	child, err := svc.Create(ctx, CreateTagParams{Name: "souzou", Parent: &root.ID})
	require.NoError(t, err)
	require.NotNil(t, child.Parent)

	got, err := svc.Update(ctx, child.ID, UpdateTagParams{ClearParent: true})
	require.NoError(t, err)
	assert.Nil(t, got.Parent)
}

func TestTagDeleteAndFetch(t *testing.T) {
	svc, _ := newTagService(t)
	ctx := context.Background()

	keep, err := svc.Create(ctx, CreateTagParams{Name: "keep"})
	require.NoError(t, err)
	drop, err := svc.Create(ctx, CreateTagParams{Name: "drop"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, drop.ID))

	all, err := svc.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, keep.ID, all[0].ID)

	_, err = svc.Get(ctx, drop.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}
