package templates

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveCategory(ctx, &Category{ID: "cat-general", Name: "general", DisplayName: "General", Color: "#6B7280", IsDefault: true, IsActive: true}))
	require.NoError(t, s.SaveCategory(ctx, &Category{ID: "cat-recall", Name: "recall", DisplayName: "Recall", Color: "#FF0000", IsActive: true}))
	for i, id := range []string{"t1", "t2", "t3"} {
		cat := "cat-recall"
		if id == "t3" {
			cat = "cat-general"
		}
		require.NoError(t, s.CreateTemplate(ctx, &Template{
			ID: id, Title: id, Content: "hi", MessageType: TypeSMS, CategoryID: cat,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		}))
	}
	return s
}

func TestMemoryStoreDeleteCategoryReassignsTemplates(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)

	moved, err := s.DeleteCategory(ctx, "cat-recall")
	require.NoError(t, err)
	assert.Equal(t, 2, moved)

	_, err = s.GetCategory(ctx, "cat-recall")
	assert.ErrorIs(t, err, ErrCategoryNotFound)

	list, err := s.ListTemplates(ctx, TemplateFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	for _, tmpl := range list {
		assert.Equal(t, "cat-general", tmpl.CategoryID)
	}
}

func TestMemoryStoreDefaultCategoryCannotBeDeleted(t *testing.T) {
	s := seedStore(t)
	_, err := s.DeleteCategory(context.Background(), "cat-general")
	assert.ErrorIs(t, err, ErrDefaultCategory)
}

func TestMemoryStoreSingleDefault(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)

	require.NoError(t, s.SaveCategory(ctx, &Category{ID: "cat-recall", Name: "recall", DisplayName: "Recall", Color: "#FF0000", IsDefault: true, IsActive: true}))

	list, err := s.ListCategories(ctx)
	require.NoError(t, err)
	defaults := 0
	for _, c := range list {
		if c.IsDefault {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
	assert.Equal(t, "cat-recall", list[0].ID)
}

func TestMemoryStoreDuplicateName(t *testing.T) {
	s := seedStore(t)
	err := s.SaveCategory(context.Background(), &Category{ID: "other", Name: "recall", DisplayName: "Again", Color: "#000000"})
	assert.ErrorIs(t, err, ErrDuplicateCategory)
}

func TestMemoryStoreListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := seedStore(t)

	list, err := s.ListTemplates(ctx, TemplateFilter{CategoryID: "cat-recall"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "t2", list[0].ID)

	list[0].Title = "mutated"
	again, err := s.GetTemplate(ctx, "t2")
	require.NoError(t, err)
	assert.Equal(t, "t2", again.Title)

	none, err := s.ListTemplates(ctx, TemplateFilter{MessageType: TypeRCS})
	require.NoError(t, err)
	assert.Empty(t, none)
}
