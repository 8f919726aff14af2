package history

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grailmeter/grail-meter/apimodels"
)

func TestMemoryStoreSaveAndRecent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		err := store.Save(ctx, apimodels.SearchRecord{
			ProductTitle: fmt.Sprintf("item %d", i),
			Category:     "mens hoodie",
		})
		assert.NoError(t, err)
	}

	records, err := store.Recent(ctx, 2)
	assert.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "item 3", records[0].ProductTitle, "newest first")
	assert.Equal(t, "item 2", records[1].ProductTitle)
	assert.NotZero(t, records[0].ID)
	assert.NotEmpty(t, records[0].CreatedAt)
}

func TestMemoryStoreRecentNoLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	assert.NoError(t, store.Save(ctx, apimodels.SearchRecord{ProductTitle: "only"}))

	records, err := store.Recent(ctx, 0)
	assert.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryStoreCapsRecords(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < memoryCap+10; i++ {
		assert.NoError(t, store.Save(ctx, apimodels.SearchRecord{ProductTitle: "x"}))
	}

	records, err := store.Recent(ctx, 0)
	assert.NoError(t, err)
	assert.Len(t, records, memoryCap)
}
