package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/storage"
)

func TestVolatilityStore_InsertAndQuery(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewVolatilityStore(pool)
	ctx := context.Background()

	_, err := store.LatestDate(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	vols := []domain.VolatilityRecord{
		{Date: day(5), Close: 15.5},
		{Date: day(1), Close: 12.25},
		{Date: day(3), Close: 13.75},
	}
	require.NoError(t, store.InsertBulk(ctx, vols))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 12.25, all[0].Close)
	assert.True(t, day(5).Equal(all[2].Date))

	ranged, err := store.GetByDateRange(ctx, day(2), day(5))
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	latest, err := store.LatestDate(ctx)
	require.NoError(t, err)
	assert.True(t, day(5).Equal(latest))
}

func TestVolatilityStore_DuplicateDate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewVolatilityStore(pool)
	ctx := context.Background()

	err := store.InsertBulk(ctx, []domain.VolatilityRecord{
		{Date: day(1), Close: 12},
		{Date: day(1), Close: 13},
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
