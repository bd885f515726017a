package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"option-replay-lab/internal/domain"
	"option-replay-lab/internal/storage"
)

func TestSnapshotStore_InsertBulkAndGetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(pool)

	snapshots := []*domain.MarketSnapshot{
		{
			Timestamp:       base.Add(2 * time.Minute),
			UnderlyingPrice: 22110,
			Verdict:         domain.ParseVerdict("Bearish"),
			Confidence:      70,
		},
		{
			Timestamp:       base,
			UnderlyingPrice: 22100.5,
			Verdict:         domain.ParseVerdict("Slightly Bullish"),
			Confidence:      64.5,
			VIX:             ptr(13.2),
			IVSkew:          ptr(-0.4),
			FuturesBasis:    ptr(55.0),
			PrevVerdict:     domain.ParseVerdict("Neutral"),
		},
	}
	require.NoError(t, store.InsertBulk(ctx, snapshots))

	got, err := store.GetByTimeRange(ctx, base, base.Add(2*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)

	first := got[0]
	assert.True(t, first.Timestamp.Equal(base))
	assert.InDelta(t, 22100.5, first.UnderlyingPrice, 1e-9)
	assert.Equal(t, domain.DirectionBull, first.Verdict.Direction)
	assert.Equal(t, domain.StrengthSlight, first.Verdict.Strength)
	require.NotNil(t, first.VIX)
	assert.InDelta(t, 13.2, *first.VIX, 1e-9)
	assert.Nil(t, first.MaxPain)
	assert.Equal(t, "Neutral", first.PrevVerdict.Label)

	assert.True(t, got[1].Timestamp.Equal(base.Add(2*time.Minute)))
	assert.Nil(t, got[1].VIX)
	assert.Equal(t, "", got[1].PrevVerdict.Label)

	// Range is inclusive on both ends
	got, err = store.GetByTimeRange(ctx, base.Add(time.Minute), base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSnapshotStore_InsertBulkDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(pool)

	snap := &domain.MarketSnapshot{Timestamp: base, UnderlyingPrice: 22100}
	require.NoError(t, store.InsertBulk(ctx, []*domain.MarketSnapshot{snap}))

	other := &domain.MarketSnapshot{Timestamp: base.Add(time.Minute), UnderlyingPrice: 22105}
	err := store.InsertBulk(ctx, []*domain.MarketSnapshot{other, snap})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Batch is atomic
	got, err := store.GetByTimeRange(ctx, base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
