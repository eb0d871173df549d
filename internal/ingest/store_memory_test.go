package ingest_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstack/courier/internal/ingest"
)

func TestMemoryEventStore_ClaimOnce(t *testing.T) {
	store := ingest.NewMemoryEventStore(0)
	ctx := context.Background()

	first, err := store.CheckAndRecord(ctx, "dtdc:evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.CheckAndRecord(ctx, "dtdc:evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := store.CheckAndRecord(ctx, "dtdc:evt-2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryEventStore_Release(t *testing.T) {
	store := ingest.NewMemoryEventStore(0)
	ctx := context.Background()

	_, err := store.CheckAndRecord(ctx, "dtdc:evt-1")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "dtdc:evt-1"))

	first, err := store.CheckAndRecord(ctx, "dtdc:evt-1")
	require.NoError(t, err)
	assert.True(t, first)
}

func TestMemoryEventStore_RetentionExpiry(t *testing.T) {
	store := ingest.NewMemoryEventStore(10 * time.Millisecond)
	ctx := context.Background()

	_, err := store.CheckAndRecord(ctx, "dtdc:evt-1")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	first, err := store.CheckAndRecord(ctx, "dtdc:evt-1")
	require.NoError(t, err)
	assert.True(t, first)
}
