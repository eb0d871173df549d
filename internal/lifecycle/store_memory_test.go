package lifecycle_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstack/courier/internal/lifecycle"
	"github.com/shipstack/courier/pkg/courier"
)

func TestMemoryShipmentStore_CreateAndGet(t *testing.T) {
	store := lifecycle.NewMemoryShipmentStore()
	ctx := context.Background()

	s := newShipmentAt(t, courier.StatusAwbAssigned)
	require.NoError(t, store.Create(ctx, s))
	assert.Equal(t, int64(1), s.Version)

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, courier.StatusAwbAssigned, got.Status)

	byAWB, err := store.GetByAWB(ctx, "AWB001")
	require.NoError(t, err)
	assert.Equal(t, s.ID, byAWB.ID)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, lifecycle.ErrShipmentNotFound)
}

func TestMemoryShipmentStore_CopyOnRead(t *testing.T) {
	store := lifecycle.NewMemoryShipmentStore()
	ctx := context.Background()

	s := newShipmentAt(t, courier.StatusAwbAssigned)
	require.NoError(t, store.Create(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	got.Status = courier.StatusDelivered
	got.History = append(got.History, lifecycle.HistoryEntry{Status: courier.StatusDelivered})

	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, courier.StatusAwbAssigned, again.Status)
	assert.Len(t, again.History, 2)
}

func TestMemoryShipmentStore_VersionConflict(t *testing.T) {
	store := lifecycle.NewMemoryShipmentStore()
	ctx := context.Background()

	s := newShipmentAt(t, courier.StatusAwbAssigned)
	require.NoError(t, store.Create(ctx, s))

	first, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	second, err := store.Get(ctx, s.ID)
	require.NoError(t, err)

	require.NoError(t, first.Apply(courier.StatusInTransit, "", "", lifecycle.SourceCarrier, time.Time{}))
	require.NoError(t, store.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	require.NoError(t, second.Apply(courier.StatusPickedUp, "", "", lifecycle.SourceCarrier, time.Time{}))
	err = store.Update(ctx, second)
	assert.ErrorIs(t, err, lifecycle.ErrVersionConflict)
}

func TestMemoryShipmentStore_AWBIndexFollowsReassignment(t *testing.T) {
	store := lifecycle.NewMemoryShipmentStore()
	ctx := context.Background()

	s := newShipmentAt(t, courier.StatusNdrRaised)
	require.NoError(t, store.Create(ctx, s))

	require.NoError(t, s.AssignAWB("AWB002", "Delhivery", "acc-2", courier.TypeDelhivery, lifecycle.SourceManual))
	require.NoError(t, store.Update(ctx, s))

	byNew, err := store.GetByAWB(ctx, "AWB002")
	require.NoError(t, err)
	assert.Equal(t, s.ID, byNew.ID)

	_, err = store.GetByAWB(ctx, "AWB001")
	assert.ErrorIs(t, err, lifecycle.ErrShipmentNotFound)
}

func TestMemoryShipmentStore_ListByTenant(t *testing.T) {
	store := lifecycle.NewMemoryShipmentStore()
	ctx := context.Background()

	a := lifecycle.NewShipment("tenant-1", "ORD-1")
	b := lifecycle.NewShipment("tenant-1", "ORD-2")
	c := lifecycle.NewShipment("tenant-2", "ORD-3")
	for _, s := range []*lifecycle.Shipment{a, b, c} {
		require.NoError(t, store.Create(ctx, s))
	}

	got, err := store.ListByTenant(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMemoryNdrStore_OpenCaseLookup(t *testing.T) {
	store := lifecycle.NewMemoryNdrStore()
	ctx := context.Background()

	n := newCase()
	require.NoError(t, store.Create(ctx, n))

	open, err := store.FindOpenByShipment(ctx, "ship-1")
	require.NoError(t, err)
	assert.Equal(t, n.ID, open.ID)

	require.NoError(t, open.Resolve("delivered"))
	require.NoError(t, store.Update(ctx, open))

	_, err = store.FindOpenByShipment(ctx, "ship-1")
	assert.ErrorIs(t, err, lifecycle.ErrNdrNotFound)

	all, err := store.ListByShipment(ctx, "ship-1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryNdrStore_VersionConflict(t *testing.T) {
	store := lifecycle.NewMemoryNdrStore()
	ctx := context.Background()

	n := newCase()
	require.NoError(t, store.Create(ctx, n))

	first, err := store.Get(ctx, n.ID)
	require.NoError(t, err)
	second, err := store.Get(ctx, n.ID)
	require.NoError(t, err)

	require.NoError(t, first.Assign("agent-7"))
	require.NoError(t, store.Update(ctx, first))

	require.NoError(t, second.Assign("agent-9"))
	assert.ErrorIs(t, store.Update(ctx, second), lifecycle.ErrVersionConflict)
}
