package storage

import (
	"context"
	"testing"

	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySnapshotArchive(t *testing.T) {
	ctx := context.Background()
	archive := NewMemorySnapshotArchive()
	snap := sampleSnapshot(t)

	location, err := archive.Put(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, "memory://landed-costs/"+snap.ShipmentID.String()+"/rev-3.json", location)

	// later edits to the caller's copy are not visible
	snap.ShipmentNumber = "edited"

	got, err := archive.Get(ctx, snap.ShipmentID, 3)
	require.NoError(t, err)
	assert.Equal(t, "SHP-2026-0042", got.ShipmentNumber)

	_, err = archive.Put(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, archive.Len(), "same revision overwrites in place")

	_, err = archive.Get(ctx, snap.ShipmentID, 2)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
