package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/cardshellz/echelon/internal/domain/inbound"
	"github.com/cardshellz/echelon/internal/domain/shared"
	"github.com/google/uuid"
)

// MemorySnapshotArchive keeps snapshots in process memory. Use it in
// development and tests when no bucket is configured.
type MemorySnapshotArchive struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// NewMemorySnapshotArchive creates an empty archive
func NewMemorySnapshotArchive() *MemorySnapshotArchive {
	return &MemorySnapshotArchive{objects: make(map[string][]byte)}
}

// Put stores a JSON copy so later mutation of the caller's value is not seen
func (m *MemorySnapshotArchive) Put(_ context.Context, snapshot *inbound.LandedCostSnapshot) (string, error) {
	if snapshot == nil || snapshot.ShipmentID == uuid.Nil {
		return "", errors.New("snapshot with a shipment id is required")
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	key := SnapshotKey(defaultKeyPrefix, snapshot.ShipmentID, snapshot.Revision)

	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return "memory://" + key, nil
}

// Get returns a decoded copy of the stored snapshot
func (m *MemorySnapshotArchive) Get(_ context.Context, shipmentID uuid.UUID, revision int) (*inbound.LandedCostSnapshot, error) {
	key := SnapshotKey(defaultKeyPrefix, shipmentID, revision)

	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, shared.NewDomainError(shared.CodeNotFound,
			fmt.Sprintf("no landed-cost snapshot for shipment %s revision %d", shipmentID, revision))
	}
	var snap inbound.LandedCostSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Len reports how many snapshots are stored
func (m *MemorySnapshotArchive) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

var _ inbound.SnapshotArchive = (*MemorySnapshotArchive)(nil)
