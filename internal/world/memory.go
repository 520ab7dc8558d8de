// Package world holds host-world implementations of the placement sink.
package world

import (
	"sync"

	"github.com/Conceptual-Machines/voxel-architect/internal/models"
)

// Block is what a cell of the world holds.
type Block struct {
	Material string `json:"material"`
	Data     string `json:"data,omitempty"`
}

// Memory is an in-memory voxel grid. Last write wins.
type Memory struct {
	mu     sync.RWMutex
	blocks map[models.Location]Block
	writes int
}

// NewMemory creates an empty world.
func NewMemory() *Memory {
	return &Memory{blocks: make(map[models.Location]Block)}
}

// Place sets the block at loc, overwriting whatever was there.
func (m *Memory) Place(loc models.Location, material, data string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[loc] = Block{Material: material, Data: data}
	m.writes++
	return nil
}

// Get returns the block at loc.
func (m *Memory) Get(loc models.Location) (Block, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[loc]
	return b, ok
}

// Count returns the number of occupied cells.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// Writes returns the number of Place calls since the last Reset.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Reset clears the world.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = make(map[models.Location]Block)
	m.writes = 0
}
