package cache

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
)

// Manager layers the memory cache over the disk cache. Disk hits are
// promoted to memory; writes go to both tiers.
type Manager struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewManager opens both tiers. With an empty Dir only the memory tier is
// used.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{memory: NewMemoryCache(cfg.MemoryCapacity)}
	if cfg.Dir == "" {
		return m, nil
	}

	disk, err := NewDiskCache(cfg.Dir, cfg.DiskCapacity, cfg.CompressionLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to open disk cache: %w", err)
	}
	if cfg.TTL > 0 {
		disk.Prune(cfg.TTL)
	}
	m.disk = disk
	return m, nil
}

// Get looks in memory first, then on disk.
func (m *Manager) Get(key string) ([]byte, bool) {
	if data, ok := m.memory.Get(key); ok {
		return data, true
	}
	if m.disk == nil {
		return nil, false
	}

	data, ok := m.disk.Get(key)
	if !ok {
		return nil, false
	}
	if err := m.memory.Put(key, data); err != nil {
		log.Debug("Not promoting cache entry", "key", key, "error", err)
	}
	return data, true
}

// Put stores value in both tiers. A value too large for memory is still
// written to disk.
func (m *Manager) Put(key string, value []byte) error {
	if err := m.memory.Put(key, value); err != nil && !errors.Is(err, ErrItemTooLarge) {
		return err
	}
	if m.disk == nil {
		return nil
	}
	return m.disk.Put(key, value)
}

// Stats returns per-tier statistics.
func (m *Manager) Stats() map[Level]Stats {
	stats := map[Level]Stats{LevelMemory: m.memory.Stats()}
	if m.disk != nil {
		stats[LevelDisk] = m.disk.Stats()
	}
	return stats
}

// Close logs a summary and closes the disk tier.
func (m *Manager) Close() error {
	for level, s := range m.Stats() {
		log.Debug("Cache summary", "level", level, "hits", s.Hits, "misses", s.Misses, "size", humanize.IBytes(uint64(s.Size)))
	}
	if m.disk == nil {
		return nil
	}
	return m.disk.Close()
}
