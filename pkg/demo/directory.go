package demo

import (
	"context"
	"strings"
	"sync"
)

// Directory remembers the display names users registered with.
type Directory interface {
	Name(ctx context.Context, userID int64) (string, bool)
	SetName(ctx context.Context, userID int64, name string) error
}

// MemoryDirectory is a process-local Directory.
type MemoryDirectory struct {
	mu    sync.RWMutex
	names map[int64]string
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{names: make(map[int64]string)}
}

func (d *MemoryDirectory) Name(_ context.Context, userID int64) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name, ok := d.names[userID]
	return name, ok
}

// SetName records name for userID, replacing an earlier registration.
func (d *MemoryDirectory) SetName(_ context.Context, userID int64, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.names[userID] = strings.TrimSpace(name)
	return nil
}
