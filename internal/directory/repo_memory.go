package directory

import (
	"context"
	"sync"
)

// MemoryRepo backs tests and deployments without Postgres.
type MemoryRepo struct {
	mu    sync.RWMutex
	names map[string]string // accountCode + "/" + extension
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{names: make(map[string]string)}
}

func (r *MemoryRepo) Put(accountCode, extension, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names[accountCode+"/"+extension] = name
}

func (r *MemoryRepo) DisplayName(ctx context.Context, accountCode, extension string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[accountCode+"/"+extension]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}
