package history

import (
	"context"
	"sync"
)

// MemoryRepo keeps the most recent records in memory and is safe for
// concurrent use. Older records are dropped once capacity is reached.
type MemoryRepo struct {
	mu       sync.RWMutex
	records  []Record
	capacity int
}

// NewMemoryRepo constructs a MemoryRepo holding at most capacity records.
func NewMemoryRepo(capacity int) *MemoryRepo {
	if capacity <= 0 {
		capacity = 500
	}
	return &MemoryRepo{capacity: capacity}
}

// Save appends the record.
func (r *MemoryRepo) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validate(rec); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	if over := len(r.records) - r.capacity; over > 0 {
		r.records = append([]Record(nil), r.records[over:]...)
	}
	return nil
}

// ListRecent returns up to limit records, newest first.
func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = ClampLimit(limit)

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Record, 0, min(limit, len(r.records)))
	for i := len(r.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.records[i])
	}
	return out, nil
}
