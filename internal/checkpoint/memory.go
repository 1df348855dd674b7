package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/raphaelgruber/docchat/internal/models"
)

// MemoryStore keeps checkpoints in process memory. Checkpoints are stored
// encoded so callers never share state with the store.
type MemoryStore struct {
	mu      sync.Mutex
	threads map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{threads: make(map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, threadID string) (*models.ThreadCheckpoint, error) {
	s.mu.Lock()
	data, ok := s.threads[threadID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}
	var cp models.ThreadCheckpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", threadID, err)
	}
	return &cp, nil
}

func (s *MemoryStore) Commit(_ context.Context, cp *models.ThreadCheckpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int64
	if data, ok := s.threads[cp.ThreadID]; ok {
		var cur models.ThreadCheckpoint
		if err := json.Unmarshal(data, &cur); err != nil {
			return fmt.Errorf("decode checkpoint %s: %w", cp.ThreadID, err)
		}
		stored = cur.Version
	}
	if stored != cp.Version {
		return fmt.Errorf("%w: %s at version %d, commit based on %d", ErrVersionConflict, cp.ThreadID, stored, cp.Version)
	}

	next := *cp
	next.Version = stored + 1
	next.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode checkpoint %s: %w", cp.ThreadID, err)
	}
	s.threads[cp.ThreadID] = data
	cp.Version, cp.UpdatedAt = next.Version, next.UpdatedAt
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.threads, threadID)
	return nil
}

// MemoryLocker serializes turns within one process.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]bool)}
}

func (l *MemoryLocker) Acquire(_ context.Context, threadID string) (ReleaseFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[threadID] {
		return nil, fmt.Errorf("%w: %s", ErrThreadBusy, threadID)
	}
	l.held[threadID] = true

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, threadID)
			l.mu.Unlock()
		})
		return nil
	}, nil
}
