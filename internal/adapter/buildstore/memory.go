package buildstore

import (
	"context"
	"sort"
	"sync"
)

// DefaultMemoryLimit — сколько последних сборок каждого job хранит MemoryStore.
const DefaultMemoryLimit = 500

var _ Store = (*MemoryStore)(nil)

// MemoryStore хранит последние limit сборок каждого job в памяти.
type MemoryStore struct {
	mu    sync.RWMutex
	limit int
	jobs  map[string][]Entry // отсортированы по Number
}

// NewMemoryStore создаёт MemoryStore. limit <= 0 означает DefaultMemoryLimit.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = DefaultMemoryLimit
	}
	return &MemoryStore{limit: limit, jobs: make(map[string][]Entry)}
}

// Save сохраняет сборку, вытесняя самые старые сверх лимита.
func (s *MemoryStore) Save(_ context.Context, e Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.jobs[e.Job]
	i := sort.Search(len(list), func(i int) bool { return list[i].Number >= e.Number })
	switch {
	case i < len(list) && list[i].Number == e.Number:
		list[i] = e
	default:
		list = append(list, Entry{})
		copy(list[i+1:], list[i:])
		list[i] = e
	}
	if len(list) > s.limit {
		list = append([]Entry(nil), list[len(list)-s.limit:]...)
	}
	s.jobs[e.Job] = list
	return nil
}

// Previous ищет назад от before.
func (s *MemoryStore) Previous(_ context.Context, job string, before int, filter Filter) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.jobs[job]
	i := sort.Search(len(list), func(i int) bool { return list[i].Number >= before })
	for j := i - 1; j >= 0; j-- {
		if filter.Matches(list[j].Result) {
			return list[j], true, nil
		}
	}
	return Entry{}, false, nil
}

// Len возвращает количество сохранённых сборок job.
func (s *MemoryStore) Len(job string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs[job])
}

// Close ничего не делает.
func (s *MemoryStore) Close() error {
	return nil
}
