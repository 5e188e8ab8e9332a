// Package buildstoretest предоставляет мок-реализацию buildstore.Store.
package buildstoretest

import (
	"context"
	"sync"

	"github.com/Kargones/ci-telemetry/internal/adapter/buildstore"
)

// Compile-time проверка реализации интерфейса
var _ buildstore.Store = (*MockStore)(nil)

// MockStore — мок-реализация buildstore.Store.
// Без пользовательских функций делегирует в MemoryStore и считает вызовы.
type MockStore struct {
	// SaveFunc — пользовательская реализация Save
	SaveFunc func(ctx context.Context, e buildstore.Entry) error
	// PreviousFunc — пользовательская реализация Previous
	PreviousFunc func(ctx context.Context, job string, before int, f buildstore.Filter) (buildstore.Entry, bool, error)

	mu            sync.Mutex
	saves         int
	previousCalls int
	memory        *buildstore.MemoryStore
}

// NewMockStore создаёт MockStore поверх пустого MemoryStore.
func NewMockStore() *MockStore {
	return &MockStore{memory: buildstore.NewMemoryStore(0)}
}

// Save сохраняет сборку.
func (m *MockStore) Save(ctx context.Context, e buildstore.Entry) error {
	m.mu.Lock()
	m.saves++
	m.mu.Unlock()
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, e)
	}
	return m.memory.Save(ctx, e)
}

// Previous ищет предыдущую сборку.
func (m *MockStore) Previous(ctx context.Context, job string, before int, f buildstore.Filter) (buildstore.Entry, bool, error) {
	m.mu.Lock()
	m.previousCalls++
	m.mu.Unlock()
	if m.PreviousFunc != nil {
		return m.PreviousFunc(ctx, job, before, f)
	}
	return m.memory.Previous(ctx, job, before, f)
}

// Close ничего не делает.
func (m *MockStore) Close() error {
	return nil
}

// Saves возвращает число вызовов Save.
func (m *MockStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// PreviousCalls возвращает число вызовов Previous.
func (m *MockStore) PreviousCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previousCalls
}
