package offline

import (
	"context"
	"sync"
)

// MemStore — хранилище в памяти. Основной вариант для тестов и для
// зеркала без персистентности.
type MemStore struct {
	mu   sync.RWMutex
	data map[Table]map[string]*Record
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[Table]map[string]*Record)}
}

func (s *MemStore) Load(_ context.Context, table Table, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.data[table][id]
	if rec == nil {
		return nil, ErrNotFound
	}

	// Копия: вызывающий может править запись и сохранять её обратно.
	cp := *rec
	cp.Response = append([]byte(nil), rec.Response...)
	return &cp, nil
}

func (s *MemStore) Save(_ context.Context, table Table, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data[table] == nil {
		s.data[table] = make(map[string]*Record)
	}

	cp := *rec
	cp.Response = append([]byte(nil), rec.Response...)
	s.data[table][rec.ID] = &cp
	return nil
}

func (s *MemStore) Delete(_ context.Context, table Table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[table], id)
	return nil
}

func (s *MemStore) Close() error { return nil }
