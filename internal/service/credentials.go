package service

import (
	"os"
	"sync"
	"time"

	json "github.com/goccy/go-json"
)

// CredentialStore — персистентное хранилище учётных данных сессии
// (имя пользователя, токен, выбранный язык). Роль cookie браузера.
type CredentialStore interface {
	Get(key string) string
	Set(key, value string, expires time.Duration)
	Delete(key string)
}

// MemoryCredentialStore — хранилище в памяти, для transient-сессий и тестов.
type MemoryCredentialStore struct {
	mu     sync.RWMutex
	values map[string]storedValue
}

type storedValue struct {
	Value   string    `json:"value"`
	Expires time.Time `json:"expires,omitempty"`
}

func NewMemoryCredentialStore() *MemoryCredentialStore {
	return &MemoryCredentialStore{values: make(map[string]storedValue)}
}

func (s *MemoryCredentialStore) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok || (!v.Expires.IsZero() && time.Now().After(v.Expires)) {
		return ""
	}
	return v.Value
}

func (s *MemoryCredentialStore) Set(key, value string, expires time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := storedValue{Value: value}
	if expires > 0 {
		v.Expires = time.Now().Add(expires)
	}
	s.values[key] = v
}

func (s *MemoryCredentialStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// FileCredentialStore — JSON-файл на диске. Каждая запись сохраняется
// сразу; файл читается при создании.
type FileCredentialStore struct {
	mu     sync.Mutex
	path   string
	values map[string]storedValue
}

func NewFileCredentialStore(path string) (*FileCredentialStore, error) {
	s := &FileCredentialStore{path: path, values: make(map[string]storedValue)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileCredentialStore) Get(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	if !ok || (!v.Expires.IsZero() && time.Now().After(v.Expires)) {
		return ""
	}
	return v.Value
}

func (s *FileCredentialStore) Set(key, value string, expires time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := storedValue{Value: value}
	if expires > 0 {
		v.Expires = time.Now().Add(expires)
	}
	s.values[key] = v
	s.flush()
}

func (s *FileCredentialStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	s.flush()
}

func (s *FileCredentialStore) flush() {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(s.path, data, 0600)
}
