package offline

import (
	"context"
	"errors"
	"regexp"
	"sync"

	"github.com/rs/zerolog"
)

// Factory создаёт значение-специализацию для одного типа объектов.
type Factory func() any

var identRe = regexp.MustCompile(`^\w+$`)

// Registry — таблица специализаций движка по имени типа. Заполняется
// при старте через Register; разрешённые имена кэшируются, включая
// отрицательные ответы (тип без специализации работает базовым движком).
type Registry struct {
	store Store
	log   zerolog.Logger

	mu        sync.RWMutex
	factories map[string]Factory
	resolved  map[string]Factory
}

func NewRegistry(store Store, log zerolog.Logger) *Registry {
	return &Registry{
		store:     store,
		log:       log,
		factories: make(map[string]Factory),
		resolved:  make(map[string]Factory),
	}
}

// Register подключает специализацию для типа. Повторная регистрация
// того же имени заменяет фабрику и сбрасывает кэш разрешения.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	r.factories[name] = f
	delete(r.resolved, name)
	r.mu.Unlock()
}

// ActionsFor разрешает движок действий по имени типа либо по id
// кэшированного объекта (id сопоставляется с именем типа через
// таблицу ActionClassesById). Тип без специализации получает базовый
// движок; неизвестный id — ErrNotFound.
func (r *Registry) ActionsFor(ctx context.Context, name string) (*Actions, error) {
	if !identRe.MatchString(name) {
		record, err := r.store.Load(ctx, TableActionClasses, name)
		if err != nil {
			return nil, err
		}
		name = record.Name
	}

	r.mu.RLock()
	factory, cached := r.resolved[name]
	r.mu.RUnlock()

	if !cached {
		factory = r.lookup(name)
		if factory == nil {
			// Имя может быть id объекта: пробуем сопоставить с типом.
			if record, err := r.store.Load(ctx, TableActionClasses, name); err == nil {
				factory = r.lookup(record.Name)
			} else if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		}

		r.mu.Lock()
		r.resolved[name] = factory
		r.mu.Unlock()
	}

	a := NewActions(r.store, r.log)
	if factory != nil {
		a.override = factory()
	}
	return a, nil
}

func (r *Registry) lookup(name string) Factory {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.factories[name]
}
