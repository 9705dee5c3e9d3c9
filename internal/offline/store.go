package offline

import (
	"context"
	"errors"
)

// Пакет offline — локальное зеркало протокола: движок действий,
// отвечающий на тот же словарь операций (New, Save, выборка запросов
// и объектов) из локального хранилища, без сети.

// Table — логическая таблица хранилища.
type Table string

const (
	TablePersistentObjects Table = "PersistentObjects"
	TableQueries           Table = "Queries"
	TableActionClasses     Table = "ActionClassesById"
)

// Record — одна запись хранилища. Смысл полей зависит от таблицы:
// PersistentObjects несёт Response и ссылку QueryID на запрос-владелец,
// Queries — только Response, ActionClassesById — только Name.
type Record struct {
	ID       string `json:"id"`
	QueryID  string `json:"query,omitempty"`
	Name     string `json:"name,omitempty"`
	Response []byte `json:"response,omitempty"`
}

// ErrNotFound возвращают реализации Store при отсутствии записи.
var ErrNotFound = errors.New("record not found")

// Store — минимальный контракт key/value-хранилища зеркала.
// Load возвращает ErrNotFound при промахе.
type Store interface {
	Load(ctx context.Context, table Table, id string) (*Record, error)
	Save(ctx context.Context, table Table, rec *Record) error
	Delete(ctx context.Context, table Table, id string) error
	Close() error
}
