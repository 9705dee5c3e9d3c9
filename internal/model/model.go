package model

import (
	"context"

	"vitrina/internal/culture"
	"vitrina/internal/dto"
)

// Parameters — произвольные параметры действия, уходящие на сервер как есть.
type Parameters map[string]any

// Service — контракт транспортного слоя, видимый модели. Реализуется
// пакетом service; в тестах подменяется заглушкой.
type Service interface {
	// ExecuteAction выполняет серверное действие и возвращает
	// сконструированный объект-результат (или nil).
	ExecuteAction(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error)

	// ExecuteQuery выполняет поиск по запросу и возвращает сырую страницу результата.
	ExecuteQuery(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error)

	// GetPersistentObject загружает объект по id типа и id экземпляра.
	GetPersistentObject(ctx context.Context, parent *PersistentObject, id, objectID string, isNew bool) (*PersistentObject, error)

	Hooks() Hooks

	// Message переводит ключ сообщения на язык текущей сессии.
	// Неизвестный ключ возвращается как есть.
	Message(key string, args ...string) string

	// CurrentCulture — культура форматирования дат и чисел.
	CurrentCulture() *culture.Culture
}

// Hooks — точки расширения конструирования модельных объектов.
// Позволяют приложению вмешаться в создание объектов без подмены пакета.
type Hooks interface {
	OnConstructPersistentObject(svc Service, d *dto.PersistentObject) *PersistentObject
	OnConstructQuery(svc Service, d *dto.Query, parent *PersistentObject, maxSelectedItems int) *Query
	OnRefreshFromResult(po *PersistentObject)
}

// DefaultHooks — реализация по умолчанию: прямое конструирование.
type DefaultHooks struct{}

func (DefaultHooks) OnConstructPersistentObject(svc Service, d *dto.PersistentObject) *PersistentObject {
	return NewPersistentObject(svc, d)
}

func (DefaultHooks) OnConstructQuery(svc Service, d *dto.Query, parent *PersistentObject, maxSelectedItems int) *Query {
	return NewQuery(svc, d, parent, maxSelectedItems)
}

func (DefaultHooks) OnRefreshFromResult(po *PersistentObject) {}

// constructPO строит PersistentObject через хуки сервиса, если он есть.
func constructPO(svc Service, d *dto.PersistentObject) *PersistentObject {
	if svc != nil {
		return svc.Hooks().OnConstructPersistentObject(svc, d)
	}
	return NewPersistentObject(nil, d)
}

func constructQuery(svc Service, d *dto.Query, parent *PersistentObject, maxSelectedItems int) *Query {
	if svc != nil {
		return svc.Hooks().OnConstructQuery(svc, d, parent, maxSelectedItems)
	}
	return NewQuery(nil, d, parent, maxSelectedItems)
}

func translate(svc Service, key string) string {
	if svc == nil {
		return key
	}
	return svc.Message(key)
}

func currentCulture(svc Service) *culture.Culture {
	if svc == nil {
		return culture.Invariant()
	}
	return svc.CurrentCulture()
}
