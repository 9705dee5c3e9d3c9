package model

import (
	"context"

	"vitrina/internal/culture"
	"vitrina/internal/dto"
)

// stubService — заглушка транспорта для модельных тестов. Фиксирует
// вызовы действий и отдаёт ответы из настраиваемых функций.
type stubService struct {
	messages map[string]string

	onExecuteAction func(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error)
	onExecuteQuery  func(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error)

	actionCalls  []string
	actionParams []Parameters
}

func (s *stubService) ExecuteAction(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error) {
	s.actionCalls = append(s.actionCalls, action)
	s.actionParams = append(s.actionParams, parameters)
	if s.onExecuteAction != nil {
		return s.onExecuteAction(ctx, action, parent, query, selectedItems, parameters)
	}
	return nil, nil
}

func (s *stubService) ExecuteQuery(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error) {
	if s.onExecuteQuery != nil {
		return s.onExecuteQuery(ctx, parent, query, asLookup)
	}
	return &dto.QueryResult{}, nil
}

func (s *stubService) GetPersistentObject(ctx context.Context, parent *PersistentObject, id, objectID string, isNew bool) (*PersistentObject, error) {
	return nil, nil
}

func (s *stubService) Hooks() Hooks { return DefaultHooks{} }

func (s *stubService) Message(key string, args ...string) string {
	if v, ok := s.messages[key]; ok {
		return v
	}
	return key
}

func (s *stubService) CurrentCulture() *culture.Culture { return culture.Invariant() }

func strp(s string) *string { return &s }

// newTestPO собирает объект из обычных атрибутов с действиями Edit и Save.
func newTestPO(svc Service, attrs ...*dto.Attribute) *PersistentObject {
	return NewPersistentObject(svc, &dto.PersistentObject{
		ID:         "8a7e6f2c",
		Type:       "Invoice",
		Label:      "Invoice",
		ObjectID:   "42",
		Breadcrumb: "INV-0042",
		Actions:    []string{"Edit", "Save"},
		Attributes: attrs,
	})
}
