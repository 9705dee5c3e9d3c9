package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrina/internal/dto"
)

func peopleQueryDTO() *dto.Query {
	return &dto.Query{
		ID:      "q-people",
		Name:    "People",
		Label:   "People",
		Actions: []string{"New", "Delete", "Filter"},
		Columns: []*dto.QueryColumn{
			{Name: "FirstName", Type: "String"},
			{Name: "Age", Type: "Int32"},
		},
	}
}

func page(ids ...string) *dto.QueryResult {
	res := &dto.QueryResult{TotalItems: len(ids)}
	for _, id := range ids {
		res.Items = append(res.Items, &dto.QueryResultItem{
			ID: id,
			Values: []*dto.QueryResultItemValue{
				{Key: "FirstName", Value: "N" + id},
				{Key: "Age", Value: "3" + id},
			},
		})
	}
	return res
}

func TestQuerySearch(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteQuery = func(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error) {
		assert.False(t, asLookup)
		return page("1", "2"), nil
	}

	q := NewQuery(svc, peopleQueryDTO(), nil, 0)
	require.False(t, q.HasSearched())
	require.Nil(t, q.TotalItems())

	require.NoError(t, q.Search(context.Background()))

	assert.True(t, q.HasSearched())
	require.Len(t, q.Items(), 2)
	require.NotNil(t, q.TotalItems())
	assert.Equal(t, 2, *q.TotalItems())

	it := q.Items()[0]
	assert.Equal(t, "N1", it.GetValue("FirstName"))
	// Типизация по колонке: Age — целое.
	assert.Equal(t, int64(31), it.GetValue("Age"))
	assert.Nil(t, it.GetValue("Missing"))
}

func TestQuerySearchError(t *testing.T) {
	svc := &stubService{}
	boom := errors.New("query failed")
	svc.onExecuteQuery = func(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error) {
		return nil, boom
	}

	q := NewQuery(svc, peopleQueryDTO(), nil, 0)
	require.ErrorIs(t, q.Search(context.Background()), boom)
	assert.Equal(t, "query failed", q.NotificationText())
	assert.Equal(t, NotificationError, q.NotificationKind())
}

func TestQuerySearchMoreAppends(t *testing.T) {
	svc := &stubService{}
	calls := 0
	svc.onExecuteQuery = func(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error) {
		calls++
		if calls == 1 {
			res := page("1", "2")
			res.TotalItems = 3
			return res, nil
		}
		// Вторая страница начинается со skip, равного уже загруженному.
		assert.Equal(t, 2, query.Skip())
		res := page("3")
		res.TotalItems = 3
		return res, nil
	}

	q := NewQuery(svc, peopleQueryDTO(), nil, 0)
	require.NoError(t, q.Search(context.Background()))
	require.NoError(t, q.SearchMore(context.Background()))

	require.Len(t, q.Items(), 3)
	assert.Equal(t, "3", q.Items()[2].ID())

	// Всё уже загружено: новых походов на сервер не будет.
	require.NoError(t, q.SearchMore(context.Background()))
	assert.Equal(t, 2, calls)
}

func TestQuerySearchResetsContinuation(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteQuery = func(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error) {
		assert.Empty(t, query.Continuation())
		assert.Zero(t, query.Skip())
		return page("1"), nil
	}

	d := peopleQueryDTO()
	d.Continuation = "token"
	d.Skip = 40
	q := NewQuery(svc, d, nil, 0)

	require.NoError(t, q.Search(context.Background()))
}

func TestQueryResultColumnsReplace(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteQuery = func(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error) {
		res := page("1")
		res.Columns = []*dto.QueryColumn{{Name: "FullName", Type: "String"}}
		res.SortOptions = "FullName ASC"
		return res, nil
	}

	q := NewQuery(svc, peopleQueryDTO(), nil, 0)
	require.NoError(t, q.Search(context.Background()))

	require.Len(t, q.Columns(), 1)
	assert.Equal(t, "FullName", q.Columns()[0].Name)
	assert.Equal(t, "FullName ASC", q.SortOptions())
	assert.Nil(t, q.GetColumn("Age"))
}

func TestQueryToServiceObject(t *testing.T) {
	d := peopleQueryDTO()
	d.PageSize = 20
	d.TextSearch = "smith"
	d.SortOptions = "Age DESC"
	q := NewQuery(&stubService{}, d, nil, 0)

	out := q.ToServiceObject()
	assert.Equal(t, "q-people", out.ID)
	assert.Equal(t, 20, out.PageSize)
	assert.Equal(t, "smith", out.TextSearch)
	assert.Equal(t, "Age DESC", out.SortOptions)
	require.Len(t, out.Columns, 2)
}

func TestQueryEmbeddedResult(t *testing.T) {
	d := peopleQueryDTO()
	d.Result = page("1", "2")

	q := NewQuery(&stubService{}, d, nil, 0)

	// Результат, пришедший вместе с запросом, разбирается сразу.
	assert.True(t, q.HasSearched())
	assert.Len(t, q.Items(), 2)
}

func TestQuerySelectAll(t *testing.T) {
	q := NewQuery(&stubService{}, peopleQueryDTO(), nil, 0)

	// Режим «выбрано всё» недоступен, пока запрос его не разрешил.
	assert.False(t, q.SetAllSelected(true))
	assert.False(t, q.AllSelected())

	d := peopleQueryDTO()
	d.EnableSelectAll = true
	q = NewQuery(&stubService{}, d, nil, 0)

	require.True(t, q.SetAllSelected(true))
	assert.True(t, q.AllSelected())

	out := q.ToServiceObject()
	assert.True(t, out.EnableSelectAll)
	assert.True(t, out.AllSelected)

	// Снятие режима сбрасывает и инверсию.
	q.allSelectedInversed = true
	require.True(t, q.SetAllSelected(false))
	assert.False(t, q.AllSelected())
	assert.False(t, q.AllSelectedInversed())
}

func TestQuerySearchResetsSelectAll(t *testing.T) {
	d := peopleQueryDTO()
	d.EnableSelectAll = true
	q := NewQuery(&stubService{}, d, nil, 0)

	require.True(t, q.SetAllSelected(true))
	require.NoError(t, q.Search(context.Background()))
	assert.False(t, q.AllSelected())

	// KeepSelection сохраняет выбор, включая режим «выбрано всё».
	require.True(t, q.SetAllSelected(true))
	require.NoError(t, q.Search(context.Background(), SearchOptions{KeepSelection: true}))
	assert.True(t, q.AllSelected())
}

func TestQueryPersistentObjectOwnership(t *testing.T) {
	d := peopleQueryDTO()
	d.PersistentObject = &dto.PersistentObject{ID: "po-person", Type: "Person"}

	q := NewQuery(&stubService{}, d, nil, 0)

	require.NotNil(t, q.PersistentObject())
	assert.Same(t, q, q.PersistentObject().OwnerQuery())
}
