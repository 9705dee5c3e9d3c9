package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrina/internal/dto"
)

func invoiceDTO() *dto.PersistentObject {
	return &dto.PersistentObject{
		ID:         "8a7e6f2c",
		Type:       "Invoice",
		Label:      "Invoice",
		ObjectID:   "42",
		Breadcrumb: "INV-0042",
		Actions:    []string{"Edit", "Save"},
		Attributes: []*dto.Attribute{
			{ID: "a1", Name: "Number", Type: "String", Value: strp("INV-0042"), Visibility: "Always", Offset: 0},
			{ID: "a2", Name: "Amount", Type: "Decimal", Value: strp("100"), Visibility: "Always", Offset: 1},
			{ID: "a3", Name: "Remark", Type: "String", Visibility: "Always", Offset: 2,
				Tab: "Details", Group: "Extra"},
		},
		Tabs: map[string]*dto.Tab{
			"":        {Name: "General"},
			"Details": {Name: "Details"},
		},
	}
}

func TestBuildTabsAndGroups(t *testing.T) {
	po := NewPersistentObject(&stubService{}, invoiceDTO())

	tabs := po.Tabs()
	require.Len(t, tabs, 2)

	general, ok := tabs[0].(*PersistentObjectAttributeTab)
	require.True(t, ok)
	assert.Equal(t, "", general.Key)
	assert.Equal(t, []*PersistentObjectAttribute{
		po.GetAttribute("Number").Base(),
		po.GetAttribute("Amount").Base(),
	}, general.Attributes())

	details, ok := tabs[1].(*PersistentObjectAttributeTab)
	require.True(t, ok)
	assert.Equal(t, "Details", details.Key)
	require.Len(t, details.Groups(), 1)
	assert.Equal(t, "Extra", details.Groups()[0].Key)

	// Атрибут знает свою вкладку и группу.
	remark := po.GetAttribute("Remark").Base()
	assert.Same(t, details, remark.Tab())
	assert.Equal(t, "Extra", remark.Group().Key)
}

func TestTriggerDirtyOnlyWhenEditing(t *testing.T) {
	po := NewPersistentObject(&stubService{}, invoiceDTO())

	assert.False(t, po.TriggerDirty())
	po.BeginEdit()
	assert.True(t, po.TriggerDirty())
}

func TestCancelEditRestoresBackup(t *testing.T) {
	po := NewPersistentObject(&stubService{}, invoiceDTO())
	po.BeginEdit()

	a := po.GetAttribute("Number").Base()
	_, err := a.SetValue(context.Background(), "INV-9999")
	require.NoError(t, err)
	require.True(t, po.IsDirty())

	po.CancelEdit()

	assert.False(t, po.IsEditing())
	assert.False(t, po.IsDirty())
	assert.Equal(t, "INV-0042", a.Value())
	assert.False(t, a.IsValueChanged())
}

func TestCancelEditStayInEdit(t *testing.T) {
	d := invoiceDTO()
	d.StateBehavior = "StayInEdit"
	po := NewPersistentObject(&stubService{}, d)

	// StayInEdit открывает объект сразу в режиме редактирования
	// и возвращает в него после отката.
	require.True(t, po.IsEditing())
	po.CancelEdit()
	assert.True(t, po.IsEditing())
}

func TestRefreshFromResultRemovesAttributeAndTab(t *testing.T) {
	po := NewPersistentObject(&stubService{}, invoiceDTO())

	result := invoiceDTO()
	result.Attributes = result.Attributes[:2] // Remark пропал из результата

	po.RefreshFromResult(result, true)

	assert.Nil(t, po.GetAttribute("Remark"))
	require.Len(t, po.Tabs(), 1, "опустевшая вкладка Details должна исчезнуть")
	tab := po.Tabs()[0].(*PersistentObjectAttributeTab)
	assert.Equal(t, "", tab.Key)
}

func TestRefreshFromResultAddsAttributeAndTab(t *testing.T) {
	po := NewPersistentObject(&stubService{}, invoiceDTO())

	result := invoiceDTO()
	result.Attributes = append(result.Attributes, &dto.Attribute{
		ID: "a4", Name: "History", Type: "String", Value: strp("…"), Visibility: "Always",
		Offset: 3, Tab: "Audit",
	})
	result.Tabs["Audit"] = &dto.Tab{Name: "Audit"}

	po.RefreshFromResult(result, true)

	require.NotNil(t, po.GetAttribute("History"))
	require.Len(t, po.Tabs(), 3)
	last := po.Tabs()[2].(*PersistentObjectAttributeTab)
	assert.Equal(t, "Audit", last.Key)
}

func TestRefreshFromResultValueChangedEntersEdit(t *testing.T) {
	po := NewPersistentObject(&stubService{}, invoiceDTO())
	require.False(t, po.IsEditing())

	result := invoiceDTO()
	result.Attributes[1].Value = strp("250")
	result.Attributes[1].IsValueChanged = true

	po.RefreshFromResult(result, true)

	assert.True(t, po.IsEditing())
	assert.True(t, po.IsDirty())
	assert.Equal(t, 250.0, po.GetAttributeValue("Amount"))
}

func TestRefreshFromResultUpdatesIdentity(t *testing.T) {
	po := NewPersistentObject(&stubService{}, invoiceDTO())

	result := invoiceDTO()
	result.ObjectID = "43"
	result.Breadcrumb = "INV-0043"
	result.SecurityToken = "tok2"

	po.RefreshFromResult(result, true)

	assert.Equal(t, "43", po.ObjectID())
	assert.Equal(t, "INV-0043", po.Breadcrumb())
	assert.Equal(t, "tok2", po.SecurityToken())
}

func TestSaveMergesResult(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteAction = func(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error) {
		require.Equal(t, "PersistentObject.Save", action)
		result := invoiceDTO()
		result.Breadcrumb = "INV-0042 (paid)"
		result.Attributes[1].Value = strp("0")
		return NewPersistentObject(svc, result), nil
	}

	po := NewPersistentObject(svc, invoiceDTO())
	po.BeginEdit()
	_, err := po.SetAttributeValue(context.Background(), "Amount", 0)
	require.NoError(t, err)

	require.NoError(t, po.Save(context.Background()))

	assert.False(t, po.IsEditing())
	assert.False(t, po.IsDirty())
	assert.Equal(t, "INV-0042 (paid)", po.Breadcrumb())
	assert.Equal(t, []string{"PersistentObject.Save"}, svc.actionCalls)
}

func TestSaveNotificationError(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteAction = func(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error) {
		result := invoiceDTO()
		result.Notification = "Amount may not be negative"
		result.NotificationType = "Error"
		return NewPersistentObject(svc, result), nil
	}

	po := NewPersistentObject(svc, invoiceDTO())
	po.BeginEdit()

	err := po.Save(context.Background())
	var nerr *NotificationTextError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "Amount may not be negative", nerr.Text)

	// Ошибка сервера оставляет объект в редактировании.
	assert.True(t, po.IsEditing())
}

func TestSaveWhenNotEditingIsNoop(t *testing.T) {
	svc := &stubService{}
	po := NewPersistentObject(svc, invoiceDTO())

	require.NoError(t, po.Save(context.Background()))
	assert.Empty(t, svc.actionCalls)
}

func TestSaveWithoutResultIsCancelled(t *testing.T) {
	svc := &stubService{} // ExecuteAction отдаёт nil без ошибки

	po := NewPersistentObject(svc, invoiceDTO())
	po.BeginEdit()

	require.ErrorIs(t, po.Save(context.Background()), ErrSaveCancelled)

	// Прерванное сохранение не выдаёт себя за успешное.
	assert.True(t, po.IsEditing())
	assert.Equal(t, []string{"PersistentObject.Save"}, svc.actionCalls)
}

// ownedInvoice собирает запрос с объектом-шаблоном, открытым
// в редактировании.
func ownedInvoice(svc Service) (*Query, *PersistentObject) {
	d := peopleQueryDTO()
	d.PersistentObject = &dto.PersistentObject{
		ID: "po-person", Type: "Person", ObjectID: "7",
		Actions: []string{"Edit", "Save"},
	}
	q := NewQuery(svc, d, nil, 0)
	po := q.PersistentObject()
	po.BeginEdit()
	return q, po
}

func TestSaveWaitsForOwnerQuery(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteAction = func(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error) {
		return NewPersistentObject(svc, &dto.PersistentObject{ID: "po-person", Type: "Person", ObjectID: "7"}), nil
	}
	searched := make(chan struct{}, 1)
	svc.onExecuteQuery = func(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error) {
		searched <- struct{}{}
		return page("1"), nil
	}

	q, po := ownedInvoice(svc)

	require.NoError(t, po.Save(context.Background(), true))

	// Поиск запроса-владельца завершился до возврата Save.
	select {
	case <-searched:
	default:
		t.Fatal("owner query was not searched")
	}
	assert.True(t, q.HasSearched())
}

func TestSaveRefreshesOwnerQueryInBackground(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteAction = func(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error) {
		return NewPersistentObject(svc, &dto.PersistentObject{ID: "po-person", Type: "Person", ObjectID: "7"}), nil
	}
	release := make(chan struct{})
	started := make(chan struct{})
	svc.onExecuteQuery = func(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error) {
		close(started)
		<-release
		return page("1"), nil
	}

	q, po := ownedInvoice(svc)

	itemsSet := make(chan struct{}, 1)
	q.Subscribe(func(c PropertyChange) {
		if c.Name == "items" {
			itemsSet <- struct{}{}
		}
	})

	// Save возвращается, пока поиск владельца ещё удерживается.
	saved := make(chan error, 1)
	go func() { saved <- po.Save(context.Background()) }()
	select {
	case err := <-saved:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("save waited for the owner query")
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("owner query search never started")
	}
	close(release)

	select {
	case <-itemsSet:
	case <-time.After(time.Second):
		t.Fatal("owner query never received its result")
	}
	assert.True(t, q.HasSearched())
}

func TestRefreshFromResultRefreshesQueriesInBackground(t *testing.T) {
	svc := &stubService{}
	release := make(chan struct{})
	started := make(chan struct{})
	svc.onExecuteQuery = func(ctx context.Context, parent *PersistentObject, query *Query, asLookup bool) (*dto.QueryResult, error) {
		close(started)
		<-release
		return page("9"), nil
	}

	d := invoiceDTO()
	people := peopleQueryDTO()
	people.Result = page("1") // запрос уже искали: подлежит обновлению
	d.Queries = []*dto.Query{people}
	po := NewPersistentObject(svc, d)

	q := po.Queries()[0]
	itemsSet := make(chan struct{}, 2)
	q.Subscribe(func(c PropertyChange) {
		if c.Name == "items" {
			itemsSet <- struct{}{}
		}
	})

	result := invoiceDTO()
	result.QueriesToRefresh = []string{"q-people"}

	// Слияние результата не ждёт обновления дочерних запросов.
	done := make(chan struct{})
	go func() {
		po.RefreshFromResult(result, true)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("merge waited for a child query refresh")
	}

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("child query refresh never started")
	}
	close(release)

	select {
	case <-itemsSet:
	case <-time.After(time.Second):
		t.Fatal("child query never received its result")
	}
	assert.Equal(t, "9", q.Items()[0].ID())
}

func TestSaveNewStaysInEdit(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteAction = func(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error) {
		result := invoiceDTO()
		result.IsNew = false
		return NewPersistentObject(svc, result), nil
	}

	d := invoiceDTO()
	d.IsNew = true
	po := NewPersistentObject(svc, d)
	require.True(t, po.IsEditing(), "новый объект открывается в редактировании")

	require.NoError(t, po.Save(context.Background()))

	// Для бывшего нового объекта режим редактирования сохраняется.
	assert.True(t, po.IsEditing())
	assert.False(t, po.IsNew())
}
