package model

import (
	"context"

	json "github.com/goccy/go-json"

	"vitrina/internal/datatype"
	"vitrina/internal/dto"
)

// Query — пейджируемая коллекция строк одного типа объекта.
// Здесь реализован минимум, нужный объектам: поиск, страницы
// результата и сериализация для запросов к серверу.
type Query struct {
	ServiceObjectWithActions

	id     string
	name   string
	label  string
	offset int

	parent                      *PersistentObject
	persistentObject            *PersistentObject
	ownerAttributeWithReference *PersistentObjectAttributeWithReference

	columns []*QueryColumn
	filters json.RawMessage

	sortOptions  string
	textSearch   string
	pageSize     int
	top          int
	skip         int
	continuation string

	items       []*QueryResultItem
	totalItems  *int
	hasSearched bool

	selectedItems    []*QueryResultItem
	maxSelectedItems int

	enableSelectAll     bool
	allSelected         bool
	allSelectedInversed bool

	lastResult *dto.Query
}

// NewQuery строит запрос из его wire-представления.
func NewQuery(svc Service, d *dto.Query, parent *PersistentObject, maxSelectedItems int) *Query {
	q := &Query{
		ServiceObjectWithActions: newServiceObjectWithActions(svc, d.Actions),
		id:                       d.ID,
		name:                     d.Name,
		label:                    d.Label,
		offset:                   d.Offset,
		parent:                   parent,
		filters:                  d.Filters,
		sortOptions:              d.SortOptions,
		textSearch:               d.TextSearch,
		pageSize:                 d.PageSize,
		top:                      d.Top,
		skip:                     d.Skip,
		continuation:             d.Continuation,
		maxSelectedItems:         maxSelectedItems,
		enableSelectAll:          d.EnableSelectAll,
		allSelected:              d.AllSelected,
		allSelectedInversed:      d.AllSelectedInversed,
		lastResult:               d,
	}

	if d.PersistentObject != nil {
		q.persistentObject = constructPO(svc, d.PersistentObject)
		q.persistentObject.ownerQuery = q
	}

	for _, c := range d.Columns {
		q.columns = append(q.columns, newQueryColumn(c, q))
	}

	q.SetNotification(d.Notification, NotificationType(d.NotificationType), d.NotificationDuration)

	if d.Result != nil {
		q.setResult(d.Result, false)
	}

	return q
}

func (q *Query) ID() string     { return q.id }
func (q *Query) Name() string   { return q.name }
func (q *Query) Label() string  { return q.label }
func (q *Query) Offset() int    { return q.offset }
func (q *Query) Parent() *PersistentObject { return q.parent }

// PersistentObject — объект-шаблон типа строк запроса.
func (q *Query) PersistentObject() *PersistentObject { return q.persistentObject }

// OwnerAttributeWithReference — ссылочный атрибут, которому запрос
// служит lookup-источником, если есть.
func (q *Query) OwnerAttributeWithReference() *PersistentObjectAttributeWithReference {
	return q.ownerAttributeWithReference
}

func (q *Query) Columns() []*QueryColumn { return q.columns }

// GetColumn возвращает колонку по имени.
func (q *Query) GetColumn(name string) *QueryColumn {
	for _, c := range q.columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (q *Query) Items() []*QueryResultItem { return q.items }
func (q *Query) HasSearched() bool         { return q.hasSearched }

// Dto — wire-представление, из которого запрос был построен.
func (q *Query) Dto() *dto.Query { return q.lastResult }

// TotalItems — общее число строк на сервере; nil, пока поиск не выполнялся.
func (q *Query) TotalItems() *int { return q.totalItems }

func (q *Query) SortOptions() string  { return q.sortOptions }
func (q *Query) TextSearch() string   { return q.textSearch }
func (q *Query) PageSize() int        { return q.pageSize }
func (q *Query) Skip() int            { return q.skip }
func (q *Query) Top() int             { return q.top }
func (q *Query) Continuation() string { return q.continuation }

// SetTextSearch задаёт строку полнотекстового поиска для следующего Search.
func (q *Query) SetTextSearch(text string) {
	if q.textSearch == text {
		return
	}
	old := q.textSearch
	q.textSearch = text
	q.notifyPropertyChanged("textSearch", text, old)
}

func (q *Query) SelectedItems() []*QueryResultItem { return q.selectedItems }

// EnableSelectAll — разрешён ли режим «выбрано всё» для запроса.
func (q *Query) EnableSelectAll() bool { return q.enableSelectAll }

func (q *Query) AllSelected() bool         { return q.allSelected }
func (q *Query) AllSelectedInversed() bool { return q.allSelectedInversed }

// SetAllSelected переключает режим «выбрано всё». Возвращает false,
// если режим для запроса не разрешён. Снятие режима сбрасывает
// и инверсию выбора.
func (q *Query) SetAllSelected(v bool) bool {
	if v && !q.enableSelectAll {
		return false
	}
	if q.allSelected == v {
		return true
	}
	q.allSelected = v
	if !v {
		q.allSelectedInversed = false
	}
	q.notifyPropertyChanged("allSelected", v, !v)
	return true
}

// SearchOptions — параметры перезапуска поиска.
type SearchOptions struct {
	KeepSelection bool
}

// Search перезапускает поиск с начала: прежний результат и продолжение
// сбрасываются.
func (q *Query) Search(ctx context.Context, opts ...SearchOptions) error {
	var keepSelection bool
	if len(opts) > 0 {
		keepSelection = opts[0].KeepSelection
	}
	if !keepSelection {
		q.selectedItems = nil
		q.allSelected = false
		q.allSelectedInversed = false
	}

	q.continuation = ""
	q.skip = 0

	return q.QueueWork(ctx, func(ctx context.Context) error {
		result, err := q.svc.ExecuteQuery(ctx, q.parent, q, q.ownerAttributeWithReference != nil)
		if err != nil {
			q.SetNotification(err.Error(), NotificationError, 0)
			return err
		}
		q.setResult(result, false)
		return nil
	})
}

// SearchMore догружает следующую страницу, продолжая текущий результат.
func (q *Query) SearchMore(ctx context.Context) error {
	if !q.hasSearched {
		return q.Search(ctx)
	}
	if q.continuation == "" && q.totalItems != nil && len(q.items) >= *q.totalItems {
		return nil
	}

	return q.QueueWork(ctx, func(ctx context.Context) error {
		if q.continuation == "" {
			q.skip = len(q.items)
		}
		result, err := q.svc.ExecuteQuery(ctx, q.parent, q, q.ownerAttributeWithReference != nil)
		if err != nil {
			q.SetNotification(err.Error(), NotificationError, 0)
			return err
		}
		q.setResult(result, true)
		return nil
	})
}

func (q *Query) setResult(res *dto.QueryResult, appendItems bool) {
	if res == nil {
		return
	}

	if len(res.Columns) > 0 {
		q.columns = q.columns[:0]
		for _, c := range res.Columns {
			q.columns = append(q.columns, newQueryColumn(c, q))
		}
	}

	items := make([]*QueryResultItem, 0, len(res.Items))
	for _, it := range res.Items {
		items = append(items, NewQueryResultItem(q.svc, it, q))
	}

	oldItems := q.items
	if appendItems {
		q.items = append(append([]*QueryResultItem(nil), q.items...), items...)
	} else {
		q.items = items
	}

	total := res.TotalItems
	q.totalItems = &total
	q.continuation = res.Continuation
	if res.SortOptions != "" {
		q.sortOptions = res.SortOptions
	}
	if res.PageSize > 0 {
		q.pageSize = res.PageSize
	}
	q.hasSearched = true

	q.notifyPropertyChanged("items", q.items, oldItems)
}

// ToServiceObject сериализует запрос для отправки на сервер.
func (q *Query) ToServiceObject() *dto.Query {
	result := &dto.Query{
		ID:           q.id,
		Name:         q.name,
		Label:        q.label,
		PageSize:     q.pageSize,
		Skip:         q.skip,
		Top:          q.top,
		TextSearch:   q.textSearch,
		SortOptions:  q.sortOptions,
		Continuation: q.continuation,
		Filters:      q.filters,

		EnableSelectAll:     q.enableSelectAll,
		AllSelected:         q.allSelected,
		AllSelectedInversed: q.allSelectedInversed,
	}
	for _, c := range q.columns {
		result.Columns = append(result.Columns, c.toServiceObject())
	}
	return result
}

// QueryColumn — колонка запроса.
type QueryColumn struct {
	Name             string
	Label            string
	Type             string
	Offset           int
	IsHidden         bool
	CanSort          bool
	CanFilter        bool
	CanGroupBy       bool
	CanListDistincts bool

	query *Query
}

func newQueryColumn(d *dto.QueryColumn, q *Query) *QueryColumn {
	return &QueryColumn{
		Name:             d.Name,
		Label:            d.Label,
		Type:             d.Type,
		Offset:           d.Offset,
		IsHidden:         d.IsHidden,
		CanSort:          d.CanSort,
		CanFilter:        d.CanFilter,
		CanGroupBy:       d.CanGroupBy,
		CanListDistincts: d.CanListDistincts,
	}
}

func (c *QueryColumn) toServiceObject() *dto.QueryColumn {
	return &dto.QueryColumn{
		Name:             c.Name,
		Label:            c.Label,
		Type:             c.Type,
		Offset:           c.Offset,
		IsHidden:         c.IsHidden,
		CanSort:          c.CanSort,
		CanFilter:        c.CanFilter,
		CanGroupBy:       c.CanGroupBy,
		CanListDistincts: c.CanListDistincts,
	}
}

// QueryResultItem — одна строка результата запроса.
type QueryResultItem struct {
	ServiceObject

	id        string
	query     *Query
	values    []*dto.QueryResultItemValue
	typeHints map[string]string
}

func NewQueryResultItem(svc Service, d *dto.QueryResultItem, query *Query) *QueryResultItem {
	return &QueryResultItem{
		ServiceObject: newServiceObject(svc),
		id:            d.ID,
		query:         query,
		values:        d.Values,
		typeHints:     d.TypeHints,
	}
}

func (i *QueryResultItem) ID() string    { return i.id }
func (i *QueryResultItem) Query() *Query { return i.query }

func (i *QueryResultItem) Values() []*dto.QueryResultItemValue { return i.values }

// GetValue возвращает типизированное значение колонки строки.
func (i *QueryResultItem) GetValue(key string) any {
	for _, v := range i.values {
		if v.Key == key {
			typ := ""
			if i.query != nil {
				if c := i.query.GetColumn(key); c != nil {
					typ = c.Type
				}
			}
			s := v.Value
			return datatype.FromServiceString(&s, typ)
		}
	}
	return nil
}

// GetPersistentObject загружает объект, стоящий за строкой.
func (i *QueryResultItem) GetPersistentObject(ctx context.Context) (*PersistentObject, error) {
	if i.query == nil || i.query.persistentObject == nil {
		return nil, nil
	}
	return i.svc.GetPersistentObject(ctx, i.query.parent, i.query.persistentObject.ID(), i.id, false)
}

// ToServiceObject сериализует строку для отправки на сервер.
func (i *QueryResultItem) ToServiceObject() *dto.QueryResultItem {
	return &dto.QueryResultItem{ID: i.id, Values: i.values, TypeHints: i.typeHints}
}
