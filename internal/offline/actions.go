package offline

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"vitrina/internal/dto"
)

// ItemChangeType — вид правки строки результата запроса.
type ItemChangeType string

const (
	ItemChangeNone ItemChangeType = "None"
	ItemChangeNew  ItemChangeType = "New"
	ItemChangeEdit ItemChangeType = "Edit"
)

// Filterer — переопределённая фильтрация строк запроса. Пока тип
// действий её не реализует, действие Filter из запроса убирается,
// а ExecuteQuery отдаёт кэшированные строки как есть.
type Filterer interface {
	OnFilter(query *dto.Query, items []*dto.QueryResultItem) []*dto.QueryResultItem
}

// QueryActionHandler — перехват действий запроса помимо встроенного New.
type QueryActionHandler interface {
	OnExecuteQueryAction(ctx context.Context, base *Actions, action string, query *dto.Query, selectedItems []*dto.QueryResultItem, parameters map[string]any) (*dto.PersistentObject, error)
}

// ObjectActionHandler — перехват действий объекта помимо встроенного Save.
type ObjectActionHandler interface {
	OnExecutePersistentObjectAction(ctx context.Context, base *Actions, action string, obj *dto.PersistentObject, parameters map[string]any) (*dto.PersistentObject, error)
}

// Actions — движок действий над локальным хранилищем. Специализация
// по типу объекта подключается через Registry значением override,
// реализующим один из интерфейсов выше.
type Actions struct {
	store    Store
	log      zerolog.Logger
	override any
}

func NewActions(store Store, log zerolog.Logger) *Actions {
	return &Actions{store: store, log: log}
}

// Override — подключённая специализация типа (nil для базового движка).
func (a *Actions) Override() any { return a.override }

func (a *Actions) Store() Store { return a.store }

// Cache сохраняет объект или запрос в зеркало.
func (a *Actions) Cache(ctx context.Context, v any) error {
	switch t := v.(type) {
	case *dto.PersistentObject:
		return a.CachePersistentObject(ctx, t)
	case *dto.Query:
		return a.CacheQuery(ctx, t)
	default:
		return fmt.Errorf("cache: unsupported value %T", v)
	}
}

// CachePersistentObject сохраняет объект и сопоставление его id с
// именем типа (для последующего разрешения класса действий).
func (a *Actions) CachePersistentObject(ctx context.Context, po *dto.PersistentObject) error {
	response, err := dto.Marshal(po)
	if err != nil {
		return err
	}

	if err := a.store.Save(ctx, TablePersistentObjects, &Record{ID: po.ID, Response: response}); err != nil {
		return err
	}
	return a.store.Save(ctx, TableActionClasses, &Record{ID: po.ID, Name: po.Type})
}

// CacheQuery сохраняет запрос, его объект-шаблон (с обратной ссылкой
// на запрос) и сопоставления имён типа для обоих.
func (a *Actions) CacheQuery(ctx context.Context, query *dto.Query) error {
	response, err := dto.Marshal(query)
	if err != nil {
		return err
	}
	if err := a.store.Save(ctx, TableQueries, &Record{ID: query.ID, Response: response}); err != nil {
		return err
	}

	po := query.PersistentObject
	if po == nil {
		return nil
	}

	if err := a.store.Save(ctx, TableActionClasses, &Record{ID: query.ID, Name: po.Type}); err != nil {
		return err
	}

	poResponse, err := dto.Marshal(po)
	if err != nil {
		return err
	}
	if err := a.store.Save(ctx, TablePersistentObjects, &Record{ID: po.ID, QueryID: query.ID, Response: poResponse}); err != nil {
		return err
	}
	return a.store.Save(ctx, TableActionClasses, &Record{ID: po.ID, Name: po.Type})
}

// OwnerQuery находит запрос-владелец объекта по обратной ссылке записи.
// ErrNotFound, если объект не кэширован или ссылки нет.
func (a *Actions) OwnerQuery(ctx context.Context, poID string) (*dto.Query, error) {
	record, err := a.store.Load(ctx, TablePersistentObjects, poID)
	if err != nil {
		return nil, err
	}
	if record.QueryID == "" {
		return nil, ErrNotFound
	}

	queryRecord, err := a.store.Load(ctx, TableQueries, record.QueryID)
	if err != nil {
		return nil, err
	}

	var query dto.Query
	if err := dto.Unmarshal(queryRecord.Response, &query); err != nil {
		return nil, err
	}
	return &query, nil
}

var breadcrumbRe = regexp.MustCompile(`\{([^{}]+)\}`)

// GetPersistentObject восстанавливает объект из кэша: значения берутся
// из строки запроса-владельца, плейсхолдеры {Имя} в breadcrumb
// подставляются значениями атрибутов за один проход.
func (a *Actions) GetPersistentObject(ctx context.Context, id, objectID string, isNew bool) (*dto.PersistentObject, error) {
	record, err := a.store.Load(ctx, TablePersistentObjects, id)
	if err != nil {
		return nil, err
	}
	if record.QueryID == "" {
		return nil, ErrNotFound
	}

	query, err := a.OwnerQuery(ctx, id)
	if err != nil {
		return nil, err
	}

	var resultItem *dto.QueryResultItem
	if query.Result != nil {
		for _, item := range query.Result.Items {
			if item.ID == objectID {
				resultItem = item
				break
			}
		}
	}
	if resultItem == nil {
		return nil, ErrNotFound
	}

	var po dto.PersistentObject
	if err := dto.Unmarshal(record.Response, &po); err != nil {
		return nil, err
	}
	po.ObjectID = objectID
	po.IsNew = isNew

	if containsString(query.Actions, "BulkEdit") && !containsString(po.Actions, "Edit") {
		po.Actions = append(po.Actions, "Edit")
	}

	for _, attr := range po.Attributes {
		for _, v := range resultItem.Values {
			if v.Key == attr.Name {
				value := v.Value
				attr.Value = &value
				break
			}
		}
	}

	po.Breadcrumb = breadcrumbRe.ReplaceAllStringFunc(po.Breadcrumb, func(m string) string {
		name := m[1 : len(m)-1]
		for _, attr := range po.Attributes {
			if attr.Name == name && attr.Value != nil {
				return *attr.Value
			}
		}
		// Неизвестный плейсхолдер остаётся как есть.
		return m
	})

	return &po, nil
}

// GetQuery читает запрос из кэша, отключая фильтрацию: флаги
// canFilter/canGroupBy/canListDistincts снимаются со всех колонок,
// набор фильтров очищается, действие Filter убирается, если тип
// не переопределил фильтрацию.
func (a *Actions) GetQuery(ctx context.Context, id string) (*dto.Query, error) {
	record, err := a.store.Load(ctx, TableQueries, id)
	if err != nil {
		return nil, err
	}

	var query dto.Query
	if err := dto.Unmarshal(record.Response, &query); err != nil {
		return nil, err
	}

	for _, c := range query.Columns {
		c.CanFilter = false
		c.CanGroupBy = false
		c.CanListDistincts = false
	}
	query.Filters = nil

	if _, ok := a.override.(Filterer); !ok {
		query.Actions = removeString(query.Actions, "Filter")
	}

	return &query, nil
}

// ExecuteQuery отвечает кэшированными строками; колонки и сортировка
// берутся из живого запроса. Переопределённая фильтрация, если есть,
// выбирает строки сама.
func (a *Actions) ExecuteQuery(ctx context.Context, query *dto.Query) (*dto.QueryResult, error) {
	cached, err := a.GetQuery(ctx, query.ID)
	if err != nil {
		return nil, err
	}

	result := &dto.QueryResult{
		Columns:     query.Columns,
		SortOptions: query.SortOptions,
	}
	if cached.Result != nil {
		result.Items = cached.Result.Items
		result.Charts = cached.Result.Charts
		result.TotalItems = cached.Result.TotalItems
	}

	if f, ok := a.override.(Filterer); ok {
		result.Items = f.OnFilter(query, result.Items)
		result.TotalItems = len(result.Items)
	}

	return result, nil
}

// ExecuteQueryAction выполняет действие запроса. Встроен только New,
// остальное — у специализации типа.
func (a *Actions) ExecuteQueryAction(ctx context.Context, action string, query *dto.Query, selectedItems []*dto.QueryResultItem, parameters map[string]any) (*dto.PersistentObject, error) {
	if action == "New" {
		return a.New(ctx, query)
	}
	if h, ok := a.override.(QueryActionHandler); ok {
		return h.OnExecuteQueryAction(ctx, a, action, query, selectedItems, parameters)
	}
	return nil, nil
}

// ExecutePersistentObjectAction выполняет действие объекта. Встроен
// только Save.
func (a *Actions) ExecutePersistentObjectAction(ctx context.Context, action string, obj *dto.PersistentObject, parameters map[string]any) (*dto.PersistentObject, error) {
	if action == "Save" {
		return a.Save(ctx, obj)
	}
	if h, ok := a.override.(ObjectActionHandler); ok {
		return h.OnExecutePersistentObjectAction(ctx, a, action, obj, parameters)
	}
	return nil, nil
}

// New отдаёт объект-шаблон запроса, подготовленный к созданию строки:
// только действие Edit, isNew, breadcrumb из шаблона либо "New {label}".
func (a *Actions) New(ctx context.Context, query *dto.Query) (*dto.PersistentObject, error) {
	record, err := a.store.Load(ctx, TableQueries, query.ID)
	if err != nil {
		return nil, err
	}

	var cached dto.Query
	if err := dto.Unmarshal(record.Response, &cached); err != nil {
		return nil, err
	}
	if cached.PersistentObject == nil {
		return nil, ErrNotFound
	}

	newPo := cached.PersistentObject
	newPo.Actions = []string{"Edit"}
	newPo.IsNew = true
	newPo.Breadcrumb = newPo.NewBreadcrumb
	if newPo.Breadcrumb == "" {
		newPo.Breadcrumb = "New " + newPo.Label
	}
	return newPo, nil
}

// Save сохраняет объект в кэшированный запрос-владелец.
func (a *Actions) Save(ctx context.Context, obj *dto.PersistentObject) (*dto.PersistentObject, error) {
	if obj.IsNew {
		return a.saveNew(ctx, obj)
	}
	return a.saveExisting(ctx, obj)
}

func (a *Actions) saveNew(ctx context.Context, obj *dto.PersistentObject) (*dto.PersistentObject, error) {
	obj.ObjectID = "SW-NEW-" + strconv.FormatInt(time.Now().UnixMilli(), 10)

	query, err := a.OwnerQuery(ctx, obj.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("no owner query for persistent object %s: %w", obj.ID, err)
		}
		return nil, err
	}

	if err := a.editQueryResultItemValues(query, obj, ItemChangeNew); err != nil {
		return nil, err
	}

	for _, attr := range obj.Attributes {
		attr.IsValueChanged = false
	}
	obj.IsNew = false

	return obj, nil
}

func (a *Actions) saveExisting(ctx context.Context, obj *dto.PersistentObject) (*dto.PersistentObject, error) {
	poRecord, err := a.store.Load(ctx, TablePersistentObjects, obj.ID)
	if err != nil {
		return nil, err
	}
	queryRecord, err := a.store.Load(ctx, TableQueries, poRecord.QueryID)
	if err != nil {
		return nil, err
	}

	var query dto.Query
	if err := dto.Unmarshal(queryRecord.Response, &query); err != nil {
		return nil, err
	}

	if err := a.editQueryResultItemValues(&query, obj, ItemChangeEdit); err != nil {
		return nil, err
	}

	queryRecord.Response, err = dto.Marshal(&query)
	if err != nil {
		return nil, err
	}
	if err := a.store.Save(ctx, TableQueries, queryRecord); err != nil {
		return nil, err
	}

	for _, attr := range obj.Attributes {
		attr.IsValueChanged = false
	}

	return obj, nil
}

// editQueryResultItemValues переносит изменённые значения атрибутов
// в строку результата запроса. Строка для нового объекта создаётся
// при первом изменённом атрибуте (объект без правок строк не плодит).
// Для атрибутов с lookup-метаданными на значение ставится
// кросс-ссылка persistentObjectId/objectId.
func (a *Actions) editQueryResultItemValues(query *dto.Query, obj *dto.PersistentObject, changeType ItemChangeType) error {
	for _, attr := range obj.Attributes {
		if !attr.IsValueChanged {
			continue
		}

		if query.Result == nil {
			query.Result = &dto.QueryResult{}
		}

		var item *dto.QueryResultItem
		for _, it := range query.Result.Items {
			if it.ID == obj.ObjectID {
				item = it
				break
			}
		}
		if item == nil {
			if changeType != ItemChangeNew {
				return fmt.Errorf("unable to resolve result item %s", obj.ObjectID)
			}
			item = &dto.QueryResultItem{ID: obj.ObjectID}
			query.Result.Items = append(query.Result.Items, item)
			query.Result.TotalItems++
		}

		var value *dto.QueryResultItemValue
		for _, v := range item.Values {
			if v.Key == attr.Name {
				value = v
				break
			}
		}
		if value == nil {
			value = &dto.QueryResultItemValue{Key: attr.Name}
			item.Values = append(item.Values, value)
		}
		if attr.Value != nil {
			value.Value = *attr.Value
		} else {
			value.Value = ""
		}

		if query.PersistentObject != nil {
			for _, meta := range query.PersistentObject.Attributes {
				if meta.Name == attr.Name && meta.Lookup != nil && meta.Lookup.PersistentObject != nil {
					value.PersistentObjectID = meta.Lookup.PersistentObject.ID
					if attr.ObjectID != nil {
						value.ObjectID = *attr.ObjectID
					}
					break
				}
			}
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
