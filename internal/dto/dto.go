package dto

import (
	json "github.com/goccy/go-json"
)

// Пакет dto описывает проводной (wire) формат JSON-протокола:
// конверт запроса/ответа и сериализованные представления
// PersistentObject / Query / атрибутов.
//
// Все значения атрибутов на проводе — строки ("service string"),
// типизация выполняется кодеком datatype на стороне клиента.

// Response — общий конверт ответа сервера.
// Поле result разбирается по-разному в зависимости от метода
// (PersistentObject для GetPersistentObject/ExecuteAction,
// QueryResult для ExecuteQuery), поэтому остаётся сырым.
type Response struct {
	Exception        string            `json:"exception,omitempty"`
	ExceptionMessage string            `json:"ExceptionMessage,omitempty"`
	AuthToken        string            `json:"authToken,omitempty"`
	Session          *PersistentObject `json:"session,omitempty"`
	Operations       []ClientOperation `json:"operations,omitempty"`
	Profiler         *ProfilerData     `json:"profiler,omitempty"`
	Retry            *Retry            `json:"retry,omitempty"`
	Result           json.RawMessage   `json:"result,omitempty"`
	Query            *Query            `json:"query,omitempty"`

	// GetApplication
	Application     *PersistentObject `json:"application,omitempty"`
	UserName        string            `json:"userName,omitempty"`
	UserLanguage    string            `json:"userLanguage,omitempty"`
	UserCultureInfo string            `json:"userCultureInfo,omitempty"`
	Initial         *PersistentObject `json:"initial,omitempty"`
}

// PersistentObject — одна бизнес-сущность.
type PersistentObject struct {
	ID                    string            `json:"id,omitempty"`
	ObjectID              string            `json:"objectId,omitempty"`
	Type                  string            `json:"type,omitempty"`
	FullTypeName          string            `json:"fullTypeName,omitempty"`
	Label                 string            `json:"label,omitempty"`
	Breadcrumb            string            `json:"breadcrumb,omitempty"`
	NewBreadcrumb         string            `json:"newBreadcrumb,omitempty"`
	IsBreadcrumbSensitive bool              `json:"isBreadcrumbSensitive,omitempty"`
	IsNew                 bool              `json:"isNew,omitempty"`
	IsSystem              bool              `json:"isSystem,omitempty"`
	IsHidden              bool              `json:"isHidden,omitempty"`
	IsDeleted             bool              `json:"isDeleted,omitempty"`
	IsReadOnly            bool              `json:"isReadOnly,omitempty"`
	ForceFromAction       bool              `json:"forceFromAction,omitempty"`
	IgnoreCheckRules      bool              `json:"ignoreCheckRules,omitempty"`
	StateBehavior         string            `json:"stateBehavior,omitempty"`
	SecurityToken         string            `json:"securityToken,omitempty"`
	Notification          string            `json:"notification,omitempty"`
	NotificationType      string            `json:"notificationType,omitempty"`
	NotificationDuration  int               `json:"notificationDuration,omitempty"`
	QueryLayoutMode       string            `json:"queryLayoutMode,omitempty"`
	DialogSaveAction      string            `json:"dialogSaveAction,omitempty"`
	BulkObjectIDs         []string          `json:"bulkObjectIds,omitempty"`
	QueriesToRefresh      []string          `json:"queriesToRefresh,omitempty"`
	Actions               []string          `json:"actions,omitempty"`
	Attributes            []*Attribute      `json:"attributes,omitempty"`
	Queries               []*Query          `json:"queries,omitempty"`
	Tabs                  map[string]*Tab   `json:"tabs,omitempty"`
	Parent                *PersistentObject `json:"parent,omitempty"`
	Metadata              json.RawMessage   `json:"metadata,omitempty"`
	Tag                   json.RawMessage   `json:"tag,omitempty"`

	// Служебные поля исходящей сериализации.
	OwnerQueryID string `json:"ownerQueryId,omitempty"`

	// Поле офлайн-кэша: id запроса-владельца (кросс-ссылка в хранилище).
	Query string `json:"query,omitempty"`
}

// Tab — серверное описание вкладки (раскладка, число колонок).
type Tab struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Layout      string `json:"layout,omitempty"`
	ColumnCount int    `json:"columnCount,omitempty"`
}

// Attribute — один атрибут. Единая структура покрывает обычный,
// ссылочный (objectId/lookup/displayAttribute) и detail-вариант
// (objects/details) — так же, как на проводе.
type Attribute struct {
	ID                    string            `json:"id,omitempty"`
	Name                  string            `json:"name,omitempty"`
	Type                  string            `json:"type,omitempty"`
	Label                 string            `json:"label,omitempty"`
	Value                 *string           `json:"value,omitempty"`
	Group                 string            `json:"group,omitempty"`
	Tab                   string            `json:"tab,omitempty"`
	Visibility            string            `json:"visibility,omitempty"`
	IsReadOnly            bool              `json:"isReadOnly,omitempty"`
	IsRequired            bool              `json:"isRequired,omitempty"`
	IsSystem              bool              `json:"isSystem,omitempty"`
	IsSensitive           bool              `json:"isSensitive,omitempty"`
	IsValueChanged        bool              `json:"isValueChanged,omitempty"`
	DiffersInBulkEditMode bool              `json:"differsInBulkEditMode,omitempty"`
	TriggersRefresh       bool              `json:"triggersRefresh,omitempty"`
	Offset                int               `json:"offset,omitempty"`
	Column                int               `json:"column,omitempty"`
	ColumnSpan            int               `json:"columnSpan,omitempty"`
	Rules                 string            `json:"rules,omitempty"`
	ValidationError       string            `json:"validationError,omitempty"`
	ToolTip               string            `json:"toolTip,omitempty"`
	Options               []string          `json:"options,omitempty"`
	TypeHints             map[string]string `json:"typeHints,omitempty"`
	Actions               []string          `json:"actions,omitempty"`
	Tag                   json.RawMessage   `json:"tag,omitempty"`

	// Reference
	ObjectID           *string `json:"objectId,omitempty"`
	DisplayAttribute   string  `json:"displayAttribute,omitempty"`
	Lookup             *Query  `json:"lookup,omitempty"`
	CanAddNewReference bool    `json:"canAddNewReference,omitempty"`
	SelectInPlace      bool    `json:"selectInPlace,omitempty"`

	// AsDetail
	Objects         []*PersistentObject `json:"objects,omitempty"`
	Details         *Query              `json:"details,omitempty"`
	LookupAttribute string              `json:"lookupAttribute,omitempty"`
}

// Query — пейджируемая коллекция строк одного типа PersistentObject.
type Query struct {
	ID                   string            `json:"id,omitempty"`
	Name                 string            `json:"name,omitempty"`
	Label                string            `json:"label,omitempty"`
	Offset               int               `json:"offset,omitempty"`
	Actions              []string          `json:"actions,omitempty"`
	PersistentObject     *PersistentObject `json:"persistentObject,omitempty"`
	Columns              []*QueryColumn    `json:"columns,omitempty"`
	Filters              json.RawMessage   `json:"filters,omitempty"`
	SortOptions          string            `json:"sortOptions,omitempty"`
	TextSearch           string            `json:"textSearch,omitempty"`
	PageSize             int               `json:"pageSize,omitempty"`
	Top                  int               `json:"top,omitempty"`
	Skip                 int               `json:"skip,omitempty"`
	Continuation         string            `json:"continuation,omitempty"`
	EnableSelectAll      bool              `json:"enableSelectAll,omitempty"`
	AllSelected          bool              `json:"allSelected,omitempty"`
	AllSelectedInversed  bool              `json:"allSelectedInversed,omitempty"`
	Notification         string            `json:"notification,omitempty"`
	NotificationType     string            `json:"notificationType,omitempty"`
	NotificationDuration int               `json:"notificationDuration,omitempty"`
	Result               *QueryResult      `json:"result,omitempty"`
}

type QueryColumn struct {
	Name             string `json:"name,omitempty"`
	Label            string `json:"label,omitempty"`
	Type             string `json:"type,omitempty"`
	Offset           int    `json:"offset,omitempty"`
	IsHidden         bool   `json:"isHidden,omitempty"`
	CanSort          bool   `json:"canSort,omitempty"`
	CanFilter        bool   `json:"canFilter,omitempty"`
	CanGroupBy       bool   `json:"canGroupBy,omitempty"`
	CanListDistincts bool   `json:"canListDistincts,omitempty"`
}

type QueryResult struct {
	Columns      []*QueryColumn     `json:"columns,omitempty"`
	Items        []*QueryResultItem `json:"items,omitempty"`
	SortOptions  string             `json:"sortOptions,omitempty"`
	Charts       json.RawMessage    `json:"charts,omitempty"`
	Continuation string             `json:"continuation,omitempty"`
	PageSize     int                `json:"pageSize,omitempty"`
	TotalItems   int                `json:"totalItems,omitempty"`
}

type QueryResultItem struct {
	ID        string                  `json:"id,omitempty"`
	Values    []*QueryResultItemValue `json:"values,omitempty"`
	TypeHints map[string]string       `json:"typeHints,omitempty"`
}

type QueryResultItemValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`

	// Проставляется офлайн-движком для lookup-колонок.
	PersistentObjectID string `json:"persistentObjectId,omitempty"`
	ObjectID           string `json:"objectId,omitempty"`
}

// Retry — запрос сервера на уточнение: действие нужно повторить
// с выбранной пользователем опцией.
type Retry struct {
	Title            string            `json:"title,omitempty"`
	Message          string            `json:"message,omitempty"`
	Options          []string          `json:"options,omitempty"`
	DefaultOption    int               `json:"defaultOption,omitempty"`
	CancelOption     int               `json:"cancelOption,omitempty"`
	PersistentObject *PersistentObject `json:"persistentObject,omitempty"`
}

// ClientOperation — команда, которую сервер просит клиента выполнить
// (Open, Refresh, ExecuteMethod и т.д.). Диспетчеризуется строго FIFO.
type ClientOperation struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

func (op *ClientOperation) UnmarshalJSON(b []byte) error {
	type alias struct {
		Type string `json:"type"`
	}
	var a alias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	op.Type = a.Type
	op.Raw = append(op.Raw[:0], b...)
	return nil
}

func (op ClientOperation) MarshalJSON() ([]byte, error) {
	if len(op.Raw) > 0 {
		return op.Raw, nil
	}
	return json.Marshal(map[string]string{"type": op.Type})
}

// ProfilerData — серверная часть профилировочной записи.
type ProfilerData struct {
	ElapsedMilliseconds int64           `json:"elapsedMilliseconds"`
	Exceptions          []string        `json:"exceptions,omitempty"`
	Entries             json.RawMessage `json:"entries,omitempty"`
	SQL                 json.RawMessage `json:"sql,omitempty"`
}

// ProfilerRequest — одна запись клиентского кольцевого буфера профилировки.
type ProfilerRequest struct {
	When      string         `json:"when"`
	Method    string         `json:"method"`
	Transport int64          `json:"transport"`
	Profiler  *ProfilerData  `json:"profiler,omitempty"`
	Request   map[string]any `json:"request,omitempty"`
	Response  *Response      `json:"response,omitempty"`
}

// ClientData — ответ бутстрап-эндпоинта GetClientData.
type ClientData struct {
	Exception             string                        `json:"exception,omitempty"`
	DefaultUser           string                        `json:"defaultUser,omitempty"`
	WindowsAuthentication bool                          `json:"windowsAuthentication,omitempty"`
	Languages             map[string]*LanguageData      `json:"languages,omitempty"`
	Providers             map[string]*ProviderContainer `json:"providers,omitempty"`
}

type LanguageData struct {
	Name      string            `json:"name"`
	IsDefault bool              `json:"isDefault,omitempty"`
	Messages  map[string]string `json:"messages,omitempty"`
}

type ProviderContainer struct {
	Parameters *ProviderParameters `json:"parameters,omitempty"`
}

type ProviderParameters struct {
	Label        string `json:"label,omitempty"`
	Description  string `json:"description,omitempty"`
	RequestURI   string `json:"requestUri,omitempty"`
	SignOutURI   string `json:"signOutUri,omitempty"`
	RegisterUser string `json:"registerUser,omitempty"`
}

// Marshal/Unmarshal — единая точка JSON-кодека для всего модуля.
func Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func Unmarshal(b []byte, v any) error    { return json.Unmarshal(b, v) }
func MarshalIndent(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }
