package model

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"vitrina/internal/datatype"
	"vitrina/internal/dto"
)

// Attribute — общий интерфейс обычного, ссылочного и detail-атрибута.
// Реализации живут только в этом пакете.
type Attribute interface {
	Base() *PersistentObjectAttribute

	// RefreshFromResult сливает серверное состояние атрибута в текущее.
	// Возвращает true, если изменилась видимость (нужна перестройка
	// вкладок и групп).
	RefreshFromResult(res *dto.Attribute, resultWins bool) bool

	// ToServiceObject сериализует атрибут для отправки на сервер.
	ToServiceObject() *dto.Attribute

	backupForRefresh()
}

// Option — разобранная пара "ключ=значение" списочного атрибута.
type Option struct {
	Key   string
	Value string
}

// FileUpload — отложенная загрузка файла для атрибутов BinaryFile/Image.
type FileUpload struct {
	FileName string
	Content  io.Reader
}

// PersistentObjectAttribute — один атрибут объекта. Источник истины —
// строковое значение провода; типизированное значение и displayValue
// мемоизируются поверх него.
type PersistentObjectAttribute struct {
	ServiceObject

	parent *PersistentObject

	id    string
	name  string
	typ   string
	label string

	serviceValue   *string
	serviceOptions []string
	options        []Option // только для типов "ключ=значение"

	groupKey string
	tabKey   string
	group    *PersistentObjectAttributeGroup
	tab      *PersistentObjectAttributeTab

	visibility string
	isVisible  bool

	isSystem       bool
	isReadOnly     bool
	isRequired     bool
	isSensitive    bool
	isValueChanged bool

	triggersRefresh bool
	shouldRefresh   bool

	offset     int
	column     int
	columnSpan int

	rules           string
	validationError string
	toolTip         string
	typeHints       map[string]string
	actionNames     []string
	tag             json.RawMessage

	// Мемоизация типизированного значения и displayValue.
	lastParsedSet   bool
	lastParsedValue *string
	cachedValue     any

	displayValueSet    bool
	displayValueSource *string
	displayValue       string

	// Бэкап перед refresh: позволяет не затирать пользовательский ввод,
	// сделанный пока запрос был в полёте.
	refreshServiceValueSet bool
	refreshServiceValue    *string

	// Счётчик поколений значения: растёт при каждой смене serviceValue.
	rev uint64

	upload *FileUpload
}

// NewPersistentObjectAttribute строит обычный атрибут из его wire-представления.
func NewPersistentObjectAttribute(svc Service, d *dto.Attribute, parent *PersistentObject) *PersistentObjectAttribute {
	a := &PersistentObjectAttribute{ServiceObject: newServiceObject(svc)}
	a.init(d, parent)
	return a
}

func (a *PersistentObjectAttribute) init(d *dto.Attribute, parent *PersistentObject) {
	a.parent = parent
	a.id = d.ID
	a.name = d.Name
	a.typ = d.Type
	a.label = d.Label
	a.serviceValue = d.Value
	a.groupKey = d.Group
	a.tabKey = d.Tab
	a.isSystem = d.IsSystem
	a.isReadOnly = d.IsReadOnly
	a.isRequired = d.IsRequired
	a.isSensitive = d.IsSensitive
	a.isValueChanged = d.IsValueChanged
	a.offset = d.Offset
	a.column = d.Column
	a.columnSpan = d.ColumnSpan
	a.toolTip = d.ToolTip
	a.rules = d.Rules
	a.validationError = d.ValidationError
	a.typeHints = d.TypeHints
	if a.typeHints == nil {
		a.typeHints = map[string]string{}
	}
	a.triggersRefresh = d.TriggersRefresh
	a.tag = d.Tag
	a.actionNames = append([]string(nil), d.Actions...)
	a.setVisibility(d.Visibility, true)

	if a.typ != "Reference" {
		a.setOptions(d.Options)
	}
}

func (a *PersistentObjectAttribute) Base() *PersistentObjectAttribute { return a }

func (a *PersistentObjectAttribute) ID() string    { return a.id }
func (a *PersistentObjectAttribute) Name() string  { return a.name }
func (a *PersistentObjectAttribute) Type() string  { return a.typ }
func (a *PersistentObjectAttribute) Label() string { return a.label }

func (a *PersistentObjectAttribute) Parent() *PersistentObject { return a.parent }

func (a *PersistentObjectAttribute) GroupKey() string { return a.groupKey }
func (a *PersistentObjectAttribute) TabKey() string   { return a.tabKey }

func (a *PersistentObjectAttribute) Group() *PersistentObjectAttributeGroup { return a.group }
func (a *PersistentObjectAttribute) Tab() *PersistentObjectAttributeTab     { return a.tab }

func (a *PersistentObjectAttribute) setGroup(g *PersistentObjectAttributeGroup) {
	old := a.group
	a.group = g
	if g != nil {
		a.groupKey = g.Key
	}
	if old != g {
		a.notifyPropertyChanged("group", g, old)
	}
}

func (a *PersistentObjectAttribute) setTab(t *PersistentObjectAttributeTab) {
	old := a.tab
	a.tab = t
	if t != nil {
		a.tabKey = t.Key
	}
	if old != t {
		a.notifyPropertyChanged("tab", t, old)
	}
}

func (a *PersistentObjectAttribute) IsSystem() bool       { return a.isSystem }
func (a *PersistentObjectAttribute) IsReadOnly() bool     { return a.isReadOnly }
func (a *PersistentObjectAttribute) IsRequired() bool     { return a.isRequired }
func (a *PersistentObjectAttribute) IsSensitive() bool    { return a.isSensitive }
func (a *PersistentObjectAttribute) IsValueChanged() bool { return a.isValueChanged }
func (a *PersistentObjectAttribute) TriggersRefresh() bool { return a.triggersRefresh }
func (a *PersistentObjectAttribute) ShouldRefresh() bool  { return a.shouldRefresh }

func (a *PersistentObjectAttribute) Offset() int     { return a.offset }
func (a *PersistentObjectAttribute) Column() int     { return a.column }
func (a *PersistentObjectAttribute) ColumnSpan() int { return a.columnSpan }

func (a *PersistentObjectAttribute) Rules() string           { return a.rules }
func (a *PersistentObjectAttribute) ToolTip() string         { return a.toolTip }
func (a *PersistentObjectAttribute) ValidationError() string { return a.validationError }
func (a *PersistentObjectAttribute) ActionNames() []string   { return a.actionNames }
func (a *PersistentObjectAttribute) Tag() json.RawMessage    { return a.tag }

// Rev — поколение значения. Сравнением поколений проверяется,
// не устарел ли отложенный refresh к моменту запуска.
func (a *PersistentObjectAttribute) Rev() uint64 { return a.rev }

// Options — разобранные пары для типов "ключ=значение" (FlagsEnum,
// KeyValueList), иначе nil.
func (a *PersistentObjectAttribute) Options() []Option { return a.options }

// ServiceOptions — сырые строки options с провода.
func (a *PersistentObjectAttribute) ServiceOptions() []string { return a.serviceOptions }

func (a *PersistentObjectAttribute) setOptions(options []string) {
	old := a.serviceOptions
	a.serviceOptions = append([]string(nil), options...)

	if a.isKeyValueOptions() {
		a.options = make([]Option, 0, len(options))
		for _, o := range options {
			key, value, _ := strings.Cut(o, "=")
			a.options = append(a.options, Option{Key: key, Value: value})
		}
	} else {
		a.options = nil
	}

	if len(old) > 0 || len(options) > 0 {
		a.notifyPropertyChanged("options", a.serviceOptions, old)
	}
}

func (a *PersistentObjectAttribute) isKeyValueOptions() bool {
	return a.typ == "FlagsEnum" || a.typ == "KeyValueList"
}

// Visibility возвращает серверную строку видимости (Always/Read/New/Never...).
func (a *PersistentObjectAttribute) Visibility() string { return a.visibility }

// IsVisible — вычисленная видимость с учётом isNew родителя.
func (a *PersistentObjectAttribute) IsVisible() bool { return a.isVisible }

func (a *PersistentObjectAttribute) setVisibility(v string, initial bool) {
	if !initial && a.visibility == v {
		return
	}

	oldIsVisible := a.isVisible
	mode := "Read"
	if a.parent != nil && a.parent.IsNew() {
		mode = "New"
	}
	newIsVisible := strings.Contains(v, "Always") || strings.Contains(v, mode)

	oldVisibility := a.visibility
	a.visibility = v
	a.isVisible = newIsVisible
	if !initial {
		a.notifyPropertyChanged("visibility", v, oldVisibility)
	}

	if newIsVisible != oldIsVisible && !initial {
		a.notifyPropertyChanged("isVisible", newIsVisible, oldIsVisible)
		if a.parent != nil && !a.parent.IsBusy() {
			a.parent.RefreshTabsAndGroups(a)
		}
	}
}

func (a *PersistentObjectAttribute) setValidationError(err string) {
	if a.validationError == err {
		return
	}
	old := a.validationError
	a.validationError = err
	a.notifyPropertyChanged("validationError", err, old)
}

func (a *PersistentObjectAttribute) setIsValueChanged(v bool) {
	if a.isValueChanged == v {
		return
	}
	old := a.isValueChanged
	a.isValueChanged = v
	a.notifyPropertyChanged("isValueChanged", v, old)
}

func (a *PersistentObjectAttribute) setLabel(label string) {
	if a.label == label {
		return
	}
	old := a.label
	a.label = label
	a.notifyPropertyChanged("label", label, old)
}

func (a *PersistentObjectAttribute) setIsReadOnly(v bool) {
	if a.isReadOnly == v {
		return
	}
	old := a.isReadOnly
	a.isReadOnly = v
	a.notifyPropertyChanged("isReadOnly", v, old)
}

func (a *PersistentObjectAttribute) setIsRequired(v bool) {
	if a.isRequired == v {
		return
	}
	old := a.isRequired
	a.isRequired = v
	a.notifyPropertyChanged("isRequired", v, old)
}

func (a *PersistentObjectAttribute) setRules(rules string) {
	if a.rules == rules {
		return
	}
	old := a.rules
	a.rules = rules
	a.notifyPropertyChanged("rules", rules, old)
}

// TypeHint возвращает подсказку типа по имени (без учёта регистра)
// либо значение по умолчанию.
func (a *PersistentObjectAttribute) TypeHint(name, defaultValue string) string {
	for k, v := range a.typeHints {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return defaultValue
}

// ServiceValue — сырое строковое значение провода (nil допустим).
func (a *PersistentObjectAttribute) ServiceValue() *string { return a.serviceValue }

// Value возвращает типизированное значение, мемоизированное по
// строке провода.
func (a *PersistentObjectAttribute) Value() any {
	if !a.lastParsedSet || !ptrEqual(a.lastParsedValue, a.serviceValue) {
		a.lastParsedSet = true
		a.lastParsedValue = a.serviceValue
		if a.parent == nil || !a.parent.IsBulkEdit() || a.serviceValue != nil {
			a.cachedValue = datatype.FromServiceString(a.serviceValue, a.typ)
		} else {
			a.cachedValue = nil
		}
	}
	return a.cachedValue
}

// SetValue записывает новое значение. Игнорируется, когда родитель не
// в режиме редактирования, заморожен, либо атрибут только для чтения.
// Для атрибутов с triggersRefresh выполняется серверный refresh.
func (a *PersistentObjectAttribute) SetValue(ctx context.Context, val any) (any, error) {
	return a.setValue(ctx, val, true)
}

// SetValueNoRefresh — как SetValue, но серверный refresh откладывается
// до сохранения (shouldRefresh).
func (a *PersistentObjectAttribute) SetValueNoRefresh(val any) (any, error) {
	return a.setValue(context.Background(), val, false)
}

func (a *PersistentObjectAttribute) setValue(ctx context.Context, val any, allowRefresh bool) (any, error) {
	if (a.parent != nil && (!a.parent.IsEditing() || a.parent.IsFrozen())) || a.isReadOnly {
		return a.Value(), nil
	}

	a.setValidationError("")

	if s, ok := val.(string); ok && s != "" {
		switch strings.ToUpper(a.TypeHint("charactercasing", "")) {
		case "LOWER":
			val = strings.ToLower(s)
		case "UPPER":
			val = strings.ToUpper(s)
		}
	}

	newServiceValue := datatype.ToServiceString(val, a.typ)

	// Значение не изменилось.
	if ptrEqual(a.serviceValue, newServiceValue) ||
		(a.serviceValue == nil && newServiceValue != nil && *newServiceValue == "") {
		if allowRefresh && a.shouldRefresh {
			return a.Value(), a.TriggerRefresh(ctx, false)
		}
		return a.Value(), nil
	}

	oldDisplayValue := a.DisplayValue()
	oldServiceValue := a.serviceValue
	a.serviceValue = newServiceValue
	a.rev++
	a.notifyPropertyChanged("value", strPtrValue(newServiceValue), strPtrValue(oldServiceValue))
	a.setIsValueChanged(true)

	if newDisplayValue := a.DisplayValue(); newDisplayValue != oldDisplayValue {
		a.notifyPropertyChanged("displayValue", newDisplayValue, oldDisplayValue)
	}

	var err error
	if a.triggersRefresh {
		if allowRefresh {
			err = a.TriggerRefresh(ctx, false)
		} else {
			a.shouldRefresh = true
		}
	}

	if a.parent != nil {
		a.parent.triggerDirty()
	}

	return a.Value(), err
}

// TriggerRefresh выполняет серверный refresh объекта для этого атрибута.
func (a *PersistentObjectAttribute) TriggerRefresh(ctx context.Context, immediate bool) error {
	a.shouldRefresh = false
	if a.parent == nil {
		return nil
	}
	return a.parent.TriggerAttributeRefresh(ctx, a, immediate)
}

// SetUpload назначает отложенную загрузку файла (BinaryFile/Image).
func (a *PersistentObjectAttribute) SetUpload(u *FileUpload) {
	a.upload = u
}

// Upload — ожидающая отправки загрузка, если есть.
func (a *PersistentObjectAttribute) Upload() *FileUpload { return a.upload }

// DisplayValue — человекочитаемое значение, мемоизированное по строке
// провода. Пустое значение отображается длинным тире.
func (a *PersistentObjectAttribute) DisplayValue() string {
	if a.displayValueSet && ptrEqual(a.displayValueSource, a.serviceValue) {
		if a.displayValue != "" {
			return a.displayValue
		}
		return "—"
	}
	a.displayValueSet = true
	a.displayValueSource = a.serviceValue

	format := a.TypeHint("DisplayFormat", "{0}")
	value := a.Value()

	switch {
	case value != nil && datatype.IsBoolean(a.typ):
		key := a.TypeHint("FalseKey", "No")
		if value.(bool) {
			key = a.TypeHint("TrueKey", "Yes")
		}
		value = translate(a.svc, key)

	case a.typ == "KeyValueList":
		value = a.keyValueListDisplay(value)

	case value != nil && (a.typ == "Time" || a.typ == "NullableTime"):
		value = datatype.TrimTime(value.(string))

	case value != nil && (a.typ == "User" || a.typ == "NullableUser") && len(a.serviceOptions) > 0:
		value = a.serviceOptions[0]
	}

	a.displayValue = a.formatDisplay(format, value)
	if a.displayValue == "" {
		return "—"
	}
	return a.displayValue
}

func (a *PersistentObjectAttribute) keyValueListDisplay(value any) any {
	if len(a.options) == 0 {
		return value
	}

	key, _ := value.(string)
	var found *Option
	for i := range a.options {
		if a.options[i].Key == key || (key == "" && a.options[i].Key == "") {
			found = &a.options[i]
			break
		}
	}
	if found == nil && a.isRequired {
		for i := range a.options {
			if a.options[i].Key == "" {
				found = &a.options[i]
				break
			}
		}
	}

	if found != nil {
		return found.Value
	}
	if a.isRequired {
		return a.options[0].Value
	}
	return value
}

var displayFormatRe = regexp.MustCompile(`\{0(?::([^}]*))?\}`)

func (a *PersistentObjectAttribute) formatDisplay(format string, value any) string {
	if value == nil {
		return ""
	}

	cult := currentCulture(a.svc)
	layout := ""
	if m := displayFormatRe.FindStringSubmatch(format); m != nil {
		layout = m[1]
	}
	if layout == "" {
		switch {
		case a.typ == "Date" || a.typ == "NullableDate":
			layout = cult.DateFormat.ShortDatePattern
		case a.typ == "DateTime" || a.typ == "NullableDateTime" ||
			a.typ == "DateTimeOffset" || a.typ == "NullableDateTimeOffset":
			layout = cult.DateFormat.ShortDatePattern + " " + cult.DateFormat.ShortTimePattern
		}
	}

	var s string
	switch v := value.(type) {
	case string:
		s = v
	case time.Time:
		if layout != "" {
			s = v.Format(layout)
		} else {
			s = v.Format(datatype.WireDateTime)
		}
	case bool:
		s = strconv.FormatBool(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case float64:
		s = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		s = fmt.Sprint(v)
	}

	return displayFormatRe.ReplaceAllLiteralString(format, s)
}

// ToServiceObject сериализует атрибут для отправки на сервер.
func (a *PersistentObjectAttribute) ToServiceObject() *dto.Attribute {
	result := &dto.Attribute{
		ID:              a.id,
		Name:            a.name,
		Label:           a.label,
		Type:            a.typ,
		IsReadOnly:      a.isReadOnly,
		TriggersRefresh: a.triggersRefresh,
		IsRequired:      a.isRequired,
		IsValueChanged:  a.isValueChanged,
		Visibility:      a.visibility,
		Value:           a.serviceValue,
		Actions:         append([]string(nil), a.actionNames...),
	}

	if a.parent != nil && a.parent.IsBulkEdit() && a.isValueChanged {
		result.DiffersInBulkEditMode = true
	}

	if len(a.options) > 0 && a.isValueChanged {
		opts := make([]string, len(a.options))
		for i, o := range a.options {
			opts[i] = o.Key + "=" + o.Value
		}
		result.Options = opts
	} else {
		result.Options = a.serviceOptions
	}

	return result
}

// RefreshFromResult сливает серверное состояние в атрибут. Локальное
// значение уступает серверному, когда resultWins, когда атрибут только
// для чтения, либо когда пользователь не менял его с момента бэкапа.
func (a *PersistentObjectAttribute) RefreshFromResult(res *dto.Attribute, resultWins bool) bool {
	visibilityChanged := false

	a.setLabel(res.Label)
	a.setActions(res.Actions)

	if a.typ != "Reference" {
		a.setOptions(res.Options)
	}

	a.setIsReadOnly(res.IsReadOnly)
	a.setRules(res.Rules)
	a.setIsRequired(res.IsRequired)

	if a.visibility != res.Visibility {
		a.setVisibility(res.Visibility, false)
		visibilityChanged = true
	}

	resultValue := res.Value
	backupEqualsResult := a.refreshServiceValueSet && ptrEqual(a.refreshServiceValue, resultValue)
	if resultWins || (!ptrEqual(a.serviceValue, resultValue) && (a.isReadOnly || !backupEqualsResult)) {
		oldDisplayValue := a.DisplayValue()
		oldValue := a.Value()

		a.serviceValue = resultValue
		a.rev++
		a.lastParsedSet = false

		a.notifyPropertyChanged("value", a.Value(), oldValue)
		if newDisplayValue := a.DisplayValue(); newDisplayValue != oldDisplayValue {
			a.notifyPropertyChanged("displayValue", newDisplayValue, oldDisplayValue)
		}

		a.upload = nil
		a.setIsValueChanged(res.IsValueChanged)
	}

	a.tag = res.Tag
	a.refreshServiceValueSet = false
	a.refreshServiceValue = nil

	a.triggersRefresh = res.TriggersRefresh
	a.setValidationError(res.ValidationError)

	a.mergeTypeHints(res.TypeHints)

	return visibilityChanged
}

func (a *PersistentObjectAttribute) mergeTypeHints(resHints map[string]string) {
	if resHints == nil {
		return
	}
	changed := false
	for k, v := range resHints {
		if a.typeHints[k] != v {
			changed = true
			break
		}
	}
	if !changed {
		return
	}

	merged := make(map[string]string, len(resHints)+len(a.typeHints))
	for k, v := range a.typeHints {
		merged[k] = v
	}
	for k, v := range resHints {
		merged[k] = v
	}

	old := a.typeHints
	a.typeHints = merged
	a.notifyPropertyChanged("typeHints", merged, old)
}

func (a *PersistentObjectAttribute) backupForRefresh() {
	a.refreshServiceValue = a.serviceValue
	a.refreshServiceValueSet = true
}

func (a *PersistentObjectAttribute) setActions(names []string) {
	old := a.actionNames
	a.actionNames = append([]string(nil), names...)
	a.notifyPropertyChanged("actions", a.actionNames, old)
}

func ptrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
