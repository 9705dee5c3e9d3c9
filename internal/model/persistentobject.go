package model

import (
	"context"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"vitrina/internal/dto"
)

// PersistentObject — состояние и операции одной бизнес-сущности:
// редактирование, сохранение, слияние серверных результатов и
// управление атрибутами, вкладками и группами.
type PersistentObject struct {
	ServiceObjectWithActions

	id           string
	typ          string
	fullTypeName string
	label        string

	objectID   string
	breadcrumb string

	isSystem              bool
	isNew                 bool
	isHidden              bool
	isReadOnly            bool
	isDeleted             bool
	isBreadcrumbSensitive bool
	forceFromAction       bool
	ignoreCheckRules      bool

	isEditing bool
	isDirty   bool
	isFrozen  bool

	stateBehavior    string
	queryLayoutMode  string
	dialogSaveAction string
	securityToken    string
	bulkObjectIDs    []string
	queriesToRefresh []string
	tag              json.RawMessage

	parent                      *PersistentObject
	ownerQuery                  *Query
	ownerAttributeWithReference *PersistentObjectAttributeWithReference
	ownerDetailAttribute        *PersistentObjectAttributeAsDetail

	attributes []Attribute
	attrByName map[string]Attribute

	queries []*Query
	tabs    []PersistentObjectTab

	lastResult       *dto.PersistentObject
	lastResultBackup *dto.PersistentObject
	lastUpdated      time.Time
}

// NewPersistentObject строит объект из его wire-представления.
func NewPersistentObject(svc Service, d *dto.PersistentObject) *PersistentObject {
	po := &PersistentObject{
		ServiceObjectWithActions: newServiceObjectWithActions(svc, d.Actions),
		id:                       d.ID,
		typ:                      d.Type,
		fullTypeName:             d.FullTypeName,
		label:                    d.Label,
		objectID:                 d.ObjectID,
		breadcrumb:               d.Breadcrumb,
		isSystem:                 d.IsSystem,
		isNew:                    d.IsNew,
		isHidden:                 d.IsHidden,
		isReadOnly:               d.IsReadOnly,
		isDeleted:                d.IsDeleted,
		isBreadcrumbSensitive:    d.IsBreadcrumbSensitive,
		forceFromAction:          d.ForceFromAction,
		ignoreCheckRules:         d.IgnoreCheckRules,
		stateBehavior:            d.StateBehavior,
		queryLayoutMode:          d.QueryLayoutMode,
		dialogSaveAction:         d.DialogSaveAction,
		securityToken:            d.SecurityToken,
		bulkObjectIDs:            d.BulkObjectIDs,
		queriesToRefresh:         d.QueriesToRefresh,
		tag:                      d.Tag,
		attrByName:               make(map[string]Attribute),
		lastResult:               d,
	}
	if po.stateBehavior == "" {
		po.stateBehavior = "None"
	}

	po.SetNotification(d.Notification, NotificationType(d.NotificationType), d.NotificationDuration)

	if d.Parent != nil {
		po.parent = constructPO(svc, d.Parent)
	}

	for _, attrDTO := range d.Attributes {
		attr := po.createAttribute(attrDTO)
		po.attributes = append(po.attributes, attr)
		po.attrByName[attr.Base().name] = attr
	}

	for _, queryDTO := range d.Queries {
		po.queries = append(po.queries, constructQuery(svc, queryDTO, po, 0))
	}
	sort.SliceStable(po.queries, func(i, j int) bool { return po.queries[i].offset < po.queries[j].offset })

	po.buildTabs(d.Tabs)

	if po.isNew || strings.Contains(po.stateBehavior, "OpenInEdit") || strings.Contains(po.stateBehavior, "StayInEdit") {
		po.BeginEdit()
	}

	if svc != nil {
		svc.Hooks().OnRefreshFromResult(po)
	}
	po.setLastUpdated(time.Now())

	return po
}

// createAttribute выбирает вид атрибута по содержимому DTO: ссылка,
// деталь или обычный.
func (po *PersistentObject) createAttribute(d *dto.Attribute) Attribute {
	if d.DisplayAttribute != "" || d.ObjectID != nil {
		return NewPersistentObjectAttributeWithReference(po.svc, d, po)
	}
	if d.Objects != nil || d.Details != nil {
		return NewPersistentObjectAttributeAsDetail(po.svc, d, po)
	}
	return NewPersistentObjectAttribute(po.svc, d, po)
}

func (po *PersistentObject) buildTabs(serviceTabs map[string]*dto.Tab) {
	var tabs []PersistentObjectTab

	if serviceTabs != nil {
		ordered := po.baseAttributes()
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].offset < ordered[j].offset })

		var tabKeys []string
		byTab := map[string][]*PersistentObjectAttribute{}
		for _, a := range ordered {
			if _, ok := byTab[a.tabKey]; !ok {
				tabKeys = append(tabKeys, a.tabKey)
			}
			byTab[a.tabKey] = append(byTab[a.tabKey], a)
		}

		for _, tabKey := range tabKeys {
			attrs := byTab[tabKey]

			var groupKeys []string
			byGroup := map[string][]*PersistentObjectAttribute{}
			for _, a := range attrs {
				if _, ok := byGroup[a.groupKey]; !ok {
					groupKeys = append(groupKeys, a.groupKey)
				}
				byGroup[a.groupKey] = append(byGroup[a.groupKey], a)
			}

			groups := make([]*PersistentObjectAttributeGroup, 0, len(groupKeys))
			for n, groupKey := range groupKeys {
				g := NewPersistentObjectAttributeGroup(groupKey, byGroup[groupKey], po)
				g.Index = n
				for _, a := range byGroup[groupKey] {
					a.setGroup(g)
				}
				groups = append(groups, g)
			}

			serviceTab := serviceTabs[tabKey]
			if serviceTab == nil {
				serviceTab = &dto.Tab{}
			}
			tab := NewPersistentObjectAttributeTab(tabKey, serviceTab.ID, serviceTab.Name, serviceTab.Layout, serviceTab.ColumnCount, groups, po, !po.isHidden)
			for _, a := range attrs {
				a.setTab(tab)
			}
			tabs = append(tabs, tab)
		}
	}

	for _, q := range po.queries {
		tabs = append(tabs, NewPersistentObjectQueryTab(q))
	}

	if len(tabs) == 0 {
		tabs = []PersistentObjectTab{
			NewPersistentObjectAttributeTab("", "", "", "", 0, nil, po, true),
		}
	}

	po.tabs = tabs
}

func (po *PersistentObject) baseAttributes() []*PersistentObjectAttribute {
	result := make([]*PersistentObjectAttribute, len(po.attributes))
	for i, a := range po.attributes {
		result[i] = a.Base()
	}
	return result
}

func (po *PersistentObject) ID() string           { return po.id }
func (po *PersistentObject) Type() string         { return po.typ }
func (po *PersistentObject) FullTypeName() string { return po.fullTypeName }
func (po *PersistentObject) Label() string        { return po.label }
func (po *PersistentObject) ObjectID() string     { return po.objectID }
func (po *PersistentObject) Breadcrumb() string   { return po.breadcrumb }

func (po *PersistentObject) IsSystem() bool   { return po.isSystem }
func (po *PersistentObject) IsNew() bool      { return po.isNew }
func (po *PersistentObject) IsHidden() bool   { return po.isHidden }
func (po *PersistentObject) IsReadOnly() bool { return po.isReadOnly }
func (po *PersistentObject) IsDeleted() bool  { return po.isDeleted }

func (po *PersistentObject) StateBehavior() string { return po.stateBehavior }
func (po *PersistentObject) SecurityToken() string { return po.securityToken }
func (po *PersistentObject) Tag() json.RawMessage  { return po.tag }

// IsBulkEdit сообщает, редактируется ли сразу несколько объектов.
func (po *PersistentObject) IsBulkEdit() bool { return len(po.bulkObjectIDs) > 0 }

func (po *PersistentObject) Parent() *PersistentObject { return po.parent }

// OwnerQuery — запрос, из которого объект был открыт, если есть.
func (po *PersistentObject) OwnerQuery() *Query { return po.ownerQuery }

// SetOwnerQuery привязывает объект к запросу-владельцу.
func (po *PersistentObject) SetOwnerQuery(q *Query) { po.ownerQuery = q }

// OwnerDetailAttribute — detail-атрибут, которому принадлежит объект.
func (po *PersistentObject) OwnerDetailAttribute() *PersistentObjectAttributeAsDetail {
	return po.ownerDetailAttribute
}

// OwnerAttributeWithReference — ссылочный атрибут, ради которого
// объект создавался (Query.New из lookup).
func (po *PersistentObject) OwnerAttributeWithReference() *PersistentObjectAttributeWithReference {
	return po.ownerAttributeWithReference
}

// Dto — последний серверный результат, из которого объект построен.
func (po *PersistentObject) Dto() *dto.PersistentObject { return po.lastResult }

// LastUpdated — время последнего слияния с серверным результатом.
func (po *PersistentObject) LastUpdated() time.Time { return po.lastUpdated }

func (po *PersistentObject) setLastUpdated(t time.Time) {
	old := po.lastUpdated
	po.lastUpdated = t
	po.notifyPropertyChanged("lastUpdated", t, old)
}

func (po *PersistentObject) Tabs() []PersistentObjectTab { return po.tabs }

func (po *PersistentObject) setTabs(tabs []PersistentObjectTab) {
	old := po.tabs
	po.tabs = tabs
	po.notifyPropertyChanged("tabs", tabs, old)
}

// Attributes — атрибуты объекта в исходном порядке.
func (po *PersistentObject) Attributes() []Attribute { return po.attributes }

// GetAttribute возвращает атрибут по имени (nil, если его нет).
func (po *PersistentObject) GetAttribute(name string) Attribute { return po.attrByName[name] }

// GetAttributeValue — типизированное значение атрибута по имени.
func (po *PersistentObject) GetAttributeValue(name string) any {
	attr := po.attrByName[name]
	if attr == nil {
		return nil
	}
	return attr.Base().Value()
}

// SetAttributeValue записывает значение атрибута по имени.
func (po *PersistentObject) SetAttributeValue(ctx context.Context, name string, value any) (any, error) {
	attr := po.attrByName[name]
	if attr == nil {
		return nil, ErrNoSuchAttribute
	}
	return attr.Base().SetValue(ctx, value)
}

func (po *PersistentObject) Queries() []*Query { return po.queries }

// GetQuery возвращает вложенный запрос по имени.
func (po *PersistentObject) GetQuery(name string) *Query {
	for _, q := range po.queries {
		if q.name == name {
			return q
		}
	}
	return nil
}

func (po *PersistentObject) IsEditing() bool { return po.isEditing }
func (po *PersistentObject) IsDirty() bool   { return po.isDirty }
func (po *PersistentObject) IsFrozen() bool  { return po.isFrozen }

func (po *PersistentObject) setIsEditing(v bool) {
	po.isEditing = v
	po.notifyPropertyChanged("isEditing", v, !v)
}

func (po *PersistentObject) setIsDirty(v bool) {
	if po.isDirty == v {
		return
	}
	old := po.isDirty
	po.isDirty = v
	po.notifyPropertyChanged("isDirty", v, old)

	if po.ownerDetailAttribute != nil && v {
		_ = po.ownerDetailAttribute.OnChanged(context.Background(), false)
	}
}

// Freeze переводит объект в замороженное состояние: записи значений
// игнорируются, пока возвращённая функция разморозки не будет вызвана.
// Разморозка идемпотентна.
func (po *PersistentObject) Freeze() (unfreeze func()) {
	po.freeze()
	var done bool
	return func() {
		if done {
			return
		}
		done = true
		po.unfreeze()
	}
}

func (po *PersistentObject) freeze() {
	if po.isFrozen {
		return
	}
	po.isFrozen = true
	po.notifyPropertyChanged("isFrozen", true, false)
}

func (po *PersistentObject) unfreeze() {
	if !po.isFrozen {
		return
	}
	po.isFrozen = false
	po.notifyPropertyChanged("isFrozen", false, true)
}

// BeginEdit переводит объект в режим редактирования и запоминает
// состояние для возможного отката.
func (po *PersistentObject) BeginEdit() {
	if po.isEditing {
		return
	}
	po.lastResultBackup = po.lastResult
	po.setIsEditing(true)
}

// CancelEdit выходит из режима редактирования и откатывает изменения
// к запомненному состоянию.
func (po *PersistentObject) CancelEdit() {
	if !po.isEditing {
		return
	}
	po.setIsEditing(false)
	po.setIsDirty(false)

	backup := po.lastResultBackup
	po.lastResultBackup = nil
	po.RefreshFromResult(backup, true)

	if po.notification != "" {
		po.ClearNotification()
	}

	if strings.Contains(po.stateBehavior, "StayInEdit") {
		po.BeginEdit()
	}
}

// TriggerDirty помечает объект изменённым, если он редактируется.
func (po *PersistentObject) TriggerDirty() bool { return po.triggerDirty() }

func (po *PersistentObject) triggerDirty() bool {
	if po.isEditing {
		po.setIsDirty(true)
	}
	return po.isDirty
}

// Save сохраняет изменения: сначала досылает отложенные refresh,
// затем выполняет PersistentObject.Save и сливает результат. Поиск
// запроса-владельца по умолчанию уходит в фон; waitForOwnerQuery=true
// дожидается его завершения.
func (po *PersistentObject) Save(ctx context.Context, waitForOwnerQuery ...bool) error {
	waitForOwner := len(waitForOwnerQuery) > 0 && waitForOwnerQuery[0]

	return po.QueueWork(ctx, func(ctx context.Context) error {
		if !po.isEditing {
			return nil
		}

		for _, attr := range po.attributes {
			if attr.Base().shouldRefresh {
				if err := attr.Base().TriggerRefresh(ctx, true); err != nil {
					return err
				}
			}
		}

		result, err := po.svc.ExecuteAction(ctx, "PersistentObject.Save", po, nil, nil, nil)
		if err != nil {
			return err
		}
		if result == nil {
			return ErrSaveCancelled
		}

		wasNew := po.isNew
		po.RefreshFromResult(result.Dto(), true)

		if po.notification != "" && po.notificationType == NotificationError {
			return &NotificationTextError{Text: po.notification}
		}

		po.setIsDirty(false)

		if !wasNew {
			po.setIsEditing(false)
			if strings.Contains(po.stateBehavior, "StayInEdit") {
				po.BeginEdit()
			}
		}

		switch {
		case po.ownerAttributeWithReference != nil:
			owner := po.ownerAttributeWithReference
			if !ptrEqualStr(owner.objectID, po.objectID) {
				parent := owner.parent
				if parent.ownerDetailAttribute != nil {
					parent = parent.ownerDetailAttribute.parent
				}
				parent.BeginEdit()
				return owner.ChangeReferenceByID(ctx, po.objectID)
			}
			if sv := owner.ServiceValue(); sv == nil || *sv != po.breadcrumb {
				_, err := owner.SetValue(ctx, po.breadcrumb)
				return err
			}
		case po.ownerQuery != nil:
			opts := SearchOptions{KeepSelection: po.IsBulkEdit()}
			if waitForOwner {
				return po.ownerQuery.Search(ctx, opts)
			}
			// Запрос-владелец обновляется в своей очереди, ждать его
			// не обязательно: ошибка поиска осядет в его уведомлении.
			go func(q *Query) {
				_ = q.Search(context.Background(), opts)
			}(po.ownerQuery)
		}

		return nil
	})
}

// ToServiceObject сериализует объект для отправки на сервер.
func (po *PersistentObject) ToServiceObject(skipParent ...bool) *dto.PersistentObject {
	result := &dto.PersistentObject{
		ID:            po.id,
		Type:          po.typ,
		ObjectID:      po.objectID,
		IsNew:         po.isNew,
		IsHidden:      po.isHidden,
		IsSystem:      po.isSystem,
		BulkObjectIDs: po.bulkObjectIDs,
		SecurityToken: po.securityToken,
	}

	if po.ownerQuery != nil {
		result.OwnerQueryID = po.ownerQuery.id
	}
	if po.parent != nil && (len(skipParent) == 0 || !skipParent[0]) {
		result.Parent = po.parent.ToServiceObject()
	}
	for _, attr := range po.attributes {
		result.Attributes = append(result.Attributes, attr.ToServiceObject())
	}
	if po.lastResult != nil && po.lastResult.Metadata != nil {
		result.Metadata = po.lastResult.Metadata
	}

	return result
}

// RefreshFromResult сливает новый серверный результат в объект:
// пропавшие атрибуты удаляются, совпавшие сливаются по правилам
// атрибута, новые добавляются.
func (po *PersistentObject) RefreshFromResult(result *dto.PersistentObject, resultWins bool) {
	if result == nil {
		return
	}

	var changedAttributes []*PersistentObjectAttribute
	isDirty := false

	if !po.isEditing {
		for _, a := range result.Attributes {
			if a.IsValueChanged {
				po.BeginEdit()
				break
			}
		}
	}

	po.lastResult = result

	resultByID := make(map[string]*dto.Attribute, len(result.Attributes))
	for _, a := range result.Attributes {
		resultByID[a.ID] = a
	}

	// Удаление атрибутов, которых больше нет в результате.
	kept := po.attributes[:0]
	for _, attr := range po.attributes {
		base := attr.Base()
		if _, ok := resultByID[base.id]; !ok {
			delete(po.attrByName, base.name)
			base.parent = nil
			changedAttributes = append(changedAttributes, base)
			continue
		}
		kept = append(kept, attr)
	}
	po.attributes = kept

	// Слияние выживших.
	for _, attr := range po.attributes {
		base := attr.Base()
		if serviceAttr, ok := resultByID[base.id]; ok {
			if attr.RefreshFromResult(serviceAttr, resultWins) {
				changedAttributes = append(changedAttributes, base)
			}
		}
		if base.isValueChanged {
			isDirty = true
		}
	}

	// Добавление новых.
	for _, serviceAttr := range result.Attributes {
		found := false
		for _, attr := range po.attributes {
			if attr.Base().id == serviceAttr.ID {
				found = true
				break
			}
		}
		if found {
			continue
		}

		attr := po.createAttribute(serviceAttr)
		po.attributes = append(po.attributes, attr)
		po.attrByName[attr.Base().name] = attr
		changedAttributes = append(changedAttributes, attr.Base())
		if attr.Base().isValueChanged {
			isDirty = true
		}
	}

	if len(changedAttributes) > 0 {
		po.RefreshTabsAndGroups(changedAttributes...)
	}

	po.SetNotification(result.Notification, NotificationType(result.NotificationType), result.NotificationDuration)
	if isDirty {
		if po.isDirty != isDirty {
			old := po.isDirty
			po.isDirty = true
			po.notifyPropertyChanged("isDirty", true, old)
		}
	} else {
		po.setIsDirty(false)
	}

	po.objectID = result.ObjectID
	if po.isNew {
		po.isNew = result.IsNew
	}

	po.securityToken = result.SecurityToken
	if result.Breadcrumb != "" && result.Breadcrumb != po.breadcrumb {
		old := po.breadcrumb
		po.breadcrumb = result.Breadcrumb
		po.notifyPropertyChanged("breadcrumb", po.breadcrumb, old)
	}

	for _, id := range result.QueriesToRefresh {
		for _, q := range po.queries {
			if q.id == id || q.name == id {
				if q.hasSearched || q.notification != "" || q.totalItems != nil {
					// Каждый запрос обновляется в своей очереди; слияние
					// результата его не ждёт.
					go func(q *Query) {
						_ = q.Search(context.Background())
					}(q)
				}
				break
			}
		}
	}

	po.tag = result.Tag

	if po.svc != nil {
		po.svc.Hooks().OnRefreshFromResult(po)
	}
	po.setLastUpdated(time.Now())
}

// RefreshTabsAndGroups инкрементально перестраивает вкладки и группы
// под изменившиеся атрибуты.
func (po *PersistentObject) RefreshTabsAndGroups(changedAttributes ...*PersistentObjectAttribute) {
	tabsRemoved := false
	tabsAdded := false

	for _, attr := range changedAttributes {
		var tab *PersistentObjectAttributeTab
		for _, t := range po.tabs {
			if at, ok := t.(*PersistentObjectAttributeTab); ok && at.Key == attr.tabKey {
				tab = at
				break
			}
		}

		if tab == nil {
			if !attr.isVisible {
				continue
			}

			group := NewPersistentObjectAttributeGroup(attr.groupKey, []*PersistentObjectAttribute{attr}, po)
			group.Index = 0

			var serviceTab *dto.Tab
			if po.lastResult != nil && po.lastResult.Tabs != nil {
				serviceTab = po.lastResult.Tabs[attr.tabKey]
			}
			if serviceTab == nil {
				serviceTab = &dto.Tab{}
			}

			tab = NewPersistentObjectAttributeTab(attr.tabKey, serviceTab.ID, serviceTab.Name, serviceTab.Layout, serviceTab.ColumnCount, []*PersistentObjectAttributeGroup{group}, po, !po.isHidden)
			attr.setTab(tab)
			attr.setGroup(group)
			po.tabs = append(po.tabs, tab)
			tabsAdded = true
			continue
		}

		group := tab.findGroup(attr.groupKey)
		switch {
		case group == nil && attr.isVisible:
			group = NewPersistentObjectAttributeGroup(attr.groupKey, []*PersistentObjectAttribute{attr}, po)
			attr.setGroup(group)
			tab.addGroup(group)

		case attr.isVisible && attr.parent != nil:
			if !group.contains(attr) {
				group.add(attr)
				attr.setGroup(group)
				attr.setTab(tab)
			}

		case group != nil:
			group.remove(attr)
			if len(group.attributes) == 0 {
				tab.removeGroup(group)
				if len(tab.groups) == 0 {
					po.removeTab(tab)
					tabsRemoved = true
					continue
				}
			}
		}
	}

	var attributeTabs []*PersistentObjectAttributeTab
	for _, t := range po.tabs {
		if at, ok := t.(*PersistentObjectAttributeTab); ok {
			attributeTabs = append(attributeTabs, at)
		}
	}

	if tabsAdded {
		sorted := make([]PersistentObjectTab, 0, len(po.tabs))
		sort.SliceStable(attributeTabs, func(i, j int) bool {
			return attributeTabs[i].minOffset() < attributeTabs[j].minOffset()
		})
		for _, t := range attributeTabs {
			sorted = append(sorted, t)
		}
		var queryTabs []*PersistentObjectQueryTab
		for _, t := range po.tabs {
			if qt, ok := t.(*PersistentObjectQueryTab); ok {
				queryTabs = append(queryTabs, qt)
			}
		}
		sort.SliceStable(queryTabs, func(i, j int) bool {
			return queryTabs[i].query.offset < queryTabs[j].query.offset
		})
		for _, t := range queryTabs {
			sorted = append(sorted, t)
		}
		po.setTabs(sorted)
	} else if tabsRemoved {
		po.setTabs(append([]PersistentObjectTab(nil), po.tabs...))
	}

	for _, t := range attributeTabs {
		t.recomputeVisibility()
	}
}

func (po *PersistentObject) removeTab(tab PersistentObjectTab) {
	for i, t := range po.tabs {
		if t == tab {
			po.tabs = append(po.tabs[:i:i], po.tabs[i+1:]...)
			return
		}
	}
}

// TriggerAttributeRefresh выполняет серверный refresh для атрибута.
// Если к моменту запуска отложенной работы значение атрибута успело
// смениться ещё раз, работа признаётся устаревшей и не выполняется.
func (po *PersistentObject) TriggerAttributeRefresh(ctx context.Context, attr *PersistentObjectAttribute, immediate bool) error {
	rev := attr.rev

	work := func(ctx context.Context) error {
		if rev != attr.rev {
			return nil
		}

		po.PrepareAttributesForRefresh(attr)
		result, err := po.svc.ExecuteAction(ctx, "PersistentObject.Refresh", po, nil, nil, Parameters{
			"RefreshedPersistentObjectAttributeId": attr.id,
		})
		if err != nil {
			return err
		}
		if po.isEditing && result != nil {
			po.RefreshFromResult(result.Dto(), false)
		}
		return nil
	}

	var err error
	if immediate {
		err = work(ctx)
	} else {
		err = po.QueueWork(ctx, work)
	}
	if err != nil {
		return err
	}

	if strings.EqualFold(attr.TypeHint("TriggerRefreshOnOwner", "false"), "true") &&
		po.ownerDetailAttribute != nil && po.ownerDetailAttribute.triggersRefresh {
		return po.ownerDetailAttribute.TriggerRefresh(ctx, immediate)
	}

	return nil
}

// PrepareAttributesForRefresh снимает бэкап значений всех атрибутов,
// кроме инициатора, перед серверным refresh.
func (po *PersistentObject) PrepareAttributesForRefresh(sender *PersistentObjectAttribute) {
	for _, attr := range po.attributes {
		if attr.Base().id == sender.id {
			continue
		}
		attr.backupForRefresh()
	}
}

func ptrEqualStr(p *string, s string) bool {
	return p != nil && *p == s
}
