package model

import (
	"context"
	"errors"

	"vitrina/internal/dto"
)

// PersistentObjectAttributeWithReference — атрибут-ссылка на другой
// объект: хранит objectId и lookup-запрос для выбора значения.
type PersistentObjectAttributeWithReference struct {
	PersistentObjectAttribute

	objectID           *string
	displayAttribute   string
	lookup             *Query
	canAddNewReference bool
	selectInPlace      bool

	refreshObjectIDSet bool
	refreshObjectID    *string
}

// NewPersistentObjectAttributeWithReference строит ссылочный атрибут
// из его wire-представления.
func NewPersistentObjectAttributeWithReference(svc Service, d *dto.Attribute, parent *PersistentObject) *PersistentObjectAttributeWithReference {
	a := &PersistentObjectAttributeWithReference{
		PersistentObjectAttribute: PersistentObjectAttribute{ServiceObject: newServiceObject(svc)},
	}
	a.init(d, parent)

	if d.Lookup != nil {
		a.lookup = constructQuery(svc, d.Lookup, parent, 1)
		a.lookup.ownerAttributeWithReference = a
	}

	a.objectID = d.ObjectID
	a.displayAttribute = d.DisplayAttribute
	a.canAddNewReference = d.CanAddNewReference
	a.selectInPlace = d.SelectInPlace
	a.setOptions(d.Options)

	return a
}

func (a *PersistentObjectAttributeWithReference) ObjectID() *string        { return a.objectID }
func (a *PersistentObjectAttributeWithReference) DisplayAttribute() string { return a.displayAttribute }
func (a *PersistentObjectAttributeWithReference) Lookup() *Query           { return a.lookup }
func (a *PersistentObjectAttributeWithReference) CanAddNewReference() bool { return a.canAddNewReference }
func (a *PersistentObjectAttributeWithReference) SelectInPlace() bool      { return a.selectInPlace }

// AddNewReference открывает новый объект lookup-типа для создания
// ссылки. Возвращённый объект привязан к этому атрибуту: его
// сохранение переключит ссылку.
func (a *PersistentObjectAttributeWithReference) AddNewReference(ctx context.Context) (*PersistentObject, error) {
	if a.isReadOnly {
		return nil, nil
	}

	po, err := a.svc.ExecuteAction(ctx, "Query.New", a.parent, a.lookup, nil, Parameters{
		"PersistentObjectAttributeId": a.id,
	})
	if err != nil {
		a.parent.SetNotification(err.Error(), NotificationError, 0)
		return nil, err
	}
	if po == nil {
		return nil, nil
	}

	po.ownerAttributeWithReference = a
	po.stateBehavior = appendStateBehavior(po.stateBehavior, "OpenAsDialog")
	return po, nil
}

// ChangeReference переключает ссылку на выбранные элементы (или их id).
func (a *PersistentObjectAttributeWithReference) ChangeReference(ctx context.Context, selectedItems []*QueryResultItem) error {
	return a.parent.QueueWork(ctx, func(ctx context.Context) error {
		if a.isReadOnly {
			return errors.New("attribute is read-only")
		}

		a.parent.PrepareAttributesForRefresh(&a.PersistentObjectAttribute)
		result, err := a.svc.ExecuteAction(ctx, "PersistentObject.SelectReference", a.parent, a.lookup, selectedItems, Parameters{
			"PersistentObjectAttributeId": a.id,
		})
		if err != nil {
			return err
		}
		if result != nil {
			a.parent.RefreshFromResult(result.Dto(), false)
		}
		return nil
	})
}

// ChangeReferenceByID — как ChangeReference, но по списку objectId.
func (a *PersistentObjectAttributeWithReference) ChangeReferenceByID(ctx context.Context, objectIDs ...string) error {
	items := make([]*QueryResultItem, len(objectIDs))
	for i, id := range objectIDs {
		items[i] = NewQueryResultItem(a.svc, &dto.QueryResultItem{ID: id}, nil)
	}
	return a.ChangeReference(ctx, items)
}

// GetPersistentObject загружает объект, на который указывает ссылка.
func (a *PersistentObjectAttributeWithReference) GetPersistentObject(ctx context.Context) (*PersistentObject, error) {
	if a.objectID == nil || *a.objectID == "" {
		return nil, nil
	}

	var po *PersistentObject
	err := a.parent.QueueWork(ctx, func(ctx context.Context) error {
		var err error
		po, err = a.svc.GetPersistentObject(ctx, a.parent, a.lookup.PersistentObject().ID(), *a.objectID, false)
		return err
	})
	return po, err
}

func (a *PersistentObjectAttributeWithReference) RefreshFromResult(res *dto.Attribute, resultWins bool) bool {
	if resultWins || !ptrEqual(a.objectID, res.ObjectID) {
		a.objectID = res.ObjectID
		a.setIsValueChanged(res.IsValueChanged)
	}

	visibilityChanged := a.PersistentObjectAttribute.RefreshFromResult(res, resultWins)

	a.displayAttribute = res.DisplayAttribute
	a.canAddNewReference = res.CanAddNewReference
	a.selectInPlace = res.SelectInPlace

	return visibilityChanged
}

func (a *PersistentObjectAttributeWithReference) ToServiceObject() *dto.Attribute {
	result := a.PersistentObjectAttribute.ToServiceObject()
	result.ObjectID = a.objectID
	result.DisplayAttribute = a.displayAttribute
	return result
}

func (a *PersistentObjectAttributeWithReference) backupForRefresh() {
	a.PersistentObjectAttribute.backupForRefresh()
	a.refreshObjectID = a.objectID
	a.refreshObjectIDSet = true
}

func appendStateBehavior(current, behavior string) string {
	if current == "" || current == "None" {
		return behavior
	}
	return current + " " + behavior
}
