package model

import (
	"context"

	"vitrina/internal/dto"
)

// PersistentObjectAttributeAsDetail — атрибут, содержащий вложенную
// коллекцию объектов (строки мастер-детали), редактируемых вместе
// с родителем.
type PersistentObjectAttributeAsDetail struct {
	PersistentObjectAttribute

	objects         []*PersistentObject
	details         *Query
	lookupAttribute string
}

// NewPersistentObjectAttributeAsDetail строит detail-атрибут из его
// wire-представления.
func NewPersistentObjectAttributeAsDetail(svc Service, d *dto.Attribute, parent *PersistentObject) *PersistentObjectAttributeAsDetail {
	a := &PersistentObjectAttributeAsDetail{
		PersistentObjectAttribute: PersistentObjectAttribute{ServiceObject: newServiceObject(svc)},
	}
	a.init(d, parent)

	if d.Details != nil {
		a.details = constructQuery(svc, d.Details, parent, 1)
	}

	a.objects = make([]*PersistentObject, 0, len(d.Objects))
	for _, po := range d.Objects {
		obj := constructPO(svc, po)
		obj.parent = parent
		obj.ownerDetailAttribute = a
		a.objects = append(a.objects, obj)
	}

	a.lookupAttribute = d.LookupAttribute

	// Вложенные объекты следуют за состоянием родителя:
	// вход в редактирование и заморозка каскадируются.
	if parent != nil {
		parent.Subscribe(func(ch PropertyChange) {
			switch ch.Name {
			case "isEditing":
				if v, _ := ch.New.(bool); v {
					for _, o := range a.objects {
						o.BeginEdit()
					}
				}
			case "isFrozen":
				if v, _ := ch.New.(bool); v {
					for _, o := range a.objects {
						o.freeze()
					}
				} else {
					for _, o := range a.objects {
						o.unfreeze()
					}
				}
			}
		})
	}

	return a
}

func (a *PersistentObjectAttributeAsDetail) Objects() []*PersistentObject { return a.objects }
func (a *PersistentObjectAttributeAsDetail) Details() *Query              { return a.details }
func (a *PersistentObjectAttributeAsDetail) LookupAttribute() string      { return a.lookupAttribute }

// NewObject создаёт новую строку детали через действие New её запроса.
// Строка не добавляется в objects автоматически: вызывающая сторона
// добавляет её после заполнения.
func (a *PersistentObjectAttributeAsDetail) NewObject(ctx context.Context) (*PersistentObject, error) {
	po, err := a.svc.ExecuteAction(ctx, "New", a.parent, a.details, nil, nil)
	if err != nil || po == nil {
		return nil, err
	}

	po.ownerQuery = nil
	po.ownerDetailAttribute = a
	return po, nil
}

// AddObject добавляет строку в коллекцию и помечает атрибут изменённым.
func (a *PersistentObjectAttributeAsDetail) AddObject(ctx context.Context, po *PersistentObject) error {
	po.parent = a.parent
	po.ownerDetailAttribute = a
	if a.parent != nil && a.parent.IsEditing() {
		po.BeginEdit()
	}

	old := a.objects
	a.objects = append(append([]*PersistentObject(nil), a.objects...), po)
	a.notifyPropertyChanged("objects", a.objects, old)

	return a.OnChanged(ctx, true)
}

// OnChanged помечает родителя как изменённого после правки строк детали.
func (a *PersistentObjectAttributeAsDetail) OnChanged(ctx context.Context, allowRefresh bool) error {
	if a.parent == nil || !a.parent.IsEditing() || a.isReadOnly {
		return nil
	}

	a.parent.triggerDirty()
	if a.triggersRefresh {
		if allowRefresh {
			return a.TriggerRefresh(ctx, false)
		}
		a.shouldRefresh = true
	}
	return nil
}

func (a *PersistentObjectAttributeAsDetail) RefreshFromResult(res *dto.Attribute, resultWins bool) bool {
	visibilityChanged := a.PersistentObjectAttribute.RefreshFromResult(res, resultWins)

	if a.objects != nil && res.Objects != nil {
		old := a.objects
		a.objects = make([]*PersistentObject, 0, len(res.Objects))
		for _, po := range res.Objects {
			obj := constructPO(a.svc, po)
			obj.parent = a.parent
			obj.ownerDetailAttribute = a
			if a.parent != nil && a.parent.IsEditing() {
				obj.BeginEdit()
			}
			a.objects = append(a.objects, obj)
		}
		a.notifyPropertyChanged("objects", a.objects, old)
	}

	return visibilityChanged
}

func (a *PersistentObjectAttributeAsDetail) ToServiceObject() *dto.Attribute {
	result := a.PersistentObjectAttribute.ToServiceObject()

	if a.objects != nil {
		result.Objects = make([]*dto.PersistentObject, len(a.objects))
		for i, obj := range a.objects {
			d := obj.ToServiceObject(true)
			if obj.IsDeleted() {
				d.IsDeleted = true
			}
			result.Objects[i] = d
		}
	}

	return result
}
