package model

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitrina/internal/dto"
)

func referencePO(svc Service) *PersistentObject {
	return NewPersistentObject(svc, &dto.PersistentObject{
		ID: "po-order", Type: "Order", ObjectID: "7", Actions: []string{"Edit", "Save"},
		Attributes: []*dto.Attribute{
			{
				ID: "r1", Name: "Customer", Type: "Reference", Visibility: "Always",
				Value: strp("ACME"), ObjectID: strp("c-1"), DisplayAttribute: "Name",
				Lookup: &dto.Query{
					ID: "q-customers", Name: "Customers",
					PersistentObject: &dto.PersistentObject{ID: "po-customer", Type: "Customer"},
				},
			},
		},
	})
}

func TestCreateAttributeDispatch(t *testing.T) {
	po := NewPersistentObject(&stubService{}, &dto.PersistentObject{
		ID: "po-x", Type: "X",
		Attributes: []*dto.Attribute{
			{ID: "a1", Name: "Plain", Type: "String"},
			{ID: "a2", Name: "Ref", Type: "Reference", ObjectID: strp("1")},
			{ID: "a3", Name: "Rows", Type: "AsDetail", Details: &dto.Query{ID: "q-rows"}},
		},
	})

	_, plain := po.GetAttribute("Plain").(*PersistentObjectAttribute)
	assert.True(t, plain)
	_, ref := po.GetAttribute("Ref").(*PersistentObjectAttributeWithReference)
	assert.True(t, ref)
	_, detail := po.GetAttribute("Rows").(*PersistentObjectAttributeAsDetail)
	assert.True(t, detail)
}

func TestReferenceLookupOwnership(t *testing.T) {
	po := referencePO(&stubService{})
	a := po.GetAttribute("Customer").(*PersistentObjectAttributeWithReference)

	require.NotNil(t, a.Lookup())
	assert.Same(t, a, a.Lookup().OwnerAttributeWithReference())
	require.NotNil(t, a.ObjectID())
	assert.Equal(t, "c-1", *a.ObjectID())
	assert.Equal(t, "Name", a.DisplayAttribute())
}

func TestChangeReference(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteAction = func(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error) {
		require.Equal(t, "PersistentObject.SelectReference", action)
		require.Len(t, selectedItems, 1)
		assert.Equal(t, "c-2", selectedItems[0].ID())
		assert.Equal(t, "r1", parameters["PersistentObjectAttributeId"])

		result := parent.ToServiceObject()
		result.Attributes[0].Value = strp("Globex")
		result.Attributes[0].ObjectID = strp("c-2")
		return NewPersistentObject(svc, result), nil
	}

	po := referencePO(svc)
	po.BeginEdit()
	a := po.GetAttribute("Customer").(*PersistentObjectAttributeWithReference)

	require.NoError(t, a.ChangeReferenceByID(context.Background(), "c-2"))

	require.NotNil(t, a.ObjectID())
	assert.Equal(t, "c-2", *a.ObjectID())
	assert.Equal(t, "Globex", a.Value())
}

func TestChangeReferenceReadOnly(t *testing.T) {
	svc := &stubService{}
	d := referencePO(svc).ToServiceObject()
	d.Attributes[0].IsReadOnly = true
	po := NewPersistentObject(svc, d)
	po.BeginEdit()

	a := po.GetAttribute("Customer").(*PersistentObjectAttributeWithReference)
	err := a.ChangeReferenceByID(context.Background(), "c-2")
	require.Error(t, err)
	assert.Empty(t, svc.actionCalls)
}

func TestAddNewReference(t *testing.T) {
	svc := &stubService{}
	svc.onExecuteAction = func(ctx context.Context, action string, parent *PersistentObject, query *Query, selectedItems []*QueryResultItem, parameters Parameters) (*PersistentObject, error) {
		require.Equal(t, "Query.New", action)
		assert.Equal(t, "q-customers", query.ID())
		return NewPersistentObject(svc, &dto.PersistentObject{ID: "po-customer", Type: "Customer", IsNew: true}), nil
	}

	po := referencePO(svc)
	po.BeginEdit()
	a := po.GetAttribute("Customer").(*PersistentObjectAttributeWithReference)

	created, err := a.AddNewReference(context.Background())
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Same(t, a, created.OwnerAttributeWithReference())
	assert.True(t, strings.Contains(created.StateBehavior(), "OpenAsDialog"))
}

func TestReferenceToServiceObject(t *testing.T) {
	po := referencePO(&stubService{})
	a := po.GetAttribute("Customer").(*PersistentObjectAttributeWithReference)

	out := a.ToServiceObject()
	require.NotNil(t, out.ObjectID)
	assert.Equal(t, "c-1", *out.ObjectID)
	assert.Equal(t, "Name", out.DisplayAttribute)
}
