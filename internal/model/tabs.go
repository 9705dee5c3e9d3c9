package model

import "sort"

// PersistentObjectTab — вкладка объекта: либо вкладка атрибутов,
// либо вкладка вложенного запроса.
type PersistentObjectTab interface {
	Label() string
	Parent() *PersistentObject
	IsVisible() bool
}

// PersistentObjectAttributeGroup — группа атрибутов внутри вкладки.
type PersistentObjectAttributeGroup struct {
	Key   string
	Index int

	parent     *PersistentObject
	attributes []*PersistentObjectAttribute
}

// NewPersistentObjectAttributeGroup создаёт группу с начальным составом.
func NewPersistentObjectAttributeGroup(key string, attributes []*PersistentObjectAttribute, parent *PersistentObject) *PersistentObjectAttributeGroup {
	return &PersistentObjectAttributeGroup{
		Key:        key,
		parent:     parent,
		attributes: append([]*PersistentObjectAttribute(nil), attributes...),
	}
}

func (g *PersistentObjectAttributeGroup) Parent() *PersistentObject { return g.parent }

// Attributes — атрибуты группы, упорядоченные по offset.
func (g *PersistentObjectAttributeGroup) Attributes() []*PersistentObjectAttribute {
	return g.attributes
}

// GetAttribute возвращает атрибут группы по имени.
func (g *PersistentObjectAttributeGroup) GetAttribute(name string) *PersistentObjectAttribute {
	for _, a := range g.attributes {
		if a.name == name {
			return a
		}
	}
	return nil
}

func (g *PersistentObjectAttributeGroup) contains(attr *PersistentObjectAttribute) bool {
	for _, a := range g.attributes {
		if a == attr {
			return true
		}
	}
	return false
}

func (g *PersistentObjectAttributeGroup) add(attr *PersistentObjectAttribute) {
	g.attributes = append(g.attributes, attr)
	sort.SliceStable(g.attributes, func(i, j int) bool {
		return g.attributes[i].offset < g.attributes[j].offset
	})
}

func (g *PersistentObjectAttributeGroup) remove(attr *PersistentObjectAttribute) {
	for i, a := range g.attributes {
		if a == attr {
			g.attributes = append(g.attributes[:i:i], g.attributes[i+1:]...)
			return
		}
	}
}

func (g *PersistentObjectAttributeGroup) minOffset() int {
	if len(g.attributes) == 0 {
		return 0
	}
	min := g.attributes[0].offset
	for _, a := range g.attributes[1:] {
		if a.offset < min {
			min = a.offset
		}
	}
	return min
}

// PersistentObjectAttributeTab — вкладка, собранная из групп атрибутов.
type PersistentObjectAttributeTab struct {
	Key         string
	ID          string
	Name        string
	Layout      string
	ColumnCount int

	parent    *PersistentObject
	groups    []*PersistentObjectAttributeGroup
	isVisible bool
}

// NewPersistentObjectAttributeTab создаёт вкладку атрибутов.
func NewPersistentObjectAttributeTab(key, id, name, layout string, columnCount int, groups []*PersistentObjectAttributeGroup, parent *PersistentObject, isVisible bool) *PersistentObjectAttributeTab {
	return &PersistentObjectAttributeTab{
		Key:         key,
		ID:          id,
		Name:        name,
		Layout:      layout,
		ColumnCount: columnCount,
		parent:      parent,
		groups:      groups,
		isVisible:   isVisible,
	}
}

func (t *PersistentObjectAttributeTab) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Key
}

func (t *PersistentObjectAttributeTab) Parent() *PersistentObject { return t.parent }
func (t *PersistentObjectAttributeTab) IsVisible() bool           { return t.isVisible }

// Groups — группы вкладки, упорядоченные по минимальному offset.
func (t *PersistentObjectAttributeTab) Groups() []*PersistentObjectAttributeGroup { return t.groups }

// Attributes — все атрибуты вкладки по её группам.
func (t *PersistentObjectAttributeTab) Attributes() []*PersistentObjectAttribute {
	var result []*PersistentObjectAttribute
	for _, g := range t.groups {
		result = append(result, g.attributes...)
	}
	return result
}

// GetAttribute возвращает атрибут вкладки по имени.
func (t *PersistentObjectAttributeTab) GetAttribute(name string) *PersistentObjectAttribute {
	for _, g := range t.groups {
		if a := g.GetAttribute(name); a != nil {
			return a
		}
	}
	return nil
}

func (t *PersistentObjectAttributeTab) findGroup(key string) *PersistentObjectAttributeGroup {
	for _, g := range t.groups {
		if g.Key == key {
			return g
		}
	}
	return nil
}

func (t *PersistentObjectAttributeTab) addGroup(g *PersistentObjectAttributeGroup) {
	t.groups = append(t.groups, g)
	t.sortGroups()
}

func (t *PersistentObjectAttributeTab) removeGroup(g *PersistentObjectAttributeGroup) {
	for i, x := range t.groups {
		if x == g {
			t.groups = append(t.groups[:i:i], t.groups[i+1:]...)
			break
		}
	}
	t.renumberGroups()
}

func (t *PersistentObjectAttributeTab) sortGroups() {
	sort.SliceStable(t.groups, func(i, j int) bool {
		return t.groups[i].minOffset() < t.groups[j].minOffset()
	})
	t.renumberGroups()
}

func (t *PersistentObjectAttributeTab) renumberGroups() {
	for n, g := range t.groups {
		g.Index = n
	}
}

func (t *PersistentObjectAttributeTab) minOffset() int {
	min := 0
	first := true
	for _, g := range t.groups {
		for _, a := range g.attributes {
			if first || a.offset < min {
				min = a.offset
				first = false
			}
		}
	}
	return min
}

func (t *PersistentObjectAttributeTab) recomputeVisibility() {
	t.isVisible = false
	for _, g := range t.groups {
		for _, a := range g.attributes {
			if a.isVisible {
				t.isVisible = true
				return
			}
		}
	}
}

// PersistentObjectQueryTab — вкладка с вложенным запросом объекта.
type PersistentObjectQueryTab struct {
	query *Query
}

func NewPersistentObjectQueryTab(query *Query) *PersistentObjectQueryTab {
	return &PersistentObjectQueryTab{query: query}
}

func (t *PersistentObjectQueryTab) Query() *Query { return t.query }

func (t *PersistentObjectQueryTab) Label() string {
	return t.query.Label()
}

func (t *PersistentObjectQueryTab) Parent() *PersistentObject { return t.query.parent }
func (t *PersistentObjectQueryTab) IsVisible() bool           { return true }
