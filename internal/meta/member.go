package meta

import "fmt"

// FieldModifier represents how a member participates in persistence
type FieldModifier int

const (
	// FieldPersistent members are stored
	FieldPersistent FieldModifier = iota
	// FieldTransactional members are managed but not stored
	FieldTransactional
	// FieldNone members are ignored by persistence
	FieldNone
)

// String returns the string representation of the field modifier
func (m FieldModifier) String() string {
	switch m {
	case FieldPersistent:
		return "persistent"
	case FieldTransactional:
		return "transactional"
	case FieldNone:
		return "none"
	default:
		return "unknown"
	}
}

// MemberMetaData is the per-member (field/property) descriptor: its type,
// primary-key flag, fetch-group membership and relation kind. Members are
// owned by exactly one ClassMetaData; the declaring class is recorded so
// overrides can be detected across the inheritance chain.
type MemberMetaData struct {
	Name           string
	DeclaringClass string // full name of the class declaring this member
	Type           *TypeSpec
	Modifier       FieldModifier

	PrimaryKey bool
	Column     string
	Embedded   bool

	// DFG is the default-fetch-group flag. When nil it is defaulted from
	// the type during populate.
	DFG *bool

	relationType RelationType
	// relationSet tracks whether the relation type was declared explicitly
	relationSet bool

	// absPosition is the absolute position across the inheritance chain,
	// assigned during initialise. -1 until then.
	absPosition int

	parent *ClassMetaData
}

// NewMemberMetaData creates a member descriptor for the given name/type
func NewMemberMetaData(name string, spec *TypeSpec) *MemberMetaData {
	return &MemberMetaData{
		Name:        name,
		Type:        spec,
		Modifier:    FieldPersistent,
		absPosition: -1,
	}
}

// SetRelationType declares the relation type explicitly
func (m *MemberMetaData) SetRelationType(r RelationType) *MemberMetaData {
	m.relationType = r
	m.relationSet = true
	return m
}

// RelationType returns the relation kind of the member. When not declared
// it is derived from the type spec: a reference is many-to-one, a
// collection or map of references is one-to-many.
func (m *MemberMetaData) RelationType() RelationType {
	if m.relationSet {
		return m.relationType
	}
	if m.Type == nil || !m.Type.IsRelation() {
		return RelationNone
	}
	if m.Type.Kind == KindReference {
		return RelationManyToOne
	}
	return RelationOneToMany
}

// IsRelation reports whether the member carries a relation
func (m *MemberMetaData) IsRelation() bool {
	return m.RelationType() != RelationNone
}

// InDefaultFetchGroup reports the resolved default-fetch-group membership
func (m *MemberMetaData) InDefaultFetchGroup() bool {
	if m.DFG != nil {
		return *m.DFG
	}
	if m.Type == nil {
		return false
	}
	return m.Type.DefaultInFetchGroup()
}

// IsSCOMutable reports whether the member needs a change-tracking wrapper
func (m *MemberMetaData) IsSCOMutable() bool {
	return m.Type != nil && m.Type.IsSCOMutable()
}

// AbsolutePosition returns the member's absolute position across the
// inheritance chain. Valid only after the owning class is initialised.
func (m *MemberMetaData) AbsolutePosition() int {
	return m.absPosition
}

// FullName returns "DeclaringClass.name"
func (m *MemberMetaData) FullName() string {
	if m.DeclaringClass == "" {
		return m.Name
	}
	return fmt.Sprintf("%s.%s", m.DeclaringClass, m.Name)
}

// TargetClass returns the referenced class name for relation members, or
// the empty string for non-relations.
func (m *MemberMetaData) TargetClass() string {
	if m.Type == nil {
		return ""
	}
	if m.Type.Kind == KindReference {
		return m.Type.Target
	}
	if m.Type.Kind == KindCollection && m.Type.Element != nil && m.Type.Element.Kind == KindReference {
		return m.Type.Element.Target
	}
	if m.Type.Kind == KindMap && m.Type.Value != nil && m.Type.Value.Kind == KindReference {
		return m.Type.Value.Target
	}
	return ""
}

// populateDefaults fills in attributes that can be defaulted without
// cross-class knowledge. Called by the owning class during populate.
func (m *MemberMetaData) populateDefaults(owner *ClassMetaData) {
	m.parent = owner
	if m.DeclaringClass == "" {
		m.DeclaringClass = owner.FullName
	}
	if m.Column == "" && m.Modifier == FieldPersistent {
		m.Column = toSnakeCase(m.Name)
	}
	if m.DFG == nil && m.Modifier != FieldPersistent {
		// Non-persistent members never join the default fetch group
		f := false
		m.DFG = &f
	}
}
