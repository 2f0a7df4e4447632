package meta

import "fmt"

// FieldKind represents the storage kind of a member's type
type FieldKind int

const (
	KindBool FieldKind = iota
	KindByte
	KindChar
	KindShort
	KindInt
	KindLong
	KindFloat
	KindDouble
	KindDecimal
	KindString
	KindBytes
	KindTime
	KindUUID
	KindJSON
	KindObject
	KindCollection
	KindMap
	KindReference
)

// String returns the string representation of the field kind
func (k FieldKind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindByte:
		return "byte"
	case KindChar:
		return "char"
	case KindShort:
		return "short"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindFloat:
		return "float"
	case KindDouble:
		return "double"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindTime:
		return "time"
	case KindUUID:
		return "uuid"
	case KindJSON:
		return "json"
	case KindObject:
		return "object"
	case KindCollection:
		return "collection"
	case KindMap:
		return "map"
	case KindReference:
		return "reference"
	default:
		return "unknown"
	}
}

// ParseFieldKind converts a string to a FieldKind
func ParseFieldKind(s string) (FieldKind, error) {
	switch s {
	case "bool":
		return KindBool, nil
	case "byte":
		return KindByte, nil
	case "char":
		return KindChar, nil
	case "short":
		return KindShort, nil
	case "int":
		return KindInt, nil
	case "long":
		return KindLong, nil
	case "float":
		return KindFloat, nil
	case "double":
		return KindDouble, nil
	case "decimal":
		return KindDecimal, nil
	case "string":
		return KindString, nil
	case "bytes":
		return KindBytes, nil
	case "time":
		return KindTime, nil
	case "uuid":
		return KindUUID, nil
	case "json":
		return KindJSON, nil
	case "object":
		return KindObject, nil
	case "collection":
		return KindCollection, nil
	case "map":
		return KindMap, nil
	case "reference":
		return KindReference, nil
	default:
		return 0, fmt.Errorf("unknown field kind: %s", s)
	}
}

// TypeSpec represents a member's type with nullability and element types
// for container kinds.
type TypeSpec struct {
	Kind     FieldKind
	GoType   string // Go type name as reported by reflection, e.g. "int64"
	Nullable bool

	// Target names the referenced class for reference kinds, and the
	// element class for collections of persistable elements.
	Target string

	Element *TypeSpec // For collection element
	Key     *TypeSpec // For map key
	Value   *TypeSpec // For map value

	Length    *int // For string(N)
	Precision *int // For decimal(P,S)
	Scale     *int // For decimal(P,S)
}

// String returns a string representation of the TypeSpec
func (t *TypeSpec) String() string {
	var s string
	switch {
	case t.Kind == KindCollection && t.Element != nil:
		s = fmt.Sprintf("collection<%s>", t.Element.String())
	case t.Kind == KindMap && t.Key != nil && t.Value != nil:
		s = fmt.Sprintf("map<%s, %s>", t.Key.String(), t.Value.String())
	case t.Kind == KindReference && t.Target != "":
		s = t.Target
	default:
		s = t.Kind.String()
		if t.Length != nil {
			s = fmt.Sprintf("%s(%d)", s, *t.Length)
		}
		if t.Precision != nil && t.Scale != nil {
			s = fmt.Sprintf("%s(%d,%d)", s, *t.Precision, *t.Scale)
		}
	}

	if t.Nullable {
		s += "?"
	}
	return s
}

// IsNumeric returns true if the type is a numeric kind
func (t *TypeSpec) IsNumeric() bool {
	switch t.Kind {
	case KindByte, KindShort, KindInt, KindLong, KindFloat, KindDouble, KindDecimal:
		return true
	}
	return false
}

// IsContainer returns true for collection and map kinds
func (t *TypeSpec) IsContainer() bool {
	return t.Kind == KindCollection || t.Kind == KindMap
}

// IsSCOMutable reports whether values of this type are second-class
// mutable objects needing change-tracking wrappers: containers, times and
// raw byte slices.
func (t *TypeSpec) IsSCOMutable() bool {
	switch t.Kind {
	case KindCollection, KindMap, KindTime, KindBytes, KindJSON:
		return true
	}
	return false
}

// IsRelation reports whether the type can carry a relation to another
// persistable class.
func (t *TypeSpec) IsRelation() bool {
	if t.Kind == KindReference {
		return true
	}
	if t.Kind == KindCollection && t.Element != nil {
		return t.Element.Kind == KindReference
	}
	if t.Kind == KindMap && t.Value != nil {
		return t.Value.Kind == KindReference
	}
	return false
}

// DefaultInFetchGroup reports whether members of this type belong to the
// default fetch group when not declared either way. Relations, containers
// and large binary fields default out; plain scalar fields default in.
func (t *TypeSpec) DefaultInFetchGroup() bool {
	if t.IsRelation() || t.IsContainer() {
		return false
	}
	switch t.Kind {
	case KindBytes, KindJSON, KindObject:
		return false
	}
	return true
}
