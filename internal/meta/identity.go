package meta

import (
	"fmt"

	"github.com/google/uuid"
)

// Built-in single-field identity types. When a class with application
// identity has exactly one primary-key member and no explicit object-id
// class, the object-id class is taken from this fixed mapping.
const (
	ByteIdentity   = "identity.Byte"
	CharIdentity   = "identity.Char"
	ShortIdentity  = "identity.Short"
	IntIdentity    = "identity.Int"
	LongIdentity   = "identity.Long"
	StringIdentity = "identity.String"
	ObjectIdentity = "identity.Object"
)

// singleFieldIdentityTypes maps a primary-key member's kind to the
// built-in identity wrapper type for it. Kinds missing from the map fall
// back to ObjectIdentity.
var singleFieldIdentityTypes = map[FieldKind]string{
	KindByte:   ByteIdentity,
	KindChar:   CharIdentity,
	KindShort:  ShortIdentity,
	KindInt:    IntIdentity,
	KindLong:   LongIdentity,
	KindString: StringIdentity,
	KindObject: ObjectIdentity,
}

// SingleFieldIdentityType returns the built-in identity type for a
// single primary-key member of the given kind.
func SingleFieldIdentityType(kind FieldKind) string {
	if id, ok := singleFieldIdentityTypes[kind]; ok {
		return id
	}
	return ObjectIdentity
}

// IsSingleFieldIdentityType reports whether the named object-id class is
// one of the built-in single-field identity types.
func IsSingleFieldIdentityType(name string) bool {
	switch name {
	case ByteIdentity, CharIdentity, ShortIdentity, IntIdentity,
		LongIdentity, StringIdentity, ObjectIdentity:
		return true
	}
	return false
}

// SynthesizedPKClassName returns the generated object-id class name used
// when a class declares multiple primary-key members without naming an
// object-id class.
func SynthesizedPKClassName(fullClassName string) string {
	return fullClassName + "PK"
}

// DatastoreID is a surrogate identity issued for datastore-identity
// instances: the owning class plus an opaque key.
type DatastoreID struct {
	Class string
	Key   string
}

// NewDatastoreID issues a fresh surrogate identity for the class
func NewDatastoreID(fullClassName string) DatastoreID {
	return DatastoreID{
		Class: fullClassName,
		Key:   uuid.NewString(),
	}
}

// String returns the canonical "key[class]" form
func (id DatastoreID) String() string {
	return fmt.Sprintf("%s[%s]", id.Key, id.Class)
}
