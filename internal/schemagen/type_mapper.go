// Package schemagen generates PostgreSQL DDL from resolved class metadata.
// Tables are emitted in dependency order so foreign keys always reference
// existing tables; view-backed classes become CREATE VIEW statements with
// their class references interpolated.
package schemagen

import (
	"fmt"

	"github.com/keystone-orm/keystone/internal/meta"
)

// TypeMapper maps member type specs to PostgreSQL column types
type TypeMapper struct{}

// NewTypeMapper creates a new TypeMapper
func NewTypeMapper() *TypeMapper {
	return &TypeMapper{}
}

// MapKind converts a field kind to a PostgreSQL column type
func (tm *TypeMapper) MapKind(kind meta.FieldKind) (string, error) {
	switch kind {
	case meta.KindBool:
		return "BOOLEAN", nil
	case meta.KindByte, meta.KindShort:
		return "SMALLINT", nil
	case meta.KindChar:
		return "CHAR(1)", nil
	case meta.KindInt:
		return "INTEGER", nil
	case meta.KindLong:
		return "BIGINT", nil
	case meta.KindFloat:
		return "REAL", nil
	case meta.KindDouble:
		return "DOUBLE PRECISION", nil
	case meta.KindDecimal:
		return "NUMERIC", nil
	case meta.KindString:
		return "VARCHAR(255)", nil
	case meta.KindBytes:
		return "BYTEA", nil
	case meta.KindTime:
		return "TIMESTAMPTZ", nil
	case meta.KindUUID:
		return "UUID", nil
	case meta.KindJSON, meta.KindObject, meta.KindMap:
		return "JSONB", nil
	default:
		return "", fmt.Errorf("kind %s has no column mapping", kind)
	}
}

// MapType converts a TypeSpec to a PostgreSQL column type
func (tm *TypeMapper) MapType(spec *meta.TypeSpec) (string, error) {
	if spec == nil {
		return "", fmt.Errorf("type spec cannot be nil")
	}

	switch spec.Kind {
	case meta.KindCollection:
		if spec.Element != nil && spec.Element.Kind == meta.KindReference {
			return "", fmt.Errorf("relation collections map to foreign keys, not columns")
		}
		// Collections of scalars are stored inline
		return "JSONB", nil
	case meta.KindReference:
		return "", fmt.Errorf("references map to foreign-key columns, not direct columns")
	case meta.KindDecimal:
		if spec.Precision != nil && spec.Scale != nil {
			return fmt.Sprintf("NUMERIC(%d,%d)", *spec.Precision, *spec.Scale), nil
		}
		return "NUMERIC", nil
	case meta.KindString:
		if spec.Length != nil {
			return fmt.Sprintf("VARCHAR(%d)", *spec.Length), nil
		}
		return "VARCHAR(255)", nil
	default:
		return tm.MapKind(spec.Kind)
	}
}

// MapNullability returns the nullability clause for a spec
func (tm *TypeMapper) MapNullability(spec *meta.TypeSpec) string {
	if spec != nil && spec.Nullable {
		return "NULL"
	}
	return "NOT NULL"
}

// QuoteIdentifier quotes a SQL identifier
func QuoteIdentifier(name string) string {
	return `"` + name + `"`
}
