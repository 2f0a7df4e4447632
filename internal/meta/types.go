// Package meta implements the class-metadata model for Keystone: per-class
// descriptors of identity, inheritance, discriminators, versioning and
// members, together with the manager that resolves them. Descriptors go
// through a two-phase populate/initialise pipeline; once initialised they
// are immutable and safe for lock-free concurrent reads.
package meta

import "fmt"

// IdentityType represents how object identity is defined for a class
type IdentityType int

const (
	// IdentityDatastore means identity is a datastore-provided surrogate
	IdentityDatastore IdentityType = iota
	// IdentityApplication means identity is defined by primary-key members
	IdentityApplication
	// IdentityNondurable means the class has no durable identity
	IdentityNondurable
	// IdentityUnspecified means identity has not been resolved yet
	IdentityUnspecified
)

// String returns the string representation of the identity type
func (t IdentityType) String() string {
	switch t {
	case IdentityDatastore:
		return "datastore"
	case IdentityApplication:
		return "application"
	case IdentityNondurable:
		return "nondurable"
	case IdentityUnspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}

// ParseIdentityType converts a string to an IdentityType
func ParseIdentityType(s string) (IdentityType, error) {
	switch s {
	case "datastore":
		return IdentityDatastore, nil
	case "application":
		return IdentityApplication, nil
	case "nondurable":
		return IdentityNondurable, nil
	case "unspecified", "":
		return IdentityUnspecified, nil
	default:
		return 0, fmt.Errorf("unknown identity type: %s", s)
	}
}

// InheritanceStrategy represents the per-class table strategy
type InheritanceStrategy int

const (
	// StrategyUnspecified defers to the tree strategy default
	StrategyUnspecified InheritanceStrategy = iota
	// StrategyNewTable gives the class its own table
	StrategyNewTable
	// StrategySuperclassTable stores the class in an ancestor's table
	StrategySuperclassTable
	// StrategySubclassTable pushes storage down to subclasses
	StrategySubclassTable
	// StrategyCompleteTable gives the class a table repeating inherited columns
	StrategyCompleteTable
)

// String returns the string representation of the inheritance strategy
func (s InheritanceStrategy) String() string {
	switch s {
	case StrategyNewTable:
		return "new_table"
	case StrategySuperclassTable:
		return "superclass_table"
	case StrategySubclassTable:
		return "subclass_table"
	case StrategyCompleteTable:
		return "complete_table"
	case StrategyUnspecified:
		return "unspecified"
	default:
		return "unknown"
	}
}

// ParseInheritanceStrategy converts a string to an InheritanceStrategy
func ParseInheritanceStrategy(s string) (InheritanceStrategy, error) {
	switch s {
	case "new_table":
		return StrategyNewTable, nil
	case "superclass_table":
		return StrategySuperclassTable, nil
	case "subclass_table":
		return StrategySubclassTable, nil
	case "complete_table":
		return StrategyCompleteTable, nil
	case "unspecified", "":
		return StrategyUnspecified, nil
	default:
		return 0, fmt.Errorf("unknown inheritance strategy: %s", s)
	}
}

// TreeStrategy is the configurable default applied to a whole inheritance
// tree when individual classes leave their strategy unspecified.
type TreeStrategy int

const (
	// TreeSingleTable stores the whole tree in the root's table
	TreeSingleTable TreeStrategy = iota
	// TreeJoined gives every class its own table joined by primary key
	TreeJoined
	// TreeTablePerClass gives every concrete class a complete table
	TreeTablePerClass
)

// String returns the string representation of the tree strategy
func (t TreeStrategy) String() string {
	switch t {
	case TreeSingleTable:
		return "single_table"
	case TreeJoined:
		return "joined"
	case TreeTablePerClass:
		return "table_per_class"
	default:
		return "unknown"
	}
}

// ParseTreeStrategy converts a string to a TreeStrategy
func ParseTreeStrategy(s string) (TreeStrategy, error) {
	switch s {
	case "single_table", "":
		return TreeSingleTable, nil
	case "joined":
		return TreeJoined, nil
	case "table_per_class":
		return TreeTablePerClass, nil
	default:
		return 0, fmt.Errorf("unknown tree strategy: %s", s)
	}
}

// strategyForTree maps a tree strategy to the per-class strategy used for
// non-root classes. The root of a tree always owns a table (new_table)
// except under table_per_class where every concrete class does.
func strategyForTree(t TreeStrategy, isRoot bool) InheritanceStrategy {
	if isRoot {
		if t == TreeTablePerClass {
			return StrategyCompleteTable
		}
		return StrategyNewTable
	}
	switch t {
	case TreeSingleTable:
		return StrategySuperclassTable
	case TreeJoined:
		return StrategyNewTable
	case TreeTablePerClass:
		return StrategyCompleteTable
	default:
		return StrategyNewTable
	}
}

// PersistenceModifier represents how a class participates in persistence
type PersistenceModifier int

const (
	// ModifierPersistenceCapable classes have durable instances
	ModifierPersistenceCapable PersistenceModifier = iota
	// ModifierPersistenceAware classes touch persistent fields but are not stored
	ModifierPersistenceAware
	// ModifierNonPersistent classes are outside persistence entirely
	ModifierNonPersistent
)

// String returns the string representation of the persistence modifier
func (m PersistenceModifier) String() string {
	switch m {
	case ModifierPersistenceCapable:
		return "persistence_capable"
	case ModifierPersistenceAware:
		return "persistence_aware"
	case ModifierNonPersistent:
		return "non_persistent"
	default:
		return "unknown"
	}
}

// RelationType represents the kind of relation a member holds
type RelationType int

const (
	RelationNone RelationType = iota
	RelationOneToOne
	RelationOneToMany
	RelationManyToOne
	RelationManyToMany
)

// String returns the string representation of the relation type
func (r RelationType) String() string {
	switch r {
	case RelationNone:
		return "none"
	case RelationOneToOne:
		return "one_to_one"
	case RelationOneToMany:
		return "one_to_many"
	case RelationManyToOne:
		return "many_to_one"
	case RelationManyToMany:
		return "many_to_many"
	default:
		return "unknown"
	}
}

// ParseRelationType converts a string to a RelationType
func ParseRelationType(s string) (RelationType, error) {
	switch s {
	case "none", "":
		return RelationNone, nil
	case "one_to_one":
		return RelationOneToOne, nil
	case "one_to_many":
		return RelationOneToMany, nil
	case "many_to_one":
		return RelationManyToOne, nil
	case "many_to_many":
		return RelationManyToMany, nil
	default:
		return 0, fmt.Errorf("unknown relation type: %s", s)
	}
}

// DiscriminatorStrategy represents how subclass rows are distinguished
// when multiple classes share a table.
type DiscriminatorStrategy int

const (
	// DiscriminatorNone means no discriminator column
	DiscriminatorNone DiscriminatorStrategy = iota
	// DiscriminatorValueMap uses explicitly declared values
	DiscriminatorValueMap
	// DiscriminatorClassName uses the full class name as the value
	DiscriminatorClassName
)

// String returns the string representation of the discriminator strategy
func (d DiscriminatorStrategy) String() string {
	switch d {
	case DiscriminatorNone:
		return "none"
	case DiscriminatorValueMap:
		return "value_map"
	case DiscriminatorClassName:
		return "class_name"
	default:
		return "unknown"
	}
}

// ParseDiscriminatorStrategy converts a string to a DiscriminatorStrategy
func ParseDiscriminatorStrategy(s string) (DiscriminatorStrategy, error) {
	switch s {
	case "none", "":
		return DiscriminatorNone, nil
	case "value_map":
		return DiscriminatorValueMap, nil
	case "class_name":
		return DiscriminatorClassName, nil
	default:
		return 0, fmt.Errorf("unknown discriminator strategy: %s", s)
	}
}

// DiscriminatorMetaData describes the discriminator for a class
type DiscriminatorMetaData struct {
	Strategy DiscriminatorStrategy
	Column   string
	Value    string

	// Inherited marks a spec taken from an ancestor rather than declared
	Inherited bool
}

// EffectiveValue returns the discriminator value for a class, falling back
// to the full class name under the class_name strategy.
func (d *DiscriminatorMetaData) EffectiveValue(fullClassName string) string {
	if d.Strategy == DiscriminatorClassName || d.Value == "" {
		return fullClassName
	}
	return d.Value
}

// VersionStrategy represents the optimistic-locking strategy for a class
type VersionStrategy int

const (
	VersionNone VersionStrategy = iota
	VersionNumber
	VersionDateTime
	VersionStateImage
)

// String returns the string representation of the version strategy
func (v VersionStrategy) String() string {
	switch v {
	case VersionNone:
		return "none"
	case VersionNumber:
		return "version_number"
	case VersionDateTime:
		return "date_time"
	case VersionStateImage:
		return "state_image"
	default:
		return "unknown"
	}
}

// VersionMetaData describes optimistic-locking configuration for a class
type VersionMetaData struct {
	Strategy VersionStrategy
	Column   string
	// MemberName names the member surfacing the version, if any
	MemberName string
}

// LifecycleState is the resolution state of a ClassMetaData
type LifecycleState int

const (
	// StateUnpopulated is the state at construction
	StateUnpopulated LifecycleState = iota
	// StatePopulated means defaults and inherited attributes are resolved
	StatePopulated
	// StateInitialised means position tables are computed; terminal
	StateInitialised
)

// String returns the string representation of the lifecycle state
func (s LifecycleState) String() string {
	switch s {
	case StateUnpopulated:
		return "unpopulated"
	case StatePopulated:
		return "populated"
	case StateInitialised:
		return "initialised"
	default:
		return "unknown"
	}
}
