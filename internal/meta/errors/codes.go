package errors

// Error code constants organized by phase
// M001-M099: Registration errors
// M100-M199: Populate errors
// M200-M299: Initialise errors
// M300-M399: Graph / reference errors
// M400-M499: Schema generation errors

const (
	// Registration errors (M001-M099)
	ErrDuplicateClass       = "M001"
	ErrDuplicateEntityName  = "M002"
	ErrClassNotRegistered   = "M003"
	ErrInvalidClassName     = "M004"
	ErrDuplicateMember      = "M005"
	ErrNotPersistenceCapable = "M006"

	// Populate errors (M100-M199)
	ErrNotPopulated            = "M100"
	ErrIdentityTypeConflict    = "M101"
	ErrNoPrimaryKeyMembers     = "M102"
	ErrObjectIDClassMissing    = "M103"
	ErrObjectIDClassUnsuitable = "M104"
	ErrSuperclassTableMissing  = "M105"
	ErrSuperclassNotFound      = "M106"
	ErrInvalidInheritance      = "M107"
	ErrDiscriminatorMissing    = "M108"
	ErrDiscriminatorDuplicate  = "M109"
	ErrDiscriminatorRedefined  = "M110" // warning severity
	ErrPrimaryKeyInSubclass    = "M111"
	ErrVersionInvalid          = "M112"
	ErrSyntheticPK             = "M113" // warning severity unless enhancing
	ErrNotDatastoreIdentity    = "M114"

	// Initialise errors (M200-M299)
	ErrNotInitialised        = "M200"
	ErrAlreadyInitialised    = "M201"
	ErrMemberPositionInvalid = "M202"
	ErrOverrideConflict      = "M203"
	ErrMutationAfterInit     = "M204"

	// Graph / reference errors (M300-M399)
	ErrReferenceCycle   = "M300"
	ErrUnknownReference = "M301"
	ErrViewCycle        = "M302"

	// Schema generation errors (M400-M499)
	ErrUnmappableType   = "M400"
	ErrTableNameMissing = "M401"
	ErrDDLFailed        = "M402"
	ErrDuplicateTable   = "M403"
)

// CodeDescriptions maps error codes to short descriptions, used by the
// CLI and the inspector when presenting errors.
var CodeDescriptions = map[string]string{
	ErrDuplicateClass:          "class is already registered",
	ErrDuplicateEntityName:     "entity name is already in use",
	ErrClassNotRegistered:      "class is not registered",
	ErrInvalidClassName:        "invalid class name",
	ErrDuplicateMember:         "duplicate member name",
	ErrNotPersistenceCapable:   "class is not persistence-capable",
	ErrNotPopulated:            "class metadata is not populated",
	ErrIdentityTypeConflict:    "identity type conflicts with superclass",
	ErrNoPrimaryKeyMembers:     "application identity requires primary-key members",
	ErrObjectIDClassMissing:    "no object-id class could be determined",
	ErrObjectIDClassUnsuitable: "object-id class is unsuitable",
	ErrSuperclassTableMissing:  "no ancestor owns a table",
	ErrSuperclassNotFound:      "persistent superclass not found",
	ErrInvalidInheritance:      "invalid inheritance specification",
	ErrDiscriminatorMissing:    "discriminator required but not defined",
	ErrDiscriminatorDuplicate:  "duplicate discriminator value in inheritance tree",
	ErrDiscriminatorRedefined:  "inherited discriminator column redefined",
	ErrPrimaryKeyInSubclass:    "primary-key member declared below the root class",
	ErrVersionInvalid:          "invalid version specification",
	ErrSyntheticPK:             "object-id class synthesized for composite primary key",
	ErrNotDatastoreIdentity:    "class does not use datastore identity",
	ErrNotInitialised:          "class metadata is not initialised",
	ErrAlreadyInitialised:      "class metadata is already initialised",
	ErrMemberPositionInvalid:   "member position out of range",
	ErrOverrideConflict:        "member overrides an inherited member inconsistently",
	ErrMutationAfterInit:       "metadata cannot change after initialisation",
	ErrReferenceCycle:          "circular class reference",
	ErrUnknownReference:        "reference to unknown class",
	ErrViewCycle:               "circular view-definition reference",
	ErrUnmappableType:          "type has no column mapping",
	ErrTableNameMissing:        "table name could not be determined",
	ErrDDLFailed:               "DDL execution failed",
	ErrDuplicateTable:          "table already exists",
}

// Describe returns the short description for a code, or the code itself
// when the code is unknown.
func Describe(code string) string {
	if desc, ok := CodeDescriptions[code]; ok {
		return desc
	}
	return code
}
