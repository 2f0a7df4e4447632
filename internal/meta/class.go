package meta

import (
	"sort"
	"strings"
	"sync/atomic"

	merr "github.com/keystone-orm/keystone/internal/meta/errors"
)

// ClassMetaData is the per-class entity descriptor: identity, inheritance,
// discriminator, version and member information, plus the derived position
// tables computed at initialise time.
//
// A descriptor passes through three states: unpopulated at construction,
// populated once defaults and inherited attributes are resolved, and
// initialised once the absolute member table is computed. Initialised is
// terminal; mutators fail from then on.
type ClassMetaData struct {
	Name        string
	PackageName string
	FullName    string
	EntityName  string

	Modifier     PersistenceModifier
	IdentityType IdentityType
	// ObjectIDClass names the object-id class for application identity.
	// Left empty it is determined during populate.
	ObjectIDClass string

	Table   string
	Catalog string
	Schema  string

	// ViewDefinition holds a view template for view-backed classes.
	// References to other classes appear as {ClassName} placeholders.
	ViewDefinition string

	Detachable   bool
	EmbeddedOnly bool

	SuperclassName string

	Inheritance   InheritanceStrategy
	Discriminator *DiscriminatorMetaData
	Version       *VersionMetaData

	members []*MemberMetaData

	// Resolved state. state is read on the manager's lock-free lookup
	// path while the pipeline writes it, so it is atomic; the store at
	// the end of Initialise publishes the position tables below.
	state        atomic.Int32 // LifecycleState
	superclass   *ClassMetaData
	instantiable bool
	pkMemberCount int // PK members across the chain, counted at populate

	// Absolute member table, root-first. Index == absolute position.
	allMembers    []*MemberMetaData
	membersByName map[string]*MemberMetaData
	inheritedMemberCount int

	pkPositions       []int
	dfgPositions      []int
	scoPositions      []int
	relationPositions []int
}

// NewClassMetaData creates an unpopulated descriptor for pkg.name
func NewClassMetaData(pkg, name string) *ClassMetaData {
	full := name
	if pkg != "" {
		full = pkg + "." + name
	}
	return &ClassMetaData{
		Name:         name,
		PackageName:  pkg,
		FullName:     full,
		EntityName:   name,
		Modifier:     ModifierPersistenceCapable,
		IdentityType: IdentityUnspecified,
		instantiable: true,
	}
}

// State returns the current lifecycle state
func (c *ClassMetaData) State() LifecycleState {
	return LifecycleState(c.state.Load())
}

// setState advances the lifecycle. Pipeline code only, under the
// manager's update lock.
func (c *ClassMetaData) setState(s LifecycleState) {
	c.state.Store(int32(s))
}

// IsPopulated reports whether the descriptor has reached at least POPULATED
func (c *ClassMetaData) IsPopulated() bool {
	return c.State() >= StatePopulated
}

// IsInitialised reports whether the descriptor is in its terminal state
func (c *ClassMetaData) IsInitialised() bool {
	return c.State() == StateInitialised
}

// checkPopulated guards accessors that need populate-derived attributes
func (c *ClassMetaData) checkPopulated() error {
	if c.State() < StatePopulated {
		return merr.New("populate", merr.ErrNotPopulated, c.FullName,
			"metadata accessed before populate")
	}
	return nil
}

// checkInitialised guards accessors that need the absolute member table
func (c *ClassMetaData) checkInitialised() error {
	if c.State() < StateInitialised {
		return merr.New("initialise", merr.ErrNotInitialised, c.FullName,
			"metadata accessed before initialise")
	}
	return nil
}

// checkMutable guards mutators; descriptors freeze at initialise
func (c *ClassMetaData) checkMutable() error {
	if c.State() == StateInitialised {
		return merr.New("initialise", merr.ErrMutationAfterInit, c.FullName,
			"metadata cannot change after initialisation")
	}
	return nil
}

// AddMember adds a declared member to the class. Fails on duplicate names
// and once the descriptor is populated.
func (c *ClassMetaData) AddMember(m *MemberMetaData) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	if c.State() != StateUnpopulated {
		return merr.New("populate", merr.ErrMutationAfterInit, c.FullName,
			"members cannot be added after populate")
	}
	for _, existing := range c.members {
		if existing.Name == m.Name {
			return merr.NewMember("register", merr.ErrDuplicateMember,
				c.FullName, m.Name, "duplicate member name")
		}
	}
	c.members = append(c.members, m)
	return nil
}

// SetIdentityType declares the identity type. Fails after initialisation.
func (c *ClassMetaData) SetIdentityType(t IdentityType) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	c.IdentityType = t
	return nil
}

// SetObjectIDClass declares an explicit object-id class
func (c *ClassMetaData) SetObjectIDClass(name string) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	c.ObjectIDClass = name
	return nil
}

// SetDiscriminator declares the discriminator spec
func (c *ClassMetaData) SetDiscriminator(d *DiscriminatorMetaData) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	c.Discriminator = d
	return nil
}

// SetVersion declares the version spec
func (c *ClassMetaData) SetVersion(v *VersionMetaData) error {
	if err := c.checkMutable(); err != nil {
		return err
	}
	c.Version = v
	return nil
}

// DeclaredMembers returns the members declared on this class, in
// declaration order.
func (c *ClassMetaData) DeclaredMembers() []*MemberMetaData {
	return c.members
}

// Superclass returns the resolved persistent superclass descriptor, nil
// for root classes. Valid once populated.
func (c *ClassMetaData) Superclass() *ClassMetaData {
	return c.superclass
}

// Root returns the root descriptor of the inheritance tree
func (c *ClassMetaData) Root() *ClassMetaData {
	root := c
	for root.superclass != nil {
		root = root.superclass
	}
	return root
}

// IsDescendantOf reports whether full names an ancestor of this class
func (c *ClassMetaData) IsDescendantOf(full string) bool {
	for sup := c.superclass; sup != nil; sup = sup.superclass {
		if sup.FullName == full {
			return true
		}
	}
	return false
}

// IsInstantiable reports whether instances of this class can be stored.
// A class using subclass-table strategy with no owning ancestor and no
// identity information is managed only through its subclasses.
func (c *ClassMetaData) IsInstantiable() bool {
	return c.instantiable
}

// TableOwner returns the descriptor whose table stores instances of this
// class: the class itself for table-owning strategies, or the nearest
// ancestor owning a table for superclass-table. Returns nil when no class
// in the chain owns a table.
func (c *ClassMetaData) TableOwner() *ClassMetaData {
	cur := c
	for cur != nil {
		switch cur.Inheritance {
		case StrategyNewTable, StrategyCompleteTable:
			return cur
		case StrategySuperclassTable:
			cur = cur.superclass
		case StrategySubclassTable:
			// Storage is pushed down; this chain owns nothing above here.
			return nil
		default:
			return nil
		}
	}
	return nil
}

// Populate resolves defaults, the persistent superclass, identity,
// inheritance strategy, object-id class and discriminator consistency.
// Already-populated descriptors, initialised ones included, are a no-op
// so subclasses can repopulate a shared ancestor in any lookup order.
// The manager's update lock must be held by the caller.
func (c *ClassMetaData) Populate(mgr *MetaDataManager) error {
	if c.State() >= StatePopulated {
		return nil
	}

	if err := c.resolveSuperclass(mgr); err != nil {
		return err
	}
	if err := c.resolveIdentity(mgr); err != nil {
		return err
	}
	if err := c.resolveInheritance(mgr); err != nil {
		return err
	}

	// Member defaults need the resolved full name and modifiers
	for _, m := range c.members {
		m.populateDefaults(c)
	}

	if err := c.resolveObjectID(mgr); err != nil {
		return err
	}
	if err := c.resolveVersion(); err != nil {
		return err
	}
	if err := c.resolveDiscriminator(mgr); err != nil {
		return err
	}

	c.setState(StatePopulated)
	return nil
}

// resolveSuperclass resolves and populates the persistent superclass
func (c *ClassMetaData) resolveSuperclass(mgr *MetaDataManager) error {
	if c.SuperclassName == "" {
		return nil
	}
	sup := mgr.lookupLocked(c.SuperclassName)
	if sup == nil {
		return merr.Newf("populate", merr.ErrSuperclassNotFound, c.FullName,
			"persistent superclass %s is not registered", c.SuperclassName)
	}
	if err := sup.Populate(mgr); err != nil {
		return err
	}
	c.superclass = sup
	return nil
}

// resolveIdentity inherits or defaults the identity type and detachability
func (c *ClassMetaData) resolveIdentity(mgr *MetaDataManager) error {
	if c.superclass != nil {
		rootIdentity := c.superclass.Root().IdentityType
		if c.IdentityType == IdentityUnspecified {
			c.IdentityType = rootIdentity
		} else if c.IdentityType != rootIdentity {
			return merr.Newf("populate", merr.ErrIdentityTypeConflict, c.FullName,
				"identity type %s conflicts with root %s identity %s",
				c.IdentityType, c.superclass.Root().FullName, rootIdentity).
				WithHint("all classes in an inheritance tree share one identity type")
		}
		if c.superclass.Detachable {
			c.Detachable = true
		}
		return nil
	}

	if c.IdentityType == IdentityUnspecified {
		// Root default: application identity when PK members are declared,
		// datastore identity otherwise.
		if len(c.pkMembersDeclared()) > 0 {
			c.IdentityType = IdentityApplication
		} else {
			c.IdentityType = IdentityDatastore
		}
	}
	return nil
}

// resolveInheritance defaults the strategy from the tree strategy and
// validates table ownership.
func (c *ClassMetaData) resolveInheritance(mgr *MetaDataManager) error {
	if c.Inheritance == StrategyUnspecified {
		c.Inheritance = strategyForTree(mgr.treeStrategy, c.superclass == nil)
	}

	switch c.Inheritance {
	case StrategyNewTable, StrategyCompleteTable:
		if c.Table == "" {
			c.Table = toSnakeCase(c.Name)
		}
	case StrategySuperclassTable:
		if c.superclass == nil {
			return merr.New("populate", merr.ErrInvalidInheritance, c.FullName,
				"superclass_table strategy on a root class")
		}
		if c.superclass.TableOwner() == nil {
			return merr.New("populate", merr.ErrSuperclassTableMissing, c.FullName,
				"superclass_table strategy but no ancestor owns a table")
		}
	}
	return nil
}

// pkMembersDeclared returns the PK members declared on this class
func (c *ClassMetaData) pkMembersDeclared() []*MemberMetaData {
	var pks []*MemberMetaData
	for _, m := range c.members {
		if m.PrimaryKey {
			pks = append(pks, m)
		}
	}
	return pks
}

// pkMembersInChain returns PK members across the inheritance chain,
// root-first.
func (c *ClassMetaData) pkMembersInChain() []*MemberMetaData {
	var pks []*MemberMetaData
	if c.superclass != nil {
		pks = c.superclass.pkMembersInChain()
	}
	return append(pks, c.pkMembersDeclared()...)
}

// resolveObjectID determines the object-id class for application identity
func (c *ClassMetaData) resolveObjectID(mgr *MetaDataManager) error {
	declared := c.pkMembersDeclared()

	// PK members belong at the definition point of the identity, i.e. the
	// root of the tree.
	if c.superclass != nil && len(declared) > 0 &&
		c.superclass.Root().IdentityType == IdentityApplication {
		return merr.NewMember("populate", merr.ErrPrimaryKeyInSubclass,
			c.FullName, declared[0].Name,
			"primary-key member declared below the root class")
	}

	if c.IdentityType != IdentityApplication {
		return nil
	}

	pks := c.pkMembersInChain()
	c.pkMemberCount = len(pks)

	if c.ObjectIDClass == "" && c.superclass != nil {
		c.ObjectIDClass = c.superclass.ObjectIDClass
	}

	if len(pks) == 0 {
		// No way to identify instances. With subclass-table strategy and
		// no owning ancestor the class is simply not instantiated on its
		// own; anything else is a configuration error.
		if c.Inheritance == StrategySubclassTable && c.TableOwner() == nil {
			c.instantiable = false
			return nil
		}
		return merr.New("populate", merr.ErrNoPrimaryKeyMembers, c.FullName,
			"application identity requires at least one primary-key member").
			WithHint("mark a member as primary key or use datastore identity")
	}

	if c.ObjectIDClass != "" {
		if len(pks) == 1 && !IsSingleFieldIdentityType(c.ObjectIDClass) {
			// Explicit composite id class with one PK member is accepted;
			// the store layer treats it as a user id class.
			return nil
		}
		return nil
	}

	if len(pks) == 1 {
		c.ObjectIDClass = SingleFieldIdentityType(pks[0].Type.Kind)
		return nil
	}

	// Composite primary key without a declared object-id class. When
	// enhancing this is unrecoverable; otherwise synthesize a name and
	// carry on.
	if mgr.enhancing {
		return merr.Newf("populate", merr.ErrObjectIDClassMissing, c.FullName,
			"%d primary-key members but no object-id class", len(pks)).
			WithHint("declare an object-id class for composite keys")
	}
	c.ObjectIDClass = SynthesizedPKClassName(c.FullName)
	mgr.warn(merr.NewWarning("populate", merr.ErrSyntheticPK, c.FullName,
		"synthesized object-id class "+c.ObjectIDClass+" for composite primary key"))
	return nil
}

// resolveVersion defaults and validates the version spec
func (c *ClassMetaData) resolveVersion() error {
	if c.Version == nil || c.Version.Strategy == VersionNone {
		return nil
	}
	if c.Version.Column == "" && c.Version.MemberName == "" {
		c.Version.Column = "version"
	}
	if c.Version.MemberName != "" {
		found := false
		for _, m := range c.members {
			if m.Name == c.Version.MemberName {
				found = true
				break
			}
		}
		if !found {
			return merr.Newf("populate", merr.ErrVersionInvalid, c.FullName,
				"version member %s is not declared on this class", c.Version.MemberName)
		}
	}
	return nil
}

// resolveDiscriminator validates discriminator consistency for shared
// tables and registers the effective value with the manager.
func (c *ClassMetaData) resolveDiscriminator(mgr *MetaDataManager) error {
	// Inherit the ancestor spec when none is declared locally.
	inherited := c.inheritedDiscriminator()

	// A table-owning class whose registered subclasses store into its
	// table gets a class-name discriminator when none is declared
	// anywhere in the chain.
	if c.Discriminator == nil && inherited == nil &&
		c.TableOwner() == c && mgr.hasTableSharingSubclass(c.FullName) {
		c.Discriminator = &DiscriminatorMetaData{Strategy: DiscriminatorClassName}
	}

	if c.Discriminator == nil {
		if inherited != nil {
			c.Discriminator = &DiscriminatorMetaData{
				Strategy:  inherited.Strategy,
				Column:    inherited.Column,
				Inherited: true,
			}
		}
	} else if inherited != nil {
		// A subclass typically declares only its value; strategy and
		// column come from the ancestor.
		if c.Discriminator.Strategy == DiscriminatorNone {
			c.Discriminator.Strategy = inherited.Strategy
		}
		if c.Discriminator.Column != "" && inherited.Column != "" &&
			c.Discriminator.Column != inherited.Column {
			// Redefining the inherited column is tolerated; the
			// ancestor's column wins.
			mgr.warn(merr.NewWarning("populate", merr.ErrDiscriminatorRedefined, c.FullName,
				"discriminator column "+c.Discriminator.Column+
					" redefines inherited column "+inherited.Column))
		}
		if inherited.Column != "" {
			c.Discriminator.Column = inherited.Column
		}
	}

	// Sharing an ancestor's table requires a discriminator at or above
	// the table-owning class. The owner defaults one when its subclasses
	// were registered before it resolved, so this fails only for an
	// explicit opt-out or for a subclass registered after the owner froze.
	if c.Inheritance == StrategySuperclassTable {
		owner := c.TableOwner()
		if owner != nil {
			declared := owner.discriminatorDeclaredInChain()
			if declared == nil || declared.Strategy == DiscriminatorNone {
				return merr.Newf("populate", merr.ErrDiscriminatorMissing, c.FullName,
					"class shares table %s but no discriminator is defined at or above %s",
					owner.Table, owner.FullName).
					WithHint("declare a discriminator on the table-owning class")
			}
		}
	}

	if c.Discriminator == nil || c.Discriminator.Strategy == DiscriminatorNone {
		return nil
	}
	if c.Discriminator.Column == "" {
		c.Discriminator.Column = "discriminator"
	}

	value := c.Discriminator.EffectiveValue(c.FullName)
	return mgr.registerDiscriminatorLocked(c, value)
}

// inheritedDiscriminator returns the nearest ancestor's discriminator spec
func (c *ClassMetaData) inheritedDiscriminator() *DiscriminatorMetaData {
	for sup := c.superclass; sup != nil; sup = sup.superclass {
		if sup.Discriminator != nil {
			return sup.Discriminator
		}
	}
	return nil
}

// discriminatorDeclaredInChain returns the first non-inherited spec at or
// above this class.
func (c *ClassMetaData) discriminatorDeclaredInChain() *DiscriminatorMetaData {
	for cur := c; cur != nil; cur = cur.superclass {
		if cur.Discriminator != nil && !cur.Discriminator.Inherited {
			return cur.Discriminator
		}
	}
	return nil
}

// Initialise computes the absolute member table and the derived position
// arrays. Repeated calls are no-ops; positions are stable. The manager's
// update lock must be held by the caller.
func (c *ClassMetaData) Initialise(mgr *MetaDataManager) error {
	if c.State() == StateInitialised {
		return nil
	}
	if c.State() < StatePopulated {
		return merr.New("initialise", merr.ErrNotPopulated, c.FullName,
			"initialise called before populate")
	}

	if c.superclass != nil {
		if err := c.superclass.Initialise(mgr); err != nil {
			return err
		}
		c.inheritedMemberCount = len(c.superclass.allMembers)
		c.allMembers = make([]*MemberMetaData, c.inheritedMemberCount)
		copy(c.allMembers, c.superclass.allMembers)
	}

	c.membersByName = make(map[string]*MemberMetaData, len(c.members)+c.inheritedMemberCount)
	for _, m := range c.allMembers {
		c.membersByName[m.Name] = m
	}

	// Declared members take positions in name order so repeated runs are
	// deterministic regardless of declaration order.
	declared := make([]*MemberMetaData, len(c.members))
	copy(declared, c.members)
	sort.Slice(declared, func(i, j int) bool {
		return declared[i].Name < declared[j].Name
	})

	for _, m := range declared {
		if inherited, ok := c.membersByName[m.Name]; ok &&
			inherited.DeclaringClass != c.FullName {
			// Override: the subclass member shadows the inherited one at
			// its existing absolute position.
			m.absPosition = inherited.absPosition
			c.allMembers[inherited.absPosition] = m
			c.membersByName[m.Name] = m
			continue
		}
		m.absPosition = len(c.allMembers)
		c.allMembers = append(c.allMembers, m)
		c.membersByName[m.Name] = m
	}

	c.pkPositions = c.pkPositions[:0]
	c.dfgPositions = c.dfgPositions[:0]
	c.scoPositions = c.scoPositions[:0]
	c.relationPositions = c.relationPositions[:0]
	for pos, m := range c.allMembers {
		if m.Modifier != FieldPersistent {
			continue
		}
		if m.PrimaryKey {
			c.pkPositions = append(c.pkPositions, pos)
		}
		if m.InDefaultFetchGroup() {
			c.dfgPositions = append(c.dfgPositions, pos)
		}
		if m.IsSCOMutable() {
			c.scoPositions = append(c.scoPositions, pos)
		}
		if m.IsRelation() {
			c.relationPositions = append(c.relationPositions, pos)
		}
	}

	c.setState(StateInitialised)
	return nil
}

// MemberCount returns the size of the absolute member table
func (c *ClassMetaData) MemberCount() (int, error) {
	if err := c.checkInitialised(); err != nil {
		return 0, err
	}
	return len(c.allMembers), nil
}

// NoOfInheritedManagedMembers returns the number of absolute positions
// contributed by ancestors.
func (c *ClassMetaData) NoOfInheritedManagedMembers() (int, error) {
	if err := c.checkInitialised(); err != nil {
		return 0, err
	}
	return c.inheritedMemberCount, nil
}

// MemberAtPosition returns the member at an absolute position
func (c *ClassMetaData) MemberAtPosition(pos int) (*MemberMetaData, error) {
	if err := c.checkInitialised(); err != nil {
		return nil, err
	}
	if pos < 0 || pos >= len(c.allMembers) {
		return nil, merr.Newf("initialise", merr.ErrMemberPositionInvalid, c.FullName,
			"position %d out of range [0,%d)", pos, len(c.allMembers))
	}
	return c.allMembers[pos], nil
}

// MemberForName returns the member with the given name, searching the
// whole inheritance chain.
func (c *ClassMetaData) MemberForName(name string) (*MemberMetaData, bool) {
	if c.membersByName != nil {
		m, ok := c.membersByName[name]
		return m, ok
	}
	for _, m := range c.members {
		if m.Name == name {
			return m, true
		}
	}
	if c.superclass != nil {
		return c.superclass.MemberForName(name)
	}
	return nil, false
}

// PKMemberPositions returns the absolute positions of primary-key members
func (c *ClassMetaData) PKMemberPositions() ([]int, error) {
	if err := c.checkInitialised(); err != nil {
		return nil, err
	}
	return c.pkPositions, nil
}

// DFGMemberPositions returns the absolute positions of default-fetch-group
// members.
func (c *ClassMetaData) DFGMemberPositions() ([]int, error) {
	if err := c.checkInitialised(); err != nil {
		return nil, err
	}
	return c.dfgPositions, nil
}

// SCOMutableMemberPositions returns the absolute positions of members
// whose values need change-tracking wrappers.
func (c *ClassMetaData) SCOMutableMemberPositions() ([]int, error) {
	if err := c.checkInitialised(); err != nil {
		return nil, err
	}
	return c.scoPositions, nil
}

// RelationMemberPositions returns the absolute positions of relation
// members.
func (c *ClassMetaData) RelationMemberPositions() ([]int, error) {
	if err := c.checkInitialised(); err != nil {
		return nil, err
	}
	return c.relationPositions, nil
}

// PKMemberCount returns the number of primary-key members across the chain
func (c *ClassMetaData) PKMemberCount() (int, error) {
	if err := c.checkPopulated(); err != nil {
		return 0, err
	}
	return c.pkMemberCount, nil
}

// DiscriminatorValue returns the effective discriminator value for this
// class, or "" when it has no discriminator.
func (c *ClassMetaData) DiscriminatorValue() string {
	if c.Discriminator == nil || c.Discriminator.Strategy == DiscriminatorNone {
		return ""
	}
	return c.Discriminator.EffectiveValue(c.FullName)
}

// ReferencedClassNames returns the names of classes this class references:
// relation targets, the superclass, and view-definition references.
func (c *ClassMetaData) ReferencedClassNames() []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(name string) {
		if name != "" && name != c.FullName && !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}

	add(c.SuperclassName)
	for _, m := range c.members {
		add(m.TargetClass())
	}
	for _, ref := range c.ViewReferences() {
		add(ref)
	}
	return refs
}

// ViewReferences extracts the {Class} placeholders from the view
// definition, in order of first appearance.
func (c *ClassMetaData) ViewReferences() []string {
	if c.ViewDefinition == "" {
		return nil
	}
	var refs []string
	seen := make(map[string]bool)
	rest := c.ViewDefinition
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			break
		}
		name := rest[start+1 : start+end]
		if name != "" && name != c.FullName && !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
		rest = rest[start+end+1:]
	}
	return refs
}
