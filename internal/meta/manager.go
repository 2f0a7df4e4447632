package meta

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	merr "github.com/keystone-orm/keystone/internal/meta/errors"
)

// MetaDataManager is the registry resolving class names to descriptors.
// Descriptors are registered unpopulated; the first lookup runs the
// populate/initialise pipeline under a single update lock, after which
// lookups are read-only map hits.
type MetaDataManager struct {
	// mu guards the read-mostly lookup maps
	mu sync.RWMutex
	// updateLock serializes the populate/initialise pipeline so only one
	// goroutine performs a given metadata load at a time
	updateLock sync.Mutex

	classesByName       map[string]*ClassMetaData
	classesByEntityName map[string]*ClassMetaData
	// discriminatorsByRoot maps inheritance-root full name -> value -> class
	discriminatorsByRoot map[string]map[string]*ClassMetaData

	// directSubclasses maps full name -> direct subclass full names
	directSubclasses map[string][]string
	// subclassCache caches transitive subclass sets per class
	subclassCache map[string][]string

	treeStrategy TreeStrategy
	enhancing    bool

	log         *zap.Logger
	warningsMu  sync.Mutex
	warningList []*merr.MetaDataError
}

// Option configures a MetaDataManager
type Option func(*MetaDataManager)

// WithTreeStrategy sets the default inheritance-tree strategy applied to
// classes that leave their strategy unspecified.
func WithTreeStrategy(t TreeStrategy) Option {
	return func(m *MetaDataManager) { m.treeStrategy = t }
}

// WithEnhancing turns on enhancing mode, where a missing composite
// object-id class is a hard error instead of a synthesized name.
func WithEnhancing(enhancing bool) Option {
	return func(m *MetaDataManager) { m.enhancing = enhancing }
}

// WithLogger sets the manager's logger
func WithLogger(log *zap.Logger) Option {
	return func(m *MetaDataManager) { m.log = log }
}

// NewMetaDataManager creates an empty manager
func NewMetaDataManager(opts ...Option) *MetaDataManager {
	m := &MetaDataManager{
		classesByName:        make(map[string]*ClassMetaData),
		classesByEntityName:  make(map[string]*ClassMetaData),
		discriminatorsByRoot: make(map[string]map[string]*ClassMetaData),
		directSubclasses:     make(map[string][]string),
		subclassCache:        make(map[string][]string),
		treeStrategy:         TreeSingleTable,
		log:                  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds an unpopulated descriptor to the registry. Registration
// does not resolve anything; resolution happens lazily on first lookup.
func (m *MetaDataManager) Register(cmd *ClassMetaData) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cmd.FullName == "" || cmd.Name == "" {
		return merr.New("register", merr.ErrInvalidClassName, cmd.FullName,
			"class name must not be empty")
	}
	if _, exists := m.classesByName[cmd.FullName]; exists {
		return merr.New("register", merr.ErrDuplicateClass, cmd.FullName,
			"class is already registered")
	}
	if other, exists := m.classesByEntityName[cmd.EntityName]; exists {
		return merr.Newf("register", merr.ErrDuplicateEntityName, cmd.FullName,
			"entity name %q is already used by %s", cmd.EntityName, other.FullName)
	}

	m.classesByName[cmd.FullName] = cmd
	m.classesByEntityName[cmd.EntityName] = cmd
	if cmd.SuperclassName != "" {
		m.directSubclasses[cmd.SuperclassName] =
			append(m.directSubclasses[cmd.SuperclassName], cmd.FullName)
	}
	// Hierarchy changed; derived sets are stale.
	m.subclassCache = make(map[string][]string)

	m.log.Debug("registered class metadata",
		zap.String("class", cmd.FullName),
		zap.String("entity", cmd.EntityName))
	return nil
}

// lookupLocked returns the raw descriptor for a full class name. Intended
// for pipeline code running under the update lock.
func (m *MetaDataManager) lookupLocked(fullName string) *ClassMetaData {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.classesByName[fullName]
}

// MetaDataForClass returns the initialised descriptor for a full class
// name, running the populate/initialise pipeline on first access. It is
// idempotent and safe for concurrent callers.
func (m *MetaDataManager) MetaDataForClass(fullName string) (*ClassMetaData, error) {
	// Fast path: initialised descriptors are immutable
	m.mu.RLock()
	cmd := m.classesByName[fullName]
	m.mu.RUnlock()
	if cmd == nil {
		return nil, merr.New("register", merr.ErrClassNotRegistered, fullName,
			"class is not registered")
	}
	if cmd.IsInitialised() {
		return cmd, nil
	}

	m.updateLock.Lock()
	defer m.updateLock.Unlock()
	if cmd.IsInitialised() {
		return cmd, nil
	}

	if err := cmd.Populate(m); err != nil {
		return nil, err
	}
	if err := cmd.Initialise(m); err != nil {
		return nil, err
	}

	m.log.Debug("resolved class metadata",
		zap.String("class", cmd.FullName),
		zap.Stringer("identity", cmd.IdentityType),
		zap.Stringer("inheritance", cmd.Inheritance))
	return cmd, nil
}

// NewObjectID issues a fresh surrogate identity for a datastore-identity
// class, resolving the class first if needed.
func (m *MetaDataManager) NewObjectID(fullName string) (DatastoreID, error) {
	cmd, err := m.MetaDataForClass(fullName)
	if err != nil {
		return DatastoreID{}, err
	}
	if cmd.IdentityType != IdentityDatastore {
		return DatastoreID{}, merr.Newf("populate", merr.ErrNotDatastoreIdentity,
			cmd.FullName, "cannot issue a surrogate key for %s identity",
			cmd.IdentityType).
			WithHint("surrogate keys apply to datastore-identity classes only")
	}
	return NewDatastoreID(cmd.FullName), nil
}

// MetaDataForEntityName resolves a descriptor by its entity name
func (m *MetaDataManager) MetaDataForEntityName(entityName string) (*ClassMetaData, error) {
	m.mu.RLock()
	cmd := m.classesByEntityName[entityName]
	m.mu.RUnlock()
	if cmd == nil {
		return nil, merr.New("register", merr.ErrClassNotRegistered, entityName,
			"no class with this entity name")
	}
	return m.MetaDataForClass(cmd.FullName)
}

// MetaDataForDiscriminator resolves a descriptor by discriminator value,
// scoped to the inheritance tree rooted at rootClass. The whole tree is
// resolved first so every discriminator value is registered.
func (m *MetaDataManager) MetaDataForDiscriminator(rootClass, value string) (*ClassMetaData, error) {
	root, err := m.MetaDataForClass(rootClass)
	if err != nil {
		return nil, err
	}
	for _, sub := range m.SubclassesForClass(rootClass, false) {
		if _, err := m.MetaDataForClass(sub); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	byValue := m.discriminatorsByRoot[root.FullName]
	if cmd, ok := byValue[value]; ok {
		return cmd, nil
	}
	return nil, merr.Newf("populate", merr.ErrClassNotRegistered, rootClass,
		"no class in this tree has discriminator value %q", value)
}

// hasTableSharingSubclass reports whether any registered direct subclass
// of the class stores into the superclass table, either explicitly or
// through the tree-strategy default. Subclasses are unresolved at this
// point so the effective strategy is computed from registration data.
func (m *MetaDataManager) hasTableSharingSubclass(fullName string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, sub := range m.directSubclasses[fullName] {
		cmd := m.classesByName[sub]
		if cmd == nil {
			continue
		}
		strategy := cmd.Inheritance
		if strategy == StrategyUnspecified {
			strategy = strategyForTree(m.treeStrategy, false)
		}
		if strategy == StrategySuperclassTable {
			return true
		}
	}
	return false
}

// registerDiscriminatorLocked records a class's discriminator value in the
// per-root lookup. Duplicate values within a tree are fatal. Called from
// populate under the update lock.
func (m *MetaDataManager) registerDiscriminatorLocked(cmd *ClassMetaData, value string) error {
	root := cmd.Root().FullName

	m.mu.Lock()
	defer m.mu.Unlock()
	byValue := m.discriminatorsByRoot[root]
	if byValue == nil {
		byValue = make(map[string]*ClassMetaData)
		m.discriminatorsByRoot[root] = byValue
	}
	if other, exists := byValue[value]; exists && other != cmd {
		return merr.Newf("populate", merr.ErrDiscriminatorDuplicate, cmd.FullName,
			"discriminator value %q is already used by %s", value, other.FullName)
	}
	byValue[value] = cmd
	return nil
}

// SubclassesForClass returns the full names of subclasses of a class,
// direct only or transitive. Results are cached until the hierarchy
// changes.
func (m *MetaDataManager) SubclassesForClass(fullName string, direct bool) []string {
	key := fullName
	if direct {
		key += "|direct"
	}

	m.mu.RLock()
	if cached, ok := m.subclassCache[key]; ok {
		m.mu.RUnlock()
		return cached
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.subclassCache[key]; ok {
		return cached
	}

	var result []string
	if direct {
		result = append(result, m.directSubclasses[fullName]...)
	} else {
		stack := append([]string(nil), m.directSubclasses[fullName]...)
		for len(stack) > 0 {
			sub := stack[0]
			stack = stack[1:]
			result = append(result, sub)
			stack = append(stack, m.directSubclasses[sub]...)
		}
	}
	sort.Strings(result)

	m.subclassCache[key] = result
	return result
}

// Classes returns all registered descriptors sorted by full name. The
// descriptors are returned as registered; callers wanting resolved
// metadata should use MetaDataForClass.
func (m *MetaDataManager) Classes() []*ClassMetaData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*ClassMetaData, 0, len(m.classesByName))
	for _, cmd := range m.classesByName {
		result = append(result, cmd)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].FullName < result[j].FullName
	})
	return result
}

// ResolveAll runs the pipeline for every registered class and checks the
// view-reference graph. It returns the first fatal error encountered.
func (m *MetaDataManager) ResolveAll() error {
	for _, cmd := range m.Classes() {
		if _, err := m.MetaDataForClass(cmd.FullName); err != nil {
			return err
		}
	}
	_, err := m.OrderedReferencedClasses()
	return err
}

// OrderedReferencedClasses resolves the transitive reference closure of
// all registered classes and returns them dependencies-first, the order
// schema generation needs. A cycle among view-definition references is a
// fatal error reporting the full reference chain.
func (m *MetaDataManager) OrderedReferencedClasses() ([]*ClassMetaData, error) {
	resolved := make(map[string]*ClassMetaData)
	for _, cmd := range m.Classes() {
		full, err := m.MetaDataForClass(cmd.FullName)
		if err != nil {
			return nil, err
		}
		resolved[full.FullName] = full
	}

	graph := NewReferenceGraph(resolved)
	if err := graph.CheckViewCycles(); err != nil {
		return nil, err
	}

	order := graph.DependencyOrder()
	result := make([]*ClassMetaData, 0, len(order))
	for _, name := range order {
		result = append(result, resolved[name])
	}
	return result, nil
}

// warn records a warning-severity error and logs it
func (m *MetaDataManager) warn(w *merr.MetaDataError) {
	m.warningsMu.Lock()
	m.warningList = append(m.warningList, w)
	m.warningsMu.Unlock()

	m.log.Warn(w.Message,
		zap.String("code", w.Code),
		zap.String("class", w.Class))
}

// Warnings returns the warnings accumulated during resolution
func (m *MetaDataManager) Warnings() []*merr.MetaDataError {
	m.warningsMu.Lock()
	defer m.warningsMu.Unlock()
	return append([]*merr.MetaDataError(nil), m.warningList...)
}
