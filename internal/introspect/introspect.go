// Package introspect builds class metadata from Go struct types. It is an
// input adapter for the metadata manager: struct fields become member
// descriptors, `persist` tags carry per-member options, and an embedded
// persistable struct becomes the persistent superclass.
package introspect

import (
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/keystone-orm/keystone/internal/meta"
)

// TableNamer lets a model override its default table name
type TableNamer interface {
	TableName() string
}

// EntityNamer lets a model override its default entity name
type EntityNamer interface {
	EntityName() string
}

// Introspector converts Go struct types to unpopulated ClassMetaData.
// Descriptors are cached per type; a type is introspected once.
type Introspector struct {
	cache sync.Map // map[reflect.Type]*meta.ClassMetaData
}

// NewIntrospector creates an empty Introspector
func NewIntrospector() *Introspector {
	return &Introspector{}
}

// ClassFor returns the descriptor for a model value or pointer
func (in *Introspector) ClassFor(model interface{}) (*meta.ClassMetaData, error) {
	if model == nil {
		return nil, fmt.Errorf("model must not be nil")
	}
	return in.classForType(reflect.TypeOf(model))
}

// classForType returns the cached or freshly built descriptor for a type
func (in *Introspector) classForType(t reflect.Type) (*meta.ClassMetaData, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("invalid model type: %s", t.Kind())
	}

	if cached, ok := in.cache.Load(t); ok {
		return cached.(*meta.ClassMetaData), nil
	}

	cmd, err := in.build(t)
	if err != nil {
		return nil, err
	}
	actual, _ := in.cache.LoadOrStore(t, cmd)
	return actual.(*meta.ClassMetaData), nil
}

// build constructs an unpopulated descriptor from a struct type
func (in *Introspector) build(t reflect.Type) (*meta.ClassMetaData, error) {
	cmd := meta.NewClassMetaData(packageName(t), t.Name())

	ptr := reflect.New(t).Interface()
	if namer, ok := ptr.(TableNamer); ok {
		cmd.Table = namer.TableName()
	}
	if namer, ok := ptr.(EntityNamer); ok {
		cmd.EntityName = namer.EntityName()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.PkgPath != "" {
			// unexported
			continue
		}

		opts, err := parseTag(field.Tag.Get(TagName))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", ClassName(t), field.Name, err)
		}
		if opts.skip {
			continue
		}

		if field.Anonymous && isPersistableStruct(field.Type) {
			// Embedded persistable struct is the persistent superclass.
			if cmd.SuperclassName != "" {
				return nil, fmt.Errorf("%s: multiple embedded persistable structs", ClassName(t))
			}
			cmd.SuperclassName = ClassName(indirect(field.Type))
			continue
		}

		member, err := in.buildMember(field, opts)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", ClassName(t), field.Name, err)
		}
		if err := cmd.AddMember(member); err != nil {
			return nil, err
		}
	}

	return cmd, nil
}

// buildMember constructs a member descriptor from a struct field
func (in *Introspector) buildMember(field reflect.StructField, opts fieldOptions) (*meta.MemberMetaData, error) {
	spec, err := typeSpecFor(field.Type, opts.target)
	if err != nil {
		return nil, err
	}

	member := meta.NewMemberMetaData(lowerFirst(field.Name), spec)
	member.PrimaryKey = opts.primaryKey
	member.Column = opts.column
	member.Embedded = opts.embedded
	if opts.transactional {
		member.Modifier = meta.FieldTransactional
	}
	if opts.dfg != nil {
		member.DFG = opts.dfg
	}
	if opts.relation != nil {
		member.SetRelationType(*opts.relation)
	}
	return member, nil
}

var timeType = reflect.TypeOf(time.Time{})

// typeSpecFor maps a Go type to a TypeSpec. explicitTarget overrides the
// derived class name for reference kinds.
func typeSpecFor(t reflect.Type, explicitTarget string) (*meta.TypeSpec, error) {
	nullable := false
	if t.Kind() == reflect.Ptr {
		nullable = true
		t = t.Elem()
	}

	spec := &meta.TypeSpec{GoType: t.String(), Nullable: nullable}

	switch {
	case t == timeType:
		spec.Kind = meta.KindTime
		return spec, nil
	case t.Kind() == reflect.Struct && t.Name() == "UUID" && packageName(t) == "uuid":
		spec.Kind = meta.KindUUID
		return spec, nil
	case isPersistableStruct(t):
		spec.Kind = meta.KindReference
		spec.Target = explicitTarget
		if spec.Target == "" {
			spec.Target = ClassName(t)
		}
		// References are held by pointer or value; either way the column
		// is nullable only for pointers, which was captured above.
		return spec, nil
	}

	switch t.Kind() {
	case reflect.Bool:
		spec.Kind = meta.KindBool
	case reflect.Int8, reflect.Uint8:
		spec.Kind = meta.KindByte
	case reflect.Int16, reflect.Uint16:
		spec.Kind = meta.KindShort
	case reflect.Int32, reflect.Uint32:
		spec.Kind = meta.KindInt
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		spec.Kind = meta.KindLong
	case reflect.Float32:
		spec.Kind = meta.KindFloat
	case reflect.Float64:
		spec.Kind = meta.KindDouble
	case reflect.String:
		spec.Kind = meta.KindString
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			spec.Kind = meta.KindBytes
			return spec, nil
		}
		element, err := typeSpecFor(t.Elem(), explicitTarget)
		if err != nil {
			return nil, err
		}
		spec.Kind = meta.KindCollection
		spec.Element = element
	case reflect.Map:
		key, err := typeSpecFor(t.Key(), "")
		if err != nil {
			return nil, err
		}
		value, err := typeSpecFor(t.Elem(), explicitTarget)
		if err != nil {
			return nil, err
		}
		spec.Kind = meta.KindMap
		spec.Key = key
		spec.Value = value
	case reflect.Interface:
		spec.Kind = meta.KindObject
	case reflect.Struct:
		// Unrecognized struct types are stored opaquely
		spec.Kind = meta.KindObject
	default:
		return nil, fmt.Errorf("unsupported field type %s", t)
	}

	return spec, nil
}

// RegisterAll introspects each model and registers the descriptors with
// the manager. Models referencing each other can be passed in any order;
// resolution is deferred to the first manager lookup.
func RegisterAll(mgr *meta.MetaDataManager, models ...interface{}) error {
	in := NewIntrospector()
	for _, model := range models {
		cmd, err := in.ClassFor(model)
		if err != nil {
			return err
		}
		if err := mgr.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

// ClassName returns the metadata class name for a struct type:
// the package's base name qualified name, e.g. "app.Customer".
func ClassName(t reflect.Type) string {
	t = indirect(t)
	pkg := packageName(t)
	if pkg == "" {
		return t.Name()
	}
	return pkg + "." + t.Name()
}

// packageName returns the base package name of a type
func packageName(t reflect.Type) string {
	path := t.PkgPath()
	if path == "" {
		return ""
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// isPersistableStruct reports whether a type looks like a model struct:
// a named struct outside the standard library scalar set.
func isPersistableStruct(t reflect.Type) bool {
	t = indirect(t)
	if t.Kind() != reflect.Struct || t.Name() == "" {
		return false
	}
	if t == timeType {
		return false
	}
	if t.Name() == "UUID" && packageName(t) == "uuid" {
		return false
	}
	// A model struct carries at least one persist tag
	for i := 0; i < t.NumField(); i++ {
		if _, ok := t.Field(i).Tag.Lookup(TagName); ok {
			return true
		}
		if t.Field(i).Anonymous && isPersistableStruct(t.Field(i).Type) {
			return true
		}
	}
	return false
}

// indirect strips one level of pointer indirection
func indirect(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		return t.Elem()
	}
	return t
}

// lowerFirst lowercases the leading uppercase run of a Go field name,
// producing the conventional member name: "Name" -> "name", "ID" -> "id",
// "URLPath" -> "urlPath".
func lowerFirst(s string) string {
	r := []rune(s)
	run := 0
	for run < len(r) && r[run] >= 'A' && r[run] <= 'Z' {
		run++
	}
	if run == 0 {
		return s
	}
	// Keep the last uppercase letter when it starts the next word
	if run > 1 && run < len(r) {
		run--
	}
	for i := 0; i < run; i++ {
		r[i] = r[i] + ('a' - 'A')
	}
	return string(r)
}
