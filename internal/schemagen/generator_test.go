package schemagen

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keystone-orm/keystone/internal/meta"
)

func intPtr(n int) *int { return &n }

func buildStoreModel(t *testing.T) []*meta.ClassMetaData {
	t.Helper()
	mgr := meta.NewMetaDataManager()

	customer := meta.NewClassMetaData("app.model", "Customer")
	idMember := meta.NewMemberMetaData("id", &meta.TypeSpec{Kind: meta.KindLong, GoType: "int64"})
	idMember.PrimaryKey = true
	require.NoError(t, customer.AddMember(idMember))
	require.NoError(t, customer.AddMember(
		meta.NewMemberMetaData("name", &meta.TypeSpec{Kind: meta.KindString, GoType: "string"})))
	require.NoError(t, customer.AddMember(
		meta.NewMemberMetaData("tags", &meta.TypeSpec{
			Kind:    meta.KindCollection,
			GoType:  "[]string",
			Element: &meta.TypeSpec{Kind: meta.KindString, GoType: "string"},
		})))
	require.NoError(t, mgr.Register(customer))

	order := meta.NewClassMetaData("app.model", "Order")
	orderID := meta.NewMemberMetaData("id", &meta.TypeSpec{Kind: meta.KindLong, GoType: "int64"})
	orderID.PrimaryKey = true
	require.NoError(t, order.AddMember(orderID))
	require.NoError(t, order.AddMember(
		meta.NewMemberMetaData("customer", &meta.TypeSpec{
			Kind:   meta.KindReference,
			GoType: "*Customer",
			Target: "app.model.Customer",
		})))
	require.NoError(t, order.AddMember(
		meta.NewMemberMetaData("total", &meta.TypeSpec{
			Kind: meta.KindDecimal, GoType: "string", Precision: intPtr(12), Scale: intPtr(2),
		})))
	require.NoError(t, mgr.Register(order))

	ordered, err := mgr.OrderedReferencedClasses()
	require.NoError(t, err)
	return ordered
}

func TestGenerateSchema(t *testing.T) {
	t.Run("tables in dependency order", func(t *testing.T) {
		gen := NewGenerator(buildStoreModel(t))
		statements, err := gen.GenerateSchema()
		require.NoError(t, err)
		require.Len(t, statements, 2)

		assert.Equal(t, "app.model.Customer", statements[0].Class)
		assert.Equal(t, "app.model.Order", statements[1].Class)
		assert.Equal(t, "table", statements[0].Kind)
	})

	t.Run("application identity primary key", func(t *testing.T) {
		gen := NewGenerator(buildStoreModel(t))
		statements, err := gen.GenerateSchema()
		require.NoError(t, err)

		customerSQL := statements[0].SQL
		assert.Contains(t, customerSQL, `CREATE TABLE IF NOT EXISTS "customer"`)
		assert.Contains(t, customerSQL, `"id" BIGINT NOT NULL`)
		assert.Contains(t, customerSQL, `PRIMARY KEY ("id")`)
	})

	t.Run("scalar collection maps to JSONB", func(t *testing.T) {
		gen := NewGenerator(buildStoreModel(t))
		statements, err := gen.GenerateSchema()
		require.NoError(t, err)

		assert.Contains(t, statements[0].SQL, `"tags" JSONB`)
	})

	t.Run("reference maps to foreign key column", func(t *testing.T) {
		gen := NewGenerator(buildStoreModel(t))
		statements, err := gen.GenerateSchema()
		require.NoError(t, err)

		orderSQL := statements[1].SQL
		assert.Contains(t, orderSQL, `"customer_id" BIGINT`)
		assert.Contains(t, orderSQL, `FOREIGN KEY ("customer_id") REFERENCES "customer"`)
	})

	t.Run("decimal carries precision and scale", func(t *testing.T) {
		gen := NewGenerator(buildStoreModel(t))
		statements, err := gen.GenerateSchema()
		require.NoError(t, err)

		assert.Contains(t, statements[1].SQL, `"total" NUMERIC(12,2)`)
	})
}

func TestGenerateSingleTableHierarchy(t *testing.T) {
	mgr := meta.NewMetaDataManager(meta.WithTreeStrategy(meta.TreeSingleTable))

	vehicle := meta.NewClassMetaData("app.model", "Vehicle")
	id := meta.NewMemberMetaData("id", &meta.TypeSpec{Kind: meta.KindLong, GoType: "int64"})
	id.PrimaryKey = true
	require.NoError(t, vehicle.AddMember(id))
	require.NoError(t, vehicle.AddMember(
		meta.NewMemberMetaData("make", &meta.TypeSpec{Kind: meta.KindString, GoType: "string"})))
	require.NoError(t, vehicle.SetDiscriminator(&meta.DiscriminatorMetaData{
		Strategy: meta.DiscriminatorClassName,
		Column:   "kind",
	}))
	require.NoError(t, vehicle.SetVersion(&meta.VersionMetaData{
		Strategy: meta.VersionNumber,
		Column:   "version",
	}))
	require.NoError(t, mgr.Register(vehicle))

	car := meta.NewClassMetaData("app.model", "Car")
	car.SuperclassName = "app.model.Vehicle"
	require.NoError(t, car.AddMember(
		meta.NewMemberMetaData("doors", &meta.TypeSpec{Kind: meta.KindInt, GoType: "int32"})))
	require.NoError(t, mgr.Register(car))

	ordered, err := mgr.OrderedReferencedClasses()
	require.NoError(t, err)

	gen := NewGenerator(ordered)
	statements, err := gen.GenerateSchema()
	require.NoError(t, err)

	// Only the root owns a table.
	require.Len(t, statements, 1)
	sql := statements[0].SQL
	assert.Contains(t, sql, `CREATE TABLE IF NOT EXISTS "vehicle"`)
	assert.Contains(t, sql, `"kind" VARCHAR(255) NOT NULL`)
	assert.Contains(t, sql, `"version" BIGINT NOT NULL DEFAULT 1`)
	assert.Contains(t, sql, `"make" VARCHAR(255)`)

	// The subclass column is merged into the root table.
	assert.Contains(t, sql, `"doors" INTEGER`)
}

func TestGenerateDefaultedDiscriminator(t *testing.T) {
	// A shared-table hierarchy with no declared discriminator gets the
	// defaulted column in its DDL.
	mgr := meta.NewMetaDataManager(meta.WithTreeStrategy(meta.TreeSingleTable))

	vehicle := meta.NewClassMetaData("app.model", "Vehicle")
	id := meta.NewMemberMetaData("id", &meta.TypeSpec{Kind: meta.KindLong, GoType: "int64"})
	id.PrimaryKey = true
	require.NoError(t, vehicle.AddMember(id))
	require.NoError(t, mgr.Register(vehicle))

	car := meta.NewClassMetaData("app.model", "Car")
	car.SuperclassName = "app.model.Vehicle"
	require.NoError(t, car.AddMember(
		meta.NewMemberMetaData("doors", &meta.TypeSpec{Kind: meta.KindInt, GoType: "int32"})))
	require.NoError(t, mgr.Register(car))

	ordered, err := mgr.OrderedReferencedClasses()
	require.NoError(t, err)

	gen := NewGenerator(ordered)
	statements, err := gen.GenerateSchema()
	require.NoError(t, err)

	require.Len(t, statements, 1)
	assert.Contains(t, statements[0].SQL, `"discriminator" VARCHAR(255) NOT NULL`)
}

func TestGenerateJoinedHierarchy(t *testing.T) {
	mgr := meta.NewMetaDataManager(meta.WithTreeStrategy(meta.TreeJoined))

	person := meta.NewClassMetaData("app.model", "Person")
	id := meta.NewMemberMetaData("id", &meta.TypeSpec{Kind: meta.KindLong, GoType: "int64"})
	id.PrimaryKey = true
	require.NoError(t, person.AddMember(id))
	require.NoError(t, person.AddMember(
		meta.NewMemberMetaData("name", &meta.TypeSpec{Kind: meta.KindString, GoType: "string"})))
	require.NoError(t, mgr.Register(person))

	employee := meta.NewClassMetaData("app.model", "Employee")
	employee.SuperclassName = "app.model.Person"
	require.NoError(t, employee.AddMember(
		meta.NewMemberMetaData("salary", &meta.TypeSpec{Kind: meta.KindDouble, GoType: "float64"})))
	require.NoError(t, mgr.Register(employee))

	ordered, err := mgr.OrderedReferencedClasses()
	require.NoError(t, err)

	gen := NewGenerator(ordered)
	statements, err := gen.GenerateSchema()
	require.NoError(t, err)
	require.Len(t, statements, 2)

	var employeeSQL string
	for _, s := range statements {
		if s.Class == "app.model.Employee" {
			employeeSQL = s.SQL
		}
	}
	require.NotEmpty(t, employeeSQL)

	assert.Contains(t, employeeSQL, `CREATE TABLE IF NOT EXISTS "employee"`)
	assert.Contains(t, employeeSQL, `"salary" DOUBLE PRECISION`)
	assert.Contains(t, employeeSQL, `FOREIGN KEY ("id") REFERENCES "person"`)
	// Inherited columns stay in the parent's table.
	assert.NotContains(t, employeeSQL, `"name"`)
}

func TestGenerateDatastoreIdentity(t *testing.T) {
	mgr := meta.NewMetaDataManager()

	event := meta.NewClassMetaData("app.model", "AuditEvent")
	require.NoError(t, event.AddMember(
		meta.NewMemberMetaData("payload", &meta.TypeSpec{Kind: meta.KindJSON, GoType: "json.RawMessage"})))
	require.NoError(t, mgr.Register(event))

	ordered, err := mgr.OrderedReferencedClasses()
	require.NoError(t, err)

	gen := NewGenerator(ordered)
	statements, err := gen.GenerateSchema()
	require.NoError(t, err)
	require.Len(t, statements, 1)

	assert.Contains(t, statements[0].SQL, `"id" BIGSERIAL PRIMARY KEY`)
	assert.Contains(t, statements[0].SQL, `"payload" JSONB`)
}

func TestGenerateView(t *testing.T) {
	mgr := meta.NewMetaDataManager()

	customer := meta.NewClassMetaData("app.model", "Customer")
	id := meta.NewMemberMetaData("id", &meta.TypeSpec{Kind: meta.KindLong, GoType: "int64"})
	id.PrimaryKey = true
	require.NoError(t, customer.AddMember(id))
	require.NoError(t, customer.AddMember(
		meta.NewMemberMetaData("name", &meta.TypeSpec{Kind: meta.KindString, GoType: "string"})))
	require.NoError(t, mgr.Register(customer))

	summary := meta.NewClassMetaData("app.model", "CustomerSummary")
	summary.ViewDefinition = "SELECT id, name FROM {app.model.Customer}"
	require.NoError(t, summary.AddMember(
		meta.NewMemberMetaData("name", &meta.TypeSpec{Kind: meta.KindString, GoType: "string"})))
	require.NoError(t, mgr.Register(summary))

	ordered, err := mgr.OrderedReferencedClasses()
	require.NoError(t, err)

	gen := NewGenerator(ordered)
	statements, err := gen.GenerateSchema()
	require.NoError(t, err)
	require.Len(t, statements, 2)

	// Views come after all tables regardless of registration order.
	view := statements[len(statements)-1]
	assert.Equal(t, "view", view.Kind)
	assert.Contains(t, view.SQL, `CREATE OR REPLACE VIEW "customer_summary"`)
	assert.Contains(t, view.SQL, `FROM "customer"`)
	assert.False(t, strings.Contains(view.SQL, "{"), "placeholders must be interpolated")
}

func TestTypeMapper(t *testing.T) {
	tm := NewTypeMapper()

	cases := []struct {
		kind meta.FieldKind
		want string
	}{
		{meta.KindBool, "BOOLEAN"},
		{meta.KindShort, "SMALLINT"},
		{meta.KindInt, "INTEGER"},
		{meta.KindLong, "BIGINT"},
		{meta.KindFloat, "REAL"},
		{meta.KindDouble, "DOUBLE PRECISION"},
		{meta.KindString, "VARCHAR(255)"},
		{meta.KindBytes, "BYTEA"},
		{meta.KindTime, "TIMESTAMPTZ"},
		{meta.KindUUID, "UUID"},
		{meta.KindJSON, "JSONB"},
	}
	for _, tc := range cases {
		got, err := tm.MapKind(tc.kind)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, tc.kind.String())
	}

	t.Run("sized string", func(t *testing.T) {
		got, err := tm.MapType(&meta.TypeSpec{Kind: meta.KindString, Length: intPtr(40)})
		require.NoError(t, err)
		assert.Equal(t, "VARCHAR(40)", got)
	})

	t.Run("reference is not directly mappable", func(t *testing.T) {
		_, err := tm.MapType(&meta.TypeSpec{Kind: meta.KindReference, Target: "app.model.Customer"})
		assert.Error(t, err)
	})
}
