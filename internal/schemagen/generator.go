package schemagen

import (
	"fmt"
	"strings"

	"github.com/keystone-orm/keystone/internal/meta"

	merr "github.com/keystone-orm/keystone/internal/meta/errors"
)

// Statement is a single generated DDL statement
type Statement struct {
	Class string // full class name the statement was generated for
	Kind  string // "table" or "view"
	SQL   string
}

// Generator generates PostgreSQL DDL for a set of resolved classes.
// Classes must be supplied dependencies-first, as returned by
// MetaDataManager.OrderedReferencedClasses.
type Generator struct {
	mapper  *TypeMapper
	ordered []*meta.ClassMetaData
	byName  map[string]*meta.ClassMetaData
}

// NewGenerator creates a generator over dependency-ordered classes
func NewGenerator(ordered []*meta.ClassMetaData) *Generator {
	byName := make(map[string]*meta.ClassMetaData, len(ordered))
	for _, cmd := range ordered {
		byName[cmd.FullName] = cmd
	}
	return &Generator{
		mapper:  NewTypeMapper(),
		ordered: ordered,
		byName:  byName,
	}
}

// GenerateSchema generates all CREATE TABLE and CREATE VIEW statements in
// execution order: tables dependencies-first, views after every table.
func (g *Generator) GenerateSchema() ([]Statement, error) {
	var tables, views []Statement

	for _, cmd := range g.ordered {
		if cmd.ViewDefinition != "" {
			sql, err := g.CreateView(cmd)
			if err != nil {
				return nil, err
			}
			views = append(views, Statement{Class: cmd.FullName, Kind: "view", SQL: sql})
			continue
		}

		if owner := cmd.TableOwner(); owner == nil || owner != cmd {
			// Stored in an ancestor's table or only through subclasses
			continue
		}

		sql, err := g.CreateTable(cmd)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Statement{Class: cmd.FullName, Kind: "table", SQL: sql})
	}

	return append(tables, views...), nil
}

// CreateTable generates the CREATE TABLE statement for a table-owning
// class. Under single-table inheritance the columns of every subclass
// stored in this table are merged in; under complete-table the inherited
// columns are repeated.
func (g *Generator) CreateTable(cmd *meta.ClassMetaData) (string, error) {
	if cmd.Table == "" {
		return "", merr.New("schemagen", merr.ErrTableNameMissing, cmd.FullName,
			"class owns no table name")
	}

	var defs []string

	// Identity columns come first.
	switch cmd.IdentityType {
	case meta.IdentityDatastore:
		defs = append(defs, fmt.Sprintf("%s BIGSERIAL PRIMARY KEY", QuoteIdentifier("id")))
	case meta.IdentityApplication:
		pkDefs, err := g.pkColumnDefs(cmd)
		if err != nil {
			return "", err
		}
		defs = append(defs, pkDefs...)
	}

	// Joined subclasses reference their parent's table by primary key.
	if cmd.Inheritance == meta.StrategyNewTable && cmd.Superclass() != nil {
		if parentOwner := cmd.Superclass().TableOwner(); parentOwner != nil {
			defs = append(defs, fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s",
				g.pkColumnList(cmd), QuoteIdentifier(parentOwner.Table)))
		}
	}

	if cmd.Discriminator != nil && cmd.Discriminator.Strategy != meta.DiscriminatorNone &&
		!cmd.Discriminator.Inherited {
		defs = append(defs, fmt.Sprintf("%s VARCHAR(255) NOT NULL",
			QuoteIdentifier(cmd.Discriminator.Column)))
	}

	if cmd.Version != nil && cmd.Version.Strategy != meta.VersionNone && cmd.Version.Column != "" {
		defs = append(defs, fmt.Sprintf("%s BIGINT NOT NULL DEFAULT 1",
			QuoteIdentifier(cmd.Version.Column)))
	}

	memberDefs, err := g.memberColumnDefs(cmd)
	if err != nil {
		return "", err
	}
	defs = append(defs, memberDefs...)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdentifier(cmd.Table)))
	for i, def := range defs {
		b.WriteString("  ")
		b.WriteString(def)
		if i < len(defs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String(), nil
}

// pkColumnDefs generates the primary-key column definitions for an
// application-identity class.
func (g *Generator) pkColumnDefs(cmd *meta.ClassMetaData) ([]string, error) {
	positions, err := cmd.PKMemberPositions()
	if err != nil {
		return nil, err
	}

	var defs []string
	var names []string
	for _, pos := range positions {
		m, err := cmd.MemberAtPosition(pos)
		if err != nil {
			return nil, err
		}
		colType, err := g.mapper.MapType(m.Type)
		if err != nil {
			return nil, merr.NewMember("schemagen", merr.ErrUnmappableType,
				cmd.FullName, m.Name, err.Error())
		}
		defs = append(defs, fmt.Sprintf("%s %s NOT NULL", QuoteIdentifier(m.Column), colType))
		names = append(names, QuoteIdentifier(m.Column))
	}
	defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(names, ", ")))
	return defs, nil
}

// pkColumnList returns the comma-separated quoted PK column names
func (g *Generator) pkColumnList(cmd *meta.ClassMetaData) string {
	positions, err := cmd.PKMemberPositions()
	if err != nil || len(positions) == 0 {
		return QuoteIdentifier("id")
	}
	var names []string
	for _, pos := range positions {
		if m, err := cmd.MemberAtPosition(pos); err == nil {
			names = append(names, QuoteIdentifier(m.Column))
		}
	}
	return strings.Join(names, ", ")
}

// memberColumnDefs generates column definitions for the members stored in
// this class's table.
func (g *Generator) memberColumnDefs(cmd *meta.ClassMetaData) ([]string, error) {
	members, err := g.storedMembers(cmd)
	if err != nil {
		return nil, err
	}

	var defs []string
	for _, m := range members {
		if m.PrimaryKey || m.Modifier != meta.FieldPersistent {
			continue
		}

		switch m.RelationType() {
		case meta.RelationOneToMany, meta.RelationManyToMany:
			// Held on the other side or in a join table
			continue
		case meta.RelationManyToOne, meta.RelationOneToOne:
			def, err := g.foreignKeyDef(cmd, m)
			if err != nil {
				return nil, err
			}
			defs = append(defs, def...)
			continue
		}

		colType, err := g.mapper.MapType(m.Type)
		if err != nil {
			return nil, merr.NewMember("schemagen", merr.ErrUnmappableType,
				cmd.FullName, m.Name, err.Error())
		}
		defs = append(defs, fmt.Sprintf("%s %s %s",
			QuoteIdentifier(m.Column), colType, g.mapper.MapNullability(m.Type)))
	}
	return defs, nil
}

// storedMembers returns the members whose columns live in cmd's table
func (g *Generator) storedMembers(cmd *meta.ClassMetaData) ([]*meta.MemberMetaData, error) {
	var members []*meta.MemberMetaData

	appendAll := func(c *meta.ClassMetaData) error {
		count, err := c.MemberCount()
		if err != nil {
			return err
		}
		start := 0
		if c.Inheritance != meta.StrategyCompleteTable && c.Superclass() != nil {
			start, err = c.NoOfInheritedManagedMembers()
			if err != nil {
				return err
			}
		}
		for pos := start; pos < count; pos++ {
			m, err := c.MemberAtPosition(pos)
			if err != nil {
				return err
			}
			members = append(members, m)
		}
		return nil
	}

	if err := appendAll(cmd); err != nil {
		return nil, err
	}

	// Single-table inheritance stores subclass columns here too.
	for _, sub := range g.ordered {
		if sub == cmd || !sub.IsDescendantOf(cmd.FullName) {
			continue
		}
		if sub.TableOwner() == cmd {
			if err := appendAll(sub); err != nil {
				return nil, err
			}
		}
	}

	return members, nil
}

// foreignKeyDef generates the FK column (and constraint) for a to-one
// relation member.
func (g *Generator) foreignKeyDef(cmd *meta.ClassMetaData, m *meta.MemberMetaData) ([]string, error) {
	target := g.byName[m.TargetClass()]
	if target == nil {
		return nil, merr.NewMember("schemagen", merr.ErrUnknownReference,
			cmd.FullName, m.Name, "relation target "+m.TargetClass()+" is not registered")
	}
	owner := target.TableOwner()
	if owner == nil {
		return nil, merr.NewMember("schemagen", merr.ErrTableNameMissing,
			cmd.FullName, m.Name, "relation target "+target.FullName+" owns no table")
	}

	column := m.Column + "_id"
	colType := "BIGINT"
	if positions, err := target.PKMemberPositions(); err == nil && len(positions) == 1 {
		if pk, err := target.MemberAtPosition(positions[0]); err == nil {
			if mapped, err := g.mapper.MapType(pk.Type); err == nil {
				colType = mapped
			}
		}
	}

	nullability := "NOT NULL"
	if m.Type.Nullable {
		nullability = "NULL"
	}

	return []string{
		fmt.Sprintf("%s %s %s", QuoteIdentifier(column), colType, nullability),
		fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s",
			QuoteIdentifier(column), QuoteIdentifier(owner.Table)),
	}, nil
}

// CreateView generates the CREATE VIEW statement for a view-backed class,
// replacing each {Class} placeholder with the referenced class's table.
func (g *Generator) CreateView(cmd *meta.ClassMetaData) (string, error) {
	definition := cmd.ViewDefinition
	for _, ref := range cmd.ViewReferences() {
		target := g.byName[ref]
		if target == nil {
			return "", merr.Newf("schemagen", merr.ErrUnknownReference, cmd.FullName,
				"view references unknown class %s", ref)
		}
		table := target.Table
		if table == "" {
			if owner := target.TableOwner(); owner != nil {
				table = owner.Table
			}
		}
		if table == "" {
			return "", merr.Newf("schemagen", merr.ErrTableNameMissing, cmd.FullName,
				"view reference %s owns no table", ref)
		}
		definition = strings.ReplaceAll(definition, "{"+ref+"}", QuoteIdentifier(table))
	}

	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS\n%s;",
		QuoteIdentifier(cmd.Table), definition), nil
}
