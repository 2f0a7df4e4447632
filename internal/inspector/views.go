package inspector

import "github.com/keystone-orm/keystone/internal/meta"

// classSummary is the list-endpoint shape of a class
type classSummary struct {
	Name           string `json:"name"`
	FullName       string `json:"fullName"`
	EntityName     string `json:"entityName,omitempty"`
	IdentityType   string `json:"identityType"`
	Inheritance    string `json:"inheritance"`
	Table          string `json:"table,omitempty"`
	ViewBacked     bool   `json:"viewBacked,omitempty"`
	SuperclassName string `json:"superclass,omitempty"`
	State          string `json:"state"`
}

// classDetail is the show-endpoint shape of a class
type classDetail struct {
	classSummary

	ObjectIDClass     string             `json:"objectIdClass,omitempty"`
	Instantiable      bool               `json:"instantiable"`
	Discriminator     *discriminatorView `json:"discriminator,omitempty"`
	Version           *versionView       `json:"version,omitempty"`
	Members           []memberView       `json:"members"`
	InheritedMembers  int                `json:"inheritedMembers"`
	PKPositions       []int              `json:"pkPositions"`
	DFGPositions      []int              `json:"dfgPositions"`
	SCOPositions      []int              `json:"scoPositions"`
	RelationPositions []int              `json:"relationPositions"`
	ReferencedClasses []string           `json:"referencedClasses,omitempty"`
}

type discriminatorView struct {
	Strategy  string `json:"strategy"`
	Column    string `json:"column"`
	Value     string `json:"value,omitempty"`
	Inherited bool   `json:"inherited,omitempty"`
}

type versionView struct {
	Strategy string `json:"strategy"`
	Column   string `json:"column,omitempty"`
	Member   string `json:"member,omitempty"`
}

type memberView struct {
	Position       int    `json:"position"`
	Name           string `json:"name"`
	DeclaringClass string `json:"declaringClass"`
	Type           string `json:"type"`
	Column         string `json:"column,omitempty"`
	PrimaryKey     bool   `json:"primaryKey,omitempty"`
	Relation       string `json:"relation,omitempty"`
	DFG            bool   `json:"defaultFetchGroup"`
	SCOMutable     bool   `json:"scoMutable,omitempty"`
}

type graphEdge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func summarize(cmd *meta.ClassMetaData) classSummary {
	return classSummary{
		Name:           cmd.Name,
		FullName:       cmd.FullName,
		EntityName:     cmd.EntityName,
		IdentityType:   cmd.IdentityType.String(),
		Inheritance:    cmd.Inheritance.String(),
		Table:          cmd.Table,
		ViewBacked:     cmd.ViewDefinition != "",
		SuperclassName: cmd.SuperclassName,
		State:          cmd.State().String(),
	}
}

func describe(cmd *meta.ClassMetaData) (*classDetail, error) {
	count, err := cmd.MemberCount()
	if err != nil {
		return nil, err
	}
	inherited, err := cmd.NoOfInheritedManagedMembers()
	if err != nil {
		return nil, err
	}
	pkPositions, err := cmd.PKMemberPositions()
	if err != nil {
		return nil, err
	}
	dfgPositions, err := cmd.DFGMemberPositions()
	if err != nil {
		return nil, err
	}
	scoPositions, err := cmd.SCOMutableMemberPositions()
	if err != nil {
		return nil, err
	}
	relationPositions, err := cmd.RelationMemberPositions()
	if err != nil {
		return nil, err
	}

	members := make([]memberView, 0, count)
	for pos := 0; pos < count; pos++ {
		m, err := cmd.MemberAtPosition(pos)
		if err != nil {
			return nil, err
		}
		mv := memberView{
			Position:       pos,
			Name:           m.Name,
			DeclaringClass: m.DeclaringClass,
			Type:           m.Type.String(),
			Column:         m.Column,
			PrimaryKey:     m.PrimaryKey,
			DFG:            m.InDefaultFetchGroup(),
			SCOMutable:     m.IsSCOMutable(),
		}
		if m.IsRelation() {
			mv.Relation = m.RelationType().String()
		}
		members = append(members, mv)
	}

	detail := &classDetail{
		classSummary:      summarize(cmd),
		ObjectIDClass:     cmd.ObjectIDClass,
		Instantiable:      cmd.IsInstantiable(),
		Members:           members,
		InheritedMembers:  inherited,
		PKPositions:       pkPositions,
		DFGPositions:      dfgPositions,
		SCOPositions:      scoPositions,
		RelationPositions: relationPositions,
		ReferencedClasses: cmd.ReferencedClassNames(),
	}

	if d := cmd.Discriminator; d != nil && d.Strategy != meta.DiscriminatorNone {
		detail.Discriminator = &discriminatorView{
			Strategy:  d.Strategy.String(),
			Column:    d.Column,
			Value:     cmd.DiscriminatorValue(),
			Inherited: d.Inherited,
		}
	}
	if v := cmd.Version; v != nil && v.Strategy != meta.VersionNone {
		detail.Version = &versionView{
			Strategy: v.Strategy.String(),
			Column:   v.Column,
			Member:   v.MemberName,
		}
	}

	return detail, nil
}
