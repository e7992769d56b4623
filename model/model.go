// Package model holds the membership entities: their descriptors, Go types,
// typed query paths and projections.
package model

import (
	_ "embed"
	"fmt"

	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
)

//go:embed entities.yaml
var entitiesYAML []byte

var (
	registry *schema.Registry

	HelloEntity  *schema.EntityDefinition
	TeamEntity   *schema.EntityDefinition
	MemberEntity *schema.EntityDefinition
)

func init() {
	defs, err := schema.LoadYAML(entitiesYAML)
	if err != nil {
		panic(fmt.Sprintf("model: invalid embedded entities: %v", err))
	}
	registry, err = schema.NewRegistry(defs...)
	if err != nil {
		panic(fmt.Sprintf("model: invalid embedded entities: %v", err))
	}
	if err := registry.CheckReferences(); err != nil {
		panic(fmt.Sprintf("model: invalid embedded entities: %v", err))
	}
	HelloEntity = registry.MustLookup("Hello")
	TeamEntity = registry.MustLookup("Team")
	MemberEntity = registry.MustLookup("Member")
}

// Registry returns the registry of the model's entities.
func Registry() *schema.Registry {
	return registry
}

// Descriptors returns the embedded descriptor file.
func Descriptors() []byte {
	return entitiesYAML
}

type Hello struct {
	ID int64
}

type Team struct {
	ID   int64
	Name string
}

// Member belongs to at most one team. TeamID is always set from the stored
// row; Team is only populated when the association was fetch joined.
type Member struct {
	ID       int64
	Username *string
	Age      int
	TeamID   *int64
	Team     *Team
}

// MemberDto is a read-only view of a member.
type MemberDto struct {
	Username string
	Age      int
}

// NewMember creates an unsaved member.
func NewMember(username string, age int, team *Team) *Member {
	m := &Member{Username: &username, Age: age, Team: team}
	if team != nil {
		m.TeamID = &team.ID
	}
	return m
}

func HelloFromDocument(doc schema.Document) (*Hello, error) {
	id, err := int64Of(doc, "id")
	if err != nil {
		return nil, err
	}
	return &Hello{ID: id}, nil
}

func TeamFromDocument(doc schema.Document) (*Team, error) {
	id, err := int64Of(doc, "id")
	if err != nil {
		return nil, err
	}
	name, _ := doc["name"].(string)
	return &Team{ID: id, Name: name}, nil
}

// MemberFromDocument maps a member row. The team value is either the
// referenced identifier or, for a fetch join, the team's own document.
func MemberFromDocument(doc schema.Document) (*Member, error) {
	id, err := int64Of(doc, "id")
	if err != nil {
		return nil, err
	}
	age, err := int64Of(doc, "age")
	if err != nil {
		return nil, err
	}
	m := &Member{ID: id, Age: int(age)}
	if username, ok := doc["username"].(string); ok {
		m.Username = &username
	}

	switch team := doc["team"].(type) {
	case nil:
	case int64:
		m.TeamID = &team
	case schema.Document:
		t, err := TeamFromDocument(team)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", id, err)
		}
		m.Team = t
		m.TeamID = &t.ID
	default:
		return nil, &query.MappingError{Expression: "Member.team", Value: team, Target: "*model.Team"}
	}
	return m, nil
}

func int64Of(doc schema.Document, field string) (int64, error) {
	v, ok := doc[field].(int64)
	if !ok {
		return 0, &query.MappingError{Expression: field, Value: doc[field], Target: "int64"}
	}
	return v, nil
}

// Document returns the record to insert for the team.
func (t *Team) Document() schema.Document {
	return schema.Document{"name": t.Name}
}

// Document returns the record to insert for the member. Unset values are
// stored as NULL.
func (m *Member) Document() schema.Document {
	doc := schema.Document{"age": m.Age, "username": nil, "team": nil}
	if m.Username != nil {
		doc["username"] = *m.Username
	}
	if m.TeamID != nil {
		doc["team"] = *m.TeamID
	} else if m.Team != nil {
		doc["team"] = m.Team.ID
	}
	return doc
}
