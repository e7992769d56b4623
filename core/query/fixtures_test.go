package query

import "github.com/asaidimu/go-querydsl/core/schema"

var (
	teamDef = &schema.EntityDefinition{
		Name:      "Team",
		Generated: true,
		Fields: []*schema.FieldDefinition{
			{Name: "id", Type: schema.FieldTypeInteger},
			{Name: "name", Type: schema.FieldTypeString},
		},
	}
	memberDef = &schema.EntityDefinition{
		Name:      "Member",
		Generated: true,
		Fields: []*schema.FieldDefinition{
			{Name: "id", Type: schema.FieldTypeInteger},
			{Name: "username", Type: schema.FieldTypeString, Nullable: true},
			{Name: "age", Type: schema.FieldTypeInteger},
			{Name: "team", Type: schema.FieldTypeReference, Column: "team_id", Nullable: true, Reference: "Team"},
			{Name: "joined", Type: schema.FieldTypeDateTime, Nullable: true},
			{Name: "active", Type: schema.FieldTypeBoolean},
		},
	}
)

type qMember struct {
	EntityPath
	ID       NumberExpression
	Username StringExpression
	Age      NumberExpression
	Team     ReferencePath
	Joined   DateTimeExpression
	Active   BooleanExpression
}

func newQMember(alias string) qMember {
	e := NewEntityPath(memberDef, alias)
	return qMember{
		EntityPath: e,
		ID:         e.NumberField("id"),
		Username:   e.StringField("username"),
		Age:        e.NumberField("age"),
		Team:       e.ReferenceField("team"),
		Joined:     e.DateTimeField("joined"),
		Active:     e.BooleanField("active"),
	}
}

type qTeam struct {
	EntityPath
	ID   NumberExpression
	Name StringExpression
}

func newQTeam(alias string) qTeam {
	e := NewEntityPath(teamDef, alias)
	return qTeam{
		EntityPath: e,
		ID:         e.NumberField("id"),
		Name:       e.StringField("name"),
	}
}
