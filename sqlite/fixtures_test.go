package sqlite

import (
	"github.com/asaidimu/go-querydsl/core/query"
	"github.com/asaidimu/go-querydsl/core/schema"
)

var (
	helloDef = &schema.EntityDefinition{
		Name:      "Hello",
		Generated: true,
		Fields: []*schema.FieldDefinition{
			{Name: "id", Type: schema.FieldTypeInteger},
		},
	}
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

type paths struct {
	query.EntityPath
	ID       query.NumberExpression
	Username query.StringExpression
	Age      query.NumberExpression
	Team     query.ReferencePath
	Joined   query.DateTimeExpression
	Active   query.BooleanExpression
}

func member(alias string) paths {
	e := query.NewEntityPath(memberDef, alias)
	return paths{
		EntityPath: e,
		ID:         e.NumberField("id"),
		Username:   e.StringField("username"),
		Age:        e.NumberField("age"),
		Team:       e.ReferenceField("team"),
		Joined:     e.DateTimeField("joined"),
		Active:     e.BooleanField("active"),
	}
}

type teamPaths struct {
	query.EntityPath
	ID   query.NumberExpression
	Name query.StringExpression
}

func team(alias string) teamPaths {
	e := query.NewEntityPath(teamDef, alias)
	return teamPaths{EntityPath: e, ID: e.NumberField("id"), Name: e.StringField("name")}
}
