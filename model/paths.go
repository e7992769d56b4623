package model

import "github.com/asaidimu/go-querydsl/core/query"

// QHello is the typed path of a Hello alias.
type QHello struct {
	query.EntityPath
	ID query.NumberExpression
}

func NewQHello(alias string) QHello {
	e := query.NewEntityPath(HelloEntity, alias)
	return QHello{EntityPath: e, ID: e.NumberField("id")}
}

// Entity projects the whole entity.
func (q QHello) Entity() query.EntityProjection[*Hello] {
	return query.Entity(q.EntityPath, HelloFromDocument)
}

// QTeam is the typed path of a Team alias.
type QTeam struct {
	query.EntityPath
	ID   query.NumberExpression
	Name query.StringExpression
}

func NewQTeam(alias string) QTeam {
	e := query.NewEntityPath(TeamEntity, alias)
	return QTeam{
		EntityPath: e,
		ID:         e.NumberField("id"),
		Name:       e.StringField("name"),
	}
}

// Entity projects the whole entity.
func (q QTeam) Entity() query.EntityProjection[*Team] {
	return query.Entity(q.EntityPath, TeamFromDocument)
}

// QMember is the typed path of a Member alias.
type QMember struct {
	query.EntityPath
	ID       query.NumberExpression
	Username query.StringExpression
	Age      query.NumberExpression
	Team     query.ReferencePath
}

func NewQMember(alias string) QMember {
	e := query.NewEntityPath(MemberEntity, alias)
	return QMember{
		EntityPath: e,
		ID:         e.NumberField("id"),
		Username:   e.StringField("username"),
		Age:        e.NumberField("age"),
		Team:       e.ReferenceField("team"),
	}
}

// Entity projects the whole entity.
func (q QMember) Entity() query.EntityProjection[*Member] {
	return query.Entity(q.EntityPath, MemberFromDocument)
}

// Dto projects username and age through the MemberDto constructor.
func (q QMember) Dto() query.ConstructorProjection[MemberDto] {
	return query.Constructor2(q.Username, q.Age, func(username string, age int) MemberDto {
		return MemberDto{Username: username, Age: age}
	})
}

// DtoFields projects username and age into a MemberDto field by field.
func (q QMember) DtoFields() query.FieldsProjection[MemberDto] {
	return query.Fields(
		query.Bind(q.Username, func(d *MemberDto, v string) { d.Username = v }),
		query.Bind(q.Age, func(d *MemberDto, v int) { d.Age = v }),
	)
}
