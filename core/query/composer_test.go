package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAndOr_NilIdentity(t *testing.T) {
	m := newQMember("member")
	p := m.Age.Eq(10)

	assert.Nil(t, And())
	assert.Nil(t, And(nil, nil))
	assert.Same(t, p, And(nil, p))
	assert.Same(t, p, Or(p, nil))
	assert.Nil(t, Not(nil))

	var none *ComparisonExpr
	assert.Nil(t, And(none))
	assert.Same(t, p, Or(none, p))
	assert.Nil(t, Not((*ExistsExpr)(nil)))

	flat := And(And(p, m.Age.Eq(20)), m.Age.Eq(30))
	require.IsType(t, &LogicalExpr{}, flat)
	assert.Len(t, flat.(*LogicalExpr).Operands, 3)
}

type memberSearchCondition struct {
	Username *string
	AgeGoe   *int
	AgeLoe   *int
}

func searchPredicate(m qMember, cond memberSearchCondition) Predicate {
	return And(
		When(cond.Username, m.Username.Eq),
		When(cond.AgeGoe, m.Age.Goe),
		When(cond.AgeLoe, m.Age.Loe),
	)
}

func TestWhen(t *testing.T) {
	m := newQMember("member")

	tests := []struct {
		name     string
		cond     memberSearchCondition
		expected string
	}{
		{"no filters", memberSearchCondition{}, ""},
		{"username only", memberSearchCondition{Username: StringPtr("member1")}, "member.username = 'member1'"},
		{"age range", memberSearchCondition{AgeGoe: IntPtr(20), AgeLoe: IntPtr(30)}, "member.age >= 20 and member.age <= 30"},
		{"all", memberSearchCondition{Username: StringPtr("m"), AgeGoe: IntPtr(1), AgeLoe: IntPtr(2)},
			"member.username = 'm' and member.age >= 1 and member.age <= 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := searchPredicate(m, tt.cond)
			if tt.expected == "" {
				assert.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			assert.NoError(t, p.Err())
			assert.Equal(t, tt.expected, p.String())
		})
	}
}

func TestWhenNotZero(t *testing.T) {
	m := newQMember("member")
	assert.Nil(t, WhenNotZero("", m.Username.Eq))
	assert.Nil(t, WhenNotZero(0, m.Age.Goe))
	assert.Equal(t, "member.age >= 5", WhenNotZero(5, m.Age.Goe).String())
}

func TestBooleanBuilder(t *testing.T) {
	m := newQMember("member")

	b := NewBooleanBuilder()
	assert.False(t, b.HasValue())
	assert.Nil(t, b.Value())

	for _, name := range []string{"member1", "member2"} {
		b.Or(m.Username.Eq(name))
	}
	b.And(nil)
	b.And(m.Age.Gt(5))

	require.True(t, b.HasValue())
	assert.Equal(t, "(member.username = 'member1' or member.username = 'member2') and member.age > 5", b.Value().String())
}
