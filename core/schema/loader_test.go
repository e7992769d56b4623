package schema

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		defs, err := LoadFile(filepath.Join("testdata", "entities.yaml"))
		require.NoError(t, err)
		require.Len(t, defs, 2)

		assert.Equal(t, "Team", defs[0].Name)
		member := defs[1]
		assert.Equal(t, "Member", member.Name)
		assert.True(t, member.Generated)
		team := member.FindField("team")
		require.NotNil(t, team)
		assert.Equal(t, FieldTypeReference, team.Type)
		assert.Equal(t, "team_id", team.ColumnName())
		assert.True(t, team.Nullable)
	})

	t.Run("json", func(t *testing.T) {
		defs, err := LoadFile(filepath.Join("testdata", "entities.json"))
		require.NoError(t, err)
		require.Len(t, defs, 1)
		assert.Equal(t, "hello", defs[0].TableName())
	})

	t.Run("unknown extension", func(t *testing.T) {
		_, err := LoadFile(filepath.Join("testdata", "entities.toml"))
		assert.Error(t, err)
	})
}

func TestLoadYAML_RejectsInvalidDescriptors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing entities", "other: true\n"},
		{"unknown field type", "entities:\n  - name: A\n    fields:\n      - name: id\n        type: decimal\n"},
		{"unknown property", "entities:\n  - name: A\n    color: red\n    fields:\n      - name: id\n        type: integer\n"},
		{"no fields", "entities:\n  - name: A\n    fields: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadYAML([]byte(tt.doc))
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, "DESCRIPTOR_INVALID", verr.Issues[0].Code)
		})
	}
}

func TestLoadYAML_RunsDefinitionValidation(t *testing.T) {
	doc := "entities:\n  - name: A\n    fields:\n      - name: key\n        type: integer\n"
	_, err := LoadYAML([]byte(doc))
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "IDENTIFIER_MISSING", verr.Issues[0].Code)
}
