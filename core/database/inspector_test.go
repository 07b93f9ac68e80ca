package database

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetTableColumns(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)

	err = db.Exec("CREATE TABLE mdl_course (id INTEGER PRIMARY KEY, shortname TEXT, fullname TEXT)").Error
	require.NoError(t, err)

	columns, err := GetTableColumns(db, "mdl_course")
	assert.NoError(t, err)
	assert.Len(t, columns, 3)

	colMap := make(map[string]string)
	for _, col := range columns {
		colMap[col.Field] = col.Type
	}
	assert.Equal(t, "integer", colMap["id"])
	assert.Equal(t, "text", colMap["shortname"])
	assert.Equal(t, "text", colMap["fullname"])

	// PRAGMA table_info returns no rows for a missing table.
	cols, err := GetTableColumns(db, "non_existent")
	assert.NoError(t, err)
	assert.Empty(t, cols)
}

func TestRequireSchema(t *testing.T) {
	db, err := Connect(Config{Driver: "sqlite", Name: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, db.Exec("CREATE TABLE mdl_course (id INTEGER PRIMARY KEY, shortname TEXT)").Error)

	assert.NoError(t, RequireSchema(db, map[string][]string{"mdl_course": {"id", "ShortName"}}))

	err = RequireSchema(db, map[string][]string{
		"mdl_course":      {"id", "fullname"},
		"mdl_enrol":       {"id"},
		"mdl_course_cats": nil,
	})
	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"mdl_course.fullname", "mdl_course_cats", "mdl_enrol"}, schemaErr.Missing)
}
