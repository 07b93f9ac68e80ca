package records

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCourse_Value(t *testing.T) {
	c := Course{
		Shortname: "HIS-101",
		Fullname:  "History",
		StartDate: Int64(1700000000),
	}
	c.SetOption(FieldAutomaticEndDate, 1)

	v, ok := c.Value(FieldStartDate)
	assert.True(t, ok)
	assert.Equal(t, int64(1700000000), v)

	_, ok = c.Value(FieldEndDate)
	assert.False(t, ok, "unset optional field is absent")

	_, ok = c.Value(FieldCategoryID)
	assert.False(t, ok, "unresolved category is absent")

	v, ok = c.Value(FieldAutomaticEndDate)
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCourse_Key(t *testing.T) {
	c := Course{Shortname: "S1", IDNumber: "ID1"}
	assert.Equal(t, "S1", c.Key(FieldShortname))
	assert.Equal(t, "ID1", c.Key(FieldIDNumber))
	assert.Equal(t, "S1", c.Key(""))
}

func TestCourse_Params(t *testing.T) {
	c := Course{Shortname: "S1", Fullname: "Art &amp; Design", Visible: Int(1)}
	p := c.Params([]string{FieldFullname, FieldVisible, FieldSummary})
	assert.Equal(t, map[string]string{"fullname": "Art &amp; Design", "visible": "1"}, p)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"Entity", "Tom &amp; Jerry &lt;3&gt; &quot;q&quot; &#039;s&#039;", `Tom & Jerry <3> "q" 's'`},
		{"Plain", "abc", "abc"},
		{"True", true, "1"},
		{"False", false, "0"},
		{"Int", 42, "42"},
		{"Int64", int64(-7), "-7"},
		{"Nil", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestRoleTable_Lookup(t *testing.T) {
	table := NewRoleTable()

	r, ok := table.Lookup("student")
	require.True(t, ok)
	assert.Equal(t, int64(5), r.ID)

	r, ok = table.Lookup("3")
	require.True(t, ok)
	assert.Equal(t, RoleEditingTeacher, r.Shortname)

	r, ok = table.Lookup("EditingTeacher")
	require.True(t, ok)
	assert.Equal(t, int64(3), r.ID)

	_, ok = table.Lookup("assessor")
	assert.False(t, ok)

	r, ok = table.ByID(NoRoleID)
	require.True(t, ok)
	assert.Equal(t, RoleNone, r.Shortname)
}

func TestRoleTable_Define(t *testing.T) {
	table := NewRoleTable(Role{ID: 9, Shortname: "assessor", Name: "Assessor", SortOrder: 9})

	r, ok := table.Lookup("assessor")
	require.True(t, ok)
	assert.Equal(t, int64(9), r.ID)

	// Redefining an id drops the old shortname.
	table.Define(Role{ID: 9, Shortname: "examiner"})
	_, ok = table.Lookup("assessor")
	assert.False(t, ok)
	_, ok = table.Lookup("examiner")
	assert.True(t, ok)

	roles := table.Roles()
	assert.Len(t, roles, 10)
	assert.Equal(t, RoleNone, roles[0].Shortname)
}

func TestParseRoles(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		roles, err := ParseRoles([]byte("roles:\n  - id: 9\n    shortname: assessor\n"))
		require.NoError(t, err)
		require.Len(t, roles, 1)
		assert.Equal(t, "assessor", roles[0].Name)
	})

	t.Run("MissingShortname", func(t *testing.T) {
		_, err := ParseRoles([]byte("roles:\n  - id: 9\n"))
		assert.Error(t, err)
	})

	t.Run("BadYAML", func(t *testing.T) {
		_, err := ParseRoles([]byte("roles: ["))
		assert.Error(t, err)
	})
}

func TestEnrolment_Cancelled(t *testing.T) {
	e := Enrolment{CourseStatus: " canceled "}
	assert.True(t, e.Cancelled(DefaultCancelledStatuses))
	e.CourseStatus = "Open"
	assert.False(t, e.Cancelled(DefaultCancelledStatuses))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(Course{Shortname: "S1", Fullname: "Course"}))

	err := Validate(Course{Fullname: "Course"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shortname failed required")

	err = Validate(User{Username: "u", Email: "not-an-email", FirstName: "A", LastName: "B"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email failed email")

	assert.NoError(t, Validate(Enrolment{Shortname: "S1", Username: "u", Role: "student"}))
}
