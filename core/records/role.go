package records

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Well-known Moodle role shortnames.
const (
	RoleNone           = "none"
	RoleManager        = "manager"
	RoleCourseCreator  = "coursecreator"
	RoleEditingTeacher = "editingteacher"
	RoleTeacher        = "teacher"
	RoleStudent        = "student"
	RoleGuest          = "guest"
	RoleUser           = "user"
	RoleFrontpage      = "frontpage"
)

// NoRoleID marks a course participation that carries no role assignment.
const NoRoleID int64 = 0

// Role is a Moodle role definition.
type Role struct {
	ID          int64  `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Shortname   string `json:"shortname" yaml:"shortname"`
	SortOrder   int    `json:"sortorder" yaml:"sortorder"`
	Archetype   string `json:"archetype" yaml:"archetype"`
	Description string `json:"description" yaml:"description"`
}

// DefaultRoles returns the stock Moodle role enumeration.
func DefaultRoles() []Role {
	return []Role{
		{ID: 0, Name: "No Role", Shortname: RoleNone, SortOrder: 0, Archetype: "", Description: "Enrolled in the course without a role."},
		{ID: 1, Name: "Manager", Shortname: RoleManager, SortOrder: 1, Archetype: "manager", Description: "Managers can access courses and modify them."},
		{ID: 2, Name: "Course creator", Shortname: RoleCourseCreator, SortOrder: 2, Archetype: "coursecreator", Description: "Course creators can create new courses."},
		{ID: 3, Name: "Teacher", Shortname: RoleEditingTeacher, SortOrder: 3, Archetype: "editingteacher", Description: "Teachers can do anything within a course, including changing the activities and grading students."},
		{ID: 4, Name: "Non-editing teacher", Shortname: RoleTeacher, SortOrder: 4, Archetype: "teacher", Description: "Non-editing teachers can teach in courses and grade students, but may not alter activities."},
		{ID: 5, Name: "Student", Shortname: RoleStudent, SortOrder: 5, Archetype: "student", Description: "Students generally have fewer privileges within a course."},
		{ID: 6, Name: "Guest", Shortname: RoleGuest, SortOrder: 6, Archetype: "guest", Description: "Guests have minimal privileges and usually can not enter text anywhere."},
		{ID: 7, Name: "Authenticated user", Shortname: RoleUser, SortOrder: 7, Archetype: "user", Description: "All logged in users."},
		{ID: 8, Name: "Authenticated user on the front page", Shortname: RoleFrontpage, SortOrder: 8, Archetype: "frontpage", Description: "A logged-in user role for the front page only."},
	}
}

// RoleTable resolves roles by shortname or id.
// The zero value is empty; use NewRoleTable for the stock roles.
type RoleTable struct {
	byID   map[int64]Role
	byName map[string]Role
}

// NewRoleTable builds a table from the stock roles plus any extra definitions.
// Extra definitions replace stock roles with the same id or shortname.
func NewRoleTable(extra ...Role) *RoleTable {
	t := &RoleTable{
		byID:   make(map[int64]Role),
		byName: make(map[string]Role),
	}
	t.Define(DefaultRoles()...)
	t.Define(extra...)
	return t
}

// Define adds or replaces role definitions.
func (t *RoleTable) Define(roles ...Role) {
	if t.byID == nil {
		t.byID = make(map[int64]Role)
		t.byName = make(map[string]Role)
	}
	for _, r := range roles {
		if old, ok := t.byID[r.ID]; ok {
			delete(t.byName, old.Shortname)
		}
		t.byID[r.ID] = r
		t.byName[strings.ToLower(r.Shortname)] = r
	}
}

// Lookup finds a role by shortname or by numeric id.
func (t *RoleTable) Lookup(nameOrID string) (Role, bool) {
	key := strings.TrimSpace(nameOrID)
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		r, ok := t.byID[id]
		return r, ok
	}
	r, ok := t.byName[strings.ToLower(key)]
	return r, ok
}

// ByID finds a role by id.
func (t *RoleTable) ByID(id int64) (Role, bool) {
	r, ok := t.byID[id]
	return r, ok
}

// Roles returns all roles ordered by sort order.
func (t *RoleTable) Roles() []Role {
	out := make([]Role, 0, len(t.byID))
	for _, r := range t.byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder == out[j].SortOrder {
			return out[i].ID < out[j].ID
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

type roleFile struct {
	Roles []Role `yaml:"roles"`
}

// LoadRoles reads extra role definitions from a YAML file of the form:
//
//	roles:
//	  - id: 9
//	    shortname: assessor
//	    name: Assessor
func LoadRoles(path string) ([]Role, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roles file: %w", err)
	}
	return ParseRoles(data)
}

// ParseRoles decodes YAML role definitions.
func ParseRoles(data []byte) ([]Role, error) {
	var f roleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roles: %w", err)
	}
	for i, r := range f.Roles {
		if r.Shortname == "" {
			return nil, fmt.Errorf("parse roles: entry %d has no shortname", i)
		}
		if r.Name == "" {
			f.Roles[i].Name = r.Shortname
		}
	}
	return f.Roles, nil
}
