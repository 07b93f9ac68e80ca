package moodleapi

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"testing"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roster is the enrolment state behind a fake Moodle course.
type roster struct {
	mu    sync.Mutex
	roles map[int64]map[int64]struct{}
}

func (r *roster) install(f *fakeMoodle) {
	names := map[int64]string{3: "editingteacher", 5: "student"}
	f.handle("core_enrol_get_enrolled_users", func(url.Values) any {
		r.mu.Lock()
		defer r.mu.Unlock()
		var ids []int64
		for id := range r.roles {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		var out []map[string]any
		for _, id := range ids {
			var roles []map[string]any
			for role := range r.roles[id] {
				roles = append(roles, map[string]any{"roleid": role, "shortname": names[role]})
			}
			out = append(out, map[string]any{"id": id, "username": "user" + strconv.FormatInt(id, 10), "roles": roles})
		}
		return out
	})
	f.handle("enrol_manual_enrol_users", func(p url.Values) any {
		r.mu.Lock()
		defer r.mu.Unlock()
		user, _ := strconv.ParseInt(p.Get("enrolments[0][userid]"), 10, 64)
		role, _ := strconv.ParseInt(p.Get("enrolments[0][roleid]"), 10, 64)
		if r.roles[user] == nil {
			r.roles[user] = map[int64]struct{}{}
		}
		r.roles[user][role] = struct{}{}
		return nil
	})
	f.handle("core_role_unassign_roles", func(p url.Values) any {
		r.mu.Lock()
		defer r.mu.Unlock()
		user, _ := strconv.ParseInt(p.Get("unassignments[0][userid]"), 10, 64)
		role, _ := strconv.ParseInt(p.Get("unassignments[0][roleid]"), 10, 64)
		delete(r.roles[user], role)
		return nil
	})
	f.handle("enrol_manual_unenrol_users", func(p url.Values) any {
		r.mu.Lock()
		defer r.mu.Unlock()
		user, _ := strconv.ParseInt(p.Get("enrolments[0][userid]"), 10, 64)
		delete(r.roles, user)
		return nil
	})
}

func TestEnrolmentProvider_Members(t *testing.T) {
	f, client := newFakeMoodle(t, false)
	r := &roster{roles: map[int64]map[int64]struct{}{
		10: {5: {}},
		11: {},
	}}
	r.install(f)
	p := NewEnrolmentProvider(client, Config{}, nil, nil)

	members, err := p.Members(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, records.Membership{UserID: 10, CourseID: 42, RoleID: 5, Username: "user10", RoleName: "student"}, members[0])
	assert.Equal(t, records.NoRoleID, members[1].RoleID)
	assert.Equal(t, records.RoleNone, members[1].RoleName)
	assert.Equal(t, "42", f.callsFor("core_enrol_get_enrolled_users")[0].Params.Get("courseid"))
}

func TestEnrolmentProvider_Lifecycle(t *testing.T) {
	f, client := newFakeMoodle(t, false)
	r := &roster{roles: map[int64]map[int64]struct{}{}}
	r.install(f)
	p := NewEnrolmentProvider(client, Config{}, nil, nil)
	ctx := context.Background()

	out, err := p.EnrolUser(ctx, 10, 42, 5)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 1, out.NewEnrols)
	assert.Equal(t, 1, out.RolesAdded)
	assert.False(t, out.DryRun)

	out, err = p.EnrolUser(ctx, 10, 42, 5)
	require.NoError(t, err)
	assert.Nil(t, out, "role already held")

	out, err = p.EnrolUser(ctx, 10, 42, 3)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 0, out.NewEnrols)

	out, err = p.UnenrolUser(ctx, 10, 42, 5)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 1, out.RolesDeleted)
	unassign := f.callsFor("core_role_unassign_roles")
	require.Len(t, unassign, 1)
	assert.Equal(t, "course", unassign[0].Params.Get("unassignments[0][contextlevel]"))
	assert.Equal(t, "42", unassign[0].Params.Get("unassignments[0][instanceid]"))

	out, err = p.UnenrolUser(ctx, 10, 42, 5)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = p.DeleteUser(ctx, 10, 42)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 1, out.RolesDeleted)
	assert.Equal(t, 1, out.ParticipationsDeleted)

	out, err = p.DeleteUser(ctx, 10, 42)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestEnrolmentProvider_DryRun(t *testing.T) {
	f, client := newFakeMoodle(t, true)
	r := &roster{roles: map[int64]map[int64]struct{}{10: {5: {}}}}
	r.install(f)
	p := NewEnrolmentProvider(client, Config{}, nil, nil)
	ctx := context.Background()

	out, err := p.EnrolUser(ctx, 11, 42, 5)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.DryRun)

	out, err = p.DeleteUser(ctx, 10, 42)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.DryRun)

	assert.Empty(t, f.posts())
	assert.Len(t, r.roles, 1)
}

func TestEnrolmentProvider_Roles(t *testing.T) {
	t.Run("table only", func(t *testing.T) {
		f, client := newFakeMoodle(t, false)
		p := NewEnrolmentProvider(client, Config{}, nil, nil)
		ctx := context.Background()

		id, err := p.RoleID(ctx, "student")
		require.NoError(t, err)
		assert.Equal(t, int64(5), id)

		name, err := p.RoleName(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, records.RoleEditingTeacher, name)

		_, err = p.RoleID(ctx, "assessor")
		assert.True(t, provider.IsNotFound(err))
		assert.Empty(t, f.callsFor("core_role_get_roles"))
	})

	t.Run("web service", func(t *testing.T) {
		f, client := newFakeMoodle(t, false)
		f.reply("core_role_get_roles", []map[string]any{
			{"id": 9, "shortname": "assessor", "name": "Assessor", "sortorder": 9},
		})
		p := NewEnrolmentProvider(client, Config{RolesWebservice: true}, nil, nil)
		ctx := context.Background()

		id, err := p.RoleID(ctx, "assessor")
		require.NoError(t, err)
		assert.Equal(t, int64(9), id)

		name, err := p.RoleName(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, "assessor", name)

		_, err = p.RoleName(ctx, 99)
		assert.True(t, provider.IsNotFound(err))
		assert.Len(t, f.callsFor("core_role_get_roles"), 1)
	})
}

func TestEnrolmentProvider_Lookups(t *testing.T) {
	f, client := newFakeMoodle(t, false)
	f.handle("core_user_get_users_by_field", func(p url.Values) any {
		switch p.Get("field") + "=" + p.Get("values[0]") {
		case "username=alice", "id=10":
			return []map[string]any{{"id": 10, "username": "alice"}}
		}
		return []any{}
	})
	f.handle("core_course_get_courses_by_field", byField(map[string][]map[string]any{
		"shortname=HIS-101": {{"id": 42, "shortname": "HIS-101"}},
	}))
	p := NewEnrolmentProvider(client, Config{}, nil, nil)
	ctx := context.Background()

	id, err := p.UserID(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(10), id)

	name, err := p.Username(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	_, err = p.UserID(ctx, "bob")
	assert.True(t, provider.IsNotFound(err))

	courseID, err := p.CourseID(ctx, "HIS-101")
	require.NoError(t, err)
	assert.Equal(t, int64(42), courseID)

	_, err = p.CourseID(ctx, "ART-100")
	assert.True(t, provider.IsNotFound(err))
}
