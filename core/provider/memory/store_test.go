package memory

import (
	"context"
	"errors"
	"testing"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_EnrolmentLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	courseID := s.AddCourse(records.Course{Shortname: "C1", Fullname: "Course"})
	userID := s.AddUser(records.User{Username: "alice", Email: "alice@example.com"})

	out, err := s.EnrolUser(ctx, userID, courseID, 5)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 1, out.NewEnrols)

	// Second enrol is a no-op.
	out, err = s.EnrolUser(ctx, userID, courseID, 5)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = s.EnrolUser(ctx, userID, courseID, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, out.NewEnrols)
	assert.Equal(t, 1, out.RolesAdded)

	members, err := s.Members(ctx, courseID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	out, err = s.UnenrolUser(ctx, userID, courseID, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, out.RolesDeleted)
	assert.True(t, s.IsParticipant(userID, courseID))

	out, err = s.DeleteUser(ctx, userID, courseID)
	require.NoError(t, err)
	assert.Equal(t, 1, out.ParticipationsDeleted)
	assert.False(t, s.IsParticipant(userID, courseID))

	out, err = s.DeleteUser(ctx, userID, courseID)
	require.NoError(t, err)
	assert.Nil(t, out)

	assert.Len(t, s.Calls(), 4)
}

func TestStore_BareParticipation(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	s.AddMember(7, 1, records.NoRoleID)

	members, err := s.Members(ctx, 1)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, records.NoRoleID, members[0].RoleID)
	assert.Equal(t, records.RoleNone, members[0].RoleName)
}

func TestStore_DryRun(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithDryRun(true))

	id, err := s.CreateCourse(ctx, records.Course{Shortname: "C1", Fullname: "Course"})
	require.NoError(t, err)
	assert.Equal(t, provider.DryRunCourseID, id)

	id, err = s.CreateCategory(ctx, "Cat", "")
	require.NoError(t, err)
	assert.Equal(t, provider.DryRunCategoryID, id)

	_, err = s.Course(ctx, records.FieldShortname, "C1")
	assert.True(t, provider.IsNotFound(err))

	calls := s.Calls()
	require.Len(t, calls, 2)
	assert.True(t, calls[0].DryRun)
}

func TestStore_FailOn(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")
	s.FailOn(OpCreateCourse, "C1", boom)

	_, err := s.CreateCourse(ctx, records.Course{Shortname: "C1", Fullname: "Course"})
	assert.ErrorIs(t, err, boom)

	_, err = s.CreateCourse(ctx, records.Course{Shortname: "C2", Fullname: "Course"})
	assert.NoError(t, err)
}

func TestStore_Lookups(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	parent := s.AddCategory("Humanities", 0)
	s.AddCategory("History", parent)
	uid := s.AddUser(records.User{Username: "bob", Email: "Bob@Example.com"})

	id, err := s.Category(ctx, "History")
	require.NoError(t, err)
	assert.NotZero(t, id)

	_, err = s.Category(ctx, "Science")
	assert.True(t, provider.IsNotFound(err))

	u, err := s.User(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, uid, u.ID)

	name, err := s.Username(ctx, uid)
	require.NoError(t, err)
	assert.Equal(t, "bob", name)

	roleID, err := s.RoleID(ctx, "editingteacher")
	require.NoError(t, err)
	assert.Equal(t, int64(3), roleID)

	_, err = s.CreateUser(ctx, records.User{Username: "bob"})
	assert.ErrorIs(t, err, provider.ErrAlreadyExists)
}
