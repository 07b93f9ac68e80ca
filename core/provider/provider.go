package provider

import (
	"context"

	"moodle-sync/core/records"
)

// Sentinel ids returned by target mutations in dry-run mode.
const (
	DryRunCourseID   int64 = -999
	DryRunCategoryID int64 = -99
	DryRunUserID     int64 = -9
)

// CourseFilter narrows a course listing. The zero value lists everything.
type CourseFilter struct {
	// Field is a course field name (shortname, idnumber, id, category).
	Field string
	// Value is the value to match.
	Value string
}

// CourseSource lists courses.
type CourseSource interface {
	// Courses returns every course matching filter.
	Courses(ctx context.Context, filter CourseFilter) ([]records.Course, error)
}

// CourseTarget is a course store that can be reconciled.
type CourseTarget interface {
	CourseSource

	// Course returns the single course whose field equals value, or ErrNotFound.
	Course(ctx context.Context, field, value string) (records.Course, error)

	// CreateCourse creates a course with all tracked fields and returns its id.
	// It fails with ErrAlreadyExists when the shortname is taken.
	CreateCourse(ctx context.Context, course records.Course) (int64, error)

	// UpdateCourse pushes the update fields of course onto the course with course.ID.
	UpdateCourse(ctx context.Context, course records.Course) error

	// Category resolves a category by name or numeric id, or returns ErrNotFound.
	Category(ctx context.Context, nameOrID string) (int64, error)

	// CreateCategory creates a category under parent (root when empty) and returns its id.
	CreateCategory(ctx context.Context, name, parent string) (int64, error)

	// FieldSet declares the tracked and updatable course fields.
	FieldSet() records.FieldSet
}

// EnrolmentSource is the authoritative roster.
type EnrolmentSource interface {
	// CourseShortnamesForSync returns the sorted set of course shortnames to reconcile.
	CourseShortnamesForSync(ctx context.Context) ([]string, error)

	// Cancelled reports whether the course has been cancelled at the source.
	Cancelled(ctx context.Context, shortname string) (bool, error)

	// Roster returns the source enrolments of one course.
	Roster(ctx context.Context, shortname string) ([]records.Enrolment, error)
}

// EnrolmentTarget is a roster store that can be reconciled.
// Mutations are idempotent and return a nil Outcome when nothing changed.
type EnrolmentTarget interface {
	// CourseID resolves a course shortname, or returns ErrNotFound.
	CourseID(ctx context.Context, shortname string) (int64, error)

	// Members returns the current memberships of a course.
	Members(ctx context.Context, courseID int64) ([]records.Membership, error)

	// UserID resolves a username or numeric id, or returns ErrNotFound.
	UserID(ctx context.Context, usernameOrID string) (int64, error)

	// Username returns the username for an id, or ErrNotFound.
	Username(ctx context.Context, userID int64) (string, error)

	// RoleID resolves a role shortname or numeric id, or returns ErrNotFound.
	RoleID(ctx context.Context, nameOrID string) (int64, error)

	// RoleName returns the shortname of a role id, or ErrNotFound.
	RoleName(ctx context.Context, roleID int64) (string, error)

	// EnrolUser gives the user the role in the course, enrolling them first if needed.
	EnrolUser(ctx context.Context, userID, courseID, roleID int64) (*records.Outcome, error)

	// UnenrolUser removes one role while keeping the participation.
	UnenrolUser(ctx context.Context, userID, courseID, roleID int64) (*records.Outcome, error)

	// DeleteUser removes every role and the participation itself.
	DeleteUser(ctx context.Context, userID, courseID int64) (*records.Outcome, error)
}

// UserSource lists user accounts.
type UserSource interface {
	Users(ctx context.Context) ([]records.User, error)
}

// UserTarget is an account store that can be reconciled.
type UserTarget interface {
	UserSource

	// User looks a user up by email, username or numeric id, or returns ErrNotFound.
	User(ctx context.Context, key string) (records.User, error)

	// CreateUser creates the account and returns its id.
	// Targets may substitute a default auth method and a random password.
	CreateUser(ctx context.Context, user records.User) (int64, error)

	UserID(ctx context.Context, usernameOrID string) (int64, error)
	Username(ctx context.Context, userID int64) (string, error)
}
