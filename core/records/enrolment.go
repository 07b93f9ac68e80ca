package records

import "strings"

// DefaultCancelledStatuses are the course statuses that mark a source course as cancelled.
var DefaultCancelledStatuses = []string{"Canceled", "Cancelled"}

// Enrolment is one source roster entry.
type Enrolment struct {
	Shortname    string `json:"shortname" validate:"required"`
	Username     string `json:"username" validate:"required"`
	Role         string `json:"role" validate:"required"`
	CourseStatus string `json:"course_status,omitempty"`
	Started      bool   `json:"started"`
}

// Cancelled reports whether the entry's course status is one of statuses.
func (e Enrolment) Cancelled(statuses []string) bool {
	for _, s := range statuses {
		if strings.EqualFold(strings.TrimSpace(e.CourseStatus), s) {
			return true
		}
	}
	return false
}

// Membership is one target roster entry: a user holding a role in a course.
// RoleID is NoRoleID when the user participates without a role.
type Membership struct {
	UserID   int64  `json:"user_id"`
	CourseID int64  `json:"course_id"`
	RoleID   int64  `json:"role_id"`
	Username string `json:"username,omitempty"`
	RoleName string `json:"role,omitempty"`
}

// Outcome reports the effect of one enrolment mutation.
// Providers return a nil Outcome when nothing changed.
type Outcome struct {
	UserID                int64 `json:"user_id"`
	CourseID              int64 `json:"course_id"`
	RoleID                int64 `json:"role_id,omitempty"`
	NewEnrols             int   `json:"num_new_enrols,omitempty"`
	RolesAdded            int   `json:"num_roles_added,omitempty"`
	RolesDeleted          int   `json:"num_roles_deleted,omitempty"`
	ParticipationsDeleted int   `json:"num_participations_deleted,omitempty"`
	DryRun                bool  `json:"dry_run,omitempty"`
}
