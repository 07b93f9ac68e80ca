package moodledb

import (
	"context"
	"fmt"
	"strconv"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// adminUserID is recorded as the modifier of enrolments made by the sync.
const adminUserID = 2

// CourseID implements provider.EnrolmentTarget.
func (s *Store) CourseID(ctx context.Context, shortname string) (int64, error) {
	field := records.FieldShortname
	if isNumeric(shortname) {
		field = records.FieldID
	}
	c, err := s.Course(ctx, field, shortname)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

// Members implements provider.EnrolmentTarget.
// Participants without a role assignment in the course context are reported with NoRoleID.
func (s *Store) Members(ctx context.Context, courseID int64) ([]records.Membership, error) {
	query := fmt.Sprintf(`
		SELECT DISTINCT
			u.id AS user_id,
			u.username AS username,
			COALESCE(ra.roleid, 0) AS role_id,
			COALESCE(r.shortname, ?) AS role_name
		FROM %s ue
		JOIN %s e ON ue.enrolid = e.id
		JOIN %s u ON u.id = ue.userid
		LEFT JOIN %s ctx ON ctx.instanceid = e.courseid AND ctx.contextlevel = ?
		LEFT JOIN %s ra ON ra.userid = u.id AND ra.contextid = ctx.id
		LEFT JOIN %s r ON r.id = ra.roleid
		WHERE e.courseid = ?
		ORDER BY user_id, role_id`,
		s.table("user_enrolments"), s.table("enrol"), s.table("user"),
		s.table("context"), s.table("role_assignments"), s.table("role"),
	)

	var rows []memberRow
	if err := s.conn(ctx).Raw(query, records.RoleNone, contextCourse, courseID).Scan(&rows).Error; err != nil {
		return nil, provider.Transport("select members", err)
	}
	out := make([]records.Membership, 0, len(rows))
	for _, r := range rows {
		out = append(out, records.Membership{
			UserID:   r.UserID,
			CourseID: courseID,
			RoleID:   r.RoleID,
			Username: r.Username,
			RoleName: r.RoleName,
		})
	}
	return out, nil
}

// UserID implements provider.EnrolmentTarget.
func (s *Store) UserID(ctx context.Context, usernameOrID string) (int64, error) {
	u, err := s.User(ctx, usernameOrID)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// Username implements provider.EnrolmentTarget.
func (s *Store) Username(ctx context.Context, userID int64) (string, error) {
	var row userRow
	key := strconv.FormatInt(userID, 10)
	if err := s.take(s.conn(ctx), "user", &row, "user", key, "id = ? AND deleted = 0", userID); err != nil {
		return "", err
	}
	return row.Username, nil
}

// RoleID implements provider.EnrolmentTarget.
func (s *Store) RoleID(ctx context.Context, nameOrID string) (int64, error) {
	var row roleRow
	query := "shortname = ?"
	if isNumeric(nameOrID) {
		query = "id = ?"
	}
	if err := s.take(s.conn(ctx), "role", &row, "role", nameOrID, query, nameOrID); err != nil {
		return 0, err
	}
	return row.ID, nil
}

// RoleName implements provider.EnrolmentTarget.
func (s *Store) RoleName(ctx context.Context, roleID int64) (string, error) {
	if roleID == records.NoRoleID {
		return records.RoleNone, nil
	}
	var row roleRow
	if err := s.take(s.conn(ctx), "role", &row, "role", strconv.FormatInt(roleID, 10), "id = ?", roleID); err != nil {
		return "", err
	}
	return row.Shortname, nil
}

// courseContext returns the id of the course context.
func (s *Store) courseContext(db *gorm.DB, courseID int64) (int64, error) {
	var row contextRow
	key := strconv.FormatInt(courseID, 10)
	if err := s.take(db, "context", &row, "course context", key, "contextlevel = ? AND instanceid = ?", contextCourse, courseID); err != nil {
		return 0, err
	}
	return row.ID, nil
}

// manualInstance returns the id of the course's manual enrolment instance.
func (s *Store) manualInstance(db *gorm.DB, courseID int64) (int64, error) {
	var row enrolRow
	key := strconv.FormatInt(courseID, 10)
	if err := s.take(db, "enrol", &row, "manual enrolment", key, "courseid = ? AND enrol = ?", courseID, "manual"); err != nil {
		return 0, err
	}
	return row.ID, nil
}

// EnrolUser implements provider.EnrolmentTarget.
// The participation goes through the manual enrolment instance; both inserts share one transaction.
func (s *Store) EnrolUser(ctx context.Context, userID, courseID, roleID int64) (*records.Outcome, error) {
	var out *records.Outcome
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		enrolID, err := s.manualInstance(tx, courseID)
		if err != nil {
			return err
		}
		contextID, err := s.courseContext(tx, courseID)
		if err != nil {
			return err
		}
		participations, err := s.count(tx, "user_enrolments", "enrolid = ? AND userid = ?", enrolID, userID)
		if err != nil {
			return err
		}
		assigned, err := s.count(tx, "role_assignments", "roleid = ? AND contextid = ? AND userid = ?", roleID, contextID, userID)
		if err != nil {
			return err
		}
		if participations > 0 && assigned > 0 {
			return nil
		}

		out = &records.Outcome{UserID: userID, CourseID: courseID, RoleID: roleID, DryRun: s.dryRun}
		now := s.timestamp()
		if participations == 0 {
			out.NewEnrols = 1
			if !s.dryRun {
				ue := userEnrolmentRow{
					EnrolID:      enrolID,
					UserID:       userID,
					TimeStart:    now,
					ModifierID:   adminUserID,
					TimeCreated:  now,
					TimeModified: now,
				}
				if err := tx.Table(s.table("user_enrolments")).Create(&ue).Error; err != nil {
					return provider.Transport("insert user_enrolments", err)
				}
			}
		}
		if assigned == 0 {
			out.RolesAdded = 1
			if !s.dryRun {
				ra := roleAssignmentRow{RoleID: roleID, ContextID: contextID, UserID: userID, TimeModified: now, ModifierID: adminUserID}
				if err := tx.Table(s.table("role_assignments")).Create(&ra).Error; err != nil {
					return provider.Transport("insert role_assignments", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out != nil {
		s.logger.Debug("User enrolled",
			zap.Int64("user_id", userID),
			zap.Int64("course_id", courseID),
			zap.Int64("role_id", roleID),
			zap.Bool("dry_run", s.dryRun),
		)
	}
	return out, nil
}

// UnenrolUser implements provider.EnrolmentTarget.
func (s *Store) UnenrolUser(ctx context.Context, userID, courseID, roleID int64) (*records.Outcome, error) {
	db := s.conn(ctx)
	contextID, err := s.courseContext(db, courseID)
	if err != nil {
		return nil, err
	}
	n, err := s.remove(db, "role_assignments", &roleAssignmentRow{},
		"userid = ? AND contextid = ? AND roleid = ?", userID, contextID, roleID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return &records.Outcome{UserID: userID, CourseID: courseID, RoleID: roleID, RolesDeleted: int(n), DryRun: s.dryRun}, nil
}

// DeleteUser implements provider.EnrolmentTarget.
// Role assignments and participations are removed in one transaction.
func (s *Store) DeleteUser(ctx context.Context, userID, courseID int64) (*records.Outcome, error) {
	var roles, participations int64
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		contextID, err := s.courseContext(tx, courseID)
		if err != nil && !provider.IsNotFound(err) {
			return err
		}
		if err == nil {
			roles, err = s.remove(tx, "role_assignments", &roleAssignmentRow{}, "userid = ? AND contextid = ?", userID, contextID)
			if err != nil {
				return err
			}
		}
		instances := tx.Table(s.table("enrol")).Select("id").Where("courseid = ?", courseID)
		participations, err = s.remove(tx, "user_enrolments", &userEnrolmentRow{}, "userid = ? AND enrolid IN (?)", userID, instances)
		return err
	})
	if err != nil {
		return nil, err
	}
	if roles == 0 && participations == 0 {
		return nil, nil
	}
	return &records.Outcome{
		UserID:                userID,
		CourseID:              courseID,
		RolesDeleted:          int(roles),
		ParticipationsDeleted: int(participations),
		DryRun:                s.dryRun,
	}, nil
}

// remove deletes the matching rows, or only counts them in dry-run mode.
func (s *Store) remove(db *gorm.DB, table string, model any, query string, args ...any) (int64, error) {
	if s.dryRun {
		return s.count(db, table, query, args...)
	}
	res := db.Table(s.table(table)).Where(query, args...).Delete(model)
	if res.Error != nil {
		return 0, provider.Transport("delete "+table, res.Error)
	}
	return res.RowsAffected, nil
}
