package erp

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"moodle-sync/core/database"
	"moodle-sync/core/provider"
	"moodle-sync/core/records"
	"moodle-sync/core/utils"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

var (
	_ provider.CourseSource    = (*Source)(nil)
	_ provider.EnrolmentSource = (*Source)(nil)
	_ provider.UserSource      = (*Source)(nil)
)

// Source reads courses, rosters and accounts from views in the ERP database.
type Source struct {
	db        *sqlx.DB
	cfg       Config
	roles     map[string]string
	cancelled []string
	loc       *time.Location
	logger    *zap.Logger
	now       func() time.Time
}

// Open connects to the ERP database described by cfg.DB.
func Open(cfg Config, logger *zap.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := database.OpenSource(cfg.DB)
	if err != nil {
		return nil, err
	}
	return New(db, cfg, logger)
}

// New wraps an open connection.
func New(db *sqlx.DB, cfg Config, logger *zap.Logger) (*Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	roles, _ := ParseRoleMap(cfg.RoleMap)
	loc, _ := cfg.location()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Source{
		db:        db,
		cfg:       cfg,
		roles:     roles,
		cancelled: cfg.cancelledStatuses(),
		loc:       loc,
		logger:    logger.With(zap.String("source", "erp")),
		now:       time.Now,
	}, nil
}

// Close closes the connection.
func (s *Source) Close() error {
	return s.db.Close()
}

func (s *Source) view(name, kind string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("no %s view configured", kind)
	}
	return name, nil
}

func (s *Source) query(ctx context.Context, op, query string, args ...any) ([]row, error) {
	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, provider.Transport(op, err)
	}
	defer rows.Close()

	var out []row
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, provider.Transport(op, err)
		}
		out = append(out, newRow(m))
	}
	if err := rows.Err(); err != nil {
		return nil, provider.Transport(op, err)
	}
	return out, nil
}

// Courses implements provider.CourseSource.
// Extra view columns are ignored. Columns named like course fields are mapped onto them.
func (s *Source) Courses(ctx context.Context, filter provider.CourseFilter) ([]records.Course, error) {
	view, err := s.view(s.cfg.CourseView, "course")
	if err != nil {
		return nil, err
	}
	q := "SELECT * FROM " + view
	var args []any
	if filter.Field != "" {
		if !identifier.MatchString(filter.Field) || strings.Contains(filter.Field, ".") {
			return nil, fmt.Errorf("invalid course field %q", filter.Field)
		}
		q += " WHERE " + filter.Field + " = ?"
		args = append(args, filter.Value)
	}

	rows, err := s.query(ctx, "select courses", q, args...)
	if err != nil {
		return nil, err
	}
	out := make([]records.Course, 0, len(rows))
	for _, r := range rows {
		out = append(out, s.course(r))
	}
	s.logger.Debug("Loaded source courses", zap.Int("count", len(out)))
	return out, nil
}

func (s *Source) course(r row) records.Course {
	c := records.Course{
		Shortname:          r.str(records.FieldShortname),
		IDNumber:           r.str(records.FieldIDNumber),
		Fullname:           r.str(records.FieldFullname),
		CategoryName:       r.str("categoryname"),
		CategoryParentName: r.str("categoryparent", "parentcategory"),
		Summary:            r.strPtr(records.FieldSummary),
		Format:             r.strPtr(records.FieldFormat),
		ShowGrades:         r.intPtr(records.FieldShowGrades),
		NewsItems:          r.intPtr(records.FieldNewsItems),
		NumSections:        r.intPtr(records.FieldNumSections),
		StartDate:          r.datePtr(records.FieldStartDate, s.loc),
		EndDate:            r.datePtr(records.FieldEndDate, s.loc),
		Visible:            r.intPtr(records.FieldVisible),
	}
	if id, ok := r.intVal(records.FieldCategoryID); ok {
		c.CategoryID = int64(id)
	}
	if category := r.str("category"); category != "" {
		if isNumeric(category) {
			c.CategoryID = utils.ToInt64(category)
		} else if c.CategoryName == "" {
			c.CategoryName = category
		}
	}
	for _, opt := range records.FormatOptionFields {
		if v, ok := r.intVal(opt); ok {
			c.SetOption(opt, v)
		}
	}
	return c
}

// Users implements provider.UserSource.
func (s *Source) Users(ctx context.Context) ([]records.User, error) {
	view, err := s.view(s.cfg.UserView, "user")
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, "select users", "SELECT * FROM "+view)
	if err != nil {
		return nil, err
	}
	out := make([]records.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, records.User{
			Username:  strings.ToLower(r.str("username")),
			Email:     r.str("email"),
			FirstName: r.str("firstname"),
			LastName:  r.str("lastname"),
			Auth:      r.str("auth"),
			Password:  r.str("password"),
		})
	}
	s.logger.Debug("Loaded source users", zap.Int("count", len(out)))
	return out, nil
}

// CourseShortnamesForSync implements provider.EnrolmentSource.
func (s *Source) CourseShortnamesForSync(ctx context.Context) ([]string, error) {
	view, err := s.view(s.cfg.EnrolmentView, "enrolment")
	if err != nil {
		return nil, err
	}
	var names []string
	q := "SELECT DISTINCT shortname FROM " + view + " WHERE shortname IS NOT NULL"
	if err := s.db.SelectContext(ctx, &names, q); err != nil {
		return nil, provider.Transport("select course shortnames", err)
	}

	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}

// Cancelled implements provider.EnrolmentSource.
// A course is cancelled when any of its roster rows carries a cancelled status.
func (s *Source) Cancelled(ctx context.Context, shortname string) (bool, error) {
	roster, err := s.Roster(ctx, shortname)
	if err != nil {
		return false, err
	}
	for _, e := range roster {
		if e.Cancelled(s.cancelled) {
			return true, nil
		}
	}
	return false, nil
}

// Roster implements provider.EnrolmentSource.
// Role names pass through the role map. Without a started column a course has started
// once its startdate has passed.
func (s *Source) Roster(ctx context.Context, shortname string) ([]records.Enrolment, error) {
	view, err := s.view(s.cfg.EnrolmentView, "enrolment")
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, "select roster", "SELECT * FROM "+view+" WHERE shortname = ?", shortname)
	if err != nil {
		return nil, err
	}

	now := s.now().Unix()
	out := make([]records.Enrolment, 0, len(rows))
	for _, r := range rows {
		e := records.Enrolment{
			Shortname:    r.str(records.FieldShortname),
			Username:     strings.ToLower(r.str("username")),
			Role:         s.mapRole(r.str("role", "rolename")),
			CourseStatus: r.str("course_status", "coursestatus", "status"),
		}
		if v, ok := r.lookup("started"); ok {
			e.Started = utils.ToBool(v)
		} else if start, ok := r.date(records.FieldStartDate, s.loc); ok {
			e.Started = start > 0 && start <= now
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *Source) mapRole(role string) string {
	if mapped, ok := s.roles[strings.ToLower(role)]; ok {
		return mapped
	}
	return role
}
