package memory

import (
	"context"
	"sort"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"
)

var (
	_ provider.CourseSource    = (*Source)(nil)
	_ provider.EnrolmentSource = (*Source)(nil)
	_ provider.UserSource      = (*Source)(nil)
)

// Source is an in-memory authoritative source.
// Fields may be set directly before a sync; Err* fields force listing failures.
type Source struct {
	CourseList        []records.Course
	UserList          []records.User
	Enrolments        []records.Enrolment
	CancelledStatuses []string

	ErrCourses error
	ErrUsers   error
	ErrRoster  map[string]error
}

// Courses implements provider.CourseSource.
func (s *Source) Courses(_ context.Context, filter provider.CourseFilter) ([]records.Course, error) {
	if s.ErrCourses != nil {
		return nil, s.ErrCourses
	}
	var out []records.Course
	for _, c := range s.CourseList {
		if filter.Field != "" {
			v, ok := c.Value(filter.Field)
			if !ok || records.Normalize(v) != filter.Value {
				continue
			}
		}
		out = append(out, c)
	}
	return out, nil
}

// Users implements provider.UserSource.
func (s *Source) Users(_ context.Context) ([]records.User, error) {
	if s.ErrUsers != nil {
		return nil, s.ErrUsers
	}
	return append([]records.User(nil), s.UserList...), nil
}

// CourseShortnamesForSync implements provider.EnrolmentSource.
func (s *Source) CourseShortnamesForSync(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, e := range s.Enrolments {
		seen[e.Shortname] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Cancelled implements provider.EnrolmentSource.
func (s *Source) Cancelled(_ context.Context, shortname string) (bool, error) {
	statuses := s.CancelledStatuses
	if statuses == nil {
		statuses = records.DefaultCancelledStatuses
	}
	for _, e := range s.Enrolments {
		if e.Shortname == shortname && e.Cancelled(statuses) {
			return true, nil
		}
	}
	return false, nil
}

// Roster implements provider.EnrolmentSource.
func (s *Source) Roster(_ context.Context, shortname string) ([]records.Enrolment, error) {
	if err := s.ErrRoster[shortname]; err != nil {
		return nil, err
	}
	var out []records.Enrolment
	for _, e := range s.Enrolments {
		if e.Shortname == shortname {
			out = append(out, e)
		}
	}
	return out, nil
}
