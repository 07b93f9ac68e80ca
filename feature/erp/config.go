package erp

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"

	"moodle-sync/core/database"
	"moodle-sync/core/records"
)

// Config holds configuration for the ERP source.
type Config struct {
	// DB is the ERP database connection.
	DB database.SourceConfig `mapstructure:"db"`
	// CourseView lists the courses to provision.
	CourseView string `mapstructure:"course_view" default:"moodle_courses"`
	// EnrolmentView lists one row per user, course and role.
	EnrolmentView string `mapstructure:"enrolment_view" default:"moodle_enrolments"`
	// UserView lists the accounts to provision.
	UserView string `mapstructure:"user_view" default:"moodle_users"`
	// RoleMap are "erp=moodle" role name pairs applied to roster rows.
	RoleMap []string `mapstructure:"role_map" default:"student=student,instructor=editingteacher"`
	// CancelledStatuses are the course statuses that mark a course as cancelled.
	CancelledStatuses []string `mapstructure:"cancelled_statuses" default:"Canceled,Cancelled"`
	// Timezone interprets date columns stored without a zone.
	Timezone string `mapstructure:"timezone" default:"Local"`
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*){0,2}$`)

// Validate checks the view names and parses the role map and timezone.
func (c Config) Validate() error {
	for name, view := range map[string]string{
		"course_view":    c.CourseView,
		"enrolment_view": c.EnrolmentView,
		"user_view":      c.UserView,
	} {
		if view != "" && !identifier.MatchString(view) {
			return fmt.Errorf("invalid %s %q", name, view)
		}
	}
	if _, err := ParseRoleMap(c.RoleMap); err != nil {
		return err
	}
	if _, err := c.location(); err != nil {
		return err
	}
	return nil
}

func (c Config) location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c Config) cancelledStatuses() []string {
	if len(c.CancelledStatuses) == 0 {
		return records.DefaultCancelledStatuses
	}
	return c.CancelledStatuses
}

// ParseRoleMap parses "erp=moodle" pairs into a lower-cased lookup.
func ParseRoleMap(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		from, to, ok := strings.Cut(pair, "=")
		from, to = strings.TrimSpace(from), strings.TrimSpace(to)
		if !ok || from == "" || to == "" {
			return nil, fmt.Errorf("invalid role mapping %q (want erp=moodle)", pair)
		}
		out[strings.ToLower(from)] = to
	}
	return out, nil
}
