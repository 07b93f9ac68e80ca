package moodleapi

import (
	"fmt"
	"regexp"
	"strings"
)

// Config holds configuration for the Moodle web service backend.
type Config struct {
	// URL is the site root, e.g. https://moodle.example.edu.
	URL string `mapstructure:"url" default:""`
	// Token is the web service token. It is never logged.
	Token string `mapstructure:"token" default:""`
	// TimeoutSeconds bounds every request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"60"`
	// RequestsPerSecond throttles calls; zero disables throttling.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" default:"10"`
	// Retries is the number of extra attempts for failed reads.
	Retries int `mapstructure:"retries" default:"2"`
	// Templates are "pattern=course" pairs. A new course is duplicated from the course of the
	// last pattern matching its shortname, or from the last template when none match.
	// The course is an id or a shortname. Without templates courses are created empty.
	Templates []string `mapstructure:"templates" default:""`
	// DefaultAuth is the auth method of created users that carry none.
	DefaultAuth string `mapstructure:"default_auth" default:"manual"`
	// RolesWebservice enables core_role_get_roles lookups for roles outside the role table.
	RolesWebservice bool `mapstructure:"roles_webservice" default:"false"`
	// UpdateFields overrides the course fields compared and pushed on update.
	UpdateFields []string `mapstructure:"update_fields" default:"fullname,startdate,enddate,categoryid"`
}

// Template selects the course a new course is duplicated from.
type Template struct {
	Pattern *regexp.Regexp
	// Course is a course id or shortname.
	Course string
}

// ParseTemplates parses "pattern=course" pairs.
func ParseTemplates(pairs []string) ([]Template, error) {
	var out []Template
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		i := strings.LastIndex(pair, "=")
		if i < 0 || i == len(pair)-1 {
			return nil, fmt.Errorf("invalid template %q (want pattern=course)", pair)
		}
		re, err := regexp.Compile(pair[:i])
		if err != nil {
			return nil, fmt.Errorf("invalid template pattern %q: %w", pair[:i], err)
		}
		out = append(out, Template{Pattern: re, Course: strings.TrimSpace(pair[i+1:])})
	}
	return out, nil
}

// templateFor returns the template course for shortname, or "" when there are no templates.
func templateFor(templates []Template, shortname string) string {
	if len(templates) == 0 {
		return ""
	}
	result := ""
	for _, t := range templates {
		if t.Pattern.MatchString(shortname) {
			result = t.Course
		}
	}
	if result == "" {
		result = templates[len(templates)-1].Course
	}
	return result
}
