package moodleapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"
	"moodle-sync/core/utils"
)

type formatOption struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// apiCourse is a course as returned by core_course_get_courses(_by_field).
type apiCourse struct {
	ID                  int64          `json:"id"`
	Shortname           string         `json:"shortname"`
	IDNumber            string         `json:"idnumber"`
	Fullname            string         `json:"fullname"`
	CategoryID          int64          `json:"categoryid"`
	CategoryName        string         `json:"categoryname"`
	Summary             *string        `json:"summary"`
	Format              *string        `json:"format"`
	ShowGrades          *int           `json:"showgrades"`
	NewsItems           *int           `json:"newsitems"`
	NumSections         *int           `json:"numsections"`
	StartDate           *int64         `json:"startdate"`
	EndDate             *int64         `json:"enddate"`
	Visible             *int           `json:"visible"`
	CourseFormatOptions []formatOption `json:"courseformatoptions"`
}

// record flattens the course format options into the course.
func (a apiCourse) record() records.Course {
	c := records.Course{
		ID:           a.ID,
		Shortname:    a.Shortname,
		IDNumber:     a.IDNumber,
		Fullname:     a.Fullname,
		CategoryID:   a.CategoryID,
		CategoryName: a.CategoryName,
		Summary:      a.Summary,
		Format:       a.Format,
		ShowGrades:   a.ShowGrades,
		NewsItems:    a.NewsItems,
		NumSections:  a.NumSections,
		StartDate:    a.StartDate,
		EndDate:      a.EndDate,
		Visible:      a.Visible,
	}
	for _, opt := range a.CourseFormatOptions {
		c.SetOption(opt.Name, utils.ToInt(opt.Value))
	}
	return c
}

type apiUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Auth      string `json:"auth"`
}

func (a apiUser) record() records.User {
	return records.User{
		ID:        a.ID,
		Username:  a.Username,
		Email:     a.Email,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Auth:      a.Auth,
	}
}

// coursesByField lists courses; an empty field lists every course except the site course.
func (c *Client) coursesByField(ctx context.Context, field, value string) ([]records.Course, error) {
	var list []apiCourse
	if field == "" {
		if err := c.Read(ctx, "core_course_get_courses", nil, &list); err != nil {
			return nil, err
		}
	} else {
		var resp struct {
			Courses []apiCourse `json:"courses"`
		}
		params := url.Values{"field": {field}, "value": {value}}
		if err := c.Read(ctx, "core_course_get_courses_by_field", params, &resp); err != nil {
			return nil, err
		}
		list = resp.Courses
	}

	out := make([]records.Course, 0, len(list))
	for _, a := range list {
		if a.Format != nil && *a.Format == "site" {
			continue
		}
		out = append(out, a.record())
	}
	return out, nil
}

// courseID resolves a course shortname or numeric id.
func (c *Client) courseID(ctx context.Context, shortnameOrID string) (int64, error) {
	field := records.FieldShortname
	if isNumeric(shortnameOrID) {
		field = records.FieldID
	}
	courses, err := c.coursesByField(ctx, field, shortnameOrID)
	if err != nil {
		return 0, err
	}
	if len(courses) == 0 {
		return 0, provider.NotFound("course", shortnameOrID)
	}
	return courses[0].ID, nil
}

// user looks a user up by numeric id, email or username.
func (c *Client) user(ctx context.Context, key string) (records.User, error) {
	field := "username"
	switch {
	case isNumeric(key):
		field = "id"
	case strings.Contains(key, "@"):
		field = "email"
	}
	var users []apiUser
	params := url.Values{"field": {field}, "values[0]": {key}}
	if err := c.Read(ctx, "core_user_get_users_by_field", params, &users); err != nil {
		return records.User{}, err
	}
	if len(users) == 0 {
		return records.User{}, provider.NotFound("user", key)
	}
	return users[0].record(), nil
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
