package moodledb

import "moodle-sync/core/records"

// contextCourse is the Moodle context level of courses.
const contextCourse = 50

// courseRow maps the course table.
type courseRow struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	Category      int64   `gorm:"column:category"`
	Shortname     string  `gorm:"column:shortname"`
	Fullname      string  `gorm:"column:fullname"`
	IDNumber      string  `gorm:"column:idnumber"`
	Summary       *string `gorm:"column:summary"`
	SummaryFormat int     `gorm:"column:summaryformat"`
	Format        string  `gorm:"column:format"`
	ShowGrades    int     `gorm:"column:showgrades"`
	NewsItems     int     `gorm:"column:newsitems"`
	StartDate     int64   `gorm:"column:startdate"`
	EndDate       int64   `gorm:"column:enddate"`
	Visible       int     `gorm:"column:visible"`
	TimeCreated   int64   `gorm:"column:timecreated"`
	TimeModified  int64   `gorm:"column:timemodified"`
}

func (r courseRow) record() records.Course {
	return records.Course{
		ID:         r.ID,
		Shortname:  r.Shortname,
		IDNumber:   r.IDNumber,
		Fullname:   r.Fullname,
		CategoryID: r.Category,
		Summary:    r.Summary,
		Format:     records.String(r.Format),
		ShowGrades: records.Int(r.ShowGrades),
		NewsItems:  records.Int(r.NewsItems),
		StartDate:  records.Int64(r.StartDate),
		EndDate:    records.Int64(r.EndDate),
		Visible:    records.Int(r.Visible),
	}
}

// formatOptionRow maps the course_format_options table.
type formatOptionRow struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	CourseID  int64  `gorm:"column:courseid"`
	Format    string `gorm:"column:format"`
	SectionID int64  `gorm:"column:sectionid"`
	Name      string `gorm:"column:name"`
	Value     string `gorm:"column:value"`
}

// categoryRow maps the course_categories table.
type categoryRow struct {
	ID           int64  `gorm:"column:id;primaryKey"`
	Name         string `gorm:"column:name"`
	Parent       int64  `gorm:"column:parent"`
	SortOrder    int64  `gorm:"column:sortorder"`
	Visible      int    `gorm:"column:visible"`
	Depth        int    `gorm:"column:depth"`
	Path         string `gorm:"column:path"`
	TimeModified int64  `gorm:"column:timemodified"`
}

// userRow maps the user table.
type userRow struct {
	ID           int64  `gorm:"column:id;primaryKey"`
	Auth         string `gorm:"column:auth"`
	Confirmed    int    `gorm:"column:confirmed"`
	Deleted      int    `gorm:"column:deleted"`
	MnetHostID   int64  `gorm:"column:mnethostid"`
	Username     string `gorm:"column:username"`
	Password     string `gorm:"column:password"`
	Email        string `gorm:"column:email"`
	FirstName    string `gorm:"column:firstname"`
	LastName     string `gorm:"column:lastname"`
	TimeCreated  int64  `gorm:"column:timecreated"`
	TimeModified int64  `gorm:"column:timemodified"`
}

func (r userRow) record() records.User {
	return records.User{
		ID:        r.ID,
		Username:  r.Username,
		Email:     r.Email,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Auth:      r.Auth,
	}
}

// roleRow maps the role table.
type roleRow struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	Shortname string `gorm:"column:shortname"`
}

// enrolRow maps the enrol table: one enrolment method instance per course.
type enrolRow struct {
	ID       int64  `gorm:"column:id;primaryKey"`
	Enrol    string `gorm:"column:enrol"`
	Status   int    `gorm:"column:status"`
	CourseID int64  `gorm:"column:courseid"`
	RoleID   int64  `gorm:"column:roleid"`
}

// userEnrolmentRow maps the user_enrolments table: a participation.
type userEnrolmentRow struct {
	ID           int64 `gorm:"column:id;primaryKey"`
	Status       int   `gorm:"column:status"`
	EnrolID      int64 `gorm:"column:enrolid"`
	UserID       int64 `gorm:"column:userid"`
	TimeStart    int64 `gorm:"column:timestart"`
	TimeEnd      int64 `gorm:"column:timeend"`
	ModifierID   int64 `gorm:"column:modifierid"`
	TimeCreated  int64 `gorm:"column:timecreated"`
	TimeModified int64 `gorm:"column:timemodified"`
}

// contextRow maps the context table.
type contextRow struct {
	ID           int64  `gorm:"column:id;primaryKey"`
	ContextLevel int    `gorm:"column:contextlevel"`
	InstanceID   int64  `gorm:"column:instanceid"`
	Path         string `gorm:"column:path"`
	Depth        int    `gorm:"column:depth"`
}

// roleAssignmentRow maps the role_assignments table.
type roleAssignmentRow struct {
	ID           int64 `gorm:"column:id;primaryKey"`
	RoleID       int64 `gorm:"column:roleid"`
	ContextID    int64 `gorm:"column:contextid"`
	UserID       int64 `gorm:"column:userid"`
	TimeModified int64 `gorm:"column:timemodified"`
	ModifierID   int64 `gorm:"column:modifierid"`
}

// memberRow is one row of the course roster query.
type memberRow struct {
	UserID   int64  `gorm:"column:user_id"`
	Username string `gorm:"column:username"`
	RoleID   int64  `gorm:"column:role_id"`
	RoleName string `gorm:"column:role_name"`
}

// Schema lists the tables and columns the store reads and writes, unprefixed.
var Schema = map[string][]string{
	"course": {
		"id", "category", "shortname", "fullname", "idnumber", "summary", "summaryformat", "format",
		"showgrades", "newsitems", "startdate", "enddate", "visible", "timecreated", "timemodified",
	},
	"course_format_options": {"id", "courseid", "format", "sectionid", "name", "value"},
	"course_categories":     {"id", "name", "parent", "sortorder", "visible", "depth", "path", "timemodified"},
	"user": {
		"id", "auth", "confirmed", "deleted", "mnethostid", "username", "password", "email",
		"firstname", "lastname", "timecreated", "timemodified",
	},
	"role":             {"id", "shortname"},
	"enrol":            {"id", "enrol", "status", "courseid", "roleid"},
	"user_enrolments":  {"id", "status", "enrolid", "userid", "timestart", "timeend", "modifierid", "timecreated", "timemodified"},
	"context":          {"id", "contextlevel", "instanceid", "path", "depth"},
	"role_assignments": {"id", "roleid", "contextid", "userid", "timemodified", "modifierid"},
}
