package moodledb

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateCourse(t *testing.T) {
	db := newTestDB(t)
	s := newTestStore(t, db, false)
	ctx := context.Background()

	course := records.Course{
		Shortname:   "HIS-101",
		Fullname:    "History &amp; Society",
		CategoryID:  4,
		Summary:     records.String("<p>Intro</p>"),
		StartDate:   records.Int64(1725148800),
		EndDate:     records.Int64(1733011200),
		NumSections: records.Int(12),
	}
	course.SetOption(records.FieldAutomaticEndDate, 0)

	id, err := s.CreateCourse(ctx, course)
	require.NoError(t, err)
	assert.Greater(t, id, int64(1))

	got, err := s.Course(ctx, records.FieldShortname, "HIS-101")
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "History &amp; Society", got.Fullname)
	assert.Equal(t, int64(4), got.CategoryID)
	assert.Equal(t, "topics", *got.Format)
	assert.Equal(t, 12, *got.NumSections)
	v, ok := got.Option(records.FieldAutomaticEndDate)
	assert.True(t, ok)
	assert.Equal(t, 0, v)

	contextID, err := s.courseContext(db, id)
	require.NoError(t, err)
	assert.NotZero(t, contextID)
	enrolID, err := s.manualInstance(db, id)
	require.NoError(t, err)
	assert.NotZero(t, enrolID)

	_, err = s.CreateCourse(ctx, course)
	assert.ErrorIs(t, err, provider.ErrAlreadyExists)
}

func TestStore_Courses(t *testing.T) {
	db := newTestDB(t)
	s := newTestStore(t, db, false)
	ctx := context.Background()

	for _, sn := range []string{"HIS-101", "HIS-102", "ART-100"} {
		_, err := s.CreateCourse(ctx, records.Course{Shortname: sn, Fullname: sn, CategoryID: 2})
		require.NoError(t, err)
	}

	all, err := s.Courses(ctx, provider.CourseFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3, "the site course is never listed")

	his, err := s.Courses(ctx, provider.CourseFilter{Field: records.FieldShortname, Value: "his-%"})
	require.NoError(t, err)
	assert.Len(t, his, 2)

	byCategory, err := s.Courses(ctx, provider.CourseFilter{Field: "category", Value: "2"})
	require.NoError(t, err)
	assert.Len(t, byCategory, 3)

	_, err = s.Courses(ctx, provider.CourseFilter{Field: "password", Value: "x"})
	assert.Error(t, err)

	_, err = s.Course(ctx, records.FieldShortname, "MTH-100")
	assert.True(t, provider.IsNotFound(err))
}

func TestStore_UpdateCourse(t *testing.T) {
	db := newTestDB(t)
	s := NewStore(db, Options{
		Prefix:       "mdl_",
		UpdateFields: []string{records.FieldFullname, records.FieldVisible, records.FieldAutomaticEndDate},
	}, nil)
	ctx := context.Background()

	id, err := s.CreateCourse(ctx, records.Course{Shortname: "HIS-101", Fullname: "History", Summary: records.String("old")})
	require.NoError(t, err)

	update := records.Course{
		Shortname: "HIS-101",
		Fullname:  "World History",
		Visible:   records.Int(0),
		Summary:   records.String("new"),
	}
	update.SetOption(records.FieldAutomaticEndDate, 1)
	require.NoError(t, s.UpdateCourse(ctx, update))

	got, err := s.Course(ctx, records.FieldID, strconv.FormatInt(id, 10))
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "World History", got.Fullname)
	assert.Equal(t, 0, *got.Visible)
	assert.Equal(t, "old", *got.Summary, "summary is not an update field")
	v, _ := got.Option(records.FieldAutomaticEndDate)
	assert.Equal(t, 1, v)

	update.SetOption(records.FieldAutomaticEndDate, 0)
	require.NoError(t, s.UpdateCourse(ctx, update))
	var options int64
	db.Table("mdl_course_format_options").Where("courseid = ? AND name = ?", id, records.FieldAutomaticEndDate).Count(&options)
	assert.Equal(t, int64(1), options)

	err = s.UpdateCourse(ctx, records.Course{Shortname: "MTH-100", Fullname: "Maths"})
	assert.True(t, provider.IsNotFound(err))
}

func TestStore_Categories(t *testing.T) {
	db := newTestDB(t)
	s := newTestStore(t, db, false)
	ctx := context.Background()

	terms, err := s.CreateCategory(ctx, "Terms", "")
	require.NoError(t, err)
	fall, err := s.CreateCategory(ctx, "2024-FA", "Terms")
	require.NoError(t, err)
	spring, err := s.CreateCategory(ctx, "2025-SP", "Terms")
	require.NoError(t, err)

	id, err := s.Category(ctx, "2024-FA")
	require.NoError(t, err)
	assert.Equal(t, fall, id)

	row, err := s.category(db, "2025-SP")
	require.NoError(t, err)
	assert.Equal(t, terms, row.Parent)
	assert.Equal(t, int64(2), row.SortOrder)
	assert.Equal(t, 2, row.Depth)
	assert.Equal(t, fmt.Sprintf("/%d/%d", terms, spring), row.Path)

	_, err = s.Category(ctx, "2099-XX")
	assert.True(t, provider.IsNotFound(err))
	_, err = s.CreateCategory(ctx, "Orphan", "Missing")
	assert.True(t, provider.IsNotFound(err))
}

func TestStore_CourseDryRun(t *testing.T) {
	db := newTestDB(t)
	s := newTestStore(t, db, true)
	ctx := context.Background()

	id, err := s.CreateCourse(ctx, records.Course{Shortname: "HIS-101", Fullname: "History"})
	require.NoError(t, err)
	assert.Equal(t, provider.DryRunCourseID, id)

	catID, err := s.CreateCategory(ctx, "2024-FA", "Terms")
	require.NoError(t, err)
	assert.Equal(t, provider.DryRunCategoryID, catID)

	var courses, categories int64
	db.Table("mdl_course").Count(&courses)
	db.Table("mdl_course_categories").Count(&categories)
	assert.Equal(t, int64(1), courses)
	assert.Zero(t, categories)
}
