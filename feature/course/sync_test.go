package course

import (
	"context"
	"errors"
	"testing"

	"moodle-sync/core/provider"
	"moodle-sync/core/provider/memory"
	"moodle-sync/core/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sourceCourse(shortname, fullname, category string) records.Course {
	return records.Course{
		Shortname:    shortname,
		Fullname:     fullname,
		CategoryName: category,
		StartDate:    records.Int64(1725148800),
		EndDate:      records.Int64(1733011200),
		Summary:      records.String("summary"),
		Visible:      records.Int(1),
	}
}

func TestSync_CreatesAndIsIdempotent(t *testing.T) {
	for _, mode := range []FetchMode{FetchOne, FetchAll} {
		t.Run(string(mode), func(t *testing.T) {
			ctx := context.Background()
			store := memory.NewStore()
			src := &memory.Source{CourseList: []records.Course{
				sourceCourse("HIS-101", "History", "Humanities"),
				sourceCourse("ART-200", "Art &amp; Design", "Arts"),
			}}
			engine := NewEngine(src, store, Options{}, zap.NewNop())

			rep, err := engine.Sync(ctx, mode)
			require.NoError(t, err)
			assert.Equal(t, 2, rep.Summary.Created)
			assert.Equal(t, 0, rep.Summary.Errors)
			assert.Len(t, store.CallsFor(memory.OpCreateCategory), 2)

			created, err := store.Course(ctx, records.FieldShortname, "HIS-101")
			require.NoError(t, err)
			catID, err := store.Category(ctx, "Humanities")
			require.NoError(t, err)
			assert.Equal(t, catID, created.CategoryID)

			// Second pass with unchanged source issues no mutations.
			store.ResetCalls()
			rep, err = engine.Sync(ctx, mode)
			require.NoError(t, err)
			assert.Equal(t, 0, rep.Summary.Created)
			assert.Equal(t, 0, rep.Summary.Updated)
			assert.Equal(t, 2, rep.Summary.Skipped)
			assert.Empty(t, store.Calls())
		})
	}
}

func TestSync_TermCourseCreatesItsCategory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	_, err := store.Category(ctx, "2024-FA")
	require.True(t, provider.IsNotFound(err))

	src := &memory.Source{CourseList: []records.Course{
		sourceCourse("HIS-101-F00 2024FA", "History 101", "2024-FA"),
	}}
	rep, err := NewEngine(src, store, Options{}, zap.NewNop()).Sync(ctx, FetchOne)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.Created)
	assert.Equal(t, 0, rep.Summary.Errors)
	assert.Len(t, store.CallsFor(memory.OpCreateCategory), 1)

	catID, err := store.Category(ctx, "2024-FA")
	require.NoError(t, err)
	created, err := store.Course(ctx, records.FieldShortname, "HIS-101-F00 2024FA")
	require.NoError(t, err)
	assert.Equal(t, catID, created.CategoryID)
	assert.Equal(t, "History 101", created.Fullname)
}

func TestSync_CreateBeforeUpdate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	src := &memory.Source{CourseList: []records.Course{sourceCourse("NEW-1", "New", "Cat")}}

	_, err := NewEngine(src, store, Options{}, nil).Sync(ctx, FetchOne)
	require.NoError(t, err)

	assert.Len(t, store.CallsFor(memory.OpCreateCourse), 1)
	assert.Empty(t, store.CallsFor(memory.OpUpdateCourse))
}

func TestSync_UpdatesOnlyUpdateFields(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	catID := store.AddCategory("Humanities", 0)

	existing := sourceCourse("HIS-101", "History", "")
	existing.CategoryID = catID
	id := store.AddCourse(existing)

	t.Run("NonUpdateFieldIgnored", func(t *testing.T) {
		sc := sourceCourse("HIS-101", "History", "Humanities")
		sc.Summary = records.String("a different summary")
		src := &memory.Source{CourseList: []records.Course{sc}}

		rep, err := NewEngine(src, store, Options{}, nil).Sync(ctx, FetchAll)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Summary.Skipped)
		assert.Empty(t, store.CallsFor(memory.OpUpdateCourse))
	})

	t.Run("FullnameChanged", func(t *testing.T) {
		sc := sourceCourse("HIS-101", "World History", "Humanities")
		src := &memory.Source{CourseList: []records.Course{sc}}

		rep, err := NewEngine(src, store, Options{}, nil).Sync(ctx, FetchAll)
		require.NoError(t, err)
		assert.Equal(t, 1, rep.Summary.Updated)

		got, err := store.Course(ctx, records.FieldShortname, "HIS-101")
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "World History", got.Fullname)
	})
}

func TestSync_AutomaticEndDateNotUpdated(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	catID := store.AddCategory("Humanities", 0)
	existing := sourceCourse("HIS-101", "History", "")
	existing.CategoryID = catID
	existing.SetOption(records.FieldAutomaticEndDate, 1)
	store.AddCourse(existing)

	sc := sourceCourse("HIS-101", "History", "Humanities")
	sc.EndDate = records.Int64(1800000000)
	src := &memory.Source{CourseList: []records.Course{sc}}

	rep, err := NewEngine(src, store, Options{}, nil).Sync(ctx, FetchOne)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.Skipped)
	assert.Empty(t, store.CallsFor(memory.OpUpdateCourse))
}

func TestSync_ContinuesAfterRecordFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	store.FailOn(memory.OpCreateCourse, "BAD-1", errors.New("permission denied"))
	src := &memory.Source{CourseList: []records.Course{
		sourceCourse("BAD-1", "Bad", "Cat"),
		sourceCourse("GOOD-1", "Good", "Cat"),
		{Shortname: "NOFULL-1", CategoryName: "Cat"},
		{Shortname: "NOCAT-1", Fullname: "No category"},
	}}

	rep, err := NewEngine(src, store, Options{}, nil).Sync(ctx, FetchAll)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.Created)
	assert.Equal(t, 3, rep.Summary.Errors)
	require.Len(t, rep.Failures, 3)
	assert.Equal(t, "BAD-1", rep.Failures[0].Key)
	assert.Equal(t, "create", rep.Failures[0].Action)
	assert.Equal(t, "validate", rep.Failures[1].Action)
	assert.Equal(t, "category", rep.Failures[2].Action)
}

func TestSync_ExplicitCategoryID(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	catID := store.AddCategory("Misc", 0)
	src := &memory.Source{CourseList: []records.Course{{Shortname: "S1", Fullname: "Course", CategoryID: catID}}}

	rep, err := NewEngine(src, store, Options{}, nil).Sync(ctx, FetchOne)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Summary.Created)
	assert.Empty(t, store.CallsFor(memory.OpCreateCategory))
}

func TestSync_MatchByIDNumber(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	catID := store.AddCategory("Cat", 0)
	store.AddCourse(records.Course{Shortname: "OLD-NAME", IDNumber: "X1", Fullname: "Course", CategoryID: catID})
	src := &memory.Source{CourseList: []records.Course{{Shortname: "NEW-NAME", IDNumber: "X1", Fullname: "Course", CategoryName: "Cat"}}}

	rep, err := NewEngine(src, store, Options{Key: records.FieldIDNumber}, nil).Sync(ctx, FetchAll)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Summary.Created)
	assert.Equal(t, 1, rep.Summary.Skipped)
}

func TestSync_DryRun(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore(memory.WithDryRun(true))
	src := &memory.Source{CourseList: []records.Course{
		sourceCourse("HIS-101", "History", "Humanities"),
		sourceCourse("HIS-102", "History II", "Humanities"),
	}}

	rep, err := NewEngine(src, store, Options{DryRun: true}, nil).Sync(ctx, FetchAll)
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.Equal(t, 2, rep.Summary.Created)
	// The dry-run category id is cached, so the category is "created" once.
	assert.Len(t, store.CallsFor(memory.OpCreateCategory), 1)

	courses, err := store.Courses(ctx, provider.CourseFilter{})
	require.NoError(t, err)
	assert.Empty(t, courses)
}

func TestSync_Errors(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	_, err := NewEngine(&memory.Source{}, store, Options{}, nil).Sync(ctx, FetchMode("some"))
	assert.Error(t, err)

	_, err = NewEngine(&memory.Source{}, store, Options{Key: "fullname"}, nil).Sync(ctx, FetchOne)
	assert.Error(t, err)

	src := &memory.Source{ErrCourses: errors.New("view missing")}
	_, err = NewEngine(src, store, Options{}, nil).Sync(ctx, FetchOne)
	assert.ErrorContains(t, err, "view missing")
}

func TestParseFetchMode(t *testing.T) {
	m, err := ParseFetchMode("all")
	require.NoError(t, err)
	assert.Equal(t, FetchAll, m)
	_, err = ParseFetchMode("")
	assert.Error(t, err)
}
