package reconcile

import (
	"testing"

	"moodle-sync/core/records"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	update := records.DefaultCourseUpdateFields

	base := func() records.Course {
		return records.Course{
			Shortname:  "HIS-101",
			Fullname:   "History",
			CategoryID: 4,
			StartDate:  records.Int64(1000),
			EndDate:    records.Int64(2000),
		}
	}

	t.Run("Identical", func(t *testing.T) {
		c := Diff(base(), base(), update)
		assert.False(t, c.Needed())
	})

	t.Run("EntityEncodedEqual", func(t *testing.T) {
		target := base()
		target.Fullname = "Arts &amp; Sciences"
		source := base()
		source.Fullname = "Arts & Sciences"
		assert.False(t, Diff(target, source, update).Needed())
	})

	t.Run("FullnameChanged", func(t *testing.T) {
		source := base()
		source.Fullname = "World History"
		c := Diff(base(), source, update)
		require.True(t, c.Needed())
		require.Len(t, c.Fields, 1)
		assert.Equal(t, "fullname: target=History source=World History", c.Fields[0].String())
	})

	t.Run("AbsentInSourceSkipped", func(t *testing.T) {
		source := base()
		source.EndDate = nil
		target := base()
		target.EndDate = records.Int64(9999)
		c := Diff(target, source, update)
		assert.False(t, c.Needed())
		assert.Contains(t, c.Skipped, "enddate: absent in source")
	})

	t.Run("AbsentInTargetSkipped", func(t *testing.T) {
		target := base()
		target.StartDate = nil
		source := base()
		source.StartDate = records.Int64(5)
		assert.False(t, Diff(target, source, update).Needed())
	})

	t.Run("AutomaticEndDateExcluded", func(t *testing.T) {
		target := base()
		target.SetOption(records.FieldAutomaticEndDate, 1)
		source := base()
		source.EndDate = records.Int64(3000)
		c := Diff(target, source, update)
		assert.False(t, c.Needed())
		assert.Contains(t, c.Skipped, "enddate: automatic end date")
	})

	t.Run("AutomaticEndDateTrackedCompares", func(t *testing.T) {
		target := base()
		target.SetOption(records.FieldAutomaticEndDate, 1)
		source := base()
		source.EndDate = records.Int64(3000)
		source.SetOption(records.FieldAutomaticEndDate, 0)
		withAuto := append(append([]string(nil), update...), records.FieldAutomaticEndDate)
		c := Diff(target, source, withAuto)
		require.True(t, c.Needed())
		assert.Equal(t, []string{
			"enddate: target=2000 source=3000",
			"automaticenddate: target=1 source=0",
		}, c.Strings())
	})

	t.Run("AutomaticEndDateOff", func(t *testing.T) {
		target := base()
		target.SetOption(records.FieldAutomaticEndDate, 0)
		source := base()
		source.EndDate = records.Int64(3000)
		assert.True(t, Diff(target, source, update).Needed())
	})

	t.Run("OnlyUpdateFieldsCompared", func(t *testing.T) {
		target := base()
		target.Summary = records.String("old")
		source := base()
		source.Summary = records.String("new")
		assert.False(t, Diff(target, source, update).Needed())
		assert.True(t, Diff(target, source, []string{records.FieldSummary}).Needed())
	})

	t.Run("CategoryChanged", func(t *testing.T) {
		source := base()
		source.CategoryID = 9
		c := Diff(base(), source, update)
		require.Len(t, c.Fields, 1)
		assert.Equal(t, records.FieldCategoryID, c.Fields[0].Field)
	})
}
