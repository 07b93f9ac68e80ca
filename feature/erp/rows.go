package erp

import (
	"strconv"
	"strings"
	"time"

	"moodle-sync/core/utils"
)

// row is one result row keyed by lower-cased column name.
type row map[string]any

func newRow(m map[string]any) row {
	r := make(row, len(m))
	for k, v := range m {
		r[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return r
}

// lookup returns the first non-null value among the column names.
func (r row) lookup(names ...string) (any, bool) {
	for _, n := range names {
		if v, ok := r[n]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (r row) str(names ...string) string {
	v, ok := r.lookup(names...)
	if !ok {
		return ""
	}
	return strings.TrimSpace(utils.ToString(v))
}

func (r row) strPtr(name string) *string {
	v, ok := r.lookup(name)
	if !ok {
		return nil
	}
	s := utils.ToString(v)
	return &s
}

func (r row) intVal(name string) (int, bool) {
	v, ok := r.lookup(name)
	if !ok {
		return 0, false
	}
	return utils.ToInt(v), true
}

func (r row) intPtr(name string) *int {
	v, ok := r.intVal(name)
	if !ok {
		return nil
	}
	return &v
}

// date converts a date column to a unix timestamp.
// Zone-less values arrive from the drivers as UTC and are read as wall clock time in loc.
func (r row) date(name string, loc *time.Location) (int64, bool) {
	v, ok := r.lookup(name)
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case time.Time:
		return utils.ToUnix(wallClock(t, loc)), true
	case string, []byte:
		s := strings.TrimSpace(utils.ToString(t))
		if s == "" {
			return 0, false
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"} {
			if parsed, err := time.ParseInLocation(layout, s, loc); err == nil {
				return parsed.Unix(), true
			}
		}
		return 0, false
	default:
		return utils.ToInt64(t), true
	}
}

func (r row) datePtr(name string, loc *time.Location) *int64 {
	v, ok := r.date(name, loc)
	if !ok {
		return nil
	}
	return &v
}

func wallClock(t time.Time, loc *time.Location) time.Time {
	if t.IsZero() {
		return t
	}
	if _, offset := t.Zone(); offset != 0 || loc == time.UTC {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
