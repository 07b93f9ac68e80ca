package records

import (
	"html"
	"strconv"

	"moodle-sync/core/utils"
)

// Moodle course field names. Course values are exposed and compared by these names.
const (
	FieldID               = "id"
	FieldShortname        = "shortname"
	FieldIDNumber         = "idnumber"
	FieldFullname         = "fullname"
	FieldCategoryID       = "categoryid"
	FieldSummary          = "summary"
	FieldFormat           = "format"
	FieldShowGrades       = "showgrades"
	FieldNewsItems        = "newsitems"
	FieldNumSections      = "numsections"
	FieldStartDate        = "startdate"
	FieldEndDate          = "enddate"
	FieldVisible          = "visible"
	FieldHiddenSections   = "hiddensections"
	FieldCourseDisplay    = "coursedisplay"
	FieldAutomaticEndDate = "automaticenddate"
)

// FormatOptionFields are stored by Moodle as course format options rather than course columns.
var FormatOptionFields = []string{FieldHiddenSections, FieldCourseDisplay, FieldAutomaticEndDate}

// DefaultCourseFields is the field vocabulary a course target tracks unless it declares its own.
var DefaultCourseFields = []string{
	FieldShortname, FieldIDNumber, FieldFullname, FieldCategoryID, FieldSummary,
	FieldStartDate, FieldEndDate, FieldFormat, FieldShowGrades, FieldNumSections, FieldVisible,
}

// DefaultCourseUpdateFields is the subset of fields compared and pushed on update.
var DefaultCourseUpdateFields = []string{FieldFullname, FieldStartDate, FieldEndDate, FieldCategoryID}

// FieldSet is the field vocabulary declared by a course target.
type FieldSet struct {
	// Fields is every field the target tracks. Creation pushes all of them.
	Fields []string
	// Update is the subset compared by change detection and pushed on update.
	Update []string
}

// DefaultFieldSet returns the default course field vocabulary.
func DefaultFieldSet() FieldSet {
	return FieldSet{
		Fields: append([]string(nil), DefaultCourseFields...),
		Update: append([]string(nil), DefaultCourseUpdateFields...),
	}
}

// Contains reports whether name is part of the update subset.
func (f FieldSet) Contains(name string) bool {
	for _, field := range f.Update {
		if field == name {
			return true
		}
	}
	return false
}

// Course is a course record as seen by either side of a sync.
// Pointer fields are nil when the backend does not report that field.
type Course struct {
	// ID is assigned by the target. Zero on source records.
	ID int64 `json:"id,omitempty"`
	// Shortname is the business key used for matching.
	Shortname string `json:"shortname" validate:"required,max=255"`
	// IDNumber is the alternate key.
	IDNumber string `json:"idnumber,omitempty" validate:"max=100"`
	// Fullname is the display name.
	Fullname string `json:"fullname" validate:"required,max=254"`
	// CategoryID is the resolved target category.
	CategoryID int64 `json:"categoryid,omitempty"`
	// CategoryName references the category by name on source records.
	CategoryName string `json:"categoryname,omitempty"`
	// CategoryParentName optionally names the parent of CategoryName.
	CategoryParentName string `json:"categoryparent,omitempty"`

	Summary     *string `json:"summary,omitempty"`
	Format      *string `json:"format,omitempty"`
	ShowGrades  *int    `json:"showgrades,omitempty"`
	NewsItems   *int    `json:"newsitems,omitempty"`
	NumSections *int    `json:"numsections,omitempty"`
	StartDate   *int64  `json:"startdate,omitempty"`
	EndDate     *int64  `json:"enddate,omitempty"`
	Visible     *int    `json:"visible,omitempty"`

	// FormatOptions holds hiddensections, coursedisplay and automaticenddate when reported.
	FormatOptions map[string]int `json:"courseformatoptions,omitempty"`
}

// Key returns the value of the matching key field (shortname or idnumber).
func (c Course) Key(field string) string {
	if field == FieldIDNumber {
		return c.IDNumber
	}
	return c.Shortname
}

// Value returns the named field and whether the record carries it.
func (c Course) Value(field string) (any, bool) {
	switch field {
	case FieldID:
		return c.ID, c.ID != 0
	case FieldShortname:
		return c.Shortname, true
	case FieldIDNumber:
		return c.IDNumber, true
	case FieldFullname:
		return c.Fullname, true
	case FieldCategoryID:
		return c.CategoryID, c.CategoryID != 0
	case FieldSummary:
		return deref(c.Summary)
	case FieldFormat:
		return deref(c.Format)
	case FieldShowGrades:
		return deref(c.ShowGrades)
	case FieldNewsItems:
		return deref(c.NewsItems)
	case FieldNumSections:
		if c.NumSections != nil {
			return *c.NumSections, true
		}
		v, ok := c.FormatOptions[FieldNumSections]
		return v, ok
	case FieldStartDate:
		return deref(c.StartDate)
	case FieldEndDate:
		return deref(c.EndDate)
	case FieldVisible:
		return deref(c.Visible)
	default:
		v, ok := c.FormatOptions[field]
		return v, ok
	}
}

// Option returns a course format option.
func (c Course) Option(name string) (int, bool) {
	v, ok := c.FormatOptions[name]
	return v, ok
}

// SetOption stores a course format option.
func (c *Course) SetOption(name string, value int) {
	if c.FormatOptions == nil {
		c.FormatOptions = make(map[string]int)
	}
	c.FormatOptions[name] = value
}

// Params renders the given fields as strings, skipping absent ones.
// Backends use it to build update payloads.
func (c Course) Params(fields []string) map[string]string {
	out := make(map[string]string, len(fields))
	for _, f := range fields {
		v, ok := c.Value(f)
		if !ok {
			continue
		}
		out[f] = Render(v)
	}
	return out
}

// Render formats a field value for a backend payload. Booleans become 1 or 0.
func Render(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return utils.ToString(t)
	}
}

// Normalize renders a field value in its comparable form.
// Strings are HTML-entity decoded, booleans become 1 or 0.
func Normalize(v any) string {
	return html.UnescapeString(Render(v))
}

// Category is a course category reference.
type Category struct {
	ID     int64  `json:"id,omitempty"`
	Name   string `json:"name" validate:"required"`
	Parent string `json:"parent,omitempty"`
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Int returns a pointer to i.
func Int(i int) *int { return &i }

// Int64 returns a pointer to i.
func Int64(i int64) *int64 { return &i }

func deref[T any](p *T) (any, bool) {
	if p == nil {
		return nil, false
	}
	return *p, true
}
