package moodledb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"
	"moodle-sync/core/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// courseColumns maps course field names to course table columns.
var courseColumns = map[string]string{
	records.FieldID:         "id",
	records.FieldShortname:  "shortname",
	records.FieldIDNumber:   "idnumber",
	records.FieldFullname:   "fullname",
	records.FieldCategoryID: "category",
	"category":              "category",
	records.FieldSummary:    "summary",
	records.FieldFormat:     "format",
	records.FieldShowGrades: "showgrades",
	records.FieldNewsItems:  "newsitems",
	records.FieldStartDate:  "startdate",
	records.FieldEndDate:    "enddate",
	records.FieldVisible:    "visible",
}

// optionFields are stored in course_format_options. numsections lives there since Moodle 2.4.
var optionFields = append([]string{records.FieldNumSections}, records.FormatOptionFields...)

func isOption(field string) bool {
	for _, f := range optionFields {
		if f == field {
			return true
		}
	}
	return false
}

// FieldSet implements provider.CourseTarget.
func (s *Store) FieldSet() records.FieldSet {
	return s.fields
}

// Courses implements provider.CourseSource.
// Values containing % or _ are matched case-insensitively with LIKE.
func (s *Store) Courses(ctx context.Context, filter provider.CourseFilter) ([]records.Course, error) {
	like := strings.ContainsAny(filter.Value, "%_")
	return s.courses(s.conn(ctx), filter.Field, filter.Value, like)
}

// Course implements provider.CourseTarget.
func (s *Store) Course(ctx context.Context, field, value string) (records.Course, error) {
	courses, err := s.courses(s.conn(ctx), field, value, false)
	if err != nil {
		return records.Course{}, err
	}
	if len(courses) == 0 {
		return records.Course{}, provider.NotFound("course", value)
	}
	return courses[0], nil
}

func (s *Store) courses(db *gorm.DB, field, value string, like bool) ([]records.Course, error) {
	q := db.Table(s.table("course")).Where("format <> ?", "site")
	if field != "" {
		column, ok := courseColumns[field]
		if !ok {
			return nil, fmt.Errorf("invalid course field %q", field)
		}
		if like {
			q = q.Where("LOWER("+column+") LIKE LOWER(?)", value)
		} else {
			q = q.Where(column+" = ?", value)
		}
	}
	var rows []courseRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, provider.Transport("select course", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	var opts []formatOptionRow
	err := db.Table(s.table("course_format_options")).
		Where("courseid IN ? AND sectionid = 0 AND name IN ?", ids, optionFields).
		Find(&opts).Error
	if err != nil {
		return nil, provider.Transport("select course_format_options", err)
	}
	byCourse := make(map[int64][]formatOptionRow)
	for _, o := range opts {
		byCourse[o.CourseID] = append(byCourse[o.CourseID], o)
	}

	out := make([]records.Course, 0, len(rows))
	for _, r := range rows {
		c := r.record()
		for _, o := range byCourse[r.ID] {
			v := utils.ToInt(o.Value)
			if o.Name == records.FieldNumSections {
				c.NumSections = records.Int(v)
				continue
			}
			c.SetOption(o.Name, v)
		}
		out = append(out, c)
	}
	return out, nil
}

// CreateCourse implements provider.CourseTarget.
// The course is created blank together with its context and a manual enrolment instance.
func (s *Store) CreateCourse(ctx context.Context, c records.Course) (int64, error) {
	if _, err := s.Course(ctx, records.FieldShortname, c.Shortname); err == nil {
		return 0, provider.AlreadyExists("course", c.Shortname)
	} else if !provider.IsNotFound(err) {
		return 0, err
	}
	if s.dryRun {
		s.logger.Info("Dry run, course not created", zap.String("shortname", c.Shortname))
		return provider.DryRunCourseID, nil
	}

	now := s.timestamp()
	row := courseRow{
		Category:      c.CategoryID,
		Shortname:     c.Shortname,
		Fullname:      c.Fullname,
		IDNumber:      c.IDNumber,
		Summary:       c.Summary,
		SummaryFormat: 1,
		Format:        orDefault(c.Format, "topics"),
		ShowGrades:    orDefault(c.ShowGrades, 1),
		NewsItems:     orDefault(c.NewsItems, 5),
		StartDate:     orDefault(c.StartDate, 0),
		EndDate:       orDefault(c.EndDate, 0),
		Visible:       orDefault(c.Visible, 1),
		TimeCreated:   now,
		TimeModified:  now,
	}
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Table(s.table("course")).Create(&row).Error; err != nil {
			return err
		}

		courseCtx := contextRow{ContextLevel: contextCourse, InstanceID: row.ID, Depth: 2}
		if err := tx.Table(s.table("context")).Create(&courseCtx).Error; err != nil {
			return err
		}
		path := "/1/" + strconv.FormatInt(courseCtx.ID, 10)
		if err := tx.Table(s.table("context")).Where("id = ?", courseCtx.ID).Update("path", path).Error; err != nil {
			return err
		}

		var student roleRow
		if err := tx.Table(s.table("role")).Where("shortname = ?", records.RoleStudent).Take(&student).Error; err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		manual := enrolRow{Enrol: "manual", CourseID: row.ID, RoleID: student.ID}
		if err := tx.Table(s.table("enrol")).Create(&manual).Error; err != nil {
			return err
		}

		return s.writeOptions(tx, row.ID, row.Format, c, s.fields.Fields)
	})
	if err != nil {
		return 0, provider.Transport("create course", err)
	}
	s.logger.Debug("Course created", zap.String("shortname", c.Shortname), zap.Int64("id", row.ID))
	return row.ID, nil
}

// UpdateCourse implements provider.CourseTarget.
func (s *Store) UpdateCourse(ctx context.Context, c records.Course) error {
	if c.ID == 0 {
		existing, err := s.Course(ctx, records.FieldShortname, c.Shortname)
		if err != nil {
			return err
		}
		c.ID = existing.ID
	}

	updates := make(map[string]any)
	for _, f := range s.fields.Update {
		column, ok := courseColumns[f]
		if !ok || f == records.FieldID {
			continue
		}
		if v, ok := c.Value(f); ok {
			updates[column] = v
		}
	}
	if s.dryRun {
		s.logger.Info("Dry run, course not updated", zap.String("shortname", c.Shortname), zap.Any("fields", updates))
		return nil
	}

	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var current courseRow
		if err := tx.Table(s.table("course")).Select("id", "format").Where("id = ?", c.ID).Take(&current).Error; err != nil {
			return err
		}
		if len(updates) > 0 {
			updates["timemodified"] = s.timestamp()
			if err := tx.Table(s.table("course")).Where("id = ?", c.ID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return s.writeOptions(tx, c.ID, orDefault(c.Format, current.Format), c, s.fields.Update)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return provider.NotFound("course", strconv.FormatInt(c.ID, 10))
	}
	if err != nil {
		return provider.Transport("update course", err)
	}
	return nil
}

// writeOptions upserts the course-level format options among fields.
func (s *Store) writeOptions(tx *gorm.DB, courseID int64, format string, c records.Course, fields []string) error {
	table := s.table("course_format_options")
	for _, f := range fields {
		if !isOption(f) {
			continue
		}
		v, ok := c.Value(f)
		if !ok {
			continue
		}
		val := records.Render(v)

		var opt formatOptionRow
		err := tx.Table(table).Where("courseid = ? AND sectionid = 0 AND name = ?", courseID, f).Take(&opt).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			opt = formatOptionRow{CourseID: courseID, Format: format, Name: f, Value: val}
			if err := tx.Table(table).Create(&opt).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			if err := tx.Table(table).Where("id = ?", opt.ID).Updates(map[string]any{"value": val, "format": format}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// Category implements provider.CourseTarget.
func (s *Store) Category(ctx context.Context, nameOrID string) (int64, error) {
	row, err := s.category(s.conn(ctx), nameOrID)
	if err != nil {
		return 0, err
	}
	return row.ID, nil
}

func (s *Store) category(db *gorm.DB, nameOrID string) (categoryRow, error) {
	var row categoryRow
	query := "name = ?"
	if isNumeric(nameOrID) {
		query = "id = ?"
	}
	err := s.take(db, "course_categories", &row, "category", nameOrID, query, nameOrID)
	return row, err
}

// CreateCategory implements provider.CourseTarget.
// The category is appended to its siblings with the next sort order.
func (s *Store) CreateCategory(ctx context.Context, name, parent string) (int64, error) {
	var parentRow categoryRow
	if parent != "" {
		p, err := s.category(s.conn(ctx), parent)
		switch {
		case err == nil:
			parentRow = p
		case provider.IsNotFound(err) && s.dryRun:
			// The parent was only pretend-created.
			parentRow.ID = provider.DryRunCategoryID
		default:
			return 0, fmt.Errorf("resolve parent category: %w", err)
		}
	}
	if s.dryRun {
		s.logger.Info("Dry run, category not created", zap.String("name", name), zap.Int64("parent", parentRow.ID))
		return provider.DryRunCategoryID, nil
	}

	table := s.table("course_categories")
	row := categoryRow{Name: name, Parent: parentRow.ID, Visible: 1, Depth: parentRow.Depth + 1, TimeModified: s.timestamp()}
	err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var maxSort int64
		if err := tx.Table(table).Select("COALESCE(MAX(sortorder), 0)").Where("parent = ?", parentRow.ID).Scan(&maxSort).Error; err != nil {
			return err
		}
		row.SortOrder = maxSort + 1
		if err := tx.Table(table).Create(&row).Error; err != nil {
			return err
		}
		row.Path = parentRow.Path + "/" + strconv.FormatInt(row.ID, 10)
		return tx.Table(table).Where("id = ?", row.ID).Update("path", row.Path).Error
	})
	if err != nil {
		return 0, provider.Transport("create category", err)
	}
	s.logger.Debug("Category created", zap.String("name", name), zap.Int64("id", row.ID))
	return row.ID, nil
}
