package moodleapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"

	"go.uber.org/zap"
)

var _ provider.CourseTarget = (*CourseProvider)(nil)

// CourseProvider is a course target backed by the Moodle web service.
type CourseProvider struct {
	client    *Client
	templates []Template
	fields    records.FieldSet
	logger    *zap.Logger
}

// NewCourseProvider creates a course target.
func NewCourseProvider(client *Client, cfg Config, logger *zap.Logger) (*CourseProvider, error) {
	templates, err := ParseTemplates(cfg.Templates)
	if err != nil {
		return nil, err
	}
	fields := records.DefaultFieldSet()
	fields.Fields = append(fields.Fields, records.FormatOptionFields...)
	if len(cfg.UpdateFields) > 0 {
		fields.Update = cfg.UpdateFields
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseProvider{client: client, templates: templates, fields: fields, logger: logger}, nil
}

// FieldSet implements provider.CourseTarget.
func (p *CourseProvider) FieldSet() records.FieldSet {
	return p.fields
}

// Courses implements provider.CourseSource.
func (p *CourseProvider) Courses(ctx context.Context, filter provider.CourseFilter) ([]records.Course, error) {
	courses, err := p.client.coursesByField(ctx, filter.Field, filter.Value)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("Retrieved courses", zap.Int("count", len(courses)), zap.String("field", filter.Field))
	return courses, nil
}

// Course implements provider.CourseTarget.
func (p *CourseProvider) Course(ctx context.Context, field, value string) (records.Course, error) {
	courses, err := p.client.coursesByField(ctx, field, value)
	if err != nil {
		return records.Course{}, err
	}
	if len(courses) == 0 {
		return records.Course{}, provider.NotFound("course", value)
	}
	return courses[0], nil
}

// CreateCourse implements provider.CourseTarget.
// The course is duplicated from its template and then updated with every tracked field.
// Without templates it is created with core_course_create_courses.
func (p *CourseProvider) CreateCourse(ctx context.Context, c records.Course) (int64, error) {
	if _, err := p.Course(ctx, records.FieldShortname, c.Shortname); err == nil {
		return 0, provider.AlreadyExists("course", c.Shortname)
	} else if !provider.IsNotFound(err) {
		return 0, err
	}

	tmpl := templateFor(p.templates, c.Shortname)
	if tmpl == "" {
		return p.createEmpty(ctx, c)
	}

	templateID, err := p.client.courseID(ctx, tmpl)
	if err != nil {
		return 0, fmt.Errorf("resolve template %q: %w", tmpl, err)
	}

	params := url.Values{
		"courseid":   {strconv.FormatInt(templateID, 10)},
		"fullname":   {c.Fullname},
		"shortname":  {c.Shortname},
		"categoryid": {strconv.FormatInt(c.CategoryID, 10)},
	}
	var created struct {
		ID        int64  `json:"id"`
		Shortname string `json:"shortname"`
	}
	applied, err := p.client.Write(ctx, "core_course_duplicate_course", params, &created)
	if err != nil {
		return 0, err
	}
	if !applied {
		p.logger.Info("Dry run, course not duplicated", zap.String("shortname", c.Shortname), zap.Int64("template", templateID))
		return provider.DryRunCourseID, nil
	}
	if created.ID == 0 {
		return 0, provider.Transport("core_course_duplicate_course", fmt.Errorf("no id returned for %s", c.Shortname))
	}

	c.ID = created.ID
	if err := p.update(ctx, c, p.fields.Fields); err != nil {
		return created.ID, fmt.Errorf("update duplicated course %d: %w", created.ID, err)
	}
	return created.ID, nil
}

func (p *CourseProvider) createEmpty(ctx context.Context, c records.Course) (int64, error) {
	params := url.Values{}
	for field, value := range c.Params(p.fields.Fields) {
		if isFormatOption(field) {
			continue
		}
		params.Set("courses[0]["+field+"]", value)
	}
	params.Set("courses[0][categoryid]", strconv.FormatInt(c.CategoryID, 10))
	setFormatOptions(params, c, p.fields.Fields)

	var created []struct {
		ID int64 `json:"id"`
	}
	applied, err := p.client.Write(ctx, "core_course_create_courses", params, &created)
	if err != nil {
		return 0, err
	}
	if !applied {
		return provider.DryRunCourseID, nil
	}
	if len(created) == 0 {
		return 0, provider.Transport("core_course_create_courses", fmt.Errorf("no id returned for %s", c.Shortname))
	}
	return created[0].ID, nil
}

// UpdateCourse implements provider.CourseTarget.
func (p *CourseProvider) UpdateCourse(ctx context.Context, c records.Course) error {
	if c.ID == 0 {
		existing, err := p.Course(ctx, records.FieldShortname, c.Shortname)
		if err != nil {
			return err
		}
		c.ID = existing.ID
	}
	return p.update(ctx, c, p.fields.Update)
}

func (p *CourseProvider) update(ctx context.Context, c records.Course, fields []string) error {
	params := url.Values{}
	for field, value := range c.Params(fields) {
		if isFormatOption(field) || field == records.FieldID {
			continue
		}
		params.Set("courses[0]["+field+"]", value)
	}
	params.Set("courses[0][id]", strconv.FormatInt(c.ID, 10))
	setFormatOptions(params, c, fields)

	var resp struct {
		Warnings []struct {
			Message string `json:"message"`
		} `json:"warnings"`
	}
	applied, err := p.client.Write(ctx, "core_course_update_courses", params, &resp)
	if err != nil {
		return err
	}
	for _, w := range resp.Warnings {
		p.logger.Warn("Course update warning", zap.String("shortname", c.Shortname), zap.String("warning", w.Message))
	}
	p.logger.Debug("Course updated",
		zap.String("shortname", c.Shortname),
		zap.Int64("id", c.ID),
		zap.Bool("applied", applied),
	)
	return nil
}

// setFormatOptions encodes the format options among fields the way core_course_update_courses expects.
func setFormatOptions(params url.Values, c records.Course, fields []string) {
	i := 0
	for _, field := range fields {
		if !isFormatOption(field) {
			continue
		}
		v, ok := c.Option(field)
		if !ok {
			continue
		}
		prefix := fmt.Sprintf("courses[0][courseformatoptions][%d]", i)
		params.Set(prefix+"[name]", field)
		params.Set(prefix+"[value]", strconv.Itoa(v))
		i++
	}
}

func isFormatOption(field string) bool {
	for _, f := range records.FormatOptionFields {
		if f == field {
			return true
		}
	}
	return false
}

// Category implements provider.CourseTarget.
func (p *CourseProvider) Category(ctx context.Context, nameOrID string) (int64, error) {
	key := "name"
	if isNumeric(nameOrID) {
		key = "id"
	}
	params := url.Values{
		"criteria[0][key]":   {key},
		"criteria[0][value]": {nameOrID},
	}
	var cats []struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	}
	if err := p.client.Read(ctx, "core_course_get_categories", params, &cats); err != nil {
		return 0, err
	}
	if len(cats) == 0 {
		return 0, provider.NotFound("category", nameOrID)
	}
	return cats[0].ID, nil
}

// CreateCategory implements provider.CourseTarget.
func (p *CourseProvider) CreateCategory(ctx context.Context, name, parent string) (int64, error) {
	params := url.Values{"categories[0][name]": {name}}
	if parent != "" {
		parentID, err := p.Category(ctx, parent)
		if err != nil {
			if !(provider.IsNotFound(err) && p.client.DryRun()) {
				return 0, fmt.Errorf("resolve parent category: %w", err)
			}
			// The parent was only pretend-created.
			parentID = provider.DryRunCategoryID
		}
		params.Set("categories[0][parent]", strconv.FormatInt(parentID, 10))
	}

	var created []struct {
		ID int64 `json:"id"`
	}
	applied, err := p.client.Write(ctx, "core_course_create_categories", params, &created)
	if err != nil {
		return 0, err
	}
	if !applied {
		return provider.DryRunCategoryID, nil
	}
	if len(created) == 0 {
		return 0, provider.Transport("core_course_create_categories", fmt.Errorf("no id returned for %s", name))
	}
	p.logger.Debug("Category created", zap.String("name", name), zap.Int64("id", created[0].ID))
	return created[0].ID, nil
}
