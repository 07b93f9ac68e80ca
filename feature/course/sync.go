package course

import (
	"context"
	"errors"
	"fmt"

	"moodle-sync/core/provider"
	"moodle-sync/core/reconcile"
	"moodle-sync/core/records"

	"go.uber.org/zap"
)

// FetchMode selects how target courses are matched.
type FetchMode string

const (
	// FetchOne looks each course up on the target individually.
	FetchOne FetchMode = "one"
	// FetchAll loads every target course once and matches locally.
	FetchAll FetchMode = "all"
)

// ParseFetchMode validates a fetch mode name.
func ParseFetchMode(s string) (FetchMode, error) {
	switch FetchMode(s) {
	case FetchOne, FetchAll:
		return FetchMode(s), nil
	default:
		return "", fmt.Errorf("invalid fetch mode %q (want one or all)", s)
	}
}

// Options controls a course sync.
type Options struct {
	// Key is the matching field, shortname or idnumber. Defaults to shortname.
	Key string
	// DryRun labels the report. The target enforces dry-run itself.
	DryRun bool
}

// Engine reconciles courses from a source into a target.
type Engine struct {
	source provider.CourseSource
	target provider.CourseTarget
	opts   Options
	logger *zap.Logger
}

// NewEngine creates a course sync engine.
func NewEngine(source provider.CourseSource, target provider.CourseTarget, opts Options, logger *zap.Logger) *Engine {
	if opts.Key == "" {
		opts.Key = records.FieldShortname
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		source: source,
		target: target,
		opts:   opts,
		logger: logger.With(zap.String("kind", string(reconcile.KindCourses))),
	}
}

// Sync creates missing courses and updates changed ones. Courses are never deleted.
// Per-course failures are recorded in the report and do not stop the run.
func (e *Engine) Sync(ctx context.Context, mode FetchMode) (*reconcile.Report, error) {
	if _, err := ParseFetchMode(string(mode)); err != nil {
		return nil, err
	}
	if e.opts.Key != records.FieldShortname && e.opts.Key != records.FieldIDNumber {
		return nil, fmt.Errorf("invalid course key %q", e.opts.Key)
	}

	report := reconcile.NewReport(reconcile.KindCourses, e.opts.DryRun)
	e.logger.Info("Starting course sync", zap.String("fetch", string(mode)), zap.String("run_id", report.RunID))

	sourceCourses, err := e.source.Courses(ctx, provider.CourseFilter{})
	if err != nil {
		return nil, fmt.Errorf("list source courses: %w", err)
	}

	fields := e.target.FieldSet()
	if len(fields.Update) == 0 {
		fields = records.DefaultFieldSet()
	}

	var index map[string]records.Course
	if mode == FetchAll {
		targetCourses, err := e.target.Courses(ctx, provider.CourseFilter{})
		if err != nil {
			return nil, fmt.Errorf("list target courses: %w", err)
		}
		index = make(map[string]records.Course, len(targetCourses))
		for _, c := range targetCourses {
			if k := c.Key(e.opts.Key); k != "" {
				index[k] = c
			}
		}
		e.logger.Debug("Indexed target courses", zap.Int("count", len(index)))
	}

	resolver := reconcile.NewResolver(reconcile.NewCache(), e.logger)

	for _, sc := range sourceCourses {
		if err := ctx.Err(); err != nil {
			report.Finish()
			return report, err
		}

		key := sc.Key(e.opts.Key)
		if key == "" {
			report.Fail(e.logger, sc.Shortname, reconcile.ActionValidate, fmt.Errorf("course has no %s", e.opts.Key))
			continue
		}
		if err := records.Validate(sc); err != nil {
			report.Fail(e.logger, key, reconcile.ActionValidate, provider.Invalid(key, err))
			continue
		}

		if err := e.resolveCategory(ctx, resolver, &sc); err != nil {
			report.Fail(e.logger, key, reconcile.ActionCategory, err)
			continue
		}

		existing, found, err := e.lookup(ctx, mode, index, key)
		if err != nil {
			report.Fail(e.logger, key, reconcile.ActionLookup, err)
			continue
		}

		if !found {
			id, err := e.target.CreateCourse(ctx, sc)
			if err != nil {
				report.Fail(e.logger, key, reconcile.ActionCreate, err)
				continue
			}
			report.Summary.Created++
			e.logger.Info("Created course", zap.String("key", key), zap.Int64("id", id))
			if index != nil {
				sc.ID = id
				index[key] = sc
			}
			continue
		}

		changes := reconcile.Diff(existing, sc, fields.Update)
		if len(changes.Skipped) > 0 {
			e.logger.Debug("Fields not compared", zap.String("key", key), zap.Strings("skipped", changes.Skipped))
		}
		if !changes.Needed() {
			report.Summary.Skipped++
			e.logger.Debug("Course up to date", zap.String("key", key))
			continue
		}

		sc.ID = existing.ID
		if err := e.target.UpdateCourse(ctx, sc); err != nil {
			report.Fail(e.logger, key, reconcile.ActionUpdate, err)
			continue
		}
		report.Summary.Updated++
		e.logger.Info("Updated course",
			zap.String("key", key),
			zap.Int64("id", existing.ID),
			zap.Strings("changes", changes.Strings()),
		)
	}

	resolver.LogStats()
	report.Finish()
	report.Log(e.logger)
	return report, nil
}

// resolveCategory sets c.CategoryID from its category name, creating the category when absent.
// A course without a category name keeps an explicit CategoryID.
func (e *Engine) resolveCategory(ctx context.Context, r *reconcile.Resolver, c *records.Course) error {
	if c.CategoryName == "" {
		if c.CategoryID > 0 {
			return nil
		}
		return errors.New("course has no category")
	}
	id, _, err := r.Category(ctx, e.target, c.CategoryName, c.CategoryParentName)
	if err != nil {
		return err
	}
	c.CategoryID = id
	return nil
}

func (e *Engine) lookup(ctx context.Context, mode FetchMode, index map[string]records.Course, key string) (records.Course, bool, error) {
	if mode == FetchAll {
		c, ok := index[key]
		return c, ok, nil
	}
	c, err := e.target.Course(ctx, e.opts.Key, key)
	if err != nil {
		if provider.IsNotFound(err) {
			return records.Course{}, false, nil
		}
		return records.Course{}, false, err
	}
	return c, true, nil
}
