package moodledb

import (
	"context"
	"errors"
	"strconv"
	"time"

	"moodle-sync/core/database"
	"moodle-sync/core/provider"
	"moodle-sync/core/records"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	_ provider.CourseTarget    = (*Store)(nil)
	_ provider.EnrolmentTarget = (*Store)(nil)
	_ provider.UserTarget      = (*Store)(nil)
)

// Options configures a Store.
type Options struct {
	// Prefix is the Moodle table prefix.
	Prefix string
	// DryRun turns every mutation into a read-only preview.
	DryRun bool
	// DefaultAuth is given to created users that carry no auth method.
	DefaultAuth string
	// UpdateFields overrides the course fields compared and pushed on update.
	UpdateFields []string
}

// Store is a course, enrolment and user target writing straight to the Moodle database.
type Store struct {
	db          *gorm.DB
	prefix      string
	dryRun      bool
	defaultAuth string
	fields      records.FieldSet
	logger      *zap.Logger
	now         func() time.Time
}

// NewStore creates a store on db.
func NewStore(db *gorm.DB, opts Options, logger *zap.Logger) *Store {
	fields := records.DefaultFieldSet()
	fields.Fields = append(fields.Fields, records.FormatOptionFields...)
	if len(opts.UpdateFields) > 0 {
		fields.Update = opts.UpdateFields
	}
	auth := opts.DefaultAuth
	if auth == "" {
		auth = "manual"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		db:          db,
		prefix:      opts.Prefix,
		dryRun:      opts.DryRun,
		defaultAuth: auth,
		fields:      fields,
		logger:      logger,
		now:         time.Now,
	}
}

// Preflight verifies that the Moodle tables and columns the store uses exist.
func (s *Store) Preflight(ctx context.Context) error {
	want := make(map[string][]string, len(Schema))
	for table, columns := range Schema {
		want[s.table(table)] = columns
	}
	return database.RequireSchema(s.db.WithContext(ctx), want)
}

func (s *Store) table(name string) string {
	return s.prefix + name
}

func (s *Store) timestamp() int64 {
	return s.now().Unix()
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// take loads the first row of table matching the condition into dest.
// A miss is reported as provider.ErrNotFound for kind and key.
func (s *Store) take(db *gorm.DB, table string, dest any, kind, key, query string, args ...any) error {
	err := db.Table(s.table(table)).Where(query, args...).Order("id").Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return provider.NotFound(kind, key)
	}
	if err != nil {
		return provider.Transport("select "+table, err)
	}
	return nil
}

// count counts the rows of table matching the condition.
func (s *Store) count(db *gorm.DB, table, query string, args ...any) (int64, error) {
	var n int64
	if err := db.Table(s.table(table)).Where(query, args...).Count(&n).Error; err != nil {
		return 0, provider.Transport("count "+table, err)
	}
	return n, nil
}

// orDefault returns *p, or def when p is nil.
func orDefault[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}
