package cmd

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"moodle-sync/core/config"
	"moodle-sync/core/database"
	"moodle-sync/core/provider"
	"moodle-sync/core/records"
	"moodle-sync/core/runner"
	"moodle-sync/feature/erp"
	"moodle-sync/feature/moodleapi"
	"moodle-sync/feature/moodledb"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var _ runner.Providers = (*backends)(nil)

// backends builds sources and targets from the configuration.
// Connections are opened on first use and shared across runs.
type backends struct {
	cfg    *config.Config
	roles  *records.RoleTable
	logger *zap.Logger

	mu       sync.Mutex
	source   *erp.Source
	moodleDB *gorm.DB
	verified bool
}

func newBackends(cfg *config.Config, roles *records.RoleTable, logger *zap.Logger) *backends {
	return &backends{cfg: cfg, roles: roles, logger: logger}
}

func (b *backends) erpSource() (*erp.Source, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.source != nil {
		return b.source, nil
	}
	src, err := erp.Open(b.cfg.Source, b.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ERP: %w", err)
	}
	b.source = src
	return src, nil
}

// store returns a Moodle database target. The schema is verified on first use.
func (b *backends) store(ctx context.Context, dryRun bool) (*moodledb.Store, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.moodleDB == nil {
		db, err := database.Connect(b.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Moodle database: %w", err)
		}
		b.moodleDB = db
	}
	s := moodledb.NewStore(b.moodleDB, moodledb.Options{
		Prefix:       b.cfg.Database.Prefix,
		DryRun:       dryRun,
		DefaultAuth:  b.cfg.Moodle.DefaultAuth,
		UpdateFields: b.cfg.Moodle.UpdateFields,
	}, b.logger)
	if !b.verified {
		if err := s.Preflight(ctx); err != nil {
			return nil, err
		}
		b.verified = true
	}
	return s, nil
}

func (b *backends) client(dryRun bool) (*moodleapi.Client, error) {
	c, err := moodleapi.NewClient(b.cfg.Moodle, dryRun, b.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create Moodle client: %w", err)
	}
	return c, nil
}

// Courses implements runner.Providers.
func (b *backends) Courses(ctx context.Context, dryRun bool) (provider.CourseSource, provider.CourseTarget, error) {
	src, err := b.erpSource()
	if err != nil {
		return nil, nil, err
	}
	if b.cfg.Sync.CourseBackend == runner.BackendDB {
		s, err := b.store(ctx, dryRun)
		if err != nil {
			return nil, nil, err
		}
		return src, s, nil
	}
	c, err := b.client(dryRun)
	if err != nil {
		return nil, nil, err
	}
	p, err := moodleapi.NewCourseProvider(c, b.cfg.Moodle, b.logger)
	if err != nil {
		return nil, nil, err
	}
	return src, p, nil
}

// Enrolments implements runner.Providers.
func (b *backends) Enrolments(ctx context.Context, dryRun bool) (provider.EnrolmentSource, provider.EnrolmentTarget, error) {
	src, err := b.erpSource()
	if err != nil {
		return nil, nil, err
	}
	if b.cfg.Sync.EnrolmentBackend == runner.BackendDB {
		s, err := b.store(ctx, dryRun)
		if err != nil {
			return nil, nil, err
		}
		return src, s, nil
	}
	c, err := b.client(dryRun)
	if err != nil {
		return nil, nil, err
	}
	return src, moodleapi.NewEnrolmentProvider(c, b.cfg.Moodle, b.roles, b.logger), nil
}

// Users implements runner.Providers.
func (b *backends) Users(ctx context.Context, dryRun bool) (provider.UserSource, provider.UserTarget, error) {
	src, err := b.erpSource()
	if err != nil {
		return nil, nil, err
	}
	if b.cfg.Sync.UserBackend == runner.BackendDB {
		s, err := b.store(ctx, dryRun)
		if err != nil {
			return nil, nil, err
		}
		return src, s, nil
	}
	c, err := b.client(dryRun)
	if err != nil {
		return nil, nil, err
	}
	return src, moodleapi.NewUserProvider(c, b.cfg.Moodle, b.logger), nil
}

// Close closes every opened connection.
func (b *backends) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	if b.source != nil {
		errs = append(errs, b.source.Close())
		b.source = nil
	}
	if b.moodleDB != nil {
		if sqlDB, err := b.moodleDB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
		b.moodleDB = nil
	}
	return errors.Join(errs...)
}
