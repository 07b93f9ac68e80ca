package cmd

import (
	"fmt"

	"moodle-sync/core/config"
	"moodle-sync/core/logger"
	"moodle-sync/core/metrics"
	"moodle-sync/core/records"
	"moodle-sync/core/report"
	"moodle-sync/core/runner"
	"moodle-sync/core/storage"

	"go.uber.org/zap"
)

// app bundles what every command builds from the configuration.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	roles    *records.RoleTable
	backends *backends
	metrics  *metrics.Metrics
	archive  *report.Archive
	runner   *runner.Runner
}

// newApp loads the configuration and wires the runner with its publishers.
func newApp() (*app, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	roles, err := loadRoles(cfg)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: l, roles: roles}
	a.backends = newBackends(cfg, roles, l)

	var publishers []runner.Publisher
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New(cfg.Metrics)
		publishers = append(publishers, a.metrics)
	}
	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
		a.archive = report.NewArchive(client, cfg.Storage, l)
		publishers = append(publishers, a.archive)
	}
	a.runner = runner.New(cfg.Sync, a.backends, l, publishers...)
	return a, nil
}

// loadRoles returns the stock roles merged with the configured role file.
func loadRoles(cfg *config.Config) (*records.RoleTable, error) {
	if cfg.Roles.File == "" {
		return records.NewRoleTable(), nil
	}
	extra, err := records.LoadRoles(cfg.Roles.File)
	if err != nil {
		return nil, err
	}
	return records.NewRoleTable(extra...), nil
}

// Close releases the backends and flushes the logger.
func (a *app) Close() {
	if err := a.backends.Close(); err != nil {
		a.logger.Warn("Closing backends failed", zap.Error(err))
	}
	_ = a.logger.Sync()
}
