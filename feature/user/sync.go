package user

import (
	"context"
	"fmt"

	"moodle-sync/core/provider"
	"moodle-sync/core/reconcile"
	"moodle-sync/core/records"

	"go.uber.org/zap"
)

// Options controls a user sync.
type Options struct {
	// DryRun labels the report. The target enforces dry-run itself.
	DryRun bool
}

// Engine creates source users missing on the target.
type Engine struct {
	source provider.UserSource
	target provider.UserTarget
	opts   Options
	logger *zap.Logger
}

// NewEngine creates a user sync engine.
func NewEngine(source provider.UserSource, target provider.UserTarget, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		source: source,
		target: target,
		opts:   opts,
		logger: logger.With(zap.String("kind", string(reconcile.KindUsers))),
	}
}

// Sync creates every source user whose username is unknown to the target.
// Existing accounts are never updated or deleted.
func (e *Engine) Sync(ctx context.Context) (*reconcile.Report, error) {
	report := reconcile.NewReport(reconcile.KindUsers, e.opts.DryRun)
	e.logger.Info("Starting user sync", zap.String("run_id", report.RunID))

	users, err := e.source.Users(ctx)
	if err != nil {
		return nil, fmt.Errorf("list source users: %w", err)
	}

	seen := make(map[string]struct{}, len(users))
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			report.Finish()
			return report, err
		}
		if err := records.Validate(u); err != nil {
			report.Fail(e.logger, u.Username, reconcile.ActionValidate, provider.Invalid(u.Username, err))
			continue
		}
		if _, dup := seen[u.Username]; dup {
			e.logger.Debug("Duplicate source user", zap.String("username", u.Username))
			continue
		}
		seen[u.Username] = struct{}{}

		_, err := e.target.UserID(ctx, u.Username)
		if err == nil {
			report.Summary.Existing++
			continue
		}
		if !provider.IsNotFound(err) {
			report.Fail(e.logger, u.Username, reconcile.ActionLookup, err)
			continue
		}

		id, err := e.target.CreateUser(ctx, u)
		if err != nil {
			report.Fail(e.logger, u.Username, reconcile.ActionCreate, err)
			continue
		}
		report.Summary.Created++
		e.logger.Info("Created user", zap.String("username", u.Username), zap.Int64("id", id))
	}

	report.Finish()
	report.Log(e.logger)
	return report, nil
}
