package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"moodle-sync/core/provider"
	"moodle-sync/core/reconcile"
	"moodle-sync/feature/course"
	"moodle-sync/feature/enrolment"
	"moodle-sync/feature/user"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrRecordFailures marks a run that completed with record-level errors.
var ErrRecordFailures = errors.New("sync finished with record errors")

// Providers builds the source and target of each kind.
// Targets honour dryRun themselves.
type Providers interface {
	Courses(ctx context.Context, dryRun bool) (provider.CourseSource, provider.CourseTarget, error)
	Enrolments(ctx context.Context, dryRun bool) (provider.EnrolmentSource, provider.EnrolmentTarget, error)
	Users(ctx context.Context, dryRun bool) (provider.UserSource, provider.UserTarget, error)
}

// Publisher receives every finished report.
type Publisher interface {
	Publish(ctx context.Context, report *reconcile.Report) error
}

// FailureRecorder is notified of runs that aborted without a report.
type FailureRecorder interface {
	Failed(kind reconcile.Kind) error
}

// Request describes one run.
type Request struct {
	Kind   reconcile.Kind
	DryRun bool
	// Fetch overrides the configured course fetch mode.
	Fetch string
}

func (r Request) key() string {
	return fmt.Sprintf("%s/%t/%s", r.Kind, r.DryRun, r.Fetch)
}

// Runner executes sync runs one at a time.
// Identical requests arriving while a run is in flight share its result.
type Runner struct {
	cfg        Config
	providers  Providers
	publishers []Publisher
	logger     *zap.Logger

	mu    sync.Mutex
	group singleflight.Group
}

// New creates a runner. Publishers are called in order after every run.
func New(cfg Config, providers Providers, logger *zap.Logger, publishers ...Publisher) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		providers:  providers,
		publishers: publishers,
		logger:     logger,
	}
}

// Request returns a request for kind with the configured defaults.
func (r *Runner) Request(kind reconcile.Kind) Request {
	return Request{Kind: kind, DryRun: r.cfg.DryRun, Fetch: r.cfg.Fetch}
}

// Run executes one kind and returns its report.
// The error is ErrRecordFailures when the run completed with record errors.
func (r *Runner) Run(ctx context.Context, req Request) (*reconcile.Report, error) {
	if _, ok := reconcile.ParseKind(string(req.Kind)); !ok {
		return nil, fmt.Errorf("unknown sync kind %q", req.Kind)
	}
	if req.Fetch == "" {
		req.Fetch = r.cfg.Fetch
	}

	v, err, shared := r.group.Do(req.key(), func() (any, error) {
		return r.run(ctx, req)
	})
	if shared {
		r.logger.Info("Joined running sync", zap.String("kind", string(req.Kind)))
	}
	report, _ := v.(*reconcile.Report)
	return report, err
}

// RunAll executes users, courses and enrolments in that order.
// A kind that aborts does not stop the following kinds.
func (r *Runner) RunAll(ctx context.Context, req Request) ([]*reconcile.Report, error) {
	var reports []*reconcile.Report
	var aborted []error
	failures := false
	for _, kind := range reconcile.Kinds {
		req.Kind = kind
		report, err := r.Run(ctx, req)
		if report != nil {
			reports = append(reports, report)
		}
		switch {
		case errors.Is(err, ErrRecordFailures):
			failures = true
		case err != nil:
			aborted = append(aborted, fmt.Errorf("%s: %w", kind, err))
		}
	}
	if len(aborted) > 0 {
		return reports, errors.Join(aborted...)
	}
	if failures {
		return reports, ErrRecordFailures
	}
	return reports, nil
}

func (r *Runner) run(ctx context.Context, req Request) (*reconcile.Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.TimeoutMinutes > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(r.cfg.TimeoutMinutes)*time.Minute)
		defer cancel()
	}

	log := r.logger.With(zap.String("kind", string(req.Kind)), zap.Bool("dry_run", req.DryRun))
	log.Info("Sync starting")

	report, err := r.execute(ctx, req)
	if report == nil {
		if err == nil {
			err = errors.New("sync produced no report")
		}
		log.Error("Sync aborted", zap.Error(err))
		for _, p := range r.publishers {
			if f, ok := p.(FailureRecorder); ok {
				if ferr := f.Failed(req.Kind); ferr != nil {
					log.Warn("Failure not recorded", zap.Error(ferr))
				}
			}
		}
		return nil, err
	}

	// Interrupted runs still publish what they did.
	publishCtx := context.WithoutCancel(ctx)
	for _, p := range r.publishers {
		if perr := p.Publish(publishCtx, report); perr != nil {
			log.Warn("Report not published", zap.String("publisher", fmt.Sprintf("%T", p)), zap.Error(perr))
		}
	}
	if err != nil {
		log.Error("Sync interrupted", zap.Error(err))
		return report, err
	}
	if report.HasErrors() {
		return report, ErrRecordFailures
	}
	return report, nil
}

func (r *Runner) execute(ctx context.Context, req Request) (*reconcile.Report, error) {
	switch req.Kind {
	case reconcile.KindCourses:
		mode, err := course.ParseFetchMode(req.Fetch)
		if err != nil {
			return nil, err
		}
		src, dst, err := r.providers.Courses(ctx, req.DryRun)
		if err != nil {
			return nil, fmt.Errorf("course providers: %w", err)
		}
		engine := course.NewEngine(src, dst, course.Options{Key: r.cfg.CourseKey, DryRun: req.DryRun}, r.logger)
		return engine.Sync(ctx, mode)
	case reconcile.KindEnrolments:
		src, dst, err := r.providers.Enrolments(ctx, req.DryRun)
		if err != nil {
			return nil, fmt.Errorf("enrolment providers: %w", err)
		}
		engine := enrolment.NewEngine(src, dst, enrolment.Options{
			AddRoles:        r.cfg.AddRoles,
			RemoveRoles:     r.cfg.RemoveRoles,
			DeleteUnenroled: r.cfg.DeleteUnenroled,
			DryRun:          req.DryRun,
		}, r.logger)
		return engine.Sync(ctx)
	case reconcile.KindUsers:
		src, dst, err := r.providers.Users(ctx, req.DryRun)
		if err != nil {
			return nil, fmt.Errorf("user providers: %w", err)
		}
		engine := user.NewEngine(src, dst, user.Options{DryRun: req.DryRun}, r.logger)
		return engine.Sync(ctx)
	default:
		return nil, fmt.Errorf("unknown sync kind %q", req.Kind)
	}
}
