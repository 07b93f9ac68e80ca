package reconcile

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Kind names an entity kind that can be synchronized.
type Kind string

const (
	KindCourses    Kind = "courses"
	KindEnrolments Kind = "enrolments"
	KindUsers      Kind = "users"
)

// Kinds lists every kind in the order a full run processes them.
var Kinds = []Kind{KindUsers, KindCourses, KindEnrolments}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Actions recorded on failures.
const (
	ActionList     = "list"
	ActionLookup   = "lookup"
	ActionCategory = "category"
	ActionCreate   = "create"
	ActionUpdate   = "update"
	ActionValidate = "validate"
	ActionEnrol    = "enrol"
	ActionUnenrol  = "unenrol"
	ActionDelete   = "delete"
)

// Summary holds the counters of one run. Each engine uses the subset that applies to it.
type Summary struct {
	// Courses counts courses processed by an enrolment run.
	Courses int `json:"courses,omitempty"`
	// Created counts created courses, created users, or enrolments of users new to a course.
	Created int `json:"created"`
	// Updated counts updated courses, or roles added to users already in a course.
	Updated int `json:"updated"`
	// Existing counts users already present on the target.
	Existing int `json:"existing,omitempty"`
	// Skipped counts records left unchanged.
	Skipped int `json:"skipped"`
	// Unenrolled counts roles removed with the participation kept.
	Unenrolled int `json:"unenrolled,omitempty"`
	// Deleted counts participations removed.
	Deleted int `json:"deleted,omitempty"`
	// Errors counts record-level failures.
	Errors int `json:"errors"`
}

// Failure describes one record-level error.
type Failure struct {
	Key    string `json:"key"`
	Action string `json:"action"`
	Error  string `json:"error"`
}

// Report is the result of one engine run.
type Report struct {
	RunID      string    `json:"run_id"`
	Kind       Kind      `json:"kind"`
	DryRun     bool      `json:"dry_run"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Summary    Summary   `json:"summary"`
	Failures   []Failure `json:"failures"`
}

// NewReport starts a report for kind.
func NewReport(kind Kind, dryRun bool) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Kind:      kind,
		DryRun:    dryRun,
		StartedAt: time.Now(),
		Failures:  []Failure{},
	}
}

// Fail logs a record-level error, counts it and keeps it in the report.
func (r *Report) Fail(l *zap.Logger, key, action string, err error) {
	r.Summary.Errors++
	r.Failures = append(r.Failures, Failure{Key: key, Action: action, Error: err.Error()})
	l.Error("Record failed",
		zap.String("kind", string(r.Kind)),
		zap.String("key", key),
		zap.String("action", action),
		zap.Error(err),
	)
}

// Finish stamps the end time.
func (r *Report) Finish() *Report {
	r.FinishedAt = time.Now()
	return r
}

// HasErrors reports whether any record failed.
func (r *Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Duration returns the run time.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Counts returns the summary as outcome -> count, omitting counters that do not apply to the kind.
func (r *Report) Counts() map[string]int {
	s := r.Summary
	switch r.Kind {
	case KindUsers:
		return map[string]int{"created": s.Created, "existing": s.Existing, "errors": s.Errors}
	case KindEnrolments:
		return map[string]int{
			"courses": s.Courses, "added": s.Created, "updated": s.Updated,
			"unenrolled": s.Unenrolled, "deleted": s.Deleted, "skipped": s.Skipped, "errors": s.Errors,
		}
	default:
		return map[string]int{"created": s.Created, "updated": s.Updated, "skipped": s.Skipped, "errors": s.Errors}
	}
}

// Log writes the summary line.
func (r *Report) Log(l *zap.Logger) {
	fields := []zap.Field{
		zap.String("kind", string(r.Kind)),
		zap.String("run_id", r.RunID),
		zap.Bool("dry_run", r.DryRun),
		zap.Duration("duration", r.Duration()),
	}
	counts := r.Counts()
	for _, name := range []string{"courses", "created", "added", "updated", "existing", "skipped", "unenrolled", "deleted", "errors"} {
		if v, ok := counts[name]; ok {
			fields = append(fields, zap.Int(name, v))
		}
	}
	l.Info("Sync finished", fields...)
}
