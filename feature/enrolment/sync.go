package enrolment

import (
	"context"
	"fmt"
	"strings"

	"moodle-sync/core/provider"
	"moodle-sync/core/reconcile"
	"moodle-sync/core/records"

	"go.uber.org/zap"
)

// Options controls an enrolment sync.
type Options struct {
	// AddRoles are the roles the additive pass may grant. Defaults to student and editingteacher.
	AddRoles []string
	// RemoveRoles are the roles the subtractive pass may take away. Defaults to student.
	RemoveRoles []string
	// DeleteUnenroled removes the participation of every user missing from the source,
	// even in courses that have already started.
	DeleteUnenroled bool
	// DryRun labels the report. The target enforces dry-run itself.
	DryRun bool
}

// DefaultAddRoles are granted by the additive pass when Options.AddRoles is empty.
var DefaultAddRoles = []string{records.RoleStudent, records.RoleEditingTeacher}

// DefaultRemoveRoles are eligible for removal when Options.RemoveRoles is empty.
var DefaultRemoveRoles = []string{records.RoleStudent}

// Engine reconciles course rosters from a source into a target.
type Engine struct {
	source provider.EnrolmentSource
	target provider.EnrolmentTarget
	opts   Options
	add    map[string]struct{}
	remove map[string]struct{}
	logger *zap.Logger
}

// NewEngine creates an enrolment sync engine.
func NewEngine(source provider.EnrolmentSource, target provider.EnrolmentTarget, opts Options, logger *zap.Logger) *Engine {
	if len(opts.AddRoles) == 0 {
		opts.AddRoles = DefaultAddRoles
	}
	if len(opts.RemoveRoles) == 0 {
		opts.RemoveRoles = DefaultRemoveRoles
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		source: source,
		target: target,
		opts:   opts,
		add:    roleSet(opts.AddRoles),
		remove: roleSet(opts.RemoveRoles),
		logger: logger.With(zap.String("kind", string(reconcile.KindEnrolments))),
	}
}

func roleSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = struct{}{}
	}
	return set
}

func (e *Engine) addable(role string) bool {
	_, ok := e.add[strings.ToLower(role)]
	return ok
}

func (e *Engine) removable(role string) bool {
	_, ok := e.remove[strings.ToLower(role)]
	return ok
}

// Sync reconciles every course the source marks for enrolment sync.
// A course that fails is recorded in the report and the run moves on to the next one.
func (e *Engine) Sync(ctx context.Context) (*reconcile.Report, error) {
	report := reconcile.NewReport(reconcile.KindEnrolments, e.opts.DryRun)
	e.logger.Info("Starting enrolment sync",
		zap.String("run_id", report.RunID),
		zap.Strings("add_roles", e.opts.AddRoles),
		zap.Strings("remove_roles", e.opts.RemoveRoles),
		zap.Bool("delete_unenroled", e.opts.DeleteUnenroled),
	)

	shortnames, err := e.source.CourseShortnamesForSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses for enrolment sync: %w", err)
	}

	resolver := reconcile.NewResolver(reconcile.NewCache(), e.logger)
	for _, shortname := range shortnames {
		if err := ctx.Err(); err != nil {
			report.Finish()
			return report, err
		}
		report.Summary.Courses++
		e.syncCourse(ctx, resolver, report, shortname)
	}

	resolver.LogStats()
	report.Finish()
	report.Log(e.logger)
	return report, nil
}

// member is the target state of one user in one course.
type member struct {
	userID   int64
	username string
	roles    map[int64]string
	// bare is set when the user participates without any role.
	bare bool
}

func (e *Engine) syncCourse(ctx context.Context, r *reconcile.Resolver, report *reconcile.Report, shortname string) {
	log := e.logger.With(zap.String("course", shortname))

	courseID, err := r.CourseID(ctx, e.target, shortname)
	if err != nil {
		report.Fail(log, shortname, reconcile.ActionLookup, fmt.Errorf("resolve course: %w", err))
		return
	}

	cancelled, err := e.source.Cancelled(ctx, shortname)
	if err != nil {
		report.Fail(log, shortname, reconcile.ActionList, fmt.Errorf("read course status: %w", err))
		return
	}

	members, order, err := e.members(ctx, courseID)
	if err != nil {
		report.Fail(log, shortname, reconcile.ActionList, err)
		return
	}

	if cancelled {
		log.Info("Course cancelled, removing every participant", zap.Int("participants", len(order)))
		for _, userID := range order {
			e.delete(ctx, log, report, shortname, members[userID], courseID)
		}
		return
	}

	roster, err := e.source.Roster(ctx, shortname)
	if err != nil {
		report.Fail(log, shortname, reconcile.ActionList, fmt.Errorf("read source roster: %w", err))
		return
	}

	// A listed user is kept even when their row is invalid.
	started := false
	inSource := make(map[string]struct{}, len(roster))
	valid := make([]records.Enrolment, 0, len(roster))
	for _, entry := range roster {
		if entry.Username != "" {
			inSource[entry.Username] = struct{}{}
			if entry.Started {
				started = true
			}
		}
		if err := records.Validate(entry); err != nil {
			report.Fail(log, shortname, reconcile.ActionValidate, provider.Invalid(entry.Username, err))
			continue
		}
		valid = append(valid, entry)
	}

	e.addPass(ctx, r, log, report, shortname, courseID, valid, members)
	e.removePass(ctx, log, report, shortname, courseID, order, members, inSource, started)
}

// members indexes the target roster by user, keeping first-seen order.
func (e *Engine) members(ctx context.Context, courseID int64) (map[int64]*member, []int64, error) {
	list, err := e.target.Members(ctx, courseID)
	if err != nil {
		return nil, nil, fmt.Errorf("read target roster: %w", err)
	}
	index := make(map[int64]*member)
	var order []int64
	for _, m := range list {
		cur, ok := index[m.UserID]
		if !ok {
			cur = &member{userID: m.UserID, username: m.Username, roles: make(map[int64]string)}
			index[m.UserID] = cur
			order = append(order, m.UserID)
		}
		if cur.username == "" {
			if cur.username, err = e.target.Username(ctx, m.UserID); err != nil && !provider.IsNotFound(err) {
				return nil, nil, fmt.Errorf("resolve username of user %d: %w", m.UserID, err)
			}
		}
		if m.RoleID == records.NoRoleID {
			cur.bare = true
			continue
		}
		name := m.RoleName
		if name == "" {
			if name, err = e.target.RoleName(ctx, m.RoleID); err != nil && !provider.IsNotFound(err) {
				return nil, nil, fmt.Errorf("resolve role %d: %w", m.RoleID, err)
			}
		}
		cur.roles[m.RoleID] = name
	}
	return index, order, nil
}

func (e *Engine) addPass(
	ctx context.Context,
	r *reconcile.Resolver,
	log *zap.Logger,
	report *reconcile.Report,
	shortname string,
	courseID int64,
	roster []records.Enrolment,
	members map[int64]*member,
) {
	for _, entry := range roster {
		if entry.Username == "" || entry.Role == "" {
			continue
		}
		key := shortname + "/" + entry.Username
		if !e.addable(entry.Role) {
			log.Debug("Role not synchronized", zap.String("user", entry.Username), zap.String("role", entry.Role))
			continue
		}

		userID, err := r.UserID(ctx, e.target, entry.Username)
		if err != nil {
			e.unresolved(log, report, key, "user", err)
			continue
		}
		roleID, err := r.RoleID(ctx, e.target, entry.Role)
		if err != nil {
			e.unresolved(log, report, key, "role", err)
			continue
		}

		cur := members[userID]
		if cur != nil {
			if _, held := cur.roles[roleID]; held {
				report.Summary.Skipped++
				continue
			}
		}

		outcome, err := e.target.EnrolUser(ctx, userID, courseID, roleID)
		if err != nil {
			report.Fail(log, key, reconcile.ActionEnrol, err)
			continue
		}

		firstRole := cur == nil || len(cur.roles) == 0
		switch {
		case outcome == nil:
			report.Summary.Skipped++
		case firstRole:
			report.Summary.Created++
		default:
			report.Summary.Updated++
		}
		if outcome != nil {
			log.Info("Enrolled user",
				zap.String("user", entry.Username),
				zap.String("role", entry.Role),
				zap.Bool("first_role", firstRole),
			)
		} else {
			log.Debug("Role already held on target", zap.String("user", entry.Username), zap.String("role", entry.Role))
		}

		if cur == nil {
			cur = &member{userID: userID, username: entry.Username, roles: make(map[int64]string)}
			members[userID] = cur
		}
		cur.roles[roleID] = entry.Role
	}
}

// unresolved skips a roster entry whose user or role the target does not know.
// Lookup failures other than NotFound are record errors.
func (e *Engine) unresolved(log *zap.Logger, report *reconcile.Report, key, what string, err error) {
	if provider.IsNotFound(err) {
		report.Summary.Skipped++
		log.Warn("Skipping roster entry, "+what+" not found on target", zap.String("key", key), zap.Error(err))
		return
	}
	report.Fail(log, key, reconcile.ActionLookup, fmt.Errorf("resolve %s: %w", what, err))
}

func (e *Engine) removePass(
	ctx context.Context,
	log *zap.Logger,
	report *reconcile.Report,
	shortname string,
	courseID int64,
	order []int64,
	members map[int64]*member,
	inSource map[string]struct{},
	started bool,
) {
	for _, userID := range order {
		m := members[userID]
		if _, ok := inSource[m.username]; ok {
			continue
		}

		var eligible []int64
		protected := false
		for roleID, name := range m.roles {
			if e.removable(name) {
				eligible = append(eligible, roleID)
			} else {
				protected = true
			}
		}
		if len(eligible) == 0 && !m.bare {
			continue
		}

		if (e.opts.DeleteUnenroled || !started) && !protected {
			e.delete(ctx, log, report, shortname, m, courseID)
			continue
		}

		for _, roleID := range eligible {
			key := shortname + "/" + m.username
			outcome, err := e.target.UnenrolUser(ctx, userID, courseID, roleID)
			if err != nil {
				report.Fail(log, key, reconcile.ActionUnenrol, err)
				continue
			}
			if outcome != nil {
				report.Summary.Unenrolled++
			}
			log.Info("Unenrolled user",
				zap.String("user", m.username),
				zap.String("role", m.roles[roleID]),
				zap.Bool("started", started),
			)
		}
	}
}

func (e *Engine) delete(ctx context.Context, log *zap.Logger, report *reconcile.Report, shortname string, m *member, courseID int64) {
	key := shortname + "/" + m.username
	outcome, err := e.target.DeleteUser(ctx, m.userID, courseID)
	if err != nil {
		report.Fail(log, key, reconcile.ActionDelete, err)
		return
	}
	if outcome != nil {
		report.Summary.Deleted++
	}
	log.Info("Removed user from course", zap.String("user", m.username), zap.Int64("user_id", m.userID))
}
