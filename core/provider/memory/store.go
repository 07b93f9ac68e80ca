package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"
)

// Call records one mutation issued against a Store.
type Call struct {
	Op     string
	Key    string
	DryRun bool
}

// Mutation op names recorded in Store.Calls.
const (
	OpCreateCourse   = "create_course"
	OpUpdateCourse   = "update_course"
	OpCreateCategory = "create_category"
	OpCreateUser     = "create_user"
	OpEnrol          = "enrol"
	OpUnenrol        = "unenrol"
	OpDelete         = "delete"
)

var (
	_ provider.CourseTarget    = (*Store)(nil)
	_ provider.EnrolmentTarget = (*Store)(nil)
	_ provider.UserTarget      = (*Store)(nil)
)

// Store is an in-memory target for courses, enrolments and users.
// It records every mutation and can be told to fail specific operations.
type Store struct {
	mu sync.Mutex

	dryRun     bool
	fields     records.FieldSet
	roles      *records.RoleTable
	nextID     int64
	courses    map[int64]records.Course
	categories map[int64]records.Category
	users      map[int64]records.User
	// roster maps course id -> user id -> held role ids.
	roster   map[int64]map[int64]map[int64]struct{}
	failures map[string]error
	calls    []Call
}

// Option configures a Store.
type Option func(*Store)

// WithDryRun makes every mutation a no-op that returns sentinel results.
func WithDryRun(dryRun bool) Option {
	return func(s *Store) { s.dryRun = dryRun }
}

// WithFieldSet overrides the declared course fields.
func WithFieldSet(fs records.FieldSet) Option {
	return func(s *Store) { s.fields = fs }
}

// WithRoles overrides the role table.
func WithRoles(t *records.RoleTable) Option {
	return func(s *Store) { s.roles = t }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		fields:     records.DefaultFieldSet(),
		roles:      records.NewRoleTable(),
		nextID:     100,
		courses:    make(map[int64]records.Course),
		categories: make(map[int64]records.Category),
		users:      make(map[int64]records.User),
		roster:     make(map[int64]map[int64]map[int64]struct{}),
		failures:   make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailOn makes op fail with err whenever it is called for key.
func (s *Store) FailOn(op, key string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op+"|"+key] = err
}

// Calls returns a copy of the recorded mutations.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsFor returns the recorded mutations with the given op.
func (s *Store) CallsFor(op string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded mutations.
func (s *Store) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) record(op, key string) error {
	if err, ok := s.failures[op+"|"+key]; ok {
		return err
	}
	s.calls = append(s.calls, Call{Op: op, Key: key, DryRun: s.dryRun})
	return nil
}

// AddCategory seeds a category and returns its id.
func (s *Store) AddCategory(name string, parent int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id()
	parentName := ""
	if p, ok := s.categories[parent]; ok {
		parentName = p.Name
	}
	s.categories[id] = records.Category{ID: id, Name: name, Parent: parentName}
	return id
}

// AddCourse seeds a course and returns its id.
func (s *Store) AddCourse(c records.Course) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = s.id()
	s.courses[c.ID] = c
	return c.ID
}

// AddUser seeds a user and returns its id.
func (s *Store) AddUser(u records.User) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.ID = s.id()
	s.users[u.ID] = u
	return u.ID
}

// AddMember seeds a membership. roleID NoRoleID adds a bare participation.
func (s *Store) AddMember(userID, courseID, roleID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.participation(courseID, userID, true)
	if roleID != records.NoRoleID {
		held[roleID] = struct{}{}
	}
}

// HasRole reports whether the user holds the role in the course.
func (s *Store) HasRole(userID, courseID, roleID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.participation(courseID, userID, false)
	if held == nil {
		return false
	}
	_, ok := held[roleID]
	return ok
}

// IsParticipant reports whether the user is enrolled in the course at all.
func (s *Store) IsParticipant(userID, courseID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.participation(courseID, userID, false) != nil
}

func (s *Store) participation(courseID, userID int64, create bool) map[int64]struct{} {
	users, ok := s.roster[courseID]
	if !ok {
		if !create {
			return nil
		}
		users = make(map[int64]map[int64]struct{})
		s.roster[courseID] = users
	}
	held, ok := users[userID]
	if !ok && create {
		held = make(map[int64]struct{})
		users[userID] = held
	}
	return held
}

// FieldSet implements provider.CourseTarget.
func (s *Store) FieldSet() records.FieldSet { return s.fields }

// Courses implements provider.CourseSource.
func (s *Store) Courses(_ context.Context, filter provider.CourseFilter) ([]records.Course, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]records.Course, 0, len(s.courses))
	for _, c := range s.courses {
		if filter.Field != "" && !matchCourse(c, filter.Field, filter.Value) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func matchCourse(c records.Course, field, value string) bool {
	switch field {
	case records.FieldID:
		return strconv.FormatInt(c.ID, 10) == value
	case "category", records.FieldCategoryID:
		return strconv.FormatInt(c.CategoryID, 10) == value
	default:
		v, ok := c.Value(field)
		return ok && records.Normalize(v) == value
	}
}

// Course implements provider.CourseTarget.
func (s *Store) Course(ctx context.Context, field, value string) (records.Course, error) {
	found, err := s.Courses(ctx, provider.CourseFilter{Field: field, Value: value})
	if err != nil {
		return records.Course{}, err
	}
	if len(found) == 0 {
		return records.Course{}, provider.NotFound("course", value)
	}
	return found[0], nil
}

// CreateCourse implements provider.CourseTarget.
func (s *Store) CreateCourse(_ context.Context, c records.Course) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.courses {
		if existing.Shortname == c.Shortname {
			return 0, provider.AlreadyExists("course", c.Shortname)
		}
	}
	if err := s.record(OpCreateCourse, c.Shortname); err != nil {
		return 0, err
	}
	if s.dryRun {
		return provider.DryRunCourseID, nil
	}
	c.ID = s.id()
	s.courses[c.ID] = c
	return c.ID, nil
}

// UpdateCourse implements provider.CourseTarget. Only update fields are copied.
func (s *Store) UpdateCourse(_ context.Context, c records.Course) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.courses[c.ID]
	if !ok {
		return provider.NotFound("course", strconv.FormatInt(c.ID, 10))
	}
	if err := s.record(OpUpdateCourse, c.Shortname); err != nil {
		return err
	}
	if s.dryRun {
		return nil
	}
	for _, f := range s.fields.Update {
		applyField(&existing, c, f)
	}
	s.courses[c.ID] = existing
	return nil
}

func applyField(dst *records.Course, src records.Course, field string) {
	switch field {
	case records.FieldFullname:
		dst.Fullname = src.Fullname
	case records.FieldIDNumber:
		dst.IDNumber = src.IDNumber
	case records.FieldCategoryID:
		dst.CategoryID = src.CategoryID
	case records.FieldSummary:
		dst.Summary = src.Summary
	case records.FieldFormat:
		dst.Format = src.Format
	case records.FieldShowGrades:
		dst.ShowGrades = src.ShowGrades
	case records.FieldNewsItems:
		dst.NewsItems = src.NewsItems
	case records.FieldNumSections:
		dst.NumSections = src.NumSections
	case records.FieldStartDate:
		dst.StartDate = src.StartDate
	case records.FieldEndDate:
		dst.EndDate = src.EndDate
	case records.FieldVisible:
		dst.Visible = src.Visible
	default:
		if v, ok := src.Option(field); ok {
			dst.SetOption(field, v)
		}
	}
}

// Category implements provider.CourseTarget.
func (s *Store) Category(_ context.Context, nameOrID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, err := strconv.ParseInt(nameOrID, 10, 64); err == nil {
		if _, ok := s.categories[id]; ok {
			return id, nil
		}
		return 0, provider.NotFound("category", nameOrID)
	}
	ids := make([]int64, 0, len(s.categories))
	for id := range s.categories {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if s.categories[id].Name == nameOrID {
			return id, nil
		}
	}
	return 0, provider.NotFound("category", nameOrID)
}

// CreateCategory implements provider.CourseTarget.
func (s *Store) CreateCategory(ctx context.Context, name, parent string) (int64, error) {
	if parent != "" {
		if _, err := s.Category(ctx, parent); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record(OpCreateCategory, name); err != nil {
		return 0, err
	}
	if s.dryRun {
		return provider.DryRunCategoryID, nil
	}
	id := s.id()
	s.categories[id] = records.Category{ID: id, Name: name, Parent: parent}
	return id, nil
}

// CourseID implements provider.EnrolmentTarget.
func (s *Store) CourseID(ctx context.Context, shortname string) (int64, error) {
	c, err := s.Course(ctx, records.FieldShortname, shortname)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

// Members implements provider.EnrolmentTarget.
func (s *Store) Members(_ context.Context, courseID int64) ([]records.Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []records.Membership
	for userID, held := range s.roster[courseID] {
		username := s.users[userID].Username
		if len(held) == 0 {
			out = append(out, records.Membership{UserID: userID, CourseID: courseID, RoleID: records.NoRoleID, Username: username, RoleName: records.RoleNone})
			continue
		}
		for roleID := range held {
			m := records.Membership{UserID: userID, CourseID: courseID, RoleID: roleID, Username: username}
			if r, ok := s.roles.ByID(roleID); ok {
				m.RoleName = r.Shortname
			}
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID == out[j].UserID {
			return out[i].RoleID < out[j].RoleID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// UserID implements provider.EnrolmentTarget and provider.UserTarget.
func (s *Store) UserID(ctx context.Context, usernameOrID string) (int64, error) {
	u, err := s.User(ctx, usernameOrID)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// Username implements provider.EnrolmentTarget and provider.UserTarget.
func (s *Store) Username(_ context.Context, userID int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return "", provider.NotFound("user", strconv.FormatInt(userID, 10))
	}
	return u.Username, nil
}

// RoleID implements provider.EnrolmentTarget.
func (s *Store) RoleID(_ context.Context, nameOrID string) (int64, error) {
	r, ok := s.roles.Lookup(nameOrID)
	if !ok {
		return 0, provider.NotFound("role", nameOrID)
	}
	return r.ID, nil
}

// RoleName implements provider.EnrolmentTarget.
func (s *Store) RoleName(_ context.Context, roleID int64) (string, error) {
	r, ok := s.roles.ByID(roleID)
	if !ok {
		return "", provider.NotFound("role", strconv.FormatInt(roleID, 10))
	}
	return r.Shortname, nil
}

func (s *Store) memberKey(userID int64) string {
	if u, ok := s.users[userID]; ok {
		return u.Username
	}
	return strconv.FormatInt(userID, 10)
}

// EnrolUser implements provider.EnrolmentTarget.
func (s *Store) EnrolUser(_ context.Context, userID, courseID, roleID int64) (*records.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.participation(courseID, userID, false)
	if held != nil {
		if _, ok := held[roleID]; ok {
			return nil, nil
		}
	}
	if err := s.record(OpEnrol, s.memberKey(userID)); err != nil {
		return nil, err
	}
	out := &records.Outcome{UserID: userID, CourseID: courseID, RoleID: roleID, RolesAdded: 1, DryRun: s.dryRun}
	if held == nil {
		out.NewEnrols = 1
	}
	if s.dryRun {
		return out, nil
	}
	s.participation(courseID, userID, true)[roleID] = struct{}{}
	return out, nil
}

// UnenrolUser implements provider.EnrolmentTarget.
func (s *Store) UnenrolUser(_ context.Context, userID, courseID, roleID int64) (*records.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.participation(courseID, userID, false)
	if held == nil {
		return nil, nil
	}
	if _, ok := held[roleID]; !ok {
		return nil, nil
	}
	if err := s.record(OpUnenrol, s.memberKey(userID)); err != nil {
		return nil, err
	}
	out := &records.Outcome{UserID: userID, CourseID: courseID, RoleID: roleID, RolesDeleted: 1, DryRun: s.dryRun}
	if !s.dryRun {
		delete(held, roleID)
	}
	return out, nil
}

// DeleteUser implements provider.EnrolmentTarget.
func (s *Store) DeleteUser(_ context.Context, userID, courseID int64) (*records.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.participation(courseID, userID, false)
	if held == nil {
		return nil, nil
	}
	if err := s.record(OpDelete, s.memberKey(userID)); err != nil {
		return nil, err
	}
	out := &records.Outcome{UserID: userID, CourseID: courseID, RolesDeleted: len(held), ParticipationsDeleted: 1, DryRun: s.dryRun}
	if !s.dryRun {
		delete(s.roster[courseID], userID)
	}
	return out, nil
}

// Users implements provider.UserSource.
func (s *Store) Users(_ context.Context) ([]records.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]records.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// User implements provider.UserTarget.
func (s *Store) User(_ context.Context, key string) (records.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, err := strconv.ParseInt(key, 10, 64); err == nil {
		if u, ok := s.users[id]; ok {
			return u, nil
		}
		return records.User{}, provider.NotFound("user", key)
	}
	byEmail := strings.Contains(key, "@")
	for _, u := range s.users {
		if (byEmail && strings.EqualFold(u.Email, key)) || (!byEmail && u.Username == key) {
			return u, nil
		}
	}
	return records.User{}, provider.NotFound("user", key)
}

// CreateUser implements provider.UserTarget.
func (s *Store) CreateUser(_ context.Context, u records.User) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return 0, provider.AlreadyExists("user", u.Username)
		}
	}
	if err := s.record(OpCreateUser, u.Username); err != nil {
		return 0, err
	}
	if s.dryRun {
		return provider.DryRunUserID, nil
	}
	if u.Auth == "" {
		u.Auth = "manual"
	}
	u.ID = s.id()
	s.users[u.ID] = u
	return u.ID, nil
}

// String summarises the store contents for test failure messages.
func (s *Store) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("memory.Store{courses:%d categories:%d users:%d calls:%d}",
		len(s.courses), len(s.categories), len(s.users), len(s.calls))
}
