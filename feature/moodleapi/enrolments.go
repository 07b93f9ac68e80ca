package moodleapi

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"

	"go.uber.org/zap"
)

var _ provider.EnrolmentTarget = (*EnrolmentProvider)(nil)

// EnrolmentProvider is an enrolment target backed by the Moodle web service.
// Enrolments go through the manual enrolment plugin.
type EnrolmentProvider struct {
	client *Client
	roles  *records.RoleTable
	// rolesWebservice enables core_role_get_roles for roles missing from the table.
	rolesWebservice bool
	mu              sync.Mutex
	rolesLoaded     bool
	logger          *zap.Logger
}

// NewEnrolmentProvider creates an enrolment target. A nil role table uses the default roles.
func NewEnrolmentProvider(client *Client, cfg Config, roles *records.RoleTable, logger *zap.Logger) *EnrolmentProvider {
	if roles == nil {
		roles = records.NewRoleTable()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrolmentProvider{client: client, roles: roles, rolesWebservice: cfg.RolesWebservice, logger: logger}
}

// CourseID implements provider.EnrolmentTarget.
func (p *EnrolmentProvider) CourseID(ctx context.Context, shortname string) (int64, error) {
	return p.client.courseID(ctx, shortname)
}

type apiEnrolledUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Roles    []struct {
		RoleID    int64  `json:"roleid"`
		Shortname string `json:"shortname"`
	} `json:"roles"`
}

// Members implements provider.EnrolmentTarget.
func (p *EnrolmentProvider) Members(ctx context.Context, courseID int64) ([]records.Membership, error) {
	var users []apiEnrolledUser
	params := url.Values{"courseid": {strconv.FormatInt(courseID, 10)}}
	if err := p.client.Read(ctx, "core_enrol_get_enrolled_users", params, &users); err != nil {
		return nil, err
	}

	var out []records.Membership
	for _, u := range users {
		if len(u.Roles) == 0 {
			out = append(out, records.Membership{
				UserID: u.ID, CourseID: courseID, RoleID: records.NoRoleID,
				Username: u.Username, RoleName: records.RoleNone,
			})
			continue
		}
		for _, r := range u.Roles {
			out = append(out, records.Membership{
				UserID: u.ID, CourseID: courseID, RoleID: r.RoleID,
				Username: u.Username, RoleName: r.Shortname,
			})
		}
	}
	p.logger.Debug("Retrieved course members", zap.Int64("course_id", courseID), zap.Int("count", len(out)))
	return out, nil
}

// UserID implements provider.EnrolmentTarget.
func (p *EnrolmentProvider) UserID(ctx context.Context, usernameOrID string) (int64, error) {
	u, err := p.client.user(ctx, usernameOrID)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// Username implements provider.EnrolmentTarget.
func (p *EnrolmentProvider) Username(ctx context.Context, userID int64) (string, error) {
	u, err := p.client.user(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// RoleID implements provider.EnrolmentTarget.
func (p *EnrolmentProvider) RoleID(ctx context.Context, nameOrID string) (int64, error) {
	if r, ok := p.roles.Lookup(nameOrID); ok {
		return r.ID, nil
	}
	if err := p.loadRoles(ctx); err != nil {
		return 0, err
	}
	if r, ok := p.roles.Lookup(nameOrID); ok {
		return r.ID, nil
	}
	return 0, provider.NotFound("role", nameOrID)
}

// RoleName implements provider.EnrolmentTarget.
func (p *EnrolmentProvider) RoleName(ctx context.Context, roleID int64) (string, error) {
	if r, ok := p.roles.ByID(roleID); ok {
		return r.Shortname, nil
	}
	if err := p.loadRoles(ctx); err != nil {
		return "", err
	}
	if r, ok := p.roles.ByID(roleID); ok {
		return r.Shortname, nil
	}
	return "", provider.NotFound("role", strconv.FormatInt(roleID, 10))
}

// loadRoles extends the role table from core_role_get_roles once, when enabled.
func (p *EnrolmentProvider) loadRoles(ctx context.Context) error {
	if !p.rolesWebservice {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rolesLoaded {
		return nil
	}
	var roles []records.Role
	if err := p.client.Read(ctx, "core_role_get_roles", nil, &roles); err != nil {
		return err
	}
	p.roles.Define(roles...)
	p.rolesLoaded = true
	p.logger.Debug("Loaded roles from web service", zap.Int("count", len(roles)))
	return nil
}

// held returns the role ids the user holds in the course, and whether the user participates at all.
func (p *EnrolmentProvider) held(ctx context.Context, userID, courseID int64) (map[int64]struct{}, bool, error) {
	members, err := p.Members(ctx, courseID)
	if err != nil {
		return nil, false, err
	}
	roles := make(map[int64]struct{})
	found := false
	for _, m := range members {
		if m.UserID != userID {
			continue
		}
		found = true
		if m.RoleID != records.NoRoleID {
			roles[m.RoleID] = struct{}{}
		}
	}
	return roles, found, nil
}

func ids(userID, courseID int64) (string, string) {
	return strconv.FormatInt(userID, 10), strconv.FormatInt(courseID, 10)
}

// EnrolUser implements provider.EnrolmentTarget.
func (p *EnrolmentProvider) EnrolUser(ctx context.Context, userID, courseID, roleID int64) (*records.Outcome, error) {
	roles, enrolled, err := p.held(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if _, ok := roles[roleID]; ok {
		return nil, nil
	}

	user, course := ids(userID, courseID)
	params := url.Values{
		"enrolments[0][roleid]":   {strconv.FormatInt(roleID, 10)},
		"enrolments[0][userid]":   {user},
		"enrolments[0][courseid]": {course},
	}
	applied, err := p.client.Write(ctx, "enrol_manual_enrol_users", params, nil)
	if err != nil {
		return nil, err
	}
	out := &records.Outcome{UserID: userID, CourseID: courseID, RoleID: roleID, RolesAdded: 1, DryRun: !applied}
	if !enrolled {
		out.NewEnrols = 1
	}
	return out, nil
}

// UnenrolUser implements provider.EnrolmentTarget.
func (p *EnrolmentProvider) UnenrolUser(ctx context.Context, userID, courseID, roleID int64) (*records.Outcome, error) {
	roles, _, err := p.held(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if _, ok := roles[roleID]; !ok {
		return nil, nil
	}

	user, course := ids(userID, courseID)
	params := url.Values{
		"unassignments[0][roleid]":       {strconv.FormatInt(roleID, 10)},
		"unassignments[0][userid]":       {user},
		"unassignments[0][contextlevel]": {"course"},
		"unassignments[0][instanceid]":   {course},
	}
	applied, err := p.client.Write(ctx, "core_role_unassign_roles", params, nil)
	if err != nil {
		return nil, err
	}
	return &records.Outcome{UserID: userID, CourseID: courseID, RoleID: roleID, RolesDeleted: 1, DryRun: !applied}, nil
}

// DeleteUser implements provider.EnrolmentTarget.
func (p *EnrolmentProvider) DeleteUser(ctx context.Context, userID, courseID int64) (*records.Outcome, error) {
	roles, enrolled, err := p.held(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, nil
	}

	user, course := ids(userID, courseID)
	params := url.Values{
		"enrolments[0][userid]":   {user},
		"enrolments[0][courseid]": {course},
	}
	applied, err := p.client.Write(ctx, "enrol_manual_unenrol_users", params, nil)
	if err != nil {
		return nil, err
	}
	return &records.Outcome{
		UserID:                userID,
		CourseID:              courseID,
		RolesDeleted:          len(roles),
		ParticipationsDeleted: 1,
		DryRun:                !applied,
	}, nil
}
