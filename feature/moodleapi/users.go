package moodleapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"
	"moodle-sync/core/utils"

	"go.uber.org/zap"
)

var _ provider.UserTarget = (*UserProvider)(nil)

// UserProvider is a user target backed by the Moodle web service.
type UserProvider struct {
	client      *Client
	defaultAuth string
	logger      *zap.Logger
}

// NewUserProvider creates a user target.
func NewUserProvider(client *Client, cfg Config, logger *zap.Logger) *UserProvider {
	auth := cfg.DefaultAuth
	if auth == "" {
		auth = "manual"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserProvider{client: client, defaultAuth: auth, logger: logger}
}

// Users implements provider.UserSource. Every account with an email address is listed.
func (p *UserProvider) Users(ctx context.Context) ([]records.User, error) {
	params := url.Values{
		"criteria[0][key]":   {"email"},
		"criteria[0][value]": {"%"},
	}
	var resp struct {
		Users []apiUser `json:"users"`
	}
	if err := p.client.Read(ctx, "core_user_get_users", params, &resp); err != nil {
		return nil, err
	}
	out := make([]records.User, 0, len(resp.Users))
	for _, u := range resp.Users {
		out = append(out, u.record())
	}
	return out, nil
}

// User implements provider.UserTarget.
func (p *UserProvider) User(ctx context.Context, key string) (records.User, error) {
	return p.client.user(ctx, key)
}

// UserID implements provider.UserTarget.
func (p *UserProvider) UserID(ctx context.Context, usernameOrID string) (int64, error) {
	u, err := p.client.user(ctx, usernameOrID)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// Username implements provider.UserTarget.
func (p *UserProvider) Username(ctx context.Context, userID int64) (string, error) {
	u, err := p.client.user(ctx, strconv.FormatInt(userID, 10))
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// CreateUser implements provider.UserTarget.
// Missing auth methods default to the configured one and missing passwords are generated.
func (p *UserProvider) CreateUser(ctx context.Context, u records.User) (int64, error) {
	if u.Auth == "" {
		u.Auth = p.defaultAuth
	}
	if u.Password == "" {
		pw, err := utils.RandomPassword()
		if err != nil {
			return 0, err
		}
		u.Password = pw
	}

	params := url.Values{
		"users[0][username]":  {u.Username},
		"users[0][auth]":      {u.Auth},
		"users[0][email]":     {u.Email},
		"users[0][firstname]": {u.FirstName},
		"users[0][lastname]":  {u.LastName},
		"users[0][password]":  {u.Password},
	}
	var created []struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	applied, err := p.client.Write(ctx, "core_user_create_users", params, &created)
	if err != nil {
		return 0, err
	}
	if !applied {
		return provider.DryRunUserID, nil
	}
	if len(created) == 0 {
		return 0, provider.Transport("core_user_create_users", fmt.Errorf("no id returned for %s", u.Username))
	}
	return created[0].ID, nil
}
