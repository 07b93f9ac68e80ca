package moodledb

import (
	"context"
	"fmt"
	"strings"

	"moodle-sync/core/provider"
	"moodle-sync/core/records"
	"moodle-sync/core/utils"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Users implements provider.UserSource. Deleted accounts are skipped.
func (s *Store) Users(ctx context.Context) ([]records.User, error) {
	var rows []userRow
	if err := s.conn(ctx).Table(s.table("user")).Where("deleted = 0").Order("id").Find(&rows).Error; err != nil {
		return nil, provider.Transport("select user", err)
	}
	out := make([]records.User, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// User implements provider.UserTarget.
func (s *Store) User(ctx context.Context, key string) (records.User, error) {
	column := "username"
	switch {
	case isNumeric(key):
		column = "id"
	case strings.Contains(key, "@"):
		column = "email"
	}
	var row userRow
	if err := s.take(s.conn(ctx), "user", &row, "user", key, column+" = ? AND deleted = 0", key); err != nil {
		return records.User{}, err
	}
	return row.record(), nil
}

// CreateUser implements provider.UserTarget.
// The password is stored as a bcrypt hash; a random one is generated when missing.
func (s *Store) CreateUser(ctx context.Context, u records.User) (int64, error) {
	if _, err := s.User(ctx, u.Username); err == nil {
		return 0, provider.AlreadyExists("user", u.Username)
	} else if !provider.IsNotFound(err) {
		return 0, err
	}
	if u.Auth == "" {
		u.Auth = s.defaultAuth
	}
	if s.dryRun {
		s.logger.Info("Dry run, user not created", zap.String("username", u.Username), zap.String("auth", u.Auth))
		return provider.DryRunUserID, nil
	}

	password := u.Password
	if password == "" {
		pw, err := utils.RandomPassword()
		if err != nil {
			return 0, err
		}
		password = pw
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	now := s.timestamp()
	row := userRow{
		Auth:         u.Auth,
		Confirmed:    1,
		MnetHostID:   1,
		Username:     u.Username,
		Password:     string(hash),
		Email:        u.Email,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		TimeCreated:  now,
		TimeModified: now,
	}
	if err := s.conn(ctx).Table(s.table("user")).Create(&row).Error; err != nil {
		return 0, provider.Transport("insert user", err)
	}
	s.logger.Debug("User created", zap.String("username", u.Username), zap.Int64("id", row.ID))
	return row.ID, nil
}
