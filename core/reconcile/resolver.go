package reconcile

import (
	"context"
	"errors"
	"fmt"

	"moodle-sync/core/provider"

	"go.uber.org/zap"
)

// CategoryStore is the part of a course target needed to resolve categories.
type CategoryStore interface {
	Category(ctx context.Context, nameOrID string) (int64, error)
	CreateCategory(ctx context.Context, name, parent string) (int64, error)
}

// IDStore is the part of an enrolment target needed to resolve courses, users and roles.
type IDStore interface {
	CourseID(ctx context.Context, shortname string) (int64, error)
	UserID(ctx context.Context, usernameOrID string) (int64, error)
	RoleID(ctx context.Context, nameOrID string) (int64, error)
}

// Resolver turns names into target ids through a per-run Cache.
type Resolver struct {
	cache  *Cache
	logger *zap.Logger
}

// NewResolver creates a resolver backed by cache.
func NewResolver(cache *Cache, logger *zap.Logger) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cache: cache, logger: logger}
}

// LogStats writes the cache counters at debug level.
func (r *Resolver) LogStats() {
	hits, misses := r.cache.Stats()
	r.logger.Debug("Reference cache", zap.Int("hits", hits), zap.Int("misses", misses))
}

// Category returns the id of the named category, creating it when absent.
// A non-empty parent is resolved first and created at the root level when absent.
// created reports whether this call created the category.
func (r *Resolver) Category(ctx context.Context, store CategoryStore, name, parent string) (id int64, created bool, err error) {
	if name == "" {
		return 0, false, errors.New("category name is empty")
	}

	id, err = r.cache.Resolve(RefCategory, name, func() (int64, error) {
		return store.Category(ctx, name)
	})
	if err == nil {
		return id, false, nil
	}
	if !provider.IsNotFound(err) {
		return 0, false, fmt.Errorf("lookup category %q: %w", name, err)
	}

	if parent != "" {
		if _, parentCreated, err := r.Category(ctx, store, parent, ""); err != nil {
			return 0, false, fmt.Errorf("resolve parent category %q: %w", parent, err)
		} else if parentCreated {
			r.logger.Info("Created parent category", zap.String("category", parent))
		}
	}

	id, err = store.CreateCategory(ctx, name, parent)
	if err != nil {
		return 0, false, fmt.Errorf("create category %q: %w", name, err)
	}
	r.cache.Put(RefCategory, name, id)
	r.logger.Info("Created category",
		zap.String("category", name),
		zap.String("parent", parent),
		zap.Int64("id", id),
	)
	return id, true, nil
}

// CourseID resolves a course shortname.
func (r *Resolver) CourseID(ctx context.Context, store IDStore, shortname string) (int64, error) {
	return r.cache.Resolve(RefCourse, shortname, func() (int64, error) {
		return store.CourseID(ctx, shortname)
	})
}

// UserID resolves a username.
func (r *Resolver) UserID(ctx context.Context, store IDStore, username string) (int64, error) {
	return r.cache.Resolve(RefUser, username, func() (int64, error) {
		return store.UserID(ctx, username)
	})
}

// RoleID resolves a role shortname or numeric id.
func (r *Resolver) RoleID(ctx context.Context, store IDStore, role string) (int64, error) {
	return r.cache.Resolve(RefRole, role, func() (int64, error) {
		return store.RoleID(ctx, role)
	})
}
