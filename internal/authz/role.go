// Package authz decides, for any user and any object in the hierarchy,
// whether a requested action is permitted. It combines workspace-level
// roles, object-level permission overrides, and private-visibility
// semantics into a single allow/deny decision.
package authz

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
)

const (
	roleCacheSize = 4096
	roleCacheTTL  = 30 * time.Second
)

// RoleResolver resolves a user's effective workspace role and validates
// that both sides of the membership are alive. Resolved roles are
// cached briefly; role writes must call Invalidate.
type RoleResolver struct {
	db    *models.DB
	cache *lru.LRU[string, models.MembershipRole]
}

// NewRoleResolver creates a role resolver over db.
func NewRoleResolver(db *models.DB) *RoleResolver {
	return &RoleResolver{
		db:    db,
		cache: lru.NewLRU[string, models.MembershipRole](roleCacheSize, nil, roleCacheTTL),
	}
}

func roleCacheKey(userID, workspaceID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", workspaceID, userID)
}

// EffectiveRole returns the user's active role in the workspace. A
// missing membership is not an error: isMember is false and the role is
// empty. Missing or inactive user/workspace rows fail with the
// corresponding NotFound/Inactive kind.
func (r *RoleResolver) EffectiveRole(ctx context.Context, userID, workspaceID uuid.UUID) (role models.MembershipRole, isMember bool, err error) {
	if cached, ok := r.cache.Get(roleCacheKey(userID, workspaceID)); ok {
		return cached, true, nil
	}

	db := r.db.WithContext(ctx)

	// User and workspace rows are independent; fetch them concurrently.
	var (
		user      *models.User
		workspace *models.Workspace
	)
	group, _ := errgroup.WithContext(ctx)
	group.Go(func() error {
		u, err := db.Users.Get(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(apperr.EntityUser, userID)
			}
			return err
		}
		user = u
		return nil
	})
	group.Go(func() error {
		w, err := db.Workspaces.Get(workspaceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(apperr.EntityWorkspace, workspaceID)
			}
			return err
		}
		workspace = w
		return nil
	})
	if err := group.Wait(); err != nil {
		return "", false, err
	}

	if !workspace.IsActive {
		return "", false, apperr.Inactive(apperr.EntityWorkspace, workspaceID)
	}
	if !user.IsActive {
		return "", false, apperr.Inactive(apperr.EntityUser, userID)
	}

	membership, err := db.Memberships.GetActive(userID, workspaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	if !membership.Role.Valid() {
		return "", false, apperr.UnexpectedRole(string(membership.Role))
	}

	r.cache.Add(roleCacheKey(userID, workspaceID), membership.Role)
	return membership.Role, true, nil
}

// RequireMember is EffectiveRole with NotAMember promoted to an error,
// for callers that need an active membership to proceed.
func (r *RoleResolver) RequireMember(ctx context.Context, userID, workspaceID uuid.UUID) (models.MembershipRole, error) {
	role, isMember, err := r.EffectiveRole(ctx, userID, workspaceID)
	if err != nil {
		return "", err
	}
	if !isMember {
		return "", apperr.NotAMember(userID, workspaceID)
	}
	return role, nil
}

// Invalidate drops the cached role for a (user, workspace) pair. Called
// by every role write.
func (r *RoleResolver) Invalidate(userID, workspaceID uuid.UUID) {
	r.cache.Remove(roleCacheKey(userID, workspaceID))
}
