package authz

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
)

// Action is a mutation or read the caller wants to perform on an object.
type Action string

const (
	ActionRead              Action = "read"
	ActionComment           Action = "comment"
	ActionAssign            Action = "assign"
	ActionCreate            Action = "create"
	ActionUpdate            Action = "update"
	ActionDelete            Action = "delete"
	ActionReorder           Action = "reorder"
	ActionSetVisibility     Action = "set_visibility"
	ActionTransferOwnership Action = "transfer_ownership"
)

// minLevel maps an action to the minimum access level that permits it.
// Ownership transfer is absent: it bypasses the access table and is
// gated on the workspace owner role directly.
var minLevel = map[Action]AccessLevel{
	ActionRead:          AccessView,
	ActionComment:       AccessComment,
	ActionAssign:        AccessComment,
	ActionCreate:        AccessFullEdit,
	ActionUpdate:        AccessFullEdit,
	ActionDelete:        AccessFullEdit,
	ActionReorder:       AccessFullEdit,
	ActionSetVisibility: AccessFullEdit,
}

// Engine is the authorization decision engine: one allow/deny decision
// per (user, object, action).
type Engine struct {
	db     *models.DB
	roles  *RoleResolver
	access *AccessResolver
	log    *logrus.Logger
}

// NewEngine wires the resolvers into a decision engine.
func NewEngine(db *models.DB, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	roles := NewRoleResolver(db)
	return &Engine{
		db:     db,
		roles:  roles,
		access: NewAccessResolver(db, roles),
		log:    log,
	}
}

// Roles exposes the role resolver so lifecycle writes can invalidate
// cached roles.
func (e *Engine) Roles() *RoleResolver { return e.roles }

// Access exposes the access resolver.
func (e *Engine) Access() *AccessResolver { return e.access }

// Authorize decides whether userID may perform action on the object.
// A nil return means allowed. Denials carry ModificationNotAllowed;
// broken ancestor chains carry NotFound/Inactive for the first bad
// level, checked root-to-leaf.
func (e *Engine) Authorize(ctx context.Context, userID uuid.UUID, ref ObjectRef, action Action) error {
	c, err := e.access.resolveChain(ctx, ref)
	if err != nil {
		return err
	}

	if action == ActionTransferOwnership {
		role, err := e.roles.RequireMember(ctx, userID, c.Workspace.ID)
		if err != nil {
			return err
		}
		if role != models.RoleOwner {
			return apperr.ModificationNotAllowed(userID)
		}
		return nil
	}

	required, ok := minLevel[action]
	if !ok {
		return apperr.ModificationNotAllowed(userID)
	}

	level, err := e.access.resolveOnChain(ctx, userID, c)
	if err != nil {
		return err
	}
	if level < required {
		e.log.WithFields(logrus.Fields{
			"user":     userID,
			"object":   ref.Kind,
			"objectID": ref.ID,
			"action":   action,
			"resolved": level.String(),
			"required": required.String(),
		}).Debug("authorization denied")
		return apperr.ModificationNotAllowed(userID)
	}
	return nil
}

// AuthorizeWorkspace decides a workspace-scoped action (member
// management, workspace deletion) that has no object-level overrides.
func (e *Engine) AuthorizeWorkspace(ctx context.Context, userID, workspaceID uuid.UUID, min models.MembershipRole) error {
	role, err := e.roles.RequireMember(ctx, userID, workspaceID)
	if err != nil {
		return err
	}
	if !role.AtLeast(min) {
		return apperr.ModificationNotAllowed(userID)
	}
	return nil
}
