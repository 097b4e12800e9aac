// Package engine is the caller-facing surface of the authorization and
// ordered-collection core. Mutation handlers (GraphQL, REST, RPC — not
// part of this module) call it; every mutating operation authorizes the
// actor first and then applies the change as one atomic unit.
package engine

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"taskdeck/internal/apperr"
	"taskdeck/internal/authz"
	"taskdeck/internal/config"
	"taskdeck/internal/lifecycle"
	"taskdeck/internal/models"
	"taskdeck/internal/ordering"
)

// OwnershipScope selects which level an ownership transfer applies to.
// Ownership at each level is independent; transferring an account does
// not move workspace roles and vice versa.
type OwnershipScope string

const (
	ScopeAccount   OwnershipScope = "account"
	ScopeWorkspace OwnershipScope = "workspace"
)

// Decision is the outcome of an authorization query. Reason carries the
// apperr kind a denied caller should surface.
type Decision struct {
	Allowed bool
	Reason  error
}

// Engine ties the decision engine, the ordering manager, and the
// lifecycle coordinator together behind one API.
type Engine struct {
	db        *models.DB
	authz     *authz.Engine
	ordering  *ordering.Manager
	lifecycle *lifecycle.Coordinator
	log       *logrus.Logger
}

// New wires an engine over db.
func New(db *models.DB, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	az := authz.NewEngine(db, log)
	om := ordering.NewManager(log)
	return &Engine{
		db:        db,
		authz:     az,
		ordering:  om,
		lifecycle: lifecycle.NewCoordinator(db, om, az.Roles(), log),
		log:       log,
	}
}

// NewFromEnv opens the database named by the environment and wires an
// engine with a logger at the configured level.
func NewFromEnv() (*Engine, error) {
	cfg := config.Load()
	db, err := models.NewDB()
	if err != nil {
		return nil, err
	}
	return New(db, cfg.Logger()), nil
}

// Lifecycle exposes the coordinator for bootstrap flows (account
// creation, default workspace seeding).
func (e *Engine) Lifecycle() *lifecycle.Coordinator { return e.lifecycle }

// Authorize answers whether userID may perform action on the object.
func (e *Engine) Authorize(ctx context.Context, userID uuid.UUID, ref authz.ObjectRef, action authz.Action) Decision {
	if err := e.authz.Authorize(ctx, userID, ref, action); err != nil {
		return Decision{Allowed: false, Reason: err}
	}
	return Decision{Allowed: true}
}

// ResolveAccess reports the actor's effective access level on an object.
func (e *Engine) ResolveAccess(ctx context.Context, userID uuid.UUID, ref authz.ObjectRef) (authz.AccessLevel, error) {
	return e.authz.Access().ResolveAccess(ctx, userID, ref)
}

// CreateSpace appends a space at the end of the workspace's sibling
// sequence. Members and above may create content.
func (e *Engine) CreateSpace(ctx context.Context, actorID, workspaceID uuid.UUID, name string, visibility models.Visibility) (*models.Space, error) {
	if !visibility.Valid() {
		return nil, apperr.UnsupportedVisibility(string(visibility))
	}
	if err := e.authz.AuthorizeWorkspace(ctx, actorID, workspaceID, models.RoleMember); err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	space := &models.Space{
		WorkspaceID: workspaceID,
		Name:        name,
		IsPrivate:   visibility.Private(),
		IsActive:    true,
		CreatedBy:   actorID,
	}
	err := e.ordering.InsertAtEnd(db, ordering.SpacesOf(workspaceID), func(tx *models.DB, order int) error {
		space.Order = order
		return tx.Spaces.Create(space)
	})
	if err != nil {
		return nil, err
	}
	return space, nil
}

// CreateFolder appends a folder at the end of the space's sibling
// sequence.
func (e *Engine) CreateFolder(ctx context.Context, actorID, spaceID uuid.UUID, name string, visibility models.Visibility) (*models.Folder, error) {
	if !visibility.Valid() {
		return nil, apperr.UnsupportedVisibility(string(visibility))
	}
	if err := e.authz.Authorize(ctx, actorID, authz.SpaceRef(spaceID), authz.ActionCreate); err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	folder := &models.Folder{
		SpaceID:   spaceID,
		Name:      name,
		IsPrivate: visibility.Private(),
		IsActive:  true,
		CreatedBy: actorID,
	}
	err := e.ordering.InsertAtEnd(db, ordering.FoldersOf(spaceID), func(tx *models.DB, order int) error {
		folder.Order = order
		return tx.Folders.Create(folder)
	})
	if err != nil {
		return nil, err
	}
	return folder, nil
}

// CreateList appends a list to its sibling group: the folderless area
// of the space when folderID is nil, otherwise the given folder (which
// must belong to the space).
func (e *Engine) CreateList(ctx context.Context, actorID, spaceID uuid.UUID, folderID *uuid.UUID, name string, visibility models.Visibility) (*models.List, error) {
	if !visibility.Valid() {
		return nil, apperr.UnsupportedVisibility(string(visibility))
	}

	parent := authz.SpaceRef(spaceID)
	if folderID != nil {
		folder, err := e.db.WithContext(ctx).Folders.Get(*folderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound(apperr.EntityFolder, *folderID)
			}
			return nil, err
		}
		if folder.SpaceID != spaceID {
			return nil, apperr.NotFound(apperr.EntityFolder, *folderID)
		}
		parent = authz.FolderRef(*folderID)
	}
	if err := e.authz.Authorize(ctx, actorID, parent, authz.ActionCreate); err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	list := &models.List{
		SpaceID:   spaceID,
		FolderID:  folderID,
		Name:      name,
		IsPrivate: visibility.Private(),
		IsActive:  true,
		CreatedBy: actorID,
	}
	err := e.ordering.InsertAtEnd(db, ordering.ListsOf(spaceID, folderID), func(tx *models.DB, order int) error {
		list.Order = order
		return tx.Lists.Create(list)
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// CreateTask appends a task at the end of the list.
func (e *Engine) CreateTask(ctx context.Context, actorID, listID uuid.UUID, title, description string) (*models.Task, error) {
	if err := e.authz.Authorize(ctx, actorID, authz.ListRef(listID), authz.ActionCreate); err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	task := &models.Task{
		ListID:      listID,
		Title:       title,
		Description: description,
		CreatedBy:   actorID,
	}
	err := e.ordering.InsertAtEnd(db, ordering.TasksOf(listID), func(tx *models.DB, order int) error {
		task.Order = order
		return tx.Tasks.Create(task)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// notFound maps the ORM's missing-row error onto the engine taxonomy so
// callers never see a bare gorm error for a vanished object.
func notFound(entity apperr.EntityKind, id uuid.UUID, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(entity, id)
	}
	return err
}

// Reorder moves an object to newOrder within its sibling group and
// returns the updated entity.
func (e *Engine) Reorder(ctx context.Context, actorID uuid.UUID, ref authz.ObjectRef, newOrder int) (interface{}, error) {
	if err := e.authz.Authorize(ctx, actorID, ref, authz.ActionReorder); err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	switch ref.Kind {
	case apperr.EntitySpace:
		space, err := db.Spaces.Get(ref.ID)
		if err != nil {
			return nil, notFound(apperr.EntitySpace, ref.ID, err)
		}
		group := ordering.SpacesOf(space.WorkspaceID)
		if err := e.ordering.Move(db, group, space.ID, space.Order, newOrder); err != nil {
			return nil, err
		}
		moved, err := db.Spaces.Get(ref.ID)
		if err != nil {
			return nil, notFound(apperr.EntitySpace, ref.ID, err)
		}
		return moved, nil
	case apperr.EntityFolder:
		folder, err := db.Folders.Get(ref.ID)
		if err != nil {
			return nil, notFound(apperr.EntityFolder, ref.ID, err)
		}
		group := ordering.FoldersOf(folder.SpaceID)
		if err := e.ordering.Move(db, group, folder.ID, folder.Order, newOrder); err != nil {
			return nil, err
		}
		moved, err := db.Folders.Get(ref.ID)
		if err != nil {
			return nil, notFound(apperr.EntityFolder, ref.ID, err)
		}
		return moved, nil
	case apperr.EntityList:
		list, err := db.Lists.Get(ref.ID)
		if err != nil {
			return nil, notFound(apperr.EntityList, ref.ID, err)
		}
		group := ordering.ListsOf(list.SpaceID, list.FolderID)
		if err := e.ordering.Move(db, group, list.ID, list.Order, newOrder); err != nil {
			return nil, err
		}
		moved, err := db.Lists.Get(ref.ID)
		if err != nil {
			return nil, notFound(apperr.EntityList, ref.ID, err)
		}
		return moved, nil
	case apperr.EntityTask:
		task, err := db.Tasks.Get(ref.ID)
		if err != nil {
			return nil, notFound(apperr.EntityTask, ref.ID, err)
		}
		group := ordering.TasksOf(task.ListID)
		if err := e.ordering.Move(db, group, task.ID, task.Order, newOrder); err != nil {
			return nil, err
		}
		moved, err := db.Tasks.Get(ref.ID)
		if err != nil {
			return nil, notFound(apperr.EntityTask, ref.ID, err)
		}
		return moved, nil
	default:
		return nil, apperr.NotFound(ref.Kind, ref.ID)
	}
}

// MoveListToFolder relocates a list into targetFolderID, or to the
// folderless area of its space when nil. This is not a reorder: the
// list leaves one sibling group (which compacts) and is appended to
// another.
func (e *Engine) MoveListToFolder(ctx context.Context, actorID, listID uuid.UUID, targetFolderID *uuid.UUID) (*models.List, error) {
	if err := e.authz.Authorize(ctx, actorID, authz.ListRef(listID), authz.ActionUpdate); err != nil {
		return nil, err
	}

	db := e.db.WithContext(ctx)
	list, err := db.Lists.Get(listID)
	if err != nil {
		return nil, notFound(apperr.EntityList, listID, err)
	}

	var targetValue interface{}
	if targetFolderID != nil {
		folder, err := db.Folders.Get(*targetFolderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperr.NotFound(apperr.EntityFolder, *targetFolderID)
			}
			return nil, err
		}
		if !folder.IsActive {
			return nil, apperr.Inactive(apperr.EntityFolder, folder.ID)
		}
		if folder.SpaceID != list.SpaceID {
			return nil, apperr.NotFound(apperr.EntityFolder, *targetFolderID)
		}
		targetValue = *targetFolderID
	}

	from := ordering.ListsOf(list.SpaceID, list.FolderID)
	to := ordering.ListsOf(list.SpaceID, targetFolderID)
	if from.Key() == to.Key() {
		return list, nil
	}

	_, err = e.ordering.Transfer(db, from, to, list.ID,
		map[string]interface{}{"folder_id": targetValue})
	if err != nil {
		return nil, err
	}
	moved, err := db.Lists.Get(listID)
	if err != nil {
		return nil, notFound(apperr.EntityList, listID, err)
	}
	return moved, nil
}

// SoftDelete flips the object's soft-delete flag, compacts its sibling
// group, and cascades through its subtree.
func (e *Engine) SoftDelete(ctx context.Context, actorID uuid.UUID, ref authz.ObjectRef) error {
	if err := e.authz.Authorize(ctx, actorID, ref, authz.ActionDelete); err != nil {
		return err
	}
	return e.lifecycle.CascadeDeactivate(ctx, ref)
}

// SetVisibility toggles an object between public and private.
func (e *Engine) SetVisibility(ctx context.Context, actorID uuid.UUID, ref authz.ObjectRef, visibility models.Visibility) error {
	if !visibility.Valid() {
		return apperr.UnsupportedVisibility(string(visibility))
	}
	if err := e.authz.Authorize(ctx, actorID, ref, authz.ActionSetVisibility); err != nil {
		return err
	}

	db := e.db.WithContext(ctx)
	switch ref.Kind {
	case apperr.EntitySpace:
		return db.Spaces.SetPrivate(ref.ID, visibility.Private())
	case apperr.EntityFolder:
		return db.Folders.SetPrivate(ref.ID, visibility.Private())
	case apperr.EntityList:
		return db.Lists.SetPrivate(ref.ID, visibility.Private())
	default:
		return apperr.NotFound(ref.Kind, ref.ID)
	}
}

// SetPermission grants or overwrites an object-level permission for a
// user. The write is idempotent: re-granting updates the level in place.
func (e *Engine) SetPermission(ctx context.Context, actorID uuid.UUID, ref authz.ObjectRef, targetUserID uuid.UUID, level models.PermissionLevel) error {
	if !level.Valid() {
		return apperr.UnsupportedPermission(string(level))
	}
	if err := e.authz.Authorize(ctx, actorID, ref, authz.ActionUpdate); err != nil {
		return err
	}

	db := e.db.WithContext(ctx)
	switch ref.Kind {
	case apperr.EntitySpace:
		return db.SpacePermissions.Upsert(&models.SpacePermission{
			SpaceID: ref.ID, UserID: targetUserID, Level: level, IsActive: true, AddedBy: &actorID,
		})
	case apperr.EntityFolder:
		return db.FolderPermissions.Upsert(&models.FolderPermission{
			FolderID: ref.ID, UserID: targetUserID, Level: level, IsActive: true, AddedBy: &actorID,
		})
	case apperr.EntityList:
		return db.ListPermissions.Upsert(&models.ListPermission{
			ListID: ref.ID, UserID: targetUserID, Level: level, IsActive: true, AddedBy: &actorID,
		})
	default:
		return apperr.NotFound(ref.Kind, ref.ID)
	}
}

// RevokePermission disables an object-level grant.
func (e *Engine) RevokePermission(ctx context.Context, actorID uuid.UUID, ref authz.ObjectRef, targetUserID uuid.UUID) error {
	if err := e.authz.Authorize(ctx, actorID, ref, authz.ActionUpdate); err != nil {
		return err
	}

	db := e.db.WithContext(ctx)
	switch ref.Kind {
	case apperr.EntitySpace:
		return db.SpacePermissions.Revoke(ref.ID, targetUserID)
	case apperr.EntityFolder:
		return db.FolderPermissions.Revoke(ref.ID, targetUserID)
	case apperr.EntityList:
		return db.ListPermissions.Revoke(ref.ID, targetUserID)
	default:
		return apperr.NotFound(ref.Kind, ref.ID)
	}
}

// AssignTask assigns a user to a task. Comment-level access suffices.
func (e *Engine) AssignTask(ctx context.Context, actorID, taskID, assigneeID uuid.UUID) error {
	if err := e.authz.Authorize(ctx, actorID, authz.TaskRef(taskID), authz.ActionAssign); err != nil {
		return err
	}
	return e.db.WithContext(ctx).TaskAssignees.Upsert(&models.TaskAssignee{
		TaskID: taskID, UserID: assigneeID, IsActive: true, AssignedBy: &actorID,
	})
}

// UnassignTask removes a user from a task.
func (e *Engine) UnassignTask(ctx context.Context, actorID, taskID, assigneeID uuid.UUID) error {
	if err := e.authz.Authorize(ctx, actorID, authz.TaskRef(taskID), authz.ActionAssign); err != nil {
		return err
	}
	return e.db.WithContext(ctx).TaskAssignees.Unassign(taskID, assigneeID)
}

// TransferOwnership moves ownership at the given scope from one user to
// another. The coordinator validates that fromUserID currently owns the
// object and applies both sides atomically.
func (e *Engine) TransferOwnership(ctx context.Context, scope OwnershipScope, objectID, fromUserID, toUserID uuid.UUID) error {
	switch scope {
	case ScopeWorkspace:
		return e.lifecycle.TransferWorkspaceOwnership(ctx, objectID, fromUserID, toUserID)
	case ScopeAccount:
		return e.lifecycle.TransferAccountOwnership(ctx, objectID, fromUserID, toUserID)
	default:
		return apperr.ModificationNotAllowed(fromUserID)
	}
}

// AddMember adds a user to a workspace. Admins and above manage
// memberships.
func (e *Engine) AddMember(ctx context.Context, actorID, workspaceID, targetUserID uuid.UUID, role models.MembershipRole) error {
	if err := e.authz.AuthorizeWorkspace(ctx, actorID, workspaceID, models.RoleAdmin); err != nil {
		return err
	}
	return e.lifecycle.AddMember(ctx, workspaceID, targetUserID, role, actorID)
}

// UpdateMemberRole overwrites a member's role.
func (e *Engine) UpdateMemberRole(ctx context.Context, actorID, workspaceID, targetUserID uuid.UUID, role models.MembershipRole) error {
	if err := e.authz.AuthorizeWorkspace(ctx, actorID, workspaceID, models.RoleAdmin); err != nil {
		return err
	}
	return e.lifecycle.UpdateMemberRole(ctx, workspaceID, targetUserID, role)
}

// RemoveMember deactivates a membership.
func (e *Engine) RemoveMember(ctx context.Context, actorID, workspaceID, targetUserID uuid.UUID) error {
	if err := e.authz.AuthorizeWorkspace(ctx, actorID, workspaceID, models.RoleAdmin); err != nil {
		return err
	}
	return e.lifecycle.RemoveMember(ctx, workspaceID, targetUserID)
}
