package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
)

// AccessLevel is the resolved effective permission strength for a user
// on a specific object: None < View < Comment < FullEdit.
type AccessLevel int

const (
	AccessNone AccessLevel = iota
	AccessView
	AccessComment
	AccessFullEdit
)

func (l AccessLevel) String() string {
	switch l {
	case AccessView:
		return "view"
	case AccessComment:
		return "comment"
	case AccessFullEdit:
		return "full_edit"
	default:
		return "none"
	}
}

func levelFromGrant(p models.PermissionLevel) AccessLevel {
	switch p {
	case models.PermissionView:
		return AccessView
	case models.PermissionComment:
		return AccessComment
	case models.PermissionFullEdit:
		return AccessFullEdit
	default:
		return AccessNone
	}
}

// ObjectRef names one object in the hierarchy.
type ObjectRef struct {
	Kind apperr.EntityKind
	ID   uuid.UUID
}

func SpaceRef(id uuid.UUID) ObjectRef  { return ObjectRef{Kind: apperr.EntitySpace, ID: id} }
func FolderRef(id uuid.UUID) ObjectRef { return ObjectRef{Kind: apperr.EntityFolder, ID: id} }
func ListRef(id uuid.UUID) ObjectRef   { return ObjectRef{Kind: apperr.EntityList, ID: id} }
func TaskRef(id uuid.UUID) ObjectRef   { return ObjectRef{Kind: apperr.EntityTask, ID: id} }

// AccessPolicy couples an object's visibility with the override grant
// resolved for one user, so the two signals cannot disagree when the
// precedence rules run.
type AccessPolicy struct {
	Visibility models.Visibility
	Override   *models.PermissionLevel
}

// chain is the ancestor path of an object, root first. Nil fields are
// levels the object does not pass through.
type chain struct {
	Workspace *models.Workspace
	Space     *models.Space
	Folder    *models.Folder
	List      *models.List
	Task      *models.Task
}

// target returns the permission-bearing object the precedence rules run
// against (tasks inherit from their list), plus its creator and policy
// inputs.
func (c *chain) target() (createdBy uuid.UUID, private bool) {
	switch {
	case c.Task != nil:
		return c.List.CreatedBy, c.List.IsPrivate
	case c.List != nil:
		return c.List.CreatedBy, c.List.IsPrivate
	case c.Folder != nil:
		return c.Folder.CreatedBy, c.Folder.IsPrivate
	default:
		return c.Space.CreatedBy, c.Space.IsPrivate
	}
}

// AccessResolver resolves object-level access, honoring
// private-visibility semantics and workspace-role defaults.
type AccessResolver struct {
	db    *models.DB
	roles *RoleResolver
}

// NewAccessResolver creates an access resolver over db.
func NewAccessResolver(db *models.DB, roles *RoleResolver) *AccessResolver {
	return &AccessResolver{db: db, roles: roles}
}

// resolveChain loads the ancestor path of ref bottom-up, then validates
// it root-to-leaf: the first missing or inactive ancestor
// short-circuits the rest.
func (r *AccessResolver) resolveChain(ctx context.Context, ref ObjectRef) (*chain, error) {
	db := r.db.WithContext(ctx)
	c := &chain{}

	load := func(kind apperr.EntityKind, id uuid.UUID, err error) error {
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(kind, id)
			}
			return err
		}
		return nil
	}

	var err error
	switch ref.Kind {
	case apperr.EntityTask:
		c.Task, err = db.Tasks.Get(ref.ID)
		if lerr := load(apperr.EntityTask, ref.ID, err); lerr != nil {
			return nil, lerr
		}
		c.List, err = db.Lists.Get(c.Task.ListID)
		if lerr := load(apperr.EntityList, c.Task.ListID, err); lerr != nil {
			return nil, lerr
		}
	case apperr.EntityList:
		c.List, err = db.Lists.Get(ref.ID)
		if lerr := load(apperr.EntityList, ref.ID, err); lerr != nil {
			return nil, lerr
		}
	case apperr.EntityFolder:
		c.Folder, err = db.Folders.Get(ref.ID)
		if lerr := load(apperr.EntityFolder, ref.ID, err); lerr != nil {
			return nil, lerr
		}
	case apperr.EntitySpace:
		c.Space, err = db.Spaces.Get(ref.ID)
		if lerr := load(apperr.EntitySpace, ref.ID, err); lerr != nil {
			return nil, lerr
		}
	default:
		return nil, apperr.NotFound(ref.Kind, ref.ID)
	}

	if c.List != nil && c.List.FolderID != nil {
		c.Folder, err = db.Folders.Get(*c.List.FolderID)
		if lerr := load(apperr.EntityFolder, *c.List.FolderID, err); lerr != nil {
			return nil, lerr
		}
	}
	if c.Folder != nil && c.Space == nil {
		c.Space, err = db.Spaces.Get(c.Folder.SpaceID)
		if lerr := load(apperr.EntitySpace, c.Folder.SpaceID, err); lerr != nil {
			return nil, lerr
		}
	}
	if c.List != nil && c.Folder == nil {
		c.Space, err = db.Spaces.Get(c.List.SpaceID)
		if lerr := load(apperr.EntitySpace, c.List.SpaceID, err); lerr != nil {
			return nil, lerr
		}
	}
	c.Workspace, err = db.Workspaces.Get(c.Space.WorkspaceID)
	if lerr := load(apperr.EntityWorkspace, c.Space.WorkspaceID, err); lerr != nil {
		return nil, lerr
	}

	// Root-to-leaf activity checks, first failure wins.
	if !c.Workspace.IsActive {
		return nil, apperr.Inactive(apperr.EntityWorkspace, c.Workspace.ID)
	}
	if !c.Space.IsActive {
		return nil, apperr.Inactive(apperr.EntitySpace, c.Space.ID)
	}
	if c.Folder != nil && !c.Folder.IsActive {
		return nil, apperr.Inactive(apperr.EntityFolder, c.Folder.ID)
	}
	if c.List != nil && !c.List.IsActive {
		return nil, apperr.Inactive(apperr.EntityList, c.List.ID)
	}
	if c.Task != nil && c.Task.IsDeleted {
		return nil, apperr.Inactive(apperr.EntityTask, c.Task.ID)
	}
	return c, nil
}

// policy loads the AccessPolicy for the permission-bearing object of
// the chain, for one user.
func (r *AccessResolver) policy(ctx context.Context, c *chain, userID uuid.UUID) (AccessPolicy, error) {
	db := r.db.WithContext(ctx)

	_, private := c.target()
	p := AccessPolicy{Visibility: models.VisibilityPublic}
	if private {
		p.Visibility = models.VisibilityPrivate
	}

	var (
		level models.PermissionLevel
		err   error
	)
	switch {
	case c.List != nil:
		var perm *models.ListPermission
		perm, err = db.ListPermissions.GetActive(c.List.ID, userID)
		if err == nil {
			level = perm.Level
		}
	case c.Folder != nil:
		var perm *models.FolderPermission
		perm, err = db.FolderPermissions.GetActive(c.Folder.ID, userID)
		if err == nil {
			level = perm.Level
		}
	default:
		var perm *models.SpacePermission
		perm, err = db.SpacePermissions.GetActive(c.Space.ID, userID)
		if err == nil {
			level = perm.Level
		}
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p, nil
		}
		return p, err
	}
	p.Override = &level
	return p, nil
}

// ResolveAccess computes the user's effective access to the object.
// Precedence, first match wins: object creator, workspace owner,
// explicit active grant, private gate, workspace-role default.
func (r *AccessResolver) ResolveAccess(ctx context.Context, userID uuid.UUID, ref ObjectRef) (AccessLevel, error) {
	c, err := r.resolveChain(ctx, ref)
	if err != nil {
		return AccessNone, err
	}
	return r.resolveOnChain(ctx, userID, c)
}

func (r *AccessResolver) resolveOnChain(ctx context.Context, userID uuid.UUID, c *chain) (AccessLevel, error) {
	createdBy, _ := c.target()
	if createdBy == userID {
		return AccessFullEdit, nil
	}

	role, isMember, err := r.roles.EffectiveRole(ctx, userID, c.Workspace.ID)
	if err != nil {
		return AccessNone, err
	}
	if isMember && role == models.RoleOwner {
		return AccessFullEdit, nil
	}

	policy, err := r.policy(ctx, c, userID)
	if err != nil {
		return AccessNone, err
	}
	if policy.Override != nil {
		return levelFromGrant(*policy.Override), nil
	}
	if policy.Visibility == models.VisibilityPrivate {
		return AccessNone, nil
	}

	if !isMember {
		return AccessNone, nil
	}
	switch role {
	case models.RoleAdmin:
		return AccessFullEdit, nil
	case models.RoleMember:
		return AccessComment, nil
	case models.RoleGuest:
		return AccessView, nil
	default:
		return AccessNone, apperr.UnexpectedRole(string(role))
	}
}
