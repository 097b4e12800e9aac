// Package lifecycle orchestrates multi-entity operations that must stay
// invariant-consistent: account/workspace bootstrap, ownership
// transfer, membership management, and cascading soft-deletion.
package lifecycle

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"taskdeck/internal/apperr"
	"taskdeck/internal/authz"
	"taskdeck/internal/models"
	"taskdeck/internal/ordering"
)

// Coordinator performs structural changes across the hierarchy. Every
// public method is a single atomic unit: either all flag/order/role
// writes commit, or none do.
type Coordinator struct {
	db       *models.DB
	ordering *ordering.Manager
	roles    *authz.RoleResolver
	log      *logrus.Logger
}

// NewCoordinator wires the coordinator.
func NewCoordinator(db *models.DB, om *ordering.Manager, roles *authz.RoleResolver, log *logrus.Logger) *Coordinator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Coordinator{db: db, ordering: om, roles: roles, log: log}
}

func (c *Coordinator) getActiveUser(db *models.DB, userID uuid.UUID) (*models.User, error) {
	user, err := db.Users.Get(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(apperr.EntityUser, userID)
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Inactive(apperr.EntityUser, userID)
	}
	return user, nil
}

// CreateAccount creates an account and bootstraps its default
// workspace, space, and list as one explicit ordered call chain. The
// owner becomes the workspace owner member.
func (c *Coordinator) CreateAccount(ctx context.Context, name string, ownerID uuid.UUID) (*models.Account, error) {
	db := c.db.WithContext(ctx)
	if _, err := c.getActiveUser(db, ownerID); err != nil {
		return nil, err
	}

	var account *models.Account
	err := db.Transaction(func(tx *models.DB) error {
		account = &models.Account{Name: name, OwnerID: ownerID, IsActive: true}
		if err := tx.Accounts.Create(account); err != nil {
			return err
		}
		_, err := c.bootstrapWorkspace(tx, account, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{"account": account.ID, "owner": ownerID}).
		Info("account created with default workspace")
	return account, nil
}

// bootstrapWorkspace creates a workspace under the account, makes
// userID its owner member, and seeds the default space and list.
func (c *Coordinator) bootstrapWorkspace(tx *models.DB, account *models.Account, userID uuid.UUID) (*models.Workspace, error) {
	workspace := &models.Workspace{
		AccountID: account.ID,
		Name:      account.Name,
		CreatedBy: userID,
		IsActive:  true,
	}
	if err := tx.Workspaces.Create(workspace); err != nil {
		return nil, err
	}

	membership := &models.WorkspaceMembership{
		WorkspaceID: workspace.ID,
		UserID:      userID,
		Role:        models.RoleOwner,
		IsActive:    true,
	}
	if err := tx.Memberships.Upsert(membership); err != nil {
		return nil, err
	}
	c.roles.Invalidate(userID, workspace.ID)

	if err := c.createDefaultSpaceAndList(tx, workspace.ID, userID); err != nil {
		return nil, err
	}
	return workspace, nil
}

// CreateWorkspace adds another workspace to an existing account, with
// userID as its owner member, seeded through the same bootstrap chain
// as account creation.
func (c *Coordinator) CreateWorkspace(ctx context.Context, accountID uuid.UUID, name string, userID uuid.UUID) (*models.Workspace, error) {
	db := c.db.WithContext(ctx)
	account, err := db.Accounts.Get(accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound(apperr.EntityAccount, accountID)
		}
		return nil, err
	}
	if !account.IsActive {
		return nil, apperr.Inactive(apperr.EntityAccount, accountID)
	}
	if _, err := c.getActiveUser(db, userID); err != nil {
		return nil, err
	}

	var workspace *models.Workspace
	err = db.Transaction(func(tx *models.DB) error {
		workspace = &models.Workspace{
			AccountID: accountID,
			Name:      name,
			CreatedBy: userID,
			IsActive:  true,
		}
		if err := tx.Workspaces.Create(workspace); err != nil {
			return err
		}
		if err := tx.Memberships.Upsert(&models.WorkspaceMembership{
			WorkspaceID: workspace.ID,
			UserID:      userID,
			Role:        models.RoleOwner,
			IsActive:    true,
		}); err != nil {
			return err
		}
		return c.createDefaultSpaceAndList(tx, workspace.ID, userID)
	})
	if err != nil {
		return nil, err
	}
	c.roles.Invalidate(userID, workspace.ID)
	return workspace, nil
}

// CreateDefaultSpaceAndList seeds a new workspace with one public space
// at order 1 holding one public list at order 1. Idempotency is the
// caller's responsibility.
func (c *Coordinator) CreateDefaultSpaceAndList(ctx context.Context, workspaceID, userID uuid.UUID) error {
	return c.db.WithContext(ctx).Transaction(func(tx *models.DB) error {
		return c.createDefaultSpaceAndList(tx, workspaceID, userID)
	})
}

func (c *Coordinator) createDefaultSpaceAndList(tx *models.DB, workspaceID, userID uuid.UUID) error {
	space := &models.Space{
		WorkspaceID: workspaceID,
		Name:        "General",
		Order:       1,
		IsPrivate:   false,
		IsActive:    true,
		CreatedBy:   userID,
	}
	if err := tx.Spaces.Create(space); err != nil {
		return err
	}
	list := &models.List{
		SpaceID:   space.ID,
		Name:      "To Do",
		Order:     1,
		IsPrivate: false,
		IsActive:  true,
		CreatedBy: userID,
	}
	return tx.Lists.Create(list)
}

// TransferWorkspaceOwnership promotes toUserID to owner and demotes
// fromUserID to member as one atomic unit. fromUserID must hold the
// owner role; toUserID must be an active user and an active member.
func (c *Coordinator) TransferWorkspaceOwnership(ctx context.Context, workspaceID, fromUserID, toUserID uuid.UUID) error {
	db := c.db.WithContext(ctx)

	var selfTransfer bool
	err := db.Transaction(func(tx *models.DB) error {
		workspace, err := tx.Workspaces.Get(workspaceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(apperr.EntityWorkspace, workspaceID)
			}
			return err
		}
		if !workspace.IsActive {
			return apperr.Inactive(apperr.EntityWorkspace, workspaceID)
		}

		from, err := tx.Memberships.GetActive(fromUserID, workspaceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotAMember(fromUserID, workspaceID)
			}
			return err
		}
		if from.Role != models.RoleOwner {
			return apperr.UnexpectedRole(string(from.Role))
		}

		// A self-transfer is a no-op, but only once the caller's
		// ownership has been verified above.
		if fromUserID == toUserID {
			selfTransfer = true
			return nil
		}

		if _, err := c.getActiveUser(tx, toUserID); err != nil {
			return err
		}
		if _, err := tx.Memberships.GetActive(toUserID, workspaceID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotAMember(toUserID, workspaceID)
			}
			return err
		}

		// Both role writes commit together or not at all; a one-sided
		// update would leave zero or two owners.
		if err := tx.Memberships.SetRole(toUserID, workspaceID, models.RoleOwner); err != nil {
			return err
		}
		return tx.Memberships.SetRole(fromUserID, workspaceID, models.RoleMember)
	})
	if err != nil {
		return err
	}
	if selfTransfer {
		return nil
	}

	c.roles.Invalidate(fromUserID, workspaceID)
	c.roles.Invalidate(toUserID, workspaceID)
	c.log.WithFields(logrus.Fields{
		"workspace": workspaceID,
		"from":      fromUserID,
		"to":        toUserID,
	}).Info("workspace ownership transferred")
	return nil
}

// TransferAccountOwnership rewrites the account owner. Workspace-level
// roles are independent and are not touched; transfer them explicitly
// per workspace if desired.
func (c *Coordinator) TransferAccountOwnership(ctx context.Context, accountID, fromUserID, toUserID uuid.UUID) error {
	db := c.db.WithContext(ctx)

	return db.Transaction(func(tx *models.DB) error {
		account, err := tx.Accounts.Get(accountID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound(apperr.EntityAccount, accountID)
			}
			return err
		}
		if !account.IsActive {
			return apperr.Inactive(apperr.EntityAccount, accountID)
		}
		if account.OwnerID != fromUserID {
			return apperr.ModificationNotAllowed(fromUserID)
		}
		if fromUserID == toUserID {
			return nil
		}
		if _, err := c.getActiveUser(tx, toUserID); err != nil {
			return err
		}
		return tx.Accounts.SetOwner(accountID, toUserID)
	})
}

// CascadeDeactivate soft-deletes the object and its whole subtree. The
// sibling group of the object itself is compacted; descendant groups
// are not, since their parent is gone from all listings.
func (c *Coordinator) CascadeDeactivate(ctx context.Context, ref authz.ObjectRef) error {
	db := c.db.WithContext(ctx)

	switch ref.Kind {
	case apperr.EntitySpace:
		return c.deactivateSpace(db, ref.ID)
	case apperr.EntityFolder:
		return c.deactivateFolder(db, ref.ID)
	case apperr.EntityList:
		return c.deactivateList(db, ref.ID)
	case apperr.EntityTask:
		return c.deactivateTask(db, ref.ID)
	default:
		return apperr.NotFound(ref.Kind, ref.ID)
	}
}

func (c *Coordinator) deactivateSpace(db *models.DB, spaceID uuid.UUID) error {
	space, err := db.Spaces.Get(spaceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(apperr.EntitySpace, spaceID)
		}
		return err
	}
	if !space.IsActive {
		return apperr.Inactive(apperr.EntitySpace, spaceID)
	}

	return db.Transaction(func(tx *models.DB) error {
		group := ordering.SpacesOf(space.WorkspaceID)
		if err := c.ordering.RemoveAndCompactTx(tx, group, space.ID); err != nil {
			return err
		}

		listIDs := tx.DB.Session(&gorm.Session{NewDB: true}).
			Model(&models.List{}).Select("id").Where("space_id = ?", spaceID)
		if err := tx.DB.Model(&models.Task{}).
			Where("list_id IN (?) AND is_deleted = ?", listIDs, false).
			Update("is_deleted", true).Error; err != nil {
			return err
		}
		if err := tx.DB.Model(&models.List{}).
			Where("space_id = ? AND is_active = ?", spaceID, true).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.DB.Model(&models.Folder{}).
			Where("space_id = ? AND is_active = ?", spaceID, true).
			Update("is_active", false).Error
	})
}

func (c *Coordinator) deactivateFolder(db *models.DB, folderID uuid.UUID) error {
	folder, err := db.Folders.Get(folderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(apperr.EntityFolder, folderID)
		}
		return err
	}
	if !folder.IsActive {
		return apperr.Inactive(apperr.EntityFolder, folderID)
	}

	return db.Transaction(func(tx *models.DB) error {
		group := ordering.FoldersOf(folder.SpaceID)
		if err := c.ordering.RemoveAndCompactTx(tx, group, folder.ID); err != nil {
			return err
		}

		listIDs := tx.DB.Session(&gorm.Session{NewDB: true}).
			Model(&models.List{}).Select("id").Where("folder_id = ?", folderID)
		if err := tx.DB.Model(&models.Task{}).
			Where("list_id IN (?) AND is_deleted = ?", listIDs, false).
			Update("is_deleted", true).Error; err != nil {
			return err
		}
		return tx.DB.Model(&models.List{}).
			Where("folder_id = ? AND is_active = ?", folderID, true).
			Update("is_active", false).Error
	})
}

func (c *Coordinator) deactivateList(db *models.DB, listID uuid.UUID) error {
	list, err := db.Lists.Get(listID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(apperr.EntityList, listID)
		}
		return err
	}
	if !list.IsActive {
		return apperr.Inactive(apperr.EntityList, listID)
	}

	return db.Transaction(func(tx *models.DB) error {
		group := ordering.ListsOf(list.SpaceID, list.FolderID)
		if err := c.ordering.RemoveAndCompactTx(tx, group, list.ID); err != nil {
			return err
		}
		return tx.DB.Model(&models.Task{}).
			Where("list_id = ? AND is_deleted = ?", listID, false).
			Update("is_deleted", true).Error
	})
}

func (c *Coordinator) deactivateTask(db *models.DB, taskID uuid.UUID) error {
	task, err := db.Tasks.Get(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound(apperr.EntityTask, taskID)
		}
		return err
	}
	if task.IsDeleted {
		return apperr.Inactive(apperr.EntityTask, taskID)
	}
	return c.ordering.RemoveAndCompact(db, ordering.TasksOf(task.ListID), task.ID)
}

// AddMember adds or reactivates a workspace membership with the given
// role. The owner role cannot be granted this way; it only moves via
// TransferWorkspaceOwnership.
func (c *Coordinator) AddMember(ctx context.Context, workspaceID, targetUserID uuid.UUID, role models.MembershipRole, addedBy uuid.UUID) error {
	if role == models.RoleOwner || !role.Valid() {
		return apperr.UnexpectedRole(string(role))
	}
	db := c.db.WithContext(ctx)
	if _, err := c.getActiveUser(db, targetUserID); err != nil {
		return err
	}

	err := db.Transaction(func(tx *models.DB) error {
		// An existing active owner row must not be downgraded by an
		// upsert; ownership only moves through transfer.
		existing, err := tx.Memberships.Get(targetUserID, workspaceID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if existing != nil && existing.IsActive && existing.Role == models.RoleOwner {
			return apperr.UnexpectedRole(string(models.RoleOwner))
		}

		return tx.Memberships.Upsert(&models.WorkspaceMembership{
			WorkspaceID: workspaceID,
			UserID:      targetUserID,
			Role:        role,
			IsActive:    true,
			AddedBy:     &addedBy,
		})
	})
	if err != nil {
		return err
	}
	c.roles.Invalidate(targetUserID, workspaceID)
	return nil
}

// UpdateMemberRole overwrites a member's role. Demoting the last owner
// is rejected; ownership moves only through transfer.
func (c *Coordinator) UpdateMemberRole(ctx context.Context, workspaceID, targetUserID uuid.UUID, role models.MembershipRole) error {
	if role == models.RoleOwner || !role.Valid() {
		return apperr.UnexpectedRole(string(role))
	}
	db := c.db.WithContext(ctx)

	err := db.Transaction(func(tx *models.DB) error {
		membership, err := tx.Memberships.GetActive(targetUserID, workspaceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotAMember(targetUserID, workspaceID)
			}
			return err
		}
		if membership.Role == models.RoleOwner {
			others, err := tx.Memberships.CountOtherOwners(workspaceID, targetUserID)
			if err != nil {
				return err
			}
			if others == 0 {
				return apperr.UnexpectedRole(string(models.RoleOwner))
			}
		}
		return tx.Memberships.SetRole(targetUserID, workspaceID, role)
	})
	if err != nil {
		return err
	}
	c.roles.Invalidate(targetUserID, workspaceID)
	return nil
}

// RemoveMember deactivates a membership. The last owner cannot be
// removed.
func (c *Coordinator) RemoveMember(ctx context.Context, workspaceID, targetUserID uuid.UUID) error {
	db := c.db.WithContext(ctx)

	err := db.Transaction(func(tx *models.DB) error {
		membership, err := tx.Memberships.GetActive(targetUserID, workspaceID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotAMember(targetUserID, workspaceID)
			}
			return err
		}
		if membership.Role == models.RoleOwner {
			others, err := tx.Memberships.CountOtherOwners(workspaceID, targetUserID)
			if err != nil {
				return err
			}
			if others == 0 {
				return apperr.UnexpectedRole(string(models.RoleOwner))
			}
		}
		return tx.Memberships.Deactivate(targetUserID, workspaceID)
	})
	if err != nil {
		return err
	}
	c.roles.Invalidate(targetUserID, workspaceID)
	return nil
}
