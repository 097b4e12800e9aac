package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WorkspaceMembership represents the relationship between users and
// workspaces. Exactly one row exists per (workspace, user) pair; role
// transitions are total overwrites through Upsert, not append-only
// history.
type WorkspaceMembership struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID      `gorm:"type:uuid;column:workspace_id;not null;uniqueIndex:idx_workspace_user" json:"workspace_id"`
	UserID      uuid.UUID      `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_workspace_user" json:"user_id"`
	Role        MembershipRole `gorm:"column:role;not null;default:'member'" json:"role"`
	IsActive    bool           `gorm:"column:is_active;default:true" json:"is_active"`
	AddedBy     *uuid.UUID     `gorm:"type:uuid;column:added_by" json:"added_by,omitempty"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Workspace Workspace `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for the WorkspaceMembership model
func (WorkspaceMembership) TableName() string {
	return "workspace_memberships"
}

// BeforeCreate generates the ID if not set
func (wm *WorkspaceMembership) BeforeCreate(tx *gorm.DB) error {
	ensureID(&wm.ID)
	return nil
}

// WorkspaceMembershipManager provides Django-like ORM methods for WorkspaceMembership
type WorkspaceMembershipManager struct {
	db *gorm.DB
}

// NewWorkspaceMembershipManager creates a new WorkspaceMembershipManager instance
func NewWorkspaceMembershipManager(db *gorm.DB) *WorkspaceMembershipManager {
	return &WorkspaceMembershipManager{db: db}
}

// Create creates a new workspace membership
func (m *WorkspaceMembershipManager) Create(membership *WorkspaceMembership) error {
	return m.db.Create(membership).Error
}

// Upsert writes a membership idempotently: if a row exists for the
// (workspace, user) pair it is overwritten with the new role, active
// flag, and added_by. Duplicate races collapse into the same final row
// instead of being silently ignored.
func (m *WorkspaceMembershipManager) Upsert(membership *WorkspaceMembership) error {
	return m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "workspace_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"role":       membership.Role,
			"is_active":  membership.IsActive,
			"added_by":   membership.AddedBy,
			"updated_at": time.Now(),
		}),
	}).Create(membership).Error
}

// GetActive retrieves the active membership for a (user, workspace) pair
func (m *WorkspaceMembershipManager) GetActive(userID, workspaceID uuid.UUID) (*WorkspaceMembership, error) {
	var membership WorkspaceMembership
	err := m.db.Where("user_id = ? AND workspace_id = ? AND is_active = ?", userID, workspaceID, true).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// Get retrieves the membership row for a (user, workspace) pair regardless of status
func (m *WorkspaceMembershipManager) Get(userID, workspaceID uuid.UUID) (*WorkspaceMembership, error) {
	var membership WorkspaceMembership
	err := m.db.Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

// ForWorkspace retrieves all active memberships of a workspace
func (m *WorkspaceMembershipManager) ForWorkspace(workspaceID uuid.UUID) ([]WorkspaceMembership, error) {
	var memberships []WorkspaceMembership
	err := m.db.Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Find(&memberships).Error
	return memberships, err
}

// SetRole overwrites the role on an existing active membership
func (m *WorkspaceMembershipManager) SetRole(userID, workspaceID uuid.UUID, role MembershipRole) error {
	return m.db.Model(&WorkspaceMembership{}).
		Where("user_id = ? AND workspace_id = ? AND is_active = ?", userID, workspaceID, true).
		Update("role", role).Error
}

// Deactivate disables the membership for a (user, workspace) pair
func (m *WorkspaceMembershipManager) Deactivate(userID, workspaceID uuid.UUID) error {
	return m.db.Model(&WorkspaceMembership{}).
		Where("user_id = ? AND workspace_id = ?", userID, workspaceID).
		Update("is_active", false).Error
}

// CountOtherOwners counts active owners of the workspace other than userID
func (m *WorkspaceMembershipManager) CountOtherOwners(workspaceID, userID uuid.UUID) (int64, error) {
	var count int64
	err := m.db.Model(&WorkspaceMembership{}).
		Where("workspace_id = ? AND role = ? AND is_active = ? AND user_id != ?",
			workspaceID, RoleOwner, true, userID).
		Count(&count).Error
	return count, err
}

// IsActiveMember reports whether the membership row is usable
func (wm *WorkspaceMembership) IsActiveMember() bool {
	return wm.IsActive
}

// CanManageMembers checks if the membership can manage other members
func (wm *WorkspaceMembership) CanManageMembers() bool {
	return wm.IsActive && wm.Role.AtLeast(RoleAdmin)
}
