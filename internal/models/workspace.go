package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Workspace belongs to one Account and is the scope membership roles are
// resolved against. CreatedBy records the creator permanently; ownership
// lives in the membership table and moves on transfer.
type Workspace struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	AccountID uuid.UUID `gorm:"type:uuid;column:account_id;not null;index" json:"account_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	CreatedBy uuid.UUID `gorm:"type:uuid;column:created_by;not null" json:"created_by"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Account     Account               `gorm:"foreignKey:AccountID" json:"account,omitempty"`
	Memberships []WorkspaceMembership `gorm:"foreignKey:WorkspaceID" json:"memberships,omitempty"`
	Spaces      []Space               `gorm:"foreignKey:WorkspaceID" json:"spaces,omitempty"`
}

// TableName specifies the table name for the Workspace model
func (Workspace) TableName() string {
	return "workspaces"
}

// BeforeCreate generates the ID if not set
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	ensureID(&w.ID)
	return nil
}

// WorkspaceManager provides Django-like ORM methods for Workspace
type WorkspaceManager struct {
	db *gorm.DB
}

// NewWorkspaceManager creates a new WorkspaceManager instance
func NewWorkspaceManager(db *gorm.DB) *WorkspaceManager {
	return &WorkspaceManager{db: db}
}

// Create creates a new workspace
func (m *WorkspaceManager) Create(workspace *Workspace) error {
	return m.db.Create(workspace).Error
}

// Get retrieves a workspace by ID
func (m *WorkspaceManager) Get(id uuid.UUID) (*Workspace, error) {
	var workspace Workspace
	err := m.db.First(&workspace, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &workspace, nil
}

// Filter retrieves workspaces matching the given conditions
func (m *WorkspaceManager) Filter(conditions interface{}) ([]Workspace, error) {
	var workspaces []Workspace
	err := m.db.Where(conditions).Find(&workspaces).Error
	return workspaces, err
}

// ForAccount retrieves the active workspaces of an account
func (m *WorkspaceManager) ForAccount(accountID uuid.UUID) ([]Workspace, error) {
	var workspaces []Workspace
	err := m.db.Where("account_id = ? AND is_active = ?", accountID, true).Find(&workspaces).Error
	return workspaces, err
}

// Update updates a workspace
func (m *WorkspaceManager) Update(workspace *Workspace) error {
	return m.db.Save(workspace).Error
}

// Deactivate soft deletes a workspace
func (m *WorkspaceManager) Deactivate(id uuid.UUID) error {
	return m.db.Model(&Workspace{}).Where("id = ?", id).Update("is_active", false).Error
}

// Django-like instance methods for Workspace

// Save saves the workspace instance
func (w *Workspace) Save(db *gorm.DB) error {
	return db.Save(w).Error
}

// HasMember checks if a user is an active member of the workspace
func (w *Workspace) HasMember(db *gorm.DB, userID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&WorkspaceMembership{}).
		Where("workspace_id = ? AND user_id = ? AND is_active = ?", w.ID, userID, true).
		Count(&count).Error
	return count > 0, err
}

// GetMemberRole gets a user's role in the workspace
func (w *Workspace) GetMemberRole(db *gorm.DB, userID uuid.UUID) (MembershipRole, error) {
	var membership WorkspaceMembership
	err := db.Where("workspace_id = ? AND user_id = ? AND is_active = ?", w.ID, userID, true).
		First(&membership).Error
	if err != nil {
		return "", err
	}
	return membership.Role, nil
}

// IsOwner checks if a user holds the owner role in the workspace
func (w *Workspace) IsOwner(db *gorm.DB, userID uuid.UUID) (bool, error) {
	role, err := w.GetMemberRole(db, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return role == RoleOwner, nil
}

// GetOwner retrieves the active owner membership of the workspace
func (w *Workspace) GetOwner(db *gorm.DB) (*WorkspaceMembership, error) {
	var membership WorkspaceMembership
	err := db.Where("workspace_id = ? AND role = ? AND is_active = ?", w.ID, RoleOwner, true).
		First(&membership).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}
