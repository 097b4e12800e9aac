package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Space is the top structural container inside a workspace. Active
// spaces of a workspace carry a dense sort_order starting at 1.
type Space struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID `gorm:"type:uuid;column:workspace_id;not null;index" json:"workspace_id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Order       int       `gorm:"column:sort_order;not null" json:"order"`
	IsPrivate   bool      `gorm:"column:is_private;default:false" json:"is_private"`
	IsActive    bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;column:created_by;not null" json:"created_by"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Workspace   Workspace         `gorm:"foreignKey:WorkspaceID" json:"workspace,omitempty"`
	Folders     []Folder          `gorm:"foreignKey:SpaceID" json:"folders,omitempty"`
	Lists       []List            `gorm:"foreignKey:SpaceID" json:"lists,omitempty"`
	Permissions []SpacePermission `gorm:"foreignKey:SpaceID" json:"permissions,omitempty"`
}

// TableName specifies the table name for the Space model
func (Space) TableName() string {
	return "spaces"
}

// BeforeCreate generates the ID if not set
func (s *Space) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// SpacePermission is an object-level grant that overrides the
// role-derived default access for one user on one space.
type SpacePermission struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SpaceID   uuid.UUID       `gorm:"type:uuid;column:space_id;not null;uniqueIndex:idx_space_user" json:"space_id"`
	UserID    uuid.UUID       `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_space_user" json:"user_id"`
	Level     PermissionLevel `gorm:"column:level;not null" json:"level"`
	IsActive  bool            `gorm:"column:is_active;default:true" json:"is_active"`
	AddedBy   *uuid.UUID      `gorm:"type:uuid;column:added_by" json:"added_by,omitempty"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for the SpacePermission model
func (SpacePermission) TableName() string {
	return "space_permissions"
}

// BeforeCreate generates the ID if not set
func (sp *SpacePermission) BeforeCreate(tx *gorm.DB) error {
	ensureID(&sp.ID)
	return nil
}

// SpaceManager provides Django-like ORM methods for Space
type SpaceManager struct {
	db *gorm.DB
}

// NewSpaceManager creates a new SpaceManager instance
func NewSpaceManager(db *gorm.DB) *SpaceManager {
	return &SpaceManager{db: db}
}

// Create creates a new space
func (m *SpaceManager) Create(space *Space) error {
	return m.db.Create(space).Error
}

// Get retrieves a space by ID
func (m *SpaceManager) Get(id uuid.UUID) (*Space, error) {
	var space Space
	err := m.db.First(&space, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &space, nil
}

// ForWorkspace retrieves the active spaces of a workspace ordered by position
func (m *SpaceManager) ForWorkspace(workspaceID uuid.UUID) ([]Space, error) {
	var spaces []Space
	err := m.db.Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("sort_order ASC").Find(&spaces).Error
	return spaces, err
}

// Update updates a space
func (m *SpaceManager) Update(space *Space) error {
	return m.db.Save(space).Error
}

// SetPrivate flips the visibility flag
func (m *SpaceManager) SetPrivate(id uuid.UUID, private bool) error {
	return m.db.Model(&Space{}).Where("id = ?", id).Update("is_private", private).Error
}

// SpacePermissionManager provides Django-like ORM methods for SpacePermission
type SpacePermissionManager struct {
	db *gorm.DB
}

// NewSpacePermissionManager creates a new SpacePermissionManager instance
func NewSpacePermissionManager(db *gorm.DB) *SpacePermissionManager {
	return &SpacePermissionManager{db: db}
}

// Upsert writes a grant idempotently for the (space, user) pair.
func (m *SpacePermissionManager) Upsert(perm *SpacePermission) error {
	return m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "space_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"level":      perm.Level,
			"is_active":  perm.IsActive,
			"added_by":   perm.AddedBy,
			"updated_at": time.Now(),
		}),
	}).Create(perm).Error
}

// GetActive retrieves the active grant for a (space, user) pair
func (m *SpacePermissionManager) GetActive(spaceID, userID uuid.UUID) (*SpacePermission, error) {
	var perm SpacePermission
	err := m.db.Where("space_id = ? AND user_id = ? AND is_active = ?", spaceID, userID, true).
		First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// Revoke disables the grant for a (space, user) pair
func (m *SpacePermissionManager) Revoke(spaceID, userID uuid.UUID) error {
	return m.db.Model(&SpacePermission{}).
		Where("space_id = ? AND user_id = ?", spaceID, userID).
		Update("is_active", false).Error
}
