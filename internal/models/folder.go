package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Folder groups lists inside a space. Active folders of a space carry a
// dense sort_order starting at 1.
type Folder struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SpaceID   uuid.UUID `gorm:"type:uuid;column:space_id;not null;index" json:"space_id"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	Order     int       `gorm:"column:sort_order;not null" json:"order"`
	IsPrivate bool      `gorm:"column:is_private;default:false" json:"is_private"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedBy uuid.UUID `gorm:"type:uuid;column:created_by;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Space Space  `gorm:"foreignKey:SpaceID" json:"space,omitempty"`
	Lists []List `gorm:"foreignKey:FolderID" json:"lists,omitempty"`
}

// TableName specifies the table name for the Folder model
func (Folder) TableName() string {
	return "folders"
}

// BeforeCreate generates the ID if not set
func (f *Folder) BeforeCreate(tx *gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

// FolderPermission is the object-level grant table for folders,
// analogous to SpacePermission.
type FolderPermission struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	FolderID  uuid.UUID       `gorm:"type:uuid;column:folder_id;not null;uniqueIndex:idx_folder_user" json:"folder_id"`
	UserID    uuid.UUID       `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_folder_user" json:"user_id"`
	Level     PermissionLevel `gorm:"column:level;not null" json:"level"`
	IsActive  bool            `gorm:"column:is_active;default:true" json:"is_active"`
	AddedBy   *uuid.UUID      `gorm:"type:uuid;column:added_by" json:"added_by,omitempty"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for the FolderPermission model
func (FolderPermission) TableName() string {
	return "folder_permissions"
}

// BeforeCreate generates the ID if not set
func (fp *FolderPermission) BeforeCreate(tx *gorm.DB) error {
	ensureID(&fp.ID)
	return nil
}

// FolderManager provides Django-like ORM methods for Folder
type FolderManager struct {
	db *gorm.DB
}

// NewFolderManager creates a new FolderManager instance
func NewFolderManager(db *gorm.DB) *FolderManager {
	return &FolderManager{db: db}
}

// Create creates a new folder
func (m *FolderManager) Create(folder *Folder) error {
	return m.db.Create(folder).Error
}

// Get retrieves a folder by ID
func (m *FolderManager) Get(id uuid.UUID) (*Folder, error) {
	var folder Folder
	err := m.db.First(&folder, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &folder, nil
}

// ForSpace retrieves the active folders of a space ordered by position
func (m *FolderManager) ForSpace(spaceID uuid.UUID) ([]Folder, error) {
	var folders []Folder
	err := m.db.Where("space_id = ? AND is_active = ?", spaceID, true).
		Order("sort_order ASC").Find(&folders).Error
	return folders, err
}

// Update updates a folder
func (m *FolderManager) Update(folder *Folder) error {
	return m.db.Save(folder).Error
}

// SetPrivate flips the visibility flag
func (m *FolderManager) SetPrivate(id uuid.UUID, private bool) error {
	return m.db.Model(&Folder{}).Where("id = ?", id).Update("is_private", private).Error
}

// FolderPermissionManager provides Django-like ORM methods for FolderPermission
type FolderPermissionManager struct {
	db *gorm.DB
}

// NewFolderPermissionManager creates a new FolderPermissionManager instance
func NewFolderPermissionManager(db *gorm.DB) *FolderPermissionManager {
	return &FolderPermissionManager{db: db}
}

// Upsert writes a grant idempotently for the (folder, user) pair.
func (m *FolderPermissionManager) Upsert(perm *FolderPermission) error {
	return m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "folder_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"level":      perm.Level,
			"is_active":  perm.IsActive,
			"added_by":   perm.AddedBy,
			"updated_at": time.Now(),
		}),
	}).Create(perm).Error
}

// GetActive retrieves the active grant for a (folder, user) pair
func (m *FolderPermissionManager) GetActive(folderID, userID uuid.UUID) (*FolderPermission, error) {
	var perm FolderPermission
	err := m.db.Where("folder_id = ? AND user_id = ? AND is_active = ?", folderID, userID, true).
		First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// Revoke disables the grant for a (folder, user) pair
func (m *FolderPermissionManager) Revoke(folderID, userID uuid.UUID) error {
	return m.db.Model(&FolderPermission{}).
		Where("folder_id = ? AND user_id = ?", folderID, userID).
		Update("is_active", false).Error
}
