package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// List holds tasks. It always belongs to a space and may optionally be
// nested under a folder of that space. Lists directly under the space
// (folder_id NULL) and lists under a given folder are distinct sibling
// groups, each with its own dense sort_order.
type List struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SpaceID   uuid.UUID  `gorm:"type:uuid;column:space_id;not null;index" json:"space_id"`
	FolderID  *uuid.UUID `gorm:"type:uuid;column:folder_id;index" json:"folder_id,omitempty"`
	Name      string     `gorm:"column:name;not null" json:"name"`
	Order     int        `gorm:"column:sort_order;not null" json:"order"`
	IsPrivate bool       `gorm:"column:is_private;default:false" json:"is_private"`
	IsActive  bool       `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedBy uuid.UUID  `gorm:"type:uuid;column:created_by;not null" json:"created_by"`
	CreatedAt time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Space  Space   `gorm:"foreignKey:SpaceID" json:"space,omitempty"`
	Folder *Folder `gorm:"foreignKey:FolderID" json:"folder,omitempty"`
	Tasks  []Task  `gorm:"foreignKey:ListID" json:"tasks,omitempty"`
}

// TableName specifies the table name for the List model
func (List) TableName() string {
	return "lists"
}

// BeforeCreate generates the ID if not set
func (l *List) BeforeCreate(tx *gorm.DB) error {
	ensureID(&l.ID)
	return nil
}

// ListPermission is the object-level grant table for lists.
type ListPermission struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	ListID    uuid.UUID       `gorm:"type:uuid;column:list_id;not null;uniqueIndex:idx_list_user" json:"list_id"`
	UserID    uuid.UUID       `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_list_user" json:"user_id"`
	Level     PermissionLevel `gorm:"column:level;not null" json:"level"`
	IsActive  bool            `gorm:"column:is_active;default:true" json:"is_active"`
	AddedBy   *uuid.UUID      `gorm:"type:uuid;column:added_by" json:"added_by,omitempty"`
	CreatedAt time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for the ListPermission model
func (ListPermission) TableName() string {
	return "list_permissions"
}

// BeforeCreate generates the ID if not set
func (lp *ListPermission) BeforeCreate(tx *gorm.DB) error {
	ensureID(&lp.ID)
	return nil
}

// ListManager provides Django-like ORM methods for List
type ListManager struct {
	db *gorm.DB
}

// NewListManager creates a new ListManager instance
func NewListManager(db *gorm.DB) *ListManager {
	return &ListManager{db: db}
}

// Create creates a new list
func (m *ListManager) Create(list *List) error {
	return m.db.Create(list).Error
}

// Get retrieves a list by ID
func (m *ListManager) Get(id uuid.UUID) (*List, error) {
	var list List
	err := m.db.First(&list, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &list, nil
}

// ForSiblingGroup retrieves the active lists of one sibling group
// (a folder, or the folderless area of a space) ordered by position.
func (m *ListManager) ForSiblingGroup(spaceID uuid.UUID, folderID *uuid.UUID) ([]List, error) {
	var lists []List
	q := m.db.Where("space_id = ? AND is_active = ?", spaceID, true)
	if folderID == nil {
		q = q.Where("folder_id IS NULL")
	} else {
		q = q.Where("folder_id = ?", *folderID)
	}
	err := q.Order("sort_order ASC").Find(&lists).Error
	return lists, err
}

// Update updates a list
func (m *ListManager) Update(list *List) error {
	return m.db.Save(list).Error
}

// SetPrivate flips the visibility flag
func (m *ListManager) SetPrivate(id uuid.UUID, private bool) error {
	return m.db.Model(&List{}).Where("id = ?", id).Update("is_private", private).Error
}

// ListPermissionManager provides Django-like ORM methods for ListPermission
type ListPermissionManager struct {
	db *gorm.DB
}

// NewListPermissionManager creates a new ListPermissionManager instance
func NewListPermissionManager(db *gorm.DB) *ListPermissionManager {
	return &ListPermissionManager{db: db}
}

// Upsert writes a grant idempotently for the (list, user) pair.
func (m *ListPermissionManager) Upsert(perm *ListPermission) error {
	return m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "list_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"level":      perm.Level,
			"is_active":  perm.IsActive,
			"added_by":   perm.AddedBy,
			"updated_at": time.Now(),
		}),
	}).Create(perm).Error
}

// GetActive retrieves the active grant for a (list, user) pair
func (m *ListPermissionManager) GetActive(listID, userID uuid.UUID) (*ListPermission, error) {
	var perm ListPermission
	err := m.db.Where("list_id = ? AND user_id = ? AND is_active = ?", listID, userID, true).
		First(&perm).Error
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// Revoke disables the grant for a (list, user) pair
func (m *ListPermissionManager) Revoke(listID, userID uuid.UUID) error {
	return m.db.Model(&ListPermission{}).
		Where("list_id = ? AND user_id = ?", listID, userID).
		Update("is_active", false).Error
}
