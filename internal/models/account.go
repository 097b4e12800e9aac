package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is the billing root of the hierarchy. An account owns one or
// more workspaces; account ownership is independent of workspace roles.
type Account struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"column:name;uniqueIndex;not null" json:"name"`
	OwnerID   uuid.UUID `gorm:"type:uuid;column:owner_id;not null" json:"owner_id"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Owner      User        `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Workspaces []Workspace `gorm:"foreignKey:AccountID" json:"workspaces,omitempty"`
}

// TableName specifies the table name for the Account model
func (Account) TableName() string {
	return "accounts"
}

// BeforeCreate generates the ID if not set
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// AccountManager provides Django-like ORM methods for Account
type AccountManager struct {
	db *gorm.DB
}

// NewAccountManager creates a new AccountManager instance
func NewAccountManager(db *gorm.DB) *AccountManager {
	return &AccountManager{db: db}
}

// Create creates a new account
func (m *AccountManager) Create(account *Account) error {
	return m.db.Create(account).Error
}

// Get retrieves an account by ID
func (m *AccountManager) Get(id uuid.UUID) (*Account, error) {
	var account Account
	err := m.db.First(&account, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetByName retrieves an active account by its globally unique name
func (m *AccountManager) GetByName(name string) (*Account, error) {
	var account Account
	err := m.db.Where("name = ? AND is_active = ?", name, true).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Filter retrieves accounts matching the given conditions
func (m *AccountManager) Filter(conditions interface{}) ([]Account, error) {
	var accounts []Account
	err := m.db.Where(conditions).Find(&accounts).Error
	return accounts, err
}

// Update updates an account
func (m *AccountManager) Update(account *Account) error {
	return m.db.Save(account).Error
}

// SetOwner rewrites the account owner column
func (m *AccountManager) SetOwner(id, ownerID uuid.UUID) error {
	return m.db.Model(&Account{}).Where("id = ?", id).Update("owner_id", ownerID).Error
}
