package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a user in the system
type User struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"column:name;not null" json:"name"`
	IsActive  bool      `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	Memberships []WorkspaceMembership `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// BeforeCreate generates the ID if not set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}

// UserManager provides Django-like ORM methods for User
type UserManager struct {
	db *gorm.DB
}

// NewUserManager creates a new UserManager instance
func NewUserManager(db *gorm.DB) *UserManager {
	return &UserManager{db: db}
}

// Create creates a new user
func (m *UserManager) Create(user *User) error {
	return m.db.Create(user).Error
}

// Get retrieves a user by ID
func (m *UserManager) Get(id uuid.UUID) (*User, error) {
	var user User
	err := m.db.First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email
func (m *UserManager) GetByEmail(email string) (*User, error) {
	var user User
	err := m.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Filter retrieves users matching the given conditions
func (m *UserManager) Filter(conditions interface{}) ([]User, error) {
	var users []User
	err := m.db.Where(conditions).Find(&users).Error
	return users, err
}

// Update updates a user
func (m *UserManager) Update(user *User) error {
	return m.db.Save(user).Error
}

// Deactivate disables a user account
func (m *UserManager) Deactivate(id uuid.UUID) error {
	return m.db.Model(&User{}).Where("id = ?", id).Update("is_active", false).Error
}
