package models

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection and all model managers
type DB struct {
	*gorm.DB
	Users             *UserManager
	Accounts          *AccountManager
	Workspaces        *WorkspaceManager
	Memberships       *WorkspaceMembershipManager
	Spaces            *SpaceManager
	SpacePermissions  *SpacePermissionManager
	Folders           *FolderManager
	FolderPermissions *FolderPermissionManager
	Lists             *ListManager
	ListPermissions   *ListPermissionManager
	Tasks             *TaskManager
	TaskAssignees     *TaskAssigneeManager
}

// NewDB opens a postgres connection through the pgx stdlib driver and
// initializes all managers
func NewDB() (*DB, error) {
	dsn := os.Getenv("DB_STRING")
	if dsn == "" {
		return nil, fmt.Errorf("DB_STRING environment variable not set")
	}

	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return Wrap(gormDB), nil
}

// Wrap builds the DB aggregate around an existing gorm connection.
// Tests use this with an in-memory dialector.
func Wrap(gormDB *gorm.DB) *DB {
	return &DB{
		DB:                gormDB,
		Users:             NewUserManager(gormDB),
		Accounts:          NewAccountManager(gormDB),
		Workspaces:        NewWorkspaceManager(gormDB),
		Memberships:       NewWorkspaceMembershipManager(gormDB),
		Spaces:            NewSpaceManager(gormDB),
		SpacePermissions:  NewSpacePermissionManager(gormDB),
		Folders:           NewFolderManager(gormDB),
		FolderPermissions: NewFolderPermissionManager(gormDB),
		Lists:             NewListManager(gormDB),
		ListPermissions:   NewListPermissionManager(gormDB),
		Tasks:             NewTaskManager(gormDB),
		TaskAssignees:     NewTaskAssigneeManager(gormDB),
	}
}

// WithContext rebinds the aggregate and its managers to ctx.
func (db *DB) WithContext(ctx context.Context) *DB {
	return Wrap(db.DB.WithContext(ctx))
}

// AutoMigrate runs GORM auto-migration for all models
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&User{},
		&Account{},
		&Workspace{},
		&WorkspaceMembership{},
		&Space{},
		&SpacePermission{},
		&Folder{},
		&FolderPermission{},
		&List{},
		&ListPermission{},
		&Task{},
		&TaskAssignee{},
	)
}

// Transaction runs a function within a database transaction. The
// callback receives a DB whose managers are bound to the transaction.
func (db *DB) Transaction(fn func(*DB) error) error {
	return db.DB.Transaction(func(tx *gorm.DB) error {
		return fn(Wrap(tx))
	})
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Django-like convenience methods

// Exists checks if a record exists (similar to Django's exists())
func Exists[T any](db *gorm.DB, query string, args ...interface{}) (bool, error) {
	var count int64
	err := db.Model(new(T)).Where(query, args...).Count(&count).Error
	return count > 0, err
}

// Count returns the count of records (similar to Django's count())
func Count[T any](db *gorm.DB, query string, args ...interface{}) (int64, error) {
	var count int64
	err := db.Model(new(T)).Where(query, args...).Count(&count).Error
	return count, err
}

// BulkCreate creates multiple records (similar to Django's bulk_create)
func BulkCreate[T any](db *gorm.DB, objects []T) error {
	if len(objects) == 0 {
		return nil
	}
	return db.CreateInBatches(objects, 100).Error
}
