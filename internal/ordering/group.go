package ordering

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"taskdeck/internal/apperr"
	"taskdeck/internal/models"
)

// Group identifies one sibling group: the set of entities sharing the
// same immediate parent and the same active predicate, over which a
// dense 1..N sort order is maintained. A list nested under a folder and
// a list directly under the space belong to different groups even when
// they share a space.
type Group struct {
	key    string
	entity apperr.EntityKind
	model  interface{}
	scope  func(*gorm.DB) *gorm.DB
	remove map[string]interface{}
}

// Key returns a stable identifier for the group, used for per-group
// serialization.
func (g Group) Key() string {
	return g.key
}

func (g Group) query(db *gorm.DB) *gorm.DB {
	return g.scope(db.Model(g.model))
}

// SpacesOf is the group of active spaces in a workspace.
func SpacesOf(workspaceID uuid.UUID) Group {
	return Group{
		key:    fmt.Sprintf("spaces:%s", workspaceID),
		entity: apperr.EntitySpace,
		model:  &models.Space{},
		scope: func(db *gorm.DB) *gorm.DB {
			return db.Where("workspace_id = ? AND is_active = ?", workspaceID, true)
		},
		remove: map[string]interface{}{"is_active": false},
	}
}

// FoldersOf is the group of active folders in a space.
func FoldersOf(spaceID uuid.UUID) Group {
	return Group{
		key:    fmt.Sprintf("folders:%s", spaceID),
		entity: apperr.EntityFolder,
		model:  &models.Folder{},
		scope: func(db *gorm.DB) *gorm.DB {
			return db.Where("space_id = ? AND is_active = ?", spaceID, true)
		},
		remove: map[string]interface{}{"is_active": false},
	}
}

// ListsOf is the group of active lists under one folder, or under the
// folderless area of a space when folderID is nil.
func ListsOf(spaceID uuid.UUID, folderID *uuid.UUID) Group {
	key := fmt.Sprintf("lists:%s:root", spaceID)
	if folderID != nil {
		key = fmt.Sprintf("lists:%s:%s", spaceID, *folderID)
	}
	return Group{
		key:    key,
		entity: apperr.EntityList,
		model:  &models.List{},
		scope: func(db *gorm.DB) *gorm.DB {
			db = db.Where("space_id = ? AND is_active = ?", spaceID, true)
			if folderID == nil {
				return db.Where("folder_id IS NULL")
			}
			return db.Where("folder_id = ?", *folderID)
		},
		remove: map[string]interface{}{"is_active": false},
	}
}

// TasksOf is the group of non-deleted tasks in a list.
func TasksOf(listID uuid.UUID) Group {
	return Group{
		key:    fmt.Sprintf("tasks:%s", listID),
		entity: apperr.EntityTask,
		model:  &models.Task{},
		scope: func(db *gorm.DB) *gorm.DB {
			return db.Where("list_id = ? AND is_deleted = ?", listID, false)
		},
		remove: map[string]interface{}{"is_deleted": true},
	}
}
