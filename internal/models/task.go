package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Task is the leaf of the hierarchy. Tasks have no permission table of
// their own; access is inherited from the owning list. Non-deleted
// tasks of a list carry a dense sort_order starting at 1.
type Task struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ListID      uuid.UUID `gorm:"type:uuid;column:list_id;not null;index" json:"list_id"`
	Title       string    `gorm:"column:title;not null" json:"title"`
	Description string    `gorm:"column:description" json:"description"`
	Order       int       `gorm:"column:sort_order;not null" json:"order"`
	IsDeleted   bool      `gorm:"column:is_deleted;default:false" json:"is_deleted"`
	CreatedBy   uuid.UUID `gorm:"type:uuid;column:created_by;not null" json:"created_by"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updated_at"`

	// Associations
	List      List           `gorm:"foreignKey:ListID" json:"list,omitempty"`
	Assignees []TaskAssignee `gorm:"foreignKey:TaskID" json:"assignees,omitempty"`
}

// TableName specifies the table name for the Task model
func (Task) TableName() string {
	return "tasks"
}

// BeforeCreate generates the ID if not set
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// TaskAssignee links a user to a task.
type TaskAssignee struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TaskID     uuid.UUID  `gorm:"type:uuid;column:task_id;not null;uniqueIndex:idx_task_user" json:"task_id"`
	UserID     uuid.UUID  `gorm:"type:uuid;column:user_id;not null;uniqueIndex:idx_task_user" json:"user_id"`
	IsActive   bool       `gorm:"column:is_active;default:true" json:"is_active"`
	AssignedBy *uuid.UUID `gorm:"type:uuid;column:assigned_by" json:"assigned_by,omitempty"`
	CreatedAt  time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

// TableName specifies the table name for the TaskAssignee model
func (TaskAssignee) TableName() string {
	return "task_assignees"
}

// BeforeCreate generates the ID if not set
func (ta *TaskAssignee) BeforeCreate(tx *gorm.DB) error {
	ensureID(&ta.ID)
	return nil
}

// TaskManager provides Django-like ORM methods for Task
type TaskManager struct {
	db *gorm.DB
}

// NewTaskManager creates a new TaskManager instance
func NewTaskManager(db *gorm.DB) *TaskManager {
	return &TaskManager{db: db}
}

// Create creates a new task
func (m *TaskManager) Create(task *Task) error {
	return m.db.Create(task).Error
}

// Get retrieves a task by ID
func (m *TaskManager) Get(id uuid.UUID) (*Task, error) {
	var task Task
	err := m.db.First(&task, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// ForList retrieves the non-deleted tasks of a list ordered by position
func (m *TaskManager) ForList(listID uuid.UUID) ([]Task, error) {
	var tasks []Task
	err := m.db.Where("list_id = ? AND is_deleted = ?", listID, false).
		Order("sort_order ASC").Find(&tasks).Error
	return tasks, err
}

// Update updates a task
func (m *TaskManager) Update(task *Task) error {
	return m.db.Save(task).Error
}

// TaskAssigneeManager provides Django-like ORM methods for TaskAssignee
type TaskAssigneeManager struct {
	db *gorm.DB
}

// NewTaskAssigneeManager creates a new TaskAssigneeManager instance
func NewTaskAssigneeManager(db *gorm.DB) *TaskAssigneeManager {
	return &TaskAssigneeManager{db: db}
}

// Upsert writes an assignment idempotently for the (task, user) pair.
func (m *TaskAssigneeManager) Upsert(assignee *TaskAssignee) error {
	return m.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "task_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_active":   assignee.IsActive,
			"assigned_by": assignee.AssignedBy,
			"updated_at":  time.Now(),
		}),
	}).Create(assignee).Error
}

// ForTask retrieves the active assignees of a task
func (m *TaskAssigneeManager) ForTask(taskID uuid.UUID) ([]TaskAssignee, error) {
	var assignees []TaskAssignee
	err := m.db.Where("task_id = ? AND is_active = ?", taskID, true).Find(&assignees).Error
	return assignees, err
}

// Unassign disables the assignment for a (task, user) pair
func (m *TaskAssigneeManager) Unassign(taskID, userID uuid.UUID) error {
	return m.db.Model(&TaskAssignee{}).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		Update("is_active", false).Error
}
