package model

import (
	"time"

	"gorm.io/gorm"
)

// Priority of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// ValidPriority reports whether p is one of the closed priority set.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Status of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusDone       Status = "done"
)

// ValidStatus reports whether s is one of the closed status set.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusReview, StatusDone:
		return true
	}
	return false
}

// Task is scoped to one tenant partition. The creator, assignee and parent
// task must all belong to the same partition as the task itself.
type Task struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	TenantID     uint       `json:"tenant_id" gorm:"index;not null"`
	Title        string     `json:"title" gorm:"type:varchar(200);not null"`
	Description  string     `json:"description" gorm:"type:text"`
	Priority     Priority   `json:"priority" gorm:"type:varchar(10);not null;default:'medium'"`
	Status       Status     `json:"status" gorm:"type:varchar(20);not null;default:'todo'"`
	CreatedByID  uint       `json:"created_by" gorm:"index;not null"`
	AssignedToID *uint      `json:"assigned_to,omitempty" gorm:"index"`
	ParentTaskID *uint      `json:"parent_task,omitempty" gorm:"index"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	CreatedBy   *User            `json:"-" gorm:"foreignKey:CreatedByID;constraint:OnDelete:CASCADE"`
	AssignedTo  *User            `json:"-" gorm:"foreignKey:AssignedToID;constraint:OnDelete:SET NULL"`
	ParentTask  *Task            `json:"-" gorm:"foreignKey:ParentTaskID;constraint:OnDelete:CASCADE"`
	Comments    []TaskComment    `json:"comments,omitempty" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
	Attachments []TaskAttachment `json:"attachments,omitempty" gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE"`
}

// BeforeSave latches the completion timestamp the first time status reaches
// done. It is never cleared or moved afterwards, even if the task is reopened
// and completed again.
func (t *Task) BeforeSave(tx *gorm.DB) error {
	if t.Status == StatusDone && t.CompletedAt == nil {
		now := time.Now().UTC()
		t.CompletedAt = &now
	}
	return nil
}

// TaskComment is owned by exactly one task and cascades with it.
type TaskComment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	TaskID    uint      `json:"task_id" gorm:"index;not null"`
	TenantID  uint      `json:"tenant_id" gorm:"index;not null"`
	UserID    uint      `json:"user_id" gorm:"index;not null"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskAttachment records uploaded-file metadata for a task. Storage of the
// file bytes themselves happens elsewhere.
type TaskAttachment struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	TaskID       uint      `json:"task_id" gorm:"index;not null"`
	TenantID     uint      `json:"tenant_id" gorm:"index;not null"`
	UploadedByID uint      `json:"uploaded_by" gorm:"index;not null"`
	FileName     string    `json:"file_name" gorm:"type:varchar(255);not null"`
	Description  string    `json:"description" gorm:"type:varchar(200)"`
	UploadedAt   time.Time `json:"uploaded_at" gorm:"autoCreateTime"`
}
