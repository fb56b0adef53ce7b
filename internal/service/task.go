package service

import (
	"errors"
	"time"

	"task-service/internal/apperr"
	"task-service/internal/model"
	"task-service/internal/partition"
	"task-service/internal/policy"

	"gorm.io/gorm"
)

// TaskFilters narrows task list results. All filters apply on top of the
// policy visibility predicate, never instead of it.
type TaskFilters struct {
	Status     string
	Priority   string
	AssignedTo *uint
}

// TaskInput is the payload for task creation.
type TaskInput struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	AssignedToID *uint      `json:"assigned_to,omitempty"`
	ParentTaskID *uint      `json:"parent_task,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

// TaskUpdate is the payload for partial task updates. Nil fields are left
// untouched; Unassign clears the assignee.
type TaskUpdate struct {
	Title        string     `json:"title"`
	Description  *string    `json:"description,omitempty"`
	Priority     string     `json:"priority"`
	Status       string     `json:"status"`
	AssignedToID *uint      `json:"assigned_to,omitempty"`
	Unassign     bool       `json:"unassign,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
}

// ListTasks returns the tasks visible to p within the active partition.
func ListTasks(pc *partition.Context, p *policy.Principal, f TaskFilters) ([]model.Task, error) {
	if d := policy.Authorize(p, policy.ActionList, policy.KindTask, nil); !d.Allowed {
		return nil, denied(d)
	}

	q := pc.DB().Scopes(policy.VisibilityFilter(p, policy.KindTask))
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Priority != "" {
		q = q.Where("priority = ?", f.Priority)
	}
	if f.AssignedTo != nil {
		q = q.Where("assigned_to_id = ?", *f.AssignedTo)
	}

	var tasks []model.Task
	if err := q.Order("created_at DESC").Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

// CreateTask creates a task owned by the active partition with p as creator.
func CreateTask(pc *partition.Context, p *policy.Principal, in TaskInput) (*model.Task, error) {
	if d := policy.Authorize(p, policy.ActionCreate, policy.KindTask, nil); !d.Allowed {
		return nil, denied(d)
	}

	if in.Title == "" {
		return nil, apperr.Validation("title", "is required")
	}
	if len(in.Title) > 200 {
		return nil, apperr.Validation("title", "must be at most 200 characters")
	}
	priority := model.Priority(in.Priority)
	if in.Priority == "" {
		priority = model.PriorityMedium
	} else if !model.ValidPriority(priority) {
		return nil, apperr.Validation("priority", "must be one of low, medium, high, urgent")
	}
	status := model.Status(in.Status)
	if in.Status == "" {
		status = model.StatusTodo
	} else if !model.ValidStatus(status) {
		return nil, apperr.Validation("status", "must be one of todo, in_progress, review, done")
	}

	if err := checkTaskRefs(pc, in.AssignedToID, in.ParentTaskID); err != nil {
		return nil, err
	}

	task := model.Task{
		Title:        in.Title,
		Description:  in.Description,
		Priority:     priority,
		Status:       status,
		CreatedByID:  p.UserID,
		AssignedToID: in.AssignedToID,
		ParentTaskID: in.ParentTaskID,
		DueDate:      in.DueDate,
	}
	if err := pc.Create(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask returns one task by id if it exists in the partition and p may
// read it. A task p cannot read is reported exactly like one that does not
// exist.
func GetTask(pc *partition.Context, p *policy.Principal, id uint) (*model.Task, error) {
	task, err := fetchTask(pc, id)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionRead, policy.KindTask, task); !d.Allowed {
		return nil, conceal(d)
	}
	return task, nil
}

// UpdateTask applies a partial update to a task p may edit.
func UpdateTask(pc *partition.Context, p *policy.Principal, id uint, in TaskUpdate) (*model.Task, error) {
	task, err := fetchTask(pc, id)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionUpdate, policy.KindTask, task); !d.Allowed {
		return nil, conceal(d)
	}

	if in.Title != "" {
		if len(in.Title) > 200 {
			return nil, apperr.Validation("title", "must be at most 200 characters")
		}
		task.Title = in.Title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Priority != "" {
		if !model.ValidPriority(model.Priority(in.Priority)) {
			return nil, apperr.Validation("priority", "must be one of low, medium, high, urgent")
		}
		task.Priority = model.Priority(in.Priority)
	}
	if in.Status != "" {
		if !model.ValidStatus(model.Status(in.Status)) {
			return nil, apperr.Validation("status", "must be one of todo, in_progress, review, done")
		}
		task.Status = model.Status(in.Status)
	}
	if in.Unassign {
		task.AssignedToID = nil
	} else if in.AssignedToID != nil {
		if err := checkTaskRefs(pc, in.AssignedToID, nil); err != nil {
			return nil, err
		}
		task.AssignedToID = in.AssignedToID
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}

	if err := pc.DB().Save(task).Error; err != nil {
		return nil, err
	}
	return task, nil
}

// DeleteTask removes a task. Only the creator or an admin may delete;
// assignment alone grants edit rights, not destroy rights.
func DeleteTask(pc *partition.Context, p *policy.Principal, id uint) error {
	task, err := fetchTask(pc, id)
	if err != nil {
		return err
	}
	if d := policy.Authorize(p, policy.ActionDelete, policy.KindTask, task); !d.Allowed {
		return conceal(d)
	}
	return pc.DB().Delete(&model.Task{}, task.ID).Error
}

// AddComment appends a comment to a task p may edit.
func AddComment(pc *partition.Context, p *policy.Principal, taskID uint, content string) (*model.TaskComment, error) {
	task, err := fetchTask(pc, taskID)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionCreate, policy.KindComment, task); !d.Allowed {
		return nil, conceal(d)
	}
	if content == "" {
		return nil, apperr.Validation("content", "is required")
	}

	comment := model.TaskComment{
		TaskID:  task.ID,
		UserID:  p.UserID,
		Content: content,
	}
	if err := pc.Create(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

// ListComments returns a task's comments, oldest first.
func ListComments(pc *partition.Context, p *policy.Principal, taskID uint) ([]model.TaskComment, error) {
	task, err := fetchTask(pc, taskID)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionRead, policy.KindTask, task); !d.Allowed {
		return nil, conceal(d)
	}

	var comments []model.TaskComment
	err = pc.DB().Where("task_id = ?", task.ID).Order("created_at ASC").Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

// AttachmentInput is the metadata recorded for an uploaded file.
type AttachmentInput struct {
	FileName    string `json:"file_name"`
	Description string `json:"description"`
}

// AddAttachment records attachment metadata on a task p may edit.
func AddAttachment(pc *partition.Context, p *policy.Principal, taskID uint, in AttachmentInput) (*model.TaskAttachment, error) {
	task, err := fetchTask(pc, taskID)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionCreate, policy.KindAttachment, task); !d.Allowed {
		return nil, conceal(d)
	}
	if in.FileName == "" {
		return nil, apperr.Validation("file_name", "is required")
	}
	if len(in.Description) > 200 {
		return nil, apperr.Validation("description", "must be at most 200 characters")
	}

	att := model.TaskAttachment{
		TaskID:       task.ID,
		UploadedByID: p.UserID,
		FileName:     in.FileName,
		Description:  in.Description,
	}
	if err := pc.Create(&att).Error; err != nil {
		return nil, err
	}
	return &att, nil
}

// ListAttachments returns a task's attachment records.
func ListAttachments(pc *partition.Context, p *policy.Principal, taskID uint) ([]model.TaskAttachment, error) {
	task, err := fetchTask(pc, taskID)
	if err != nil {
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionRead, policy.KindTask, task); !d.Allowed {
		return nil, conceal(d)
	}

	var atts []model.TaskAttachment
	err = pc.DB().Where("task_id = ?", task.ID).Order("uploaded_at ASC").Find(&atts).Error
	if err != nil {
		return nil, err
	}
	return atts, nil
}

func fetchTask(pc *partition.Context, id uint) (*model.Task, error) {
	var task model.Task
	err := pc.DB().Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

// checkTaskRefs verifies assignee and parent references resolve inside the
// active partition. References into another partition look exactly like
// references to nothing.
func checkTaskRefs(pc *partition.Context, assigneeID, parentID *uint) error {
	if assigneeID != nil {
		var count int64
		if err := pc.Model(&model.User{}).Where("id = ?", *assigneeID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperr.Validation("assigned_to", "no such user")
		}
	}
	if parentID != nil {
		var count int64
		if err := pc.Model(&model.Task{}).Where("id = ?", *parentID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return apperr.Validation("parent_task", "no such task")
		}
	}
	return nil
}
