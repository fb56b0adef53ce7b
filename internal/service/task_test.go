package service_test

import (
	"context"
	"testing"
	"time"

	"task-service/internal/apperr"
	"task-service/internal/model"
	"task-service/internal/partition"
	"task-service/internal/policy"
	"task-service/internal/service"
	"task-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type taskFixture struct {
	db      *gorm.DB
	manager *partition.Manager
	tenant  *model.Tenant
	other   *model.Tenant
	admin   *model.User
	mgr     *model.User
	emp     *model.User
	foreign *model.User
}

func newTaskFixture(t *testing.T) *taskFixture {
	db := testutil.NewDB(t)
	ten := testutil.SeedTenant(t, db, "acme", "acme.example.com")
	other := testutil.SeedTenant(t, db, "globex", "globex.example.com")
	return &taskFixture{
		db:      db,
		manager: partition.NewManager(db),
		tenant:  ten,
		other:   other,
		admin:   testutil.SeedUser(t, db, ten.ID, "admin@acme.test", model.RoleAdmin),
		mgr:     testutil.SeedUser(t, db, ten.ID, "mgr@acme.test", model.RoleManager),
		emp:     testutil.SeedUser(t, db, ten.ID, "emp@acme.test", model.RoleEmployee),
		foreign: testutil.SeedUser(t, db, other.ID, "emp@globex.test", model.RoleEmployee),
	}
}

func (f *taskFixture) run(t *testing.T, fn func(pc *partition.Context) error) {
	t.Helper()
	require.NoError(t, f.manager.Run(context.Background(), "acme", fn))
}

func principalFor(u *model.User) *policy.Principal {
	return &policy.Principal{
		UserID:        u.ID,
		Email:         u.Email,
		Role:          u.Role,
		TenantID:      u.TenantID,
		Authenticated: true,
	}
}

func TestCreateTaskValidation(t *testing.T) {
	f := newTaskFixture(t)
	p := principalFor(f.emp)

	f.run(t, func(pc *partition.Context) error {
		_, err := service.CreateTask(pc, p, service.TaskInput{})
		_, ok := apperr.AsValidation(err)
		assert.True(t, ok, "missing title must fail validation")

		_, err = service.CreateTask(pc, p, service.TaskInput{Title: "x", Priority: "critical"})
		_, ok = apperr.AsValidation(err)
		assert.True(t, ok, "unknown priority must fail validation")

		_, err = service.CreateTask(pc, p, service.TaskInput{Title: "x", Status: "archived"})
		_, ok = apperr.AsValidation(err)
		assert.True(t, ok, "unknown status must fail validation")
		return nil
	})
}

func TestCreateTaskDefaults(t *testing.T) {
	f := newTaskFixture(t)
	p := principalFor(f.emp)

	f.run(t, func(pc *partition.Context) error {
		task, err := service.CreateTask(pc, p, service.TaskInput{Title: "write report"})
		require.NoError(t, err)
		assert.Equal(t, model.PriorityMedium, task.Priority)
		assert.Equal(t, model.StatusTodo, task.Status)
		assert.Equal(t, f.emp.ID, task.CreatedByID)
		assert.Equal(t, f.tenant.ID, task.TenantID)
		assert.Nil(t, task.CompletedAt)
		return nil
	})
}

func TestCrossTenantReferencesRejected(t *testing.T) {
	f := newTaskFixture(t)
	p := principalFor(f.mgr)

	f.run(t, func(pc *partition.Context) error {
		// A user id that exists, but in another partition, is no user at all.
		_, err := service.CreateTask(pc, p, service.TaskInput{
			Title:        "leaky",
			AssignedToID: &f.foreign.ID,
		})
		ve, ok := apperr.AsValidation(err)
		require.True(t, ok)
		assert.Contains(t, ve.Fields, "assigned_to")
		return nil
	})
}

func TestCompletedAtLatch(t *testing.T) {
	f := newTaskFixture(t)
	p := principalFor(f.mgr)

	f.run(t, func(pc *partition.Context) error {
		task, err := service.CreateTask(pc, p, service.TaskInput{Title: "ship it"})
		require.NoError(t, err)

		task, err = service.UpdateTask(pc, p, task.ID, service.TaskUpdate{Status: "done"})
		require.NoError(t, err)
		require.NotNil(t, task.CompletedAt)
		first := *task.CompletedAt

		// Setting done again must not move the timestamp.
		time.Sleep(10 * time.Millisecond)
		task, err = service.UpdateTask(pc, p, task.ID, service.TaskUpdate{Status: "done"})
		require.NoError(t, err)
		require.NotNil(t, task.CompletedAt)
		assert.True(t, task.CompletedAt.Equal(first))

		// Reopening never clears it.
		task, err = service.UpdateTask(pc, p, task.ID, service.TaskUpdate{Status: "todo"})
		require.NoError(t, err)
		require.NotNil(t, task.CompletedAt)
		assert.True(t, task.CompletedAt.Equal(first))
		return nil
	})
}

func TestUpdateDeleteAsymmetry(t *testing.T) {
	f := newTaskFixture(t)
	creator := principalFor(f.mgr)
	assignee := principalFor(f.emp)

	f.run(t, func(pc *partition.Context) error {
		task, err := service.CreateTask(pc, creator, service.TaskInput{
			Title:        "review budget",
			AssignedToID: &f.emp.ID,
		})
		require.NoError(t, err)

		// The assignee may update...
		_, err = service.UpdateTask(pc, assignee, task.ID, service.TaskUpdate{Status: "in_progress"})
		require.NoError(t, err)

		// ...but not delete, and the denial is indistinguishable from the
		// task not existing.
		err = service.DeleteTask(pc, assignee, task.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)

		// The creator may delete.
		require.NoError(t, service.DeleteTask(pc, creator, task.ID))
		return nil
	})
}

func TestAdminDeletesAnything(t *testing.T) {
	f := newTaskFixture(t)

	f.run(t, func(pc *partition.Context) error {
		task, err := service.CreateTask(pc, principalFor(f.emp), service.TaskInput{Title: "scratch"})
		require.NoError(t, err)
		return service.DeleteTask(pc, principalFor(f.admin), task.ID)
	})
}

func TestGetTaskConcealsDenied(t *testing.T) {
	f := newTaskFixture(t)

	f.run(t, func(pc *partition.Context) error {
		task, err := service.CreateTask(pc, principalFor(f.mgr), service.TaskInput{Title: "private"})
		require.NoError(t, err)

		// An employee who is neither creator nor assignee gets the same
		// error as for an absent id.
		_, err = service.GetTask(pc, principalFor(f.emp), task.ID)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		_, err = service.GetTask(pc, principalFor(f.emp), 99999)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		return nil
	})
}

func TestListTasksFilters(t *testing.T) {
	f := newTaskFixture(t)
	admin := principalFor(f.admin)

	f.run(t, func(pc *partition.Context) error {
		_, err := service.CreateTask(pc, admin, service.TaskInput{Title: "urgent one", Priority: "urgent"})
		require.NoError(t, err)
		_, err = service.CreateTask(pc, admin, service.TaskInput{Title: "assigned one", AssignedToID: &f.emp.ID})
		require.NoError(t, err)

		tasks, err := service.ListTasks(pc, admin, service.TaskFilters{Priority: "urgent"})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "urgent one", tasks[0].Title)

		tasks, err = service.ListTasks(pc, admin, service.TaskFilters{AssignedTo: &f.emp.ID})
		require.NoError(t, err)
		require.Len(t, tasks, 1)
		assert.Equal(t, "assigned one", tasks[0].Title)
		return nil
	})
}

func TestCommentsAndAttachments(t *testing.T) {
	f := newTaskFixture(t)
	creator := principalFor(f.mgr)

	f.run(t, func(pc *partition.Context) error {
		task, err := service.CreateTask(pc, creator, service.TaskInput{
			Title:        "with notes",
			AssignedToID: &f.emp.ID,
		})
		require.NoError(t, err)

		comment, err := service.AddComment(pc, principalFor(f.emp), task.ID, "on it")
		require.NoError(t, err)
		assert.Equal(t, f.emp.ID, comment.UserID)
		assert.Equal(t, f.tenant.ID, comment.TenantID)

		_, err = service.AddComment(pc, creator, task.ID, "")
		_, ok := apperr.AsValidation(err)
		assert.True(t, ok, "empty comment must fail validation")

		att, err := service.AddAttachment(pc, creator, task.ID, service.AttachmentInput{
			FileName:    "budget.xlsx",
			Description: "Q3 numbers",
		})
		require.NoError(t, err)
		assert.Equal(t, f.mgr.ID, att.UploadedByID)

		comments, err := service.ListComments(pc, creator, task.ID)
		require.NoError(t, err)
		assert.Len(t, comments, 1)

		atts, err := service.ListAttachments(pc, creator, task.ID)
		require.NoError(t, err)
		assert.Len(t, atts, 1)
		return nil
	})
}

func TestCommentOnInvisibleTaskConcealed(t *testing.T) {
	f := newTaskFixture(t)

	f.run(t, func(pc *partition.Context) error {
		task, err := service.CreateTask(pc, principalFor(f.admin), service.TaskInput{Title: "admin only"})
		require.NoError(t, err)

		_, err = service.AddComment(pc, principalFor(f.emp), task.ID, "hello?")
		assert.ErrorIs(t, err, apperr.ErrNotFound)
		return nil
	})
}
