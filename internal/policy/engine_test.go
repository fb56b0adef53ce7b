package policy_test

import (
	"testing"

	"task-service/internal/model"
	"task-service/internal/policy"
	"task-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func principal(id uint, role model.Role) *policy.Principal {
	return &policy.Principal{
		UserID:        id,
		Role:          role,
		TenantID:      1,
		Authenticated: true,
	}
}

func taskOf(creator uint, assignee *uint) *model.Task {
	return &model.Task{ID: 42, TenantID: 1, CreatedByID: creator, AssignedToID: assignee}
}

func TestAuthorizeRequiresPrincipal(t *testing.T) {
	d := policy.Authorize(nil, policy.ActionRead, policy.KindTask, taskOf(1, nil))
	assert.False(t, d.Allowed)
	assert.Equal(t, policy.ReasonUnauthenticated, d.Reason)

	unauth := &policy.Principal{UserID: 1, Role: model.RoleAdmin}
	d = policy.Authorize(unauth, policy.ActionList, policy.KindTask, nil)
	assert.False(t, d.Allowed)
	assert.Equal(t, policy.ReasonUnauthenticated, d.Reason)
}

func TestTaskAuthorizationMatrix(t *testing.T) {
	const (
		admin    = uint(1)
		manager  = uint(2)
		employee = uint(3)
		other    = uint(4)
	)
	assignee := employee

	cases := []struct {
		name   string
		p      *policy.Principal
		action policy.Action
		task   *model.Task
		want   bool
	}{
		{"admin reads any", principal(admin, model.RoleAdmin), policy.ActionRead, taskOf(other, nil), true},
		{"admin updates any", principal(admin, model.RoleAdmin), policy.ActionUpdate, taskOf(other, nil), true},
		{"admin deletes any", principal(admin, model.RoleAdmin), policy.ActionDelete, taskOf(other, nil), true},

		{"creator reads own", principal(manager, model.RoleManager), policy.ActionRead, taskOf(manager, nil), true},
		{"creator updates own", principal(manager, model.RoleManager), policy.ActionUpdate, taskOf(manager, nil), true},
		{"creator deletes own", principal(manager, model.RoleManager), policy.ActionDelete, taskOf(manager, nil), true},

		{"assignee reads", principal(employee, model.RoleEmployee), policy.ActionRead, taskOf(other, &assignee), true},
		{"assignee updates", principal(employee, model.RoleEmployee), policy.ActionUpdate, taskOf(other, &assignee), true},
		// Deliberate asymmetry: assignment grants edit, never delete.
		{"assignee cannot delete", principal(employee, model.RoleEmployee), policy.ActionDelete, taskOf(other, &assignee), false},
		{"manager assignee cannot delete", principal(manager, model.RoleManager), policy.ActionDelete, taskOf(other, func() *uint { m := manager; return &m }()), false},

		{"bystander cannot read", principal(employee, model.RoleEmployee), policy.ActionRead, taskOf(other, nil), false},
		{"bystander cannot update", principal(manager, model.RoleManager), policy.ActionUpdate, taskOf(other, nil), false},
		{"bystander cannot delete", principal(manager, model.RoleManager), policy.ActionDelete, taskOf(other, nil), false},

		{"anyone lists", principal(employee, model.RoleEmployee), policy.ActionList, nil, true},
		{"anyone creates", principal(employee, model.RoleEmployee), policy.ActionCreate, nil, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := policy.Authorize(tc.p, tc.action, policy.KindTask, tc.task)
			assert.Equal(t, tc.want, d.Allowed, "reason: %s", d.Reason)
		})
	}
}

func TestUserAuthorizationMatrix(t *testing.T) {
	adminUser := &model.User{ID: 1, Role: model.RoleAdmin, TenantID: 1}
	managerUser := &model.User{ID: 2, Role: model.RoleManager, TenantID: 1}
	employeeUser := &model.User{ID: 3, Role: model.RoleEmployee, TenantID: 1}

	cases := []struct {
		name   string
		p      *policy.Principal
		action policy.Action
		res    *model.User
		want   bool
	}{
		{"admin reads anyone", principal(1, model.RoleAdmin), policy.ActionRead, managerUser, true},
		{"admin updates anyone", principal(1, model.RoleAdmin), policy.ActionUpdate, employeeUser, true},
		{"manager reads employee", principal(2, model.RoleManager), policy.ActionRead, employeeUser, true},
		{"manager cannot read admin", principal(2, model.RoleManager), policy.ActionRead, adminUser, false},
		{"manager cannot read manager", principal(2, model.RoleManager), policy.ActionRead, managerUser, false},
		{"employee reads self", principal(3, model.RoleEmployee), policy.ActionRead, employeeUser, true},
		{"employee cannot read others", principal(3, model.RoleEmployee), policy.ActionRead, managerUser, false},
		{"employee updates self", principal(3, model.RoleEmployee), policy.ActionUpdate, employeeUser, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := policy.Authorize(tc.p, tc.action, policy.KindUser, tc.res)
			assert.Equal(t, tc.want, d.Allowed, "reason: %s", d.Reason)
		})
	}
}

func TestTenantAuthorization(t *testing.T) {
	super := &policy.Principal{UserID: 9, Super: true, Authenticated: true}
	member := principal(5, model.RoleAdmin)
	own := &model.Tenant{ID: 1}
	foreign := &model.Tenant{ID: 2}

	assert.True(t, policy.Authorize(super, policy.ActionCreate, policy.KindTenant, nil).Allowed)
	assert.True(t, policy.Authorize(super, policy.ActionList, policy.KindTenant, nil).Allowed)
	assert.True(t, policy.Authorize(super, policy.ActionDelete, policy.KindTenant, foreign).Allowed)

	// Tenant admins administer their tenant's data, not the directory.
	assert.False(t, policy.Authorize(member, policy.ActionCreate, policy.KindTenant, nil).Allowed)
	assert.False(t, policy.Authorize(member, policy.ActionList, policy.KindTenant, nil).Allowed)
	assert.True(t, policy.Authorize(member, policy.ActionRead, policy.KindTenant, own).Allowed)
	assert.False(t, policy.Authorize(member, policy.ActionRead, policy.KindTenant, foreign).Allowed)
}

func TestTaskVisibilityFilter(t *testing.T) {
	db := testutil.NewDB(t)
	ten := testutil.SeedTenant(t, db, "acme", "acme.example.com")
	admin := testutil.SeedUser(t, db, ten.ID, "admin@acme.test", model.RoleAdmin)
	mgr := testutil.SeedUser(t, db, ten.ID, "mgr@acme.test", model.RoleManager)
	emp := testutil.SeedUser(t, db, ten.ID, "emp@acme.test", model.RoleEmployee)

	createdByMgr := testutil.SeedTask(t, db, ten.ID, mgr.ID, nil, "mgr created")
	assignedToMgr := testutil.SeedTask(t, db, ten.ID, admin.ID, &mgr.ID, "mgr assigned")
	assignedToEmp := testutil.SeedTask(t, db, ten.ID, mgr.ID, &emp.ID, "emp assigned")
	unrelated := testutil.SeedTask(t, db, ten.ID, admin.ID, nil, "unrelated")

	list := func(p *policy.Principal) []uint {
		var tasks []model.Task
		require.NoError(t, db.Scopes(policy.VisibilityFilter(p, policy.KindTask)).Find(&tasks).Error)
		ids := make([]uint, 0, len(tasks))
		for _, task := range tasks {
			ids = append(ids, task.ID)
		}
		return ids
	}

	assert.ElementsMatch(t,
		[]uint{createdByMgr.ID, assignedToMgr.ID, assignedToEmp.ID, unrelated.ID},
		list(principal(admin.ID, model.RoleAdmin)))

	// Manager: created OR assigned. The OR must not collapse to AND.
	assert.ElementsMatch(t,
		[]uint{createdByMgr.ID, assignedToMgr.ID, assignedToEmp.ID},
		list(principal(mgr.ID, model.RoleManager)))

	// Employee: assigned only, even for tasks they created.
	assert.ElementsMatch(t,
		[]uint{assignedToEmp.ID},
		list(principal(emp.ID, model.RoleEmployee)))

	// Unauthenticated principals match nothing.
	assert.Empty(t, list(nil))
}

func TestUserVisibilityFilter(t *testing.T) {
	db := testutil.NewDB(t)
	ten := testutil.SeedTenant(t, db, "acme", "acme.example.com")
	admin := testutil.SeedUser(t, db, ten.ID, "admin@acme.test", model.RoleAdmin)
	mgr := testutil.SeedUser(t, db, ten.ID, "mgr@acme.test", model.RoleManager)
	emp1 := testutil.SeedUser(t, db, ten.ID, "emp1@acme.test", model.RoleEmployee)
	emp2 := testutil.SeedUser(t, db, ten.ID, "emp2@acme.test", model.RoleEmployee)

	list := func(p *policy.Principal) []uint {
		var users []model.User
		require.NoError(t, db.Scopes(policy.VisibilityFilter(p, policy.KindUser)).Find(&users).Error)
		ids := make([]uint, 0, len(users))
		for _, u := range users {
			ids = append(ids, u.ID)
		}
		return ids
	}

	assert.ElementsMatch(t, []uint{admin.ID, mgr.ID, emp1.ID, emp2.ID}, list(principal(admin.ID, model.RoleAdmin)))
	assert.ElementsMatch(t, []uint{emp1.ID, emp2.ID}, list(principal(mgr.ID, model.RoleManager)))
	assert.ElementsMatch(t, []uint{emp1.ID}, list(principal(emp1.ID, model.RoleEmployee)))
}
