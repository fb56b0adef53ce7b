// Package policy is the single place role and ownership rules live. Resource
// services consult it for every attempted action and never re-implement role
// comparisons inline.
package policy

import (
	"task-service/internal/model"
	"task-service/prometheus"

	"gorm.io/gorm"
)

// Principal is the resolved identity of a caller: who they are, what role
// they hold, and which tenant partition they belong to. Super principals
// operate in the shared partition for tenant administration only.
type Principal struct {
	UserID        uint
	Email         string
	Role          model.Role
	TenantID      uint
	PartitionKey  string
	Super         bool
	Authenticated bool
}

// Action a principal attempts against a resource kind.
type Action string

const (
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Kind of resource under authorization.
type Kind string

const (
	KindTask       Kind = "task"
	KindUser       Kind = "user"
	KindTenant     Kind = "tenant"
	KindComment    Kind = "comment"
	KindAttachment Kind = "attachment"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Allow is the positive decision.
func Allow() Decision { return Decision{Allowed: true} }

// Deny is the negative decision with the reason recorded for logs and
// metrics. The reason never reaches an unauthorized caller.
func Deny(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

const (
	ReasonUnauthenticated = "unauthenticated"
	ReasonNotPermitted    = "role not permitted"
	ReasonNotOwner        = "not creator or assignee"
	ReasonNotCreator      = "not creator"
	ReasonNotVisible      = "outside visible scope"
)

// Authorize decides whether principal p may perform action on a resource of
// the given kind. For object-level checks the resource is passed; for
// collection-level checks it is nil. Closed world: anything not explicitly
// granted is denied.
func Authorize(p *Principal, action Action, kind Kind, resource interface{}) Decision {
	d := authorize(p, action, kind, resource)
	if !d.Allowed {
		prometheus.RecordAuthzDenial(string(kind), string(action))
	}
	return d
}

func authorize(p *Principal, action Action, kind Kind, resource interface{}) Decision {
	if p == nil || !p.Authenticated {
		return Deny(ReasonUnauthenticated)
	}

	switch kind {
	case KindTask:
		return authorizeTask(p, action, resource)
	case KindComment, KindAttachment:
		// Commenting on or attaching to a task requires the same access as
		// editing the task itself.
		return authorizeTask(p, ActionUpdate, resource)
	case KindUser:
		return authorizeUser(p, action, resource)
	case KindTenant:
		return authorizeTenant(p, action, resource)
	}
	return Deny(ReasonNotPermitted)
}

func authorizeTask(p *Principal, action Action, resource interface{}) Decision {
	switch action {
	case ActionList, ActionCreate:
		// Any member of the partition may create tasks and request a list;
		// what the list contains is governed by the visibility filter.
		return Allow()
	}

	task, ok := resource.(*model.Task)
	if !ok || task == nil {
		return Deny(ReasonNotPermitted)
	}

	switch action {
	case ActionRead, ActionUpdate:
		if p.Role == model.RoleAdmin {
			return Allow()
		}
		if task.CreatedByID == p.UserID {
			return Allow()
		}
		if task.AssignedToID != nil && *task.AssignedToID == p.UserID {
			return Allow()
		}
		return Deny(ReasonNotOwner)
	case ActionDelete:
		// Deliberately stricter than update: assignment grants edit rights,
		// not destroy rights. Only the creator or an admin may delete.
		if p.Role == model.RoleAdmin {
			return Allow()
		}
		if task.CreatedByID == p.UserID {
			return Allow()
		}
		return Deny(ReasonNotCreator)
	}
	return Deny(ReasonNotPermitted)
}

func authorizeUser(p *Principal, action Action, resource interface{}) Decision {
	switch action {
	case ActionList:
		return Allow()
	case ActionRead, ActionUpdate:
		user, ok := resource.(*model.User)
		if !ok || user == nil {
			return Deny(ReasonNotPermitted)
		}
		switch p.Role {
		case model.RoleAdmin:
			return Allow()
		case model.RoleManager:
			// Managers see employees only; their own record is reachable
			// through the me operation, not through user lookup.
			if user.Role == model.RoleEmployee {
				return Allow()
			}
			return Deny(ReasonNotVisible)
		default:
			if user.ID == p.UserID {
				return Allow()
			}
			return Deny(ReasonNotVisible)
		}
	}
	return Deny(ReasonNotPermitted)
}

func authorizeTenant(p *Principal, action Action, resource interface{}) Decision {
	// Tenant administration happens in the shared partition and is reserved
	// for the super principal, except that any member may read their own
	// tenant record.
	if p.Super {
		return Allow()
	}
	if action == ActionRead {
		if t, ok := resource.(*model.Tenant); ok && t != nil && t.ID == p.TenantID {
			return Allow()
		}
	}
	return Deny(ReasonNotPermitted)
}

// denyAll matches no rows. Used when no grant applies so a buggy caller
// still leaks nothing.
func denyAll(db *gorm.DB) *gorm.DB {
	return db.Where("1 = 0")
}

// unrestricted leaves the partition-scoped query as is.
func unrestricted(db *gorm.DB) *gorm.DB {
	return db
}

// VisibilityFilter returns the predicate restricting which records of kind
// the principal may see in list and read operations. The predicate composes
// with the partition scope; it never reaches across partitions.
func VisibilityFilter(p *Principal, kind Kind) func(*gorm.DB) *gorm.DB {
	if p == nil || !p.Authenticated {
		return denyAll
	}

	switch kind {
	case KindTask:
		switch p.Role {
		case model.RoleAdmin:
			return unrestricted
		case model.RoleManager:
			// Creator OR assignee, per the manager grant. OR, not AND.
			id := p.UserID
			return func(db *gorm.DB) *gorm.DB {
				return db.Where("created_by_id = ? OR assigned_to_id = ?", id, id)
			}
		case model.RoleEmployee:
			id := p.UserID
			return func(db *gorm.DB) *gorm.DB {
				return db.Where("assigned_to_id = ?", id)
			}
		}
	case KindUser:
		switch p.Role {
		case model.RoleAdmin:
			return unrestricted
		case model.RoleManager:
			return func(db *gorm.DB) *gorm.DB {
				return db.Where("role = ?", model.RoleEmployee)
			}
		case model.RoleEmployee:
			id := p.UserID
			return func(db *gorm.DB) *gorm.DB {
				return db.Where("id = ?", id)
			}
		}
	}
	return denyAll
}
