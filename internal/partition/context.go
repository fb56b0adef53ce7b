package partition

import (
	"context"
	"errors"
	"sync"

	"task-service/internal/apperr"
	"task-service/internal/model"

	"gorm.io/gorm"
)

// errReleased poisons any query issued through a context after release.
var errReleased = errors.New("partition context released")

type activeKey struct{}

// Manager hands out partition-scoped data handles. One manager wraps the
// shared database connection for the whole process.
type Manager struct {
	db *gorm.DB
}

// NewManager creates a partition manager over the given database handle.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// Context is a data-access handle bound to one tenant partition for the
// duration of a single request or operation. Every query issued through it
// carries the partition predicate; there is no way to escape the partition
// from within an active context.
type Context struct {
	ctx    context.Context
	db     *gorm.DB
	tenant model.Tenant

	mu       sync.Mutex
	released bool
}

// Run establishes a partition context for the tenant identified by key,
// invokes fn with it, and releases the context on every exit path including
// panics and caller cancellation. Establishing a context while another is
// active on the same request fails with ErrContextAlreadyActive.
func (m *Manager) Run(ctx context.Context, key string, fn func(pc *Context) error) error {
	if ctx.Value(activeKey{}) != nil {
		return apperr.ErrContextAlreadyActive
	}

	var t model.Tenant
	err := m.db.WithContext(ctx).
		Where("partition_key = ? AND active = ?", key, true).
		First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.ErrTenantNotFound
		}
		return err
	}

	pc := &Context{
		ctx:    context.WithValue(ctx, activeKey{}, key),
		db:     m.db,
		tenant: t,
	}
	defer pc.release()

	return fn(pc)
}

// Shared returns an unscoped handle on the shared/public partition holding
// the tenant directory itself. It is the designated super-principal bypass
// and must only be reached from tenant-administration operations; the policy
// engine gates who gets there.
func (m *Manager) Shared(ctx context.Context) *gorm.DB {
	return m.db.WithContext(ctx)
}

// Ctx returns the request context carrying the active-partition marker.
// Passing it to Manager.Run again is how nesting is detected.
func (pc *Context) Ctx() context.Context {
	return pc.ctx
}

// TenantID returns the numeric id of the bound tenant.
func (pc *Context) TenantID() uint {
	return pc.tenant.ID
}

// Key returns the bound partition key.
func (pc *Context) Key() string {
	return pc.tenant.PartitionKey
}

// DB returns a handle restricted to the bound partition. The returned value
// is for a single statement chain; call DB again for the next query.
func (pc *Context) DB() *gorm.DB {
	if db, poisoned := pc.guard(); poisoned {
		return db
	}
	return pc.db.WithContext(pc.ctx).Where("tenant_id = ?", pc.tenant.ID)
}

// Model returns a partition-restricted handle for the given model, for
// queries that need Model semantics (counts, column updates).
func (pc *Context) Model(value interface{}) *gorm.DB {
	if db, poisoned := pc.guard(); poisoned {
		return db
	}
	return pc.db.WithContext(pc.ctx).Model(value).Where("tenant_id = ?", pc.tenant.ID)
}

// Create inserts a record stamped with the partition's tenant id. The stamp
// is applied here so services cannot write into a foreign partition.
func (pc *Context) Create(value interface{}) *gorm.DB {
	if db, poisoned := pc.guard(); poisoned {
		return db
	}
	switch v := value.(type) {
	case *model.User:
		v.TenantID = pc.tenant.ID
	case *model.Task:
		v.TenantID = pc.tenant.ID
	case *model.TaskComment:
		v.TenantID = pc.tenant.ID
	case *model.TaskAttachment:
		v.TenantID = pc.tenant.ID
	}
	return pc.db.WithContext(pc.ctx).Create(value)
}

// Transaction runs fn inside a database transaction, with the transactional
// handle already restricted to the partition.
func (pc *Context) Transaction(fn func(tx *gorm.DB) error) error {
	if db, poisoned := pc.guard(); poisoned {
		return db.Error
	}
	return pc.db.WithContext(pc.ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tx.Where("tenant_id = ?", pc.tenant.ID))
	})
}

func (pc *Context) release() {
	pc.mu.Lock()
	pc.released = true
	pc.mu.Unlock()
}

// guard returns a poisoned session when the context has been released, so a
// leaked handle fails loudly instead of querying without scope guarantees.
func (pc *Context) guard() (*gorm.DB, bool) {
	pc.mu.Lock()
	released := pc.released
	pc.mu.Unlock()
	if !released {
		return nil, false
	}
	db := pc.db.Session(&gorm.Session{NewDB: true})
	_ = db.AddError(errReleased)
	return db, true
}
