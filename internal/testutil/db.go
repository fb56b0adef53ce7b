// Package testutil provides database fixtures for storage-backed tests. The
// suite runs on in-memory SQLite so the same gorm models and scopes used in
// production are exercised without external services.
package testutil

import (
	"fmt"
	"testing"

	"task-service/internal/model"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a fresh in-memory database with the full schema migrated.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique shared-cache name so the connection pool sees one database while
	// tests stay isolated from each other.
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	err = db.AutoMigrate(
		&model.Tenant{},
		&model.Domain{},
		&model.User{},
		&model.Task{},
		&model.TaskComment{},
		&model.TaskAttachment{},
	)
	if err != nil {
		t.Fatalf("migrate test schema: %v", err)
	}
	return db
}

// SeedTenant creates an active tenant with one primary domain.
func SeedTenant(t *testing.T, db *gorm.DB, key, hostname string) *model.Tenant {
	t.Helper()

	tenant := &model.Tenant{
		Name:         key,
		PartitionKey: key,
		Active:       true,
	}
	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("seed tenant %s: %v", key, err)
	}
	dom := &model.Domain{
		Hostname:  hostname,
		IsPrimary: true,
		TenantID:  tenant.ID,
	}
	if err := db.Create(dom).Error; err != nil {
		t.Fatalf("seed domain %s: %v", hostname, err)
	}
	tenant.Domains = []model.Domain{*dom}
	return tenant
}

// SeedUser creates a user in the given tenant with the given role.
func SeedUser(t *testing.T, db *gorm.DB, tenantID uint, email string, role model.Role) *model.User {
	t.Helper()

	user := &model.User{
		Email:    email,
		Password: "x",
		Role:     role,
		TenantID: tenantID,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return user
}

// SeedTask creates a task directly in the given tenant.
func SeedTask(t *testing.T, db *gorm.DB, tenantID, createdBy uint, assignedTo *uint, title string) *model.Task {
	t.Helper()

	task := &model.Task{
		TenantID:     tenantID,
		Title:        title,
		Priority:     model.PriorityMedium,
		Status:       model.StatusTodo,
		CreatedByID:  createdBy,
		AssignedToID: assignedTo,
	}
	if err := db.Create(task).Error; err != nil {
		t.Fatalf("seed task %s: %v", title, err)
	}
	return task
}
