package model

import (
	"time"

	"gorm.io/gorm"
)

// Role is a user's role within their tenant. The set is closed; anything
// outside it is rejected at validation time.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// DefaultRole is assigned when a user is created without an explicit role.
const DefaultRole = RoleEmployee

// ValidRole reports whether r is one of the closed role set.
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// User represents a principal belonging to exactly one tenant partition.
// Super users are the exception: they operate against the shared partition
// for tenant administration and carry no tenant of their own.
type User struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	Email      string         `json:"email" gorm:"type:varchar(100);uniqueIndex:idx_users_tenant_email;not null"`
	Password   string         `json:"-" gorm:"type:varchar(255)"`
	FirstName  string         `json:"first_name" gorm:"type:varchar(100)"`
	LastName   string         `json:"last_name" gorm:"type:varchar(100)"`
	Role       Role           `json:"role" gorm:"type:varchar(10);not null;default:'employee'"`
	Phone      string         `json:"phone" gorm:"type:varchar(15)"`
	Department string         `json:"department" gorm:"type:varchar(100)"`
	Super      bool           `json:"-" gorm:"default:false"`
	TenantID   uint           `json:"tenant_id" gorm:"uniqueIndex:idx_users_tenant_email;index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-" gorm:"index"`
}

// NewUser builds a user with the configured default role applied.
func NewUser(email, passwordHash string, tenantID uint) *User {
	return &User{
		Email:    email,
		Password: passwordHash,
		Role:     DefaultRole,
		TenantID: tenantID,
	}
}
