package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Tenant represents an organization's isolated data partition.
// Tenant and Domain records live in the shared directory tables and are the
// only entities not themselves scoped by a partition key.
type Tenant struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	PartitionKey string     `json:"partition_key" gorm:"type:varchar(63);uniqueIndex;not null"`
	Name         string     `json:"name" gorm:"type:varchar(100);not null"`
	PaidUntil    *time.Time `json:"paid_until,omitempty"`
	OnTrial      bool       `json:"on_trial" gorm:"default:false"`
	Active       bool       `json:"active" gorm:"default:true"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Relations
	Domains []Domain `json:"domains,omitempty" gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
}

// BeforeUpdate rejects any attempt to change the partition key. The key is
// the tenant's data boundary; rewriting it would reassign every scoped record
// to another tenant.
func (t *Tenant) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("PartitionKey") {
		return gorm.ErrInvalidData
	}
	return nil
}

// Domain is a routable hostname bound to exactly one tenant. Hostnames are
// stored lowercased so resolution is case-insensitive.
type Domain struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Hostname  string    `json:"hostname" gorm:"type:varchar(253);uniqueIndex;not null"`
	IsPrimary bool      `json:"is_primary" gorm:"default:false"`
	TenantID  uint      `json:"tenant_id" gorm:"index;not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave normalizes the hostname.
func (d *Domain) BeforeSave(tx *gorm.DB) error {
	d.Hostname = strings.ToLower(strings.TrimSpace(d.Hostname))
	return nil
}
