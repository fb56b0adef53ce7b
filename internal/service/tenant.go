package service

import (
	"errors"
	"regexp"
	"time"

	"task-service/internal/apperr"
	"task-service/internal/model"
	"task-service/internal/policy"

	"gorm.io/gorm"
)

// partitionKeyPattern matches valid partition keys: the stable, immutable
// identifier of a tenant's data boundary (schema-name rules).
var partitionKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// TenantInput is the payload for tenant provisioning. Domain becomes the
// tenant's primary domain and is created in the same transaction.
type TenantInput struct {
	Name         string     `json:"name"`
	PartitionKey string     `json:"partition_key"`
	Domain       string     `json:"domain"`
	OnTrial      bool       `json:"on_trial"`
	PaidUntil    *time.Time `json:"paid_until,omitempty"`
}

// CreateTenant provisions a tenant and its primary domain as one atomic
// unit. A concurrent reader never observes a tenant without its primary
// domain or a domain without its tenant. Operates on the shared partition;
// super principal only.
func CreateTenant(db *gorm.DB, p *policy.Principal, in TenantInput) (*model.Tenant, error) {
	if d := policy.Authorize(p, policy.ActionCreate, policy.KindTenant, nil); !d.Allowed {
		return nil, denied(d)
	}

	if in.Name == "" {
		return nil, apperr.Validation("name", "is required")
	}
	if !partitionKeyPattern.MatchString(in.PartitionKey) {
		return nil, apperr.Validation("partition_key", "must be lowercase alphanumeric/underscore, starting with a letter, at most 63 characters")
	}
	if in.Domain == "" {
		return nil, apperr.Validation("domain", "is required")
	}

	t := model.Tenant{
		Name:         in.Name,
		PartitionKey: in.PartitionKey,
		OnTrial:      in.OnTrial,
		PaidUntil:    in.PaidUntil,
		Active:       true,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Validation("partition_key", "already in use")
			}
			return err
		}
		dom := model.Domain{
			Hostname:  in.Domain,
			IsPrimary: true,
			TenantID:  t.ID,
		}
		if err := tx.Create(&dom).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperr.Validation("domain", "already in use")
			}
			return err
		}
		t.Domains = []model.Domain{dom}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTenants returns all tenants. Shared-partition operation, super
// principal only.
func ListTenants(db *gorm.DB, p *policy.Principal) ([]model.Tenant, error) {
	if d := policy.Authorize(p, policy.ActionList, policy.KindTenant, nil); !d.Allowed {
		return nil, denied(d)
	}

	var tenants []model.Tenant
	if err := db.Preload("Domains").Order("id ASC").Find(&tenants).Error; err != nil {
		return nil, err
	}
	return tenants, nil
}

// GetTenant returns one tenant. Super principals read any tenant; a regular
// principal may read only their own tenant record.
func GetTenant(db *gorm.DB, p *policy.Principal, id uint) (*model.Tenant, error) {
	var t model.Tenant
	err := db.Preload("Domains").First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionRead, policy.KindTenant, &t); !d.Allowed {
		return nil, conceal(d)
	}
	return &t, nil
}

// AddDomain binds an additional, non-primary hostname to a tenant.
func AddDomain(db *gorm.DB, p *policy.Principal, tenantID uint, hostname string) (*model.Domain, error) {
	var t model.Tenant
	err := db.First(&t, tenantID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionUpdate, policy.KindTenant, &t); !d.Allowed {
		return nil, conceal(d)
	}
	if hostname == "" {
		return nil, apperr.Validation("domain", "is required")
	}

	dom := model.Domain{
		Hostname:  hostname,
		IsPrimary: false,
		TenantID:  t.ID,
	}
	if err := db.Create(&dom).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Validation("domain", "already in use")
		}
		return nil, err
	}
	return &dom, nil
}

// DeactivateTenant marks a tenant inactive. Tenants are never hard-deleted;
// resolution for all of its domains stops once the flag clears.
func DeactivateTenant(db *gorm.DB, p *policy.Principal, id uint) (*model.Tenant, error) {
	var t model.Tenant
	err := db.First(&t, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, err
	}
	if d := policy.Authorize(p, policy.ActionDelete, policy.KindTenant, &t); !d.Allowed {
		return nil, conceal(d)
	}

	if err := db.Model(&t).Update("active", false).Error; err != nil {
		return nil, err
	}
	t.Active = false
	return &t, nil
}
