package service_test

import (
	"context"
	"testing"

	"task-service/internal/apperr"
	"task-service/internal/model"
	"task-service/internal/partition"
	"task-service/internal/policy"
	"task-service/internal/service"
	"task-service/internal/tenant"
	"task-service/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func superPrincipal() *policy.Principal {
	return &policy.Principal{UserID: 1, Email: "root@example.com", Super: true, Authenticated: true}
}

func TestCreateTenantWithPrimaryDomain(t *testing.T) {
	db := testutil.NewDB(t)

	ten, err := service.CreateTenant(db, superPrincipal(), service.TenantInput{
		Name:         "Acme Corporation",
		PartitionKey: "acme",
		Domain:       "Acme.Example.com",
	})
	require.NoError(t, err)
	require.Len(t, ten.Domains, 1)
	assert.True(t, ten.Domains[0].IsPrimary)
	assert.Equal(t, "acme.example.com", ten.Domains[0].Hostname)

	// Round trip: the new domain resolves to the new partition.
	r := tenant.NewResolver(db)
	key, err := r.Resolve(context.Background(), "acme.example.com")
	require.NoError(t, err)
	assert.Equal(t, "acme", key)

	_, err = r.Resolve(context.Background(), "unknown.example.com")
	assert.ErrorIs(t, err, apperr.ErrTenantNotFound)
}

func TestCreateTenantAtomicity(t *testing.T) {
	db := testutil.NewDB(t)

	_, err := service.CreateTenant(db, superPrincipal(), service.TenantInput{
		Name:         "Acme",
		PartitionKey: "acme",
		Domain:       "shared.example.com",
	})
	require.NoError(t, err)

	// The domain insert fails after the tenant insert succeeded; the
	// transaction must leave neither record behind.
	_, err = service.CreateTenant(db, superPrincipal(), service.TenantInput{
		Name:         "Globex",
		PartitionKey: "globex",
		Domain:       "shared.example.com",
	})
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, ve.Fields, "domain")

	var tenants int64
	require.NoError(t, db.Model(&model.Tenant{}).Where("partition_key = ?", "globex").Count(&tenants).Error)
	assert.Zero(t, tenants)

	var domains int64
	require.NoError(t, db.Model(&model.Domain{}).Count(&domains).Error)
	assert.EqualValues(t, 1, domains)
}

func TestCreateTenantValidation(t *testing.T) {
	db := testutil.NewDB(t)
	p := superPrincipal()

	cases := []struct {
		name  string
		in    service.TenantInput
		field string
	}{
		{"missing name", service.TenantInput{PartitionKey: "acme", Domain: "a.test"}, "name"},
		{"missing domain", service.TenantInput{Name: "Acme", PartitionKey: "acme"}, "domain"},
		{"bad key uppercase", service.TenantInput{Name: "Acme", PartitionKey: "Acme", Domain: "a.test"}, "partition_key"},
		{"bad key leading digit", service.TenantInput{Name: "Acme", PartitionKey: "1acme", Domain: "a.test"}, "partition_key"},
		{"bad key empty", service.TenantInput{Name: "Acme", Domain: "a.test"}, "partition_key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateTenant(db, p, tc.in)
			ve, ok := apperr.AsValidation(err)
			require.True(t, ok, "expected validation error, got %v", err)
			assert.Contains(t, ve.Fields, tc.field)
		})
	}
}

func TestCreateTenantDuplicatePartitionKey(t *testing.T) {
	db := testutil.NewDB(t)
	p := superPrincipal()

	_, err := service.CreateTenant(db, p, service.TenantInput{Name: "Acme", PartitionKey: "acme", Domain: "a.test"})
	require.NoError(t, err)

	_, err = service.CreateTenant(db, p, service.TenantInput{Name: "Acme Two", PartitionKey: "acme", Domain: "b.test"})
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok, "expected validation error, got %v", err)
	assert.Contains(t, ve.Fields, "partition_key")
}

func TestTenantAdministrationRequiresSuper(t *testing.T) {
	db := testutil.NewDB(t)
	member := &policy.Principal{UserID: 2, Role: model.RoleAdmin, TenantID: 1, Authenticated: true}

	_, err := service.CreateTenant(db, member, service.TenantInput{Name: "Acme", PartitionKey: "acme", Domain: "a.test"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = service.ListTenants(db, member)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = service.CreateTenant(db, nil, service.TenantInput{Name: "Acme", PartitionKey: "acme", Domain: "a.test"})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestGetTenantOwnRecordOnly(t *testing.T) {
	db := testutil.NewDB(t)
	p := superPrincipal()

	acme, err := service.CreateTenant(db, p, service.TenantInput{Name: "Acme", PartitionKey: "acme", Domain: "a.test"})
	require.NoError(t, err)
	globex, err := service.CreateTenant(db, p, service.TenantInput{Name: "Globex", PartitionKey: "globex", Domain: "b.test"})
	require.NoError(t, err)

	member := &policy.Principal{UserID: 3, Role: model.RoleEmployee, TenantID: acme.ID, Authenticated: true}

	got, err := service.GetTenant(db, member, acme.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme", got.PartitionKey)

	// A foreign tenant's record is concealed, exactly like an absent id.
	_, err = service.GetTenant(db, member, globex.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = service.GetTenant(db, member, 999)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAddDomain(t *testing.T) {
	db := testutil.NewDB(t)
	p := superPrincipal()

	acme, err := service.CreateTenant(db, p, service.TenantInput{Name: "Acme", PartitionKey: "acme", Domain: "a.test"})
	require.NoError(t, err)

	dom, err := service.AddDomain(db, p, acme.ID, "alias.a.test")
	require.NoError(t, err)
	assert.False(t, dom.IsPrimary, "added domains are never primary")

	// Both hostnames now resolve to the same partition.
	r := tenant.NewResolver(db)
	for _, host := range []string{"a.test", "alias.a.test"} {
		key, err := r.Resolve(context.Background(), host)
		require.NoError(t, err)
		assert.Equal(t, "acme", key)
	}

	_, err = service.AddDomain(db, p, acme.ID, "a.test")
	ve, ok := apperr.AsValidation(err)
	require.True(t, ok, "duplicate hostname must fail validation, got %v", err)
	assert.Contains(t, ve.Fields, "domain")
}

func TestDeactivateTenantStopsPartitionAccess(t *testing.T) {
	db := testutil.NewDB(t)
	p := superPrincipal()

	acme, err := service.CreateTenant(db, p, service.TenantInput{Name: "Acme", PartitionKey: "acme", Domain: "a.test"})
	require.NoError(t, err)

	_, err = service.DeactivateTenant(db, p, acme.ID)
	require.NoError(t, err)

	m := partition.NewManager(db)
	err = m.Run(context.Background(), "acme", func(pc *partition.Context) error {
		t.Fatal("deactivated tenant must not open a partition context")
		return nil
	})
	assert.ErrorIs(t, err, apperr.ErrTenantNotFound)
}
