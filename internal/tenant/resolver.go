package tenant

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"

	"task-service/internal/apperr"
	"task-service/internal/model"

	"gorm.io/gorm"
)

// Resolver maps an inbound request's hostname to a tenant partition key.
// It fails closed: a host with no matching domain never resolves to any
// partition, so there is no default to accidentally write into.
type Resolver struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[string]string // normalized host -> partition key
}

// NewResolver creates a resolver over the shared tenant directory.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{
		db:    db,
		cache: make(map[string]string),
	}
}

// Resolve returns the partition key owning host. Matching is exact and
// case-insensitive; any port suffix is ignored. A miss returns
// apperr.ErrTenantNotFound. Successful lookups are cached; misses are not,
// so newly added domains resolve without invalidation.
func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	host = NormalizeHost(host)
	if host == "" {
		return "", apperr.ErrTenantNotFound
	}

	r.mu.RLock()
	key, ok := r.cache[host]
	r.mu.RUnlock()
	if ok {
		return key, nil
	}

	var dom model.Domain
	err := r.db.WithContext(ctx).Where("hostname = ?", host).First(&dom).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.ErrTenantNotFound
		}
		return "", err
	}

	var t model.Tenant
	err = r.db.WithContext(ctx).Where("id = ? AND active = ?", dom.TenantID, true).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", apperr.ErrTenantNotFound
		}
		return "", err
	}

	r.mu.Lock()
	r.cache[host] = t.PartitionKey
	r.mu.Unlock()

	return t.PartitionKey, nil
}

// Invalidate drops the cached mapping for host. Called after a domain is
// updated or removed.
func (r *Resolver) Invalidate(host string) {
	host = NormalizeHost(host)
	r.mu.Lock()
	delete(r.cache, host)
	r.mu.Unlock()
}

// Flush drops every cached mapping.
func (r *Resolver) Flush() {
	r.mu.Lock()
	r.cache = make(map[string]string)
	r.mu.Unlock()
}

// NormalizeHost lowercases host and strips any port suffix.
func NormalizeHost(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSpace(host))
}
