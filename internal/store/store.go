// Package store provides the in-memory, tenant-scoped result store.
//
// Every record lives inside the collection of the tenant that wrote it. Reads
// are routed through that collection, so a lookup under one tenant id can
// never observe another tenant's records.
package store

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"transcript-insights-service/internal/models"
)

// ErrNotFound is returned when a tenant or record does not exist.
var ErrNotFound = errors.New("record not found")

// Store maps tenant ids to their result collections.
// Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	tenants map[string]*Collection
}

// New creates an empty store.
func New() *Store {
	return &Store{
		tenants: make(map[string]*Collection),
	}
}

// GetOrCreateTenant returns the tenant's collection, creating an empty one if needed.
func (s *Store) GetOrCreateTenant(tenantID string) *Collection {
	s.mu.RLock()
	c, ok := s.tenants[tenantID]
	s.mu.RUnlock()
	if ok {
		return c
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another writer may have created it between the two locks.
	if c, ok := s.tenants[tenantID]; ok {
		return c
	}
	c = newCollection(tenantID)
	s.tenants[tenantID] = c
	return c
}

// Tenant returns the tenant's collection without creating it.
func (s *Store) Tenant(tenantID string) (*Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.tenants[tenantID]
	return c, ok
}

// Get looks up a record. It never creates a tenant collection.
func (s *Store) Get(tenantID, conversationID string) (models.Record, error) {
	c, ok := s.Tenant(tenantID)
	if !ok {
		return models.Record{}, errors.Wrapf(ErrNotFound, "tenant %q", tenantID)
	}
	return c.Get(conversationID)
}

// Put upserts a record under the tenant, creating the collection lazily.
// Concurrent writers to the same key: last writer wins.
func (s *Store) Put(tenantID, conversationID string, rec models.Record) {
	s.GetOrCreateTenant(tenantID).Put(conversationID, rec)
}

// Tenants returns the sorted list of tenant ids with a collection.
func (s *Store) Tenants() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats returns the number of tenants and the total number of records.
func (s *Store) Stats() (tenants, records int) {
	s.mu.RLock()
	collections := make([]*Collection, 0, len(s.tenants))
	for _, c := range s.tenants {
		collections = append(collections, c)
	}
	s.mu.RUnlock()

	for _, c := range collections {
		records += c.Len()
	}
	return len(collections), records
}
