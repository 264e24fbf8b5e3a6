package store

import (
	"sync"

	"github.com/pkg/errors"

	"transcript-insights-service/internal/models"
)

// Collection holds one tenant's records keyed by conversation id.
// Records are copied on the way in and on the way out.
type Collection struct {
	tenantID string

	mu      sync.RWMutex
	records map[string]models.Record
}

func newCollection(tenantID string) *Collection {
	return &Collection{
		tenantID: tenantID,
		records:  make(map[string]models.Record),
	}
}

// TenantID returns the owning tenant.
func (c *Collection) TenantID() string {
	return c.tenantID
}

// Get returns a copy of the record stored under conversationID.
func (c *Collection) Get(conversationID string) (models.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.records[conversationID]
	if !ok {
		return models.Record{}, errors.Wrapf(ErrNotFound, "conversation %q", conversationID)
	}
	return rec.Clone(), nil
}

// Put stores a copy of rec under conversationID.
func (c *Collection) Put(conversationID string, rec models.Record) {
	rec = rec.Clone()
	c.mu.Lock()
	c.records[conversationID] = rec
	c.mu.Unlock()
}

// Len returns the number of records in the collection.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
