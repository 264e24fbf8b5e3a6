package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"transcript-insights-service/internal/models"
)

func testRecord(tenantID, conversationID string, score float64, tags ...string) models.Record {
	return models.Record{
		ConversationID: conversationID,
		SentimentScore: score,
		Summary:        "Processed text length 5.",
		Tags:           tags,
		Status:         models.StatusCompleted,
		TenantID:       tenantID,
	}
}

func TestGet_UnknownTenantDoesNotCreateCollection(t *testing.T) {
	s := New()

	_, err := s.Get("ghost", "c1")
	require.True(t, errors.Is(err, ErrNotFound))

	_, ok := s.Tenant("ghost")
	require.False(t, ok, "read must not create a tenant collection")
	require.Empty(t, s.Tenants())
}

func TestPutThenGet(t *testing.T) {
	s := New()
	s.Put("tenant-a", "c1", testRecord("tenant-a", "c1", 0.8, "general"))

	rec, err := s.Get("tenant-a", "c1")
	require.NoError(t, err)
	require.Equal(t, "c1", rec.ConversationID)
	require.Equal(t, []string{"general"}, rec.Tags)
	require.Equal(t, models.StatusCompleted, rec.Status)
}

func TestGet_MissingConversationInExistingTenant(t *testing.T) {
	s := New()
	s.Put("tenant-a", "c1", testRecord("tenant-a", "c1", 0.8))

	_, err := s.Get("tenant-a", "c2")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestTenantIsolation(t *testing.T) {
	s := New()
	s.Put("A", "c1", testRecord("A", "c1", 0.8))

	_, err := s.Get("B", "c1")
	require.True(t, errors.Is(err, ErrNotFound))

	s.GetOrCreateTenant("B")
	_, err = s.Get("B", "c1")
	require.True(t, errors.Is(err, ErrNotFound), "an empty collection for B must not see A's record")
}

func TestPut_LastWriterWins(t *testing.T) {
	s := New()
	s.Put("tenant-a", "c1", testRecord("tenant-a", "c1", 0.8))
	s.Put("tenant-a", "c1", testRecord("tenant-a", "c1", 0.3))

	rec, err := s.Get("tenant-a", "c1")
	require.NoError(t, err)
	require.Equal(t, 0.3, rec.SentimentScore)
}

func TestStoredRecordsAreCopies(t *testing.T) {
	s := New()
	rec := testRecord("tenant-a", "c1", 0.8, "general")
	s.Put("tenant-a", "c1", rec)

	// Mutating the caller's slice after Put must not leak in.
	rec.Tags[0] = "mutated"

	got, err := s.Get("tenant-a", "c1")
	require.NoError(t, err)
	require.Equal(t, []string{"general"}, got.Tags)

	// Mutating a read copy must not leak in either.
	got.AddTag(models.TagReviewRequired)
	again, err := s.Get("tenant-a", "c1")
	require.NoError(t, err)
	require.Equal(t, []string{"general"}, again.Tags)
}

func TestGetOrCreateTenant_ConcurrentSameTenant(t *testing.T) {
	s := New()

	const n = 64
	results := make([]*Collection, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.GetOrCreateTenant("tenant-a")
		}(i)
	}
	wg.Wait()

	for _, c := range results {
		require.Same(t, results[0], c)
	}
	require.Equal(t, []string{"tenant-a"}, s.Tenants())
}

func TestConcurrentPutsAcrossTenants(t *testing.T) {
	s := New()

	var wg sync.WaitGroup
	for tenant := 0; tenant < 8; tenant++ {
		for conv := 0; conv < 25; conv++ {
			wg.Add(1)
			go func(tenant, conv int) {
				defer wg.Done()
				tid := fmt.Sprintf("tenant-%d", tenant)
				cid := fmt.Sprintf("c%d", conv)
				s.Put(tid, cid, testRecord(tid, cid, 0.8, "general"))
				_, _ = s.Get(tid, cid)
			}(tenant, conv)
		}
	}
	wg.Wait()

	tenants, records := s.Stats()
	require.Equal(t, 8, tenants)
	require.Equal(t, 200, records)
}
