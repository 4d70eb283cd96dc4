package blocklist

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Driftline/internal/backend/backendtest"
	"Driftline/internal/core/cache"
	"Driftline/internal/core/records"
)

func block(id, blocker, blocked string) *records.Block {
	return &records.Block{
		ID:        id,
		BlockerID: blocker,
		BlockedID: blocked,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestResolve_UnionsBothDirections(t *testing.T) {
	fake := backendtest.NewFake()
	fake.Seed(records.CollectionBlocks,
		block("b1", "viewer", "outbound-user"),
		block("b2", "inbound-user", "viewer"),
		block("b3", "stranger", "other"),
	)

	r := NewResolver(fake, true, nil)
	hidden, degraded, err := r.Resolve(context.Background(), "viewer")

	require.NoError(t, err)
	assert.False(t, degraded)
	assert.True(t, hidden.Has("outbound-user"))
	assert.True(t, hidden.Has("inbound-user"))
	assert.False(t, hidden.Has("stranger"))
	assert.Len(t, hidden, 2)
}

func TestResolve_AnonymousViewerHidesNothing(t *testing.T) {
	fake := backendtest.NewFake()
	fake.Seed(records.CollectionBlocks, block("b1", "a", "b"))

	r := NewResolver(fake, true, nil)
	hidden, degraded, err := r.Resolve(context.Background(), "")

	require.NoError(t, err)
	assert.False(t, degraded)
	assert.Empty(t, hidden)
}

func TestResolve_PaginatesPastPageSize(t *testing.T) {
	fake := backendtest.NewFake()
	for i := 0; i < edgePageSize+30; i++ {
		fake.Seed(records.CollectionBlocks,
			block(fmt.Sprintf("b%d", i), "viewer", fmt.Sprintf("user%d", i)))
	}

	r := NewResolver(fake, true, nil)
	hidden, _, err := r.Resolve(context.Background(), "viewer")

	require.NoError(t, err)
	assert.Len(t, hidden, edgePageSize+30)
}

func TestResolve_FailOpenReturnsEmptySet(t *testing.T) {
	fake := backendtest.NewFake()
	fake.FetchErr = errors.New("network down")

	r := NewResolver(fake, true, nil)
	hidden, degraded, err := r.Resolve(context.Background(), "viewer")

	require.NoError(t, err)
	assert.True(t, degraded)
	assert.Empty(t, hidden)
}

func TestResolve_FailClosedPropagatesError(t *testing.T) {
	fake := backendtest.NewFake()
	fake.FetchErr = errors.New("network down")

	r := NewResolver(fake, false, nil)
	_, _, err := r.Resolve(context.Background(), "viewer")

	assert.Error(t, err)
}

func TestCachedResolver_CachesResolvedSet(t *testing.T) {
	fake := backendtest.NewFake()
	fake.Seed(records.CollectionBlocks, block("b1", "viewer", "enemy"))
	store := cache.NewStore(128, time.Minute, nil)
	c := NewCachedResolver(NewResolver(fake, true, nil), store)

	hidden, err := c.Hidden(context.Background(), "viewer")
	require.NoError(t, err)
	assert.True(t, hidden.Has("enemy"))

	calls := fake.FetchPageCalls()
	hidden, err = c.Hidden(context.Background(), "viewer")
	require.NoError(t, err)
	assert.True(t, hidden.Has("enemy"))
	assert.Equal(t, calls, fake.FetchPageCalls())
}

func TestCachedResolver_DegradedSetNotCached(t *testing.T) {
	fake := backendtest.NewFake()
	fake.Seed(records.CollectionBlocks, block("b1", "viewer", "enemy"))
	store := cache.NewStore(128, time.Minute, nil)
	c := NewCachedResolver(NewResolver(fake, true, nil), store)

	// Transient failure: the fail-open placeholder serves this read only.
	fake.FetchErr = errors.New("network down")
	hidden, err := c.Hidden(context.Background(), "viewer")
	require.NoError(t, err)
	assert.Empty(t, hidden)

	_, cached := store.Get(cache.BlocklistKey("viewer"))
	assert.False(t, cached)

	// The next read re-resolves and filtering comes back.
	fake.FetchErr = nil
	hidden, err = c.Hidden(context.Background(), "viewer")
	require.NoError(t, err)
	assert.True(t, hidden.Has("enemy"))
}

func TestSet_CloneValueIsIndependent(t *testing.T) {
	original := Set{"a": {}}
	clone := original.CloneValue().(Set)
	clone["b"] = struct{}{}

	assert.False(t, original.Has("b"))
	assert.True(t, clone.Has("a"))
}
