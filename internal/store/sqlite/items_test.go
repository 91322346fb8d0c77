package sqlite

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picsapp/picsapp-server/internal/domain"
	"github.com/picsapp/picsapp-server/internal/store"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return ts
}

func insertTestItem(t *testing.T, s *Store, id string, createdAt time.Time) *domain.Item {
	t.Helper()
	item := &domain.Item{
		ID:          id,
		DisplayName: "photo " + id,
		Locator:     domain.LocatorFor(id),
		CreatedAt:   createdAt,
	}
	require.NoError(t, s.InsertItem(context.Background(), item))
	return item
}

func TestInsertAndGetItem(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := mustParse(t, "2024-05-01T10:00:00.123456789Z")

	insertTestItem(t, s, "100.webp", created)

	got, err := s.GetItem(ctx, "100.webp")
	require.NoError(t, err)
	assert.Equal(t, "photo 100.webp", got.DisplayName)
	assert.Equal(t, "/uploads/100.webp", got.Locator)
	assert.Equal(t, int64(0), got.LikeCount)
	assert.True(t, created.Equal(got.CreatedAt))

	err = s.InsertItem(ctx, &domain.Item{ID: "100.webp", CreatedAt: created})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestGetItem_NotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetItem(context.Background(), "missing.webp")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetRecentItems(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := mustParse(t, "2024-05-01T10:00:00Z")

	for i := range 5 {
		insertTestItem(t, s, fmt.Sprintf("%d.webp", i), base.Add(time.Duration(i)*time.Second))
	}

	items, err := s.GetRecentItems(ctx, 3)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "4.webp", items[0].ID)
	assert.Equal(t, "3.webp", items[1].ID)
	assert.Equal(t, "2.webp", items[2].ID)

	_, err = s.GetRecentItems(ctx, 0)
	assert.ErrorIs(t, err, store.ErrInvalidInput)
}

func TestGetRankedItems_Ordering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := mustParse(t, "2024-05-01T10:00:00Z")

	// Random insertion and like order; the ranking must not depend on either.
	r := rand.New(rand.NewPCG(1, 2))
	ids := make([]string, 12)
	for i, n := range r.Perm(len(ids)) {
		ids[i] = fmt.Sprintf("%02d.webp", n)
		insertTestItem(t, s, ids[i], base.Add(time.Duration(n)*time.Minute))
	}
	for range 40 {
		id := ids[r.IntN(len(ids))]
		require.NoError(t, s.IncrementLikeCount(ctx, id))
	}

	ranked, err := s.GetRankedItems(ctx)
	require.NoError(t, err)
	require.Len(t, ranked, len(ids))

	for i := 1; i < len(ranked); i++ {
		prev, cur := ranked[i-1], ranked[i]
		if prev.LikeCount == cur.LikeCount {
			assert.False(t, prev.CreatedAt.Before(cur.CreatedAt),
				"tie between %s and %s must favour the newer item", prev.ID, cur.ID)
		} else {
			assert.Greater(t, prev.LikeCount, cur.LikeCount)
		}
	}
}

func TestGetRankedItems_TieBreaksOnCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := mustParse(t, "2024-05-01T10:00:00Z")

	insertTestItem(t, s, "old.webp", base)
	insertTestItem(t, s, "new.webp", base.Add(time.Hour))
	insertTestItem(t, s, "liked.webp", base.Add(-time.Hour))
	require.NoError(t, s.IncrementLikeCount(ctx, "liked.webp"))

	ranked, err := s.GetRankedItems(ctx)
	require.NoError(t, err)
	require.Len(t, ranked, 3)
	assert.Equal(t, "liked.webp", ranked[0].ID)
	assert.Equal(t, "new.webp", ranked[1].ID)
	assert.Equal(t, "old.webp", ranked[2].ID)
}

func TestIncrementLikeCount_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestItem(t, s, "hot.webp", time.Now())

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.IncrementLikeCount(ctx, "hot.webp")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	item, err := s.GetItem(ctx, "hot.webp")
	require.NoError(t, err)
	assert.Equal(t, int64(n), item.LikeCount)
}

func TestGetItem_DuringConcurrentWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestItem(t, s, "busy.webp", time.Now())

	const n = 40
	var wg sync.WaitGroup
	errs := make(chan error, 2*n)
	for range n {
		wg.Add(2)
		go func() {
			defer wg.Done()
			errs <- s.IncrementLikeCount(ctx, "busy.webp")
		}()
		go func() {
			defer wg.Done()
			_, err := s.GetItem(ctx, "busy.webp")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	item, err := s.GetItem(ctx, "busy.webp")
	require.NoError(t, err)
	assert.Equal(t, int64(n), item.LikeCount)
}

func TestIncrementLikeCount_NotFound(t *testing.T) {
	s := newTestStore(t)

	err := s.IncrementLikeCount(context.Background(), "nope.webp")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRenameItem_PreservesLikesAndCreatedAt(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	created := mustParse(t, "2023-01-01T00:00:00Z")
	insertTestItem(t, s, "legacy.jpg", created)
	require.NoError(t, s.IncrementLikeCount(ctx, "legacy.jpg"))
	require.NoError(t, s.IncrementLikeCount(ctx, "legacy.jpg"))

	err := s.RenameItem(ctx, "legacy.jpg", &domain.Item{
		ID:       "legacy.webp",
		Locator:  domain.LocatorFor("legacy.webp"),
		BlurHash: "LEHV6nWB2yk8pyo0adR*.7kCMdnj",
	})
	require.NoError(t, err)

	_, err = s.GetItem(ctx, "legacy.jpg")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetItem(ctx, "legacy.webp")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.LikeCount)
	assert.True(t, created.Equal(got.CreatedAt))
	assert.Equal(t, "/uploads/legacy.webp", got.Locator)
	assert.Equal(t, "photo legacy.jpg", got.DisplayName)
	assert.NotEmpty(t, got.BlurHash)
}

func TestRenameItem_Errors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	insertTestItem(t, s, "a.jpg", time.Now())
	insertTestItem(t, s, "b.webp", time.Now())

	err := s.RenameItem(ctx, "missing.jpg", &domain.Item{ID: "x.webp"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.RenameItem(ctx, "a.jpg", &domain.Item{ID: "b.webp"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}
