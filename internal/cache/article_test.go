package cache

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/articles-api/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recordingStore wraps a MemoryStore and remembers every deleted key.
type recordingStore struct {
	*MemoryStore

	mu      sync.Mutex
	deleted []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{MemoryStore: NewMemoryStore()}
}

func (r *recordingStore) Delete(ctx context.Context, keys ...string) error {
	r.mu.Lock()
	r.deleted = append(r.deleted, keys...)
	r.mu.Unlock()
	return r.MemoryStore.Delete(ctx, keys...)
}

// brokenStore fails every operation.
type brokenStore struct{}

var errBroken = errors.New("connection refused")

func (brokenStore) Get(context.Context, string) ([]byte, error) { return nil, errBroken }
func (brokenStore) Set(context.Context, string, []byte, time.Duration) error { return errBroken }
func (brokenStore) Delete(context.Context, ...string) error { return errBroken }
func (brokenStore) Ping(context.Context) error { return errBroken }
func (brokenStore) Close() error { return nil }

// =========================================================================
// KEY TESTS
// =========================================================================

func TestItemKey(t *testing.T) {
	assert.Equal(t, "article:7", ItemKey(7))
}

func TestListKey_UnfilteredFormat(t *testing.T) {
	got := ListKey(model.ArticleFilter{}, 1, 10)
	assert.Equal(t, `articles:{"author":null,"startDate":null,"endDate":null,"page":1,"limit":10}`, got)
}

func TestListKey_IsPureAndDistinguishesInputs(t *testing.T) {
	author := int64(3)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	base := ListKey(model.ArticleFilter{Author: &author, StartDate: &start}, 2, 10)
	assert.Equal(t, base, ListKey(model.ArticleFilter{Author: &author, StartDate: &start}, 2, 10), "same input must give same key")

	other := int64(4)
	assert.NotEqual(t, base, ListKey(model.ArticleFilter{Author: &other, StartDate: &start}, 2, 10))
	assert.NotEqual(t, base, ListKey(model.ArticleFilter{Author: &author, StartDate: &start}, 3, 10))
	assert.NotEqual(t, base, ListKey(model.ArticleFilter{Author: &author, StartDate: &start}, 2, 20))
	assert.NotEqual(t, base, ListKey(model.ArticleFilter{Author: &author, EndDate: &start}, 2, 10),
		"a start date and an end date with the same value are different filters")
}

func TestListKey_SameInstantDifferentZone(t *testing.T) {
	utc := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	berlin := utc.In(time.FixedZone("CEST", 2*60*60))

	assert.Equal(t,
		ListKey(model.ArticleFilter{StartDate: &utc}, 1, 10),
		ListKey(model.ArticleFilter{StartDate: &berlin}, 1, 10),
	)
}

func TestDefaultListKey_DiffersFromFirstPage(t *testing.T) {
	assert.NotEqual(t, DefaultListKey(), ListKey(model.ArticleFilter{}, 1, 10))
}

func TestWindowKeys(t *testing.T) {
	keys := WindowKeys()

	require.Len(t, keys, WindowPages+1)
	assert.Equal(t, DefaultListKey(), keys[0])
	for page := 1; page <= WindowPages; page++ {
		assert.Contains(t, keys, ListKey(model.ArticleFilter{}, page, WindowLimit))
	}
}

// =========================================================================
// GET / SET TESTS
// =========================================================================

func TestArticleCache_ItemRoundTrip(t *testing.T) {
	c := New(NewMemoryStore(), testLogger())
	ctx := context.Background()

	_, ok := c.GetItem(ctx, ItemKey(1))
	assert.False(t, ok, "cold cache must miss")

	a := &model.Article{ID: 1, Title: "T", Author: model.Author{ID: 2, Username: "alice"}}
	c.SetItem(ctx, ItemKey(1), a)

	got, ok := c.GetItem(ctx, ItemKey(1))
	require.True(t, ok)
	assert.Equal(t, a.Title, got.Title)
	assert.Equal(t, a.Author, got.Author)
}

func TestArticleCache_ListRoundTrip(t *testing.T) {
	c := New(NewMemoryStore(), testLogger())
	ctx := context.Background()
	key := ListKey(model.ArticleFilter{}, 1, 10)

	page := &model.ArticlePage{Data: []model.Article{}, Total: 0, Page: 1, LastPage: 0}
	c.SetList(ctx, key, page)

	got, ok := c.GetList(ctx, key)
	require.True(t, ok)
	assert.Equal(t, page, got)
}

func TestArticleCache_UndecodableEntryIsMiss(t *testing.T) {
	store := NewMemoryStore()
	c := New(store, testLogger())
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, ItemKey(9), []byte("{not json"), TTL))

	_, ok := c.GetItem(ctx, ItemKey(9))
	assert.False(t, ok)
}

func TestArticleCache_BrokenStoreDegradesToMiss(t *testing.T) {
	c := New(brokenStore{}, testLogger())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		c.SetItem(ctx, ItemKey(1), &model.Article{ID: 1})
		c.InvalidateItem(ctx, 1)
		c.InvalidateListWindow(ctx)
	})

	_, ok := c.GetItem(ctx, ItemKey(1))
	assert.False(t, ok)
	assert.Error(t, c.Ping(ctx))
}

func TestArticleCache_EntriesExpireAfterTTL(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	c := New(store, testLogger())
	ctx := context.Background()

	c.SetItem(ctx, ItemKey(1), &model.Article{ID: 1})

	now = now.Add(TTL - time.Second)
	_, ok := c.GetItem(ctx, ItemKey(1))
	assert.True(t, ok, "entry should live until the TTL")

	now = now.Add(time.Second)
	_, ok = c.GetItem(ctx, ItemKey(1))
	assert.False(t, ok, "entry should be gone at the TTL")
}

func TestMemoryStore_SetSweepsExpiredUnreadEntries(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := range 10_000 {
		require.NoError(t, store.Set(ctx, "articles:"+strconv.Itoa(i), []byte("{}"), TTL))
	}
	require.NoError(t, store.Set(ctx, "pinned", []byte("{}"), 0))

	now = now.Add(time.Hour)
	require.NoError(t, store.Set(ctx, "fresh", []byte("{}"), TTL))

	store.mu.Lock()
	held := len(store.entries)
	store.mu.Unlock()
	assert.Equal(t, 2, held, "only the unexpiring and the fresh entry should remain")

	_, err := store.Get(ctx, "pinned")
	assert.NoError(t, err)
}

func TestMemoryStore_SweepKeepsLiveEntries(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "a", []byte("1"), TTL))
	now = now.Add(2 * sweepInterval)
	require.NoError(t, store.Set(ctx, "b", []byte("2"), TTL))

	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got)
}

// =========================================================================
// INVALIDATION TESTS
// =========================================================================

func TestInvalidateListWindow_DeletesExactlyTheWindow(t *testing.T) {
	store := newRecordingStore()
	c := New(store, testLogger())
	ctx := context.Background()

	c.InvalidateListWindow(ctx)

	assert.ElementsMatch(t, WindowKeys(), store.deleted)
}

func TestInvalidateListWindow_LeavesOtherListsAlone(t *testing.T) {
	c := New(NewMemoryStore(), testLogger())
	ctx := context.Background()
	page := &model.ArticlePage{Data: []model.Article{}, Page: 1}

	author := int64(1)
	filtered := ListKey(model.ArticleFilter{Author: &author}, 1, 10)
	deep := ListKey(model.ArticleFilter{}, 11, 10)
	inWindow := ListKey(model.ArticleFilter{}, 3, 10)

	for _, k := range []string{filtered, deep, inWindow, DefaultListKey()} {
		c.SetList(ctx, k, page)
	}

	c.InvalidateListWindow(ctx)

	_, ok := c.GetList(ctx, inWindow)
	assert.False(t, ok, "page 3 is in the window")
	_, ok = c.GetList(ctx, DefaultListKey())
	assert.False(t, ok, "the default key is in the window")
	_, ok = c.GetList(ctx, filtered)
	assert.True(t, ok, "filtered lists are left to the TTL")
	_, ok = c.GetList(ctx, deep)
	assert.True(t, ok, "pages beyond the window are left to the TTL")
}

func TestInvalidateItem(t *testing.T) {
	store := newRecordingStore()
	c := New(store, testLogger())
	ctx := context.Background()

	c.SetItem(ctx, ItemKey(5), &model.Article{ID: 5})
	c.InvalidateItem(ctx, 5)

	_, ok := c.GetItem(ctx, ItemKey(5))
	assert.False(t, ok)
	assert.Equal(t, []string{"article:5"}, store.deleted)
}
