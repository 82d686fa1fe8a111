package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sakif/articles-api/internal/model"
)

const (
	// TTL bounds how stale any entry can get when invalidation misses it.
	TTL = 5 * time.Minute

	itemPrefix = "article:"
	listPrefix = "articles"

	// The invalidation window: the unparameterized list key plus pages
	// 1..WindowPages at limit WindowLimit with no filter.
	WindowPages = 10
	WindowLimit = 10

	// invalidateTimeout bounds deletes that no longer follow the request context.
	invalidateTimeout = 2 * time.Second
)

// ItemKey is the cache key for one article.
func ItemKey(id int64) string {
	return itemPrefix + strconv.FormatInt(id, 10)
}

// DefaultListKey is the key for a list request that carried no parameters.
func DefaultListKey() string {
	return listPrefix
}

// listKeyParams fixes the field order of the list key. Absent filters
// serialize as null.
type listKeyParams struct {
	Author    *int64  `json:"author"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
	Page      int     `json:"page"`
	Limit     int     `json:"limit"`
}

// ListKey is the cache key for one page of a list query. It is a pure
// function of its arguments; instants are rendered in UTC so the same
// moment written in two zones maps to one key.
func ListKey(filter model.ArticleFilter, page, limit int) string {
	p := listKeyParams{
		Author:    filter.Author,
		StartDate: utcString(filter.StartDate),
		EndDate:   utcString(filter.EndDate),
		Page:      page,
		Limit:     limit,
	}
	// Marshalling ints, strings and nils cannot fail.
	b, _ := json.Marshal(p)
	return listPrefix + ":" + string(b)
}

func utcString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

// ArticleCache stores articles and article pages as JSON in a Store.
//
// Every method is best-effort: a failing store turns reads into misses and
// writes into log lines, so the database stays the source of truth.
type ArticleCache struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *ArticleCache {
	return &ArticleCache{store: store, logger: logger}
}

// GetItem returns the cached article under key, if any.
func (c *ArticleCache) GetItem(ctx context.Context, key string) (*model.Article, bool) {
	var a model.Article
	if !c.get(ctx, "get_item", key, &a) {
		return nil, false
	}
	return &a, true
}

// GetList returns the cached page under key, if any.
func (c *ArticleCache) GetList(ctx context.Context, key string) (*model.ArticlePage, bool) {
	var p model.ArticlePage
	if !c.get(ctx, "get_list", key, &p) {
		return nil, false
	}
	return &p, true
}

func (c *ArticleCache) SetItem(ctx context.Context, key string, a *model.Article) {
	c.set(ctx, "set_item", key, a)
}

func (c *ArticleCache) SetList(ctx context.Context, key string, p *model.ArticlePage) {
	c.set(ctx, "set_list", key, p)
}

// invalidationContext keeps ctx's values but not its cancellation. By the
// time we invalidate, the write is committed; a client hanging up must not
// leave stale entries behind.
func invalidationContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), invalidateTimeout)
}

// InvalidateItem drops the cached copy of one article.
func (c *ArticleCache) InvalidateItem(ctx context.Context, id int64) {
	ctx, cancel := invalidationContext(ctx)
	defer cancel()

	key := ItemKey(id)
	if err := c.store.Delete(ctx, key); err != nil {
		record("invalidate_item", resultError)
		c.logger.Warn("cache invalidate failed", "key", key, "error", err)
		return
	}
	record("invalidate_item", resultOK)
}

// WindowKeys lists the keys InvalidateListWindow deletes.
func WindowKeys() []string {
	keys := make([]string, 0, WindowPages+1)
	keys = append(keys, DefaultListKey())
	for page := 1; page <= WindowPages; page++ {
		keys = append(keys, ListKey(model.ArticleFilter{}, page, WindowLimit))
	}
	return keys
}

// InvalidateListWindow deletes the unfiltered list pages clients most likely
// hold. Filtered lists, other limits and deeper pages are left to expire
// with the TTL.
//
// The deletes are independent, so they run concurrently and one failure
// does not stop the rest.
func (c *ArticleCache) InvalidateListWindow(ctx context.Context) {
	ctx, cancel := invalidationContext(ctx)
	defer cancel()

	var g errgroup.Group
	for _, key := range WindowKeys() {
		g.Go(func() error {
			if err := c.store.Delete(ctx, key); err != nil {
				c.logger.Warn("cache invalidate failed", "key", key, "error", err)
				return err
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		record("invalidate_window", resultError)
		return
	}
	record("invalidate_window", resultOK)
}

// Ping reports whether the backing store is reachable.
func (c *ArticleCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *ArticleCache) get(ctx context.Context, op, key string, dst any) bool {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			record(op, resultMiss)
			return false
		}
		record(op, resultError)
		c.logger.Warn("cache read failed", "key", key, "error", err)
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		record(op, resultError)
		c.logger.Warn("cache entry undecodable", "key", key, "error", err)
		return false
	}

	record(op, resultHit)
	return true
}

func (c *ArticleCache) set(ctx context.Context, op, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		record(op, resultError)
		c.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}

	if err := c.store.Set(ctx, key, data, TTL); err != nil {
		record(op, resultError)
		c.logger.Warn("cache write failed", "key", key, "error", err)
		return
	}
	record(op, resultOK)
}
