// Package feed selects which published posts appear in a feed and in what
// order. It works on post ids; loading and gating happen in the caller.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/quillhq/quillfeed/internal/cache"
	"github.com/quillhq/quillfeed/internal/models"
	"github.com/quillhq/quillfeed/internal/tags"
	"github.com/quillhq/quillfeed/pkg/logging"
	"github.com/quillhq/quillfeed/pkg/telemetry"
)

const (
	generationKey = "feed:generation"

	// maxOffset bounds page*size so the row offset cannot overflow.
	maxOffset = math.MaxInt32
)

// Query describes a public feed request
type Query struct {
	Search string
	Tag    string
	Sort   Sort
	Page   int
	Size   int

	// AuthorIDs restricts results to these authors when non-nil.
	AuthorIDs []int64
}

// Store runs feed queries against published posts
type Store interface {
	// FindPostIDs returns one page of post ids matching q, in q.Sort order,
	// and the total number of matching posts.
	FindPostIDs(ctx context.Context, q Query) ([]int64, int64, error)
	// FindRelatedPostIDs returns posts sharing at least one of tagNames,
	// excluding postID, by shared tag count then recency.
	FindRelatedPostIDs(ctx context.Context, postID int64, tagNames []string, limit int) ([]int64, error)
	// FindRecentPostIDs returns the most recent posts other than excludeID.
	FindRecentPostIDs(ctx context.Context, excludeID int64, limit int) ([]int64, error)
}

// Cache stores JSON values by key
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
}

// Options configures paging limits and caching
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	RelatedLimit    int
	FallbackLimit   int
	CacheTTL        time.Duration
}

// DefaultOptions returns the stock paging limits
func DefaultOptions() Options {
	return Options{
		DefaultPageSize: 6,
		MaxPageSize:     50,
		RelatedLimit:    4,
		FallbackLimit:   3,
	}
}

// Planner plans and executes feed queries
type Planner struct {
	store  Store
	cache  Cache
	opts   Options
	logger *zap.Logger
}

// NewPlanner creates a new feed planner. cache may be nil.
func NewPlanner(store Store, pageCache Cache, opts Options) *Planner {
	return &Planner{
		store:  store,
		cache:  pageCache,
		opts:   opts,
		logger: logging.WithComponent("feed-planner"),
	}
}

type cachedPage struct {
	IDs   []int64 `json:"ids"`
	Total int64   `json:"total"`
}

// Normalize applies paging limits and canonicalizes filters. Blank search
// and tag values are dropped.
func (p *Planner) Normalize(q Query) Query {
	q.Search = strings.TrimSpace(q.Search)
	q.Tag = tags.NormalizeOne(q.Tag)
	if q.Page < 0 {
		q.Page = 0
	}
	if q.Size <= 0 {
		q.Size = p.opts.DefaultPageSize
	}
	if p.opts.MaxPageSize > 0 && q.Size > p.opts.MaxPageSize {
		q.Size = p.opts.MaxPageSize
	}
	if q.Size > 0 && q.Page > maxOffset/q.Size {
		q.Page = maxOffset / q.Size
	}
	return q
}

// List returns one page of published post ids for q
func (p *Planner) List(ctx context.Context, q Query) (Page[int64], error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.list")
	defer span.End()

	q = p.Normalize(q)
	if q.AuthorIDs != nil && len(q.AuthorIDs) == 0 {
		return EmptyPage[int64](q.Page, q.Size), nil
	}

	key := p.cacheKey(ctx, q)
	if key != "" {
		var cached cachedPage
		if err := p.cache.GetJSON(ctx, key, &cached); err == nil {
			return NewPage(cached.IDs, q.Page, q.Size, cached.Total), nil
		}
	}

	ids, total, err := p.store.FindPostIDs(ctx, q)
	if err != nil {
		return Page[int64]{}, fmt.Errorf("failed to query feed: %w", err)
	}

	if key != "" {
		err := p.cache.SetJSON(ctx, key, cachedPage{IDs: ids, Total: total}, p.opts.CacheTTL)
		if err != nil && !errors.Is(err, cache.ErrCacheDisabled) {
			p.logger.Warn("Failed to cache feed page", zap.Error(err))
		}
	}

	return NewPage(ids, q.Page, q.Size, total), nil
}

// Invalidate drops every cached feed page by moving to a new cache
// generation. Call it after any write that changes post visibility or
// feed membership.
func (p *Planner) Invalidate(ctx context.Context) error {
	if p.cache == nil || p.opts.CacheTTL <= 0 {
		return nil
	}
	if _, err := p.cache.Incr(ctx, generationKey); err != nil {
		return fmt.Errorf("failed to bump feed cache generation: %w", err)
	}
	return nil
}

// Trending returns published posts ordered by like count
func (p *Planner) Trending(ctx context.Context, page, size int) (Page[int64], error) {
	return p.List(ctx, Query{Sort: SortMostLiked, Page: page, Size: size})
}

// Following returns the newest published posts written by followed
// authors. An empty follow set yields an empty page without querying.
func (p *Planner) Following(ctx context.Context, followed []int64, page, size int) (Page[int64], error) {
	if followed == nil {
		followed = []int64{}
	}
	return p.List(ctx, Query{Sort: SortNewest, Page: page, Size: size, AuthorIDs: followed})
}

// Related returns posts sharing tags with post, falling back to the most
// recent other posts when nothing shares a tag.
func (p *Planner) Related(ctx context.Context, post *models.Post) ([]int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.related")
	defer span.End()

	if names := post.TagNames(); len(names) > 0 {
		ids, err := p.store.FindRelatedPostIDs(ctx, post.ID, names, p.opts.RelatedLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to query related posts: %w", err)
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}

	ids, err := p.store.FindRecentPostIDs(ctx, post.ID, p.opts.FallbackLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent posts: %w", err)
	}
	return ids, nil
}

// cacheKey returns "" for queries that are not cached. Author-restricted
// queries are viewer specific, and like counts change without a post write,
// so neither is cached. Keys embed the current generation so Invalidate
// retires all earlier pages at once.
func (p *Planner) cacheKey(ctx context.Context, q Query) string {
	if p.cache == nil || p.opts.CacheTTL <= 0 || q.AuthorIDs != nil || q.Sort == SortMostLiked {
		return ""
	}

	var generation int64
	if err := p.cache.GetJSON(ctx, generationKey, &generation); err != nil && !errors.Is(err, cache.ErrMiss) {
		if !errors.Is(err, cache.ErrCacheDisabled) {
			p.logger.Warn("Failed to read feed cache generation", zap.Error(err))
		}
		return ""
	}

	return "feed:" + cache.HashKey(
		"list",
		strconv.FormatInt(generation, 10),
		q.Sort.String(),
		strings.ToLower(q.Search),
		q.Tag,
		strconv.Itoa(q.Page),
		strconv.Itoa(q.Size),
	)
}
