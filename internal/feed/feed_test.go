package feed

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/quillhq/quillfeed/internal/cache"
	"github.com/quillhq/quillfeed/internal/models"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		input    string
		expected Sort
	}{
		{"", SortNewest},
		{"newest", SortNewest},
		{"oldest", SortOldest},
		{"OLDEST", SortOldest},
		{"mostLiked", SortMostLiked},
		{"mostliked", SortMostLiked},
		{" MOSTLIKED ", SortMostLiked},
		{"hot", SortNewest},
	}

	for _, tt := range tests {
		if got := ParseSort(tt.input); got != tt.expected {
			t.Errorf("ParseSort(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNewPage(t *testing.T) {
	tests := []struct {
		name       string
		page, size int
		total      int64
		totalPages int
		first      bool
		last       bool
	}{
		{"empty", 0, 6, 0, 0, true, true},
		{"single partial page", 0, 6, 4, 1, true, true},
		{"first of three", 0, 6, 13, 3, true, false},
		{"middle", 1, 6, 13, 3, false, false},
		{"last", 2, 6, 13, 3, false, true},
		{"exact fit", 1, 5, 10, 2, false, true},
		{"beyond end", 5, 6, 13, 3, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPage[int64](nil, tt.page, tt.size, tt.total)
			if p.TotalPages != tt.totalPages || p.First != tt.first || p.Last != tt.last {
				t.Errorf("NewPage() = pages %d first %v last %v, want %d %v %v",
					p.TotalPages, p.First, p.Last, tt.totalPages, tt.first, tt.last)
			}
			if p.Content == nil {
				t.Error("Content should never be nil")
			}
		})
	}
}

type fakeStore struct {
	queries  []Query
	ids      []int64
	total    int64
	related  []int64
	recent   []int64
	err      error
	relCalls int
	recCalls int
}

func (f *fakeStore) FindPostIDs(ctx context.Context, q Query) ([]int64, int64, error) {
	f.queries = append(f.queries, q)
	return f.ids, f.total, f.err
}

func (f *fakeStore) FindRelatedPostIDs(ctx context.Context, postID int64, tagNames []string, limit int) ([]int64, error) {
	f.relCalls++
	return f.related, f.err
}

func (f *fakeStore) FindRecentPostIDs(ctx context.Context, excludeID int64, limit int) ([]int64, error) {
	f.recCalls++
	return f.recent, f.err
}

type mapCache struct {
	data map[string][]byte
	sets int
}

func newMapCache() *mapCache {
	return &mapCache{data: map[string][]byte{}}
}

func (m *mapCache) GetJSON(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.sets++
	m.data[key] = raw
	return nil
}

func (m *mapCache) Incr(ctx context.Context, key string) (int64, error) {
	var n int64
	if raw, ok := m.data[key]; ok {
		if err := json.Unmarshal(raw, &n); err != nil {
			return 0, err
		}
	}
	n++
	raw, _ := json.Marshal(n)
	m.data[key] = raw
	return n, nil
}

func TestPlannerNormalizesQuery(t *testing.T) {
	store := &fakeStore{ids: []int64{1}, total: 1}
	planner := NewPlanner(store, nil, DefaultOptions())

	_, err := planner.List(context.Background(), Query{Search: "   ", Tag: "  GoLang ", Page: -3, Size: 0})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	got := store.queries[0]
	if got.Search != "" {
		t.Errorf("blank search should be dropped, got %q", got.Search)
	}
	if got.Tag != "golang" {
		t.Errorf("tag should be normalized, got %q", got.Tag)
	}
	if got.Page != 0 || got.Size != 6 {
		t.Errorf("paging should default to 0/6, got %d/%d", got.Page, got.Size)
	}

	_, _ = planner.List(context.Background(), Query{Size: 500})
	if store.queries[1].Size != 50 {
		t.Errorf("size should be capped at 50, got %d", store.queries[1].Size)
	}
}

func TestPlannerFollowingEmptySkipsQuery(t *testing.T) {
	store := &fakeStore{}
	planner := NewPlanner(store, nil, DefaultOptions())

	page, err := planner.Following(context.Background(), nil, 2, 10)
	if err != nil {
		t.Fatalf("Following() error = %v", err)
	}
	if len(store.queries) != 0 {
		t.Errorf("expected no store query, got %d", len(store.queries))
	}
	if page.TotalElements != 0 || !page.First || !page.Last || len(page.Content) != 0 {
		t.Errorf("expected empty first/last page, got %+v", page)
	}
}

func TestPlannerFollowingRestrictsAuthors(t *testing.T) {
	store := &fakeStore{ids: []int64{9, 8}, total: 2}
	planner := NewPlanner(store, nil, DefaultOptions())

	page, err := planner.Following(context.Background(), []int64{4, 5}, 0, 10)
	if err != nil {
		t.Fatalf("Following() error = %v", err)
	}
	if !reflect.DeepEqual(store.queries[0].AuthorIDs, []int64{4, 5}) {
		t.Errorf("expected author restriction, got %v", store.queries[0].AuthorIDs)
	}
	if store.queries[0].Sort != SortNewest {
		t.Errorf("following feed should be newest first, got %v", store.queries[0].Sort)
	}
	if !reflect.DeepEqual(page.Content, []int64{9, 8}) {
		t.Errorf("unexpected content %v", page.Content)
	}
}

func TestPlannerTrendingUsesMostLiked(t *testing.T) {
	store := &fakeStore{}
	planner := NewPlanner(store, nil, DefaultOptions())

	if _, err := planner.Trending(context.Background(), 0, 6); err != nil {
		t.Fatalf("Trending() error = %v", err)
	}
	q := store.queries[0]
	if q.Sort != SortMostLiked || q.Search != "" || q.Tag != "" || q.AuthorIDs != nil {
		t.Errorf("unexpected trending query %+v", q)
	}
}

func TestPlannerCachesPages(t *testing.T) {
	store := &fakeStore{ids: []int64{3, 2}, total: 7}
	pageCache := newMapCache()
	opts := DefaultOptions()
	opts.CacheTTL = time.Minute
	planner := NewPlanner(store, pageCache, opts)
	ctx := context.Background()

	first, err := planner.List(ctx, Query{Tag: "go", Size: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	second, err := planner.List(ctx, Query{Tag: "GO", Size: 2})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(store.queries) != 1 {
		t.Errorf("expected one store query, got %d", len(store.queries))
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("cached page differs: %+v vs %+v", first, second)
	}

	if _, err := planner.Following(ctx, []int64{1}, 0, 2); err != nil {
		t.Fatalf("Following() error = %v", err)
	}
	if pageCache.sets != 1 {
		t.Errorf("following feed should not be cached, sets = %d", pageCache.sets)
	}
}

func TestPlannerInvalidateRetiresPages(t *testing.T) {
	store := &fakeStore{ids: []int64{3, 2}, total: 2}
	opts := DefaultOptions()
	opts.CacheTTL = time.Minute
	planner := NewPlanner(store, newMapCache(), opts)
	ctx := context.Background()

	if _, err := planner.List(ctx, Query{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if err := planner.Invalidate(ctx); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}

	store.ids, store.total = []int64{2}, 1
	page, err := planner.List(ctx, Query{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(store.queries) != 2 {
		t.Errorf("expected a fresh store query after invalidation, got %d queries", len(store.queries))
	}
	if !reflect.DeepEqual(page.Content, []int64{2}) || page.TotalElements != 1 {
		t.Errorf("expected fresh page, got %+v", page)
	}

	if _, err := planner.List(ctx, Query{}); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(store.queries) != 2 {
		t.Errorf("new generation should be cached, got %d queries", len(store.queries))
	}
}

func TestPlannerSkipsCacheForMostLiked(t *testing.T) {
	store := &fakeStore{ids: []int64{1}, total: 1}
	pageCache := newMapCache()
	opts := DefaultOptions()
	opts.CacheTTL = time.Minute
	planner := NewPlanner(store, pageCache, opts)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := planner.Trending(ctx, 0, 6); err != nil {
			t.Fatalf("Trending() error = %v", err)
		}
	}
	if len(store.queries) != 2 || pageCache.sets != 0 {
		t.Errorf("like-ordered pages should not be cached: queries %d sets %d", len(store.queries), pageCache.sets)
	}
}

func TestPlannerInvalidateWithoutCache(t *testing.T) {
	planner := NewPlanner(&fakeStore{}, nil, DefaultOptions())
	if err := planner.Invalidate(context.Background()); err != nil {
		t.Errorf("Invalidate() without cache error = %v", err)
	}
}

func TestPlannerClampsHugePage(t *testing.T) {
	planner := NewPlanner(&fakeStore{}, nil, DefaultOptions())

	tests := []struct {
		name string
		page int
		size int
	}{
		{"huge page", 1 << 62, 2},
		{"max int page", int(^uint(0) >> 1), 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := planner.Normalize(Query{Page: tt.page, Size: tt.size})
			offset := q.Page * q.Size
			if offset < 0 || offset > maxOffset {
				t.Errorf("offset %d out of range for page %d size %d", offset, q.Page, q.Size)
			}
			if q.Page <= 0 {
				t.Errorf("huge page should stay past the first page, got %d", q.Page)
			}
		})
	}
}

func TestPlannerRelatedFallback(t *testing.T) {
	tests := []struct {
		name        string
		post        *models.Post
		related     []int64
		recent      []int64
		expected    []int64
		wantRelated int
	}{
		{
			name:        "tag matches",
			post:        &models.Post{ID: 1, Tags: []models.Tag{{Name: "go"}}},
			related:     []int64{5, 6},
			recent:      []int64{7},
			expected:    []int64{5, 6},
			wantRelated: 1,
		},
		{
			name:        "no tag matches",
			post:        &models.Post{ID: 1, Tags: []models.Tag{{Name: "go"}}},
			recent:      []int64{7, 8, 9},
			expected:    []int64{7, 8, 9},
			wantRelated: 1,
		},
		{
			name:        "untagged post",
			post:        &models.Post{ID: 1},
			recent:      []int64{7},
			expected:    []int64{7},
			wantRelated: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{related: tt.related, recent: tt.recent}
			planner := NewPlanner(store, nil, DefaultOptions())

			got, err := planner.Related(context.Background(), tt.post)
			if err != nil {
				t.Fatalf("Related() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Related() = %v, want %v", got, tt.expected)
			}
			if store.relCalls != tt.wantRelated {
				t.Errorf("related lookups = %d, want %d", store.relCalls, tt.wantRelated)
			}
		})
	}
}
