package listing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/erazemk/lofoph/internal/client"
	"github.com/erazemk/lofoph/internal/model"
)

type pagedFetcher struct {
	mu      sync.Mutex
	pages   map[int][]model.Item
	err     error
	queries []client.ListQuery
}

func (f *pagedFetcher) ListItems(ctx context.Context, q client.ListQuery) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.pages[q.Page], nil
}

func (f *pagedFetcher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// gatedFetcher blocks every request until the test releases it.
type gatedFetcher struct {
	started chan client.ListQuery
	release chan []model.Item
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		started: make(chan client.ListQuery),
		release: make(chan []model.Item),
	}
}

func (g *gatedFetcher) ListItems(ctx context.Context, q client.ListQuery) ([]model.Item, error) {
	g.started <- q
	return <-g.release, nil
}

func items(ids ...string) []model.Item {
	out := make([]model.Item, len(ids))
	for i, id := range ids {
		out[i] = model.Item{ID: id, Name: "item " + id, ItemType: model.ItemTypeLost}
	}
	return out
}

func ids(s Snapshot) []string {
	out := []string{}
	for _, it := range s.Items {
		out = append(out, it.ID)
	}
	return out
}

func newTestController(f Fetcher, opts ...Option) *Controller {
	opts = append([]Option{WithPageSize(2), WithLoadMoreDelay(0)}, opts...)
	return New(f, model.ItemTypeLost, opts...)
}

func TestApplyFiltersReplacesBuffer(t *testing.T) {
	f := &pagedFetcher{pages: map[int][]model.Item{1: items("a", "b"), 2: items("c", "d")}}
	c := newTestController(f)
	ctx := context.Background()

	if err := c.ApplyFilters(ctx, model.Filters{}); err != nil {
		t.Fatalf("ApplyFilters: %v", err)
	}
	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}

	f.pages = map[int][]model.Item{1: items("x")}
	if err := c.ApplyFilters(ctx, model.Filters{Category: "Bags"}); err != nil {
		t.Fatalf("ApplyFilters: %v", err)
	}

	s := c.Snapshot()
	if diff := cmp.Diff([]string{"x"}, ids(s)); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}
	if s.Page != 1 {
		t.Errorf("expected page 1, got %d", s.Page)
	}
	if s.HasMore {
		t.Error("expected hasMore false for a short first page")
	}
	if s.State != Exhausted {
		t.Errorf("expected state exhausted, got %s", s.State)
	}
}

func TestInitialFullPageHasMore(t *testing.T) {
	f := &pagedFetcher{pages: map[int][]model.Item{1: items("a", "b")}}
	c := newTestController(f)

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	s := c.Snapshot()
	if !s.HasMore || s.State != Idle || !s.Loaded {
		t.Errorf("unexpected snapshot: hasMore=%v state=%s loaded=%v", s.HasMore, s.State, s.Loaded)
	}
}

func TestLoadMoreAppendsInOrder(t *testing.T) {
	f := &pagedFetcher{pages: map[int][]model.Item{
		1: items("a", "b"),
		2: items("c", "d"),
		3: items("e"),
	}}
	c := newTestController(f)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	for range 2 {
		if err := c.LoadMore(ctx); err != nil {
			t.Fatalf("LoadMore: %v", err)
		}
	}

	s := c.Snapshot()
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, ids(s)); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}
	if s.Page != 3 {
		t.Errorf("expected page 3, got %d", s.Page)
	}
	if s.HasMore || s.State != Exhausted {
		t.Errorf("expected exhausted listing, got hasMore=%v state=%s", s.HasMore, s.State)
	}
}

func TestLoadMoreEmptyPage(t *testing.T) {
	f := &pagedFetcher{pages: map[int][]model.Item{1: items("a", "b")}}
	c := newTestController(f)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}

	s := c.Snapshot()
	if diff := cmp.Diff([]string{"a", "b"}, ids(s)); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}
	if s.Page != 1 {
		t.Errorf("expected cursor to stay at 1, got %d", s.Page)
	}
	if s.HasMore {
		t.Error("expected hasMore false after an empty page")
	}

	calls := f.calls()
	if err := c.LoadMore(ctx); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	if f.calls() != calls {
		t.Error("expected no fetch once exhausted")
	}
}

func TestLoadMoreBeforeLoad(t *testing.T) {
	f := &pagedFetcher{}
	c := newTestController(f)

	if err := c.LoadMore(context.Background()); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded, got %v", err)
	}
	if f.calls() != 0 {
		t.Errorf("expected no fetch, got %d", f.calls())
	}
}

func TestQueryParameters(t *testing.T) {
	f := &pagedFetcher{pages: map[int][]model.Item{1: items("a", "b")}}
	c := New(f, model.ItemTypeFound, WithPageSize(2), WithLoadMoreDelay(0), WithUser("u1"))
	ctx := context.Background()

	if err := c.ApplyFilters(ctx, model.Filters{Search: " phone ", Category: "all", City: "Makati"}); err != nil {
		t.Fatalf("ApplyFilters: %v", err)
	}
	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}

	want := []client.ListQuery{
		{Page: 1, Limit: 2, ItemType: model.ItemTypeFound, Filters: model.Filters{Search: "phone", City: "Makati"}, User: "u1"},
		{Page: 2, Limit: 2, ItemType: model.ItemTypeFound, Filters: model.Filters{Search: "phone", City: "Makati"}, User: "u1"},
	}
	if diff := cmp.Diff(want, f.queries); diff != "" {
		t.Errorf("queries mismatch (-want +got):\n%s", diff)
	}
}

func TestSingleFetchInFlight(t *testing.T) {
	g := newGatedFetcher()
	c := newTestController(g)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.Refresh(ctx) }()
	<-g.started

	if s := c.Snapshot(); !s.Loading || s.State != FetchingInitial {
		t.Errorf("expected fetching-initial while in flight, got %s", s.State)
	}
	if err := c.LoadMore(ctx); !errors.Is(err, ErrFetchInFlight) {
		t.Errorf("expected ErrFetchInFlight, got %v", err)
	}

	g.release <- items("a", "b")
	if err := <-done; err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	go func() { done <- c.LoadMore(ctx) }()
	q := <-g.started
	if q.Page != 2 {
		t.Errorf("expected page 2 request, got %d", q.Page)
	}
	if err := c.LoadMore(ctx); !errors.Is(err, ErrFetchInFlight) {
		t.Errorf("expected ErrFetchInFlight during load more, got %v", err)
	}
	g.release <- items("c")
	if err := <-done; err != nil {
		t.Fatalf("LoadMore: %v", err)
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, ids(c.Snapshot())); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}
}

func TestStaleResponseDiscarded(t *testing.T) {
	g := newGatedFetcher()
	c := newTestController(g)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.ApplyFilters(ctx, model.Filters{Category: "Bags"}) }()
	<-g.started

	if err := c.ApplyFilters(ctx, model.Filters{Category: "Wallet"}); !errors.Is(err, ErrFetchInFlight) {
		t.Errorf("expected ErrFetchInFlight, got %v", err)
	}

	g.release <- items("bag-1", "bag-2")
	if err := <-done; !errors.Is(err, ErrStale) {
		t.Errorf("expected ErrStale, got %v", err)
	}

	s := c.Snapshot()
	if len(s.Items) != 0 {
		t.Errorf("expected stale items to be discarded, got %v", ids(s))
	}
	if s.Filters.Category != "Wallet" {
		t.Errorf("expected newer filters to be kept, got %q", s.Filters.Category)
	}
	if s.Loaded || s.State != Idle {
		t.Errorf("expected idle and unloaded, got state=%s loaded=%v", s.State, s.Loaded)
	}

	go func() { done <- c.Refresh(ctx) }()
	q := <-g.started
	if q.Filters.Category != "Wallet" {
		t.Errorf("expected refresh to use newer filters, got %q", q.Filters.Category)
	}
	g.release <- items("wallet-1")
	if err := <-done; err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if diff := cmp.Diff([]string{"wallet-1"}, ids(c.Snapshot())); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchFailureIsEmptyPage(t *testing.T) {
	f := &pagedFetcher{pages: map[int][]model.Item{1: items("a", "b")}}
	c := newTestController(f)
	ctx := context.Background()

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	f.err = errors.New("connection refused")
	if err := c.LoadMore(ctx); err != nil {
		t.Fatalf("LoadMore: %v", err)
	}

	s := c.Snapshot()
	if diff := cmp.Diff([]string{"a", "b"}, ids(s)); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}
	if s.HasMore || s.Loading {
		t.Errorf("expected hasMore and loading false, got %v %v", s.HasMore, s.Loading)
	}

	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s := c.Snapshot(); len(s.Items) != 0 || s.HasMore || s.Loaded {
		t.Errorf("expected empty unloaded listing after failed refresh, got %v hasMore=%v loaded=%v", ids(s), s.HasMore, s.Loaded)
	}
	if err := c.LoadMore(ctx); !errors.Is(err, ErrNotLoaded) {
		t.Errorf("expected ErrNotLoaded after failed first page, got %v", err)
	}

	f.err = nil
	if err := c.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if s := c.Snapshot(); !s.Loaded || !s.HasMore || len(s.Items) != 2 {
		t.Errorf("expected recovered listing, got %v hasMore=%v loaded=%v", ids(s), s.HasMore, s.Loaded)
	}
}

func TestLoadMoreDelayCancelled(t *testing.T) {
	f := &pagedFetcher{pages: map[int][]model.Item{1: items("a", "b"), 2: items("c")}}
	c := New(f, model.ItemTypeLost, WithPageSize(2), WithLoadMoreDelay(time.Hour))

	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.LoadMore(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if f.calls() != 1 {
		t.Errorf("expected no fetch after cancellation, got %d calls", f.calls())
	}
	if s := c.Snapshot(); s.State != Idle || s.Page != 1 {
		t.Errorf("expected idle on page 1, got %s page %d", s.State, s.Page)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	f := &pagedFetcher{pages: map[int][]model.Item{1: items("a", "b")}}
	c := newTestController(f)
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	s := c.Snapshot()
	s.Items[0].ID = "mutated"

	if got := c.Snapshot().Items[0].ID; got != "a" {
		t.Errorf("expected controller buffer to be unaffected, got %q", got)
	}
}
