// Package listing pages through the item collection for one item type,
// keeping an append-only buffer of everything fetched under the current
// filters.
package listing

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/erazemk/lofoph/internal/client"
	"github.com/erazemk/lofoph/internal/model"
)

// DefaultPageSize is the number of items requested per page.
const DefaultPageSize = 8

// DefaultLoadMoreDelay is the pause before a subsequent page is requested.
const DefaultLoadMoreDelay = 300 * time.Millisecond

var (
	// ErrFetchInFlight is returned when a fetch is attempted while another
	// one is outstanding.
	ErrFetchInFlight = errors.New("fetch already in flight")
	// ErrNotLoaded is returned by LoadMore before the first page of the
	// current filters has been applied.
	ErrNotLoaded = errors.New("no page loaded for current filters")
	// ErrExhausted is returned by LoadMore once the server has run out of
	// items.
	ErrExhausted = errors.New("no more items")
	// ErrStale is returned when a response arrived after the filters it was
	// requested for had been replaced. The response is discarded.
	ErrStale = errors.New("response superseded by newer filters")
)

// State is the controller's fetch state.
type State int

const (
	Idle State = iota
	FetchingInitial
	FetchingMore
	Exhausted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case FetchingInitial:
		return "fetching-initial"
	case FetchingMore:
		return "fetching-more"
	case Exhausted:
		return "exhausted"
	}
	return "unknown"
}

// Fetcher retrieves one page of items.
type Fetcher interface {
	ListItems(ctx context.Context, q client.ListQuery) ([]model.Item, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the page size. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLoadMoreDelay sets the pause before subsequent pages.
func WithLoadMoreDelay(d time.Duration) Option {
	return func(c *Controller) {
		if d >= 0 {
			c.delay = d
		}
	}
}

// WithUser restricts the listing to items reported by one user.
func WithUser(id string) Option {
	return func(c *Controller) {
		c.user = id
	}
}

// Snapshot is an immutable view of the controller for rendering.
type Snapshot struct {
	ItemType string
	Items    []model.Item
	Page     int
	Filters  model.Filters
	State    State
	HasMore  bool
	Loading  bool
	Loaded   bool
}

// Controller owns the listing state for one item type. All methods are safe
// for concurrent use; at most one fetch is outstanding at any time.
type Controller struct {
	fetcher  Fetcher
	itemType string
	pageSize int
	delay    time.Duration
	user     string

	mu      sync.Mutex
	state   State
	epoch   uint64
	loaded  bool
	page    int
	filters model.Filters
	items   []model.Item
	hasMore bool
}

// New creates an idle controller with nothing loaded.
func New(f Fetcher, itemType string, opts ...Option) *Controller {
	c := &Controller{
		fetcher:  f,
		itemType: itemType,
		pageSize: DefaultPageSize,
		delay:    DefaultLoadMoreDelay,
		page:     1,
		hasMore:  true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageSize returns the configured page size.
func (c *Controller) PageSize() int {
	return c.pageSize
}

// ApplyFilters replaces the filters and reloads from page 1. If a fetch is
// already outstanding the filters are still recorded, its response will be
// discarded, and ErrFetchInFlight is returned.
func (c *Controller) ApplyFilters(ctx context.Context, f model.Filters) error {
	c.mu.Lock()
	c.filters = f.Normalize()
	return c.reloadLocked(ctx)
}

// Refresh reloads page 1 under the current filters.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	return c.reloadLocked(ctx)
}

// reloadLocked starts a new epoch. It is called with c.mu held and releases
// it.
func (c *Controller) reloadLocked(ctx context.Context) error {
	c.epoch++
	c.loaded = false
	if c.fetching() {
		c.mu.Unlock()
		return ErrFetchInFlight
	}

	ep := c.epoch
	filters := c.filters
	c.state = FetchingInitial
	c.mu.Unlock()

	items, err := c.fetch(ctx, 1, filters)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ep != c.epoch {
		c.discardLocked(ep)
		return ErrStale
	}

	c.page = 1
	c.items = items
	c.hasMore = err == nil && len(items) == c.pageSize
	// A failed first page is not a loaded listing; the next view retries.
	c.loaded = err == nil
	c.settleLocked()
	return nil
}

// LoadMore appends the next page. It waits for the load-more delay first;
// cancelling ctx during the wait abandons the request. An empty page marks
// the listing exhausted without touching the buffer.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.fetching():
		c.mu.Unlock()
		return ErrFetchInFlight
	case !c.loaded:
		c.mu.Unlock()
		return ErrNotLoaded
	case c.state == Exhausted:
		c.mu.Unlock()
		return ErrExhausted
	}

	ep := c.epoch
	next := c.page + 1
	filters := c.filters
	c.state = FetchingMore
	c.mu.Unlock()

	if err := c.wait(ctx); err != nil {
		c.mu.Lock()
		defer c.mu.Unlock()
		if ep != c.epoch {
			c.discardLocked(ep)
		} else {
			c.settleLocked()
		}
		return err
	}

	c.mu.Lock()
	if ep != c.epoch {
		c.discardLocked(ep)
		c.mu.Unlock()
		return ErrStale
	}
	c.mu.Unlock()

	items, err := c.fetch(ctx, next, filters)

	c.mu.Lock()
	defer c.mu.Unlock()
	if ep != c.epoch {
		c.discardLocked(ep)
		return ErrStale
	}

	if len(items) == 0 {
		c.hasMore = false
		c.settleLocked()
		return nil
	}
	c.items = append(c.items, items...)
	c.page = next
	c.hasMore = err == nil && len(items) == c.pageSize
	c.settleLocked()
	return nil
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	items := make([]model.Item, len(c.items))
	copy(items, c.items)
	return Snapshot{
		ItemType: c.itemType,
		Items:    items,
		Page:     c.page,
		Filters:  c.filters,
		State:    c.state,
		HasMore:  c.hasMore,
		Loading:  c.fetching(),
		Loaded:   c.loaded,
	}
}

func (c *Controller) fetching() bool {
	return c.state == FetchingInitial || c.state == FetchingMore
}

// settleLocked leaves a fetching state once a response has been applied.
func (c *Controller) settleLocked() {
	if c.hasMore {
		c.state = Idle
	} else {
		c.state = Exhausted
	}
}

// discardLocked drops a response from an old epoch. The newer epoch has not
// been fetched yet, so the controller returns to idle until it is.
func (c *Controller) discardLocked(ep uint64) {
	slog.Debug("discarding stale listing response",
		"type", c.itemType, "epoch", ep, "current", c.epoch)
	c.state = Idle
}

func (c *Controller) wait(ctx context.Context) error {
	if c.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// fetch requests one page. Failures are logged and reported as an empty
// page alongside the error.
func (c *Controller) fetch(ctx context.Context, page int, f model.Filters) ([]model.Item, error) {
	items, err := c.fetcher.ListItems(ctx, client.ListQuery{
		Page:     page,
		Limit:    c.pageSize,
		ItemType: c.itemType,
		Filters:  f,
		User:     c.user,
	})
	if err != nil {
		slog.Error("fetching items failed", "type", c.itemType, "page", page, "error", err)
		return nil, err
	}
	return items, nil
}
