package web

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/erazemk/lofoph/internal/client"
	"github.com/erazemk/lofoph/internal/listing"
	"github.com/erazemk/lofoph/internal/model"
	"github.com/erazemk/lofoph/internal/report"
	"github.com/erazemk/lofoph/internal/session"
)

// sweepSchedule is how often idle visitors are dropped.
const sweepSchedule = "@every 1m"

// Visitor is the state one browser owns: its identity, its credentialed
// API client, one listing per item type and pending notifications.
type Visitor struct {
	ID      string
	Client  *client.Client
	Session *session.Store
	Lost    *listing.Controller
	Found   *listing.Controller
	Reports *report.Flow

	listOpts []listing.Option

	mu       sync.Mutex
	lastSeen time.Time
	redirect string
	notices  []Flash
	mine     *listing.Controller
	mineUser string
}

// Navigate records where the visitor should go next. The handler that
// triggered it turns it into a redirect.
func (v *Visitor) Navigate(path string) {
	v.mu.Lock()
	v.redirect = path
	v.mu.Unlock()
}

// Notify queues a message for the next rendered page.
func (v *Visitor) Notify(kind session.NoticeKind, message string) {
	v.mu.Lock()
	v.notices = append(v.notices, Flash{Kind: string(kind), Message: message})
	v.mu.Unlock()
}

// takeRedirect returns and clears the pending navigation, or fallback.
func (v *Visitor) takeRedirect(fallback string) string {
	v.mu.Lock()
	defer v.mu.Unlock()
	path := v.redirect
	v.redirect = ""
	if path == "" {
		return fallback
	}
	return path
}

func (v *Visitor) takeNotices() []Flash {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := v.notices
	v.notices = nil
	return n
}

// Listing returns the controller for an item type.
func (v *Visitor) Listing(itemType string) *listing.Controller {
	if itemType == model.ItemTypeFound {
		return v.Found
	}
	return v.Lost
}

// Mine returns the controller listing the items reported by userID. It is
// replaced when a different user logs in on the same visitor.
func (v *Visitor) Mine(userID string) *listing.Controller {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.mine == nil || v.mineUser != userID {
		opts := append([]listing.Option{listing.WithUser(userID)}, v.listOpts...)
		v.mine = listing.New(v.Client, "", opts...)
		v.mineUser = userID
	}
	return v.mine
}

func (v *Visitor) touch(now time.Time) {
	v.mu.Lock()
	v.lastSeen = now
	v.mu.Unlock()
}

func (v *Visitor) idleSince(now time.Time) time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return now.Sub(v.lastSeen)
}

// ClientFactory creates the API client of a new visitor.
type ClientFactory func() (*client.Client, error)

// Registry holds the live visitors.
type Registry struct {
	newClient ClientFactory
	ttl       time.Duration
	listOpts  []listing.Option
	now       func() time.Time

	mu       sync.Mutex
	visitors map[string]*Visitor

	cron *cron.Cron
}

// NewRegistry creates an empty registry. Visitors idle for longer than ttl
// are dropped by Sweep.
func NewRegistry(newClient ClientFactory, ttl time.Duration, opts ...listing.Option) *Registry {
	return &Registry{
		newClient: newClient,
		ttl:       ttl,
		listOpts:  opts,
		now:       time.Now,
		visitors:  make(map[string]*Visitor),
	}
}

// Lookup returns a live visitor and marks it as seen, or nil.
func (reg *Registry) Lookup(id string) *Visitor {
	if id == "" {
		return nil
	}
	reg.mu.Lock()
	v := reg.visitors[id]
	reg.mu.Unlock()
	if v != nil {
		v.touch(reg.now())
	}
	return v
}

// Create registers a new visitor with a fresh client and state.
func (reg *Registry) Create() (*Visitor, error) {
	c, err := reg.newClient()
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	v := &Visitor{
		ID:       uuid.NewString(),
		Client:   c,
		Lost:     listing.New(c, model.ItemTypeLost, reg.listOpts...),
		Found:    listing.New(c, model.ItemTypeFound, reg.listOpts...),
		listOpts: reg.listOpts,
		lastSeen: reg.now(),
	}
	v.Session = session.New(c, v, v)
	v.Reports = report.NewFlow(v.Session)

	reg.mu.Lock()
	reg.visitors[v.ID] = v
	reg.mu.Unlock()

	slog.Debug("visitor created", "visitor", v.ID)
	return v, nil
}

// Len returns the number of live visitors.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.visitors)
}

// Sweep drops visitors idle for longer than the TTL and returns how many
// were dropped.
func (reg *Registry) Sweep() int {
	now := reg.now()
	reg.mu.Lock()
	defer reg.mu.Unlock()

	n := 0
	for id, v := range reg.visitors {
		if v.idleSince(now) > reg.ttl {
			delete(reg.visitors, id)
			n++
		}
	}
	if n > 0 {
		slog.Info("dropped idle visitors", "count", n, "remaining", len(reg.visitors))
	}
	return n
}

// Start runs Sweep periodically until Stop is called.
func (reg *Registry) Start() error {
	reg.cron = cron.New()
	if _, err := reg.cron.AddFunc(sweepSchedule, func() { reg.Sweep() }); err != nil {
		return fmt.Errorf("scheduling visitor sweep: %w", err)
	}
	reg.cron.Start()
	return nil
}

// Stop halts the sweep and waits for a running one to finish.
func (reg *Registry) Stop(ctx context.Context) {
	if reg.cron == nil {
		return
	}
	select {
	case <-reg.cron.Stop().Done():
	case <-ctx.Done():
	}
}
