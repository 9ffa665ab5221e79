// Package properties provides a stateful query/mutation facade over the
// API client for one logical list view: it tracks items, loading, error and
// pagination state so UI consumers can render directly from a snapshot.
package properties

import (
	"context"
	"log/slog"
	"sync"

	"github.com/galactavista/galactavista-go/client"
	"github.com/galactavista/galactavista-go/types"
)

// Page describes the server-reported position within a collection.
// Page numbers are 1-based and TotalPages is authoritative from the server;
// the accessor never clamps client-side.
type Page struct {
	Page       int
	PageSize   int
	Total      int64
	TotalPages int
}

// Snapshot is an immutable view of the accessor state. Exactly one of a
// successful result or a non-empty Error is produced per completed call,
// never both.
type Snapshot struct {
	Items      []types.Property
	Loading    bool
	Error      string
	Pagination *Page
}

// Accessor orchestrates list/search/create/update/delete calls and keeps
// the result-set state for one list view. Wholesale fetches are tagged with
// a monotonically increasing sequence number and completions older than the
// last applied one are discarded, so two overlapping fetches cannot leave
// the view showing the earlier response.
type Accessor struct {
	client *client.Client
	logger *slog.Logger
	cache  *detailCache

	mu         sync.Mutex
	items      []types.Property
	loading    bool
	errMsg     string
	pagination *Page
	nextSeq    uint64
	applied    uint64

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewAccessor builds an Accessor over the given API client.
func NewAccessor(c *client.Client, logger *slog.Logger) *Accessor {
	return &Accessor{
		client: c,
		logger: logger,
		cache:  newDetailCache(),
		subs:   make(map[int]func(Snapshot)),
	}
}

// Snapshot returns a copy of the current state.
func (a *Accessor) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

func (a *Accessor) snapshotLocked() Snapshot {
	items := make([]types.Property, len(a.items))
	copy(items, a.items)
	var page *Page
	if a.pagination != nil {
		p := *a.pagination
		page = &p
	}
	return Snapshot{Items: items, Loading: a.loading, Error: a.errMsg, Pagination: page}
}

// Subscribe registers a callback invoked after every state change. The
// returned function unsubscribes.
func (a *Accessor) Subscribe(fn func(Snapshot)) func() {
	a.subMu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = fn
	a.subMu.Unlock()
	return func() {
		a.subMu.Lock()
		delete(a.subs, id)
		a.subMu.Unlock()
	}
}

func (a *Accessor) notify(snap Snapshot) {
	a.subMu.Lock()
	subs := make([]func(Snapshot), 0, len(a.subs))
	for _, fn := range a.subs {
		subs = append(subs, fn)
	}
	a.subMu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
}

// begin marks a call as started: loading set, error cleared, and a fresh
// sequence number issued.
func (a *Accessor) begin() uint64 {
	a.mu.Lock()
	a.nextSeq++
	seq := a.nextSeq
	a.loading = true
	a.errMsg = ""
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.notify(snap)
	return seq
}

// complete applies a call's outcome unless a newer call already resolved.
// It reports whether the mutation was applied.
func (a *Accessor) complete(seq uint64, apply func()) bool {
	a.mu.Lock()
	if seq < a.applied {
		// A newer response already landed; this one is stale.
		a.mu.Unlock()
		return false
	}
	a.applied = seq
	a.loading = false
	apply()
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.notify(snap)
	return true
}

// Fetch lists or searches listings and replaces items and pagination
// wholesale. On failure the error message lands in the snapshot and the
// prior items are left untouched.
func (a *Accessor) Fetch(ctx context.Context, filter *types.PropertySearchRequest) error {
	seq := a.begin()
	page, err := a.client.GetProperties(ctx, filter)
	if err != nil {
		a.complete(seq, func() { a.errMsg = err.Error() })
		return err
	}
	a.complete(seq, func() {
		a.items = page.Data
		a.pagination = &Page{Page: page.Page, PageSize: page.PageSize, Total: page.Total, TotalPages: page.TotalPages}
	})
	return nil
}

// Search is Fetch under its UI-facing name.
func (a *Accessor) Search(ctx context.Context, filter *types.PropertySearchRequest) error {
	return a.Fetch(ctx, filter)
}

// FetchOne loads a single listing for a detail view, replacing items with a
// one-element list. Recently fetched listings are served from a short-lived
// cache without a network round trip.
func (a *Accessor) FetchOne(ctx context.Context, id int64) (types.Property, error) {
	if property, ok := a.cache.get(id); ok {
		seq := a.begin()
		a.complete(seq, func() { a.items = []types.Property{property} })
		return property, nil
	}

	seq := a.begin()
	property, err := a.client.GetProperty(ctx, id)
	if err != nil {
		a.complete(seq, func() { a.errMsg = err.Error() })
		return types.Property{}, err
	}
	a.cache.set(property)
	a.complete(seq, func() { a.items = []types.Property{property} })
	return property, nil
}

// Create creates a listing and prepends it to the view; most-recent-first
// ordering is a client convention, not a server guarantee.
func (a *Accessor) Create(ctx context.Context, data types.PropertyCreateRequest) (types.Property, error) {
	seq := a.begin()
	property, err := a.client.CreateProperty(ctx, data)
	if err != nil {
		a.complete(seq, func() { a.errMsg = err.Error() })
		return types.Property{}, err
	}
	a.cache.set(property)
	a.complete(seq, func() {
		a.items = append([]types.Property{property}, a.items...)
	})
	return property, nil
}

// Update applies a partial update. The local element is replaced by id; if
// the id is not in the current view the result is discarded silently and
// the call still succeeds.
func (a *Accessor) Update(ctx context.Context, id int64, data types.PropertyUpdateRequest) (types.Property, error) {
	seq := a.begin()
	property, err := a.client.UpdateProperty(ctx, id, data)
	if err != nil {
		a.complete(seq, func() { a.errMsg = err.Error() })
		return types.Property{}, err
	}
	a.cache.set(property)
	a.complete(seq, func() {
		for i := range a.items {
			if a.items[i].ID == id {
				a.items[i] = property
				break
			}
		}
	})
	return property, nil
}

// Delete removes a listing. The local element is removed only after the
// server confirms; deleting an id absent from the view is a local no-op.
func (a *Accessor) Delete(ctx context.Context, id int64) error {
	seq := a.begin()
	if err := a.client.DeleteProperty(ctx, id); err != nil {
		a.complete(seq, func() { a.errMsg = err.Error() })
		return err
	}
	a.cache.invalidate(id)
	a.complete(seq, func() {
		kept := a.items[:0]
		for _, p := range a.items {
			if p.ID != id {
				kept = append(kept, p)
			}
		}
		a.items = kept
	})
	return nil
}

// FetchByAgent loads the authenticated agent's own listings. It updates the
// shared state like Fetch and additionally returns the raw page to the
// caller.
func (a *Accessor) FetchByAgent(ctx context.Context, page *types.PaginationRequest) (types.PaginatedResponse[types.Property], error) {
	seq := a.begin()
	result, err := a.client.GetPropertiesByAgent(ctx, page)
	if err != nil {
		a.complete(seq, func() { a.errMsg = err.Error() })
		return types.PaginatedResponse[types.Property]{}, err
	}
	a.complete(seq, func() {
		a.items = result.Data
		a.pagination = &Page{Page: result.Page, PageSize: result.PageSize, Total: result.Total, TotalPages: result.TotalPages}
	})
	return result, nil
}

// ClearError drops the current error message without touching items.
func (a *Accessor) ClearError() {
	a.mu.Lock()
	a.errMsg = ""
	snap := a.snapshotLocked()
	a.mu.Unlock()
	a.notify(snap)
}
