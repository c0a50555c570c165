// Package sync keeps a per-view bookmark collection consistent across three
// concurrent inputs: optimistic local mutations, the live change stream, and
// periodic full snapshots from the store.
package sync

import (
	"context"
	"sort"
	"time"

	"github.com/curioapp/curio/internal/logger"
	"github.com/curioapp/curio/internal/metrics"
	"github.com/curioapp/curio/internal/store"
	"github.com/curioapp/curio/internal/stream"
)

// Mutation operation names, used in failure reports and metrics.
const (
	OpAdd            = "add"
	OpDelete         = "delete"
	OpFavorite       = "favorite"
	OpAssign         = "assign"
	OpCreateCategory = "create_category"
	OpDeleteCategory = "delete_category"
	OpSnapshot       = "snapshot"
)

// State is an immutable view of the reconciled collection. The records behind
// the pointers are never mutated in place; updates replace the element.
type State struct {
	Bookmarks  []*store.Bookmark
	Categories []*store.Category
}

// Options configures a View's callbacks and refresh behavior.
type Options struct {
	// OnChange is invoked from the view's run loop after every state change.
	// It must not call back into the View synchronously.
	OnChange func(State)

	// OnError is invoked when a mutation fails after its optimistic effect
	// was applied (and rolled back or resynced).
	OnError func(op string, err error)

	// RefreshInterval is the period between automatic snapshot refreshes.
	// Zero disables the timer; Resync events still force refreshes.
	RefreshInterval time.Duration
}

// View owns one reconciled bookmark collection. All state lives on a single
// run-loop goroutine; exported methods post work onto that loop, so any
// number of goroutines may call them. Gateway calls run asynchronously and
// re-enter the loop with their results, carrying the generation they started
// under — results from a stale generation are discarded.
type View struct {
	gw   Gateway
	hub  *stream.Hub
	opts Options
	log  logger.Logger

	actions chan func()
	done    chan struct{}

	// Loop-owned state. Never touched off-loop.
	bookmarks  []*store.Bookmark
	categories []*store.Category
	sub        *stream.Subscription
	gen        uint64
}

// NewView constructs a view for the gateway's owner. Call Start to begin.
func NewView(gw Gateway, hub *stream.Hub, log logger.Logger, opts Options) *View {
	return &View{
		gw:      gw,
		hub:     hub,
		opts:    opts,
		log:     log,
		actions: make(chan func(), 128),
		done:    make(chan struct{}),
	}
}

// Start subscribes to the change stream, kicks off the initial snapshot, and
// runs the loop until Close. The subscription is torn down before the hub
// sees a new one for this view.
func (v *View) Start(ctx context.Context) {
	go v.run(ctx)
}

func (v *View) run(ctx context.Context) {
	v.resubscribe()
	defer func() {
		v.gen++ // orphan in-flight results
		if v.sub != nil {
			v.sub.Close()
		}
	}()

	v.refresh()

	var tick <-chan time.Time
	if v.opts.RefreshInterval > 0 {
		ticker := time.NewTicker(v.opts.RefreshInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-v.done:
			return
		case fn := <-v.actions:
			fn()
		case ev, ok := <-v.sub.Events():
			if !ok {
				// Hub closed us out from underneath; treat like a dropped
				// channel and fall back to snapshots.
				v.resubscribe()
				v.refresh()
				continue
			}
			v.applyChange(ev)
		case <-tick:
			v.refresh()
		}
	}
}

// Close stops the loop and releases the subscription. Idempotent enough for
// a deferred call; a second Close panics like a double channel close would,
// so each view has exactly one owner.
func (v *View) Close() {
	close(v.done)
}

// post schedules fn on the run loop. Returns false if the view is closed.
// The closed check runs first so a buffered actions channel cannot accept
// work the loop will never execute.
func (v *View) post(fn func()) bool {
	select {
	case <-v.done:
		return false
	default:
	}
	select {
	case v.actions <- fn:
		return true
	case <-v.done:
		return false
	}
}

// State returns a consistent copy of the current collection, or the zero
// State once the view is closed. Because the read runs on the loop, it also
// acts as a barrier: all previously posted actions have been applied.
func (v *View) State() State {
	reply := make(chan State, 1)
	if !v.post(func() { reply <- v.state() }) {
		return State{}
	}
	select {
	case st := <-reply:
		return st
	case <-v.done:
		return State{}
	}
}

func (v *View) state() State {
	return State{
		Bookmarks:  append([]*store.Bookmark(nil), v.bookmarks...),
		Categories: append([]*store.Category(nil), v.categories...),
	}
}

func (v *View) notify() {
	if v.opts.OnChange != nil {
		v.opts.OnChange(v.state())
	}
}

func (v *View) reportError(op string, err error) {
	v.log.Warn("mutation failed", logger.String("op", op), logger.Error(err))
	if v.opts.OnError != nil {
		v.opts.OnError(op, err)
	}
}

// resubscribe tears down any prior subscription before opening a new one, so
// this view holds at most one live channel at a time.
func (v *View) resubscribe() {
	if v.sub != nil {
		v.sub.Close()
	}
	v.sub = v.hub.Subscribe(v.gw.Owner())
}

// launch runs a gateway call off-loop and posts its completion back, tagged
// with the current generation. Completions whose generation no longer
// matches are discarded: the view was refreshed out from under them.
func (v *View) launch(call func(ctx context.Context) error, completion func(err error)) {
	gen := v.gen
	go func() {
		err := call(context.Background())
		v.post(func() {
			if v.gen != gen {
				return
			}
			completion(err)
		})
	}()
}

// refresh fetches a full snapshot and merges it in. Bumping the generation
// first invalidates every in-flight completion; the merge rules below make
// that safe because optimistic effects they would confirm are either in the
// snapshot already or retained by the merge.
func (v *View) refresh() {
	metrics.SnapshotRefreshesTotal.Inc()
	v.gen++
	gen := v.gen
	go func() {
		bookmarks, categories, err := v.gw.Snapshot(context.Background())
		v.post(func() {
			if v.gen != gen {
				return
			}
			if err != nil {
				v.reportError(OpSnapshot, err)
				return
			}
			v.bookmarks = mergeSnapshot(v.bookmarks, bookmarks)
			v.categories = categories
			v.notify()
		})
	}()
}

// ForceRefresh schedules an immediate snapshot refresh.
func (v *View) ForceRefresh() {
	v.post(func() { v.refresh() })
}

// mergeSnapshot reconciles the local collection with a server snapshot.
// Rows present in the snapshot take the server's values; local rows absent
// from it are retained — they were added locally or via the stream faster
// than the snapshot could observe. The result is ordered created_at
// descending with one record per id.
func mergeSnapshot(current, snapshot []*store.Bookmark) []*store.Bookmark {
	inSnapshot := make(map[string]struct{}, len(snapshot))
	for _, b := range snapshot {
		inSnapshot[b.ID] = struct{}{}
	}

	merged := make([]*store.Bookmark, 0, len(snapshot)+4)
	for _, b := range current {
		if _, ok := inSnapshot[b.ID]; !ok {
			merged = append(merged, b)
		}
	}
	merged = append(merged, snapshot...)

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged
}

// applyChange folds one stream event into the collection. All three rules
// are idempotent by id, so any interleaving with snapshots and local
// mutations converges.
func (v *View) applyChange(ch store.Change) {
	switch {
	case ch.Kind == store.Resync:
		v.refresh()
		return
	case ch.Table == store.TableBookmarks:
		v.applyBookmarkChange(ch)
	case ch.Table == store.TableCategories:
		v.applyCategoryChange(ch)
	}
}

func (v *View) applyBookmarkChange(ch store.Change) {
	switch ch.Kind {
	case store.Inserted:
		// A local optimistic add may already have placed this record.
		if v.indexOf(ch.Bookmark.ID) >= 0 {
			return
		}
		v.insertSorted(ch.Bookmark)
		v.notify()
	case store.Updated:
		i := v.indexOf(ch.Bookmark.ID)
		if i < 0 {
			// Not held locally; a future snapshot picks it up.
			return
		}
		v.bookmarks[i] = ch.Bookmark
		v.notify()
	case store.Deleted:
		if v.removeByID(ch.ID) {
			v.notify()
		}
	}
}

func (v *View) applyCategoryChange(ch store.Change) {
	switch ch.Kind {
	case store.Inserted:
		for _, c := range v.categories {
			if c.ID == ch.Category.ID {
				return
			}
		}
		v.categories = append(v.categories, ch.Category)
		v.notify()
	case store.Deleted:
		for i, c := range v.categories {
			if c.ID == ch.ID {
				v.categories = append(v.categories[:i], v.categories[i+1:]...)
				v.notify()
				return
			}
		}
	}
}

func (v *View) indexOf(id string) int {
	for i, b := range v.bookmarks {
		if b.ID == id {
			return i
		}
	}
	return -1
}

// insertSorted places b so that created_at stays non-increasing.
func (v *View) insertSorted(b *store.Bookmark) {
	i := sort.Search(len(v.bookmarks), func(i int) bool {
		return !v.bookmarks[i].CreatedAt.After(b.CreatedAt)
	})
	v.bookmarks = append(v.bookmarks, nil)
	copy(v.bookmarks[i+1:], v.bookmarks[i:])
	v.bookmarks[i] = b
}

func (v *View) removeByID(id string) bool {
	i := v.indexOf(id)
	if i < 0 {
		return false
	}
	v.bookmarks = append(v.bookmarks[:i], v.bookmarks[i+1:]...)
	return true
}

// Add creates a bookmark. There is no optimistic placeholder: the record id
// is server-assigned and needed for stream de-duplication, so the row only
// appears once the gateway returns it.
func (v *View) Add(title, url string) {
	v.post(func() {
		gen := v.gen
		go func() {
			b, err := v.gw.AddBookmark(context.Background(), title, url)
			v.post(func() {
				if v.gen != gen {
					return
				}
				if err != nil {
					v.reportError(OpAdd, err)
					return
				}
				// The stream Inserted event may have won the race.
				if v.indexOf(b.ID) >= 0 {
					return
				}
				v.insertSorted(b)
				v.notify()
			})
		}()
	})
}

// Delete removes the bookmark optimistically. There is no targeted rollback
// for a failed delete — the removed record may be gone locally — so failure
// forces a fresh snapshot instead.
func (v *View) Delete(id string) {
	v.post(func() {
		removed := v.removeByID(id)
		if removed {
			v.notify()
		}
		v.launch(
			func(ctx context.Context) error { return v.gw.DeleteBookmark(ctx, id) },
			func(err error) {
				if err != nil {
					v.reportError(OpDelete, err)
					v.refresh()
				}
			},
		)
	})
}

// ToggleFavorite applies the new flag optimistically and rolls the precise
// previous value back if the store rejects it.
func (v *View) ToggleFavorite(id string, favorite bool) {
	v.post(func() {
		i := v.indexOf(id)
		if i < 0 {
			return
		}
		prev := v.bookmarks[i].IsFavorite
		v.setBookmark(i, func(b *store.Bookmark) { b.IsFavorite = favorite })
		v.notify()

		v.launch(
			func(ctx context.Context) error { return v.gw.SetFavorite(ctx, id, favorite) },
			func(err error) {
				if err != nil {
					metrics.RollbacksTotal.WithLabelValues(OpFavorite).Inc()
					if j := v.indexOf(id); j >= 0 {
						v.setBookmark(j, func(b *store.Bookmark) { b.IsFavorite = prev })
						v.notify()
					}
					v.reportError(OpFavorite, err)
				}
			},
		)
	})
}

// AssignCategory moves the bookmark to categoryID (nil for unorganized),
// optimistically, with precise rollback on failure.
func (v *View) AssignCategory(id string, categoryID *string) {
	v.post(func() {
		i := v.indexOf(id)
		if i < 0 {
			return
		}
		prev := v.bookmarks[i].CategoryID
		v.setBookmark(i, func(b *store.Bookmark) { b.CategoryID = categoryID })
		v.notify()

		v.launch(
			func(ctx context.Context) error { return v.gw.SetBookmarkCategory(ctx, id, categoryID) },
			func(err error) {
				if err != nil {
					metrics.RollbacksTotal.WithLabelValues(OpAssign).Inc()
					if j := v.indexOf(id); j >= 0 {
						v.setBookmark(j, func(b *store.Bookmark) { b.CategoryID = prev })
						v.notify()
					}
					v.reportError(OpAssign, err)
				}
			},
		)
	})
}

// CreateCategory adds a category. Like Add, the record lands when the
// gateway returns it; the stream event dedupes by id.
func (v *View) CreateCategory(name string) {
	v.post(func() {
		gen := v.gen
		go func() {
			c, err := v.gw.CreateCategory(context.Background(), name)
			v.post(func() {
				if v.gen != gen {
					return
				}
				if err != nil {
					v.reportError(OpCreateCategory, err)
					return
				}
				for _, existing := range v.categories {
					if existing.ID == c.ID {
						return
					}
				}
				v.categories = append(v.categories, c)
				v.notify()
			})
		}()
	})
}

// DeleteCategory removes the category optimistically. Its bookmarks fall
// back to unorganized locally, mirroring the store's SET NULL cascade.
func (v *View) DeleteCategory(id string) {
	v.post(func() {
		for i, c := range v.categories {
			if c.ID == id {
				v.categories = append(v.categories[:i], v.categories[i+1:]...)
				break
			}
		}
		for i, b := range v.bookmarks {
			if b.CategoryID != nil && *b.CategoryID == id {
				v.setBookmark(i, func(b *store.Bookmark) { b.CategoryID = nil })
			}
		}
		v.notify()

		v.launch(
			func(ctx context.Context) error { return v.gw.DeleteCategory(ctx, id) },
			func(err error) {
				if err != nil {
					v.reportError(OpDeleteCategory, err)
					v.refresh()
				}
			},
		)
	})
}

// setBookmark replaces element i with a mutated copy. Published records stay
// immutable, so state snapshots handed to OnChange never race with the loop.
func (v *View) setBookmark(i int, mutate func(*store.Bookmark)) {
	b := *v.bookmarks[i]
	mutate(&b)
	v.bookmarks[i] = &b
}
