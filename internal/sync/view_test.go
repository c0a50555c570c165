package sync_test

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/curioapp/curio/internal/logger"
	"github.com/curioapp/curio/internal/store"
	"github.com/curioapp/curio/internal/stream"
	"github.com/curioapp/curio/internal/sync"
)

// fakeGateway is an in-memory Gateway with injectable failures. When hub is
// set, mutations publish change events like the real store does.
type fakeGateway struct {
	mu         gosync.Mutex
	owner      string
	hub        *stream.Hub
	bookmarks  []*store.Bookmark
	categories []*store.Category
	nextID     int

	failDelete         error
	failFavorite       error
	failAssign         error
	failDeleteCategory error

	favoriteCalls int
	assignCalls   int
}

func newFakeGateway(owner string) *fakeGateway {
	return &fakeGateway{owner: owner}
}

func (g *fakeGateway) Owner() string { return g.owner }

func (g *fakeGateway) Snapshot(ctx context.Context) ([]*store.Bookmark, []*store.Category, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*store.Bookmark(nil), g.bookmarks...),
		append([]*store.Category(nil), g.categories...), nil
}

func (g *fakeGateway) AddBookmark(ctx context.Context, title, url string) (*store.Bookmark, error) {
	g.mu.Lock()
	g.nextID++
	b := &store.Bookmark{
		ID:        fmt.Sprintf("b%d", g.nextID),
		OwnerID:   g.owner,
		Title:     title,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
	g.bookmarks = append([]*store.Bookmark{b}, g.bookmarks...)
	hub := g.hub
	g.mu.Unlock()

	// The stream event can reach the view before the call returns.
	if hub != nil {
		hub.Publish(g.owner, store.Change{Kind: store.Inserted, Table: store.TableBookmarks, ID: b.ID, Bookmark: b})
	}
	return b, nil
}

func (g *fakeGateway) DeleteBookmark(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDelete != nil {
		return g.failDelete
	}
	for i, b := range g.bookmarks {
		if b.ID == id {
			g.bookmarks = append(g.bookmarks[:i], g.bookmarks[i+1:]...)
			break
		}
	}
	return nil
}

func (g *fakeGateway) SetFavorite(ctx context.Context, id string, favorite bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.favoriteCalls++
	if g.failFavorite != nil {
		return g.failFavorite
	}
	for i, b := range g.bookmarks {
		if b.ID == id {
			c := *b
			c.IsFavorite = favorite
			g.bookmarks[i] = &c
		}
	}
	return nil
}

func (g *fakeGateway) SetBookmarkCategory(ctx context.Context, id string, categoryID *string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.assignCalls++
	if g.failAssign != nil {
		return g.failAssign
	}
	for i, b := range g.bookmarks {
		if b.ID == id {
			c := *b
			c.CategoryID = categoryID
			g.bookmarks[i] = &c
		}
	}
	return nil
}

func (g *fakeGateway) CreateCategory(ctx context.Context, name string) (*store.Category, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	c := &store.Category{
		ID:        fmt.Sprintf("c%d", g.nextID),
		OwnerID:   g.owner,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	g.categories = append(g.categories, c)
	return c, nil
}

func (g *fakeGateway) DeleteCategory(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failDeleteCategory != nil {
		return g.failDeleteCategory
	}
	for i, c := range g.categories {
		if c.ID == id {
			g.categories = append(g.categories[:i], g.categories[i+1:]...)
			break
		}
	}
	for i, b := range g.bookmarks {
		if b.CategoryID != nil && *b.CategoryID == id {
			c := *b
			c.CategoryID = nil
			g.bookmarks[i] = &c
		}
	}
	return nil
}

func (g *fakeGateway) seed(bookmarks ...*store.Bookmark) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.bookmarks = bookmarks
}

func (g *fakeGateway) seedCategories(categories ...*store.Category) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.categories = categories
}

func bm(id string, age time.Duration) *store.Bookmark {
	return &store.Bookmark{
		ID:        id,
		Title:     id,
		URL:       "https://" + id + ".example.com",
		CreatedAt: time.Now().UTC().Add(-age),
	}
}

func startView(t *testing.T, gw *fakeGateway) (*sync.View, *stream.Hub) {
	t.Helper()
	hub := stream.NewHub(logger.Nop())
	gw.mu.Lock()
	gw.hub = hub
	gw.mu.Unlock()

	v := sync.NewView(gw, hub, logger.Nop(), sync.Options{})
	v.Start(context.Background())
	t.Cleanup(v.Close)
	return v, hub
}

// waitFor polls the view until cond holds or the deadline passes.
func waitFor(t *testing.T, v *sync.View, msg string, cond func(sync.State) bool) sync.State {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := v.State()
		if cond(st) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
	return sync.State{}
}

func ids(bookmarks []*store.Bookmark) []string {
	out := make([]string, len(bookmarks))
	for i, b := range bookmarks {
		out[i] = b.ID
	}
	return out
}

func TestView_InitialSnapshot(t *testing.T) {
	gw := newFakeGateway("owner1")
	gw.seed(bm("b1", time.Minute), bm("b2", 2*time.Minute))
	v, _ := startView(t, gw)

	st := waitFor(t, v, "initial snapshot", func(st sync.State) bool {
		return len(st.Bookmarks) == 2
	})
	if st.Bookmarks[0].ID != "b1" || st.Bookmarks[1].ID != "b2" {
		t.Errorf("order = %v, want newest first", ids(st.Bookmarks))
	}
}

func TestView_StreamInsertKeepsOrder(t *testing.T) {
	gw := newFakeGateway("owner1")
	gw.seed(bm("old", time.Hour), bm("older", 2*time.Hour))
	v, hub := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 2 })

	// A middle-aged record must land between the two, not at either end.
	mid := bm("mid", 90*time.Minute)
	hub.Publish("owner1", store.Change{Kind: store.Inserted, Table: store.TableBookmarks, ID: mid.ID, Bookmark: mid})

	st := waitFor(t, v, "stream insert", func(st sync.State) bool { return len(st.Bookmarks) == 3 })
	want := []string{"old", "mid", "older"}
	for i, id := range want {
		if st.Bookmarks[i].ID != id {
			t.Fatalf("order = %v, want %v", ids(st.Bookmarks), want)
		}
	}
}

func TestView_StreamInsertDeduplicates(t *testing.T) {
	gw := newFakeGateway("owner1")
	b := bm("b1", time.Minute)
	gw.seed(b)
	v, hub := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 1 })

	hub.Publish("owner1", store.Change{Kind: store.Inserted, Table: store.TableBookmarks, ID: b.ID, Bookmark: b})

	// The duplicate must never appear. Give the loop a moment to swallow it.
	time.Sleep(50 * time.Millisecond)
	if st := v.State(); len(st.Bookmarks) != 1 {
		t.Errorf("len = %d, want 1 after duplicate insert", len(st.Bookmarks))
	}
}

func TestView_StreamUpdateIgnoresUnknown(t *testing.T) {
	gw := newFakeGateway("owner1")
	v, hub := startView(t, gw)

	stranger := bm("stranger", time.Minute)
	hub.Publish("owner1", store.Change{Kind: store.Updated, Table: store.TableBookmarks, ID: stranger.ID, Bookmark: stranger})

	time.Sleep(50 * time.Millisecond)
	if st := v.State(); len(st.Bookmarks) != 0 {
		t.Errorf("update for unheld record must not insert it, got %v", ids(st.Bookmarks))
	}
}

func TestView_StreamDelete(t *testing.T) {
	gw := newFakeGateway("owner1")
	gw.seed(bm("b1", time.Minute), bm("b2", 2*time.Minute))
	v, hub := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 2 })

	hub.Publish("owner1", store.Change{Kind: store.Deleted, Table: store.TableBookmarks, ID: "b1"})

	st := waitFor(t, v, "stream delete", func(st sync.State) bool { return len(st.Bookmarks) == 1 })
	if st.Bookmarks[0].ID != "b2" {
		t.Errorf("remaining = %v, want [b2]", ids(st.Bookmarks))
	}
}

func TestView_SnapshotMergeRetainsLocalRows(t *testing.T) {
	gw := newFakeGateway("owner1")
	gw.seed(bm("b1", time.Hour))
	v, hub := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 1 })

	// b2 arrives over the stream but is not in the gateway's snapshot — the
	// snapshot read raced the insert. A refresh must not lose it.
	fresh := bm("b2", time.Minute)
	hub.Publish("owner1", store.Change{Kind: store.Inserted, Table: store.TableBookmarks, ID: fresh.ID, Bookmark: fresh})
	waitFor(t, v, "stream insert", func(st sync.State) bool { return len(st.Bookmarks) == 2 })

	v.ForceRefresh()

	time.Sleep(50 * time.Millisecond)
	st := waitFor(t, v, "post-refresh state", func(st sync.State) bool { return len(st.Bookmarks) == 2 })
	if st.Bookmarks[0].ID != "b2" || st.Bookmarks[1].ID != "b1" {
		t.Errorf("order = %v, want [b2 b1]", ids(st.Bookmarks))
	}
}

func TestView_ResyncEventRefreshes(t *testing.T) {
	gw := newFakeGateway("owner1")
	v, hub := startView(t, gw)

	gw.seed(bm("late", time.Minute))
	hub.Publish("owner1", store.Change{Kind: store.Resync})

	waitFor(t, v, "resync refresh", func(st sync.State) bool { return len(st.Bookmarks) == 1 })
}

func TestView_Add(t *testing.T) {
	gw := newFakeGateway("owner1")
	v, _ := startView(t, gw)

	v.Add("Example", "https://example.com")

	// The gateway publishes the Inserted event before returning, so the view
	// sees the record twice. Exactly one copy may survive.
	st := waitFor(t, v, "add to land", func(st sync.State) bool { return len(st.Bookmarks) >= 1 })
	time.Sleep(50 * time.Millisecond)
	st = v.State()
	if len(st.Bookmarks) != 1 {
		t.Fatalf("len = %d, want 1", len(st.Bookmarks))
	}
	if st.Bookmarks[0].Title != "Example" {
		t.Errorf("title = %q", st.Bookmarks[0].Title)
	}
}

func TestView_DeleteOptimistic(t *testing.T) {
	gw := newFakeGateway("owner1")
	gw.seed(bm("b1", time.Minute), bm("b2", 2*time.Minute))
	v, _ := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 2 })

	v.Delete("b1")

	st := waitFor(t, v, "optimistic removal", func(st sync.State) bool { return len(st.Bookmarks) == 1 })
	if st.Bookmarks[0].ID != "b2" {
		t.Errorf("remaining = %v, want [b2]", ids(st.Bookmarks))
	}
}

func TestView_DeleteFailureResyncs(t *testing.T) {
	gw := newFakeGateway("owner1")
	gw.seed(bm("b1", time.Minute), bm("b2", 2*time.Minute))
	gw.failDelete = errors.New("store rejected delete")

	var mu gosync.Mutex
	var failedOp string
	hub := stream.NewHub(logger.Nop())
	gw.hub = hub
	v := sync.NewView(gw, hub, logger.Nop(), sync.Options{
		OnError: func(op string, err error) {
			mu.Lock()
			failedOp = op
			mu.Unlock()
		},
	})
	v.Start(context.Background())
	t.Cleanup(v.Close)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 2 })

	v.Delete("b2")

	// The row vanishes optimistically, then the failure forces a snapshot
	// that brings it back.
	waitFor(t, v, "row restored", func(st sync.State) bool {
		if len(st.Bookmarks) != 2 {
			return false
		}
		return st.Bookmarks[0].ID == "b1" && st.Bookmarks[1].ID == "b2"
	})
	mu.Lock()
	defer mu.Unlock()
	if failedOp != sync.OpDelete {
		t.Errorf("failed op = %q, want %q", failedOp, sync.OpDelete)
	}
}

func TestView_ToggleFavoriteRollsBack(t *testing.T) {
	gw := newFakeGateway("owner1")
	gw.seed(bm("b1", time.Minute))
	gw.failFavorite = errors.New("store rejected favorite")
	v, _ := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 1 })

	v.ToggleFavorite("b1", true)

	// Wait for the gateway call, then for the rollback to the previous value.
	waitFor(t, v, "gateway call", func(sync.State) bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return gw.favoriteCalls == 1
	})
	st := waitFor(t, v, "rollback", func(st sync.State) bool {
		return len(st.Bookmarks) == 1 && !st.Bookmarks[0].IsFavorite
	})
	if st.Bookmarks[0].ID != "b1" {
		t.Errorf("unexpected state %v", ids(st.Bookmarks))
	}
}

func TestView_ToggleFavoriteCommits(t *testing.T) {
	gw := newFakeGateway("owner1")
	gw.seed(bm("b1", time.Minute))
	v, _ := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 1 })

	v.ToggleFavorite("b1", true)

	waitFor(t, v, "favorite applied", func(st sync.State) bool {
		return st.Bookmarks[0].IsFavorite
	})
}

func TestView_AssignCategoryRollsBack(t *testing.T) {
	gw := newFakeGateway("owner1")
	cat := "c1"
	b := bm("b1", time.Minute)
	gw.seed(b)
	gw.seedCategories(&store.Category{ID: cat, Name: "Work", CreatedAt: time.Now().UTC()})
	gw.failAssign = errors.New("store rejected assignment")
	v, _ := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 1 })

	v.AssignCategory("b1", &cat)

	waitFor(t, v, "gateway call", func(sync.State) bool {
		gw.mu.Lock()
		defer gw.mu.Unlock()
		return gw.assignCalls == 1
	})
	waitFor(t, v, "rollback to unorganized", func(st sync.State) bool {
		return len(st.Bookmarks) == 1 && st.Bookmarks[0].CategoryID == nil
	})
}

func TestView_AssignCategoryCommits(t *testing.T) {
	gw := newFakeGateway("owner1")
	cat := "c1"
	gw.seed(bm("b1", time.Minute))
	gw.seedCategories(&store.Category{ID: cat, Name: "Work", CreatedAt: time.Now().UTC()})
	v, _ := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 1 })

	v.AssignCategory("b1", &cat)

	waitFor(t, v, "assignment applied", func(st sync.State) bool {
		return st.Bookmarks[0].CategoryID != nil && *st.Bookmarks[0].CategoryID == cat
	})
}

func TestView_CreateCategory(t *testing.T) {
	gw := newFakeGateway("owner1")
	v, _ := startView(t, gw)

	v.CreateCategory("Work")

	st := waitFor(t, v, "category to land", func(st sync.State) bool { return len(st.Categories) == 1 })
	if st.Categories[0].Name != "Work" {
		t.Errorf("name = %q", st.Categories[0].Name)
	}
}

func TestView_DeleteCategoryOrphansLocally(t *testing.T) {
	gw := newFakeGateway("owner1")
	cat := "c1"
	organized := bm("b1", time.Minute)
	organized.CategoryID = &cat
	gw.seed(organized, bm("b2", 2*time.Minute))
	gw.seedCategories(&store.Category{ID: cat, Name: "Work", CreatedAt: time.Now().UTC()})
	v, _ := startView(t, gw)
	waitFor(t, v, "initial snapshot", func(st sync.State) bool {
		return len(st.Bookmarks) == 2 && len(st.Categories) == 1
	})

	v.DeleteCategory(cat)

	st := waitFor(t, v, "category removed", func(st sync.State) bool { return len(st.Categories) == 0 })
	for _, b := range st.Bookmarks {
		if b.CategoryID != nil {
			t.Errorf("bookmark %s still references the deleted category", b.ID)
		}
	}
	if len(st.Bookmarks) != 2 {
		t.Errorf("bookmarks must survive the category delete, got %v", ids(st.Bookmarks))
	}
}

func TestView_StateAfterClose(t *testing.T) {
	gw := newFakeGateway("owner1")
	gw.seed(bm("b1", time.Minute))
	hub := stream.NewHub(logger.Nop())
	gw.hub = hub
	v := sync.NewView(gw, hub, logger.Nop(), sync.Options{})
	v.Start(context.Background())
	waitFor(t, v, "initial snapshot", func(st sync.State) bool { return len(st.Bookmarks) == 1 })

	v.Close()

	if st := v.State(); st.Bookmarks != nil || st.Categories != nil {
		t.Error("State after Close should be empty")
	}
}
