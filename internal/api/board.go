package api

import (
	"encoding/json"
	"net/http"
	gosync "sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/curioapp/curio/internal/auth"
	"github.com/curioapp/curio/internal/logger"
	"github.com/curioapp/curio/internal/metrics"
	"github.com/curioapp/curio/internal/organize"
	"github.com/curioapp/curio/internal/scrape"
	"github.com/curioapp/curio/internal/store"
	"github.com/curioapp/curio/internal/stream"
	"github.com/curioapp/curio/internal/sync"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

// boardCommand is one client action on the live board.
type boardCommand struct {
	Action     string  `json:"action"`
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title,omitempty"`
	URL        string  `json:"url,omitempty"`
	Name       string  `json:"name,omitempty"`
	Value      bool    `json:"value,omitempty"`
	CategoryID *string `json:"category_id,omitempty"`
	Over       string  `json:"over,omitempty"`
	Query      string  `json:"query,omitempty"`
}

// stateMessage pushes the full projected board. Groups maps container ids
// (category id or "unorganized") to bookmark ids in display order, after the
// active search filter.
type stateMessage struct {
	Type       string              `json:"type"`
	Bookmarks  []*store.Bookmark   `json:"bookmarks"`
	Categories []CategoryResponse  `json:"categories"`
	Groups     map[string][]string `json:"groups"`
	Query      string              `json:"query"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Op    string `json:"op"`
	Error string `json:"error"`
}

type dropMessage struct {
	Type    string `json:"type"`
	Outcome string `json:"outcome"`
}

// boardHandler owns the websocket board endpoint. Each connection gets its
// own view instance: collection, subscription, and drag state live and die
// with the socket.
type boardHandler struct {
	hub        *stream.Hub
	bookmarks  store.BookmarkStoreIface
	categories store.CategoryStoreIface
	scraper    scrape.Enqueuer
	refresh    time.Duration
	log        logger.Logger
	upgrader   websocket.Upgrader
}

func newBoardHandler(hub *stream.Hub, bookmarks store.BookmarkStoreIface, categories store.CategoryStoreIface, scraper scrape.Enqueuer, refresh time.Duration, log logger.Logger) *boardHandler {
	return &boardHandler{
		hub:        hub,
		bookmarks:  bookmarks,
		categories: categories,
		scraper:    scraper,
		refresh:    refresh,
		log:        log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
}

// ServeHTTP upgrades the connection and runs the board session.
func (h *boardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized", "UNAUTHORIZED")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("board upgrade failed", logger.Error(err))
		return
	}

	metrics.BoardsActive.Inc()
	defer metrics.BoardsActive.Dec()

	s := &boardSession{
		conn:     conn,
		outgoing: make(chan any, 32),
		done:     make(chan struct{}),
		log:      h.log,
	}

	gw := sync.NewStoreGateway(user.ID, h.bookmarks, h.categories, h.scraper)
	view := sync.NewView(gw, h.hub, h.log, sync.Options{
		OnChange:        s.pushState,
		OnError:         s.pushError,
		RefreshInterval: h.refresh,
	})
	s.view = view
	s.board = organize.NewBoard(view)

	view.Start(r.Context())
	// Teardown order matters: stop the view before releasing the write pump
	// so a late state push lands in a still-open (if abandoned) channel.
	defer close(s.done)
	defer view.Close()

	go s.writePump()
	s.readPump()
}

// boardSession is the per-connection glue between the websocket and the view.
type boardSession struct {
	conn     *websocket.Conn
	view     *sync.View
	board    *organize.Board
	outgoing chan any
	done     chan struct{}
	log      logger.Logger

	// query is written by the read pump and read by OnChange callbacks on
	// the view loop.
	queryMu gosync.Mutex
	query   string
}

func (s *boardSession) currentQuery() string {
	s.queryMu.Lock()
	defer s.queryMu.Unlock()
	return s.query
}

func (s *boardSession) setQuery(q string) {
	s.queryMu.Lock()
	s.query = q
	s.queryMu.Unlock()
}

// pushState projects the collection for the active query and queues it for
// the write pump. Projections are recomputed wholesale on every change.
func (s *boardSession) pushState(state sync.State) {
	query := s.currentQuery()
	visible := sync.FilterBySearch(state.Bookmarks, query)
	grouped := sync.GroupByCategory(visible, state.Categories)

	groups := make(map[string][]string, len(grouped))
	for key, bs := range grouped {
		ids := make([]string, 0, len(bs))
		for _, b := range bs {
			ids = append(ids, b.ID)
		}
		groups[key] = ids
	}

	categories := make([]CategoryResponse, 0, len(state.Categories))
	for i, c := range state.Categories {
		categories = append(categories, CategoryResponse{Category: c, Color: organize.ColorFor(i + 1)})
	}

	s.send(stateMessage{
		Type:       "state",
		Bookmarks:  state.Bookmarks,
		Categories: categories,
		Groups:     groups,
		Query:      query,
	})
}

func (s *boardSession) pushError(op string, err error) {
	s.send(errorMessage{Type: "error", Op: op, Error: err.Error()})
}

// send queues a message, dropping it if the socket can't keep up. The next
// state push carries the full picture anyway.
func (s *boardSession) send(msg any) {
	select {
	case s.outgoing <- msg:
	default:
	}
}

func (s *boardSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.outgoing:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *boardSession) readPump() {
	defer func() { _ = s.conn.Close() }()

	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd boardCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			s.send(errorMessage{Type: "error", Op: "command", Error: "malformed command"})
			continue
		}
		s.dispatch(cmd)
	}
}

func (s *boardSession) dispatch(cmd boardCommand) {
	switch cmd.Action {
	case "add":
		s.view.Add(cmd.Title, cmd.URL)
	case "delete":
		s.view.Delete(cmd.ID)
	case "favorite":
		s.view.ToggleFavorite(cmd.ID, cmd.Value)
	case "assign":
		s.view.AssignCategory(cmd.ID, cmd.CategoryID)
	case "create_category":
		s.view.CreateCategory(cmd.Name)
	case "delete_category":
		s.view.DeleteCategory(cmd.ID)
	case "drag_start":
		s.board.DragStart(cmd.ID)
	case "drag_cancel":
		s.board.DragCancel()
	case "drag_end":
		outcome := s.board.DragEnd(cmd.Over)
		s.send(dropMessage{Type: "drop", Outcome: outcomeString(outcome)})
	case "search":
		s.setQuery(cmd.Query)
		s.pushState(s.view.State())
	case "refresh":
		s.view.ForceRefresh()
	default:
		s.send(errorMessage{Type: "error", Op: "command", Error: "unknown action " + cmd.Action})
	}
}

func outcomeString(o organize.Outcome) string {
	switch o {
	case organize.DropNoOp:
		return "noop"
	case organize.DropReassigned:
		return "reassigned"
	default:
		return "cancelled"
	}
}
