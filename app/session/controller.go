package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/catalog-comb/app/auth"
	"github.com/lysyi3m/catalog-comb/app/catalog"
	"github.com/lysyi3m/catalog-comb/app/database"
)

// Controller owns one browsing session: the enriched collection of a source,
// the view state and the derived view. All access goes through its mutex.
type Controller struct {
	id       string
	source   *catalog.Source
	fetcher  Fetcher
	merger   Enricher
	overlays OverlayWriter
	viewer   *catalog.Viewer

	mu          sync.Mutex
	status      Status
	fetchErr    *catalog.FetchError
	identity    *auth.Identity
	authChanged bool
	items       []catalog.EnrichedItem
	genres      []string
	state       catalog.ViewState
	view        []catalog.EnrichedItem
	notices     []Notice
	generation  uint64
	cancelLoad  context.CancelFunc
	loadedAt    *time.Time
	lastUsed    time.Time
}

func NewController(id string, source *catalog.Source, fetcher Fetcher, merger Enricher, overlays OverlayWriter, identity *auth.Identity) *Controller {
	return &Controller{
		id:       id,
		source:   source,
		fetcher:  fetcher,
		merger:   merger,
		overlays: overlays,
		viewer:   catalog.NewViewer(source.Settings.Locale),
		status:   StatusLoading,
		identity: identity,
		state:    catalog.DefaultViewState(),
		view:     []catalog.EnrichedItem{},
		lastUsed: time.Now(),
	}
}

func (c *Controller) ID() string {
	return c.id
}

func (c *Controller) Source() string {
	return c.source.Name
}

// Start runs Load in the background. The returned channel is closed when
// that load has finished or was discarded.
func (c *Controller) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Load(ctx); err != nil {
			slog.Debug("Session load ended", "session", c.id, "error", err)
		}
	}()
	return done
}

// Load discards the current collection and error, fetches and merges from
// scratch, and adopts the result unless a newer load or Close superseded it.
func (c *Controller) Load(ctx context.Context) error {
	return c.load(ctx, false, nil)
}

// LoadAs is Load for a caller whose identity replaces the session's one
// before the merge, so the reloaded collection carries that user's overlays.
func (c *Controller) LoadAs(ctx context.Context, identity *auth.Identity) error {
	return c.load(ctx, true, identity)
}

func (c *Controller) load(ctx context.Context, adopt bool, identity *auth.Identity) error {
	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	if adopt {
		c.identity = identity
	}
	c.generation++
	generation := c.generation
	c.status = StatusLoading
	c.fetchErr = nil
	c.items = nil
	c.genres = nil
	c.loadedAt = nil
	c.recompute()
	userID := c.userID()
	c.authChanged = false
	c.lastUsed = time.Now()

	loadCtx, cancel := context.WithCancel(ctx)
	c.cancelLoad = cancel
	c.mu.Unlock()
	defer cancel()

	start := time.Now()

	items, err := c.fetcher.Fetch(loadCtx, c.source)
	var enriched []catalog.EnrichedItem
	if err == nil {
		enriched = c.merger.Run(loadCtx, c.source, items, userID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusClosed || generation != c.generation {
		slog.Debug("Discarding superseded catalog load", "session", c.id, "generation", generation)
		return fmt.Errorf("load %d superseded", generation)
	}
	c.cancelLoad = nil

	if err != nil {
		c.status = StatusFailed
		c.fetchErr = catalog.Classify(err)
		c.recompute()
		return c.fetchErr
	}

	// An auth transition during the load leaves the merge belonging to a
	// user the session no longer has.
	if c.userID() != userID {
		for i := range enriched {
			enriched[i].Overlay = catalog.Overlay{}
		}
	}

	now := time.Now()
	c.status = StatusReady
	c.items = enriched
	c.genres = catalog.Genres(enriched)
	c.loadedAt = &now
	c.recompute()

	slog.Info("Catalog loaded",
		"session", c.id,
		"source", c.source.Name,
		"signed_in", userID != "",
		"items", len(enriched),
		"duration", time.Since(start))

	return nil
}

// Retry is a manual reload on behalf of identity, nil for a signed-out
// caller. Nothing is retried automatically.
func (c *Controller) Retry(ctx context.Context, identity *auth.Identity) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.LoadAs(ctx, identity); err != nil {
			slog.Debug("Session retry ended", "session", c.id, "error", err)
		}
	}()
	return done
}

func (c *Controller) SetSearch(term string) {
	c.mutate(func(s *catalog.ViewState) { s.SearchTerm = term })
}

func (c *Controller) SetGenre(genre string) {
	c.mutate(func(s *catalog.ViewState) { s.SelectedGenre = normalizeGenre(genre) })
}

func (c *Controller) ToggleGenre(genre string) {
	c.mutate(func(s *catalog.ViewState) { *s = s.ToggleGenre(normalizeGenre(genre)) })
}

func (c *Controller) SetFavoriteOnly(on bool) {
	c.mutate(func(s *catalog.ViewState) { s.FavoriteOnly = on })
}

func (c *Controller) SetSortAscending(on bool) {
	c.mutate(func(s *catalog.ViewState) { s.SortAscending = on })
}

// Patch applies fn to the current view state and recomputes, all under one
// lock, so concurrent partial updates never overwrite each other.
func (c *Controller) Patch(fn func(*catalog.ViewState)) {
	c.mutate(func(s *catalog.ViewState) {
		fn(s)
		s.SelectedGenre = normalizeGenre(s.SelectedGenre)
	})
}

func (c *Controller) State() catalog.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetIdentity records an auth transition. The collection is not re-merged;
// clients see auth_changed and decide when to reload. Overlays merged for the
// previous user are dropped so they never outlive that user's session.
func (c *Controller) SetIdentity(identity *auth.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusClosed {
		return
	}

	before := c.userID()
	c.identity = identity
	if c.userID() != before {
		c.authChanged = true
		for i := range c.items {
			c.items[i].Overlay = catalog.Overlay{}
		}
	}
	c.recompute()
}

func (c *Controller) Identity() *auth.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// SetOverlay writes the overlay for one item through the store. A failed
// write leaves the view untouched and queues a notice.
func (c *Controller) SetOverlay(ctx context.Context, itemID int, overlay catalog.Overlay) error {
	if !overlay.Valid() {
		return ErrInvalidRating
	}

	c.mu.Lock()
	if c.status == StatusClosed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.status != StatusReady {
		c.mu.Unlock()
		return ErrNotReady
	}
	userID := c.userID()
	if userID == "" {
		c.mu.Unlock()
		return ErrNotSignedIn
	}
	if c.indexOf(itemID) < 0 {
		c.mu.Unlock()
		return ErrItemNotFound
	}
	generation := c.generation
	c.lastUsed = time.Now()
	c.mu.Unlock()

	err := c.overlays.SetOverlay(ctx, database.Overlay{
		UserID:     userID,
		Collection: c.source.Name,
		ItemID:     itemID,
		Favorite:   overlay.Favorite,
		Rating:     overlay.Rating,
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		slog.Warn("Overlay write failed", "session", c.id, "source", c.source.Name, "item_id", itemID, "error", err)
		c.notices = append(c.notices, Notice{
			Kind:    NoticeOverlayWriteFailed,
			ItemID:  itemID,
			Message: MessageOverlayWriteFailed,
			At:      time.Now(),
		})
		return fmt.Errorf("failed to save overlay: %w", err)
	}

	// A reload or sign-out since the write started owns the collection now.
	if generation != c.generation || c.userID() != userID {
		return nil
	}
	if i := c.indexOf(itemID); i >= 0 {
		c.items[i].Overlay = overlay
		c.recompute()
	}

	return nil
}

// Snapshot returns the current session state and drains pending notices.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lastUsed = time.Now()

	snapshot := Snapshot{
		ID:          c.id,
		Source:      c.source.Name,
		Status:      c.status,
		SignedIn:    c.identity != nil,
		AuthChanged: c.authChanged,
		State:       c.state,
		Genres:      c.genres,
		Items:       c.view,
		Total:       len(c.items),
		Notices:     c.notices,
		LoadedAt:    c.loadedAt,
	}
	if snapshot.Genres == nil {
		snapshot.Genres = []string{}
	}
	if snapshot.Notices == nil {
		snapshot.Notices = []Notice{}
	}
	if c.fetchErr != nil {
		snapshot.ErrorCategory = c.fetchErr.Category
		snapshot.ErrorMessage = c.fetchErr.Message()
	}
	c.notices = nil

	return snapshot
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Close cancels any in-flight load; its result will be discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusClosed {
		return
	}
	if c.cancelLoad != nil {
		c.cancelLoad()
		c.cancelLoad = nil
	}
	c.status = StatusClosed
	c.items = nil
	c.view = []catalog.EnrichedItem{}
}

func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastUsed
}

func (c *Controller) mutate(fn func(*catalog.ViewState)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.status == StatusClosed {
		return
	}
	fn(&c.state)
	c.lastUsed = time.Now()
	c.recompute()
}

// recompute must be called with mu held.
func (c *Controller) recompute() {
	c.view = c.viewer.Run(c.items, c.state, c.identity != nil)
}

func (c *Controller) userID() string {
	if c.identity == nil {
		return ""
	}
	return c.identity.UserID
}

func (c *Controller) indexOf(itemID int) int {
	for i, item := range c.items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

func normalizeGenre(genre string) string {
	if genre == "" {
		return catalog.AllGenres
	}
	return genre
}
