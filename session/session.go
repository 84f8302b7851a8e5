// Package session owns the server-authoritative state of one signed-in
// user: the food item collection, the set of rated titles and the last
// confirmed macro totals.
//
// The collection changes in two ways only: wholesale replacement after a
// catalog fetch, and a by-title patch after a rating round-trip. Totals are
// adopted from server responses and never computed locally. A failed
// operation leaves every piece of state untouched.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/robertmeta/dining-cli/model"
)

var (
	// ErrClosed is returned when a response arrives after Close. The
	// response is discarded.
	ErrClosed = errors.New("session closed")
	// ErrUnknownItem is returned when an operation names a title that is
	// not in the collection.
	ErrUnknownItem = fmt.Errorf("%w: unknown food item", model.ErrInvalidInput)
)

// Backend is the remote side of a session. *api.Client implements it.
type Backend interface {
	FetchCatalog(ctx context.Context) ([]model.FoodItem, error)
	SubmitRating(ctx context.Context, title string, stars int) (model.FoodItem, error)
	LogServing(ctx context.Context, item model.FoodItem, servingSize float64) (model.MacroTotals, error)
	FetchTotals(ctx context.Context) (model.MacroTotals, error)
	ResetTotals(ctx context.Context) (model.MacroTotals, error)
	FetchRatedHistory(ctx context.Context) ([]string, error)
}

// Session holds state for one identity. It is safe for concurrent use;
// requests run outside the lock so independent operations can overlap.
type Session struct {
	backend Backend
	logger  *slog.Logger

	refetchAfterRate bool

	mu            sync.Mutex
	items         []model.FoodItem
	rated         *model.RatedSet
	historyLoaded bool
	totals        model.MacroTotals
	listeners     []func(model.MacroTotals)
	closed        bool

	background sync.WaitGroup
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRefetchAfterRate makes every successful rating start an independent
// background catalog refresh. The refresh may race with the rating patch;
// the last one to land wins.
func WithRefetchAfterRate() Option {
	return func(s *Session) {
		s.refetchAfterRate = true
	}
}

// New creates a Session over backend.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend: backend,
		logger:  slog.Default(),
		rated:   model.NewRatedSet(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore seeds the collection and rated set from a local snapshot.
// Rated titles are merged; the collection is replaced.
func (s *Session) Restore(items []model.FoodItem, rated []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = model.CloneItems(items)
	s.rated.Union(rated)
}

// Wait blocks until background refreshes started by Rate have landed.
// The session stays usable.
func (s *Session) Wait() {
	s.background.Wait()
}

// Close marks the session dead. Responses that arrive afterwards are
// discarded. Close waits for background refreshes to finish.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.background.Wait()
}

// Items returns a copy of the collection in catalog order.
func (s *Session) Items() []model.FoodItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneItems(s.items)
}

// Item returns the item with title.
func (s *Session) Item(title string) (model.FoodItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].Title == title {
			return s.items[i].Clone(), true
		}
	}
	return model.FoodItem{}, false
}

// RefreshCatalog fetches the catalog and replaces the collection.
func (s *Session) RefreshCatalog(ctx context.Context) ([]model.FoodItem, error) {
	items, err := s.backend.FetchCatalog(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	s.items = model.CloneItems(items)
	s.logger.Debug("Catalog replaced", slog.Int("items", len(items)))
	return model.CloneItems(s.items), nil
}

// Rate submits a star rating for title. On success the server's copy of
// the item replaces the local one and title joins the rated set. If the
// server's item matches nothing locally, the collection is unchanged.
func (s *Session) Rate(ctx context.Context, title string, stars int) (model.FoodItem, error) {
	updated, err := s.backend.SubmitRating(ctx, title, stars)
	if err != nil {
		return model.FoodItem{}, err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return updated, ErrClosed
	}
	patched := s.patch(updated)
	s.rated.Add(title)
	refetch := s.refetchAfterRate
	if refetch {
		s.background.Add(1)
	}
	s.mu.Unlock()

	if !patched {
		s.logger.Debug("Rated item not in collection", slog.String("title", updated.Title))
	}
	if refetch {
		go s.refreshInBackground(context.WithoutCancel(ctx))
	}
	return updated, nil
}

func (s *Session) refreshInBackground(ctx context.Context) {
	defer s.background.Done()
	if _, err := s.RefreshCatalog(ctx); err != nil && !errors.Is(err, ErrClosed) {
		s.logger.Warn("Background catalog refresh failed", slog.String("error", err.Error()))
	}
}

// patch replaces the item whose title matches updated. Caller holds mu.
func (s *Session) patch(updated model.FoodItem) bool {
	patched := false
	for i := range s.items {
		if s.items[i].Title == updated.Title {
			s.items[i] = updated.Clone()
			patched = true
		}
	}
	return patched
}

// LoadRatedHistory merges the server's rating history into the rated set.
// It fetches at most once per session.
func (s *Session) LoadRatedHistory(ctx context.Context) error {
	s.mu.Lock()
	loaded := s.historyLoaded
	s.mu.Unlock()
	if loaded {
		return nil
	}

	titles, err := s.backend.FetchRatedHistory(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.rated.Union(titles)
	s.historyLoaded = true
	return nil
}

// Rated returns the rated titles in the order they were learned.
func (s *Session) Rated() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rated.Titles()
}

// HasRated reports whether title has been rated.
func (s *Session) HasRated(title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rated.Contains(title)
}

// LogServing logs servingSize servings of the item named title. The serving
// size is validated before any request is made.
func (s *Session) LogServing(ctx context.Context, title, servingSize string) (model.MacroTotals, error) {
	size, err := model.ParseServingSize(servingSize)
	if err != nil {
		return model.MacroTotals{}, err
	}
	item, ok := s.Item(title)
	if !ok {
		return model.MacroTotals{}, fmt.Errorf("%w: %q", ErrUnknownItem, title)
	}

	totals, err := s.backend.LogServing(ctx, item, size)
	if err != nil {
		return model.MacroTotals{}, err
	}
	return s.adopt(totals)
}

// RefreshTotals fetches the running totals.
func (s *Session) RefreshTotals(ctx context.Context) (model.MacroTotals, error) {
	totals, err := s.backend.FetchTotals(ctx)
	if err != nil {
		return model.MacroTotals{}, err
	}
	return s.adopt(totals)
}

// ResetTotals resets the running totals and adopts what the server reports.
func (s *Session) ResetTotals(ctx context.Context) (model.MacroTotals, error) {
	totals, err := s.backend.ResetTotals(ctx)
	if err != nil {
		return model.MacroTotals{}, err
	}
	return s.adopt(totals)
}

// Totals returns the last confirmed totals, zero before any confirmation.
func (s *Session) Totals() model.MacroTotals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals
}

// OnTotals registers fn to be called with every newly confirmed total.
func (s *Session) OnTotals(fn func(model.MacroTotals)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// adopt replaces the confirmed totals wholesale and notifies listeners.
func (s *Session) adopt(totals model.MacroTotals) (model.MacroTotals, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return totals, ErrClosed
	}
	s.totals = totals
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(totals)
	}
	return totals, nil
}
