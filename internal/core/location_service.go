package core

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"localmart/internal/api"
	"localmart/internal/store"
)

// ErrPermissionDenied is returned when the device refuses the location
// capability.
var ErrPermissionDenied = errors.New("location permission denied")

// Address is a reverse-geocoded place, split into the components the
// display name is built from.
type Address struct {
	City    string
	Region  string
	Country string
}

// Locator abstracts the device geolocation capability: current position and
// on-device reverse geocoding.
type Locator interface {
	CurrentPosition(ctx context.Context) (store.Coordinates, error)
	ReverseGeocode(ctx context.Context, coords store.Coordinates) (Address, error)
}

const (
	minQueryLength  = 3
	defaultDebounce = 500 * time.Millisecond
	fallbackName    = "Current Location"
)

// LocationService drives location selection: debounced place search,
// suggestion resolution, and the current-location path. Every successful
// resolution updates the profile, mirrors it to the backend best-effort,
// and bumps a change generation the discovery feed listens on.
type LocationService struct {
	session *SessionService
	client  *api.Client
	places  *PlacesService
	locator Locator

	debounce      time.Duration
	onSuggestions func(suggestions []store.Suggestion, err error)

	mu    sync.Mutex
	timer *time.Timer

	generation atomic.Uint64
	changes    chan struct{}
}

func NewLocationService(session *SessionService, client *api.Client, places *PlacesService, locator Locator) *LocationService {
	return &LocationService{
		session:  session,
		client:   client,
		places:   places,
		locator:  locator,
		debounce: defaultDebounce,
		changes:  make(chan struct{}, 1),
	}
}

// SetDebounce overrides the 500ms quiet window. Tests shorten it.
func (s *LocationService) SetDebounce(d time.Duration) {
	s.debounce = d
}

// OnSuggestions registers the callback that receives search results. The
// callback runs on the debounce timer's goroutine.
func (s *LocationService) OnSuggestions(fn func(suggestions []store.Suggestion, err error)) {
	s.onSuggestions = fn
}

// Search schedules a place-autocomplete dispatch after the quiet window.
// Queries under three characters are never dispatched and clear the current
// suggestions; each call supersedes any pending one.
func (s *LocationService) Search(query string) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if len(query) < minQueryLength {
		s.mu.Unlock()
		s.deliver(nil, nil)
		return
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		suggestions, err := s.places.Autocomplete(context.Background(), query)
		s.deliver(suggestions, err)
	})
	s.mu.Unlock()
}

func (s *LocationService) deliver(suggestions []store.Suggestion, err error) {
	if s.onSuggestions != nil {
		s.onSuggestions(suggestions, err)
	}
}

// ResolvePlace turns a selected suggestion into coordinates and applies
// them. The suggestion's description becomes the display name.
func (s *LocationService) ResolvePlace(ctx context.Context, placeID, description string) error {
	coords, err := s.places.Details(ctx, placeID)
	if err != nil {
		return err
	}
	s.apply(ctx, coords, description)
	return nil
}

// UseCurrentLocation reads the device position and reverse-geocodes it to a
// display name, falling back to a generic label when no address component
// resolves.
func (s *LocationService) UseCurrentLocation(ctx context.Context) error {
	coords, err := s.locator.CurrentPosition(ctx)
	if err != nil {
		return err
	}

	name := fallbackName
	addr, err := s.locator.ReverseGeocode(ctx, coords)
	if err != nil {
		log.Printf("Reverse geocoding failed, using fallback label: %v", err)
	} else if joined := joinAddress(addr); joined != "" {
		name = joined
	}

	s.apply(ctx, coords, name)
	return nil
}

// apply is the shared tail of every resolution: local profile update always
// wins; the backend mirror is best-effort and only logged on failure.
func (s *LocationService) apply(ctx context.Context, coords store.Coordinates, name string) {
	s.session.ApplyLocation(coords, name)

	if profile, ok := s.session.CurrentUser(); ok {
		if err := s.client.UpdateLocation(ctx, profile.ID, coords); err != nil {
			log.Printf("Failed to update location on server: %v", err)
		}
	}

	s.generation.Add(1)
	select {
	case s.changes <- struct{}{}:
	default: // a pending signal already covers this change
	}
}

// Generation counts successful resolutions since startup.
func (s *LocationService) Generation() uint64 {
	return s.generation.Load()
}

// Changes signals coalesced location changes; the discovery feed re-fetches
// on receive.
func (s *LocationService) Changes() <-chan struct{} {
	return s.changes
}

func joinAddress(addr Address) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{addr.City, addr.Region, addr.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
