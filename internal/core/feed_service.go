package core

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"localmart/internal/api"
	"localmart/internal/store"
)

// Default coordinates (Kochi) used until the user picks a location, so the
// first-run feed is never empty by construction.
const (
	DefaultLatitude  = 9.9312
	DefaultLongitude = 76.2673
)

// FeedService fetches the nearby-store listing. Initial load, pull-to-refresh
// and location-change refetch all share FetchNearby; each successful response
// replaces the listing set wholesale. A per-fetch generation number makes a
// superseded request's late response inert instead of letting it overwrite
// newer state.
type FeedService struct {
	session *SessionService
	client  *api.Client

	fetchGen atomic.Uint64

	mu       sync.RWMutex
	listings []store.StoreListing
	lastErr  error
}

func NewFeedService(session *SessionService, client *api.Client) *FeedService {
	return &FeedService{session: session, client: client}
}

// FetchNearby runs one nearby-store query at the profile's coordinates,
// falling back to the defaults when none are stored. Retry is simply calling
// it again; there is no backoff.
func (s *FeedService) FetchNearby(ctx context.Context) ([]store.StoreListing, error) {
	coords := s.queryCoordinates()
	gen := s.fetchGen.Add(1)

	listings, err := s.client.NearbyStores(ctx, coords)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.fetchGen.Load() {
		// A newer fetch started while this one was in flight; its result
		// owns the state now.
		return s.listings, s.lastErr
	}
	if err != nil {
		s.lastErr = err
		return nil, err
	}
	s.listings = listings
	s.lastErr = nil
	return listings, nil
}

// Listings returns the last successful result.
func (s *FeedService) Listings() []store.StoreListing {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listings
}

// Err returns the error state of the last fetch, nil after a success.
func (s *FeedService) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Watch refetches on every location-change signal until ctx ends.
func (s *FeedService) Watch(ctx context.Context, changes <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			if _, err := s.FetchNearby(ctx); err != nil {
				log.Printf("Nearby-store refetch after location change failed: %v", err)
			}
		}
	}
}

func (s *FeedService) queryCoordinates() store.Coordinates {
	if profile, ok := s.session.CurrentUser(); ok {
		if coords, ok := profile.Coordinates(); ok {
			return coords
		}
	}
	return store.Coordinates{Latitude: DefaultLatitude, Longitude: DefaultLongitude}
}
