package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"localmart/internal/api"
	"localmart/internal/store"
)

// SessionService owns the auth session: the bearer token, the cached user
// profile, and their on-device persistence. It is an explicit object handed
// to every component that needs it; nothing here is package-global.
type SessionService struct {
	client  *api.Client
	dbStore *store.SQLiteStore

	mu      sync.RWMutex
	session *store.AuthSession
}

func NewSessionService(client *api.Client, dbStore *store.SQLiteStore) *SessionService {
	return &SessionService{client: client, dbStore: dbStore}
}

// Restore loads a previously persisted session at startup. A missing or
// partial record is not an error; the caller just starts logged out.
func (s *SessionService) Restore() error {
	token, err := s.dbStore.LoadToken()
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	profile, err := s.dbStore.LoadProfile()
	if err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	if token == "" || profile == nil {
		return nil
	}

	s.mu.Lock()
	s.session = &store.AuthSession{Token: token, User: *profile}
	s.mu.Unlock()
	s.client.SetToken(token)
	return nil
}

func (s *SessionService) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session != nil
}

// CurrentUser returns a copy of the signed-in profile, or ok=false.
func (s *SessionService) CurrentUser() (store.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return store.UserProfile{}, false
	}
	return s.session.User, true
}

// Login authenticates, persists the session and marks it active. A backend
// rejection surfaces as api.ErrInvalidCredentials.
func (s *SessionService) Login(ctx context.Context, email, password string) error {
	token, profile, err := s.client.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if err := s.dbStore.SaveToken(token); err != nil {
		log.Printf("Failed to persist auth token: %v", err)
	}
	if err := s.dbStore.SaveProfile(profile); err != nil {
		log.Printf("Failed to persist user profile: %v", err)
	}

	s.mu.Lock()
	s.session = &store.AuthSession{Token: token, User: *profile}
	s.mu.Unlock()
	s.client.SetToken(token)
	return nil
}

// Register creates the account. Logging in afterwards is a separate step,
// same as the original flow.
func (s *SessionService) Register(ctx context.Context, username, email, password string) error {
	return s.client.Register(ctx, username, email, password)
}

// Logout clears local session state unconditionally; storage deletes are
// best-effort and only logged.
func (s *SessionService) Logout() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	s.client.ClearToken()

	if err := s.dbStore.DeleteToken(); err != nil {
		log.Printf("Failed to delete stored token: %v", err)
	}
	if err := s.dbStore.DeleteProfile(); err != nil {
		log.Printf("Failed to delete stored profile: %v", err)
	}
}

// RefreshProfile re-fetches the profile from the backend. A 401 means the
// token died; the session is logged out as a side effect and
// api.ErrUnauthorized is returned.
func (s *SessionService) RefreshProfile(ctx context.Context) (*store.UserProfile, error) {
	profile, err := s.client.CurrentUser(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			s.Logout()
		}
		return nil, err
	}

	if err := s.dbStore.SaveProfile(profile); err != nil {
		log.Printf("Failed to persist refreshed profile: %v", err)
	}

	s.mu.Lock()
	if s.session != nil {
		s.session.User = *profile
	}
	s.mu.Unlock()
	return profile, nil
}

// ApplyLocation stores the chosen coordinates and display name on the
// profile, locally and in memory. The remote mirror is the location
// service's concern.
func (s *SessionService) ApplyLocation(coords store.Coordinates, locationName string) {
	s.mu.Lock()
	if s.session != nil {
		lat, lng := coords.Latitude, coords.Longitude
		s.session.User.Latitude = &lat
		s.session.User.Longitude = &lng
		s.session.User.LocationName = locationName
	}
	profile := s.profileLocked()
	s.mu.Unlock()

	if profile != nil {
		if err := s.dbStore.SaveProfile(profile); err != nil {
			log.Printf("Failed to persist location on profile: %v", err)
		}
	}
}

// profileLocked copies the session profile; callers must hold mu.
func (s *SessionService) profileLocked() *store.UserProfile {
	if s.session == nil {
		return nil
	}
	p := s.session.User
	return &p
}
