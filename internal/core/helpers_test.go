package core

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"localmart/internal/api"
	"localmart/internal/backendtest"
	"localmart/internal/store"
)

type testEnv struct {
	server  *backendtest.Server
	client  *api.Client
	db      *store.SQLiteStore
	session *SessionService
	user    store.UserProfile
}

// newTestEnv spins up the fake backend with one logged-in user.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	server := backendtest.New()
	t.Cleanup(server.Close)

	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	client := api.NewClient(server.URL, 5*time.Second)
	session := NewSessionService(client, db)

	user := server.AddUser("asha", "asha@example.com", "secret123")
	if err := session.Login(context.Background(), "asha@example.com", "secret123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}

	return &testEnv{server: server, client: client, db: db, session: session, user: user}
}

// placesFor points a places client at the fake backend.
func (e *testEnv) placesFor() *PlacesService {
	return NewPlacesService(e.server.URL, "test-key")
}

type fakeLocator struct {
	coords store.Coordinates
	addr   Address
	posErr error
	geoErr error
}

func (f *fakeLocator) CurrentPosition(ctx context.Context) (store.Coordinates, error) {
	if f.posErr != nil {
		return store.Coordinates{}, f.posErr
	}
	return f.coords, nil
}

func (f *fakeLocator) ReverseGeocode(ctx context.Context, coords store.Coordinates) (Address, error) {
	if f.geoErr != nil {
		return Address{}, f.geoErr
	}
	return f.addr, nil
}
