package store

import (
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "device.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestTokenRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if token, err := s.LoadToken(); err != nil || token != "" {
		t.Fatalf("fresh store: token=%q err=%v", token, err)
	}

	if err := s.SaveToken("tok-abc"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	token, err := s.LoadToken()
	if err != nil || token != "tok-abc" {
		t.Fatalf("load: token=%q err=%v", token, err)
	}

	// Last write wins.
	if err := s.SaveToken("tok-def"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if token, _ := s.LoadToken(); token != "tok-def" {
		t.Fatalf("token = %q after overwrite", token)
	}

	if err := s.DeleteToken(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if token, _ := s.LoadToken(); token != "" {
		t.Fatalf("token = %q after delete", token)
	}
}

func TestProfileRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if profile, err := s.LoadProfile(); err != nil || profile != nil {
		t.Fatalf("fresh store: profile=%+v err=%v", profile, err)
	}

	lat, lng := 9.9312, 76.2673
	in := &UserProfile{
		ID:           "u1",
		Username:     "asha",
		Email:        "asha@example.com",
		Role:         "seller",
		Latitude:     &lat,
		Longitude:    &lng,
		LocationName: "Kochi, Kerala, India",
		StoreID:      "st1",
	}
	if err := s.SaveProfile(in); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	out, err := s.LoadProfile()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if out.ID != in.ID || out.Username != in.Username || out.LocationName != in.LocationName || out.StoreID != in.StoreID {
		t.Fatalf("loaded profile = %+v", out)
	}
	coords, ok := out.Coordinates()
	if !ok || coords.Latitude != lat || coords.Longitude != lng {
		t.Fatalf("coordinates = %+v ok=%v", coords, ok)
	}
	if !out.IsSeller() {
		t.Fatal("seller profile not recognized")
	}

	if err := s.DeleteProfile(); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if profile, _ := s.LoadProfile(); profile != nil {
		t.Fatalf("profile = %+v after delete", profile)
	}
}

func TestInstallIDStable(t *testing.T) {
	s := newTestStore(t)

	first, err := s.InstallID()
	if err != nil || first == "" {
		t.Fatalf("install id: %q err=%v", first, err)
	}
	second, err := s.InstallID()
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if second != first {
		t.Fatalf("install id changed: %q vs %q", first, second)
	}
}

func TestProfileWithoutCoordinates(t *testing.T) {
	p := &UserProfile{ID: "u1", Username: "asha", Role: "user"}
	if _, ok := p.Coordinates(); ok {
		t.Fatal("coordinates reported for a profile without any")
	}
	if p.IsSeller() {
		t.Fatal("plain user reported as seller")
	}
}
