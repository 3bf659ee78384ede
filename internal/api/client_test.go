package api

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"localmart/internal/backendtest"
	"localmart/internal/store"
)

func newTestClient(t *testing.T) (*backendtest.Server, *Client) {
	t.Helper()
	server := backendtest.New()
	t.Cleanup(server.Close)
	return server, NewClient(server.URL, 5*time.Second)
}

func login(t *testing.T, server *backendtest.Server, client *Client) store.UserProfile {
	t.Helper()
	profile := server.AddUser("asha", "asha@example.com", "secret123")
	token, _, err := client.Login(context.Background(), "asha@example.com", "secret123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	client.SetToken(token)
	return profile
}

func TestLoginRejectionMapsToInvalidCredentials(t *testing.T) {
	server, client := newTestClient(t)
	server.AddUser("asha", "asha@example.com", "secret123")

	_, _, err := client.Login(context.Background(), "asha@example.com", "nope")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestUnauthorizedMapping(t *testing.T) {
	_, client := newTestClient(t)

	_, err := client.CurrentUser(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, want ErrUnauthorized", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != 401 {
		t.Fatalf("err = %v, want an APIError carrying status 401", err)
	}
}

func TestNotFoundMapping(t *testing.T) {
	server, client := newTestClient(t)
	login(t, server, client)

	_, err := client.Messages(context.Background(), "no-such-conversation")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestServerMessagePreferred(t *testing.T) {
	server, client := newTestClient(t)
	login(t, server, client)
	server.FailSend = true

	_, err := client.SendMessage(context.Background(), "u2", "hi", "c1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if apiErr.Message != "message delivery failed" {
		t.Fatalf("message = %q, want the server-provided one", apiErr.Message)
	}
}

func TestNetworkFailureWraps(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := client.CurrentUser(context.Background())
	if err == nil {
		t.Fatal("expected a transport failure")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Fatalf("transport failure mapped to APIError: %v", err)
	}
}

func TestUpdateLocationSendsGeoJSONOrder(t *testing.T) {
	server, client := newTestClient(t)
	profile := login(t, server, client)

	err := client.UpdateLocation(context.Background(), profile.ID, store.Coordinates{Latitude: 9.9312, Longitude: 76.2673})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if len(server.LocationPairs) != 1 {
		t.Fatalf("received %d updates, want 1", len(server.LocationPairs))
	}
	if pair := server.LocationPairs[0]; pair[0] != 76.2673 || pair[1] != 9.9312 {
		t.Fatalf("pair = %v, want longitude first", pair)
	}
}

func TestNearbyStoresEmptyResultIsNotAnError(t *testing.T) {
	_, client := newTestClient(t)

	listings, err := client.NearbyStores(context.Background(), store.Coordinates{Latitude: 9.9312, Longitude: 76.2673})
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(listings) != 0 {
		t.Fatalf("listings = %+v, want empty", listings)
	}
}

func TestRegisterStoreMultipartAssembly(t *testing.T) {
	server, client := newTestClient(t)

	storeID, err := client.RegisterStore(context.Background(), StoreRegistration{
		StoreName:   "Spice Corner",
		Description: "Fresh spices daily",
		Place:       "Kochi, Kerala, India",
		Phone:       "+91 98765 43210",
		Category:    "Grocery",
		SocialMedia: SocialMedia{Instagram: "spicecorner"},

		ImageName:        "logo.png",
		ImageContentType: "image/png",
		Image:            bytes.NewReader([]byte("png-bytes")),
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if storeID == "" {
		t.Fatal("no store ID in response")
	}

	got := server.LastStoreRegistration
	if got.StoreName != "Spice Corner" || got.Description != "Fresh spices daily" ||
		got.Place != "Kochi, Kerala, India" || got.Phone != "+91 98765 43210" || got.Category != "Grocery" {
		t.Fatalf("fields = %+v", got)
	}
	if got.ImageName != "logo.png" || got.ImageSize != len("png-bytes") {
		t.Fatalf("image part = %q (%d bytes)", got.ImageName, got.ImageSize)
	}
	if got.SocialMedia != `{"whatsapp":"","instagram":"spicecorner","facebook":"","website":""}` {
		t.Fatalf("socialMedia = %q", got.SocialMedia)
	}
}

func TestConversationRoundTrip(t *testing.T) {
	server, client := newTestClient(t)
	login(t, server, client)

	conversationID, err := client.CreateConversation(context.Background(), "u-other")
	if err != nil {
		t.Fatalf("create conversation failed: %v", err)
	}

	sent, err := client.SendMessage(context.Background(), "u-other", "hello there", conversationID)
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sent.ID == "" || sent.Text != "hello there" {
		t.Fatalf("sent = %+v", sent)
	}

	messages, err := client.Messages(context.Background(), conversationID)
	if err != nil {
		t.Fatalf("messages failed: %v", err)
	}
	if len(messages) != 1 || messages[0].ID != sent.ID {
		t.Fatalf("messages = %+v, want the confirmed send", messages)
	}
}
