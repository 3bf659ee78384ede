// Package backendtest is an in-memory stand-in for the localmart REST
// backend (plus the places endpoints) used by the client and service tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"localmart/internal/store"
)

type account struct {
	password string
	profile  store.UserProfile
}

// Server wraps an httptest.Server exposing the backend's REST surface. All
// state lives in memory; counters and failure toggles let tests pin down
// exactly how many calls were made and with what.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	accounts  map[string]*account // by email
	tokens    map[string]string   // token -> user ID
	stores    []store.StoreListing
	convs     []store.Conversation
	messages  map[string][]store.Message // by conversation ID
	nextMsgID int

	// Places fixtures.
	Suggestions  []store.Suggestion
	PlaceCoords  map[string]store.Coordinates // by place ID; missing -> no geometry
	placesStatus string

	// Call counters and captured inputs.
	NearbyCalls           int
	AutocompleteCalls     int
	SendCalls             int
	StoreRegisterCalls    int
	LastNearbyLatitude    string
	LastNearbyLongitude   string
	LastAutocompleteInput string
	LastStoreRegistration StoreRegistrationRecord
	LocationPairs         [][2]float64 // [lng, lat] pairs received by the location route

	// Failure/behavior toggles.
	FailSend     bool
	FailNearby   bool
	FailLocation bool
	RejectToken  bool          // force 401 on authenticated routes
	SendHold     chan struct{} // when set, the send handler blocks until closed
	NearbyHold   chan struct{} // blocks the next nearby call only, then clears
}

// StoreRegistrationRecord captures what the multipart registration endpoint
// received.
type StoreRegistrationRecord struct {
	StoreName   string
	Description string
	Place       string
	Phone       string
	Category    string
	SocialMedia string
	ImageName   string
	ImageSize   int
}

func New() *Server {
	s := &Server{
		accounts:     make(map[string]*account),
		tokens:       make(map[string]string),
		messages:     make(map[string][]store.Message),
		PlaceCoords:  make(map[string]store.Coordinates),
		placesStatus: "OK",
	}

	r := chi.NewRouter()

	r.Post("/users/register", s.handleRegister)
	r.Post("/users/login", s.handleLogin)
	r.Get("/stores/nearby", s.handleNearby)
	r.Post("/stores/register", s.handleStoreRegister)
	r.Put("/users/location/{userID}", s.handleLocation)

	r.Group(func(r chi.Router) {
		r.Use(s.bearerMiddleware)
		r.Get("/api/users/me", s.handleMe)
		r.Get("/api/users/all", s.handleUsers)
		r.Get("/api/messages/conversations", s.handleConversations)
		r.Get("/api/messages/conversations/{conversationID}", s.handleMessages)
		r.Post("/api/messages/conversations", s.handleCreateConversation)
		r.Post("/api/messages/send", s.handleSend)
	})

	// Places endpoints, reachable by pointing the places client at this
	// server's URL.
	r.Get("/autocomplete/json", s.handleAutocomplete)
	r.Get("/details/json", s.handleDetails)

	s.Server = httptest.NewServer(r)
	return s
}

// AddUser seeds an account and returns its profile.
func (s *Server) AddUser(username, email, password string) store.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	profile := store.UserProfile{
		ID:       uuid.NewString(),
		Username: username,
		Email:    email,
		Role:     "user",
	}
	s.accounts[email] = &account{password: password, profile: profile}
	return profile
}

// TokenFor issues a bearer token for an already seeded user, bypassing the
// login endpoint.
func (s *Server) TokenFor(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := "tok-" + uuid.NewString()
	s.tokens[token] = userID
	return token
}

// SetPlacesStatus overrides the status field of autocomplete responses
// (e.g. "ZERO_RESULTS" or "REQUEST_DENIED").
func (s *Server) SetPlacesStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.placesStatus = status
}

// SeedStores sets the nearby-store fixture returned by every query.
func (s *Server) SeedStores(listings []store.StoreListing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores = listings
}

// SeedConversation registers a conversation with its transcript.
func (s *Server) SeedConversation(conv store.Conversation, messages []store.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = append(s.convs, conv)
	s.messages[conv.ID] = messages
}

func (s *Server) bearerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		reject := s.RejectToken
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		userID, ok := s.tokens[token]
		s.mu.Unlock()
		if reject || !ok {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		r.Header.Set("X-User-ID", userID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "username, email and password are required")
		return
	}
	s.mu.Lock()
	_, exists := s.accounts[req.Email]
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusConflict, "email already registered")
		return
	}
	s.AddUser(req.Username, req.Email, req.Password)
	writeJSON(w, http.StatusCreated, map[string]string{"message": "registration successful"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	acct, ok := s.accounts[req.Email]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}
	token := s.TokenFor(acct.profile.ID)
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": acct.profile})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	profile, ok := s.profileByID(r.Header.Get("X-User-ID"))
	if !ok {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	users := make([]store.UserSummary, 0, len(s.accounts))
	for _, acct := range s.accounts {
		users = append(users, store.UserSummary{
			ID:       acct.profile.ID,
			Username: acct.profile.Username,
			Email:    acct.profile.Email,
		})
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.NearbyCalls++
	s.LastNearbyLatitude = r.URL.Query().Get("latitude")
	s.LastNearbyLongitude = r.URL.Query().Get("longitude")
	fail := s.FailNearby
	listings := s.stores
	hold := s.NearbyHold
	s.NearbyHold = nil
	s.mu.Unlock()
	if hold != nil {
		<-hold
	}
	if fail {
		writeError(w, http.StatusInternalServerError, "store lookup failed")
		return
	}
	if r.URL.Query().Get("latitude") == "" || r.URL.Query().Get("longitude") == "" {
		writeError(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	if listings == nil {
		listings = []store.StoreListing{}
	}
	writeJSON(w, http.StatusOK, listings)
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Coordinates [2]float64 `json:"coordinates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.mu.Lock()
	fail := s.FailLocation
	if !fail {
		s.LocationPairs = append(s.LocationPairs, req.Coordinates)
		userID := chi.URLParam(r, "userID")
		for _, acct := range s.accounts {
			if acct.profile.ID == userID {
				lng, lat := req.Coordinates[0], req.Coordinates[1]
				acct.profile.Longitude = &lng
				acct.profile.Latitude = &lat
			}
		}
	}
	s.mu.Unlock()
	if fail {
		writeError(w, http.StatusInternalServerError, "location update failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "location updated"})
}

func (s *Server) handleStoreRegister(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.StoreRegisterCalls++
	s.mu.Unlock()
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "expected multipart form")
		return
	}
	if r.FormValue("storeName") == "" || r.FormValue("phone") == "" {
		writeError(w, http.StatusBadRequest, "storeName and phone are required")
		return
	}
	file, header, err := r.FormFile("profileImage")
	if err != nil {
		writeError(w, http.StatusBadRequest, "profileImage is required")
		return
	}
	defer file.Close()
	imageBytes, _ := io.ReadAll(file)

	s.mu.Lock()
	s.LastStoreRegistration = StoreRegistrationRecord{
		StoreName:   r.FormValue("storeName"),
		Description: r.FormValue("description"),
		Place:       r.FormValue("place"),
		Phone:       r.FormValue("phone"),
		Category:    r.FormValue("category"),
		SocialMedia: r.FormValue("socialMedia"),
		ImageName:   header.Filename,
		ImageSize:   len(imageBytes),
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "store registered",
		"store":   map[string]string{"_id": uuid.NewString()},
	})
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	convs := s.convs
	s.mu.Unlock()
	if convs == nil {
		convs = []store.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	s.mu.Lock()
	messages, ok := s.messages[conversationID]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReceiverID string `json:"receiverId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ReceiverID == "" {
		writeError(w, http.StatusBadRequest, "receiverId is required")
		return
	}
	conv := store.Conversation{ID: uuid.NewString(), UpdatedAt: time.Now()}
	s.mu.Lock()
	s.convs = append(s.convs, conv)
	s.messages[conv.ID] = []store.Message{}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"conversationId": conv.ID})
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.SendCalls++
	hold := s.SendHold
	fail := s.FailSend
	s.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if fail {
		writeError(w, http.StatusInternalServerError, "message delivery failed")
		return
	}

	var req struct {
		ReceiverID     string `json:"receiverId"`
		Text           string `json:"text"`
		ConversationID string `json:"conversationId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	senderID := r.Header.Get("X-User-ID")
	sender := store.UserSummary{ID: senderID}
	if profile, ok := s.profileByID(senderID); ok {
		sender.Username = profile.Username
	}

	s.mu.Lock()
	s.nextMsgID++
	msg := store.Message{
		ID:        fmt.Sprintf("srv-%d", s.nextMsgID),
		Text:      req.Text,
		Sender:    sender,
		CreatedAt: time.Now(),
	}
	s.messages[req.ConversationID] = append(s.messages[req.ConversationID], msg)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"data": msg})
}

func (s *Server) handleAutocomplete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.AutocompleteCalls++
	s.LastAutocompleteInput = r.URL.Query().Get("input")
	status := s.placesStatus
	suggestions := s.Suggestions
	s.mu.Unlock()
	if suggestions == nil {
		suggestions = []store.Suggestion{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "predictions": suggestions})
}

func (s *Server) handleDetails(w http.ResponseWriter, r *http.Request) {
	placeID := r.URL.Query().Get("place_id")
	s.mu.Lock()
	coords, ok := s.PlaceCoords[placeID]
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"status": "OK", "result": map[string]any{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "OK",
		"result": map[string]any{
			"geometry": map[string]any{
				"location": map[string]float64{"lat": coords.Latitude, "lng": coords.Longitude},
			},
		},
	})
}

func (s *Server) profileByID(id string) (store.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.profile.ID == id {
			return acct.profile, true
		}
	}
	return store.UserProfile{}, false
}

// Calls returns the counters under lock, for assertions.
func (s *Server) Calls() (nearby, autocomplete, send int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.NearbyCalls, s.AutocompleteCalls, s.SendCalls
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
