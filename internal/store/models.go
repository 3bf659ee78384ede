package store

import "time"

type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// UserProfile mirrors the backend user document. The coordinate fields are
// nullable: a fresh account has no location until one is selected.
type UserProfile struct {
	ID           string   `json:"_id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	Role         string   `json:"role"` // "user" or "seller"
	Latitude     *float64 `json:"latitude,omitempty"`
	Longitude    *float64 `json:"longitude,omitempty"`
	LocationName string   `json:"locationName,omitempty"`
	StoreID      string   `json:"storeId,omitempty"`
}

// IsSeller reports whether the profile is linked to a registered store.
func (p *UserProfile) IsSeller() bool {
	return p.Role == "seller" && p.StoreID != ""
}

// Coordinates returns the stored pair, or ok=false when none is set.
func (p *UserProfile) Coordinates() (Coordinates, bool) {
	if p.Latitude == nil || p.Longitude == nil {
		return Coordinates{}, false
	}
	return Coordinates{Latitude: *p.Latitude, Longitude: *p.Longitude}, true
}

// AuthSession is the bearer token plus the profile it belongs to.
type AuthSession struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

type StoreListing struct {
	ID           string  `json:"_id"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Rating       float64 `json:"rating"`
	ReviewCount  int     `json:"reviewCount"`
	Image        string  `json:"image"`
	Place        string  `json:"location"`
	Distance     float64 `json:"distance"`
	Price        string  `json:"price,omitempty"`
	DeliveryTime string  `json:"deliveryTime,omitempty"`
	Offer        string  `json:"offer,omitempty"`
}

type UserSummary struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type MessageSummary struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type Conversation struct {
	ID          string          `json:"conversationId"`
	OtherUser   UserSummary     `json:"otherUser"`
	LastMessage *MessageSummary `json:"lastMessage"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

type Message struct {
	ID        string      `json:"_id"`
	Text      string      `json:"text"`
	Sender    UserSummary `json:"sender"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Suggestion is one place-autocomplete prediction.
type Suggestion struct {
	PlaceID     string `json:"place_id"`
	Description string `json:"description"`
}
