package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"localmart/internal/store"
)

// ErrGeocodeUnresolved is returned when place details come back without a
// usable geometry.
var ErrGeocodeUnresolved = errors.New("place could not be resolved to coordinates")

// PlacesService is the client for the place-autocomplete and place-details
// HTTP endpoints. The API key rides along as a query parameter.
type PlacesService struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewPlacesService(baseURL, apiKey string) *PlacesService {
	return &PlacesService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type autocompleteResponse struct {
	Status      string             `json:"status"`
	Predictions []store.Suggestion `json:"predictions"`
}

// Autocomplete fetches suggestions for a free-text query. ZERO_RESULTS is a
// valid empty list, not an error.
func (s *PlacesService) Autocomplete(ctx context.Context, input string) ([]store.Suggestion, error) {
	q := url.Values{}
	q.Set("input", input)
	q.Set("key", s.apiKey)
	q.Set("types", "geocode")

	var resp autocompleteResponse
	if err := s.get(ctx, "/autocomplete/json?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	switch resp.Status {
	case "OK":
		return resp.Predictions, nil
	case "ZERO_RESULTS":
		return nil, nil
	default:
		return nil, fmt.Errorf("autocomplete returned status %s", resp.Status)
	}
}

type detailsResponse struct {
	Status string `json:"status"`
	Result struct {
		Geometry *struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// Details resolves a suggestion's place ID into coordinates.
func (s *PlacesService) Details(ctx context.Context, placeID string) (store.Coordinates, error) {
	q := url.Values{}
	q.Set("place_id", placeID)
	q.Set("fields", "geometry")
	q.Set("key", s.apiKey)

	var resp detailsResponse
	if err := s.get(ctx, "/details/json?"+q.Encode(), &resp); err != nil {
		return store.Coordinates{}, err
	}
	if resp.Status != "OK" || resp.Result.Geometry == nil {
		return store.Coordinates{}, ErrGeocodeUnresolved
	}
	return store.Coordinates{
		Latitude:  resp.Result.Geometry.Location.Lat,
		Longitude: resp.Result.Geometry.Location.Lng,
	}, nil
}

func (s *PlacesService) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("places request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read places response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("places endpoint returned status %d", resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode places response: %w", err)
	}
	return nil
}
