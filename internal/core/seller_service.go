package core

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"strings"

	"localmart/internal/api"
)

// Categories a store can register under.
var Categories = []string{
	"Restaurant",
	"Retail",
	"Electronics",
	"Fashion",
	"Grocery",
	"Services",
	"Beauty",
	"Health",
	"Home & Decor",
	"Books & Stationery",
	"Sports & Fitness",
	"Entertainment",
	"Other",
}

// ValidationError reports a missing required form field before any network
// call is made.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + " is required"
}

// ImageAsset is the store logo picked for upload.
type ImageAsset struct {
	Name        string
	ContentType string
	Data        []byte
}

// RegistrationForm collects the seller registration input. A failed submit
// leaves the form untouched so the user retries with the data still present.
type RegistrationForm struct {
	StoreName   string
	Description string
	Place       string
	Phone       string
	Whatsapp    string
	Instagram   string
	Facebook    string
	Website     string
	Category    string
	Logo        *ImageAsset
}

// Validate checks required fields in form order. The first missing one wins.
func (f *RegistrationForm) Validate() error {
	if strings.TrimSpace(f.StoreName) == "" {
		return &ValidationError{Field: "store name"}
	}
	if strings.TrimSpace(f.Phone) == "" {
		return &ValidationError{Field: "phone number"}
	}
	if f.Logo == nil || len(f.Logo.Data) == 0 {
		return &ValidationError{Field: "store logo"}
	}
	if f.Category == "" {
		return &ValidationError{Field: "store category"}
	}
	return nil
}

// SellerService submits store registrations. Single shot: validate, one
// multipart POST, no draft persistence or partial retry.
type SellerService struct {
	session *SessionService
	client  *api.Client
}

func NewSellerService(session *SessionService, client *api.Client) *SellerService {
	return &SellerService{session: session, client: client}
}

// Submit registers the store and returns its ID. Validation failures never
// reach the network. On success the profile is refreshed best-effort so the
// seller role shows up without a restart.
func (s *SellerService) Submit(ctx context.Context, form *RegistrationForm) (string, error) {
	if err := form.Validate(); err != nil {
		return "", err
	}

	storeID, err := s.client.RegisterStore(ctx, api.StoreRegistration{
		StoreName:   form.StoreName,
		Description: form.Description,
		Place:       form.Place,
		Phone:       form.Phone,
		Category:    form.Category,
		SocialMedia: api.SocialMedia{
			Whatsapp:  form.Whatsapp,
			Instagram: form.Instagram,
			Facebook:  form.Facebook,
			Website:   form.Website,
		},
		ImageName:        form.Logo.Name,
		ImageContentType: form.Logo.ContentType,
		Image:            bytes.NewReader(form.Logo.Data),
	})
	if err != nil {
		return "", fmt.Errorf("failed to register store: %w", err)
	}

	if _, err := s.session.RefreshProfile(ctx); err != nil {
		log.Printf("Profile refresh after store registration failed: %v", err)
	}
	return storeID, nil
}
