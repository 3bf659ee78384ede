package core

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func validForm() *RegistrationForm {
	return &RegistrationForm{
		StoreName: "Spice Corner",
		Place:     "Kochi, Kerala, India",
		Phone:     "+91 98765 43210",
		Whatsapp:  "+91 98765 43210",
		Category:  "Grocery",
		Logo: &ImageAsset{
			Name:        "store_profile_1.png",
			ContentType: "image/png",
			Data:        []byte{0x89, 'P', 'N', 'G'},
		},
	}
}

func TestSubmitMissingPhoneNeverHitsNetwork(t *testing.T) {
	env := newTestEnv(t)
	seller := NewSellerService(env.session, env.client)

	form := validForm()
	form.Phone = "  "

	_, err := seller.Submit(context.Background(), form)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want a ValidationError", err)
	}
	if verr.Field != "phone number" {
		t.Fatalf("validation field = %q, want %q", verr.Field, "phone number")
	}
	if !strings.Contains(err.Error(), "phone number") {
		t.Fatalf("error message %q does not name the phone number", err.Error())
	}
	if env.server.StoreRegisterCalls != 0 {
		t.Fatalf("registration endpoint called %d times, want 0", env.server.StoreRegisterCalls)
	}
}

func TestSubmitValidationOrder(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*RegistrationForm)
		field  string
	}{
		{"missing name", func(f *RegistrationForm) { f.StoreName = "" }, "store name"},
		{"missing phone", func(f *RegistrationForm) { f.Phone = "" }, "phone number"},
		{"missing logo", func(f *RegistrationForm) { f.Logo = nil }, "store logo"},
		{"missing category", func(f *RegistrationForm) { f.Category = "" }, "store category"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			form := validForm()
			tc.mutate(form)
			err := form.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("err = %v, want ValidationError on %q", err, tc.field)
			}
		})
	}
}

func TestSubmitSendsMultipartForm(t *testing.T) {
	env := newTestEnv(t)
	seller := NewSellerService(env.session, env.client)

	storeID, err := seller.Submit(context.Background(), validForm())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if storeID == "" {
		t.Fatal("no store ID returned")
	}

	got := env.server.LastStoreRegistration
	if got.StoreName != "Spice Corner" || got.Phone != "+91 98765 43210" || got.Category != "Grocery" {
		t.Fatalf("unexpected fields: %+v", got)
	}
	if got.ImageName != "store_profile_1.png" || got.ImageSize != 4 {
		t.Fatalf("image part = %q (%d bytes), want the picked asset", got.ImageName, got.ImageSize)
	}
	if !strings.Contains(got.SocialMedia, `"whatsapp":"+91 98765 43210"`) {
		t.Fatalf("socialMedia field %q missing the serialized links", got.SocialMedia)
	}
}

func TestSubmitServerFailureKeepsFormUsable(t *testing.T) {
	env := newTestEnv(t)
	seller := NewSellerService(env.session, env.client)

	form := validForm()
	form.StoreName = "" // backend never sees it; then fix and retry
	if _, err := seller.Submit(context.Background(), form); err == nil {
		t.Fatal("expected validation failure")
	}

	form.StoreName = "Spice Corner"
	if _, err := seller.Submit(context.Background(), form); err != nil {
		t.Fatalf("retry with the same form failed: %v", err)
	}
}
