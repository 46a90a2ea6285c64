package validation

import (
	"errors"
	"math"
	"testing"

	"donation-rewards-api/internal/models"
)

func f(v float64) *float64 { return &v }

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name      string
		lat, lng  *float64
		wantPoint bool
		wantField string
	}{
		{"both absent", nil, nil, false, ""},
		{"valid pair", f(3.0951), f(101.4813), true, ""},
		{"latitude only", f(3.0951), nil, false, "longitude"},
		{"longitude only", nil, f(101.4813), false, "latitude"},
		{"latitude out of range", f(91), f(0), false, "latitude"},
		{"longitude out of range", f(0), f(-181), false, "longitude"},
		{"NaN latitude", f(math.NaN()), f(0), false, "latitude"},
		{"infinite longitude", f(0), f(math.Inf(1)), false, "longitude"},
		{"boundaries", f(-90), f(180), true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ValidateCoordinates(tt.lat, tt.lng)
			if tt.wantField != "" {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("Expected ValidationError, got %v", err)
				}
				if verr.Field != tt.wantField {
					t.Errorf("Field = %s, expected %s", verr.Field, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if (p != nil) != tt.wantPoint {
				t.Errorf("Point = %v, expected present=%v", p, tt.wantPoint)
			}
		})
	}
}

func TestValidateMediaURL(t *testing.T) {
	valid := []string{"https://cdn.example.com/a.jpg", "http://localhost:8080/media/x.png"}
	for _, u := range valid {
		if err := ValidateMediaURL(u); err != nil {
			t.Errorf("ValidateMediaURL(%q) = %v", u, err)
		}
	}

	invalid := []string{"", "not a url", "ftp://example.com/a.jpg", "/relative/path.jpg"}
	for _, u := range invalid {
		if err := ValidateMediaURL(u); err == nil {
			t.Errorf("Expected %q to be rejected", u)
		}
	}
}

func TestValidateUUID(t *testing.T) {
	if err := ValidateUUID("b6a8f1e2-3c4d-4e5f-8a9b-0c1d2e3f4a5b", "id"); err != nil {
		t.Errorf("Expected valid UUID, got %v", err)
	}
	if err := ValidateUUID("", "id"); err == nil {
		t.Error("Expected empty id to be rejected")
	}
	if err := ValidateUUID("123", "donation_id"); err == nil {
		t.Error("Expected malformed id to be rejected")
	}
}

func TestValidateReason(t *testing.T) {
	if err := ValidateReason(""); err == nil {
		t.Error("Expected empty reason to be rejected")
	}
	if err := ValidateReason("Photo does not show the bin"); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestValidateRegisterBin(t *testing.T) {
	req := models.RegisterBinRequest{BinCode: "KL-001", LocationName: "Klang Sentral", Latitude: 3.095, Longitude: 101.4812}
	if err := ValidateRegisterBin(req); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	req.Latitude = 120
	if err := ValidateRegisterBin(req); err == nil {
		t.Error("Expected out-of-range latitude to be rejected")
	}

	req.Latitude = 3.095
	req.BinCode = "bad code!"
	if err := ValidateRegisterBin(req); err == nil {
		t.Error("Expected malformed bin code to be rejected")
	}
}

func TestValidateRegister(t *testing.T) {
	ok := models.RegisterRequest{Email: "aina@example.com", Name: "Aina", Password: "s3cretpass"}
	if err := ValidateRegister(ok); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	short := ok
	short.Password = "short"
	if err := ValidateRegister(short); err == nil {
		t.Error("Expected short password to be rejected")
	}

	badEmail := ok
	badEmail.Email = "Aina <aina@example.com>"
	if err := ValidateRegister(badEmail); err == nil {
		t.Error("Expected display-name email to be rejected")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  KL-001\x00\x07 "); got != "KL-001" {
		t.Errorf("SanitizeString = %q", got)
	}
}
