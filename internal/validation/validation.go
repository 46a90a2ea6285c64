package validation

import (
	"fmt"
	"math"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"unicode"

	"donation-rewards-api/internal/geo"
	"donation-rewards-api/internal/models"
)

var (
	uuidRegex    = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	binCodeRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{1,63}$`)
)

const (
	maxURLLength    = 2048
	maxNotesLength  = 1000
	minPasswordSize = 8
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func SanitizeString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			return -1
		}
		return r
	}, s)

	return strings.TrimSpace(s)
}

func ValidateUUID(id, fieldName string) error {
	if id == "" {
		return &ValidationError{
			Field:   fieldName,
			Message: "is required",
		}
	}

	id = SanitizeString(id)

	if !uuidRegex.MatchString(strings.ToLower(id)) {
		return &ValidationError{
			Field:   fieldName,
			Message: "must be a valid UUID v4",
		}
	}

	return nil
}

// ValidateCoordinates checks an optional coordinate pair. Both absent is
// legal and returns a nil point; one without the other, a non-finite value,
// or a value out of range is an error.
func ValidateCoordinates(lat, lng *float64) (*geo.Point, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil {
		return nil, &ValidationError{Field: "latitude", Message: "is required when longitude is given"}
	}
	if lng == nil {
		return nil, &ValidationError{Field: "longitude", Message: "is required when latitude is given"}
	}

	if math.IsNaN(*lat) || math.IsInf(*lat, 0) || *lat < -90 || *lat > 90 {
		return nil, &ValidationError{Field: "latitude", Message: "must be between -90 and 90"}
	}
	if math.IsNaN(*lng) || math.IsInf(*lng, 0) || *lng < -180 || *lng > 180 {
		return nil, &ValidationError{Field: "longitude", Message: "must be between -180 and 180"}
	}

	return &geo.Point{Lat: *lat, Lng: *lng}, nil
}

// ValidatePoint checks a required coordinate pair.
func ValidatePoint(p geo.Point) error {
	if _, err := ValidateCoordinates(&p.Lat, &p.Lng); err != nil {
		return err
	}
	return nil
}

func ValidateMediaURL(raw string) error {
	if raw == "" {
		return &ValidationError{Field: "media_url", Message: "is required"}
	}
	if len(raw) > maxURLLength {
		return &ValidationError{Field: "media_url", Message: "is too long"}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return &ValidationError{Field: "media_url", Message: "must be an absolute http(s) URL"}
	}

	return nil
}

func ValidateBinCode(code string) error {
	if code == "" {
		return &ValidationError{Field: "bin_code", Message: "is required"}
	}
	if !binCodeRegex.MatchString(code) {
		return &ValidationError{Field: "bin_code", Message: "must be 2-64 letters, digits, '-' or '_'"}
	}
	return nil
}

func ValidateRegisterBin(req models.RegisterBinRequest) error {
	if err := ValidateBinCode(req.BinCode); err != nil {
		return err
	}

	if req.LocationName == "" {
		return &ValidationError{Field: "location_name", Message: "is required"}
	}

	return ValidatePoint(geo.Point{Lat: req.Latitude, Lng: req.Longitude})
}

func ValidateBinStatus(status models.BinStatus) error {
	if !status.Valid() {
		return &ValidationError{Field: "status", Message: "must be one of active, inactive, maintenance"}
	}
	return nil
}

// ValidateReason checks an admin rejection reason.
func ValidateReason(reason string) error {
	if reason == "" {
		return &ValidationError{Field: "reason", Message: "is required"}
	}
	return ValidateNotes(reason, "reason")
}

func ValidateNotes(notes, fieldName string) error {
	if len(notes) > maxNotesLength {
		return &ValidationError{Field: fieldName, Message: fmt.Sprintf("cannot exceed %d characters", maxNotesLength)}
	}
	return nil
}

func ValidateVoucher(req models.CreateVoucherRequest) error {
	if req.PartnerName == "" {
		return &ValidationError{Field: "partner_name", Message: "is required"}
	}

	letters := 0
	for _, r := range req.PartnerName {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters == 0 {
		return &ValidationError{Field: "partner_name", Message: "must contain at least one letter"}
	}

	if req.DiscountAmount == "" {
		return &ValidationError{Field: "discount_amount", Message: "is required"}
	}

	return nil
}

func ValidateRegister(req models.RegisterRequest) error {
	if err := ValidateEmail(req.Email); err != nil {
		return err
	}

	if req.Name == "" {
		return &ValidationError{Field: "name", Message: "is required"}
	}

	if len(req.Password) < minPasswordSize {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("must be at least %d characters", minPasswordSize),
		}
	}

	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Message: "is required"}
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "must be a valid email address"}
	}

	return nil
}
