package models

import (
	"time"

	"donation-rewards-api/internal/lifecycle"
)

// BinStatus is the operating state of a collection bin.
type BinStatus string

const (
	BinActive      BinStatus = "active"
	BinInactive    BinStatus = "inactive"
	BinMaintenance BinStatus = "maintenance"
)

// Valid reports whether s is a known bin status.
func (s BinStatus) Valid() bool {
	return s == BinActive || s == BinInactive || s == BinMaintenance
}

// User is a program participant or staff member.
type User struct {
	ID                  string    `json:"id"`           // uuid
	Email               string    `json:"email"`
	Name                string    `json:"name"`
	Phone               string    `json:"phone,omitempty"`
	PasswordHash        string    `json:"-"`
	IsAdmin             bool      `json:"is_admin"`
	TotalDonationsCount int       `json:"total_donations_count"` // incremented on promotion to pending_admin
	CreatedAt           time.Time `json:"created_at"`
}

// Bin is a physical collection point identified by a scannable code.
type Bin struct {
	ID           string    `json:"id"`       // uuid
	BinCode      string    `json:"bin_code"` // printed in the QR code
	LocationName string    `json:"location_name"`
	Address      string    `json:"address,omitempty"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Status       BinStatus `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// Donation is one scan-and-upload event.
type Donation struct {
	ID                string           `json:"id"`
	UserID            string           `json:"user_id"`
	BinID             string           `json:"bin_id"`
	ScanTimestamp     time.Time        `json:"scan_timestamp"`
	MediaURL          *string          `json:"media_url,omitempty"`
	MediaLatitude     *float64         `json:"media_latitude,omitempty"`
	MediaLongitude    *float64         `json:"media_longitude,omitempty"`
	MediaTimestamp    *time.Time       `json:"media_timestamp,omitempty"`
	Status            lifecycle.Status `json:"status"`
	VerificationNotes string           `json:"verification_notes,omitempty"`
	AdminReviewed     bool             `json:"admin_reviewed"`
	AdminID           *string          `json:"admin_id,omitempty"`
	AdminNotes        *string          `json:"admin_notes,omitempty"`
	ReviewedAt        *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`

	// Populated by joins with bins.
	BinCode      string  `json:"bin_code,omitempty"`
	LocationName string  `json:"location_name,omitempty"`
	BinLatitude  float64 `json:"bin_latitude,omitempty"`
	BinLongitude float64 `json:"bin_longitude,omitempty"`
}

// HasMedia reports whether proof media has been attached.
func (d Donation) HasMedia() bool {
	return d.MediaURL != nil
}

// Voucher is a partner reward that can be claimed once per month.
type Voucher struct {
	ID              string     `json:"id"`
	PartnerName     string     `json:"partner_name"`
	Description     string     `json:"description,omitempty"`
	DiscountAmount  string     `json:"discount_amount"` // display text, e.g. "RM20 OFF"
	TermsConditions string     `json:"terms_conditions,omitempty"`
	ExpiryDate      *time.Time `json:"expiry_date,omitempty"`
	IsActive        bool       `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"`
}

// ClaimedVoucher records a single voucher redemption.
type ClaimedVoucher struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	VoucherID   string    `json:"voucher_id"`
	VoucherCode string    `json:"voucher_code"`
	ClaimedAt   time.Time `json:"claimed_at"`
	ClaimYear   int       `json:"claim_year"`
	ClaimMonth  int       `json:"claim_month"`

	// Populated by joins with vouchers.
	PartnerName    string     `json:"partner_name,omitempty"`
	Description    string     `json:"description,omitempty"`
	DiscountAmount string     `json:"discount_amount,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
}

// StartDonationRequest is the body of POST /api/donations/start.
type StartDonationRequest struct {
	BinCode string `json:"bin_code"`
}

// StartDonationResponse describes a newly opened donation session.
type StartDonationResponse struct {
	DonationID    string           `json:"donation_id"`
	BinID         string           `json:"bin_id"`
	BinLocation   string           `json:"bin_location"`
	Status        lifecycle.Status `json:"status"`
	ScanTimestamp time.Time        `json:"scan_timestamp"`
}

// UploadMediaRequest is the body of POST /api/donations/upload.
type UploadMediaRequest struct {
	DonationID string   `json:"donation_id"`
	MediaURL   string   `json:"media_url"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

// UploadMediaResponse reports the auto-verification outcome.
type UploadMediaResponse struct {
	DonationID        string           `json:"donation_id"`
	Status            lifecycle.Status `json:"status"`
	VerificationNotes string           `json:"verification_notes"`
	CanClaimVoucher   bool             `json:"can_claim_voucher"`
	NextStep          string           `json:"next_step"`
}

// ReviewRequest is the body of the admin approve and reject calls.
type ReviewRequest struct {
	Notes  string `json:"notes,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// ReviewResponse summarizes a reviewed donation.
type ReviewResponse struct {
	DonationID string           `json:"donation_id"`
	Status     lifecycle.Status `json:"status"`
	AdminNotes string           `json:"admin_notes"`
	ReviewedAt time.Time        `json:"reviewed_at"`
	User       *User            `json:"user,omitempty"`
}

// EligibilityResponse is returned by GET /api/vouchers/check-eligibility.
type EligibilityResponse struct {
	CanClaim            bool            `json:"can_claim"`
	HasApprovedDonation bool            `json:"has_approved_donation"`
	HasClaimedThisMonth bool            `json:"has_claimed_this_month"`
	ClaimedVoucher      *ClaimedVoucher `json:"claimed_voucher,omitempty"`
	PeriodStart         time.Time       `json:"period_start"`
	NextAvailableAt     *time.Time      `json:"next_available_at,omitempty"`
}

// ClaimVoucherRequest is the body of POST /api/vouchers/claim.
type ClaimVoucherRequest struct {
	VoucherID string `json:"voucher_id"`
}

// RegisterBinRequest is the body of POST /api/bins.
type RegisterBinRequest struct {
	BinCode      string  `json:"bin_code"`
	LocationName string  `json:"location_name"`
	Address      string  `json:"address"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
}

// UpdateBinStatusRequest is the body of PATCH /api/bins/{id}/status.
type UpdateBinStatusRequest struct {
	Status BinStatus `json:"status"`
}

// NearbyBin is a bin annotated with its distance from the search point.
type NearbyBin struct {
	Bin
	DistanceKm float64 `json:"distance_km"`
}

// CreateVoucherRequest is the body of POST /api/admin/vouchers.
type CreateVoucherRequest struct {
	PartnerName     string     `json:"partner_name"`
	Description     string     `json:"description"`
	DiscountAmount  string     `json:"discount_amount"`
	TermsConditions string     `json:"terms_conditions"`
	ExpiryDate      *time.Time `json:"expiry_date"`
}

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries an issued token.
type AuthResponse struct {
	User  User   `json:"user"`
	Token string `json:"token"`
}

// AdminStats is returned by GET /api/admin/stats.
type AdminStats struct {
	TotalDonations int `json:"total_donations"`
	PendingReview  int `json:"pending_review"`
	ApprovedToday  int `json:"approved_today"`
	TotalUsers     int `json:"total_users"`
	ActiveUsers    int `json:"active_users"`
	TotalClaims    int `json:"total_claims"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error         string     `json:"error"`
	CurrentStatus string     `json:"current_status,omitempty"`
	ResetAt       *time.Time `json:"reset_at,omitempty"`
}
