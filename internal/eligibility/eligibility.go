// Package eligibility decides whether a user may claim a voucher in the
// current calendar month.
//
// A claim is allowed when the user has at least one approved donation scanned
// in the current month and has not already claimed a voucher in that month.
// The same rule is applied when displaying eligibility and when claiming.
package eligibility

import (
	"context"
	"fmt"
	"time"

	"donation-rewards-api/internal/clock"
	"donation-rewards-api/internal/models"
)

// Period is one calendar month in a given location. End is exclusive.
type Period struct {
	Year  int
	Month time.Month
	Start time.Time
	End   time.Time
}

// PeriodOf returns the calendar month containing t in loc.
func PeriodOf(t time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return Period{
		Year:  start.Year(),
		Month: start.Month(),
		Start: start,
		End:   start.AddDate(0, 1, 0),
	}
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Key is a stable identifier for the period, e.g. "2025-10".
func (p Period) Key() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// FactSource supplies the donation and claim history the evaluator needs.
type FactSource interface {
	// HasApprovedDonation reports whether the user has an approved donation
	// scanned in [from, to).
	HasApprovedDonation(ctx context.Context, userID string, from, to time.Time) (bool, error)
	// ClaimInPeriod returns the user's claim for the given month, or nil.
	ClaimInPeriod(ctx context.Context, userID string, year, month int) (*models.ClaimedVoucher, error)
}

// Result is the eligibility decision plus the facts behind it.
type Result struct {
	CanClaim            bool
	HasApprovedDonation bool
	HasClaimedThisMonth bool
	ClaimedVoucher      *models.ClaimedVoucher
	Period              Period
	NextAvailableAt     time.Time // zero unless already claimed this month
}

// Decide combines the two facts into a decision.
func Decide(hasApprovedDonation, hasClaimedThisMonth bool) bool {
	return hasApprovedDonation && !hasClaimedThisMonth
}

// Evaluator computes eligibility against the injected clock.
type Evaluator struct {
	clock    clock.Clock
	location *time.Location
}

// NewEvaluator creates an evaluator. A nil location means UTC.
func NewEvaluator(c clock.Clock, loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{clock: c, location: loc}
}

// CurrentPeriod returns the month containing the clock's now.
func (e *Evaluator) CurrentPeriod() Period {
	return PeriodOf(e.clock.Now(), e.location)
}

// Evaluate loads the user's facts from src and returns the decision for the
// current month.
func (e *Evaluator) Evaluate(ctx context.Context, src FactSource, userID string) (Result, error) {
	period := e.CurrentPeriod()
	res := Result{Period: period}

	approved, err := src.HasApprovedDonation(ctx, userID, period.Start, period.End)
	if err != nil {
		return Result{}, fmt.Errorf("failed to check approved donations: %w", err)
	}
	res.HasApprovedDonation = approved

	claim, err := src.ClaimInPeriod(ctx, userID, period.Year, int(period.Month))
	if err != nil {
		return Result{}, fmt.Errorf("failed to check monthly claim: %w", err)
	}
	if claim != nil {
		res.HasClaimedThisMonth = true
		res.ClaimedVoucher = claim
		res.NextAvailableAt = period.End
	}

	res.CanClaim = Decide(res.HasApprovedDonation, res.HasClaimedThisMonth)
	return res, nil
}

// ToResponse converts a result into its API representation.
func (r Result) ToResponse() models.EligibilityResponse {
	resp := models.EligibilityResponse{
		CanClaim:            r.CanClaim,
		HasApprovedDonation: r.HasApprovedDonation,
		HasClaimedThisMonth: r.HasClaimedThisMonth,
		ClaimedVoucher:      r.ClaimedVoucher,
		PeriodStart:         r.Period.Start,
	}
	if !r.NextAvailableAt.IsZero() {
		next := r.NextAvailableAt
		resp.NextAvailableAt = &next
	}
	return resp
}
