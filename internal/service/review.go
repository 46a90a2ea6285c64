package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"donation-rewards-api/internal/database"
	"donation-rewards-api/internal/events"
	"donation-rewards-api/internal/lifecycle"
	"donation-rewards-api/internal/models"
	"donation-rewards-api/internal/validation"
)

const defaultApprovalNotes = "Approved by admin"

// ApproveDonation moves a donation from pending_admin to approved.
func (s *Service) ApproveDonation(ctx context.Context, adminID, donationID, notes string) (*models.ReviewResponse, error) {
	notes = validation.SanitizeString(notes)
	if err := validation.ValidateNotes(notes, "notes"); err != nil {
		return nil, err
	}
	if notes == "" {
		notes = defaultApprovalNotes
	}
	return s.review(ctx, adminID, donationID, lifecycle.EventApprove, notes, notes)
}

// RejectDonation moves a donation from pending_admin to rejected. A reason
// is required.
func (s *Service) RejectDonation(ctx context.Context, adminID, donationID, reason string) (*models.ReviewResponse, error) {
	reason = validation.SanitizeString(reason)
	if err := validation.ValidateReason(reason); err != nil {
		return nil, err
	}
	return s.review(ctx, adminID, donationID, lifecycle.EventReject, reason, "Rejected: "+reason)
}

func (s *Service) review(ctx context.Context, adminID, donationID string, ev lifecycle.Event, adminNotes, notes string) (*models.ReviewResponse, error) {
	donationID = validation.SanitizeString(donationID)
	if err := validation.ValidateUUID(donationID, "donation_id"); err != nil {
		return nil, err
	}

	from, ok := lifecycle.Source(ev)
	if !ok {
		return nil, fmt.Errorf("event %s has no source status", ev)
	}
	to, err := lifecycle.Next(from, ev)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "review_donation")
	defer cancel()

	qs := s.db.Queries()
	if err := s.requireAdmin(ctx, qs, adminID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	updated, err := qs.RecordReview(ctx, database.ReviewUpdate{
		DonationID: donationID,
		From:       from,
		To:         to,
		AdminID:    adminID,
		AdminNotes: adminNotes,
		Notes:      notes,
		ReviewedAt: now,
	})
	if err != nil {
		return nil, err
	}

	d, err := qs.GetDonation(ctx, donationID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("donation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reload donation: %w", err)
	}
	if !updated {
		return nil, &ConflictError{Reason: "donation is not awaiting review", CurrentStatus: string(d.Status)}
	}

	owner, err := qs.GetUserByID(ctx, d.UserID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to load donor: %w", err)
	}

	if to == lifecycle.StatusApproved {
		s.invalidateEligibility(ctx, d.UserID, d.ScanTimestamp)
	}

	s.log.Info("donation reviewed",
		zap.String("donation_id", d.ID),
		zap.String("admin_id", adminID),
		zap.String("status", string(to)),
	)
	s.publish(ctx, events.EventDonationReviewed, events.DonationData{
		DonationID: d.ID,
		UserID:     d.UserID,
		BinID:      d.BinID,
		Status:     to,
		Notes:      notes,
		AdminID:    adminID,
	})

	return &models.ReviewResponse{
		DonationID: d.ID,
		Status:     to,
		AdminNotes: adminNotes,
		ReviewedAt: now,
		User:       owner,
	}, nil
}

func (s *Service) requireAdmin(ctx context.Context, qs *database.Queries, userID string) error {
	u, err := qs.GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return ErrForbidden
	}
	if err != nil {
		return fmt.Errorf("failed to load admin: %w", err)
	}
	if !u.IsAdmin {
		return ErrForbidden
	}
	return nil
}

// PendingReview lists donations awaiting an admin decision, oldest first.
func (s *Service) PendingReview(ctx context.Context, limit int) ([]models.Donation, error) {
	ctx, cancel := s.withTimeout(ctx, "pending_review")
	defer cancel()

	return s.db.Queries().ListDonationsByStatus(ctx, lifecycle.StatusPendingAdmin, clampLimit(limit))
}

// Stats returns dashboard counters for the current UTC day.
func (s *Service) Stats(ctx context.Context) (models.AdminStats, error) {
	ctx, cancel := s.withTimeout(ctx, "stats")
	defer cancel()

	dayStart := startOfDayUTC(s.clock.Now())
	return s.db.Queries().Stats(ctx, dayStart, dayStart.AddDate(0, 0, 1))
}
