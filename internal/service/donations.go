package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"donation-rewards-api/internal/auth"
	"donation-rewards-api/internal/database"
	"donation-rewards-api/internal/events"
	"donation-rewards-api/internal/features"
	"donation-rewards-api/internal/geo"
	"donation-rewards-api/internal/lifecycle"
	"donation-rewards-api/internal/models"
	"donation-rewards-api/internal/storage"
	"donation-rewards-api/internal/validation"
	"donation-rewards-api/internal/verification"
)

// UploadMediaInput is the proof submitted for a donation.
type UploadMediaInput struct {
	DonationID string
	MediaURL   string
	Latitude   *float64
	Longitude  *float64
}

// MediaFile is a raw upload to be stored before verification.
type MediaFile struct {
	Reader      io.Reader
	ContentType string
	Size        int64
	Latitude    *float64
	Longitude   *float64
}

// StartDonation opens a donation session for a bin scan.
func (s *Service) StartDonation(ctx context.Context, userID, binCode string) (*models.StartDonationResponse, error) {
	binCode = validation.SanitizeString(binCode)
	if err := validation.ValidateBinCode(binCode); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "start_donation")
	defer cancel()

	qs := s.db.Queries()
	bin, err := qs.GetBinByCode(ctx, binCode)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("bin")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bin: %w", err)
	}
	if bin.Status != models.BinActive {
		return nil, &ConflictError{Reason: "bin is not accepting donations", CurrentStatus: string(bin.Status)}
	}

	now := s.clock.Now()

	if s.features.IsEnabled(features.FeatureBinScanGuard) {
		last, err := qs.LatestScanAtBin(ctx, userID, bin.ID, now.Add(-s.scanCooldown))
		if err != nil {
			return nil, fmt.Errorf("failed to check recent scans: %w", err)
		}
		if last != nil {
			return nil, &RateLimitError{
				Reason:  "please wait before donating at this bin again",
				Limit:   1,
				ResetAt: last.Add(s.scanCooldown),
			}
		}
	}

	d := models.Donation{
		ID:            uuid.New().String(),
		UserID:        userID,
		BinID:         bin.ID,
		ScanTimestamp: now,
		Status:        lifecycle.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := qs.InsertDonation(ctx, d); err != nil {
		return nil, err
	}

	s.log.Info("donation started",
		zap.String("donation_id", d.ID),
		zap.String("user_id", userID),
		zap.String("bin_id", bin.ID),
	)
	s.publish(ctx, events.EventDonationStarted, events.DonationData{
		DonationID: d.ID,
		UserID:     userID,
		BinID:      bin.ID,
		Status:     d.Status,
	})

	return &models.StartDonationResponse{
		DonationID:    d.ID,
		BinID:         bin.ID,
		BinLocation:   bin.LocationName,
		Status:        d.Status,
		ScanTimestamp: d.ScanTimestamp,
	}, nil
}

// UploadMedia attaches proof media to a pending donation and runs
// auto-verification. A passing donation is promoted to pending_admin and the
// user's donation count is incremented in the same transaction.
func (s *Service) UploadMedia(ctx context.Context, userID string, in UploadMediaInput) (*models.UploadMediaResponse, error) {
	in.DonationID = validation.SanitizeString(in.DonationID)
	in.MediaURL = validation.SanitizeString(in.MediaURL)

	if err := validation.ValidateUUID(in.DonationID, "donation_id"); err != nil {
		return nil, err
	}
	if err := validation.ValidateMediaURL(in.MediaURL); err != nil {
		return nil, err
	}
	media, err := validation.ValidateCoordinates(in.Latitude, in.Longitude)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "upload_media")
	defer cancel()

	now := s.clock.Now()
	if err := s.checkDailyLimit(ctx, userID, now); err != nil {
		return nil, err
	}

	var (
		donation *models.Donation
		result   verification.Result
		status   lifecycle.Status
	)

	err = s.db.WithTx(ctx, func(qs *database.Queries) error {
		d, err := qs.GetDonationForUser(ctx, in.DonationID, userID)
		if errors.Is(err, database.ErrNotFound) {
			return notFound("donation")
		}
		if err != nil {
			return fmt.Errorf("failed to load donation: %w", err)
		}
		if d.Status != lifecycle.StatusPending || d.HasMedia() {
			return &ConflictError{Reason: "donation already processed", CurrentStatus: string(d.Status)}
		}

		result = s.engine.Verify(verification.Input{
			ScanTimestamp: d.ScanTimestamp,
			UploadedAt:    now,
			Bin:           geo.Point{Lat: d.BinLatitude, Lng: d.BinLongitude},
			Media:         media,
		})

		status, err = lifecycle.Next(d.Status, result.Event)
		if err != nil {
			return err
		}
		promoted := false
		if status == lifecycle.StatusConfirmed {
			if status, err = lifecycle.Next(status, lifecycle.EventPromote); err != nil {
				return err
			}
			promoted = true
		}

		update := database.MediaUpdate{
			DonationID:     d.ID,
			UserID:         userID,
			MediaURL:       in.MediaURL,
			MediaTimestamp: now,
			Status:         status,
			Notes:          result.Notes,
		}
		if media != nil {
			update.MediaLatitude = &media.Lat
			update.MediaLongitude = &media.Lng
		}

		ok, err := qs.RecordVerification(ctx, update)
		if err != nil {
			return err
		}
		if !ok {
			return s.resolveMissedUpdate(ctx, qs, d.ID, userID)
		}

		if promoted {
			if err := qs.IncrementDonationCount(ctx, userID, now); err != nil {
				return err
			}
		}

		donation = d
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("donation verified",
		zap.String("donation_id", donation.ID),
		zap.String("user_id", userID),
		zap.String("status", string(status)),
		zap.String("checks", result.Describe()),
	)
	s.publish(ctx, events.EventDonationVerified, events.DonationData{
		DonationID: donation.ID,
		UserID:     userID,
		BinID:      donation.BinID,
		Status:     status,
		Notes:      result.Notes,
	})

	return &models.UploadMediaResponse{
		DonationID:        donation.ID,
		Status:            status,
		VerificationNotes: result.Notes,
		CanClaimVoucher:   false,
		NextStep:          nextStep(status),
	}, nil
}

// UploadMediaFile stores a raw media file and then verifies it like
// UploadMedia.
func (s *Service) UploadMediaFile(ctx context.Context, userID, donationID string, f MediaFile) (*models.UploadMediaResponse, error) {
	if s.media == nil || !s.features.IsEnabled(features.FeatureMediaUpload) {
		return nil, ErrForbidden
	}

	donationID = validation.SanitizeString(donationID)
	if err := validation.ValidateUUID(donationID, "donation_id"); err != nil {
		return nil, err
	}
	if _, err := validation.ValidateCoordinates(f.Latitude, f.Longitude); err != nil {
		return nil, err
	}
	ext, ok := storage.ExtensionFor(f.ContentType)
	if !ok {
		return nil, &validation.ValidationError{Field: "media", Message: "unsupported media type " + f.ContentType}
	}

	// UploadMedia checks again under the transaction.
	if err := s.checkUploadable(ctx, userID, donationID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("donations/%s/%s%s", donationID, uuid.New().String(), ext)
	stored, err := s.media.Upload(ctx, &storage.UploadRequest{
		Key:         key,
		Reader:      f.Reader,
		ContentType: f.ContentType,
		Size:        f.Size,
		Metadata:    map[string]string{"donation-id": donationID, "user-id": userID},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store media: %w", err)
	}

	resp, err := s.UploadMedia(ctx, userID, UploadMediaInput{
		DonationID: donationID,
		MediaURL:   stored.URL,
		Latitude:   f.Latitude,
		Longitude:  f.Longitude,
	})
	if err != nil {
		if derr := s.media.Delete(context.WithoutCancel(ctx), stored.Key); derr != nil {
			s.log.Warn("failed to remove orphaned media", zap.String("key", stored.Key), zap.Error(derr))
		}
		return nil, err
	}
	return resp, nil
}

func (s *Service) checkUploadable(ctx context.Context, userID, donationID string) error {
	ctx, cancel := s.withTimeout(ctx, "check_uploadable")
	defer cancel()

	d, err := s.db.Queries().GetDonationForUser(ctx, donationID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return notFound("donation")
	}
	if err != nil {
		return fmt.Errorf("failed to load donation: %w", err)
	}
	if d.Status != lifecycle.StatusPending || d.HasMedia() {
		return &ConflictError{Reason: "donation already processed", CurrentStatus: string(d.Status)}
	}
	return nil
}

// checkDailyLimit enforces the per-day cap on accepted donations.
func (s *Service) checkDailyLimit(ctx context.Context, userID string, now time.Time) error {
	dayStart := startOfDayUTC(now)
	dayEnd := dayStart.AddDate(0, 0, 1)

	count, err := s.db.Queries().CountDonationsInStatuses(ctx, userID, lifecycle.DailyLimitStatuses(), dayStart, dayEnd)
	if err != nil {
		return err
	}
	if count >= s.dailyLimit {
		return &RateLimitError{
			Reason:  "daily donation limit reached",
			Limit:   s.dailyLimit,
			ResetAt: dayEnd,
		}
	}
	return nil
}

// resolveMissedUpdate explains why a guarded update matched no row.
func (s *Service) resolveMissedUpdate(ctx context.Context, qs *database.Queries, donationID, userID string) error {
	d, err := qs.GetDonationForUser(ctx, donationID, userID)
	if errors.Is(err, database.ErrNotFound) {
		return notFound("donation")
	}
	if err != nil {
		return fmt.Errorf("failed to reload donation: %w", err)
	}
	return &ConflictError{Reason: "donation already processed", CurrentStatus: string(d.Status)}
}

func nextStep(status lifecycle.Status) string {
	switch status {
	case lifecycle.StatusPendingAdmin:
		return "Your donation passed auto-verification and is awaiting admin review."
	case lifecycle.StatusRejected:
		return "Verification failed. Scan the bin again and upload a new photo on site."
	default:
		return "Your donation needs manual review by our team."
	}
}

// GetDonation returns a donation visible to the viewer. Non-admins only see
// their own donations.
func (s *Service) GetDonation(ctx context.Context, viewer auth.Identity, donationID string) (*models.Donation, error) {
	donationID = validation.SanitizeString(donationID)
	if err := validation.ValidateUUID(donationID, "donation_id"); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "get_donation")
	defer cancel()

	qs := s.db.Queries()
	var (
		d   *models.Donation
		err error
	)
	if viewer.IsAdmin {
		d, err = qs.GetDonation(ctx, donationID)
	} else {
		d, err = qs.GetDonationForUser(ctx, donationID, viewer.UserID)
	}
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("donation")
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

// ListDonations returns the user's donations, most recent first.
func (s *Service) ListDonations(ctx context.Context, userID string, limit int) ([]models.Donation, error) {
	ctx, cancel := s.withTimeout(ctx, "list_donations")
	defer cancel()

	return s.db.Queries().ListDonationsByUser(ctx, userID, clampLimit(limit))
}
