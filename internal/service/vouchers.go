package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"donation-rewards-api/internal/database"
	"donation-rewards-api/internal/events"
	"donation-rewards-api/internal/models"
	"donation-rewards-api/internal/validation"
)

// ListVouchers returns active, unexpired vouchers.
func (s *Service) ListVouchers(ctx context.Context) ([]models.Voucher, error) {
	ctx, cancel := s.withTimeout(ctx, "list_vouchers")
	defer cancel()

	all, err := s.db.Queries().ListActiveVouchers(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	vouchers := make([]models.Voucher, 0, len(all))
	for _, v := range all {
		if v.ExpiryDate != nil && v.ExpiryDate.Before(now) {
			continue
		}
		vouchers = append(vouchers, v)
	}
	return vouchers, nil
}

// CreateVoucher adds a partner voucher.
func (s *Service) CreateVoucher(ctx context.Context, req models.CreateVoucherRequest) (*models.Voucher, error) {
	req.PartnerName = validation.SanitizeString(req.PartnerName)
	req.Description = validation.SanitizeString(req.Description)
	req.DiscountAmount = validation.SanitizeString(req.DiscountAmount)
	req.TermsConditions = validation.SanitizeString(req.TermsConditions)

	if err := validation.ValidateVoucher(req); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "create_voucher")
	defer cancel()

	v := models.Voucher{
		ID:              uuid.New().String(),
		PartnerName:     req.PartnerName,
		Description:     req.Description,
		DiscountAmount:  req.DiscountAmount,
		TermsConditions: req.TermsConditions,
		ExpiryDate:      req.ExpiryDate,
		IsActive:        true,
		CreatedAt:       s.clock.Now(),
	}
	if err := s.db.Queries().CreateVoucher(ctx, v); err != nil {
		return nil, err
	}

	return &v, nil
}

// CheckEligibility reports whether the user may claim a voucher this month.
func (s *Service) CheckEligibility(ctx context.Context, userID string) (*models.EligibilityResponse, error) {
	ctx, cancel := s.withTimeout(ctx, "check_eligibility")
	defer cancel()

	period := s.evaluator.CurrentPeriod().Key()
	c := s.eligibilityCache()
	if c != nil {
		if resp, ok := c.Get(ctx, userID, period); ok {
			return resp, nil
		}
	}

	res, err := s.evaluator.Evaluate(ctx, s.db.Queries(), userID)
	if err != nil {
		return nil, err
	}

	resp := res.ToResponse()
	if c != nil {
		c.Put(ctx, userID, period, resp)
	}
	return &resp, nil
}

// ClaimVoucher claims voucherID for the current month. Eligibility is
// re-evaluated in the same transaction as the insert, and the unique
// (user, year, month) index rejects a concurrent second claim.
func (s *Service) ClaimVoucher(ctx context.Context, userID, voucherID string) (*models.ClaimedVoucher, error) {
	voucherID = validation.SanitizeString(voucherID)
	if err := validation.ValidateUUID(voucherID, "voucher_id"); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "claim_voucher")
	defer cancel()

	var claim models.ClaimedVoucher
	err := s.db.WithTx(ctx, func(qs *database.Queries) error {
		res, err := s.evaluator.Evaluate(ctx, qs, userID)
		if err != nil {
			return err
		}
		if res.HasClaimedThisMonth {
			return &ConflictError{Reason: "already claimed a voucher this month"}
		}
		if !res.HasApprovedDonation {
			return &ConflictError{Reason: "no approved donation this month"}
		}

		v, err := qs.GetActiveVoucher(ctx, voucherID)
		if errors.Is(err, database.ErrNotFound) {
			return notFound("voucher")
		}
		if err != nil {
			return fmt.Errorf("failed to load voucher: %w", err)
		}
		now := s.clock.Now()
		if v.ExpiryDate != nil && v.ExpiryDate.Before(now) {
			return notFound("voucher")
		}

		code, err := s.generateCode(v.PartnerName)
		if err != nil {
			return err
		}

		claim = models.ClaimedVoucher{
			ID:             uuid.New().String(),
			UserID:         userID,
			VoucherID:      v.ID,
			VoucherCode:    code,
			ClaimedAt:      now,
			ClaimYear:      res.Period.Year,
			ClaimMonth:     int(res.Period.Month),
			PartnerName:    v.PartnerName,
			Description:    v.Description,
			DiscountAmount: v.DiscountAmount,
			ExpiryDate:     v.ExpiryDate,
		}

		err = qs.InsertClaim(ctx, claim)
		switch {
		case errors.Is(err, database.ErrDuplicateClaim):
			return &ConflictError{Reason: "already claimed a voucher this month"}
		case errors.Is(err, database.ErrDuplicateVoucherCode):
			return ErrVoucherCodeCollision
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.invalidateEligibility(ctx, userID, claim.ClaimedAt)
	s.log.Info("voucher claimed",
		zap.String("claim_id", claim.ID),
		zap.String("user_id", userID),
		zap.String("voucher_id", claim.VoucherID),
	)
	s.publish(ctx, events.EventVoucherClaimed, events.ClaimData{Claim: claim})

	return &claim, nil
}

// MyVouchers returns the user's claims, newest first.
func (s *Service) MyVouchers(ctx context.Context, userID string) ([]models.ClaimedVoucher, error) {
	ctx, cancel := s.withTimeout(ctx, "my_vouchers")
	defer cancel()

	return s.db.Queries().ListClaimsByUser(ctx, userID)
}
