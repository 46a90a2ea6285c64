package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"donation-rewards-api/internal/models"
)

const voucherColumns = `id, partner_name, description, discount_amount, terms_conditions, expiry_date, is_active, created_at`

const claimSelect = `SELECT c.id, c.user_id, c.voucher_id, c.voucher_code, c.claimed_at,
		c.claim_year, c.claim_month,
		v.partner_name, v.description, v.discount_amount, v.expiry_date
	FROM claimed_vouchers c
	JOIN vouchers v ON v.id = c.voucher_id`

// CreateVoucher inserts a partner voucher.
func (qs *Queries) CreateVoucher(ctx context.Context, v models.Voucher) error {
	query := `INSERT INTO vouchers (` + voucherColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := qs.exec(ctx, query,
		v.ID,
		v.PartnerName,
		v.Description,
		v.DiscountAmount,
		v.TermsConditions,
		nullTime(v.ExpiryDate),
		boolToInt(v.IsActive),
		formatTime(v.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert voucher: %w", err)
	}

	return nil
}

// GetActiveVoucher returns the voucher if it exists and is active.
func (qs *Queries) GetActiveVoucher(ctx context.Context, id string) (*models.Voucher, error) {
	row := qs.queryRow(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE id = ? AND is_active = 1`, id)
	return scanVoucher(row)
}

// ListActiveVouchers returns active vouchers ordered by partner name.
func (qs *Queries) ListActiveVouchers(ctx context.Context) ([]models.Voucher, error) {
	rows, err := qs.query(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE is_active = 1 ORDER BY partner_name, created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to query vouchers: %w", err)
	}
	defer rows.Close()

	vouchers := []models.Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, err
		}
		vouchers = append(vouchers, *v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vouchers: %w", err)
	}

	return vouchers, nil
}

// InsertClaim records a voucher claim. A second claim for the same user and
// month yields ErrDuplicateClaim; a reused code yields ErrDuplicateVoucherCode.
func (qs *Queries) InsertClaim(ctx context.Context, c models.ClaimedVoucher) error {
	query := `INSERT INTO claimed_vouchers (
		id, user_id, voucher_id, voucher_code, claimed_at, claim_year, claim_month
	) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := qs.exec(ctx, query,
		c.ID,
		c.UserID,
		c.VoucherID,
		c.VoucherCode,
		formatTime(c.ClaimedAt),
		c.ClaimYear,
		c.ClaimMonth,
	)
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", classifyUnique(err))
	}

	return nil
}

// ClaimInPeriod returns the user's claim for the month, or nil if none.
func (qs *Queries) ClaimInPeriod(ctx context.Context, userID string, year, month int) (*models.ClaimedVoucher, error) {
	row := qs.queryRow(ctx,
		claimSelect+` WHERE c.user_id = ? AND c.claim_year = ? AND c.claim_month = ?`,
		userID, year, month,
	)
	c, err := scanClaim(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return c, err
}

// GetClaim returns a claim joined with its voucher.
func (qs *Queries) GetClaim(ctx context.Context, id string) (*models.ClaimedVoucher, error) {
	return scanClaim(qs.queryRow(ctx, claimSelect+` WHERE c.id = ?`, id))
}

// ListClaimsByUser returns the user's claims, newest first.
func (qs *Queries) ListClaimsByUser(ctx context.Context, userID string) ([]models.ClaimedVoucher, error) {
	rows, err := qs.query(ctx, claimSelect+` WHERE c.user_id = ? ORDER BY c.claimed_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query claims: %w", err)
	}
	defer rows.Close()

	claims := []models.ClaimedVoucher{}
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating claims: %w", err)
	}

	return claims, nil
}

func scanVoucher(row scanner) (*models.Voucher, error) {
	var v models.Voucher
	var expiry sql.NullString
	var createdAt string

	err := row.Scan(
		&v.ID,
		&v.PartnerName,
		&v.Description,
		&v.DiscountAmount,
		&v.TermsConditions,
		&expiry,
		&v.IsActive,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan voucher: %w", err)
	}

	if v.ExpiryDate, err = parseNullTime(expiry); err != nil {
		return nil, err
	}
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	return &v, nil
}

func scanClaim(row scanner) (*models.ClaimedVoucher, error) {
	var c models.ClaimedVoucher
	var claimedAt string
	var expiry sql.NullString

	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.VoucherID,
		&c.VoucherCode,
		&claimedAt,
		&c.ClaimYear,
		&c.ClaimMonth,
		&c.PartnerName,
		&c.Description,
		&c.DiscountAmount,
		&expiry,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan claim: %w", err)
	}

	if c.ClaimedAt, err = parseTime(claimedAt); err != nil {
		return nil, err
	}
	if c.ExpiryDate, err = parseNullTime(expiry); err != nil {
		return nil, err
	}

	return &c, nil
}
