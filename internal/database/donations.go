package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"donation-rewards-api/internal/lifecycle"
	"donation-rewards-api/internal/models"
)

const donationSelect = `SELECT d.id, d.user_id, d.bin_id, d.scan_timestamp,
		d.media_url, d.media_latitude, d.media_longitude, d.media_timestamp,
		d.status, d.verification_notes, d.admin_reviewed, d.admin_id, d.admin_notes,
		d.reviewed_at, d.created_at, d.updated_at,
		b.bin_code, b.location_name, b.latitude, b.longitude
	FROM donations d
	JOIN bins b ON b.id = d.bin_id`

// MediaUpdate is the outcome of auto-verification written onto a donation.
type MediaUpdate struct {
	DonationID     string
	UserID         string
	MediaURL       string
	MediaLatitude  *float64
	MediaLongitude *float64
	MediaTimestamp time.Time
	Status         lifecycle.Status
	Notes          string
}

// ReviewUpdate is an admin decision written onto a donation.
type ReviewUpdate struct {
	DonationID string
	From       lifecycle.Status
	To         lifecycle.Status
	AdminID    string
	AdminNotes string
	Notes      string
	ReviewedAt time.Time
}

// InsertDonation creates a donation session.
func (qs *Queries) InsertDonation(ctx context.Context, d models.Donation) error {
	query := `INSERT INTO donations (
		id, user_id, bin_id, scan_timestamp, status, verification_notes,
		admin_reviewed, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := qs.exec(ctx, query,
		d.ID,
		d.UserID,
		d.BinID,
		formatTime(d.ScanTimestamp),
		string(d.Status),
		d.VerificationNotes,
		boolToInt(d.AdminReviewed),
		formatTime(d.CreatedAt),
		formatTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert donation: %w", err)
	}

	return nil
}

// GetDonation returns a donation joined with its bin.
func (qs *Queries) GetDonation(ctx context.Context, id string) (*models.Donation, error) {
	row := qs.queryRow(ctx, donationSelect+` WHERE d.id = ?`, id)
	return scanDonation(row)
}

// GetDonationForUser returns a donation only if it belongs to userID.
func (qs *Queries) GetDonationForUser(ctx context.Context, id, userID string) (*models.Donation, error) {
	row := qs.queryRow(ctx, donationSelect+` WHERE d.id = ? AND d.user_id = ?`, id, userID)
	return scanDonation(row)
}

// ListDonationsByUser returns the user's donations, most recent scan first.
func (qs *Queries) ListDonationsByUser(ctx context.Context, userID string, limit int) ([]models.Donation, error) {
	return qs.listDonations(ctx,
		donationSelect+` WHERE d.user_id = ? ORDER BY d.scan_timestamp DESC LIMIT ?`,
		userID, limit,
	)
}

// ListDonationsByStatus returns donations in status, oldest first.
func (qs *Queries) ListDonationsByStatus(ctx context.Context, status lifecycle.Status, limit int) ([]models.Donation, error) {
	return qs.listDonations(ctx,
		donationSelect+` WHERE d.status = ? ORDER BY d.updated_at ASC LIMIT ?`,
		string(status), limit,
	)
}

func (qs *Queries) listDonations(ctx context.Context, query string, args ...any) ([]models.Donation, error) {
	rows, err := qs.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query donations: %w", err)
	}
	defer rows.Close()

	donations := []models.Donation{}
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		donations = append(donations, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating donations: %w", err)
	}

	return donations, nil
}

// RecordVerification attaches media and the verification outcome to a
// donation that is still pending with no media. It reports false when no row
// matched, i.e. the donation is unknown, not owned by the user, or already
// processed.
func (qs *Queries) RecordVerification(ctx context.Context, u MediaUpdate) (bool, error) {
	query := `UPDATE donations SET
		media_url = ?, media_latitude = ?, media_longitude = ?, media_timestamp = ?,
		status = ?, verification_notes = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status = ? AND media_url IS NULL`

	ts := formatTime(u.MediaTimestamp)
	res, err := qs.exec(ctx, query,
		u.MediaURL,
		u.MediaLatitude,
		u.MediaLongitude,
		ts,
		string(u.Status),
		u.Notes,
		ts,
		u.DonationID,
		u.UserID,
		string(lifecycle.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record verification: %w", err)
	}

	return affectedOne(res)
}

// RecordReview applies an admin decision if the donation is still in
// u.From. It reports false when no row matched.
func (qs *Queries) RecordReview(ctx context.Context, u ReviewUpdate) (bool, error) {
	query := `UPDATE donations SET
		status = ?, admin_reviewed = 1, admin_id = ?, admin_notes = ?,
		verification_notes = ?, reviewed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`

	ts := formatTime(u.ReviewedAt)
	res, err := qs.exec(ctx, query,
		string(u.To),
		u.AdminID,
		u.AdminNotes,
		u.Notes,
		ts,
		ts,
		u.DonationID,
		string(u.From),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record review: %w", err)
	}

	return affectedOne(res)
}

// CountDonationsInStatuses counts the user's donations in any of statuses
// with a scan timestamp in [from, to).
func (qs *Queries) CountDonationsInStatuses(ctx context.Context, userID string, statuses []lifecycle.Status, from, to time.Time) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}

	args := []any{userID, formatTime(from), formatTime(to)}
	for _, s := range statuses {
		args = append(args, string(s))
	}

	query := `SELECT COUNT(*) FROM donations
		WHERE user_id = ?
		AND scan_timestamp >= ? AND scan_timestamp < ?
		AND status IN (` + placeholders(len(statuses)) + `)`

	var count int
	if err := qs.queryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count donations: %w", err)
	}

	return count, nil
}

// LatestScanAtBin returns the user's most recent scan at the bin on or after
// since, or nil if there is none.
func (qs *Queries) LatestScanAtBin(ctx context.Context, userID, binID string, since time.Time) (*time.Time, error) {
	query := `SELECT scan_timestamp FROM donations
		WHERE user_id = ? AND bin_id = ? AND scan_timestamp >= ?
		ORDER BY scan_timestamp DESC LIMIT 1`

	var ts string
	err := qs.queryRow(ctx, query, userID, binID, formatTime(since)).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest scan: %w", err)
	}

	t, err := parseTime(ts)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// HasApprovedDonation reports whether the user has an approved donation
// scanned in [from, to).
func (qs *Queries) HasApprovedDonation(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	query := `SELECT COUNT(*) FROM donations
		WHERE user_id = ? AND status = ?
		AND scan_timestamp >= ? AND scan_timestamp < ?`

	var count int
	err := qs.queryRow(ctx, query,
		userID,
		string(lifecycle.StatusApproved),
		formatTime(from),
		formatTime(to),
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count approved donations: %w", err)
	}

	return count > 0, nil
}

// Stats returns the admin dashboard counters. Approvals are counted by
// review time in [dayStart, dayEnd).
func (qs *Queries) Stats(ctx context.Context, dayStart, dayEnd time.Time) (models.AdminStats, error) {
	var stats models.AdminStats

	counters := []struct {
		dest  *int
		query string
		args  []any
	}{
		{&stats.TotalDonations, `SELECT COUNT(*) FROM donations`, nil},
		{&stats.PendingReview, `SELECT COUNT(*) FROM donations WHERE status = ?`,
			[]any{string(lifecycle.StatusPendingAdmin)}},
		{&stats.ApprovedToday, `SELECT COUNT(*) FROM donations WHERE status = ? AND reviewed_at >= ? AND reviewed_at < ?`,
			[]any{string(lifecycle.StatusApproved), formatTime(dayStart), formatTime(dayEnd)}},
		{&stats.TotalUsers, `SELECT COUNT(*) FROM users WHERE is_admin = 0`, nil},
		{&stats.ActiveUsers, `SELECT COUNT(DISTINCT user_id) FROM donations`, nil},
		{&stats.TotalClaims, `SELECT COUNT(*) FROM claimed_vouchers`, nil},
	}

	for _, c := range counters {
		if err := qs.queryRow(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return models.AdminStats{}, fmt.Errorf("failed to compute stats: %w", err)
		}
	}

	return stats, nil
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

func scanDonation(row scanner) (*models.Donation, error) {
	var d models.Donation
	var (
		scanTS, status, createdAt, updatedAt string
		mediaURL, mediaTS, adminID, notes    sql.NullString
		reviewedAt                           sql.NullString
		mediaLat, mediaLng                   sql.NullFloat64
	)

	err := row.Scan(
		&d.ID,
		&d.UserID,
		&d.BinID,
		&scanTS,
		&mediaURL,
		&mediaLat,
		&mediaLng,
		&mediaTS,
		&status,
		&d.VerificationNotes,
		&d.AdminReviewed,
		&adminID,
		&notes,
		&reviewedAt,
		&createdAt,
		&updatedAt,
		&d.BinCode,
		&d.LocationName,
		&d.BinLatitude,
		&d.BinLongitude,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan donation: %w", err)
	}

	d.Status = lifecycle.Status(status)
	d.MediaURL = nullString(mediaURL)
	d.MediaLatitude = nullFloat(mediaLat)
	d.MediaLongitude = nullFloat(mediaLng)
	d.AdminID = nullString(adminID)
	d.AdminNotes = nullString(notes)

	if d.ScanTimestamp, err = parseTime(scanTS); err != nil {
		return nil, err
	}
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if d.MediaTimestamp, err = parseNullTime(mediaTS); err != nil {
		return nil, err
	}
	if d.ReviewedAt, err = parseNullTime(reviewedAt); err != nil {
		return nil, err
	}

	return &d, nil
}
