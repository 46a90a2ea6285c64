package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"donation-rewards-api/internal/models"
)

const userColumns = `id, email, name, phone, password_hash, is_admin, total_donations_count, created_at`

// CreateUser inserts a new user. A taken email yields ErrDuplicate.
func (qs *Queries) CreateUser(ctx context.Context, u models.User) error {
	query := `INSERT INTO users (
		id, email, name, phone, password_hash, is_admin, total_donations_count, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	created := formatTime(u.CreatedAt)
	_, err := qs.exec(ctx, query,
		u.ID,
		u.Email,
		u.Name,
		u.Phone,
		u.PasswordHash,
		boolToInt(u.IsAdmin),
		u.TotalDonationsCount,
		created,
		created,
	)
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", classifyUnique(err))
	}

	return nil
}

// GetUserByID returns the user with the given id.
func (qs *Queries) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	row := qs.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByEmail returns the user with the given email.
func (qs *Queries) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	row := qs.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

// IncrementDonationCount adds one to the user's accepted donation count.
func (qs *Queries) IncrementDonationCount(ctx context.Context, userID string, at time.Time) error {
	res, err := qs.exec(ctx,
		`UPDATE users SET total_donations_count = total_donations_count + 1, updated_at = ? WHERE id = ?`,
		formatTime(at), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to increment donation count: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func scanUser(row scanner) (*models.User, error) {
	var u models.User
	var createdAt string

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.Phone,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.TotalDonationsCount,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &u, nil
}
