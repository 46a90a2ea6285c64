package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"donation-rewards-api/internal/models"
)

const binColumns = `id, bin_code, location_name, address, latitude, longitude, status, created_at`

// CreateBin registers a collection bin. A taken bin code yields ErrDuplicate.
func (qs *Queries) CreateBin(ctx context.Context, b models.Bin) error {
	query := `INSERT INTO bins (
		id, bin_code, location_name, address, latitude, longitude, status, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := qs.exec(ctx, query,
		b.ID,
		b.BinCode,
		b.LocationName,
		b.Address,
		b.Latitude,
		b.Longitude,
		string(b.Status),
		formatTime(b.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert bin: %w", classifyUnique(err))
	}

	return nil
}

// GetBinByCode returns the bin printed with the given code.
func (qs *Queries) GetBinByCode(ctx context.Context, code string) (*models.Bin, error) {
	row := qs.queryRow(ctx, `SELECT `+binColumns+` FROM bins WHERE bin_code = ?`, code)
	return scanBin(row)
}

// GetBinByID returns the bin with the given id.
func (qs *Queries) GetBinByID(ctx context.Context, id string) (*models.Bin, error) {
	row := qs.queryRow(ctx, `SELECT `+binColumns+` FROM bins WHERE id = ?`, id)
	return scanBin(row)
}

// UpdateBinStatus changes a bin's operating status. Coordinates are never
// updated after registration.
func (qs *Queries) UpdateBinStatus(ctx context.Context, id string, status models.BinStatus) error {
	res, err := qs.exec(ctx, `UPDATE bins SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update bin status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActiveBinsInBox returns active bins inside the given bounding box.
// Callers refine the result by exact distance.
func (qs *Queries) ListActiveBinsInBox(ctx context.Context, minLat, maxLat, minLng, maxLng float64) ([]models.Bin, error) {
	query := `SELECT ` + binColumns + ` FROM bins
		WHERE status = ?
		AND latitude BETWEEN ? AND ?
		AND longitude BETWEEN ? AND ?
		ORDER BY bin_code`

	rows, err := qs.query(ctx, query, string(models.BinActive), minLat, maxLat, minLng, maxLng)
	if err != nil {
		return nil, fmt.Errorf("failed to query bins: %w", err)
	}
	defer rows.Close()

	var bins []models.Bin
	for rows.Next() {
		b, err := scanBin(rows)
		if err != nil {
			return nil, err
		}
		bins = append(bins, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bins: %w", err)
	}

	return bins, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBin(row scanner) (*models.Bin, error) {
	var b models.Bin
	var status, createdAt string

	err := row.Scan(
		&b.ID,
		&b.BinCode,
		&b.LocationName,
		&b.Address,
		&b.Latitude,
		&b.Longitude,
		&status,
		&createdAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan bin: %w", err)
	}

	b.Status = models.BinStatus(status)
	b.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &b, nil
}
