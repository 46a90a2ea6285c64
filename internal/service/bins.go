package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"donation-rewards-api/internal/database"
	"donation-rewards-api/internal/geo"
	"donation-rewards-api/internal/models"
	"donation-rewards-api/internal/validation"
)

const (
	// DefaultNearbyRadiusKm is used when a search gives no radius.
	DefaultNearbyRadiusKm = 5.0
	// MaxNearbyRadiusKm caps the search radius.
	MaxNearbyRadiusKm = 50.0

	kmPerDegreeLat = 111.32
)

// RegisterBin adds a collection bin.
func (s *Service) RegisterBin(ctx context.Context, req models.RegisterBinRequest) (*models.Bin, error) {
	req.BinCode = validation.SanitizeString(req.BinCode)
	req.LocationName = validation.SanitizeString(req.LocationName)
	req.Address = validation.SanitizeString(req.Address)

	if err := validation.ValidateRegisterBin(req); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "register_bin")
	defer cancel()

	bin := models.Bin{
		ID:           uuid.New().String(),
		BinCode:      req.BinCode,
		LocationName: req.LocationName,
		Address:      req.Address,
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		Status:       models.BinActive,
		CreatedAt:    s.clock.Now(),
	}
	err := s.db.Queries().CreateBin(ctx, bin)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, &ConflictError{Reason: "bin code already registered"}
	}
	if err != nil {
		return nil, err
	}

	s.log.Info("bin registered", zap.String("bin_id", bin.ID), zap.String("bin_code", bin.BinCode))
	return &bin, nil
}

// GetBinByCode resolves a scanned bin code.
func (s *Service) GetBinByCode(ctx context.Context, code string) (*models.Bin, error) {
	code = validation.SanitizeString(code)
	if err := validation.ValidateBinCode(code); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "get_bin")
	defer cancel()

	bin, err := s.db.Queries().GetBinByCode(ctx, code)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("bin")
	}
	if err != nil {
		return nil, err
	}
	return bin, nil
}

// UpdateBinStatus changes whether a bin accepts donations.
func (s *Service) UpdateBinStatus(ctx context.Context, binID string, status models.BinStatus) (*models.Bin, error) {
	binID = validation.SanitizeString(binID)
	if err := validation.ValidateUUID(binID, "bin_id"); err != nil {
		return nil, err
	}
	if err := validation.ValidateBinStatus(status); err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "update_bin_status")
	defer cancel()

	qs := s.db.Queries()
	err := qs.UpdateBinStatus(ctx, binID, status)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("bin")
	}
	if err != nil {
		return nil, err
	}

	bin, err := qs.GetBinByID(ctx, binID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload bin: %w", err)
	}
	s.log.Info("bin status updated", zap.String("bin_id", binID), zap.String("status", string(status)))
	return bin, nil
}

// NearbyBins returns active bins within radiusKm of p, nearest first.
func (s *Service) NearbyBins(ctx context.Context, p geo.Point, radiusKm float64) ([]models.NearbyBin, error) {
	if err := validation.ValidatePoint(p); err != nil {
		return nil, err
	}
	if math.IsNaN(radiusKm) || radiusKm < 0 {
		return nil, &validation.ValidationError{Field: "radius_km", Message: "must be a positive number"}
	}
	if radiusKm == 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	if radiusKm > MaxNearbyRadiusKm {
		radiusKm = MaxNearbyRadiusKm
	}

	ctx, cancel := s.withTimeout(ctx, "nearby_bins")
	defer cancel()

	// Bounding box prefilter; the haversine check below is exact.
	dLat := radiusKm / kmPerDegreeLat
	dLng := 180.0
	if cos := math.Cos(p.Lat * math.Pi / 180); cos > 1e-6 {
		dLng = math.Min(radiusKm/(kmPerDegreeLat*cos), 180)
	}

	candidates, err := s.db.Queries().ListActiveBinsInBox(ctx, p.Lat-dLat, p.Lat+dLat, p.Lng-dLng, p.Lng+dLng)
	if err != nil {
		return nil, err
	}

	bins := make([]models.NearbyBin, 0, len(candidates))
	for _, b := range candidates {
		d := geo.Distance(p, geo.Point{Lat: b.Latitude, Lng: b.Longitude})
		if d > radiusKm {
			continue
		}
		bins = append(bins, models.NearbyBin{Bin: b, DistanceKm: math.Round(d*1000) / 1000})
	}
	sort.Slice(bins, func(i, j int) bool { return bins[i].DistanceKm < bins[j].DistanceKm })

	return bins, nil
}
