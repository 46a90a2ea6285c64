package eligibility

import (
	"context"
	"errors"
	"testing"
	"time"

	"donation-rewards-api/internal/clock"
	"donation-rewards-api/internal/models"
)

type fakeSource struct {
	approved []time.Time // scan timestamps of approved donations
	claims   []models.ClaimedVoucher
	err      error
}

func (f *fakeSource) HasApprovedDonation(ctx context.Context, userID string, from, to time.Time) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, ts := range f.approved {
		if !ts.Before(from) && ts.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeSource) ClaimInPeriod(ctx context.Context, userID string, year, month int) (*models.ClaimedVoucher, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.claims {
		if f.claims[i].ClaimYear == year && f.claims[i].ClaimMonth == month {
			return &f.claims[i], nil
		}
	}
	return nil, nil
}

func TestPeriodOf(t *testing.T) {
	p := PeriodOf(time.Date(2025, 12, 31, 23, 59, 59, 0, time.UTC), time.UTC)
	if p.Year != 2025 || p.Month != time.December {
		t.Errorf("Expected 2025-12, got %s", p.Key())
	}
	if !p.End.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected end at 2026-01-01, got %s", p.End)
	}
	if !p.Contains(time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("Expected period to contain its start")
	}
	if p.Contains(p.End) {
		t.Error("Expected period end to be exclusive")
	}
}

func TestPeriodOf_Location(t *testing.T) {
	kl := time.FixedZone("MYT", 8*60*60)
	// 2025-10-31 20:00 UTC is already November in UTC+8.
	p := PeriodOf(time.Date(2025, 10, 31, 20, 0, 0, 0, time.UTC), kl)
	if p.Month != time.November {
		t.Errorf("Expected November in UTC+8, got %s", p.Month)
	}
	if p.Key() != "2025-11" {
		t.Errorf("Key = %s, expected 2025-11", p.Key())
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		approved, claimed, want bool
	}{
		{true, false, true},
		{true, true, false},
		{false, false, false},
		{false, true, false},
	}
	for _, tt := range tests {
		if got := Decide(tt.approved, tt.claimed); got != tt.want {
			t.Errorf("Decide(%v, %v) = %v, expected %v", tt.approved, tt.claimed, got, tt.want)
		}
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 10, 21, 10, 0, 0, 0, time.UTC)
	ev := NewEvaluator(clock.NewFixed(now), time.UTC)
	ctx := context.Background()

	t.Run("no approved donations", func(t *testing.T) {
		res, err := ev.Evaluate(ctx, &fakeSource{}, "u1")
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if res.CanClaim || res.HasApprovedDonation {
			t.Errorf("Expected no eligibility, got %+v", res)
		}
	})

	t.Run("approved this month", func(t *testing.T) {
		src := &fakeSource{approved: []time.Time{now.AddDate(0, 0, -3)}}
		res, err := ev.Evaluate(ctx, src, "u1")
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if !res.CanClaim {
			t.Errorf("Expected eligibility, got %+v", res)
		}
		if !res.NextAvailableAt.IsZero() {
			t.Error("Expected no next-available date before claiming")
		}
	})

	t.Run("approved only last month", func(t *testing.T) {
		src := &fakeSource{approved: []time.Time{time.Date(2025, 9, 30, 23, 0, 0, 0, time.UTC)}}
		res, err := ev.Evaluate(ctx, src, "u1")
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if res.CanClaim || res.HasApprovedDonation {
			t.Errorf("Expected last month's donation not to count, got %+v", res)
		}
	})

	t.Run("already claimed", func(t *testing.T) {
		src := &fakeSource{
			approved: []time.Time{now},
			claims:   []models.ClaimedVoucher{{ID: "c1", ClaimYear: 2025, ClaimMonth: 10}},
		}
		res, err := ev.Evaluate(ctx, src, "u1")
		if err != nil {
			t.Fatalf("Evaluate failed: %v", err)
		}
		if res.CanClaim || !res.HasClaimedThisMonth {
			t.Errorf("Expected claimed state, got %+v", res)
		}
		if res.ClaimedVoucher == nil || res.ClaimedVoucher.ID != "c1" {
			t.Error("Expected claimed voucher to be returned")
		}
		want := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
		if !res.NextAvailableAt.Equal(want) {
			t.Errorf("NextAvailableAt = %s, expected %s", res.NextAvailableAt, want)
		}
		resp := res.ToResponse()
		if resp.NextAvailableAt == nil || !resp.NextAvailableAt.Equal(want) {
			t.Error("Expected next_available_at in response")
		}
	})

	t.Run("source error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := ev.Evaluate(ctx, &fakeSource{err: boom}, "u1")
		if !errors.Is(err, boom) {
			t.Errorf("Expected wrapped source error, got %v", err)
		}
	})
}
