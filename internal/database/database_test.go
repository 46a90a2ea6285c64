package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"donation-rewards-api/internal/eligibility"
	"donation-rewards-api/internal/lifecycle"
	"donation-rewards-api/internal/models"

	"github.com/google/uuid"
)

var _ eligibility.FactSource = (*Queries)(nil)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var base = time.Date(2025, 10, 21, 10, 0, 0, 0, time.UTC)

func seedUserAndBin(t *testing.T, qs *Queries) (models.User, models.Bin) {
	t.Helper()
	ctx := context.Background()

	u := models.User{
		ID:           uuid.New().String(),
		Email:        uuid.New().String() + "@example.com",
		Name:         "Aina",
		PasswordHash: "x",
		CreatedAt:    base,
	}
	if err := qs.CreateUser(ctx, u); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	b := models.Bin{
		ID:           uuid.New().String(),
		BinCode:      "BIN-" + uuid.New().String()[:8],
		LocationName: "Klang Sentral",
		Latitude:     3.0950,
		Longitude:    101.4812,
		Status:       models.BinActive,
		CreatedAt:    base,
	}
	if err := qs.CreateBin(ctx, b); err != nil {
		t.Fatalf("CreateBin failed: %v", err)
	}

	return u, b
}

func seedDonation(t *testing.T, qs *Queries, userID, binID string, scan time.Time, status lifecycle.Status) models.Donation {
	t.Helper()
	d := models.Donation{
		ID:            uuid.New().String(),
		UserID:        userID,
		BinID:         binID,
		ScanTimestamp: scan,
		Status:        status,
		CreatedAt:     scan,
		UpdatedAt:     scan,
	}
	if err := qs.InsertDonation(context.Background(), d); err != nil {
		t.Fatalf("InsertDonation failed: %v", err)
	}
	return d
}

func TestNewDB_SchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "twice.db")
	db, err := NewDB(path)
	if err != nil {
		t.Fatalf("First open failed: %v", err)
	}
	db.Close()

	db, err = NewDB(path)
	if err != nil {
		t.Fatalf("Second open failed: %v", err)
	}
	db.Close()
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	if _, err := Open("oracle", "x"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &Queries{driver: DriverPostgres}
	got := pg.rebind(`SELECT * FROM t WHERE a = ? AND b IN (?, ?)`)
	want := `SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)`
	if got != want {
		t.Errorf("rebind = %q, expected %q", got, want)
	}

	lite := &Queries{driver: DriverSQLite}
	if q := lite.rebind("a = ?"); q != "a = ?" {
		t.Errorf("sqlite rebind changed query: %q", q)
	}
}

func TestTimeLayout_SortsChronologically(t *testing.T) {
	a := formatTime(time.Date(2025, 10, 21, 9, 59, 59, 999000000, time.UTC))
	b := formatTime(time.Date(2025, 10, 21, 10, 0, 0, 0, time.UTC))
	c := formatTime(time.Date(2025, 10, 21, 18, 0, 1, 0, time.FixedZone("MYT", 8*3600)))
	if !(a < b && b < c) {
		t.Errorf("Expected %s < %s < %s", a, b, c)
	}
	if len(a) != len(b) || len(b) != len(c) {
		t.Error("Expected fixed-width timestamps")
	}

	parsed, err := parseTime(c)
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if !parsed.Equal(time.Date(2025, 10, 21, 10, 0, 1, 0, time.UTC)) {
		t.Errorf("Round trip mismatch: %s", parsed)
	}
}

func TestGetDonation_NotFound(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Queries().GetDonation(context.Background(), uuid.New().String())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestRecordVerification_AppliesOnce(t *testing.T) {
	db := setupTestDB(t)
	qs := db.Queries()
	ctx := context.Background()

	u, b := seedUserAndBin(t, qs)
	d := seedDonation(t, qs, u.ID, b.ID, base, lifecycle.StatusPending)

	lat, lng := 3.0951, 101.4813
	update := MediaUpdate{
		DonationID:     d.ID,
		UserID:         u.ID,
		MediaURL:       "https://cdn.example.com/a.jpg",
		MediaLatitude:  &lat,
		MediaLongitude: &lng,
		MediaTimestamp: base.Add(30 * time.Second),
		Status:         lifecycle.StatusPendingAdmin,
		Notes:          "ok",
	}

	ok, err := qs.RecordVerification(ctx, update)
	if err != nil || !ok {
		t.Fatalf("First RecordVerification = %v, %v", ok, err)
	}

	update.Status = lifecycle.StatusRejected
	ok, err = qs.RecordVerification(ctx, update)
	if err != nil {
		t.Fatalf("Second RecordVerification failed: %v", err)
	}
	if ok {
		t.Error("Expected second verification to match no row")
	}

	got, err := qs.GetDonation(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDonation failed: %v", err)
	}
	if got.Status != lifecycle.StatusPendingAdmin {
		t.Errorf("Status = %s, expected pending_admin", got.Status)
	}
	if got.MediaLatitude == nil || *got.MediaLatitude != lat {
		t.Error("Expected media latitude to be stored")
	}
	if got.BinCode != b.BinCode {
		t.Errorf("Expected joined bin code %s, got %s", b.BinCode, got.BinCode)
	}
}

func TestRecordVerification_WrongOwner(t *testing.T) {
	db := setupTestDB(t)
	qs := db.Queries()

	u, b := seedUserAndBin(t, qs)
	d := seedDonation(t, qs, u.ID, b.ID, base, lifecycle.StatusPending)

	ok, err := qs.RecordVerification(context.Background(), MediaUpdate{
		DonationID:     d.ID,
		UserID:         uuid.New().String(),
		MediaURL:       "https://cdn.example.com/a.jpg",
		MediaTimestamp: base,
		Status:         lifecycle.StatusPending,
	})
	if err != nil {
		t.Fatalf("RecordVerification failed: %v", err)
	}
	if ok {
		t.Error("Expected update by another user to match no row")
	}
}

func TestRecordReview_RequiresExpectedStatus(t *testing.T) {
	db := setupTestDB(t)
	qs := db.Queries()
	ctx := context.Background()

	u, b := seedUserAndBin(t, qs)
	d := seedDonation(t, qs, u.ID, b.ID, base, lifecycle.StatusPending)

	review := ReviewUpdate{
		DonationID: d.ID,
		From:       lifecycle.StatusPendingAdmin,
		To:         lifecycle.StatusApproved,
		AdminID:    uuid.New().String(),
		AdminNotes: "fine",
		Notes:      "Approved by admin",
		ReviewedAt: base.Add(time.Hour),
	}

	ok, err := qs.RecordReview(ctx, review)
	if err != nil {
		t.Fatalf("RecordReview failed: %v", err)
	}
	if ok {
		t.Fatal("Expected review of a pending donation to match no row")
	}

	got, _ := qs.GetDonation(ctx, d.ID)
	if got.Status != lifecycle.StatusPending || got.AdminReviewed {
		t.Errorf("Donation changed: %+v", got)
	}
}

func TestCountDonationsInStatuses(t *testing.T) {
	db := setupTestDB(t)
	qs := db.Queries()
	ctx := context.Background()

	u, b := seedUserAndBin(t, qs)
	dayStart := time.Date(2025, 10, 21, 0, 0, 0, 0, time.UTC)

	seedDonation(t, qs, u.ID, b.ID, dayStart, lifecycle.StatusApproved)
	seedDonation(t, qs, u.ID, b.ID, base, lifecycle.StatusPendingAdmin)
	seedDonation(t, qs, u.ID, b.ID, base, lifecycle.StatusRejected)
	seedDonation(t, qs, u.ID, b.ID, dayStart.Add(-time.Second), lifecycle.StatusApproved)
	seedDonation(t, qs, u.ID, b.ID, dayStart.AddDate(0, 0, 1), lifecycle.StatusApproved)

	n, err := qs.CountDonationsInStatuses(ctx, u.ID, lifecycle.DailyLimitStatuses(), dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("CountDonationsInStatuses failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, expected 2", n)
	}
}

func TestLatestScanAtBin(t *testing.T) {
	db := setupTestDB(t)
	qs := db.Queries()
	ctx := context.Background()

	u, b := seedUserAndBin(t, qs)

	got, err := qs.LatestScanAtBin(ctx, u.ID, b.ID, base.Add(-2*time.Minute))
	if err != nil || got != nil {
		t.Fatalf("Expected no scan, got %v, %v", got, err)
	}

	seedDonation(t, qs, u.ID, b.ID, base.Add(-time.Minute), lifecycle.StatusPending)
	got, err = qs.LatestScanAtBin(ctx, u.ID, b.ID, base.Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("LatestScanAtBin failed: %v", err)
	}
	if got == nil || !got.Equal(base.Add(-time.Minute)) {
		t.Errorf("Latest scan = %v, expected %s", got, base.Add(-time.Minute))
	}
}

func TestHasApprovedDonation(t *testing.T) {
	db := setupTestDB(t)
	qs := db.Queries()
	ctx := context.Background()

	u, b := seedUserAndBin(t, qs)
	from := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	seedDonation(t, qs, u.ID, b.ID, from.Add(-time.Hour), lifecycle.StatusApproved)
	seedDonation(t, qs, u.ID, b.ID, base, lifecycle.StatusPendingAdmin)

	ok, err := qs.HasApprovedDonation(ctx, u.ID, from, to)
	if err != nil {
		t.Fatalf("HasApprovedDonation failed: %v", err)
	}
	if ok {
		t.Error("Expected no approved donation this month")
	}

	seedDonation(t, qs, u.ID, b.ID, base, lifecycle.StatusApproved)
	ok, _ = qs.HasApprovedDonation(ctx, u.ID, from, to)
	if !ok {
		t.Error("Expected approved donation this month")
	}
}

func TestInsertClaim_UniqueConstraints(t *testing.T) {
	db := setupTestDB(t)
	qs := db.Queries()
	ctx := context.Background()

	u, _ := seedUserAndBin(t, qs)
	v := models.Voucher{
		ID:             uuid.New().String(),
		PartnerName:    "Zalora",
		DiscountAmount: "RM20 OFF",
		IsActive:       true,
		CreatedAt:      base,
	}
	if err := qs.CreateVoucher(ctx, v); err != nil {
		t.Fatalf("CreateVoucher failed: %v", err)
	}

	claim := models.ClaimedVoucher{
		ID:          uuid.New().String(),
		UserID:      u.ID,
		VoucherID:   v.ID,
		VoucherCode: "ZAL-ABCDEFGH",
		ClaimedAt:   base,
		ClaimYear:   2025,
		ClaimMonth:  10,
	}
	if err := qs.InsertClaim(ctx, claim); err != nil {
		t.Fatalf("InsertClaim failed: %v", err)
	}

	samePeriod := claim
	samePeriod.ID = uuid.New().String()
	samePeriod.VoucherCode = "ZAL-12345678"
	if err := qs.InsertClaim(ctx, samePeriod); !errors.Is(err, ErrDuplicateClaim) {
		t.Errorf("Expected ErrDuplicateClaim, got %v", err)
	}

	other, _ := seedUserAndBin(t, qs)
	sameCode := claim
	sameCode.ID = uuid.New().String()
	sameCode.UserID = other.ID
	if err := qs.InsertClaim(ctx, sameCode); !errors.Is(err, ErrDuplicateVoucherCode) {
		t.Errorf("Expected ErrDuplicateVoucherCode, got %v", err)
	}

	nextMonth := claim
	nextMonth.ID = uuid.New().String()
	nextMonth.VoucherCode = "ZAL-NEXTMNTH"
	nextMonth.ClaimMonth = 11
	if err := qs.InsertClaim(ctx, nextMonth); err != nil {
		t.Errorf("Expected claim in next month to succeed, got %v", err)
	}

	got, err := qs.ClaimInPeriod(ctx, u.ID, 2025, 10)
	if err != nil || got == nil {
		t.Fatalf("ClaimInPeriod = %v, %v", got, err)
	}
	if got.PartnerName != "Zalora" || got.VoucherCode != claim.VoucherCode {
		t.Errorf("Unexpected claim: %+v", got)
	}

	none, err := qs.ClaimInPeriod(ctx, u.ID, 2025, 9)
	if err != nil || none != nil {
		t.Errorf("Expected no claim in September, got %v, %v", none, err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	qs := db.Queries()

	u, _ := seedUserAndBin(t, qs)
	dup := u
	dup.ID = uuid.New().String()
	if err := qs.CreateUser(context.Background(), dup); !errors.Is(err, ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate, got %v", err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	boom := errors.New("boom")

	u, b := seedUserAndBin(t, db.Queries())
	var id string
	err := db.WithTx(ctx, func(qs *Queries) error {
		d := seedDonation(t, qs, u.ID, b.ID, base, lifecycle.StatusPending)
		id = d.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Expected boom, got %v", err)
	}

	if _, err := db.Queries().GetDonation(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected rolled back donation to be missing, got %v", err)
	}
}

func TestListActiveBinsInBox(t *testing.T) {
	db := setupTestDB(t)
	qs := db.Queries()
	ctx := context.Background()

	_, b := seedUserAndBin(t, qs)
	if err := qs.UpdateBinStatus(ctx, uuid.New().String(), models.BinInactive); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown bin, got %v", err)
	}

	bins, err := qs.ListActiveBinsInBox(ctx, 3.0, 3.2, 101.4, 101.6)
	if err != nil {
		t.Fatalf("ListActiveBinsInBox failed: %v", err)
	}
	if len(bins) != 1 || bins[0].ID != b.ID {
		t.Fatalf("Expected the seeded bin, got %+v", bins)
	}

	if err := qs.UpdateBinStatus(ctx, b.ID, models.BinMaintenance); err != nil {
		t.Fatalf("UpdateBinStatus failed: %v", err)
	}
	bins, _ = qs.ListActiveBinsInBox(ctx, 3.0, 3.2, 101.4, 101.6)
	if len(bins) != 0 {
		t.Errorf("Expected inactive bin to be excluded, got %d", len(bins))
	}
}
