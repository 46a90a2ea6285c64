// Package verification classifies a donation submission from the location
// and timing of its proof media.
package verification

import (
	"fmt"
	"time"

	"donation-rewards-api/internal/geo"
	"donation-rewards-api/internal/lifecycle"
)

const (
	// DefaultMaxDistanceKm is the largest accepted distance between the
	// media capture point and the bin.
	DefaultMaxDistanceKm = 0.1
	// DefaultMaxElapsed is the largest accepted delay between the QR scan
	// and the media upload.
	DefaultMaxElapsed = 2 * time.Minute
)

// Notes attached to a donation for each outcome.
const (
	NotesAwaitingReview = "Passed auto-verification. Awaiting admin review."
	NotesFailed         = "Failed: Location and timestamp do not match"
	NotesPartial        = "Pending manual review: Partial verification"
)

// Input is everything the engine needs about one submission.
type Input struct {
	ScanTimestamp time.Time
	UploadedAt    time.Time
	Bin           geo.Point
	Media         *geo.Point // nil when the client sent no coordinates
}

// Result is the engine's classification.
type Result struct {
	LocationPassed  bool
	TimestampPassed bool
	DistanceKm      *float64
	Elapsed         time.Duration
	Event           lifecycle.Event
	Notes           string
}

// Passed reports whether both checks passed.
func (r Result) Passed() bool {
	return r.LocationPassed && r.TimestampPassed
}

// Engine holds the verification thresholds.
type Engine struct {
	MaxDistanceKm float64
	MaxElapsed    time.Duration
}

// NewEngine returns an engine with the default thresholds.
func NewEngine() *Engine {
	return &Engine{
		MaxDistanceKm: DefaultMaxDistanceKm,
		MaxElapsed:    DefaultMaxElapsed,
	}
}

// Verify runs the location and timestamp checks and maps them to a
// lifecycle event.
func (e *Engine) Verify(in Input) Result {
	var res Result

	if in.Media != nil {
		d := geo.Distance(*in.Media, in.Bin)
		res.DistanceKm = &d
		res.LocationPassed = d <= e.MaxDistanceKm
	}

	res.Elapsed = in.UploadedAt.Sub(in.ScanTimestamp)
	res.TimestampPassed = res.Elapsed <= e.MaxElapsed

	switch {
	case res.LocationPassed && res.TimestampPassed:
		res.Event = lifecycle.EventVerifyPassed
		res.Notes = NotesAwaitingReview
	case !res.LocationPassed && !res.TimestampPassed:
		res.Event = lifecycle.EventVerifyFailed
		res.Notes = NotesFailed
	default:
		res.Event = lifecycle.EventVerifyPartial
		res.Notes = NotesPartial
	}

	return res
}

// Describe renders the measured values for logs and admin views.
func (r Result) Describe() string {
	loc := "no coordinates"
	if r.DistanceKm != nil {
		loc = fmt.Sprintf("%.0fm from bin", *r.DistanceKm*1000)
	}
	return fmt.Sprintf("location=%t (%s), timestamp=%t (%s after scan)",
		r.LocationPassed, loc, r.TimestampPassed, r.Elapsed.Round(time.Second))
}
