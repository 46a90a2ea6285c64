package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"donation-rewards-api/internal/auth"
	"donation-rewards-api/internal/cache"
	"donation-rewards-api/internal/clock"
	"donation-rewards-api/internal/database"
	"donation-rewards-api/internal/eligibility"
	"donation-rewards-api/internal/events"
	"donation-rewards-api/internal/features"
	"donation-rewards-api/internal/storage"
	"donation-rewards-api/internal/tracing"
	"donation-rewards-api/internal/verification"
)

const (
	// DefaultDailyLimit is the number of accepted donations allowed per UTC day.
	DefaultDailyLimit = 5
	// DefaultScanCooldown separates two scans of the same bin by one user.
	DefaultScanCooldown = 2 * time.Minute
	// DefaultQueryTimeout bounds each operation's datastore work.
	DefaultQueryTimeout = 5 * time.Second

	defaultListLimit = 20
	maxListLimit     = 100
)

// CodeGenerator produces a voucher code for a partner.
type CodeGenerator func(partnerName string) (string, error)

// Options configures a Service. Zero values select defaults; nil
// collaborators disable the matching feature.
type Options struct {
	Clock         clock.Clock
	Engine        *verification.Engine
	Location      *time.Location
	Cache         *cache.EligibilityCache
	Events        *events.Manager
	Features      *features.Manager
	Tokens        *auth.TokenManager
	Media         storage.Provider
	Logger        *zap.Logger
	QueryTimeout  time.Duration
	DailyLimit    int
	ScanCooldown  time.Duration
	CodeGenerator CodeGenerator
}

// Service provides business logic for the donation rewards API.
type Service struct {
	db           *database.DB
	clock        clock.Clock
	engine       *verification.Engine
	evaluator    *eligibility.Evaluator
	location     *time.Location
	cache        *cache.EligibilityCache
	events       *events.Manager
	features     *features.Manager
	tokens       *auth.TokenManager
	media        storage.Provider
	log          *zap.Logger
	queryTimeout time.Duration
	dailyLimit   int
	scanCooldown time.Duration
	generateCode CodeGenerator
}

// NewService creates a new service instance.
func NewService(db *database.DB, opts Options) *Service {
	s := &Service{
		db:           db,
		clock:        opts.Clock,
		engine:       opts.Engine,
		cache:        opts.Cache,
		events:       opts.Events,
		features:     opts.Features,
		tokens:       opts.Tokens,
		media:        opts.Media,
		log:          opts.Logger,
		queryTimeout: opts.QueryTimeout,
		dailyLimit:   opts.DailyLimit,
		scanCooldown: opts.ScanCooldown,
		generateCode: opts.CodeGenerator,
	}

	if s.clock == nil {
		s.clock = clock.System()
	}
	if s.engine == nil {
		s.engine = verification.NewEngine()
	}
	if s.features == nil {
		s.features = features.NewDefaultManager(nil)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.queryTimeout <= 0 {
		s.queryTimeout = DefaultQueryTimeout
	}
	if s.dailyLimit <= 0 {
		s.dailyLimit = DefaultDailyLimit
	}
	if s.scanCooldown <= 0 {
		s.scanCooldown = DefaultScanCooldown
	}
	if s.generateCode == nil {
		s.generateCode = GenerateVoucherCode
	}
	s.location = opts.Location
	if s.location == nil {
		s.location = time.UTC
	}
	s.evaluator = eligibility.NewEvaluator(s.clock, s.location)

	return s
}

// Ping checks the datastore.
func (s *Service) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx, "ping")
	defer cancel()
	return s.db.Ping(ctx)
}

// Features lists the feature flags and their state.
func (s *Service) Features() []features.FeatureFlag {
	return s.features.GetAll()
}

// withTimeout bounds an operation's datastore work and logs when the
// deadline is what ended it.
func (s *Service) withTimeout(parent context.Context, operation string) (context.Context, context.CancelFunc) {
	ctx, span := tracing.GetTracer().StartSpan(parent, "service."+operation)
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded {
			s.log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", s.queryTimeout),
			)
		}
		cancel()
		span.End()
	}
}

func (s *Service) publish(ctx context.Context, t events.EventType, data interface{}) {
	if s.events == nil || !s.features.IsEnabled(features.FeatureEventHooks) {
		return
	}
	s.events.Publish(ctx, t, data)
}

func (s *Service) eligibilityCache() *cache.EligibilityCache {
	if s.cache == nil || !s.features.IsEnabled(features.FeatureEligibilityCache) {
		return nil
	}
	return s.cache
}

func (s *Service) invalidateEligibility(ctx context.Context, userID string, at time.Time) {
	if c := s.eligibilityCache(); c != nil {
		c.Invalidate(ctx, userID, eligibility.PeriodOf(at, s.location).Key())
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func startOfDayUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

const (
	codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength  = 8
)

// GenerateVoucherCode returns the partner prefix (first three letters,
// upper-cased), a dash, and eight random characters from [A-Z0-9].
func GenerateVoucherCode(partnerName string) (string, error) {
	var prefix []rune
	for _, r := range partnerName {
		if unicode.IsLetter(r) {
			prefix = append(prefix, unicode.ToUpper(r))
			if len(prefix) == 3 {
				break
			}
		}
	}
	if len(prefix) == 0 {
		return "", fmt.Errorf("partner name %q has no letters", partnerName)
	}

	var b strings.Builder
	b.WriteString(string(prefix))
	b.WriteByte('-')

	n := big.NewInt(int64(len(codeCharset)))
	for i := 0; i < codeLength; i++ {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("failed to generate voucher code: %w", err)
		}
		b.WriteByte(codeCharset[idx.Int64()])
	}

	return b.String(), nil
}
