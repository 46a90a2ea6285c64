package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"donation-rewards-api/internal/lifecycle"
	"donation-rewards-api/internal/models"
)

// EventType represents the type of event.
type EventType string

const (
	// EventDonationStarted is emitted when a bin scan opens a donation.
	EventDonationStarted EventType = "donation.started"
	// EventDonationVerified is emitted after auto-verification is persisted.
	EventDonationVerified EventType = "donation.verified"
	// EventDonationReviewed is emitted after an admin approves or rejects.
	EventDonationReviewed EventType = "donation.reviewed"
	// EventVoucherClaimed is emitted after a claim commits.
	EventVoucherClaimed EventType = "voucher.claimed"
)

// Event represents an event in the system.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Data      interface{}
}

// DonationData describes a donation state change.
type DonationData struct {
	DonationID string
	UserID     string
	BinID      string
	Status     lifecycle.Status
	Notes      string
	AdminID    string
}

// ClaimData describes a committed voucher claim.
type ClaimData struct {
	Claim models.ClaimedVoucher
}

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Manager fans events out to subscribers asynchronously.
type Manager struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
	enabled  bool
	log      *zap.Logger
	inflight sync.WaitGroup
}

// NewManager creates a new event manager.
func NewManager(enabled bool, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		handlers: make(map[EventType][]Handler),
		enabled:  enabled,
		log:      log,
	}
}

// Subscribe subscribes a handler to a specific event type.
func (m *Manager) Subscribe(eventType EventType, handler Handler) {
	if !m.enabled {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.handlers[eventType] = append(m.handlers[eventType], handler)
}

// Publish publishes an event to all subscribed handlers. Handlers run after
// the caller's request may have finished, so they get a context that is not
// cancelled with it.
func (m *Manager) Publish(ctx context.Context, eventType EventType, data interface{}) {
	m.mu.RLock()
	if !m.enabled {
		m.mu.RUnlock()
		return
	}
	handlers := m.handlers[eventType]
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	hctx := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		m.inflight.Add(1)
		go func(h Handler) {
			defer m.inflight.Done()
			if err := h(hctx, event); err != nil {
				m.log.Warn("event handler failed",
					zap.String("event", string(eventType)),
					zap.Error(err),
				)
			}
		}(handler)
	}
}

// Wait blocks until every handler started so far has returned.
func (m *Manager) Wait() {
	m.inflight.Wait()
}

// Shutdown stops delivery and waits for running handlers.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	m.enabled = false
	m.handlers = make(map[EventType][]Handler)
	m.mu.Unlock()

	m.inflight.Wait()
}

// LogSubscriber returns a handler that records events in the log.
func LogSubscriber(log *zap.Logger) Handler {
	return func(ctx context.Context, event Event) error {
		fields := []zap.Field{zap.String("event", string(event.Type)), zap.Time("at", event.Timestamp)}
		switch d := event.Data.(type) {
		case DonationData:
			fields = append(fields,
				zap.String("donation_id", d.DonationID),
				zap.String("user_id", d.UserID),
				zap.String("status", string(d.Status)),
			)
			if d.AdminID != "" {
				fields = append(fields, zap.String("admin_id", d.AdminID))
			}
		case ClaimData:
			fields = append(fields,
				zap.String("claim_id", d.Claim.ID),
				zap.String("user_id", d.Claim.UserID),
				zap.String("voucher_id", d.Claim.VoucherID),
			)
		}
		log.Info("domain event", fields...)
		return nil
	}
}

// SubscribeLogging attaches LogSubscriber to every event type.
func (m *Manager) SubscribeLogging(log *zap.Logger) {
	h := LogSubscriber(log)
	for _, t := range []EventType{EventDonationStarted, EventDonationVerified, EventDonationReviewed, EventVoucherClaimed} {
		m.Subscribe(t, h)
	}
}
