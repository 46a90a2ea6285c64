package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPublish_DeliversToSubscribers(t *testing.T) {
	m := NewManager(true, zap.NewNop())

	var calls atomic.Int32
	m.Subscribe(EventVoucherClaimed, func(ctx context.Context, e Event) error {
		if e.Type != EventVoucherClaimed {
			t.Errorf("Unexpected event type %s", e.Type)
		}
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	m.Publish(ctx, EventVoucherClaimed, ClaimData{})
	cancel()
	m.Wait()

	if calls.Load() != 1 {
		t.Errorf("Expected 1 call, got %d", calls.Load())
	}
}

func TestPublish_Disabled(t *testing.T) {
	m := NewManager(false, nil)
	m.Subscribe(EventDonationVerified, func(ctx context.Context, e Event) error {
		t.Error("Handler called on disabled manager")
		return nil
	})
	m.Publish(context.Background(), EventDonationVerified, DonationData{})
	m.Wait()
}

func TestPublish_LogsHandlerErrors(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	m := NewManager(true, zap.New(core))
	m.Subscribe(EventDonationReviewed, func(ctx context.Context, e Event) error {
		return errors.New("boom")
	})

	m.Publish(context.Background(), EventDonationReviewed, DonationData{DonationID: "d1"})
	m.Shutdown()

	if logs.FilterMessage("event handler failed").Len() != 1 {
		t.Errorf("Expected handler failure to be logged, got %v", logs.All())
	}
}

func TestSubscribeLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := NewManager(true, nil)
	m.SubscribeLogging(zap.New(core))

	m.Publish(context.Background(), EventDonationVerified, DonationData{DonationID: "d1", UserID: "u1", Status: "pending_admin"})
	m.Wait()

	entries := logs.FilterMessage("domain event").All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 log entry, got %d", len(entries))
	}
	if entries[0].ContextMap()["donation_id"] != "d1" {
		t.Errorf("Expected donation_id field, got %v", entries[0].ContextMap())
	}
}
