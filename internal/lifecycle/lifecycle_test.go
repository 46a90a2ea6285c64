package lifecycle

import (
	"errors"
	"testing"
)

func TestNext_DefinedTransitions(t *testing.T) {
	tests := []struct {
		from Status
		ev   Event
		want Status
	}{
		{StatusPending, EventVerifyPassed, StatusConfirmed},
		{StatusPending, EventVerifyFailed, StatusRejected},
		{StatusPending, EventVerifyPartial, StatusPending},
		{StatusConfirmed, EventPromote, StatusPendingAdmin},
		{StatusPendingAdmin, EventApprove, StatusApproved},
		{StatusPendingAdmin, EventReject, StatusRejected},
	}

	for _, tt := range tests {
		got, err := Next(tt.from, tt.ev)
		if err != nil {
			t.Errorf("Next(%s, %s) returned error: %v", tt.from, tt.ev, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Next(%s, %s) = %s, expected %s", tt.from, tt.ev, got, tt.want)
		}
	}
}

func TestNext_UndefinedTransitions(t *testing.T) {
	tests := []struct {
		from Status
		ev   Event
	}{
		{StatusPending, EventApprove},
		{StatusPending, EventReject},
		{StatusPending, EventPromote},
		{StatusConfirmed, EventApprove},
		{StatusPendingAdmin, EventVerifyPassed},
		{StatusApproved, EventReject},
		{StatusApproved, EventApprove},
		{StatusRejected, EventApprove},
		{StatusRejected, EventVerifyPassed},
	}

	for _, tt := range tests {
		got, err := Next(tt.from, tt.ev)
		if err == nil {
			t.Errorf("Next(%s, %s) = %s, expected error", tt.from, tt.ev, got)
			continue
		}
		var te *TransitionError
		if !errors.As(err, &te) {
			t.Errorf("Expected *TransitionError, got %T", err)
		}
		if got != tt.from {
			t.Errorf("Expected status to stay %s, got %s", tt.from, got)
		}
	}
}

func TestNoDirectPathFromPendingToApproved(t *testing.T) {
	events := []Event{EventVerifyPassed, EventVerifyFailed, EventVerifyPartial, EventPromote, EventApprove, EventReject}
	for _, ev := range events {
		if to, err := Next(StatusPending, ev); err == nil && to == StatusApproved {
			t.Fatalf("pending reached approved via %s", ev)
		}
	}
}

func TestSource(t *testing.T) {
	if from, ok := Source(EventApprove); !ok || from != StatusPendingAdmin {
		t.Errorf("Source(approve) = %s, %v", from, ok)
	}
	if from, ok := Source(EventPromote); !ok || from != StatusConfirmed {
		t.Errorf("Source(promote) = %s, %v", from, ok)
	}
	if _, ok := Source(Event("bogus")); ok {
		t.Error("Expected unknown event to have no source")
	}
}

func TestTerminal(t *testing.T) {
	if !StatusApproved.Terminal() || !StatusRejected.Terminal() {
		t.Error("approved and rejected must be terminal")
	}
	for _, s := range []Status{StatusPending, StatusConfirmed, StatusPendingAdmin} {
		if s.Terminal() {
			t.Errorf("%s must not be terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus("pending_admin"); err != nil || s != StatusPendingAdmin {
		t.Errorf("ParseStatus(pending_admin) = %s, %v", s, err)
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Error("Expected error for unknown status")
	}
}
