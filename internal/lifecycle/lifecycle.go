// Package lifecycle defines the donation status machine.
//
// A donation starts in StatusPending when its QR scan session is created.
// Auto-verification moves it to confirmed (immediately promoted to
// pending_admin), rejected, or leaves it pending for manual follow-up.
// Admin review moves pending_admin to approved or rejected. approved and
// rejected are terminal; no transition leads from pending to approved.
package lifecycle

import "fmt"

// Status is the persisted state of a donation.
type Status string

const (
	StatusPending      Status = "pending"
	StatusConfirmed    Status = "confirmed"
	StatusRejected     Status = "rejected"
	StatusPendingAdmin Status = "pending_admin"
	StatusApproved     Status = "approved"
)

// Event drives a transition.
type Event string

const (
	EventVerifyPassed  Event = "verify_passed"
	EventVerifyFailed  Event = "verify_failed"
	EventVerifyPartial Event = "verify_partial"
	EventPromote       Event = "promote"
	EventApprove       Event = "approve"
	EventReject        Event = "reject"
)

type transitionKey struct {
	from  Status
	event Event
}

var transitions = map[transitionKey]Status{
	{StatusPending, EventVerifyPassed}:  StatusConfirmed,
	{StatusPending, EventVerifyFailed}:  StatusRejected,
	{StatusPending, EventVerifyPartial}: StatusPending,
	{StatusConfirmed, EventPromote}:     StatusPendingAdmin,
	{StatusPendingAdmin, EventApprove}:  StatusApproved,
	{StatusPendingAdmin, EventReject}:   StatusRejected,
}

// TransitionError reports an event that is not defined for the current status.
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle: event %q is not allowed from status %q", e.Event, e.From)
}

// Next returns the status reached by applying ev to from.
func Next(from Status, ev Event) (Status, error) {
	to, ok := transitions[transitionKey{from: from, event: ev}]
	if !ok {
		return from, &TransitionError{From: from, Event: ev}
	}
	return to, nil
}

// Source returns the only status from which ev may be applied.
func Source(ev Event) (Status, bool) {
	for k := range transitions {
		if k.event == ev {
			return k.from, true
		}
	}
	return "", false
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRejected, StatusPendingAdmin, StatusApproved:
		return true
	}
	return false
}

// ParseStatus converts a stored or user-supplied string into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.Valid() {
		return "", fmt.Errorf("lifecycle: unknown status %q", s)
	}
	return st, nil
}

// CountsTowardDailyLimit reports whether a donation in status s uses one of
// the user's daily submission slots.
func (s Status) CountsTowardDailyLimit() bool {
	return s == StatusConfirmed || s == StatusPendingAdmin || s == StatusApproved
}

// DailyLimitStatuses lists the statuses counted by CountsTowardDailyLimit.
func DailyLimitStatuses() []Status {
	return []Status{StatusConfirmed, StatusPendingAdmin, StatusApproved}
}
