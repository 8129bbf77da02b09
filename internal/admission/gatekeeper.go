// Package admission validates candidate events and commits them to the
// ledger as a single atomic unit.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/txnwatch/internal/event"
	"github.com/gyaneshwarpardhi/txnwatch/internal/store"
)

// InvalidPayloadError reports a malformed or semantically invalid field.
// Permanent: the caller must correct and resend.
type InvalidPayloadError struct {
	Field  string
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	return fmt.Sprintf("invalid payload: %s: %s", e.Field, e.Reason)
}

// DuplicateTimestampError reports a candidate timestamp that collides with a
// persisted one, detected either at the optimistic pre-check or at commit
// time when a concurrent submission won the race. Transient: a fresh, larger
// timestamp may succeed.
type DuplicateTimestampError struct {
	Timestamp int64
	UserID    int64
}

func (e *DuplicateTimestampError) Error() string {
	return fmt.Sprintf("duplicate timestamp: an event with t=%d already exists", e.Timestamp)
}

// Gatekeeper admits candidate events into the store.
type Gatekeeper struct {
	store *store.Store
}

// New creates a Gatekeeper over st.
func New(st *store.Store) *Gatekeeper {
	return &Gatekeeper{store: st}
}

// Admit validates cand field by field, then commits it. On success exactly
// one event is persisted; on any failure, none. Validation order is fixed:
// kind, amount, user, timestamp. The timestamp pre-check is optimistic; the
// authoritative ordering check happens inside store.Append, and a
// commit-time race surfaces as the same DuplicateTimestampError as a
// pre-check duplicate.
func (g *Gatekeeper) Admit(ctx context.Context, cand event.Candidate) (event.Event, error) {
	kind := event.Kind(cand.Kind)
	if !kind.Valid() {
		return event.Event{}, &InvalidPayloadError{
			Field:  "type",
			Reason: fmt.Sprintf("must be %q or %q", event.Deposit, event.Withdraw),
		}
	}

	amount, err := decimal.NewFromString(cand.Amount)
	if err != nil {
		return event.Event{}, &InvalidPayloadError{Field: "amount", Reason: "must be a decimal number"}
	}
	if !amount.IsPositive() {
		return event.Event{}, &InvalidPayloadError{Field: "amount", Reason: "must be positive"}
	}
	if amount.Exponent() < -2 {
		return event.Event{}, &InvalidPayloadError{Field: "amount", Reason: "at most 2 decimal places"}
	}

	exists, err := g.store.UserExists(ctx, cand.UserID)
	if err != nil {
		return event.Event{}, fmt.Errorf("admission: %w", err)
	}
	if !exists {
		return event.Event{}, &InvalidPayloadError{
			Field:  "user_id",
			Reason: fmt.Sprintf("user %d does not exist", cand.UserID),
		}
	}

	latest, ok, err := g.store.LatestTimestamp(ctx)
	if err != nil {
		return event.Event{}, fmt.Errorf("admission: %w", err)
	}
	if ok && cand.Timestamp <= latest {
		dup, err := g.store.TimestampExists(ctx, cand.Timestamp)
		if err != nil {
			return event.Event{}, fmt.Errorf("admission: %w", err)
		}
		if dup {
			return event.Event{}, &DuplicateTimestampError{Timestamp: cand.Timestamp, UserID: cand.UserID}
		}
		return event.Event{}, &InvalidPayloadError{
			Field:  "t",
			Reason: fmt.Sprintf("timestamp %d must be greater than the latest timestamp %d", cand.Timestamp, latest),
		}
	}

	ev, err := g.store.Append(ctx, cand.UserID, kind, amount, cand.Timestamp)
	if errors.Is(err, store.ErrTimestampConflict) {
		slog.Debug("append lost ordering race", "user_id", cand.UserID, "t", cand.Timestamp)
		return event.Event{}, &DuplicateTimestampError{Timestamp: cand.Timestamp, UserID: cand.UserID}
	}
	if err != nil {
		return event.Event{}, fmt.Errorf("admission: %w", err)
	}
	return ev, nil
}
