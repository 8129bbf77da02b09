package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/txnwatch/internal/event"
)

// ErrTimestampConflict reports that an insert lost the ordering race: an
// event with the same or a higher timestamp was already committed. The
// caller may retry with a fresh, larger timestamp.
var ErrTimestampConflict = errors.New("timestamp conflicts with a persisted event")

// LatestTimestamp returns the maximum timestamp across all events in the
// system. ok is false when the ledger is empty.
func (s *Store) LatestTimestamp(ctx context.Context) (ts int64, ok bool, err error) {
	var max sql.NullInt64
	err = s.db.QueryRowContext(ctx, `SELECT MAX(timestamp) FROM events`).Scan(&max)
	if err != nil {
		return 0, false, fmt.Errorf("latest timestamp: %w", err)
	}
	return max.Int64, max.Valid, nil
}

// TimestampExists reports whether ts is already persisted.
func (s *Store) TimestampExists(ctx context.Context, ts int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM events WHERE timestamp = ?)`, ts).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("timestamp exists: %w", err)
	}
	return exists, nil
}

// Append commits one event, re-checking the global ordering invariant inside
// the same statement that inserts. The guard clause rejects the insert when
// any persisted timestamp >= ts exists, so two concurrent submitters cannot
// both pass validation against the same stale maximum; the UNIQUE constraint
// on timestamp is the backstop. Both outcomes surface as
// ErrTimestampConflict.
func (s *Store) Append(ctx context.Context, userID int64, kind event.Kind, amount decimal.Decimal, ts int64) (event.Event, error) {
	recordedAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events (user_id, kind, amount, timestamp, recorded_at)
		SELECT ?, ?, ?, ?, ?
		WHERE NOT EXISTS (SELECT 1 FROM events WHERE timestamp >= ?)
	`, userID, string(kind), amount.StringFixed(2), ts, recordedAt.Format(time.RFC3339Nano), ts)
	if err != nil {
		var se sqlite3.Error
		if errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique {
			return event.Event{}, fmt.Errorf("append t=%d: %w", ts, ErrTimestampConflict)
		}
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	if n == 0 {
		return event.Event{}, fmt.Errorf("append t=%d: %w", ts, ErrTimestampConflict)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	return event.Event{
		ID:         id,
		UserID:     userID,
		Kind:       kind,
		Amount:     amount,
		Timestamp:  ts,
		RecordedAt: recordedAt,
	}, nil
}

// RecentEventsFor returns the user's last limit events of any kind, oldest
// first.
func (s *Store) RecentEventsFor(ctx context.Context, userID int64, limit int) ([]event.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, user_id, kind, amount, timestamp, recorded_at FROM (
			SELECT * FROM events WHERE user_id = ? ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC
	`, userID, limit)
}

// RecentDepositsFor returns the user's last limit deposit events, oldest
// first. Interleaved withdrawals are skipped entirely, however many and
// however far back.
func (s *Store) RecentDepositsFor(ctx context.Context, userID int64, limit int) ([]event.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, user_id, kind, amount, timestamp, recorded_at FROM (
			SELECT * FROM events WHERE user_id = ? AND kind = 'deposit'
			ORDER BY timestamp DESC LIMIT ?
		) ORDER BY timestamp ASC
	`, userID, limit)
}

// DepositsInWindow returns the user's deposit events with
// from <= timestamp <= to, both ends inclusive, oldest first.
func (s *Store) DepositsInWindow(ctx context.Context, userID, from, to int64) ([]event.Event, error) {
	return s.queryEvents(ctx, `
		SELECT id, user_id, kind, amount, timestamp, recorded_at
		FROM events
		WHERE user_id = ? AND kind = 'deposit' AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC
	`, userID, from, to)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return out, nil
}

func scanEvent(rows *sql.Rows) (event.Event, error) {
	var (
		ev         event.Event
		kind       string
		amount     string
		recordedAt string
	)
	if err := rows.Scan(&ev.ID, &ev.UserID, &kind, &amount, &ev.Timestamp, &recordedAt); err != nil {
		return event.Event{}, fmt.Errorf("scan event: %w", err)
	}
	ev.Kind = event.Kind(kind)
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return event.Event{}, fmt.Errorf("scan event amount %q: %w", amount, err)
	}
	ev.Amount = amt
	t, err := time.Parse(time.RFC3339Nano, recordedAt)
	if err != nil {
		return event.Event{}, fmt.Errorf("scan event recorded_at %q: %w", recordedAt, err)
	}
	ev.RecordedAt = t
	return ev, nil
}
