package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/txnwatch/internal/event"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedUser(t *testing.T, s *Store) event.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), "Alice", "alice@example.com")
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return u
}

func mustAppend(t *testing.T, s *Store, userID int64, kind event.Kind, amount string, ts int64) event.Event {
	t.Helper()
	ev, err := s.Append(context.Background(), userID, kind, decimal.RequireFromString(amount), ts)
	if err != nil {
		t.Fatalf("Append(t=%d) failed: %v", ts, err)
	}
	return ev
}

func TestLatestTimestamp_Empty(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.LatestTimestamp(context.Background())
	if err != nil {
		t.Fatalf("LatestTimestamp() failed: %v", err)
	}
	if ok {
		t.Error("LatestTimestamp() ok = true on empty ledger, want false")
	}
}

func TestAppend_AdvancesLatestTimestamp(t *testing.T) {
	s := openTestStore(t)
	u := seedUser(t, s)

	mustAppend(t, s, u.ID, event.Deposit, "42.00", 0)
	mustAppend(t, s, u.ID, event.Withdraw, "10.00", 5)

	ts, ok, err := s.LatestTimestamp(context.Background())
	if err != nil {
		t.Fatalf("LatestTimestamp() failed: %v", err)
	}
	if !ok || ts != 5 {
		t.Errorf("LatestTimestamp() = %d, %v; want 5, true", ts, ok)
	}

	exists, err := s.TimestampExists(context.Background(), 0)
	if err != nil {
		t.Fatalf("TimestampExists() failed: %v", err)
	}
	if !exists {
		t.Error("TimestampExists(0) = false, want true")
	}
}

func TestAppend_RejectsEqualTimestamp(t *testing.T) {
	s := openTestStore(t)
	u := seedUser(t, s)
	mustAppend(t, s, u.ID, event.Deposit, "42.00", 7)

	_, err := s.Append(context.Background(), u.ID, event.Deposit, decimal.RequireFromString("1.00"), 7)
	if !errors.Is(err, ErrTimestampConflict) {
		t.Fatalf("Append(equal t) err = %v, want ErrTimestampConflict", err)
	}
}

func TestAppend_RejectsLowerTimestamp(t *testing.T) {
	s := openTestStore(t)
	u := seedUser(t, s)
	mustAppend(t, s, u.ID, event.Deposit, "42.00", 10)

	// Lower than the maximum but not equal to any persisted timestamp:
	// still rejected, and nothing is written.
	_, err := s.Append(context.Background(), u.ID, event.Deposit, decimal.RequireFromString("1.00"), 4)
	if !errors.Is(err, ErrTimestampConflict) {
		t.Fatalf("Append(lower t) err = %v, want ErrTimestampConflict", err)
	}
	exists, err := s.TimestampExists(context.Background(), 4)
	if err != nil {
		t.Fatalf("TimestampExists() failed: %v", err)
	}
	if exists {
		t.Error("rejected append left a row behind")
	}
}

func TestAppend_GlobalOrderingAcrossUsers(t *testing.T) {
	s := openTestStore(t)
	u1 := seedUser(t, s)
	u2, err := s.CreateUser(context.Background(), "Bob", "bob@example.com")
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	mustAppend(t, s, u1.ID, event.Deposit, "1.00", 100)

	// The ordering invariant is system-wide, not per user.
	_, err = s.Append(context.Background(), u2.ID, event.Deposit, decimal.RequireFromString("1.00"), 50)
	if !errors.Is(err, ErrTimestampConflict) {
		t.Fatalf("Append(other user, lower t) err = %v, want ErrTimestampConflict", err)
	}
}

func TestAppend_ConcurrentSubmittersKeepStrictOrder(t *testing.T) {
	s := openTestStore(t)
	u := seedUser(t, s)

	// All goroutines race to claim timestamps; some collide on purpose.
	timestamps := []int64{1, 2, 2, 3, 3, 4, 5, 5, 6, 7}
	var wg sync.WaitGroup
	for _, ts := range timestamps {
		wg.Add(1)
		go func(ts int64) {
			defer wg.Done()
			_, err := s.Append(context.Background(), u.ID, event.Deposit, decimal.NewFromInt(1), ts)
			if err != nil && !errors.Is(err, ErrTimestampConflict) {
				t.Errorf("Append(t=%d) unexpected err: %v", ts, err)
			}
		}(ts)
	}
	wg.Wait()

	events, err := s.RecentEventsFor(context.Background(), u.ID, len(timestamps))
	if err != nil {
		t.Fatalf("RecentEventsFor() failed: %v", err)
	}
	for i := 1; i < len(events); i++ {
		if events[i-1].Timestamp >= events[i].Timestamp {
			t.Fatalf("persisted timestamps not strictly increasing: %d then %d",
				events[i-1].Timestamp, events[i].Timestamp)
		}
	}
}

func TestRecentEventsFor_OrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	u := seedUser(t, s)
	mustAppend(t, s, u.ID, event.Deposit, "1.00", 1)
	mustAppend(t, s, u.ID, event.Withdraw, "2.00", 2)
	mustAppend(t, s, u.ID, event.Deposit, "3.00", 3)
	mustAppend(t, s, u.ID, event.Withdraw, "4.00", 4)

	events, err := s.RecentEventsFor(context.Background(), u.ID, 3)
	if err != nil {
		t.Fatalf("RecentEventsFor() failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("RecentEventsFor() returned %d events, want 3", len(events))
	}
	wantTs := []int64{2, 3, 4}
	for i, ev := range events {
		if ev.Timestamp != wantTs[i] {
			t.Errorf("events[%d].Timestamp = %d, want %d (oldest first)", i, ev.Timestamp, wantTs[i])
		}
	}
}

func TestRecentDepositsFor_SkipsWithdrawals(t *testing.T) {
	s := openTestStore(t)
	u := seedUser(t, s)
	mustAppend(t, s, u.ID, event.Deposit, "10.00", 1)
	mustAppend(t, s, u.ID, event.Withdraw, "99.00", 2)
	mustAppend(t, s, u.ID, event.Deposit, "20.00", 3)
	mustAppend(t, s, u.ID, event.Withdraw, "99.00", 4)
	mustAppend(t, s, u.ID, event.Deposit, "30.00", 5)

	deposits, err := s.RecentDepositsFor(context.Background(), u.ID, 3)
	if err != nil {
		t.Fatalf("RecentDepositsFor() failed: %v", err)
	}
	if len(deposits) != 3 {
		t.Fatalf("RecentDepositsFor() returned %d events, want 3", len(deposits))
	}
	wantAmounts := []string{"10", "20", "30"}
	for i, ev := range deposits {
		if ev.Kind != event.Deposit {
			t.Errorf("deposits[%d].Kind = %s, want deposit", i, ev.Kind)
		}
		if !ev.Amount.Equal(decimal.RequireFromString(wantAmounts[i])) {
			t.Errorf("deposits[%d].Amount = %s, want %s", i, ev.Amount, wantAmounts[i])
		}
	}
}

func TestDepositsInWindow_InclusiveBounds(t *testing.T) {
	s := openTestStore(t)
	u := seedUser(t, s)
	mustAppend(t, s, u.ID, event.Deposit, "1.00", 19) // just outside [20, 50]
	mustAppend(t, s, u.ID, event.Deposit, "2.00", 20) // lower bound
	mustAppend(t, s, u.ID, event.Withdraw, "9.00", 30)
	mustAppend(t, s, u.ID, event.Deposit, "3.00", 50) // upper bound
	mustAppend(t, s, u.ID, event.Deposit, "4.00", 51) // just outside

	windowed, err := s.DepositsInWindow(context.Background(), u.ID, 20, 50)
	if err != nil {
		t.Fatalf("DepositsInWindow() failed: %v", err)
	}
	if len(windowed) != 2 {
		t.Fatalf("DepositsInWindow() returned %d events, want 2", len(windowed))
	}
	if windowed[0].Timestamp != 20 || windowed[1].Timestamp != 50 {
		t.Errorf("DepositsInWindow() timestamps = %d, %d; want 20, 50 (inclusive bounds)",
			windowed[0].Timestamp, windowed[1].Timestamp)
	}
}

func TestAmountRoundTripsExactly(t *testing.T) {
	s := openTestStore(t)
	u := seedUser(t, s)
	mustAppend(t, s, u.ID, event.Deposit, "100.01", 1)

	events, err := s.RecentEventsFor(context.Background(), u.ID, 1)
	if err != nil {
		t.Fatalf("RecentEventsFor() failed: %v", err)
	}
	if got := events[0].Amount.StringFixed(2); got != "100.01" {
		t.Errorf("amount round-trip = %s, want 100.01", got)
	}
}

func TestUsers(t *testing.T) {
	s := openTestStore(t)
	u := seedUser(t, s)

	exists, err := s.UserExists(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("UserExists() failed: %v", err)
	}
	if !exists {
		t.Error("UserExists() = false for created user")
	}

	exists, err = s.UserExists(context.Background(), u.ID+999)
	if err != nil {
		t.Fatalf("UserExists() failed: %v", err)
	}
	if exists {
		t.Error("UserExists() = true for unknown id")
	}

	got, err := s.GetUser(context.Background(), u.ID)
	if err != nil {
		t.Fatalf("GetUser() failed: %v", err)
	}
	if got.Name != "Alice" || got.Email != "alice@example.com" {
		t.Errorf("GetUser() = %+v, want Alice/alice@example.com", got)
	}

	if _, err := s.GetUser(context.Background(), u.ID+999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("GetUser(unknown) err = %v, want ErrUserNotFound", err)
	}

	if _, err := s.CreateUser(context.Background(), "Other", "alice@example.com"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("CreateUser(dup email) err = %v, want ErrEmailTaken", err)
	}
}
