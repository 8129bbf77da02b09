// Package rules evaluates the four behavioral alert rules.
//
// Each rule is a pure function over the minimal history slice it needs, so
// rules stay independently testable and share no state. All four run for
// every admitted event; a rule that does not apply to the event's kind
// simply reports false.
package rules

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/txnwatch/internal/event"
)

// Alert codes, one per rule.
const (
	CodeConsecutiveWithdrawals = 30   // three consecutive withdrawals
	CodeWindowedDepositVolume  = 123  // deposit volume over 200 within 30 seconds
	CodeIncreasingDeposits     = 300  // three consecutive increasing deposits
	CodeHighWithdrawal         = 1100 // single withdrawal over 100
)

// WindowSeconds is the lookback for the deposit-volume rule; the window is
// [t-WindowSeconds, t], inclusive at both ends.
const WindowSeconds = 30

const runLength = 3

var (
	highWithdrawalLimit = decimal.NewFromInt(100)
	windowVolumeLimit   = decimal.NewFromInt(200)
)

// HighWithdrawal fires for a withdrawal strictly over 100. Exactly 100 does
// not fire.
func HighWithdrawal(current event.Event) bool {
	return current.Kind == event.Withdraw && current.Amount.GreaterThan(highWithdrawalLimit)
}

// ConsecutiveWithdrawals fires when the user's last three events, current
// included and unfiltered by kind, are all withdrawals. recent is the
// user's most recent events, oldest first, with current as the final
// element; fewer than three events never fire.
func ConsecutiveWithdrawals(recent []event.Event) bool {
	if len(recent) < runLength {
		return false
	}
	for _, ev := range recent[len(recent)-runLength:] {
		if ev.Kind != event.Withdraw {
			return false
		}
	}
	return true
}

// IncreasingDeposits fires when the user's last three deposits are strictly
// increasing in amount and current is the latest of them. deposits is the
// user's deposit-only history, oldest first; withdrawals are transparent to
// this rule, so the three deposits may be separated by any number of
// withdrawals and any amount of elapsed time. Ties do not count as
// increasing, and a withdrawal as current never fires.
func IncreasingDeposits(current event.Event, deposits []event.Event) bool {
	if current.Kind != event.Deposit || len(deposits) < runLength {
		return false
	}
	last := deposits[len(deposits)-runLength:]
	if last[len(last)-1].ID != current.ID {
		return false
	}
	for i := 0; i+1 < len(last); i++ {
		if !last[i].Amount.LessThan(last[i+1].Amount) {
			return false
		}
	}
	return true
}

// WindowedDepositVolume fires when the user's deposit amounts within
// [current.t - WindowSeconds, current.t] sum to strictly more than 200.
// windowed holds the user's deposits inside that window, current included
// when it is a deposit. A withdrawal as current never fires: withdrawals
// neither contribute to nor reset the window sum.
func WindowedDepositVolume(current event.Event, windowed []event.Event) bool {
	if current.Kind != event.Deposit {
		return false
	}
	sum := decimal.Zero
	for _, ev := range windowed {
		sum = sum.Add(ev.Amount)
	}
	return sum.GreaterThan(windowVolumeLimit)
}

// Evaluate runs all four rules over the admitted event and returns the
// triggered codes in ascending numeric order. No rule short-circuits
// another; each code appears at most once.
func Evaluate(current event.Event, recent, recentDeposits, windowedDeposits []event.Event) []int {
	var codes []int
	if ConsecutiveWithdrawals(recent) {
		codes = append(codes, CodeConsecutiveWithdrawals)
	}
	if WindowedDepositVolume(current, windowedDeposits) {
		codes = append(codes, CodeWindowedDepositVolume)
	}
	if IncreasingDeposits(current, recentDeposits) {
		codes = append(codes, CodeIncreasingDeposits)
	}
	if HighWithdrawal(current) {
		codes = append(codes, CodeHighWithdrawal)
	}
	slices.Sort(codes)
	return codes
}
