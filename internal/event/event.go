package event

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the transaction type of an event.
type Kind string

const (
	Deposit  Kind = "deposit"
	Withdraw Kind = "withdraw"
)

// Valid reports whether k is one of the two allowed kinds.
func (k Kind) Valid() bool {
	return k == Deposit || k == Withdraw
}

// Candidate is a submitted event before admission. Amount arrives as the
// caller sent it (a decimal string on the wire) and is parsed and range
// checked by the gatekeeper, not here.
type Candidate struct {
	Kind      string `json:"type"`
	Amount    string `json:"amount"`
	UserID    int64  `json:"user_id"`
	Timestamp int64  `json:"t"`
}

// Event is one persisted deposit or withdrawal record. Events are immutable
// once written; RecordedAt is observability metadata and plays no part in
// rule evaluation.
type Event struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Kind       Kind            `json:"type"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  int64           `json:"t"`
	RecordedAt time.Time       `json:"-"`
}

// User is the owning identity referenced by events. Managed out of band;
// the core only needs existence lookups.
type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}
