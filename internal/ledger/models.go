package ledger

import "time"

// Wallet holds one user's coin balance.
//
// Money invariants:
// - BalanceCoins never goes below zero.
// - Balance is mutated only through atomic transactions that also append a
//   CoinTransaction row; the sum of a user's transactions reconstructs the
//   balance exactly.
//
// Lifecycle: created on the first coin-bearing action, never deleted while
// the user exists.
type Wallet struct {
	UserID       string `json:"user_id" db:"user_id"`
	BalanceCoins int64  `json:"balance_coins" db:"balance_coins"`

	// TotalEarned accumulates coins credited with kind "earn" (listener side).
	// TotalSpent accumulates the absolute value of every debit.
	TotalEarned int64 `json:"total_earned" db:"total_earned"`
	TotalSpent  int64 `json:"total_spent" db:"total_spent"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CoinTransaction is an immutable append-only record of a balance mutation.
// Credits are positive, debits are negative. Never updated or deleted.
type CoinTransaction struct {
	TxID   string `json:"tx_id" db:"tx_id"`
	UserID string `json:"user_id" db:"user_id"`

	// Amount is the signed coin delta applied to the wallet.
	Amount int64  `json:"amount" db:"amount"`
	Kind   TxKind `json:"kind" db:"kind"`

	// RelatedCallID links usage transactions to the call that caused them.
	RelatedCallID string `json:"related_call_id,omitempty" db:"related_call_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TxKind string

const (
	TxKindPurchase   TxKind = "purchase"
	TxKindBonus      TxKind = "bonus"
	TxKindSpend      TxKind = "spend"
	TxKindEarn       TxKind = "earn"
	TxKindWithdrawal TxKind = "withdrawal"
)

// Valid reports whether k is a known transaction kind.
func (k TxKind) Valid() bool {
	switch k {
	case TxKindPurchase, TxKindBonus, TxKindSpend, TxKindEarn, TxKindWithdrawal:
		return true
	default:
		return false
	}
}
