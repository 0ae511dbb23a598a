package ledger

import (
	"context"
	"errors"
)

var (
	ErrNotFound          = errors.New("ledger: wallet not found")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrInvalidArgument   = errors.New("ledger: invalid argument")
)

// Store is the persistence contract for wallets and the coin ledger.
//
// Every method that mutates money must execute as one atomic transaction and
// must serialize concurrent mutations per wallet (row lock or equivalent):
// no two concurrent mutations for the same user may observe the same stale
// balance.
type Store interface {
	// GetWallet returns the wallet for userID, or ErrNotFound.
	GetWallet(ctx context.Context, userID string) (Wallet, error)

	// Apply atomically applies tx to the wallet of tx.UserID and appends the
	// transaction row. A positive amount creates the wallet if absent.
	// A negative amount fails with ErrInsufficientFunds unless
	// balance + amount >= 0; InsufficientFunds is a normal outcome, not a
	// system error.
	Apply(ctx context.Context, tx CoinTransaction) (Wallet, error)

	// DebitUpTo atomically debits min(balance, maxAmount) from the wallet,
	// down to zero, appending one transaction row when the debited amount is
	// positive. Returns the amount actually debited. A missing wallet debits
	// zero coins.
	DebitUpTo(ctx context.Context, tx CoinTransaction, maxAmount int64) (int64, error)

	// TransactionsForCall lists transactions whose RelatedCallID matches,
	// oldest first. Used for settlement audits and earnings reporting.
	TransactionsForCall(ctx context.Context, callID string) ([]CoinTransaction, error)
}
