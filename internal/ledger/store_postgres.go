package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"listenline/pkg/utils"
)

// PostgresStore persists wallets and coin transactions in Postgres.
//
// Assumed tables:
// - wallets (user_id PK, balance_coins, total_earned, total_spent, created_at, updated_at)
// - coin_transactions (tx_id PK, user_id, amount, kind, related_call_id, created_at)
//
// Per-wallet serialization uses SELECT ... FOR UPDATE on the wallet row, so
// concurrent money operations for the same user queue behind the row lock.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) GetWallet(ctx context.Context, userID string) (Wallet, error) {
	const q = `
SELECT user_id, balance_coins, total_earned, total_spent, created_at, updated_at
FROM wallets
WHERE user_id = $1
`
	var w Wallet
	if err := s.db.QueryRowContext(ctx, q, userID).Scan(
		&w.UserID,
		&w.BalanceCoins,
		&w.TotalEarned,
		&w.TotalSpent,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}
	return w, nil
}

func (s *PostgresStore) Apply(ctx context.Context, txn CoinTransaction) (Wallet, error) {
	var out Wallet
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		w, ok, err := lockWallet(ctx, tx, txn.UserID)
		if err != nil {
			return err
		}
		if !ok {
			if txn.Amount < 0 {
				return ErrInsufficientFunds
			}
			if w, err = createWallet(ctx, tx, txn.UserID, txn.CreatedAt); err != nil {
				return err
			}
		}
		if txn.Amount < 0 && w.BalanceCoins+txn.Amount < 0 {
			return ErrInsufficientFunds
		}

		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		out, err = applyWalletDelta(ctx, tx, txn.UserID, txn.Amount, txn.Kind, txn.CreatedAt)
		return err
	})
	return out, err
}

func (s *PostgresStore) DebitUpTo(ctx context.Context, txn CoinTransaction, maxAmount int64) (int64, error) {
	var debited int64
	err := utils.WithTx(ctx, s.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		w, ok, err := lockWallet(ctx, tx, txn.UserID)
		if err != nil {
			return err
		}
		if !ok {
			return nil // nothing to debit
		}

		debited = maxAmount
		if w.BalanceCoins < debited {
			debited = w.BalanceCoins
		}
		if debited <= 0 {
			debited = 0
			return nil
		}

		txn.Amount = -debited
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}
		_, err = applyWalletDelta(ctx, tx, txn.UserID, txn.Amount, txn.Kind, txn.CreatedAt)
		return err
	})
	if err != nil {
		return 0, err
	}
	return debited, nil
}

func (s *PostgresStore) TransactionsForCall(ctx context.Context, callID string) ([]CoinTransaction, error) {
	const q = `
SELECT tx_id, user_id, amount, kind, COALESCE(related_call_id, ''), created_at
FROM coin_transactions
WHERE related_call_id = $1
ORDER BY created_at ASC
`
	rows, err := s.db.QueryContext(ctx, q, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CoinTransaction
	for rows.Next() {
		var t CoinTransaction
		if err := rows.Scan(&t.TxID, &t.UserID, &t.Amount, &t.Kind, &t.RelatedCallID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func lockWallet(ctx context.Context, tx *sql.Tx, userID string) (Wallet, bool, error) {
	// Lock the wallet row to serialize concurrent money operations per user.
	const q = `
SELECT user_id, balance_coins, total_earned, total_spent, created_at, updated_at
FROM wallets
WHERE user_id = $1
FOR UPDATE
`
	var w Wallet
	if err := tx.QueryRowContext(ctx, q, userID).Scan(
		&w.UserID,
		&w.BalanceCoins,
		&w.TotalEarned,
		&w.TotalSpent,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Wallet{}, false, nil
		}
		return Wallet{}, false, err
	}
	return w, true, nil
}

func createWallet(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (Wallet, error) {
	const q = `
INSERT INTO wallets (user_id, balance_coins, total_earned, total_spent, created_at, updated_at)
VALUES ($1, 0, 0, 0, $2, $2)
ON CONFLICT (user_id) DO NOTHING
RETURNING user_id, balance_coins, total_earned, total_spent, created_at, updated_at
`
	var w Wallet
	err := tx.QueryRowContext(ctx, q, userID, now).Scan(
		&w.UserID,
		&w.BalanceCoins,
		&w.TotalEarned,
		&w.TotalSpent,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Lost a create race; the row exists now, lock it.
		w, _, err = lockWallet(ctx, tx, userID)
	}
	return w, err
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t CoinTransaction) error {
	const q = `
INSERT INTO coin_transactions (tx_id, user_id, amount, kind, related_call_id, created_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)
`
	_, err := tx.ExecContext(ctx, q,
		t.TxID,
		t.UserID,
		t.Amount,
		t.Kind,
		t.RelatedCallID,
		t.CreatedAt,
	)
	return err
}

func applyWalletDelta(ctx context.Context, tx *sql.Tx, userID string, amount int64, kind TxKind, now time.Time) (Wallet, error) {
	earned := int64(0)
	spent := int64(0)
	if kind == TxKindEarn {
		earned = amount
	}
	if amount < 0 {
		spent = -amount
	}

	const q = `
UPDATE wallets
SET balance_coins = balance_coins + $2,
    total_earned = total_earned + $3,
    total_spent = total_spent + $4,
    updated_at = $5
WHERE user_id = $1
RETURNING user_id, balance_coins, total_earned, total_spent, created_at, updated_at
`
	var w Wallet
	if err := tx.QueryRowContext(ctx, q, userID, amount, earned, spent, now).Scan(
		&w.UserID,
		&w.BalanceCoins,
		&w.TotalEarned,
		&w.TotalSpent,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		return Wallet{}, err
	}
	return w, nil
}
