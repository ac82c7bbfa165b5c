package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/custodia-dev/custodia/internal/idgen"
)

// PostgresStore persists balances and the journal in PostgreSQL.
// Each mutating method runs in a single transaction with row locks, so
// balance changes and journal appends commit or roll back together.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed ledger store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) GetBalance(ctx context.Context, principal string) (*Balance, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT principal, available, escrowed, total_in, total_out, updated_at
		FROM accounts WHERE principal = $1`, principal)

	bal := &Balance{}
	err := row.Scan(&bal.Principal, &bal.Available, &bal.Escrowed, &bal.TotalIn, &bal.TotalOut, &bal.UpdatedAt)
	if err == sql.ErrNoRows {
		return &Balance{Principal: principal}, nil
	}
	return bal, err
}

// lockAccount upserts the account row and returns it locked for update.
func lockAccount(ctx context.Context, tx *sql.Tx, principal string) (*Balance, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (principal, available, escrowed, total_in, total_out, updated_at)
		VALUES ($1, 0, 0, 0, 0, NOW())
		ON CONFLICT (principal) DO NOTHING`, principal)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRowContext(ctx, `
		SELECT principal, available, escrowed, total_in, total_out, updated_at
		FROM accounts WHERE principal = $1 FOR UPDATE`, principal)

	bal := &Balance{}
	if err := row.Scan(&bal.Principal, &bal.Available, &bal.Escrowed, &bal.TotalIn, &bal.TotalOut, &bal.UpdatedAt); err != nil {
		return nil, err
	}
	return bal, nil
}

func saveAccount(ctx context.Context, tx *sql.Tx, bal *Balance) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET available = $1, escrowed = $2, total_in = $3, total_out = $4, updated_at = NOW()
		WHERE principal = $5`,
		bal.Available, bal.Escrowed, bal.TotalIn, bal.TotalOut, bal.Principal)
	return err
}

func appendEntry(ctx context.Context, tx *sql.Tx, principal, entryType string, amount int64, reference, counterparty string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, principal, type, amount, reference, counterparty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		idgen.WithPrefix("je_"), principal, entryType, amount,
		nullString(reference), nullString(counterparty), time.Now())
	return err
}

func (p *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (p *PostgresStore) Deposit(ctx context.Context, principal string, amount int64, reference string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		bal, err := lockAccount(ctx, tx, principal)
		if err != nil {
			return err
		}
		bal.Available += amount
		bal.TotalIn += amount
		if err := saveAccount(ctx, tx, bal); err != nil {
			return err
		}
		return appendEntry(ctx, tx, principal, EntryDeposit, amount, reference, "")
	})
}

func (p *PostgresStore) Withdraw(ctx context.Context, principal string, amount int64, reference string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		bal, err := lockAccount(ctx, tx, principal)
		if err != nil {
			return err
		}
		if bal.Available < amount {
			return ErrInsufficientBalance
		}
		bal.Available -= amount
		bal.TotalOut += amount
		if err := saveAccount(ctx, tx, bal); err != nil {
			return err
		}
		return appendEntry(ctx, tx, principal, EntryWithdrawal, amount, reference, "")
	})
}

func (p *PostgresStore) EscrowLock(ctx context.Context, payer string, amount int64, reference string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		bal, err := lockAccount(ctx, tx, payer)
		if err != nil {
			return err
		}
		if bal.Available < amount {
			return ErrInsufficientBalance
		}
		bal.Available -= amount
		bal.Escrowed += amount
		if err := saveAccount(ctx, tx, bal); err != nil {
			return err
		}
		return appendEntry(ctx, tx, payer, EntryEscrowLock, amount, reference, "")
	})
}

func (p *PostgresStore) EscrowRelease(ctx context.Context, payer, payee, feeRecipient string, amount, fee int64, reference string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		payerBal, err := lockAccount(ctx, tx, payer)
		if err != nil {
			return err
		}
		if payerBal.Escrowed < amount {
			return fmt.Errorf("escrow release %s: %w", reference, ErrInsufficientBalance)
		}
		net := amount - fee

		payerBal.Escrowed -= amount
		payerBal.TotalOut += amount
		if err := saveAccount(ctx, tx, payerBal); err != nil {
			return err
		}
		if err := appendEntry(ctx, tx, payer, EntryEscrowRelease, amount, reference, payee); err != nil {
			return err
		}

		payeeBal, err := lockAccount(ctx, tx, payee)
		if err != nil {
			return err
		}
		payeeBal.Available += net
		payeeBal.TotalIn += net
		if err := saveAccount(ctx, tx, payeeBal); err != nil {
			return err
		}
		if err := appendEntry(ctx, tx, payee, EntryEscrowReceive, net, reference, payer); err != nil {
			return err
		}

		if fee > 0 {
			feeBal, err := lockAccount(ctx, tx, feeRecipient)
			if err != nil {
				return err
			}
			feeBal.Available += fee
			feeBal.TotalIn += fee
			if err := saveAccount(ctx, tx, feeBal); err != nil {
				return err
			}
			if err := appendEntry(ctx, tx, feeRecipient, EntryFeeIn, fee, reference, payer); err != nil {
				return err
			}
		}
		return nil
	})
}

func (p *PostgresStore) EscrowRefund(ctx context.Context, payer string, amount int64, reference string) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		bal, err := lockAccount(ctx, tx, payer)
		if err != nil {
			return err
		}
		if bal.Escrowed < amount {
			return fmt.Errorf("escrow refund %s: %w", reference, ErrInsufficientBalance)
		}
		bal.Escrowed -= amount
		bal.Available += amount
		if err := saveAccount(ctx, tx, bal); err != nil {
			return err
		}
		return appendEntry(ctx, tx, payer, EntryEscrowRefund, amount, reference, "")
	})
}

func (p *PostgresStore) History(ctx context.Context, principal string, limit int) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, principal, type, amount, reference, counterparty, created_at
		FROM ledger_entries
		WHERE principal = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`, principal, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

func (p *PostgresStore) Entries(ctx context.Context, principal string) ([]*Entry, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, principal, type, amount, reference, counterparty, created_at
		FROM ledger_entries
		WHERE principal = $1
		ORDER BY created_at ASC, id ASC`, principal)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return scanEntries(rows)
}

func (p *PostgresStore) Principals(ctx context.Context) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT principal FROM accounts ORDER BY principal`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (p *PostgresStore) HasDeposit(ctx context.Context, reference string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries WHERE type = $1 AND reference = $2
		)`, EntryDeposit, reference).Scan(&exists)
	return exists, err
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var result []*Entry
	for rows.Next() {
		e := &Entry{}
		var reference, counterparty sql.NullString
		if err := rows.Scan(&e.ID, &e.Principal, &e.Type, &e.Amount, &reference, &counterparty, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Reference = reference.String
		e.Counterparty = counterparty.String
		result = append(result, e)
	}
	return result, rows.Err()
}

// nullString converts an empty Go string to sql.NullString.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
