package escrow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresStore persists escrows and disputes in PostgreSQL. The ID nonce
// and the total-value-locked counter live in the single-row escrow_state
// table; record mutations and counter adjustments share one transaction.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL-backed escrow store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
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

// ReserveID advances the nonce and returns the reserved ID. The nonce is
// never reused, even when escrow creation fails afterwards.
func (p *PostgresStore) ReserveID(ctx context.Context) (uint64, error) {
	var next int64
	err := p.db.QueryRowContext(ctx, `
		UPDATE escrow_state SET nonce = nonce + 1 RETURNING nonce - 1`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("reserve escrow id: %w", err)
	}
	return uint64(next), nil
}

func (p *PostgresStore) CreateEscrow(ctx context.Context, e *Escrow) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO escrows (id, payer, payee, amount, fee_amount, status, service_id,
				created_at_tick, timeout_at_tick, released_at_tick)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			int64(e.ID), e.Payer, e.Payee, e.Amount, e.FeeAmount, e.Status,
			nullString(e.ServiceID), e.CreatedAt, e.TimeoutAt, nullTick(e.ReleasedAt))
		if err != nil {
			return err
		}
		if e.Status == StatusLocked {
			_, err = tx.ExecContext(ctx, `
				UPDATE escrow_state SET total_locked = total_locked + $1`, e.Amount)
		}
		return err
	})
}

func (p *PostgresStore) GetEscrow(ctx context.Context, id uint64) (*Escrow, error) {
	return scanEscrow(p.db.QueryRowContext(ctx, `
		SELECT id, payer, payee, amount, fee_amount, status, service_id,
			created_at_tick, timeout_at_tick, released_at_tick
		FROM escrows WHERE id = $1`, int64(id)))
}

func (p *PostgresStore) UpdateEscrow(ctx context.Context, e *Escrow) error {
	return p.withTx(ctx, func(tx *sql.Tx) error {
		var oldStatus Status
		var amount int64
		err := tx.QueryRowContext(ctx, `
			SELECT status, amount FROM escrows WHERE id = $1 FOR UPDATE`,
			int64(e.ID)).Scan(&oldStatus, &amount)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: id %d", ErrNotFound, e.ID)
		}
		if err != nil {
			return err
		}
		if oldStatus.Terminal() {
			return fmt.Errorf("%w: escrow %d is already %s", ErrInvalidState, e.ID, oldStatus)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE escrows
			SET status = $1, released_at_tick = $2, updated_at = NOW()
			WHERE id = $3`,
			e.Status, nullTick(e.ReleasedAt), int64(e.ID))
		if err != nil {
			return err
		}
		if e.Status.Terminal() {
			_, err = tx.ExecContext(ctx, `
				UPDATE escrow_state SET total_locked = total_locked - $1`, amount)
		}
		return err
	})
}

func (p *PostgresStore) ListByPayer(ctx context.Context, principal string, limit int) ([]*Escrow, error) {
	return p.list(ctx, `payer = $1`, principal, limit)
}

func (p *PostgresStore) ListByPayee(ctx context.Context, principal string, limit int) ([]*Escrow, error) {
	return p.list(ctx, `payee = $1`, principal, limit)
}

func (p *PostgresStore) ListByStatus(ctx context.Context, status Status, limit int) ([]*Escrow, error) {
	return p.list(ctx, `status = $1`, string(status), limit)
}

func (p *PostgresStore) list(ctx context.Context, where, arg string, limit int) ([]*Escrow, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, payer, payee, amount, fee_amount, status, service_id,
			created_at_tick, timeout_at_tick, released_at_tick
		FROM escrows WHERE `+where+`
		ORDER BY id DESC
		LIMIT $2`, arg, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []*Escrow
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

func (p *PostgresStore) CreateDispute(ctx context.Context, d *Dispute) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO disputes (escrow_id, initiated_by, initiated_at_tick, reason, resolved, resolution)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		int64(d.EscrowID), d.InitiatedBy, d.InitiatedAt, d.Reason, d.Resolved,
		nullString(string(d.Resolution)))
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (p *PostgresStore) GetDispute(ctx context.Context, escrowID uint64) (*Dispute, error) {
	d := &Dispute{}
	var id int64
	var resolution sql.NullString
	err := p.db.QueryRowContext(ctx, `
		SELECT escrow_id, initiated_by, initiated_at_tick, reason, resolved, resolution
		FROM disputes WHERE escrow_id = $1`, int64(escrowID)).
		Scan(&id, &d.InitiatedBy, &d.InitiatedAt, &d.Reason, &d.Resolved, &resolution)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: escrow %d", ErrDisputeNotFound, escrowID)
	}
	if err != nil {
		return nil, err
	}
	d.EscrowID = uint64(id)
	d.Resolution = Resolution(resolution.String)
	return d, nil
}

func (p *PostgresStore) UpdateDispute(ctx context.Context, d *Dispute) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE disputes
		SET resolved = $1, resolution = $2
		WHERE escrow_id = $3 AND resolved = FALSE`,
		d.Resolved, nullString(string(d.Resolution)), int64(d.EscrowID))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: dispute for escrow %d missing or already resolved", ErrInvalidState, d.EscrowID)
	}
	return nil
}

func (p *PostgresStore) TotalLocked(ctx context.Context) (int64, error) {
	var total int64
	err := p.db.QueryRowContext(ctx, `SELECT total_locked FROM escrow_state`).Scan(&total)
	return total, err
}

func (p *PostgresStore) CountByStatus(ctx context.Context) (map[Status]int64, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM escrows GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[Status]int64)
	for rows.Next() {
		var status Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEscrow(row rowScanner) (*Escrow, error) {
	e := &Escrow{}
	var id int64
	var serviceID sql.NullString
	var releasedAt sql.NullInt64
	err := row.Scan(&id, &e.Payer, &e.Payee, &e.Amount, &e.FeeAmount, &e.Status,
		&serviceID, &e.CreatedAt, &e.TimeoutAt, &releasedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	e.ID = uint64(id)
	e.ServiceID = serviceID.String
	if releasedAt.Valid {
		tick := releasedAt.Int64
		e.ReleasedAt = &tick
	}
	return e, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTick(t *int64) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *t, Valid: true}
}

// isUniqueViolation checks for PostgreSQL error 23505.
func isUniqueViolation(err error) bool {
	var c interface{ SQLState() string }
	if errors.As(err, &c) {
		return c.SQLState() == "23505"
	}
	return false
}

// Compile-time assertion that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
