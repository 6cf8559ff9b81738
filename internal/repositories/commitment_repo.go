package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proquint-registry/backend/internal/models"
)

var ErrNotFound = errors.New("not found")

type CommitmentRepo struct {
	pool *pgxpool.Pool
}

func NewCommitmentRepo(pool *pgxpool.Pool) *CommitmentRepo {
	return &CommitmentRepo{pool: pool}
}

const commitmentColumns = `
	id, hash, data, caller, recipient, register_to, name_id, proquint, years,
	value_wei, status, created_at, commit_tx_hash, revealed_at, prepared_at, updated_at`

func scanCommitment(row pgx.Row) (*models.Commitment, error) {
	var c models.Commitment
	err := row.Scan(&c.ID, &c.Hash, &c.Data, &c.Caller, &c.Recipient, &c.RegisterTo, &c.NameID, &c.Proquint, &c.Years,
		&c.ValueWei, &c.Status, &c.CreatedAt, &c.CommitTxHash, &c.RevealedAt, &c.PreparedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CommitmentRepo) Create(ctx context.Context, c *models.Commitment) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO commitments (hash, data, caller, recipient, register_to, name_id, proquint, years, value_wei, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, prepared_at, updated_at
	`, c.Hash, c.Data, c.Caller, c.Recipient, c.RegisterTo, c.NameID, c.Proquint, c.Years, c.ValueWei, c.Status,
	).Scan(&c.ID, &c.PreparedAt, &c.UpdatedAt)
}

func (r *CommitmentRepo) GetByHash(ctx context.Context, hash string) (*models.Commitment, error) {
	return scanCommitment(r.pool.QueryRow(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE hash = $1`, hash))
}

// MarkCommitted records the commit tx. Only the first confirmation sets
// created_at; later calls report false. A pending record already expired by
// ExpirePendingBefore is still accepted since the tx may land late.
func (r *CommitmentRepo) MarkCommitted(ctx context.Context, hash, txHash string, createdAt time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE commitments
		SET status = $2, created_at = $3, commit_tx_hash = $4, updated_at = now()
		WHERE hash = $1 AND created_at IS NULL AND status IN ($5, $6)
	`, hash, models.CommitmentStatusCommitted, createdAt, txHash,
		models.CommitmentStatusPending, models.CommitmentStatusExpired)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// MarkRevealed moves a committed record to revealed. It reports false when
// the record is no longer committed, e.g. the sweep expired it first.
func (r *CommitmentRepo) MarkRevealed(ctx context.Context, hash string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE commitments SET status = $2, revealed_at = $3, updated_at = now()
		WHERE hash = $1 AND status = $4 AND created_at IS NOT NULL
	`, hash, models.CommitmentStatusRevealed, at, models.CommitmentStatusCommitted)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatus moves hash from one status to another, reporting false when
// the record was no longer in from.
func (r *CommitmentRepo) UpdateStatus(ctx context.Context, hash, from, to string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE commitments SET status = $3, updated_at = now()
		WHERE hash = $1 AND status = $2
	`, hash, from, to)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *CommitmentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]models.Commitment, error) {
	return r.list(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE status = $1 ORDER BY prepared_at LIMIT $2`, status, limit)
}

func (r *CommitmentRepo) ListByCaller(ctx context.Context, caller string, limit int) ([]models.Commitment, error) {
	return r.list(ctx, `SELECT `+commitmentColumns+` FROM commitments WHERE caller = $1 ORDER BY prepared_at DESC LIMIT $2`, caller, limit)
}

// ExpirePendingBefore expires prepared commitments whose commit tx never
// appeared before cutoff.
func (r *CommitmentRepo) ExpirePendingBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE commitments SET status = $1, updated_at = now()
		WHERE status = $2 AND prepared_at < $3
		RETURNING hash
	`, models.CommitmentStatusExpired, models.CommitmentStatusPending, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

func (r *CommitmentRepo) list(ctx context.Context, query string, args ...any) ([]models.Commitment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
