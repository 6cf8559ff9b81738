package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/proquint-registry/backend/internal/models"
)

type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Upsert stores events, ignoring ones already present by (tx_hash, log_index).
// Returns how many rows were new.
func (r *EventRepo) Upsert(ctx context.Context, events []models.ChainEvent) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO chain_events (tx_hash, log_index, block_number, block_time, event_type, user_address, name_id, args)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8)
			ON CONFLICT (tx_hash, log_index) DO NOTHING
		`, e.TxHash, int64(e.LogIndex), int64(e.BlockNumber), e.BlockTime, e.Type, e.User, e.NameID, e.Args)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	inserted := 0
	for i := range events {
		tag, err := br.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert event %s/%d: %w", events[i].TxHash, events[i].LogIndex, err)
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

const eventColumns = `tx_hash, log_index, block_number, block_time, event_type, COALESCE(user_address, ''), COALESCE(name_id, ''), args`

// Both lists take the newest limit rows; callers sort them back into block order.
const (
	listByUserQuery = `
		SELECT ` + eventColumns + `
		FROM chain_events
		WHERE user_address = $1 OR (event_type = 'Transfer' AND args->>'from' = $1)
		ORDER BY block_number DESC, log_index DESC
		LIMIT $2`
	listByNameQuery = `
		SELECT ` + eventColumns + `
		FROM chain_events
		WHERE name_id = $1
		ORDER BY block_number DESC, log_index DESC
		LIMIT $2`
)

// ListByUser returns the latest limit events touching addr, including
// transfers sent from it, newest first.
func (r *EventRepo) ListByUser(ctx context.Context, addr string, limit int) ([]models.ChainEvent, error) {
	return r.list(ctx, listByUserQuery, addr, limit)
}

// ListByName returns the latest limit events of a name, newest first.
func (r *EventRepo) ListByName(ctx context.Context, nameID string, limit int) ([]models.ChainEvent, error) {
	return r.list(ctx, listByNameQuery, nameID, limit)
}

func (r *EventRepo) list(ctx context.Context, query string, args ...any) ([]models.ChainEvent, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ChainEvent
	for rows.Next() {
		var (
			e        models.ChainEvent
			logIndex int64
			block    int64
		)
		if err := rows.Scan(&e.TxHash, &logIndex, &block, &e.BlockTime, &e.Type, &e.User, &e.NameID, &e.Args); err != nil {
			return nil, err
		}
		e.LogIndex = uint(logIndex)
		e.BlockNumber = uint64(block)
		out = append(out, e)
	}
	return out, rows.Err()
}
