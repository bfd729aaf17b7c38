package repositories

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tewo-market/gateway/internal/chain"
)

// EventRepo keeps decoded marketplace events for the activity feed.
type EventRepo struct {
	pool *pgxpool.Pool
}

func NewEventRepo(pool *pgxpool.Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Insert stores ev once. inserted is false when the log was already indexed.
func (r *EventRepo) Insert(ctx context.Context, ev *chain.ContractEvent) (inserted bool, err error) {
	fields, err := json.Marshal(ev.Fields)
	if err != nil {
		return false, err
	}

	tag, err := r.pool.Exec(ctx, `
		INSERT INTO indexed_events (tx_hash, log_index, block_number, name, fields)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`, ev.TxHash, int(ev.LogIndex), int64(ev.BlockNumber), ev.Name, fields)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ListRecent returns the newest events, optionally filtered by name.
func (r *EventRepo) ListRecent(ctx context.Context, name string, limit int) ([]chain.ContractEvent, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
		SELECT tx_hash, log_index, block_number, name, fields
		FROM indexed_events
		WHERE ($1 = '' OR name = $1)
		ORDER BY block_number DESC, log_index DESC
		LIMIT $2
	`, name, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []chain.ContractEvent
	for rows.Next() {
		var (
			ev       chain.ContractEvent
			logIndex int
			block    int64
			fields   []byte
		)
		if err := rows.Scan(&ev.TxHash, &logIndex, &block, &ev.Name, &fields); err != nil {
			return nil, err
		}
		ev.LogIndex = uint(logIndex)
		ev.BlockNumber = uint64(block)
		if err := json.Unmarshal(fields, &ev.Fields); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}
