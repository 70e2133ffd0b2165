package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// AppendSignal appends one record to a signal chain. Signals are append-only;
// there is no update path.
func (p *Postgres) AppendSignal(ctx context.Context, signal models.Signal) error {
	payload, err := json.Marshal(signal)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}

	query := `
		INSERT INTO signals (signal_id, previous_signal_id, game_id, market_type, created_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := p.db.ExecContext(ctx, query,
		signal.SignalID, signal.PreviousSignalID, signal.GameID,
		string(signal.MarketType), signal.CreatedAt, payload,
	); err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// GetChain returns a (game, market) signal chain oldest first
func (p *Postgres) GetChain(ctx context.Context, gameID string, marketType models.MarketType) ([]models.Signal, error) {
	query := `
		SELECT payload FROM signals
		WHERE game_id = $1 AND market_type = $2
		ORDER BY created_at ASC
	`
	rows, err := p.db.QueryContext(ctx, query, gameID, string(marketType))
	if err != nil {
		return nil, fmt.Errorf("query signal chain: %w", err)
	}
	defer rows.Close()

	var chain []models.Signal
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		var s models.Signal
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("unmarshal signal: %w", err)
		}
		chain = append(chain, s)
	}
	return chain, rows.Err()
}
