package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// PutOddsSnapshot inserts an immutable odds snapshot. A duplicate content
// hash is success: identical content already exists.
func (p *Postgres) PutOddsSnapshot(ctx context.Context, snap models.OddsSnapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal odds snapshot: %w", err)
	}

	query := `
		INSERT INTO odds_snapshots (content_hash, game_id, sport, fetched_at, is_closing, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (content_hash) DO NOTHING
	`
	if _, err := p.db.ExecContext(ctx, query,
		snap.ContentHash, snap.GameID, string(snap.Sport), snap.CapturedAt, snap.Closing, payload,
	); err != nil {
		return "", fmt.Errorf("insert odds snapshot: %w", err)
	}

	return snap.ContentHash, nil
}

// GetOddsSnapshot fetches an odds snapshot by content hash
func (p *Postgres) GetOddsSnapshot(ctx context.Context, contentHash string) (*models.OddsSnapshot, error) {
	query := `SELECT payload FROM odds_snapshots WHERE content_hash = $1`
	return scanOddsSnapshot(p.db.QueryRowContext(ctx, query, contentHash))
}

// LatestOddsSnapshot returns the most recently captured snapshot for a game
func (p *Postgres) LatestOddsSnapshot(ctx context.Context, gameID string) (*models.OddsSnapshot, error) {
	query := `
		SELECT payload FROM odds_snapshots
		WHERE game_id = $1
		ORDER BY fetched_at DESC
		LIMIT 1
	`
	return scanOddsSnapshot(p.db.QueryRowContext(ctx, query, gameID))
}

// ClosingOddsSnapshot returns the closing-line capture for a game, if taken
func (p *Postgres) ClosingOddsSnapshot(ctx context.Context, gameID string) (*models.OddsSnapshot, error) {
	query := `
		SELECT payload FROM odds_snapshots
		WHERE game_id = $1 AND is_closing = TRUE
		ORDER BY fetched_at DESC
		LIMIT 1
	`
	return scanOddsSnapshot(p.db.QueryRowContext(ctx, query, gameID))
}

func scanOddsSnapshot(row *sql.Row) (*models.OddsSnapshot, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan odds snapshot: %w", err)
	}

	var snap models.OddsSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal odds snapshot: %w", err)
	}
	return &snap, nil
}

// PutInjurySnapshot inserts an immutable injury snapshot
func (p *Postgres) PutInjurySnapshot(ctx context.Context, snap models.InjurySnapshot) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal injury snapshot: %w", err)
	}

	query := `
		INSERT INTO injury_snapshots (content_hash, game_id, fetched_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (content_hash) DO NOTHING
	`
	if _, err := p.db.ExecContext(ctx, query,
		snap.ContentHash, snap.TeamKey, snap.CapturedAt, payload,
	); err != nil {
		return "", fmt.Errorf("insert injury snapshot: %w", err)
	}

	return snap.ContentHash, nil
}

// GetInjurySnapshot fetches an injury snapshot by content hash
func (p *Postgres) GetInjurySnapshot(ctx context.Context, contentHash string) (*models.InjurySnapshot, error) {
	query := `SELECT payload FROM injury_snapshots WHERE content_hash = $1`

	var payload []byte
	if err := p.db.QueryRowContext(ctx, query, contentHash).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan injury snapshot: %w", err)
	}

	var snap models.InjurySnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("unmarshal injury snapshot: %w", err)
	}
	return &snap, nil
}

// PutSimContext inserts an immutable simulation context
func (p *Postgres) PutSimContext(ctx context.Context, simCtx models.SimulationContext) (string, error) {
	payload, err := json.Marshal(simCtx)
	if err != nil {
		return "", fmt.Errorf("marshal sim context: %w", err)
	}

	query := `
		INSERT INTO sim_contexts (context_hash, game_id, sport, created_at, payload)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (context_hash) DO NOTHING
	`
	if _, err := p.db.ExecContext(ctx, query,
		simCtx.ContextHash, simCtx.GameID, string(simCtx.Sport), payload,
	); err != nil {
		return "", fmt.Errorf("insert sim context: %w", err)
	}

	return simCtx.ContextHash, nil
}

// GetSimContext fetches a simulation context by content hash
func (p *Postgres) GetSimContext(ctx context.Context, contextHash string) (*models.SimulationContext, error) {
	query := `SELECT payload FROM sim_contexts WHERE context_hash = $1`

	var payload []byte
	if err := p.db.QueryRowContext(ctx, query, contextHash).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan sim context: %w", err)
	}

	var simCtx models.SimulationContext
	if err := json.Unmarshal(payload, &simCtx); err != nil {
		return nil, fmt.Errorf("unmarshal sim context: %w", err)
	}
	return &simCtx, nil
}
