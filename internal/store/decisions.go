package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// PutSimulationResult inserts an immutable simulation result keyed by
// (context_hash, market_type)
func (p *Postgres) PutSimulationResult(ctx context.Context, result models.SimulationResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal simulation result: %w", err)
	}

	query := `
		INSERT INTO simulation_results (context_hash, market_type, schema_version, created_at, payload)
		VALUES ($1, $2, $3, NOW(), $4)
		ON CONFLICT (context_hash, market_type) DO NOTHING
	`
	if _, err := p.db.ExecContext(ctx, query,
		result.ContextHash, string(result.MarketType), result.SchemaVersion, payload,
	); err != nil {
		return fmt.Errorf("insert simulation result: %w", err)
	}
	return nil
}

// GetSimulationResults returns all per-market results for a context hash
func (p *Postgres) GetSimulationResults(ctx context.Context, contextHash string) ([]models.SimulationResult, error) {
	query := `
		SELECT payload FROM simulation_results
		WHERE context_hash = $1
		ORDER BY market_type ASC
	`
	rows, err := p.db.QueryContext(ctx, query, contextHash)
	if err != nil {
		return nil, fmt.Errorf("query simulation results: %w", err)
	}
	defer rows.Close()

	var results []models.SimulationResult
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan simulation result: %w", err)
		}
		var r models.SimulationResult
		if err := json.Unmarshal(payload, &r); err != nil {
			return nil, fmt.Errorf("unmarshal simulation result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// RecentDecisionsForMarket returns the latest decisions for a (game, market),
// newest first
func (p *Postgres) RecentDecisionsForMarket(ctx context.Context, gameID string, marketType models.MarketType, limit int) ([]models.MarketDecision, error) {
	query := `
		SELECT payload FROM market_decisions
		WHERE game_id = $1 AND market_type = $2
		ORDER BY computed_at DESC
		LIMIT $3
	`
	rows, err := p.db.QueryContext(ctx, query, gameID, string(marketType), limit)
	if err != nil {
		return nil, fmt.Errorf("query recent decisions: %w", err)
	}
	defer rows.Close()

	var decisions []models.MarketDecision
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var d models.MarketDecision
		if err := json.Unmarshal(payload, &d); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// PutGameDecisions stores a decision bundle atomically: the bundle, each
// member decision, and the derived market states, in one transaction
func (p *Postgres) PutGameDecisions(ctx context.Context, bundle models.GameDecisions) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	payload, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	bundleQuery := `
		INSERT INTO game_decisions (game_id, inputs_hash, sport, computed_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (game_id, inputs_hash) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, bundleQuery,
		bundle.GameID, bundle.InputsHash, string(bundle.Sport), bundle.ComputedAt, payload,
	); err != nil {
		return fmt.Errorf("insert bundle: %w", err)
	}

	decisionQuery := `
		INSERT INTO market_decisions (inputs_hash, game_id, sport, market_type, context_hash, computed_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (inputs_hash) DO NOTHING
	`
	stateQuery := `
		INSERT INTO market_states (game_id, market_type, sport, classification, broadcast_allowed, parlay_allowed, inputs_hash, computed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id, market_type) DO UPDATE SET
			classification = EXCLUDED.classification,
			broadcast_allowed = EXCLUDED.broadcast_allowed,
			parlay_allowed = EXCLUDED.parlay_allowed,
			inputs_hash = EXCLUDED.inputs_hash,
			computed_at = EXCLUDED.computed_at
		WHERE market_states.computed_at <= EXCLUDED.computed_at
	`

	for _, d := range bundle.Markets() {
		dPayload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("marshal decision: %w", err)
		}
		if _, err := tx.ExecContext(ctx, decisionQuery,
			d.InputsHash, d.GameID, string(d.Sport), string(d.MarketType), d.ContextHash, d.ComputedAt, dPayload,
		); err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}

		broadcast, parlay := models.VisibilityFor(d.Classification)
		if _, err := tx.ExecContext(ctx, stateQuery,
			d.GameID, string(d.MarketType), string(d.Sport), string(d.Classification),
			broadcast, parlay, d.InputsHash, d.ComputedAt,
		); err != nil {
			return fmt.Errorf("upsert market state: %w", err)
		}
	}

	return tx.Commit()
}

// GetGameDecisions returns the latest decision bundle for a game
func (p *Postgres) GetGameDecisions(ctx context.Context, gameID string) (*models.GameDecisions, error) {
	query := `
		SELECT payload FROM game_decisions
		WHERE game_id = $1
		ORDER BY computed_at DESC
		LIMIT 1
	`
	var payload []byte
	if err := p.db.QueryRowContext(ctx, query, gameID).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan bundle: %w", err)
	}

	var bundle models.GameDecisions
	if err := json.Unmarshal(payload, &bundle); err != nil {
		return nil, fmt.Errorf("unmarshal bundle: %w", err)
	}
	return &bundle, nil
}

// ListMarketStates returns the authoritative per-market tiers for a sport
func (p *Postgres) ListMarketStates(ctx context.Context, sport models.Sport) ([]models.MarketState, error) {
	query := `
		SELECT game_id, market_type, sport, classification, broadcast_allowed, parlay_allowed, inputs_hash, computed_at
		FROM market_states
		WHERE sport = $1
		ORDER BY computed_at DESC
	`
	rows, err := p.db.QueryContext(ctx, query, string(sport))
	if err != nil {
		return nil, fmt.Errorf("query market states: %w", err)
	}
	defer rows.Close()

	var states []models.MarketState
	for rows.Next() {
		var s models.MarketState
		if err := rows.Scan(&s.GameID, &s.MarketType, &s.Sport, &s.Classification,
			&s.BroadcastAllowed, &s.ParlayAllowed, &s.InputsHash, &s.ComputedAt); err != nil {
			return nil, fmt.Errorf("scan market state: %w", err)
		}
		states = append(states, s)
	}
	return states, rows.Err()
}
