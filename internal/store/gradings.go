package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// PutEventResult inserts an immutable final score record
func (p *Postgres) PutEventResult(ctx context.Context, result models.EventResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal event result: %w", err)
	}

	query := `
		INSERT INTO event_results (game_id, sport, completed_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id) DO NOTHING
	`
	if _, err := p.db.ExecContext(ctx, query,
		result.GameID, string(result.Sport), result.CompletedAt, payload,
	); err != nil {
		return fmt.Errorf("insert event result: %w", err)
	}
	return nil
}

// GetEventResult fetches the final score for a game
func (p *Postgres) GetEventResult(ctx context.Context, gameID string) (*models.EventResult, error) {
	query := `SELECT payload FROM event_results WHERE game_id = $1`

	var payload []byte
	if err := p.db.QueryRowContext(ctx, query, gameID).Scan(&payload); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan event result: %w", err)
	}

	var result models.EventResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("unmarshal event result: %w", err)
	}
	return &result, nil
}

// PutGrading stores a settlement record and marks its publication graded,
// in one transaction. Regrades are refused by the primary key.
func (p *Postgres) PutGrading(ctx context.Context, grading models.Grading) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	payload, err := json.Marshal(grading)
	if err != nil {
		return fmt.Errorf("marshal grading: %w", err)
	}

	query := `
		INSERT INTO gradings (publish_id, game_id, graded_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (publish_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, query,
		grading.PublishID, grading.GameID, grading.GradedAt, payload,
	); err != nil {
		return fmt.Errorf("insert grading: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE publications SET graded = TRUE WHERE publish_id = $1`,
		grading.PublishID,
	); err != nil {
		return fmt.Errorf("mark publication graded: %w", err)
	}

	return tx.Commit()
}

// AddCalibrationObservation appends one training example
func (p *Postgres) AddCalibrationObservation(ctx context.Context, obs models.CalibrationObservation) error {
	payload, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}

	query := `
		INSERT INTO calibration_observations (sport, market_type, bucket, observed_at, payload)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := p.db.ExecContext(ctx, query,
		string(obs.Sport), string(obs.MarketType), obs.Bucket, obs.ObservedAt, payload,
	); err != nil {
		return fmt.Errorf("insert observation: %w", err)
	}
	return nil
}

// ListCalibrationObservations returns the training examples for one segment
// since a cutoff, oldest first
func (p *Postgres) ListCalibrationObservations(ctx context.Context, sport models.Sport, marketType models.MarketType, bucket string, since time.Time) ([]models.CalibrationObservation, error) {
	query := `
		SELECT payload FROM calibration_observations
		WHERE sport = $1 AND market_type = $2 AND bucket = $3 AND observed_at >= $4
		ORDER BY observed_at ASC
	`
	rows, err := p.db.QueryContext(ctx, query, string(sport), string(marketType), bucket, since)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	var observations []models.CalibrationObservation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		var obs models.CalibrationObservation
		if err := json.Unmarshal(payload, &obs); err != nil {
			return nil, fmt.Errorf("unmarshal observation: %w", err)
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// ListGradedObservations returns a sport's training examples across all
// segments since a cutoff, oldest first. Baseline drift tracking reads the
// whole window at once.
func (p *Postgres) ListGradedObservations(ctx context.Context, sport models.Sport, since time.Time) ([]models.CalibrationObservation, error) {
	query := `
		SELECT payload FROM calibration_observations
		WHERE sport = $1 AND observed_at >= $2
		ORDER BY observed_at ASC
	`
	rows, err := p.db.QueryContext(ctx, query, string(sport), since)
	if err != nil {
		return nil, fmt.Errorf("query graded observations: %w", err)
	}
	defer rows.Close()

	var observations []models.CalibrationObservation
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		var obs models.CalibrationObservation
		if err := json.Unmarshal(payload, &obs); err != nil {
			return nil, fmt.Errorf("unmarshal observation: %w", err)
		}
		observations = append(observations, obs)
	}
	return observations, rows.Err()
}

// PutCalibrationVersion stores a trained calibration model and its segments.
// The new version is not promoted; promotion is a separate explicit step.
func (p *Postgres) PutCalibrationVersion(ctx context.Context, version models.CalibrationVersion, segments []models.CalibrationSegment) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	payload, err := json.Marshal(version)
	if err != nil {
		return fmt.Errorf("marshal version: %w", err)
	}

	versionQuery := `
		INSERT INTO calibration_versions (version, sport, promoted, created_at, payload)
		VALUES ($1, $2, FALSE, $3, $4)
		ON CONFLICT (version, sport) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, versionQuery,
		version.Version, string(version.Sport), version.TrainedAt, payload,
	); err != nil {
		return fmt.Errorf("insert version: %w", err)
	}

	segmentQuery := `
		INSERT INTO calibration_segments (version, sport, market_type, bucket, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (version, sport, market_type, bucket) DO NOTHING
	`
	for _, seg := range segments {
		segPayload, err := json.Marshal(seg)
		if err != nil {
			return fmt.Errorf("marshal segment: %w", err)
		}
		if _, err := tx.ExecContext(ctx, segmentQuery,
			seg.Version, string(seg.Sport), string(seg.MarketType), seg.Bucket, segPayload,
		); err != nil {
			return fmt.Errorf("insert segment: %w", err)
		}
	}

	return tx.Commit()
}

// PromoteCalibrationVersion swaps the promoted pointer for a sport
func (p *Postgres) PromoteCalibrationVersion(ctx context.Context, sport models.Sport, version string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE calibration_versions SET promoted = FALSE WHERE sport = $1 AND promoted = TRUE`,
		string(sport),
	); err != nil {
		return fmt.Errorf("demote current: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE calibration_versions SET promoted = TRUE WHERE sport = $1 AND version = $2`,
		string(sport), version,
	)
	if err != nil {
		return fmt.Errorf("promote version: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no calibration version %s for %s", version, sport)
	}

	return tx.Commit()
}

// PromotedCalibration returns the live calibration model for a sport
func (p *Postgres) PromotedCalibration(ctx context.Context, sport models.Sport) (*models.CalibrationVersion, []models.CalibrationSegment, error) {
	var payload []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT payload FROM calibration_versions WHERE sport = $1 AND promoted = TRUE`,
		string(sport),
	).Scan(&payload)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("scan promoted version: %w", err)
	}

	var version models.CalibrationVersion
	if err := json.Unmarshal(payload, &version); err != nil {
		return nil, nil, fmt.Errorf("unmarshal version: %w", err)
	}
	version.Promoted = true

	rows, err := p.db.QueryContext(ctx,
		`SELECT payload FROM calibration_segments WHERE version = $1 AND sport = $2`,
		version.Version, string(sport),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []models.CalibrationSegment
	for rows.Next() {
		var segPayload []byte
		if err := rows.Scan(&segPayload); err != nil {
			return nil, nil, fmt.Errorf("scan segment: %w", err)
		}
		var seg models.CalibrationSegment
		if err := json.Unmarshal(segPayload, &seg); err != nil {
			return nil, nil, fmt.Errorf("unmarshal segment: %w", err)
		}
		segments = append(segments, seg)
	}
	return &version, segments, rows.Err()
}
