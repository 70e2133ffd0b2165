package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// InsertPublication inserts idempotently against the (prediction_id, channel)
// uniqueness constraint. When a record already exists it is returned with
// inserted=false; no duplicate ever lands.
func (p *Postgres) InsertPublication(ctx context.Context, pub models.PublishedPrediction) (*models.PublishedPrediction, bool, error) {
	payload, err := json.Marshal(pub)
	if err != nil {
		return nil, false, fmt.Errorf("marshal publication: %w", err)
	}

	query := `
		INSERT INTO publications (publish_id, prediction_id, channel, game_id, sport, is_official, published_at, payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (prediction_id, channel) DO NOTHING
	`
	res, err := p.db.ExecContext(ctx, query,
		pub.PublishID, pub.PredictionID, string(pub.Channel), pub.GameID,
		string(pub.Sport), pub.IsOfficial, pub.PublishedAt, payload,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert publication: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 1 {
		return &pub, true, nil
	}

	existing, err := p.GetPublication(ctx, pub.PredictionID, pub.Channel)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetPublication fetches one publication by its uniqueness key
func (p *Postgres) GetPublication(ctx context.Context, predictionID string, channel models.Channel) (*models.PublishedPrediction, error) {
	query := `
		SELECT payload, is_official, void_reason FROM publications
		WHERE prediction_id = $1 AND channel = $2
	`
	var payload []byte
	var isOfficial bool
	var voidReason sql.NullString
	if err := p.db.QueryRowContext(ctx, query, predictionID, string(channel)).
		Scan(&payload, &isOfficial, &voidReason); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan publication: %w", err)
	}

	var pub models.PublishedPrediction
	if err := json.Unmarshal(payload, &pub); err != nil {
		return nil, fmt.Errorf("unmarshal publication: %w", err)
	}
	// Void state lives in columns so the immutable payload stays untouched
	pub.IsOfficial = isOfficial
	if voidReason.Valid {
		pub.VoidReason = &voidReason.String
	}
	return &pub, nil
}

// ListOfficial returns the official track record for a sport, newest first
func (p *Postgres) ListOfficial(ctx context.Context, sport models.Sport, limit, offset int) ([]models.PublishedPrediction, error) {
	query := `
		SELECT payload FROM publications
		WHERE sport = $1 AND is_official = TRUE
		ORDER BY published_at DESC
		LIMIT $2 OFFSET $3
	`
	return p.listPublications(ctx, query, string(sport), limit, offset)
}

// ListUngraded returns official publications with no grading yet
func (p *Postgres) ListUngraded(ctx context.Context, sport models.Sport) ([]models.PublishedPrediction, error) {
	query := `
		SELECT payload FROM publications
		WHERE sport = $1 AND is_official = TRUE AND graded = FALSE
		ORDER BY published_at ASC
	`
	return p.listPublications(ctx, query, string(sport))
}

func (p *Postgres) listPublications(ctx context.Context, query string, args ...interface{}) ([]models.PublishedPrediction, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query publications: %w", err)
	}
	defer rows.Close()

	var pubs []models.PublishedPrediction
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan publication: %w", err)
		}
		var pub models.PublishedPrediction
		if err := json.Unmarshal(payload, &pub); err != nil {
			return nil, fmt.Errorf("unmarshal publication: %w", err)
		}
		pubs = append(pubs, pub)
	}
	return pubs, rows.Err()
}

// Void flips is_official off with a reason. The record remains.
func (p *Postgres) Void(ctx context.Context, publishID string, reason string) error {
	query := `
		UPDATE publications
		SET is_official = FALSE, void_reason = $2
		WHERE publish_id = $1
	`
	res, err := p.db.ExecContext(ctx, query, publishID, reason)
	if err != nil {
		return fmt.Errorf("void publication: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no publication %s", publishID)
	}
	return nil
}
