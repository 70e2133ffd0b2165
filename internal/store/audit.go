package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// AuditStore writes the append-only audit log over its own connection pool.
// The DSN must authenticate as the restricted audit role, which holds INSERT
// and SELECT only; UPDATE and DELETE fail at the database even if the engine
// is compromised.
type AuditStore struct {
	db *sql.DB
}

// OpenAudit connects to PostgreSQL as the audit role
func OpenAudit(dsn string) (*AuditStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &AuditStore{db: db}, nil
}

// Ping checks connectivity
func (a *AuditStore) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Close releases the connection pool
func (a *AuditStore) Close() error {
	return a.db.Close()
}

// Insert appends one audit record
func (a *AuditStore) Insert(ctx context.Context, record models.AuditRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	query := `
		INSERT INTO decision_audit (inputs_hash, logged_at, expires_at, payload)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := a.db.ExecContext(ctx, query,
		record.InputsHash, record.LoggedAt, record.RetentionExpiresAt, payload,
	); err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// Find returns all audit records for an inputs hash, oldest first
func (a *AuditStore) Find(ctx context.Context, inputsHash string) ([]models.AuditRecord, error) {
	query := `
		SELECT payload FROM decision_audit
		WHERE inputs_hash = $1
		ORDER BY logged_at ASC
	`
	rows, err := a.db.QueryContext(ctx, query, inputsHash)
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	defer rows.Close()

	var records []models.AuditRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		var record models.AuditRecord
		if err := json.Unmarshal(payload, &record); err != nil {
			return nil, fmt.Errorf("unmarshal audit record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}
