package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/decision-engine/pkg/models"
)

// Logger writes the append-only decision audit log. Auditing is on the hot
// path: if the write fails the decision must not be emitted, so Record
// returns the error instead of swallowing it.
type Logger struct {
	writer        contracts.AuditWriter
	engineVersion string
	log           zerolog.Logger
	now           func() time.Time
}

// NewLogger creates an audit logger bound to an engine version
func NewLogger(writer contracts.AuditWriter, engineVersion string, log zerolog.Logger) *Logger {
	return &Logger{
		writer:        writer,
		engineVersion: engineVersion,
		log:           log.With().Str("component", "audit").Logger(),
		now:           time.Now,
	}
}

// Record appends one audit entry for a produced decision
func (l *Logger) Record(ctx context.Context, d models.MarketDecision) error {
	record := models.NewAuditRecord(d, l.engineVersion, l.now())

	if err := l.writer.Insert(ctx, record); err != nil {
		l.log.Error().Err(err).Str("inputs_hash", d.InputsHash).Msg("audit insert failed, decision withheld")
		return fmt.Errorf("audit insert: %w", err)
	}

	return nil
}

// Trace returns all audit entries for an inputs hash
func (l *Logger) Trace(ctx context.Context, inputsHash string) ([]models.AuditRecord, error) {
	records, err := l.writer.Find(ctx, inputsHash)
	if err != nil {
		return nil, fmt.Errorf("audit find: %w", err)
	}
	return records, nil
}
