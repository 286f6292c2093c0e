package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"variatio/domain/core"
	"variatio/domain/metric"
	"variatio/internal/errors"
	"variatio/ports"
)

// metricRow is the metric_results row layout
type metricRow struct {
	ID            string         `db:"id"`
	SessionID     string         `db:"session_id"`
	Position      int            `db:"position"`
	Kind          string         `db:"kind"`
	EventName     string         `db:"event_name"`
	AttributeName sql.NullString `db:"attribute_name"`
	Method        string         `db:"method"`
	Degraded      bool           `db:"degraded"`
	Result        []byte         `db:"result"`
	ComputedAt    time.Time      `db:"computed_at"`
}

type sessionRow struct {
	ID            string    `db:"id"`
	ControlArm    string    `db:"control_arm"`
	TreatmentArms []byte    `db:"treatment_arms"`
	Mode          string    `db:"mode"`
	Correction    string    `db:"correction"`
	CreatedAt     time.Time `db:"created_at"`
}

// MetricRepository stores analysis sessions and their metrics in PostgreSQL
type MetricRepository struct {
	db *sqlx.DB
}

// NewMetricRepository creates a new metric repository
func NewMetricRepository(db *sqlx.DB) ports.MetricRepository {
	return &MetricRepository{db: db}
}

// SaveSession writes the session header and every metric in one transaction
func (r *MetricRepository) SaveSession(ctx context.Context, session ports.SessionRecord, metrics []metric.Metric) error {
	arms, err := json.Marshal(session.TreatmentArms)
	if err != nil {
		return fmt.Errorf("failed to marshal treatment arms: %w", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.DatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_sessions (id, control_arm, treatment_arms, mode, correction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		session.ID.String(), session.ControlArm, arms, session.Mode, session.Correction, session.CreatedAt)
	if err != nil {
		return errors.DatabaseError("failed to insert analysis session", err)
	}

	for i, m := range metrics {
		row, err := toMetricRow(session.ID, i, m)
		if err != nil {
			return err
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO metric_results (
				id, session_id, position, kind, event_name, attribute_name,
				method, degraded, result, computed_at
			) VALUES (
				:id, :session_id, :position, :kind, :event_name, :attribute_name,
				:method, :degraded, :result, :computed_at
			)`, row)
		if err != nil {
			return errors.DatabaseError(fmt.Sprintf("failed to insert metric %s", m.ID), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.DatabaseError("failed to commit analysis session", err)
	}
	return nil
}

// GetSession loads a session header
func (r *MetricRepository) GetSession(ctx context.Context, id core.SessionID) (*ports.SessionRecord, error) {
	var row sessionRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, control_arm, treatment_arms, mode, correction, created_at
		FROM analysis_sessions
		WHERE id = $1`, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.WithCode(errors.CodeNotFound, fmt.Errorf("%w: session %s", core.ErrNotFound, id))
		}
		return nil, errors.DatabaseError("failed to get analysis session", err)
	}

	record := &ports.SessionRecord{
		ID:         core.SessionID(row.ID),
		ControlArm: row.ControlArm,
		Mode:       row.Mode,
		Correction: row.Correction,
		CreatedAt:  row.CreatedAt,
	}
	if err := json.Unmarshal(row.TreatmentArms, &record.TreatmentArms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal treatment arms: %w", err)
	}
	return record, nil
}

// ListBySession returns a session's metrics in computation order
func (r *MetricRepository) ListBySession(ctx context.Context, id core.SessionID) ([]metric.Metric, error) {
	var rows []metricRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, session_id, position, kind, event_name, attribute_name,
			   method, degraded, result, computed_at
		FROM metric_results
		WHERE session_id = $1
		ORDER BY position ASC`, id.String())
	if err != nil {
		return nil, errors.DatabaseError("failed to list metrics", err)
	}

	metrics := make([]metric.Metric, 0, len(rows))
	for _, row := range rows {
		m, err := fromMetricRow(row)
		if err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	return metrics, nil
}

func toMetricRow(sessionID core.SessionID, position int, m metric.Metric) (metricRow, error) {
	payload, err := json.Marshal(m.Result)
	if err != nil {
		return metricRow{}, fmt.Errorf("failed to marshal result of metric %s: %w", m.ID, err)
	}
	return metricRow{
		ID:            m.ID.String(),
		SessionID:     sessionID.String(),
		Position:      position,
		Kind:          string(m.Definition.Kind),
		EventName:     m.Definition.EventName,
		AttributeName: sql.NullString{String: m.Definition.AttributeName, Valid: m.Definition.AttributeName != ""},
		Method:        string(m.Result.Method()),
		Degraded:      m.Result.Degraded(),
		Result:        payload,
		ComputedAt:    m.ComputedAt,
	}, nil
}

func fromMetricRow(row metricRow) (metric.Metric, error) {
	var result metric.Result
	if err := json.Unmarshal(row.Result, &result); err != nil {
		return metric.Metric{}, fmt.Errorf("failed to unmarshal result of metric %s: %w", row.ID, err)
	}
	return metric.Metric{
		ID: core.MetricID(row.ID),
		Definition: metric.Definition{
			Kind:          metric.Kind(row.Kind),
			EventName:     row.EventName,
			AttributeName: row.AttributeName.String,
		},
		Result:     result,
		ComputedAt: row.ComputedAt,
	}, nil
}
