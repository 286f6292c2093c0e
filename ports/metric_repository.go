package ports

import (
	"context"
	"time"

	"variatio/domain/core"
	"variatio/domain/metric"
)

// SessionRecord is the persisted header of an analysis session
type SessionRecord struct {
	ID            core.SessionID `json:"id" db:"id"`
	ControlArm    string         `json:"control_arm" db:"control_arm"`
	TreatmentArms []string       `json:"treatment_arms" db:"-"`
	Mode          string         `json:"mode" db:"mode"`
	Correction    string         `json:"correction" db:"correction"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
}

// MetricRepository persists computed metrics per session
type MetricRepository interface {
	// SaveSession stores a session header and its metrics in order.
	SaveSession(ctx context.Context, session SessionRecord, metrics []metric.Metric) error
	GetSession(ctx context.Context, id core.SessionID) (*SessionRecord, error)
	ListBySession(ctx context.Context, id core.SessionID) ([]metric.Metric, error)
}
