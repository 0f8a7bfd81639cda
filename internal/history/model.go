package history

import (
	"context"
	"errors"
	"time"
)

// OutcomeOK marks a request that produced an AnalysisResult. Failed
// requests store the dispatch error kind instead.
const OutcomeOK = "ok"

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

var ErrInvalidRecord = errors.New("invalid history record")

// Record is one dispatched analysis and how it ended.
type Record struct {
	ID            string
	RequestID     string
	Text          string
	Outcome       string
	Sentiment     string
	Confidence    *float64
	WorkerStatus  string
	ExitCode      *int
	DurationMs    int64
	ExtraMessages int
	CreatedAt     time.Time
}

// Repo persists analysis records.
type Repo interface {
	Save(ctx context.Context, rec Record) error
	ListRecent(ctx context.Context, limit int) ([]Record, error)
}

func validate(rec Record) error {
	if rec.ID == "" || rec.Outcome == "" {
		return ErrInvalidRecord
	}
	return nil
}

// ClampLimit maps a requested page size onto [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
