// Package pipeline assembles the three recurring stages: ranked-player
// crawl, per-player match-id crawl, and match payload ingestion.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RunContext identifies one stage run. TS is the wall-clock second the
// run started; every row the run writes carries RunID for rollback.
type RunContext struct {
	TS       int64
	RunID    uuid.UUID
	Pipeline string
}

// NewRunContext stamps a fresh run.
func NewRunContext(pipeline string) RunContext {
	return RunContext{
		TS:       time.Now().Unix(),
		RunID:    uuid.New(),
		Pipeline: pipeline,
	}
}

// Stage is one load/collect/save pipeline run.
type Stage interface {
	Name() string
	Run(ctx context.Context) error
}
