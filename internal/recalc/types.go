package recalc

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ucsindex/engine/internal/domain"
)

// State is the phase an execution is in.
type State string

const (
	StateValidating            State = "validating"
	StateUpdatingBase          State = "updating_base"
	StateCalculatingDependents State = "calculating_dependents"
	StateSyncingExternal       State = "syncing_external"
	StateUpdatingCache         State = "updating_cache"
	StateDone                  State = "done"
	StateError                 State = "error"
)

// Edit sets a base asset to a new value.
type Edit struct {
	AssetID string          `json:"assetId" validate:"required"`
	Value   decimal.Decimal `json:"value"`
}

// Request describes one recalculation. Edits are applied in the given order.
type Request struct {
	TargetDate time.Time
	Edits      []Edit
	User       string
}

// EditedIDs returns the edited asset ids in request order.
func (r Request) EditedIDs() []string {
	ids := make([]string, len(r.Edits))
	for i, e := range r.Edits {
		ids[i] = e.AssetID
	}
	return ids
}

// EditMap returns the edits keyed by asset id.
func (r Request) EditMap() map[string]decimal.Decimal {
	m := make(map[string]decimal.Decimal, len(r.Edits))
	for _, e := range r.Edits {
		m[e.AssetID] = e.Value
	}
	return m
}

// Progress is reported to the caller as steps start and finish. It is advisory only.
type Progress struct {
	State                State  `json:"state"`
	CurrentStep          string `json:"currentStep"`
	CompletedSteps       int    `json:"completedSteps"`
	TotalSteps           int    `json:"totalSteps"`
	Percentage           int    `json:"percentage"`
	EstimatedRemainingMs int64  `json:"estimatedRemainingMs"`
}

// ProgressFunc receives progress updates. It is called synchronously from Execute.
type ProgressFunc func(Progress)

// Result is the outcome of Execute. Steps show exactly where a failed run stopped.
type Result struct {
	ID                    uuid.UUID                  `json:"id"`
	Success               bool                       `json:"success"`
	Message               string                     `json:"message"`
	TargetDate            string                     `json:"targetDate"`
	AffectedAssets        []string                   `json:"affectedAssets"`
	ExecutionTimeMs       int64                      `json:"executionTimeMs"`
	ExternalSyncTriggered bool                       `json:"externalSyncTriggered"`
	Steps                 []domain.RecalculationStep `json:"steps"`
}

// Preview is a plan computed without executing it.
type Preview struct {
	TargetDate          string                     `json:"targetDate"`
	AffectedAssets      []string                   `json:"affectedAssets"`
	EstimatedDurationMs int64                      `json:"estimatedDurationMs"`
	Steps               []domain.RecalculationStep `json:"steps"`
}
