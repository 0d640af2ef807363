package domain

// StepKind identifies the phase a recalculation step belongs to.
type StepKind string

const (
	StepValidation        StepKind = "validation"
	StepBaseUpdate        StepKind = "base_update"
	StepIndexCalculation  StepKind = "index_calculation"
	StepExternalSync      StepKind = "external_sync"
	StepCacheInvalidation StepKind = "cache_invalidation"
)

// StepStatus is the progress state of a single step.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepError      StepStatus = "error"
)

// RecalculationStep is one entry of a recalculation plan. Steps live only for the
// duration of a request and are never persisted.
type RecalculationStep struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Kind    StepKind `json:"kind"`
	AssetID string   `json:"assetId,omitempty"`
	Formula string   `json:"formula,omitempty"`
	// DependsOn is informational only; execution follows plan order.
	DependsOn  []string   `json:"dependsOn"`
	Status     StepStatus `json:"status"`
	DurationMs *int64     `json:"durationMs,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Step id builders shared by the plan generator and its consumers.
const (
	ValidationStepID        = "validation"
	ExternalSyncStepID      = "external_sync"
	CacheInvalidationStepID = "cache_invalidation"
)

// BaseUpdateStepID returns the step id for a directly edited asset.
func BaseUpdateStepID(assetID string) string {
	return string(StepBaseUpdate) + "_" + assetID
}

// IndexCalculationStepID returns the step id for a recalculated dependent asset.
func IndexCalculationStepID(assetID string) string {
	return string(StepIndexCalculation) + "_" + assetID
}
