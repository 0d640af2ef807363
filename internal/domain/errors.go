package domain

import (
	"fmt"
	"strings"
)

// InvalidEditError reports an attempt to edit an asset that cannot be edited directly.
type InvalidEditError struct {
	AssetID string
	Reason  string
}

func (e *InvalidEditError) Error() string {
	if e.AssetID == "" {
		return "invalid edit: " + e.Reason
	}
	return fmt.Sprintf("invalid edit of %q: %s", e.AssetID, e.Reason)
}

// MissingInputError reports that a valuation input has no value available.
type MissingInputError struct {
	AssetID string
	Input   string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input %q for %q", e.Input, e.AssetID)
}

// CyclicDependencyError reports a dependency cycle. Path starts and ends on the same id.
type CyclicDependencyError struct {
	Path []string
}

func (e *CyclicDependencyError) Error() string {
	return "dependency cycle detected: " + strings.Join(e.Path, " -> ")
}

// TransactionConflictError reports that a store transaction kept conflicting with
// concurrent writers until retries were exhausted.
type TransactionConflictError struct {
	Attempts int
	Err      error
}

func (e *TransactionConflictError) Error() string {
	return fmt.Sprintf("transaction conflict after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransactionConflictError) Unwrap() error { return e.Err }

// ExternalSyncError reports a failed webhook trigger. StatusCode is zero for network errors.
type ExternalSyncError struct {
	StatusCode int
	Err        error
}

func (e *ExternalSyncError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("external sync failed with HTTP %d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("external sync failed: %v", e.Err)
}

func (e *ExternalSyncError) Unwrap() error { return e.Err }

// ConfigurationError reports an invalid registry or catalog configuration.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "invalid configuration: " + e.Reason
}
