package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditAction is the kind of change an audit entry records.
type AuditAction string

const (
	AuditEdit        AuditAction = "edit"
	AuditRecalculate AuditAction = "recalculate"
	AuditCreate      AuditAction = "create"
	AuditDelete      AuditAction = "delete"
)

// AuditLogEntry is an append-only record of a change to a quote.
type AuditLogEntry struct {
	ID             uuid.UUID       `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Action         AuditAction     `json:"action"`
	AssetID        string          `json:"assetId"`
	AssetName      string          `json:"assetName"`
	OldValue       decimal.Decimal `json:"oldValue"`
	NewValue       decimal.Decimal `json:"newValue"`
	User           string          `json:"user"`
	AffectedAssets []string        `json:"affectedAssets"`
	TargetDate     time.Time       `json:"targetDate"`
}
