package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus records how a quote's current value was produced.
type QuoteStatus string

const (
	QuoteStatusManualEdit     QuoteStatus = "manual_edit"
	QuoteStatusAutoCalculated QuoteStatus = "auto_calculated"
	QuoteStatusRecalculated   QuoteStatus = "recalculated"
)

// Quote is the value of one asset for one business day.
// A quote is keyed by (AssetID, Date); edits and recalculations update it in place.
type Quote struct {
	AssetID   string          `json:"assetId"`
	Date      time.Time       `json:"date"`
	Timestamp time.Time       `json:"timestamp"`
	Value     decimal.Decimal `json:"value"`
	// LegacyValue mirrors Value for readers of the old "ultimo" field.
	LegacyValue decimal.Decimal            `json:"ultimo"`
	Status      QuoteStatus                `json:"status"`
	Source      string                     `json:"source"`
	Components  map[string]decimal.Decimal `json:"components,omitempty"`
	Conversions map[string]decimal.Decimal `json:"conversions,omitempty"`
}

// NewSeedQuote returns the zero-valued quote created the first time an asset is touched on a date.
func NewSeedQuote(assetID string, date time.Time, now time.Time) Quote {
	return Quote{
		AssetID:     assetID,
		Date:        NormalizeDate(date),
		Timestamp:   now,
		Value:       decimal.Zero,
		LegacyValue: decimal.Zero,
		Status:      QuoteStatusAutoCalculated,
		Source:      "seed",
	}
}

// SetValue updates the value and its legacy mirror together.
func (q *Quote) SetValue(v decimal.Decimal) {
	q.Value = v
	q.LegacyValue = v
}
