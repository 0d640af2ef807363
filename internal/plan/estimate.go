package plan

import (
	"time"

	"github.com/samber/lo"

	"github.com/ucsindex/engine/internal/domain"
)

// Per-asset costs used for progress estimates only.
var kindCost = map[domain.CalculationKind]time.Duration{
	domain.KindBase:       100 * time.Millisecond,
	domain.KindCalculated: 250 * time.Millisecond,
	domain.KindSubIndex:   400 * time.Millisecond,
	domain.KindIndex:      600 * time.Millisecond,
}

const (
	externalSyncCost = 2 * time.Second
	overheadCost     = 50 * time.Millisecond
)

// EstimateDuration gives a coarse duration for recalculating ids and everything that
// depends on them.
func (g *Generator) EstimateDuration(ids []string) time.Duration {
	var total time.Duration
	for _, id := range lo.Union(ids, g.registry.AffectedSet(ids)) {
		if a, ok := g.registry.Get(id); ok {
			total += kindCost[a.Kind]
		}
	}
	if g.externalSync {
		total += externalSyncCost
	}
	return total
}

// StepCost is the estimated duration of a single plan step.
func (g *Generator) StepCost(step domain.RecalculationStep) time.Duration {
	switch step.Kind {
	case domain.StepExternalSync:
		return externalSyncCost
	case domain.StepValidation, domain.StepCacheInvalidation:
		return overheadCost
	}
	if a, ok := g.registry.Get(step.AssetID); ok {
		return kindCost[a.Kind]
	}
	return overheadCost
}

// Remaining estimates the time left for every step that has not completed.
func (g *Generator) Remaining(steps []domain.RecalculationStep) time.Duration {
	var total time.Duration
	for _, s := range steps {
		if s.Status == domain.StepPending || s.Status == domain.StepInProgress {
			total += g.StepCost(s)
		}
	}
	return total
}
