package plan

import (
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/ucsindex/engine/internal/dependency"
	"github.com/ucsindex/engine/internal/domain"
)

// Generator turns a set of edited base assets into an ordered recalculation plan.
type Generator struct {
	registry     *dependency.Registry
	externalSync bool
}

// NewGenerator creates a plan generator. externalSync controls whether plans carry an
// external_sync step.
func NewGenerator(registry *dependency.Registry, externalSync bool) *Generator {
	return &Generator{registry: registry, externalSync: externalSync}
}

// ExternalSyncEnabled reports whether generated plans include an external sync step.
func (g *Generator) ExternalSyncEnabled() bool { return g.externalSync }

// Generate builds the plan: validation, one base update per edited asset in the given
// order, one index calculation per dependent in calculation order, the optional external
// sync, and cache invalidation. targetDate is only used for step labels.
func (g *Generator) Generate(edited []string, targetDate time.Time) ([]domain.RecalculationStep, error) {
	edited = lo.Uniq(edited)
	for _, id := range edited {
		if _, ok := g.registry.Get(id); !ok {
			return nil, fmt.Errorf("%w: %q", dependency.ErrUnknownAsset, id)
		}
	}

	dependents, err := g.Dependents(edited)
	if err != nil {
		return nil, err
	}

	editedSet := lo.SliceToMap(edited, func(id string) (string, bool) { return id, true })
	stepIDFor := func(assetID string) string {
		if editedSet[assetID] {
			return domain.BaseUpdateStepID(assetID)
		}
		return domain.IndexCalculationStepID(assetID)
	}

	steps := make([]domain.RecalculationStep, 0, len(edited)+len(dependents)+3)
	steps = append(steps, newStep(domain.ValidationStepID, "Validate edits", domain.StepValidation))

	for _, id := range edited {
		a, _ := g.registry.Get(id)
		s := newStep(domain.BaseUpdateStepID(id), "Update "+a.Name, domain.StepBaseUpdate)
		s.AssetID = id
		s.Formula = a.Formula
		steps = append(steps, s)
	}

	for _, id := range dependents {
		a, _ := g.registry.Get(id)
		s := newStep(domain.IndexCalculationStepID(id), "Recalculate "+a.Name, domain.StepIndexCalculation)
		s.AssetID = id
		s.Formula = a.Formula
		steps = append(steps, s)
	}

	existing := lo.SliceToMap(steps, func(s domain.RecalculationStep) (string, bool) { return s.ID, true })
	for i := range steps {
		if steps[i].AssetID == "" {
			continue
		}
		a, _ := g.registry.Get(steps[i].AssetID)
		for _, dep := range a.DependsOn {
			if id := stepIDFor(dep); existing[id] {
				steps[i].DependsOn = append(steps[i].DependsOn, id)
			}
		}
	}

	if g.externalSync {
		steps = append(steps, newStep(domain.ExternalSyncStepID, "Trigger external recalculation for "+domain.FormatISODate(targetDate), domain.StepExternalSync))
	}
	steps = append(steps, newStep(domain.CacheInvalidationStepID, "Invalidate cached quotes", domain.StepCacheInvalidation))

	return steps, nil
}

// Dependents returns the assets to recalculate for the edited ids, in calculation order,
// excluding the edited ids themselves.
func (g *Generator) Dependents(edited []string) ([]string, error) {
	affected := g.registry.AffectedSet(edited)
	order, err := g.registry.CalculationOrder(lo.Union(affected, edited))
	if err != nil {
		return nil, fmt.Errorf("ordering dependents: %w", err)
	}
	return lo.Without(order, edited...), nil
}

func newStep(id, name string, kind domain.StepKind) domain.RecalculationStep {
	return domain.RecalculationStep{
		ID:        id,
		Name:      name,
		Kind:      kind,
		DependsOn: []string{},
		Status:    domain.StepPending,
	}
}
