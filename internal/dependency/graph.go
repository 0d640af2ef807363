package dependency

import (
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/ucsindex/engine/internal/domain"
)

// ErrUnknownAsset indicates an id that is not part of the registry.
var ErrUnknownAsset = errors.New("unknown asset")

// AffectedSet returns every asset that depends, directly or transitively, on at least
// one of the changed ids. The changed ids themselves are never part of the result.
// Output follows registry declaration order.
func (r *Registry) AffectedSet(changed []string) []string {
	changedSet := lo.SliceToMap(changed, func(id string) (string, bool) { return id, true })
	visited := make(map[string]bool)

	frontier := lo.Uniq(changed)
	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			for _, dep := range r.dependents[id] {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				next = append(next, dep)
			}
		}
		frontier = next
	}

	var affected []string
	for _, a := range r.assets {
		if visited[a.ID] && !changedSet[a.ID] {
			affected = append(affected, a.ID)
		}
	}
	return affected
}

// CalculationOrder returns ids ordered so that each appears after every one of its
// inputs that is also in ids. Inputs outside ids are treated as already known.
// Ties keep the order of ids.
func (r *Registry) CalculationOrder(ids []string) ([]string, error) {
	subset := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := r.byID[id]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAsset, id)
		}
		subset[id] = true
	}

	visited := make(map[string]bool, len(ids))
	inProgress := make(map[string]bool)
	var stack []string
	ordered := make([]string, 0, len(subset))

	var visit func(id string) error
	visit = func(id string) error {
		if visited[id] {
			return nil
		}
		if inProgress[id] {
			return &domain.CyclicDependencyError{Path: cyclePath(stack, id)}
		}
		inProgress[id] = true
		stack = append(stack, id)

		for _, dep := range r.assets[r.byID[id]].DependsOn {
			if !subset[dep] {
				continue
			}
			if err := visit(dep); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(inProgress, id)
		visited[id] = true
		ordered = append(ordered, id)
		return nil
	}

	for _, id := range ids {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// ValidateEditable rejects ids that are unknown or not directly editable.
func (r *Registry) ValidateEditable(ids []string) error {
	for _, id := range ids {
		a, ok := r.Get(id)
		if !ok {
			return &domain.InvalidEditError{AssetID: id, Reason: "asset not found in registry"}
		}
		if !a.Kind.Editable() {
			return &domain.InvalidEditError{AssetID: id, Reason: fmt.Sprintf("%s assets are derived and cannot be edited", a.Kind)}
		}
	}
	return nil
}
