package dependency

import (
	"fmt"
	"slices"

	"github.com/samber/lo"

	"github.com/ucsindex/engine/internal/domain"
)

// Registry is the immutable asset dependency graph. It is validated when built and
// never mutated afterwards, so it can be shared freely between goroutines.
type Registry struct {
	version    string
	assets     []domain.AssetDependency
	byID       map[string]int
	dependents map[string][]string
}

// NewRegistry builds and validates a registry. Assets keep their declaration order,
// which is also the tie-break order of every graph algorithm.
func NewRegistry(version string, assets []domain.AssetDependency) (*Registry, error) {
	r, err := buildGraph(version, assets)
	if err != nil {
		return nil, err
	}
	if err := r.checkAcyclic(); err != nil {
		return nil, err
	}
	return r, nil
}

// buildGraph indexes assets and checks everything except acyclicity.
func buildGraph(version string, assets []domain.AssetDependency) (*Registry, error) {
	r := &Registry{
		version:    version,
		assets:     make([]domain.AssetDependency, 0, len(assets)),
		byID:       make(map[string]int, len(assets)),
		dependents: make(map[string][]string),
	}

	for _, a := range assets {
		if a.ID == "" {
			return nil, &domain.ConfigurationError{Reason: "asset with empty id"}
		}
		if _, dup := r.byID[a.ID]; dup {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("duplicate asset id %q", a.ID)}
		}
		if !a.Kind.Valid() {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("asset %q has unknown kind %q", a.ID, a.Kind)}
		}
		a.DependsOn = lo.Uniq(slices.Clone(a.DependsOn))
		r.byID[a.ID] = len(r.assets)
		r.assets = append(r.assets, a)
	}

	for _, a := range r.assets {
		if a.IsBase() && len(a.DependsOn) > 0 {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("base asset %q must not depend on other assets", a.ID)}
		}
		if !a.IsBase() && len(a.DependsOn) == 0 {
			return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("derived asset %q has no inputs", a.ID)}
		}
		for _, dep := range a.DependsOn {
			if _, ok := r.byID[dep]; !ok {
				return nil, &domain.ConfigurationError{Reason: fmt.Sprintf("asset %q depends on unknown asset %q", a.ID, dep)}
			}
			r.dependents[dep] = append(r.dependents[dep], a.ID)
		}
	}

	return r, nil
}

// Version identifies the configuration the registry was loaded from.
func (r *Registry) Version() string { return r.version }

// Get returns the registry entry for id.
func (r *Registry) Get(id string) (domain.AssetDependency, bool) {
	i, ok := r.byID[id]
	if !ok {
		return domain.AssetDependency{}, false
	}
	return cloneAsset(r.assets[i]), true
}

// All returns every asset in declaration order.
func (r *Registry) All() []domain.AssetDependency {
	return lo.Map(r.assets, func(a domain.AssetDependency, _ int) domain.AssetDependency {
		return cloneAsset(a)
	})
}

// Dependents returns the assets that list id as a direct input.
func (r *Registry) Dependents(id string) []string {
	return slices.Clone(r.dependents[id])
}

// Names maps asset ids to display names.
func (r *Registry) Names() map[string]string {
	return lo.SliceToMap(r.assets, func(a domain.AssetDependency) (string, string) {
		return a.ID, a.Name
	})
}

// checkAcyclic runs a three-colour DFS over the whole graph and reports the first
// back-edge as a cycle path.
func (r *Registry) checkAcyclic() error {
	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(r.assets))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return &domain.CyclicDependencyError{Path: cyclePath(stack, id)}
		}
		state[id] = visiting
		stack = append(stack, id)
		for _, dep := range r.assets[r.byID[id]].DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		state[id] = done
		return nil
	}

	for _, a := range r.assets {
		if err := visit(a.ID); err != nil {
			return err
		}
	}
	return nil
}

// cyclePath extracts the cycle ending at id from the DFS stack, closing it on id.
func cyclePath(stack []string, id string) []string {
	start := slices.Index(stack, id)
	if start < 0 {
		return []string{id, id}
	}
	path := slices.Clone(stack[start:])
	return append(path, id)
}

func cloneAsset(a domain.AssetDependency) domain.AssetDependency {
	a.DependsOn = slices.Clone(a.DependsOn)
	return a
}
