package dependency

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ucsindex/engine/internal/domain"
)

func defaultRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := Default()
	require.NoError(t, err)
	return reg
}

func TestDefaultRegistryLoads(t *testing.T) {
	reg := defaultRegistry(t)

	assert.Equal(t, "2025.1", reg.Version())
	assert.Len(t, reg.All(), 17)

	pdm, ok := reg.Get("pdm")
	require.True(t, ok)
	assert.Equal(t, domain.KindIndex, pdm.Kind)
	assert.Equal(t, []string{"valor_uso_solo"}, pdm.DependsOn)

	_, ok = reg.Get("bitcoin")
	assert.False(t, ok)
}

func TestGetReturnsCopy(t *testing.T) {
	reg := defaultRegistry(t)

	vus, _ := reg.Get("vus")
	vus.DependsOn[0] = "tampered"

	again, _ := reg.Get("vus")
	assert.Equal(t, "boi_gordo", again.DependsOn[0])
}

func TestAffectedSetBoiGordo(t *testing.T) {
	reg := defaultRegistry(t)

	got := reg.AffectedSet([]string{"boi_gordo"})
	assert.Equal(t, []string{"vus", "valor_uso_solo", "pdm", "ucs", "ucs_ase"}, got)

	order, err := reg.CalculationOrder(got)
	require.NoError(t, err)
	assert.Less(t, slices.Index(order, "vus"), slices.Index(order, "valor_uso_solo"))
}

func TestAffectedSetUSDReachesConversions(t *testing.T) {
	reg := defaultRegistry(t)

	got := reg.AffectedSet([]string{"usd"})
	assert.ElementsMatch(t, []string{"vus", "vmad", "valor_uso_solo", "pdm", "ucs", "ucs_ase"}, got)
	assert.NotContains(t, got, "carbono_crs")
}

func TestAffectedSetExcludesChangedAndIsClosed(t *testing.T) {
	reg := defaultRegistry(t)

	for _, a := range reg.All() {
		got := reg.AffectedSet([]string{a.ID})
		assert.NotContains(t, got, a.ID, "affected set of %s contains itself", a.ID)

		inSet := make(map[string]bool, len(got))
		for _, id := range got {
			inSet[id] = true
		}
		for _, id := range got {
			for _, dependent := range reg.Dependents(id) {
				assert.True(t, inSet[dependent], "%s: dependent %s of %s missing", a.ID, dependent, id)
			}
		}
		for _, dependent := range reg.Dependents(a.ID) {
			assert.True(t, inSet[dependent], "%s: direct dependent %s missing", a.ID, dependent)
		}
	}
}

func TestAffectedSetOfLeafIndexIsEmpty(t *testing.T) {
	reg := defaultRegistry(t)
	assert.Empty(t, reg.AffectedSet([]string{"ucs_ase"}))
	assert.Empty(t, reg.AffectedSet(nil))
}

func TestAffectedSetMultipleChangedExcludesAll(t *testing.T) {
	reg := defaultRegistry(t)

	got := reg.AffectedSet([]string{"carbono", "carbono_crs"})
	assert.NotContains(t, got, "carbono_crs")
	assert.Equal(t, []string{"crs_total", "valor_uso_solo", "pdm", "ucs", "ucs_ase"}, got)
}

func TestCalculationOrderTopologicalForRandomSubsets(t *testing.T) {
	reg := defaultRegistry(t)
	all := reg.All()
	rng := rand.New(rand.NewPCG(7, 11))

	for range 200 {
		var subset []string
		for _, a := range all {
			if rng.IntN(2) == 0 {
				subset = append(subset, a.ID)
			}
		}
		rng.Shuffle(len(subset), func(i, j int) { subset[i], subset[j] = subset[j], subset[i] })

		order, err := reg.CalculationOrder(subset)
		require.NoError(t, err)
		assert.ElementsMatch(t, subset, order)

		pos := make(map[string]int, len(order))
		for i, id := range order {
			pos[id] = i
		}
		for _, id := range order {
			a, _ := reg.Get(id)
			for _, dep := range a.DependsOn {
				if p, ok := pos[dep]; ok {
					assert.Less(t, p, pos[id], "%s must come after %s", id, dep)
				}
			}
		}
	}
}

func TestCalculationOrderDeterministic(t *testing.T) {
	reg := defaultRegistry(t)
	ids := []string{"ucs_ase", "vmad", "agua_crs", "valor_uso_solo", "crs_total"}

	first, err := reg.CalculationOrder(ids)
	require.NoError(t, err)
	for range 10 {
		again, err := reg.CalculationOrder(ids)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []string{"ucs_ase", "vmad", "agua_crs", "crs_total", "valor_uso_solo"}, first)
}

func TestCalculationOrderUnknownAsset(t *testing.T) {
	reg := defaultRegistry(t)
	_, err := reg.CalculationOrder([]string{"vus", "nope"})
	assert.ErrorIs(t, err, ErrUnknownAsset)
}

func TestCalculationOrderDetectsCycle(t *testing.T) {
	// buildGraph skips the acyclicity check so the traversal guard itself is exercised.
	reg, err := buildGraph("test", []domain.AssetDependency{
		{ID: "a", Kind: domain.KindIndex, DependsOn: []string{"c"}},
		{ID: "b", Kind: domain.KindIndex, DependsOn: []string{"a"}},
		{ID: "c", Kind: domain.KindIndex, DependsOn: []string{"b"}},
	})
	require.NoError(t, err)

	_, err = reg.CalculationOrder([]string{"a", "b", "c"})
	var cycle *domain.CyclicDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"a", "c", "b", "a"}, cycle.Path)

	// AffectedSet must still terminate on a malformed graph.
	assert.ElementsMatch(t, []string{"b", "c"}, reg.AffectedSet([]string{"a"}))
}

func TestNewRegistryRejectsCycle(t *testing.T) {
	_, err := NewRegistry("test", []domain.AssetDependency{
		{ID: "base", Kind: domain.KindBase},
		{ID: "x", Kind: domain.KindCalculated, DependsOn: []string{"base", "y"}},
		{ID: "y", Kind: domain.KindIndex, DependsOn: []string{"x"}},
	})

	var cycle *domain.CyclicDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"x", "y", "x"}, cycle.Path)
}

func TestNewRegistryConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		assets []domain.AssetDependency
	}{
		{"duplicate id", []domain.AssetDependency{
			{ID: "a", Kind: domain.KindBase},
			{ID: "a", Kind: domain.KindBase},
		}},
		{"unknown dependency", []domain.AssetDependency{
			{ID: "a", Kind: domain.KindIndex, DependsOn: []string{"ghost"}},
		}},
		{"base with inputs", []domain.AssetDependency{
			{ID: "a", Kind: domain.KindBase},
			{ID: "b", Kind: domain.KindBase, DependsOn: []string{"a"}},
		}},
		{"derived without inputs", []domain.AssetDependency{
			{ID: "a", Kind: domain.KindIndex},
		}},
		{"unknown kind", []domain.AssetDependency{
			{ID: "a", Kind: "derived"},
		}},
		{"empty id", []domain.AssetDependency{
			{Kind: domain.KindBase},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry("test", tt.assets)
			var cfgErr *domain.ConfigurationError
			assert.True(t, errors.As(err, &cfgErr), "got %v", err)
		})
	}
}

func TestValidateEditable(t *testing.T) {
	reg := defaultRegistry(t)

	assert.NoError(t, reg.ValidateEditable([]string{"boi_gordo", "usd"}))

	var invalid *domain.InvalidEditError
	require.ErrorAs(t, reg.ValidateEditable([]string{"boi_gordo", "pdm"}), &invalid)
	assert.Equal(t, "pdm", invalid.AssetID)

	require.ErrorAs(t, reg.ValidateEditable([]string{"unknown"}), &invalid)
	assert.Equal(t, "unknown", invalid.AssetID)
}
