package valuation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ucsindex/engine/internal/domain"
)

// Inputs maps asset ids to their current values.
type Inputs map[string]decimal.Decimal

// Valuation is the output of a valuation function.
type Valuation struct {
	Value       decimal.Decimal
	Components  map[string]decimal.Decimal
	Conversions map[string]decimal.Decimal
}

// Func computes one derived asset from its direct inputs. Implementations are pure.
type Func func(in Inputs) (Valuation, error)

// reader collects inputs for one asset and remembers the first missing one.
type reader struct {
	asset string
	in    Inputs
	err   error
}

func (in Inputs) reader(asset string) *reader {
	return &reader{asset: asset, in: in}
}

func (r *reader) get(id string) decimal.Decimal {
	v, ok := r.in[id]
	if !ok {
		if r.err == nil {
			r.err = &domain.MissingInputError{AssetID: r.asset, Input: id}
		}
		return decimal.Zero
	}
	return v
}

// Catalog maps derived asset ids to their valuation functions.
type Catalog map[string]Func

// Registry is the subset of the dependency registry the catalog is checked against.
type Registry interface {
	All() []domain.AssetDependency
}

// Check fails if any derived asset of the registry has no valuation function.
func (c Catalog) Check(reg Registry) error {
	for _, a := range reg.All() {
		if a.IsBase() {
			continue
		}
		if _, ok := c[a.ID]; !ok {
			return &domain.ConfigurationError{Reason: fmt.Sprintf("no valuation function for %s asset %q", a.Kind, a.ID)}
		}
	}
	return nil
}

// Evaluate runs the valuation function of assetID.
func (c Catalog) Evaluate(assetID string, in Inputs) (Valuation, error) {
	fn, ok := c[assetID]
	if !ok {
		return Valuation{}, &domain.ConfigurationError{Reason: fmt.Sprintf("no valuation function for %q", assetID)}
	}
	return fn(in)
}
