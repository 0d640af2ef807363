package domain

// CalculationKind classifies how an asset's value is produced.
type CalculationKind string

const (
	KindBase       CalculationKind = "base"
	KindCalculated CalculationKind = "calculated"
	KindSubIndex   CalculationKind = "sub-index"
	KindIndex      CalculationKind = "index"
)

// Valid reports whether k is one of the known calculation kinds.
func (k CalculationKind) Valid() bool {
	switch k {
	case KindBase, KindCalculated, KindSubIndex, KindIndex:
		return true
	}
	return false
}

// Editable reports whether assets of this kind may be edited directly by a user.
// Only externally-sourced base quotes are editable; everything else is derived.
func (k CalculationKind) Editable() bool {
	return k == KindBase
}

// AssetDependency is a static registry entry describing one asset and its inputs.
type AssetDependency struct {
	ID        string          `json:"id" yaml:"id"`
	Name      string          `json:"name" yaml:"name"`
	Unit      string          `json:"unit,omitempty" yaml:"unit"`
	DependsOn []string        `json:"dependsOn" yaml:"dependsOn"`
	Kind      CalculationKind `json:"calculationKind" yaml:"kind"`
	Formula   string          `json:"formula" yaml:"formula"`
}

// IsBase returns true for externally-sourced assets.
func (a AssetDependency) IsBase() bool {
	return a.Kind == KindBase
}
