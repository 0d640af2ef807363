package valuation

import (
	"github.com/shopspring/decimal"
)

var (
	pecuariaArrobasPerHa = decimal.NewFromInt(18)
	pecuariaWeight       = decimal.RequireFromString("0.35")
	milhoSacasPerHa      = decimal.NewFromInt(120)
	milhoWeight          = decimal.RequireFromString("0.30")
	sojaSacasPerHa       = decimal.NewFromInt(58)
	sojaWeight           = decimal.RequireFromString("0.35")
	leaseShare           = decimal.RequireFromString("0.25")

	madeiraM3PerHa  = decimal.NewFromInt(180)
	madeiraStumpage = decimal.RequireFromString("0.10")

	carbonoTonsPerHa = decimal.RequireFromString("2.59")

	aguaM3PerHa    = decimal.NewFromInt(7000)
	aguaCostFactor = decimal.RequireFromString("0.07")
	pdmPressure    = decimal.RequireFromString("0.20")
	ucsPerHectare  = decimal.NewFromInt(900)
	aseMultiplier  = decimal.NewFromInt(2)
)

// DefaultCatalog returns the valuation functions of every derived asset in the default registry.
func DefaultCatalog() Catalog {
	return Catalog{
		"vus":            VUS,
		"vmad":           VMAD,
		"carbono_crs":    CarbonoCRS,
		"agua_crs":       AguaCRS,
		"crs_total":      CRSTotal,
		"valor_uso_solo": ValorUsoSolo,
		"pdm":            PDM,
		"ucs":            UCS,
		"ucs_ase":        UCSASE,
	}
}

// VUS is the agricultural land-use value: weighted cattle, corn and soy revenue per
// hectare, times the lease share.
func VUS(in Inputs) (Valuation, error) {
	r := in.reader("vus")
	boi, milho, soja, usd := r.get("boi_gordo"), r.get("milho"), r.get("soja"), r.get("usd")
	if r.err != nil {
		return Valuation{}, r.err
	}

	pecuaria := NormalizedYield(boi, pecuariaArrobasPerHa, pecuariaWeight)
	milhoYield := NormalizedYield(milho, milhoSacasPerHa, milhoWeight)
	sojaYield := NormalizedYield(ConvertToBRL(soja, usd), sojaSacasPerHa, sojaWeight)

	return Valuation{
		Value: Sum(pecuaria, milhoYield, sojaYield).Mul(leaseShare),
		Components: map[string]decimal.Decimal{
			"pecuaria": pecuaria,
			"milho":    milhoYield,
			"soja":     sojaYield,
		},
	}, nil
}

// VMAD is the standing timber value per hectare.
func VMAD(in Inputs) (Valuation, error) {
	r := in.reader("vmad")
	madeira, usd := r.get("madeira"), r.get("usd")
	if r.err != nil {
		return Valuation{}, r.err
	}
	return Valuation{Value: ConvertToBRL(madeira, usd).Mul(madeiraM3PerHa).Mul(madeiraStumpage)}, nil
}

// CarbonoCRS is the carbon socio-environmental responsibility cost per hectare.
func CarbonoCRS(in Inputs) (Valuation, error) {
	r := in.reader("carbono_crs")
	carbono, eur := r.get("carbono"), r.get("eur")
	if r.err != nil {
		return Valuation{}, r.err
	}
	return Valuation{Value: ConvertToBRL(carbono, eur).Mul(carbonoTonsPerHa)}, nil
}

// AguaCRS is the water socio-environmental responsibility cost per hectare.
func AguaCRS(in Inputs) (Valuation, error) {
	r := in.reader("agua_crs")
	agua := r.get("agua")
	if r.err != nil {
		return Valuation{}, r.err
	}
	return Valuation{Value: agua.Mul(aguaM3PerHa).Mul(aguaCostFactor)}, nil
}

func CRSTotal(in Inputs) (Valuation, error) {
	r := in.reader("crs_total")
	carbono, agua := r.get("carbono_crs"), r.get("agua_crs")
	if r.err != nil {
		return Valuation{}, r.err
	}
	return Valuation{
		Value:      Sum(carbono, agua),
		Components: map[string]decimal.Decimal{"carbono_crs": carbono, "agua_crs": agua},
	}, nil
}

func ValorUsoSolo(in Inputs) (Valuation, error) {
	r := in.reader("valor_uso_solo")
	vus, vmad, crs := r.get("vus"), r.get("vmad"), r.get("crs_total")
	if r.err != nil {
		return Valuation{}, r.err
	}
	return Valuation{
		Value:      Sum(vus, vmad, crs),
		Components: map[string]decimal.Decimal{"vus": vus, "vmad": vmad, "crs_total": crs},
	}, nil
}

func PDM(in Inputs) (Valuation, error) {
	r := in.reader("pdm")
	vus := r.get("valor_uso_solo")
	if r.err != nil {
		return Valuation{}, r.err
	}
	return Valuation{Value: vus.Mul(pdmPressure)}, nil
}

func UCS(in Inputs) (Valuation, error) {
	r := in.reader("ucs")
	pdm := r.get("pdm")
	if r.err != nil {
		return Valuation{}, r.err
	}
	return Valuation{Value: pdm.Div(ucsPerHectare)}, nil
}

// UCSASE is the UCS ASE value in BRL, with USD and EUR conversions.
func UCSASE(in Inputs) (Valuation, error) {
	r := in.reader("ucs_ase")
	ucs, usd, eur := r.get("ucs"), r.get("usd"), r.get("eur")
	if r.err != nil {
		return Valuation{}, r.err
	}
	value := ucs.Mul(aseMultiplier)
	return Valuation{
		Value: value,
		Conversions: map[string]decimal.Decimal{
			"usd": ConvertFromBRL(value, usd),
			"eur": ConvertFromBRL(value, eur),
		},
	}, nil
}
