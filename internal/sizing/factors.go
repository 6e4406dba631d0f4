package sizing

import "github.com/wonny/mizan/internal/contracts"

// band maps a continuous input onto a multiplier.
// Breakpoints are inclusive upper bounds; anything above the last uses floor.
type band struct {
	upTo   []float64
	factor []float64
	floor  float64
}

func (b band) apply(v float64) float64 {
	for i, limit := range b.upTo {
		if v <= limit {
			return b.factor[i]
		}
	}
	return b.floor
}

// Fixed breakpoints (monotonically non-increasing)
var (
	volatilityBand  = band{upTo: []float64{0.20, 0.35, 0.50}, factor: []float64{1.00, 0.85, 0.70}, floor: 0.55}
	drawdownBand    = band{upTo: []float64{0.15, 0.30, 0.45}, factor: []float64{1.00, 0.85, 0.70}, floor: 0.55}
	correlationBand = band{upTo: []float64{0.30, 0.60, 0.80}, factor: []float64{1.00, 0.85, 0.70}, floor: 0.55}
	rateBand        = band{upTo: []float64{0.03, 0.05, 0.07}, factor: []float64{1.00, 0.90, 0.80}, floor: 0.70}
)

var creditFactors = map[string]float64{
	contracts.CreditLow:    1.00,
	contracts.CreditMedium: 0.85,
	contracts.CreditHigh:   0.70,
}

// VolatilityFactor maps annualised volatility
func VolatilityFactor(v float64) float64 { return volatilityBand.apply(v) }

// DrawdownFactor maps peak-to-trough drawdown
func DrawdownFactor(v float64) float64 { return drawdownBand.apply(v) }

// CorrelationFactor maps absolute correlation to the benchmark
func CorrelationFactor(v float64) float64 { return correlationBand.apply(v) }

// RateFactor maps the policy rate (decimal fraction)
func RateFactor(rate float64) float64 { return rateBand.apply(rate) }

// CreditFactor maps credit stress; ok is false for unknown labels
func CreditFactor(stress string) (float64, bool) {
	f, ok := creditFactors[stress]
	return f, ok
}

// MacroFactor combines rate and credit by taking the tighter of the two
func MacroFactor(rate float64, stress string) (float64, bool) {
	credit, ok := CreditFactor(stress)
	if !ok {
		return 0, false
	}
	return min(RateFactor(rate), credit), true
}

// BindingConstraint returns the factor with the smallest value.
// Exact ties resolve by contracts.FactorPrecedence order.
func BindingConstraint(f contracts.SizingFactors) string {
	binding := contracts.FactorPrecedence[0]
	lowest := f.Get(binding)
	for _, name := range contracts.FactorPrecedence[1:] {
		if v := f.Get(name); v < lowest {
			binding, lowest = name, v
		}
	}
	return binding
}
