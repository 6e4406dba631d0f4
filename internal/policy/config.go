package policy

// Policy holds the decision constants used by the valuation and sizing engines.
// It is loaded once and passed by value; engines never read ambient state.
type Policy struct {
	Meta      Meta      `yaml:"meta" json:"meta"`
	Valuation Valuation `yaml:"valuation" json:"valuation"`
	Sizing    Sizing    `yaml:"sizing" json:"sizing"`
}

// Meta 메타 정보
type Meta struct {
	PolicyID string `yaml:"policy_id" json:"policy_id"`
	Version  string `yaml:"version" json:"version"`
}

// Valuation G2: 내재가치 정책
type Valuation struct {
	BaseMultiple         float64 `yaml:"base_multiple" json:"base_multiple"`
	RequiredMargin       float64 `yaml:"required_margin" json:"required_margin"`
	NetCashMultipleBonus float64 `yaml:"net_cash_multiple_bonus" json:"net_cash_multiple_bonus"`
	NetCashMarginRelief  float64 `yaml:"net_cash_margin_relief" json:"net_cash_margin_relief"`
	RequiredMarginFloor  float64 `yaml:"required_margin_floor" json:"required_margin_floor"`
}

// Sizing G5: 포지션 크기 범위 (% of NAV)
type Sizing struct {
	BaseSize float64 `yaml:"base_size" json:"base_size"`
	MinSize  float64 `yaml:"min_size" json:"min_size"`
	MaxSize  float64 `yaml:"max_size" json:"max_size"`
}

// Default returns the reference policy
func Default() Policy {
	return Policy{
		Meta: Meta{
			PolicyID: "mizan_default",
			Version:  "1",
		},
		Valuation: Valuation{
			BaseMultiple:         10.0,
			RequiredMargin:       0.30,
			NetCashMultipleBonus: 2.0,
			NetCashMarginRelief:  0.05,
			RequiredMarginFloor:  0.20,
		},
		Sizing: Sizing{
			BaseSize: 10.0,
			MinSize:  1.0,
			MaxSize:  10.0,
		},
	}
}
