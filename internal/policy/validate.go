package policy

import "fmt"

// ValidationError 검증 실패 (프로그램 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Warning 권장 위반 (경고만)
type Warning struct {
	Code    string
	Message string
}

// Validate checks all required constraints
func Validate(p Policy) error {
	// === Meta ===
	if p.Meta.PolicyID == "" {
		return ValidationError{"meta.policy_id", "required"}
	}

	// === Valuation ===
	v := p.Valuation
	if v.BaseMultiple <= 0 {
		return ValidationError{"valuation.base_multiple", "must be > 0"}
	}
	if v.NetCashMultipleBonus < 0 {
		return ValidationError{"valuation.net_cash_multiple_bonus", "must be >= 0"}
	}
	if err := validateFraction(v.RequiredMargin, "valuation.required_margin"); err != nil {
		return err
	}
	if err := validateFraction(v.NetCashMarginRelief, "valuation.net_cash_margin_relief"); err != nil {
		return err
	}
	if err := validateFraction(v.RequiredMarginFloor, "valuation.required_margin_floor"); err != nil {
		return err
	}
	if v.RequiredMarginFloor > v.RequiredMargin {
		return ValidationError{"valuation.required_margin_floor", "must be <= required_margin"}
	}

	// === Sizing ===
	s := p.Sizing
	if s.MinSize <= 0 {
		return ValidationError{"sizing.min_size", "must be > 0"}
	}
	if s.MinSize > s.MaxSize {
		return ValidationError{"sizing", "min_size must be <= max_size"}
	}
	if s.BaseSize < s.MinSize || s.BaseSize > s.MaxSize {
		return ValidationError{"sizing.base_size", fmt.Sprintf("must be in [%.2f, %.2f]", s.MinSize, s.MaxSize)}
	}
	if s.MaxSize > 100 {
		return ValidationError{"sizing.max_size", "must be <= 100 (percent of NAV)"}
	}

	return nil
}

// Warn checks recommended constraints (non-fatal)
func Warn(p Policy) []Warning {
	var warnings []Warning

	if p.Valuation.RequiredMargin < 0.20 {
		warnings = append(warnings, Warning{
			Code:    "THIN_MARGIN",
			Message: "required_margin < 20%: valuation discipline is loose",
		})
	}

	if p.Valuation.BaseMultiple > 20 {
		warnings = append(warnings, Warning{
			Code:    "RICH_MULTIPLE",
			Message: "base_multiple > 20: intrinsic values will be optimistic",
		})
	}

	if p.Sizing.MaxSize > 20 {
		warnings = append(warnings, Warning{
			Code:    "CONCENTRATED",
			Message: "max_size > 20% NAV: single position concentration",
		})
	}

	return warnings
}

// validateFraction는 값이 0~1 범위인지 검증
func validateFraction(v float64, field string) error {
	if v < 0 || v > 1 {
		return ValidationError{field, "must be in range [0, 1]"}
	}
	return nil
}
