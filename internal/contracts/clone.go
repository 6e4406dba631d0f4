package contracts

// Clone methods give envelopes value semantics for payloads that carry
// pointers, maps or slices.

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

// Clone returns a deep copy
func (f Fundamentals) Clone() Fundamentals {
	out := f
	out.NetIncome = clonePtr(f.NetIncome)
	out.OperatingCashflow = clonePtr(f.OperatingCashflow)
	out.CapitalExpenditure = clonePtr(f.CapitalExpenditure)
	out.FreeCashflow = clonePtr(f.FreeCashflow)
	out.Cash = clonePtr(f.Cash)
	out.TotalDebt = clonePtr(f.TotalDebt)
	out.SharesOutstanding = clonePtr(f.SharesOutstanding)
	out.OperatingIncome = clonePtr(f.OperatingIncome)
	out.InterestExpense = clonePtr(f.InterestExpense)
	out.InterestCoverage = clonePtr(f.InterestCoverage)
	if f.Sources != nil {
		out.Sources = make(map[string]string, len(f.Sources))
		for k, v := range f.Sources {
			out.Sources[k] = v
		}
	}
	return out
}

// Clone returns a deep copy
func (b BusinessContext) Clone() BusinessContext {
	out := b
	out.KeyRiskCategories = cloneStrings(b.KeyRiskCategories)
	return out
}

// Clone returns a deep copy
func (m MarketData) Clone() MarketData {
	out := m
	out.MarketPrice = clonePtr(m.MarketPrice)
	out.Volatility = clonePtr(m.Volatility)
	out.MaxDrawdown = clonePtr(m.MaxDrawdown)
	out.CorrelationIndex = clonePtr(m.CorrelationIndex)
	out.LastPrice = clonePtr(m.LastPrice)
	out.LastVolume = clonePtr(m.LastVolume)
	out.AvgVolume = clonePtr(m.AvgVolume)
	out.VolumeSpike = clonePtr(m.VolumeSpike)
	out.YesPrice = clonePtr(m.YesPrice)
	out.NoPrice = clonePtr(m.NoPrice)
	return out
}

// Clone returns a deep copy
func (m Macro) Clone() Macro {
	out := m
	out.InterestRate = clonePtr(m.InterestRate)
	out.CreditStressIndex = clonePtr(m.CreditStressIndex)
	return out
}

// Clone returns a deep copy
func (v ValuationResult) Clone() ValuationResult {
	out := v
	out.MarginOfSafety = clonePtr(v.MarginOfSafety)
	return out
}

// Clone returns a deep copy
func (s SizingResult) Clone() SizingResult {
	out := s
	out.MaximumPositionSize = clonePtr(s.MaximumPositionSize)
	out.RateFactor = clonePtr(s.RateFactor)
	out.CreditFactor = clonePtr(s.CreditFactor)
	if s.Factors != nil {
		f := *s.Factors
		out.Factors = &f
	}
	return out
}

// Clone returns a deep copy
func (v VerdictResult) Clone() VerdictResult {
	out := v
	out.KeyDrivers = cloneStrings(v.KeyDrivers)
	out.MarginOfSafety = clonePtr(v.MarginOfSafety)
	out.BusinessSummary = cloneStrPtr(v.BusinessSummary)
	out.BusinessComplexity = cloneStrPtr(v.BusinessComplexity)
	out.MaxPositionSize = clonePtr(v.MaxPositionSize)
	if v.GateSummary != nil {
		out.GateSummary = make(map[string]string, len(v.GateSummary))
		for k, s := range v.GateSummary {
			out.GateSummary[k] = s
		}
	}
	return out
}
