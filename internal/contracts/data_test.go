package contracts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFundamentals_CloneIsDeep(t *testing.T) {
	f := Fundamentals{
		NetIncome: Float(100),
		Cash:      Float(50),
		Sources:   map[string]string{"net_income": "NetIncomeLoss"},
	}

	c := f.Clone()
	*c.NetIncome = 1
	c.Sources["net_income"] = "changed"

	assert.Equal(t, 100.0, *f.NetIncome)
	assert.Equal(t, "NetIncomeLoss", f.Sources["net_income"])
	assert.Nil(t, c.TotalDebt)
}

func TestVerdictResult_CloneIsDeep(t *testing.T) {
	summary := "Makes anvils"
	v := VerdictResult{
		KeyDrivers:      []string{"Valuation"},
		BusinessSummary: &summary,
		GateSummary:     map[string]string{"valuation": "PASS"},
	}

	c := v.Clone()
	c.KeyDrivers[0] = "x"
	*c.BusinessSummary = "x"
	c.GateSummary["valuation"] = "x"

	assert.Equal(t, "Valuation", v.KeyDrivers[0])
	assert.Equal(t, "Makes anvils", *v.BusinessSummary)
	assert.Equal(t, "PASS", v.GateSummary["valuation"])
}

func TestSizingResult_CloneIsDeep(t *testing.T) {
	s := SizingResult{MaximumPositionSize: Float(5), Factors: &SizingFactors{Volatility: 0.5, Drawdown: 1, Correlation: 1, Macro: 1}}

	c := s.Clone()
	c.Factors.Volatility = 0.1
	*c.MaximumPositionSize = 1

	assert.Equal(t, 0.5, s.Factors.Volatility)
	assert.Equal(t, 5.0, *s.MaximumPositionSize)
}

func TestBusinessFilings_HasFilings(t *testing.T) {
	assert.False(t, BusinessFilings{CompanyName: "Acme"}.HasFilings())
	assert.True(t, BusinessFilings{RiskFactors: "competition"}.HasFilings())
	assert.True(t, BusinessFilings{BusinessDescription: "anvils"}.HasFilings())
}

func TestValidCreditStress(t *testing.T) {
	for _, s := range []string{CreditLow, CreditMedium, CreditHigh} {
		assert.True(t, ValidCreditStress(s), s)
	}
	assert.False(t, ValidCreditStress("low"))
	assert.False(t, ValidCreditStress(""))
}

func TestNoOpinionMarket(t *testing.T) {
	assert.True(t, NoOpinionMarket(MarketNoRelevantData))
	assert.True(t, NoOpinionMarket("NO_SIGNAL"))
	assert.False(t, NoOpinionMarket(MarketHeadwind))
}

func TestFundamentals_NullsSurviveJSON(t *testing.T) {
	raw, err := json.Marshal(Fundamentals{NetIncome: Float(0)})
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))

	// zero is reported, absence is null
	assert.Equal(t, 0.0, out["net_income"])
	assert.Nil(t, out["total_debt"])
	assert.Contains(t, out, "total_debt")
}
