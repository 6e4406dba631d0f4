package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/mizan/internal/contracts"
)

func TestConfidence(t *testing.T) {
	tests := []struct {
		name    string
		signals Signals
		want    int
	}{
		{"base only", Signals{}, 50},
		{"deep negative margin", Signals{MarginOfSafety: contracts.Float(-1.5)}, 70},
		{"margin exactly -1 gets no bonus", Signals{MarginOfSafety: contracts.Float(-1.0)}, 50},
		{"nil margin", Signals{MarginOfSafety: nil, ImpairmentRisk: contracts.RiskLow}, 60},
		{"headwind", Signals{Market: contracts.MarketHeadwind}, 40},
		{"missing inputs", Signals{MissingInputs: true}, 40},
		{"all adjustments", Signals{
			MarginOfSafety: contracts.Float(-2),
			ImpairmentRisk: contracts.RiskLow,
			Market:         contracts.MarketHeadwind,
			MissingInputs:  true,
		}, 60},
		{"tailwind is ignored", Signals{Market: contracts.MarketTailwind}, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Confidence(tt.signals))
		})
	}
}

func TestAnyMissing(t *testing.T) {
	clean := contracts.OK(contracts.StageMacro, contracts.Macro{}, 95, "ok", contracts.Diag("DFF"))
	gap := contracts.Partial(contracts.StageMarketData, contracts.MarketData{}, 70, "partial",
		contracts.Diag("correlation_index").Missing("correlation_index"))

	assert.False(t, AnyMissing())
	assert.False(t, AnyMissing(clean))
	assert.True(t, AnyMissing(clean, gap))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, clamp(-5))
	assert.Equal(t, 100, clamp(120))
	assert.Equal(t, 42, clamp(42))
}
