package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
)

const noMarketDataOneLiner = "NO_RELEVANT_DATA_FOUND: No reliable market-structure signals available for this period."

var marketInputs = []string{
	"last_price", "last_volume", "avg_volume", "volume_spike",
	"price_direction", "flow_signal", "yes_price", "no_price", "macro_signal",
}

var setupLabels = map[string]string{
	contracts.MarketTailwind:       "Accumulation on rising volume",
	contracts.MarketHeadwind:       "Distribution on rising volume",
	contracts.MarketNeutral:        "Range-bound, no directional flow",
	contracts.MarketNoRelevantData: "No relevant market structure data",
}

// ClassifyMarket implements contracts.MarketStructureClassifier
func (r *Rules) ClassifyMarket(_ context.Context, s contracts.MarketSignals) (contracts.Envelope[contracts.MarketStructure], error) {
	if env, ok := marketPrecheck(s); ok {
		r.logger.WithGate(contracts.StageMarketStructure.String()).Event("info", "market_structure_no_data", nil)
		return env, nil
	}

	var label string
	confidence := 75
	switch strings.ToUpper(s.FlowSignal) {
	case contracts.FlowPositive:
		label = contracts.MarketTailwind
	case contracts.FlowNegative:
		label = contracts.MarketHeadwind
	default:
		label = contracts.MarketNeutral
		confidence = 60
	}

	reasoning := fmt.Sprintf("Price %s on volume_spike %.2fx (last_volume %.0f vs avg_volume %.0f); flow_signal %s, macro_signal %s.",
		strings.ToUpper(s.PriceDirection), *s.VolumeSpike, *s.LastVolume, *s.AvgVolume,
		strings.ToUpper(s.FlowSignal), strings.ToUpper(s.MacroSignal))

	out := contracts.MarketStructure{
		Classification: label,
		SetupLabel:     setupLabels[label],
		Reasoning:      reasoning,
	}
	return contracts.OK(contracts.StageMarketStructure, out, confidence,
		fmt.Sprintf("%s: %s", label, out.SetupLabel), contracts.Diag(marketInputs...)), nil
}

// marketPrecheck answers NO_RELEVANT_DATA_FOUND when the signal channels are
// missing, inactive or contradictory
// ⭐ SSOT: G3 no-data 판정 규칙
func marketPrecheck(s contracts.MarketSignals) (contracts.Envelope[contracts.MarketStructure], bool) {
	var missing []string
	if s.LastPrice == nil {
		missing = append(missing, "last_price")
	}
	if s.LastVolume == nil {
		missing = append(missing, "last_volume")
	}
	if s.AvgVolume == nil {
		missing = append(missing, "avg_volume")
	}
	if s.VolumeSpike == nil {
		missing = append(missing, "volume_spike")
	}
	if s.PriceDirection == "" {
		missing = append(missing, "price_direction")
	}
	if s.FlowSignal == "" {
		missing = append(missing, "flow_signal")
	}
	if s.MacroSignal == "" {
		missing = append(missing, "macro_signal")
	}
	if len(missing) > 0 {
		return noMarketData(fmt.Sprintf("Missing required inputs: %s.", strings.Join(missing, ", ")), missing), true
	}

	inactive := *s.AvgVolume == 0 ||
		*s.LastVolume == 0 ||
		(strings.EqualFold(s.PriceDirection, contracts.DirectionFlat) && strings.EqualFold(s.FlowSignal, contracts.FlowNeutral)) ||
		(s.YesPrice == nil && s.NoPrice == nil)
	if inactive {
		return noMarketData("Signal channels are inactive or conflicting for this period.", nil), true
	}
	return contracts.Envelope[contracts.MarketStructure]{}, false
}

func noMarketData(reason string, missing []string) contracts.Envelope[contracts.MarketStructure] {
	out := contracts.MarketStructure{
		Classification: contracts.MarketNoRelevantData,
		SetupLabel:     setupLabels[contracts.MarketNoRelevantData],
		Reasoning:      reason,
	}
	return contracts.OK(contracts.StageMarketStructure, out, 0, noMarketDataOneLiner,
		contracts.Diag(marketInputs...).Missing(missing...))
}
