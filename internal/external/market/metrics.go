package market

import (
	"errors"
	"math"

	"github.com/wonny/mizan/internal/contracts"
)

// Metric thresholds
const (
	spikeRatio          = 1.5
	minFlowBars         = 3
	minRiskCloses       = 30
	minReturns          = 10
	minCorrelationN     = 30
	tradingDaysPerYear  = 252
	FallbackCorrelation = 0.65
)

// ErrInsufficientHistory is returned when a metric lacks enough observations
var ErrInsufficientHistory = errors.New("insufficient price history")

// Flow summarises the last bar against the preceding window
type Flow struct {
	LastPrice   float64
	LastVolume  float64
	AvgVolume   float64
	VolumeRatio float64 // last / avg, 0 when avg is 0
	Spike       bool
	Direction   string
	Signal      string
}

// FlowMetrics computes volume spike, price direction and flow signal.
// avg volume excludes the last bar.
func FlowMetrics(bars []Bar) (Flow, error) {
	if len(bars) < minFlowBars {
		return Flow{}, ErrInsufficientHistory
	}

	last, prev := bars[len(bars)-1], bars[len(bars)-2]
	base := bars[:len(bars)-1]

	var sum float64
	for _, b := range base {
		sum += b.Volume
	}
	f := Flow{
		LastPrice:  last.Close,
		LastVolume: last.Volume,
		AvgVolume:  sum / float64(len(base)),
	}
	if f.AvgVolume > 0 {
		f.VolumeRatio = f.LastVolume / f.AvgVolume
		f.Spike = f.LastVolume > f.AvgVolume*spikeRatio
	}

	switch {
	case last.Close > prev.Close:
		f.Direction = contracts.DirectionUp
	case last.Close < prev.Close:
		f.Direction = contracts.DirectionDown
	default:
		f.Direction = contracts.DirectionFlat
	}

	f.Signal = contracts.FlowNeutral
	if f.Spike && f.Direction == contracts.DirectionUp {
		f.Signal = contracts.FlowPositive
	} else if f.Spike && f.Direction == contracts.DirectionDown {
		f.Signal = contracts.FlowNegative
	}
	return f, nil
}

// Risk holds volatility and drawdown over the history window
type Risk struct {
	DailyVolatility float64
	Volatility      float64 // annualised
	MaxDrawdown     float64 // peak to trough, decimal
	Window          int
}

// RiskMetrics computes annualised volatility (population stdev × √252) and max drawdown
func RiskMetrics(closes []float64) (Risk, error) {
	if len(closes) < minRiskCloses {
		return Risk{}, ErrInsufficientHistory
	}

	returns := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i-1])/closes[i-1])
	}
	if len(returns) < minReturns {
		return Risk{}, ErrInsufficientHistory
	}

	mean := average(returns)
	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns))
	daily := math.Sqrt(variance)

	peak := closes[0]
	var maxDD float64
	for _, c := range closes {
		if c > peak {
			peak = c
		}
		if peak > 0 {
			maxDD = math.Max(maxDD, (peak-c)/peak)
		}
	}

	return Risk{
		DailyVolatility: daily,
		Volatility:      daily * math.Sqrt(tradingDaysPerYear),
		MaxDrawdown:     maxDD,
		Window:          len(closes),
	}, nil
}

// Correlation returns |Pearson| over the trailing common window.
// fallback is true (and the value FallbackCorrelation) when n < 30 or a series is constant.
func Correlation(a, b []float64) (value float64, n int, fallback bool) {
	n = min(len(a), len(b))
	if n < minCorrelationN {
		return FallbackCorrelation, n, true
	}
	a, b = a[len(a)-n:], b[len(b)-n:]

	meanA, meanB := average(a), average(b)
	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da, db := a[i]-meanA, b[i]-meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return FallbackCorrelation, n, true
	}

	corr := cov / math.Sqrt(varA*varB)
	corr = math.Max(-1, math.Min(1, corr))
	return math.Abs(corr), n, false
}

func average(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
