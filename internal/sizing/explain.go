package sizing

import (
	"fmt"

	"github.com/wonny/mizan/internal/contracts"
)

// Size thresholds for the narrative flag (% NAV)
const (
	smallSize = 2.0
	largeSize = 8.0
)

// Explainer narrates a finalized sizing result
type Explainer interface {
	Explain(result contracts.SizingResult) contracts.Narrative
}

// Advise runs the explainer on an OK sizing envelope, or returns nil
func Advise(env contracts.Envelope[contracts.SizingResult], x Explainer) *contracts.Narrative {
	if x == nil || env.Status() != contracts.StatusOK {
		return nil
	}
	result, ok := env.Data()
	if !ok || result.MaximumPositionSize == nil {
		return nil
	}
	n := x.Explain(result)
	return &n
}

// MechanicalExplainer builds commentary from the computed factors only
type MechanicalExplainer struct{}

// Explain implements Explainer
func (MechanicalExplainer) Explain(r contracts.SizingResult) contracts.Narrative {
	size := *r.MaximumPositionSize

	flag := contracts.SizeFlagNormal
	switch {
	case size <= smallSize:
		flag = contracts.SizeFlagSmall
	case size >= largeSize:
		flag = contracts.SizeFlagLarge
	}

	text := fmt.Sprintf("Maximum position is %.1f%% NAV, bound by %s.", size, r.BindingConstraint)
	if r.Factors != nil {
		f := r.Factors
		text += fmt.Sprintf(" Factors: VOLATILITY=%.2f, DRAWDOWN=%.2f, CORRELATION=%.2f, MACRO=%.2f.",
			f.Volatility, f.Drawdown, f.Correlation, f.Macro)
	}

	return contracts.Narrative{
		Commentary: text,
		Flags:      []string{flag},
		Source:     "mechanical",
	}
}
