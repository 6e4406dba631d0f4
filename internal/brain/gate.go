package brain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
)

// Orchestrator-side failure codes, prefixed with the upper-cased stage name
const (
	suffixTimeout   = "_TIMEOUT"
	suffixTransport = "_TRANSPORT_FAILURE"
	suffixEmpty     = "_EMPTY_RESULT"
)

// FailureCode builds the code used when a collaborator call itself fails
func FailureCode(stage contracts.Stage, err error) string {
	prefix := strings.ToUpper(stage.String())
	if errors.Is(err, context.DeadlineExceeded) {
		return prefix + suffixTimeout
	}
	return prefix + suffixTransport
}

// callGate runs one collaborator call under the per-gate timeout.
// A returned error or an empty envelope becomes the gate's ERROR; nothing is retried.
func callGate[T any](ctx context.Context, o *Orchestrator, stage contracts.Stage,
	fn func(context.Context) (contracts.Envelope[T], error)) contracts.Envelope[T] {

	gctx, cancel := context.WithTimeout(ctx, o.gateTimeout)
	defer cancel()

	env, err := fn(gctx)
	if err != nil {
		return contracts.Errored[T](stage, FailureCode(stage, err),
			fmt.Sprintf("%s failed: %v", stage.Description(), err), contracts.Diag())
	}
	if env.IsZero() {
		return contracts.Errored[T](stage, strings.ToUpper(stage.String())+suffixEmpty,
			fmt.Sprintf("%s returned no result", stage.Description()), contracts.Diag())
	}
	return env
}
