package contracts

import (
	"encoding/json"
	"fmt"
)

// Status is the outcome tag of an envelope; exactly one per envelope
type Status string

const (
	StatusOK      Status = "OK"
	StatusPartial Status = "PARTIAL"
	StatusError   Status = "ERROR"
	StatusSkipped Status = "SKIPPED"
)

// Binding constraint labels shared across gates
const (
	ConstraintDataAvailability = "DATA_AVAILABILITY"
	ConstraintNotApplicable    = "NOT_APPLICABLE"
	ConstraintValuation        = "VALUATION"
)

// GateError is the machine readable failure carried by an ERROR envelope
type GateError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e GateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Diagnostics records provenance of a gate result
type Diagnostics struct {
	InputsUsed        []string `json:"inputs_used"`
	MissingInputs     []string `json:"missing_inputs"`
	BindingConstraint *string  `json:"binding_constraint"`
}

// Diag starts a Diagnostics block from the ordered inputs a gate consumed
func Diag(inputsUsed ...string) Diagnostics {
	return Diagnostics{InputsUsed: inputsUsed}
}

// Missing returns a copy with the given missing inputs
func (d Diagnostics) Missing(names ...string) Diagnostics {
	d.MissingInputs = append([]string(nil), names...)
	return d
}

// Binding returns a copy with the binding constraint set
func (d Diagnostics) Binding(label string) Diagnostics {
	d.BindingConstraint = &label
	return d
}

// HasMissing reports whether any input was absent
func (d Diagnostics) HasMissing() bool {
	return len(d.MissingInputs) > 0
}

// BindingLabel returns the binding constraint or "" when unset
func (d Diagnostics) BindingLabel() string {
	if d.BindingConstraint == nil {
		return ""
	}
	return *d.BindingConstraint
}

func (d Diagnostics) clone() Diagnostics {
	out := Diagnostics{
		InputsUsed:    append([]string{}, d.InputsUsed...),
		MissingInputs: append([]string{}, d.MissingInputs...),
	}
	if d.BindingConstraint != nil {
		label := *d.BindingConstraint
		out.BindingConstraint = &label
	}
	return out
}

// Result is the status-level view of any envelope.
// The orchestrator reads only this to decide control flow.
type Result interface {
	Gate() Stage
	Status() Status
	Confidence() int
	OneLiner() string
	Diagnostics() Diagnostics
	Failure() (GateError, bool)
}

// Envelope is the canonical result of one gate.
// Fields are unexported: the constructors below are the only way to build one,
// so every status variant has exactly one shape and nothing changes after creation.
// ⭐ SSOT: 게이트 간 통신 단위는 이 타입만 사용
type Envelope[T any] struct {
	gate        Stage
	status      Status
	data        *T
	confidence  int
	oneLiner    string
	diagnostics Diagnostics
	err         *GateError
}

// cloner is implemented by payloads that hold pointers, maps or slices
type cloner[T any] interface {
	Clone() T
}

// copyOf returns a deep copy when the payload knows how to make one
func copyOf[T any](v T) T {
	if c, ok := any(v).(cloner[T]); ok {
		return c.Clone()
	}
	return v
}

// OK builds a successful envelope
func OK[T any](gate Stage, data T, confidence int, oneLiner string, diag Diagnostics) Envelope[T] {
	data = copyOf(data)
	return Envelope[T]{
		gate:        gate,
		status:      StatusOK,
		data:        &data,
		confidence:  clampConfidence(confidence),
		oneLiner:    oneLiner,
		diagnostics: diag.clone(),
	}
}

// Partial builds a degraded-but-usable envelope
func Partial[T any](gate Stage, data T, confidence int, oneLiner string, diag Diagnostics) Envelope[T] {
	data = copyOf(data)
	return Envelope[T]{
		gate:        gate,
		status:      StatusPartial,
		data:        &data,
		confidence:  clampConfidence(confidence),
		oneLiner:    oneLiner,
		diagnostics: diag.clone(),
	}
}

// Errored builds a fatal envelope. Data is always empty and confidence 0.
// binding_constraint defaults to DATA_AVAILABILITY when the caller leaves it unset.
func Errored[T any](gate Stage, code, message string, diag Diagnostics) Envelope[T] {
	diag = diag.clone()
	if diag.BindingConstraint == nil {
		diag = diag.Binding(ConstraintDataAvailability)
	}
	return Envelope[T]{
		gate:        gate,
		status:      StatusError,
		oneLiner:    message,
		diagnostics: diag,
		err:         &GateError{Code: code, Message: message},
	}
}

// Skipped builds a not-applicable envelope with confidence 0.
// data may be nil; the reason doubles as the one-liner.
func Skipped[T any](gate Stage, data *T, reason string, diag Diagnostics) Envelope[T] {
	var copied *T
	if data != nil {
		v := copyOf(*data)
		copied = &v
	}
	diag = diag.clone()
	if diag.BindingConstraint == nil {
		diag = diag.Binding(ConstraintNotApplicable)
	}
	return Envelope[T]{
		gate:        gate,
		status:      StatusSkipped,
		data:        copied,
		oneLiner:    reason,
		diagnostics: diag,
	}
}

// Gate returns the producing gate
func (e Envelope[T]) Gate() Stage { return e.gate }

// Status returns the status tag
func (e Envelope[T]) Status() Status { return e.status }

// Confidence returns the gate confidence in [0,100]
func (e Envelope[T]) Confidence() int { return e.confidence }

// OneLiner returns the short summary
func (e Envelope[T]) OneLiner() string { return e.oneLiner }

// Diagnostics returns a copy of the diagnostics block
func (e Envelope[T]) Diagnostics() Diagnostics { return e.diagnostics.clone() }

// Failure returns the gate error of an ERROR envelope
func (e Envelope[T]) Failure() (GateError, bool) {
	if e.err == nil {
		return GateError{}, false
	}
	return *e.err, true
}

// Data returns a copy of the payload and whether one is present
func (e Envelope[T]) Data() (T, bool) {
	if e.data == nil {
		var zero T
		return zero, false
	}
	return copyOf(*e.data), true
}

// IsFatal reports an ERROR status
func (e Envelope[T]) IsFatal() bool { return e.status == StatusError }

// Usable reports OK or PARTIAL, the statuses whose data downstream may read
func (e Envelope[T]) Usable() bool {
	return e.status == StatusOK || e.status == StatusPartial
}

// IsZero reports an envelope that was never produced
func (e Envelope[T]) IsZero() bool { return e.status == "" }

type envelopeWire[T any] struct {
	Status      Status      `json:"status"`
	Gate        Stage       `json:"gate"`
	Data        *T          `json:"data"`
	Confidence  int         `json:"confidence"`
	OneLiner    string      `json:"one_liner"`
	Diagnostics Diagnostics `json:"diagnostics"`
	Error       *GateError  `json:"error,omitempty"`
}

// MarshalJSON renders the canonical wire shape
func (e Envelope[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(envelopeWire[T]{
		Status:      e.status,
		Gate:        e.gate,
		Data:        e.data,
		Confidence:  e.confidence,
		OneLiner:    e.oneLiner,
		Diagnostics: e.diagnostics.clone(),
		Error:       e.err,
	})
}

func clampConfidence(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
