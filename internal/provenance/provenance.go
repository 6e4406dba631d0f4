// Package provenance resolves a value from an ordered list of named sources
// and reports which source satisfied it.
package provenance

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoSource is returned when every candidate came back empty or failed
var ErrNoSource = errors.New("no source satisfied the value")

// Source is one named candidate fetched over the network (or any blocking call).
// ok=false with a nil error means "this source has no value", not a failure.
type Source[T any] struct {
	Name  string
	Fetch func(ctx context.Context) (value T, ok bool, err error)
}

// Candidate is one named in-memory candidate
type Candidate[T any] struct {
	Name  string
	Value func() (T, bool)
}

// Result carries the winning value and its provenance
type Result[T any] struct {
	Value  T
	Source string
	Tried  []string // every source consulted, in order, including the winner
}

// First tries sources in priority order and returns the first that has a value.
// Source errors are collected and the next source is tried; cancellation stops the walk.
func First[T any](ctx context.Context, sources ...Source[T]) (Result[T], error) {
	var (
		res  Result[T]
		errs []error
	)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return Result[T]{Tried: res.Tried}, err
		}

		res.Tried = append(res.Tried, src.Name)
		v, ok, err := src.Fetch(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", src.Name, err))
			continue
		}
		if ok {
			res.Value = v
			res.Source = src.Name
			return res, nil
		}
	}

	if len(errs) > 0 {
		return res, fmt.Errorf("%w: %w", ErrNoSource, errors.Join(errs...))
	}
	return res, ErrNoSource
}

// Pick is First for in-memory candidates; ok is false when none had a value
func Pick[T any](candidates ...Candidate[T]) (Result[T], bool) {
	var res Result[T]
	for _, c := range candidates {
		res.Tried = append(res.Tried, c.Name)
		if v, ok := c.Value(); ok {
			res.Value = v
			res.Source = c.Name
			return res, true
		}
	}
	return res, false
}
