// Package fallback resolves a value from an ordered list of named data sources.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoValue is returned when every source was absent or failed.
var ErrNoValue = errors.New("no source produced a value")

// Fetch returns (value, true, nil) when the source has data, (zero, false, nil)
// when it is reachable but empty, and a non-nil error when it failed.
type Fetch[T any] func(ctx context.Context) (T, bool, error)

// Source is one named step of a resolution chain.
type Source[T any] struct {
	Name  string
	Fetch Fetch[T]
}

// Named builds a Source.
func Named[T any](name string, fetch Fetch[T]) Source[T] {
	return Source[T]{Name: name, Fetch: fetch}
}

// Static is a source that always yields v.
func Static[T any](name string, v T) Source[T] {
	return Source[T]{Name: name, Fetch: func(context.Context) (T, bool, error) { return v, true, nil }}
}

// SourceError records a failed source.
type SourceError struct {
	Source string
	Err    error
}

// Resolution is the first present value and where it came from.
type Resolution[T any] struct {
	Value  T
	Source string
	// Failures lists sources that errored before Value was found.
	Failures []SourceError
}

// Degraded reports whether any earlier source failed.
func (r Resolution[T]) Degraded() bool { return len(r.Failures) > 0 }

// Resolve walks sources in order and returns the first present value. A failing
// source does not stop resolution. If nothing yields a value the error wraps
// ErrNoValue and the failures collected so far are still returned.
func Resolve[T any](ctx context.Context, sources ...Source[T]) (Resolution[T], error) {
	var res Resolution[T]
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if src.Fetch == nil {
			continue
		}
		v, ok, err := src.Fetch(ctx)
		if err != nil {
			res.Failures = append(res.Failures, SourceError{Source: src.Name, Err: err})
			continue
		}
		if ok {
			res.Value = v
			res.Source = src.Name
			return res, nil
		}
	}
	if len(res.Failures) == 0 {
		return res, ErrNoValue
	}
	names := make([]string, 0, len(res.Failures))
	for _, f := range res.Failures {
		names = append(names, f.Source)
	}
	return res, fmt.Errorf("%w (failed: %s)", ErrNoValue, strings.Join(names, ", "))
}
