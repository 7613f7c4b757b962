package canopy

import (
	"errors"
	"fmt"
)

// ErrInvalidInterval is returned when an interval is built with start > end,
// or with a NaN endpoint. A negative width or height on a bounding box
// surfaces as this error.
var ErrInvalidInterval = errors.New("canopy: invalid interval")

// Interval is a closed range [Start, End] carrying a payload handle.
// Data is stored as given; for widgets it is the widget handle itself,
// never a copy of widget state.
type Interval[T any] struct {
	Start, End float64
	Data       T
}

// NewInterval returns the interval [start, end] carrying data.
func NewInterval[T any](start, end float64, data T) (Interval[T], error) {
	if err := checkRange(start, end); err != nil {
		return Interval[T]{}, err
	}
	return Interval[T]{Start: start, End: end, Data: data}, nil
}

// Contains reports whether p lies inside the interval. Both endpoints are
// included.
func (iv Interval[T]) Contains(p float64) bool {
	return iv.Start <= p && p <= iv.End
}

// Overlaps reports whether the interval intersects [start, end].
// Ranges that only touch at an endpoint overlap.
func (iv Interval[T]) Overlaps(start, end float64) bool {
	return iv.Start <= end && start <= iv.End
}

// checkRange rejects start > end. The negated comparison also catches NaN.
func checkRange(start, end float64) error {
	if !(start <= end) {
		return fmt.Errorf("%w: [%g, %g]", ErrInvalidInterval, start, end)
	}
	return nil
}
