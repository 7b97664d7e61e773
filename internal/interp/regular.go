// Package interp provides N-linear interpolation over rectilinear grids.
package interp

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDimension is returned when a point's arity does not match the grid.
var ErrDimension = errors.New("interp: dimension mismatch")

// OutOfRangeError reports a coordinate outside the sampled extent of an axis.
type OutOfRangeError struct {
	Axis     int
	Value    float64
	Min, Max float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("interp: coordinate %.6f on axis %d is outside grid range [%.6f, %.6f]",
		e.Value, e.Axis, e.Min, e.Max)
}

// RegularGrid holds values sampled on the cartesian product of strictly
// increasing axes. Values are stored flat in row-major order: the last axis
// varies fastest.
type RegularGrid struct {
	axes    [][]float64
	values  []float64
	strides []int
}

// NewRegularGrid validates the axes and the value count and returns a grid.
// Every axis needs at least two samples; length-1 axes must be dropped by
// the caller.
func NewRegularGrid(axes [][]float64, values []float64) (*RegularGrid, error) {
	if len(axes) == 0 {
		return nil, fmt.Errorf("interp: grid must have at least one axis")
	}

	strides := make([]int, len(axes))
	size := 1
	for i := len(axes) - 1; i >= 0; i-- {
		ax := axes[i]
		if len(ax) < 2 {
			return nil, fmt.Errorf("interp: axis %d must have at least 2 coordinates, got %d", i, len(ax))
		}
		for j := 1; j < len(ax); j++ {
			if !(ax[j] > ax[j-1]) {
				return nil, fmt.Errorf("interp: axis %d coordinates must be strictly increasing", i)
			}
		}
		strides[i] = size
		size *= len(ax)
	}
	if len(values) != size {
		return nil, fmt.Errorf("interp: got %d values, grid shape needs %d", len(values), size)
	}

	return &RegularGrid{axes: axes, values: values, strides: strides}, nil
}

// Dims returns the number of axes.
func (g *RegularGrid) Dims() int { return len(g.axes) }

// Axis returns the coordinates of axis i.
func (g *RegularGrid) Axis(i int) []float64 { return g.axes[i] }

// At interpolates the grid at point, which must have one coordinate per axis.
// Points on the boundary are inside; anything beyond it is an OutOfRangeError.
func (g *RegularGrid) At(point ...float64) (float64, error) {
	if len(point) != len(g.axes) {
		return 0, fmt.Errorf("%w: got %d coordinates for %d axes", ErrDimension, len(point), len(g.axes))
	}

	lower := make([]int, len(point))
	frac := make([]float64, len(point))
	for i, x := range point {
		ax := g.axes[i]
		lo, hi := ax[0], ax[len(ax)-1]
		if math.IsNaN(x) || x < lo || x > hi {
			return 0, &OutOfRangeError{Axis: i, Value: x, Min: lo, Max: hi}
		}
		// First index with ax[k] >= x, stepped back to the cell's lower edge.
		k := sort.SearchFloat64s(ax, x)
		if k > 0 {
			k--
		}
		if k > len(ax)-2 {
			k = len(ax) - 2
		}
		lower[i] = k
		frac[i] = (x - ax[k]) / (ax[k+1] - ax[k])
	}

	// Weighted sum over the 2^n corners of the enclosing cell.
	var sum float64
	corners := 1 << len(point)
	for c := 0; c < corners; c++ {
		weight := 1.0
		offset := 0
		for i := range point {
			idx := lower[i]
			if c&(1<<i) != 0 {
				idx++
				weight *= frac[i]
			} else {
				weight *= 1 - frac[i]
			}
			offset += idx * g.strides[i]
		}
		if weight == 0 {
			continue
		}
		sum += weight * g.values[offset]
	}
	return sum, nil
}
