package forecasts

import (
	"errors"
	"fmt"

	"gfsfetch/internal/decode"
	"gfsfetch/internal/interp"
	"gfsfetch/internal/types"
)

// HeightVariable is the geopotential height on pressure levels.
const HeightVariable = "hgtprs"

// levelFlip is subtracted from pressure levels so the vertical axis ascends.
const levelFlip = 1000.0

// InvertLevel maps a pressure level (hPa) onto the ascending vertical axis
// used by HeightInterpolator, and back: InvertLevel(InvertLevel(p)) == p.
func InvertLevel(p float64) float64 {
	return levelFlip - p
}

// HeightInterpolator relates positions on the model grid to geopotential
// height. Its domain is the non-degenerate axes of the fetched height
// field, in time, lev, lat, lon order; lev values are inverted (see
// InvertLevel).
type HeightInterpolator struct {
	grid   *interp.RegularGrid
	active []string
	coords map[string][]float64
}

// NewHeightInterpolator builds an interpolator over the hgtprs field of ds.
// Axes with a single sample are dropped and the field squeezed along them.
func NewHeightInterpolator(ds *decode.Dataset) (*HeightInterpolator, error) {
	v, ok := ds.Variable(HeightVariable)
	if !ok {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed,
			"height response does not contain "+HeightVariable, nil)
	}
	if len(v.Dims) != len(v.Shape) {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed,
			"height field dimensions do not match its shape", nil)
	}

	h := &HeightInterpolator{coords: make(map[string][]float64, len(v.Dims))}
	var axes [][]float64
	for i, dim := range v.Dims {
		values := ds.Axis(v, i)
		if len(values) != v.Shape[i] {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeUpstreamMalformed,
				fmt.Sprintf("axis %s has %d coordinates for %d samples", dim, len(values), v.Shape[i]),
				nil, map[string]any{"axis": dim})
		}
		if dim == types.AxisLev {
			inverted := make([]float64, len(values))
			for j, p := range values {
				inverted[j] = InvertLevel(p)
			}
			values = inverted
		}
		h.coords[dim] = values

		if len(values) > 1 {
			axes = append(axes, values)
			h.active = append(h.active, dim)
		}
	}

	if len(axes) == 0 {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed,
			"height field has no axis with more than one sample", nil)
	}

	// Dropping length-1 axes leaves row-major order unchanged, so the flat
	// values are already the squeezed array.
	grid, err := interp.NewRegularGrid(axes, v.Values)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed, "height field is not a regular grid", err)
	}
	h.grid = grid
	return h, nil
}

// ActiveAxes names the axes HeightAt expects coordinates for, in order.
func (h *HeightInterpolator) ActiveAxes() []string {
	return append([]string(nil), h.active...)
}

// Coords returns the sampled coordinates of a dimension, including dropped
// ones. Level coordinates are inverted.
func (h *HeightInterpolator) Coords(dim string) []float64 {
	return h.coords[dim]
}

// HeightAt interpolates geopotential height at a point given one coordinate
// per active axis.
func (h *HeightInterpolator) HeightAt(coords ...float64) (float64, error) {
	z, err := h.grid.At(coords...)
	if err == nil {
		return z, nil
	}

	if errors.Is(err, interp.ErrDimension) {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationDimensions,
			fmt.Sprintf("expected %d coordinates %v, got %d", len(h.active), h.active, len(coords)),
			err, map[string]any{"axes": h.ActiveAxes()})
	}
	var oor *interp.OutOfRangeError
	if errors.As(err, &oor) {
		return 0, types.NewAppErrorWithDetails(types.ErrCodeRangeOutsideGrid,
			fmt.Sprintf("%s = %v is outside the sampled range [%v, %v]", h.active[oor.Axis], oor.Value, oor.Min, oor.Max),
			err, map[string]any{
				"axis":    h.active[oor.Axis],
				"value":   oor.Value,
				"minimum": oor.Min,
				"maximum": oor.Max,
			})
	}
	return 0, types.NewAppError(types.ErrCodeInternalUnexpected, "height interpolation failed", err)
}

// LevelForAltitude would return the inverted pressure level at a geometric
// altitude. No numerical method has been chosen for the inversion, so it
// always fails.
func (h *HeightInterpolator) LevelForAltitude(altitude float64) (float64, error) {
	return 0, types.NewAppErrorWithDetails(types.ErrCodeUnimplementedAltitudeInversion,
		"altitude to pressure level lookup is not implemented", nil,
		map[string]any{"altitude": altitude})
}
