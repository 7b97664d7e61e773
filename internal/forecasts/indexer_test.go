package forecasts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gfsfetch/internal/types"
)

var (
	latAxis = types.AxisMeta{Minimum: -90, Maximum: 90, Resolution: 0.25, GridSize: 721}
	lonAxis = types.AxisMeta{Minimum: 0, Maximum: 359.75, Resolution: 0.25, GridSize: 1440}
	oneDeg  = types.AxisMeta{Minimum: -90, Maximum: 90, Resolution: 1, GridSize: 181}
)

func TestValueToIndex_RoundTrip(t *testing.T) {
	for _, axis := range []types.AxisMeta{latAxis, lonAxis, oneDeg} {
		for n, v := range axis.Lattice() {
			idx, err := ValueToIndex(axis, v)
			require.NoError(t, err)
			assert.Equal(t, n, idx)
			assert.Equal(t, v, axis.Minimum+axis.Resolution*float64(idx))
		}
	}
}

func TestValueToIndex_OffGrid(t *testing.T) {
	for _, v := range []float64{40.1, -90.25, 90.25, 1000} {
		_, err := ValueToIndex(latAxis, v)
		require.Error(t, err)
		assert.True(t, types.IsValidation(err), "%v", v)

		var appErr *types.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, types.ErrCodeValidationOffGrid, appErr.Code)
	}
}

func TestParseExpression(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want string
	}{
		{"range ascending", "[35:40]", "[500:520]"},
		{"range descending", "[40:35]", "[500:520]"},
		{"range with spaces", " [ 35.25 : 35.5 ] ", "[501:502]"},
		{"single point range", "[0:0]", "[360:360]"},
		{"numeric string", "40.25", "[521]"},
		{"negative numeric string", "-90", "[0]"},
		{"float64", 40.25, "[521]"},
		{"float32", float32(40.25), "[521]"},
		{"int", 40, "[520]"},
		{"int64", int64(-90), "[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExpression(latAxis, tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseExpression_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		code types.ErrorCode
	}{
		{"word", "north", types.ErrCodeValidationCoordinateExpr},
		{"comma range", "[35,40]", types.ErrCodeValidationCoordinateExpr},
		{"unclosed", "[35:40", types.ErrCodeValidationCoordinateExpr},
		{"non numeric endpoint", "[35:x]", types.ErrCodeValidationCoordinateExpr},
		{"empty", "", types.ErrCodeValidationCoordinateExpr},
		{"slice", []float64{35, 40}, types.ErrCodeValidationCoordinateExpr},
		{"bool", true, types.ErrCodeValidationCoordinateExpr},
		{"nil", nil, types.ErrCodeValidationCoordinateExpr},
		{"off grid endpoint", "[35:40.1]", types.ErrCodeValidationOffGrid},
		{"off grid number", 40.1, types.ErrCodeValidationOffGrid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpression(latAxis, tt.raw)
			require.Error(t, err)
			assert.True(t, types.IsValidation(err))
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}
