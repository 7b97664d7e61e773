package forecasts

import (
	"fmt"
	"strconv"
	"strings"

	"gfsfetch/internal/types"
)

const expressionShapes = `a bracketed range such as "[30.0:35.5]" or a single number such as 30.25`

// ValueToIndex returns the position of value on the axis lattice
// Minimum + Resolution*n. Only exact lattice values are accepted.
func ValueToIndex(axis types.AxisMeta, value float64) (int, error) {
	for n, v := range axis.Lattice() {
		if v == value {
			return n, nil
		}
	}
	return 0, types.NewAppErrorWithDetails(types.ErrCodeValidationOffGrid,
		fmt.Sprintf("%v is not a grid value (grid starts at %v with step %v, %d points)",
			value, axis.Minimum, axis.Resolution, axis.GridSize),
		nil,
		map[string]any{
			"value":      value,
			"minimum":    axis.Minimum,
			"resolution": axis.Resolution,
			"grid_size":  axis.GridSize,
		})
}

// ParseExpression turns a coordinate into a DODS index expression. raw is
// either a string "[a:b]", whose endpoints may come in any order and are
// emitted lowest index first, or a single number given as a string or a Go
// numeric type, emitted as "[i]".
func ParseExpression(axis types.AxisMeta, raw any) (string, error) {
	switch v := raw.(type) {
	case string:
		return parseExpressionString(axis, v)
	case float64:
		return singleIndex(axis, v)
	case float32:
		return singleIndex(axis, float64(v))
	case int:
		return singleIndex(axis, float64(v))
	case int32:
		return singleIndex(axis, float64(v))
	case int64:
		return singleIndex(axis, float64(v))
	default:
		return "", badExpression(raw)
	}
}

func parseExpressionString(axis types.AxisMeta, raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		lo, hi, found := strings.Cut(s[1:len(s)-1], ":")
		if !found {
			return "", badExpression(raw)
		}
		a, errA := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		b, errB := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if errA != nil || errB != nil {
			return "", badExpression(raw)
		}
		i, err := ValueToIndex(axis, a)
		if err != nil {
			return "", err
		}
		j, err := ValueToIndex(axis, b)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("[%d:%d]", min(i, j), max(i, j)), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return "", badExpression(raw)
	}
	return singleIndex(axis, f)
}

func singleIndex(axis types.AxisMeta, v float64) (string, error) {
	i, err := ValueToIndex(axis, v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("[%d]", i), nil
}

func badExpression(raw any) error {
	return types.NewAppErrorWithDetails(types.ErrCodeValidationCoordinateExpr,
		fmt.Sprintf("coordinate %v (%T) must be %s", raw, raw, expressionShapes),
		nil,
		map[string]any{"input": fmt.Sprint(raw)})
}
