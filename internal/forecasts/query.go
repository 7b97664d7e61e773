package forecasts

import (
	"fmt"
	"strings"

	"gfsfetch/internal/types"
)

// BuildQuery renders the DODS constraint expression for variables:
//
//	name[t][lev range][lat][lon],name[t][lat][lon],...
//
// The level range is emitted only for level-dependent variables, and is
// required for them. Tokens keep the request order.
func BuildQuery(rec *types.CatalogRecord, variables []string, idx types.QueryIndex) (string, error) {
	if len(variables) == 0 {
		return "", types.NewAppError(types.ErrCodeValidationMissingField, "at least one variable is required", nil)
	}

	tokens := make([]string, 0, len(variables))
	for _, name := range variables {
		meta, ok := rec.Variables[name]
		if !ok {
			return "", types.NewAppErrorWithDetails(types.ErrCodeValidationUnknownVariable,
				fmt.Sprintf("variable %q is not provided by this model", name), nil,
				map[string]any{"variable": name})
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s[%d]", name, idx.TimeIndex)
		if meta.LevelDependent {
			if idx.Levels == nil {
				return "", types.NewAppErrorWithDetails(types.ErrCodeValidationMissingLevels,
					fmt.Sprintf("variable %q varies with pressure level and needs a level range", name), nil,
					map[string]any{"variable": name})
			}
			b.WriteString(idx.Levels.String())
		}
		b.WriteString(idx.Lat)
		b.WriteString(idx.Lon)
		tokens = append(tokens, b.String())
	}
	return strings.Join(tokens, ","), nil
}

// FullLevelRange spans every vertical level of lev.
func FullLevelRange(lev types.AxisMeta) types.LevelRange {
	return types.LevelRange{Start: 0, End: lev.GridSize - 1}
}
