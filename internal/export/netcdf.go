// Package export writes decoded forecast results to classic netCDF files.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"

	"gfsfetch/internal/decode"
	"gfsfetch/internal/forecasts"
	"gfsfetch/internal/types"
)

// WriteNetCDF writes every coordinate axis and data variable of res to path.
// Data variables carry _FillValue, missing_value and long_name when the
// catalog knows them; the run and query are recorded as global attributes.
func WriteNetCDF(path string, res *forecasts.Result) error {
	if res == nil || res.Dataset == nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "nothing to export", nil)
	}
	dims, err := dimensionLengths(res.Dataset)
	if err != nil {
		return err
	}

	w, err := cdf.OpenWriter(path)
	if err != nil {
		return exportError(path, err)
	}
	if err := writeAll(w, res, dims); err != nil {
		w.Close()
		os.Remove(path)
		return exportError(path, err)
	}
	if err := w.Close(); err != nil {
		return exportError(path, err)
	}
	return nil
}

// WriteNetCDFBytes renders res through a temporary file, for callers that
// need the encoded file in memory.
func WriteNetCDFBytes(res *forecasts.Result) ([]byte, error) {
	dir, err := os.MkdirTemp("", "gfsfetch-export-")
	if err != nil {
		return nil, exportError("", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "result.nc")
	if err := WriteNetCDF(path, res); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, exportError(path, err)
	}
	return data, nil
}

// varWriter is the part of the cdf writer used here.
type varWriter interface {
	AddVar(name string, v api.Variable) error
	AddGlobalAttrs(attrs api.AttributeMap) error
}

func writeAll(w varWriter, res *forecasts.Result, dims []string) error {
	ds := res.Dataset
	for _, dim := range dims {
		if err := w.AddVar(dim, api.Variable{
			Values:     append([]float64(nil), ds.Coords[dim]...),
			Dimensions: []string{dim},
		}); err != nil {
			return fmt.Errorf("coordinate %s: %w", dim, err)
		}
	}

	for _, name := range ds.Names() {
		v, _ := ds.Variable(name)
		values, err := nest(v.Values, v.Shape)
		if err != nil {
			return fmt.Errorf("variable %s: %w", name, err)
		}
		attrs, err := variableAttributes(res.Variables[name])
		if err != nil {
			return err
		}
		if err := w.AddVar(name, api.Variable{
			Values:     values,
			Dimensions: append([]string(nil), v.Dims...),
			Attributes: attrs,
		}); err != nil {
			return fmt.Errorf("variable %s: %w", name, err)
		}
	}

	globals, err := util.NewOrderedMap(
		[]string{"model", "run", "time_index", "query", "source"},
		map[string]any{
			"model":      res.Config.Key(),
			"run":        res.Slot.Run.UTC().Format(time.RFC3339),
			"time_index": int32(res.Slot.TimeIndex),
			"query":      res.Query,
			"source":     res.URL,
		},
	)
	if err != nil {
		return err
	}
	return w.AddGlobalAttrs(globals)
}

// dimensionLengths lists the dimensions used by the data variables in first
// use order and checks each has one length throughout.
func dimensionLengths(ds *decode.Dataset) ([]string, error) {
	var order []string
	seen := make(map[string]int)
	for _, name := range ds.Names() {
		v, _ := ds.Variable(name)
		for i, dim := range v.Dims {
			n, ok := seen[dim]
			if !ok {
				if len(ds.Coords[dim]) != v.Shape[i] {
					return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalUnexpected,
						"coordinate length does not match variable shape", nil,
						map[string]any{"variable": name, "dimension": dim})
				}
				seen[dim] = v.Shape[i]
				order = append(order, dim)
				continue
			}
			if n != v.Shape[i] {
				return nil, types.NewAppErrorWithDetails(types.ErrCodeInternalUnexpected,
					"dimension has conflicting lengths", nil,
					map[string]any{"variable": name, "dimension": dim})
			}
		}
	}
	return order, nil
}

func variableAttributes(meta types.VariableMeta) (api.AttributeMap, error) {
	var keys []string
	vals := make(map[string]any)
	if meta.FillValue != nil {
		keys = append(keys, "_FillValue")
		vals["_FillValue"] = *meta.FillValue
	}
	if meta.MissingValue != nil {
		keys = append(keys, "missing_value")
		vals["missing_value"] = *meta.MissingValue
	}
	if meta.LongName != "" {
		keys = append(keys, "long_name")
		vals["long_name"] = meta.LongName
	}
	if len(keys) == 0 {
		return nil, nil
	}
	return util.NewOrderedMap(keys, vals)
}

// nest reshapes row-major values into the nested slice type the writer
// expects for the given rank.
func nest(values []float64, shape []int) (any, error) {
	size := 1
	for _, n := range shape {
		size *= n
	}
	if size != len(values) {
		return nil, fmt.Errorf("shape %v needs %d values, have %d", shape, size, len(values))
	}

	switch len(shape) {
	case 1:
		return append([]float64(nil), values...), nil
	case 2:
		return rows(values, shape[1]), nil
	case 3:
		out := make([][][]float64, shape[0])
		step := shape[1] * shape[2]
		for i := range out {
			out[i] = rows(values[i*step:(i+1)*step], shape[2])
		}
		return out, nil
	case 4:
		out := make([][][][]float64, shape[0])
		step := shape[1] * shape[2] * shape[3]
		for i := range out {
			block := values[i*step : (i+1)*step]
			inner := make([][][]float64, shape[1])
			for j := range inner {
				plane := shape[2] * shape[3]
				inner[j] = rows(block[j*plane:(j+1)*plane], shape[3])
			}
			out[i] = inner
		}
		return out, nil
	default:
		return nil, fmt.Errorf("rank %d is not supported", len(shape))
	}
}

func rows(values []float64, width int) [][]float64 {
	if width == 0 {
		return nil
	}
	out := make([][]float64, len(values)/width)
	for i := range out {
		out[i] = append([]float64(nil), values[i*width:(i+1)*width]...)
	}
	return out
}

func exportError(path string, err error) error {
	return types.NewAppErrorWithDetails(types.ErrCodeInternalUnexpected,
		"failed to write netCDF file", err, map[string]any{"path": path})
}
