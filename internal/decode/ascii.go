// Package decode turns GrADS Data Server ASCII responses into named arrays
// with their coordinate axes.
//
// A response is a sequence of arrays. Each starts with a header
// "name, [n1][n2]...". Rank-1 arrays list their values on the following
// line. Higher-rank arrays list one row per leading index tuple,
// "[i][j]..., v, v, ...", and are followed by one rank-1 map array per
// dimension, in dimension order.
package decode

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gfsfetch/internal/types"
)

var (
	headerPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_.]*)\s*,\s*((?:\[\d+\])+)\s*$`)
	bracketNumber = regexp.MustCompile(`\[(\d+)\]`)
)

// Variable is one decoded data array.
type Variable struct {
	Name   string    `json:"name"`
	Dims   []string  `json:"dims"`
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// Size returns the number of elements described by Shape.
func (v *Variable) Size() int {
	n := 1
	for _, s := range v.Shape {
		n *= s
	}
	return n
}

// Dataset is a decoded response. Coords holds every map array by name.
type Dataset struct {
	Variables map[string]*Variable `json:"variables"`
	Coords    map[string][]float64 `json:"coords"`
	order     []string
}

// Names returns data variable names in response order.
func (d *Dataset) Names() []string {
	return append([]string(nil), d.order...)
}

// Variable returns the data variable called name.
func (d *Dataset) Variable(name string) (*Variable, bool) {
	v, ok := d.Variables[name]
	return v, ok
}

// Axis returns the coordinate values along dimension dim of v.
func (d *Dataset) Axis(v *Variable, dim int) []float64 {
	if dim < 0 || dim >= len(v.Dims) {
		return nil
	}
	return d.Coords[v.Dims[dim]]
}

// ASCIIDecoder decodes GrADS Data Server ".ascii" bodies.
type ASCIIDecoder struct{}

// NewASCIIDecoder returns a decoder.
func NewASCIIDecoder() *ASCIIDecoder { return &ASCIIDecoder{} }

type rawArray struct {
	name   string
	shape  []int
	values []float64
	line   int
}

// Decode parses body into a Dataset.
func (ASCIIDecoder) Decode(body string) (*Dataset, error) {
	arrays, err := readArrays(body)
	if err != nil {
		return nil, err
	}
	if len(arrays) == 0 {
		return nil, malformed(0, "", "response contains no arrays")
	}

	ds := &Dataset{
		Variables: make(map[string]*Variable),
		Coords:    make(map[string][]float64),
	}

	for i := 0; i < len(arrays); {
		a := arrays[i]
		if len(a.shape) == 1 {
			// Rank-1 arrays are coordinates.
			ds.Coords[a.name] = a.values
			i++
			continue
		}

		maps, ok := trailingMaps(arrays[i+1:], a.shape)
		if !ok {
			return nil, malformed(a.line, a.name, "array is not followed by its coordinate maps")
		}

		v := &Variable{Name: a.name, Shape: a.shape, Values: a.values}
		for _, m := range maps {
			v.Dims = append(v.Dims, m.name)
			ds.Coords[m.name] = m.values
		}
		if _, dup := ds.Variables[a.name]; !dup {
			ds.order = append(ds.order, a.name)
		}
		ds.Variables[a.name] = v
		i += 1 + len(maps)
	}

	return ds, nil
}

// trailingMaps reports whether the arrays after a variable are its rank-1
// maps, one per dimension with matching lengths.
func trailingMaps(rest []rawArray, shape []int) ([]rawArray, bool) {
	if len(rest) < len(shape) {
		return nil, false
	}
	for i, n := range shape {
		m := rest[i]
		if len(m.shape) != 1 || m.shape[0] != n {
			return nil, false
		}
	}
	return rest[:len(shape)], true
}

func readArrays(body string) ([]rawArray, error) {
	var (
		out     []rawArray
		current *rawArray
		filled  int
	)

	finish := func() error {
		if current == nil {
			return nil
		}
		if filled != len(current.values) {
			return malformed(current.line, current.name,
				fmt.Sprintf("expected %d values, got %d", len(current.values), filled))
		}
		out = append(out, *current)
		current = nil
		return nil
	}

	scanner := bufio.NewScanner(strings.NewReader(body))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			if err := finish(); err != nil {
				return nil, err
			}
			shape, size := parseShape(m[2])
			current = &rawArray{name: m[1], shape: shape, values: make([]float64, size), line: lineNo}
			filled = 0
			continue
		}

		if current == nil {
			if strings.HasPrefix(line, "<") || strings.Contains(line, "error") {
				return nil, malformed(lineNo, "", "upstream returned an error document: "+truncate(line))
			}
			return nil, malformed(lineNo, "", "data before any array header: "+truncate(line))
		}

		offset := filled
		valuesText := line
		if strings.HasPrefix(line, "[") {
			idxText, rest, found := strings.Cut(line, ",")
			if !found {
				return nil, malformed(lineNo, current.name, "index tuple without values")
			}
			start, err := rowOffset(idxText, current.shape)
			if err != nil {
				return nil, malformed(lineNo, current.name, err.Error())
			}
			offset = start
			valuesText = rest
		}

		for _, field := range strings.Split(valuesText, ",") {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, malformed(lineNo, current.name, fmt.Sprintf("bad value %q", field))
			}
			if offset >= len(current.values) {
				return nil, malformed(lineNo, current.name, "more values than the declared shape")
			}
			current.values[offset] = v
			offset++
			filled++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamMalformed, "failed to read ascii response", err)
	}
	if err := finish(); err != nil {
		return nil, err
	}
	return out, nil
}

func parseShape(dims string) ([]int, int) {
	matches := bracketNumber.FindAllStringSubmatch(dims, -1)
	shape := make([]int, len(matches))
	size := 1
	for i, m := range matches {
		n, _ := strconv.Atoi(m[1])
		shape[i] = n
		size *= n
	}
	return shape, size
}

// rowOffset converts a leading index tuple into the flat offset of the
// first element of that row.
func rowOffset(idxText string, shape []int) (int, error) {
	matches := bracketNumber.FindAllStringSubmatch(idxText, -1)
	if len(matches) != len(shape)-1 {
		return 0, fmt.Errorf("index tuple %q has %d indices, want %d", idxText, len(matches), len(shape)-1)
	}
	offset := 0
	for i, m := range matches {
		n, _ := strconv.Atoi(m[1])
		if n >= shape[i] {
			return 0, fmt.Errorf("index %d out of bounds for dimension of size %d", n, shape[i])
		}
		offset = offset*shape[i] + n
	}
	return offset * shape[len(shape)-1], nil
}

func malformed(line int, name, reason string) error {
	details := map[string]any{"line": line}
	if name != "" {
		details["array"] = name
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamMalformed,
		"malformed ascii response: "+reason, nil, details)
}

func truncate(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
