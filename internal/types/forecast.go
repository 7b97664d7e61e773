package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Axis names used by the GrADS data server for the GFS grids.
const (
	AxisTime = "time"
	AxisLev  = "lev"
	AxisLat  = "lat"
	AxisLon  = "lon"
)

var (
	resolutionPattern = regexp.MustCompile(`^[0-9]p[0-9]{2}$`)
	timestepPattern   = regexp.MustCompile(`^[0-9]+hr$`)
)

// ModelConfig identifies one GFS product on the data server, e.g. the
// 0.25 degree grid at hourly output ("0p25", "1hr"). An empty Timestep
// selects the default (3-hourly) product.
type ModelConfig struct {
	Resolution string `json:"resolution"`
	Timestep   string `json:"timestep,omitempty"`
}

// Key is the product suffix used in dataset names and as the cache key:
// "0p25", "0p25_1hr".
func (m ModelConfig) Key() string {
	if m.Timestep == "" {
		return m.Resolution
	}
	return m.Resolution + "_" + m.Timestep
}

// String implements fmt.Stringer.
func (m ModelConfig) String() string {
	return m.Key()
}

// Validate checks the resolution and timestep shapes.
func (m ModelConfig) Validate() error {
	if !resolutionPattern.MatchString(m.Resolution) {
		return NewAppError(ErrCodeValidationModelConfig,
			fmt.Sprintf("resolution %q must look like 0p25", m.Resolution), nil)
	}
	if m.Timestep != "" && !timestepPattern.MatchString(m.Timestep) {
		return NewAppError(ErrCodeValidationModelConfig,
			fmt.Sprintf("timestep %q must be empty or look like 1hr", m.Timestep), nil)
	}
	return nil
}

// ParseModelConfig splits a key produced by ModelConfig.Key back into its parts.
func ParseModelConfig(key string) (ModelConfig, error) {
	res, step, _ := strings.Cut(key, "_")
	cfg := ModelConfig{Resolution: res, Timestep: step}
	if err := cfg.Validate(); err != nil {
		return ModelConfig{}, err
	}
	return cfg, nil
}

// TimeMeta describes the time axis of every run of a product.
// RunCount is the number of forecast steps in a run and RunStepHours the
// spacing between them.
type TimeMeta struct {
	RunCount     int `json:"run_count" validate:"gt=0"`
	RunStepHours int `json:"run_step_hours" validate:"gt=0"`
}

// Extent is how far a run reaches forward from its initialisation time.
func (t TimeMeta) Extent() time.Duration {
	return time.Duration(t.RunCount*t.RunStepHours) * time.Hour
}

// Step is the spacing between forecast steps.
func (t TimeMeta) Step() time.Duration {
	return time.Duration(t.RunStepHours) * time.Hour
}

// AxisMeta is the grid description of one spatial or vertical axis.
type AxisMeta struct {
	Minimum    float64 `json:"minimum"`
	Maximum    float64 `json:"maximum"`
	Resolution float64 `json:"resolution"`
	GridSize   int     `json:"grid_size" validate:"gt=0"`
}

// Lattice returns Minimum + Resolution*n for n in [0, GridSize).
func (a AxisMeta) Lattice() []float64 {
	if a.GridSize <= 0 {
		return nil
	}
	out := make([]float64, a.GridSize)
	for n := range out {
		out[n] = a.Minimum + a.Resolution*float64(n)
	}
	return out
}

// VariableMeta is what the catalog knows about one forecast field.
type VariableMeta struct {
	Name           string   `json:"name"`
	LevelDependent bool     `json:"level_dependent"`
	FillValue      *float64 `json:"fill_value,omitempty"`
	MissingValue   *float64 `json:"missing_value,omitempty"`
	LongName       string   `json:"long_name,omitempty"`
}

// CatalogRecord is the cached description of one ModelConfig. It is built
// once from the data server and never refreshed.
type CatalogRecord struct {
	Time      TimeMeta                `json:"time"`
	Coords    map[string]AxisMeta     `json:"coords"`
	Variables map[string]VariableMeta `json:"variables"`
	FetchedAt time.Time               `json:"fetched_at"`
}

// Clone returns a deep copy of r.
func (r *CatalogRecord) Clone() *CatalogRecord {
	if r == nil {
		return nil
	}
	out := *r
	out.Coords = make(map[string]AxisMeta, len(r.Coords))
	for k, v := range r.Coords {
		out.Coords[k] = v
	}
	out.Variables = make(map[string]VariableMeta, len(r.Variables))
	for k, v := range r.Variables {
		if v.FillValue != nil {
			f := *v.FillValue
			v.FillValue = &f
		}
		if v.MissingValue != nil {
			m := *v.MissingValue
			v.MissingValue = &m
		}
		out.Variables[k] = v
	}
	return &out
}

// LevelRange is an inclusive range of vertical indices.
type LevelRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// String renders the range as a DODS hyperslab: "[0:40]".
func (r LevelRange) String() string {
	return fmt.Sprintf("[%d:%d]", r.Start, r.End)
}

// QueryIndex carries the per-request indices that feed the query builder.
type QueryIndex struct {
	TimeIndex int
	Lat       string
	Lon       string
	Levels    *LevelRange
}

// RunSlot is a forecast run plus the step within it that covers a
// requested time.
type RunSlot struct {
	Run       time.Time `json:"run"`
	TimeIndex int       `json:"time_index"`
}

// Date is the run date as used in dataset paths (YYYYMMDD).
func (s RunSlot) Date() string {
	return s.Run.UTC().Format("20060102")
}

// Hour is the run initialisation hour (0, 6, 12 or 18).
func (s RunSlot) Hour() int {
	return s.Run.UTC().Hour()
}
