package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModelConfig_KeyRoundTrip(t *testing.T) {
	tests := []struct {
		key  string
		want ModelConfig
	}{
		{"0p25", ModelConfig{Resolution: "0p25"}},
		{"0p25_1hr", ModelConfig{Resolution: "0p25", Timestep: "1hr"}},
		{"1p00", ModelConfig{Resolution: "1p00"}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ParseModelConfig(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.key, got.Key())
			assert.Equal(t, tt.key, got.String())
		})
	}
}

func TestModelConfig_Invalid(t *testing.T) {
	for _, key := range []string{"", "quarter", "0p2", "0p25_hourly", "0p25_1h", "0.25"} {
		_, err := ParseModelConfig(key)
		require.Error(t, err, key)
		var appErr *AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, ErrCodeValidationModelConfig, appErr.Code, key)
	}
}

func TestTimeMeta(t *testing.T) {
	tm := TimeMeta{RunCount: 121, RunStepHours: 1}
	assert.Equal(t, 121*time.Hour, tm.Extent())
	assert.Equal(t, time.Hour, tm.Step())

	tm = TimeMeta{RunCount: 81, RunStepHours: 3}
	assert.Equal(t, 243*time.Hour, tm.Extent())
}

func TestAxisMeta_Lattice(t *testing.T) {
	a := AxisMeta{Minimum: -90, Maximum: 90, Resolution: 45, GridSize: 5}
	assert.Equal(t, []float64{-90, -45, 0, 45, 90}, a.Lattice())

	// Pressure levels descend.
	lev := AxisMeta{Minimum: 1000, Maximum: 850, Resolution: -75, GridSize: 3}
	assert.Equal(t, []float64{1000, 925, 850}, lev.Lattice())

	assert.Nil(t, AxisMeta{}.Lattice())
}

func TestLevelRange_String(t *testing.T) {
	assert.Equal(t, "[0:40]", LevelRange{Start: 0, End: 40}.String())
}

func TestRunSlot(t *testing.T) {
	s := RunSlot{Run: time.Date(2026, 3, 9, 18, 0, 0, 0, time.UTC), TimeIndex: 4}
	assert.Equal(t, "20260309", s.Date())
	assert.Equal(t, 18, s.Hour())

	// Rendered in UTC whatever the location.
	local := RunSlot{Run: s.Run.In(time.FixedZone("JST", 9*3600))}
	assert.Equal(t, "20260309", local.Date())
	assert.Equal(t, 18, local.Hour())
}

func TestCatalogRecord_Clone(t *testing.T) {
	fill := 9.999e20
	rec := &CatalogRecord{
		Time:      TimeMeta{RunCount: 121, RunStepHours: 1},
		Coords:    map[string]AxisMeta{AxisLat: {Minimum: -90, Maximum: 90, Resolution: 0.25, GridSize: 721}},
		Variables: map[string]VariableMeta{"tmp2m": {Name: "tmp2m", FillValue: &fill}},
		FetchedAt: time.Date(2026, 3, 10, 7, 0, 0, 0, time.UTC),
	}

	c := rec.Clone()
	require.Equal(t, rec, c)

	c.Coords[AxisLat] = AxisMeta{}
	*c.Variables["tmp2m"].FillValue = 0
	delete(c.Variables, "tmp2m")
	assert.Equal(t, 721, rec.Coords[AxisLat].GridSize)
	require.Contains(t, rec.Variables, "tmp2m")
	assert.Equal(t, 9.999e20, *rec.Variables["tmp2m"].FillValue)

	assert.Nil(t, (*CatalogRecord)(nil).Clone())
}

func TestClocks(t *testing.T) {
	fixed := time.Date(2026, 3, 10, 15, 10, 0, 0, time.UTC)
	assert.Equal(t, fixed, FixedClock(fixed).Now())
	assert.Equal(t, time.UTC, RealClock{}.Now().Location())
}
