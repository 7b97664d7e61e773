package forecasts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"gfsfetch/internal/types"
)

// sampleDAS is trimmed from a real gfs_0p25_1hr attribute response.
const sampleDAS = `Attributes {
    time {
        String grads_dim "t";
        String grads_mapping "linear";
        String grads_size "121";
        String grads_min "00z10mar2026";
        String grads_step "1hr";
        String units "days since 1-1-1 00:00:0.0";
        String long_name "time";
        String minimum "00z10mar2026";
        String maximum "00z15mar2026";
        Float64 resolution 0.041666668;
    }
    lev {
        String grads_dim "z";
        String grads_mapping "levels";
        String units "millibar";
        String long_name "altitude";
        Float64 minimum 1000.0;
        Float64 maximum 850.0;
        Float32 resolution 75.0;
        String grads_size "3";
    }
    lat {
        String grads_dim "y";
        String grads_mapping "linear";
        String grads_size "721";
        String units "degrees_north";
        String long_name "latitude";
        Float64 minimum -90.0;
        Float64 maximum 90.0;
        Float64 resolution 0.25;
    }
    lon {
        String grads_dim "x";
        String grads_mapping "linear";
        String grads_size "1440";
        String units "degrees_east";
        String long_name "longitude";
        Float64 minimum 0.0;
        Float64 maximum 359.75;
        Float64 resolution 0.25;
    }
    tmp2m {
        Float32 _FillValue 9.999E20;
        Float32 missing_value 9.999E20;
        String long_name "** 2 m above ground temperature [k] ";
    }
    hgtprs {
        Float32 _FillValue 9.999E20;
        Float32 missing_value 9.999E20;
        String long_name "** (1000 975 950 925 900.. 7 5 3 2 1) geopotential height [gpm] ";
    }
    ugrdprs {
        Float32 _FillValue 9.999E20;
        Float32 missing_value 9.999E20;
        String long_name "** (1000 975 950 925 900.. 7 5 3 2 1) u-component of wind [m/s] ";
    }
    NC_GLOBAL {
        String title "GFS 0.25 deg starting from 00Z10mar2026, downloaded Mar 10 04:51 UTC";
        String Conventions "COARDS";
        String dataType "Grid";
        Float64 history 0.0;
    }
}
`

const sampleDDS = `Dataset {
    Float64 time[time = 121];
    Float64 lev[lev = 3];
    Float64 lat[lat = 721];
    Float64 lon[lon = 1440];
    Grid {
     ARRAY:
        Float32 tmp2m[time = 121][lat = 721][lon = 1440];
     MAPS:
        Float64 time[time = 121];
        Float64 lat[lat = 721];
        Float64 lon[lon = 1440];
    } tmp2m;
    Grid {
     ARRAY:
        Float32 hgtprs[time = 121][lev = 3][lat = 721][lon = 1440];
     MAPS:
        Float64 time[time = 121];
        Float64 lev[lev = 3];
        Float64 lat[lat = 721];
        Float64 lon[lon = 1440];
    } hgtprs;
    Grid {
     ARRAY:
        Float32 ugrdprs[time = 121][lev = 3][lat = 721][lon = 1440];
     MAPS:
        Float64 time[time = 121];
        Float64 lev[lev = 3];
        Float64 lat[lat = 721];
        Float64 lon[lon = 1440];
    } ugrdprs;
} gfs_0p25_1hr_00z;
`

// heightASCII is a hgtprs response over 3 levels, 2 latitudes, 1 longitude.
const heightASCII = `hgtprs, [1][3][2][1]
[0][0][0], 100.0
[0][0][1], 120.0
[0][1][0], 760.0
[0][1][1], 780.0
[0][2][0], 1450.0
[0][2][1], 1470.0

time, [1]
739000.0
lev, [3]
1000.0, 925.0, 850.0
lat, [2]
40.0, 40.25
lon, [1]
255.0
`

const tmpASCII = `tmp2m, [1][2][1]
[0][0], 281.5
[0][1], 282.0

time, [1]
739000.0
lat, [2]
40.0, 40.25
lon, [1]
255.0
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

type response struct {
	status int
	body   string
	err    error
}

// fakeTransport answers by URL suffix or substring and records every call.
type fakeTransport struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []string
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{responses: make(map[string]response)}
}

func (f *fakeTransport) on(match string, status int, body string) *fakeTransport {
	f.responses[match] = response{status: status, body: body}
	return f
}

func (f *fakeTransport) Get(_ context.Context, url string) (int, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	best := ""
	for match := range f.responses {
		if strings.Contains(url, match) && len(match) > len(best) {
			best = match
		}
	}
	if best == "" {
		return 404, "", nil
	}
	r := f.responses[best]
	return r.status, r.body, r.err
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// countingStore wraps a map store and counts Put calls. When rival is set,
// Put behaves as if another process stored rival just before it.
type countingStore struct {
	mu      sync.Mutex
	records map[string]*types.CatalogRecord
	puts    int
	err     error
	rival   *types.CatalogRecord
}

func newCountingStore() *countingStore {
	return &countingStore{records: make(map[string]*types.CatalogRecord)}
}

func (s *countingStore) Has(_ context.Context, cfg types.ModelConfig) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.records[cfg.Key()]
	return ok, nil
}

func (s *countingStore) Get(_ context.Context, cfg types.ModelConfig) (*types.CatalogRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[cfg.Key()]
	if !ok {
		return nil, fmt.Errorf("missing %s", cfg.Key())
	}
	return rec, nil
}

func (s *countingStore) Put(_ context.Context, cfg types.ModelConfig, rec *types.CatalogRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.rival != nil {
		if _, ok := s.records[cfg.Key()]; !ok {
			s.records[cfg.Key()] = s.rival
		}
	}
	if _, ok := s.records[cfg.Key()]; !ok {
		s.records[cfg.Key()] = rec
	}
	return nil
}

// testRecord is the record sampleDAS + sampleDDS produce.
func testRecord() *types.CatalogRecord {
	fill := 9.999e20
	return &types.CatalogRecord{
		Time: types.TimeMeta{RunCount: 121, RunStepHours: 1},
		Coords: map[string]types.AxisMeta{
			types.AxisLat: {Minimum: -90, Maximum: 90, Resolution: 0.25, GridSize: 721},
			types.AxisLon: {Minimum: 0, Maximum: 359.75, Resolution: 0.25, GridSize: 1440},
			types.AxisLev: {Minimum: 1000, Maximum: 850, Resolution: 75, GridSize: 3},
		},
		Variables: map[string]types.VariableMeta{
			"tmp2m":   {Name: "tmp2m", FillValue: &fill, MissingValue: &fill},
			"hgtprs":  {Name: "hgtprs", LevelDependent: true, FillValue: &fill, MissingValue: &fill},
			"ugrdprs": {Name: "ugrdprs", LevelDependent: true},
		},
	}
}

var (
	cfgHourly = types.ModelConfig{Resolution: "0p25", Timestep: "1hr"}
	// 2026-03-10 15:10 UTC: latest cycle is 12z.
	testNow = time.Date(2026, 3, 10, 15, 10, 0, 0, time.UTC)
)
