package forecasts

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gfsfetch/internal/types"
)

func newTestCatalog(store types.CatalogStore, tr Transport, now time.Time) *Catalog {
	return NewCatalog(store, tr,
		WithCatalogClock(types.FixedClock(now)),
		WithCatalogLogger(testLogger()),
		WithCatalogEndpoints(NewEndpoints("https://example.test/dods/")),
	)
}

func TestReferenceRun(t *testing.T) {
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		ReferenceRun(time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		ReferenceRun(time.Date(2026, 3, 10, 5, 59, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
		ReferenceRun(time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC)))
}

func TestCatalog_ResolveBuildsRecord(t *testing.T) {
	tr := newFakeTransport().
		on(".das", 200, sampleDAS).
		on(".dds", 200, sampleDDS)
	cat := newTestCatalog(newCountingStore(), tr, testNow)

	rec, err := cat.Resolve(context.Background(), cfgHourly)
	require.NoError(t, err)

	assert.Equal(t, types.TimeMeta{RunCount: 121, RunStepHours: 1}, rec.Time)
	assert.Equal(t, types.AxisMeta{Minimum: -90, Maximum: 90, Resolution: 0.25, GridSize: 721}, rec.Coords["lat"])
	assert.Equal(t, types.AxisMeta{Minimum: 0, Maximum: 359.75, Resolution: 0.25, GridSize: 1440}, rec.Coords["lon"])
	assert.Equal(t, 3, rec.Coords["lev"].GridSize)

	require.Len(t, rec.Variables, 3)
	assert.NotContains(t, rec.Variables, "NC_GLOBAL")
	assert.False(t, rec.Variables["tmp2m"].LevelDependent)
	assert.True(t, rec.Variables["hgtprs"].LevelDependent)
	require.NotNil(t, rec.Variables["tmp2m"].FillValue)
	assert.Equal(t, 9.999e20, *rec.Variables["tmp2m"].FillValue)
	assert.True(t, rec.FetchedAt.Equal(testNow))

	assert.Equal(t, []string{
		"https://example.test/dods/gfs_0p25_1hr/gfs20260310/gfs_0p25_1hr_00z.das",
		"https://example.test/dods/gfs_0p25_1hr/gfs20260310/gfs_0p25_1hr_00z.dds",
	}, tr.calls)
}

func TestCatalog_CacheIdempotence(t *testing.T) {
	tr := newFakeTransport().
		on(".das", 200, sampleDAS).
		on(".dds", 200, sampleDDS)
	store := newCountingStore()
	cat := newTestCatalog(store, tr, testNow)

	first, err := cat.Resolve(context.Background(), cfgHourly)
	require.NoError(t, err)
	fetches := tr.callCount()
	dasFetches := 0
	for _, u := range tr.calls {
		if strings.HasSuffix(u, ".das") {
			dasFetches++
		}
	}
	assert.Equal(t, 1, dasFetches)

	second, err := cat.Resolve(context.Background(), cfgHourly)
	require.NoError(t, err)
	assert.Equal(t, fetches, tr.callCount(), "second resolve must not touch the transport")
	assert.Equal(t, first, second)
	assert.Equal(t, 1, store.puts)
}

func TestCatalog_ConcurrentResolveSharesFetch(t *testing.T) {
	tr := newFakeTransport().
		on(".das", 200, sampleDAS).
		on(".dds", 200, sampleDDS)
	store := newCountingStore()
	cat := newTestCatalog(store, tr, testNow)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cat.Resolve(context.Background(), cfgHourly)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.puts)
}

func TestCatalog_LosingWriterReturnsStoredRecord(t *testing.T) {
	tr := newFakeTransport().
		on(".das", 200, sampleDAS).
		on(".dds", 200, sampleDDS)
	store := newCountingStore()
	store.rival = testRecord()
	store.rival.FetchedAt = testNow.Add(-time.Minute)
	cat := newTestCatalog(store, tr, testNow)

	first, err := cat.Resolve(context.Background(), cfgHourly)
	require.NoError(t, err)
	assert.True(t, first.FetchedAt.Equal(testNow.Add(-time.Minute)), "got %s", first.FetchedAt)
	assert.Equal(t, 2, tr.callCount())

	second, err := cat.Resolve(context.Background(), cfgHourly)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 2, tr.callCount())
}

func TestCatalog_UsesStoredRecordWithoutFetching(t *testing.T) {
	store := newCountingStore()
	store.records[cfgHourly.Key()] = testRecord()
	tr := newFakeTransport()
	cat := newTestCatalog(store, tr, testNow)

	rec, err := cat.Resolve(context.Background(), cfgHourly)
	require.NoError(t, err)
	assert.Equal(t, testRecord().Time, rec.Time)
	assert.Zero(t, tr.callCount())
}

func TestCatalog_Errors(t *testing.T) {
	tests := []struct {
		name string
		tr   *fakeTransport
		code types.ErrorCode
	}{
		{
			name: "das not found",
			tr:   newFakeTransport().on(".dds", 200, sampleDDS),
			code: types.ErrCodeUpstreamForecast,
		},
		{
			name: "dds server error",
			tr:   newFakeTransport().on(".das", 200, sampleDAS).on(".dds", 500, "oops"),
			code: types.ErrCodeUpstreamForecast,
		},
		{
			name: "malformed das",
			tr:   newFakeTransport().on(".das", 200, "<html>error</html>").on(".dds", 200, sampleDDS),
			code: types.ErrCodeUpstreamMalformed,
		},
		{
			name: "malformed dds",
			tr:   newFakeTransport().on(".das", 200, sampleDAS).on(".dds", 200, "ARRAY:\nFloat32 x;"),
			code: types.ErrCodeUpstreamMalformed,
		},
		{
			name: "das without time axis",
			tr: newFakeTransport().
				on(".das", 200, "Attributes {\n lat {\n Float64 minimum 0.0;\n }\n}").
				on(".dds", 200, sampleDDS),
			code: types.ErrCodeUpstreamMalformed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newCountingStore()
			cat := newTestCatalog(store, tt.tr, testNow)

			_, err := cat.Resolve(context.Background(), cfgHourly)
			require.Error(t, err)
			assert.True(t, types.IsService(err))
			var appErr *types.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.code, appErr.Code)
			assert.Zero(t, store.puts)
		})
	}
}

func TestCatalog_TransportErrorIsServiceError(t *testing.T) {
	tr := newFakeTransport()
	tr.responses[".das"] = response{err: errors.New("connection refused")}
	cat := newTestCatalog(newCountingStore(), tr, testNow)

	_, err := cat.Resolve(context.Background(), cfgHourly)
	require.Error(t, err)
	assert.True(t, types.IsService(err))
}

func TestCatalog_StoreErrorIsInternal(t *testing.T) {
	store := newCountingStore()
	store.err = errors.New("disk on fire")
	cat := newTestCatalog(store, newFakeTransport(), testNow)

	_, err := cat.Resolve(context.Background(), cfgHourly)
	require.Error(t, err)
	assert.Equal(t, types.KindInternal, types.KindOf(err))
}

func TestCatalog_InvalidConfig(t *testing.T) {
	cat := newTestCatalog(newCountingStore(), newFakeTransport(), testNow)
	_, err := cat.Resolve(context.Background(), types.ModelConfig{Resolution: "quarter"})
	assert.True(t, types.IsValidation(err))
}

func TestBuildRecord_UndeclaredVariableIsNotLevelDependent(t *testing.T) {
	das, err := ParseDAS(sampleDAS)
	require.NoError(t, err)

	rec, err := BuildRecord(das, nil)
	require.NoError(t, err)
	for name, v := range rec.Variables {
		assert.False(t, v.LevelDependent, name)
	}
}

type resolveRecorder struct {
	fakeMetrics
	resolves []bool
}

func (r *resolveRecorder) RecordResolve(_ context.Context, _ string, cached bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolves = append(r.resolves, cached)
}

func TestCatalog_RecordsResolveMetrics(t *testing.T) {
	tr := newFakeTransport().
		on(".das", 200, sampleDAS).
		on(".dds", 200, sampleDDS)
	rec := &resolveRecorder{}
	cat := NewCatalog(newCountingStore(), tr,
		WithCatalogClock(types.FixedClock(testNow)),
		WithCatalogLogger(testLogger()),
		WithCatalogMetrics(rec),
	)

	for i := 0; i < 2; i++ {
		_, err := cat.Resolve(context.Background(), cfgHourly)
		require.NoError(t, err)
	}

	assert.Equal(t, []bool{false, true}, rec.resolves)
	assert.Equal(t, []recordedFetch{
		{"0p25_1hr", "das", true},
		{"0p25_1hr", "dds", true},
	}, rec.fetches)
}
