package sqlite

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/landcover.report/internal/db"
	"github.com/banshee-data/landcover.report/internal/landcover/l1labels"
	"github.com/banshee-data/landcover.report/internal/landcover/l2raster"
	"github.com/banshee-data/landcover.report/internal/timeutil"
)

func setupTestDB(t *testing.T) *db.DB {
	t.Helper()
	database, err := db.NewDB(filepath.Join(t.TempDir(), "assets.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func testStack(t *testing.T) *l2raster.Stack {
	t.Helper()
	s, err := l2raster.NewStack(2001, 2004, 3, 2)
	require.NoError(t, err)
	for i, b := range s.Bands {
		for j := range b.Cells {
			b.Cells[j] = l1labels.Label((i*7 + j) % 40)
		}
	}
	s.Geo = l2raster.GeoTransform{OriginX: -47.5, OriginY: -15.2, PixelWidth: 30, PixelHeight: -30}
	return s
}

func TestAssetStore_InsertGet(t *testing.T) {
	t.Parallel()
	database := setupTestDB(t)
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	store := NewAssetStoreWithClock(database.DB, clock)

	a := &Asset{
		Name:          "CERRADO_C10_gapfill_v11_temporal_v16",
		RuleSet:       "cerrado_landsat_c10",
		StartYear:     1985,
		EndYear:       2024,
		Width:         10,
		Height:        20,
		Producer:      "dev",
		ChangedPixels: 42,
		ReportJSON:    json.RawMessage(`{"stage":"temporal"}`),
	}
	require.NoError(t, store.Insert(a))
	assert.NotEmpty(t, a.AssetID)
	assert.Equal(t, "CERRADO_C10", a.Prefix)
	assert.Equal(t, "temporal", a.Stage)
	assert.Equal(t, 16, a.StageVersion)
	assert.Equal(t, time.Unix(1700000000, 0).UnixNano(), a.CreatedAt)

	got, err := store.Get(a.AssetID)
	require.NoError(t, err)
	if diff := cmp.Diff(a, got); diff != "" {
		t.Errorf("Get mismatch (-want +got):\n%s", diff)
	}

	byName, err := store.GetByName(a.Name)
	require.NoError(t, err)
	assert.Equal(t, a.AssetID, byName.AssetID)
}

func TestAssetStore_InsertRejectsBadName(t *testing.T) {
	t.Parallel()
	store := NewAssetStore(setupTestDB(t).DB)
	err := store.Insert(&Asset{Name: "_bad"})
	assert.Error(t, err)
}

func TestAssetStore_ReinsertKeepsID(t *testing.T) {
	t.Parallel()
	store := NewAssetStore(setupTestDB(t).DB)

	first := &Asset{Name: "CERRADO_C10_gapfill_v11", ChangedPixels: 1}
	require.NoError(t, store.Insert(first))

	second := &Asset{Name: "CERRADO_C10_gapfill_v11", ChangedPixels: 9}
	require.NoError(t, store.Insert(second))
	assert.Equal(t, first.AssetID, second.AssetID)

	got, err := store.GetByName(first.Name)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.ChangedPixels)
}

func TestAssetStore_NotFound(t *testing.T) {
	t.Parallel()
	store := NewAssetStore(setupTestDB(t).DB)

	_, err := store.Get("missing")
	assert.True(t, errors.Is(err, ErrAssetNotFound))
	_, err = store.GetByName("CERRADO_C10_gapfill_v1")
	assert.True(t, errors.Is(err, ErrAssetNotFound))
	_, err = store.LatestForPrefix("NOPE")
	assert.True(t, errors.Is(err, ErrAssetNotFound))
	assert.True(t, errors.Is(store.Delete("CERRADO_C10_gapfill_v1"), ErrAssetNotFound))
}

func TestAssetStore_ListAndLatest(t *testing.T) {
	t.Parallel()
	clock := timeutil.NewMockClock(time.Unix(1000, 0))
	store := NewAssetStoreWithClock(setupTestDB(t).DB, clock)

	names := []string{
		"CERRADO_C10_gapfill_v11",
		"CERRADO_C10_gapfill_v11_temporal_v16",
		"ROCKY_C10_gapfill_v1",
		"CERRADO_C10_gapfill_v11_temporal_v16_spatial_v10",
	}
	for i, n := range names {
		clock.Set(time.Unix(int64(1000+i), 0))
		require.NoError(t, store.Insert(&Asset{Name: n}))
	}

	all, err := store.List("")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, names[0], all[0].Name)

	cerrado, err := store.List("CERRADO_C10")
	require.NoError(t, err)
	var got []string
	for _, a := range cerrado {
		got = append(got, a.Name)
	}
	want := []string{names[0], names[1], names[3]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	latest, err := store.LatestForPrefix("CERRADO_C10")
	require.NoError(t, err)
	assert.Equal(t, names[3], latest.Name)
	assert.Equal(t, "spatial", latest.Stage)

	require.NoError(t, store.Delete(names[3]))
	latest, err = store.LatestForPrefix("CERRADO_C10")
	require.NoError(t, err)
	assert.Equal(t, names[1], latest.Name)
}

func TestEncodeDecodeStack(t *testing.T) {
	t.Parallel()
	s := testStack(t)
	blob, err := EncodeStack(s)
	require.NoError(t, err)

	got, err := DecodeStack(blob)
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDecodeStack_Corrupt(t *testing.T) {
	t.Parallel()
	_, err := DecodeStack([]byte("not gzip"))
	assert.True(t, errors.Is(err, ErrCorruptCheckpoint))

	blob, err := EncodeStack(testStack(t))
	require.NoError(t, err)
	// Decompressing a truncated stream fails part-way through the bands.
	_, err = DecodeStack(blob[:len(blob)/2])
	assert.True(t, errors.Is(err, ErrCorruptCheckpoint))
}

func TestDecodeStack_RejectsOversizedHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hdr  checkpointHeader
	}{
		{"too many years", checkpointHeader{StartYear: 2001, Years: 1 << 30, Width: 4096, Height: 4096}},
		{"zero years", checkpointHeader{StartYear: 2001, Years: 0, Width: 2, Height: 2}},
		{"too many pixels", checkpointHeader{StartYear: 2001, Years: 1, Width: 1 << 20, Height: 1 << 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, err := zw.Write([]byte(checkpointMagic))
			require.NoError(t, err)
			require.NoError(t, binary.Write(zw, binary.LittleEndian, tt.hdr))
			require.NoError(t, zw.Close())

			_, err = DecodeStack(buf.Bytes())
			assert.ErrorIs(t, err, ErrCorruptCheckpoint)
			assert.Contains(t, err.Error(), "header")
		})
	}
}

func TestCheckpointStore_SaveLoad(t *testing.T) {
	t.Parallel()
	database := setupTestDB(t)
	assets := NewAssetStore(database.DB)
	checkpoints := NewCheckpointStore(database.DB, assets)

	name := "CERRADO_C10_gapfill_v11"
	has, err := checkpoints.Has(name)
	require.NoError(t, err)
	assert.False(t, has)
	_, err = checkpoints.Load(name)
	assert.True(t, errors.Is(err, ErrAssetNotFound))

	s := testStack(t)
	a := &Asset{Name: name, RuleSet: "cerrado_landsat_c10"}
	require.NoError(t, checkpoints.Save(a, s))
	assert.Equal(t, 2001, a.StartYear)
	assert.Equal(t, 2004, a.EndYear)

	has, err = checkpoints.Has(name)
	require.NoError(t, err)
	assert.True(t, has)

	got, err := checkpoints.Load(name)
	require.NoError(t, err)
	if diff := cmp.Diff(s, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}

	// Saving again overwrites the bands.
	s.Bands[0].Cells[0] = l1labels.Forest
	require.NoError(t, checkpoints.Save(&Asset{Name: name}, s))
	got, err = checkpoints.Load(name)
	require.NoError(t, err)
	assert.Equal(t, l1labels.Forest, got.Bands[0].Cells[0])

	// Deleting the asset cascades to the checkpoint.
	require.NoError(t, assets.Delete(name))
	has, err = checkpoints.Has(name)
	require.NoError(t, err)
	assert.False(t, has)
}
