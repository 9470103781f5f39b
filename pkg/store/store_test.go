package store

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gravmag/pkg/eqsources"
	"gravmag/pkg/geometry"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "models.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func twoSources() eqsources.Snapshot {
	return eqsources.Snapshot{
		Kind:         eqsources.KindPoints,
		Easting:      []float64{0, 100},
		Northing:     []float64{0, 0},
		Upward:       []float64{-50, -50},
		Coefficients: []float64{2, -1},
		Damping:      1e-6,
	}
}

func TestSaveLoad(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	id, err := db.Save(ctx, "survey-a", twoSources())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	snap, err := db.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, twoSources(), snap)

	m, err := db.LoadModel(ctx, id)
	require.NoError(t, err)
	coords, err := geometry.NewCoordinates([]float64{0}, []float64{0}, []float64{0})
	require.NoError(t, err)
	got, err := m.Predict(coords)
	require.NoError(t, err)
	d := 50.0
	far := 111.80339887498948 // hypot(100, 50)
	assert.InDelta(t, 2/d-1/far, got[0], 1e-12)
}

func TestListAndDelete(t *testing.T) {
	db := openTemp(t)
	ctx := context.Background()

	records, err := db.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)

	first, err := db.Save(ctx, "first", twoSources())
	require.NoError(t, err)
	layer := twoSources()
	layer.Kind = eqsources.KindLayer
	second, err := db.Save(ctx, "second", layer)
	require.NoError(t, err)

	records, err = db.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	ids := []string{records[0].ID, records[1].ID}
	assert.ElementsMatch(t, []string{first, second}, ids)
	for _, r := range records {
		assert.Equal(t, 2, r.Sources)
		assert.Equal(t, 1e-6, r.Damping)
		assert.False(t, r.CreatedAt.IsZero())
	}

	require.NoError(t, db.Delete(ctx, first))
	assert.ErrorIs(t, db.Delete(ctx, first), ErrNotFound)
	_, err = db.Load(ctx, first)
	assert.ErrorIs(t, err, ErrNotFound)

	records, err = db.List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "second", records[0].Name)
	assert.Equal(t, eqsources.KindLayer, records[0].Kind)
}

func TestReopenKeepsModels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models.db")
	db, err := Open(path, nil)
	require.NoError(t, err)
	id, err := db.Save(context.Background(), "kept", twoSources())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(path, nil)
	require.NoError(t, err)
	defer db.Close()
	snap, err := db.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Sources())
}
