package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalis-app/sentinel/internal/models"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "sentinel.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestWriteReadRecentAscending(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	// written out of order on purpose
	for _, offset := range []int{3, 1, 2} {
		sample := models.NewSample(now.Add(-time.Duration(offset)*time.Minute), map[string]float64{
			models.KeyCPU:    float64(offset),
			models.KeyMemory: 50,
		})
		require.NoError(t, s.Write(ctx, sample))
	}
	old := models.NewSample(now.Add(-2*time.Hour), map[string]float64{models.KeyCPU: 99})
	require.NoError(t, s.Write(ctx, old))

	got, err := s.ReadRecent(ctx, 10*time.Minute)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, 3.0, got[0].Values[models.KeyCPU])
	assert.Equal(t, 2.0, got[1].Values[models.KeyCPU])
	assert.Equal(t, 1.0, got[2].Values[models.KeyCPU])

	_, hasGPU := got[0].Get(models.KeyGPU)
	assert.False(t, hasGPU, "absent keys stay absent")
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sentinel.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Write(context.Background(), models.NewSample(time.Now(), map[string]float64{models.KeyGPU: 12})))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestInMemoryStore(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Write(context.Background(), models.NewSample(time.Now(), map[string]float64{models.KeyCPU: 1})))
	got, err := s.ReadRecent(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestAnomaliesAndPrune(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.WriteAnomalies(ctx, now.Add(-11*24*time.Hour), []models.AnomalyEvent{
		{Resource: "cpu_percent", Score: 80, Severity: models.SeverityCritical},
	}))
	require.NoError(t, s.WriteAnomalies(ctx, now, []models.AnomalyEvent{
		{Resource: "memory_percent", Score: 55, Severity: models.SeverityWarning},
	}))
	require.NoError(t, s.Write(ctx, models.NewSample(now.Add(-11*24*time.Hour), map[string]float64{models.KeyCPU: 1})))
	require.NoError(t, s.Write(ctx, models.NewSample(now, map[string]float64{models.KeyCPU: 2})))

	removed, err := s.Prune(ctx, now.Add(-10*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	recs, err := s.RecentAnomalies(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "memory_percent", recs[0].Resource)
	assert.Equal(t, models.SeverityWarning, recs[0].Severity)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExportCSV(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, s.Write(ctx, models.NewSample(now, map[string]float64{
		models.KeyCPU:    12.5,
		models.KeyMemory: 40,
	})))

	var buf bytes.Buffer
	n, err := s.ExportCSV(ctx, &buf, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "timestamp", records[0][0])
	assert.Equal(t, models.KeyCPU, records[0][1])
	assert.Equal(t, "12.50", records[1][1])
	assert.Equal(t, "", records[1][9], "gpu column empty when not sampled")
}

func TestClosedStore(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Write(context.Background(), models.NewSample(time.Now(), nil))
	assert.ErrorIs(t, err, ErrClosed)
}
