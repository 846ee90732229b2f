package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vitalis-app/sentinel/internal/models"
)

func TestExtractFollowsOrder(t *testing.T) {
	values := make(map[string]float64, len(Order))
	for i, key := range Order {
		values[key] = float64(i + 1)
	}
	vec := Extract(models.NewSample(time.Now(), values))

	assert.Equal(t, models.FeatureVector{1, 2, 3, 4, 5, 6, 7, 8}, vec)
}

func TestExtractMissingKeysAreZero(t *testing.T) {
	s := models.NewSample(time.Now(), map[string]float64{
		models.KeyMemory: 42,
		"unrelated":      99,
	})
	vec := Extract(s)

	assert.Len(t, vec, len(Order))
	assert.Equal(t, 0.0, vec[0])
	assert.Equal(t, 42.0, vec[1])
	for _, v := range vec[2:] {
		assert.Equal(t, 0.0, v)
	}
}

func TestBatchPreservesRowOrder(t *testing.T) {
	samples := []models.MetricSample{
		models.NewSample(time.Unix(1, 0), map[string]float64{models.KeyCPU: 10}),
		models.NewSample(time.Unix(2, 0), map[string]float64{models.KeyCPU: 20}),
	}
	m := Batch(samples)

	assert.Len(t, m, 2)
	assert.Equal(t, 10.0, m[0][0])
	assert.Equal(t, 20.0, m[1][0])
}
