package clustering

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity_IdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	assert.InDelta(t, 1.0, cosineSimilarity(v, v), 0.0001)
}

func TestCosineSimilarity_OrthogonalVectors(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	assert.InDelta(t, 0.0, cosineSimilarity(a, b), 0.0001)
}

func TestCosineSimilarity_MismatchedLengths(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{1, 2}
	assert.Equal(t, float32(0), cosineSimilarity(a, b))
}

func TestCosineSimilarity_ZeroVector(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	assert.Equal(t, float32(0), cosineSimilarity(a, b))
}

func TestWindowDuration_DefaultsTo90Days(t *testing.T) {
	assert.Equal(t, 90*24*time.Hour, windowDuration(0))
	assert.Equal(t, 90*24*time.Hour, windowDuration(-5))
}

func TestWindowDuration_UsesConfiguredSeconds(t *testing.T) {
	assert.Equal(t, 3600*time.Second, windowDuration(3600))
}

func TestAccumulator_RunningCentroid(t *testing.T) {
	acc := &accumulator{}
	f1, f2 := uuid.New(), uuid.New()

	acc.add(f1, []float32{2, 0})
	assert.Equal(t, []float32{2, 0}, acc.centroid)

	acc.add(f2, []float32{0, 2})
	assert.Equal(t, []float32{1, 1}, acc.centroid)
	assert.ElementsMatch(t, []uuid.UUID{f1, f2}, acc.members)
}
