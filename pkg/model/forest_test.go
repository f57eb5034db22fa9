package model

import (
	"bytes"
	"encoding/gob"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blobs returns two noisy clusters; feature 0 carries the signal and
// feature 1 is noise.
func blobs(n int, seed int64) ([][]float64, []int) {
	r := rand.New(rand.NewSource(seed))
	X := make([][]float64, 0, n)
	y := make([]int, 0, n)
	for i := 0; i < n; i++ {
		c := 0
		if i%4 == 0 {
			c = 1
		}
		X = append(X, []float64{float64(c)*4 + r.NormFloat64(), r.NormFloat64()})
		y = append(y, c)
	}
	return X, y
}

func TestRandomForestLearnsSignal(t *testing.T) {
	X, y := blobs(200, 1)

	rf := NewRandomForest(WithNEstimators(25), WithSeed(42), WithClassWeight(ClassWeightBalanced))
	require.NoError(t, rf.Fit(X, y))

	assert.Greater(t, AccuracyInt(y, rf.Predict(X)), 0.9)
	imp := rf.FeatureImportances()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0]+imp[1], 1e-9)
	assert.Greater(t, imp[0], imp[1])

	for _, p := range rf.PredictProba(X) {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 1.0)
	}
}

func TestRandomForestIsDeterministicAcrossJobs(t *testing.T) {
	X, y := blobs(120, 2)

	a := NewRandomForest(WithNEstimators(15), WithSeed(42), WithNJobs(1))
	require.NoError(t, a.Fit(X, y))
	b := NewRandomForest(WithNEstimators(15), WithSeed(42), WithNJobs(8))
	require.NoError(t, b.Fit(X, y))

	assert.Equal(t, a.PredictProba(X), b.PredictProba(X))
	assert.Equal(t, a.FeatureImportances(), b.FeatureImportances())
}

func TestRandomForestBalancedWeights(t *testing.T) {
	rf := &RandomForest{ClassWeight: ClassWeightBalanced, Classes: []int{0, 1}}
	w := rf.classWeights([]int{0, 0, 0, 1})
	assert.InDelta(t, 4.0/6.0, w[0], 1e-12)
	assert.InDelta(t, 2.0, w[1], 1e-12)

	rf.ClassWeight = ""
	w = rf.classWeights([]int{0, 0, 0, 1})
	assert.Equal(t, 1.0, w[0])
	assert.Equal(t, 1.0, w[1])
}

func TestRandomForestWithoutPositiveClass(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}}
	rf := NewRandomForest(WithNEstimators(3), WithSeed(1))
	require.NoError(t, rf.Fit(X, []int{0, 0, 0}))

	assert.Equal(t, []float64{0, 0, 0}, rf.PredictProba(X))
	assert.Equal(t, []float64{0}, rf.FeatureImportances())
}

func TestRandomForestGobRoundTrip(t *testing.T) {
	X, y := blobs(80, 3)
	rf := NewRandomForest(WithNEstimators(5), WithSeed(7))
	require.NoError(t, rf.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(rf))

	var back RandomForest
	require.NoError(t, gob.NewDecoder(&buf).Decode(&back))
	assert.Equal(t, rf.PredictProba(X), back.PredictProba(X))
	assert.Equal(t, rf.FeatureImportances(), back.FeatureImportances())
}

func TestRandomForestRejectsBadInput(t *testing.T) {
	rf := NewRandomForest()
	assert.Error(t, rf.Fit(nil, nil))
	assert.Error(t, rf.Fit([][]float64{{1}}, []int{0, 1}))
	assert.Error(t, NewRandomForest(WithNEstimators(0)).Fit([][]float64{{1}}, []int{0}))
}
