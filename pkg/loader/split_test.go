package loader

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(zeros, ones int) []int {
	y := make([]int, 0, zeros+ones)
	for i := 0; i < zeros; i++ {
		y = append(y, 0)
	}
	for i := 0; i < ones; i++ {
		y = append(y, 1)
	}
	return y
}

func TestStratifiedSplitKeepsClassShares(t *testing.T) {
	y := labels(70, 30)

	train, test, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	pos := 0
	for _, i := range test {
		pos += y[i]
	}
	assert.Equal(t, 6, pos)

	all := append(append([]int(nil), train...), test...)
	sort.Ints(all)
	for i, v := range all {
		require.Equal(t, i, v, "every row lands in exactly one set")
	}
}

func TestStratifiedSplitRoundsTestUp(t *testing.T) {
	_, test, err := StratifiedSplit(labels(6, 5), 0.2, 1)
	require.NoError(t, err)
	assert.Len(t, test, 3)
}

func TestStratifiedSplitIsSeeded(t *testing.T) {
	y := labels(40, 10)
	trA, teA, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	trB, teB, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, trA, trB)
	assert.Equal(t, teA, teB)

	_, teC, err := StratifiedSplit(y, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, teA, teC)
}

func TestStratifiedSplitSingleClass(t *testing.T) {
	train, test, err := StratifiedSplit(labels(10, 0), 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, train, 8)
	assert.Len(t, test, 2)
}

func TestStratifiedSplitRejects(t *testing.T) {
	_, _, err := StratifiedSplit(labels(10, 1), 0.2, 42)
	assert.Error(t, err, "a class with one member cannot be stratified")

	_, _, err = StratifiedSplit(labels(10, 10), 1.5, 42)
	assert.Error(t, err)

	_, _, err = StratifiedSplit(labels(1, 0), 0.2, 42)
	assert.Error(t, err)
}
