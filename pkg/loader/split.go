package loader

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// StratifiedSplit partitions row indices 0..len(y)-1 into train and test
// sets so that each class keeps its share of rows in both. The test set has
// ceil(testRatio*n) rows. The same seed always yields the same split.
func StratifiedSplit(y []int, testRatio float64, seed int64) (train, test []int, err error) {
	n := len(y)
	if testRatio <= 0 || testRatio >= 1 {
		return nil, nil, fmt.Errorf("split: test ratio %v must be in (0, 1)", testRatio)
	}
	nTest := int(math.Ceil(testRatio * float64(n)))
	nTrain := n - nTest
	if nTest == 0 || nTrain == 0 {
		return nil, nil, fmt.Errorf("split: %d rows cannot be split with test ratio %v", n, testRatio)
	}

	byClass := map[int][]int{}
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c, rows := range byClass {
		if len(rows) < 2 {
			return nil, nil, fmt.Errorf("split: class %d has only 1 member, need at least 2 to stratify", c)
		}
		classes = append(classes, c)
	}
	sort.Ints(classes)
	if nTest < len(classes) || nTrain < len(classes) {
		return nil, nil, errors.New("split: not enough rows to place every class in both sets")
	}

	// floor allocation, then hand out the remainder by largest fraction
	alloc := make([]int, len(classes))
	frac := make([]float64, len(classes))
	given := 0
	for k, c := range classes {
		exact := float64(len(byClass[c])) * float64(nTest) / float64(n)
		alloc[k] = int(math.Floor(exact))
		frac[k] = exact - float64(alloc[k])
		given += alloc[k]
	}
	order := make([]int, len(classes))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return frac[order[a]] > frac[order[b]] })
	for i := 0; given < nTest; i++ {
		alloc[order[i%len(order)]]++
		given++
	}

	rnd := rand.New(rand.NewSource(seed))
	for k, c := range classes {
		rows := append([]int(nil), byClass[c]...)
		rnd.Shuffle(len(rows), func(i, j int) { rows[i], rows[j] = rows[j], rows[i] })
		test = append(test, rows[:alloc[k]]...)
		train = append(train, rows[alloc[k]:]...)
	}
	rnd.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rnd.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}
