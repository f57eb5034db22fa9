package model

import (
	"errors"
	"math"
	"math/rand"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ClassWeightBalanced weights each class by n / (nClasses * count(class)).
const ClassWeightBalanced = "balanced"

// RandomForest for binary classification. Exported fields are the gob wire
// form of a fitted forest.
type RandomForest struct {
	// Hyperparameters / options
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 0 => floor(sqrt(p))
	Bootstrap       bool
	ClassWeight     string
	RandomState     int64
	NJobs           int // 0 => GOMAXPROCS

	// Fitted state
	Trees     []*DecisionTreeClassifier
	Classes   []int
	NFeatures int
}

// RandomForestOption functional config for RandomForest
type RandomForestOption func(*RandomForest)

func WithNEstimators(n int) RandomForestOption { return func(rf *RandomForest) { rf.NEstimators = n } }
func WithBootstrap(b bool) RandomForestOption  { return func(rf *RandomForest) { rf.Bootstrap = b } }
func WithForestMaxDepth(d int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxDepth = d }
}
func WithForestMaxFeatures(k int) RandomForestOption {
	return func(rf *RandomForest) { rf.MaxFeatures = k }
}
func WithClassWeight(mode string) RandomForestOption {
	return func(rf *RandomForest) { rf.ClassWeight = mode }
}
func WithSeed(seed int64) RandomForestOption { return func(rf *RandomForest) { rf.RandomState = seed } }
func WithNJobs(n int) RandomForestOption     { return func(rf *RandomForest) { rf.NJobs = n } }

// NewRandomForest initializes the forest with sensible defaults.
func NewRandomForest(opts ...RandomForestOption) *RandomForest {
	rf := &RandomForest{
		NEstimators:     100,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(rf)
	}
	return rf
}

// Fit trains the forest. Trees are fitted concurrently, each with its own
// rand source derived from RandomState and the tree index, so the result does
// not depend on scheduling.
func (rf *RandomForest) Fit(X [][]float64, y []int) error {
	if len(X) == 0 {
		return errors.New("randomforest: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("randomforest: X and y length mismatch")
	}
	if rf.NEstimators <= 0 {
		return errors.New("randomforest: NEstimators must be positive")
	}

	p := len(X[0])
	rf.NFeatures = p
	rf.Classes = uniqueSorted(y)
	classW := rf.classWeights(y)

	maxFeatures := rf.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(p)))))
	}

	jobs := rf.NJobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	rf.Trees = make([]*DecisionTreeClassifier, rf.NEstimators)
	var g errgroup.Group
	g.SetLimit(jobs)
	for i := 0; i < rf.NEstimators; i++ {
		i := i // per-iteration copy (Go 1.22 loopvar semantics under go 1.21)
		g.Go(func() error {
			treeRand := rand.New(rand.NewSource(rf.RandomState + int64(i)))

			// Bootstrap draws become integer sample weights, not a copy of X.
			w := make([]float64, n)
			if rf.Bootstrap {
				for j := 0; j < n; j++ {
					w[treeRand.Intn(n)]++
				}
			} else {
				for j := range w {
					w[j] = 1
				}
			}
			for j := range w {
				w[j] *= classW[y[j]]
			}

			tree := NewDecisionTreeClassifier(
				WithMaxDepth(rf.MaxDepth),
				WithMinSamplesSplit(rf.MinSamplesSplit),
				WithMinSamplesLeaf(rf.MinSamplesLeaf),
				WithMaxFeatures(maxFeatures),
				WithRandomState(treeRand.Int63()),
			)
			if err := tree.FitWeighted(X, y, w); err != nil {
				return err
			}
			rf.Trees[i] = tree
			return nil
		})
	}
	return g.Wait()
}

func (rf *RandomForest) classWeights(y []int) map[int]float64 {
	out := make(map[int]float64, len(rf.Classes))
	counts := map[int]int{}
	for _, v := range y {
		counts[v]++
	}
	for _, c := range rf.Classes {
		out[c] = 1
		if rf.ClassWeight == ClassWeightBalanced {
			out[c] = float64(len(y)) / (float64(len(rf.Classes)) * float64(counts[c]))
		}
	}
	return out
}

// PredictProba returns p(y=1) for every row: the mean of the trees' leaf
// distributions. A forest that never saw class 1 returns zeros.
func (rf *RandomForest) PredictProba(X [][]float64) []float64 {
	out := make([]float64, len(X))
	pos := -1
	for i, c := range rf.Classes {
		if c == 1 {
			pos = i
		}
	}
	if pos < 0 || len(rf.Trees) == 0 {
		return out
	}

	// Fan out per tree, then reduce in tree order so sums are reproducible.
	perTree := make([][][]float64, len(rf.Trees))
	var wg sync.WaitGroup
	for i, tree := range rf.Trees {
		wg.Add(1)
		go func(i int, t *DecisionTreeClassifier) {
			defer wg.Done()
			perTree[i] = t.PredictProba(X)
		}(i, tree)
	}
	wg.Wait()

	for _, probs := range perTree {
		for r := range out {
			out[r] += probs[r][pos]
		}
	}
	for r := range out {
		out[r] /= float64(len(rf.Trees))
	}
	return out
}

// Predict labels rows 1 when p(y=1) >= 0.5.
func (rf *RandomForest) Predict(X [][]float64) []int {
	return BinaryPredFromProba(rf.PredictProba(X), 0.5)
}

// FeatureImportances averages the per-tree importances over trees that
// split at least once and renormalizes the result to sum to 1.
func (rf *RandomForest) FeatureImportances() []float64 {
	out := make([]float64, rf.NFeatures)
	used := 0
	for _, t := range rf.Trees {
		if t.NodeCount() <= 1 {
			continue
		}
		used++
		for j, v := range t.FeatureImportances() {
			out[j] += v
		}
	}
	if used == 0 {
		return out
	}
	total := 0.0
	for j := range out {
		out[j] /= float64(used)
		total += out[j]
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}
