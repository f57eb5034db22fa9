package model

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math"
	"math/rand"
	"sort"
	"time"
)

// ---------------------------
// Types & options
// ---------------------------

// DecisionTreeClassifier is a CART-style classifier trained on weighted samples.
type DecisionTreeClassifier struct {
	// Hyperparameters / options
	MaxDepth            int     // maximum depth (root depth = 0). 0 => no limit
	MinSamplesSplit     int     // minimum samples to attempt a split
	MinSamplesLeaf      int     // minimum samples required in each leaf
	Criterion           string  // "gini" (default) or "entropy"
	MaxFeatures         int     // 0 => use all features, >0 => features to evaluate per split
	MinImpurityDecrease float64 // minimal weighted impurity decrease to accept a split
	RandomState         int64   // seed for feature subsampling

	// internals
	classes     []int     // sorted class labels (order used by probas)
	nodes       []Node    // nodes[0] is the root
	importances []float64 // normalized impurity decrease per feature
	nFeatures   int
}

// Node is one entry of the flattened tree. Internal nodes send x[Feature] <=
// Threshold to Left and everything else to Right.
type Node struct {
	Leaf      bool
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Weight    float64   // weighted number of training samples reaching the node
	Value     []float64 // class distribution, aligned with the tree's classes
}

// Option functional config
type Option func(*DecisionTreeClassifier)

func WithMaxDepth(d int) Option { return func(t *DecisionTreeClassifier) { t.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeClassifier) { t.MinSamplesLeaf = n }
}
func WithCriterion(c string) Option { return func(t *DecisionTreeClassifier) { t.Criterion = c } }
func WithMaxFeatures(k int) Option  { return func(t *DecisionTreeClassifier) { t.MaxFeatures = k } }
func WithRandomState(seed int64) Option {
	return func(t *DecisionTreeClassifier) { t.RandomState = seed }
}

// NewDecisionTreeClassifier returns a classifier with sensible defaults.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	d := &DecisionTreeClassifier{
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Criterion:       "gini",
		RandomState:     time.Now().UnixNano(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// ---------------------------
// Public API
// ---------------------------

// Fit trains the tree with unit sample weights.
func (t *DecisionTreeClassifier) Fit(X [][]float64, y []int) error {
	return t.FitWeighted(X, y, nil)
}

// FitWeighted trains the tree on X (n x p) and y (n labels). Rows with a zero
// weight take no part in the splits but their labels still count as known
// classes, so every tree of a forest shares one class order. A nil w means
// unit weights.
func (t *DecisionTreeClassifier) FitWeighted(X [][]float64, y []int, w []float64) error {
	if len(X) == 0 {
		return errors.New("dtree: empty X")
	}
	n := len(X)
	if len(y) != n {
		return errors.New("dtree: X and y length mismatch")
	}
	if w != nil && len(w) != n {
		return errors.New("dtree: sample weight length mismatch")
	}
	p := len(X[0])
	for i := range X {
		if len(X[i]) != p {
			return errors.New("dtree: inconsistent number of features in X rows")
		}
	}

	t.classes = uniqueSorted(y)
	t.nFeatures = p
	t.nodes = t.nodes[:0]
	t.importances = make([]float64, p)

	if w == nil {
		w = make([]float64, n)
		for i := range w {
			w[i] = 1
		}
	}
	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if w[i] > 0 {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return errors.New("dtree: all sample weights are zero")
	}

	b := &builder{
		t:   t,
		X:   X,
		yi:  classIndices(y, t.classes),
		w:   w,
		rnd: rand.New(rand.NewSource(t.RandomState)),
	}
	if t.Criterion == "entropy" {
		b.impurity = entropyFromCounts
	} else {
		b.impurity = giniFromCounts
	}
	b.build(idx, 0)

	total := 0.0
	for _, v := range t.importances {
		total += v
	}
	if total > 0 {
		for j := range t.importances {
			t.importances[j] /= total
		}
	}
	return nil
}

// Predict returns the most probable class label for every row of X.
func (t *DecisionTreeClassifier) Predict(X [][]float64) []int {
	out := make([]int, len(X))
	for i := range X {
		out[i] = t.classes[argmaxFloat(t.predictProbaSingle(X[i]))]
	}
	return out
}

// PredictProba returns the per-class probability vectors for rows in X,
// aligned with Classes().
func (t *DecisionTreeClassifier) PredictProba(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = t.predictProbaSingle(X[i])
	}
	return out
}

// Classes returns the sorted class labels seen during Fit.
func (t *DecisionTreeClassifier) Classes() []int { return t.classes }

// FeatureImportances returns the normalized total impurity decrease
// contributed by each feature. All zeros for a single-leaf tree.
func (t *DecisionTreeClassifier) FeatureImportances() []float64 { return t.importances }

// NodeCount reports the number of nodes in the fitted tree.
func (t *DecisionTreeClassifier) NodeCount() int { return len(t.nodes) }

// treeState is the gob wire form of a fitted tree.
type treeState struct {
	MaxDepth            int
	MinSamplesSplit     int
	MinSamplesLeaf      int
	Criterion           string
	MaxFeatures         int
	MinImpurityDecrease float64
	RandomState         int64
	Classes             []int
	Nodes               []Node
	Importances         []float64
	NFeatures           int
}

// MarshalBinary implements encoding.BinaryMarshaler using gob.
func (t *DecisionTreeClassifier) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(treeState{
		MaxDepth:            t.MaxDepth,
		MinSamplesSplit:     t.MinSamplesSplit,
		MinSamplesLeaf:      t.MinSamplesLeaf,
		Criterion:           t.Criterion,
		MaxFeatures:         t.MaxFeatures,
		MinImpurityDecrease: t.MinImpurityDecrease,
		RandomState:         t.RandomState,
		Classes:             t.classes,
		Nodes:               t.nodes,
		Importances:         t.importances,
		NFeatures:           t.nFeatures,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler using gob.
func (t *DecisionTreeClassifier) UnmarshalBinary(data []byte) error {
	var s treeState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&s); err != nil {
		return err
	}
	if len(s.Nodes) == 0 {
		return errors.New("dtree: encoded tree has no nodes")
	}
	t.MaxDepth = s.MaxDepth
	t.MinSamplesSplit = s.MinSamplesSplit
	t.MinSamplesLeaf = s.MinSamplesLeaf
	t.Criterion = s.Criterion
	t.MaxFeatures = s.MaxFeatures
	t.MinImpurityDecrease = s.MinImpurityDecrease
	t.RandomState = s.RandomState
	t.classes = s.Classes
	t.nodes = s.Nodes
	t.importances = s.Importances
	t.nFeatures = s.NFeatures
	return nil
}

// ---------------------------
// Internal builder
// ---------------------------

type builder struct {
	t        *DecisionTreeClassifier
	X        [][]float64
	yi       []int // class index per row
	w        []float64
	rnd      *rand.Rand
	impurity func([]float64) float64
}

// splitResult holds the best split found for one feature.
type splitResult struct {
	found     bool
	gain      float64
	feature   int
	threshold float64
	pos       int // rows [0,pos) of the sorted order go left
	order     []int
	impL      float64
	impR      float64
	wL        float64
	wR        float64
}

func (b *builder) build(idx []int, depth int) int {
	t := b.t
	counts, wTotal := b.counts(idx)
	id := len(t.nodes)
	t.nodes = append(t.nodes, Node{Leaf: true, Weight: wTotal, Value: normalize(counts, wTotal)})

	if isPure(counts) || len(idx) < t.MinSamplesSplit || len(idx) < 2*t.MinSamplesLeaf {
		return id
	}
	if t.MaxDepth > 0 && depth >= t.MaxDepth {
		return id
	}

	parentImp := b.impurity(counts)
	best := b.bestSplit(idx, counts, wTotal, parentImp)
	if !best.found {
		return id
	}
	decrease := (wTotal*parentImp - best.wL*best.impL - best.wR*best.impR) / b.totalWeight()
	if decrease+1e-12 < t.MinImpurityDecrease {
		return id
	}

	t.importances[best.feature] += wTotal*parentImp - best.wL*best.impL - best.wR*best.impR

	leftIdx := append([]int(nil), best.order[:best.pos]...)
	rightIdx := append([]int(nil), best.order[best.pos:]...)
	left := b.build(leftIdx, depth+1)
	right := b.build(rightIdx, depth+1)

	node := &t.nodes[id]
	node.Leaf = false
	node.Feature = best.feature
	node.Threshold = best.threshold
	node.Left = left
	node.Right = right
	return id
}

// bestSplit walks the features in a random order. Features that are constant
// within the node do not count against MaxFeatures, so a node only becomes a
// leaf early when every feature is constant.
func (b *builder) bestSplit(idx []int, counts []float64, wTotal, parentImp float64) splitResult {
	t := b.t
	p := t.nFeatures
	feats := make([]int, p)
	for j := range feats {
		feats[j] = j
	}
	b.rnd.Shuffle(p, func(i, j int) { feats[i], feats[j] = feats[j], feats[i] })

	limit := p
	if t.MaxFeatures > 0 && t.MaxFeatures < p {
		limit = t.MaxFeatures
	}

	var best splitResult
	visited := 0
	for _, f := range feats {
		if visited >= limit {
			break
		}
		res, constant := b.splitOnFeature(idx, f, counts, wTotal, parentImp)
		if constant {
			continue
		}
		visited++
		if res.found && (!best.found || res.gain > best.gain) {
			best = res
		}
	}
	return best
}

func (b *builder) splitOnFeature(idx []int, f int, counts []float64, wTotal, parentImp float64) (splitResult, bool) {
	order := append([]int(nil), idx...)
	sort.SliceStable(order, func(a, c int) bool { return b.X[order[a]][f] < b.X[order[c]][f] })

	lo, hi := b.X[order[0]][f], b.X[order[len(order)-1]][f]
	if lo == hi {
		return splitResult{}, true
	}

	minLeaf := b.t.MinSamplesLeaf
	if minLeaf < 1 {
		minLeaf = 1
	}
	nClasses := len(counts)
	left := make([]float64, nClasses)
	right := append([]float64(nil), counts...)
	wL := 0.0

	res := splitResult{feature: f, order: order}
	for s := 1; s < len(order); s++ {
		prev := order[s-1]
		left[b.yi[prev]] += b.w[prev]
		right[b.yi[prev]] -= b.w[prev]
		wL += b.w[prev]

		v0, v1 := b.X[prev][f], b.X[order[s]][f]
		if v0 == v1 {
			continue
		}
		if s < minLeaf || len(order)-s < minLeaf {
			continue
		}
		wR := wTotal - wL
		impL := b.impurity(left)
		impR := b.impurity(right)
		gain := parentImp - (wL/wTotal)*impL - (wR/wTotal)*impR
		if !res.found || gain > res.gain {
			thr := (v0 + v1) / 2
			if thr == v1 || math.IsInf(thr, 0) {
				thr = v0
			}
			res.found = true
			res.gain = gain
			res.threshold = thr
			res.pos = s
			res.impL, res.impR = impL, impR
			res.wL, res.wR = wL, wR
		}
	}
	return res, false
}

func (b *builder) counts(idx []int) ([]float64, float64) {
	counts := make([]float64, len(b.t.classes))
	total := 0.0
	for _, i := range idx {
		counts[b.yi[i]] += b.w[i]
		total += b.w[i]
	}
	return counts, total
}

func (b *builder) totalWeight() float64 {
	return b.t.nodes[0].Weight
}

// ---------------------------
// Prediction helper
// ---------------------------

func (t *DecisionTreeClassifier) predictProbaSingle(x []float64) []float64 {
	if len(t.nodes) == 0 {
		p := make([]float64, len(t.classes))
		for i := range p {
			p[i] = 1.0 / float64(len(p))
		}
		return p
	}
	node := &t.nodes[0]
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = &t.nodes[node.Left]
		} else {
			node = &t.nodes[node.Right]
		}
	}
	return node.Value
}

// ---------------------------
// Utilities: impurity & misc
// ---------------------------

func giniFromCounts(counts []float64) float64 {
	n := 0.0
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}
	res := 1.0
	for _, c := range counts {
		p := c / n
		res -= p * p
	}
	return res
}

func entropyFromCounts(counts []float64) float64 {
	n := 0.0
	for _, c := range counts {
		n += c
	}
	if n == 0 {
		return 0
	}
	res := 0.0
	for _, c := range counts {
		if c <= 0 {
			continue
		}
		p := c / n
		res -= p * math.Log2(p)
	}
	return res
}

func isPure(counts []float64) bool {
	nonZero := 0
	for _, c := range counts {
		if c > 0 {
			nonZero++
		}
	}
	return nonZero <= 1
}

func normalize(counts []float64, total float64) []float64 {
	p := make([]float64, len(counts))
	if total == 0 {
		return p
	}
	for i, c := range counts {
		p[i] = c / total
	}
	return p
}

func argmaxFloat(arr []float64) int {
	best := 0
	for i := 1; i < len(arr); i++ {
		if arr[i] > arr[best] {
			best = i
		}
	}
	return best
}

func uniqueSorted(y []int) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, v := range y {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func classIndices(y []int, classes []int) []int {
	pos := make(map[int]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	out := make([]int, len(y))
	for i, v := range y {
		out[i] = pos[v]
	}
	return out
}
