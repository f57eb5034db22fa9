package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

func BinaryPredFromProba(proba []float64, threshold float64) []int {
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= threshold {
			out[i] = 1
		} else {
			out[i] = 0
		}
	}
	return out
}

// Classification metrics (binary, labels 0/1)
func AccuracyInt(yTrue []int, yPred []int) float64 {
	if len(yTrue) == 0 {
		return 0
	}
	c := 0
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			c++
		}
	}
	return float64(c) / float64(len(yTrue))
}

// PrecisionRecallF1 treats 1 as the positive class. Undefined ratios are 0.
func PrecisionRecallF1(yTrue []int, yPred []int) (prec, rec, f1 float64) {
	tp, fp, fn := 0, 0, 0
	for i := range yTrue {
		if yPred[i] == 1 && yTrue[i] == 1 {
			tp++
		}
		if yPred[i] == 1 && yTrue[i] == 0 {
			fp++
		}
		if yPred[i] == 0 && yTrue[i] == 1 {
			fn++
		}
	}
	if tp+fp > 0 {
		prec = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		rec = float64(tp) / float64(tp+fn)
	}
	if prec+rec > 0 {
		f1 = 2 * prec * rec / (prec + rec)
	}
	return
}

// ConfusionMatrix returns [[TN, FP], [FN, TP]]: rows are true labels 0/1,
// columns predicted labels 0/1.
func ConfusionMatrix(yTrue []int, yPred []int) [][]int {
	m := [][]int{{0, 0}, {0, 0}}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if (t == 0 || t == 1) && (p == 0 || p == 1) {
			m[t][p]++
		}
	}
	return m
}

// ROCPoint is one operating point of a ROC curve.
type ROCPoint struct {
	FPR float64
	TPR float64
}

// ROCCurve returns the ROC curve of scores against binary labels, ordered
// from (0, 0) to (1, 1). Points collinear with both neighbours are dropped.
// When one class is absent its rate is reported as 0 rather than NaN.
func ROCCurve(yTrue []int, scores []float64) []ROCPoint {
	if len(scores) == 0 {
		return nil
	}
	y := append([]float64(nil), scores...)
	classes := make([]bool, len(yTrue))
	nPos := 0
	for i, v := range yTrue {
		classes[i] = v == 1
		if classes[i] {
			nPos++
		}
	}
	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)

	pts := make([]ROCPoint, 0, len(tpr)+2)
	pts = append(pts, ROCPoint{0, 0})
	for i := range tpr {
		pts = append(pts, ROCPoint{FPR: zeroNaN(fpr[i]), TPR: zeroNaN(tpr[i])})
	}
	end := ROCPoint{FPR: 1, TPR: 1}
	if nPos == 0 {
		end.TPR = 0
	}
	if nPos == len(yTrue) {
		end.FPR = 0
	}
	pts = append(pts, end)

	sort.SliceStable(pts, func(a, b int) bool {
		if pts[a].FPR != pts[b].FPR {
			return pts[a].FPR < pts[b].FPR
		}
		return pts[a].TPR < pts[b].TPR
	})
	return dropIntermediate(dedupe(pts))
}

// ROCAUC is the trapezoidal area under ROCCurve. A label set with a single
// class has no defined AUC; 0 is returned instead.
func ROCAUC(yTrue []int, scores []float64) float64 {
	pos, neg := 0, 0
	for _, v := range yTrue {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0
	}
	curve := ROCCurve(yTrue, scores)
	x := make([]float64, len(curve))
	f := make([]float64, len(curve))
	for i, p := range curve {
		x[i], f[i] = p.FPR, p.TPR
	}
	return integrate.Trapezoidal(x, f)
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func dedupe(pts []ROCPoint) []ROCPoint {
	out := pts[:0:0]
	for i, p := range pts {
		if i > 0 && p == pts[i-1] {
			continue
		}
		out = append(out, p)
	}
	return out
}

func dropIntermediate(pts []ROCPoint) []ROCPoint {
	if len(pts) <= 2 {
		return pts
	}
	const eps = 1e-12
	out := []ROCPoint{pts[0]}
	for i := 1; i < len(pts)-1; i++ {
		a, b, c := pts[i-1], pts[i], pts[i+1]
		if math.Abs(a.FPR-2*b.FPR+c.FPR) > eps || math.Abs(a.TPR-2*b.TPR+c.TPR) > eps {
			out = append(out, b)
		}
	}
	return append(out, pts[len(pts)-1])
}
