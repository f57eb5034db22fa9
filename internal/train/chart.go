package train

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"churnml/internal/artifact"
)

// rocChart renders the holdout ROC curve with the chance diagonal as a PNG.
func rocChart(curve []artifact.ROCPoint, auc float64) (io.WriterTo, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("ROC curve (AUC %.4f)", auc)
	p.X.Label.Text = "False positive rate"
	p.Y.Label.Text = "True positive rate"
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(curve))
	for i, pt := range curve {
		pts[i].X = pt.FPR
		pts[i].Y = pt.TPR
	}
	roc, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("roc line: %w", err)
	}
	roc.LineStyle.Width = vg.Points(2)
	roc.LineStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 255}

	chance, err := plotter.NewLine(plotter.XYs{{X: 0, Y: 0}, {X: 1, Y: 1}})
	if err != nil {
		return nil, fmt.Errorf("chance line: %w", err)
	}
	chance.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	chance.LineStyle.Color = color.Gray{Y: 128}

	p.Add(roc, chance)
	return p.WriterTo(5*vg.Inch, 5*vg.Inch, "png")
}
