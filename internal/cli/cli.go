package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"churnml/internal/predict"
	"churnml/internal/train"
)

// ErrorBody is the JSON written to stderr when a command fails.
type ErrorBody struct {
	Error string `json:"error"`
}

// Predict reads one JSON record from in and writes the scored result to out.
// Any failure writes an ErrorBody to errOut instead. The return value is the
// process exit code.
func Predict(ctx context.Context, svc *predict.Service, in io.Reader, out, errOut io.Writer) int {
	raw, err := io.ReadAll(in)
	if err != nil {
		return Fail(errOut, fmt.Sprintf("read input: %v", err))
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return Fail(errOut, "Empty input")
	}

	var rec predict.FeatureRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Fail(errOut, fmt.Sprintf("invalid JSON: %v", err))
	}
	res, err := svc.PredictOne(ctx, rec)
	if err != nil {
		return Fail(errOut, err.Error())
	}
	if err := json.NewEncoder(out).Encode(res); err != nil {
		return Fail(errOut, fmt.Sprintf("write output: %v", err))
	}
	return 0
}

// Train runs one training pass and prints a human readable summary to
// errOut. The return value is the process exit code.
func Train(ctx context.Context, d *train.Driver, csvPath string, errOut io.Writer) int {
	report, err := d.Run(ctx, csvPath)
	if err != nil {
		fmt.Fprintf(errOut, "Training failed: %v\n", err)
		return 1
	}
	fmt.Fprintln(errOut, "Training done.")
	fmt.Fprintf(errOut, "  Pipeline: %s\n", report.PipelinePath)
	fmt.Fprintf(errOut, "  Metrics:  %s\n", report.MetricsPath)
	if report.ChartPath != "" {
		fmt.Fprintf(errOut, "  ROC plot: %s\n", report.ChartPath)
	}
	fmt.Fprintf(errOut, "  Accuracy: %.4f  F1: %.4f  ROC-AUC: %.4f\n", report.Accuracy, report.F1, report.ROCAUC)
	return 0
}

// Fail writes msg as an ErrorBody to w and returns exit code 1.
func Fail(w io.Writer, msg string) int {
	_ = json.NewEncoder(w).Encode(ErrorBody{Error: msg})
	return 1
}
