package artifact

// Metrics is the evaluation document written next to the pipeline after
// every training run.
type Metrics struct {
	Model             ModelInfo           `json:"model"`
	ModelVersion      string              `json:"model_version,omitempty"`
	KPIs              KPIs                `json:"kpis"`
	ConfusionMatrix   ConfusionMatrix     `json:"confusionMatrix"`
	ROCCurve          []ROCPoint          `json:"rocCurve"`
	FeatureImportance []FeatureImportance `json:"featureImportance"`
}

type ModelInfo struct {
	Name            string `json:"name"`
	Version         string `json:"version,omitempty"`
	LastTrainedAt   string `json:"lastTrainedAt,omitempty"`
	LastEvaluatedAt string `json:"lastEvaluatedAt,omitempty"`
	Dataset         string `json:"dataset,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

// KPIs are rounded to four decimals. Samples is the holdout size.
type KPIs struct {
	Accuracy  float64 `json:"accuracy"`
	F1        float64 `json:"f1"`
	ROCAUC    float64 `json:"rocAuc"`
	ChurnRate float64 `json:"churnRate"`
	Samples   int     `json:"samples"`
}

// ConfusionMatrix rows are true labels, columns predicted labels, both in
// Labels order.
type ConfusionMatrix struct {
	Labels []string `json:"labels"`
	Matrix [][]int  `json:"matrix"`
}

type ROCPoint struct {
	FPR float64 `json:"fpr"`
	TPR float64 `json:"tpr"`
}

type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Version is model.version when set, else the top-level model_version,
// else "".
func (m *Metrics) Version() string {
	if m == nil {
		return ""
	}
	if m.Model.Version != "" {
		return m.Model.Version
	}
	return m.ModelVersion
}
