package model

// Model is a generic supervised classification interface over integer labels.
type Model interface {
	Fit(X [][]float64, y []int) error
	Predict(X [][]float64) []int
}

// Classifier optionally exposes probabilities.
type Classifier interface {
	Model
	PredictProba(X [][]float64) []float64 // returns p(y=1) for binary classifiers
}

// Importancer is implemented by models that can rank their input features.
type Importancer interface {
	FeatureImportances() []float64
}

var (
	_ Classifier  = (*RandomForest)(nil)
	_ Importancer = (*RandomForest)(nil)
	_ Model       = (*DecisionTreeClassifier)(nil)
	_ Importancer = (*DecisionTreeClassifier)(nil)
)
