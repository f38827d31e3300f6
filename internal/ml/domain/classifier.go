package domain

// Hyperparams are passed unchanged to every per-label classifier.
type Hyperparams struct {
	NEstimators int   `json:"n_estimators"`
	MaxFeatures int   `json:"max_features"`
	RandomState int64 `json:"random_state"`
	Bootstrap   bool  `json:"bootstrap"`
}

// DefaultHyperparams mirrors the configuration defaults.
func DefaultHyperparams() Hyperparams {
	return Hyperparams{NEstimators: 100, MaxFeatures: 400, RandomState: 42, Bootstrap: true}
}

// Classifier is a fitted binary estimator for one label.
type Classifier interface {
	// Score returns, per row, the estimated probability that the label applies.
	Score(X [][]float64) ([]float64, error)
	// NumFeatures is the row width the classifier was fitted on.
	NumFeatures() int
	MarshalBinary() ([]byte, error)
}

// Trainer fits one classifier on a feature matrix and a 0/1 target column.
type Trainer interface {
	Fit(X [][]float64, y []float64, params Hyperparams) (Classifier, error)
	// Decode restores a classifier written by MarshalBinary.
	Decode(data []byte) (Classifier, error)
}
