package repository

// ModelRepository persists the per-label classifiers and the feature schema
// they were trained on, partitioned by user id.
type ModelRepository interface {
	// Store makes the stored labels equal the keys of models and the stored
	// features equal features, in one transaction.
	Store(userID uint, models map[string][]byte, features []string) error
	// Load returns the stored models and the sorted feature schema.
	Load(userID uint) (map[string][]byte, []string, error)
	ListLabels(userID uint) ([]string, error)
	ListFeatures(userID uint) ([]string, error)
}
