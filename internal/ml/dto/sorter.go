package dto

// TrainRequest overrides the configured training options. Zero fields keep
// the configured value.
type TrainRequest struct {
	NEstimators    int   `json:"n_estimators" binding:"omitempty,min=1"`
	MaxFeatures    int   `json:"max_features" binding:"omitempty,min=1"`
	RandomState    int64 `json:"random_state"`
	Bootstrap      *bool `json:"bootstrap"`
	IncludeDeleted *bool `json:"include_deleted"`
}

type FilterRequest struct {
	Label string  `json:"label"`
	Ratio float64 `json:"ratio" binding:"omitempty,gt=0,lt=1"`
}
