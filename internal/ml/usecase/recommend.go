package usecase

import (
	"fmt"

	mldomain "github.com/jan-janssen/gmailsorter/internal/ml/domain"
	"github.com/jan-janssen/gmailsorter/pkg/reconcile"
)

// Recommend proposes at most one label per row of x. Every classifier scores
// every row; the highest score wins and is accepted only when it is strictly
// above threshold. Labels are compared in lexicographic order so the first
// label wins a tie. Rows without an accepted label map to nil.
func Recommend(classifiers map[string]mldomain.Classifier, x *mldomain.Frame, threshold float64) (map[string]*string, error) {
	if threshold <= 0 || threshold >= 1 {
		return nil, fmt.Errorf("recommendation ratio must be in (0,1), got %v", threshold)
	}

	labels := reconcile.SortedKeys(classifiers)
	scores := make([][]float64, len(labels))
	for i, label := range labels {
		clf := classifiers[label]
		if clf.NumFeatures() != len(x.Columns) {
			return nil, fmt.Errorf("%w: classifier %s expects %d features, frame has %d",
				mldomain.ErrSchemaMismatch, label, clf.NumFeatures(), len(x.Columns))
		}
		s, err := clf.Score(x.Values)
		if err != nil {
			return nil, fmt.Errorf("failed to score %s: %w", label, err)
		}
		scores[i] = s
	}

	out := make(map[string]*string, x.NumRows())
	for r, id := range x.EmailIDs {
		out[id] = nil
		best := -1
		for i := range labels {
			if best < 0 || scores[i][r] > scores[best][r] {
				best = i
			}
		}
		if best >= 0 && scores[best][r] > threshold {
			label := labels[best]
			out[id] = &label
		}
	}
	return out, nil
}
