package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"

	mldomain "github.com/jan-janssen/gmailsorter/internal/ml/domain"
	"github.com/jan-janssen/gmailsorter/internal/ml/encoding"

	"golang.org/x/sync/errgroup"
)

// FitModels trains one classifier per target column of y on the features x.
// Labels are fitted concurrently by at most workers goroutines. The first
// failing label cancels the rest and fails the whole call.
func FitModels(ctx context.Context, trainer mldomain.Trainer, x, y *mldomain.Frame, params mldomain.Hyperparams, workers int) (map[string]mldomain.Classifier, error) {
	if x.NumRows() != y.NumRows() {
		return nil, fmt.Errorf("%w: %d feature rows but %d target rows", mldomain.ErrSchemaMismatch, x.NumRows(), y.NumRows())
	}
	if workers <= 0 {
		workers = 1
	}

	var (
		mu     sync.Mutex
		models = make(map[string]mldomain.Classifier, len(y.Columns))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, column := range y.Columns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			target, err := y.Column(column)
			if err != nil {
				return err
			}
			model, err := trainer.Fit(x.Values, target, params)
			if err != nil {
				return fmt.Errorf("failed to fit %s: %w", column, err)
			}

			mu.Lock()
			models[encoding.LabelOf(column)] = model
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Printf("[Trainer] Fitted %d models on %d rows x %d features", len(models), x.NumRows(), len(x.Columns))
	return models, nil
}
