package acquisition

import (
	"context"

	"github.com/airbusgeo/s2-acquisition/common"
	"golang.org/x/sync/errgroup"
)

// Classifier partitions products into online and offline products
type Classifier struct {
	checker AvailabilityChecker
	workers int
}

// NewClassifier creates a classifier checking at most workers products at the same time
func NewClassifier(checker AvailabilityChecker, workers int) *Classifier {
	if workers < 1 {
		workers = 1
	}
	return &Classifier{checker: checker, workers: workers}
}

// Classify checks each product exactly once and returns the online and the offline products, in input order.
// If the availability of a product cannot be determined, the whole classification fails with a *common.PhaseError
// naming the product: no product is ever dropped nor considered offline by default.
func (c *Classifier) Classify(ctx context.Context, ids []common.ProductID) (online, offline []common.ProductID, err error) {
	isOnline := make([]bool, len(ids))
	err = forEach(ctx, ids, c.workers, func(ctx context.Context, i int, id common.ProductID) error {
		ok, err := c.checker.IsOnline(ctx, id)
		if err != nil {
			return &common.PhaseError{Phase: common.PhaseClassifying, Product: id, Err: err}
		}
		isOnline[i] = ok
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	for i, id := range ids {
		if isOnline[i] {
			online = append(online, id)
		} else {
			offline = append(offline, id)
		}
	}
	return online, offline, nil
}

// requestReactivations requests the reactivation of each product and returns the outcomes, in input order.
// On error, the outcomes of the products that were not requested are nil.
func requestReactivations(ctx context.Context, requester ReactivationRequester, ids []common.ProductID, workers int) ([]*common.Outcome, error) {
	outcomes := make([]*common.Outcome, len(ids))
	err := forEach(ctx, ids, workers, func(ctx context.Context, i int, id common.ProductID) error {
		outcome, err := requester.RequestReactivation(ctx, id)
		if err != nil {
			return &common.PhaseError{Phase: common.PhaseRequesting, Product: id, Err: err}
		}
		outcomes[i] = &outcome
		return nil
	})
	return outcomes, err
}

// forEach calls f for each id with at most workers calls at the same time and returns the first error.
// After an error, the remaining ids are skipped.
func forEach(ctx context.Context, ids []common.ProductID, workers int, f func(ctx context.Context, i int, id common.ProductID) error) error {
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return f(gctx, i, id)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// the parent context may be done without any failure of f
	return ctx.Err()
}
