package acquisition

import (
	"context"
	"errors"
	"sync"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// batch of products sent to the downloader
type batch struct {
	ids    []common.ProductID
	failed []common.ProductID
	err    error
}

// dispatcher runs the download batches in background goroutines
type dispatcher struct {
	downloader Downloader
	slots      *semaphore.Weighted
	report     func(ctx context.Context, event common.Event)

	wg       sync.WaitGroup
	mu       sync.Mutex
	finished []batch
	failure  chan struct{}
	failOnce sync.Once
}

func newDispatcher(downloader Downloader, parallelDownloads int, report func(ctx context.Context, event common.Event)) *dispatcher {
	if parallelDownloads < 1 {
		parallelDownloads = 1
	}
	return &dispatcher{
		downloader: downloader,
		slots:      semaphore.NewWeighted(int64(parallelDownloads)),
		report:     report,
		failure:    make(chan struct{}),
	}
}

// dispatch starts the download of the products in background
func (d *dispatcher) dispatch(ctx context.Context, round int, products []common.Product) {
	if len(products) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		b := batch{ids: common.IDs(products)}
		if err := d.slots.Acquire(ctx, 1); err != nil {
			b.failed, b.err = b.ids, err
		} else {
			d.report(ctx, common.Event{Type: common.EventDownloadStarted, Phase: common.PhaseDownloading, Round: round, Products: b.ids})
			log.Logger(ctx).Sugar().Infof("downloading %d product(s)", len(products))
			err := d.downloader.DownloadAll(ctx, products)
			d.slots.Release(1)
			if err != nil {
				b.failed, b.err = failedProducts(b.ids, err), err
				log.Logger(ctx).Error("download failed", zap.Any("products", b.failed), zap.Error(err))
				d.report(ctx, common.Event{Type: common.EventDownloadFailed, Phase: common.PhaseDownloading, Round: round, Products: b.failed, Error: err.Error()})
			}
			if downloaded := common.NewProductSet(b.ids...).Minus(common.NewProductSet(b.failed...)); len(downloaded) > 0 {
				d.report(ctx, common.Event{Type: common.EventDownloadFinished, Phase: common.PhaseDownloading, Round: round, Products: downloaded})
			}
		}

		d.mu.Lock()
		d.finished = append(d.finished, b)
		d.mu.Unlock()
		if b.err != nil {
			d.failOnce.Do(func() { close(d.failure) })
		}
	}()
}

// failedProducts returns the products of the batch that failed: the ones listed by the TransferError, or all of them
func failedProducts(ids []common.ProductID, err error) []common.ProductID {
	var terr *common.TransferError
	if !errors.As(err, &terr) || len(terr.Failed) == 0 {
		return ids
	}
	failedSet := common.NewProductSet(terr.Failed...)
	var failed []common.ProductID
	for _, id := range ids {
		if failedSet.Exists(id) {
			failed = append(failed, id)
		}
	}
	if len(failed) == 0 {
		return ids
	}
	return failed
}

// collect returns the batches finished since the last call
func (d *dispatcher) collect() []batch {
	d.mu.Lock()
	defer d.mu.Unlock()
	finished := d.finished
	d.finished = nil
	return finished
}

// join waits for all the batches and returns the ones that were not collected yet
func (d *dispatcher) join() []batch {
	d.wg.Wait()
	return d.collect()
}

// failed is closed as soon as a batch fails
func (d *dispatcher) failed() <-chan struct{} {
	return d.failure
}
