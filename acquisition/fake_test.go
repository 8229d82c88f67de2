package acquisition_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/airbusgeo/s2-acquisition/common"
)

// fakeProduct is a product of the fakeArchive
type fakeProduct struct {
	// onlineAfter accepted reactivation requests, the product is online
	onlineAfter int
	// declines: number of requests declined before the first accepted one
	declines int
	checkErr error
	// checkErrAfter successful checks, IsOnline fails with checkErr
	checkErrAfter int
	requestErr    error
	downloadFail  bool

	requests int
	accepted int
	checks   int
}

// fakeArchive implements Querier, AvailabilityChecker, ReactivationRequester and Downloader
type fakeArchive struct {
	mu         sync.Mutex
	order      []common.ProductID
	products   map[common.ProductID]*fakeProduct
	downloads  map[common.ProductID]int
	batches    [][]common.ProductID
	queryErr   error
	duplicates bool
	// blockDownloads until the channel is closed
	blockDownloads chan struct{}
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{
		products:  map[common.ProductID]*fakeProduct{},
		downloads: map[common.ProductID]int{},
	}
}

func (a *fakeArchive) add(id string, p fakeProduct) *fakeArchive {
	a.order = append(a.order, common.ProductID(id))
	a.products[common.ProductID(id)] = &p
	return a
}

func (a *fakeArchive) QueryCandidates(ctx context.Context, q common.Query) ([]common.Product, error) {
	if a.queryErr != nil {
		return nil, a.queryErr
	}
	var products []common.Product
	for _, id := range a.order {
		products = append(products, common.Product{ID: id, Name: "S2A_MSIL1C_" + string(id)})
		if a.duplicates {
			products = append(products, common.Product{ID: id, Name: "S2A_MSIL1C_" + string(id)})
		}
	}
	return products, nil
}

func (a *fakeArchive) IsOnline(ctx context.Context, id common.ProductID) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.products[id]
	if !ok {
		return false, fmt.Errorf("unknown product %s", id)
	}
	p.checks++
	if p.checkErr != nil && p.checks > p.checkErrAfter {
		return false, p.checkErr
	}
	return p.accepted >= p.onlineAfter, nil
}

func (a *fakeArchive) RequestReactivation(ctx context.Context, id common.ProductID) (common.Outcome, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p := a.products[id]
	p.requests++
	if p.requestErr != nil {
		return 0, p.requestErr
	}
	if p.declines > 0 {
		p.declines--
		return common.OutcomeDeclined, nil
	}
	p.accepted++
	return common.OutcomeAccepted, nil
}

func (a *fakeArchive) DownloadAll(ctx context.Context, products []common.Product) error {
	if a.blockDownloads != nil {
		select {
		case <-a.blockDownloads:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var failed []common.ProductID
	ids := common.IDs(products)
	a.batches = append(a.batches, ids)
	for _, id := range ids {
		if a.products[id].downloadFail {
			failed = append(failed, id)
			continue
		}
		a.downloads[id]++
	}
	if len(failed) > 0 {
		return &common.TransferError{Failed: failed, Err: errors.New("connection reset")}
	}
	return nil
}

func (a *fakeArchive) requests(id string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.products[common.ProductID(id)].requests
}

func (a *fakeArchive) downloaded() map[common.ProductID]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := map[common.ProductID]int{}
	for k, v := range a.downloads {
		d[k] = v
	}
	return d
}

// recorder records the events
type recorder struct {
	mu     sync.Mutex
	events []common.Event
}

func (r *recorder) Report(ctx context.Context, e common.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t common.EventType) []common.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var events []common.Event
	for _, e := range r.events {
		if e.Type == t {
			events = append(events, e)
		}
	}
	return events
}

func ids(s ...string) []common.ProductID {
	res := make([]common.ProductID, len(s))
	for i, id := range s {
		res[i] = common.ProductID(id)
	}
	return res
}
