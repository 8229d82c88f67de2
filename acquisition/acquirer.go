package acquisition

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Acquirer runs the acquisition loop:
// query the candidates, classify them, download the online products in background and
// request the reactivation of the offline ones, round after round, until all of them are online.
type Acquirer struct {
	querier    Querier
	classifier *Classifier
	requester  ReactivationRequester
	downloader Downloader
	reporter   Reporter
	config     Config

	now func() time.Time
}

// NewAcquirer creates an Acquirer. reporter can be nil.
func NewAcquirer(querier Querier, checker AvailabilityChecker, requester ReactivationRequester, downloader Downloader, reporter Reporter, config Config) *Acquirer {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Acquirer{
		querier:    querier,
		classifier: NewClassifier(checker, config.Workers),
		requester:  requester,
		downloader: downloader,
		reporter:   reporter,
		config:     config,
		now:        time.Now,
	}
}

// run is an execution of the acquisition loop
type run struct {
	*Acquirer
	id         string
	query      common.Query
	state      *State
	result     *Result
	products   map[common.ProductID]common.Product
	dispatcher *dispatcher
}

// Run acquires all the products of the query.
// It returns when all the products are downloaded (StatusDone), when the products that are still offline
// cannot be requested anymore (StatusStillOffline: MaxRounds is reached or all of them are stale) or on error (StatusAborted).
// On error, the in-flight downloads are awaited and the result reports the progress so far.
// The error is ctx.Err() on cancellation, a *common.PhaseError if a product cannot be classified or requested,
// or wraps a *common.TransferError if some products cannot be downloaded.
func (a *Acquirer) Run(ctx context.Context, query common.Query) (*Result, error) {
	r := &run{
		Acquirer: a,
		id:       uuid.New().String(),
		query:    query,
		state:    NewState(),
		products: map[common.ProductID]common.Product{},
	}
	r.result = &Result{Run: r.id, Start: a.now()}
	ctx = log.With(ctx, "run", r.id)
	r.dispatcher = newDispatcher(a.downloader, a.config.ParallelDownloads, r.report)

	if err := r.loop(ctx); err != nil {
		return r.abort(ctx, err)
	}
	return r.done(ctx)
}

func (r *run) loop(ctx context.Context) error {
	// Init: query the candidates
	r.state.Phase = common.PhaseInit
	products, err := r.querier.QueryCandidates(ctx, r.query)
	if err != nil {
		return &common.PhaseError{Phase: common.PhaseInit, Err: err}
	}
	for _, p := range products {
		if _, ok := r.products[p.ID]; !ok {
			r.products[p.ID] = p
			r.result.Queried = append(r.result.Queried, p.ID)
		}
	}
	r.report(ctx, r.event(common.EventQueried, func(e *common.Event) { e.Products = r.result.Queried }))
	if len(r.result.Queried) == 0 {
		return nil
	}

	// Classifying
	if err := r.classify(ctx, r.result.Queried); err != nil {
		return err
	}
	initialOnline := r.state.Online.Len()

	if r.state.Offline.Len() == 0 {
		r.state.Phase = common.PhaseAllOnline
		return nil
	}

	for r.state.Offline.Len() > 0 {
		if r.config.MaxRounds > 0 && r.state.Round >= r.config.MaxRounds {
			log.Logger(ctx).Sugar().Warnf("maximum number of rounds reached (%d): %d product(s) still offline", r.config.MaxRounds, r.state.Offline.Len())
			break
		}
		r.state.Round++
		r.report(ctx, r.event(common.EventRoundStarted, func(e *common.Event) { e.Offline = r.state.Offline.Len() }))

		// Downloading: the online products do not wait for the reactivation requests
		r.dispatch(ctx)

		// Requesting
		if err := r.request(ctx); err != nil {
			return err
		}

		// Waiting
		wait := r.config.PollInterval
		if r.state.Round == 1 && initialOnline == 0 {
			// Nothing to download yet: let the archive stage the first products
			wait = r.config.GraceWait
		}
		if err := r.wait(ctx, wait); err != nil {
			return err
		}
		if err := r.collect(ctx, r.dispatcher.collect()); err != nil {
			return err
		}

		// Reclassifying: all the products requested in this round, accepted or declined
		if err := r.classify(ctx, r.state.Offline.Slice()); err != nil {
			return err
		}
		if stale := r.state.expire(r.now(), r.config.StalenessTimeout); len(stale) > 0 {
			log.Logger(ctx).Sugar().Warnf("%d product(s) offline for more than %v are not requested anymore", len(stale), r.config.StalenessTimeout)
			r.report(ctx, r.event(common.EventStale, func(e *common.Event) { e.Products = stale }))
		}
		if err := r.state.Check(r.result.Queried); err != nil {
			return fmt.Errorf("round %d: %w", r.state.Round, err)
		}
	}
	return nil
}

// classify the ids into the online and offline products of the state
func (r *run) classify(ctx context.Context, ids []common.ProductID) error {
	if r.state.Round == 0 {
		r.state.Phase = common.PhaseClassifying
	} else {
		r.state.Phase = common.PhaseReclassifying
	}
	r.report(ctx, r.event(common.EventClassifying, func(e *common.Event) { e.Products = ids }))
	online, offline, err := r.classifier.Classify(ctx, ids)
	if err != nil {
		var perr *common.PhaseError
		if errors.As(err, &perr) {
			perr.Phase = r.state.Phase
		}
		return err
	}
	r.state.setClassification(online, offline, r.now())
	r.report(ctx, r.event(common.EventClassified, func(e *common.Event) { e.Online, e.Offline = len(online), len(offline) }))
	return nil
}

// request the reactivation of the offline products
func (r *run) request(ctx context.Context) error {
	r.state.Phase = common.PhaseRequesting
	ids := r.state.Offline.Slice()
	outcomes, err := requestReactivations(ctx, r.requester, ids, r.config.Workers)
	accepted, declined := 0, 0
	for i, outcome := range outcomes {
		if outcome == nil {
			continue
		}
		if *outcome == common.OutcomeAccepted {
			accepted++
		} else {
			declined++
		}
		r.report(ctx, r.event(common.EventReactivationRequested, func(e *common.Event) { e.Product, e.Outcome = ids[i], outcome }))
	}
	r.state.Accepted += accepted
	r.state.Declined += declined
	r.report(ctx, r.event(common.EventRoundFinished, func(e *common.Event) { e.Accepted, e.Declined = accepted, declined }))
	return err
}

// dispatch the online products to the downloader
func (r *run) dispatch(ctx context.Context) {
	r.state.Phase = common.PhaseDownloading
	ids := r.state.dispatch()
	products := make([]common.Product, len(ids))
	for i, id := range ids {
		products[i] = r.products[id]
	}
	r.dispatcher.dispatch(ctx, r.state.Round, products)
}

// wait for d, or until the context is done or a download fails
func (r *run) wait(ctx context.Context, d time.Duration) error {
	r.state.Phase = common.PhaseWaiting
	if d <= 0 {
		return ctx.Err()
	}
	r.report(ctx, r.event(common.EventWaiting, func(e *common.Event) { e.Wait = common.Duration(d) }))
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.dispatcher.failed():
		// the failure is reported by collect
		return nil
	case <-t.C:
		return nil
	}
}

// collect the finished download batches into the state and returns an error if some downloads failed
func (r *run) collect(ctx context.Context, batches []batch) error {
	var errs []error
	var failed []common.ProductID
	for _, b := range batches {
		r.state.transferred(b.ids, b.failed)
		if b.err != nil {
			failed = append(failed, b.failed...)
			errs = append(errs, b.err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return &common.PhaseError{Phase: common.PhaseDownloading, Round: r.state.Round,
		Err: &common.TransferError{Failed: failed, Err: errors.Join(errs...)}}
}

// done waits for the downloads and returns the result
func (r *run) done(ctx context.Context) (*Result, error) {
	// Final dispatch of the remaining online products
	r.dispatch(ctx)
	if err := r.collect(ctx, r.dispatcher.join()); err != nil {
		return r.abort(ctx, err)
	}

	r.state.Phase = common.PhaseDone
	r.fillResult()
	r.result.Status = common.StatusDone
	if len(r.result.StillOffline) > 0 {
		r.result.Status = common.StatusStillOffline
	}
	status := r.result.Status
	r.report(ctx, r.event(common.EventDone, func(e *common.Event) { e.Status, e.Products = &status, r.result.StillOffline }))
	return r.result, nil
}

// abort waits for the in-flight downloads and returns the result with the error
// completed with the progress of the acquisition
func (r *run) abort(ctx context.Context, err error) (*Result, error) {
	phase := r.state.Phase
	if ctx.Err() != nil {
		err = ctx.Err()
	}
	var perr *common.PhaseError
	if errors.As(err, &perr) {
		perr.Round = r.state.Round
		perr.Accepted, perr.Declined = r.state.Accepted, r.state.Declined
		perr.Online, perr.Offline = r.state.Online.Len()+r.state.Dispatched.Len(), r.state.Offline.Len()
	}

	// The products already dispatched are not affected by the failure
	if cerr := r.collect(ctx, r.dispatcher.join()); cerr != nil && ctx.Err() == nil {
		log.Logger(ctx).Error("download failed", zap.Error(cerr))
	}
	r.state.Phase = common.PhaseAborted
	r.fillResult()
	r.result.Status = common.StatusAborted
	status := r.result.Status
	r.report(ctx, r.event(common.EventAborted, func(e *common.Event) { e.Phase, e.Status, e.Error = phase, &status, err.Error() }))
	return r.result, err
}

func (r *run) fillResult() {
	r.result.Rounds = r.state.Round
	r.result.Downloaded = r.state.Downloaded.Slice()
	r.result.Failed = r.state.Failed.Slice()
	r.result.StillOffline = append(r.state.Offline.Slice(), r.state.Stale.Slice()...)
	r.result.Accepted = r.state.Accepted
	r.result.Declined = r.state.Declined
	r.result.End = r.now()
}

// event creates an event of the loop at the current phase and round.
// It must only be called by the goroutine running the loop.
func (r *run) event(t common.EventType, set func(e *common.Event)) common.Event {
	e := common.Event{Type: t, Phase: r.state.Phase, Round: r.state.Round}
	set(&e)
	return e
}

// report the event, completed with the information of the run.
// It is called by the loop and by the download goroutines.
func (r *run) report(ctx context.Context, e common.Event) {
	e.Run = r.id
	e.Time = r.now()
	r.reporter.Report(ctx, e)
}
