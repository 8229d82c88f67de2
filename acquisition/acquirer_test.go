package acquisition_test

import (
	"context"
	"errors"
	"time"

	"github.com/airbusgeo/s2-acquisition/acquisition"
	"github.com/airbusgeo/s2-acquisition/common"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Acquirer", func() {
	var (
		ctx      context.Context
		archive  *fakeArchive
		events   *recorder
		config   acquisition.Config
		result   *acquisition.Result
		err      error
		acquirer *acquisition.Acquirer
	)

	BeforeEach(func() {
		ctx = context.Background()
		archive = newFakeArchive()
		events = &recorder{}
		config = acquisition.Config{
			GraceWait:         30 * time.Millisecond,
			PollInterval:      5 * time.Millisecond,
			Workers:           4,
			ParallelDownloads: 2,
		}
	})

	JustBeforeEach(func() {
		acquirer = acquisition.NewAcquirer(archive, archive, archive, archive, events, config)
		result, err = acquirer.Run(ctx, common.Query{})
	})

	var itShouldDownloadEachProductOnce = func(expected ...string) {
		It("should download each product exactly once", func() {
			Expect(archive.downloaded()).To(HaveLen(len(expected)))
			for _, id := range expected {
				Expect(archive.downloaded()).To(HaveKeyWithValue(common.ProductID(id), 1))
			}
			Expect(result.Downloaded).To(ConsistOf(ids(expected...)))
		})
	}

	var itShouldPartitionTheProducts = func() {
		It("should account for every queried product exactly once", func() {
			all := append(append(append([]common.ProductID{}, result.Downloaded...), result.Failed...), result.StillOffline...)
			Expect(all).To(ConsistOf(result.Queried))
		})
	}

	var itShouldTagTheEventsWithTheRun = func() {
		It("should tag all the events with the run", func() {
			Expect(result.Run).NotTo(BeEmpty())
			for _, e := range events.events {
				Expect(e.Run).To(Equal(result.Run))
			}
		})
	}

	Context("no product", func() {
		It("should be done without downloading", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(common.StatusDone))
			Expect(result.Rounds).To(Equal(0))
			Expect(archive.batches).To(BeEmpty())
			Expect(events.ofType(common.EventDone)).To(HaveLen(1))
		})
	})

	Context("all products online", func() {
		BeforeEach(func() {
			archive.add("a", fakeProduct{}).add("b", fakeProduct{})
		})
		It("should be done without requesting nor waiting", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(common.StatusDone))
			Expect(result.Rounds).To(Equal(0))
			Expect(archive.requests("a") + archive.requests("b")).To(Equal(0))
			Expect(events.ofType(common.EventWaiting)).To(BeEmpty())
			Expect(archive.batches).To(HaveLen(1))
		})
		itShouldDownloadEachProductOnce("a", "b")
		itShouldPartitionTheProducts()
		itShouldTagTheEventsWithTheRun()
	})

	Context("duplicated candidates", func() {
		BeforeEach(func() {
			archive.duplicates = true
			archive.add("a", fakeProduct{}).add("b", fakeProduct{onlineAfter: 1})
		})
		It("should remove the duplicates", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Queried).To(Equal(ids("a", "b")))
		})
		itShouldDownloadEachProductOnce("a", "b")
	})

	Context("online and offline products", func() {
		BeforeEach(func() {
			archive.add("a", fakeProduct{}).
				add("b", fakeProduct{onlineAfter: 1}).
				add("c", fakeProduct{onlineAfter: 2})
		})
		It("should request the offline products until they are online", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(common.StatusDone))
			Expect(result.Rounds).To(Equal(2))
			Expect(archive.requests("a")).To(Equal(0))
			Expect(archive.requests("b")).To(Equal(1))
			Expect(archive.requests("c")).To(Equal(2))
			Expect(result.Accepted).To(Equal(3))
			Expect(result.Declined).To(Equal(0))
		})
		It("should download the online products first", func() {
			Expect(archive.batches).NotTo(BeEmpty())
			Expect(archive.batches[0]).To(Equal(ids("a")))
		})
		It("should poll without grace wait", func() {
			for _, e := range events.ofType(common.EventWaiting) {
				Expect(time.Duration(e.Wait)).To(Equal(config.PollInterval))
			}
		})
		It("should report the rounds", func() {
			started := events.ofType(common.EventRoundStarted)
			Expect(started).To(HaveLen(2))
			Expect(started[0].Round).To(Equal(1))
			Expect(started[0].Offline).To(Equal(2))
			Expect(started[1].Offline).To(Equal(1))
			Expect(events.ofType(common.EventReactivationRequested)).To(HaveLen(3))
			done := events.ofType(common.EventDone)
			Expect(done).To(HaveLen(1))
			Expect(*done[0].Status).To(Equal(common.StatusDone))
		})
		itShouldDownloadEachProductOnce("a", "b", "c")
		itShouldPartitionTheProducts()
		itShouldTagTheEventsWithTheRun()
	})

	Context("no product online at first", func() {
		BeforeEach(func() {
			archive.add("a", fakeProduct{onlineAfter: 1}).add("b", fakeProduct{onlineAfter: 2})
		})
		It("should wait the grace period in the first round only", func() {
			Expect(err).NotTo(HaveOccurred())
			waits := events.ofType(common.EventWaiting)
			Expect(waits).To(HaveLen(2))
			Expect(time.Duration(waits[0].Wait)).To(Equal(config.GraceWait))
			Expect(time.Duration(waits[1].Wait)).To(Equal(config.PollInterval))
		})
		It("should still request the reactivation in the first round", func() {
			Expect(archive.requests("a")).To(Equal(1))
			Expect(archive.requests("b")).To(Equal(2))
		})
		itShouldDownloadEachProductOnce("a", "b")
	})

	Context("declined requests", func() {
		BeforeEach(func() {
			archive.add("a", fakeProduct{onlineAfter: 1, declines: 2})
		})
		It("should request again the declined products", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(common.StatusDone))
			Expect(result.Rounds).To(Equal(3))
			Expect(result.Declined).To(Equal(2))
			Expect(result.Accepted).To(Equal(1))
		})
		itShouldDownloadEachProductOnce("a")
	})

	Context("maximum number of rounds", func() {
		BeforeEach(func() {
			config.MaxRounds = 2
			archive.add("a", fakeProduct{}).add("b", fakeProduct{onlineAfter: 5})
		})
		It("should stop with the products still offline", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(common.StatusStillOffline))
			Expect(result.Rounds).To(Equal(2))
			Expect(result.StillOffline).To(Equal(ids("b")))
			Expect(archive.requests("b")).To(Equal(2))
		})
		itShouldDownloadEachProductOnce("a")
		itShouldPartitionTheProducts()
	})

	Context("stale products", func() {
		BeforeEach(func() {
			config.StalenessTimeout = time.Millisecond
			archive.add("a", fakeProduct{}).add("b", fakeProduct{onlineAfter: 100})
		})
		It("should stop requesting them", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Status).To(Equal(common.StatusStillOffline))
			Expect(result.Rounds).To(Equal(1))
			Expect(result.StillOffline).To(Equal(ids("b")))
			stale := events.ofType(common.EventStale)
			Expect(stale).To(HaveLen(1))
			Expect(stale[0].Products).To(Equal(ids("b")))
		})
		itShouldDownloadEachProductOnce("a")
		itShouldPartitionTheProducts()
	})

	Context("query failure", func() {
		BeforeEach(func() {
			archive.queryErr = errors.New("catalog unavailable")
		})
		It("should abort in init phase", func() {
			var perr *common.PhaseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Phase).To(Equal(common.PhaseInit))
			Expect(result.Status).To(Equal(common.StatusAborted))
			Expect(events.ofType(common.EventAborted)).To(HaveLen(1))
		})
	})

	Context("availability unknown", func() {
		checkErr := &common.TransportError{Op: "IsOnline", Product: "b", Err: errors.New("503")}
		BeforeEach(func() {
			archive.add("a", fakeProduct{}).add("b", fakeProduct{checkErr: checkErr})
		})
		It("should abort naming the product", func() {
			var perr *common.PhaseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Phase).To(Equal(common.PhaseClassifying))
			Expect(perr.Product).To(Equal(common.ProductID("b")))
			Expect(errors.Is(err, checkErr)).To(BeTrue())
			Expect(result.Status).To(Equal(common.StatusAborted))
			Expect(archive.batches).To(BeEmpty())
		})
	})

	Context("availability unknown after a reactivation", func() {
		checkErr := &common.TransportError{Op: "IsOnline", Product: "b", Err: errors.New("503")}
		BeforeEach(func() {
			archive.add("a", fakeProduct{}).add("b", fakeProduct{onlineAfter: 1, checkErr: checkErr, checkErrAfter: 1})
		})
		It("should abort in reclassifying phase", func() {
			var perr *common.PhaseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Phase).To(Equal(common.PhaseReclassifying))
			Expect(perr.Round).To(Equal(1))
			Expect(perr.Product).To(Equal(common.ProductID("b")))
			Expect(perr.Accepted).To(Equal(1))
			Expect(errors.Is(err, checkErr)).To(BeTrue())
			Expect(events.ofType(common.EventAborted)[0].Phase).To(Equal(common.PhaseReclassifying))
		})
	})

	Context("reactivation failure", func() {
		authErr := &common.AuthError{Err: errors.New("401 Unauthorized")}
		BeforeEach(func() {
			config.PollInterval = time.Hour
			archive.add("a", fakeProduct{}).add("b", fakeProduct{onlineAfter: 1, requestErr: authErr})
		})
		It("should abort with the progress of the round", func() {
			var perr *common.PhaseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Phase).To(Equal(common.PhaseRequesting))
			Expect(perr.Round).To(Equal(1))
			Expect(perr.Product).To(Equal(common.ProductID("b")))
			Expect(perr.Offline).To(Equal(1))
			var aerr *common.AuthError
			Expect(errors.As(err, &aerr)).To(BeTrue())
			Expect(result.Status).To(Equal(common.StatusAborted))
			Expect(result.StillOffline).To(Equal(ids("b")))
		})
		It("should wait for the downloads in progress", func() {
			Expect(result.Downloaded).To(Equal(ids("a")))
		})
	})

	Context("archive unreachable during the reactivation", func() {
		transportErr := &common.TransportError{Op: "RequestReactivation", Product: "p3", Err: errors.New("503 Service Unavailable")}
		BeforeEach(func() {
			config.PollInterval = time.Hour
			archive.add("p1", fakeProduct{}).add("p2", fakeProduct{}).
				add("p3", fakeProduct{onlineAfter: 1, requestErr: transportErr})
		})
		It("should report the product that failed", func() {
			var perr *common.PhaseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Phase).To(Equal(common.PhaseRequesting))
			Expect(perr.Product).To(Equal(common.ProductID("p3")))
			Expect(perr.Online).To(Equal(2))
			Expect(errors.Is(err, transportErr)).To(BeTrue())
			Expect(archive.products["p3"].accepted).To(BeZero())
		})
		It("should not affect the online products", func() {
			Expect(result.Downloaded).To(Equal(ids("p1", "p2")))
			Expect(result.Failed).To(BeEmpty())
		})
	})

	Context("transfer failure", func() {
		BeforeEach(func() {
			config.PollInterval = time.Hour
			archive.add("a", fakeProduct{downloadFail: true}).
				add("b", fakeProduct{}).
				add("c", fakeProduct{onlineAfter: 1})
		})
		It("should abort without waiting the end of the poll interval", func() {
			var terr *common.TransferError
			Expect(errors.As(err, &terr)).To(BeTrue())
			Expect(terr.Failed).To(Equal(ids("a")))
			var perr *common.PhaseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Phase).To(Equal(common.PhaseDownloading))
			Expect(result.Status).To(Equal(common.StatusAborted))
			Expect(result.Failed).To(Equal(ids("a")))
			Expect(result.End.Sub(result.Start)).To(BeNumerically("<", time.Minute))
		})
		It("should keep the products transferred", func() {
			Expect(result.Downloaded).To(Equal(ids("b")))
			Expect(events.ofType(common.EventDownloadFailed)).To(HaveLen(1))
		})
	})

	Context("cancellation", func() {
		var cancel context.CancelFunc
		BeforeEach(func() {
			config.PollInterval = time.Hour
			archive.blockDownloads = make(chan struct{})
			archive.add("a", fakeProduct{}).add("b", fakeProduct{onlineAfter: 1})
			ctx, cancel = context.WithCancel(context.Background())
			time.AfterFunc(20*time.Millisecond, cancel)
		})
		AfterEach(func() {
			cancel()
		})
		It("should abort with the error of the context", func() {
			Expect(err).To(MatchError(context.Canceled))
			Expect(result.Status).To(Equal(common.StatusAborted))
			Expect(result.Downloaded).To(BeEmpty())
			Expect(result.Rounds).To(Equal(1))
		})
	})
})
