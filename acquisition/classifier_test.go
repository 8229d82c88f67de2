package acquisition_test

import (
	"context"
	"errors"

	"github.com/airbusgeo/s2-acquisition/acquisition"
	"github.com/airbusgeo/s2-acquisition/common"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Classifier", func() {
	var (
		archive    *fakeArchive
		online     []common.ProductID
		offline    []common.ProductID
		err        error
		candidates []common.ProductID
	)

	BeforeEach(func() {
		archive = newFakeArchive()
		candidates = nil
	})

	JustBeforeEach(func() {
		online, offline, err = acquisition.NewClassifier(archive, 3).Classify(context.Background(), candidates)
	})

	Context("mixed products", func() {
		BeforeEach(func() {
			for i, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6", "p7"} {
				archive.add(id, fakeProduct{onlineAfter: i % 2})
			}
			candidates = ids("p1", "p2", "p3", "p4", "p5", "p6", "p7")
		})
		It("should partition the products in input order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(online).To(Equal(ids("p1", "p3", "p5", "p7")))
			Expect(offline).To(Equal(ids("p2", "p4", "p6")))
		})
		It("should check each product once", func() {
			for _, p := range archive.products {
				Expect(p.checks).To(Equal(1))
			}
		})
	})

	Context("unchanged archive", func() {
		BeforeEach(func() {
			archive.add("p1", fakeProduct{}).add("p2", fakeProduct{onlineAfter: 1}).add("p3", fakeProduct{})
			candidates = ids("p3", "p2", "p1")
		})
		It("should return the same partition each time", func() {
			Expect(err).NotTo(HaveOccurred())
			for i := 0; i < 3; i++ {
				again, againOffline, err := acquisition.NewClassifier(archive, 2).Classify(context.Background(), candidates)
				Expect(err).NotTo(HaveOccurred())
				Expect(again).To(Equal(online))
				Expect(againOffline).To(Equal(offline))
			}
			Expect(online).To(Equal(ids("p3", "p1")))
			Expect(offline).To(Equal(ids("p2")))
		})
	})

	Context("no product", func() {
		It("should return empty sets", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(online).To(BeEmpty())
			Expect(offline).To(BeEmpty())
		})
	})

	Context("unknown availability", func() {
		checkErr := errors.New("503 Service Unavailable")
		BeforeEach(func() {
			archive.add("p1", fakeProduct{}).add("p2", fakeProduct{checkErr: checkErr})
			candidates = ids("p1", "p2")
		})
		It("should fail naming the product", func() {
			var perr *common.PhaseError
			Expect(errors.As(err, &perr)).To(BeTrue())
			Expect(perr.Product).To(Equal(common.ProductID("p2")))
			Expect(perr.Phase).To(Equal(common.PhaseClassifying))
			Expect(errors.Is(err, checkErr)).To(BeTrue())
			Expect(online).To(BeNil())
			Expect(offline).To(BeNil())
		})
	})

	Context("cancelled context", func() {
		It("should fail", func() {
			archive.add("p1", fakeProduct{})
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, _, err := acquisition.NewClassifier(archive, 1).Classify(ctx, ids("p1"))
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})
