package acquisition

import (
	"fmt"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
)

// State of the acquisition loop. It is owned by the goroutine running the loop.
type State struct {
	Round int
	Phase common.Phase
	// Online products not dispatched yet
	Online *common.ProductSet
	// Offline products, to be requested and reclassified
	Offline *common.ProductSet
	// Stale products, offline for too long: they are not requested anymore
	Stale *common.ProductSet
	// Dispatched products, being downloaded
	Dispatched *common.ProductSet
	Downloaded *common.ProductSet
	Failed     *common.ProductSet
	// OfflineSince is the time when the product was first seen offline
	OfflineSince map[common.ProductID]time.Time
	// Cumulative reactivation outcomes
	Accepted, Declined int
}

// NewState creates an empty state
func NewState() *State {
	return &State{
		Phase:        common.PhaseInit,
		Online:       common.NewProductSet(),
		Offline:      common.NewProductSet(),
		Stale:        common.NewProductSet(),
		Dispatched:   common.NewProductSet(),
		Downloaded:   common.NewProductSet(),
		Failed:       common.NewProductSet(),
		OfflineSince: map[common.ProductID]time.Time{},
	}
}

// setClassification replaces the offline products with the result of the classification
func (s *State) setClassification(online, offline []common.ProductID, now time.Time) {
	for _, id := range online {
		s.Online.Push(id)
		delete(s.OfflineSince, id)
	}
	s.Offline = common.NewProductSet(offline...)
	for _, id := range offline {
		if _, ok := s.OfflineSince[id]; !ok {
			s.OfflineSince[id] = now
		}
	}
}

// dispatch moves the online products to the dispatched products and returns them
func (s *State) dispatch() []common.ProductID {
	ids := s.Online.Slice()
	for _, id := range ids {
		s.Dispatched.Push(id)
	}
	s.Online = common.NewProductSet()
	return ids
}

// transferred moves the products of a finished download batch to the downloaded or failed products
func (s *State) transferred(ids []common.ProductID, failed []common.ProductID) {
	failedSet := common.NewProductSet(failed...)
	dispatched := common.NewProductSet()
	batch := common.NewProductSet(ids...)
	for _, id := range s.Dispatched.Slice() {
		if !batch.Exists(id) {
			dispatched.Push(id)
		}
	}
	s.Dispatched = dispatched
	for _, id := range ids {
		if failedSet.Exists(id) {
			s.Failed.Push(id)
		} else {
			s.Downloaded.Push(id)
		}
	}
}

// expire moves the products that are offline since timeout to the stale products and returns them
func (s *State) expire(now time.Time, timeout time.Duration) []common.ProductID {
	if timeout <= 0 {
		return nil
	}
	var stale []common.ProductID
	offline := common.NewProductSet()
	for _, id := range s.Offline.Slice() {
		if now.Sub(s.OfflineSince[id]) >= timeout {
			stale = append(stale, id)
			s.Stale.Push(id)
		} else {
			offline.Push(id)
		}
	}
	s.Offline = offline
	return stale
}

// Check verifies that each product of all belongs to exactly one of the sets of the state
// and that the state does not contain unknown products
func (s *State) Check(all []common.ProductID) error {
	sets := []struct {
		name string
		set  *common.ProductSet
	}{
		{"online", s.Online},
		{"offline", s.Offline},
		{"stale", s.Stale},
		{"dispatched", s.Dispatched},
		{"downloaded", s.Downloaded},
		{"failed", s.Failed},
	}
	allSet := common.NewProductSet(all...)
	total := 0
	for _, st := range sets {
		total += st.set.Len()
		if unknown := st.set.Minus(allSet); len(unknown) > 0 {
			return fmt.Errorf("State.Check: unknown products in %s set: %v", st.name, unknown)
		}
	}
	for _, id := range allSet.Slice() {
		var in []string
		for _, st := range sets {
			if st.set.Exists(id) {
				in = append(in, st.name)
			}
		}
		if len(in) != 1 {
			return fmt.Errorf("State.Check: product %s belongs to %d sets %v", id, len(in), in)
		}
	}
	if total != allSet.Len() {
		return fmt.Errorf("State.Check: %d products in the state, %d expected", total, allSet.Len())
	}
	return nil
}
