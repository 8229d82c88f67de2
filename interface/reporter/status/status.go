// Package status keeps a snapshot of the acquisition, updated by the events of the loop,
// and serves it over HTTP.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"github.com/gorilla/mux"
)

// Product state, as seen by the reporter
const (
	StateQueried      = "queried"
	StateRequested    = "requested"
	StateDownloading  = "downloading"
	StateDownloaded   = "downloaded"
	StateFailed       = "failed"
	StateStale        = "stale"
	StateStillOffline = "still_offline"
)

// Product is the status of a product
type Product struct {
	ID          common.ProductID `json:"id"`
	State       string           `json:"state"`
	Requests    int              `json:"requests"`
	LastOutcome *common.Outcome  `json:"last_outcome,omitempty"`
	Error       string           `json:"error,omitempty"`
	Updated     time.Time        `json:"updated"`
}

// Status is the snapshot of the acquisition
type Status struct {
	Run      string         `json:"run"`
	Phase    common.Phase   `json:"phase"`
	Round    int            `json:"round"`
	Status   *common.Status `json:"status,omitempty"`
	Online   int            `json:"online"`
	Offline  int            `json:"offline"`
	Accepted int            `json:"accepted"`
	Declined int            `json:"declined"`
	Products map[string]int `json:"products"`
	Error    string         `json:"error,omitempty"`
	Updated  time.Time      `json:"updated"`
}

// Reporter implements acquisition.Reporter, keeping the status of the acquisition
type Reporter struct {
	mu       sync.RWMutex
	status   Status
	products map[common.ProductID]*Product
	order    []common.ProductID
}

// New creates an empty Reporter
func New() *Reporter {
	return &Reporter{products: map[common.ProductID]*Product{}}
}

// Report implements acquisition.Reporter
func (r *Reporter) Report(ctx context.Context, e common.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status.Run = e.Run
	r.status.Updated = e.Time
	if e.Type != common.EventDownloadStarted && e.Type != common.EventDownloadFinished && e.Type != common.EventDownloadFailed {
		// download events are emitted in background with the round of their dispatch
		r.status.Phase = e.Phase
		r.status.Round = e.Round
	}

	switch e.Type {
	case common.EventQueried:
		for _, id := range e.Products {
			r.set(id, StateQueried, e.Time)
		}
	case common.EventClassified:
		r.status.Online, r.status.Offline = e.Online, e.Offline
	case common.EventReactivationRequested:
		p := r.set(e.Product, StateRequested, e.Time)
		p.Requests++
		p.LastOutcome = e.Outcome
		if e.Outcome != nil {
			if *e.Outcome == common.OutcomeAccepted {
				r.status.Accepted++
			} else {
				r.status.Declined++
			}
		}
	case common.EventDownloadStarted:
		for _, id := range e.Products {
			r.set(id, StateDownloading, e.Time)
		}
	case common.EventDownloadFinished:
		for _, id := range e.Products {
			r.set(id, StateDownloaded, e.Time)
		}
	case common.EventDownloadFailed:
		for _, id := range e.Products {
			r.set(id, StateFailed, e.Time).Error = e.Error
		}
	case common.EventStale:
		for _, id := range e.Products {
			r.set(id, StateStale, e.Time)
		}
	case common.EventDone:
		for _, id := range e.Products {
			if p, ok := r.products[id]; !ok || p.State != StateStale {
				r.set(id, StateStillOffline, e.Time)
			}
		}
		r.status.Status = e.Status
	case common.EventAborted:
		r.status.Phase = common.PhaseAborted
		r.status.Status = e.Status
		r.status.Error = e.Error
	}
}

// set the state of the product. r.mu must be held.
func (r *Reporter) set(id common.ProductID, state string, t time.Time) *Product {
	p, ok := r.products[id]
	if !ok {
		p = &Product{ID: id}
		r.products[id] = p
		r.order = append(r.order, id)
	}
	p.State = state
	p.Updated = t
	return p
}

// Status returns a copy of the current status, with the number of products in each state
func (r *Reporter) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.status
	s.Products = map[string]int{}
	for _, p := range r.products {
		s.Products[p.State]++
	}
	return s
}

// Products returns a copy of the status of the products, in order of appearance
func (r *Reporter) Products() []Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	products := make([]Product, len(r.order))
	for i, id := range r.order {
		products[i] = *r.products[id]
	}
	return products
}

// Product returns a copy of the status of the product
func (r *Reporter) Product(id common.ProductID) (Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return Product{}, false
	}
	return *p, true
}

// NewHandler returns the http handler serving the status
func (r *Reporter) NewHandler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/status", r.GetStatusHandler).Methods("GET")
	router.HandleFunc("/products", r.ListProductsHandler).Methods("GET")
	router.HandleFunc("/products/{id}", r.GetProductHandler).Methods("GET")
	return router
}

// GetStatusHandler returns the status of the acquisition
func (r *Reporter) GetStatusHandler(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, req, r.Status())
}

// ListProductsHandler returns the status of all the products
func (r *Reporter) ListProductsHandler(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, req, r.Products())
}

// GetProductHandler returns the status of a product
func (r *Reporter) GetProductHandler(w http.ResponseWriter, req *http.Request) {
	p, ok := r.Product(common.ProductID(mux.Vars(req)["id"]))
	if !ok {
		w.WriteHeader(404)
		return
	}
	writeJSON(w, req, p)
}

func writeJSON(w http.ResponseWriter, req *http.Request, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Logger(req.Context()).Sugar().Warnf("status: %v", err)
	}
}
