package status_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/interface/reporter/status"
)

func report(r *status.Reporter) {
	ctx := context.Background()
	accepted, declined := common.OutcomeAccepted, common.OutcomeDeclined
	done := common.StatusStillOffline
	for _, e := range []common.Event{
		{Run: "run", Type: common.EventQueried, Phase: common.PhaseInit, Products: []common.ProductID{"a", "b", "c", "d"}},
		{Run: "run", Type: common.EventClassified, Phase: common.PhaseClassifying, Online: 1, Offline: 3},
		{Run: "run", Type: common.EventRoundStarted, Phase: common.PhaseRequesting, Round: 1, Offline: 3},
		{Run: "run", Type: common.EventDownloadStarted, Phase: common.PhaseDownloading, Round: 1, Products: []common.ProductID{"a"}},
		{Run: "run", Type: common.EventReactivationRequested, Phase: common.PhaseRequesting, Round: 1, Product: "b", Outcome: &accepted},
		{Run: "run", Type: common.EventReactivationRequested, Phase: common.PhaseRequesting, Round: 1, Product: "c", Outcome: &declined},
		{Run: "run", Type: common.EventReactivationRequested, Phase: common.PhaseRequesting, Round: 1, Product: "d", Outcome: &accepted},
		{Run: "run", Type: common.EventDownloadFinished, Phase: common.PhaseDownloading, Round: 1, Products: []common.ProductID{"a"}},
		{Run: "run", Type: common.EventStale, Phase: common.PhaseReclassifying, Round: 1, Products: []common.ProductID{"d"}},
		{Run: "run", Type: common.EventDone, Phase: common.PhaseDone, Round: 1, Status: &done, Products: []common.ProductID{"b", "c", "d"}},
	} {
		r.Report(ctx, e)
	}
}

func TestReporter(t *testing.T) {
	r := status.New()
	report(r)

	s := r.Status()
	if s.Run != "run" || s.Phase != common.PhaseDone || s.Round != 1 {
		t.Errorf("status: %+v", s)
	}
	if s.Status == nil || *s.Status != common.StatusStillOffline {
		t.Errorf("status: %v", s.Status)
	}
	if s.Accepted != 2 || s.Declined != 1 {
		t.Errorf("accepted: %d, declined: %d", s.Accepted, s.Declined)
	}
	expected := map[string]int{status.StateDownloaded: 1, status.StateStillOffline: 2, status.StateStale: 1}
	for k, v := range expected {
		if s.Products[k] != v {
			t.Errorf("%s: %d expected, got %d", k, v, s.Products[k])
		}
	}

	products := r.Products()
	if len(products) != 4 || products[0].ID != "a" || products[3].ID != "d" {
		t.Errorf("products: %+v", products)
	}
	if p, _ := r.Product("c"); p.Requests != 1 || p.LastOutcome == nil || *p.LastOutcome != common.OutcomeDeclined {
		t.Errorf("product c: %+v", p)
	}
}

func TestHandler(t *testing.T) {
	r := status.New()
	report(r)
	srv := httptest.NewServer(r.NewHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var s map[string]interface{}
	err = json.NewDecoder(resp.Body).Decode(&s)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if s["phase"] != "Done" || s["status"] != "StillOffline" {
		t.Errorf("status: %v", s)
	}

	resp, err = http.Get(srv.URL + "/products/b")
	if err != nil {
		t.Fatal(err)
	}
	var p status.Product
	err = json.NewDecoder(resp.Body).Decode(&p)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if p.ID != "b" || p.State != status.StateStillOffline || p.Requests != 1 {
		t.Errorf("product: %+v", p)
	}

	resp, err = http.Get(srv.URL + "/products")
	if err != nil {
		t.Fatal(err)
	}
	var products []status.Product
	err = json.NewDecoder(resp.Body).Decode(&products)
	resp.Body.Close()
	if err != nil || len(products) != 4 {
		t.Errorf("products: %v, %v", products, err)
	}

	resp, err = http.Get(srv.URL + "/products/unknown")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != 404 {
		t.Errorf("404 expected, got %d", resp.StatusCode)
	}
}
