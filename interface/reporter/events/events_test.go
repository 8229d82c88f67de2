package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/interface/reporter/events"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// MokePublisher implements messaging.Publisher
type MokePublisher struct {
	mu       sync.Mutex
	messages [][]byte
	err      error
	block    chan struct{}
}

// Publish implements messaging.Publisher
func (p *MokePublisher) Publish(ctx context.Context, data ...[]byte) error {
	if p.block != nil {
		<-p.block
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, data...)
	return nil
}

func TestPublisher(t *testing.T) {
	mock := &MokePublisher{}
	p := events.NewPublisher(mock, 0)
	ctx, cancel := context.WithCancel(context.Background())
	outcome := common.OutcomeDeclined
	p.Report(ctx, common.Event{Run: "run", Type: common.EventQueried, Products: []common.ProductID{"a", "b"}})
	p.Report(ctx, common.Event{Run: "run", Type: common.EventReactivationRequested, Round: 1, Product: "b", Outcome: &outcome})
	// events are published even if the acquisition has been cancelled
	cancel()
	p.Report(ctx, common.Event{Run: "run", Type: common.EventAborted, Error: "context canceled"})
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	p.Report(ctx, common.Event{Run: "run", Type: common.EventDone})

	if len(mock.messages) != 3 {
		t.Fatalf("3 messages expected, got %d", len(mock.messages))
	}
	var e map[string]interface{}
	if err := json.Unmarshal(mock.messages[1], &e); err != nil {
		t.Fatal(err)
	}
	if e["type"] != "ReactivationRequested" || e["product"] != "b" || e["outcome"] != "Declined" || e["run"] != "run" {
		t.Errorf("message: %v", e)
	}
}

func TestPublisherFailure(t *testing.T) {
	mock := &MokePublisher{err: errors.New("queue unavailable")}
	p := events.NewPublisher(mock, 0)
	p.Report(context.Background(), common.Event{Type: common.EventQueried})
	if err := p.Close(); err == nil {
		t.Error("error expected")
	}
}

func TestPublisherDrop(t *testing.T) {
	mock := &MokePublisher{block: make(chan struct{})}
	p := events.NewPublisher(mock, 1)
	// the first event blocks the publication, the second one fills the buffer
	for i := 0; i < 10; i++ {
		p.Report(context.Background(), common.Event{Type: common.EventWaiting, Round: i})
	}
	close(mock.block)
	if err := p.Close(); err == nil {
		t.Error("events should be dropped")
	}
	if len(mock.messages) < 1 || len(mock.messages) > 2 {
		t.Errorf("%d messages published", len(mock.messages))
	}
}
