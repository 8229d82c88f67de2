// Package events publishes the events of the acquisition as JSON messages
// (pubsub topic or pgqueue queue).
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/airbusgeo/geocube/interface/messaging"
	"github.com/airbusgeo/s2-acquisition/common"
	"github.com/airbusgeo/s2-acquisition/service/log"
	"go.uber.org/zap"
)

// DefaultBufferSize is the number of events waiting to be published before the new ones are dropped
const DefaultBufferSize = 1024

type message struct {
	ctx   context.Context
	event common.Event
}

// Publisher implements acquisition.Reporter, publishing the events in background,
// so that a slow messaging system never blocks the acquisition.
type Publisher struct {
	publisher messaging.Publisher
	queue     chan message
	wg        sync.WaitGroup

	// mu protects closed against the close of the queue
	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int32
	failed  atomic.Int32
}

// NewPublisher starts publishing the events to the publisher. Close must be called to flush the events.
func NewPublisher(publisher messaging.Publisher, bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	p := &Publisher{
		publisher: publisher,
		queue:     make(chan message, bufferSize),
	}
	p.wg.Add(1)
	go p.run()
	return p
}

// Report implements acquisition.Reporter
func (p *Publisher) Report(ctx context.Context, e common.Event) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- message{ctx: context.WithoutCancel(ctx), event: e}:
	default:
		p.dropped.Add(1)
		log.Logger(ctx).Warn("event dropped", zap.Stringer("event", e.Type))
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for msg := range p.queue {
		if err := p.publish(msg.ctx, msg.event); err != nil {
			log.Logger(msg.ctx).Warn("failed to publish event", zap.Error(err))
			p.failed.Add(1)
		}
	}
}

func (p *Publisher) publish(ctx context.Context, e common.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("publish.Marshal: %w", err)
	}
	if err := p.publisher.Publish(ctx, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Close publishes the pending events and stops the publisher.
// It returns an error if some events were dropped or could not be published.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()
	p.wg.Wait()

	if dropped, failed := p.dropped.Load(), p.failed.Load(); dropped > 0 || failed > 0 {
		return fmt.Errorf("events.Close: %d event(s) dropped, %d event(s) not published", dropped, failed)
	}
	return nil
}
