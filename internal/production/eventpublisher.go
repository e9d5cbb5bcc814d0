package production

import (
	"context"
	"sync/atomic"

	"github.com/comalice/adlayers/internal/core"
	"github.com/comalice/adlayers/internal/primitives"
)

var _ core.EventPublisher = (*ChannelPublisher)(nil)

// ChannelPublisher forwards dispatch events to a Go channel.
// Publishing never blocks dispatch: events are dropped on backpressure.
type ChannelPublisher struct {
	ch      chan<- primitives.Event
	dropped atomic.Int64
}

// NewChannelPublisher creates a ChannelPublisher with the given output channel.
func NewChannelPublisher(ch chan<- primitives.Event) *ChannelPublisher {
	return &ChannelPublisher{ch: ch}
}

func (p *ChannelPublisher) Publish(ctx context.Context, event primitives.Event) error {
	select {
	case p.ch <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.dropped.Add(1)
		return nil
	}
}

// Dropped returns the number of events dropped on a full channel.
func (p *ChannelPublisher) Dropped() int64 { return p.dropped.Load() }

func (p *ChannelPublisher) Close() error {
	close(p.ch)
	return nil
}
