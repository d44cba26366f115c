package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alanyoungcy/pairsniper/internal/domain"
)

// Fanout publishes each event to every member, continuing past failures.
type Fanout []domain.EventPublisher

var _ domain.EventPublisher = Fanout(nil)

func (f Fanout) Publish(ctx context.Context, evt domain.LifecycleEvent) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BusPublisher writes events as JSON onto an EventBus channel.
type BusPublisher struct {
	bus     domain.EventBus
	channel string
}

// NewBusPublisher creates a BusPublisher.
func NewBusPublisher(bus domain.EventBus, channel string) *BusPublisher {
	return &BusPublisher{bus: bus, channel: channel}
}

func (p *BusPublisher) Publish(ctx context.Context, evt domain.LifecycleEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	return p.bus.Publish(ctx, p.channel, payload)
}
