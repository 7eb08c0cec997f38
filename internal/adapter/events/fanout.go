// Package events delivers committed listing events to the live WebSocket feed
// and to the Kafka settlement stream.
package events

import (
	"context"
	"errors"
	"fmt"

	"idle-market/internal/core/domain"
	"idle-market/internal/core/ports"
	"idle-market/internal/metrics"
)

// Sink is a named publisher.
type Sink struct {
	Name      string
	Publisher ports.EventPublisher
}

// Fanout publishes every event to all sinks. One failing sink does not stop the others.
type Fanout struct {
	sinks []Sink
}

// NewFanout creates a Fanout. With no sinks Publish is a no-op.
func NewFanout(sinks ...Sink) *Fanout {
	return &Fanout{sinks: sinks}
}

// Publish implements ports.EventPublisher.
func (f *Fanout) Publish(ctx context.Context, event domain.ListingEvent) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publisher.Publish(ctx, event); err != nil {
			metrics.EventsPublished.WithLabelValues(s.Name, metrics.ResultError).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
			continue
		}
		metrics.EventsPublished.WithLabelValues(s.Name, metrics.ResultSuccess).Inc()
	}
	return errors.Join(errs...)
}
