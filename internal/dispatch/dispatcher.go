// Package dispatch routes decoded chain events to their handlers. Events
// are handled strictly sequentially in delivery order; a handler error is
// contained here and never aborts the stream.
package dispatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/metrics"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

// HandlerFunc processes one event.
type HandlerFunc func(ctx context.Context, evt *models.Event) error

// Dispatcher is the event type to handler routing table. Register all
// handlers before the consumer starts; the table is not safe for
// concurrent mutation.
type Dispatcher struct {
	routes map[string]HandlerFunc
	logger *zap.Logger
}

// New creates an empty dispatcher.
func New(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		routes: make(map[string]HandlerFunc),
		logger: logger,
	}
}

// Register binds an event type to its handler, replacing any previous
// binding.
func (d *Dispatcher) Register(eventType string, handler HandlerFunc) {
	d.routes[eventType] = handler
}

// Dispatch routes one event. Unknown types are counted and skipped.
// Handler errors are logged and counted but not returned: by the time an
// event reaches the dispatcher it is well-formed, so an error means a
// data-consistency problem that redelivery cannot fix.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *models.Event) {
	handler, ok := d.routes[evt.Type]
	if !ok {
		metrics.EventsSkippedTotal.WithLabelValues("unknown_type").Inc()
		d.logger.Debug("No handler registered for event type, skipping",
			zap.String("type", evt.Type), zap.String("event_id", evt.ID))
		return
	}

	if err := handler(ctx, evt); err != nil {
		metrics.HandlerErrorsTotal.WithLabelValues(evt.Type).Inc()
		if errors.Is(err, models.ErrNegativeAmount) {
			d.logger.Error("Event produced an arithmetic invariant violation",
				zap.String("type", evt.Type), zap.String("event_id", evt.ID), zap.Error(err))
		} else {
			d.logger.Error("Handler failed to process event",
				zap.String("type", evt.Type), zap.String("event_id", evt.ID), zap.Error(err))
		}
		return
	}

	metrics.EventsProcessedTotal.WithLabelValues(evt.Type).Inc()
}
