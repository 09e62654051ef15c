// Package ingest consumes the chain-gateway's event stream from NATS
// JetStream and feeds it to the dispatcher. Delivery is at-least-once;
// the consumer deduplicates on the delivery id so every event is applied
// to the store exactly once, which the aggregate math depends on.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/config"
	"github.com/subnet-labs/subnet-indexer/internal/dispatch"
	"github.com/subnet-labs/subnet-indexer/internal/keys"
	"github.com/subnet-labs/subnet-indexer/internal/metrics"
	"github.com/subnet-labs/subnet-indexer/internal/models"
	"github.com/subnet-labs/subnet-indexer/internal/store"
)

// CollectionProcessed holds one mark per applied delivery id.
const CollectionProcessed = "processed"

// processedMark records that a delivery id has been applied.
type processedMark struct {
	EventID     string `json:"event_id"`
	ProcessedAt int64  `json:"processed_at"`
}

// Consumer pulls events off a durable JetStream subscription and handles
// them strictly sequentially, in delivery order. Aggregate math is
// order-sensitive, so there is deliberately no concurrent handling.
type Consumer struct {
	nc           *nats.Conn
	js           nats.JetStreamContext
	logger       *zap.Logger
	cfg          *config.Config
	dispatcher   *dispatch.Dispatcher
	processed    *store.Collection[processedMark]
	subscription *nats.Subscription
	shutdownChan chan struct{}
}

// NewConsumer creates an event consumer bound to the given dispatcher
// and store backend.
func NewConsumer(nc *nats.Conn, cfg *config.Config, dispatcher *dispatch.Dispatcher, kv store.KV, logger *zap.Logger) (*Consumer, error) {
	var js nats.JetStreamContext
	var err error
	if nc != nil {
		js, err = nc.JetStream()
		if err != nil {
			logger.Error("Failed to get JetStream context for event consumer", zap.Error(err))
			return nil, fmt.Errorf("failed to get JetStream context: %w", err)
		}
	}

	return &Consumer{
		nc:           nc,
		js:           js,
		logger:       logger,
		cfg:          cfg,
		dispatcher:   dispatcher,
		processed:    store.NewCollection[processedMark](kv, CollectionProcessed),
		shutdownChan: make(chan struct{}),
	}, nil
}

// StartConsuming creates the durable pull subscription and starts the
// fetch loop.
func (c *Consumer) StartConsuming() error {
	if c.js == nil {
		return fmt.Errorf("JetStream context not available for consuming events")
	}

	durableName := c.cfg.NatsDurablePrefix + "_consumer"

	var err error
	c.subscription, err = c.js.PullSubscribe(
		c.cfg.NatsEventSubject,
		durableName,
		nats.AckWait(60*time.Second),
	)
	if err != nil {
		c.logger.Error("Failed to create JetStream pull subscription",
			zap.String("subject", c.cfg.NatsEventSubject),
			zap.String("durable_name", durableName),
			zap.Error(err),
		)
		return fmt.Errorf("failed to create pull subscription: %w", err)
	}

	c.logger.Info("Subscribed to JetStream event stream",
		zap.String("subject", c.cfg.NatsEventSubject),
		zap.String("durable_consumer", durableName),
	)

	go c.fetchLoop()
	return nil
}

func (c *Consumer) fetchLoop() {
	c.logger.Info("Starting JetStream event fetch loop...")
	batchSize := 64
	for {
		select {
		case <-c.shutdownChan:
			c.logger.Info("Shutting down JetStream event fetch loop...")
			return
		default:
			msgs, err := c.subscription.Fetch(batchSize, nats.MaxWait(10*time.Second))
			if err != nil {
				if err == nats.ErrTimeout {
					continue
				}
				c.logger.Error("Error fetching messages from JetStream", zap.Error(err))
				if !c.subscription.IsValid() || c.nc.Status() != nats.CONNECTED {
					c.logger.Error("NATS subscription or connection lost. Stopping fetch loop.")
					return
				}
				time.Sleep(5 * time.Second)
				continue
			}

			// Messages must be handled one at a time, in delivery
			// order. Handlers mutate aggregates whose math is
			// order-sensitive.
			for _, msg := range msgs {
				c.handleMessage(msg)
			}
		}
	}
}

// handleMessage applies one event: unmarshal, dedup, dispatch, mark.
func (c *Consumer) handleMessage(msg *nats.Msg) {
	ctx := context.Background()

	var evt models.Event
	if err := json.Unmarshal(msg.Data, &evt); err != nil {
		c.logger.Error("Failed to unmarshal event envelope from NATS message",
			zap.Error(err),
			zap.ByteString("raw_data", msg.Data),
		)
		metrics.EventsSkippedTotal.WithLabelValues("malformed").Inc()
		// Acknowledge poison pill messages to prevent redelivery loops
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Error("Failed to ACK unmarshalable (poison pill) message", zap.Error(ackErr))
		}
		return
	}

	deliveryID := evt.ID
	if deliveryID == "" {
		deliveryID = keys.Delivery(evt.TxHash, evt.LogIndex)
		evt.ID = deliveryID
	}

	seen, err := c.processed.Has(ctx, deliveryID)
	if err != nil {
		c.logger.Error("Failed to check delivery id against processed set",
			zap.String("delivery_id", deliveryID), zap.Error(err))
		if nakErr := msg.NakWithDelay(10 * time.Second); nakErr != nil {
			c.logger.Error("Failed to NAK message after processed-set read failure", zap.Error(nakErr))
		}
		return
	}
	if seen {
		metrics.EventsSkippedTotal.WithLabelValues("duplicate").Inc()
		c.logger.Debug("Event already applied, ACKing duplicate delivery",
			zap.String("delivery_id", deliveryID), zap.String("type", evt.Type))
		if ackErr := msg.Ack(); ackErr != nil {
			c.logger.Error("Failed to ACK duplicate delivery", zap.Error(ackErr))
		}
		return
	}

	c.dispatcher.Dispatch(ctx, &evt)

	mark := &processedMark{EventID: deliveryID, ProcessedAt: time.Now().Unix()}
	if err := c.processed.Put(ctx, deliveryID, mark); err != nil {
		c.logger.Error("Failed to record delivery id, requesting redelivery",
			zap.String("delivery_id", deliveryID), zap.Error(err))
		if nakErr := msg.NakWithDelay(10 * time.Second); nakErr != nil {
			c.logger.Error("Failed to NAK message after failing to record delivery id", zap.Error(nakErr))
			_ = msg.Ack() // Prevent poison pill loop if NAK also fails
		}
		return
	}

	if ackErr := msg.AckSync(); ackErr != nil {
		c.logger.Error("Failed to ACK NATS message for applied event",
			zap.String("delivery_id", deliveryID), zap.Error(ackErr))
	}
}

// Stop gracefully shuts down the consumer.
func (c *Consumer) Stop() {
	c.logger.Info("Stopping event consumer...")
	close(c.shutdownChan)

	if c.subscription != nil {
		if err := c.subscription.Drain(); err != nil {
			c.logger.Error("Error draining NATS subscription", zap.Error(err))
			if unsubErr := c.subscription.Unsubscribe(); unsubErr != nil {
				c.logger.Error("Error unsubscribing event consumer after drain failed", zap.Error(unsubErr))
			}
		}
	}
	c.logger.Info("Event consumer stopped.")
}
