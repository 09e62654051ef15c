package handlers

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/bucket"
	"github.com/subnet-labs/subnet-indexer/internal/keys"
	"github.com/subnet-labs/subnet-indexer/internal/metrics"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

// subtract returns a - b, or ErrNegativeAmount when the result would go
// below zero. Negative balances indicate misordered or inconsistent
// upstream data, so the caller must abandon that entity's update instead
// of clamping.
func subtract(a, b decimal.Decimal) (decimal.Decimal, error) {
	result := a.Sub(b)
	if result.IsNegative() {
		return a, fmt.Errorf("%s - %s: %w", a.String(), b.String(), models.ErrNegativeAmount)
	}
	return result, nil
}

// reportViolation flags an arithmetic invariant violation for operators.
func reportViolation(logger *zap.Logger, entity, key string, err error) {
	metrics.InvariantViolationsTotal.Inc()
	logger.Error("Arithmetic invariant violation, entity update abandoned",
		zap.String("entity", entity),
		zap.String("key", key),
		zap.Error(err),
	)
}

// reportMissing records a handler no-op caused by a missing required
// referent. These are expected when prerequisite events were filtered
// upstream, so they are warnings, not failures.
func reportMissing(logger *zap.Logger, handler, entity, key string) {
	metrics.HandlerNoOpsTotal.WithLabelValues(handler).Inc()
	logger.Warn("Required referent not found, skipping event",
		zap.String("handler", handler),
		zap.String("entity", entity),
		zap.String("key", key),
	)
}

// writeProviderSnapshot upserts the provider's snapshot for the event's
// day bucket. Several events on the same day collapse into one snapshot
// that reflects the latest counters.
func writeProviderSnapshot(ctx context.Context, entities *Entities, provider *models.Provider, ts int64) error {
	day := bucket.For(ts).Day
	key := keys.Pair(provider.ID, day)

	snapshot := &models.ProviderDailySnapshot{
		ID:            key,
		Provider:      provider.ID,
		Day:           day,
		MachineCount:  provider.MachineCount,
		TotalStaked:   provider.TotalStaked,
		SlashedAmount: provider.SlashedAmount,
		Reputation:    provider.Reputation,
		Timestamp:     ts,
	}
	return entities.Snapshots.Put(ctx, key, snapshot)
}
