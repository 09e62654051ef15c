package handlers

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/bucket"
	"github.com/subnet-labs/subnet-indexer/internal/chainstate"
	"github.com/subnet-labs/subnet-indexer/internal/keys"
	"github.com/subnet-labs/subnet-indexer/internal/metrics"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

// UsageHandlers derives the usage and reward aggregates from app store
// events. A single usage report fans out to every aggregation scope in
// one pass; exactly-once application upstream is what keeps the running
// sums equal to the sum of all reports.
type UsageHandlers struct {
	entities *Entities
	state    chainstate.Reader
	logger   *zap.Logger
}

// NewUsageHandlers creates the usage/reward handler group.
func NewUsageHandlers(entities *Entities, state chainstate.Reader, logger *zap.Logger) *UsageHandlers {
	return &UsageHandlers{
		entities: entities,
		state:    state,
		logger:   logger,
	}
}

// HandleAppCreated records an app. The full record comes from the
// chain-gateway; a failed read leaves the billing fields zero-valued.
// An existing app keeps its distinct-provider count.
func (h *UsageHandlers) HandleAppCreated(ctx context.Context, evt *models.Event) error {
	var p models.AppCreatedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	app, err := h.entities.Apps.GetOrCreate(ctx, p.AppID, func(a *models.App) {
		a.ID = p.AppID
	})
	if err != nil {
		return err
	}

	state, ok, err := h.state.App(ctx, evt.Source, p.AppID)
	if err != nil {
		metrics.AuxReadFailuresTotal.Inc()
		h.logger.Warn("App state lookup failed, storing app with zero-valued fields",
			zap.String("app_id", p.AppID), zap.Error(err))
	}
	if ok {
		app.Name = state.Name
		app.Symbol = state.Symbol
		app.Owner = state.Owner
		app.Budget = state.Budget
		app.SpentBudget = state.SpentBudget
		app.PaymentToken = state.PaymentToken
	}

	return h.entities.Apps.Put(ctx, p.AppID, app)
}

// HandleUsageReported fans one usage report out to every aggregation
// scope: the raw record, the (app, provider) pairwise aggregate, the
// per-provider rollup, the network-wide rollup, and the three calendar
// buckets. The first report from an (app, provider) pair is what
// increments the distinct-provider counters.
func (h *UsageHandlers) HandleUsageReported(ctx context.Context, evt *models.Event) error {
	var p models.UsageReportedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	usageKey := keys.Compose(p.AppID, p.PeerID, strconv.FormatInt(p.Timestamp, 10))
	usage := &models.Usage{
		ID:                usageKey,
		App:               p.AppID,
		Provider:          p.ProviderID,
		Peer:              p.PeerID,
		Duration:          p.Duration,
		UsedCPU:           p.UsedCPU,
		UsedGPU:           p.UsedGPU,
		UsedMemory:        p.UsedMemory,
		UsedStorage:       p.UsedStorage,
		UsedUploadBytes:   p.UsedUploadBytes,
		UsedDownloadBytes: p.UsedDownloadBytes,
		Reward:            p.Reward,
		Timestamp:         p.Timestamp,
	}
	if err := h.entities.Usage.Put(ctx, usageKey, usage); err != nil {
		return err
	}

	pairKey := keys.Pair(p.AppID, p.ProviderID)
	firstSighting, err := h.entities.AppProviders.Has(ctx, pairKey)
	if err != nil {
		return err
	}
	firstSighting = !firstSighting

	pair, err := h.entities.AppProviders.GetOrCreate(ctx, pairKey, func(ap *models.AppProvider) {
		ap.ID = pairKey
		ap.App = p.AppID
		ap.Provider = p.ProviderID
		ap.FirstSeenAt = p.Timestamp
	})
	if err != nil {
		return err
	}
	pair.Totals.Accumulate(&p)
	pair.PendingReward = pair.PendingReward.Add(p.Reward)
	if err := h.entities.AppProviders.Put(ctx, pairKey, pair); err != nil {
		return err
	}

	if firstSighting {
		app, err := h.entities.Apps.GetOrCreate(ctx, p.AppID, func(a *models.App) {
			a.ID = p.AppID
		})
		if err != nil {
			return err
		}
		app.ProviderCount++
		if err := h.entities.Apps.Put(ctx, p.AppID, app); err != nil {
			return err
		}
	}

	providerUsage, err := h.entities.ProviderUsage.GetOrCreate(ctx, p.ProviderID, func(pu *models.ProviderUsage) {
		pu.ID = p.ProviderID
	})
	if err != nil {
		return err
	}
	providerUsage.Totals.Accumulate(&p)
	providerUsage.LastReportedAt = p.Timestamp
	if err := h.entities.ProviderUsage.Put(ctx, p.ProviderID, providerUsage); err != nil {
		return err
	}

	global, err := h.entities.UsageAggregates.GetOrCreate(ctx, models.GlobalUsageKey, func(g *models.UsageAggregate) {
		g.ID = models.GlobalUsageKey
	})
	if err != nil {
		return err
	}
	global.Totals.Accumulate(&p)
	if firstSighting {
		global.ProviderCount++
	}
	if err := h.entities.UsageAggregates.Put(ctx, models.GlobalUsageKey, global); err != nil {
		return err
	}

	scope := keys.Compose(p.AppID, p.ProviderID, p.PeerID)
	buckets := bucket.For(p.Timestamp)
	for _, b := range []string{buckets.Day, buckets.Week, buckets.Month} {
		aggKey := keys.Bucketed(scope, b)
		agg, err := h.entities.UsageAggregates.GetOrCreate(ctx, aggKey, func(a *models.UsageAggregate) {
			a.ID = aggKey
			a.App = p.AppID
			a.Provider = p.ProviderID
			a.Peer = p.PeerID
			a.Bucket = b
		})
		if err != nil {
			return err
		}
		agg.Totals.Accumulate(&p)
		if err := h.entities.UsageAggregates.Put(ctx, aggKey, agg); err != nil {
			return err
		}
	}

	return nil
}

// HandleRewardClaimed moves an (app, provider) pair's accrued reward from
// pending into the time-locked balance.
func (h *UsageHandlers) HandleRewardClaimed(ctx context.Context, evt *models.Event) error {
	var p models.RewardClaimedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	pairKey := keys.Pair(p.AppID, p.ProviderID)
	pair, err := h.entities.AppProviders.GetOrCreate(ctx, pairKey, func(ap *models.AppProvider) {
		ap.ID = pairKey
		ap.App = p.AppID
		ap.Provider = p.ProviderID
	})
	if err != nil {
		return err
	}

	pair.PendingReward = decimal.Zero
	pair.LockedReward = p.Reward
	pair.UnlockTime = p.UnlockTime
	return h.entities.AppProviders.Put(ctx, pairKey, pair)
}

// HandleLockedRewardPaid records the payout of a previously locked
// reward.
func (h *UsageHandlers) HandleLockedRewardPaid(ctx context.Context, evt *models.Event) error {
	var p models.LockedRewardPaidPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	pairKey := keys.Pair(p.AppID, p.ProviderID)
	pair, err := h.entities.AppProviders.GetOrCreate(ctx, pairKey, func(ap *models.AppProvider) {
		ap.ID = pairKey
		ap.App = p.AppID
		ap.Provider = p.ProviderID
	})
	if err != nil {
		return err
	}

	pair.ClaimedReward = pair.ClaimedReward.Add(p.Reward)
	return h.entities.AppProviders.Put(ctx, pairKey, pair)
}
