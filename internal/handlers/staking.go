package handlers

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/keys"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

// StakingHandlers derives Pool, UserStake, and the immutable history log
// from staking pool events.
type StakingHandlers struct {
	entities *Entities
	logger   *zap.Logger
}

// NewStakingHandlers creates the staking pool handler group.
func NewStakingHandlers(entities *Entities, logger *zap.Logger) *StakingHandlers {
	return &StakingHandlers{
		entities: entities,
		logger:   logger,
	}
}

// HandlePoolCreated records a pool deployed by the factory.
func (h *StakingHandlers) HandlePoolCreated(ctx context.Context, evt *models.Event) error {
	var p models.PoolCreatedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	pool := &models.Pool{
		ID:           p.PoolAddress,
		StakingToken: p.StakingToken,
		RewardToken:  p.RewardToken,
	}
	return h.entities.Pools.Put(ctx, p.PoolAddress, pool)
}

// HandlePoolStaked adds a deposit onto the user's position and the pool's
// total. Both the pool and the position are lazily created, so a stream
// that starts mid-history still accumulates correctly from that point.
func (h *StakingHandlers) HandlePoolStaked(ctx context.Context, evt *models.Event) error {
	var p models.PoolStakedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	if _, err := h.entities.Users.GetOrCreate(ctx, p.User, func(u *models.User) {
		u.ID = p.User
		u.Address = p.User
	}); err != nil {
		return err
	}

	pool, err := h.entities.Pools.GetOrCreate(ctx, p.Pool, func(pl *models.Pool) {
		pl.ID = p.Pool
	})
	if err != nil {
		return err
	}
	pool.TotalStaked = pool.TotalStaked.Add(p.Amount)
	if err := h.entities.Pools.Put(ctx, p.Pool, pool); err != nil {
		return err
	}

	stakeKey := keys.Pair(p.User, p.Pool)
	stake, err := h.entities.UserStakes.GetOrCreate(ctx, stakeKey, func(s *models.UserStake) {
		s.ID = stakeKey
		s.User = p.User
		s.Pool = p.Pool
	})
	if err != nil {
		return err
	}
	stake.TotalStaked = stake.TotalStaked.Add(p.Amount)
	if err := h.entities.UserStakes.Put(ctx, stakeKey, stake); err != nil {
		return err
	}

	return h.writeHistory(ctx, evt, p.User, p.Pool, models.HistoryStake, p.Amount)
}

// HandlePoolWithdrawn removes a withdrawal from the user's position and
// the pool's total. A withdrawal against an unknown position is a silent
// no-op, since the stake must have predated the stream.
func (h *StakingHandlers) HandlePoolWithdrawn(ctx context.Context, evt *models.Event) error {
	var p models.PoolWithdrawnPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	stakeKey := keys.Pair(p.User, p.Pool)
	stake, ok, err := h.entities.UserStakes.Get(ctx, stakeKey)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "pool_withdrawn", CollectionUserStakes, stakeKey)
		return nil
	}

	var firstErr error

	if remaining, err := subtract(stake.TotalStaked, p.Amount); err != nil {
		reportViolation(h.logger, CollectionUserStakes, stakeKey, err)
		firstErr = err
	} else {
		stake.TotalStaked = remaining
		if err := h.entities.UserStakes.Put(ctx, stakeKey, stake); err != nil {
			return err
		}
	}

	pool, ok, err := h.entities.Pools.Get(ctx, p.Pool)
	if err != nil {
		return err
	}
	if ok {
		if remaining, err := subtract(pool.TotalStaked, p.Amount); err != nil {
			reportViolation(h.logger, CollectionPools, p.Pool, err)
			if firstErr == nil {
				firstErr = err
			}
		} else {
			pool.TotalStaked = remaining
			if err := h.entities.Pools.Put(ctx, p.Pool, pool); err != nil {
				return err
			}
		}
	} else {
		reportMissing(h.logger, "pool_withdrawn", CollectionPools, p.Pool)
	}

	if err := h.writeHistory(ctx, evt, p.User, p.Pool, models.HistoryWithdraw, p.Amount); err != nil {
		return err
	}
	return firstErr
}

// HandlePoolRewardClaimed adds a claimed reward onto the user's and the
// pool's claimed totals. Unknown positions are a silent no-op.
func (h *StakingHandlers) HandlePoolRewardClaimed(ctx context.Context, evt *models.Event) error {
	var p models.PoolRewardClaimedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	stakeKey := keys.Pair(p.User, p.Pool)
	stake, ok, err := h.entities.UserStakes.Get(ctx, stakeKey)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "pool_reward_claimed", CollectionUserStakes, stakeKey)
		return nil
	}

	stake.TotalRewardsClaimed = stake.TotalRewardsClaimed.Add(p.Reward)
	if err := h.entities.UserStakes.Put(ctx, stakeKey, stake); err != nil {
		return err
	}

	pool, ok, err := h.entities.Pools.Get(ctx, p.Pool)
	if err != nil {
		return err
	}
	if ok {
		pool.TotalRewardsClaimed = pool.TotalRewardsClaimed.Add(p.Reward)
		if err := h.entities.Pools.Put(ctx, p.Pool, pool); err != nil {
			return err
		}
	} else {
		reportMissing(h.logger, "pool_reward_claimed", CollectionPools, p.Pool)
	}

	return h.writeHistory(ctx, evt, p.User, p.Pool, models.HistoryClaim, p.Reward)
}

// writeHistory appends an immutable record of the pool action, keyed by
// the event's delivery id so replays land on the same record.
func (h *StakingHandlers) writeHistory(ctx context.Context, evt *models.Event, user, pool string, kind models.StakeHistoryType, amount decimal.Decimal) error {
	record := &models.StakeHistory{
		ID:        evt.ID,
		User:      user,
		Pool:      pool,
		Type:      kind,
		Amount:    amount,
		Timestamp: evt.Timestamp,
		TxHash:    evt.TxHash,
	}
	return h.entities.StakeHistory.Put(ctx, evt.ID, record)
}
