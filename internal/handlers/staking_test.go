package handlers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subnet-labs/subnet-indexer/internal/keys"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

func TestPoolStakeWithdrawClaimCycle(t *testing.T) {
	env := newTestEnv(t)
	h := env.staking()
	ctx := context.Background()

	require.NoError(t, h.HandlePoolCreated(ctx, makeEvent(t, "e1", models.EventPoolCreated, 1000,
		models.PoolCreatedPayload{PoolAddress: "pool1", StakingToken: "SNT", RewardToken: "RWD"})))

	require.NoError(t, h.HandlePoolStaked(ctx, makeEvent(t, "e2", models.EventPoolStaked, 1010,
		models.PoolStakedPayload{Pool: "pool1", User: "alice", Amount: decimal.NewFromInt(100)})))
	require.NoError(t, h.HandlePoolStaked(ctx, makeEvent(t, "e3", models.EventPoolStaked, 1020,
		models.PoolStakedPayload{Pool: "pool1", User: "alice", Amount: decimal.NewFromInt(50)})))

	pool, _, err := env.entities.Pools.Get(ctx, "pool1")
	require.NoError(t, err)
	assert.Equal(t, "SNT", pool.StakingToken)
	assert.True(t, pool.TotalStaked.Equal(decimal.NewFromInt(150)))

	stake, _, err := env.entities.UserStakes.Get(ctx, keys.Pair("alice", "pool1"))
	require.NoError(t, err)
	assert.True(t, stake.TotalStaked.Equal(decimal.NewFromInt(150)))

	require.NoError(t, h.HandlePoolWithdrawn(ctx, makeEvent(t, "e4", models.EventPoolWithdrawn, 1030,
		models.PoolWithdrawnPayload{Pool: "pool1", User: "alice", Amount: decimal.NewFromInt(60)})))

	stake, _, err = env.entities.UserStakes.Get(ctx, keys.Pair("alice", "pool1"))
	require.NoError(t, err)
	assert.True(t, stake.TotalStaked.Equal(decimal.NewFromInt(90)))

	require.NoError(t, h.HandlePoolRewardClaimed(ctx, makeEvent(t, "e5", models.EventPoolRewardClaimed, 1040,
		models.PoolRewardClaimedPayload{Pool: "pool1", User: "alice", Reward: decimal.NewFromInt(7)})))

	stake, _, err = env.entities.UserStakes.Get(ctx, keys.Pair("alice", "pool1"))
	require.NoError(t, err)
	assert.True(t, stake.TotalRewardsClaimed.Equal(decimal.NewFromInt(7)))

	pool, _, err = env.entities.Pools.Get(ctx, "pool1")
	require.NoError(t, err)
	assert.True(t, pool.TotalRewardsClaimed.Equal(decimal.NewFromInt(7)))

	// Every action leaves an immutable history record keyed by its event.
	for id, kind := range map[string]models.StakeHistoryType{
		"e2": models.HistoryStake,
		"e4": models.HistoryWithdraw,
		"e5": models.HistoryClaim,
	} {
		record, ok, err := env.entities.StakeHistory.Get(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, kind, record.Type)
	}
}

func TestPoolStakeLazyCreatesPool(t *testing.T) {
	env := newTestEnv(t)
	h := env.staking()
	ctx := context.Background()

	// No pool.created seen; the stream may have started mid-history.
	require.NoError(t, h.HandlePoolStaked(ctx, makeEvent(t, "e1", models.EventPoolStaked, 1000,
		models.PoolStakedPayload{Pool: "pool1", User: "bob", Amount: decimal.NewFromInt(40)})))

	pool, ok, err := env.entities.Pools.Get(ctx, "pool1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, pool.TotalStaked.Equal(decimal.NewFromInt(40)))
}

func TestPoolWithdrawUnknownPositionIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	h := env.staking()
	ctx := context.Background()

	require.NoError(t, h.HandlePoolWithdrawn(ctx, makeEvent(t, "e1", models.EventPoolWithdrawn, 1000,
		models.PoolWithdrawnPayload{Pool: "pool1", User: "ghost", Amount: decimal.NewFromInt(10)})))

	_, ok, err := env.entities.UserStakes.Get(ctx, keys.Pair("ghost", "pool1"))
	require.NoError(t, err)
	assert.False(t, ok, "withdrawal against an unknown position must not create one")

	_, ok, err = env.entities.StakeHistory.Get(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPoolOverWithdrawFlagsViolation(t *testing.T) {
	env := newTestEnv(t)
	h := env.staking()
	ctx := context.Background()

	require.NoError(t, h.HandlePoolStaked(ctx, makeEvent(t, "e1", models.EventPoolStaked, 1000,
		models.PoolStakedPayload{Pool: "pool1", User: "alice", Amount: decimal.NewFromInt(30)})))

	err := h.HandlePoolWithdrawn(ctx, makeEvent(t, "e2", models.EventPoolWithdrawn, 1010,
		models.PoolWithdrawnPayload{Pool: "pool1", User: "alice", Amount: decimal.NewFromInt(100)}))
	require.ErrorIs(t, err, models.ErrNegativeAmount)

	stake, _, err2 := env.entities.UserStakes.Get(ctx, keys.Pair("alice", "pool1"))
	require.NoError(t, err2)
	assert.True(t, stake.TotalStaked.Equal(decimal.NewFromInt(30)), "not clamped")
}
