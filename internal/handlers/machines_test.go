package handlers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subnet-labs/subnet-indexer/internal/chainstate"
	"github.com/subnet-labs/subnet-indexer/internal/keys"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

func registerProvider(t *testing.T, env *testEnv, providerID string) {
	t.Helper()
	require.NoError(t, env.providers().HandleProviderRegistered(context.Background(),
		makeEvent(t, "reg-"+providerID, models.EventProviderRegistered, 1000,
			models.ProviderRegisteredPayload{ProviderID: providerID, Owner: "owner1"})))
}

func TestMachineAddedTracksStakeEverywhere(t *testing.T) {
	env := newTestEnv(t)
	registerProvider(t, env, "prov1")
	h := env.machines()
	ctx := context.Background()

	env.state.Machines["prov1/m1"] = &chainstate.MachineState{
		Active:   true,
		Region:   "eu-west",
		GPUCores: decimal.NewFromInt(8),
	}

	require.NoError(t, h.HandleMachineAdded(ctx, makeEvent(t, "e1", models.EventMachineAdded, 2000,
		models.MachineAddedPayload{ProviderID: "prov1", MachineID: "m1", StakedAmount: decimal.NewFromInt(500)})))

	machine, ok, err := env.entities.Machines.Get(ctx, keys.Pair("prov1", "m1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "eu-west", machine.Region)
	assert.True(t, machine.StakeAmount.Equal(decimal.NewFromInt(500)))

	provider, _, err := env.entities.Providers.Get(ctx, "prov1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), provider.MachineCount)
	assert.True(t, provider.TotalStaked.Equal(decimal.NewFromInt(500)))

	stats, _, err := env.entities.GlobalStats.Get(ctx, models.GlobalStatsKey)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalMachines)
	assert.True(t, stats.TotalStaked.Equal(decimal.NewFromInt(500)))

	txn, ok, err := env.entities.StakeTransactions.Get(ctx, "e1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.StakeAdded, txn.Type)

	// Daily snapshot reflects the counters after the event.
	snap, ok, err := env.entities.Snapshots.Get(ctx, keys.Pair("prov1", "1970-01-01"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), snap.MachineCount)
}

func TestMachineRemovalAndWithdrawal(t *testing.T) {
	env := newTestEnv(t)
	registerProvider(t, env, "prov1")
	h := env.machines()
	ctx := context.Background()

	require.NoError(t, h.HandleMachineAdded(ctx, makeEvent(t, "e1", models.EventMachineAdded, 2000,
		models.MachineAddedPayload{ProviderID: "prov1", MachineID: "m1", StakedAmount: decimal.NewFromInt(500)})))

	require.NoError(t, h.HandleMachineRemoved(ctx, makeEvent(t, "e2", models.EventMachineRemoved, 3000,
		models.MachineRemovedPayload{ProviderID: "prov1", MachineID: "m1", UnlockTime: 9000})))

	machine, _, err := env.entities.Machines.Get(ctx, keys.Pair("prov1", "m1"))
	require.NoError(t, err)
	assert.False(t, machine.Active)
	assert.Equal(t, int64(9000), machine.UnlockTime)

	provider, _, err := env.entities.Providers.Get(ctx, "prov1")
	require.NoError(t, err)
	assert.True(t, provider.PendingWithdrawals.Equal(decimal.NewFromInt(500)))
	// Removal parks the stake; the counters only move on withdrawal.
	assert.Equal(t, int64(1), provider.MachineCount)
	assert.True(t, provider.TotalStaked.Equal(decimal.NewFromInt(500)))

	require.NoError(t, h.HandleStakeWithdrawn(ctx, makeEvent(t, "e3", models.EventStakeWithdrawn, 9500,
		models.StakeWithdrawnPayload{ProviderID: "prov1", MachineID: "m1", Amount: decimal.NewFromInt(500)})))

	machine, _, err = env.entities.Machines.Get(ctx, keys.Pair("prov1", "m1"))
	require.NoError(t, err)
	assert.True(t, machine.WithdrawalProcessed)

	provider, _, err = env.entities.Providers.Get(ctx, "prov1")
	require.NoError(t, err)
	assert.True(t, provider.PendingWithdrawals.IsZero())
}

func TestStakeSlashedUpdatesAllBalances(t *testing.T) {
	env := newTestEnv(t)
	registerProvider(t, env, "prov1")
	h := env.machines()
	ctx := context.Background()

	require.NoError(t, h.HandleMachineAdded(ctx, makeEvent(t, "e1", models.EventMachineAdded, 2000,
		models.MachineAddedPayload{ProviderID: "prov1", MachineID: "m1", StakedAmount: decimal.NewFromInt(500)})))

	require.NoError(t, h.HandleStakeSlashed(ctx, makeEvent(t, "e2", models.EventStakeSlashed, 3000,
		models.StakeSlashedPayload{ProviderID: "prov1", MachineID: "m1", Amount: decimal.NewFromInt(200), Reason: "downtime"})))

	machine, _, err := env.entities.Machines.Get(ctx, keys.Pair("prov1", "m1"))
	require.NoError(t, err)
	assert.True(t, machine.StakeAmount.Equal(decimal.NewFromInt(300)))

	provider, _, err := env.entities.Providers.Get(ctx, "prov1")
	require.NoError(t, err)
	assert.True(t, provider.TotalStaked.Equal(decimal.NewFromInt(300)))
	assert.True(t, provider.SlashedAmount.Equal(decimal.NewFromInt(200)))
	assert.True(t, provider.IsSlashed)

	stats, _, err := env.entities.GlobalStats.Get(ctx, models.GlobalStatsKey)
	require.NoError(t, err)
	assert.True(t, stats.TotalStaked.Equal(decimal.NewFromInt(300)))
	assert.True(t, stats.TotalSlashed.Equal(decimal.NewFromInt(200)))

	txn, _, err := env.entities.StakeTransactions.Get(ctx, "e2")
	require.NoError(t, err)
	assert.Equal(t, models.StakeSlashed, txn.Type)
	assert.Equal(t, "downtime", txn.Reason)
}

func TestOverSlashFlagsViolationButCommitsSiblings(t *testing.T) {
	env := newTestEnv(t)
	registerProvider(t, env, "prov1")
	h := env.machines()
	ctx := context.Background()

	require.NoError(t, h.HandleMachineAdded(ctx, makeEvent(t, "e1", models.EventMachineAdded, 2000,
		models.MachineAddedPayload{ProviderID: "prov1", MachineID: "m1", StakedAmount: decimal.NewFromInt(100)})))

	err := h.HandleStakeSlashed(ctx, makeEvent(t, "e2", models.EventStakeSlashed, 3000,
		models.StakeSlashedPayload{ProviderID: "prov1", MachineID: "m1", Amount: decimal.NewFromInt(900), Reason: "fraud"}))
	require.ErrorIs(t, err, models.ErrNegativeAmount)

	// The balances that would have gone negative are untouched, not
	// clamped to zero.
	machine, _, err2 := env.entities.Machines.Get(ctx, keys.Pair("prov1", "m1"))
	require.NoError(t, err2)
	assert.True(t, machine.StakeAmount.Equal(decimal.NewFromInt(100)))

	provider, _, err2 := env.entities.Providers.Get(ctx, "prov1")
	require.NoError(t, err2)
	assert.True(t, provider.TotalStaked.Equal(decimal.NewFromInt(100)))

	// The audit record still commits: the slash happened on chain even if
	// our running totals disagree.
	txn, ok, err2 := env.entities.StakeTransactions.Get(ctx, "e2")
	require.NoError(t, err2)
	require.True(t, ok)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(900)))
}

func TestStakeSlashedUnknownMachineWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	registerProvider(t, env, "prov1")
	h := env.machines()
	ctx := context.Background()

	require.NoError(t, h.HandleMachineAdded(ctx, makeEvent(t, "e1", models.EventMachineAdded, 2000,
		models.MachineAddedPayload{ProviderID: "prov1", MachineID: "m1", StakedAmount: decimal.NewFromInt(500)})))

	// Slash against a machine that was never added. The provider exists,
	// but the event is a full no-op: no balance moves and no audit record.
	require.NoError(t, h.HandleStakeSlashed(ctx, makeEvent(t, "e2", models.EventStakeSlashed, 3000,
		models.StakeSlashedPayload{ProviderID: "prov1", MachineID: "m2", Amount: decimal.NewFromInt(200), Reason: "downtime"})))

	provider, _, err := env.entities.Providers.Get(ctx, "prov1")
	require.NoError(t, err)
	assert.True(t, provider.TotalStaked.Equal(decimal.NewFromInt(500)))
	assert.True(t, provider.SlashedAmount.IsZero())
	assert.False(t, provider.IsSlashed)

	_, ok, err := env.entities.StakeTransactions.Get(ctx, "e2")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, _, err := env.entities.GlobalStats.Get(ctx, models.GlobalStatsKey)
	require.NoError(t, err)
	assert.True(t, stats.TotalStaked.Equal(decimal.NewFromInt(500)))
	assert.True(t, stats.TotalSlashed.IsZero())
}

func TestStakeSlashedUnknownProviderWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	h := env.machines()
	ctx := context.Background()

	require.NoError(t, h.HandleStakeSlashed(ctx, makeEvent(t, "e1", models.EventStakeSlashed, 3000,
		models.StakeSlashedPayload{ProviderID: "ghost", MachineID: "m1", Amount: decimal.NewFromInt(200)})))

	_, ok, err := env.entities.StakeTransactions.Get(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = env.entities.GlobalStats.Get(ctx, models.GlobalStatsKey)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStakeWithdrawnUnknownMachineWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	registerProvider(t, env, "prov1")
	h := env.machines()
	ctx := context.Background()

	require.NoError(t, h.HandleMachineAdded(ctx, makeEvent(t, "e1", models.EventMachineAdded, 2000,
		models.MachineAddedPayload{ProviderID: "prov1", MachineID: "m1", StakedAmount: decimal.NewFromInt(500)})))
	require.NoError(t, h.HandleMachineRemoved(ctx, makeEvent(t, "e2", models.EventMachineRemoved, 3000,
		models.MachineRemovedPayload{ProviderID: "prov1", MachineID: "m1", UnlockTime: 9000})))

	require.NoError(t, h.HandleStakeWithdrawn(ctx, makeEvent(t, "e3", models.EventStakeWithdrawn, 9500,
		models.StakeWithdrawnPayload{ProviderID: "prov1", MachineID: "m2", Amount: decimal.NewFromInt(500)})))

	provider, _, err := env.entities.Providers.Get(ctx, "prov1")
	require.NoError(t, err)
	assert.True(t, provider.PendingWithdrawals.Equal(decimal.NewFromInt(500)))

	_, ok, err := env.entities.StakeTransactions.Get(ctx, "e3")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMachineRemovedUnknownProviderLeavesMachineUntouched(t *testing.T) {
	env := newTestEnv(t)
	h := env.machines()
	ctx := context.Background()

	// A machine record without its provider, as a damaged store would
	// have it. The removal must not deactivate it.
	machineKey := keys.Pair("ghost", "m1")
	require.NoError(t, env.entities.Machines.Put(ctx, machineKey, &models.Machine{
		ID:          machineKey,
		Provider:    "ghost",
		MachineID:   "m1",
		Active:      true,
		StakeAmount: decimal.NewFromInt(500),
	}))

	require.NoError(t, h.HandleMachineRemoved(ctx, makeEvent(t, "e1", models.EventMachineRemoved, 3000,
		models.MachineRemovedPayload{ProviderID: "ghost", MachineID: "m1", UnlockTime: 9000})))

	machine, _, err := env.entities.Machines.Get(ctx, machineKey)
	require.NoError(t, err)
	assert.True(t, machine.Active)
	assert.Zero(t, machine.UnlockTime)
	assert.Zero(t, machine.RemovedAt)
}

func TestMachineUpdatedUnknownProviderLeavesMachineUntouched(t *testing.T) {
	env := newTestEnv(t)
	h := env.machines()
	ctx := context.Background()

	machineKey := keys.Pair("ghost", "m1")
	require.NoError(t, env.entities.Machines.Put(ctx, machineKey, &models.Machine{
		ID:          machineKey,
		Provider:    "ghost",
		MachineID:   "m1",
		Active:      true,
		StakeAmount: decimal.NewFromInt(500),
	}))

	require.NoError(t, h.HandleMachineUpdated(ctx, makeEvent(t, "e1", models.EventMachineUpdated, 3000,
		models.MachineUpdatedPayload{ProviderID: "ghost", MachineID: "m1", AdditionalStake: decimal.NewFromInt(100)})))

	machine, _, err := env.entities.Machines.Get(ctx, machineKey)
	require.NoError(t, err)
	assert.True(t, machine.StakeAmount.Equal(decimal.NewFromInt(500)))

	_, ok, err := env.entities.StakeTransactions.Get(ctx, "e1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMachineAddedRequiresProvider(t *testing.T) {
	env := newTestEnv(t)
	h := env.machines()
	ctx := context.Background()

	require.NoError(t, h.HandleMachineAdded(ctx, makeEvent(t, "e1", models.EventMachineAdded, 2000,
		models.MachineAddedPayload{ProviderID: "ghost", MachineID: "m1", StakedAmount: decimal.NewFromInt(500)})))

	_, ok, err := env.entities.Machines.Get(ctx, keys.Pair("ghost", "m1"))
	require.NoError(t, err)
	assert.False(t, ok)
}
