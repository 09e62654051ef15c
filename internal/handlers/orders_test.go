package handlers

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subnet-labs/subnet-indexer/internal/chainstate"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

func TestOrderLifecycleWithClusterSideEffects(t *testing.T) {
	env := newTestEnv(t)
	h := env.orders()
	ctx := context.Background()

	// O1: New order for a 2-GPU, 4-CPU cluster.
	env.state.Orders["o1"] = &chainstate.OrderState{
		StatusCode:    0,
		OrderTypeCode: 0, // New
		Resources: models.Resources{
			GPU: decimal.NewFromInt(2),
			CPU: decimal.NewFromInt(4),
		},
		RentalDuration: 3600,
		ClusterID:      "c1",
	}

	require.NoError(t, h.HandleOrderCreated(ctx, makeEvent(t, "e1", models.EventOrderCreated, 1000,
		models.OrderCreatedPayload{OrderID: "o1", User: "alice"})))
	require.NoError(t, h.HandleOrderConfirmed(ctx, makeEvent(t, "e2", models.EventOrderConfirmed, 1010,
		models.OrderConfirmedPayload{OrderID: "o1"})))

	order, ok, err := env.entities.Orders.Get(ctx, "o1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
	assert.Equal(t, int64(1010), order.ConfirmedAt)

	cluster, ok, err := env.entities.Clusters.Get(ctx, "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "alice", cluster.Renter)
	assert.True(t, cluster.Resources.GPU.Equal(decimal.NewFromInt(2)))
	assert.True(t, cluster.Resources.CPU.Equal(decimal.NewFromInt(4)))
	expirationAfterNew := cluster.Expiration

	// O2: Upgrade adds one GPU onto c1.
	env.state.Orders["o2"] = &chainstate.OrderState{
		OrderTypeCode: 2, // Upgrade
		Resources: models.Resources{
			GPU: decimal.NewFromInt(1),
		},
		ClusterID: "c1",
	}
	require.NoError(t, h.HandleOrderCreated(ctx, makeEvent(t, "e3", models.EventOrderCreated, 1020,
		models.OrderCreatedPayload{OrderID: "o2", User: "alice"})))
	require.NoError(t, h.HandleOrderConfirmed(ctx, makeEvent(t, "e4", models.EventOrderConfirmed, 1030,
		models.OrderConfirmedPayload{OrderID: "o2"})))

	cluster, _, err = env.entities.Clusters.Get(ctx, "c1")
	require.NoError(t, err)
	assert.True(t, cluster.Resources.GPU.Equal(decimal.NewFromInt(3)), "upgrade should add GPU dimension")
	assert.True(t, cluster.Resources.CPU.Equal(decimal.NewFromInt(4)), "untouched dimensions keep their value")

	// O3: Renew extends c1's expiration by the rental duration.
	env.state.Orders["o3"] = &chainstate.OrderState{
		OrderTypeCode:  1, // Renew
		RentalDuration: 86400,
		ClusterID:      "c1",
	}
	require.NoError(t, h.HandleOrderCreated(ctx, makeEvent(t, "e5", models.EventOrderCreated, 1040,
		models.OrderCreatedPayload{OrderID: "o3", User: "alice"})))
	require.NoError(t, h.HandleOrderConfirmed(ctx, makeEvent(t, "e6", models.EventOrderConfirmed, 1050,
		models.OrderConfirmedPayload{OrderID: "o3"})))

	cluster, _, err = env.entities.Clusters.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, expirationAfterNew+86400, cluster.Expiration)
}

func TestOrderTerminalStateImmutable(t *testing.T) {
	env := newTestEnv(t)
	h := env.orders()
	ctx := context.Background()

	env.state.Orders["o1"] = &chainstate.OrderState{OrderTypeCode: 0}
	require.NoError(t, h.HandleOrderCreated(ctx, makeEvent(t, "e1", models.EventOrderCreated, 1000,
		models.OrderCreatedPayload{OrderID: "o1", User: "alice"})))
	require.NoError(t, h.HandleOrderCanceled(ctx, makeEvent(t, "e2", models.EventOrderCanceled, 1010,
		models.OrderCanceledPayload{OrderID: "o1"})))

	// A stale confirmation after cancellation must not flip the status or
	// touch timestamps.
	require.NoError(t, h.HandleOrderConfirmed(ctx, makeEvent(t, "e3", models.EventOrderConfirmed, 1020,
		models.OrderConfirmedPayload{OrderID: "o1"})))

	order, _, err := env.entities.Orders.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCanceled, order.Status)
	assert.Equal(t, int64(1010), order.CanceledAt)
	assert.Zero(t, order.ConfirmedAt)
}

func TestRenewMissingClusterIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	h := env.orders()
	ctx := context.Background()

	env.state.Orders["o1"] = &chainstate.OrderState{
		OrderTypeCode:  1, // Renew
		RentalDuration: 86400,
		ClusterID:      "ghost",
	}
	require.NoError(t, h.HandleOrderCreated(ctx, makeEvent(t, "e1", models.EventOrderCreated, 1000,
		models.OrderCreatedPayload{OrderID: "o1", User: "alice"})))
	require.NoError(t, h.HandleOrderConfirmed(ctx, makeEvent(t, "e2", models.EventOrderConfirmed, 1010,
		models.OrderConfirmedPayload{OrderID: "o1"})))

	_, ok, err := env.entities.Clusters.Get(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, ok, "renew of a nonexistent cluster must not create it")

	order, _, err := env.entities.Orders.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)
}

func TestOrderCreatedSurvivesStateReadFailure(t *testing.T) {
	env := newTestEnv(t)
	env.state.Err = assert.AnError
	h := env.orders()
	ctx := context.Background()

	require.NoError(t, h.HandleOrderCreated(ctx, makeEvent(t, "e1", models.EventOrderCreated, 1000,
		models.OrderCreatedPayload{OrderID: "o1", User: "alice"})))

	order, ok, err := env.entities.Orders.Get(ctx, "o1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.True(t, order.PaidAmount.IsZero())
}

func TestClusterNodeMembership(t *testing.T) {
	env := newTestEnv(t)
	h := env.orders()
	ctx := context.Background()

	require.NoError(t, env.entities.Clusters.Put(ctx, "c1", &models.Cluster{
		ID:      "c1",
		NodeIPs: []string{"10.0.0.1"},
	}))

	require.NoError(t, h.HandleClusterNodesAdded(ctx, makeEvent(t, "e1", models.EventClusterNodesAdded, 1000,
		models.ClusterNodesAddedPayload{ClusterID: "c1", NodeIPs: []string{"10.0.0.1", "10.0.0.2"}})))

	cluster, _, err := env.entities.Clusters.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cluster.NodeIPs, "already-present nodes are not duplicated")

	require.NoError(t, h.HandleClusterNodeRemoved(ctx, makeEvent(t, "e2", models.EventClusterNodeRemoved, 1010,
		models.ClusterNodeRemovedPayload{ClusterID: "c1", NodeIP: "10.0.0.1"})))

	cluster, _, err = env.entities.Clusters.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.2"}, cluster.NodeIPs)
}
