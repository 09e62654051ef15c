package handlers

import (
	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/chainstate"
	"github.com/subnet-labs/subnet-indexer/internal/dispatch"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

// RegisterAll constructs every handler group and binds the full event
// routing table onto the dispatcher.
func RegisterAll(d *dispatch.Dispatcher, entities *Entities, state chainstate.Reader, logger *zap.Logger) {
	orders := NewOrderHandlers(entities, state, logger)
	providers := NewProviderHandlers(entities, state, logger)
	machines := NewMachineHandlers(entities, state, logger)
	usage := NewUsageHandlers(entities, state, logger)
	staking := NewStakingHandlers(entities, logger)

	d.Register(models.EventOrderCreated, orders.HandleOrderCreated)
	d.Register(models.EventOrderConfirmed, orders.HandleOrderConfirmed)
	d.Register(models.EventOrderCanceled, orders.HandleOrderCanceled)
	d.Register(models.EventClusterNodesAdded, orders.HandleClusterNodesAdded)
	d.Register(models.EventClusterNodeRemoved, orders.HandleClusterNodeRemoved)

	d.Register(models.EventProviderRegistered, providers.HandleProviderRegistered)
	d.Register(models.EventProviderUpdated, providers.HandleProviderUpdated)
	d.Register(models.EventProviderDeleted, providers.HandleProviderDeleted)
	d.Register(models.EventProviderTransferred, providers.HandleProviderTransferred)
	d.Register(models.EventProviderVerified, providers.HandleProviderVerified)
	d.Register(models.EventProviderReputation, providers.HandleProviderReputation)
	d.Register(models.EventPeerRegistered, providers.HandlePeerRegistered)

	d.Register(models.EventMachineAdded, machines.HandleMachineAdded)
	d.Register(models.EventMachineRemoved, machines.HandleMachineRemoved)
	d.Register(models.EventMachineUpdated, machines.HandleMachineUpdated)
	d.Register(models.EventMachinePriceUpdated, machines.HandleMachinePriceUpdated)
	d.Register(models.EventStakeSlashed, machines.HandleStakeSlashed)
	d.Register(models.EventStakeWithdrawn, machines.HandleStakeWithdrawn)

	d.Register(models.EventAppCreated, usage.HandleAppCreated)
	d.Register(models.EventUsageReported, usage.HandleUsageReported)
	d.Register(models.EventRewardClaimed, usage.HandleRewardClaimed)
	d.Register(models.EventLockedRewardPaid, usage.HandleLockedRewardPaid)

	d.Register(models.EventPoolCreated, staking.HandlePoolCreated)
	d.Register(models.EventPoolStaked, staking.HandlePoolStaked)
	d.Register(models.EventPoolWithdrawn, staking.HandlePoolWithdrawn)
	d.Register(models.EventPoolRewardClaimed, staking.HandlePoolRewardClaimed)
}
