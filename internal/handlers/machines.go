package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/subnet-labs/subnet-indexer/internal/chainstate"
	"github.com/subnet-labs/subnet-indexer/internal/keys"
	"github.com/subnet-labs/subnet-indexer/internal/metadata"
	"github.com/subnet-labs/subnet-indexer/internal/metrics"
	"github.com/subnet-labs/subnet-indexer/internal/models"
)

// MachineHandlers derives Machine, StakeTransaction, and the provider and
// global stake counters from machine lifecycle events.
type MachineHandlers struct {
	entities *Entities
	state    chainstate.Reader
	logger   *zap.Logger
}

// NewMachineHandlers creates the machine/stake handler group.
func NewMachineHandlers(entities *Entities, state chainstate.Reader, logger *zap.Logger) *MachineHandlers {
	return &MachineHandlers{
		entities: entities,
		state:    state,
		logger:   logger,
	}
}

// HandleMachineAdded registers a staked machine under its provider and
// moves the stake onto the provider's and the network's running totals.
// The machine's hardware spec comes from the chain-gateway; a failed read
// still leaves a machine record with the stake accounted for.
func (h *MachineHandlers) HandleMachineAdded(ctx context.Context, evt *models.Event) error {
	var p models.MachineAddedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "machine_added", CollectionProviders, p.ProviderID)
		return nil
	}

	machineKey := keys.Pair(p.ProviderID, p.MachineID)
	machine := &models.Machine{
		ID:          machineKey,
		Provider:    p.ProviderID,
		MachineID:   p.MachineID,
		Active:      true,
		StakeAmount: p.StakedAmount,
		CreatedAt:   evt.Timestamp,
		UpdatedAt:   evt.Timestamp,
	}

	state, ok, err := h.state.Machine(ctx, evt.Source, p.ProviderID, p.MachineID)
	if err != nil {
		metrics.AuxReadFailuresTotal.Inc()
		h.logger.Warn("Machine state lookup failed, storing machine without hardware spec",
			zap.String("machine", machineKey), zap.Error(err))
	}
	if ok {
		applyMachineState(machine, state)
	}

	if err := h.entities.Machines.Put(ctx, machineKey, machine); err != nil {
		return err
	}

	txn := &models.StakeTransaction{
		ID:        evt.ID,
		Provider:  p.ProviderID,
		Machine:   machineKey,
		Amount:    p.StakedAmount,
		Type:      models.StakeAdded,
		Timestamp: evt.Timestamp,
	}
	if err := h.entities.StakeTransactions.Put(ctx, evt.ID, txn); err != nil {
		return err
	}

	provider.MachineCount++
	provider.TotalStaked = provider.TotalStaked.Add(p.StakedAmount)
	provider.UpdatedAt = evt.Timestamp
	if err := h.entities.Providers.Put(ctx, p.ProviderID, provider); err != nil {
		return err
	}

	if err := h.bumpGlobalStake(ctx, evt.Timestamp, func(s *models.GlobalStats) {
		s.TotalMachines++
		s.TotalStaked = s.TotalStaked.Add(p.StakedAmount)
	}); err != nil {
		return err
	}

	return writeProviderSnapshot(ctx, h.entities, provider, evt.Timestamp)
}

// HandleMachineRemoved deactivates a machine and parks its stake as a
// pending withdrawal. Counts and staked totals are not decremented here;
// that happens when the withdrawal is actually processed. Both referents
// are verified before the first write so a missing provider cannot leave
// a deactivated machine with unparked stake behind.
func (h *MachineHandlers) HandleMachineRemoved(ctx context.Context, evt *models.Event) error {
	var p models.MachineRemovedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "machine_removed", CollectionProviders, p.ProviderID)
		return nil
	}

	machineKey := keys.Pair(p.ProviderID, p.MachineID)
	machine, ok, err := h.entities.Machines.Get(ctx, machineKey)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "machine_removed", CollectionMachines, machineKey)
		return nil
	}

	machine.Active = false
	machine.UnlockTime = p.UnlockTime
	machine.RemovedAt = evt.Timestamp
	machine.UpdatedAt = evt.Timestamp
	if err := h.entities.Machines.Put(ctx, machineKey, machine); err != nil {
		return err
	}

	provider.PendingWithdrawals = provider.PendingWithdrawals.Add(machine.StakeAmount)
	provider.UpdatedAt = evt.Timestamp
	return h.entities.Providers.Put(ctx, p.ProviderID, provider)
}

// HandleMachineUpdated refreshes the machine's spec from the chain-gateway
// and accounts for any stake added along with the update. Both the
// provider and the machine must exist before anything is written.
func (h *MachineHandlers) HandleMachineUpdated(ctx context.Context, evt *models.Event) error {
	var p models.MachineUpdatedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "machine_updated", CollectionProviders, p.ProviderID)
		return nil
	}

	machineKey := keys.Pair(p.ProviderID, p.MachineID)
	machine, ok, err := h.entities.Machines.Get(ctx, machineKey)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "machine_updated", CollectionMachines, machineKey)
		return nil
	}

	state, ok, err := h.state.Machine(ctx, evt.Source, p.ProviderID, p.MachineID)
	if err != nil {
		metrics.AuxReadFailuresTotal.Inc()
		h.logger.Warn("Machine state lookup failed, keeping stored spec",
			zap.String("machine", machineKey), zap.Error(err))
	}
	if ok {
		applyMachineState(machine, state)
	}

	machine.StakeAmount = machine.StakeAmount.Add(p.AdditionalStake)
	machine.UpdatedAt = evt.Timestamp
	if err := h.entities.Machines.Put(ctx, machineKey, machine); err != nil {
		return err
	}

	if p.AdditionalStake.IsZero() {
		return nil
	}

	txn := &models.StakeTransaction{
		ID:        evt.ID,
		Provider:  p.ProviderID,
		Machine:   machineKey,
		Amount:    p.AdditionalStake,
		Type:      models.StakeAdded,
		Timestamp: evt.Timestamp,
	}
	if err := h.entities.StakeTransactions.Put(ctx, evt.ID, txn); err != nil {
		return err
	}

	provider.TotalStaked = provider.TotalStaked.Add(p.AdditionalStake)
	provider.UpdatedAt = evt.Timestamp
	if err := h.entities.Providers.Put(ctx, p.ProviderID, provider); err != nil {
		return err
	}

	if err := h.bumpGlobalStake(ctx, evt.Timestamp, func(s *models.GlobalStats) {
		s.TotalStaked = s.TotalStaked.Add(p.AdditionalStake)
	}); err != nil {
		return err
	}

	return writeProviderSnapshot(ctx, h.entities, provider, evt.Timestamp)
}

// HandleMachinePriceUpdated overwrites the machine's price schedule.
func (h *MachineHandlers) HandleMachinePriceUpdated(ctx context.Context, evt *models.Event) error {
	var p models.MachinePriceUpdatedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	machineKey := keys.Pair(p.ProviderID, p.MachineID)
	machine, ok, err := h.entities.Machines.Get(ctx, machineKey)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "machine_price_updated", CollectionMachines, machineKey)
		return nil
	}

	machine.CPUPricePerSecond = p.CPUPricePerSecond
	machine.GPUPricePerSecond = p.GPUPricePerSecond
	machine.MemoryPricePerSecond = p.MemoryPricePerSecond
	machine.DiskPricePerSecond = p.DiskPricePerSecond
	machine.UpdatedAt = evt.Timestamp
	return h.entities.Machines.Put(ctx, machineKey, machine)
}

// HandleStakeSlashed deducts the slashed amount from every balance that
// carries it. Both the provider and the machine must exist; otherwise the
// whole event is a no-op and nothing is written, not even the audit
// record. Once both are present each deduction is guarded: an amount that
// would go negative flags the violation and abandons that entity's
// update, while the other entities still commit.
func (h *MachineHandlers) HandleStakeSlashed(ctx context.Context, evt *models.Event) error {
	var p models.StakeSlashedPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "stake_slashed", CollectionProviders, p.ProviderID)
		return nil
	}

	machineKey := keys.Pair(p.ProviderID, p.MachineID)
	machine, ok, err := h.entities.Machines.Get(ctx, machineKey)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "stake_slashed", CollectionMachines, machineKey)
		return nil
	}

	var firstErr error

	if remaining, err := subtract(machine.StakeAmount, p.Amount); err != nil {
		reportViolation(h.logger, CollectionMachines, machineKey, err)
		firstErr = err
	} else {
		machine.StakeAmount = remaining
		machine.UpdatedAt = evt.Timestamp
		if err := h.entities.Machines.Put(ctx, machineKey, machine); err != nil {
			return err
		}
	}

	txn := &models.StakeTransaction{
		ID:        evt.ID,
		Provider:  p.ProviderID,
		Machine:   machineKey,
		Amount:    p.Amount,
		Type:      models.StakeSlashed,
		Reason:    p.Reason,
		Timestamp: evt.Timestamp,
	}
	if err := h.entities.StakeTransactions.Put(ctx, evt.ID, txn); err != nil {
		return err
	}

	if remaining, err := subtract(provider.TotalStaked, p.Amount); err != nil {
		reportViolation(h.logger, CollectionProviders, p.ProviderID, err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		provider.TotalStaked = remaining
		provider.SlashedAmount = provider.SlashedAmount.Add(p.Amount)
		provider.IsSlashed = true
		provider.UpdatedAt = evt.Timestamp
		if err := h.entities.Providers.Put(ctx, p.ProviderID, provider); err != nil {
			return err
		}
		if err := writeProviderSnapshot(ctx, h.entities, provider, evt.Timestamp); err != nil {
			return err
		}
	}

	stats, err := h.entities.GlobalStats.GetOrCreate(ctx, models.GlobalStatsKey, func(s *models.GlobalStats) {
		s.ID = models.GlobalStatsKey
	})
	if err != nil {
		return err
	}
	if remaining, err := subtract(stats.TotalStaked, p.Amount); err != nil {
		reportViolation(h.logger, CollectionGlobalStats, models.GlobalStatsKey, err)
		if firstErr == nil {
			firstErr = err
		}
	} else {
		stats.TotalStaked = remaining
		stats.TotalSlashed = stats.TotalSlashed.Add(p.Amount)
		stats.LastUpdatedAt = evt.Timestamp
		if err := h.entities.GlobalStats.Put(ctx, models.GlobalStatsKey, stats); err != nil {
			return err
		}
	}

	return firstErr
}

// HandleStakeWithdrawn marks a removed machine's stake as paid out and
// clears the provider's pending withdrawal, guarded against going
// negative. Both referents must exist before anything is written.
func (h *MachineHandlers) HandleStakeWithdrawn(ctx context.Context, evt *models.Event) error {
	var p models.StakeWithdrawnPayload
	if err := evt.Decode(&p); err != nil {
		return err
	}

	provider, ok, err := h.entities.Providers.Get(ctx, p.ProviderID)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "stake_withdrawn", CollectionProviders, p.ProviderID)
		return nil
	}

	machineKey := keys.Pair(p.ProviderID, p.MachineID)
	machine, ok, err := h.entities.Machines.Get(ctx, machineKey)
	if err != nil {
		return err
	}
	if !ok {
		reportMissing(h.logger, "stake_withdrawn", CollectionMachines, machineKey)
		return nil
	}

	machine.WithdrawalProcessed = true
	machine.UpdatedAt = evt.Timestamp
	if err := h.entities.Machines.Put(ctx, machineKey, machine); err != nil {
		return err
	}

	txn := &models.StakeTransaction{
		ID:        evt.ID,
		Provider:  p.ProviderID,
		Machine:   machineKey,
		Amount:    p.Amount,
		Type:      models.StakeWithdrawn,
		Timestamp: evt.Timestamp,
	}
	if err := h.entities.StakeTransactions.Put(ctx, evt.ID, txn); err != nil {
		return err
	}

	var firstErr error
	if remaining, err := subtract(provider.PendingWithdrawals, p.Amount); err != nil {
		reportViolation(h.logger, CollectionProviders, p.ProviderID, err)
		firstErr = err
	} else {
		provider.PendingWithdrawals = remaining
		provider.UpdatedAt = evt.Timestamp
		if err := h.entities.Providers.Put(ctx, p.ProviderID, provider); err != nil {
			return err
		}
	}

	return firstErr
}

// bumpGlobalStake applies one mutation to the global stats record.
func (h *MachineHandlers) bumpGlobalStake(ctx context.Context, ts int64, mutate func(*models.GlobalStats)) error {
	stats, err := h.entities.GlobalStats.GetOrCreate(ctx, models.GlobalStatsKey, func(s *models.GlobalStats) {
		s.ID = models.GlobalStatsKey
	})
	if err != nil {
		return err
	}
	mutate(stats)
	stats.LastUpdatedAt = ts
	return h.entities.GlobalStats.Put(ctx, models.GlobalStatsKey, stats)
}

// applyMachineState copies the chain-gateway's machine record onto the
// stored machine, stake fields excluded.
func applyMachineState(machine *models.Machine, state *chainstate.MachineState) {
	machine.Active = state.Active
	machine.MachineType = state.MachineType
	machine.Region = state.Region
	machine.CPUCores = state.CPUCores
	machine.GPUCores = state.GPUCores
	machine.GPUMemory = state.GPUMemory
	machine.MemoryMB = state.MemoryMB
	machine.DiskGB = state.DiskGB
	machine.UploadSpeed = state.UploadSpeed
	machine.DownloadSpeed = state.DownloadSpeed
	machine.CPUPricePerSecond = state.CPUPricePerSecond
	machine.GPUPricePerSecond = state.GPUPricePerSecond
	machine.MemoryPricePerSecond = state.MemoryPricePerSecond
	machine.DiskPricePerSecond = state.DiskPricePerSecond
	machine.Metadata = state.Metadata

	fields := metadata.Parse(state.Metadata)
	metadata.Override(&machine.Name, fields.Name)
	metadata.Override(&machine.Description, fields.Description)
	metadata.Override(&machine.Host, fields.Host)
	metadata.Override(&machine.PublicIP, fields.PublicIP)
	metadata.Override(&machine.OverlayIP, fields.OverlayIP)
}
