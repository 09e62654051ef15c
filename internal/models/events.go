package models

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Event types as published by the chain-gateway. The subject area prefix
// mirrors the emitting contract.
const (
	EventOrderCreated       = "order.created"
	EventOrderConfirmed     = "order.confirmed"
	EventOrderCanceled      = "order.canceled"
	EventClusterNodesAdded  = "cluster.nodes_added"
	EventClusterNodeRemoved = "cluster.node_removed"

	EventProviderRegistered  = "provider.registered"
	EventProviderUpdated     = "provider.updated"
	EventProviderDeleted     = "provider.deleted"
	EventProviderTransferred = "provider.transferred"
	EventProviderVerified    = "provider.verified"
	EventProviderReputation  = "provider.reputation_updated"
	EventPeerRegistered      = "peer.registered"

	EventMachineAdded        = "machine.added"
	EventMachineRemoved      = "machine.removed"
	EventMachineUpdated      = "machine.updated"
	EventMachinePriceUpdated = "machine.price_updated"
	EventStakeSlashed        = "stake.slashed"
	EventStakeWithdrawn      = "stake.withdrawn"

	EventAppCreated       = "app.created"
	EventUsageReported    = "usage.reported"
	EventRewardClaimed    = "reward.claimed"
	EventLockedRewardPaid = "reward.locked_paid"

	EventPoolCreated       = "pool.created"
	EventPoolStaked        = "pool.staked"
	EventPoolWithdrawn     = "pool.withdrawn"
	EventPoolRewardClaimed = "pool.reward_claimed"
)

// Event is the envelope the chain-gateway publishes for every canonical
// chain event. ID is the stable delivery identifier (txHash:logIndex) the
// ingest layer uses for at-least-once deduplication. Timestamp is the
// block timestamp in unix seconds and is non-decreasing across the stream.
type Event struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Timestamp   int64           `json:"timestamp"`
	BlockNumber uint64          `json:"block_number"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    uint32          `json:"log_index"`
	Source      string          `json:"source"`
	Payload     json.RawMessage `json:"payload"`
}

// Decode unmarshals the event payload into the given payload struct.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// --- Orders & clusters ---

type OrderCreatedPayload struct {
	OrderID string `json:"order_id"`
	User    string `json:"user"`
}

type OrderConfirmedPayload struct {
	OrderID string `json:"order_id"`
}

type OrderCanceledPayload struct {
	OrderID string `json:"order_id"`
}

type ClusterNodesAddedPayload struct {
	ClusterID string   `json:"cluster_id"`
	NodeIPs   []string `json:"node_ips"`
}

type ClusterNodeRemovedPayload struct {
	ClusterID string `json:"cluster_id"`
	NodeIP    string `json:"node_ip"`
}

// --- Providers & peers ---

type ProviderRegisteredPayload struct {
	ProviderID string `json:"provider_id"`
	Owner      string `json:"owner"`
	Operator   string `json:"operator"`
	Name       string `json:"name"`
	Website    string `json:"website"`
	Metadata   string `json:"metadata"`
}

type ProviderUpdatedPayload struct {
	ProviderID string `json:"provider_id"`
}

type ProviderDeletedPayload struct {
	ProviderID string `json:"provider_id"`
}

type ProviderTransferredPayload struct {
	ProviderID string `json:"provider_id"`
	From       string `json:"from"`
	To         string `json:"to"`
}

type ProviderVerifiedPayload struct {
	ProviderID string `json:"provider_id"`
	Verified   bool   `json:"verified"`
}

type ProviderReputationPayload struct {
	ProviderID    string          `json:"provider_id"`
	NewReputation decimal.Decimal `json:"new_reputation"`
}

type PeerRegisteredPayload struct {
	ProviderID string `json:"provider_id"`
	PeerID     string `json:"peer_id"`
	Metadata   string `json:"metadata"`
}

// --- Machines & stake ---

type MachineAddedPayload struct {
	ProviderID   string          `json:"provider_id"`
	MachineID    string          `json:"machine_id"`
	StakedAmount decimal.Decimal `json:"staked_amount"`
}

type MachineRemovedPayload struct {
	ProviderID string `json:"provider_id"`
	MachineID  string `json:"machine_id"`
	UnlockTime int64  `json:"unlock_time"`
}

type MachineUpdatedPayload struct {
	ProviderID      string          `json:"provider_id"`
	MachineID       string          `json:"machine_id"`
	AdditionalStake decimal.Decimal `json:"additional_stake"`
}

type MachinePriceUpdatedPayload struct {
	ProviderID           string          `json:"provider_id"`
	MachineID            string          `json:"machine_id"`
	CPUPricePerSecond    decimal.Decimal `json:"cpu_price_per_second"`
	GPUPricePerSecond    decimal.Decimal `json:"gpu_price_per_second"`
	MemoryPricePerSecond decimal.Decimal `json:"memory_price_per_second"`
	DiskPricePerSecond   decimal.Decimal `json:"disk_price_per_second"`
}

type StakeSlashedPayload struct {
	ProviderID string          `json:"provider_id"`
	MachineID  string          `json:"machine_id"`
	Amount     decimal.Decimal `json:"amount"`
	Reason     string          `json:"reason"`
}

type StakeWithdrawnPayload struct {
	ProviderID string          `json:"provider_id"`
	MachineID  string          `json:"machine_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// --- Apps, usage & rewards ---

type AppCreatedPayload struct {
	AppID string `json:"app_id"`
}

type UsageReportedPayload struct {
	AppID             string          `json:"app_id"`
	ProviderID        string          `json:"provider_id"`
	PeerID            string          `json:"peer_id"`
	Duration          decimal.Decimal `json:"duration"`
	UsedCPU           decimal.Decimal `json:"used_cpu"`
	UsedGPU           decimal.Decimal `json:"used_gpu"`
	UsedMemory        decimal.Decimal `json:"used_memory"`
	UsedStorage       decimal.Decimal `json:"used_storage"`
	UsedUploadBytes   decimal.Decimal `json:"used_upload_bytes"`
	UsedDownloadBytes decimal.Decimal `json:"used_download_bytes"`
	Reward            decimal.Decimal `json:"reward"`
	Timestamp         int64           `json:"timestamp"`
}

type RewardClaimedPayload struct {
	AppID      string          `json:"app_id"`
	ProviderID string          `json:"provider_id"`
	Reward     decimal.Decimal `json:"reward"`
	UnlockTime int64           `json:"unlock_time"`
}

type LockedRewardPaidPayload struct {
	AppID      string          `json:"app_id"`
	ProviderID string          `json:"provider_id"`
	Reward     decimal.Decimal `json:"reward"`
}

// --- Staking pools ---

type PoolCreatedPayload struct {
	PoolAddress  string `json:"pool_address"`
	StakingToken string `json:"staking_token"`
	RewardToken  string `json:"reward_token"`
}

type PoolStakedPayload struct {
	Pool   string          `json:"pool"`
	User   string          `json:"user"`
	Amount decimal.Decimal `json:"amount"`
}

type PoolWithdrawnPayload struct {
	Pool   string          `json:"pool"`
	User   string          `json:"user"`
	Amount decimal.Decimal `json:"amount"`
}

type PoolRewardClaimedPayload struct {
	Pool   string          `json:"pool"`
	User   string          `json:"user"`
	Reward decimal.Decimal `json:"reward"`
}
