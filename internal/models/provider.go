package models

import "github.com/shopspring/decimal"

// Provider is a registered compute provider. Counters are maintained
// incrementally by the machine and stake handlers.
type Provider struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Website  string `json:"website,omitempty"`
	Metadata string `json:"metadata,omitempty"`

	// Best-effort fields parsed from the metadata blob.
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`

	Registered bool `json:"registered"`
	Verified   bool `json:"verified"`
	Active     bool `json:"active"`
	Deleted    bool `json:"deleted"`
	IsSlashed  bool `json:"is_slashed"`

	Reputation         decimal.Decimal `json:"reputation"`
	MachineCount       int64           `json:"machine_count"`
	TotalStaked        decimal.Decimal `json:"total_staked"`
	PendingWithdrawals decimal.Decimal `json:"pending_withdrawals"`
	SlashedAmount      decimal.Decimal `json:"slashed_amount"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// PeerNode is a network peer operated by a provider. Usage reports
// reference peers by this identity.
type PeerNode struct {
	ID       string `json:"id"`
	Provider string `json:"provider"`
	PeerID   string `json:"peer_id"`
	Metadata string `json:"metadata,omitempty"`
}

// Machine is a single staked machine owned by a provider.
type Machine struct {
	ID          string `json:"id"`
	Provider    string `json:"provider"`
	MachineID   string `json:"machine_id"`
	Active      bool   `json:"active"`
	MachineType string `json:"machine_type,omitempty"`
	Region      string `json:"region,omitempty"`

	CPUCores      decimal.Decimal `json:"cpu_cores"`
	GPUCores      decimal.Decimal `json:"gpu_cores"`
	GPUMemory     decimal.Decimal `json:"gpu_memory"`
	MemoryMB      decimal.Decimal `json:"memory_mb"`
	DiskGB        decimal.Decimal `json:"disk_gb"`
	UploadSpeed   decimal.Decimal `json:"upload_speed"`
	DownloadSpeed decimal.Decimal `json:"download_speed"`

	CPUPricePerSecond    decimal.Decimal `json:"cpu_price_per_second"`
	GPUPricePerSecond    decimal.Decimal `json:"gpu_price_per_second"`
	MemoryPricePerSecond decimal.Decimal `json:"memory_price_per_second"`
	DiskPricePerSecond   decimal.Decimal `json:"disk_price_per_second"`

	StakeAmount         decimal.Decimal `json:"stake_amount"`
	WithdrawalProcessed bool            `json:"withdrawal_processed"`
	UnlockTime          int64           `json:"unlock_time,omitempty"`
	RemovedAt           int64           `json:"removed_at,omitempty"`

	Metadata string `json:"metadata,omitempty"`

	// Best-effort fields parsed from the metadata blob.
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Host        string `json:"host,omitempty"`
	PublicIP    string `json:"public_ip,omitempty"`
	OverlayIP   string `json:"overlay_ip,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// StakeTransactionType tags an entry in the stake transaction log.
type StakeTransactionType string

const (
	StakeAdded     StakeTransactionType = "ADDED"
	StakeSlashed   StakeTransactionType = "SLASHED"
	StakeWithdrawn StakeTransactionType = "WITHDRAWN"
)

// StakeTransaction is an immutable audit record for every balance-changing
// stake action.
type StakeTransaction struct {
	ID        string               `json:"id"`
	Provider  string               `json:"provider"`
	Machine   string               `json:"machine"`
	Amount    decimal.Decimal      `json:"amount"`
	Type      StakeTransactionType `json:"type"`
	Reason    string               `json:"reason,omitempty"`
	Timestamp int64                `json:"timestamp"`
}

// ProviderDailySnapshot is a point-in-time copy of the provider counters,
// keyed by providerId and the day bucket.
type ProviderDailySnapshot struct {
	ID            string          `json:"id"`
	Provider      string          `json:"provider"`
	Day           string          `json:"day"`
	MachineCount  int64           `json:"machine_count"`
	TotalStaked   decimal.Decimal `json:"total_staked"`
	SlashedAmount decimal.Decimal `json:"slashed_amount"`
	Reputation    decimal.Decimal `json:"reputation"`
	Timestamp     int64           `json:"timestamp"`
}

// GlobalStatsKey is the fixed identity of the network-wide stats record.
const GlobalStatsKey = "global"

// GlobalStats is the network-wide aggregate, kept incrementally in step
// with the provider and machine handlers.
type GlobalStats struct {
	ID             string          `json:"id"`
	TotalProviders int64           `json:"total_providers"`
	TotalMachines  int64           `json:"total_machines"`
	TotalStaked    decimal.Decimal `json:"total_staked"`
	TotalSlashed   decimal.Decimal `json:"total_slashed"`
	LastUpdatedAt  int64           `json:"last_updated_at"`
}
