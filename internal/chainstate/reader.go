// Package chainstate reads authoritative contract state for events whose payload
// is only a delta. Lookups are synchronous point reads; a missing record
// or a failed read must never abort the handler that asked.
package chainstate

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/subnet-labs/subnet-indexer/internal/models"
)

// OrderState is the full order record as stored by the cluster market
// contract.
type OrderState struct {
	StatusCode     int               `json:"status_code"`
	OrderTypeCode  int               `json:"order_type_code"`
	IP             string            `json:"ip"`
	Resources      models.Resources  `json:"resources"`
	RentalDuration int64             `json:"rental_duration"`
	PaymentToken   string            `json:"payment_token"`
	ClusterID      string            `json:"cluster_id"`
	PaidAmount     decimal.Decimal   `json:"paid_amount"`
	DiscountAmount decimal.Decimal   `json:"discount_amount"`
}

// ClusterState is the full cluster record from the cluster market.
type ClusterState struct {
	NodeIPs    []string         `json:"node_ips"`
	Active     bool             `json:"active"`
	Expiration int64            `json:"expiration"`
	IP         string           `json:"ip"`
	Resources  models.Resources `json:"resources"`
}

// ProviderState is the full provider record from the provider registry.
type ProviderState struct {
	Owner    string `json:"owner"`
	Operator string `json:"operator"`
	Metadata string `json:"metadata"`
}

// MachineState is the full machine record from the provider registry.
type MachineState struct {
	Active      bool   `json:"active"`
	MachineType string `json:"machine_type"`
	Region      string `json:"region"`

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

	Metadata string `json:"metadata"`
}

// AppState is the full app record from the app store contract.
type AppState struct {
	Name         string          `json:"name"`
	Symbol       string          `json:"symbol"`
	Owner        string          `json:"owner"`
	Budget       decimal.Decimal `json:"budget"`
	SpentBudget  decimal.Decimal `json:"spent_budget"`
	PaymentToken string          `json:"payment_token"`
}

// Reader is the point-lookup contract handlers depend on. The source
// argument is the address of the contract the triggering event came from.
// The boolean return is false when the record does not exist.
type Reader interface {
	Order(ctx context.Context, source, orderID string) (*OrderState, bool, error)
	Cluster(ctx context.Context, source, clusterID string) (*ClusterState, bool, error)
	Provider(ctx context.Context, source, providerID string) (*ProviderState, bool, error)
	Machine(ctx context.Context, source, providerID, machineID string) (*MachineState, bool, error)
	App(ctx context.Context, source, appID string) (*AppState, bool, error)
}
