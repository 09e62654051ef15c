package models

import "github.com/shopspring/decimal"

// OrderStatus represents the lifecycle state of a rental order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// OrderStatusFromCode normalizes the raw on-chain status code into a named
// status. The second return is false for codes this indexer does not know.
func OrderStatusFromCode(code int) (OrderStatus, bool) {
	switch code {
	case 0:
		return OrderStatusPending, true
	case 1:
		return OrderStatusConfirmed, true
	case 2:
		return OrderStatusCanceled, true
	case 3:
		return OrderStatusRefunded, true
	default:
		return "", false
	}
}

// Terminal reports whether no further status transitions are valid.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusConfirmed || s == OrderStatusCanceled || s == OrderStatusRefunded
}

// OrderType determines the side effect applied when an order is confirmed.
type OrderType string

const (
	OrderTypeNew     OrderType = "new"
	OrderTypeRenew   OrderType = "renew"
	OrderTypeUpgrade OrderType = "upgrade"
)

// OrderTypeFromCode normalizes the raw on-chain order type code.
func OrderTypeFromCode(code int) (OrderType, bool) {
	switch code {
	case 0:
		return OrderTypeNew, true
	case 1:
		return OrderTypeRenew, true
	case 2:
		return OrderTypeUpgrade, true
	default:
		return "", false
	}
}

// Resources is the resource specification shared by orders and clusters.
// Quantities are decimals because the chain reports them as unbounded
// integers (memory and network in bytes).
type Resources struct {
	GPU         decimal.Decimal `json:"gpu"`
	CPU         decimal.Decimal `json:"cpu"`
	MemoryBytes decimal.Decimal `json:"memory_bytes"`
	Disk        decimal.Decimal `json:"disk"`
	Network     decimal.Decimal `json:"network"`
}

// Add returns the dimension-wise sum of two resource specs.
func (r Resources) Add(other Resources) Resources {
	return Resources{
		GPU:         r.GPU.Add(other.GPU),
		CPU:         r.CPU.Add(other.CPU),
		MemoryBytes: r.MemoryBytes.Add(other.MemoryBytes),
		Disk:        r.Disk.Add(other.Disk),
		Network:     r.Network.Add(other.Network),
	}
}

// User is the wallet that placed orders or staked into pools.
type User struct {
	ID      string `json:"id"`
	Address string `json:"address"`
}

// Order is a rental order on the cluster market.
type Order struct {
	ID             string          `json:"id"`
	User           string          `json:"user"`
	Status         OrderStatus     `json:"status"`
	OrderType      OrderType       `json:"order_type"`
	IP             string          `json:"ip"`
	Resources      Resources       `json:"resources"`
	RentalDuration int64           `json:"rental_duration"`
	PaymentToken   string          `json:"payment_token"`
	PaidAmount     decimal.Decimal `json:"paid_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Cluster        string          `json:"cluster,omitempty"`
	CreatedAt      int64           `json:"created_at"`
	ConfirmedAt    int64           `json:"confirmed_at,omitempty"`
	CanceledAt     int64           `json:"canceled_at,omitempty"`
}

// Cluster is a provisioned set of nodes rented through a New order.
type Cluster struct {
	ID         string    `json:"id"`
	Renter     string    `json:"renter"`
	Active     bool      `json:"active"`
	Expiration int64     `json:"expiration"`
	IP         string    `json:"ip"`
	NodeIPs    []string  `json:"node_ips"`
	Resources  Resources `json:"resources"`
}
