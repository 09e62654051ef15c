// Package handlers contains the domain handlers that derive entities from
// chain events. Each handler group covers one subject area; all of them
// write through the same keyed entity store.
package handlers

import (
	"github.com/subnet-labs/subnet-indexer/internal/models"
	"github.com/subnet-labs/subnet-indexer/internal/store"
)

// Collection names. The query layer addresses entities by these.
const (
	CollectionUsers             = "users"
	CollectionOrders            = "orders"
	CollectionClusters          = "clusters"
	CollectionProviders         = "providers"
	CollectionPeers             = "peer_nodes"
	CollectionMachines          = "machines"
	CollectionStakeTransactions = "stake_transactions"
	CollectionSnapshots         = "provider_daily_snapshots"
	CollectionGlobalStats       = "global_stats"
	CollectionApps              = "apps"
	CollectionUsage             = "usage"
	CollectionAppProviders      = "app_providers"
	CollectionProviderUsage     = "provider_usage"
	CollectionUsageAggregates   = "usage_aggregates"
	CollectionPools             = "pools"
	CollectionUserStakes        = "user_stakes"
	CollectionStakeHistory      = "stake_history"
)

// Entities bundles the typed collections the handlers operate on.
type Entities struct {
	Users             *store.Collection[models.User]
	Orders            *store.Collection[models.Order]
	Clusters          *store.Collection[models.Cluster]
	Providers         *store.Collection[models.Provider]
	Peers             *store.Collection[models.PeerNode]
	Machines          *store.Collection[models.Machine]
	StakeTransactions *store.Collection[models.StakeTransaction]
	Snapshots         *store.Collection[models.ProviderDailySnapshot]
	GlobalStats       *store.Collection[models.GlobalStats]
	Apps              *store.Collection[models.App]
	Usage             *store.Collection[models.Usage]
	AppProviders      *store.Collection[models.AppProvider]
	ProviderUsage     *store.Collection[models.ProviderUsage]
	UsageAggregates   *store.Collection[models.UsageAggregate]
	Pools             *store.Collection[models.Pool]
	UserStakes        *store.Collection[models.UserStake]
	StakeHistory      *store.Collection[models.StakeHistory]
}

// NewEntities binds every collection to the given backend.
func NewEntities(kv store.KV) *Entities {
	return &Entities{
		Users:             store.NewCollection[models.User](kv, CollectionUsers),
		Orders:            store.NewCollection[models.Order](kv, CollectionOrders),
		Clusters:          store.NewCollection[models.Cluster](kv, CollectionClusters),
		Providers:         store.NewCollection[models.Provider](kv, CollectionProviders),
		Peers:             store.NewCollection[models.PeerNode](kv, CollectionPeers),
		Machines:          store.NewCollection[models.Machine](kv, CollectionMachines),
		StakeTransactions: store.NewCollection[models.StakeTransaction](kv, CollectionStakeTransactions),
		Snapshots:         store.NewCollection[models.ProviderDailySnapshot](kv, CollectionSnapshots),
		GlobalStats:       store.NewCollection[models.GlobalStats](kv, CollectionGlobalStats),
		Apps:              store.NewCollection[models.App](kv, CollectionApps),
		Usage:             store.NewCollection[models.Usage](kv, CollectionUsage),
		AppProviders:      store.NewCollection[models.AppProvider](kv, CollectionAppProviders),
		ProviderUsage:     store.NewCollection[models.ProviderUsage](kv, CollectionProviderUsage),
		UsageAggregates:   store.NewCollection[models.UsageAggregate](kv, CollectionUsageAggregates),
		Pools:             store.NewCollection[models.Pool](kv, CollectionPools),
		UserStakes:        store.NewCollection[models.UserStake](kv, CollectionUserStakes),
		StakeHistory:      store.NewCollection[models.StakeHistory](kv, CollectionStakeHistory),
	}
}
