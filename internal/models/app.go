package models

import "github.com/shopspring/decimal"

// App is an application deployed on the network and billed for usage.
type App struct {
	ID           string          `json:"id"`
	Name         string          `json:"name,omitempty"`
	Symbol       string          `json:"symbol,omitempty"`
	Owner        string          `json:"owner,omitempty"`
	Budget       decimal.Decimal `json:"budget"`
	SpentBudget  decimal.Decimal `json:"spent_budget"`
	PaymentToken string          `json:"payment_token,omitempty"`

	// ProviderCount is the number of distinct providers that have ever
	// reported usage for this app. Incremented at most once per provider,
	// on the first report.
	ProviderCount int64 `json:"provider_count"`
}

// Usage is the raw record of a single usage report.
type Usage struct {
	ID                string          `json:"id"`
	App               string          `json:"app"`
	Provider          string          `json:"provider"`
	Peer              string          `json:"peer"`
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

// UsageTotals holds the running sums shared by every usage aggregation
// scope. Every field only ever grows.
type UsageTotals struct {
	EventCount        int64           `json:"event_count"`
	Duration          decimal.Decimal `json:"duration"`
	UsedCPU           decimal.Decimal `json:"used_cpu"`
	UsedGPU           decimal.Decimal `json:"used_gpu"`
	UsedMemory        decimal.Decimal `json:"used_memory"`
	UsedStorage       decimal.Decimal `json:"used_storage"`
	UsedUploadBytes   decimal.Decimal `json:"used_upload_bytes"`
	UsedDownloadBytes decimal.Decimal `json:"used_download_bytes"`
	Reward            decimal.Decimal `json:"reward"`
}

// Accumulate folds one usage report into the totals.
func (t *UsageTotals) Accumulate(p *UsageReportedPayload) {
	t.EventCount++
	t.Duration = t.Duration.Add(p.Duration)
	t.UsedCPU = t.UsedCPU.Add(p.UsedCPU)
	t.UsedGPU = t.UsedGPU.Add(p.UsedGPU)
	t.UsedMemory = t.UsedMemory.Add(p.UsedMemory)
	t.UsedStorage = t.UsedStorage.Add(p.UsedStorage)
	t.UsedUploadBytes = t.UsedUploadBytes.Add(p.UsedUploadBytes)
	t.UsedDownloadBytes = t.UsedDownloadBytes.Add(p.UsedDownloadBytes)
	t.Reward = t.Reward.Add(p.Reward)
}

// AppProvider is the pairwise (app, provider) aggregate. Its creation is
// what marks a provider as "seen" for an app's distinct-provider count.
type AppProvider struct {
	ID       string      `json:"id"`
	App      string      `json:"app"`
	Provider string      `json:"provider"`
	Totals   UsageTotals `json:"totals"`

	PendingReward decimal.Decimal `json:"pending_reward"`
	LockedReward  decimal.Decimal `json:"locked_reward"`
	ClaimedReward decimal.Decimal `json:"claimed_reward"`
	UnlockTime    int64           `json:"unlock_time,omitempty"`

	FirstSeenAt int64 `json:"first_seen_at"`
}

// ProviderUsage is the per-provider aggregate across all apps and peers.
type ProviderUsage struct {
	ID             string      `json:"id"`
	Totals         UsageTotals `json:"totals"`
	LastReportedAt int64       `json:"last_reported_at"`
}

// GlobalUsageKey is the fixed identity of the network-wide usage rollup.
const GlobalUsageKey = "global"

// UsageAggregate is a usage rollup for one scope: the network-wide record
// under GlobalUsageKey, or a calendar-bucketed (app, provider, peer)
// scope.
type UsageAggregate struct {
	ID       string `json:"id"`
	App      string `json:"app,omitempty"`
	Provider string `json:"provider,omitempty"`
	Peer     string `json:"peer,omitempty"`
	Bucket   string `json:"bucket,omitempty"`

	Totals UsageTotals `json:"totals"`

	// ProviderCount is maintained on the global scope only.
	ProviderCount int64 `json:"provider_count,omitempty"`
}
