package models

import "github.com/shopspring/decimal"

// Pool is a staking pool deployed by the factory.
type Pool struct {
	ID                  string          `json:"id"`
	StakingToken        string          `json:"staking_token"`
	RewardToken         string          `json:"reward_token"`
	TotalStaked         decimal.Decimal `json:"total_staked"`
	TotalRewardsClaimed decimal.Decimal `json:"total_rewards_claimed"`
}

// UserStake is one user's position in one pool.
type UserStake struct {
	ID                  string          `json:"id"`
	User                string          `json:"user"`
	Pool                string          `json:"pool"`
	TotalStaked         decimal.Decimal `json:"total_staked"`
	TotalRewardsClaimed decimal.Decimal `json:"total_rewards_claimed"`
}

// StakeHistoryType tags a staking pool history entry.
type StakeHistoryType string

const (
	HistoryStake    StakeHistoryType = "STAKE"
	HistoryWithdraw StakeHistoryType = "WITHDRAW"
	HistoryClaim    StakeHistoryType = "CLAIM"
)

// StakeHistory is an immutable record of a pool action.
type StakeHistory struct {
	ID        string           `json:"id"`
	User      string           `json:"user"`
	Pool      string           `json:"pool"`
	Type      StakeHistoryType `json:"type"`
	Amount    decimal.Decimal  `json:"amount"`
	Timestamp int64            `json:"timestamp"`
	TxHash    string           `json:"tx_hash"`
}
