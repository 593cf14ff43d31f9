package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolState 是一个策略账本的资金池快照。
type PoolState struct {
	StableBalance decimal.Decimal            `json:"stable_balance"`
	TokenBalances map[string]decimal.Decimal `json:"token_balances"`
	Fees          map[string]decimal.Decimal `json:"fees"`
}

// GridBookState 是网格账本的持久化快照。
type GridBookState struct {
	NextID   uint64                `json:"next_id"`
	Orders   map[uint64]*GridOrder `json:"orders"`
	Pool     PoolState             `json:"pool"`
	Managers []Address             `json:"managers"`
}

// DcaBookState 是定投账本的持久化快照。
type DcaBookState struct {
	NextID   uint64               `json:"next_id"`
	Orders   map[uint64]*DcaOrder `json:"orders"`
	Pool     PoolState            `json:"pool"`
	Managers []Address            `json:"managers"`
}

// RsiBookState 是 RSI 账本的持久化快照。
type RsiBookState struct {
	NextID   uint64               `json:"next_id"`
	Orders   map[uint64]*RsiOrder `json:"orders"`
	Pool     PoolState            `json:"pool"`
	Managers []Address            `json:"managers"`
}

// EngineState 定义了需要持久化的全部引擎状态。
// 版本号用于未来的快照迁移。
type EngineState struct {
	Version        int           `json:"version"`
	Grid           GridBookState `json:"grid"`
	Dca            DcaBookState  `json:"dca"`
	Rsi            RsiBookState  `json:"rsi"`
	LastUpdateTime time.Time     `json:"last_update_time"`
}
