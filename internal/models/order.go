package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Address 标识一个账户身份，等价于链上地址。
type Address string

// OrderStatus is the explicit order lifecycle state machine.
// An order is never deleted; it only moves to a terminal state.
type OrderStatus int

const (
	StatusActive    OrderStatus = iota // 执行中
	StatusCompleted                    // 全部步数执行完毕
	StatusCancelled                    // 完成前被用户提取
	StatusWithdrawn                    // 完成后被用户提取
)

// Open reports whether the order can still be advanced by the scheduler.
func (s OrderStatus) Open() bool { return s == StatusActive }

func (s OrderStatus) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusWithdrawn:
		return "WITHDRAWN"
	default:
		return "UNKNOWN"
	}
}

// Strategy 标识订单所属的策略账本。
type Strategy string

const (
	StrategyGrid Strategy = "GRID"
	StrategyDCA  Strategy = "DCA"
	StrategyRSI  Strategy = "RSI"
)

// Side 标识一次执行的方向。
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// GridOrder 是网格累积策略的订单记录。
// 金额一律以稳定币/代币的最小单位计，整数语义，除法向下取整。
type GridOrder struct {
	ID               uint64          `json:"id"`
	Ref              string          `json:"ref"` // base62 引用串，用于日志与流水
	Owner            Address         `json:"owner"`
	Token            string          `json:"token"`
	EntryPrice       decimal.Decimal `json:"entry_price"`
	PrevPrice        decimal.Decimal `json:"prev_price"` // 最近一次执行时的价格
	DepositAmount    decimal.Decimal `json:"deposit_amount"`
	RemainingAmount  decimal.Decimal `json:"remaining_amount"`
	FiatOrderAmount  decimal.Decimal `json:"fiat_order_amount"` // 每格投入 = deposit / grids（向下取整）
	TokenAccumulated decimal.Decimal `json:"token_accumulated"`
	Grids            uint32          `json:"grids"`
	ExecutedGrids    uint32          `json:"executed_grids"`
	Percentage       uint32          `json:"percentage"` // 每格目标价差百分比，建仓时固定
	Status           OrderStatus     `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// DcaOrder 是定投策略的订单记录。
type DcaOrder struct {
	ID                uint64          `json:"id"`
	Ref               string          `json:"ref"`
	Owner             Address         `json:"owner"`
	Token             string          `json:"token"`
	DepositAmount     decimal.Decimal `json:"deposit_amount"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
	TradeAmount       decimal.Decimal `json:"trade_amount"` // 每次定投的稳定币数量
	TokenAccumulated  decimal.Decimal `json:"token_accumulated"`
	NumOfTrades       uint32          `json:"num_of_trades"` // deposit / tradeAmount（向下取整）
	ExecutedTrades    uint32          `json:"executed_trades"`
	FrequencyDays     uint32          `json:"frequency_days"` // 两次执行的最小间隔（天）
	LastExecutionTime time.Time       `json:"last_execution_time"`
	Status            OrderStatus     `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
}

// RsiExecutionStatus 记录 RSI 订单买卖两侧的进度。
type RsiExecutionStatus struct {
	BuyCount  uint32 `json:"buy_count"`
	SellCount uint32 `json:"sell_count"`
}

// RsiOrder 是 RSI 波段策略的订单记录。
// 建仓时一半本金立刻换为目标代币，另一半保留为稳定币余额。
type RsiOrder struct {
	ID              uint64             `json:"id"`
	Ref             string             `json:"ref"`
	Owner           Address            `json:"owner"`
	Token           string             `json:"token"`
	InvestedAmount  decimal.Decimal    `json:"invested_amount"`
	OrderTokens     decimal.Decimal    `json:"order_tokens"` // 每次卖出消耗的代币数，建仓时固定
	OrderFiats      decimal.Decimal    `json:"order_fiats"`  // 每次买入消耗的稳定币数，建仓时固定
	TokenBalance    decimal.Decimal    `json:"token_balance"`
	FiatBalance     decimal.Decimal    `json:"fiat_balance"`
	EntryPrice      decimal.Decimal    `json:"entry_price"`
	ExecutionStatus RsiExecutionStatus `json:"execution_status"`
	LastBuyTime     time.Time          `json:"last_buy_time"`
	LastSellTime    time.Time          `json:"last_sell_time"`
	Status          OrderStatus        `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
}

// Execution 描述调度器实际推进的一个步骤，供流水与测试消费。
type Execution struct {
	Strategy  Strategy        `json:"strategy"`
	OrderID   uint64          `json:"order_id"`
	Ref       string          `json:"ref"`
	Side      Side            `json:"side"`
	AmountIn  decimal.Decimal `json:"amount_in"`  // 本步消耗的数量（含手续费）
	AmountOut decimal.Decimal `json:"amount_out"` // 本步获得的数量
	Fee       decimal.Decimal `json:"fee"`
	FeeToken  string          `json:"fee_token"`
	Price     decimal.Decimal `json:"price"`
	RSI       float64         `json:"rsi,omitempty"`
	Time      time.Time       `json:"time"`
}

// PriceTick 是行情源推送的一次价格更新。
type PriceTick struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Time   time.Time       `json:"time"`
}

// Candle 是模拟模式回放用的一根K线。
type Candle struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	CloseTime time.Time
}
