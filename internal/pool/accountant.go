package pool

import (
	"sleepswap-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Accountant 维护一个策略账本的聚合资金池：稳定币托管、各代币托管与累计手续费。
// 它只被订单的建仓、执行与提取流程修改，不做自身加锁——并发约束由账本的互斥锁承担。
type Accountant struct {
	stable decimal.Decimal
	tokens map[string]decimal.Decimal
	fees   map[string]decimal.Decimal
}

// NewAccountant 创建一个全零的资金池。
func NewAccountant() *Accountant {
	return &Accountant{
		tokens: make(map[string]decimal.Decimal),
		fees:   make(map[string]decimal.Decimal),
	}
}

// CreditStable 增加稳定币托管。
func (a *Accountant) CreditStable(amount decimal.Decimal) {
	a.stable = a.stable.Add(amount)
}

// DebitStable 减少稳定币托管。
func (a *Accountant) DebitStable(amount decimal.Decimal) {
	a.stable = a.stable.Sub(amount)
}

// CreditToken 增加某代币的托管。
func (a *Accountant) CreditToken(token string, amount decimal.Decimal) {
	a.tokens[token] = a.tokens[token].Add(amount)
}

// DebitToken 减少某代币的托管。
func (a *Accountant) DebitToken(token string, amount decimal.Decimal) {
	a.tokens[token] = a.tokens[token].Sub(amount)
}

// AddFee 累计某代币计价的手续费。手续费只增不减。
func (a *Accountant) AddFee(token string, amount decimal.Decimal) {
	a.fees[token] = a.fees[token].Add(amount)
}

// StableBalance 返回稳定币托管总额。
func (a *Accountant) StableBalance() decimal.Decimal { return a.stable }

// TokenBalance 返回某代币的托管总额。
func (a *Accountant) TokenBalance(token string) decimal.Decimal { return a.tokens[token] }

// Fee 返回某代币累计的手续费。
func (a *Accountant) Fee(token string) decimal.Decimal { return a.fees[token] }

// Snapshot 导出资金池的持久化快照。
func (a *Accountant) Snapshot() models.PoolState {
	st := models.PoolState{
		StableBalance: a.stable,
		TokenBalances: make(map[string]decimal.Decimal, len(a.tokens)),
		Fees:          make(map[string]decimal.Decimal, len(a.fees)),
	}
	for k, v := range a.tokens {
		st.TokenBalances[k] = v
	}
	for k, v := range a.fees {
		st.Fees[k] = v
	}
	return st
}

// Restore 从快照恢复资金池。
func Restore(st models.PoolState) *Accountant {
	a := NewAccountant()
	a.stable = st.StableBalance
	for k, v := range st.TokenBalances {
		a.tokens[k] = v
	}
	for k, v := range st.Fees {
		a.fees[k] = v
	}
	return a
}
