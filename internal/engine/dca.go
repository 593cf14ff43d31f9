package engine

import (
	"fmt"
	"sort"
	"time"

	"sleepswap-engine/internal/models"
	"sleepswap-engine/internal/pool"
	"sleepswap-engine/internal/swap"

	"github.com/shopspring/decimal"
)

// DcaBook 是定投策略账本：固定金额、固定间隔地买入目标代币。
// 执行次数 = deposit/tradeAmount 向下取整，间隔以天计。
type DcaBook struct {
	bookCore
	minInvestment  decimal.Decimal
	minTradeAmount decimal.Decimal
	orders         map[uint64]*models.DcaOrder
}

// Invest 建仓。lastExecutionTime 从建仓时刻起算，第一次执行需等满一个间隔。
func (b *DcaBook) Invest(caller models.Address, amount, tradeAmount decimal.Decimal, frequencyDays uint32, token string) (models.DcaOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if amount.LessThan(b.minInvestment) {
		return models.DcaOrder{}, fmt.Errorf("%w: got %s, min %s", ErrInvalidAmount, amount, b.minInvestment)
	}
	if tradeAmount.LessThan(b.minTradeAmount) || tradeAmount.GreaterThan(amount) {
		return models.DcaOrder{}, fmt.Errorf("%w: trade %s, deposit %s", ErrInvalidTrade, tradeAmount, amount)
	}
	if frequencyDays == 0 {
		return models.DcaOrder{}, ErrInvalidFrequency
	}
	if err := b.ledger.Transfer(b.stable, caller, b.addr, amount); err != nil {
		return models.DcaOrder{}, fmt.Errorf("invest transfer: %w", err)
	}

	id := b.assignID()
	numOfTrades := uint32(amount.Div(tradeAmount).Floor().IntPart())
	o := &models.DcaOrder{
		ID:                id,
		Ref:               orderRef(models.StrategyDCA, id),
		Owner:             caller,
		Token:             token,
		DepositAmount:     amount,
		RemainingAmount:   amount,
		TradeAmount:       tradeAmount,
		NumOfTrades:       numOfTrades,
		FrequencyDays:     frequencyDays,
		LastExecutionTime: b.now(),
		Status:            models.StatusActive,
		CreatedAt:         b.now(),
	}
	b.orders[id] = o
	b.pool.CreditStable(amount)

	b.log.Infow("dca order created",
		"ref", o.Ref, "owner", caller, "token", token,
		"deposit", amount, "tradeAmount", tradeAmount, "trades", numOfTrades, "frequencyDays", frequencyDays)
	co := *o
	return co, nil
}

type dcaStep struct {
	o   *models.DcaOrder
	fee decimal.Decimal
	net decimal.Decimal
	out decimal.Decimal
}

// ExecuteOrders 推进批次中每笔到期的订单一步。
// 未到期（距上次执行不足 frequency 天）的订单静默跳过。
func (b *DcaBook) ExecuteOrders(caller models.Address, ids []uint64, price decimal.Decimal) ([]models.Execution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireManager(caller); err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, swap.ErrZeroPrice
	}

	now := b.now()
	var plan []dcaStep
	need := map[string]decimal.Decimal{}
	seen := map[uint64]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		o, ok := b.orders[id]
		if !ok || !o.Status.Open() || o.RemainingAmount.LessThan(o.TradeAmount) {
			continue
		}
		if now.Sub(o.LastExecutionTime) < time.Duration(o.FrequencyDays)*24*time.Hour {
			continue
		}
		fee := b.feeOn(o.TradeAmount)
		net := o.TradeAmount.Sub(fee)
		out, err := b.router.Quote(net, price, models.SideBuy)
		if err != nil {
			return nil, err
		}
		need[o.Token] = need[o.Token].Add(out)
		plan = append(plan, dcaStep{o: o, fee: fee, net: net, out: out})
	}
	for token, total := range need {
		if b.router.Liquidity(token).LessThan(total) {
			return nil, fmt.Errorf("%w: token %s", swap.ErrInsufficientLiquidity, token)
		}
	}

	execs := make([]models.Execution, 0, len(plan))
	for _, s := range plan {
		out, err := b.router.Swap(b.addr, s.o.Token, s.net, price, models.SideBuy)
		if err != nil {
			return nil, fmt.Errorf("dca swap invariant broken: %w", err)
		}

		s.o.RemainingAmount = s.o.RemainingAmount.Sub(s.o.TradeAmount)
		s.o.TokenAccumulated = s.o.TokenAccumulated.Add(out)
		s.o.ExecutedTrades++
		s.o.LastExecutionTime = now
		if s.o.ExecutedTrades == s.o.NumOfTrades {
			s.o.Status = models.StatusCompleted
		}

		b.pool.DebitStable(s.o.TradeAmount)
		b.pool.CreditToken(s.o.Token, out)
		b.pool.AddFee(b.stable, s.fee)

		execs = append(execs, models.Execution{
			Strategy:  models.StrategyDCA,
			OrderID:   s.o.ID,
			Ref:       s.o.Ref,
			Side:      models.SideBuy,
			AmountIn:  s.o.TradeAmount,
			AmountOut: out,
			Fee:       s.fee,
			FeeToken:  b.stable,
			Price:     price,
			Time:      now,
		})
		b.log.Infow("dca trade executed",
			"ref", s.o.Ref, "trade", s.o.ExecutedTrades, "of", s.o.NumOfTrades,
			"in", s.o.TradeAmount, "out", out, "fee", s.fee, "price", price)
	}
	return execs, nil
}

// WithdrawByOrderID 将剩余本金与累积代币转回所有者并关闭订单。
func (b *DcaBook) WithdrawByOrderID(caller models.Address, id uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	if o.Owner != caller {
		return fmt.Errorf("%w: order %s", ErrForbidden, o.Ref)
	}
	if o.Status == models.StatusCancelled || o.Status == models.StatusWithdrawn {
		return fmt.Errorf("%w: %s", ErrOrderClosed, o.Ref)
	}

	if err := b.ledger.Transfer(b.stable, b.addr, o.Owner, o.RemainingAmount); err != nil {
		return fmt.Errorf("withdraw stable: %w", err)
	}
	if err := b.ledger.Transfer(o.Token, b.addr, o.Owner, o.TokenAccumulated); err != nil {
		return fmt.Errorf("withdraw token: %w", err)
	}

	b.pool.DebitStable(o.RemainingAmount)
	b.pool.DebitToken(o.Token, o.TokenAccumulated)

	if o.Status == models.StatusCompleted {
		o.Status = models.StatusWithdrawn
	} else {
		o.Status = models.StatusCancelled
	}
	b.log.Infow("dca order withdrawn",
		"ref", o.Ref, "stable", o.RemainingAmount, "token", o.TokenAccumulated, "status", o.Status)
	o.RemainingAmount = decimal.Zero
	o.TokenAccumulated = decimal.Zero
	return nil
}

// Order 返回订单快照；未知订单号返回 ErrOrderNotFound。
func (b *DcaBook) Order(id uint64) (models.DcaOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return models.DcaOrder{}, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	co := *o
	return co, nil
}

// OpenOrderIDs 返回所有可继续执行的订单号，升序。
func (b *DcaBook) OpenOrderIDs() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []uint64
	for id, o := range b.orders {
		if o.Status.Open() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// PoolBalance 返回资金池稳定币托管总额。
func (b *DcaBook) PoolBalance() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool.StableBalance()
}

// PoolTokenBalance 返回资金池某代币托管总额。
func (b *DcaBook) PoolTokenBalance(token string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool.TokenBalance(token)
}

// Fee 返回某代币计价的累计手续费。
func (b *DcaBook) Fee(token string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool.Fee(token)
}

// AddManager 添加管理员，仅 owner 可调用。
func (b *DcaBook) AddManager(caller, manager models.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.AddManager(caller, manager)
}

// RemoveManager 移除管理员，仅 owner 可调用。
func (b *DcaBook) RemoveManager(caller, manager models.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.RemoveManager(caller, manager)
}

// IsManager 判断地址是否为本账本管理员。
func (b *DcaBook) IsManager(who models.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.IsManager(who)
}

func (b *DcaBook) snapshotLocked() models.DcaBookState {
	orders := make(map[uint64]*models.DcaOrder, len(b.orders))
	for id, o := range b.orders {
		co := *o
		orders[id] = &co
	}
	return models.DcaBookState{
		NextID:   b.nextID,
		Orders:   orders,
		Pool:     b.pool.Snapshot(),
		Managers: b.registry.Managers(),
	}
}

func (b *DcaBook) restoreLocked(st models.DcaBookState) {
	b.nextID = st.NextID
	if b.nextID == 0 {
		b.nextID = 1
	}
	b.orders = make(map[uint64]*models.DcaOrder, len(st.Orders))
	for id, o := range st.Orders {
		co := *o
		b.orders[id] = &co
	}
	b.pool = pool.Restore(st.Pool)
	b.registry = restoreRegistry(b.registry, st.Managers)
}
