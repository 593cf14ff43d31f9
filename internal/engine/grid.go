package engine

import (
	"fmt"
	"sort"

	"sleepswap-engine/internal/models"
	"sleepswap-engine/internal/pool"
	"sleepswap-engine/internal/swap"

	"github.com/shopspring/decimal"
)

// GridBook 是网格累积策略账本：一笔订单分成 grids 等份稳定币，
// 每次执行消耗一份，按当前价格换成目标代币。
type GridBook struct {
	bookCore
	minInvestment decimal.Decimal
	minGrids      uint32
	orders        map[uint64]*models.GridOrder
}

// Invest 建仓：从用户账户划入本金并登记订单。
// 每格投入为 deposit/grids 向下取整，除不尽的余数保留在 remainingAmount 中，
// 只能通过提取收回。
func (b *GridBook) Invest(caller models.Address, amount decimal.Decimal, grids, percentage uint32, entryPrice decimal.Decimal, token string) (models.GridOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if amount.LessThan(b.minInvestment) {
		return models.GridOrder{}, fmt.Errorf("%w: got %s, min %s", ErrInvalidAmount, amount, b.minInvestment)
	}
	if grids < b.minGrids {
		return models.GridOrder{}, fmt.Errorf("%w: got %d, min %d", ErrInvalidGrids, grids, b.minGrids)
	}
	if !entryPrice.IsPositive() {
		return models.GridOrder{}, swap.ErrZeroPrice
	}
	if err := b.ledger.Transfer(b.stable, caller, b.addr, amount); err != nil {
		return models.GridOrder{}, fmt.Errorf("invest transfer: %w", err)
	}

	id := b.assignID()
	o := &models.GridOrder{
		ID:              id,
		Ref:             orderRef(models.StrategyGrid, id),
		Owner:           caller,
		Token:           token,
		EntryPrice:      entryPrice,
		PrevPrice:       entryPrice,
		DepositAmount:   amount,
		RemainingAmount: amount,
		FiatOrderAmount: amount.Div(decimal.NewFromInt(int64(grids))).Floor(),
		Grids:           grids,
		Percentage:      percentage,
		Status:          models.StatusActive,
		CreatedAt:       b.now(),
	}
	b.orders[id] = o
	b.pool.CreditStable(amount)

	b.log.Infow("grid order created",
		"ref", o.Ref, "owner", caller, "token", token,
		"deposit", amount, "grids", grids, "entryPrice", entryPrice)
	co := *o
	return co, nil
}

// gridStep 是一笔订单计划中的一步，先校验后提交。
type gridStep struct {
	o    *models.GridOrder
	fee  decimal.Decimal
	net  decimal.Decimal
	out  decimal.Decimal
	step decimal.Decimal
}

// ExecuteOrders 按给定顺序推进批次中每笔订单至多一步。
// 重复的或已关闭的订单号被静默跳过；权限、价格与流动性问题使整个批次失败，
// 不产生任何状态变化。
func (b *GridBook) ExecuteOrders(caller models.Address, ids []uint64, price decimal.Decimal) ([]models.Execution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireManager(caller); err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, swap.ErrZeroPrice
	}

	// 第一阶段：只读规划，累计每种代币需要的路由器库存。
	var plan []gridStep
	need := map[string]decimal.Decimal{}
	seen := map[uint64]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		o, ok := b.orders[id]
		if !ok || !o.Status.Open() || o.RemainingAmount.LessThan(o.FiatOrderAmount) {
			continue
		}
		step := o.FiatOrderAmount
		fee := b.feeOn(step)
		net := step.Sub(fee)
		out, err := b.router.Quote(net, price, models.SideBuy)
		if err != nil {
			return nil, err
		}
		need[o.Token] = need[o.Token].Add(out)
		plan = append(plan, gridStep{o: o, fee: fee, net: net, out: out, step: step})
	}
	for token, total := range need {
		if b.router.Liquidity(token).LessThan(total) {
			return nil, fmt.Errorf("%w: token %s", swap.ErrInsufficientLiquidity, token)
		}
	}

	// 第二阶段：提交。库存已在同一临界区内校验，兑换不会再失败。
	execs := make([]models.Execution, 0, len(plan))
	for _, s := range plan {
		out, err := b.router.Swap(b.addr, s.o.Token, s.net, price, models.SideBuy)
		if err != nil {
			return nil, fmt.Errorf("grid swap invariant broken: %w", err)
		}

		s.o.RemainingAmount = s.o.RemainingAmount.Sub(s.step)
		s.o.TokenAccumulated = s.o.TokenAccumulated.Add(out)
		s.o.ExecutedGrids++
		s.o.PrevPrice = price
		if s.o.ExecutedGrids == s.o.Grids {
			s.o.Status = models.StatusCompleted
		}

		b.pool.DebitStable(s.step)
		b.pool.CreditToken(s.o.Token, out)
		b.pool.AddFee(b.stable, s.fee)

		execs = append(execs, models.Execution{
			Strategy:  models.StrategyGrid,
			OrderID:   s.o.ID,
			Ref:       s.o.Ref,
			Side:      models.SideBuy,
			AmountIn:  s.step,
			AmountOut: out,
			Fee:       s.fee,
			FeeToken:  b.stable,
			Price:     price,
			Time:      b.now(),
		})
		b.log.Infow("grid step executed",
			"ref", s.o.Ref, "grid", s.o.ExecutedGrids, "of", s.o.Grids,
			"in", s.step, "out", out, "fee", s.fee, "price", price)
	}
	return execs, nil
}

// WithdrawByOrderID 将订单剩余的稳定币与累积的代币一次性转回所有者。
// 只有订单所有者可以提取；重复提取失败。
func (b *GridBook) WithdrawByOrderID(caller models.Address, id uint64) error {
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
	b.log.Infow("grid order withdrawn",
		"ref", o.Ref, "stable", o.RemainingAmount, "token", o.TokenAccumulated, "status", o.Status)
	o.RemainingAmount = decimal.Zero
	o.TokenAccumulated = decimal.Zero
	return nil
}

// Order 返回订单快照；未知订单号返回 ErrOrderNotFound。
func (b *GridBook) Order(id uint64) (models.GridOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return models.GridOrder{}, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	co := *o
	return co, nil
}

// OpenOrderIDs 返回所有可继续执行的订单号，升序。
func (b *GridBook) OpenOrderIDs() []uint64 {
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
func (b *GridBook) PoolBalance() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool.StableBalance()
}

// PoolTokenBalance 返回资金池某代币托管总额。
func (b *GridBook) PoolTokenBalance(token string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool.TokenBalance(token)
}

// Fee 返回某代币计价的累计手续费。
func (b *GridBook) Fee(token string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool.Fee(token)
}

// AddManager 添加管理员，仅 owner 可调用。
func (b *GridBook) AddManager(caller, manager models.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.AddManager(caller, manager)
}

// RemoveManager 移除管理员，仅 owner 可调用。
func (b *GridBook) RemoveManager(caller, manager models.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.RemoveManager(caller, manager)
}

// IsManager 判断地址是否为本账本管理员。
func (b *GridBook) IsManager(who models.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.IsManager(who)
}

func (b *GridBook) snapshotLocked() models.GridBookState {
	orders := make(map[uint64]*models.GridOrder, len(b.orders))
	for id, o := range b.orders {
		co := *o
		orders[id] = &co
	}
	return models.GridBookState{
		NextID:   b.nextID,
		Orders:   orders,
		Pool:     b.pool.Snapshot(),
		Managers: b.registry.Managers(),
	}
}

func (b *GridBook) restoreLocked(st models.GridBookState) {
	b.nextID = st.NextID
	if b.nextID == 0 {
		b.nextID = 1
	}
	b.orders = make(map[uint64]*models.GridOrder, len(st.Orders))
	for id, o := range st.Orders {
		co := *o
		b.orders[id] = &co
	}
	b.pool = pool.Restore(st.Pool)
	b.registry = restoreRegistry(b.registry, st.Managers)
}
