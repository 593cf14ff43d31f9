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

// RsiBook 是 RSI 波段策略账本：建仓时一半本金换成目标代币，
// 之后超卖买入、超买卖出，每侧最多 grids 次。
// 本账本的稳定币余额记在资金池的代币表里，与另外两个账本不同。
type RsiBook struct {
	bookCore
	minInvestment decimal.Decimal
	grids         uint32
	flipGap       time.Duration
	oversold      float64
	overbought    float64
	orders        map[uint64]*models.RsiOrder
}

// Invest 建仓：一半本金按入场价立刻换成目标代币，剩余保留为稳定币余额。
// 路由器库存在划转本金前校验，失败时用户资金不动。
func (b *RsiBook) Invest(caller models.Address, amount, entryPrice decimal.Decimal, token string) (models.RsiOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if amount.LessThan(b.minInvestment) {
		return models.RsiOrder{}, fmt.Errorf("%w: got %s, min %s", ErrInvalidAmount, amount, b.minInvestment)
	}
	if !entryPrice.IsPositive() {
		return models.RsiOrder{}, swap.ErrZeroPrice
	}

	half := amount.Div(decimal.NewFromInt(2)).Floor()
	fee := b.feeOn(half)
	net := half.Sub(fee)
	tokens, err := b.router.Quote(net, entryPrice, models.SideBuy)
	if err != nil {
		return models.RsiOrder{}, err
	}
	if b.router.Liquidity(token).LessThan(tokens) {
		return models.RsiOrder{}, fmt.Errorf("%w: token %s", swap.ErrInsufficientLiquidity, token)
	}

	if err := b.ledger.Transfer(b.stable, caller, b.addr, amount); err != nil {
		return models.RsiOrder{}, fmt.Errorf("invest transfer: %w", err)
	}
	tokens, err = b.router.Swap(b.addr, token, net, entryPrice, models.SideBuy)
	if err != nil {
		return models.RsiOrder{}, fmt.Errorf("rsi entry swap invariant broken: %w", err)
	}

	retained := amount.Sub(half)
	grids := decimal.NewFromInt(int64(b.grids))
	id := b.assignID()
	o := &models.RsiOrder{
		ID:             id,
		Ref:            orderRef(models.StrategyRSI, id),
		Owner:          caller,
		Token:          token,
		InvestedAmount: amount,
		OrderTokens:    tokens.Div(grids).Floor(),
		OrderFiats:     retained.Div(grids).Floor(),
		TokenBalance:   tokens,
		FiatBalance:    retained,
		EntryPrice:     entryPrice,
		Status:         models.StatusActive,
		CreatedAt:      b.now(),
	}
	b.orders[id] = o

	b.pool.CreditToken(b.stable, retained)
	b.pool.CreditToken(token, tokens)
	b.pool.AddFee(b.stable, fee)

	b.log.Infow("rsi order created",
		"ref", o.Ref, "owner", caller, "token", token,
		"invested", amount, "entryPrice", entryPrice,
		"tokenBalance", tokens, "fiatBalance", retained,
		"orderTokens", o.OrderTokens, "orderFiats", o.OrderFiats)
	co := *o
	return co, nil
}

type rsiStep struct {
	o    *models.RsiOrder
	side models.Side
	in   decimal.Decimal
	fee  decimal.Decimal
	net  decimal.Decimal
	out  decimal.Decimal
}

// ExecuteOrders 根据 RSI 读数推进批次：超卖买入一份稳定币，超买卖出一份代币。
// 读数落在中间带时整个批次无事发生。方向切换需间隔 flipGap，防止指标抖动来回打。
func (b *RsiBook) ExecuteOrders(caller models.Address, ids []uint64, rsi float64, price decimal.Decimal) ([]models.Execution, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.requireManager(caller); err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, swap.ErrZeroPrice
	}

	var side models.Side
	switch {
	case rsi <= b.oversold:
		side = models.SideBuy
	case rsi >= b.overbought:
		side = models.SideSell
	default:
		return nil, nil
	}

	now := b.now()
	var plan []rsiStep
	need := map[string]decimal.Decimal{}
	seen := map[uint64]bool{}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		o, ok := b.orders[id]
		if !ok || !o.Status.Open() {
			continue
		}

		var in decimal.Decimal
		if side == models.SideBuy {
			if o.ExecutionStatus.BuyCount >= b.grids || o.FiatBalance.LessThan(o.OrderFiats) || o.OrderFiats.IsZero() {
				continue
			}
			if !o.LastSellTime.IsZero() && now.Sub(o.LastSellTime) < b.flipGap {
				continue
			}
			in = o.OrderFiats
		} else {
			if o.ExecutionStatus.SellCount >= b.grids || o.TokenBalance.LessThan(o.OrderTokens) || o.OrderTokens.IsZero() {
				continue
			}
			if !o.LastBuyTime.IsZero() && now.Sub(o.LastBuyTime) < b.flipGap {
				continue
			}
			in = o.OrderTokens
		}

		fee := b.feeOn(in)
		net := in.Sub(fee)
		out, err := b.router.Quote(net, price, side)
		if err != nil {
			return nil, err
		}
		if side == models.SideBuy {
			need[o.Token] = need[o.Token].Add(out)
		} else {
			need[b.stable] = need[b.stable].Add(out)
		}
		plan = append(plan, rsiStep{o: o, side: side, in: in, fee: fee, net: net, out: out})
	}
	for token, total := range need {
		if b.router.Liquidity(token).LessThan(total) {
			return nil, fmt.Errorf("%w: token %s", swap.ErrInsufficientLiquidity, token)
		}
	}

	execs := make([]models.Execution, 0, len(plan))
	for _, s := range plan {
		out, err := b.router.Swap(b.addr, s.o.Token, s.net, price, s.side)
		if err != nil {
			return nil, fmt.Errorf("rsi swap invariant broken: %w", err)
		}

		feeToken := b.stable
		if s.side == models.SideBuy {
			s.o.FiatBalance = s.o.FiatBalance.Sub(s.in)
			s.o.TokenBalance = s.o.TokenBalance.Add(out)
			s.o.ExecutionStatus.BuyCount++
			s.o.LastBuyTime = now

			b.pool.DebitToken(b.stable, s.in)
			b.pool.CreditToken(s.o.Token, out)
			b.pool.AddFee(b.stable, s.fee)
		} else {
			s.o.TokenBalance = s.o.TokenBalance.Sub(s.in)
			s.o.FiatBalance = s.o.FiatBalance.Add(out)
			s.o.ExecutionStatus.SellCount++
			s.o.LastSellTime = now
			feeToken = s.o.Token

			b.pool.DebitToken(s.o.Token, s.in)
			b.pool.CreditToken(b.stable, out)
			b.pool.AddFee(s.o.Token, s.fee)
		}
		if s.o.ExecutionStatus.BuyCount >= b.grids && s.o.ExecutionStatus.SellCount >= b.grids {
			s.o.Status = models.StatusCompleted
		}

		execs = append(execs, models.Execution{
			Strategy:  models.StrategyRSI,
			OrderID:   s.o.ID,
			Ref:       s.o.Ref,
			Side:      s.side,
			AmountIn:  s.in,
			AmountOut: out,
			Fee:       s.fee,
			FeeToken:  feeToken,
			Price:     price,
			RSI:       rsi,
			Time:      now,
		})
		b.log.Infow("rsi step executed",
			"ref", s.o.Ref, "side", s.side, "rsi", rsi,
			"in", s.in, "out", out, "fee", s.fee, "price", price,
			"buys", s.o.ExecutionStatus.BuyCount, "sells", s.o.ExecutionStatus.SellCount)
	}
	return execs, nil
}

// WithdrawByOrderID 将订单的稳定币与代币余额一次性转回所有者。
// 买卖计数保留不清零，订单历史可追溯。
func (b *RsiBook) WithdrawByOrderID(caller models.Address, id uint64) error {
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

	if err := b.ledger.Transfer(b.stable, b.addr, o.Owner, o.FiatBalance); err != nil {
		return fmt.Errorf("withdraw stable: %w", err)
	}
	if err := b.ledger.Transfer(o.Token, b.addr, o.Owner, o.TokenBalance); err != nil {
		return fmt.Errorf("withdraw token: %w", err)
	}

	b.pool.DebitToken(b.stable, o.FiatBalance)
	b.pool.DebitToken(o.Token, o.TokenBalance)

	if o.Status == models.StatusCompleted {
		o.Status = models.StatusWithdrawn
	} else {
		o.Status = models.StatusCancelled
	}
	b.log.Infow("rsi order withdrawn",
		"ref", o.Ref, "stable", o.FiatBalance, "token", o.TokenBalance, "status", o.Status)
	o.FiatBalance = decimal.Zero
	o.TokenBalance = decimal.Zero
	return nil
}

// Order 返回订单快照；未知订单号返回 ErrOrderNotFound。
func (b *RsiBook) Order(id uint64) (models.RsiOrder, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.orders[id]
	if !ok {
		return models.RsiOrder{}, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
	}
	co := *o
	return co, nil
}

// OpenOrderIDs 返回所有可继续执行的订单号，升序。
func (b *RsiBook) OpenOrderIDs() []uint64 {
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

// PoolTokenBalance 返回资金池某代币托管总额。稳定币余额也从这里查。
func (b *RsiBook) PoolTokenBalance(token string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool.TokenBalance(token)
}

// Fee 返回某代币计价的累计手续费。
func (b *RsiBook) Fee(token string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pool.Fee(token)
}

// AddManager 添加管理员，仅 owner 可调用。
func (b *RsiBook) AddManager(caller, manager models.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.AddManager(caller, manager)
}

// RemoveManager 移除管理员，仅 owner 可调用。
func (b *RsiBook) RemoveManager(caller, manager models.Address) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.RemoveManager(caller, manager)
}

// IsManager 判断地址是否为本账本管理员。
func (b *RsiBook) IsManager(who models.Address) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.IsManager(who)
}

func (b *RsiBook) snapshotLocked() models.RsiBookState {
	orders := make(map[uint64]*models.RsiOrder, len(b.orders))
	for id, o := range b.orders {
		co := *o
		orders[id] = &co
	}
	return models.RsiBookState{
		NextID:   b.nextID,
		Orders:   orders,
		Pool:     b.pool.Snapshot(),
		Managers: b.registry.Managers(),
	}
}

func (b *RsiBook) restoreLocked(st models.RsiBookState) {
	b.nextID = st.NextID
	if b.nextID == 0 {
		b.nextID = 1
	}
	b.orders = make(map[uint64]*models.RsiOrder, len(st.Orders))
	for id, o := range st.Orders {
		co := *o
		b.orders[id] = &co
	}
	b.pool = pool.Restore(st.Pool)
	b.registry = restoreRegistry(b.registry, st.Managers)
}
