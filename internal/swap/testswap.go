package swap

import (
	"fmt"
	"sync"

	"sleepswap-engine/internal/ledger"
	"sleepswap-engine/internal/models"

	"github.com/shopspring/decimal"
)

// TestSwap 实现了 Adapter 接口，模拟一个简化的兑换路由器。
// 它没有自己的定价模型：按调用方提供的价格成交，库存从账本中的自有账户扣付。
type TestSwap struct {
	addr   models.Address
	stable string
	book   *ledger.Ledger
	mu     sync.Mutex
}

// NewTestSwap 创建一个空库存的模拟路由器。
func NewTestSwap(addr models.Address, stable string, book *ledger.Ledger) *TestSwap {
	return &TestSwap{addr: addr, stable: stable, book: book}
}

// Address 返回路由器的资金账户地址。
func (s *TestSwap) Address() models.Address { return s.addr }

// DepositLiquidity 向路由器注入库存，仅用于部署与测试夹具。
func (s *TestSwap) DepositLiquidity(from models.Address, token string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.book.Transfer(token, from, s.addr, amount); err != nil {
		return fmt.Errorf("deposit liquidity: %w", err)
	}
	return nil
}

// WithdrawLiquidity 从路由器取回库存。
func (s *TestSwap) WithdrawLiquidity(to models.Address, token string, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.book.Transfer(token, s.addr, to, amount); err != nil {
		return fmt.Errorf("withdraw liquidity: %w", err)
	}
	return nil
}

// Quote 按调用方价格报价，不触碰库存。
func (s *TestSwap) Quote(amount, price decimal.Decimal, side models.Side) (decimal.Decimal, error) {
	return Quote(amount, price, side)
}

// Swap 执行兑换：买入时路由器收稳定币付代币，卖出时相反。
// 输出侧库存不足则整体失败，资金不发生任何移动。
func (s *TestSwap) Swap(counterparty models.Address, token string, amount, price decimal.Decimal, side models.Side) (decimal.Decimal, error) {
	out, err := Quote(amount, price, side)
	if err != nil {
		return decimal.Zero, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	inToken, outToken := s.stable, token
	if side == models.SideSell {
		inToken, outToken = token, s.stable
	}

	if s.book.BalanceOf(outToken, s.addr).LessThan(out) {
		return decimal.Zero, fmt.Errorf("%w: need %s %s", ErrInsufficientLiquidity, out, outToken)
	}
	if err := s.book.Transfer(inToken, counterparty, s.addr, amount); err != nil {
		return decimal.Zero, fmt.Errorf("swap pay-in: %w", err)
	}
	if err := s.book.Transfer(outToken, s.addr, counterparty, out); err != nil {
		// pay-in 已成功，出腿不可能再因余额不足失败；任何错误都属于内部不变量被破坏
		return decimal.Zero, fmt.Errorf("swap pay-out: %w", err)
	}
	return out, nil
}

// Liquidity 返回路由器在指定代币上的库存。
func (s *TestSwap) Liquidity(token string) decimal.Decimal {
	return s.book.BalanceOf(token, s.addr)
}
