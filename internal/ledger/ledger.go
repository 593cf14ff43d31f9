package ledger

import (
	"errors"
	"fmt"
	"sync"

	"sleepswap-engine/internal/models"

	"github.com/shopspring/decimal"
)

// ErrInsufficientFunds 表示转账方余额不足。
var ErrInsufficientFunds = errors.New("ledger: insufficient funds")

// Ledger 是一个内存中的多币种账本，模拟标准同质化代币的转账语义。
// 引擎与路由器的所有资金进出都经过它，便于测试中核对守恒关系。
type Ledger struct {
	mu       sync.Mutex
	balances map[string]map[models.Address]decimal.Decimal // token -> account -> balance
}

// NewLedger 创建一个空账本。
func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[string]map[models.Address]decimal.Decimal),
	}
}

// Mint 向账户增发代币，仅用于初始化与测试夹具。
func (l *Ledger) Mint(token string, to models.Address, amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(token, to, amount)
}

// Transfer 在两个账户之间转移代币，余额不足时整体失败。
func (l *Ledger) Transfer(token string, from, to models.Address, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("ledger: negative transfer amount %s", amount)
	}
	if amount.IsZero() {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceLocked(token, from)
	if bal.LessThan(amount) {
		return fmt.Errorf("%w: %s has %s %s, need %s", ErrInsufficientFunds, from, bal, token, amount)
	}
	l.balances[token][from] = bal.Sub(amount)
	l.credit(token, to, amount)
	return nil
}

// BalanceOf 返回账户在指定代币上的余额。
func (l *Ledger) BalanceOf(token string, who models.Address) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceLocked(token, who)
}

func (l *Ledger) balanceLocked(token string, who models.Address) decimal.Decimal {
	if accounts, ok := l.balances[token]; ok {
		if bal, ok := accounts[who]; ok {
			return bal
		}
	}
	return decimal.Zero
}

func (l *Ledger) credit(token string, to models.Address, amount decimal.Decimal) {
	accounts, ok := l.balances[token]
	if !ok {
		accounts = make(map[models.Address]decimal.Decimal)
		l.balances[token] = accounts
	}
	accounts[to] = accounts[to].Add(amount)
}
