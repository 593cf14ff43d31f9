package swap

import (
	"errors"

	"sleepswap-engine/internal/models"

	"github.com/shopspring/decimal"
)

var (
	// ErrZeroPrice 表示以非正价格调用了兑换。
	ErrZeroPrice = errors.New("swap: non-positive price")
	// ErrInsufficientLiquidity 表示路由器无法吃下本次兑换。
	ErrInsufficientLiquidity = errors.New("swap: insufficient liquidity")
)

// Adapter 定义了兑换路由器必须提供的通用方法。
// 引擎通过它在稳定币与目标代币之间转换，价格由调用方提供，不做滑点模型。
type Adapter interface {
	// Quote 是纯函数：给定输入数量与价格，返回输出数量。
	Quote(amount, price decimal.Decimal, side models.Side) (decimal.Decimal, error)

	// Swap 执行一次兑换并结算账本资金。counterparty 为引擎侧的资金账户。
	Swap(counterparty models.Address, token string, amount, price decimal.Decimal, side models.Side) (decimal.Decimal, error)

	// Liquidity 返回路由器当前在指定代币上的可用库存。
	Liquidity(token string) decimal.Decimal
}

// Quote 计算兑换输出：买入为 amount/price，卖出为 amount*price，结果向下取整，
// 与链上整数除法语义一致。
func Quote(amount, price decimal.Decimal, side models.Side) (decimal.Decimal, error) {
	if !price.IsPositive() {
		return decimal.Zero, ErrZeroPrice
	}
	if side == models.SideSell {
		return amount.Mul(price).Floor(), nil
	}
	return amount.Div(price).Floor(), nil
}
