package swap

import (
	"testing"

	"sleepswap-engine/internal/ledger"
	"sleepswap-engine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func newRouter(t *testing.T) (*TestSwap, *ledger.Ledger) {
	t.Helper()
	book := ledger.NewLedger()
	router := NewTestSwap("router", "USDT", book)

	book.Mint("USDT", "deployer", dec("100000"))
	book.Mint("SLEEP", "deployer", dec("100000"))
	require.NoError(t, router.DepositLiquidity("deployer", "USDT", dec("10000")))
	require.NoError(t, router.DepositLiquidity("deployer", "SLEEP", dec("10000")))
	return router, book
}

func TestQuote(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		price  string
		side   models.Side
		want   string
	}{
		{"buy divides by price", "100", "10", models.SideBuy, "10"},
		{"buy floors", "100", "3", models.SideBuy, "33"},
		{"sell multiplies by price", "10", "15", models.SideSell, "150"},
		{"sell floors fractional price", "33", "0.4", models.SideSell, "13"},
		{"price of one is identity", "20", "1", models.SideBuy, "20"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Quote(dec(tt.amount), dec(tt.price), tt.side)
			require.NoError(t, err)
			assert.True(t, out.Equal(dec(tt.want)), "got %s want %s", out, tt.want)
		})
	}
}

func TestQuoteZeroPrice(t *testing.T) {
	_, err := Quote(dec("100"), decimal.Zero, models.SideBuy)
	require.ErrorIs(t, err, ErrZeroPrice)

	_, err = Quote(dec("100"), dec("-5"), models.SideSell)
	require.ErrorIs(t, err, ErrZeroPrice)
}

func TestSwapBuyMovesFunds(t *testing.T) {
	router, book := newRouter(t)
	book.Mint("USDT", "pool", dec("500"))

	out, err := router.Swap("pool", "SLEEP", dec("100"), dec("10"), models.SideBuy)
	require.NoError(t, err)
	assert.True(t, out.Equal(dec("10")))

	assert.True(t, book.BalanceOf("USDT", "pool").Equal(dec("400")))
	assert.True(t, book.BalanceOf("SLEEP", "pool").Equal(dec("10")))
	assert.True(t, router.Liquidity("USDT").Equal(dec("10100")))
	assert.True(t, router.Liquidity("SLEEP").Equal(dec("9990")))
}

func TestSwapSellMovesFunds(t *testing.T) {
	router, book := newRouter(t)
	book.Mint("SLEEP", "pool", dec("50"))

	out, err := router.Swap("pool", "SLEEP", dec("50"), dec("15"), models.SideSell)
	require.NoError(t, err)
	assert.True(t, out.Equal(dec("750")))

	assert.True(t, book.BalanceOf("SLEEP", "pool").IsZero())
	assert.True(t, book.BalanceOf("USDT", "pool").Equal(dec("750")))
}

func TestSwapInsufficientLiquidity(t *testing.T) {
	router, book := newRouter(t)
	book.Mint("USDT", "pool", dec("1000000"))

	// 路由器只有 10000 SLEEP 库存
	_, err := router.Swap("pool", "SLEEP", dec("1000000"), dec("1"), models.SideBuy)
	require.ErrorIs(t, err, ErrInsufficientLiquidity)

	// 失败的兑换不得移动资金
	assert.True(t, book.BalanceOf("USDT", "pool").Equal(dec("1000000")))
	assert.True(t, book.BalanceOf("SLEEP", "pool").IsZero())
}
