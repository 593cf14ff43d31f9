package engine

import (
	"testing"
	"time"

	"sleepswap-engine/internal/accesscontrol"
	"sleepswap-engine/internal/models"
	"sleepswap-engine/internal/swap"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func investRsi(t *testing.T, f *fixture) models.RsiOrder {
	t.Helper()
	o, err := f.e.Rsi.Invest(alice, dec(100_000), dec(2), weth)
	require.NoError(t, err)
	return o
}

func TestRsiInvest(t *testing.T) {
	f := newFixture(t)
	o := investRsi(t, f)

	// half of 100000 is swapped at the entry price of 2:
	// fee 50000*5/10000 = 25, tokens (50000-25)/2 floors to 24987
	requireDecEq(t, dec(100_000), o.InvestedAmount)
	requireDecEq(t, dec(24_987), o.TokenBalance)
	requireDecEq(t, dec(50_000), o.FiatBalance)
	requireDecEq(t, dec(16_666), o.OrderFiats)  // 50000 / 3 slots
	requireDecEq(t, dec(8_329), o.OrderTokens)  // 24987 / 3 slots
	requireDecEq(t, dec(2), o.EntryPrice)
	assert.Equal(t, uint32(0), o.ExecutionStatus.BuyCount)
	assert.Equal(t, uint32(0), o.ExecutionStatus.SellCount)
	assert.Equal(t, models.StatusActive, o.Status)

	requireDecEq(t, dec(50_000), f.e.Rsi.PoolTokenBalance(stable))
	requireDecEq(t, dec(24_987), f.e.Rsi.PoolTokenBalance(weth))
	requireDecEq(t, dec(25), f.e.Rsi.Fee(stable))

	// the book's ledger account holds the retained stable plus the entry fee
	requireDecEq(t, dec(50_025), f.book.BalanceOf(stable, rsiBookAddr))
	requireDecEq(t, dec(24_987), f.book.BalanceOf(weth, rsiBookAddr))
}

func TestRsiInvestValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.e.Rsi.Invest(alice, dec(50), dec(2), weth)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = f.e.Rsi.Invest(alice, dec(100_000), dec(0), weth)
	assert.ErrorIs(t, err, swap.ErrZeroPrice)

	requireDecEq(t, dec(1_000_000_000), f.book.BalanceOf(stable, alice))
}

func TestRsiExecuteRequiresManager(t *testing.T) {
	f := newFixture(t)
	o := investRsi(t, f)

	_, err := f.e.Rsi.ExecuteOrders(alice, []uint64{o.ID}, 25, dec(2))
	assert.ErrorIs(t, err, accesscontrol.ErrUnauthorized)
}

func TestRsiNeutralReadingDoesNothing(t *testing.T) {
	f := newFixture(t)
	o := investRsi(t, f)

	execs, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 50, dec(2))
	require.NoError(t, err)
	assert.Empty(t, execs)

	got, err := f.e.Rsi.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), got.ExecutionStatus.BuyCount)
	assert.Equal(t, uint32(0), got.ExecutionStatus.SellCount)
}

func TestRsiOversoldBuys(t *testing.T) {
	f := newFixture(t)
	o := investRsi(t, f)

	execs, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 25, dec(2))
	require.NoError(t, err)
	require.Len(t, execs, 1)

	// one fiat slot of 16666: fee 8, (16666-8)/2 floors to 8329 tokens
	assert.Equal(t, models.SideBuy, execs[0].Side)
	requireDecEq(t, dec(16_666), execs[0].AmountIn)
	requireDecEq(t, dec(8_329), execs[0].AmountOut)
	requireDecEq(t, dec(8), execs[0].Fee)
	assert.Equal(t, stable, execs[0].FeeToken)
	assert.Equal(t, 25.0, execs[0].RSI)

	got, err := f.e.Rsi.Order(o.ID)
	require.NoError(t, err)
	requireDecEq(t, dec(33_334), got.FiatBalance)
	requireDecEq(t, dec(33_316), got.TokenBalance)
	assert.Equal(t, uint32(1), got.ExecutionStatus.BuyCount)
	assert.Equal(t, f.clock.Now(), got.LastBuyTime)

	requireDecEq(t, dec(33_334), f.e.Rsi.PoolTokenBalance(stable))
	requireDecEq(t, dec(33_316), f.e.Rsi.PoolTokenBalance(weth))
	requireDecEq(t, dec(33), f.e.Rsi.Fee(stable)) // 25 entry + 8
}

func TestRsiOverboughtSells(t *testing.T) {
	f := newFixture(t)
	o := investRsi(t, f)

	execs, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 72, dec(2))
	require.NoError(t, err)
	require.Len(t, execs, 1)

	// one token slot of 8329: fee 4 in tokens, (8329-4)*2 = 16650 stable
	assert.Equal(t, models.SideSell, execs[0].Side)
	requireDecEq(t, dec(8_329), execs[0].AmountIn)
	requireDecEq(t, dec(16_650), execs[0].AmountOut)
	requireDecEq(t, dec(4), execs[0].Fee)
	assert.Equal(t, weth, execs[0].FeeToken)

	got, err := f.e.Rsi.Order(o.ID)
	require.NoError(t, err)
	requireDecEq(t, dec(66_650), got.FiatBalance)  // 50000 + 16650
	requireDecEq(t, dec(16_658), got.TokenBalance) // 24987 - 8329
	assert.Equal(t, uint32(1), got.ExecutionStatus.SellCount)

	requireDecEq(t, dec(4), f.e.Rsi.Fee(weth))
}

func TestRsiFlipGate(t *testing.T) {
	f := newFixture(t)
	o := investRsi(t, f)

	_, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 25, dec(2))
	require.NoError(t, err)

	// a sell right after a buy is suppressed until the gap passes
	execs, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 72, dec(2))
	require.NoError(t, err)
	assert.Empty(t, execs)

	f.clock.Advance(8 * time.Hour)
	execs, err = f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 72, dec(2))
	require.NoError(t, err)
	require.Len(t, execs, 1)
	assert.Equal(t, models.SideSell, execs[0].Side)
}

func TestRsiSideCaps(t *testing.T) {
	f := newFixture(t)
	o := investRsi(t, f)

	for i := 0; i < 3; i++ {
		execs, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 25, dec(2))
		require.NoError(t, err)
		require.Len(t, execs, 1, "buy %d", i+1)
	}

	// the buy side is exhausted; further oversold readings are ignored
	execs, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 25, dec(2))
	require.NoError(t, err)
	assert.Empty(t, execs)

	got, err := f.e.Rsi.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got.ExecutionStatus.BuyCount)
	assert.Equal(t, models.StatusActive, got.Status)
}

func TestRsiCompletesAfterBothSides(t *testing.T) {
	f := newFixture(t)
	o := investRsi(t, f)

	for i := 0; i < 3; i++ {
		_, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 25, dec(2))
		require.NoError(t, err)
	}
	f.clock.Advance(8 * time.Hour)
	for i := 0; i < 3; i++ {
		execs, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 72, dec(2))
		require.NoError(t, err)
		require.Len(t, execs, 1, "sell %d", i+1)
	}

	got, err := f.e.Rsi.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), got.ExecutionStatus.BuyCount)
	assert.Equal(t, uint32(3), got.ExecutionStatus.SellCount)
	assert.Equal(t, models.StatusCompleted, got.Status)

	// a completed order ignores further readings
	execs, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 25, dec(2))
	require.NoError(t, err)
	assert.Empty(t, execs)
}

func TestRsiWithdraw(t *testing.T) {
	f := newFixture(t)
	o := investRsi(t, f)
	_, err := f.e.Rsi.ExecuteOrders(deployer, []uint64{o.ID}, 25, dec(2))
	require.NoError(t, err)

	// only the owner may withdraw
	assert.ErrorIs(t, f.e.Rsi.WithdrawByOrderID(bob, o.ID), ErrForbidden)

	require.NoError(t, f.e.Rsi.WithdrawByOrderID(alice, o.ID))

	got, err := f.e.Rsi.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
	requireDecEq(t, dec(0), got.FiatBalance)
	requireDecEq(t, dec(0), got.TokenBalance)
	// execution history is preserved through the withdrawal
	assert.Equal(t, uint32(1), got.ExecutionStatus.BuyCount)

	requireDecEq(t, dec(1_000_000_000-100_000+33_334), f.book.BalanceOf(stable, alice))
	requireDecEq(t, dec(33_316), f.book.BalanceOf(weth, alice))
	requireDecEq(t, dec(0), f.e.Rsi.PoolTokenBalance(stable))
	requireDecEq(t, dec(0), f.e.Rsi.PoolTokenBalance(weth))

	assert.ErrorIs(t, f.e.Rsi.WithdrawByOrderID(alice, o.ID), ErrOrderClosed)
}

func TestRsiWithdrawUnknownOrder(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.e.Rsi.WithdrawByOrderID(alice, 7), ErrOrderNotFound)
}
