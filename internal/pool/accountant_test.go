package pool

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(i int64) decimal.Decimal { return decimal.NewFromInt(i) }

func TestAccountantBalances(t *testing.T) {
	a := NewAccountant()

	a.CreditStable(d(100))
	a.DebitStable(d(20))
	a.CreditToken("SLEEP", d(19))
	a.AddFee("USDT", d(1))

	assert.True(t, a.StableBalance().Equal(d(80)))
	assert.True(t, a.TokenBalance("SLEEP").Equal(d(19)))
	assert.True(t, a.TokenBalance("BTC").IsZero())
	assert.True(t, a.Fee("USDT").Equal(d(1)))
	assert.True(t, a.Fee("SLEEP").IsZero())
}

func TestFeeMonotonic(t *testing.T) {
	a := NewAccountant()
	prev := decimal.Zero
	for i := 0; i < 10; i++ {
		a.AddFee("USDT", d(3))
		assert.True(t, a.Fee("USDT").GreaterThan(prev))
		prev = a.Fee("USDT")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	a := NewAccountant()
	a.CreditStable(d(500))
	a.CreditToken("SLEEP", d(42))
	a.AddFee("SLEEP", d(7))

	restored := Restore(a.Snapshot())
	assert.True(t, restored.StableBalance().Equal(d(500)))
	assert.True(t, restored.TokenBalance("SLEEP").Equal(d(42)))
	assert.True(t, restored.Fee("SLEEP").Equal(d(7)))

	// 快照是深拷贝：改动原件不影响快照恢复出的对象
	a.CreditToken("SLEEP", d(1))
	assert.True(t, restored.TokenBalance("SLEEP").Equal(d(42)))
}
