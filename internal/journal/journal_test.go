package journal

import (
	"path/filepath"
	"testing"
	"time"

	"sleepswap-engine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testExecution(orderID uint64, side models.Side) models.Execution {
	return models.Execution{
		Strategy:  models.StrategyGrid,
		OrderID:   orderID,
		Ref:       "GRID-1",
		Side:      side,
		AmountIn:  decimal.NewFromInt(20_000),
		AmountOut: decimal.NewFromInt(19_990),
		Fee:       decimal.NewFromInt(10),
		FeeToken:  "USDT",
		Price:     decimal.NewFromInt(1),
		Time:      time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestRecordAndQueryExecution(t *testing.T) {
	db, err := InitDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer db.Close()

	e := testExecution(1, models.SideBuy)
	require.NoError(t, RecordExecution(db, &e))

	got, err := ExecutionsByOrder(db, models.StrategyGrid, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, models.StrategyGrid, got[0].Strategy)
	assert.Equal(t, models.SideBuy, got[0].Side)
	assert.True(t, got[0].AmountIn.Equal(decimal.NewFromInt(20_000)))
	assert.True(t, got[0].Fee.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, e.Time, got[0].Time)
}

func TestRecordBatchIsAtomic(t *testing.T) {
	db, err := InitDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer db.Close()

	batch := []models.Execution{
		testExecution(1, models.SideBuy),
		testExecution(1, models.SideBuy),
		testExecution(2, models.SideBuy),
	}
	require.NoError(t, RecordExecutions(db, batch))

	count, err := CountExecutions(db, models.StrategyGrid)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// empty batches are a no-op
	require.NoError(t, RecordExecutions(db, nil))
}

func TestRecentExecutionsNewestFirst(t *testing.T) {
	db, err := InitDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer db.Close()

	first := testExecution(1, models.SideBuy)
	second := testExecution(2, models.SideSell)
	require.NoError(t, RecordExecution(db, &first))
	require.NoError(t, RecordExecution(db, &second))

	got, err := RecentExecutions(db, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(2), got[0].OrderID)
}

func TestOrderEventsInsertionOrder(t *testing.T) {
	db, err := InitDB(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer db.Close()

	at := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, RecordOrderEvent(db, models.StrategyDCA, 7, "DCA-7", "CREATED", at))
	require.NoError(t, RecordOrderEvent(db, models.StrategyDCA, 7, "DCA-7", "COMPLETED", at.Add(72*time.Hour)))
	// events of another order must not leak in
	require.NoError(t, RecordOrderEvent(db, models.StrategyDCA, 8, "DCA-8", "CREATED", at))

	events, err := OrderEvents(db, models.StrategyDCA, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"CREATED", "COMPLETED"}, events)

	events, err = OrderEvents(db, models.StrategyGrid, 7)
	require.NoError(t, err)
	assert.Empty(t, events)
}
