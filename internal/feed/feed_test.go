package feed

import (
	"testing"
	"time"

	"sleepswap-engine/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayFeedEmitsAllCandles(t *testing.T) {
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	candles := []models.Candle{
		{Close: 100.5, CloseTime: base},
		{Close: 101.25, CloseTime: base.Add(time.Hour)},
		{Close: 99.0, CloseTime: base.Add(2 * time.Hour)},
	}

	f := NewReplayFeed("ETHUSDT", candles)
	require.NoError(t, f.Start())

	var got []models.PriceTick
	for tick := range f.Ticks() {
		got = append(got, tick)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "ETHUSDT", got[0].Symbol)
	assert.True(t, got[0].Price.Equal(decimal.NewFromFloat(100.5)))
	assert.Equal(t, base.Add(2*time.Hour), got[2].Time)
}

func TestReplayFeedStopInterruptsReplay(t *testing.T) {
	candles := make([]models.Candle, 10_000)
	for i := range candles {
		candles[i] = models.Candle{Close: 100, CloseTime: time.Now()}
	}

	f := NewReplayFeed("ETHUSDT", candles)
	require.NoError(t, f.Start())

	<-f.Ticks()
	f.Stop()

	// the channel gets closed even though the replay was cut short
	for range f.Ticks() {
	}
}
