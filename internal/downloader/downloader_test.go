package downloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCandles(t *testing.T) {
	csvData := "open_time,open,high,low,close,volume,close_time\n" +
		"1714521600000,100.0,101.5,99.5,101.0,1234.5,1714525199999\n" +
		"1714525200000,101.0,102.0,100.0,100.5,987.6,1714528799999\n"
	path := filepath.Join(t.TempDir(), "klines.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0644))

	candles, err := LoadCandles(path)
	require.NoError(t, err)
	require.Len(t, candles, 2)

	assert.Equal(t, time.UnixMilli(1714521600000), candles[0].OpenTime)
	assert.Equal(t, 101.0, candles[0].Close)
	assert.Equal(t, 100.5, candles[1].Close)
	assert.Equal(t, 987.6, candles[1].Volume)
}

func TestLoadCandlesEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "klines.csv")
	require.NoError(t, os.WriteFile(path, []byte("open_time,open,high,low,close,volume,close_time\n"), 0644))

	_, err := LoadCandles(path)
	assert.Error(t, err)
}

func TestLoadCandlesMalformedRow(t *testing.T) {
	csvData := "open_time,open,high,low,close,volume,close_time\n" +
		"not-a-number,100.0,101.5,99.5,101.0,1234.5,1714525199999\n"
	path := filepath.Join(t.TempDir(), "klines.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvData), 0644))

	_, err := LoadCandles(path)
	assert.Error(t, err)
}
