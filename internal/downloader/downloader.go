package downloader

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"sleepswap-engine/internal/models"

	"github.com/adshao/go-binance/v2"
)

// KlineDownloader 用于从币安下载K线数据，供模拟模式回放使用
type KlineDownloader struct {
	client *binance.Client
}

// NewKlineDownloader 创建一个新的下载器实例
func NewKlineDownloader() *KlineDownloader {
	return &KlineDownloader{
		client: binance.NewClient("", ""), // 公共接口不需要API Key
	}
}

// DownloadKlines 下载指定交易对和时间范围内的K线数据，并保存到CSV文件。
// 如果文件已存在，则会跳过下载，直接使用缓存。
func (d *KlineDownloader) DownloadKlines(symbol, interval, filePath string, startTime, endTime time.Time) error {
	if _, err := os.Stat(filePath); !os.IsNotExist(err) {
		fmt.Printf("从缓存加载数据: %s\n", filePath)
		return nil
	}

	fmt.Printf("开始下载 %s 从 %s 到 %s 的K线数据...\n", symbol, startTime.Format("2006-01-02"), endTime.Format("2006-01-02"))

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("无法创建目录 %s: %v", dir, err)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("无法创建文件 %s: %v", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"open_time", "open", "high", "low", "close", "volume", "close_time"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("写入CSV表头失败: %v", err)
	}

	for t := startTime; t.Before(endTime); {
		klines, err := d.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(t.UnixMilli()).
			Limit(1000). // 币安单次请求最多1000条
			Do(context.Background())

		if err != nil {
			return fmt.Errorf("下载K线数据失败: %v", err)
		}

		if len(klines) == 0 {
			break
		}

		for _, k := range klines {
			record := []string{
				fmt.Sprintf("%d", k.OpenTime),
				k.Open,
				k.High,
				k.Low,
				k.Close,
				k.Volume,
				fmt.Sprintf("%d", k.CloseTime),
			}
			if err := writer.Write(record); err != nil {
				return fmt.Errorf("写入CSV记录失败: %v", err)
			}
		}

		t = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
		fmt.Printf("已下载数据至 %s\n", t.Format("2006-01-02 15:04:05"))
		time.Sleep(200 * time.Millisecond) // 避免过于频繁的请求
	}

	fmt.Printf("成功下载K线数据到 %s\n", filePath)
	return nil
}

// LoadCandles 从CSV文件读取K线数据。
func LoadCandles(filePath string) ([]models.Candle, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("无法打开K线文件 %s: %v", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("读取K线文件失败: %v", err)
	}
	if len(records) <= 1 {
		return nil, fmt.Errorf("K线文件 %s 为空", filePath)
	}

	candles := make([]models.Candle, 0, len(records)-1)
	for i, rec := range records[1:] { // 跳过表头
		if len(rec) < 7 {
			return nil, fmt.Errorf("第 %d 行格式不正确", i+2)
		}
		openTime, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行 open_time 解析失败: %v", i+2, err)
		}
		closeTime, err := strconv.ParseInt(rec[6], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行 close_time 解析失败: %v", i+2, err)
		}
		open, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行 open 解析失败: %v", i+2, err)
		}
		high, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行 high 解析失败: %v", i+2, err)
		}
		low, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行 low 解析失败: %v", i+2, err)
		}
		closePrice, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行 close 解析失败: %v", i+2, err)
		}
		volume, err := strconv.ParseFloat(rec[5], 64)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行 volume 解析失败: %v", i+2, err)
		}
		candles = append(candles, models.Candle{
			OpenTime:  time.UnixMilli(openTime),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			CloseTime: time.UnixMilli(closeTime),
		})
	}
	return candles, nil
}
