package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"sleepswap-engine/internal/logger"
	"sleepswap-engine/internal/models"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

// Feed 是行情源的通用接口：启动后持续往 Ticks 通道推送价格更新。
// 实时模式用 WebSocket 源，模拟模式用K线回放源。
type Feed interface {
	// Ticks 返回价格更新通道。源停止后通道会被关闭。
	Ticks() <-chan models.PriceTick

	// Start 启动行情源。
	Start() error

	// Stop 停止行情源并关闭通道。
	Stop()
}

// wsTickerMessage 是交易所 miniTicker 流的消息结构。
type wsTickerMessage struct {
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	Close     string `json:"c"`
}

// WsFeed 通过 WebSocket 订阅交易所的 miniTicker 流。
// 连接断开后自动重连，直到 Stop 被调用。
type WsFeed struct {
	baseURL  string
	symbol   string
	ticks    chan models.PriceTick
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewWsFeed 创建一个 WebSocket 行情源。baseURL 形如 wss://stream.binance.com:9443。
func NewWsFeed(baseURL, symbol string) *WsFeed {
	return &WsFeed{
		baseURL:  baseURL,
		symbol:   symbol,
		ticks:    make(chan models.PriceTick, 256),
		stopChan: make(chan struct{}),
	}
}

// Ticks 返回价格更新通道。
func (f *WsFeed) Ticks() <-chan models.PriceTick { return f.ticks }

// Start 建立连接并启动读取循环。
func (f *WsFeed) Start() error {
	conn, err := f.dial()
	if err != nil {
		return err
	}
	f.setConn(conn)
	f.wg.Add(1)
	go f.readLoop(conn)
	return nil
}

// Stop 停止行情源。阻塞到读取循环退出、通道关闭为止。
func (f *WsFeed) Stop() {
	close(f.stopChan)
	f.mu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.mu.Unlock()
	f.wg.Wait()
}

func (f *WsFeed) setConn(conn *websocket.Conn) {
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
}

func (f *WsFeed) dial() (*websocket.Conn, error) {
	wsURL := fmt.Sprintf("%s/ws/%s@miniTicker", f.baseURL, strings.ToLower(f.symbol))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("无法连接到行情 WebSocket: %v", err)
	}
	return conn, nil
}

func (f *WsFeed) readLoop(conn *websocket.Conn) {
	defer f.wg.Done()
	defer close(f.ticks)

	for {
		select {
		case <-f.stopChan:
			conn.Close()
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			select {
			case <-f.stopChan:
				return
			default:
			}
			logger.S().Warnf("行情连接中断，5秒后重连: %v", err)
			if conn = f.reconnect(); conn == nil {
				return
			}
			f.setConn(conn)
			continue
		}

		var msg wsTickerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.S().Warnf("无法解析行情消息: %v", err)
			continue
		}
		price, err := decimal.NewFromString(msg.Close)
		if err != nil || !price.IsPositive() {
			continue
		}

		tick := models.PriceTick{
			Symbol: msg.Symbol,
			Price:  price,
			Time:   time.UnixMilli(msg.EventTime),
		}
		select {
		case f.ticks <- tick:
		case <-f.stopChan:
			conn.Close()
			return
		}
	}
}

// reconnect 以固定间隔重试，直到连上或收到停止信号。
func (f *WsFeed) reconnect() *websocket.Conn {
	for {
		select {
		case <-f.stopChan:
			return nil
		case <-time.After(5 * time.Second):
		}
		conn, err := f.dial()
		if err != nil {
			logger.S().Warnf("重连失败: %v", err)
			continue
		}
		logger.S().Info("行情连接已恢复")
		return conn
	}
}

// ReplayFeed 按顺序回放历史K线的收盘价，用于模拟模式。
type ReplayFeed struct {
	symbol   string
	candles  []models.Candle
	ticks    chan models.PriceTick
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewReplayFeed 用一段历史K线创建回放源。
func NewReplayFeed(symbol string, candles []models.Candle) *ReplayFeed {
	return &ReplayFeed{
		symbol:   symbol,
		candles:  candles,
		ticks:    make(chan models.PriceTick, 256),
		stopChan: make(chan struct{}),
	}
}

// Ticks 返回价格更新通道。全部K线回放完后通道关闭。
func (f *ReplayFeed) Ticks() <-chan models.PriceTick { return f.ticks }

// Start 启动回放。
func (f *ReplayFeed) Start() error {
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer close(f.ticks)
		for _, c := range f.candles {
			tick := models.PriceTick{
				Symbol: f.symbol,
				Price:  decimal.NewFromFloat(c.Close),
				Time:   c.CloseTime,
			}
			select {
			case f.ticks <- tick:
			case <-f.stopChan:
				return
			}
		}
	}()
	return nil
}

// Stop 中止回放。
func (f *ReplayFeed) Stop() {
	close(f.stopChan)
	f.wg.Wait()
}
