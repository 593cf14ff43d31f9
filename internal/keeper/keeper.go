package keeper

import (
	"database/sql"
	"sync"
	"time"

	"sleepswap-engine/internal/engine"
	"sleepswap-engine/internal/feed"
	"sleepswap-engine/internal/journal"
	"sleepswap-engine/internal/logger"
	"sleepswap-engine/internal/models"
	"sleepswap-engine/internal/persistence"

	talib "github.com/markcheno/go-talib"
)

// maxCloseWindow 限制 RSI 计算窗口的长度，超出的最旧样本被丢弃。
const maxCloseWindow = 512

// Keeper 是执行守护进程：消费行情源的价格更新，替所有到期订单
// 调用三个策略账本的批量执行，把执行流水写进日志库，并异步持久化引擎快照。
// 它对应链上由链外守护者定期调用合约的角色。
type Keeper struct {
	engine    *engine.Engine
	feed      feed.Feed
	repo      persistence.StateRepository // 可为 nil：不做快照持久化
	journalDB *sql.DB                     // 可为 nil：不记执行流水
	addr      models.Address
	rsiPeriod int
	interval  time.Duration // 两次执行批次的最小间隔，0 表示逐笔行情触发

	closes  []float64
	lastRun time.Time

	isRunning   bool
	mutex       sync.Mutex
	stopChannel chan bool
	doneChannel chan struct{}
	persistChan chan *models.EngineState
	wg          sync.WaitGroup
}

// NewKeeper 创建一个执行守护进程。addr 必须是三个账本的管理员。
func NewKeeper(e *engine.Engine, f feed.Feed, repo persistence.StateRepository, journalDB *sql.DB, addr models.Address, rsiPeriod int, interval time.Duration) *Keeper {
	if rsiPeriod <= 0 {
		rsiPeriod = 14
	}
	return &Keeper{
		engine:      e,
		feed:        f,
		repo:        repo,
		journalDB:   journalDB,
		addr:        addr,
		rsiPeriod:   rsiPeriod,
		interval:    interval,
		stopChannel: make(chan bool),
		doneChannel: make(chan struct{}),
		persistChan: make(chan *models.EngineState, 128),
	}
}

// Start 启动执行循环与持久化循环。
func (k *Keeper) Start() {
	k.mutex.Lock()
	if k.isRunning {
		k.mutex.Unlock()
		return
	}
	k.isRunning = true
	k.mutex.Unlock()

	k.wg.Add(2)
	go k.runLoop()
	go k.persistenceLoop()
	logger.S().Infow("keeper started", "addr", k.addr, "rsiPeriod", k.rsiPeriod)
}

// Done 在行情源耗尽、执行循环自然结束时关闭。模拟模式用它等待回放完成。
func (k *Keeper) Done() <-chan struct{} { return k.doneChannel }

// Stop 停止守护进程并同步写出最终快照。
func (k *Keeper) Stop() {
	k.mutex.Lock()
	if !k.isRunning {
		k.mutex.Unlock()
		return
	}
	k.isRunning = false
	k.mutex.Unlock()

	close(k.stopChannel)
	k.wg.Wait()

	if k.repo != nil {
		if err := k.repo.SaveState(k.engine.Snapshot()); err != nil {
			logger.S().Errorf("CRITICAL: failed to save final state: %v", err)
		}
	}
	logger.S().Info("keeper stopped")
}

// runLoop 逐条消费价格更新，直到行情源关闭或收到停止信号。
func (k *Keeper) runLoop() {
	defer k.wg.Done()
	defer close(k.doneChannel)

	for {
		select {
		case tick, ok := <-k.feed.Ticks():
			if !ok {
				return
			}
			k.onTick(tick)
		case <-k.stopChannel:
			return
		}
	}
}

// persistenceLoop 异步写出引擎快照，避免阻塞执行路径。
func (k *Keeper) persistenceLoop() {
	defer k.wg.Done()

	for {
		select {
		case state := <-k.persistChan:
			if k.repo != nil {
				if err := k.repo.SaveState(state); err != nil {
					logger.S().Errorf("CRITICAL: failed to save state: %v", err)
				}
			}
		case <-k.stopChannel:
			return
		}
	}
}

// onTick 用一次价格更新驱动三个账本各跑一个批次。
func (k *Keeper) onTick(tick models.PriceTick) {
	price := tick.Price
	if !price.IsPositive() {
		return
	}
	rsi, rsiReady := k.updateRSI(price.InexactFloat64())

	// 节流：RSI 窗口照常更新，但执行批次按配置的间隔触发
	if k.interval > 0 && !k.lastRun.IsZero() && tick.Time.Sub(k.lastRun) < k.interval {
		return
	}
	k.lastRun = tick.Time

	var execs []models.Execution

	if ids := k.engine.Grid.OpenOrderIDs(); len(ids) > 0 {
		batch, err := k.engine.Grid.ExecuteOrders(k.addr, ids, price)
		if err != nil {
			logger.S().Errorw("grid batch failed", "err", err, "price", price)
		} else {
			execs = append(execs, batch...)
		}
	}

	if ids := k.engine.Dca.OpenOrderIDs(); len(ids) > 0 {
		batch, err := k.engine.Dca.ExecuteOrders(k.addr, ids, price)
		if err != nil {
			logger.S().Errorw("dca batch failed", "err", err, "price", price)
		} else {
			execs = append(execs, batch...)
		}
	}

	if rsiReady {
		if ids := k.engine.Rsi.OpenOrderIDs(); len(ids) > 0 {
			batch, err := k.engine.Rsi.ExecuteOrders(k.addr, ids, rsi, price)
			if err != nil {
				logger.S().Errorw("rsi batch failed", "err", err, "rsi", rsi, "price", price)
			} else {
				execs = append(execs, batch...)
			}
		}
	}

	if len(execs) == 0 {
		return
	}

	if k.journalDB != nil {
		if err := journal.RecordExecutions(k.journalDB, execs); err != nil {
			logger.S().Errorf("failed to journal executions: %v", err)
		}
		k.journalCompletions(execs)
	}

	// 快照送持久化通道；通道满时丢弃本次快照，下一批会再送
	select {
	case k.persistChan <- k.engine.Snapshot():
	default:
	}
}

// journalCompletions 给本批次中走完全部步数的订单补记生命周期事件。
// 完成最多发生一次（已完成的订单不会再出现在执行流水里）。
func (k *Keeper) journalCompletions(execs []models.Execution) {
	for _, ex := range execs {
		var completed bool
		var t time.Time
		switch ex.Strategy {
		case models.StrategyGrid:
			if o, err := k.engine.Grid.Order(ex.OrderID); err == nil && o.Status == models.StatusCompleted {
				completed, t = true, ex.Time
			}
		case models.StrategyDCA:
			if o, err := k.engine.Dca.Order(ex.OrderID); err == nil && o.Status == models.StatusCompleted {
				completed, t = true, ex.Time
			}
		case models.StrategyRSI:
			if o, err := k.engine.Rsi.Order(ex.OrderID); err == nil && o.Status == models.StatusCompleted {
				completed, t = true, ex.Time
			}
		}
		if completed {
			if err := journal.RecordOrderEvent(k.journalDB, ex.Strategy, ex.OrderID, ex.Ref, "COMPLETED", t); err != nil {
				logger.S().Errorf("failed to journal completion: %v", err)
			}
		}
	}
}

// updateRSI 把最新收盘价并入窗口并重算 RSI。
// 样本不足一个周期时返回 false，RSI 账本在此期间不执行。
func (k *Keeper) updateRSI(close float64) (float64, bool) {
	k.closes = append(k.closes, close)
	if len(k.closes) > maxCloseWindow {
		k.closes = k.closes[len(k.closes)-maxCloseWindow:]
	}
	if len(k.closes) <= k.rsiPeriod {
		return 0, false
	}
	values := talib.Rsi(k.closes, k.rsiPeriod)
	return values[len(values)-1], true
}
