package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sleepswap-engine/internal/config"
	"sleepswap-engine/internal/downloader"
	"sleepswap-engine/internal/engine"
	"sleepswap-engine/internal/feed"
	"sleepswap-engine/internal/journal"
	"sleepswap-engine/internal/keeper"
	"sleepswap-engine/internal/ledger"
	"sleepswap-engine/internal/logger"
	"sleepswap-engine/internal/models"
	"sleepswap-engine/internal/persistence"
	"sleepswap-engine/internal/reporter"
	"sleepswap-engine/internal/swap"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// 路由器与演示账户的固定地址
const (
	routerAddr = models.Address("router")
)

func main() {
	// --- 命令行参数定义 ---
	configPath := flag.String("config", "config.json", "path to the config file")
	mode := flag.String("mode", "live", "running mode: live or sim")
	dataPath := flag.String("data", "", "path to historical data file for simulation")
	symbol := flag.String("symbol", "", "symbol to simulate (e.g., ETHUSDT)")
	startDate := flag.String("start", "", "start date for simulation (YYYY-MM-DD)")
	endDate := flag.String("end", "", "end date for simulation (YYYY-MM-DD)")
	flag.Parse()

	// --- 初始化日志（提前，加载配置前就能记录） ---
	logger.InitLogger(models.LogConfig{Level: "info", Output: "console"})

	// --- 加载 .env 文件 ---
	if err := godotenv.Load(); err != nil {
		logger.S().Info("未找到 .env 文件，将从系统环境变量中读取。")
	} else {
		logger.S().Info("成功从 .env 文件加载配置。")
	}

	// --- 加载 JSON 配置 ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.S().Fatalf("无法加载配置文件: %v", err)
	}

	// --- 使用文件中的配置重新初始化日志 ---
	logger.InitLogger(cfg.LogConfig)
	defer logger.S().Sync()

	switch *mode {
	case "live":
		runLiveMode(cfg)
	case "sim":
		finalDataPath, err := handleSimMode(*symbol, *startDate, *endDate, *dataPath)
		if err != nil {
			logger.S().Fatal(err)
		}
		runSimMode(cfg, finalDataPath)
	default:
		logger.S().Fatalf("未知的运行模式: %s。请选择 'live' 或 'sim'。", *mode)
	}
}

// handleSimMode 处理模拟模式的启动逻辑，包括数据下载。
// 成功后返回数据文件路径，失败则返回错误。
func handleSimMode(symbol, startDate, endDate, dataPath string) (string, error) {
	shouldDownload := symbol != "" && startDate != "" && endDate != ""

	if shouldDownload {
		startTime, err1 := time.Parse("2006-01-02", startDate)
		endTime, err2 := time.Parse("2006-01-02", endDate)
		if err1 != nil || err2 != nil {
			return "", fmt.Errorf("日期格式错误，请使用 YYYY-MM-DD 格式。start: %v, end: %v", err1, err2)
		}

		d := downloader.NewKlineDownloader()
		fileName := fmt.Sprintf("data/%s-%s-%s.csv", symbol, startDate, endDate)
		if err := d.DownloadKlines(symbol, "1h", fileName, startTime, endTime); err != nil {
			return "", fmt.Errorf("下载数据失败: %v", err)
		}
		return fileName, nil
	}

	if dataPath == "" {
		return "", fmt.Errorf("模拟模式需要通过 --data 或 --symbol/start/end 参数指定数据源")
	}
	return dataPath, nil
}

// buildParams 把配置翻译成引擎参数。
func buildParams(cfg *models.Config) (engine.Params, error) {
	minInvestment := decimal.NewFromInt(100)
	if cfg.MinInvestment != "" {
		var err error
		if minInvestment, err = decimal.NewFromString(cfg.MinInvestment); err != nil {
			return engine.Params{}, fmt.Errorf("min_investment 非法: %v", err)
		}
	}
	minTrade := decimal.NewFromInt(10)
	if cfg.MinTradeAmount != "" {
		var err error
		if minTrade, err = decimal.NewFromString(cfg.MinTradeAmount); err != nil {
			return engine.Params{}, fmt.Errorf("min_trade_amount 非法: %v", err)
		}
	}
	minGrids := cfg.MinGrids
	if minGrids == 0 {
		minGrids = 2
	}

	return engine.Params{
		Stable:         cfg.StableSymbol,
		FeeBps:         cfg.FeeBps,
		MinInvestment:  minInvestment,
		MinGrids:       minGrids,
		MinTradeAmount: minTrade,
		RSIGrids:       cfg.RSIGrids,
		RSIFlipGap:     time.Duration(cfg.RSIFlipGapSec) * time.Second,
		RSIOversold:    float64(cfg.RSIOversold),
		RSIOverbought:  float64(cfg.RSIOverbought),
	}, nil
}

// setupEngine 搭建资金账本、兑换路由器与引擎，并从快照恢复历史状态。
func setupEngine(cfg *models.Config) (*engine.Engine, *ledger.Ledger, persistence.StateRepository) {
	params, err := buildParams(cfg)
	if err != nil {
		logger.S().Fatalf("配置转换失败: %v", err)
	}

	book := ledger.NewLedger()
	router := swap.NewTestSwap(routerAddr, cfg.StableSymbol, book)

	owner := models.Address(cfg.OwnerAddress)
	e := engine.New(params, owner, book, router, logger.S())

	// 部署夹具：给 owner 发初始资金并向路由器注入双边库存
	seed := decimal.New(1, 12) // 10^12 最小单位
	book.Mint(cfg.StableSymbol, owner, seed.Mul(decimal.NewFromInt(2)))
	book.Mint(cfg.TokenSymbol, owner, seed.Mul(decimal.NewFromInt(2)))
	if err := router.DepositLiquidity(owner, cfg.StableSymbol, seed); err != nil {
		logger.S().Fatalf("注入稳定币库存失败: %v", err)
	}
	if err := router.DepositLiquidity(owner, cfg.TokenSymbol, seed); err != nil {
		logger.S().Fatalf("注入代币库存失败: %v", err)
	}

	var repo persistence.StateRepository
	if cfg.DBPath != "" {
		repo, err = persistence.NewBadgerRepository(cfg.DBPath)
		if err != nil {
			logger.S().Fatalf("打开状态数据库失败: %v", err)
		}
		state, err := repo.LoadState()
		if err != nil {
			logger.S().Fatalf("加载状态快照失败: %v", err)
		}
		if state != nil {
			e.RestoreState(state)
			reconcileLedger(book, cfg.StableSymbol, e, state)
			logger.S().Infow("已从快照恢复引擎状态", "lastUpdate", state.LastUpdateTime)
		}
	}

	return e, book, repo
}

// reconcileLedger 按快照给各账本的资金账户补齐余额。
// 账本账户 = 资金池托管 + 累计手续费，稳定币托管额外记在池的稳定币栏。
func reconcileLedger(book *ledger.Ledger, stable string, e *engine.Engine, st *models.EngineState) {
	credit := func(addr models.Address, pool models.PoolState) {
		amounts := map[string]decimal.Decimal{}
		for token, bal := range pool.TokenBalances {
			amounts[token] = amounts[token].Add(bal)
		}
		for token, fee := range pool.Fees {
			amounts[token] = amounts[token].Add(fee)
		}
		amounts[stable] = amounts[stable].Add(pool.StableBalance)
		for token, amount := range amounts {
			if amount.IsPositive() {
				book.Mint(token, addr, amount)
			}
		}
	}
	credit(e.Grid.Address(), st.Grid.Pool)
	credit(e.Dca.Address(), st.Dca.Pool)
	credit(e.Rsi.Address(), st.Rsi.Pool)
}

func openJournal(cfg *models.Config) *sql.DB {
	if cfg.JournalPath == "" {
		return nil
	}
	db, err := journal.InitDB(cfg.JournalPath)
	if err != nil {
		logger.S().Fatalf("打开执行流水库失败: %v", err)
	}
	return db
}

// runLiveMode 以实时行情驱动引擎。
func runLiveMode(cfg *models.Config) {
	logger.S().Info("--- 启动实时模式 ---")

	if cfg.WSURL == "" {
		logger.S().Fatal("实时模式需要配置 ws_url。")
	}
	keeperAddr := models.Address(cfg.KeeperAddress)
	if keeperAddr == "" {
		keeperAddr = models.Address(cfg.OwnerAddress)
	}

	e, _, repo := setupEngine(cfg)
	if repo != nil {
		defer repo.Close()
	}
	journalDB := openJournal(cfg)
	if journalDB != nil {
		defer journalDB.Close()
	}

	f := feed.NewWsFeed(cfg.WSURL, cfg.Symbol)
	if err := f.Start(); err != nil {
		logger.S().Fatalf("行情源启动失败: %v", err)
	}

	k := keeper.NewKeeper(e, f, repo, journalDB, keeperAddr, cfg.RSIPeriod, time.Duration(cfg.KeeperInterval)*time.Second)
	k.Start()

	// 等待中断信号以实现优雅退出
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	f.Stop()
	k.Stop()
	logger.S().Info("引擎已成功停止，状态已保存。")
}

// runSimMode 用历史K线回放驱动引擎，结束后打印汇总报告。
func runSimMode(cfg *models.Config, dataPath string) {
	logger.S().Info("--- 启动模拟模式 ---")

	candles, err := downloader.LoadCandles(dataPath)
	if err != nil {
		logger.S().Fatalf("加载K线数据失败: %v", err)
	}
	logger.S().Infof("已加载 %d 根K线，时间范围 %s ~ %s",
		len(candles),
		candles[0].OpenTime.Format("2006-01-02 15:04"),
		candles[len(candles)-1].CloseTime.Format("2006-01-02 15:04"))

	e, _, repo := setupEngine(cfg)
	if repo != nil {
		defer repo.Close()
	}
	journalDB := openJournal(cfg)
	if journalDB != nil {
		defer journalDB.Close()
	}

	// 演示订单：owner 代表投资人在三个账本各建一笔仓位
	seedDemoOrders(cfg, e, journalDB, candles[0].Open)

	f := feed.NewReplayFeed(cfg.Symbol, candles)
	if err := f.Start(); err != nil {
		logger.S().Fatalf("回放源启动失败: %v", err)
	}

	keeperAddr := models.Address(cfg.KeeperAddress)
	if keeperAddr == "" {
		keeperAddr = models.Address(cfg.OwnerAddress)
	}
	k := keeper.NewKeeper(e, f, repo, journalDB, keeperAddr, cfg.RSIPeriod, 0)
	k.Start()
	<-k.Done()
	k.Stop()

	logger.S().Info("回放结束。")
	if err := reporter.PrintSummary(os.Stdout, e.Snapshot(), journalDB, cfg.StableSymbol); err != nil {
		logger.S().Errorf("生成报告失败: %v", err)
	}
}

// seedDemoOrders 在模拟开始前建三笔演示订单，让回放有可执行的对象。
func seedDemoOrders(cfg *models.Config, e *engine.Engine, journalDB *sql.DB, openPrice float64) {
	owner := models.Address(cfg.OwnerAddress)
	entry := decimal.NewFromFloat(openPrice)
	deposit := decimal.NewFromInt(1_000_000)

	recordCreated := func(strategy models.Strategy, id uint64, ref string) {
		if journalDB == nil {
			return
		}
		if err := journal.RecordOrderEvent(journalDB, strategy, id, ref, "CREATED", time.Now()); err != nil {
			logger.S().Errorf("记录订单创建事件失败: %v", err)
		}
	}

	gridOrder, err := e.Grid.Invest(owner, deposit, 10, 5, entry, cfg.TokenSymbol)
	if err != nil {
		logger.S().Fatalf("创建演示网格订单失败: %v", err)
	}
	recordCreated(models.StrategyGrid, gridOrder.ID, gridOrder.Ref)

	dcaOrder, err := e.Dca.Invest(owner, deposit, deposit.Div(decimal.NewFromInt(10)).Floor(), 1, cfg.TokenSymbol)
	if err != nil {
		logger.S().Fatalf("创建演示定投订单失败: %v", err)
	}
	recordCreated(models.StrategyDCA, dcaOrder.ID, dcaOrder.Ref)

	rsiOrder, err := e.Rsi.Invest(owner, deposit, entry, cfg.TokenSymbol)
	if err != nil {
		logger.S().Fatalf("创建演示RSI订单失败: %v", err)
	}
	recordCreated(models.StrategyRSI, rsiOrder.ID, rsiOrder.Ref)

	logger.S().Infow("演示订单已创建", "owner", owner, "deposit", deposit, "entry", entry)
}
