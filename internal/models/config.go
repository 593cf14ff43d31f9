package models

// Config 结构体定义了引擎的所有配置参数
type Config struct {
	StableSymbol string `json:"stable_symbol"` // 计价稳定币符号，如 "USDT"
	TokenSymbol  string `json:"token_symbol"`  // 默认目标代币符号，如 "SLEEP"
	Symbol       string `json:"symbol"`        // 行情订阅交易对，如 "SLEEPUSDT"

	OwnerAddress  string `json:"owner_address"`  // 部署者地址，默认管理员
	KeeperAddress string `json:"keeper_address"` // keeper 执行批次时使用的地址

	FeeBps int64 `json:"fee_bps"` // 手续费率（基点），5 = 0.05%

	// 订单准入下限
	MinInvestment  string `json:"min_investment"`   // 最小投资额（稳定币）
	MinGrids       uint32 `json:"min_grids"`        // 网格策略最小网格数
	MinTradeAmount string `json:"min_trade_amount"` // DCA 策略最小单笔额

	// RSI 策略参数
	RSIPeriod      int    `json:"rsi_period"`       // RSI 计算周期
	RSIGrids       uint32 `json:"rsi_grids"`        // 每侧买/卖步数上限
	RSIFlipGapSec  int64  `json:"rsi_flip_gap_sec"` // 反向操作之间的最小间隔（秒）
	RSIOversold    int64  `json:"rsi_oversold"`     // 买入触发阈值，默认 30
	RSIOverbought  int64  `json:"rsi_overbought"`   // 卖出触发阈值，默认 70
	KeeperInterval int    `json:"keeper_interval"`  // keeper 批次间隔（秒），0 表示逐笔行情触发

	DBPath      string `json:"db_path"`      // BadgerDB 状态快照路径
	JournalPath string `json:"journal_path"` // SQLite 执行流水路径

	WSURL string `json:"ws_url"` // 行情 WebSocket 地址

	LogConfig LogConfig `json:"log"` // 日志配置
}

// LogConfig 定义了日志相关的配置
type LogConfig struct {
	Level      string `json:"level"`       // 日志级别, e.g., "debug", "info", "warn", "error"
	Output     string `json:"output"`      // 输出模式: "console", "file", "both"
	File       string `json:"file"`        // 日志文件路径
	MaxSize    int    `json:"max_size"`    // 单个日志文件的最大大小 (MB)
	MaxBackups int    `json:"max_backups"` // 保留的旧日志文件最大数量
	MaxAge     int    `json:"max_age"`     // 旧日志文件的最大保留天数
	Compress   bool   `json:"compress"`    // 是否压缩旧日志文件
}
