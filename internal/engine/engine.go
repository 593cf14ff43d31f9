package engine

import (
	"fmt"
	"sync"
	"time"

	"sleepswap-engine/internal/accesscontrol"
	"sleepswap-engine/internal/ledger"
	"sleepswap-engine/internal/models"
	"sleepswap-engine/internal/pool"
	"sleepswap-engine/internal/swap"

	"github.com/jxskiss/base62"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// 每个账本的资金账户地址。链上这是合约自身地址；这里用固定标识。
const (
	gridBookAddr models.Address = "sleepswap:grid"
	dcaBookAddr  models.Address = "sleepswap:dca"
	rsiBookAddr  models.Address = "sleepswap:rsi"
)

// Params 汇总三个策略账本共用的运行参数。
type Params struct {
	Stable         string
	FeeBps         int64
	MinInvestment  decimal.Decimal
	MinGrids       uint32
	MinTradeAmount decimal.Decimal
	RSIGrids       uint32
	RSIFlipGap     time.Duration
	RSIOversold    float64
	RSIOverbought  float64
}

// Engine 聚合三个策略账本。三个账本共享同一把互斥锁：
// 所有兑换都经过同一个路由器，库存校验与成交必须在同一临界区内完成。
type Engine struct {
	Grid *GridBook
	Dca  *DcaBook
	Rsi  *RsiBook
}

// bookCore 是三个策略账本共享的骨架。
type bookCore struct {
	mu       *sync.Mutex
	addr     models.Address
	stable   string
	feeBps   decimal.Decimal
	registry *accesscontrol.Registry
	pool     *pool.Accountant
	ledger   *ledger.Ledger
	router   swap.Adapter
	nextID   uint64
	now      func() time.Time
	log      *zap.SugaredLogger
}

// New 以空账本状态创建引擎。owner 为三个账本的部署者与默认管理员。
func New(p Params, owner models.Address, book *ledger.Ledger, router swap.Adapter, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	mu := &sync.Mutex{}
	core := func(addr models.Address) bookCore {
		return bookCore{
			mu:       mu,
			addr:     addr,
			stable:   p.Stable,
			feeBps:   decimal.NewFromInt(p.FeeBps),
			registry: accesscontrol.NewRegistry(owner),
			pool:     pool.NewAccountant(),
			ledger:   book,
			router:   router,
			nextID:   1,
			now:      time.Now,
			log:      log,
		}
	}
	return &Engine{
		Grid: &GridBook{
			bookCore:      core(gridBookAddr),
			minInvestment: p.MinInvestment,
			minGrids:      p.MinGrids,
			orders:        make(map[uint64]*models.GridOrder),
		},
		Dca: &DcaBook{
			bookCore:       core(dcaBookAddr),
			minInvestment:  p.MinInvestment,
			minTradeAmount: p.MinTradeAmount,
			orders:         make(map[uint64]*models.DcaOrder),
		},
		Rsi: &RsiBook{
			bookCore:      core(rsiBookAddr),
			minInvestment: p.MinInvestment,
			grids:         p.RSIGrids,
			flipGap:       p.RSIFlipGap,
			oversold:      p.RSIOversold,
			overbought:    p.RSIOverbought,
			orders:        make(map[uint64]*models.RsiOrder),
		},
	}
}

// orderRef 生成订单的 base62 引用串，用于日志与执行流水。
func orderRef(strategy models.Strategy, id uint64) string {
	return fmt.Sprintf("%s-%s", strategy, base62.FormatUint(id))
}

// feeOn 计算一步消耗额对应的手续费，向下取整，与链上整数运算一致。
func (c *bookCore) feeOn(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.feeBps).Div(decimal.NewFromInt(10000)).Floor()
}

// Address 返回账本的资金账户地址。
func (c *bookCore) Address() models.Address { return c.addr }

// requireManager 校验批量执行调用方的管理员身份。
func (c *bookCore) requireManager(caller models.Address) error {
	if !c.registry.IsManager(caller) {
		return fmt.Errorf("%w: %s", accesscontrol.ErrUnauthorized, caller)
	}
	return nil
}

// assignID 分配下一个单调递增的订单号。
func (c *bookCore) assignID() uint64 {
	id := c.nextID
	c.nextID++
	return id
}

// restoreRegistry 在保留部署者的前提下用快照中的管理员集合重建注册表。
func restoreRegistry(current *accesscontrol.Registry, managers []models.Address) *accesscontrol.Registry {
	return accesscontrol.Restore(current.Owner(), managers)
}

// Snapshot 导出可持久化的完整引擎状态。
func (e *Engine) Snapshot() *models.EngineState {
	e.Grid.mu.Lock()
	defer e.Grid.mu.Unlock()
	return &models.EngineState{
		Version:        1,
		Grid:           e.Grid.snapshotLocked(),
		Dca:            e.Dca.snapshotLocked(),
		Rsi:            e.Rsi.snapshotLocked(),
		LastUpdateTime: time.Now(),
	}
}

// RestoreState 用快照覆盖引擎状态。资金账本不在快照内，
// 调用方需保证账本余额与快照一致（正常重启时两者一同恢复）。
func (e *Engine) RestoreState(st *models.EngineState) {
	e.Grid.mu.Lock()
	defer e.Grid.mu.Unlock()
	e.Grid.restoreLocked(st.Grid)
	e.Dca.restoreLocked(st.Dca)
	e.Rsi.restoreLocked(st.Rsi)
}
