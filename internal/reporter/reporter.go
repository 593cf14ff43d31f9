package reporter

import (
	"database/sql"
	"fmt"
	"io"

	"sleepswap-engine/internal/journal"
	"sleepswap-engine/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
)

// bookSummary 汇总一个策略账本的订单与资金情况
type bookSummary struct {
	strategy  models.Strategy
	active    int
	completed int
	cancelled int
	withdrawn int
	stable    decimal.Decimal
	fees      map[string]decimal.Decimal
	tokens    map[string]decimal.Decimal
}

// PrintSummary 根据引擎快照与执行流水打印汇总报告。
// 模拟模式结束后调用，实盘模式可随时手动触发。
func PrintSummary(w io.Writer, st *models.EngineState, db *sql.DB, stable string) error {
	summaries := []bookSummary{
		summarizeGrid(st.Grid),
		summarizeDca(st.Dca),
		summarizeRsi(st.Rsi),
	}

	fmt.Fprintln(w, "========== 订单账本汇总 ==========")

	orders := table.NewWriter()
	orders.SetOutputMirror(w)
	orders.AppendHeader(table.Row{"账本", "执行中", "已完成", "已取消", "已提取"})
	for _, s := range summaries {
		orders.AppendRow(table.Row{s.strategy, s.active, s.completed, s.cancelled, s.withdrawn})
	}
	orders.Render()

	custody := table.NewWriter()
	custody.SetOutputMirror(w)
	custody.AppendHeader(table.Row{"账本", "代币", "托管量"})
	for _, s := range summaries {
		if !s.stable.IsZero() {
			custody.AppendRow(table.Row{s.strategy, stable, s.stable.String()})
		}
		for token, amount := range s.tokens {
			if amount.IsZero() {
				continue
			}
			custody.AppendRow(table.Row{s.strategy, token, amount.String()})
		}
	}
	custody.Render()

	fees := table.NewWriter()
	fees.SetOutputMirror(w)
	fees.AppendHeader(table.Row{"账本", "代币", "累计手续费"})
	for _, s := range summaries {
		for token, amount := range s.fees {
			if amount.IsZero() {
				continue
			}
			fees.AppendRow(table.Row{s.strategy, token, amount.String()})
		}
	}
	fees.Render()

	if db != nil {
		execs := table.NewWriter()
		execs.SetOutputMirror(w)
		execs.AppendHeader(table.Row{"账本", "执行次数"})
		for _, strategy := range []models.Strategy{models.StrategyGrid, models.StrategyDCA, models.StrategyRSI} {
			count, err := journal.CountExecutions(db, strategy)
			if err != nil {
				return fmt.Errorf("统计执行流水失败: %w", err)
			}
			execs.AppendRow(table.Row{strategy, count})
		}
		execs.Render()
	}

	fmt.Fprintln(w, "===================================")
	return nil
}

func summarizeGrid(st models.GridBookState) bookSummary {
	s := bookSummary{strategy: models.StrategyGrid, stable: st.Pool.StableBalance, fees: st.Pool.Fees, tokens: st.Pool.TokenBalances}
	for _, o := range st.Orders {
		s.count(o.Status)
	}
	return s
}

func summarizeDca(st models.DcaBookState) bookSummary {
	s := bookSummary{strategy: models.StrategyDCA, stable: st.Pool.StableBalance, fees: st.Pool.Fees, tokens: st.Pool.TokenBalances}
	for _, o := range st.Orders {
		s.count(o.Status)
	}
	return s
}

func summarizeRsi(st models.RsiBookState) bookSummary {
	// RSI 账本的稳定币托管在代币表里，不额外列一行
	s := bookSummary{strategy: models.StrategyRSI, fees: st.Pool.Fees, tokens: st.Pool.TokenBalances}
	for _, o := range st.Orders {
		s.count(o.Status)
	}
	return s
}

func (s *bookSummary) count(status models.OrderStatus) {
	switch status {
	case models.StatusActive:
		s.active++
	case models.StatusCompleted:
		s.completed++
	case models.StatusCancelled:
		s.cancelled++
	case models.StatusWithdrawn:
		s.withdrawn++
	}
}
