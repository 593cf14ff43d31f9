package journal

import (
	"database/sql"
	"fmt"
	"time"

	"sleepswap-engine/internal/models"

	"github.com/shopspring/decimal"

	_ "github.com/mattn/go-sqlite3" // Import the sqlite3 driver
)

// InitDB initializes the journal database connection and creates necessary tables.
func InitDB(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err = db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// WAL keeps journal writes from blocking the reporter's reads.
	if _, err = db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err = createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary database tables if they don't exist.
func createTables(db *sql.DB) error {
	// Executions table: an append-only record of every step the scheduler
	// advanced. This is the audit trail investors reconcile against.
	createExecutionsTableSQL := `
	CREATE TABLE IF NOT EXISTS executions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy TEXT NOT NULL,
		order_id INTEGER NOT NULL,
		order_ref TEXT NOT NULL,
		side TEXT NOT NULL,
		amount_in TEXT NOT NULL,
		amount_out TEXT NOT NULL,
		fee TEXT NOT NULL,
		fee_token TEXT NOT NULL,
		price TEXT NOT NULL,
		rsi REAL,
		executed_at INTEGER NOT NULL
	);`

	if _, err := db.Exec(createExecutionsTableSQL); err != nil {
		return err
	}

	createIndexSQL := `
	CREATE INDEX IF NOT EXISTS idx_executions_order ON executions (strategy, order_id);`
	if _, err := db.Exec(createIndexSQL); err != nil {
		return err
	}

	// Order events table: lifecycle milestones (created, completed, withdrawn).
	createOrderEventsTableSQL := `
	CREATE TABLE IF NOT EXISTS order_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		strategy TEXT NOT NULL,
		order_id INTEGER NOT NULL,
		order_ref TEXT NOT NULL,
		event TEXT NOT NULL,
		occurred_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(createOrderEventsTableSQL); err != nil {
		return err
	}

	return nil
}

// RecordOrderEvent appends a lifecycle milestone for one order.
func RecordOrderEvent(db *sql.DB, strategy models.Strategy, orderID uint64, ref, event string, at time.Time) error {
	query := `
	INSERT INTO order_events (strategy, order_id, order_ref, event, occurred_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := db.Exec(query, string(strategy), orderID, ref, event, at.Unix())
	if err != nil {
		return fmt.Errorf("failed to insert order event for %s: %w", ref, err)
	}
	return nil
}

// OrderEvents retrieves the lifecycle history of one order, oldest first.
func OrderEvents(db *sql.DB, strategy models.Strategy, orderID uint64) ([]string, error) {
	rows, err := db.Query(
		"SELECT event FROM order_events WHERE strategy = ? AND order_id = ? ORDER BY id",
		string(strategy), orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order events: %w", err)
	}
	defer rows.Close()

	var events []string
	for rows.Next() {
		var event string
		if err := rows.Scan(&event); err != nil {
			return nil, fmt.Errorf("failed to scan order event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// RecordExecution appends a single execution to the journal.
// Amounts are stored as text to preserve exact integer semantics.
func RecordExecution(db *sql.DB, e *models.Execution) error {
	query := `
	INSERT INTO executions (strategy, order_id, order_ref, side, amount_in, amount_out, fee, fee_token, price, rsi, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.Exec(query,
		string(e.Strategy), e.OrderID, e.Ref, string(e.Side),
		e.AmountIn.String(), e.AmountOut.String(), e.Fee.String(), e.FeeToken,
		e.Price.String(), e.RSI, e.Time.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert execution for %s: %w", e.Ref, err)
	}
	return nil
}

// RecordExecutions appends a batch of executions in a single transaction.
func RecordExecutions(db *sql.DB, execs []models.Execution) error {
	if len(execs) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin execution batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
	INSERT INTO executions (strategy, order_id, order_ref, side, amount_in, amount_out, fee, fee_token, price, rsi, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare execution insert: %w", err)
	}
	defer stmt.Close()

	for i := range execs {
		e := &execs[i]
		if _, err := stmt.Exec(
			string(e.Strategy), e.OrderID, e.Ref, string(e.Side),
			e.AmountIn.String(), e.AmountOut.String(), e.Fee.String(), e.FeeToken,
			e.Price.String(), e.RSI, e.Time.Unix(),
		); err != nil {
			return fmt.Errorf("failed to insert execution for %s: %w", e.Ref, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit execution batch: %w", err)
	}
	return nil
}

// ExecutionsByOrder retrieves the full execution history of one order, oldest first.
func ExecutionsByOrder(db *sql.DB, strategy models.Strategy, orderID uint64) ([]models.Execution, error) {
	query := `
	SELECT strategy, order_id, order_ref, side, amount_in, amount_out, fee, fee_token, price, rsi, executed_at
	FROM executions
	WHERE strategy = ? AND order_id = ?
	ORDER BY id`

	rows, err := db.Query(query, string(strategy), orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// RecentExecutions retrieves the latest executions across all strategies, newest first.
func RecentExecutions(db *sql.DB, limit int) ([]models.Execution, error) {
	query := `
	SELECT strategy, order_id, order_ref, side, amount_in, amount_out, fee, fee_token, price, rsi, executed_at
	FROM executions
	ORDER BY id DESC
	LIMIT ?`

	rows, err := db.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent executions: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// CountExecutions returns the number of journaled executions for one strategy.
func CountExecutions(db *sql.DB, strategy models.Strategy) (int64, error) {
	var count int64
	err := db.QueryRow("SELECT COUNT(*) FROM executions WHERE strategy = ?", string(strategy)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executions: %w", err)
	}
	return count, nil
}

func scanExecutions(rows *sql.Rows) ([]models.Execution, error) {
	var execs []models.Execution
	for rows.Next() {
		var (
			e                               models.Execution
			strategy, side                  string
			amountIn, amountOut, fee, price string
			executedAt                      int64
		)
		if err := rows.Scan(
			&strategy, &e.OrderID, &e.Ref, &side,
			&amountIn, &amountOut, &fee, &e.FeeToken,
			&price, &e.RSI, &executedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan execution row: %w", err)
		}
		e.Strategy = models.Strategy(strategy)
		e.Side = models.Side(side)
		var err error
		if e.AmountIn, err = parseAmount(amountIn); err != nil {
			return nil, err
		}
		if e.AmountOut, err = parseAmount(amountOut); err != nil {
			return nil, err
		}
		if e.Fee, err = parseAmount(fee); err != nil {
			return nil, err
		}
		if e.Price, err = parseAmount(price); err != nil {
			return nil, err
		}
		e.Time = time.Unix(executedAt, 0).UTC()
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse journaled amount %q: %w", s, err)
	}
	return d, nil
}
