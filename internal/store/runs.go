package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Run 一次结算运行
type Run struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	TMonth      string    `json:"t_month"`
	TMinusMonth string    `json:"t_minus_month"`
	Dimension   string    `json:"dimension"`
	Status      string    `json:"status"`
	RowCount    int       `json:"row_count"`
	DurationMS  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
}

// 运行状态
const (
	RunStatusRunning = "running"
	RunStatusDone    = "done"
	RunStatusFailed  = "failed"
)

// CreateRun 登记一次新运行
func (s *Store) CreateRun(id, dimension string) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, dimension, status) VALUES (?, ?, ?)`,
		id, dimension, RunStatusRunning,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// FinishRun 标记运行成功并写入窗口信息
func (s *Store) FinishRun(id, tMonth, tMinusMonth string, rowCount int, duration time.Duration) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, t_month = ?, t_minus_month = ?, row_count = ?, duration_ms = ? WHERE id = ?`,
		RunStatusDone, tMonth, tMinusMonth, rowCount, duration.Milliseconds(), id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// FailRun 标记运行失败
func (s *Store) FailRun(id string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, error = ? WHERE id = ?`,
		RunStatusFailed, msg, id,
	)
	if err != nil {
		return fmt.Errorf("failed to fail run: %w", err)
	}
	return nil
}

// SaveSettlementRows 批量写入结算结果行，记录为 {展示名: 值}
func (s *Store) SaveSettlementRows(runID string, records []map[string]any) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO settlement_rows (run_id, row_no, payload) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record %d: %w", i, err)
		}
		if _, err := stmt.Exec(runID, i, payload); err != nil {
			return fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// ListRuns 按时间倒序列出运行
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT id, created_at, t_month, t_minus_month, dimension, status, row_count, duration_ms, error
		 FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun 按 ID 查询运行
func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, t_month, t_minus_month, dimension, status, row_count, duration_ms, error
		 FROM runs WHERE id = ?`, id)
	r := &Run{}
	err := row.Scan(&r.ID, &r.CreatedAt, &r.TMonth, &r.TMinusMonth,
		&r.Dimension, &r.Status, &r.RowCount, &r.DurationMS, &r.Error)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// GetSettlementRows 读取一次运行的结算结果行
func (s *Store) GetSettlementRows(runID string) ([]map[string]any, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM settlement_rows WHERE run_id = ? ORDER BY row_no`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query settlement rows: %w", err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan payload: %w", err)
		}
		rec := map[string]any{}
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRun(rows *sql.Rows) (*Run, error) {
	r := &Run{}
	err := rows.Scan(&r.ID, &r.CreatedAt, &r.TMonth, &r.TMinusMonth,
		&r.Dimension, &r.Status, &r.RowCount, &r.DurationMS, &r.Error)
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	return r, nil
}
