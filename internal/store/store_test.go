package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "dealerpulse.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateRun("run-1", "dealer"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	run, err := s.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run == nil || run.Status != RunStatusRunning {
		t.Fatalf("new run should be running: %+v", run)
	}

	if err := s.FinishRun("run-1", "2024-02", "2024-01", 12, 1500*time.Millisecond); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	run, _ = s.GetRun("run-1")
	if run.Status != RunStatusDone || run.TMonth != "2024-02" || run.RowCount != 12 {
		t.Fatalf("finished run: %+v", run)
	}
	if run.DurationMS != 1500 {
		t.Fatalf("duration_ms: %d", run.DurationMS)
	}
}

func TestFailRun(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateRun("run-2", "tier"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	if err := s.FailRun("run-2", errors.New("覆盖率过低")); err != nil {
		t.Fatalf("FailRun: %v", err)
	}
	run, _ := s.GetRun("run-2")
	if run.Status != RunStatusFailed || run.Error == "" {
		t.Fatalf("failed run: %+v", run)
	}
}

func TestSettlementRowsRoundTrip(t *testing.T) {
	s := newTestStore(t)

	if err := s.CreateRun("run-3", "dealer"); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	records := []map[string]any{
		{"经销商ID": "D001", "T月车云店+区域投放总金额": 50.0},
		{"经销商ID": "D002", "T月车云店+区域投放总金额": nil},
	}
	if err := s.SaveSettlementRows("run-3", records); err != nil {
		t.Fatalf("SaveSettlementRows: %v", err)
	}

	rows, err := s.GetSettlementRows("run-3")
	if err != nil {
		t.Fatalf("GetSettlementRows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("want 2 rows, got %d", len(rows))
	}
	if rows[0]["经销商ID"] != "D001" {
		t.Fatalf("row order should follow row_no: %+v", rows[0])
	}
	if v, ok := rows[1]["T月车云店+区域投放总金额"]; !ok || v != nil {
		t.Fatalf("null should round-trip as nil: %+v", rows[1])
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	run, err := s.GetRun("missing")
	if err != nil || run != nil {
		t.Fatalf("missing run: %+v err=%v", run, err)
	}
}

func TestListRuns_Order(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a", "b"} {
		if err := s.CreateRun(id, "dealer"); err != nil {
			t.Fatalf("CreateRun %s: %v", id, err)
		}
	}
	runs, err := s.ListRuns(10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("want 2 runs, got %d", len(runs))
	}
}
