package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/querytalk/querytalk/internal/warehouse"
)

type spyWarehouse struct {
	schemas       []warehouse.TableSchema
	schemaErr     error
	estimateBytes int64
	estimateErr   error
	result        warehouse.Result
	executeErr    error
	executeCalls  int
	executeLimit  int
}

func (s *spyWarehouse) FetchSchema(context.Context) ([]warehouse.TableSchema, error) {
	if s.schemaErr != nil {
		return nil, s.schemaErr
	}
	return s.schemas, nil
}

func (s *spyWarehouse) EstimateCost(context.Context, string) (int64, error) {
	return s.estimateBytes, s.estimateErr
}

func (s *spyWarehouse) Execute(ctx context.Context, _ string, rowLimit int) (warehouse.Result, error) {
	s.executeCalls++
	s.executeLimit = rowLimit
	if s.executeErr != nil {
		return warehouse.Result{}, s.executeErr
	}
	if err := ctx.Err(); err != nil {
		return warehouse.Result{}, err
	}
	return s.result, nil
}

func testLimits() Limits {
	return Limits{
		MaxBytesScanned:    500_000_000,
		QueryTimeout:       30 * time.Second,
		MaxResultRows:      10,
		ContextTokenBudget: 3000,
		RetryBackoff:       time.Millisecond,
	}
}

func TestRunRejectsForbiddenStatements(t *testing.T) {
	spy := &spyWarehouse{}
	executor := NewExecutor(spy, testLimits())

	for _, sqlText := range []string{
		"DELETE FROM showtime_fact",
		"drop table content_dimension",
		"SELECT 1; UPDATE t SET x = 1",
		"INSERT INTO t VALUES (1)",
		"TRUNCATE t",
		"ALTER TABLE t ADD COLUMN x INT",
		"MERGE INTO t USING s ON true",
		"CREATE TABLE t (x INT)",
	} {
		_, err := executor.Run(context.Background(), sqlText)
		perr, ok := AsError(err)
		if !ok || perr.Kind != KindSafetyViolation || perr.Reason != ReasonForbiddenStatement {
			t.Fatalf("Run(%q) error = %v, want forbidden_statement violation", sqlText, err)
		}
	}
	if spy.executeCalls != 0 {
		t.Fatalf("execute calls = %d, want 0", spy.executeCalls)
	}
}

func TestRunAllowsKeywordsInsideIdentifiers(t *testing.T) {
	spy := &spyWarehouse{result: warehouse.Result{Columns: []string{"created_at"}}}
	executor := NewExecutor(spy, testLimits())

	if _, err := executor.Run(context.Background(), "SELECT created_at, updated_by FROM showtime_fact"); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if spy.executeCalls != 1 {
		t.Fatalf("execute calls = %d, want 1", spy.executeCalls)
	}
}

func TestRunRejectsCostAboveCeiling(t *testing.T) {
	spy := &spyWarehouse{estimateBytes: 600_000_000}
	executor := NewExecutor(spy, testLimits())

	_, err := executor.Run(context.Background(), "SELECT * FROM showtime_fact")
	perr, ok := AsError(err)
	if !ok || perr.Kind != KindSafetyViolation || perr.Reason != ReasonCostLimitExceeded {
		t.Fatalf("Run() error = %v, want cost_limit_exceeded violation", err)
	}
	if spy.executeCalls != 0 {
		t.Fatalf("execute calls = %d, want 0", spy.executeCalls)
	}
}

func TestRunMapsUnknownTableToExecutionError(t *testing.T) {
	spy := &spyWarehouse{estimateErr: warehouse.ErrUnknownTable}
	executor := NewExecutor(spy, testLimits())

	_, err := executor.Run(context.Background(), "SELECT * FROM missing_fact")
	perr, ok := AsError(err)
	if !ok || perr.Kind != KindExecution || perr.Reason != ReasonUpstreamFailure {
		t.Fatalf("Run() error = %v, want upstream execution error", err)
	}
	if spy.executeCalls != 0 {
		t.Fatalf("execute calls = %d, want 0", spy.executeCalls)
	}
}

func TestRunMapsTimeout(t *testing.T) {
	spy := &spyWarehouse{executeErr: context.DeadlineExceeded}
	executor := NewExecutor(spy, testLimits())

	_, err := executor.Run(context.Background(), "SELECT * FROM showtime_fact")
	perr, ok := AsError(err)
	if !ok || perr.Kind != KindExecution || perr.Reason != ReasonTimeout {
		t.Fatalf("Run() error = %v, want timeout execution error", err)
	}
}

func TestRunPreservesUpstreamMessage(t *testing.T) {
	spy := &spyWarehouse{executeErr: errors.New(`column "showings" does not exist`)}
	executor := NewExecutor(spy, testLimits())

	_, err := executor.Run(context.Background(), "SELECT showings FROM showtime_fact")
	perr, ok := AsError(err)
	if !ok || perr.Kind != KindExecution || perr.Reason != ReasonUpstreamFailure {
		t.Fatalf("Run() error = %v", err)
	}
	if perr.Message != `column "showings" does not exist` {
		t.Fatalf("Message = %q", perr.Message)
	}
}

func TestRunCapsReturnedRows(t *testing.T) {
	rows := make([][]any, 25)
	for i := range rows {
		rows[i] = []any{i}
	}
	spy := &spyWarehouse{result: warehouse.Result{Columns: []string{"n"}, Rows: rows}}
	executor := NewExecutor(spy, testLimits())

	result, err := executor.Run(context.Background(), "SELECT n FROM showtime_fact")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.Rows) != 10 {
		t.Fatalf("rows = %d, want 10", len(result.Rows))
	}
	if spy.executeLimit != 10 {
		t.Fatalf("execute row limit = %d, want 10", spy.executeLimit)
	}
}
