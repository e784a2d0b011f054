package pipeline

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/querytalk/querytalk/internal/warehouse"
)

// Forbidden statement keywords matched as whole tokens, so column names
// like created_at or updated_by never trip the check.
var forbiddenStatementPattern = regexp.MustCompile(`(?i)\b(drop|delete|update|insert|truncate|alter|merge|create)\b`)

// Executor vets a statement and runs it under the configured limits.
// Validation order is fixed: static keyword scan, then dry-run cost
// estimate, then execution. A statement that fails either check is
// never executed.
type Executor struct {
	warehouse warehouse.Client
	limits    Limits
}

func NewExecutor(client warehouse.Client, limits Limits) *Executor {
	return &Executor{warehouse: client, limits: limits}
}

func (e *Executor) Run(ctx context.Context, sqlText string) (warehouse.Result, error) {
	if match := forbiddenStatementPattern.FindString(sqlText); match != "" {
		return warehouse.Result{}, newError(
			KindSafetyViolation,
			ReasonForbiddenStatement,
			fmt.Sprintf("the generated query contains a forbidden %q statement and was not executed", match),
			nil,
		)
	}

	estimatedBytes, err := e.warehouse.EstimateCost(ctx, sqlText)
	if err != nil {
		if errors.Is(err, warehouse.ErrUnknownTable) {
			return warehouse.Result{}, newError(
				KindExecution,
				ReasonUpstreamFailure,
				"the generated query references a table that does not exist in the dataset",
				err,
			)
		}
		return warehouse.Result{}, newError(
			KindExecution,
			ReasonUpstreamFailure,
			"the warehouse could not estimate the query cost",
			err,
		)
	}
	if e.limits.MaxBytesScanned > 0 && estimatedBytes > e.limits.MaxBytesScanned {
		return warehouse.Result{}, newError(
			KindSafetyViolation,
			ReasonCostLimitExceeded,
			fmt.Sprintf("the query would scan %d bytes, above the %d byte ceiling", estimatedBytes, e.limits.MaxBytesScanned),
			nil,
		)
	}

	execCtx := ctx
	if e.limits.QueryTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, e.limits.QueryTimeout)
		defer cancel()
	}

	result, err := e.warehouse.Execute(execCtx, sqlText, e.limits.MaxResultRows)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return warehouse.Result{}, newError(
				KindExecution,
				ReasonTimeout,
				fmt.Sprintf("the query did not finish within %s", e.limits.QueryTimeout),
				err,
			)
		}
		return warehouse.Result{}, newError(
			KindExecution,
			ReasonUpstreamFailure,
			err.Error(),
			err,
		)
	}

	// The warehouse row cap is authoritative, but truncate again in case
	// an engine implementation ignores the limit argument.
	if e.limits.MaxResultRows > 0 && len(result.Rows) > e.limits.MaxResultRows {
		result.Rows = result.Rows[:e.limits.MaxResultRows]
	}
	return result, nil
}
