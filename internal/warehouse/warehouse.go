// Package warehouse executes analytical SQL against the dataset and
// reports how much data a query touches.
package warehouse

import (
	"context"
	"errors"
	"time"
)

var ErrUnknownTable = errors.New("warehouse: unknown table")

type Column struct {
	Name        string
	Type        string
	Description string
}

type TableSchema struct {
	TableName   string
	Description string
	Columns     []Column
}

type Result struct {
	Columns      []string
	Rows         [][]any
	ScannedBytes int64
	Duration     time.Duration
}

type Client interface {
	// FetchSchema returns the full dataset schema.
	FetchSchema(ctx context.Context) ([]TableSchema, error)
	// EstimateCost returns the bytes the query would scan, without
	// reading any row data.
	EstimateCost(ctx context.Context, sqlText string) (int64, error)
	// Execute runs the query with at most rowLimit result rows.
	Execute(ctx context.Context, sqlText string, rowLimit int) (Result, error)
}
