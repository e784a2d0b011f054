// Package catalog holds the metadata describing the analytics dataset:
// which tables exist, their columns, and the parquet files backing them.
package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("catalog: not found")

type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type Table struct {
	TableID     int64
	DatasetName string
	TableName   string
	Description string
	Columns     []Column
	CreatedAt   time.Time
}

type TableFile struct {
	FileID        int64
	TableID       int64
	ObjectKey     string
	FileSizeBytes int64
	RecordCount   int64
	CreatedAt     time.Time
}

type CreateTableInput struct {
	DatasetName string
	TableName   string
	Description string
	Columns     []Column
}

type AddTableFileInput struct {
	TableID       int64
	ObjectKey     string
	FileSizeBytes int64
	RecordCount   int64
}

type Store interface {
	HealthCheck(ctx context.Context) error
	ListTables(ctx context.Context, datasetName string) ([]Table, error)
	GetTableByName(ctx context.Context, datasetName, tableName string) (Table, error)
	ListTableFiles(ctx context.Context, tableID int64) ([]TableFile, error)
	CreateTable(ctx context.Context, in CreateTableInput) (Table, error)
	AddTableFile(ctx context.Context, in AddTableFileInput) (TableFile, error)
}
