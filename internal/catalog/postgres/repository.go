package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/querytalk/querytalk/internal/catalog"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) HealthCheck(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping catalog db: %w", err)
	}
	return nil
}

func (r *Repository) ListTables(ctx context.Context, datasetName string) ([]catalog.Table, error) {
	query := `
SELECT table_id, dataset_name, table_name, description, columns_json, created_at
FROM dataset_table
WHERE dataset_name = $1
ORDER BY table_name ASC`

	rows, err := r.db.QueryContext(ctx, query, datasetName)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]catalog.Table, 0)
	for rows.Next() {
		table, err := scanTable(rows.Scan)
		if err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table rows: %w", err)
	}
	return tables, nil
}

func (r *Repository) GetTableByName(ctx context.Context, datasetName, tableName string) (catalog.Table, error) {
	query := `
SELECT table_id, dataset_name, table_name, description, columns_json, created_at
FROM dataset_table
WHERE dataset_name = $1 AND table_name = $2`

	table, err := scanTable(r.db.QueryRowContext(ctx, query, datasetName, tableName).Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Table{}, catalog.ErrNotFound
		}
		return catalog.Table{}, err
	}
	return table, nil
}

func (r *Repository) ListTableFiles(ctx context.Context, tableID int64) ([]catalog.TableFile, error) {
	query := `
SELECT file_id, table_id, object_key, file_size_bytes, record_count, created_at
FROM dataset_file
WHERE table_id = $1
ORDER BY file_id ASC`

	rows, err := r.db.QueryContext(ctx, query, tableID)
	if err != nil {
		return nil, fmt.Errorf("list table files: %w", err)
	}
	defer func() { _ = rows.Close() }()

	files := make([]catalog.TableFile, 0)
	for rows.Next() {
		var file catalog.TableFile
		if err := rows.Scan(
			&file.FileID,
			&file.TableID,
			&file.ObjectKey,
			&file.FileSizeBytes,
			&file.RecordCount,
			&file.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan table file row: %w", err)
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table file rows: %w", err)
	}
	return files, nil
}

func (r *Repository) CreateTable(ctx context.Context, in catalog.CreateTableInput) (catalog.Table, error) {
	columns := in.Columns
	if columns == nil {
		columns = []catalog.Column{}
	}
	columnsJSON, err := json.Marshal(columns)
	if err != nil {
		return catalog.Table{}, fmt.Errorf("encode columns: %w", err)
	}

	query := `
INSERT INTO dataset_table (dataset_name, table_name, description, columns_json)
VALUES ($1, $2, $3, $4::jsonb)
ON CONFLICT (dataset_name, table_name)
DO UPDATE SET
    description = EXCLUDED.description,
    columns_json = EXCLUDED.columns_json
RETURNING table_id, created_at`

	table := catalog.Table{
		DatasetName: in.DatasetName,
		TableName:   in.TableName,
		Description: in.Description,
		Columns:     columns,
	}
	if err := r.db.QueryRowContext(ctx, query, in.DatasetName, in.TableName, in.Description, string(columnsJSON)).Scan(&table.TableID, &table.CreatedAt); err != nil {
		return catalog.Table{}, fmt.Errorf("create table: %w", err)
	}
	return table, nil
}

func (r *Repository) AddTableFile(ctx context.Context, in catalog.AddTableFileInput) (catalog.TableFile, error) {
	query := `
INSERT INTO dataset_file (table_id, object_key, file_size_bytes, record_count)
VALUES ($1, $2, $3, $4)
ON CONFLICT (table_id, object_key)
DO UPDATE SET
    file_size_bytes = EXCLUDED.file_size_bytes,
    record_count = EXCLUDED.record_count
RETURNING file_id, created_at`

	file := catalog.TableFile{
		TableID:       in.TableID,
		ObjectKey:     in.ObjectKey,
		FileSizeBytes: in.FileSizeBytes,
		RecordCount:   in.RecordCount,
	}
	if err := r.db.QueryRowContext(ctx, query, in.TableID, in.ObjectKey, in.FileSizeBytes, in.RecordCount).Scan(&file.FileID, &file.CreatedAt); err != nil {
		return catalog.TableFile{}, fmt.Errorf("add table file: %w", err)
	}
	return file, nil
}

func scanTable(scan func(dest ...any) error) (catalog.Table, error) {
	var table catalog.Table
	var columnsJSON []byte
	var createdAt time.Time
	if err := scan(
		&table.TableID,
		&table.DatasetName,
		&table.TableName,
		&table.Description,
		&columnsJSON,
		&createdAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Table{}, err
		}
		return catalog.Table{}, fmt.Errorf("scan table row: %w", err)
	}
	table.CreatedAt = createdAt
	if len(columnsJSON) > 0 {
		if err := json.Unmarshal(columnsJSON, &table.Columns); err != nil {
			return catalog.Table{}, fmt.Errorf("decode columns for %q: %w", table.TableName, err)
		}
	}
	return table, nil
}
