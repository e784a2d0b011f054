// Package duckdb runs dataset queries on an embedded DuckDB instance
// over the parquet files registered in the catalog.
package duckdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb/v2"

	"github.com/querytalk/querytalk/internal/catalog"
	"github.com/querytalk/querytalk/internal/storage"
	"github.com/querytalk/querytalk/internal/warehouse"
)

var (
	tableRefPattern   = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	cteBindingPattern = regexp.MustCompile(`(?i)(?:\bWITH\s+(?:RECURSIVE\s+)?|,\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s+AS\s*\(`)
)

type Engine struct {
	catalog catalog.Store
	store   storage.ObjectStore
	dataset string
}

func NewEngine(catalogStore catalog.Store, objectStore storage.ObjectStore, datasetName string) (*Engine, error) {
	if catalogStore == nil {
		return nil, fmt.Errorf("catalog store is required")
	}
	if objectStore == nil {
		return nil, fmt.Errorf("object store is required")
	}
	if strings.TrimSpace(datasetName) == "" {
		return nil, fmt.Errorf("dataset name is required")
	}
	return &Engine{catalog: catalogStore, store: objectStore, dataset: datasetName}, nil
}

func (e *Engine) FetchSchema(ctx context.Context) ([]warehouse.TableSchema, error) {
	tables, err := e.catalog.ListTables(ctx, e.dataset)
	if err != nil {
		return nil, fmt.Errorf("list dataset tables: %w", err)
	}
	schemas := make([]warehouse.TableSchema, 0, len(tables))
	for _, table := range tables {
		columns := make([]warehouse.Column, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, warehouse.Column{
				Name:        column.Name,
				Type:        column.Type,
				Description: column.Description,
			})
		}
		schemas = append(schemas, warehouse.TableSchema{
			TableName:   table.TableName,
			Description: table.Description,
			Columns:     columns,
		})
	}
	return schemas, nil
}

// EstimateCost resolves every table the statement references and sums the
// sizes of their backing parquet files. No row data is read.
func (e *Engine) EstimateCost(ctx context.Context, sqlText string) (int64, error) {
	refs := referencedTables(sqlText)
	if len(refs) == 0 {
		return 0, nil
	}

	var total int64
	for _, tableName := range refs {
		table, err := e.catalog.GetTableByName(ctx, e.dataset, tableName)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return 0, fmt.Errorf("%w: %s", warehouse.ErrUnknownTable, tableName)
			}
			return 0, fmt.Errorf("resolve table %q: %w", tableName, err)
		}
		files, err := e.catalog.ListTableFiles(ctx, table.TableID)
		if err != nil {
			return 0, fmt.Errorf("list files for %q: %w", tableName, err)
		}
		for _, file := range files {
			total += file.FileSizeBytes
		}
	}
	return total, nil
}

func (e *Engine) Execute(ctx context.Context, sqlText string, rowLimit int) (warehouse.Result, error) {
	sqlText = stripTrailingSemicolons(sqlText)
	if sqlText == "" {
		return warehouse.Result{}, fmt.Errorf("sql is required")
	}

	start := time.Now()
	workDir, err := os.MkdirTemp("", "querytalk-query-")
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("create query temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	groupedPaths := map[string][]string{}
	var scannedBytes int64
	for _, tableName := range referencedTables(sqlText) {
		table, err := e.catalog.GetTableByName(ctx, e.dataset, tableName)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				return warehouse.Result{}, fmt.Errorf("%w: %s", warehouse.ErrUnknownTable, tableName)
			}
			return warehouse.Result{}, fmt.Errorf("resolve table %q: %w", tableName, err)
		}
		files, err := e.catalog.ListTableFiles(ctx, table.TableID)
		if err != nil {
			return warehouse.Result{}, fmt.Errorf("list files for %q: %w", tableName, err)
		}
		for index, file := range files {
			localPath := filepath.Join(workDir, fmt.Sprintf("%s_%d.parquet", tableName, index))
			if err := e.download(ctx, file.ObjectKey, localPath); err != nil {
				return warehouse.Result{}, err
			}
			groupedPaths[tableName] = append(groupedPaths[tableName], localPath)
			scannedBytes += file.FileSizeBytes
		}
	}
	if len(groupedPaths) == 0 {
		return warehouse.Result{}, fmt.Errorf("query references no dataset tables")
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	for tableName, localPaths := range groupedPaths {
		viewSQL := fmt.Sprintf(`CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet(%s)`, quoteIdent(tableName), quoteStringArray(localPaths))
		if _, err := db.ExecContext(ctx, viewSQL); err != nil {
			return warehouse.Result{}, fmt.Errorf("create view for table %q: %w", tableName, err)
		}
	}

	if rowLimit > 0 {
		sqlText = fmt.Sprintf("SELECT * FROM (%s) AS q LIMIT %d", sqlText, rowLimit)
	}

	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return warehouse.Result{}, fmt.Errorf("query columns: %w", err)
	}

	resultRows := make([][]any, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return warehouse.Result{}, fmt.Errorf("scan row: %w", err)
		}
		resultRows = append(resultRows, normalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return warehouse.Result{}, fmt.Errorf("iterate rows: %w", err)
	}

	return warehouse.Result{
		Columns:      columns,
		Rows:         resultRows,
		ScannedBytes: scannedBytes,
		Duration:     time.Since(start),
	}, nil
}

func (e *Engine) download(ctx context.Context, objectKey, localPath string) error {
	reader, err := e.store.Get(ctx, objectKey)
	if err != nil {
		return fmt.Errorf("get object %q: %w", objectKey, err)
	}
	defer func() { _ = reader.Close() }()

	out, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local parquet file %q: %w", localPath, err)
	}
	if _, err := io.Copy(out, reader); err != nil {
		_ = out.Close()
		return fmt.Errorf("write local parquet file %q: %w", localPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close local parquet file %q: %w", localPath, err)
	}
	return nil
}

// referencedTables returns the distinct catalog table names following
// FROM and JOIN keywords, in order of first appearance. Subqueries and
// read_parquet calls start with a parenthesis and are skipped by the
// pattern. Names bound by a WITH clause are CTEs, not catalog tables,
// and are excluded.
func referencedTables(sqlText string) []string {
	ctes := cteBindings(sqlText)
	matches := tableRefPattern.FindAllStringSubmatch(sqlText, -1)
	seen := map[string]struct{}{}
	names := make([]string, 0, len(matches))
	for _, match := range matches {
		name := strings.ToLower(match[1])
		if _, ok := ctes[name]; ok {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

func cteBindings(sqlText string) map[string]struct{} {
	bindings := map[string]struct{}{}
	for _, match := range cteBindingPattern.FindAllStringSubmatch(sqlText, -1) {
		bindings[strings.ToLower(match[1])] = struct{}{}
	}
	return bindings
}

func normalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

func quoteStringArray(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, `'`+strings.ReplaceAll(value, `'`, `''`)+`'`)
	}
	return "[" + strings.Join(quoted, ",") + "]"
}

func stripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
