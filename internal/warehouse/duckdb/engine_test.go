package duckdb

import (
	"context"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/querytalk/querytalk/internal/catalog"
	"github.com/querytalk/querytalk/internal/storage"
	"github.com/querytalk/querytalk/internal/warehouse"
)

type fakeCatalog struct {
	tables map[string]catalog.Table
	files  map[int64][]catalog.TableFile
}

func (f *fakeCatalog) HealthCheck(context.Context) error { return nil }

func (f *fakeCatalog) ListTables(context.Context, string) ([]catalog.Table, error) {
	tables := make([]catalog.Table, 0, len(f.tables))
	for _, table := range f.tables {
		tables = append(tables, table)
	}
	return tables, nil
}

func (f *fakeCatalog) GetTableByName(_ context.Context, _, tableName string) (catalog.Table, error) {
	table, ok := f.tables[tableName]
	if !ok {
		return catalog.Table{}, catalog.ErrNotFound
	}
	return table, nil
}

func (f *fakeCatalog) ListTableFiles(_ context.Context, tableID int64) ([]catalog.TableFile, error) {
	return f.files[tableID], nil
}

func (f *fakeCatalog) CreateTable(context.Context, catalog.CreateTableInput) (catalog.Table, error) {
	return catalog.Table{}, errors.New("not implemented")
}

func (f *fakeCatalog) AddTableFile(context.Context, catalog.AddTableFileInput) (catalog.TableFile, error) {
	return catalog.TableFile{}, errors.New("not implemented")
}

type nopStore struct{}

func (nopStore) Put(context.Context, string, io.Reader, int64, storage.PutOptions) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, errors.New("not implemented")
}

func (nopStore) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrObjectNotFound
}

func (nopStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, storage.ErrObjectNotFound
}

func testEngine(t *testing.T) (*Engine, *fakeCatalog) {
	t.Helper()
	fake := &fakeCatalog{
		tables: map[string]catalog.Table{
			"showtime_fact": {TableID: 1, DatasetName: "entertainment", TableName: "showtime_fact"},
			"content_dimension": {
				TableID:     2,
				DatasetName: "entertainment",
				TableName:   "content_dimension",
				Columns:     []catalog.Column{{Name: "content_id", Type: "INTEGER", Description: "Primary key"}},
			},
		},
		files: map[int64][]catalog.TableFile{
			1: {{FileID: 1, TableID: 1, ObjectKey: "entertainment/showtime_fact/part-00000.parquet", FileSizeBytes: 1000}},
			2: {
				{FileID: 2, TableID: 2, ObjectKey: "entertainment/content_dimension/part-00000.parquet", FileSizeBytes: 300},
				{FileID: 3, TableID: 2, ObjectKey: "entertainment/content_dimension/part-00001.parquet", FileSizeBytes: 200},
			},
		},
	}
	engine, err := NewEngine(fake, nopStore{}, "entertainment")
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine, fake
}

func TestReferencedTables(t *testing.T) {
	cases := []struct {
		sql  string
		want []string
	}{
		{"SELECT * FROM showtime_fact", []string{"showtime_fact"}},
		{"SELECT * FROM showtime_fact sf JOIN content_dimension cd ON sf.content_id = cd.content_id", []string{"showtime_fact", "content_dimension"}},
		{"SELECT * FROM showtime_fact WHERE content_id IN (SELECT content_id FROM content_dimension)", []string{"showtime_fact", "content_dimension"}},
		{"SELECT * FROM ShowTime_Fact JOIN showtime_fact x ON true", []string{"showtime_fact"}},
		{"WITH recent AS (SELECT * FROM showtime_fact WHERE show_date > '2026-08-01') SELECT cd.title FROM recent JOIN content_dimension cd ON recent.content_id = cd.content_id", []string{"showtime_fact", "content_dimension"}},
		{"WITH RECURSIVE seq AS (SELECT 1), top_titles AS (SELECT title FROM content_dimension) SELECT * FROM seq JOIN top_titles ON true", []string{"content_dimension"}},
		{"SELECT 1", nil},
	}
	for _, tc := range cases {
		got := referencedTables(tc.sql)
		if len(got) == 0 && len(tc.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("referencedTables(%q) = %v, want %v", tc.sql, got, tc.want)
		}
	}
}

func TestEstimateCostSumsFileSizes(t *testing.T) {
	engine, _ := testEngine(t)

	bytes, err := engine.EstimateCost(context.Background(), "SELECT count(*) FROM showtime_fact sf JOIN content_dimension cd ON sf.content_id = cd.content_id")
	if err != nil {
		t.Fatalf("EstimateCost() error = %v", err)
	}
	if bytes != 1500 {
		t.Fatalf("EstimateCost() = %d, want 1500", bytes)
	}
}

func TestEstimateCostResolvesThroughCTEs(t *testing.T) {
	engine, _ := testEngine(t)

	sqlText := "WITH recent AS (SELECT content_id FROM showtime_fact WHERE show_date > '2026-08-01') " +
		"SELECT count(*) FROM recent JOIN content_dimension cd ON recent.content_id = cd.content_id"
	bytes, err := engine.EstimateCost(context.Background(), sqlText)
	if err != nil {
		t.Fatalf("EstimateCost() error = %v", err)
	}
	if bytes != 1500 {
		t.Fatalf("EstimateCost() = %d, want 1500", bytes)
	}
}

func TestEstimateCostUnknownTable(t *testing.T) {
	engine, _ := testEngine(t)

	_, err := engine.EstimateCost(context.Background(), "SELECT * FROM missing_fact")
	if !errors.Is(err, warehouse.ErrUnknownTable) {
		t.Fatalf("EstimateCost() error = %v, want ErrUnknownTable", err)
	}
}

func TestFetchSchemaMapsColumns(t *testing.T) {
	engine, _ := testEngine(t)

	schemas, err := engine.FetchSchema(context.Background())
	if err != nil {
		t.Fatalf("FetchSchema() error = %v", err)
	}
	if len(schemas) != 2 {
		t.Fatalf("FetchSchema() returned %d tables", len(schemas))
	}
	for _, schema := range schemas {
		if schema.TableName != "content_dimension" {
			continue
		}
		if len(schema.Columns) != 1 || schema.Columns[0].Description != "Primary key" {
			t.Fatalf("content_dimension columns = %+v", schema.Columns)
		}
		return
	}
	t.Fatal("content_dimension missing from schema")
}

func TestStripTrailingSemicolons(t *testing.T) {
	if got := stripTrailingSemicolons("SELECT 1;; "); got != "SELECT 1" {
		t.Fatalf("stripTrailingSemicolons() = %q", got)
	}
}

func TestQuoteStringArray(t *testing.T) {
	got := quoteStringArray([]string{"/tmp/a.parquet", "it's"})
	want := `['/tmp/a.parquet','it''s']`
	if got != want {
		t.Fatalf("quoteStringArray() = %q, want %q", got, want)
	}
}
