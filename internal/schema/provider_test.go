package schema

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/querytalk/querytalk/internal/warehouse"
)

type fakeWarehouse struct {
	fetches atomic.Int64
	tables  []warehouse.TableSchema
	err     error
}

func (f *fakeWarehouse) FetchSchema(context.Context) ([]warehouse.TableSchema, error) {
	f.fetches.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.tables, nil
}

func (f *fakeWarehouse) EstimateCost(context.Context, string) (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeWarehouse) Execute(context.Context, string, int) (warehouse.Result, error) {
	return warehouse.Result{}, errors.New("not implemented")
}

func testTables() []warehouse.TableSchema {
	return []warehouse.TableSchema{
		{
			TableName:   "content_dimension",
			Description: "Movies and shows",
			Columns: []warehouse.Column{
				{Name: "content_id", Type: "INTEGER", Description: "Primary key"},
				{Name: "genres", Type: "VARCHAR[]"},
			},
		},
	}
}

func TestTablesCachesWithinTTL(t *testing.T) {
	fake := &fakeWarehouse{tables: testTables()}
	provider, err := NewProvider(fake, time.Hour)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		tables, err := provider.Tables(context.Background())
		if err != nil {
			t.Fatalf("Tables() error = %v", err)
		}
		if len(tables) != 1 {
			t.Fatalf("Tables() returned %d tables", len(tables))
		}
	}
	if got := fake.fetches.Load(); got != 1 {
		t.Fatalf("fetch count = %d, want 1", got)
	}
}

func TestTablesRefreshesAfterTTL(t *testing.T) {
	fake := &fakeWarehouse{tables: testTables()}
	provider, err := NewProvider(fake, time.Hour)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	current := time.Now()
	provider.now = func() time.Time { return current }

	if _, err := provider.Tables(context.Background()); err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	current = current.Add(2 * time.Hour)
	if _, err := provider.Tables(context.Background()); err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if got := fake.fetches.Load(); got != 2 {
		t.Fatalf("fetch count = %d, want 2", got)
	}
}

func TestTablesServesStaleSnapshotOnRefreshFailure(t *testing.T) {
	fake := &fakeWarehouse{tables: testTables()}
	provider, err := NewProvider(fake, time.Hour)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	current := time.Now()
	provider.now = func() time.Time { return current }

	if _, err := provider.Tables(context.Background()); err != nil {
		t.Fatalf("Tables() error = %v", err)
	}

	fake.err = errors.New("catalog down")
	current = current.Add(2 * time.Hour)
	tables, err := provider.Tables(context.Background())
	if err != nil {
		t.Fatalf("Tables() after failure error = %v", err)
	}
	if len(tables) != 1 {
		t.Fatalf("stale Tables() returned %d tables", len(tables))
	}
}

func TestTablesColdCacheFailure(t *testing.T) {
	fake := &fakeWarehouse{err: errors.New("catalog down")}
	provider, err := NewProvider(fake, time.Hour)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}
	if _, err := provider.Tables(context.Background()); !errors.Is(err, ErrSchemaUnavailable) {
		t.Fatalf("Tables() error = %v, want ErrSchemaUnavailable", err)
	}
}

func TestPromptText(t *testing.T) {
	text := PromptText(testTables())
	for _, want := range []string{"Table: content_dimension", "Movies and shows", "content_id INTEGER: Primary key", "genres VARCHAR[]"} {
		if !strings.Contains(text, want) {
			t.Fatalf("PromptText() missing %q:\n%s", want, text)
		}
	}
}
