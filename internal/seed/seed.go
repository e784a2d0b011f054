package seed

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/parquet-go/parquet-go"

	"github.com/querytalk/querytalk/internal/catalog"
	"github.com/querytalk/querytalk/internal/storage"
)

type Seeder struct {
	Logger  *slog.Logger
	Catalog catalog.Store
	Store   storage.ObjectStore
	Dataset string
}

type tableSpec struct {
	name        string
	description string
	columns     []catalog.Column
}

var (
	contentSpec = tableSpec{
		name:        "content_dimension",
		description: "Movies and shows available in cinemas and on streaming channels",
		columns: []catalog.Column{
			{Name: "content_id", Type: "BIGINT", Description: "Primary key"},
			{Name: "title", Type: "VARCHAR", Description: "Display title"},
			{Name: "content_type", Type: "VARCHAR", Description: "movie or show"},
			{Name: "release_year", Type: "INTEGER"},
			{Name: "genres", Type: "VARCHAR[]", Description: "Array column, expand with UNNEST before filtering or grouping"},
			{Name: "languages", Type: "VARCHAR[]", Description: "Array column, expand with UNNEST before filtering or grouping"},
			{Name: "rating_score", Type: "DOUBLE", Description: "Average audience rating from 0 to 10"},
		},
	}
	cinemaSpec = tableSpec{
		name:        "cinema_dimension",
		description: "Cinema locations",
		columns: []catalog.Column{
			{Name: "cinema_id", Type: "BIGINT", Description: "Primary key"},
			{Name: "name", Type: "VARCHAR"},
			{Name: "city", Type: "VARCHAR"},
			{Name: "region", Type: "VARCHAR", Description: "north, south, east, or west"},
			{Name: "capacity", Type: "INTEGER", Description: "Seats per screening"},
		},
	}
	channelSpec = tableSpec{
		name:        "channel_dimension",
		description: "Streaming channels",
		columns: []catalog.Column{
			{Name: "channel_id", Type: "BIGINT", Description: "Primary key"},
			{Name: "name", Type: "VARCHAR"},
			{Name: "platform", Type: "VARCHAR", Description: "web, mobile, or tv"},
			{Name: "monthly_price", Type: "DOUBLE", Description: "Subscription price in EUR"},
		},
	}
	showtimeSpec = tableSpec{
		name:        "showtime_fact",
		description: "One row per cinema screening",
		columns: []catalog.Column{
			{Name: "showtime_id", Type: "BIGINT", Description: "Primary key"},
			{Name: "content_id", Type: "BIGINT", Description: "References content_dimension.content_id"},
			{Name: "cinema_id", Type: "BIGINT", Description: "References cinema_dimension.cinema_id"},
			{Name: "show_date", Type: "VARCHAR", Description: "Screening date as YYYY-MM-DD"},
			{Name: "attendance", Type: "INTEGER", Description: "Tickets sold for the screening"},
			{Name: "ticket_price", Type: "DOUBLE", Description: "Price per ticket in EUR"},
		},
	}
	streamingSpec = tableSpec{
		name:        "streamings_fact",
		description: "One row per content per channel per day of streaming activity",
		columns: []catalog.Column{
			{Name: "streaming_id", Type: "BIGINT", Description: "Primary key"},
			{Name: "content_id", Type: "BIGINT", Description: "References content_dimension.content_id"},
			{Name: "channel_id", Type: "BIGINT", Description: "References channel_dimension.channel_id"},
			{Name: "stream_date", Type: "VARCHAR", Description: "Activity date as YYYY-MM-DD"},
			{Name: "watch_hours", Type: "DOUBLE", Description: "Total hours watched"},
			{Name: "unique_viewers", Type: "INTEGER", Description: "Distinct viewers"},
		},
	}
)

// Run generates the dataset, uploads one parquet file per table, and
// registers everything in the catalog. It is idempotent: both the
// catalog writes and the object uploads overwrite previous runs.
func (s *Seeder) Run(ctx context.Context, seed int64) error {
	if s.Catalog == nil || s.Store == nil || s.Dataset == "" {
		return fmt.Errorf("catalog, store, and dataset name are required")
	}

	generator := NewGenerator(seed)
	contents := generator.Contents(200)
	cinemas := generator.Cinemas()
	channels := generator.Channels()
	showtimes := generator.Showtimes(5000, contents, cinemas)
	streamings := generator.Streamings(8000, contents, channels)

	if err := seedTable(ctx, s, contentSpec, contents); err != nil {
		return err
	}
	if err := seedTable(ctx, s, cinemaSpec, cinemas); err != nil {
		return err
	}
	if err := seedTable(ctx, s, channelSpec, channels); err != nil {
		return err
	}
	if err := seedTable(ctx, s, showtimeSpec, showtimes); err != nil {
		return err
	}
	return seedTable(ctx, s, streamingSpec, streamings)
}

func seedTable[T any](ctx context.Context, s *Seeder, spec tableSpec, rows []T) error {
	data, err := encodeParquet(rows)
	if err != nil {
		return fmt.Errorf("encode %s: %w", spec.name, err)
	}

	key, err := storage.BuildDatasetFilePath(s.Dataset, spec.name, 0)
	if err != nil {
		return fmt.Errorf("build key for %s: %w", spec.name, err)
	}
	if _, err := s.Store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), storage.PutOptions{ContentType: "application/octet-stream"}); err != nil {
		return fmt.Errorf("upload %s: %w", spec.name, err)
	}

	table, err := s.Catalog.CreateTable(ctx, catalog.CreateTableInput{
		DatasetName: s.Dataset,
		TableName:   spec.name,
		Description: spec.description,
		Columns:     spec.columns,
	})
	if err != nil {
		return fmt.Errorf("register table %s: %w", spec.name, err)
	}
	if _, err := s.Catalog.AddTableFile(ctx, catalog.AddTableFileInput{
		TableID:       table.TableID,
		ObjectKey:     key,
		FileSizeBytes: int64(len(data)),
		RecordCount:   int64(len(rows)),
	}); err != nil {
		return fmt.Errorf("register file for %s: %w", spec.name, err)
	}

	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "table_seeded",
			slog.String("table", spec.name),
			slog.Int("rows", len(rows)),
			slog.Int("bytes", len(data)),
		)
	}
	return nil
}

func encodeParquet[T any](rows []T) ([]byte, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("rows are required")
	}
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[T](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}
