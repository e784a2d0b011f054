// Package schema caches the dataset schema the pipeline embeds into
// its prompts, refreshing it from the warehouse on a TTL.
package schema

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/querytalk/querytalk/internal/warehouse"
)

var ErrSchemaUnavailable = errors.New("schema: unavailable")

type Provider struct {
	client warehouse.Client
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu        sync.RWMutex
	cached    []warehouse.TableSchema
	fetchedAt time.Time
}

func NewProvider(client warehouse.Client, ttl time.Duration) (*Provider, error) {
	if client == nil {
		return nil, fmt.Errorf("warehouse client is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Provider{client: client, ttl: ttl, now: time.Now}, nil
}

// Tables returns the cached schema, fetching it when the cache is cold
// or expired. Concurrent refreshes collapse into a single warehouse
// call. A failed refresh falls back to the previous snapshot if one
// exists.
func (p *Provider) Tables(ctx context.Context) ([]warehouse.TableSchema, error) {
	p.mu.RLock()
	cached := p.cached
	fresh := cached != nil && p.now().Sub(p.fetchedAt) < p.ttl
	p.mu.RUnlock()
	if fresh {
		return cached, nil
	}

	result, err, _ := p.group.Do("schema", func() (any, error) {
		p.mu.RLock()
		current := p.cached
		stillFresh := current != nil && p.now().Sub(p.fetchedAt) < p.ttl
		p.mu.RUnlock()
		if stillFresh {
			return current, nil
		}

		tables, err := p.client.FetchSchema(ctx)
		if err != nil {
			if current != nil {
				return current, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrSchemaUnavailable, err)
		}
		if len(tables) == 0 {
			return nil, fmt.Errorf("%w: dataset has no tables", ErrSchemaUnavailable)
		}

		p.mu.Lock()
		p.cached = tables
		p.fetchedAt = p.now()
		p.mu.Unlock()
		return tables, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]warehouse.TableSchema), nil
}

// PromptText renders the schema as the table/column listing embedded in
// model prompts.
func PromptText(tables []warehouse.TableSchema) string {
	var b strings.Builder
	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("Table: ")
		b.WriteString(table.TableName)
		if table.Description != "" {
			b.WriteString(" -- ")
			b.WriteString(table.Description)
		}
		b.WriteString("\n")
		for _, column := range table.Columns {
			b.WriteString("  ")
			b.WriteString(column.Name)
			b.WriteString(" ")
			b.WriteString(column.Type)
			if column.Description != "" {
				b.WriteString(": ")
				b.WriteString(column.Description)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
