package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/pos-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/pos-backend/pkg/bigquery"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

type Config struct {
	SaleTable   string
	StockTable  string
	BatchSize   int
	RetryPolicy RetryPolicy
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = max(defaultMaximumBackoff, p.InitialBackoff)
	}
	return p
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// pending holds rows for one table until the batch fills.
type pending[T any] struct {
	table string
	rows  []T
}

func (p *pending[T]) add(row T) int {
	p.rows = append(p.rows, row)
	return len(p.rows)
}

func (p *pending[T]) drain() []any {
	out := make([]any, len(p.rows))
	for i := range p.rows {
		out[i] = &p.rows[i]
	}
	return out
}

// BigQueryWriter streams sale and stock rows into their BigQuery tables.
// Pub/Sub callbacks run concurrently, so every buffer access holds mu.
type BigQueryWriter struct {
	client    tableInserter
	batchSize int
	retry     RetryPolicy

	mu    sync.Mutex
	sales pending[types.SaleEventRow]
	stock pending[types.StockEventRow]
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	saleTable := strings.TrimSpace(cfg.SaleTable)
	stockTable := strings.TrimSpace(cfg.StockTable)
	switch {
	case saleTable == "":
		return nil, errors.New("sale table is required")
	case stockTable == "":
		return nil, errors.New("stock table is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BigQueryWriter{
		client:    client,
		batchSize: batchSize,
		retry:     cfg.RetryPolicy.withDefaults(),
		sales:     pending[types.SaleEventRow]{table: saleTable},
		stock:     pending[types.StockEventRow]{table: stockTable},
	}, nil
}

func (w *BigQueryWriter) InsertSale(ctx context.Context, row types.SaleEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sales.add(row) < w.batchSize {
		return nil
	}
	return flush(ctx, w, &w.sales)
}

func (w *BigQueryWriter) InsertStock(ctx context.Context, row types.StockEventRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stock.add(row) < w.batchSize {
		return nil
	}
	return flush(ctx, w, &w.stock)
}

// Flush writes whatever is buffered regardless of batch size.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return errors.Join(flush(ctx, w, &w.sales), flush(ctx, w, &w.stock))
}

// flush keeps the rows buffered when the insert fails so the next flush
// retries them.
func flush[T any](ctx context.Context, w *BigQueryWriter, buf *pending[T]) error {
	if len(buf.rows) == 0 {
		return nil
	}
	if err := w.insert(ctx, buf.table, buf.drain()); err != nil {
		return err
	}
	buf.rows = buf.rows[:0]
	return nil
}

func (w *BigQueryWriter) insert(ctx context.Context, table string, rows []any) error {
	wait := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !transient(err) {
			return fmt.Errorf("insert %d rows into %s after %d attempt(s): %w", len(rows), table, attempt, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait = min(wait*2, w.retry.MaximumBackoff)
	}
}
