package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/logger"
)

const probeTimeout = 10 * time.Second

var (
	ErrNotConfigured = errors.New("bigquery client not initialized")

	errMissingProject = errors.New("gcp project id is required")
	errMissingDataset = errors.New("bigquery dataset is required")
	errMissingTable   = errors.New("bigquery table name is required")
)

// Client is the analytics warehouse handle. It only streams rows into the
// sale and stock event tables; the tables themselves are provisioned out of
// band and checked on startup.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	tables  []string
}

func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	if project == "" {
		return nil, errMissingProject
	}
	dataset := strings.TrimSpace(cfg.Dataset)
	if dataset == "" {
		return nil, errMissingDataset
	}
	tables, err := eventTables(cfg)
	if err != nil {
		return nil, err
	}

	bq, err := bigquery.NewClient(ctx, project, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}
	c := &Client{bq: bq, dataset: bq.Dataset(dataset), tables: tables}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"dataset": dataset,
			"tables":  tables,
		}), "bigquery client ready")
	}
	return c, nil
}

func credentials(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// eventTables returns the sale and stock tables; the analytics worker writes
// to both so neither may be blank.
func eventTables(cfg config.BigQueryConfig) ([]string, error) {
	sale := strings.TrimSpace(cfg.SaleEventsTable)
	stock := strings.TrimSpace(cfg.StockEventsTable)
	if sale == "" || stock == "" {
		return nil, errMissingTable
	}
	if sale == stock {
		return nil, fmt.Errorf("sale and stock events must use different tables, both are %q", sale)
	}
	return []string{sale, stock}, nil
}

// Ping confirms the dataset and event tables exist.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return ErrNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeMissing("dataset", c.dataset.DatasetID, err)
	}
	for _, name := range c.tables {
		if _, err := c.dataset.Table(name).Metadata(ctx); err != nil {
			return describeMissing("table", name, err)
		}
	}
	return nil
}

// InsertRows streams rows into a table of the configured dataset.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return ErrNotConfigured
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errMissingTable
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func describeMissing(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("bigquery %s %q does not exist", kind, name)
	}
	return fmt.Errorf("check bigquery %s %q: %w", kind, name, err)
}
