// Package bigquery streams analytics rows into one dataset.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/tourbook-backend/pkg/config"
	"github.com/angelmondragon/tourbook-backend/pkg/gcp"
	"github.com/angelmondragon/tourbook-backend/pkg/logger"
)

const metadataTimeout = 10 * time.Second

var errClosed = errors.New("bigquery client not initialized")

// TableSpec describes a table the caller streams into. PartitionField, when
// set, names a TIMESTAMP column used for daily partitions on creation.
type TableSpec struct {
	Name           string
	Schema         bigquery.Schema
	PartitionField string
}

// Client owns the dataset handle and one inserter per prepared table.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	create  bool
	logg    *logger.Logger

	mu        sync.RWMutex
	inserters map[string]*bigquery.Inserter
}

// NewClient connects to the configured project. Call Prepare before
// inserting.
func NewClient(ctx context.Context, gcpCfg config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcpCfg.ProjectID)
	dataset := strings.TrimSpace(cfg.Dataset)
	switch {
	case project == "":
		return nil, errors.New("gcp project id is required")
	case dataset == "":
		return nil, errors.New("bigquery dataset is required")
	}

	bq, err := bigquery.NewClient(ctx, project, gcp.ClientOptions(gcpCfg)...)
	if err != nil {
		return nil, fmt.Errorf("connect bigquery: %w", err)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Client{
		bq:        bq,
		dataset:   bq.Dataset(dataset),
		create:    cfg.CreateTables,
		logg:      logg,
		inserters: map[string]*bigquery.Inserter{},
	}, nil
}

// Prepare checks the dataset and each table. Missing tables are created
// when table creation is enabled and reported otherwise.
func (c *Client) Prepare(ctx context.Context, specs ...TableSpec) error {
	if c == nil || c.dataset == nil {
		return errClosed
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describe("dataset", c.dataset.DatasetID, err)
	}
	for _, spec := range specs {
		if err := c.prepareTable(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) prepareTable(ctx context.Context, spec TableSpec) error {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return errors.New("bigquery table name is required")
	}
	table := c.dataset.Table(name)
	_, err := table.Metadata(ctx)
	switch {
	case err == nil:
	case notFound(err) && c.create:
		meta := &bigquery.TableMetadata{Schema: spec.Schema}
		if spec.PartitionField != "" {
			meta.TimePartitioning = &bigquery.TimePartitioning{
				Type:  bigquery.DayPartitioningType,
				Field: spec.PartitionField,
			}
		}
		if err := table.Create(ctx, meta); err != nil {
			return fmt.Errorf("create table %q: %w", name, err)
		}
		c.logg.Info(c.logg.WithField(ctx, "table", name), "bigquery table created")
	default:
		return describe("table", name, err)
	}

	c.mu.Lock()
	c.inserters[name] = table.Inserter()
	c.mu.Unlock()
	return nil
}

// Ping checks the dataset is still reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClosed
	}
	ctx, cancel := context.WithTimeout(ctx, metadataTimeout)
	defer cancel()
	_, err := c.dataset.Metadata(ctx)
	return err
}

// InsertRows streams rows into a prepared table. Rows may be structs with
// bigquery tags or ValueSavers.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.dataset == nil {
		return errClosed
	}
	if len(rows) == 0 {
		return nil
	}
	c.mu.RLock()
	ins, ok := c.inserters[table]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("table %q was not prepared", table)
	}
	return ins.Put(ctx, rows)
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func describe(kind, name string, err error) error {
	if notFound(err) {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("check %s %q: %w", kind, name, err)
}

func notFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
