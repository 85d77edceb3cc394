// Package milvus stores candidate records in a Milvus collection.
package milvus

import (
	"context"
	"errors"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("milvus")

// api is the subset of client.Client the repository uses.
type api interface {
	HasCollection(ctx context.Context, collName string) (bool, error)
	CreateCollection(ctx context.Context, schema *entity.Schema, shardsNum int32, opts ...client.CreateCollectionOption) error
	CreateIndex(ctx context.Context, collName, fieldName string, idx entity.Index, async bool, opts ...client.IndexOption) error
	LoadCollection(ctx context.Context, collName string, async bool, opts ...client.LoadCollectionOption) error
	Upsert(ctx context.Context, collName, partitionName string, columns ...entity.Column) (entity.Column, error)
	Search(ctx context.Context, collName string, partitions []string, expr string, outputFields []string,
		vectors []entity.Vector, vectorField string, metricType entity.MetricType, topK int,
		sp entity.SearchParam, opts ...client.SearchQueryOptionFunc) ([]client.SearchResult, error)
	Close() error
}

// Config holds Milvus connection and collection settings.
type Config struct {
	Address    string
	Username   string
	Password   string
	DBName     string
	Collection string
	Dimensions int
	// HNSW build and search parameters.
	M           int
	EFConstruct int
	EFSearch    int
}

// Defaults.
const (
	DefaultCollection  = "dealscout_candidates"
	DefaultM           = 16
	DefaultEFConstruct = 200
	DefaultEFSearch    = 128
)

func (c *Config) applyDefaults() {
	if c.Collection == "" {
		c.Collection = DefaultCollection
	}
	if c.M <= 0 {
		c.M = DefaultM
	}
	if c.EFConstruct <= 0 {
		c.EFConstruct = DefaultEFConstruct
	}
	if c.EFSearch <= 0 {
		c.EFSearch = DefaultEFSearch
	}
}

// Dial connects to Milvus and returns a repository bound to the configured collection.
func Dial(ctx context.Context, cfg Config) (*Repo, error) {
	if cfg.Address == "" {
		return nil, errors.New("milvus address is required")
	}
	c, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.DBName,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to milvus: %w", err)
	}
	return newRepo(c, cfg), nil
}
