// Package deals reads deal rows from the Postgres system of record.
package deals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/kailas-cloud/dealscout/internal/domain/candidate"
)

// DefaultTable is the deals table name.
const DefaultTable = "deals"

var columns = []string{
	"id", "brokerage", "first_name", "last_name", "linkedin_url", "work_phone", "email",
	"title", "description", "industry", "deal_caption", "deal_teaser", "source_website", "company_location",
	"revenue", "ebitda", "ebitda_margin", "gross_revenue", "asking_price",
	"deal_type", "created_at", "updated_at", "is_published", "is_reviewed", "seen", "tags",
	"business_strategy", "business_strategy_confidence", "growth_stage", "growth_stage_confidence",
}

// querier is the part of *sql.DB the source needs.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	PingContext(ctx context.Context) error
}

// Config controls which rows are read.
type Config struct {
	Table         string
	PublishedOnly bool
	// Pool limits.
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Source pages through deals in id order.
type Source struct {
	db     querier
	closer func() error
	query  string
}

// Open connects to Postgres through lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string, cfg Config) (*Source, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewSource(db, cfg)
	s.closer = db.Close
	return s, nil
}

// NewSource wraps an existing connection.
func NewSource(db querier, cfg Config) *Source {
	return &Source{db: db, query: buildPageQuery(cfg)}
}

// Close releases the connection pool if the source opened it.
func (s *Source) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

// Ping checks the connection.
func (s *Source) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Page returns up to limit deals with id greater than afterID, ordered by id.
// An empty afterID starts from the beginning.
func (s *Source) Page(ctx context.Context, afterID string, limit int) ([]candidate.Record, error) {
	rows, err := s.db.QueryContext(ctx, s.query, afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("query deals: %w", err)
	}
	defer rows.Close()

	out := make([]candidate.Record, 0, limit)
	for rows.Next() {
		rec, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deals: %w", err)
	}
	return out, nil
}

func buildPageQuery(cfg Config) string {
	table := cfg.Table
	if table == "" {
		table = DefaultTable
	}
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(" FROM ")
	b.WriteString(pq.QuoteIdentifier(table))
	b.WriteString(" WHERE id > $1")
	if cfg.PublishedOnly {
		b.WriteString(" AND is_published")
	}
	b.WriteString(" ORDER BY id LIMIT $2")
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDeal(row rowScanner) (candidate.Record, error) {
	var (
		rec                                      candidate.Record
		brokerage, firstName, lastName, linkedIn sql.NullString
		phone, email, title, description         sql.NullString
		industry, caption, teaser, website, loc  sql.NullString
		revenue, ebitda, margin, gross, asking   sql.NullFloat64
		dealType, strategy, stage                sql.NullString
		strategyConf, stageConf                  sql.NullFloat64
		createdAt, updatedAt                     sql.NullTime
		tags                                     pq.StringArray
	)
	err := row.Scan(
		&rec.ID, &brokerage, &firstName, &lastName, &linkedIn, &phone, &email,
		&title, &description, &industry, &caption, &teaser, &website, &loc,
		&revenue, &ebitda, &margin, &gross, &asking,
		&dealType, &createdAt, &updatedAt, &rec.IsPublished, &rec.IsReviewed, &rec.Seen, &tags,
		&strategy, &strategyConf, &stage, &stageConf,
	)
	if err != nil {
		return candidate.Record{}, fmt.Errorf("scan deal: %w", err)
	}

	rec.Brokerage = brokerage.String
	rec.FirstName = firstName.String
	rec.LastName = lastName.String
	rec.LinkedInURL = linkedIn.String
	rec.WorkPhone = phone.String
	rec.Email = email.String
	rec.Title = title.String
	rec.Description = description.String
	rec.Industry = industry.String
	rec.DealCaption = caption.String
	rec.DealTeaser = teaser.String
	rec.SourceWebsite = website.String
	rec.CompanyLocation = loc.String

	rec.Revenue = floatPtr(revenue)
	rec.EBITDA = floatPtr(ebitda)
	rec.EBITDAMargin = floatPtr(margin)
	rec.GrossRevenue = floatPtr(gross)
	rec.AskingPrice = floatPtr(asking)

	rec.DealType = candidate.DealType(dealType.String)
	rec.CreatedAt = timePtr(createdAt)
	rec.UpdatedAt = timePtr(updatedAt)
	if len(tags) > 0 {
		rec.Tags = []string(tags)
	}

	// Неизвестные значения перечислений отбрасываем, сделка всё равно пригодна для поиска.
	if s := candidate.Strategy(strategy.String); strategy.Valid && s.Valid() {
		rec.BusinessStrategy = &s
		rec.BusinessStrategyConfidence = floatPtr(strategyConf)
	}
	if g := candidate.GrowthStage(stage.String); stage.Valid && g.Valid() {
		rec.GrowthStage = &g
		rec.GrowthStageConfidence = floatPtr(stageConf)
	}
	if !rec.DealType.Valid() {
		rec.DealType = ""
	}
	return rec, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
