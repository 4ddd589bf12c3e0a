package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/go-pkgz/repeater/v2"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/YuqingLong18/aidaily/pkg/domain"
)

// itemSQL represents an item row for SQL operations
type itemSQL struct {
	ID                  string        `db:"id"`
	ItemType            string        `db:"item_type"`
	Section             string        `db:"section"`
	Title               string        `db:"title"`
	Source              string        `db:"source"`
	SourceURL           string        `db:"source_url"`
	CanonicalURL        string        `db:"canonical_url"`
	ExternalID          string        `db:"external_id"`
	PublishedAt         time.Time     `db:"published_at_utc"`
	EditionDateLocal    string        `db:"edition_date_local"`
	EditionTimezone     string        `db:"edition_timezone"`
	Tags                stringListSQL `db:"tags"`
	Difficulty          string        `db:"difficulty"`
	SummaryBullets      stringListSQL `db:"summary_bullets"`
	WhyItMatters        string        `db:"why_it_matters"`
	MarketImpact        string        `db:"market_impact"`
	SourceReliability   string        `db:"source_reliability"`
	TimestampPrecision  string        `db:"timestamp_precision"`
	TimestampConfidence string        `db:"timestamp_confidence"`
	RankScore           float64       `db:"rank_score"`
	CreatedAt           time.Time     `db:"created_at_utc"`
	UpdatedAt           time.Time     `db:"updated_at_utc"`
}

// stringListSQL is a JSON array of strings for SQL operations
type stringListSQL []string

// Value implements driver.Valuer for database storage
func (l stringListSQL) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database retrieval
func (l *stringListSQL) Scan(value interface{}) error {
	if value == nil {
		*l = stringListSQL{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		*l = stringListSQL{}
		return nil
	}
	return json.Unmarshal(data, l)
}

func toItemSQL(item *domain.Item) *itemSQL {
	return &itemSQL{
		ID:                  item.ID.String(),
		ItemType:            string(item.ItemType),
		Section:             string(item.Section),
		Title:               item.Title,
		Source:              item.Source,
		SourceURL:           item.SourceURL,
		CanonicalURL:        item.CanonicalURL,
		ExternalID:          item.ExternalID,
		PublishedAt:         item.PublishedAt.UTC(),
		EditionDateLocal:    item.EditionDateLocal,
		EditionTimezone:     item.EditionTimezone,
		Tags:                stringListSQL(item.Tags),
		Difficulty:          item.Difficulty,
		SummaryBullets:      stringListSQL(item.SummaryBullets),
		WhyItMatters:        item.WhyItMatters,
		MarketImpact:        item.MarketImpact,
		SourceReliability:   item.SourceReliability,
		TimestampPrecision:  string(item.TimestampPrecision),
		TimestampConfidence: string(item.TimestampConfidence),
		RankScore:           item.RankScore,
		CreatedAt:           item.CreatedAt.UTC(),
		UpdatedAt:           item.UpdatedAt.UTC(),
	}
}

func (r *itemSQL) toDomain() (*domain.Item, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return nil, fmt.Errorf("parse item id %q: %w", r.ID, err)
	}
	return &domain.Item{
		ID:                  id,
		ItemType:            domain.ItemType(r.ItemType),
		Section:             domain.Section(r.Section),
		Title:               r.Title,
		Source:              r.Source,
		SourceURL:           r.SourceURL,
		CanonicalURL:        r.CanonicalURL,
		ExternalID:          r.ExternalID,
		PublishedAt:         r.PublishedAt.UTC(),
		EditionDateLocal:    r.EditionDateLocal,
		EditionTimezone:     r.EditionTimezone,
		Tags:                []string(r.Tags),
		Difficulty:          r.Difficulty,
		SummaryBullets:      []string(r.SummaryBullets),
		WhyItMatters:        r.WhyItMatters,
		MarketImpact:        r.MarketImpact,
		SourceReliability:   r.SourceReliability,
		TimestampPrecision:  domain.TimestampPrecision(r.TimestampPrecision),
		TimestampConfidence: domain.TimestampConfidence(r.TimestampConfidence),
		RankScore:           r.RankScore,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}, nil
}

const insertItemQuery = `
	INSERT INTO items (
		id, item_type, section, title, source, source_url, canonical_url,
		external_id, published_at_utc, edition_date_local, edition_timezone,
		tags, difficulty, summary_bullets, why_it_matters, market_impact,
		source_reliability, timestamp_precision, timestamp_confidence,
		rank_score, created_at_utc, updated_at_utc
	) VALUES (
		:id, :item_type, :section, :title, :source, :source_url, :canonical_url,
		:external_id, :published_at_utc, :edition_date_local, :edition_timezone,
		:tags, :difficulty, :summary_bullets, :why_it_matters, :market_impact,
		:source_reliability, :timestamp_precision, :timestamp_confidence,
		:rank_score, :created_at_utc, :updated_at_utc
	)
`

// merge overwrites content fields but never id, created_at_utc or the
// edition assignment that originally placed the item
const mergeItemQuery = `
	UPDATE items SET
		item_type = :item_type, section = :section, title = :title,
		source = :source, source_url = :source_url,
		canonical_url = :canonical_url, external_id = :external_id,
		published_at_utc = :published_at_utc, tags = :tags,
		difficulty = :difficulty, summary_bullets = :summary_bullets,
		why_it_matters = :why_it_matters, market_impact = :market_impact,
		source_reliability = :source_reliability,
		timestamp_precision = :timestamp_precision,
		timestamp_confidence = :timestamp_confidence,
		rank_score = :rank_score, updated_at_utc = :updated_at_utc
	WHERE id = :id
`

// Upsert resolves the incoming item to an existing record and merges, or
// inserts a new row. Resolution and write happen in one transaction; lock
// errors are retried with backoff, anything else surfaces to the caller as a
// fatal run error.
func (s *Store) Upsert(ctx context.Context, incoming *domain.Item) (*domain.Item, error) {
	var stored *domain.Item
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	err := retrier.Do(ctx, func() error {
		res, uerr := s.upsertOnce(ctx, incoming)
		if uerr != nil {
			if isLockError(uerr) {
				return uerr // retried
			}
			return &criticalError{err: uerr}
		}
		stored = res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("upsert item %s: %w", incoming.SourceURL, err)
	}
	return stored, nil
}

func (s *Store) upsertOnce(ctx context.Context, incoming *domain.Item) (*domain.Item, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := resolveMatch(ctx, tx, incoming)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	merged := *incoming

	if existing == nil {
		merged.CreatedAt = now
		merged.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, insertItemQuery, toItemSQL(&merged)); err != nil {
			return nil, fmt.Errorf("insert item: %w", err)
		}
	} else {
		merged.ID = existing.ID
		merged.CreatedAt = existing.CreatedAt
		merged.EditionDateLocal = existing.EditionDateLocal
		merged.EditionTimezone = existing.EditionTimezone
		merged.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, mergeItemQuery, toItemSQL(&merged)); err != nil {
			return nil, fmt.Errorf("merge item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &merged, nil
}

// resolveMatch finds an existing record under any of the three identity
// signals, first match wins: source_url, then (source, external_id), then
// canonical_url
func resolveMatch(ctx context.Context, tx *sqlx.Tx, incoming *domain.Item) (*domain.Item, error) {
	lookups := []struct {
		enabled bool
		query   string
		args    []interface{}
	}{
		{true, "SELECT * FROM items WHERE source_url = ?", []interface{}{incoming.SourceURL}},
		{incoming.ExternalID != "", "SELECT * FROM items WHERE source = ? AND external_id = ?",
			[]interface{}{incoming.Source, incoming.ExternalID}},
		{incoming.CanonicalURL != "", "SELECT * FROM items WHERE canonical_url = ?",
			[]interface{}{incoming.CanonicalURL}},
	}

	for _, lookup := range lookups {
		if !lookup.enabled {
			continue
		}
		var row itemSQL
		err := tx.GetContext(ctx, &row, lookup.query, lookup.args...)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve match: %w", err)
		}
		return row.toDomain()
	}
	return nil, nil
}

// GetItem retrieves an item by its identity
func (s *Store) GetItem(ctx context.Context, id uuid.UUID) (*domain.Item, error) {
	var row itemSQL
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM items WHERE id = ?", id.String()); err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return row.toDomain()
}

// ListOptions filters edition listings
type ListOptions struct {
	Section domain.Section
	Limit   int
}

// ListEdition returns the items of one edition ordered by rank score then
// publish time, both descending
func (s *Store) ListEdition(ctx context.Context, editionDateLocal, tz string, opts ListOptions) ([]*domain.Item, error) {
	builder := sq.Select("*").From("items").
		Where(sq.Eq{"edition_date_local": editionDateLocal}).
		Where(sq.Eq{"edition_timezone": equivalentTimezones(tz)}).
		OrderBy("rank_score DESC", "published_at_utc DESC")
	if opts.Section != "" {
		builder = builder.Where(sq.Eq{"section": string(opts.Section)})
	}
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build edition query: %w", err)
	}

	var rows []itemSQL
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list edition: %w", err)
	}

	items := make([]*domain.Item, 0, len(rows))
	for i := range rows {
		item, cerr := rows[i].toDomain()
		if cerr != nil {
			return nil, cerr
		}
		items = append(items, item)
	}
	return items, nil
}

// ListEditionDates returns the distinct edition dates stored for a timezone,
// newest first
func (s *Store) ListEditionDates(ctx context.Context, tz string, limit int) ([]string, error) {
	builder := sq.Select("DISTINCT edition_date_local").From("items").
		Where(sq.Eq{"edition_timezone": equivalentTimezones(tz)}).
		OrderBy("edition_date_local DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build edition dates query: %w", err)
	}
	var dates []string
	if err := s.db.SelectContext(ctx, &dates, query, args...); err != nil {
		return nil, fmt.Errorf("list edition dates: %w", err)
	}
	return dates, nil
}

// CountEdition returns the number of items stored for one edition
func (s *Store) CountEdition(ctx context.Context, editionDateLocal, tz string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("items").
		Where(sq.Eq{"edition_date_local": editionDateLocal}).
		Where(sq.Eq{"edition_timezone": equivalentTimezones(tz)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var count int
	if err := s.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("count edition: %w", err)
	}
	return count, nil
}

// UpdateCuration writes back the fields the curation collaborator is allowed
// to touch
func (s *Store) UpdateCuration(ctx context.Context, item *domain.Item) error {
	query := `
		UPDATE items SET
			section = :section, tags = :tags,
			summary_bullets = :summary_bullets,
			why_it_matters = :why_it_matters, market_impact = :market_impact,
			difficulty = :difficulty, source_reliability = :source_reliability,
			timestamp_confidence = :timestamp_confidence,
			rank_score = :rank_score, updated_at_utc = :updated_at_utc
		WHERE id = :id
	`
	row := toItemSQL(item)
	row.UpdatedAt = time.Now().UTC()

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))
	return retrier.Do(ctx, func() error {
		if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
			if isLockError(err) {
				return err
			}
			return &criticalError{err: fmt.Errorf("update curation: %w", err)}
		}
		return nil
	})
}

// equivalentTimezones treats Beijing time as one logical timezone even if
// historical rows were written with another UTC+8 identifier
func equivalentTimezones(tz string) []string {
	if tz == "Asia/Shanghai" || tz == "Asia/Hong_Kong" {
		return []string{"Asia/Shanghai", "Asia/Hong_Kong"}
	}
	return []string{tz}
}
