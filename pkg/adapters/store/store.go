// Package store persists ProductRecords and answers diagnostic queries
// used by the maintenance RPCs (pagination-mismatch scan, duplicate-url
// cleanup), using hand-written SQL over database/sql and the pgx driver.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
)

// Upsert result values reported back up through DataSaving.
const (
	ResultInserted  = "inserted"
	ResultUpdated   = "updated"
	ResultUnchanged = "unchanged"
)

// Mismatch describes a product whose persisted coordinate does not match
// the coordinate the calculator would assign today, surfaced by
// ScanPaginationMismatches.
type Mismatch struct {
	URL                string `json:"url"`
	ExpectedPageID      int    `json:"expected_page_id"`
	ExpectedIndexInPage int    `json:"expected_index_in_page"`
	StoredPageID        int    `json:"stored_page_id"`
	StoredIndexInPage   int    `json:"stored_index_in_page"`
}

// Repository is the external interface strategies and maintenance RPCs
// depend on for persistence.
type Repository interface {
	UpsertProduct(ctx context.Context, record domain.ProductRecord) (string, error)
	ListProducts(ctx context.Context, offset, limit int) ([]domain.ProductRecord, int, error)
	ScanPaginationMismatches(ctx context.Context, expect func(url string) (pageID, indexInPage int, ok bool)) ([]Mismatch, error)
	CleanupDuplicateURLs(ctx context.Context) (int, error)
	CountProducts(ctx context.Context) (int, error)
	MaxPageID(ctx context.Context) (int, error)
}

// PostgresRepository implements Repository against the products table
// created by the embedded migrations.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an open *sql.DB (typically database.Client.DB()).
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) UpsertProduct(ctx context.Context, record domain.ProductRecord) (string, error) {
	attrs, err := json.Marshal(record.Attributes)
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}

	// The DO UPDATE's WHERE guard makes the update a no-op, not just a
	// same-value rewrite, whenever the incoming record is identical to
	// what's stored: Postgres then skips the row entirely and RETURNING
	// produces no row for it, which surfaces here as sql.ErrNoRows. That
	// is how ResultUnchanged is detected.
	var result string
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO products (url, page_id, index_in_page, name, manufacturer, model, certificate_id, attributes, quality_flag, fetched_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9, now())
		ON CONFLICT (url) DO UPDATE SET
			page_id = EXCLUDED.page_id,
			index_in_page = EXCLUDED.index_in_page,
			name = EXCLUDED.name,
			manufacturer = EXCLUDED.manufacturer,
			model = EXCLUDED.model,
			certificate_id = EXCLUDED.certificate_id,
			attributes = EXCLUDED.attributes,
			quality_flag = EXCLUDED.quality_flag,
			updated_at = now()
		WHERE (products.page_id, products.index_in_page, products.name, products.manufacturer, products.model, products.certificate_id, products.attributes, products.quality_flag)
			IS DISTINCT FROM
			(EXCLUDED.page_id, EXCLUDED.index_in_page, EXCLUDED.name, EXCLUDED.manufacturer, EXCLUDED.model, EXCLUDED.certificate_id, EXCLUDED.attributes, EXCLUDED.quality_flag)
		RETURNING CASE WHEN xmax = 0 THEN 'inserted' ELSE 'updated' END
	`, record.URL, record.PageID, record.IndexInPage, record.Name, record.Manufacturer, record.Model, record.Certificate, attrs, string(record.Quality)).Scan(&result)
	if err == sql.ErrNoRows {
		return ResultUnchanged, nil
	}
	if err != nil {
		return "", fmt.Errorf("upsert product %s: %w", record.URL, err)
	}
	return result, nil
}

func (r *PostgresRepository) ListProducts(ctx context.Context, offset, limit int) ([]domain.ProductRecord, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT url, page_id, index_in_page, name, manufacturer, model, certificate_id, attributes, quality_flag, fetched_at
		FROM products ORDER BY page_id DESC, index_in_page DESC OFFSET $1 LIMIT $2`, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var records []domain.ProductRecord
	for rows.Next() {
		var rec domain.ProductRecord
		var attrs []byte
		var quality string
		if err := rows.Scan(&rec.URL, &rec.PageID, &rec.IndexInPage, &rec.Name, &rec.Manufacturer, &rec.Model, &rec.Certificate, &attrs, &quality, &rec.FetchedAt); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &rec.Attributes); err != nil {
				return nil, 0, fmt.Errorf("unmarshal attributes for %s: %w", rec.URL, err)
			}
		}
		rec.Quality = domain.QualityFlag(quality)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate products: %w", err)
	}
	return records, total, nil
}

// ScanPaginationMismatches walks every stored product and compares its
// persisted coordinate against the coordinate expect computes for it,
// reporting every row whose coordinate has drifted. Mirrors the original
// prototype's db_diagnostics report shape.
func (r *PostgresRepository) ScanPaginationMismatches(ctx context.Context, expect func(url string) (pageID, indexInPage int, ok bool)) ([]Mismatch, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT url, page_id, index_in_page FROM products`)
	if err != nil {
		return nil, fmt.Errorf("scan products: %w", err)
	}
	defer rows.Close()

	var mismatches []Mismatch
	for rows.Next() {
		var url string
		var storedPageID, storedIndex int
		if err := rows.Scan(&url, &storedPageID, &storedIndex); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		expectedPageID, expectedIndex, ok := expect(url)
		if !ok {
			continue
		}
		if expectedPageID != storedPageID || expectedIndex != storedIndex {
			mismatches = append(mismatches, Mismatch{
				URL:                 url,
				ExpectedPageID:      expectedPageID,
				ExpectedIndexInPage: expectedIndex,
				StoredPageID:        storedPageID,
				StoredIndexInPage:   storedIndex,
			})
		}
	}
	return mismatches, rows.Err()
}

// CleanupDuplicateURLs removes duplicate rows that share a (page_id,
// index_in_page) coordinate, keeping the most recently fetched row, and
// reports how many rows were removed.
func (r *PostgresRepository) CleanupDuplicateURLs(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM products p
		USING products newer
		WHERE p.page_id = newer.page_id
		  AND p.index_in_page = newer.index_in_page
		  AND p.url <> newer.url
		  AND p.fetched_at < newer.fetched_at`)
	if err != nil {
		return 0, fmt.Errorf("cleanup duplicates: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(n), nil
}

func (r *PostgresRepository) CountProducts(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM products`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) MaxPageID(ctx context.Context) (int, error) {
	var maxID sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT max(page_id) FROM products`).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("max page id: %w", err)
	}
	if !maxID.Valid {
		return 0, nil
	}
	return int(maxID.Int64), nil
}
