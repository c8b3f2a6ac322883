package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/matter-crawler/pkg/database"
	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
)

func newTestRepository(t *testing.T) (*PostgresRepository, *sql.DB) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host: host, Port: port.Int(), User: "test", Password: "test",
		Database: "test", SSLMode: "disable", MaxOpenConns: 10, MaxIdleConns: 5,
		ConnMaxLifetime: time.Hour, ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return NewPostgresRepository(client.DB()), client.DB()
}

func sampleRecord(url string, pageID, index int) domain.ProductRecord {
	return domain.ProductRecord{
		URL:          url,
		PageID:       pageID,
		IndexInPage:  index,
		Name:         "Smart Plug",
		Manufacturer: "Acme",
		Model:        "SP-100",
		Certificate:  "CSA12345",
		Attributes:   map[string]string{"category": "plug"},
		Quality:      domain.QualityPassed,
	}
}

func TestPostgresRepository_UpsertProduct_InsertThenUpdate(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	result, err := repo.UpsertProduct(ctx, sampleRecord("https://example.test/p1", 1, 0))
	require.NoError(t, err)
	assert.Equal(t, ResultInserted, result)

	rec := sampleRecord("https://example.test/p1", 1, 0)
	rec.Name = "Smart Plug v2"
	result, err = repo.UpsertProduct(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, result)

	records, total, err := repo.ListProducts(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, "Smart Plug v2", records[0].Name)
	assert.Equal(t, "plug", records[0].Attributes["category"])
}

// TestPostgresRepository_UpsertProduct_UnchangedRecordIsNoop covers
// spec.md §6's third upsert outcome: re-upserting a byte-identical record
// must report ResultUnchanged rather than Updated, while a record that
// genuinely differs still reports Updated.
func TestPostgresRepository_UpsertProduct_UnchangedRecordIsNoop(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	rec := sampleRecord("https://example.test/p1", 1, 0)
	result, err := repo.UpsertProduct(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, ResultInserted, result)

	result, err = repo.UpsertProduct(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, ResultUnchanged, result, "re-upserting an identical record must not report updated")

	rec.Name = "Smart Plug v2"
	result, err = repo.UpsertProduct(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, ResultUpdated, result, "a genuinely changed field must still report updated")
}

func TestPostgresRepository_ListProducts_Pagination(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.UpsertProduct(ctx, sampleRecord(
			"https://example.test/p"+string(rune('a'+i)), 1, i))
		require.NoError(t, err)
	}

	records, total, err := repo.ListProducts(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, records, 2)
}

func TestPostgresRepository_CountAndMaxPageID(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	count, err := repo.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	maxID, err := repo.MaxPageID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, maxID)

	_, err = repo.UpsertProduct(ctx, sampleRecord("https://example.test/p1", 3, 0))
	require.NoError(t, err)
	_, err = repo.UpsertProduct(ctx, sampleRecord("https://example.test/p2", 7, 1))
	require.NoError(t, err)

	count, err = repo.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	maxID, err = repo.MaxPageID(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, maxID)
}

func TestPostgresRepository_ScanPaginationMismatches(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.UpsertProduct(ctx, sampleRecord("https://example.test/p1", 1, 0))
	require.NoError(t, err)
	_, err = repo.UpsertProduct(ctx, sampleRecord("https://example.test/p2", 1, 1))
	require.NoError(t, err)

	expect := func(url string) (int, int, bool) {
		if url == "https://example.test/p2" {
			return 2, 0, true
		}
		return 0, 0, false
	}

	mismatches, err := repo.ScanPaginationMismatches(ctx, expect)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, "https://example.test/p2", mismatches[0].URL)
	assert.Equal(t, 2, mismatches[0].ExpectedPageID)
	assert.Equal(t, 0, mismatches[0].ExpectedIndexInPage)
	assert.Equal(t, 1, mismatches[0].StoredPageID)
	assert.Equal(t, 1, mismatches[0].StoredIndexInPage)
}

func TestPostgresRepository_CleanupDuplicateURLs(t *testing.T) {
	repo, db := newTestRepository(t)
	ctx := context.Background()

	older := sampleRecord("https://example.test/old", 1, 0)
	_, err := repo.UpsertProduct(ctx, older)
	require.NoError(t, err)

	// Force the stored fetched_at back in time so the newer row below wins.
	_, err = db.ExecContext(ctx,
		`UPDATE products SET fetched_at = now() - interval '1 hour' WHERE url = $1`, older.URL)
	require.NoError(t, err)

	newer := sampleRecord("https://example.test/new", 1, 0)
	_, err = repo.UpsertProduct(ctx, newer)
	require.NoError(t, err)

	removed, err := repo.CleanupDuplicateURLs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	count, err := repo.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
