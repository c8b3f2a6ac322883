package resume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
)

// TestLoad_V1Migration covers scenario 3: a v1 token that omits the
// detail-tracking fields loads with them defaulted to empty.
func TestLoad_V1Migration(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.json")
	v1 := `{"plan_hash":"h","remaining_pages":[5,4,3],"batch_size":20,"concurrency_limit":4}`
	require.NoError(t, os.WriteFile(path, []byte(v1), 0o644))

	store := NewStore(path)
	token, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, domain.ResumeTokenV1, token.Version)
	assert.Equal(t, "h", token.PlanHash)
	assert.Equal(t, []int{5, 4, 3}, token.RemainingPages)
	assert.Equal(t, 20, token.BatchSize)
	assert.Equal(t, 4, token.ConcurrencyLimit)
	assert.Equal(t, []string{}, token.RemainingDetailIDs)
	assert.Equal(t, map[string]int{}, token.DetailRetryCounts)
	assert.Equal(t, uint64(0), token.DetailRetriesTotal)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.json")
	store := NewStore(path)

	original := domain.ResumeToken{
		PlanHash:           "abc123",
		RemainingPages:     []int{10, 9, 8},
		BatchSize:          20,
		ConcurrencyLimit:   4,
		RetriesPerPage:     map[int]int{9: 1},
		FailedPages:        []int{8},
		RetryingPages:      []int{9},
		RemainingDetailIDs: []string{"https://example.test/a", "https://example.test/b"},
		DetailRetryCounts:  map[string]int{"https://example.test/a": 2},
		DetailRetriesTotal: 2,
	}

	require.NoError(t, store.Save(original))
	require.True(t, store.Exists())

	loaded, err := store.Load()
	require.NoError(t, err)

	assert.Equal(t, domain.CurrentResumeTokenVersion, loaded.Version)
	assert.Equal(t, original.PlanHash, loaded.PlanHash)
	assert.Equal(t, original.RemainingPages, loaded.RemainingPages)
	assert.Equal(t, original.BatchSize, loaded.BatchSize)
	assert.Equal(t, original.ConcurrencyLimit, loaded.ConcurrencyLimit)
	assert.Equal(t, original.RetriesPerPage, loaded.RetriesPerPage)
	assert.Equal(t, original.FailedPages, loaded.FailedPages)
	assert.Equal(t, original.RetryingPages, loaded.RetryingPages)
	assert.Equal(t, original.RemainingDetailIDs, loaded.RemainingDetailIDs)
	assert.Equal(t, original.DetailRetryCounts, loaded.DetailRetryCounts)
	assert.Equal(t, original.DetailRetriesTotal, loaded.DetailRetriesTotal)
}

func TestExists_Absent(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing.json"))
	assert.False(t, store.Exists())
}
