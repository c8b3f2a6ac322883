package batchactor

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/store"
	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
	"github.com/codeready-toolchain/matter-crawler/pkg/stageactor"
	"github.com/codeready-toolchain/matter-crawler/pkg/strategy"
)

// fakeFetcher serves canned list/detail pages keyed by page number or url,
// with no HTTP traffic involved.
type fakeFetcher struct {
	mu          sync.Mutex
	failPages   map[int]int // page -> remaining failures before success
	listBodies  map[int][]byte
	detailBody  []byte
}

func (f *fakeFetcher) FetchStatusPage(ctx context.Context) ([]byte, error) { return nil, nil }

func (f *fakeFetcher) FetchListPage(ctx context.Context, page int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n := f.failPages[page]; n > 0 {
		f.failPages[page] = n - 1
		return nil, fmt.Errorf("simulated transient fetch failure for page %d", page)
	}
	return f.listBodies[page], nil
}

func (f *fakeFetcher) FetchDetail(ctx context.Context, url string) ([]byte, error) {
	return f.detailBody, nil
}

// fakeParser turns the canned bodies back into the values the real
// goquery parser would have extracted, without touching HTML at all: the
// "body" bytes already encode the data a test wants for each page/url.
type fakeParser struct{}

func (fakeParser) ParseStatus(body []byte) (int, int, error) { return 0, 0, nil }

func (fakeParser) ParseListPage(body []byte) ([]string, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return []string{string(body)}, nil
}

func (fakeParser) ParseDetail(body []byte) (domain.ProductRecord, error) {
	return domain.ProductRecord{
		Name:        "Smart Plug",
		Manufacturer: "Acme",
		Model:       "SP-1",
		Certificate: "CSA12345",
	}, nil
}

// fakeRepository records every upsert in memory.
type fakeRepository struct {
	mu    sync.Mutex
	saved []domain.ProductRecord
}

func (r *fakeRepository) UpsertProduct(ctx context.Context, record domain.ProductRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, record)
	return store.ResultInserted, nil
}

func (r *fakeRepository) ListProducts(ctx context.Context, offset, limit int) ([]domain.ProductRecord, int, error) {
	return nil, 0, nil
}
func (r *fakeRepository) ScanPaginationMismatches(ctx context.Context, expect func(url string) (int, int, bool)) ([]store.Mismatch, error) {
	return nil, nil
}
func (r *fakeRepository) CleanupDuplicateURLs(ctx context.Context) (int, error) { return 0, nil }
func (r *fakeRepository) CountProducts(ctx context.Context) (int, error)       { return 0, nil }
func (r *fakeRepository) MaxPageID(ctx context.Context) (int, error)          { return 0, nil }

func newTestActor(fetcher *fakeFetcher, repo *fakeRepository) *Actor {
	factory := strategy.NewFactory(strategy.Deps{
		Fetcher:    fetcher,
		Parser:     fakeParser{},
		Repository: repo,
		PerPage:    12,
	})
	return &Actor{
		Factory:            factory,
		ConcurrencyLimit:   4,
		Policy:             stageactor.DefaultRetryPolicy(),
		TotalPages:         495,
		ProductsOnLastPage: 6,
	}
}

// TestActor_Run_HappyPath drives a single-page batch end to end: list page
// yields one detail url, detail crawling yields one record, validation
// passes it, and saving upserts it.
func TestActor_Run_HappyPath(t *testing.T) {
	fetcher := &fakeFetcher{
		failPages:  map[int]int{},
		listBodies: map[int][]byte{1: []byte("https://example.test/products/1")},
		detailBody: []byte("ignored"),
	}
	repo := &fakeRepository{}
	actor := newTestActor(fetcher, repo)

	result := actor.Run(context.Background(), domain.Batch{ID: 0, StartPage: 1, EndPage: 1})

	require.False(t, result.Aborted)
	assert.Equal(t, 1, result.Saved)
	assert.Empty(t, result.FailedPages)
	assert.Empty(t, result.FailedDetails)
	assert.Empty(t, result.ValidationFails)
	assert.Len(t, repo.saved, 1)
}

// TestActor_Run_RetryThenSucceed covers scenario 4: a list page that fails
// twice before succeeding is retried by the stage actor and the batch
// still completes with no failed pages.
func TestActor_Run_RetryThenSucceed(t *testing.T) {
	fetcher := &fakeFetcher{
		failPages:  map[int]int{100: 2},
		listBodies: map[int][]byte{100: []byte("https://example.test/products/100")},
		detailBody: []byte("ignored"),
	}
	repo := &fakeRepository{}
	actor := newTestActor(fetcher, repo)
	actor.Policy = stageactor.RetryPolicy{MaxAttempts: 3, BaseBackoff: 0, MaxBackoff: 0}

	var events []stageactor.Event
	var checkpoints []Checkpoint
	var mu sync.Mutex
	actor.OnEvent = func(e stageactor.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}
	actor.OnCheckpoint = func(cp Checkpoint) {
		mu.Lock()
		defer mu.Unlock()
		checkpoints = append(checkpoints, cp)
	}

	result := actor.Run(context.Background(), domain.Batch{ID: 1, StartPage: 100, EndPage: 100})

	require.False(t, result.Aborted)
	assert.Empty(t, result.FailedPages)
	assert.Equal(t, 1, result.Saved)

	var retries int
	for _, e := range events {
		if e.Stage == domain.StageListPageCrawling && e.Kind == "retry" {
			retries++
		}
	}
	assert.Equal(t, 2, retries)

	// spec.md §8 Testable Scenario 4: retries_per_page[100] must survive
	// the checkpoint taken right after list-page crawling.
	require.NotEmpty(t, checkpoints)
	assert.Equal(t, 2, checkpoints[0].RetriesPerPage[100])
	assert.Empty(t, checkpoints[0].RetryingPages, "page 100 eventually succeeded, so it is not left retrying")
}

// TestActor_Run_ValidationFailureBlocksSave ensures a record failing
// DataValidation never reaches DataSaving.
func TestActor_Run_ValidationFailureBlocksSave(t *testing.T) {
	fetcher := &fakeFetcher{
		failPages:  map[int]int{},
		listBodies: map[int][]byte{1: []byte("https://example.test/products/missing-cert")},
		detailBody: []byte("ignored"),
	}
	repo := &fakeRepository{}
	actor := newTestActor(fetcher, repo)

	// Override the parser via a fresh factory whose detail parser omits
	// the certificate id, forcing a validation failure.
	actor.Factory = strategy.NewFactory(strategy.Deps{
		Fetcher: fetcher,
		Parser:  noCertParser{},
		Repository: repo,
		PerPage: 12,
	})

	result := actor.Run(context.Background(), domain.Batch{ID: 0, StartPage: 1, EndPage: 1})

	require.False(t, result.Aborted)
	assert.Equal(t, 0, result.Saved)
	assert.Len(t, result.ValidationFails, 1)
	assert.Empty(t, repo.saved)
}

type noCertParser struct{}

func (noCertParser) ParseStatus(body []byte) (int, int, error) { return 0, 0, nil }
func (noCertParser) ParseListPage(body []byte) ([]string, error) {
	return []string{string(body)}, nil
}
func (noCertParser) ParseDetail(body []byte) (domain.ProductRecord, error) {
	return domain.ProductRecord{Name: "Smart Plug", Manufacturer: "Acme", Model: "SP-1"}, nil
}

// TestActor_Run_FatalAborts ensures a fatal infrastructure error (the
// repository unreachable) aborts the whole batch rather than being
// treated as one failed item.
func TestActor_Run_FatalAborts(t *testing.T) {
	fetcher := &fakeFetcher{
		failPages:  map[int]int{},
		listBodies: map[int][]byte{1: []byte("https://example.test/products/1")},
		detailBody: []byte("ignored"),
	}
	actor := newTestActor(fetcher, &fakeRepository{})
	actor.Factory = strategy.NewFactory(strategy.Deps{
		Fetcher:    fetcher,
		Parser:     fakeParser{},
		Repository: fatalRepository{},
		PerPage:    12,
	})

	result := actor.Run(context.Background(), domain.Batch{ID: 0, StartPage: 1, EndPage: 1})

	assert.True(t, result.Aborted)
	assert.Error(t, result.AbortErr)
}

type fatalRepository struct{ fakeRepository }

func (fatalRepository) UpsertProduct(ctx context.Context, record domain.ProductRecord) (string, error) {
	return "", fmt.Errorf("connection refused")
}
