package stageactor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/matter-crawler/pkg/crawlerrors"
	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
	"github.com/codeready-toolchain/matter-crawler/pkg/strategy"
)

// flakyLogic fails transiently a fixed number of times per item before
// succeeding, and records how many attempts each item took.
type flakyLogic struct {
	failuresBeforeSuccess int
	attempts              map[int]*int32
	mu                    sync.Mutex
}

func newFlakyLogic(failuresBeforeSuccess int) *flakyLogic {
	return &flakyLogic{failuresBeforeSuccess: failuresBeforeSuccess, attempts: map[int]*int32{}}
}

func (f *flakyLogic) Name() string { return "flaky" }

func (f *flakyLogic) Execute(ctx context.Context, in strategy.Input) (strategy.Output, error) {
	f.mu.Lock()
	counter, ok := f.attempts[in.Item.Page]
	if !ok {
		var zero int32
		counter = &zero
		f.attempts[in.Item.Page] = counter
	}
	f.mu.Unlock()

	n := atomic.AddInt32(counter, 1)
	if int(n) <= f.failuresBeforeSuccess {
		return strategy.Output{}, crawlerrors.NewTransient("test", fmt.Errorf("simulated timeout, attempt %d", n))
	}
	return strategy.Output{TotalPages: in.Item.Page}, nil
}

// TestActor_RetryThenSucceed covers scenario 4: page 100 fails twice then
// succeeds on the third attempt.
func TestActor_RetryThenSucceed(t *testing.T) {
	logic := newFlakyLogic(2)
	var events []Event
	var mu sync.Mutex

	act := NewActor(domain.StageListPageCrawling, logic, 4, RetryPolicy{
		MaxAttempts: 3, BaseBackoff: 5 * time.Millisecond, MaxBackoff: 20 * time.Millisecond,
	})
	act.OnEvent = func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	}

	results, remaining := act.Run(context.Background(), []domain.StageItem{domain.NewPageItem(100)})
	require.Empty(t, remaining)
	require.Len(t, results, 1)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, 3, results[0].Attempts)

	var retries, successes int
	for _, e := range events {
		switch e.Kind {
		case "retry":
			retries++
		case "success":
			successes++
		}
	}
	assert.Equal(t, 2, retries)
	assert.Equal(t, 1, successes)
}

// alwaysPermanent always returns a PermanentError, to exercise the
// no-retry path.
type alwaysPermanent struct{}

func (alwaysPermanent) Name() string { return "always-permanent" }

func (alwaysPermanent) Execute(ctx context.Context, in strategy.Input) (strategy.Output, error) {
	return strategy.Output{}, crawlerrors.NewPermanent("test", fmt.Errorf("bad page"))
}

func TestActor_PermanentFailureDoesNotRetry(t *testing.T) {
	var events []Event
	act := NewActor(domain.StageListPageCrawling, alwaysPermanent{}, 2, DefaultRetryPolicy())
	act.OnEvent = func(e Event) { events = append(events, e) }

	results, _ := act.Run(context.Background(), []domain.StageItem{domain.NewPageItem(1)})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, 1, results[0].Attempts)

	for _, e := range events {
		assert.NotEqual(t, "retry", e.Kind)
	}
}

// blockingLogic blocks until its context is cancelled, used to test
// mid-stage cancellation.
type blockingLogic struct{ started chan struct{} }

func (b *blockingLogic) Name() string { return "blocking" }

func (b *blockingLogic) Execute(ctx context.Context, in strategy.Input) (strategy.Output, error) {
	select {
	case b.started <- struct{}{}:
	default:
	}
	<-ctx.Done()
	return strategy.Output{}, ctx.Err()
}

// TestActor_CancelMidStage covers scenario 5's shape: cancelling while
// items are in flight lets in-flight work finish and returns the
// not-yet-started items as remaining.
func TestActor_CancelMidStage(t *testing.T) {
	logic := &blockingLogic{started: make(chan struct{}, 5)}
	act := NewActor(domain.StageProductDetailCrawling, logic, 5, DefaultRetryPolicy())

	ctx, cancel := context.WithCancel(context.Background())
	items := make([]domain.StageItem, 10)
	for i := range items {
		items[i] = domain.NewDetailItem(fmt.Sprintf("https://example.test/%d", i), 0, i)
	}

	done := make(chan struct {
		results   []ItemResult
		remaining []domain.StageItem
	})
	go func() {
		results, remaining := act.Run(ctx, items)
		done <- struct {
			results   []ItemResult
			remaining []domain.StageItem
		}{results, remaining}
	}()

	for i := 0; i < 5; i++ {
		<-logic.started
	}
	cancel()

	out := <-done
	assert.LessOrEqual(t, len(out.results), 5)
	assert.NotEmpty(t, out.remaining)
	assert.Equal(t, len(items), len(out.results)+len(out.remaining))
}
