// Package stageactor drives a stage's Strategy over a bounded-concurrency
// set of items to a terminal outcome, retrying transient failures with
// jittered exponential backoff and reporting permanent failures without
// ever blocking the whole stage on one stuck item.
package stageactor

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/codeready-toolchain/matter-crawler/pkg/crawlerrors"
	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
	"github.com/codeready-toolchain/matter-crawler/pkg/strategy"
)

// RetryPolicy bounds how a transient failure is retried.
type RetryPolicy struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

// DefaultRetryPolicy matches the teacher's MCP recovery defaults scaled to
// HTTP fetch latencies rather than sub-process calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseBackoff: 250 * time.Millisecond, MaxBackoff: 5 * time.Second}
}

// ItemResult is the terminal outcome of running one item through its
// Strategy, carried back to the owning Batch actor.
type ItemResult struct {
	Item     domain.StageItem
	Output   strategy.Output
	Err      error
	Attempts int
}

// Event is emitted for every retry and terminal outcome so the Session can
// forward it onto the Event Bridge.
type Event struct {
	Stage   domain.StageType
	Item    domain.StageItem
	Attempt int
	Kind    string // "retry", "success", "permanent_failure"
	Err     error
}

// Actor drives one stage over a slice of items.
type Actor struct {
	Stage              domain.StageType
	Logic              strategy.Strategy
	ConcurrencyLimit   int
	Policy             RetryPolicy
	OnEvent            func(Event)
	TotalPages         int
	ProductsOnLastPage int
	// ProductFor resolves the ProductRecord associated with an item, used
	// by the DataValidation and DataSaving stages whose Strategy operates
	// on a record rather than a coordinate or URL alone.
	ProductFor func(domain.StageItem) domain.ProductRecord
}

// NewActor builds a stage actor bounded to concurrencyLimit in-flight
// items, using policy for transient-failure retries.
func NewActor(stage domain.StageType, logic strategy.Strategy, concurrencyLimit int, policy RetryPolicy) *Actor {
	if concurrencyLimit <= 0 {
		concurrencyLimit = 1
	}
	return &Actor{Stage: stage, Logic: logic, ConcurrencyLimit: concurrencyLimit, Policy: policy}
}

// Run drives every item to a terminal outcome. Cancellation is checked at
// each dispatch boundary and between retries: in-flight calls are allowed
// to finish (never killed) and items not yet started are returned in the
// "remaining" slice so the Batch actor can checkpoint them.
func (a *Actor) Run(ctx context.Context, items []domain.StageItem) (results []ItemResult, remaining []domain.StageItem) {
	sem := make(chan struct{}, a.ConcurrencyLimit)
	resultsCh := make(chan ItemResult, len(items))

	var wg sync.WaitGroup
	var started int

	for i, item := range items {
		if ctx.Err() != nil {
			remaining = append(remaining, items[i:]...)
			break
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			remaining = append(remaining, items[i:]...)
			goto drain
		}

		started++
		wg.Add(1)
		go func(item domain.StageItem) {
			defer wg.Done()
			defer func() { <-sem }()
			resultsCh <- a.runOne(ctx, item)
		}(item)
	}

drain:
	wg.Wait()
	close(resultsCh)
	for r := range resultsCh {
		results = append(results, r)
	}
	_ = started
	return results, remaining
}

func (a *Actor) runOne(ctx context.Context, item domain.StageItem) ItemResult {
	policy := a.Policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}

	var lastErr error
	var out strategy.Output
	attempts := 0
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		attempts = attempt

		in := strategy.Input{
			Stage:              a.Stage,
			Item:               item,
			TotalPages:         a.TotalPages,
			ProductsOnLastPage: a.ProductsOnLastPage,
		}
		if a.ProductFor != nil {
			in.Product = a.ProductFor(item)
		}

		var err error
		out, err = a.Logic.Execute(ctx, in)
		if err == nil {
			a.emit(Event{Stage: a.Stage, Item: item, Attempt: attempt, Kind: "success"})
			return ItemResult{Item: item, Output: out, Attempts: attempt}
		}
		lastErr = err

		if !crawlerrors.IsTransient(err) || attempt == policy.MaxAttempts {
			break
		}

		a.emit(Event{Stage: a.Stage, Item: item, Attempt: attempt, Kind: "retry", Err: err})
		if !a.sleepBackoff(ctx, policy, attempt) {
			break
		}
	}

	a.emit(Event{Stage: a.Stage, Item: item, Attempt: attempts, Kind: "permanent_failure", Err: lastErr})
	return ItemResult{Item: item, Output: out, Err: lastErr, Attempts: attempts}
}

// sleepBackoff waits min(base*2^(attempt-1), max) +/- 25% jitter, returning
// false if the context was cancelled first.
func (a *Actor) sleepBackoff(ctx context.Context, policy RetryPolicy, attempt int) bool {
	backoff := policy.BaseBackoff * time.Duration(1<<uint(attempt-1))
	if backoff > policy.MaxBackoff {
		backoff = policy.MaxBackoff
	}
	jitter := time.Duration(float64(backoff) * 0.25)
	offset := time.Duration(rand.Int64N(int64(2*jitter+1))) - jitter
	wait := backoff + offset
	if wait < 0 {
		wait = 0
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Actor) emit(e Event) {
	if a.OnEvent != nil {
		a.OnEvent(e)
	}
}
