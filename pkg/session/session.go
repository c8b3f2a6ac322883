// Package session implements the Session Actor: it turns a crawl request
// (full crawl, partial sync, validation run, or resume) into a Plan, drives
// Batch Actors over that plan with bounded parallelism, persists a
// ResumeToken after each batch's list-page and detail stages, and reports progress and ETA
// through the Event Bridge.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/store"
	"github.com/codeready-toolchain/matter-crawler/pkg/batchactor"
	"github.com/codeready-toolchain/matter-crawler/pkg/crawlerrors"
	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
	"github.com/codeready-toolchain/matter-crawler/pkg/events"
	"github.com/codeready-toolchain/matter-crawler/pkg/planner"
	"github.com/codeready-toolchain/matter-crawler/pkg/resume"
	"github.com/codeready-toolchain/matter-crawler/pkg/stageactor"
	"github.com/codeready-toolchain/matter-crawler/pkg/strategy"
)

// Config bounds how the Session Actor partitions and runs work, sourced
// from the persisted crawler config.
type Config struct {
	MaxConcurrentSessions int
	SessionParallelism    int // bounded-parallel batches per session; default 1
	ReplanOnGrowth        bool
	PlanOptions           planner.Options
	RetryPolicy           stageactor.RetryPolicy
	ResumeDir             string // directory holding "<session_id>.json" resume tokens
}

// Manager supervises every concurrently running session, mirroring the
// teacher's WorkerPool: a registry of cancel functions keyed by session id,
// bounded by MaxConcurrentSessions.
type Manager struct {
	cfg     Config
	factory *strategy.Factory
	repo    store.Repository
	bridge  *events.Bridge

	mu     sync.RWMutex
	active map[string]*runningSession
}

// runningSession is the live state of one session, read by GetStatus and
// mutated by the goroutine driving it.
type runningSession struct {
	id      string
	kind    string // "crawl", "partial_sync", "validation", "resume"
	cancel  context.CancelFunc
	started time.Time

	mu        sync.Mutex
	status    domain.SessionStatus
	stage     domain.StageType
	plan      domain.Plan
	collected int
	target    int
	tracker   *throughputTracker
}

// NewManager builds a session Manager.
func NewManager(cfg Config, factory *strategy.Factory, repo store.Repository, bridge *events.Bridge) *Manager {
	if cfg.SessionParallelism <= 0 {
		cfg.SessionParallelism = 1
	}
	if cfg.MaxConcurrentSessions <= 0 {
		cfg.MaxConcurrentSessions = 1
	}
	return &Manager{cfg: cfg, factory: factory, repo: repo, bridge: bridge, active: make(map[string]*runningSession)}
}

// ErrAtCapacity is returned when MaxConcurrentSessions is already reached.
var ErrAtCapacity = fmt.Errorf("session: at max concurrent sessions")

// StartCrawl begins a full, newest-to-oldest crawl. A zero batchSize or
// concurrencyLimit falls back to the configured defaults.
func (m *Manager) StartCrawl(ctx context.Context, batchSize, concurrencyLimit int) (string, error) {
	opts := m.cfg.PlanOptions
	if batchSize > 0 {
		opts.BatchSize = batchSize
	}
	if concurrencyLimit > 0 {
		opts.ConcurrencyLimit = concurrencyLimit
	}

	return m.start(ctx, "crawl", func(ctx context.Context, sessionID string) (domain.Plan, *domain.ResumeToken, error) {
		totalPages, productsOnLastPage, err := m.statusCheck(ctx)
		if err != nil {
			return domain.Plan{}, nil, err
		}
		return planner.BuildPlan(totalPages, productsOnLastPage, opts), nil, nil
	})
}

// StartPartialSync crawls exactly the physical pages named by ranges
// (e.g. "498-492,489,487-485"), once each, leaving every other page
// untouched.
func (m *Manager) StartPartialSync(ctx context.Context, ranges string) (string, error) {
	parsed, err := planner.ParseRange(ranges)
	if err != nil {
		return "", fmt.Errorf("parse partial sync ranges: %w", err)
	}

	return m.start(ctx, "partial_sync", func(ctx context.Context, sessionID string) (domain.Plan, *domain.ResumeToken, error) {
		totalPages, productsOnLastPage, err := m.statusCheck(ctx)
		if err != nil {
			return domain.Plan{}, nil, err
		}
		plan := planner.BuildPartialPlan(parsed, totalPages, productsOnLastPage, m.cfg.PlanOptions)
		return plan, nil, nil
	})
}

// StartValidation re-runs DataValidation over the most recently stored
// scanDepth products without re-fetching anything, surfacing any records
// that no longer pass validation.
func (m *Manager) StartValidation(ctx context.Context, scanDepth int) (string, error) {
	m.mu.Lock()
	if len(m.active) >= m.cfg.MaxConcurrentSessions {
		m.mu.Unlock()
		return "", ErrAtCapacity
	}
	sessionID := uuid.New().String()
	runCtx, cancel := context.WithCancel(context.Background())
	rs := &runningSession{
		id: sessionID, kind: "validation", cancel: cancel, started: time.Now(),
		status: domain.SessionRunning, tracker: newThroughputTracker(), stage: domain.StageDataValidation,
	}
	m.active[sessionID] = rs
	m.mu.Unlock()

	go m.runValidation(runCtx, rs, scanDepth)
	return sessionID, nil
}

// runValidation re-validates the scanDepth most recently stored products
// against the DataValidation strategy, without touching the network.
func (m *Manager) runValidation(ctx context.Context, rs *runningSession, scanDepth int) {
	defer func() {
		m.mu.Lock()
		delete(m.active, rs.id)
		m.mu.Unlock()
	}()

	m.bridge.PublishSessionStarted(rs.id, "", 0, 0)

	logic, err := m.factory.LogicFor(domain.StageDataValidation)
	if err != nil {
		m.bridge.PublishSessionTerminal(rs.id, events.EventTypeSessionFailed, string(domain.SessionFailed), 0, time.Since(rs.started), err.Error())
		return
	}

	records, _, err := m.repo.ListProducts(ctx, 0, scanDepth)
	if err != nil {
		m.bridge.PublishSessionTerminal(rs.id, events.EventTypeSessionFailed, string(domain.SessionFailed), 0, time.Since(rs.started), err.Error())
		return
	}

	rs.mu.Lock()
	rs.target = len(records)
	rs.mu.Unlock()

	var passed int
	for i, rec := range records {
		if ctx.Err() != nil {
			break
		}
		out, err := logic.Execute(ctx, strategy.Input{Stage: domain.StageDataValidation, Product: rec})
		ok := err == nil
		var violations []string
		if err != nil && crawlerrors.IsPermanent(err) {
			violations = []string{err.Error()}
		}
		m.bridge.PublishValidationEvent(rs.id, rec.URL, ok, violations)
		if ok {
			passed++
			_ = out
		}

		rs.mu.Lock()
		rs.collected = i + 1
		rs.mu.Unlock()
		rs.tracker.RecordItems(1)
	}

	status := domain.SessionCompleted
	eventType := events.EventTypeSessionCompleted
	if ctx.Err() != nil {
		status = domain.SessionCancelled
		eventType = events.EventTypeSessionCancelled
	}
	m.bridge.PublishSessionTerminal(rs.id, eventType, string(status), passed, time.Since(rs.started), "")
}

// ResumeFromToken parses a v1 or v2 ResumeToken and continues the crawl it
// describes, refusing (or replanning, per config) if the site has grown
// since the token's plan_hash was computed.
func (m *Manager) ResumeFromToken(ctx context.Context, tokenJSON string) (string, error) {
	token, err := resume.ParseToken([]byte(tokenJSON))
	if err != nil {
		return "", fmt.Errorf("parse resume token: %w", err)
	}

	return m.start(ctx, "resume", func(ctx context.Context, sessionID string) (domain.Plan, *domain.ResumeToken, error) {
		totalPages, productsOnLastPage, err := m.statusCheck(ctx)
		if err != nil {
			return domain.Plan{}, nil, err
		}

		opts := m.cfg.PlanOptions
		if token.BatchSize > 0 {
			opts.BatchSize = token.BatchSize
		}
		if token.ConcurrencyLimit > 0 {
			opts.ConcurrencyLimit = token.ConcurrencyLimit
		}
		plan := planner.BuildPlan(totalPages, productsOnLastPage, opts)

		if plan.PlanHash != token.PlanHash && !m.cfg.ReplanOnGrowth {
			return domain.Plan{}, nil, fmt.Errorf("resume token plan_hash %q does not match current site plan_hash %q (replan_on_growth is disabled)", token.PlanHash, plan.PlanHash)
		}
		return plan, &token, nil
	})
}

// start allocates a session id, checks capacity, builds the plan via
// planFn, and launches the run loop in a goroutine.
func (m *Manager) start(ctx context.Context, kind string, planFn func(ctx context.Context, sessionID string) (domain.Plan, *domain.ResumeToken, error)) (string, error) {
	m.mu.Lock()
	if len(m.active) >= m.cfg.MaxConcurrentSessions {
		m.mu.Unlock()
		return "", ErrAtCapacity
	}
	sessionID := uuid.New().String()
	runCtx, cancel := context.WithCancel(context.Background())
	rs := &runningSession{
		id: sessionID, kind: kind, cancel: cancel, started: time.Now(),
		status: domain.SessionRunning, tracker: newThroughputTracker(),
	}
	m.active[sessionID] = rs
	m.mu.Unlock()

	plan, resumeTok, err := planFn(ctx, sessionID)
	if err != nil {
		m.mu.Lock()
		delete(m.active, sessionID)
		m.mu.Unlock()
		cancel()
		return "", err
	}
	rs.mu.Lock()
	rs.plan = plan
	rs.target = plan.TotalPages * plan.ProductsPerPage
	rs.mu.Unlock()

	go m.run(runCtx, rs, plan, resumeTok)
	return sessionID, nil
}

// statusCheck runs the StatusCheck strategy once to learn the site's
// current size.
func (m *Manager) statusCheck(ctx context.Context) (totalPages, productsOnLastPage int, err error) {
	logic, err := m.factory.LogicFor(domain.StageStatusCheck)
	if err != nil {
		return 0, 0, err
	}
	out, err := logic.Execute(ctx, strategy.Input{Stage: domain.StageStatusCheck})
	if err != nil {
		return 0, 0, err
	}
	return out.TotalPages, out.ProductsOnLastPage, nil
}

// run drives plan to completion: StatusCheck has already happened by the
// time run is called. Batches execute newest-to-oldest, with up to
// SessionParallelism running concurrently; a fatal batch error aborts the
// whole session.
func (m *Manager) run(ctx context.Context, rs *runningSession, plan domain.Plan, resumeTok *domain.ResumeToken) {
	defer func() {
		m.mu.Lock()
		delete(m.active, rs.id)
		m.mu.Unlock()
	}()

	resumeStore := resume.NewStore(m.cfg.ResumeDir + "/" + rs.id + ".json")

	m.bridge.PublishSessionStarted(rs.id, plan.PlanHash, plan.TotalPages, len(plan.Batches))

	batches := plan.Batches
	if resumeTok != nil && len(resumeTok.RemainingPages) > 0 {
		batches = filterBatchesByRemainingPages(batches, resumeTok.RemainingPages)
	}

	var (
		sem      = make(chan struct{}, m.cfg.SessionParallelism)
		wg       sync.WaitGroup
		mu       sync.Mutex
		saved    int
		aborted  bool
		abortErr error
	)

batchLoop:
	for _, batch := range batches {
		if ctx.Err() != nil {
			break
		}
		mu.Lock()
		stop := aborted
		mu.Unlock()
		if stop {
			break
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break batchLoop
		}

		wg.Add(1)
		go func(b domain.Batch) {
			defer wg.Done()
			defer func() { <-sem }()

			m.bridge.PublishBatchStarted(rs.id, b.ID, b.StartPage, b.EndPage)
			rs.setStage(domain.StageListPageCrawling)

			act := &batchactor.Actor{
				Factory: m.factory, ConcurrencyLimit: m.cfg.PlanOptions.ConcurrencyLimit,
				Policy: m.cfg.RetryPolicy, TotalPages: plan.TotalPages, ProductsOnLastPage: plan.ProductsOnLastPage,
				OnEvent: func(e stageactor.Event) {
					status := events.TaskStatusRetrying
					if e.Kind == "success" {
						status = events.TaskStatusSucceeded
						rs.tracker.RecordItems(1)
					} else if e.Kind == "permanent_failure" {
						status = events.TaskStatusFailed
					}
					taskID := e.Item.URL
					if e.Item.Kind == domain.ItemPage {
						taskID = fmt.Sprintf("page:%d", e.Item.Page)
					}
					m.bridge.PublishTaskLifecycle(rs.id, b.ID, string(e.Stage), taskID, status, e.Attempt, e.Err)
				},
				OnCheckpoint: func(cp batchactor.Checkpoint) {
					_ = resumeStore.Save(domain.ResumeToken{
						PlanHash: plan.PlanHash, RemainingPages: cp.RemainingPages,
						BatchSize: plan.BatchSize, ConcurrencyLimit: m.cfg.PlanOptions.ConcurrencyLimit,
						FailedPages: cp.FailedPages, RemainingDetailIDs: detailURLs(cp.RemainingDetailURLs),
						RetriesPerPage: cp.RetriesPerPage, RetryingPages: cp.RetryingPages,
						DetailRetryCounts: cp.DetailRetryCounts, DetailRetriesTotal: cp.DetailRetriesTotal,
					})
				},
			}

			result := act.Run(ctx, b)

			mu.Lock()
			saved += result.Saved
			if result.Aborted {
				aborted = true
				abortErr = result.AbortErr
			}
			mu.Unlock()

			m.bridge.PublishBatchCompleted(rs.id, b.ID, result.Saved, result.Aborted, result.AbortErr)
		}(batch)
	}

	wg.Wait()

	duration := time.Since(rs.started)
	switch {
	case aborted:
		m.bridge.PublishSessionTerminal(rs.id, events.EventTypeSessionFailed, string(domain.SessionFailed), saved, duration, errString(abortErr))
	case ctx.Err() != nil:
		m.bridge.PublishSessionTerminal(rs.id, events.EventTypeSessionCancelled, string(domain.SessionCancelled), saved, duration, "cancelled")
	default:
		m.bridge.PublishSessionTerminal(rs.id, events.EventTypeSessionCompleted, string(domain.SessionCompleted), saved, duration, "")
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func detailURLs(urls []domain.ProductUrl) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = u.URL
	}
	return out
}

// filterBatchesByRemainingPages keeps only batches whose start page is
// still pending in a resumed token's remaining_pages set.
func filterBatchesByRemainingPages(batches []domain.Batch, remaining []int) []domain.Batch {
	set := make(map[int]bool, len(remaining))
	for _, p := range remaining {
		set[p] = true
	}
	var kept []domain.Batch
	for _, b := range batches {
		if set[b.StartPage] {
			kept = append(kept, b)
		}
	}
	if len(kept) == 0 {
		return batches
	}
	return kept
}

func (rs *runningSession) setStage(stage domain.StageType) {
	rs.mu.Lock()
	rs.stage = stage
	rs.mu.Unlock()
}

// Cancel triggers cooperative cancellation for sessionID, returning true if
// it was found and running on this process.
func (m *Manager) Cancel(sessionID, reason string) bool {
	m.mu.RLock()
	rs, ok := m.active[sessionID]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	slog.Info("cancelling session", "session_id", sessionID, "reason", reason)
	rs.cancel()
	return true
}

// GetStatus reports the live SystemState. With no active session it
// reports is_running=false and the store's persisted totals.
func (m *Manager) GetStatus(ctx context.Context) domain.SystemState {
	state := domain.SystemState{}

	if m.repo != nil {
		if n, err := m.repo.CountProducts(ctx); err == nil {
			state.DBTotalProducts = n
		}
		if n, err := m.repo.MaxPageID(ctx); err == nil {
			state.LastDBCursor = n
		}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, rs := range m.active {
		rs.mu.Lock()
		state.IsRunning = true
		state.TotalPages = rs.plan.TotalPages
		state.CurrentStage = string(rs.stage)
		state.SessionCollectedItems = rs.collected
		state.SessionTargetItems = rs.target
		state.ItemsPerMinute = rs.tracker.ItemsPerMinute()
		state.SessionETASeconds = rs.tracker.ETASeconds(rs.target - rs.collected)
		rs.mu.Unlock()
		break // report the first active session; multi-session status is a future extension
	}
	return state
}
