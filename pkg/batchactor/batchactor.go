// Package batchactor owns a contiguous page range and drives the five-
// stage pipeline over it: list-page crawling, detail crawling, validation
// and saving, checkpointing its residual work after the list-page and
// detail stages. No checkpoint is taken after validation or saving.
package batchactor

import (
	"context"

	"github.com/codeready-toolchain/matter-crawler/pkg/crawlerrors"
	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
	"github.com/codeready-toolchain/matter-crawler/pkg/stageactor"
	"github.com/codeready-toolchain/matter-crawler/pkg/strategy"
)

// Checkpoint is the batch's residual state after a stage transition,
// folded into the Session's pending ResumeToken.
type Checkpoint struct {
	Batch               domain.Batch
	RemainingPages      []int
	RemainingDetailURLs []domain.ProductUrl
	FailedPages         []int
	RetriesPerPage      map[int]int
	RetryingPages       []int
	DetailRetryCounts   map[string]int
	DetailRetriesTotal  uint64
}

// Result is a batch's outcome: items saved, items permanently failed, and
// whether the batch was aborted by a fatal infrastructure error.
type Result struct {
	Batch           domain.Batch
	Saved           int
	FailedPages     []int
	FailedDetails   []string
	ValidationFails []string
	Aborted         bool
	AbortErr        error
}

// Actor drives one batch's pipeline.
type Actor struct {
	Factory            *strategy.Factory
	ConcurrencyLimit   int
	Policy             stageactor.RetryPolicy
	TotalPages         int
	ProductsOnLastPage int
	OnEvent            func(stageactor.Event)
	OnCheckpoint       func(Checkpoint)
}

// Run executes ListPageCrawling, ProductDetailCrawling, DataValidation and
// DataSaving in order over batch's page range. StatusCheck is run once per
// Session, not per Batch, so it is not part of this pipeline.
func (a *Actor) Run(ctx context.Context, batch domain.Batch) Result {
	result := Result{Batch: batch}

	pages := make([]int, 0, batch.PageCount())
	for p := batch.StartPage; p >= batch.EndPage; p-- {
		pages = append(pages, p)
	}

	listLogic, err := a.Factory.LogicFor(domain.StageListPageCrawling)
	if err != nil {
		return a.abort(result, err)
	}
	listActor := a.stageActor(domain.StageListPageCrawling, listLogic)

	pageItems := make([]domain.StageItem, 0, len(pages))
	for _, p := range pages {
		pageItems = append(pageItems, domain.NewPageItem(p))
	}

	listResults, remainingPages := listActor.Run(ctx, pageItems)

	retriesPerPage := make(map[int]int)
	var retryingPages []int
	var productURLs []domain.ProductUrl
	for _, r := range listResults {
		if r.Attempts > 1 {
			retriesPerPage[r.Item.Page] = r.Attempts - 1
		}
		if r.Err != nil {
			result.FailedPages = append(result.FailedPages, r.Item.Page)
			if crawlerrors.IsFatal(r.Err) {
				return a.abort(result, r.Err)
			}
			if crawlerrors.IsTransient(r.Err) {
				retryingPages = append(retryingPages, r.Item.Page)
			}
			continue
		}
		productURLs = append(productURLs, r.Output.ProductURLs...)
	}
	a.checkpoint(Checkpoint{
		Batch: batch, RemainingPages: pagesToInts(remainingPages), FailedPages: result.FailedPages,
		RetriesPerPage: retriesPerPage, RetryingPages: retryingPages,
	})

	if ctx.Err() != nil {
		return result
	}

	detailLogic, err := a.Factory.LogicFor(domain.StageProductDetailCrawling)
	if err != nil {
		return a.abort(result, err)
	}
	detailActor := a.stageActor(domain.StageProductDetailCrawling, detailLogic)

	detailItems := make([]domain.StageItem, 0, len(productURLs))
	for _, u := range productURLs {
		detailItems = append(detailItems, domain.NewDetailItem(u.URL, u.PageID, u.IndexInPage))
	}
	detailResults, remainingDetails := detailActor.Run(ctx, detailItems)

	detailRetryCounts := make(map[string]int)
	var detailRetriesTotal uint64
	for _, r := range detailResults {
		if r.Attempts > 1 {
			n := r.Attempts - 1
			detailRetryCounts[r.Item.URL] = n
			detailRetriesTotal += uint64(n)
		}
	}
	a.checkpoint(Checkpoint{
		Batch: batch, RemainingDetailURLs: itemsToProductUrls(remainingDetails), FailedPages: result.FailedPages,
		RetriesPerPage: retriesPerPage, RetryingPages: retryingPages,
		DetailRetryCounts: detailRetryCounts, DetailRetriesTotal: detailRetriesTotal,
	})

	var records []domain.ProductRecord
	for _, r := range detailResults {
		if r.Err != nil {
			result.FailedDetails = append(result.FailedDetails, r.Item.URL)
			if crawlerrors.IsFatal(r.Err) {
				return a.abort(result, r.Err)
			}
			continue
		}
		records = append(records, r.Output.Record)
	}

	if ctx.Err() != nil {
		return result
	}

	validated := a.validate(ctx, records, &result)
	if ctx.Err() != nil {
		return result
	}

	a.save(ctx, validated, &result)
	return result
}

func (a *Actor) validate(ctx context.Context, records []domain.ProductRecord, result *Result) []domain.ProductRecord {
	logic, err := a.Factory.LogicFor(domain.StageDataValidation)
	if err != nil {
		*result = a.abort(*result, err)
		return nil
	}
	items, byURL := itemsForRecords(records)
	validActor := a.stageActor(domain.StageDataValidation, logic)
	validActor.ProductFor = func(item domain.StageItem) domain.ProductRecord { return byURL[item.URL] }

	results, _ := validActor.Run(ctx, items)
	var passed []domain.ProductRecord
	for _, r := range results {
		if r.Err != nil {
			result.ValidationFails = append(result.ValidationFails, r.Item.URL)
			continue
		}
		passed = append(passed, r.Output.Validated)
	}
	return passed
}

func (a *Actor) save(ctx context.Context, records []domain.ProductRecord, result *Result) {
	logic, err := a.Factory.LogicFor(domain.StageDataSaving)
	if err != nil {
		*result = a.abort(*result, err)
		return
	}
	items, byURL := itemsForRecords(records)
	saveActor := a.stageActor(domain.StageDataSaving, logic)
	saveActor.ProductFor = func(item domain.StageItem) domain.ProductRecord { return byURL[item.URL] }

	results, _ := saveActor.Run(ctx, items)
	for _, r := range results {
		if r.Err != nil {
			if crawlerrors.IsFatal(r.Err) {
				*result = a.abort(*result, r.Err)
				return
			}
			continue
		}
		result.Saved++
	}
}

func (a *Actor) stageActor(stage domain.StageType, logic strategy.Strategy) *stageactor.Actor {
	act := stageactor.NewActor(stage, logic, a.ConcurrencyLimit, a.Policy)
	act.OnEvent = a.OnEvent
	act.TotalPages = a.TotalPages
	act.ProductsOnLastPage = a.ProductsOnLastPage
	return act
}

func (a *Actor) abort(result Result, err error) Result {
	result.Aborted = true
	result.AbortErr = err
	return result
}

func (a *Actor) checkpoint(cp Checkpoint) {
	if a.OnCheckpoint == nil {
		return
	}
	a.OnCheckpoint(cp)
}

func pagesToInts(items []domain.StageItem) []int {
	pages := make([]int, 0, len(items))
	for _, it := range items {
		pages = append(pages, it.Page)
	}
	return pages
}

func itemsToProductUrls(items []domain.StageItem) []domain.ProductUrl {
	urls := make([]domain.ProductUrl, 0, len(items))
	for _, it := range items {
		urls = append(urls, domain.ProductUrl{URL: it.URL, PageID: it.PageID, IndexInPage: it.IndexInPage})
	}
	return urls
}

// itemsForRecords builds the DetailUrl-shaped items DataValidation and
// DataSaving expect, plus a lookup table so the stage actor's ProductFor
// hook can hand each item its full record.
func itemsForRecords(records []domain.ProductRecord) ([]domain.StageItem, map[string]domain.ProductRecord) {
	items := make([]domain.StageItem, len(records))
	byURL := make(map[string]domain.ProductRecord, len(records))
	for i, r := range records {
		items[i] = domain.NewDetailItem(r.URL, r.PageID, r.IndexInPage)
		byURL[r.URL] = r
	}
	return items, byURL
}
