// Package strategy implements the five stage-specific logic units the
// crawl pipeline runs over a batch: StatusCheck, ListPageCrawling,
// ProductDetailCrawling, DataValidation and DataSaving. Each strategy is
// stateless; per-execution state lives in the caller (the Stage Actor).
package strategy

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/fetch"
	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/parse"
	"github.com/codeready-toolchain/matter-crawler/pkg/adapters/store"
	"github.com/codeready-toolchain/matter-crawler/pkg/coordinate"
	"github.com/codeready-toolchain/matter-crawler/pkg/crawlerrors"
	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
)

// Deps bundles the external adapters a strategy needs, injected once at
// Session creation and shared by every stage.
type Deps struct {
	Fetcher    fetch.Fetcher
	Parser     parse.Parser
	Repository store.Repository
	PerPage    int
}

// Input carries everything one Execute call needs: the stage, the item,
// and site-size hints derived from the most recent StatusCheck.
type Input struct {
	Stage              domain.StageType
	Item               domain.StageItem
	Product            domain.ProductRecord
	TotalPages         int
	ProductsOnLastPage int
}

// Output is the polymorphic result of one Execute call; only the field
// matching Stage is populated.
type Output struct {
	TotalPages         int
	ProductsOnLastPage int
	ProductURLs        []domain.ProductUrl
	Record             domain.ProductRecord
	Validated          domain.ProductRecord
	UpsertResult       string
}

// Strategy is the single operation every stage logic implements.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, in Input) (Output, error)
}

// Factory resolves the Strategy registered for a stage type, mirroring the
// original crawl engine's StageLogicFactory dispatch.
type Factory struct {
	strategies map[domain.StageType]Strategy
}

// NewFactory builds a Factory wired with one strategy per stage, sharing
// the given adapter bundle.
func NewFactory(deps Deps) *Factory {
	return &Factory{strategies: map[domain.StageType]Strategy{
		domain.StageStatusCheck:           &statusCheck{deps: deps},
		domain.StageListPageCrawling:      &listPageCrawling{deps: deps},
		domain.StageProductDetailCrawling: &productDetailCrawling{deps: deps},
		domain.StageDataValidation:        &dataValidation{deps: deps},
		domain.StageDataSaving:            &dataSaving{deps: deps},
	}}
}

// LogicFor returns the strategy registered for stageType, or an error if
// none is registered (should never happen for the five built-in stages).
func (f *Factory) LogicFor(stageType domain.StageType) (Strategy, error) {
	s, ok := f.strategies[stageType]
	if !ok {
		return nil, fmt.Errorf("unsupported stage type: %s", stageType)
	}
	return s, nil
}

type statusCheck struct{ deps Deps }

func (s *statusCheck) Name() string { return "StatusCheck" }

func (s *statusCheck) Execute(ctx context.Context, in Input) (Output, error) {
	body, err := s.deps.Fetcher.FetchStatusPage(ctx)
	if err != nil {
		return Output{}, crawlerrors.NewTransient(string(domain.StageStatusCheck), err)
	}
	totalPages, productsOnLastPage, err := s.deps.Parser.ParseStatus(body)
	if err != nil {
		return Output{}, crawlerrors.NewPermanent(string(domain.StageStatusCheck), err)
	}
	return Output{TotalPages: totalPages, ProductsOnLastPage: productsOnLastPage}, nil
}

type listPageCrawling struct{ deps Deps }

func (s *listPageCrawling) Name() string { return "ListPageCrawling" }

func (s *listPageCrawling) Execute(ctx context.Context, in Input) (Output, error) {
	if in.Item.Kind != domain.ItemPage {
		return Output{}, crawlerrors.NewPermanent(string(domain.StageListPageCrawling), fmt.Errorf("expected a page item"))
	}
	body, err := s.deps.Fetcher.FetchListPage(ctx, in.Item.Page)
	if err != nil {
		return Output{}, crawlerrors.NewTransient(string(domain.StageListPageCrawling), err)
	}
	urls, err := s.deps.Parser.ParseListPage(body)
	if err != nil {
		return Output{}, crawlerrors.NewPermanent(string(domain.StageListPageCrawling), err)
	}
	if len(urls) == 0 {
		return Output{}, crawlerrors.NewPermanent(string(domain.StageListPageCrawling), fmt.Errorf("empty list page %d", in.Item.Page))
	}

	perPage := s.deps.PerPage
	if perPage == 0 {
		perPage = len(urls)
	}
	assigned := make([]domain.ProductUrl, 0, len(urls))
	for slot, url := range urls {
		c, err := coordinate.Assign(in.Item.Page, slot+1, in.TotalPages, in.ProductsOnLastPage, perPage)
		if err != nil {
			return Output{}, crawlerrors.NewPermanent(string(domain.StageListPageCrawling), err)
		}
		assigned = append(assigned, domain.ProductUrl{URL: url, PageID: c.PageID, IndexInPage: c.IndexInPage})
	}
	return Output{ProductURLs: assigned}, nil
}

type productDetailCrawling struct{ deps Deps }

func (s *productDetailCrawling) Name() string { return "ProductDetailCrawling" }

func (s *productDetailCrawling) Execute(ctx context.Context, in Input) (Output, error) {
	if in.Item.Kind != domain.ItemDetailURL {
		return Output{}, crawlerrors.NewPermanent(string(domain.StageProductDetailCrawling), fmt.Errorf("expected a detail url item"))
	}
	body, err := s.deps.Fetcher.FetchDetail(ctx, in.Item.URL)
	if err != nil {
		return Output{}, crawlerrors.NewTransient(string(domain.StageProductDetailCrawling), err)
	}
	record, err := s.deps.Parser.ParseDetail(body)
	if err != nil {
		return Output{}, crawlerrors.NewPermanent(string(domain.StageProductDetailCrawling), err)
	}
	record.URL = in.Item.URL
	record.PageID = in.Item.PageID
	record.IndexInPage = in.Item.IndexInPage
	return Output{Record: record}, nil
}

type dataValidation struct{ deps Deps }

func (s *dataValidation) Name() string { return "DataValidation" }

func (s *dataValidation) Execute(ctx context.Context, in Input) (Output, error) {
	record := in.Product
	var violations []string
	if record.Name == "" {
		violations = append(violations, "name")
	}
	if record.Certificate == "" {
		violations = append(violations, "certificate_id")
	}
	if len(violations) > 0 {
		record.Quality = domain.QualityFailed
		// Missing required fields is a schema violation, classified Permanent:
		// the ValidationError kind is reserved for MI-2 coordinate-mismatch
		// diffs, not field-presence checks.
		return Output{Validated: record}, crawlerrors.NewPermanent(string(domain.StageDataValidation), fmt.Errorf("missing required fields: %v", violations))
	}
	record.Quality = domain.QualityPassed
	return Output{Validated: record}, nil
}

type dataSaving struct{ deps Deps }

func (s *dataSaving) Name() string { return "DataSaving" }

func (s *dataSaving) Execute(ctx context.Context, in Input) (Output, error) {
	result, err := s.deps.Repository.UpsertProduct(ctx, in.Product)
	if err != nil {
		return Output{}, crawlerrors.NewFatal("store unreachable", err)
	}
	return Output{UpsertResult: result}, nil
}
