// Package parse extracts structured data out of the raw HTML pages the
// fetch adapter retrieves: the site's pagination status, the list of
// product detail URLs on a list page, and the fields of one product
// detail page.
package parse

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/codeready-toolchain/matter-crawler/pkg/domain"
)

// Parser is the external interface strategies depend on for HTML
// extraction. A fake implementation backs stage/batch actor tests.
type Parser interface {
	// ParseStatus extracts total_pages and products_on_last_page from the
	// directory's landing page.
	ParseStatus(body []byte) (totalPages, productsOnLastPage int, err error)
	// ParseListPage extracts the detail URLs on one list page, in on-page
	// display order (newest first, top to bottom).
	ParseListPage(body []byte) ([]string, error)
	// ParseDetail extracts one product's fields from its detail page.
	ParseDetail(body []byte) (domain.ProductRecord, error)
}

// GoqueryParser implements Parser against the selectors used by the
// certification directory's HTML templates.
type GoqueryParser struct {
	// Selectors are exposed so a different directory skin can be parsed
	// without a code change.
	TotalPagesSelector        string
	ProductsOnLastPageSelector string
	ListItemSelector          string
	NameSelector              string
	ManufacturerSelector      string
	ModelSelector             string
	CertificateSelector       string
}

// NewGoqueryParser returns a GoqueryParser wired with the directory's
// default selectors.
func NewGoqueryParser() *GoqueryParser {
	return &GoqueryParser{
		TotalPagesSelector:         "[data-total-pages]",
		ProductsOnLastPageSelector: "[data-products-on-last-page]",
		ListItemSelector:           "a.product-link",
		NameSelector:               ".product-name",
		ManufacturerSelector:       ".product-manufacturer",
		ModelSelector:              ".product-model",
		CertificateSelector:        ".certificate-id",
	}
}

func (p *GoqueryParser) doc(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func (p *GoqueryParser) ParseStatus(body []byte) (int, int, error) {
	doc, err := p.doc(body)
	if err != nil {
		return 0, 0, err
	}
	totalPagesAttr, ok := doc.Find(p.TotalPagesSelector).First().Attr("data-total-pages")
	if !ok {
		return 0, 0, fmt.Errorf("total pages attribute not found")
	}
	totalPages, err := strconv.Atoi(strings.TrimSpace(totalPagesAttr))
	if err != nil {
		return 0, 0, fmt.Errorf("parse total pages: %w", err)
	}
	productsOnLastPage := 0
	if attr, ok := doc.Find(p.ProductsOnLastPageSelector).First().Attr("data-products-on-last-page"); ok {
		productsOnLastPage, err = strconv.Atoi(strings.TrimSpace(attr))
		if err != nil {
			return 0, 0, fmt.Errorf("parse products on last page: %w", err)
		}
	}
	return totalPages, productsOnLastPage, nil
}

func (p *GoqueryParser) ParseListPage(body []byte) ([]string, error) {
	doc, err := p.doc(body)
	if err != nil {
		return nil, err
	}
	var urls []string
	doc.Find(p.ListItemSelector).Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			urls = append(urls, strings.TrimSpace(href))
		}
	})
	return urls, nil
}

func (p *GoqueryParser) ParseDetail(body []byte) (domain.ProductRecord, error) {
	doc, err := p.doc(body)
	if err != nil {
		return domain.ProductRecord{}, err
	}
	record := domain.ProductRecord{
		Name:         strings.TrimSpace(doc.Find(p.NameSelector).First().Text()),
		Manufacturer: strings.TrimSpace(doc.Find(p.ManufacturerSelector).First().Text()),
		Model:        strings.TrimSpace(doc.Find(p.ModelSelector).First().Text()),
		Certificate:  strings.TrimSpace(doc.Find(p.CertificateSelector).First().Text()),
	}
	if record.Name == "" {
		return record, fmt.Errorf("missing required field: name")
	}
	return record, nil
}
