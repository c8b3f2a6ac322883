// Package coordinate assigns each crawled item a content-stable (page_id,
// index_in_page) pair derived from its position in the global oldest-to-
// newest ordering, so that persisted coordinates never shift when the
// site gains new pages.
package coordinate

import "fmt"

// ErrOutOfRange is returned when the requested slot does not exist on the
// given physical page.
type ErrOutOfRange struct {
	PhysicalPage int
	SlotOnPage   int
}

func (e *ErrOutOfRange) Error() string {
	return fmt.Sprintf("slot %d does not exist on physical page %d", e.SlotOnPage, e.PhysicalPage)
}

// Coordinate is the content-stable 2-D position of an item.
type Coordinate struct {
	PageID      int
	IndexInPage int
}

// Assign maps a physical page number (1-indexed, descending recency — page
// 1 is the newest) and a slot on that page (1-indexed, top to bottom, slot
// 1 is the newest item on the page) to a content-stable coordinate.
//
// totalPages is the number of physical list pages; productsOnLastPage is
// the item count on the highest-numbered (oldest) physical page, with all
// preceding pages holding perPage items. A productsOnLastPage of 0 is
// treated as a full page.
func Assign(physicalPage, slotOnPage, totalPages, productsOnLastPage, perPage int) (Coordinate, error) {
	if productsOnLastPage <= 0 || productsOnLastPage > perPage {
		productsOnLastPage = perPage
	}
	if physicalPage < 1 || physicalPage > totalPages {
		return Coordinate{}, fmt.Errorf("physical page %d out of range [1,%d]", physicalPage, totalPages)
	}
	pageSize := perPage
	if physicalPage == totalPages {
		pageSize = productsOnLastPage
	}
	if slotOnPage < 1 || slotOnPage > pageSize {
		return Coordinate{}, &ErrOutOfRange{PhysicalPage: physicalPage, SlotOnPage: slotOnPage}
	}

	total := (totalPages-1)*perPage + productsOnLastPage

	// reverseRank is the 0-based rank counted from the newest item
	// (physical page 1, slot 1) backwards in time.
	reverseRank := (physicalPage-1)*perPage + (slotOnPage - 1)
	rank := total - 1 - reverseRank

	return Coordinate{PageID: rank / perPage, IndexInPage: rank % perPage}, nil
}

// TotalItems returns the total item count implied by a site's pagination,
// N = (totalPages-1)*perPage + productsOnLastPage.
func TotalItems(totalPages, productsOnLastPage, perPage int) int {
	if productsOnLastPage <= 0 || productsOnLastPage > perPage {
		productsOnLastPage = perPage
	}
	return (totalPages-1)*perPage + productsOnLastPage
}
