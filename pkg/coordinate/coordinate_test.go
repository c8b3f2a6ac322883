package coordinate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAssign_WorkedExample exercises the scenario: total_pages=495,
// products_on_last_page=6, P=12. The newest item (physical page 1, slot 1)
// and the oldest item (physical page 495, its last slot) are checked
// against coordinates derived directly from the global oldest-first rank,
// and a slot beyond the last page's item count reports OutOfRange.
func TestAssign_WorkedExample(t *testing.T) {
	const totalPages = 495
	const productsOnLastPage = 6
	const perPage = 12

	newest, err := Assign(1, 1, totalPages, productsOnLastPage, perPage)
	require.NoError(t, err)
	assert.Equal(t, Coordinate{PageID: 494, IndexInPage: 5}, newest)

	oldest, err := Assign(totalPages, productsOnLastPage, totalPages, productsOnLastPage, perPage)
	require.NoError(t, err)
	assert.Equal(t, Coordinate{PageID: 0, IndexInPage: 0}, oldest)

	_, err = Assign(totalPages, 7, totalPages, productsOnLastPage, perPage)
	var oor *ErrOutOfRange
	require.ErrorAs(t, err, &oor)
	assert.True(t, errors.As(err, &oor))
}

// TestAssign_Bijective checks that every (physical page, slot) pair in a
// small site maps onto a distinct coordinate covering exactly [0,N).
func TestAssign_Bijective(t *testing.T) {
	const totalPages = 9
	const productsOnLastPage = 4
	const perPage = 5

	total := TotalItems(totalPages, productsOnLastPage, perPage)
	seen := make(map[int]bool, total)

	for page := 1; page <= totalPages; page++ {
		pageSize := perPage
		if page == totalPages {
			pageSize = productsOnLastPage
		}
		for slot := 1; slot <= pageSize; slot++ {
			c, err := Assign(page, slot, totalPages, productsOnLastPage, perPage)
			require.NoError(t, err)
			rank := c.PageID*perPage + c.IndexInPage
			require.False(t, seen[rank], "duplicate rank %d", rank)
			seen[rank] = true
		}
	}
	assert.Len(t, seen, total)
}

func TestAssign_OldestIsZeroZero(t *testing.T) {
	c, err := Assign(3, 2, 3, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, Coordinate{PageID: 0, IndexInPage: 0}, c)
}

func TestAssign_PhysicalPageOutOfRange(t *testing.T) {
	_, err := Assign(0, 1, 10, 5, 5)
	assert.Error(t, err)

	_, err = Assign(11, 1, 10, 5, 5)
	assert.Error(t, err)
}
