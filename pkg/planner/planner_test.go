package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseRange_AsciiDashes covers scenario 2's first input.
func TestParseRange_AsciiDashes(t *testing.T) {
	ranges, err := ParseRange("498-492,489,487-485")
	require.NoError(t, err)
	assert.Equal(t, []PageRange{
		{Hi: 498, Lo: 492},
		{Hi: 489, Lo: 489},
		{Hi: 487, Lo: 485},
	}, ranges)
}

// TestParseRange_UnicodeDashes covers scenario 2's second input, using an
// en dash and a fullwidth wave dash as range separators.
func TestParseRange_UnicodeDashes(t *testing.T) {
	ranges, err := ParseRange("498–492,487～485")
	require.NoError(t, err)
	assert.Equal(t, []PageRange{
		{Hi: 498, Lo: 492},
		{Hi: 487, Lo: 485},
	}, ranges)
}

// TestParseRange_Idempotence checks parse(emit(parse(s))) == parse(s).
func TestParseRange_Idempotence(t *testing.T) {
	for _, s := range []string{
		"498-492,489,487-485",
		"200-198",
		"1",
		"10-1,5",
	} {
		first, err := ParseRange(s)
		require.NoError(t, err)
		second, err := ParseRange(FormatRange(first))
		require.NoError(t, err)
		assert.Equal(t, first, second, "input %q", s)
	}
}

func TestPages_Expansion(t *testing.T) {
	ranges, err := ParseRange("200-198")
	require.NoError(t, err)
	assert.Equal(t, []int{200, 199, 198}, Pages(ranges))
}

func TestBuildPlan_Partitioning(t *testing.T) {
	plan := BuildPlan(45, 6, Options{BatchSize: 20, ProductsPerPage: 12, ConcurrencyLimit: 5})
	require.Len(t, plan.Batches, 3)
	assert.Equal(t, 45, plan.Batches[0].StartPage)
	assert.Equal(t, 26, plan.Batches[0].EndPage)
	assert.Equal(t, 25, plan.Batches[1].StartPage)
	assert.Equal(t, 6, plan.Batches[1].EndPage)
	assert.Equal(t, 5, plan.Batches[2].StartPage)
	assert.Equal(t, 1, plan.Batches[2].EndPage)
	assert.NotEmpty(t, plan.PlanHash)
}

func TestPlanHash_Deterministic(t *testing.T) {
	opts := Options{BatchSize: 20, ProductsPerPage: 12, ConcurrencyLimit: 5}
	a := PlanHash(495, 6, opts)
	b := PlanHash(495, 6, opts)
	assert.Equal(t, a, b)

	c := PlanHash(495, 5, opts)
	assert.NotEqual(t, a, c)
}
