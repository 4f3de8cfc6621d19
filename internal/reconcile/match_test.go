package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emagsync/internal/logger"
	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"
)

func TestRelatedListingsIsExact(t *testing.T) {
	listed := []emag.ListedProduct{
		{ID: 1, EAN: []string{"111"}},
		{ID: 2, EAN: []string{"0111"}},
		{ID: 3, EAN: nil},
		{ID: 4, EAN: []string{"abc"}},
		{ID: 5, EAN: []string{"222", "111"}},
	}
	supplier := []fitness1.Product{{Barcode: "111"}, {Barcode: "ABC"}}

	related := RelatedListings(listed, supplier, logger.Nop())

	require.Len(t, related, 2)
	assert.Equal(t, 1, related[0].ID)
	assert.Equal(t, 5, related[1].ID, "any EAN entry counts")
}

func TestPairByEAN(t *testing.T) {
	listed := []emag.ListedProduct{{ID: 42, EAN: []string{"111"}}, {ID: 43}, {ID: 44, EAN: []string{"999"}}}
	index := IndexByBarcode([]fitness1.Product{
		{Barcode: "111", RegularPrice: fitness1.NewPrice("33.5")},
		{Barcode: ""},
	})

	pairs := PairByEAN(listed, index, logger.Nop())

	require.Len(t, pairs, 1)
	assert.Equal(t, 42, pairs[0].ListingID)
	assert.Equal(t, "111", pairs[0].Product.Barcode)
	assert.Len(t, index, 1)
}

func TestUnmatched(t *testing.T) {
	listed := []emag.ListedProduct{{ID: 1}, {ID: 2}, {ID: 3}}
	rest := Unmatched(listed, []emag.ListedProduct{{ID: 2}})

	assert.Equal(t, []emag.ListedProduct{{ID: 1}, {ID: 3}}, rest)
}

func TestCategoryIDsAndListingIDs(t *testing.T) {
	listed := []emag.ListedProduct{
		{ID: 10, CategoryID: 5},
		{ID: 11, CategoryID: 2},
		{ID: 12, CategoryID: 5},
	}
	assert.Equal(t, []int{2, 5}, CategoryIDs(listed))
	assert.Equal(t, []int{10, 11, 12}, ListingIDs(listed))
}

func TestByEAN(t *testing.T) {
	first := emag.ListedProduct{ID: 1, EAN: []string{"a", "b"}}
	got := ByEAN([]emag.ListedProduct{first, {ID: 2}, {ID: 3, EAN: []string{"b"}}})
	assert.Equal(t, map[string]emag.ListedProduct{"a": first, "b": first}, got)
}

func TestRatios(t *testing.T) {
	assert.Equal(t, 100.0, Ratio("протеини", "протеини"))
	assert.Equal(t, 0.0, Ratio("", "x"))
	assert.InDelta(t, 66.67, Ratio("abc", "abd"), 0.01)
	assert.InDelta(t, 66.67, Ratio("ab", "abcd"), 0.01, "length difference costs only the extra runes")
	assert.InDelta(t, 50.0, Ratio("ab", "ba"), 0.01)

	assert.Equal(t, 100.0, TokenSetRatio("на прах", "хранителни добавки на прах"))
	assert.Equal(t, 100.0, TokenSetRatio("b a", "a b"))
	assert.Less(t, TokenSetRatio("a b", "c d"), 50.0)
	assert.InDelta(t, 60.87, TokenSetRatio("протеин", "на прах протеини"), 0.01)
	assert.Equal(t, 0.0, TokenSetRatio("", "a"))

	assert.Equal(t, 100.0, PartialRatio("прах", "на прах"))
	assert.Equal(t, 100.0, PartialRatio("на прах", "прах"))
	assert.Less(t, PartialRatio("xyz", "abcdef"), 50.0)
}
