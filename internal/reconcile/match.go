// Package reconcile matches supplier products to marketplace listings and
// supplier categories to marketplace categories.
package reconcile

import (
	"sort"

	"emagsync/internal/logger"
	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"
)

// Pair is a marketplace listing id and the supplier product with the same
// barcode.
type Pair struct {
	ListingID int
	Product   fitness1.Product
}

// IndexByBarcode maps barcode -> product. Later duplicates win; products
// without a barcode are left out.
func IndexByBarcode(products []fitness1.Product) map[string]fitness1.Product {
	index := make(map[string]fitness1.Product, len(products))
	for _, p := range products {
		if p.Barcode == "" {
			continue
		}
		index[p.Barcode] = p
	}
	return index
}

// lookup returns the supplier product for the first of the listing's EANs
// present in the index. Comparison is exact.
func lookup(l emag.ListedProduct, index map[string]fitness1.Product) (fitness1.Product, bool) {
	for _, ean := range l.EAN {
		if ean == "" {
			continue
		}
		if p, ok := index[ean]; ok {
			return p, true
		}
	}
	return fitness1.Product{}, false
}

// RelatedListings returns the listings carrying a supplier barcode among
// their EANs.
func RelatedListings(listed []emag.ListedProduct, supplier []fitness1.Product, log *logger.Logger) []emag.ListedProduct {
	index := IndexByBarcode(supplier)
	var related []emag.ListedProduct
	for _, l := range listed {
		if l.FirstEAN() == "" {
			log.Debug("listing %d has no EAN, skipping", l.ID)
			continue
		}
		if _, ok := lookup(l, index); ok {
			related = append(related, l)
		}
	}
	return related
}

// PairByEAN pairs every listing with the supplier product sharing one of
// its EANs.
func PairByEAN(listed []emag.ListedProduct, index map[string]fitness1.Product, log *logger.Logger) []Pair {
	var pairs []Pair
	for _, l := range listed {
		if l.FirstEAN() == "" {
			log.Debug("listing %d has no EAN, skipping", l.ID)
			continue
		}
		if p, ok := lookup(l, index); ok {
			pairs = append(pairs, Pair{ListingID: l.ID, Product: p})
		}
	}
	return pairs
}

// ByEAN keys listings by every EAN they carry. The first listing seen for
// an EAN keeps it.
func ByEAN(listed []emag.ListedProduct) map[string]emag.ListedProduct {
	out := make(map[string]emag.ListedProduct, len(listed))
	for _, l := range listed {
		for _, ean := range l.EAN {
			if _, taken := out[ean]; ean != "" && !taken {
				out[ean] = l
			}
		}
	}
	return out
}

// Unmatched returns the listings not in related, compared by id.
func Unmatched(listed, related []emag.ListedProduct) []emag.ListedProduct {
	relatedIDs := make(map[int]bool, len(related))
	for _, r := range related {
		relatedIDs[r.ID] = true
	}
	var rest []emag.ListedProduct
	for _, l := range listed {
		if !relatedIDs[l.ID] {
			rest = append(rest, l)
		}
	}
	return rest
}

// CategoryIDs lists the distinct category ids of the listings, ascending.
func CategoryIDs(listed []emag.ListedProduct) []int {
	seen := make(map[int]bool)
	var ids []int
	for _, l := range listed {
		if seen[l.CategoryID] {
			continue
		}
		seen[l.CategoryID] = true
		ids = append(ids, l.CategoryID)
	}
	sort.Ints(ids)
	return ids
}

// ListingIDs returns listing ids in fetch order.
func ListingIDs(listed []emag.ListedProduct) []int {
	ids := make([]int, len(listed))
	for i, l := range listed {
		ids[i] = l.ID
	}
	return ids
}
