package fitness1

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"emagsync/internal/services/emag"
)

// ErrUnmappedCategory marks a product whose supplier category has no
// marketplace category. Such products are never submitted.
var ErrUnmappedCategory = errors.New("supplier category has no marketplace category")

// IDSource hands out listing ids for products with no existing listing.
type IDSource interface {
	Next() (int, error)
}

type Transformer struct {
	PartNumberPrefix string
	VatID            int
}

func NewTransformer(partNumberPrefix string, vatID int) *Transformer {
	return &Transformer{
		PartNumberPrefix: partNumberPrefix,
		VatID:            vatID,
	}
}

// Derive converts a supplier product to a marketplace listing. related is
// keyed by EAN; categories is keyed by supplier category path.
func (t *Transformer) Derive(
	product Product,
	related map[string]emag.ListedProduct,
	ids IDSource,
	categories map[string]emag.Category,
) (*emag.Product, error) {
	category, ok := categories[product.Category]
	if !ok {
		return nil, fmt.Errorf("%w: %q (barcode %s)", ErrUnmappedCategory, product.Category, product.Barcode)
	}

	var id int
	if listing, found := related[product.Barcode]; found && product.Barcode != "" {
		id = listing.ID
	} else {
		next, err := ids.Next()
		if err != nil {
			return nil, fmt.Errorf("allocate id for barcode %s: %w", product.Barcode, err)
		}
		id = next
	}

	return &emag.Product{
		ID:           id,
		CategoryID:   category.ID,
		EAN:          product.Barcode,
		Name:         strings.TrimSpace(product.ProductName),
		PartNumber:   fmt.Sprintf("%s%d", t.PartNumberPrefix, id),
		Brand:        product.BrandName,
		Images:       t.images(product),
		Status:       bool(product.Available),
		SalePrice:    product.RegularPrice.Float(),
		MinSalePrice: emag.MinSalePrice,
		MaxSalePrice: emag.MaxSalePrice,
		Stock:        []emag.Stock{emag.DefaultStock()},
		VatID:        t.VatID,
		Description:  html.UnescapeString(product.Description),
	}, nil
}

// Update builds the price and availability refresh for an existing listing.
func (t *Transformer) Update(listingID int, product Product) emag.OfferUpdate {
	return emag.OfferUpdate{
		ID:        listingID,
		SalePrice: product.RegularPrice.Float(),
		Status:    bool(product.Available),
		VatID:     t.VatID,
	}
}

func (t *Transformer) images(product Product) []emag.Image {
	return []emag.Image{
		{URL: product.Image, DisplayType: emag.DisplayTypePrimary},
		{URL: product.Label, DisplayType: emag.DisplayTypeLabel},
	}
}
