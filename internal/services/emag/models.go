package emag

import "encoding/json"

// Response is the envelope every eMAG Marketplace API call answers with.
// isError can be true on an HTTP 200. Skipped counts results that could not
// be decoded.
type Response[T any] struct {
	IsError  bool     `json:"isError"`
	Messages Messages `json:"messages"`
	Errors   Messages `json:"errors"`
	Results  []T      `json:"results"`
	Skipped  int      `json:"-"`
}

func (r *Response[T]) Failed() bool {
	return r.IsError
}

// Messages tolerates the API mixing plain strings and objects in messages
// and errors; everything is kept as raw JSON.
type Messages []json.RawMessage

func (m Messages) Strings() []string {
	out := make([]string, 0, len(m))
	for _, raw := range m {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			out = append(out, s)
			continue
		}
		out = append(out, string(raw))
	}
	return out
}

// ListedProduct is a product offer as returned by product_offer/read. Only
// the fields matching and id synthesis read are decoded.
type ListedProduct struct {
	ID         int      `json:"id"`
	EAN        []string `json:"ean"`
	CategoryID int      `json:"category_id"`
	PartNumber string   `json:"part_number"`
	Name       string   `json:"name"`
}

// FirstEAN is the identifier used for matching. Listings without one return "".
func (p ListedProduct) FirstEAN() string {
	if len(p.EAN) == 0 {
		return ""
	}
	return p.EAN[0]
}

// Category is a category/read result.
type Category struct {
	ID              int                      `json:"id"`
	Name            string                   `json:"name"`
	Characteristics []CategoryCharacteristic `json:"characteristics,omitempty"`
}

type CategoryCharacteristic struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	IsMandatory int    `json:"is_mandatory"`
}

const (
	DisplayTypePrimary = 1
	DisplayTypeLabel   = 2
)

type Image struct {
	URL         string `json:"url"`
	DisplayType int    `json:"display_type"`
}

type Stock struct {
	WarehouseID int `json:"warehouse_id"`
	Value       int `json:"value"`
}

type Characteristic struct {
	ID    int    `json:"id"`
	Value string `json:"value"`
}

// DefaultStock is the fixed warehouse record every listing is published with.
func DefaultStock() Stock {
	return Stock{WarehouseID: 1, Value: 100}
}

const (
	MinSalePrice = 1
	MaxSalePrice = 9999
)

// Product is the product_offer/save payload for a new or re-published listing.
type Product struct {
	ID              int              `json:"id,string"`
	CategoryID      int              `json:"category_id"`
	EAN             string           `json:"-"`
	Name            string           `json:"name"`
	PartNumber      string           `json:"part_number"`
	Brand           string           `json:"brand"`
	Images          []Image          `json:"images"`
	Status          bool             `json:"status"`
	SalePrice       float64          `json:"sale_price"`
	MinSalePrice    int              `json:"min_sale_price"`
	MaxSalePrice    int              `json:"max_sale_price"`
	Stock           []Stock          `json:"stock"`
	VatID           int              `json:"vat_id"`
	Description     string           `json:"description"`
	Characteristics []Characteristic `json:"characteristics,omitempty"`
}

// MarshalJSON writes the EAN as the single-element array the API expects.
func (p Product) MarshalJSON() ([]byte, error) {
	type plain Product
	return json.Marshal(struct {
		plain
		EAN []string `json:"ean"`
	}{plain: plain(p), EAN: []string{p.EAN}})
}

// OfferUpdate is the minimal product_offer/save record used to refresh price
// and availability of an existing listing.
type OfferUpdate struct {
	ID        int     `json:"id"`
	SalePrice float64 `json:"sale_price"`
	Status    bool    `json:"status"`
	VatID     int     `json:"vat_id"`
}
