package fitness1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emagsync/internal/logger"
	"emagsync/internal/services/emag"
)

func TestPriceDecoding(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		valid bool
		want  float64
	}{
		{"number", `19.9`, true, 19.9},
		{"string", `"24.50"`, true, 24.5},
		{"padded string", `" 7 "`, true, 7},
		{"null", `null`, false, 0},
		{"garbage", `"n/a"`, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Price
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &p))
			assert.Equal(t, tt.valid, p.Valid)
			assert.Equal(t, tt.want, p.Float())
		})
	}
}

func TestFlagDecoding(t *testing.T) {
	for raw, want := range map[string]bool{
		`true`: true, `false`: false, `1`: true, `0`: false,
		`"1"`: true, `"0"`: false, `""`: false, `null`: false, `"yes"`: true,
	} {
		var f Flag
		require.NoError(t, json.Unmarshal([]byte(raw), &f), raw)
		assert.Equal(t, want, bool(f), raw)
	}
}

func TestDisplayName(t *testing.T) {
	p := Product{BrandName: "Nutrend", ProductName: "Whey | Pro ", Pack: "1 kg"}
	assert.Equal(t, "Nutrend, Whey  Pro, 1 kg", p.DisplayName())
}

func TestGetProducts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k1", r.URL.Query().Get("key"))
		assert.Equal(t, "1", r.URL.Query().Get("description"))
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`{"status":"ok","products":[{"barcode":"111","regular_price":"9.90","available":1,"category":"A > B"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k1", logger.Nop())
	resp, err := c.GetProducts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Products, 1)
	assert.Equal(t, 9.9, resp.Products[0].RegularPrice.Float())
	assert.True(t, bool(resp.Products[0].Available))
}

func TestGetProductsSkipsMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","products":[
			{"barcode":"1","regular_price":10,"available":true},
			{"barcode":"2","regular_price":10,"available":{"qty":3}},
			{"barcode":3800123456789,"regular_price":12,"available":1},
			{"barcode":["4"],"regular_price":12,"available":1}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "k", logger.Nop()).GetProducts(context.Background())
	require.NoError(t, err)

	require.Len(t, resp.Products, 2)
	assert.Equal(t, "1", resp.Products[0].Barcode)
	assert.Equal(t, "3800123456789", resp.Products[1].Barcode)
	assert.Equal(t, 12.0, resp.Products[1].RegularPrice.Float())
	assert.Equal(t, 2, resp.Skipped)
}

func TestGetProductsRejectsBrokenEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"ok","products":{"barcode":"1"}}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "k", logger.Nop()).GetProducts(context.Background())
	assert.Error(t, err)
}

type stubIDs struct {
	next  int
	err   error
	calls int
}

func (s *stubIDs) Next() (int, error) {
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	s.next++
	return s.next, nil
}

func TestDeriveReusesMatchedListingID(t *testing.T) {
	tr := NewTransformer("IDCARS-", 6)
	ids := &stubIDs{next: 500}
	product := Product{
		BrandName:    "Brand",
		ProductName:  "Whey",
		Category:     "Протеини > Суроватъчен",
		Image:        "img.jpg",
		Label:        "label.jpg",
		Barcode:      "3800",
		RegularPrice: NewPrice("30"),
		Available:    true,
		Description:  "Tom &amp; Jerry",
	}
	related := map[string]emag.ListedProduct{"3800": {ID: 77, EAN: []string{"3800"}, PartNumber: "OLD"}}
	categories := map[string]emag.Category{"Протеини > Суроватъчен": {ID: 12, Name: "Протеини"}}

	got, err := tr.Derive(product, related, ids, categories)
	require.NoError(t, err)

	assert.Equal(t, 77, got.ID)
	assert.Equal(t, 0, ids.calls)
	assert.Equal(t, "IDCARS-77", got.PartNumber)
	assert.Equal(t, 12, got.CategoryID)
	assert.Equal(t, "Tom & Jerry", got.Description)
	assert.Equal(t, []emag.Image{{URL: "img.jpg", DisplayType: 1}, {URL: "label.jpg", DisplayType: 2}}, got.Images)
	assert.Equal(t, []emag.Stock{{WarehouseID: 1, Value: 100}}, got.Stock)
	assert.Equal(t, 1, got.MinSalePrice)
	assert.Equal(t, 9999, got.MaxSalePrice)
	assert.Equal(t, 6, got.VatID)
	assert.True(t, got.Status)
}

func TestDeriveAllocatesWhenUnmatched(t *testing.T) {
	tr := NewTransformer("IDCARS-", 6)
	ids := &stubIDs{next: 1204}
	categories := map[string]emag.Category{"X": {ID: 3}}

	got, err := tr.Derive(Product{Barcode: "999", Category: "X"}, nil, ids, categories)
	require.NoError(t, err)
	assert.Equal(t, 1205, got.ID)
	assert.Equal(t, "IDCARS-1205", got.PartNumber)
}

func TestDeriveUnmappedCategoryDoesNotConsumeID(t *testing.T) {
	tr := NewTransformer("IDCARS-", 6)
	ids := &stubIDs{}

	_, err := tr.Derive(Product{Barcode: "1", Category: "Nowhere"}, nil, ids, map[string]emag.Category{})
	assert.ErrorIs(t, err, ErrUnmappedCategory)
	assert.Equal(t, 0, ids.calls)
}

func TestDerivePropagatesIDError(t *testing.T) {
	boom := errors.New("window empty")
	tr := NewTransformer("IDCARS-", 6)

	_, err := tr.Derive(Product{Barcode: "1", Category: "X"}, nil, &stubIDs{err: boom}, map[string]emag.Category{"X": {ID: 1}})
	assert.ErrorIs(t, err, boom)
}

func TestUpdateDiff(t *testing.T) {
	tr := NewTransformer("IDCARS-", 9)
	u := tr.Update(42, Product{RegularPrice: NewPrice("12.345"), Available: false})
	assert.Equal(t, emag.OfferUpdate{ID: 42, SalePrice: 12.35, Status: false, VatID: 9}, u)
}
