package emag

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emagsync/internal/logger"
)

func TestBaseURL(t *testing.T) {
	assert.Equal(t, "https://marketplace-api.emag.bg/api-3", BaseURL("https://marketplace-api.emag.%s/api-3", "bg"))
	assert.Equal(t, "https://marketplace-api.emag.ro/api-3", BaseURL("https://marketplace-api.emag.%s/api-3/", "ro"))
	assert.Equal(t, "http://127.0.0.1:9000", BaseURL("http://127.0.0.1:9000/", "hu"))
}

func TestReadProductsPostsPaging(t *testing.T) {
	var got map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/product_offer/read", r.URL.Path)
		assert.Equal(t, "Basic secret", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.Write([]byte(`{"isError":false,"messages":[],"results":[{"id":7,"ean":["590"],"category_id":3,"part_number":"IDCARS-7"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret", logger.Nop())
	resp, err := c.ReadProducts(context.Background(), 2, 100)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"currentPage": 2, "itemsPerPage": 100}, got)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, 7, resp.Results[0].ID)
	assert.Equal(t, "590", resp.Results[0].FirstEAN())
}

func TestReadProductsSkipsMalformedOffers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"isError":false,"results":[
			{"id":7,"ean":["590"],"category_id":3,"sale_price":"12,50","status":"active"},
			{"id":"x8","ean":["591"],"category_id":3},
			{"id":9,"ean":"592","category_id":3},
			{"id":10,"ean":["593"],"category_id":4}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "k", logger.Nop()).ReadProducts(context.Background(), 1, 100)
	require.NoError(t, err)

	require.Len(t, resp.Results, 2)
	assert.Equal(t, 7, resp.Results[0].ID)
	assert.Equal(t, 10, resp.Results[1].ID)
	assert.Equal(t, 2, resp.Skipped)
}

func TestIsErrorEnvelopeOnBadStatusIsNotTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"isError":true,"messages":["invalid ean"],"errors":[{"code":12}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", logger.Nop())
	resp, err := c.SaveProducts(context.Background(), []int{1})
	require.NoError(t, err)
	assert.True(t, resp.IsError)
	assert.Equal(t, []string{"invalid ean"}, resp.Messages.Strings())
	assert.Equal(t, []string{`{"code":12}`}, resp.Errors.Strings())
}

func TestServerErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`upstream down`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", logger.Nop())
	_, err := c.ReadCategory(context.Background(), 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestProductJSONShape(t *testing.T) {
	p := Product{
		ID:           1205,
		CategoryID:   42,
		EAN:          "3800000000001",
		Name:         "Whey",
		PartNumber:   "IDCARS-1205",
		Images:       []Image{{URL: "a.jpg", DisplayType: DisplayTypePrimary}},
		Status:       true,
		SalePrice:    19.5,
		MinSalePrice: MinSalePrice,
		MaxSalePrice: MaxSalePrice,
		Stock:        []Stock{DefaultStock()},
		VatID:        6,
	}

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.Equal(t, "1205", m["id"])
	assert.Equal(t, []interface{}{"3800000000001"}, m["ean"])
	assert.Equal(t, []interface{}{map[string]interface{}{"warehouse_id": float64(1), "value": float64(100)}}, m["stock"])
	assert.NotContains(t, m, "characteristics")
	assert.NotContains(t, m, "EAN")
}
