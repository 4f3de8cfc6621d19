package fitness1

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ProductsResponse is the single-shot inventory payload. Skipped counts the
// records that could not be decoded.
type ProductsResponse struct {
	Status   string    `json:"status"`
	Products []Product `json:"products"`
	Skipped  int       `json:"-"`
}

// Product represents a supplier inventory item.
type Product struct {
	BrandName    string `json:"brand_name"`
	ProductName  string `json:"product_name"`
	Option       string `json:"option,omitempty"`
	Pack         string `json:"pack,omitempty"`
	Category     string `json:"category"`
	Image        string `json:"image"`
	Label        string `json:"label"`
	Barcode      string `json:"barcode"`
	RegularPrice Price  `json:"regular_price"`
	Available    Flag   `json:"available"`
	Description  string `json:"description"`
}

// UnmarshalJSON accepts the barcode as a string or a bare number.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	aux := struct {
		*plain
		Barcode json.RawMessage `json:"barcode"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	code, err := decodeCode(aux.Barcode)
	if err != nil {
		return fmt.Errorf("barcode: %w", err)
	}
	p.Barcode = code
	return nil
}

// decodeCode keeps numeric codes as their literal digits; going through
// float64 would mangle long EANs.
func decodeCode(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("unsupported value %s", string(raw))
}

// DisplayName joins the non-empty name parts with ", ". Pipes are dropped
// from the product name.
func (p Product) DisplayName() string {
	parts := []string{
		p.BrandName,
		strings.ReplaceAll(p.ProductName, "|", ""),
		p.Option,
		p.Pack,
	}
	out := parts[:0]
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, ", ")
}

// Price is a supplier price. The feed sends numbers, numeric strings and
// garbage; anything unparseable decodes as an invalid (null) price.
type Price struct {
	decimal.NullDecimal
}

func NewPrice(v string) Price {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return Price{}
	}
	return Price{decimal.NullDecimal{Decimal: d, Valid: true}}
}

func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*p = Price{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*p = NewPrice(strings.TrimSpace(s))
		return nil
	}
	*p = NewPrice(string(data))
	return nil
}

func (p Price) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return []byte("null"), nil
	}
	return []byte(p.Decimal.String()), nil
}

// Float returns the price rounded to cents.
func (p Price) Float() float64 {
	f, _ := p.Decimal.Round(2).Float64()
	return f
}

// Flag is a truthy availability marker: booleans, 0/1 and their string forms.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch t := v.(type) {
	case nil:
		*f = false
	case bool:
		*f = Flag(t)
	case float64:
		*f = t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "", "0", "false", "no":
			*f = false
		default:
			*f = true
		}
	default:
		return fmt.Errorf("unsupported availability value %s", string(data))
	}
	return nil
}
