package validation

import (
	"errors"
	"fmt"
	"strings"

	"emagsync/internal/logger"
	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"
)

// ErrInvalidProduct wraps every validation failure.
var ErrInvalidProduct = errors.New("invalid product")

type Validator struct {
	logger *logger.Logger
}

func New(logger *logger.Logger) *Validator {
	return &Validator{
		logger: logger,
	}
}

// ValidateSupplier checks the fields a supplier product needs before it can
// be matched or converted.
func (v *Validator) ValidateSupplier(p fitness1.Product) error {
	var problems []string
	if strings.TrimSpace(p.Barcode) == "" {
		problems = append(problems, "missing barcode")
	}
	if !p.RegularPrice.Valid {
		problems = append(problems, "unparseable price")
	}
	return v.result(fmt.Sprintf("supplier product %q", p.Barcode), problems)
}

// ValidateProduct checks a derived listing before it is submitted.
func (v *Validator) ValidateProduct(p *emag.Product) error {
	var problems []string
	if p.ID <= 0 {
		problems = append(problems, "missing id")
	}
	if strings.TrimSpace(p.EAN) == "" {
		problems = append(problems, "missing ean")
	}
	if p.CategoryID <= 0 {
		problems = append(problems, "missing category")
	}
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "missing name")
	}
	if p.PartNumber == "" {
		problems = append(problems, "missing part number")
	}
	if p.SalePrice < float64(p.MinSalePrice) || p.SalePrice > float64(p.MaxSalePrice) {
		problems = append(problems, fmt.Sprintf("sale price %.2f outside [%d, %d]", p.SalePrice, p.MinSalePrice, p.MaxSalePrice))
	}
	return v.result(fmt.Sprintf("listing %d", p.ID), problems)
}

// ValidateUpdate checks a price and availability refresh.
func (v *Validator) ValidateUpdate(u emag.OfferUpdate) error {
	var problems []string
	if u.ID <= 0 {
		problems = append(problems, "missing id")
	}
	if u.SalePrice < emag.MinSalePrice || u.SalePrice > emag.MaxSalePrice {
		problems = append(problems, fmt.Sprintf("sale price %.2f outside [%d, %d]", u.SalePrice, emag.MinSalePrice, emag.MaxSalePrice))
	}
	return v.result(fmt.Sprintf("offer %d", u.ID), problems)
}

func (v *Validator) result(subject string, problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	v.logger.Debug("Validation failed for %s: %s", subject, strings.Join(problems, ", "))
	return fmt.Errorf("%w: %s: %s", ErrInvalidProduct, subject, strings.Join(problems, ", "))
}
