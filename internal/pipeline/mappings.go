package pipeline

import (
	"context"
	"errors"
	"sort"

	"emagsync/internal/reconcile"
	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"
)

// ErrSupplierFetch is returned by the read-only workflows when the supplier
// feed could not be read.
var ErrSupplierFetch = errors.New("supplier fetch failed")

// MappingProposal is the category assignment a create run would compute,
// before manual mappings are applied.
type MappingProposal struct {
	Assignment         map[string]string `json:"assignment"`
	Unmapped           []string          `json:"unmapped"`
	SupplierCategories int               `json:"supplier_categories"`
	CategoriesFetched  int               `json:"categories_fetched"`
	Warnings           []string          `json:"warnings,omitempty"`
}

// ProposeMappings gathers listings, supplier products and category details
// the way Create does and returns the fuzzy assignment without submitting
// anything.
func (r *Runner) ProposeMappings(ctx context.Context, opts Options) (MappingProposal, error) {
	opts.Action = ActionCreate
	s := r.session(opts)

	var summary Summary
	in, ok, err := r.gather(ctx, s, &summary)
	if err != nil {
		return MappingProposal{}, err
	}
	if !ok {
		return MappingProposal{}, ErrSupplierFetch
	}

	assignment, warnings := r.assign(ctx, s, in.products, in.categories)
	supplier := reconcile.SupplierCategories(in.products)

	proposal := MappingProposal{
		Assignment:         assignment,
		SupplierCategories: len(supplier),
		CategoriesFetched:  len(in.categories),
		Warnings:           append(summary.Warnings, warnings...),
	}
	for _, name := range supplier {
		if _, ok := assignment[name]; !ok {
			proposal.Unmapped = append(proposal.Unmapped, name)
		}
	}
	sort.Strings(proposal.Unmapped)
	return proposal, nil
}

// SupplierProducts reads the current supplier feed.
func (r *Runner) SupplierProducts(ctx context.Context) ([]fitness1.Product, error) {
	s := r.session(Options{Action: ActionUpdate})
	ok, products := s.supplier.FetchAll(ctx)
	if !ok {
		return products, ErrSupplierFetch
	}
	return products, nil
}

// MarketplaceProducts reads every listing of a locale.
func (r *Runner) MarketplaceProducts(ctx context.Context, locale string) ([]emag.ListedProduct, error) {
	s := r.session(Options{Action: ActionUpdate, Locale: locale})
	ok, listed := s.marketplace.FetchAll(ctx)
	if !ok {
		return listed, ErrMarketplaceFetch
	}
	return listed, nil
}
