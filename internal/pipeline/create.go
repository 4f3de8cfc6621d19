package pipeline

import (
	"context"
	"errors"
	"fmt"

	"emagsync/internal/config"
	"emagsync/internal/reconcile"
	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"
	"emagsync/internal/worker/processors/export"
)

// Create publishes every supplier product whose category maps to an allowed
// marketplace category. A failed marketplace fetch or an exhausted id window
// ends the run with an error; everything else degrades into the summary.
func (r *Runner) Create(ctx context.Context, opts Options) (Summary, error) {
	opts.Action = ActionCreate
	return r.create(ctx, r.session(opts), false)
}

// CreateLocale derives listings the way Create does, translates them for
// the locale and submits them to that locale's marketplace.
func (r *Runner) CreateLocale(ctx context.Context, opts Options) (Summary, error) {
	opts.Action = ActionLocale
	s := r.session(opts)
	if r.enricher == nil {
		summary := Summary{Action: ActionLocale, Locale: s.opts.Locale, Stage: StageFetchMarketplace}
		summary.abort(ErrNoEnricher.Error())
		return summary, ErrNoEnricher
	}
	return r.create(ctx, s, true)
}

// inputs is what the create and mapping workflows gather before
// reconciling categories.
type inputs struct {
	listed     []emag.ListedProduct
	products   []fitness1.Product
	related    []emag.ListedProduct
	categories []emag.Category
}

// gather runs the stages from FetchMarketplace to FetchCategoryDetails.
// ok is false when the supplier fetch failed and the run should stop
// without an error.
func (r *Runner) gather(ctx context.Context, s *session, summary *Summary) (inputs, bool, error) {
	var in inputs

	summary.Stage = StageFetchMarketplace
	ok, listed := s.marketplace.FetchAll(ctx)
	summary.MarketplaceProductsFetched = len(listed)
	if !ok {
		summary.abort("marketplace listings could not be fetched")
		return in, false, fmt.Errorf("%w: %d listings read before the failure", ErrMarketplaceFetch, len(listed))
	}
	in.listed = listed

	summary.Stage = StageFetchSupplier
	ok, products := s.supplier.FetchAll(ctx)
	summary.Fitness1ProductsFetched = len(products)
	if !ok {
		summary.abort("supplier products could not be fetched")
		return in, false, nil
	}
	in.products = r.validSupplier(products, summary)

	summary.Stage = StageMatchByIdentifier
	in.related = reconcile.RelatedListings(listed, in.products, s.log)
	summary.MatchedProducts = len(in.related)

	summary.Stage = StageDeriveCategories
	categoryIDs := reconcile.CategoryIDs(reconcile.Unmatched(listed, in.related))

	summary.Stage = StageFetchCategories
	ok, in.categories = s.marketplace.FetchCategories(ctx, categoryIDs)
	summary.CategoriesFetched = len(in.categories)
	if !ok {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("category details incomplete: %d of %d read", len(in.categories), len(categoryIDs)))
	}
	return in, true, nil
}

func (r *Runner) create(ctx context.Context, s *session, enrich bool) (Summary, error) {
	log := s.log
	summary := Summary{Action: s.opts.Action, Locale: s.opts.Locale}

	in, ok, err := r.gather(ctx, s, &summary)
	if !ok {
		return summary, err
	}

	summary.Stage = StageReconcile
	resolved, warnings := r.reconcileCategories(ctx, s, in.products, in.categories)
	summary.MappedCategories = len(resolved)
	summary.Warnings = append(summary.Warnings, warnings...)

	summary.Stage = StageFilterMapped
	eligible := reconcile.WithCategory(in.products, resolved)
	log.Info("%d of %d supplier products have a marketplace category", len(eligible), len(in.products))

	summary.Stage = StageTransform
	listings, skipped, err := r.derive(s, eligible, in.listed, in.related, resolved)
	summary.SkippedProducts += skipped
	summary.Derived = len(listings)
	if err != nil {
		summary.abort(err.Error())
		return summary, err
	}

	if enrich {
		summary.Stage = StageEnrich
		listings = r.enrich(ctx, s, listings, in.categories, &summary)
	}

	summary.Stage = StageSubmit
	records, err := export.Records(listings)
	if err != nil {
		summary.abort(err.Error())
		return summary, err
	}
	summary.record(s.exporter.Submit(ctx, records))

	summary.Stage = StageDone
	log.Info("Create finished: %d submitted, %d succeeded, %d failed",
		summary.Submitted, summary.Succeeded, summary.Failed)
	return summary, nil
}

// allowedCategories returns the stored allowed categories and keywords,
// or the built-in ones when nothing is stored.
func (r *Runner) allowedCategories(ctx context.Context, s *session) ([]string, map[string][]string, []string) {
	names, keywords := config.DefaultFitnessCategories, config.DefaultKeywords
	if r.catalog == nil {
		return names, keywords, nil
	}

	storedNames, storedKeywords, err := r.catalog.AllowedCategories(ctx)
	if err != nil {
		s.log.Warn("Falling back to built-in categories: %v", err)
		return names, keywords, []string{"allowed categories unavailable, using built-in list"}
	}
	if len(storedNames) > 0 {
		names = storedNames
		if len(storedKeywords) > 0 {
			keywords = storedKeywords
		}
	}
	return names, keywords, nil
}

// assign computes the supplier -> marketplace category assignment over the
// allowed categories. Ties are returned as warnings.
func (r *Runner) assign(
	ctx context.Context,
	s *session,
	products []fitness1.Product,
	categories []emag.Category,
) (reconcile.Assignment, []string) {
	names, keywords, warnings := r.allowedCategories(ctx, s)

	allowed := reconcile.Allowed(categories, names)
	matcher := reconcile.NewMatcher(s.opts.Threshold, keywords)
	candidates := matcher.Candidates(reconcile.SupplierCategories(products), reconcile.Names(allowed))

	assignment, ambiguities := reconcile.Invert(candidates)
	for _, a := range ambiguities {
		s.log.Warn("Ambiguous category: %s", a)
		warnings = append(warnings, a.String())
	}
	s.log.Info("Matched %d supplier categories onto %d allowed marketplace categories", len(assignment), len(allowed))
	return assignment, warnings
}

// reconcileCategories assigns categories, lets stored manual mappings
// override the result and joins it to the category records.
func (r *Runner) reconcileCategories(
	ctx context.Context,
	s *session,
	products []fitness1.Product,
	categories []emag.Category,
) (map[string]emag.Category, []string) {
	assignment, warnings := r.assign(ctx, s, products, categories)

	if r.catalog != nil {
		overrides, err := r.catalog.MappingOverrides(ctx)
		if err != nil {
			s.log.Warn("Manual mappings unavailable: %v", err)
			warnings = append(warnings, "manual category mappings unavailable")
		}
		assignment = assignment.Apply(overrides)
	}

	resolved := reconcile.Resolve(assignment, categories)
	for supplier, name := range assignment {
		if _, ok := resolved[supplier]; !ok {
			warnings = append(warnings, fmt.Sprintf("category %q is mapped to unknown marketplace category %q", supplier, name))
		}
	}
	return resolved, warnings
}

// derive converts eligible products into listings. Products that fail
// validation are skipped; an id allocation failure stops the run.
func (r *Runner) derive(
	s *session,
	products []fitness1.Product,
	listed, related []emag.ListedProduct,
	resolved map[string]emag.Category,
) ([]*emag.Product, int, error) {
	ids := reconcile.NewIDAllocator(reconcile.ListingIDs(listed))
	byEAN := reconcile.ByEAN(related)

	var (
		listings []*emag.Product
		skipped  int
	)
	for _, p := range products {
		listing, err := s.transformer.Derive(p, byEAN, ids, resolved)
		switch {
		case errors.Is(err, fitness1.ErrUnmappedCategory):
			s.log.Debug("Skipping %s: %v", p.Barcode, err)
			skipped++
			continue
		case err != nil:
			return listings, skipped, err
		}

		if err := r.validator.ValidateProduct(listing); err != nil {
			skipped++
			continue
		}
		listings = append(listings, listing)
	}
	s.log.Info("Derived %d listings (%d skipped)", len(listings), skipped)
	return listings, skipped, nil
}

// enrich translates listings for the run's locale. Listings that could not
// be translated are dropped rather than published in the source language.
func (r *Runner) enrich(
	ctx context.Context,
	s *session,
	listings []*emag.Product,
	categories []emag.Category,
	summary *Summary,
) []*emag.Product {
	byID := make(map[int]emag.Category, len(categories))
	for _, c := range categories {
		byID[c.ID] = c
	}

	failures := r.enricher.Enrich(ctx, listings, s.opts.Locale, byID)
	if len(failures) == 0 {
		return listings
	}

	failed := make(map[int]bool, len(failures))
	for _, f := range failures {
		failed[f.ProductID] = true
	}
	kept := listings[:0:0]
	for _, l := range listings {
		if !failed[l.ID] {
			kept = append(kept, l)
		}
	}

	summary.EnrichmentFailures = failures
	summary.SkippedProducts += len(failures)
	summary.Warnings = append(summary.Warnings,
		fmt.Sprintf("%d listings could not be translated and were not submitted", len(failures)))
	return kept
}
