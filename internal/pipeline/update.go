package pipeline

import (
	"context"

	"emagsync/internal/reconcile"
	"emagsync/internal/services/emag"
	"emagsync/internal/worker/processors/export"
)

// Update refreshes price and availability of existing listings. The
// supplier is read once; marketplace pages are streamed and each page's
// diffs are submitted before the next page is read.
func (r *Runner) Update(ctx context.Context, opts Options) (Summary, error) {
	opts.Action = ActionUpdate
	s := r.session(opts)
	log := s.log
	summary := Summary{Action: ActionUpdate, Locale: s.opts.Locale, Stage: StageFetchSupplier}

	ok, products := s.supplier.FetchAll(ctx)
	if !ok || len(products) == 0 {
		summary.Fitness1ProductsFetched = 0
		summary.abort("no supplier products fetched")
		log.Warn("Update skipped: no supplier products")
		return summary, nil
	}
	summary.Fitness1ProductsFetched = len(products)
	index := reconcile.IndexByBarcode(r.validSupplier(products, &summary))

	summary.Stage = StageStreamMarketplace
	completed := s.marketplace.Stream(ctx, func(page int, items []emag.ListedProduct) error {
		summary.MarketplaceProductsFetched += len(items)

		pairs := reconcile.PairByEAN(items, index, log)
		summary.MatchedProducts += len(pairs)

		updates := make([]emag.OfferUpdate, 0, len(pairs))
		for _, pair := range pairs {
			u := s.transformer.Update(pair.ListingID, pair.Product)
			if err := r.validator.ValidateUpdate(u); err != nil {
				summary.SkippedProducts++
				continue
			}
			updates = append(updates, u)
		}
		if len(updates) == 0 {
			return nil
		}

		records, err := export.Records(updates)
		if err != nil {
			return err
		}
		log.Debug("Page %d: submitting %d updates", page, len(records))
		result := s.exporter.Submit(ctx, records)
		result.OnPage(page)
		summary.record(result)
		return nil
	})
	if !completed {
		summary.Warnings = append(summary.Warnings, "marketplace pagination ended early")
	}

	summary.Stage = StageDone
	log.Info("Update finished: %d submitted, %d succeeded, %d failed",
		summary.Submitted, summary.Succeeded, summary.Failed)
	return summary, nil
}
