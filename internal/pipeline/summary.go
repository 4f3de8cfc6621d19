package pipeline

import (
	"emagsync/internal/worker/processors/ai"
	"emagsync/internal/worker/processors/export"
)

// Stage names the step a run reached.
type Stage string

const (
	StageFetchMarketplace  Stage = "fetch_marketplace"
	StageFetchSupplier     Stage = "fetch_supplier"
	StageMatchByIdentifier Stage = "match_by_identifier"
	StageDeriveCategories  Stage = "derive_categories_from_unmatched"
	StageFetchCategories   Stage = "fetch_category_details"
	StageReconcile         Stage = "reconcile_categories"
	StageFilterMapped      Stage = "filter_mapped_products"
	StageTransform         Stage = "transform"
	StageEnrich            Stage = "enrich"
	StageSubmit            Stage = "submit"
	StageStreamMarketplace Stage = "stream_marketplace"
	StageDone              Stage = "done"
)

// Summary is the outcome of one run. It is returned for partial runs too.
type Summary struct {
	Action      Action `json:"action"`
	Locale      string `json:"locale"`
	Stage       Stage  `json:"stage"`
	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abort_reason,omitempty"`

	MarketplaceProductsFetched int `json:"emag_products_fetched"`
	Fitness1ProductsFetched    int `json:"fitness1_products_fetched"`
	MatchedProducts            int `json:"matched_products"`
	CategoriesFetched          int `json:"categories_fetched"`
	MappedCategories           int `json:"mapped_categories"`
	Derived                    int `json:"derived_products"`
	SkippedProducts            int `json:"skipped_products"`

	Submitted int              `json:"submitted"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Failures  []export.Failure `json:"failures,omitempty"`

	EnrichmentFailures []ai.Failure `json:"enrichment_failures,omitempty"`
	Warnings           []string     `json:"warnings,omitempty"`
}

func (s *Summary) abort(reason string) {
	s.Aborted = true
	s.AbortReason = reason
}

func (s *Summary) record(res export.Result) {
	s.Submitted += res.Total
	s.Succeeded += res.Succeeded
	s.Failed += res.Failed()
	s.Failures = append(s.Failures, res.Failures...)
}
