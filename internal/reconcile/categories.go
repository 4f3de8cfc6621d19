package reconcile

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"emagsync/internal/services/emag"
	"emagsync/internal/services/fitness1"
)

var segmentSeparators = regexp.MustCompile(`[/:]`)

// Subcategories splits a supplier taxonomy path into its segments: first on
// ">", then on "/" or ":". Segments are trimmed and empty ones dropped.
func Subcategories(path string) []string {
	var tokens []string
	for _, part := range strings.Split(path, ">") {
		for _, sub := range segmentSeparators.Split(part, -1) {
			if s := strings.TrimSpace(sub); s != "" {
				tokens = append(tokens, s)
			}
		}
	}
	return tokens
}

// Normalize lower-cases s and drops everything that is not a letter, a
// digit, an underscore or whitespace.
func Normalize(s string) string {
	lowered := cases.Lower(language.Und).String(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, lowered)
}

// Score is the evidence behind a category match.
type Score struct {
	Keyword   bool
	Substring bool
	Fuzzy     float64
}

func (s Score) better(o Score) bool {
	if s.Keyword != o.Keyword {
		return s.Keyword
	}
	return s.Fuzzy > o.Fuzzy
}

// Matcher decides whether a supplier path segment belongs to a marketplace
// category. Keywords are keyed by marketplace category name.
type Matcher struct {
	Threshold float64
	Keywords  map[string][]string
}

func NewMatcher(threshold float64, keywords map[string][]string) Matcher {
	lowered := make(map[string][]string, len(keywords))
	for category, kws := range keywords {
		for _, kw := range kws {
			lowered[category] = append(lowered[category], cases.Lower(language.Und).String(kw))
		}
	}
	return Matcher{Threshold: threshold, Keywords: lowered}
}

// Match reports whether token matches the marketplace category: a keyword
// of the category occurs in the token, one normalized string contains the
// other, or the mean of TokenSetRatio and PartialRatio reaches Threshold.
func (m Matcher) Match(marketplaceCategory, token string) (bool, Score) {
	tokenClean := Normalize(token)
	categoryClean := Normalize(marketplaceCategory)

	score := Score{
		Fuzzy: (TokenSetRatio(categoryClean, tokenClean) + PartialRatio(categoryClean, tokenClean)) / 2,
	}

	for _, kw := range m.Keywords[marketplaceCategory] {
		kw = cases.Lower(language.Und).String(kw)
		if kw != "" && strings.Contains(tokenClean, kw) {
			score.Keyword = true
			return true, score
		}
	}

	if tokenClean != "" && categoryClean != "" &&
		(strings.Contains(tokenClean, categoryClean) || strings.Contains(categoryClean, tokenClean)) {
		score.Substring = true
		return true, score
	}

	return score.Fuzzy >= m.Threshold, score
}

// Candidate is one forward association of a supplier category with a
// marketplace category, with the evidence used to rank it.
type Candidate struct {
	Supplier    string
	Marketplace string
	// Order is the position of Marketplace in the category list.
	Order int
	// Segment is the index of the first path segment that matched.
	Segment int
	Score   Score
}

// Candidates pairs every supplier category with every marketplace category
// one of its segments matches. Blank supplier categories are skipped and
// duplicates are considered once.
func (m Matcher) Candidates(supplier, marketplace []string) []Candidate {
	var out []Candidate
	seen := make(map[string]bool, len(supplier))

	for _, sc := range supplier {
		if strings.TrimSpace(sc) == "" || seen[sc] {
			continue
		}
		seen[sc] = true
		tokens := Subcategories(sc)

		for order, mc := range marketplace {
			segment := -1
			var best Score
			for i, tok := range tokens {
				ok, score := m.Match(mc, tok)
				if !ok {
					continue
				}
				if segment < 0 {
					segment = i
					best = score
				} else if score.better(best) {
					best = score
				}
			}
			if segment >= 0 {
				out = append(out, Candidate{
					Supplier:    sc,
					Marketplace: mc,
					Order:       order,
					Segment:     segment,
					Score:       best,
				})
			}
		}
	}
	return out
}

// Mapping is marketplace category name -> matching supplier categories.
type Mapping map[string][]string

// BuildMapping associates every supplier category with every marketplace
// category it matches. All marketplace categories appear as keys.
func BuildMapping(supplier, marketplace []string, m Matcher) Mapping {
	mapping := make(Mapping, len(marketplace))
	for _, mc := range marketplace {
		mapping[mc] = []string{}
	}
	for _, c := range m.Candidates(supplier, marketplace) {
		mapping[c.Marketplace] = append(mapping[c.Marketplace], c.Supplier)
	}
	return mapping
}

// Assignment is supplier category -> the single marketplace category name
// it is published under.
type Assignment map[string]string

// Apply overlays manual assignments and returns the result.
func (a Assignment) Apply(overrides map[string]string) Assignment {
	out := make(Assignment, len(a)+len(overrides))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range overrides {
		if strings.TrimSpace(v) == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

// Ambiguity records a supplier category whose best candidates could only
// be told apart by marketplace category order.
type Ambiguity struct {
	Supplier     string
	Chosen       string
	Alternatives []string
}

func (a Ambiguity) String() string {
	return fmt.Sprintf("category %q tied between %q and %s; kept %q",
		a.Supplier, a.Chosen, strings.Join(quoteAll(a.Alternatives), ", "), a.Chosen)
}

// Invert picks one marketplace category per supplier category. Candidates
// are ranked by keyword hit, then fuzzy score, then the earlier matching
// segment, then marketplace category order. Ties that reach the last rule
// are reported.
func Invert(candidates []Candidate) (Assignment, []Ambiguity) {
	grouped := make(map[string][]Candidate)
	var order []string
	for _, c := range candidates {
		if _, ok := grouped[c.Supplier]; !ok {
			order = append(order, c.Supplier)
		}
		grouped[c.Supplier] = append(grouped[c.Supplier], c)
	}

	assignment := make(Assignment, len(grouped))
	var ambiguities []Ambiguity
	for _, supplier := range order {
		group := grouped[supplier]
		sort.SliceStable(group, func(i, j int) bool {
			return outranks(group[i], group[j])
		})

		chosen := group[0]
		assignment[supplier] = chosen.Marketplace

		var tied []string
		for _, c := range group[1:] {
			if c.Score.Keyword == chosen.Score.Keyword &&
				c.Score.Fuzzy == chosen.Score.Fuzzy &&
				c.Segment == chosen.Segment {
				tied = append(tied, c.Marketplace)
			}
		}
		if len(tied) > 0 {
			ambiguities = append(ambiguities, Ambiguity{
				Supplier:     supplier,
				Chosen:       chosen.Marketplace,
				Alternatives: tied,
			})
		}
	}
	return assignment, ambiguities
}

func outranks(a, b Candidate) bool {
	if a.Score.Keyword != b.Score.Keyword {
		return a.Score.Keyword
	}
	if a.Score.Fuzzy != b.Score.Fuzzy {
		return a.Score.Fuzzy > b.Score.Fuzzy
	}
	if a.Segment != b.Segment {
		return a.Segment < b.Segment
	}
	return a.Order < b.Order
}

// Resolve joins each assignment to the marketplace category record with
// that name. Assignments naming an unknown category are left out.
func Resolve(assignment Assignment, categories []emag.Category) map[string]emag.Category {
	byName := make(map[string]emag.Category, len(categories))
	for _, c := range categories {
		if _, dup := byName[c.Name]; !dup {
			byName[c.Name] = c
		}
	}

	resolved := make(map[string]emag.Category, len(assignment))
	for supplier, name := range assignment {
		if c, ok := byName[name]; ok {
			resolved[supplier] = c
		}
	}
	return resolved
}

// Allowed keeps the categories whose name is in names, in input order.
func Allowed(categories []emag.Category, names []string) []emag.Category {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var out []emag.Category
	for _, c := range categories {
		if want[c.Name] {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the category names in order.
func Names(categories []emag.Category) []string {
	out := make([]string, len(categories))
	for i, c := range categories {
		out[i] = c.Name
	}
	return out
}

// SupplierCategories lists the distinct non-empty product categories in
// order of first appearance.
func SupplierCategories(products []fitness1.Product) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range products {
		if p.Category == "" || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		out = append(out, p.Category)
	}
	return out
}

// WithCategory keeps the products whose category resolved to a marketplace
// category.
func WithCategory(products []fitness1.Product, resolved map[string]emag.Category) []fitness1.Product {
	var out []fitness1.Product
	for _, p := range products {
		if _, ok := resolved[p.Category]; ok {
			out = append(out, p)
		}
	}
	return out
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}
