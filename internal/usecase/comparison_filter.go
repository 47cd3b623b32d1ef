package usecase

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pricelens/backend/internal/domain"
)

// Compiled regex patterns for search normalization
var (
	nonAlphanumericRegex = regexp.MustCompile(`[^a-z0-9\s]`)
	multipleSpacesRegex  = regexp.MustCompile(`\s+`)
)

// SortField selects the comparison ordering
type SortField string

const (
	SortByName     SortField = "name"
	SortByCategory SortField = "category"
	SortByPrice    SortField = "price"
	SortBySavings  SortField = "savings"
)

// SortDirection is ascending or descending
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// ComparisonQuery narrows and orders the comparison table
type ComparisonQuery struct {
	Categories []domain.Category
	Search     string
	MinPrice   *float64
	MaxPrice   *float64
	Sort       SortField
	Direction  SortDirection
}

// Validate checks the sort options
func (q ComparisonQuery) Validate() error {
	switch q.Sort {
	case "", SortByName, SortByCategory, SortByPrice, SortBySavings:
	default:
		return fmt.Errorf("%w: unknown sort field %q", domain.ErrInvalidRequest, q.Sort)
	}
	switch q.Direction {
	case "", SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: unknown sort direction %q", domain.ErrInvalidRequest, q.Direction)
	}
	if q.MinPrice != nil && q.MaxPrice != nil && *q.MinPrice > *q.MaxPrice {
		return fmt.Errorf("%w: min_price exceeds max_price", domain.ErrInvalidRequest)
	}
	return nil
}

// ApplyQuery filters then sorts comparisons. The input slice is not reordered.
func ApplyQuery(items []domain.Comparison, q ComparisonQuery) []domain.Comparison {
	out := FilterComparisons(items, q)
	if q.Sort != "" {
		SortComparisons(out, q.Sort, q.Direction)
	}
	return out
}

// FilterComparisons keeps the comparisons matching every set criterion.
// A price range only matches products that have a best price.
func FilterComparisons(items []domain.Comparison, q ComparisonQuery) []domain.Comparison {
	terms := strings.Fields(NormalizeSearch(q.Search))

	out := make([]domain.Comparison, 0, len(items))
	for _, item := range items {
		if !matchesCategory(item.Product.Category, q.Categories) {
			continue
		}
		if !matchesTerms(item.Product, terms) {
			continue
		}
		if q.MinPrice != nil || q.MaxPrice != nil {
			if item.Best == nil {
				continue
			}
			if q.MinPrice != nil && item.Best.Price < *q.MinPrice {
				continue
			}
			if q.MaxPrice != nil && item.Best.Price > *q.MaxPrice {
				continue
			}
		}
		out = append(out, item)
	}
	return out
}

// SortComparisons orders items in place. Products without a best price
// always sort after priced ones when ordering by price.
func SortComparisons(items []domain.Comparison, field SortField, dir SortDirection) {
	desc := dir == SortDesc

	less := func(a, b domain.Comparison) bool {
		switch field {
		case SortByCategory:
			return strings.ToLower(string(a.Product.Category)) < strings.ToLower(string(b.Product.Category))
		case SortByPrice:
			return a.Best.Price < b.Best.Price
		case SortBySavings:
			return a.SavingsPercent < b.SavingsPercent
		default:
			return strings.ToLower(a.Product.Name) < strings.ToLower(b.Product.Name)
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if field == SortByPrice && (a.Best == nil || b.Best == nil) {
			return a.Best != nil && b.Best == nil
		}
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
}

// NormalizeSearch lowercases, strips punctuation and collapses whitespace
func NormalizeSearch(s string) string {
	if s == "" {
		return ""
	}
	result := strings.ToLower(s)
	result = nonAlphanumericRegex.ReplaceAllString(result, " ")
	result = multipleSpacesRegex.ReplaceAllString(result, " ")
	return strings.TrimSpace(result)
}

func matchesCategory(category domain.Category, want []domain.Category) bool {
	if len(want) == 0 {
		return true
	}
	for _, c := range want {
		if strings.EqualFold(string(c), string(category)) {
			return true
		}
	}
	return false
}

func matchesTerms(product domain.Product, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	text := NormalizeSearch(product.SearchText())
	for _, term := range terms {
		if !strings.Contains(text, term) {
			return false
		}
	}
	return true
}
