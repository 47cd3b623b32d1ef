package pricefeed

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// amountRegex matches a run of digits joined by separators, e.g. "22.50",
// "1,299.00", "1.299,00" or "1 299,00". Whitespace only joins three-digit
// groups.
var amountRegex = regexp.MustCompile(`\d+(?:[.,]\d+|[ \x{00A0}]\d{3}\b)*`)

// priceAttributes are checked before the element text
var priceAttributes = []string{"content", "data-price", "value"}

// ExtractPrice finds the first element matching selector and parses its
// price. It returns nil when no element matches or it carries no amount.
func ExtractPrice(html, selector string) (*float64, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, nil
	}

	for _, attr := range priceAttributes {
		if v, ok := sel.Attr(attr); ok {
			if price, ok := ParsePrice(v); ok {
				return &price, nil
			}
		}
	}

	if price, ok := ParsePrice(sel.Text()); ok {
		return &price, nil
	}
	return nil, nil
}

// ParsePrice reads the first amount in text. The last "." or "," is the
// decimal mark when it appears once and is followed by one or two digits.
// Other separators must split the integer part into three-digit groups.
// A single "," followed by three digits is a thousands separator, while a
// single "." followed by three digits is ambiguous and rejected, as is any
// amount with more than two fractional digits.
func ParsePrice(text string) (float64, bool) {
	match := amountRegex.FindString(text)
	if match == "" {
		return 0, false
	}

	normalized, ok := normalizeAmount(strings.ReplaceAll(match, "\u00a0", " "))
	if !ok {
		return 0, false
	}

	price, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// normalizeAmount rewrites a matched amount as a plain decimal number
func normalizeAmount(amount string) (string, bool) {
	idx := strings.LastIndexAny(amount, ".,")
	if idx < 0 {
		return joinGroups(amount, "")
	}

	mark := amount[idx]
	fraction := amount[idx+1:]
	intPart := amount[:idx]
	repeated := strings.IndexByte(intPart, mark) >= 0
	mixed := strings.ContainsAny(intPart, ".,")

	switch {
	case repeated:
		// "1,299,000" or "1.299.000": every separator groups thousands
		return joinGroups(amount, "")
	case len(fraction) <= 2:
		return joinGroups(intPart, fraction)
	case len(fraction) == 3 && mark == ',' && !mixed:
		return joinGroups(amount, "")
	default:
		return "", false
	}
}

// joinGroups strips thousands separators from intPart after checking that
// they are consistent and split it into three-digit groups
func joinGroups(intPart, fraction string) (string, bool) {
	groups := strings.FieldsFunc(intPart, func(r rune) bool {
		return r == '.' || r == ',' || r == ' '
	})
	if len(groups) == 0 {
		return "", false
	}

	var sep rune
	for _, r := range intPart {
		if r >= '0' && r <= '9' {
			continue
		}
		if sep != 0 && r != sep {
			return "", false
		}
		sep = r
	}

	if len(groups) > 1 {
		if len(groups[0]) > 3 {
			return "", false
		}
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return "", false
			}
		}
	}

	number := strings.Join(groups, "")
	if fraction != "" {
		number += "." + fraction
	}
	return number, true
}
