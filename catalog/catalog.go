// Package catalog reads the product listing out of inventory page markup.
package catalog

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// Selectors used by the inventory page.
const (
	ItemSelector  = ".inventory_item"
	NameSelector  = ".inventory_item_name"
	PriceSelector = ".inventory_item_price"
	DescSelector  = ".inventory_item_desc"
)

var (
	itemMatcher  = cascadia.MustCompile(ItemSelector)
	nameMatcher  = cascadia.MustCompile(NameSelector)
	priceMatcher = cascadia.MustCompile(PriceSelector)
	descMatcher  = cascadia.MustCompile(DescSelector)
)

// Product is one inventory entry.
type Product struct {
	Name        string
	Price       string
	Description string
}

// Parse extracts every inventory entry from r, in document order. Entries
// without a name are skipped.
func Parse(r io.Reader) ([]Product, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse inventory markup: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)
	var products []Product
	doc.FindMatcher(itemMatcher).Each(func(_ int, s *goquery.Selection) {
		p := Product{
			Name:        collapse(s.FindMatcher(nameMatcher).First().Text()),
			Price:       collapse(s.FindMatcher(priceMatcher).First().Text()),
			Description: collapse(s.FindMatcher(descMatcher).First().Text()),
		}
		if p.Name != "" {
			products = append(products, p)
		}
	})
	return products, nil
}

// ParseString is Parse over a string.
func ParseString(markup string) ([]Product, error) {
	return Parse(strings.NewReader(markup))
}

// Names lists product names in order.
func Names(products []Product) []string {
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	return names
}

// Find returns the first product whose name contains item. Matching is
// case-sensitive.
func Find(products []Product, item string) (Product, bool) {
	for _, p := range products {
		if strings.Contains(p.Name, item) {
			return p, true
		}
	}
	return Product{}, false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
