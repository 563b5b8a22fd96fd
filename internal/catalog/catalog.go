package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
)

// DefaultVariant is the variant name used for items priced with a single number.
const DefaultVariant = "Default"

var (
	ErrCatalogNotFound  = errors.New("price list file not found")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrUnknownItem      = errors.New("unknown item")
	ErrUnknownVariant   = errors.New("unknown variant")
	ErrNoVariants       = errors.New("item does not support variants")
	ErrNegativePrice    = errors.New("price must be non-negative")
)

// Catalog holds the priced item tree loaded at startup. Categories map to
// either a nested subcategory map or an item map; item values are a single
// numeric price or a variant-name -> price map. The tree is immutable for
// the lifetime of the process.
type Catalog struct {
	categories map[string]any
}

// Load reads the catalog document from path.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrCatalogNotFound
		}
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes a catalog document from its JSON encoding.
func Parse(raw []byte) (*Catalog, error) {
	var doc struct {
		Categories map[string]any `json:"categories"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse price list: %w", err)
	}
	if doc.Categories == nil {
		return nil, fmt.Errorf("failed to parse price list: missing categories")
	}
	return &Catalog{categories: doc.Categories}, nil
}

// Categories returns the top-level category names, sorted.
func (c *Catalog) Categories() []string {
	names := make([]string, 0, len(c.categories))
	for name := range c.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// section resolves the item map for a category and optional subcategory.
func (c *Catalog) section(category, subcategory string) (map[string]any, error) {
	sec, ok := c.categories[category].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	if subcategory == "" {
		return sec, nil
	}
	sub, ok := sec[subcategory].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrUnknownCategory, subcategory, category)
	}
	return sub, nil
}

// Items returns the item names under a category (and optional subcategory), sorted.
func (c *Catalog) Items(category, subcategory string) ([]string, error) {
	sec, err := c.section(category, subcategory)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(sec))
	for name := range sec {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Variants returns the variant names for an item, or [DefaultVariant] when
// the item carries a single flat price.
func (c *Catalog) Variants(category, subcategory, item string) ([]string, error) {
	sec, err := c.section(category, subcategory)
	if err != nil {
		return nil, err
	}
	entry, ok := sec[item]
	if !ok {
		return nil, fmt.Errorf("%w: %q in %q", ErrUnknownItem, item, category)
	}
	variants, ok := entry.(map[string]any)
	if !ok {
		return []string{DefaultVariant}, nil
	}
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Price resolves the unit price for a catalog selection. Variant matching is
// case-insensitive; flat-priced items accept only the default variant.
func (c *Catalog) Price(category, subcategory, item, variant string) (int, error) {
	sec, err := c.section(category, subcategory)
	if err != nil {
		return 0, err
	}
	entry, ok := sec[item]
	if !ok {
		return 0, fmt.Errorf("%w: %q in %q", ErrUnknownItem, item, category)
	}
	if variant == "" {
		variant = DefaultVariant
	}

	switch v := entry.(type) {
	case float64:
		if !strings.EqualFold(variant, DefaultVariant) {
			return 0, fmt.Errorf("%w: %q", ErrNoVariants, item)
		}
		return toPrice(v, item)
	case map[string]any:
		for name, price := range v {
			if strings.EqualFold(name, variant) {
				p, ok := price.(float64)
				if !ok {
					return 0, fmt.Errorf("%w: %q for item %q", ErrUnknownVariant, variant, item)
				}
				return toPrice(p, item)
			}
		}
		return 0, fmt.Errorf("%w: %q for item %q", ErrUnknownVariant, variant, item)
	default:
		return 0, fmt.Errorf("%w: %q in %q", ErrUnknownItem, item, category)
	}
}

func toPrice(v float64, item string) (int, error) {
	if v < 0 {
		return 0, fmt.Errorf("%w: item %q", ErrNegativePrice, item)
	}
	return int(v), nil
}

// SellPrice is the payout for selling an item back to the trader: a third of
// the buy price, rounded to the nearest whole coin.
func SellPrice(base int) int {
	return int(math.Round(float64(base) / 3))
}
