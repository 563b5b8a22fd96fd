package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/example/trader-bot/internal/catalog"
	"github.com/example/trader-bot/internal/session"
)

// ErrBadOrderLine wraps any per-line failure in a pasted bulk order.
var ErrBadOrderLine = errors.New("invalid order line")

// ParseOrderText parses a pasted order, one "Category:Item:Variant xN" line
// per item, pricing each against the catalog (sell pricing for sell
// sessions). The first bad line fails the whole text with its line number.
func ParseOrderText(cat *catalog.Catalog, text string, kind session.Kind) ([]session.Line, int, error) {
	var lines []session.Line
	total := 0
	lineNum := 0

	for _, raw := range strings.Split(strings.TrimSpace(text), "\n") {
		lineNum++
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		line, err := parseOrderLine(cat, raw, kind)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: error on line %d (%q): %v", ErrBadOrderLine, lineNum, raw, err)
		}
		lines = append(lines, line)
		total += line.Subtotal
	}
	return lines, total, nil
}

func parseOrderLine(cat *catalog.Catalog, raw string, kind session.Kind) (session.Line, error) {
	idx := strings.LastIndex(raw, " x")
	if idx < 0 {
		return session.Line{}, errors.New("missing 'x' quantity format")
	}
	left, quantityStr := raw[:idx], strings.TrimSpace(raw[idx+2:])

	parts := strings.Split(left, ":")
	if len(parts) != 3 {
		return session.Line{}, errors.New("expected Category:Item:Variant")
	}
	category := strings.TrimSpace(parts[0])
	item := strings.TrimSpace(parts[1])
	variant := strings.TrimSpace(parts[2])

	quantity, err := strconv.Atoi(quantityStr)
	if err != nil || quantity <= 0 {
		return session.Line{}, errors.New("invalid quantity")
	}

	unit, err := cat.Price(category, "", item, variant)
	if err != nil {
		return session.Line{}, err
	}
	if kind == session.KindSell {
		unit = catalog.SellPrice(unit)
	}

	return session.Line{
		Category:  category,
		Item:      item,
		Variant:   variant,
		Quantity:  quantity,
		UnitPrice: unit,
		Subtotal:  unit * quantity,
	}, nil
}
