package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"invoicesplit/internal/domain"
)

// DecodeInvoice repairs and decodes a raw model response. Missing header
// fields become "N/A" and missing line items an empty list. Any decode or
// shape failure is returned as a *domain.MalformedResponseError carrying raw.
// The returned warnings describe defaults applied and unusual values.
func DecodeInvoice(raw string) (*domain.Invoice, []string, error) {
	cleaned := StripFence(raw)

	doc, err := decodeJSON(cleaned)
	if err != nil {
		return nil, nil, domain.NewMalformedResponseError(raw, err)
	}
	if err := ValidateInvoiceShape(doc); err != nil {
		return nil, nil, domain.NewMalformedResponseError(raw, err)
	}
	obj, _ := doc.(map[string]interface{})

	var warnings []string
	inv := &domain.Invoice{
		InvoiceID: scalarOrDefault(obj["invoice_id"]),
		Date:      scalarOrDefault(obj["date"]),
		LineItems: []domain.LineItem{},
	}

	items, _ := obj["line_items"].([]interface{})
	for i, entry := range items {
		fields, _ := entry.(map[string]interface{})
		item := domain.LineItem{
			Name:       scalarOrDefault(fields["item_name"]),
			TotalPrice: decimal.Zero,
		}
		price, ok, err := decodePrice(fields["total_price"])
		if err != nil {
			return nil, nil, domain.NewMalformedResponseError(raw, fmt.Errorf("line_items[%d].total_price: %w", i, err))
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("line item %d (%s) has no price; using 0", i+1, item.Name))
		} else {
			item.TotalPrice = price
		}
		if item.TotalPrice.IsNegative() {
			warnings = append(warnings, fmt.Sprintf("line item %d (%s) has a negative price %s", i+1, item.Name, item.TotalPrice.String()))
		}
		inv.LineItems = append(inv.LineItems, item)
	}

	return inv, warnings, nil
}

func decodeJSON(s string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON value")
	}
	return v, nil
}

func scalarOrDefault(v interface{}) string {
	var s string
	switch val := v.(type) {
	case string:
		s = strings.TrimSpace(val)
	case json.Number:
		s = val.String()
	}
	if s == "" {
		return domain.NotAvailable
	}
	return s
}

// decodePrice accepts JSON numbers and numeric strings such as "1,234.50 €"
// or "1.234,50 €". Strings whose separators cannot be read unambiguously are
// rejected.
func decodePrice(v interface{}) (decimal.Decimal, bool, error) {
	switch val := v.(type) {
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil, err
	case string:
		cleaned := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' || r == '.' || r == ',' || r == '-' {
				return r
			}
			return -1
		}, val)
		if cleaned == "" {
			return decimal.Zero, false, nil
		}
		normalized, err := normalizeSeparators(cleaned)
		if err != nil {
			return decimal.Zero, false, fmt.Errorf("%q: %w", val, err)
		}
		d, err := decimal.NewFromString(normalized)
		if err != nil {
			return decimal.Zero, false, err
		}
		return d, true, nil
	default:
		return decimal.Zero, false, nil
	}
}

// normalizeSeparators rewrites a price to use "." as the decimal point and no
// grouping. When both separators appear, the last one is the decimal point.
// A lone comma is a decimal comma unless exactly three digits follow it, which
// could be either reading.
func normalizeSeparators(s string) (string, error) {
	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		decimalSep, groupSep := ".", ","
		if lastComma > lastDot {
			decimalSep, groupSep = ",", "."
		}
		intPart, frac := splitLast(s, decimalSep)
		if strings.Contains(frac, groupSep) || !validGroups(intPart, groupSep) {
			return "", errors.New("inconsistent digit grouping")
		}
		return strings.ReplaceAll(intPart, groupSep, "") + "." + frac, nil
	case lastComma >= 0:
		return singleSeparator(s, ",")
	case lastDot >= 0:
		if strings.Count(s, ".") == 1 {
			return s, nil
		}
		return singleSeparator(s, ".")
	default:
		return s, nil
	}
}

// singleSeparator handles a price that uses only sep.
func singleSeparator(s, sep string) (string, error) {
	if strings.Count(s, sep) > 1 {
		if !validGroups(s, sep) {
			return "", errors.New("inconsistent digit grouping")
		}
		return strings.ReplaceAll(s, sep, ""), nil
	}
	intPart, frac := splitLast(s, sep)
	if len(frac) == 3 {
		return "", fmt.Errorf("ambiguous separator %q", sep)
	}
	return intPart + "." + frac, nil
}

func splitLast(s, sep string) (string, string) {
	i := strings.LastIndex(s, sep)
	return s[:i], s[i+len(sep):]
}

// validGroups reports whether every group after the first has three digits.
func validGroups(s, sep string) bool {
	groups := strings.Split(s, sep)
	for _, g := range groups[1:] {
		if len(g) != 3 {
			return false
		}
	}
	return strings.TrimPrefix(groups[0], "-") != "" || len(groups) == 1
}

// looksLikeJSON is used for log hints only.
func looksLikeJSON(s string) bool {
	return bytes.HasPrefix(bytes.TrimSpace([]byte(StripFence(s))), []byte("{"))
}
