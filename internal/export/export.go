// Package export renders a split summary as CSV or an Excel workbook.
package export

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"invoicesplit/internal/domain"
	"invoicesplit/internal/settlement"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" and "xlsx" in any case, defaulting to CSV when empty.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Render writes summary to w in format f.
func Render(w io.Writer, f Format, summary *settlement.Summary) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, summary)
	case FormatXLSX:
		return WriteXLSX(w, summary)
	default:
		return fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, f)
	}
}

// columns is the item table header shared by both formats.
var columns = []string{"#", "Item", "Price", "Assigned To"}

// itemRows returns one row per line item followed by the totals footer.
func itemRows(s *settlement.Summary) [][]string {
	rows := make([][]string, 0, len(s.Items)+5)
	for _, item := range s.Items {
		owner := ""
		if item.Owner != "" {
			owner = s.Names.Of(item.Owner)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", item.Index+1),
			item.Name,
			item.Price.StringFixed(2),
			owner,
		})
	}
	return rows
}

func footerRows(s *settlement.Summary) [][]string {
	return [][]string{
		{"", "Total " + s.Names.A, s.Totals.A.StringFixed(2), ""},
		{"", "Total " + s.Names.B, s.Totals.B.StringFixed(2), ""},
		{"", "Unassigned", s.Totals.Unassigned.StringFixed(2), ""},
		{"", "Settlement", s.Settlement.Amount.StringFixed(2), s.Message},
	}
}

// nonAlphanumeric matches characters that are not alphanumeric, hyphen, or underscore.
var nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// multiUnderscore matches consecutive underscores.
var multiUnderscore = regexp.MustCompile(`_{2,}`)

// SanitizeFilename replaces characters other than letters, digits, - and _
// with _, collapses repeats and truncates to 100 chars.
func SanitizeFilename(name string) string {
	s := nonAlphanumeric.ReplaceAllString(name, "_")
	s = multiUnderscore.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// BuildFilename returns split_{invoice id}_{YYYY-MM-DD}.{ext}. The invoice id
// part is omitted when it is unavailable or sanitizes to nothing.
func BuildFilename(invoiceID string, f Format) string {
	date := time.Now().Format("2006-01-02")
	id := ""
	if invoiceID != domain.NotAvailable {
		id = SanitizeFilename(invoiceID)
	}
	if id == "" {
		return fmt.Sprintf("split_%s.%s", date, f)
	}
	return fmt.Sprintf("split_%s_%s.%s", id, date, f)
}
