package export

import (
	"encoding/csv"
	"io"

	"invoicesplit/internal/settlement"
)

// BOM is the UTF-8 byte order mark Excel needs to detect the encoding.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes a BOM, the header, one row per item, a blank row and the totals footer.
func WriteCSV(w io.Writer, s *settlement.Summary) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	if err := cw.WriteAll(itemRows(s)); err != nil {
		return err
	}
	if err := cw.Write(make([]string, len(columns))); err != nil {
		return err
	}
	// WriteAll flushes.
	return cw.WriteAll(footerRows(s))
}
