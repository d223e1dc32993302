package export

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"invoicesplit/internal/settlement"
)

const sheetName = "Split"

// WriteXLSX writes a single-sheet workbook with the same layout as the CSV.
// Prices are stored as numbers so the sheet can be summed.
func WriteXLSX(w io.Writer, s *settlement.Summary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}

	row := 1
	write := func(values []string, style int) error {
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			if col == 2 && v != "" && row > 1 {
				if n, ok := parseFloat(v); ok {
					if err := f.SetCellFloat(sheetName, cell, n, 2, 64); err != nil {
						return err
					}
					_ = f.SetCellStyle(sheetName, cell, cell, money)
					continue
				}
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return err
			}
		}
		if style != 0 {
			first, _ := excelize.CoordinatesToCellName(1, row)
			last, _ := excelize.CoordinatesToCellName(2, row)
			_ = f.SetCellStyle(sheetName, first, last, style)
		}
		row++
		return nil
	}

	if err := write(columns, bold); err != nil {
		return err
	}
	for _, r := range itemRows(s) {
		if err := write(r, 0); err != nil {
			return err
		}
	}
	row++
	for _, r := range footerRows(s) {
		if err := write(r, bold); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 6)
	_ = f.SetColWidth(sheetName, "B", "B", 40)
	_ = f.SetColWidth(sheetName, "C", "C", 12)
	_ = f.SetColWidth(sheetName, "D", "D", 36)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}
