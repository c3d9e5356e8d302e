package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExcelExporter renders Dataset records into a single-sheet XLSX workbook.
type ExcelExporter struct{}

// NewExcelExporter builds an XLSX exporter.
func NewExcelExporter() *ExcelExporter {
	return &ExcelExporter{}
}

// Render produces XLSX encoded bytes for the dataset. The header row is
// bold with an auto-filter; column widths approximate the longest cell.
func (e *ExcelExporter) Render(data Dataset, sheet string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("xlsx requires at least one header")
	}
	if sheet == "" {
		sheet = "Sheet1"
	}

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	for col, header := range data.Headers {
		cell := fmt.Sprintf("%s1", columnName(col+1))
		if err := f.SetCellStr(sheet, cell, header); err != nil {
			return nil, fmt.Errorf("set cell %s: %w", cell, err)
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		end := fmt.Sprintf("%s1", columnName(len(data.Headers)))
		_ = f.SetCellStyle(sheet, "A1", end, style)
		_ = f.AutoFilter(sheet, "A1:"+end, nil)
	}

	widths := make([]int, len(data.Headers))
	for i, header := range data.Headers {
		widths[i] = len(header)
	}
	for r, row := range data.Rows {
		for c, header := range data.Headers {
			value := row[header]
			cell := fmt.Sprintf("%s%d", columnName(c+1), r+2)
			if err := f.SetCellStr(sheet, cell, value); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
			if len(value) > widths[c] {
				widths[c] = len(value)
			}
		}
	}
	for c, width := range widths {
		w := float64(width) * 0.9
		if w < 12 {
			w = 12
		}
		if w > 48 {
			w = 48
		}
		name := columnName(c + 1)
		_ = f.SetColWidth(sheet, name, name, w)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// columnName converts a 1-based column index to its A1 letter form.
func columnName(n int) string {
	name := ""
	for n > 0 {
		n--
		name = string(rune('A'+n%26)) + name
		n /= 26
	}
	return name
}
