package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/naka-gawa/repo-quality/internal/domain"
)

const (
	excelSheetName = "Repository Analysis"
	maxColumnWidth = 50
)

// WriteExcel writes the records as an XLSX workbook with a styled
// auto-filter table and fitted column widths.
func WriteExcel(records []*domain.RepositoryRecord, filename string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", excelSheetName); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	if err := f.SetSheetRow(excelSheetName, "A1", &csvHeader); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	widths := make([]int, len(csvHeader))
	for i, h := range csvHeader {
		widths[i] = len(h)
	}
	for i, rec := range records {
		row := csvRow(rec)
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
			if len(v) > widths[j] {
				widths[j] = len(v)
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to compute cell name: %w", err)
		}
		if err := f.SetSheetRow(excelSheetName, cell, &cells); err != nil {
			return fmt.Errorf("failed to write row for %s: %w", rec.Name, err)
		}
	}

	lastCell, err := excelize.CoordinatesToCellName(len(csvHeader), len(records)+1)
	if err != nil {
		return fmt.Errorf("failed to compute table range: %w", err)
	}
	showStripes := true
	if err := f.AddTable(excelSheetName, &excelize.Table{
		Range:          "A1:" + lastCell,
		Name:           "RepoTable",
		StyleName:      "TableStyleMedium9",
		ShowRowStripes: &showStripes,
	}); err != nil {
		return fmt.Errorf("failed to add table: %w", err)
	}

	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("failed to compute column name: %w", err)
		}
		w := width + 2
		if w > maxColumnWidth {
			w = maxColumnWidth
		}
		if err := f.SetColWidth(excelSheetName, col, col, float64(w)); err != nil {
			return fmt.Errorf("failed to set width of column %s: %w", col, err)
		}
	}

	if err := f.SaveAs(filename); err != nil {
		return fmt.Errorf("failed to save %s: %w", filename, err)
	}
	return nil
}
