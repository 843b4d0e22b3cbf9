// Package report renders job results as spreadsheet files.
package report

import (
	"fmt"
	"slices"

	"github.com/xuri/excelize/v2"

	"github.com/docflow/docflow/internal/domain/model"
)

const sheetName = "Report"

// Filename is the default report file name inside a job's output directory.
const Filename = "report.xlsx"

// WriteXLSX writes the result rows to an xlsx workbook at path. Columns are
// the union of all row keys; "file" leads when present, the rest follow in
// sorted order so reruns produce identical layouts.
func WriteXLSX(path string, rows []model.ResultRow) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("preparing report sheet: %w", err)
	}

	columns := columnOrder(rows)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("addressing header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, col); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			return fmt.Errorf("styling header: %w", err)
		}
	}

	for r, row := range rows {
		for c, col := range columns {
			value, ok := row[col]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return fmt.Errorf("addressing cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				return fmt.Errorf("writing row %d: %w", r+1, err)
			}
		}
	}

	if len(columns) > 0 {
		last, err := excelize.ColumnNumberToName(len(columns))
		if err == nil {
			_ = f.SetColWidth(sheetName, "A", last, 18)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving report: %w", err)
	}

	return nil
}

func columnOrder(rows []model.ResultRow) []string {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for key := range row {
			if !seen[key] {
				seen[key] = true
				columns = append(columns, key)
			}
		}
	}

	slices.SortFunc(columns, func(a, b string) int {
		if a == b {
			return 0
		}
		if a == "file" {
			return -1
		}
		if b == "file" {
			return 1
		}
		if a < b {
			return -1
		}
		return 1
	})

	return columns
}
