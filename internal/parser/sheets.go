package parser

import (
	"fmt"
	"strings"

	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"

	"document-qa/internal/models"
)

const cellSeparator = " | "

// parseXLSX emits one table item per sheet, headed by the sheet name
func parseXLSX(filePath string) (*models.Document, error) {
	if err := validateWorkbook(filePath); err != nil {
		return nil, err
	}

	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}

	b := newDocBuilder()
	for i, sheet := range xlFile.Sheets {
		rows := make([][]string, 0, len(sheet.Rows))
		for _, row := range sheet.Rows {
			if row == nil {
				continue
			}
			cells := make([]string, 0, len(row.Cells))
			for _, cell := range row.Cells {
				cells = append(cells, cell.String())
			}
			rows = append(rows, cells)
		}
		addSheet(b, i+1, sheet.Name, rows)
	}
	return b.doc, nil
}

// validateWorkbook reads every sheet with excelize, which rejects cell references
// outside the sheet limits that tealeg would try to allocate.
func validateWorkbook(filePath string) error {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return fmt.Errorf("invalid xlsx: %w", err)
	}
	defer f.Close()

	for _, name := range f.GetSheetList() {
		dim, err := f.GetSheetDimension(name)
		if err != nil {
			return fmt.Errorf("invalid xlsx sheet %q: %w", name, err)
		}
		for _, ref := range strings.Split(dim, ":") {
			if ref == "" {
				continue
			}
			if _, _, err := excelize.CellNameToCoordinates(ref); err != nil {
				return fmt.Errorf("invalid xlsx sheet %q dimension: %w", name, err)
			}
		}

		rows, err := f.Rows(name)
		if err != nil {
			return fmt.Errorf("invalid xlsx sheet %q: %w", name, err)
		}
		n := 0
		for rows.Next() {
			if n++; n > excelize.TotalRows {
				rows.Close()
				return fmt.Errorf("invalid xlsx sheet %q: more than %d rows", name, excelize.TotalRows)
			}
			if _, err := rows.Columns(); err != nil {
				rows.Close()
				return fmt.Errorf("invalid xlsx sheet %q: %w", name, err)
			}
		}
		err = rows.Error()
		rows.Close()
		if err != nil {
			return fmt.Errorf("invalid xlsx sheet %q: %w", name, err)
		}
	}
	return nil
}

// parseWorkbook handles the macro and template variants tealeg cannot open
func parseWorkbook(filePath string) (*models.Document, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	b := newDocBuilder()
	for i, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", name, err)
		}
		addSheet(b, i+1, name, rows)
	}
	return b.doc, nil
}

func addSheet(b *docBuilder, page int, name string, rows [][]string) {
	b.outline.reset()
	b.outline.push(1, name)
	b.add(models.LabelTable, tableText(rows), page)
}

// tableText renders rows as pipe separated lines, skipping blank rows
func tableText(rows [][]string) string {
	var lines []string
	for _, row := range rows {
		end := len(row)
		for end > 0 && strings.TrimSpace(row[end-1]) == "" {
			end--
		}
		if end == 0 {
			continue
		}
		cells := make([]string, end)
		for i := 0; i < end; i++ {
			cells[i] = strings.TrimSpace(row[i])
		}
		lines = append(lines, strings.Join(cells, cellSeparator))
	}
	return strings.Join(lines, "\n")
}
