package spreadsheet

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
	"k8s.io/klog"
)

// Column is the exact header text of a column the importer understands.
type Column string

const (
	ColumnDate           Column = "תאריך עסקה"
	ColumnMerchant       Column = "שם בית העסק"
	ColumnCategory       Column = "קטגוריה"
	ColumnBilledAmount   Column = "סכום חיוב"
	ColumnOriginalAmount Column = "סכום עסקה מקורי"
)

// Columns lists every recognised header in layout order.
var Columns = []Column{ColumnDate, ColumnMerchant, ColumnCategory, ColumnBilledAmount, ColumnOriginalAmount}

// headerRow is the zero based index of the header row. The card issuer puts
// three rows of account banner above it.
const headerRow = 3

// RawRow is one data row keyed by recognised header. Columns missing from the
// sheet are absent from Cells, blank cells are present as "".
type RawRow struct {
	Sheet string
	Row   int
	Cells map[Column]string
}

// Get returns the cell for column c or "" when the column is absent.
func (r RawRow) Get(c Column) string {
	return r.Cells[c]
}

// Has reports whether the sheet the row came from had column c.
func (r RawRow) Has(c Column) bool {
	_, ok := r.Cells[c]
	return ok
}

// Extract reads every sheet of the workbook at path, in workbook order.
func Extract(path string) ([]RawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer f.Close()

	return extract(f)
}

// ExtractReader is Extract for a workbook held in memory.
func ExtractReader(r io.Reader) ([]RawRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}
	defer f.Close()

	return extract(f)
}

func extract(f *excelize.File) ([]RawRow, error) {
	rows := []RawRow{}

	for _, sheet := range f.GetSheetList() {
		// raw values keep serial dates numeric instead of applying the cell format
		sheetRows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
		}

		extracted := extractSheet(sheet, sheetRows)
		klog.V(2).Infof("Read %d rows from sheet %s\n", len(extracted), sheet)
		rows = append(rows, extracted...)
	}

	return rows, nil
}

func extractSheet(sheet string, sheetRows [][]string) []RawRow {
	if len(sheetRows) <= headerRow {
		return nil
	}

	headerMap := generateHeaderMap(sheetRows[headerRow])
	if len(headerMap) == 0 {
		klog.Warningf("Sheet %s has no recognised headers on row %d\n", sheet, headerRow+1)
		return nil
	}

	rows := []RawRow{}
	for i := headerRow + 1; i < len(sheetRows); i++ {
		cells := make(map[Column]string, len(headerMap))
		for column, index := range headerMap {
			cells[column] = getCell(sheetRows[i], index)
		}

		row := RawRow{Sheet: sheet, Row: i + 1, Cells: cells}
		if skipRow(row) {
			continue
		}

		rows = append(rows, row)
	}

	return rows
}

// generateHeaderMap maps each recognised header to its column index. The first
// occurrence of a duplicated header wins.
func generateHeaderMap(headers []string) map[Column]int {
	headerMap := map[Column]int{}

	for i, header := range headers {
		for _, column := range Columns {
			if header != string(column) {
				continue
			}
			if _, ok := headerMap[column]; !ok {
				headerMap[column] = i
			}
		}
	}

	return headerMap
}

func getCell(row []string, index int) string {
	if index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}

// skipRow drops footer and spacer rows: those with neither date nor merchant,
// or with neither amount.
func skipRow(row RawRow) bool {
	if row.Get(ColumnDate) == "" && row.Get(ColumnMerchant) == "" {
		return true
	}

	return row.Get(ColumnBilledAmount) == "" && row.Get(ColumnOriginalAmount) == ""
}
