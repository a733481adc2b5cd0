// Package extract converts spreadsheets, HTML tables and mail into the
// delimited text the import pipeline reads.
package extract

import (
	"bytes"
	"encoding/csv"
	"errors"

	"github.com/xuri/excelize/v2"

	"netcrm/internal/util"
)

var ErrNoRows = errors.New("no tabular rows found")

// WorkbookToCSV renders the sheet with the most non-empty rows as CSV.
func WorkbookToCSV(content []byte) ([]byte, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var best [][]string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		rows = normalizeRows(rows)
		if len(rows) > len(best) {
			best = rows
		}
	}
	if len(best) == 0 {
		return nil, ErrNoRows
	}
	return writeCSV(best)
}

func normalizeRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		empty := true
		for _, c := range row {
			c = util.NormalizeSpaces(c)
			if c != "" {
				empty = false
			}
			cells = append(cells, c)
		}
		if !empty {
			out = append(out, cells)
		}
	}
	return out
}

func writeCSV(rows [][]string) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	w := csv.NewWriter(buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
