package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"netcrm/internal/util"
)

// TableToCSV renders the largest HTML table with at least a header and one
// data row as CSV.
func TableToCSV(html string) ([]byte, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var best [][]string
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}

		out := [][]string{}
		rows.Each(func(_ int, row *goquery.Selection) {
			cells := []string{}
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, util.NormalizeSpaces(cell.Text()))
			})
			if len(cells) > 0 {
				out = append(out, cells)
			}
		})
		if len(out) > len(best) {
			best = out
		}
	})

	best = normalizeRows(best)
	if len(best) < 2 {
		return nil, ErrNoRows
	}
	return writeCSV(best)
}
