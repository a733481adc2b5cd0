package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"netcrm/internal"
	"netcrm/internal/util"
)

// ExportContactsToXLSX writes contacts to a single-sheet workbook, one row per
// contact under a frozen header row.
func ExportContactsToXLSX(contacts []internal.Contact, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	headers := []string{
		"name", "email", "phone", "company", "title", "profile_url",
		"relationship_strength", "connected_on", "added_at", "last_contact_at", "tags", "notes",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, c := range contacts {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, c.Name)
		set(2, util.Deref(c.Email))
		set(3, util.Deref(c.Phone))
		set(4, util.Deref(c.Company))
		set(5, util.Deref(c.Title))
		set(6, util.Deref(c.ProfileURL))
		set(7, string(c.RelationshipStrength))
		set(8, formatDate(c.ConnectedOn))
		set(9, c.AddedAt.Format("2006-01-02"))
		set(10, formatDate(c.LastContactAt))
		set(11, strings.Join(c.Tags, ", "))
		set(12, c.Notes)
	}

	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
