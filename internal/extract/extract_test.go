package extract

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func mkXLSX(rows [][]any) []byte {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	buf := bytes.NewBuffer(nil)
	_, _ = f.WriteTo(buf)
	return buf.Bytes()
}

func TestWorkbookToCSV(t *testing.T) {
	blob := mkXLSX([][]any{
		{"First Name", "Last Name", "Email Address"},
		{"Ada", "Lovelace", "ada@example.com"},
		{},
		{"Alan", "Turing", "alan, the first@example.com"},
	})
	out, err := WorkbookToCSV(blob)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("len=%d out=%q", len(lines), out)
	}
	if lines[0] != "First Name,Last Name,Email Address" {
		t.Fatalf("header=%q", lines[0])
	}
	if !strings.Contains(lines[2], `"alan, the first@example.com"`) {
		t.Fatalf("row=%q", lines[2])
	}
}

func TestWorkbookToCSVEmpty(t *testing.T) {
	if _, err := WorkbookToCSV(mkXLSX(nil)); err != ErrNoRows {
		t.Fatalf("err=%v", err)
	}
	if _, err := WorkbookToCSV([]byte("not a workbook")); err == nil {
		t.Fatal("expected error")
	}
}

func TestTableToCSV(t *testing.T) {
	html := `<p>Team</p>
<table><tr><td>only one row</td></tr></table>
<table>
  <tr><th>Name</th><th>Email</th><th>Company</th></tr>
  <tr><td>Grace  Hopper</td><td>grace@navy.mil</td><td>US Navy</td></tr>
  <tr><td>Linus</td><td>linus@example.org</td><td></td></tr>
</table>`
	out, err := TableToCSV(html)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 3 {
		t.Fatalf("len=%d", len(lines))
	}
	if lines[1] != "Grace Hopper,grace@navy.mil,US Navy" {
		t.Fatalf("row=%q", lines[1])
	}
}

func TestTableToCSVNoTable(t *testing.T) {
	if _, err := TableToCSV("<p>hello</p>"); err != ErrNoRows {
		t.Fatalf("err=%v", err)
	}
}

const sampleMessage = "From: Ada Lovelace <Ada@Example.com>\r\n" +
	"To: me@example.net, \"Alan\" <alan@example.com>\r\n" +
	"Cc: ada@example.com\r\n" +
	"Subject: Contacts export\r\n" +
	"Date: Mon, 02 Mar 2026 10:15:00 +0100\r\n" +
	"Message-ID: <export-1@example.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Attached are my connections.\r\n" +
	"--b1\r\n" +
	"Content-Type: text/csv; name=\"Connections.csv\"\r\n" +
	"Content-Disposition: attachment; filename=\"Connections.csv\"\r\n" +
	"\r\n" +
	"First Name,Last Name,Email Address\r\n" +
	"Grace,Hopper,grace@navy.mil\r\n" +
	"--b1--\r\n"

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(sampleMessage))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Subject != "Contacts export" || msg.MessageID != "<export-1@example.com>" {
		t.Fatalf("subject=%q id=%q", msg.Subject, msg.MessageID)
	}
	if msg.Date.IsZero() || msg.Date.Hour() != 9 {
		t.Fatalf("date=%v", msg.Date)
	}
	if !strings.Contains(msg.Text, "connections") {
		t.Fatalf("text=%q", msg.Text)
	}

	got := msg.Participants()
	want := []string{"ada@example.com", "me@example.net", "alan@example.com"}
	if strings.Join(got, " ") != strings.Join(want, " ") {
		t.Fatalf("participants=%v", got)
	}

	if len(msg.Attachments) != 1 {
		t.Fatalf("attachments=%d", len(msg.Attachments))
	}
	att := msg.Attachments[0]
	if att.FileName != "Connections.csv" || att.Kind() != "csv" {
		t.Fatalf("attachment=%q kind=%q", att.FileName, att.Kind())
	}
	if !bytes.Contains(att.Content, []byte("grace@navy.mil")) {
		t.Fatalf("content=%q", att.Content)
	}
}

func TestAttachmentKind(t *testing.T) {
	cases := map[string]Attachment{
		"csv":  {FileName: "export.TSV"},
		"xlsx": {FileName: "book", ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		"html": {FileName: "table.htm"},
		"":     {FileName: "cv.pdf", ContentType: "application/pdf"},
	}
	for want, att := range cases {
		if got := att.Kind(); got != want {
			t.Fatalf("%s: got %q want %q", att.FileName, got, want)
		}
	}
}
