package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"netcrm/internal"
)

const linkedInExport = linkedInBanner +
	"First Name,Last Name,URL,Email Address,Company,Position,Connected On\n" +
	"Ada,Lovelace,https://www.linkedin.com/in/ada,ada@engines.io,Analytical Engines,Programmer,05 Mar 2024\n" +
	"Alan,Turing,https://www.linkedin.com/in/alan-turing,,Bletchley Park,\"Cryptanalyst, Hut 8\",12 Feb 2023\n" +
	"\n" +
	"Grace,Hopper,https://linkedin.com/in/grace/,grace@navy.mil,US Navy,Rear Admiral,01 Jan 2022\n"

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestRunLinkedInExport(t *testing.T) {
	out, err := Run(context.Background(), []byte(linkedInExport), Options{Now: fixedClock(importTime)})
	if err != nil {
		t.Fatal(err)
	}
	if out.HeaderIndex != 3 || out.Delimiter != "," || out.Encoding != "utf-8" {
		t.Fatalf("header=%d delim=%q enc=%q", out.HeaderIndex, out.Delimiter, out.Encoding)
	}
	if out.TotalRows != 3 || len(out.Contacts) != 3 {
		t.Fatalf("rows=%d contacts=%d diags=%v", out.TotalRows, len(out.Contacts), out.Messages(0))
	}
	if out.ErrorCount() != 0 || out.TimedOut {
		t.Fatalf("diags=%v", out.Messages(0))
	}

	alan := out.Contacts[1]
	if alan.Title == nil || *alan.Title != "Cryptanalyst, Hut 8" {
		t.Fatalf("title=%v", alan.Title)
	}
	if alan.Email != nil || !strings.Contains(alan.Notes, missingEmailNote) {
		t.Fatalf("alan=%+v", alan)
	}
	if got := *out.Contacts[2].ProfileURL; got != "https://linkedin.com/in/grace" {
		t.Fatalf("url=%q", got)
	}
}

func TestRunSemicolonLatin1(t *testing.T) {
	raw := []byte("Vorname;Nachname;E-Mail;Firma\nJos\xe9;M\xfcller;jose@firma.de;Caf\xe9 GmbH\n")
	n := NewFieldNormalizer(map[string][]string{
		FieldFirstName: {"vorname"},
		FieldLastName:  {"nachname"},
		FieldCompany:   {"firma"},
	})
	out, err := Run(context.Background(), raw, Options{Normalizer: n})
	if err != nil {
		t.Fatal(err)
	}
	if out.Encoding != "latin-1" || out.Delimiter != ";" {
		t.Fatalf("enc=%q delim=%q", out.Encoding, out.Delimiter)
	}
	if len(out.Contacts) != 1 || out.Contacts[0].Name != "José Müller" {
		t.Fatalf("contacts=%v", out.Contacts)
	}
	if *out.Contacts[0].Company != "Café GmbH" {
		t.Fatalf("company=%q", *out.Contacts[0].Company)
	}
}

func TestRunDuplicatesCollapse(t *testing.T) {
	raw := "Name,Email,URL\n" +
		"Ada,ada@x.com,https://linkedin.com/in/ada\n" +
		"Ada L,ADA@X.COM,\n" +
		"Ada Again,,https://www.linkedin.com/in/ada/\n" +
		"Bob,bob@x.com,\n"
	out, err := Run(context.Background(), []byte(raw), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Contacts) != 2 {
		t.Fatalf("len=%d", len(out.Contacts))
	}
	dupes := 0
	for _, m := range out.Messages(0) {
		if strings.HasPrefix(m, "Duplicate: ") {
			dupes++
		}
	}
	if dupes != 2 {
		t.Fatalf("dupes=%d %v", dupes, out.Messages(0))
	}
}

func TestDeduplicate(t *testing.T) {
	strp := func(v string) *string { return &v }
	contacts := []internal.Contact{
		{Name: "A", Email: strp("a@x.com"), ProfileURL: strp("https://linkedin.com/in/u1")},
		{Name: "B", Email: strp("b@x.com"), ProfileURL: strp("https://linkedin.com/in/u1")},
		{Name: "C", Email: strp("b@x.com"), ProfileURL: strp("https://linkedin.com/in/u3")},
		{Name: "D"},
		{Name: "E"},
	}
	out, diags := Deduplicate(contacts)
	names := []string{}
	for _, c := range out {
		names = append(names, c.Name)
	}
	if strings.Join(names, ",") != "A,C,D,E" {
		t.Fatalf("names=%v", names)
	}
	if len(diags) != 1 || diags[0].Message != "Duplicate: https://linkedin.com/in/u1" {
		t.Fatalf("diags=%v", diags)
	}

	again, diags := Deduplicate(out)
	if len(again) != len(out) || len(diags) != 0 {
		t.Fatalf("not idempotent: %d %v", len(again), diags)
	}
}

func TestRunTimeoutKeepsPartialResult(t *testing.T) {
	var b strings.Builder
	b.WriteString("First Name,Last Name,Email\n")
	for i := 1; i <= 5; i++ {
		fmt.Fprintf(&b, "P%d,Person,p%d@x.com\n", i, i)
	}

	now := importTime
	clock := func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	out, err := Run(context.Background(), []byte(b.String()), Options{ChunkSize: 2, Timeout: 30 * time.Second, Now: clock})
	if err != nil {
		t.Fatal(err)
	}
	if !out.TimedOut || len(out.Contacts) != 2 || out.TotalRows != 5 {
		t.Fatalf("timedOut=%v contacts=%d rows=%d", out.TimedOut, len(out.Contacts), out.TotalRows)
	}
	want := "Processing timed out after 30 seconds. Processed 2 of 5 rows (2 contacts)."
	if !strings.Contains(strings.Join(out.Messages(0), "\n"), want) {
		t.Fatalf("messages=%v", out.Messages(0))
	}
}

func TestRunProgress(t *testing.T) {
	raw := "Name,Email\nA,a@x.com\nB,b@x.com\nC,c@x.com\n"
	var messages []string
	var last float64
	progress := func(msg string, pct float64) {
		messages = append(messages, msg)
		if pct < last || pct > 100 {
			t.Fatalf("pct=%v after %v", pct, last)
		}
		last = pct
	}
	_, err := Run(context.Background(), []byte(raw), Options{ChunkSize: 2, YieldEvery: 1, Progress: progress})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"Processing row 1...",
		"Processing row 2...",
		"Processed 2 rows...",
		"Processing row 3...",
		"Processed 3 rows...",
		"Processing complete: 3 rows processed",
	}
	if strings.Join(messages, "|") != strings.Join(want, "|") {
		t.Fatalf("messages=%q", messages)
	}
	if last != 100 {
		t.Fatalf("last=%v", last)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	raw := "Name,Email\nA,a@x.com\nB,b@x.com\nC,c@x.com\n"
	out, err := Run(ctx, []byte(raw), Options{ChunkSize: 1})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
	if len(out.Contacts) != 1 {
		t.Fatalf("contacts=%d", len(out.Contacts))
	}
}

func TestRunFailures(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    error
		message string
	}{
		{name: "empty", raw: "", want: ErrEmptyInput, message: "Empty CSV file"},
		{name: "numbers", raw: "PK\x03\x04Index/Tables/DataList.iwa", want: ErrUnsupportedFormat, message: numbersMessage},
		{name: "excel", raw: "\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1", want: ErrUnsupportedFormat, message: excelMessage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Run(context.Background(), []byte(tc.raw), Options{})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v", err)
			}
			if len(out.Contacts) != 0 || out.HeaderIndex != -1 {
				t.Fatalf("outcome=%+v", out)
			}
			if msgs := out.Messages(0); len(msgs) != 1 || msgs[0] != tc.message {
				t.Fatalf("messages=%v", msgs)
			}
		})
	}
}

func TestRunNoValidContacts(t *testing.T) {
	out, err := Run(context.Background(), []byte("First Name,Last Name,URL\n,,\nnull,N/A,none\n"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Contacts) != 0 || out.TotalRows != 2 {
		t.Fatalf("contacts=%d rows=%d", len(out.Contacts), out.TotalRows)
	}
	msgs := out.Messages(0)
	if msgs[len(msgs)-1] != "No valid contacts found. Detected headers: First Name, Last Name, URL" {
		t.Fatalf("messages=%v", msgs)
	}
	if out.ErrorCount() != 1 {
		t.Fatalf("errors=%d", out.ErrorCount())
	}
}

func TestRunCleanRoundTrip(t *testing.T) {
	strp := func(v string) *string { return &v }
	source := []internal.Contact{
		{Name: "Ada Lovelace", Email: strp("ada@engines.io"), Company: strp("Analytical Engines"), Title: strp("Programmer"), ProfileURL: strp("https://linkedin.com/in/ada")},
		{Name: "Alan Turing", Email: strp("alan@bletchley.uk"), Company: strp("Bletchley, Park"), Title: strp("Cryptanalyst"), ProfileURL: strp("https://linkedin.com/in/alan")},
	}

	var b strings.Builder
	b.WriteString("First Name,Last Name,Email Address,Company,Position,URL\n")
	for _, c := range source {
		first, last, _ := strings.Cut(c.Name, " ")
		fmt.Fprintf(&b, "%s,%s,%s,%q,%s,%s\n", first, last, *c.Email, *c.Company, *c.Title, *c.ProfileURL)
	}

	out, err := Run(context.Background(), []byte(b.String()), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Contacts) != len(source) || len(out.Diagnostics) != 0 {
		t.Fatalf("contacts=%d diags=%v", len(out.Contacts), out.Messages(0))
	}
	for i, got := range out.Contacts {
		want := source[i]
		if got.Name != want.Name || *got.Email != *want.Email || *got.Company != *want.Company ||
			*got.Title != *want.Title || *got.ProfileURL != *want.ProfileURL {
			t.Fatalf("row %d: got %+v want %+v", i, got, want)
		}
	}
}

func TestRunKeepsRowsAfterUnterminatedQuote(t *testing.T) {
	raw := "First Name,Last Name,Email,Company\n\"Ada,L,ada@x.com,Acme\nBob,B,bob@x.com,Acme\n"
	out, err := Run(context.Background(), []byte(raw), Options{Now: fixedClock(importTime)})
	if err != nil {
		t.Fatal(err)
	}
	if out.TotalRows != 2 || len(out.Contacts) != 2 {
		t.Fatalf("rows=%d contacts=%d diags=%v", out.TotalRows, len(out.Contacts), out.Messages(0))
	}
	ada, bob := out.Contacts[0], out.Contacts[1]
	if ada.Name != "Ada L" || ada.Email == nil || *ada.Email != "ada@x.com" {
		t.Fatalf("ada=%+v", ada)
	}
	if bob.Name != "Bob B" || bob.Email == nil || *bob.Email != "bob@x.com" {
		t.Fatalf("bob=%+v", bob)
	}
}

func TestRunLineEndings(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{name: "cr only", raw: "First Name,Last Name,Email\rAda,L,ada@x.com\rBob,B,bob@x.com\r"},
		{name: "pk first column", raw: "PK,First Name,Last Name,Email\n1,Ada,L,ada@x.com\n2,Bob,B,bob@x.com\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Run(context.Background(), []byte(tc.raw), Options{Now: fixedClock(importTime)})
			if err != nil {
				t.Fatal(err)
			}
			if len(out.Contacts) != 2 || out.Contacts[0].Name != "Ada L" {
				t.Fatalf("contacts=%d diags=%v", len(out.Contacts), out.Messages(0))
			}
		})
	}
}

func TestRunReportsRowPanic(t *testing.T) {
	enrich := func(c *internal.Contact, _ internal.NormalizedRow) {
		if c.Name == "Alan Turing" {
			panic("boom")
		}
	}
	out, err := Run(context.Background(), []byte(linkedInExport), Options{Now: fixedClock(importTime), Enrich: enrich})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Contacts) != 2 || out.ErrorCount() != 1 {
		t.Fatalf("contacts=%d diags=%v", len(out.Contacts), out.Messages(0))
	}
	if !strings.Contains(strings.Join(out.Messages(0), "\n"), "Row 2: error - boom") {
		t.Fatalf("diags=%v", out.Messages(0))
	}
}
