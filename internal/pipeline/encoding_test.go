package pipeline

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"
)

func TestDecode(t *testing.T) {
	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().String("Name,Email\nJosé,j@x.com\n")
	if err != nil {
		t.Fatal(err)
	}

	cases := []struct {
		name     string
		raw      string
		encoding string
		contains string
	}{
		{name: "utf-8", raw: "Name,Email\nZoë,z@x.com\n", encoding: "utf-8", contains: "Zoë"},
		{name: "utf-8 bom", raw: "\xEF\xBB\xBFFirst Name,Last Name\n", encoding: "utf-8-sig", contains: "First Name"},
		{name: "utf-16 bom", raw: utf16, encoding: "utf-16", contains: "José"},
		{name: "latin-1", raw: "Name,Company\nJos\xe9,Caf\xe9 M\xfcller\n", encoding: "latin-1", contains: "Café Müller"},
		{name: "cp1252 smart quotes", raw: "Name,Notes\nAda,\x93met at PyCon\x94\n", encoding: "cp1252", contains: "“met at PyCon”"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.raw))
			if err != nil {
				t.Fatal(err)
			}
			if got.Encoding != tc.encoding {
				t.Fatalf("encoding=%q want %q", got.Encoding, tc.encoding)
			}
			if !strings.Contains(got.Text, tc.contains) {
				t.Fatalf("text=%q", got.Text)
			}
			if strings.HasPrefix(got.Text, "\ufeff") {
				t.Fatalf("bom kept: %q", got.Text)
			}
		})
	}
}

func TestDecodeRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want error
	}{
		{name: "empty", raw: "", want: ErrEmptyInput},
		{name: "whitespace", raw: " \r\n\t\n", want: ErrEmptyInput},
		{name: "xlsx", raw: "PK\x03\x04\x14\x00[Content_Types].xml", want: ErrUnsupportedFormat},
		{name: "legacy excel", raw: "\xD0\xCF\x11\xE0\xA1\xB1\x1A\xE1", want: ErrUnsupportedFormat},
		{name: "nul bytes", raw: "Name,Email\nA\x00B,a@x.com\n", want: ErrUndecodable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.raw))
			if !errors.Is(err, tc.want) {
				t.Fatalf("err=%v want %v", err, tc.want)
			}
		})
	}
}

func TestDetectUnsupportedFormat(t *testing.T) {
	var ufe *UnsupportedFormatError

	err := DetectUnsupportedFormat([]byte("PK\x03\x04\x14\x00\x00\x00Index/Document.iwa"))
	if !errors.As(err, &ufe) || ufe.Application != "Numbers" || err.Error() != numbersMessage {
		t.Fatalf("numbers: %v", err)
	}

	err = DetectUnsupportedFormat([]byte("PK\x03\x04\x14\x00\x06\x00xl/workbook.xml"))
	if !errors.As(err, &ufe) || ufe.Application != "Excel" || err.Error() != excelMessage {
		t.Fatalf("excel: %v", err)
	}

	err = DetectUnsupportedFormat([]byte("PK\x05\x06\x00\x00\x00\x00"))
	if !errors.As(err, &ufe) || ufe.Application != "Excel" {
		t.Fatalf("empty zip: %v", err)
	}

	// A text file whose first cell starts with PK is not an archive.
	if err := DetectUnsupportedFormat([]byte("PK,First Name,Last Name,Email\n1,Ada,L,ada@x.com\n")); err != nil {
		t.Fatalf("pk column: %v", err)
	}

	// Signatures past the first bytes of a text file do not count.
	text := strings.Repeat("a,b\n", 40) + "PK Numbers"
	if err := DetectUnsupportedFormat([]byte(text)); err != nil {
		t.Fatalf("text: %v", err)
	}
}
