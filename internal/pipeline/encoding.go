package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	ErrEmptyInput        = errors.New("empty file")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrUndecodable       = errors.New("file could not be decoded as text")
	ErrNoHeader          = errors.New("no header row found")
)

const (
	numbersMessage = "Numbers files (.numbers) are not supported. Please export your Numbers file as CSV first."
	excelMessage   = "Excel files are not yet supported. Please save your Excel file as CSV first."

	signatureWindow = 100
)

var (
	zipMagic      = []byte("PK\x03\x04")
	emptyZipMagic = []byte("PK\x05\x06")
	oleMagic      = []byte{0xD0, 0xCF, 0x11, 0xE0}
	utf8BOM       = []byte{0xEF, 0xBB, 0xBF}
)

// UnsupportedFormatError reports a binary container that must be re-exported
// as CSV. Error returns the user-facing message unchanged.
type UnsupportedFormatError struct {
	Application string
	Message     string
}

func (e *UnsupportedFormatError) Error() string { return e.Message }

func (e *UnsupportedFormatError) Unwrap() error { return ErrUnsupportedFormat }

type Decoded struct {
	Text     string
	Encoding string
	// Guess is the charset detector's best guess when the input was not UTF-8.
	Guess string
}

// DetectUnsupportedFormat inspects the leading bytes for spreadsheet containers.
func DetectUnsupportedFormat(raw []byte) error {
	head := raw
	if len(head) > signatureWindow {
		head = head[:signatureWindow]
	}

	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, emptyZipMagic):
		if bytes.Contains(head, []byte("Numbers")) || bytes.Contains(head, []byte("Index/")) {
			return &UnsupportedFormatError{Application: "Numbers", Message: numbersMessage}
		}
		return &UnsupportedFormatError{Application: "Excel", Message: excelMessage}
	case bytes.HasPrefix(head, oleMagic):
		return &UnsupportedFormatError{Application: "Excel", Message: excelMessage}
	}
	return nil
}

// Decode turns raw file bytes into text, trying UTF-8, UTF-8 with BOM,
// UTF-16 with BOM, strict Latin-1 and finally Windows-1252.
func Decode(raw []byte) (Decoded, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Decoded{}, ErrEmptyInput
	}
	if err := DetectUnsupportedFormat(raw); err != nil {
		return Decoded{}, err
	}

	if utf8.Valid(raw) {
		if bytes.HasPrefix(raw, utf8BOM) {
			return checkText(Decoded{Text: string(raw[len(utf8BOM):]), Encoding: "utf-8-sig"})
		}
		return checkText(Decoded{Text: string(raw), Encoding: "utf-8"})
	}

	if bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF}) {
		text, err := unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder().Bytes(raw)
		if err == nil {
			return checkText(Decoded{Text: string(text), Encoding: "utf-16"})
		}
	}

	guess := guessCharset(raw)
	if isStrictLatin1(raw) {
		text, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err == nil {
			return checkText(Decoded{Text: string(text), Encoding: "latin-1", Guess: guess})
		}
	}

	text, err := charmap.Windows1252.NewDecoder().Bytes(raw)
	if err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return checkText(Decoded{Text: string(text), Encoding: "cp1252", Guess: guess})
}

// isStrictLatin1 rejects C1 control bytes, which in practice mean the file is
// Windows-1252 (curly quotes, dashes) rather than ISO-8859-1.
func isStrictLatin1(raw []byte) bool {
	for _, b := range raw {
		if b >= 0x80 && b <= 0x9F {
			return false
		}
	}
	return true
}

func checkText(d Decoded) (Decoded, error) {
	if bytes.IndexByte([]byte(d.Text), 0) >= 0 {
		return Decoded{}, fmt.Errorf("%w: binary content in %s text", ErrUndecodable, d.Encoding)
	}
	return d, nil
}

func guessCharset(raw []byte) string {
	sample := raw
	if len(sample) > 4096 {
		sample = sample[:4096]
	}
	res, err := chardet.NewTextDetector().DetectBest(sample)
	if err != nil || res == nil {
		return ""
	}
	return res.Charset
}
