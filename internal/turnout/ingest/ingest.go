// Package ingest reads the header-less, tab-delimited source files into the
// records the reconciliation works on.
//
// Every field is trimmed and stripped of double quotes. Rows shorter than the
// columns a reader needs are padded with empty fields rather than rejected;
// the source exports are ragged.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
)

// maxLineSize bounds a single source line.
const maxLineSize = 10 << 20

// Supported source encodings.
const (
	EncodingUTF8   = "utf-8"
	EncodingCP1252 = "cp1252"
)

// Decode wraps r so it yields UTF-8 text for the named encoding. An empty
// name is treated as UTF-8.
func Decode(r io.Reader, encoding string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", EncodingUTF8, "utf8":
		return r, nil
	case EncodingCP1252, "windows-1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", encoding)
	}
}

func clean(field string) string {
	return strings.ReplaceAll(strings.TrimSpace(field), `"`, "")
}

// row exposes cleaned fields by position.
type row struct {
	fields []string
	upper  cases.Caser
}

func (r row) at(i int) string {
	if i >= len(r.fields) {
		return ""
	}
	return clean(r.fields[i])
}

func (r row) upperAt(i int) string {
	return r.upper.String(r.at(i))
}

// scan calls fn for every non-blank line of r.
func scan(r io.Reader, fn func(row) error) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	upper := cases.Upper(language.Und)

	lines := 0
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines++
		if err := fn(row{fields: strings.Split(line, "\t"), upper: upper}); err != nil {
			return lines, fmt.Errorf("line %d: %w", lines, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("scan: %w", err)
	}
	return lines, nil
}

// isHeader reports whether value is empty or the literal column name.
func isHeader(value, column string) bool {
	return value == "" || strings.EqualFold(value, column)
}
