// Package election identifies elections and discovers the census files that
// describe them.
//
// An election has two textual forms: the native label used inside the source
// files (MM/DD/YYYY) and the canonical ISO date (YYYY-MM-DD) used in every
// output. Census file names carry a third form, a YYYYMMDD token, which is the
// only source of election identity when a run covers several elections.
package election

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	tokenLayout  = "20060102"
	nativeLayout = "01/02/2006"
	isoLayout    = "2006-01-02"
)

// Election is one election date in both supported encodings.
type Election struct {
	// ISO is the canonical date, e.g. 2025-11-04.
	ISO string
	// Native is the label as written in the vote log and census, e.g. 11/04/2025.
	Native string
	// Year is the calendar year used for age computation.
	Year int
}

// FromToken converts a YYYYMMDD file-name token.
func FromToken(token string) (Election, error) {
	token = strings.TrimSpace(token)
	if len(token) != 8 || !isDigits(token) {
		return Election{}, fmt.Errorf("election token %q is not YYYYMMDD", token)
	}
	day, err := time.Parse(tokenLayout, token)
	if err != nil {
		return Election{}, fmt.Errorf("election token %q: %w", token, err)
	}
	return fromTime(day), nil
}

// FromNative converts an MM/DD/YYYY label. Single-digit month and day parts
// are accepted and zero-padded in both returned forms.
func FromNative(label string) (Election, error) {
	parts := strings.Split(strings.TrimSpace(label), "/")
	if len(parts) != 3 {
		return Election{}, fmt.Errorf("election label %q is not MM/DD/YYYY", label)
	}
	month, errM := strconv.Atoi(parts[0])
	day, errD := strconv.Atoi(parts[1])
	year, errY := strconv.Atoi(parts[2])
	if errM != nil || errD != nil || errY != nil || len(parts[2]) != 4 {
		return Election{}, fmt.Errorf("election label %q is not MM/DD/YYYY", label)
	}
	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if date.Month() != time.Month(month) || date.Day() != day {
		return Election{}, fmt.Errorf("election label %q is not a calendar date", label)
	}
	return fromTime(date), nil
}

func fromTime(t time.Time) Election {
	return Election{
		ISO:    t.Format(isoLayout),
		Native: t.Format(nativeLayout),
		Year:   t.Year(),
	}
}

// String returns the ISO form.
func (e Election) String() string {
	return e.ISO
}

// CensusFile pairs a census path with the election its name encodes.
type CensusFile struct {
	Path     string
	Election Election
}

// Discovery is the outcome of scanning candidate census paths.
type Discovery struct {
	// Files are the recognised census files in lexical path order.
	Files []CensusFile
	// Skipped lists base names whose date token could not be read.
	Skipped []string
	// Duplicates lists base names whose election already has a file earlier
	// in lexical order.
	Duplicates []string
}

// TokenFromFileName extracts the date token from names like
// voter_stats_20251104.txt. It reports false when the name has no
// eight-digit token between the last underscore and the .txt suffix.
func TokenFromFileName(name string) (string, bool) {
	base := filepath.Base(name)
	if !strings.HasSuffix(strings.ToLower(base), ".txt") {
		return "", false
	}
	stem := base[:len(base)-len(".txt")]
	idx := strings.LastIndex(stem, "_")
	if idx < 0 {
		return "", false
	}
	token := stem[idx+1:]
	if len(token) != 8 || !isDigits(token) {
		return "", false
	}
	return token, true
}

// Discover resolves the election behind each path. Paths are processed in
// lexical order; unrecognised names are collected in Skipped rather than
// failing the scan. Each election keeps only its first file.
func Discover(paths []string) Discovery {
	sorted := append([]string(nil), paths...)
	sort.Strings(sorted)

	var out Discovery
	seen := make(map[string]bool, len(sorted))
	for _, path := range sorted {
		token, ok := TokenFromFileName(path)
		if !ok {
			out.Skipped = append(out.Skipped, filepath.Base(path))
			continue
		}
		e, err := FromToken(token)
		if err != nil {
			out.Skipped = append(out.Skipped, filepath.Base(path))
			continue
		}
		if seen[e.ISO] {
			out.Duplicates = append(out.Duplicates, filepath.Base(path))
			continue
		}
		seen[e.ISO] = true
		out.Files = append(out.Files, CensusFile{Path: path, Election: e})
	}
	return out
}

// Glob expands pattern and discovers the census files it matches. The
// returned int is the number of raw matches, including skipped names.
func Glob(pattern string) (Discovery, int, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return Discovery{}, 0, fmt.Errorf("glob %s: %w", pattern, err)
	}
	return Discover(matches), len(matches), nil
}

// Only keeps the census files for the election whose native label is given.
func (d Discovery) Only(label string) (Discovery, error) {
	target, err := FromNative(label)
	if err != nil {
		return Discovery{}, err
	}
	out := Discovery{Skipped: d.Skipped, Duplicates: d.Duplicates}
	for _, f := range d.Files {
		if f.Election.ISO == target.ISO {
			out.Files = append(out.Files, f)
		}
	}
	return out, nil
}

// Labels returns the set of native labels across the discovered files.
func (d Discovery) Labels() map[string]bool {
	labels := make(map[string]bool, len(d.Files))
	for _, f := range d.Files {
		labels[f.Election.Native] = true
	}
	return labels
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
