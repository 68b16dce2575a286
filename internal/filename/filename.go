// Package filename extracts patient, view, and duplicate-suffix tokens from
// LabCAS file identifiers.
package filename

import (
	"regexp"
	"strconv"
	"strings"
)

// The patient token is a case or control letter plus 3-4 digits. The view
// token is letters only, which forces numeric disambiguators like _2 into the
// suffix group and makes a digit inside the view position fail the match.
var namePattern = regexp.MustCompile(`(?i)([CN]\d{3,4}).*?_([A-Za-z]+)(?:_(\d+))?\.dcm$`)

// Parsed holds the tokens extracted from one file identifier. Patient keeps
// its original casing; View is uppercased for comparison.
type Parsed struct {
	Patient   string
	View      string
	Suffix    int
	HasSuffix bool
}

// Parse matches the final path segment of a file identifier against the
// naming convention. ok is false when the segment does not conform; Parse
// never guesses and never errors.
func Parse(fileID string) (Parsed, bool) {
	segment := fileID
	if i := strings.LastIndex(fileID, "/"); i >= 0 {
		segment = fileID[i+1:]
	}

	m := namePattern.FindStringSubmatch(segment)
	if m == nil {
		return Parsed{}, false
	}

	p := Parsed{
		Patient: m[1],
		View:    strings.ToUpper(m[2]),
	}
	if m[3] != "" {
		n, err := strconv.Atoi(m[3])
		if err != nil {
			return Parsed{}, false
		}
		p.Suffix = n
		p.HasSuffix = true
	}
	return p, true
}
