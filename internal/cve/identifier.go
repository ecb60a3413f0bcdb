package cve

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Prefix is the identifier namespace recognized by the extractor.
const Prefix = "CVE"

// shardWildcard is appended to the leading digits of a sequence number to
// form the corpus bucket directory name (e.g. "1xxx", "12xxx").
const shardWildcard = "xxx"

// ErrMalformedID is returned when a string does not follow the
// CVE-YYYY-NNNN+ grammar.
var ErrMalformedID = errors.New("malformed CVE identifier")

var (
	scanPattern  = regexp.MustCompile(`(?i)` + Prefix + `-\d{4}-\d{4,}`)
	parsePattern = regexp.MustCompile(`^` + Prefix + `-(\d{4})-(\d{4,})$`)
)

// ID is a canonical (upper-case, hyphenated) CVE identifier.
type ID string

func (id ID) String() string { return string(id) }

// Extract returns every identifier found in text, upper-cased and
// de-duplicated, in the order each was first seen.
func Extract(text string) []ID {
	matches := scanPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[ID]struct{}, len(matches))
	ids := make([]ID, 0, len(matches))
	for _, m := range matches {
		id := ID(strings.ToUpper(m))
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// Parse splits an identifier into its year and sequence groups. The
// sequence is kept as a string so leading zeros survive.
func Parse(id ID) (year int, seq string, err error) {
	m := parsePattern.FindStringSubmatch(string(id))
	if m == nil {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedID, id)
	}
	year, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q: %v", ErrMalformedID, id, err)
	}
	return year, m[2], nil
}

// ShardKey returns the corpus bucket for a sequence group: "Nxxx" for
// four-digit sequences, otherwise the first two digits followed by "xxx".
func ShardKey(seq string) string {
	if len(seq) == 4 {
		return seq[:1] + shardWildcard
	}
	return seq[:2] + shardWildcard
}
