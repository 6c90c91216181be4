package geocode

import (
	"strings"
	"unicode"

	"github.com/antzucaro/matchr"

	"github.com/proplens/proplens/internal/model"
)

var streetAbbrev = map[string]string{
	"st":   "street",
	"rd":   "road",
	"ave":  "avenue",
	"av":   "avenue",
	"dr":   "drive",
	"pde":  "parade",
	"hwy":  "highway",
	"cres": "crescent",
	"cl":   "close",
	"ct":   "court",
	"pl":   "place",
	"tce":  "terrace",
	"ln":   "lane",
	"bvd":  "boulevard",
	"blvd": "boulevard",
}

// NormalizeAddress lowercases s, drops punctuation and expands common
// Australian street-type abbreviations.
func NormalizeAddress(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, f := range fields {
		if full, ok := streetAbbrev[f]; ok {
			fields[i] = full
		}
	}
	return strings.Join(fields, " ")
}

// Similarity scores two addresses in [0,1] with Jaro-Winkler over their
// normalized forms.
func Similarity(a, b string) float64 {
	na, nb := NormalizeAddress(a), NormalizeAddress(b)
	if na == "" || nb == "" {
		return 0
	}
	return matchr.JaroWinkler(na, nb, false)
}

// BestMatch returns the index of the candidate whose display name is most
// similar to query. Ties keep the earlier candidate. It returns -1 when
// candidates is empty.
func BestMatch(query string, candidates []model.ResolvedAddress) (int, float64) {
	best, bestScore := -1, -1.0
	for i, c := range candidates {
		score := Similarity(query, c.DisplayName)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestScore
}
