package sections

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/54b3r/cottagebot/internal/docsource"
)

// AcceptRule is one heading signal. Rules are combined with OR semantics.
type AcceptRule struct {
	// Name identifies the rule in tests and debug output.
	Name string
	// Match receives the source line and its text with any list/number
	// prefix already stripped.
	Match func(line docsource.Line, stripped string) bool
}

// RejectRule vetoes a candidate heading, turning it back into body text.
type RejectRule struct {
	Name  string
	Match func(line docsource.Line, stripped string) bool
}

// TitleStep is one stage of the title normalisation pipeline.
type TitleStep struct {
	Name  string
	Apply func(string) string
}

// Classifier is the heading grammar as data: prefix strippers, acceptance
// signals, rejection predicates and the title normalisation pipeline.
// Entries are applied in slice order.
type Classifier struct {
	Prefixes  []*regexp.Regexp
	Accept    []AcceptRule
	Reject    []RejectRule
	Normalize []TitleStep
}

// Suffixes is the closed set of domain suffix words a title may end with.
var Suffixes = []string{
	"Cottage", "Cottages", "House", "Flat", "View", "Mews", "Fold", "Barn",
	"Lodge", "Farmhouse", "Croft", "Cabin", "Annexe", "Loft", "Retreat",
}

// ExceptionTitles are single-word titles accepted without a suffix or number.
var ExceptionTitles = []string{"Hideaway"}

// DenyList holds upper-cased document headers that never name a cottage.
var DenyList = []string{
	"FIRE ALARM TIMES",
	"STANDARD INFORMATION",
	"GENERAL INFORMATION",
	"IMPORTANT INFORMATION",
	"HOUSE RULES",
	"CHECK IN",
	"CHECK OUT",
	"CONTENTS",
	"WELCOME",
	"EMERGENCY CONTACTS",
	"USEFUL NUMBERS",
	"PROPERTY DETAILS",
	"ALL COTTAGES",
}

// Misspellings maps known misspelt words (lower case) to their correction.
var Misspellings = map[string]string{
	"cotage":    "cottage",
	"cottgae":   "cottage",
	"cottge":    "cottage",
	"coottage":  "cottage",
	"huose":     "house",
	"hosue":     "house",
	"farmhosue": "farmhouse",
	"mewes":     "mews",
	"veiw":      "view",
	"vew":       "view",
	"lodeg":     "lodge",
}

// Acronyms are re-uppercased after title-casing.
var Acronyms = []string{"NT", "BBQ", "WC", "UK", "TV", "EV", "II", "III"}

var (
	// listPrefixRe strips "1.", "2)", "3 –" and bullet markers.
	listPrefixRe = regexp.MustCompile(`^(?:\d+\s*[.)]|\d+\s+[-–—]|[•·▪●*\-–—])\s*`)
	bulletRe     = regexp.MustCompile(`^[•·▪●*\-–—]`)

	titleShapeRe = buildTitleShape(Suffixes)

	qualifierRe = regexp.MustCompile(`(?i)\s+\(?(?:details|information|info|notes|continued|cont\.?)\)?$`)
	wordRe      = regexp.MustCompile(`[A-Za-z]+`)
	misspellRe  = buildMisspellings(Misspellings)
)

// buildTitleShape compiles: optional leading number, one to four
// capitalised words, optional domain suffix, optional parenthesised
// qualifier, optional trailing colon.
func buildTitleShape(suffixes []string) *regexp.Regexp {
	const word = `[A-Z][A-Za-z'’.\-]*`
	alt := make([]string, len(suffixes))
	for i, s := range suffixes {
		alt[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(`^(?:(\d+[A-Za-z]?)\s+)?` +
		`(` + word + `(?:\s+` + word + `){0,3})` +
		`(?:\s+((?i:` + strings.Join(alt, "|") + `)))?` +
		`(?:\s*\([A-Za-z.]+\))?:?$`)
}

func buildMisspellings(m map[string]string) *regexp.Regexp {
	words := make([]string, 0, len(m))
	for w := range m {
		words = append(words, regexp.QuoteMeta(w))
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
}

// Default returns the classifier used for the cottage documents.
func Default() *Classifier {
	return &Classifier{
		Prefixes: []*regexp.Regexp{listPrefixRe},
		Accept: []AcceptRule{
			{Name: "structural", Match: func(l docsource.Line, _ string) bool { return l.Heading }},
			{Name: "title-shape", Match: func(_ docsource.Line, s string) bool { return matchesTitleShape(s) }},
			{Name: "exception", Match: func(_ docsource.Line, s string) bool { return isException(s) }},
		},
		Reject: []RejectRule{
			{Name: "bullet-item", Match: isBulletItem},
			{Name: "deny-list", Match: func(_ docsource.Line, s string) bool { return isDenied(s) }},
			{Name: "no-letters", Match: func(_ docsource.Line, s string) bool { return hasNoLetters(s) }},
		},
		Normalize: []TitleStep{
			{Name: "trailing-colon", Apply: stripTrailingColon},
			{Name: "qualifier", Apply: stripQualifier},
			{Name: "misspellings", Apply: fixMisspellings},
			{Name: "whitespace", Apply: collapseWhitespace},
			{Name: "title-case", Apply: titleCase},
			{Name: "acronyms", Apply: upperAcronyms},
		},
	}
}

// matchesTitleShape accepts 1-4 capitalised words with an optional leading
// number and suffix. A lone word without number or suffix is not enough.
func matchesTitleShape(s string) bool {
	m := titleShapeRe.FindStringSubmatch(s)
	if m == nil {
		return false
	}
	number, words, suffix := m[1], m[2], m[3]
	return number != "" || suffix != "" || len(strings.Fields(words)) > 1
}

func isException(s string) bool {
	s = stripTrailingColon(s)
	for _, e := range ExceptionTitles {
		if s == e {
			return true
		}
	}
	return false
}

// isBulletItem keeps bulleted lines in the body unless the paragraph is
// heading-styled; amenity lists like "• Hot Tub" look like titles.
func isBulletItem(l docsource.Line, _ string) bool {
	return !l.Heading && bulletRe.MatchString(strings.TrimSpace(l.Text))
}

func isDenied(s string) bool {
	key := strings.ToUpper(collapseWhitespace(stripTrailingColon(s)))
	for _, d := range DenyList {
		if key == d {
			return true
		}
	}
	return false
}

func hasNoLetters(s string) bool {
	return strings.IndexFunc(s, unicode.IsLetter) < 0
}
