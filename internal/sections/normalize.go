package sections

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func stripTrailingColon(s string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(s), ":"))
}

func stripQualifier(s string) string {
	out := qualifierRe.ReplaceAllString(s, "")
	if strings.TrimSpace(out) == "" {
		return s
	}
	return out
}

func fixMisspellings(s string) string {
	return misspellRe.ReplaceAllStringFunc(s, func(w string) string {
		return Misspellings[strings.ToLower(w)]
	})
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// titleCase capitalises each word. Shouted words are lowered first; mixed
// case words keep their interior capitals ("McDonald's").
// A fresh Caser per call: cases.Caser is stateful.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if strings.ToUpper(w) == w {
			words[i] = strings.ToLower(w)
		}
	}
	return cases.Title(language.English, cases.NoLower).String(strings.Join(words, " "))
}

func upperAcronyms(s string) string {
	return wordRe.ReplaceAllStringFunc(s, func(w string) string {
		up := strings.ToUpper(w)
		for _, a := range Acronyms {
			if up == a {
				return up
			}
		}
		return w
	})
}

// Slugify derives the deduplication key for a title: lower case,
// punctuation dropped, words joined by single hyphens.
func Slugify(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r), r == '-', r == '_', r == '/':
			return ' '
		default:
			return -1
		}
	}, title)
	return strings.Join(strings.Fields(cleaned), "-")
}

// NormalizeTitle runs the classifier's title pipeline over s.
func (c *Classifier) NormalizeTitle(s string) string {
	for _, step := range c.Normalize {
		s = step.Apply(s)
	}
	return s
}

// StripPrefix removes the first matching list or number prefix.
func (c *Classifier) StripPrefix(s string) string {
	for _, re := range c.Prefixes {
		if loc := re.FindStringIndex(s); loc != nil {
			return strings.TrimSpace(s[loc[1]:])
		}
	}
	return s
}
