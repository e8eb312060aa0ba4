package selection

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// usTerms mark a question as being about US politics or institutions.
// A term matches case-insensitively where it starts a word, so "democrat"
// also covers "democrats" while "vance" does not fire on "advance".
var usTerms = []string{
	"congress",
	"senate",
	"senator",
	"house of representatives",
	"speaker of the house",
	"white house",
	"supreme court",
	"capitol hill",
	"us politics",
	"u.s. politics",
	"american politics",
	"united states",
	"u.s.",
	"america",
	"president trump",
	"trump",
	"biden",
	"kamala harris",
	"vance",
	"pelosi",
	"mcconnell",
	"schumer",
	"republican",
	"democrat",
	"gop",
	"federal reserve",
	"pentagon",
	"state department",
	"fbi",
	"department of justice",
	"doj",
	"midterm",
	"electoral college",
	"governor",
}

// IsUSFocused reports whether question mentions any US-politics term.
func IsUSFocused(question string) bool {
	q := strings.ToLower(question)
	for _, term := range usTerms {
		if containsWordPrefix(q, term) {
			return true
		}
	}
	return false
}

func containsWordPrefix(s, term string) bool {
	for offset := 0; offset <= len(s)-len(term); {
		i := strings.Index(s[offset:], term)
		if i < 0 {
			return false
		}
		i += offset
		if i == 0 {
			return true
		}
		prev, _ := utf8.DecodeLastRuneInString(s[:i])
		if !unicode.IsLetter(prev) && !unicode.IsDigit(prev) {
			return true
		}
		offset = i + 1
	}
	return false
}

// USTerms returns a copy of the term table.
func USTerms() []string {
	out := make([]string, len(usTerms))
	copy(out, usTerms)
	return out
}
