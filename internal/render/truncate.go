package render

import (
	"strings"
	"unicode"
)

// Tier is a presentation length limit, in characters.
type Tier int

const (
	// Short fits a single chat message.
	Short Tier = 2000
	// Long fits a rich embed body.
	Long Tier = 5500
)

// Marker is appended to text that was shortened.
const Marker = "\n\n[truncated]"

// ParseTier maps "long" to Long and anything else to Short.
func ParseTier(s string) Tier {
	if strings.EqualFold(strings.TrimSpace(s), "long") {
		return Long
	}
	return Short
}

// Truncate bounds text to tier characters including the marker. The cut
// lands on a paragraph, line, sentence or word boundary and never inside
// a [..] or (..) group or a url. It reports whether text was shortened.
func Truncate(text string, tier Tier) (string, bool) {
	limit := int(tier)
	runes := []rune(text)
	if len(runes) <= limit {
		return text, false
	}

	budget := limit - len([]rune(Marker))
	if budget <= 0 {
		return string(runes[:limit]), true
	}

	cut := safeCut(runes, budget)
	head := strings.TrimRightFunc(string(runes[:cut]), unicode.IsSpace)
	return head + Marker, true
}

// maxGroupSpan bounds how far a [..] or (..) group may reach. Longer or
// unclosed spans are stray brackets, not groups.
const maxGroupSpan = 200

// safeCut returns the best cut index in runes[:budget].
func safeCut(runes []rune, budget int) int {
	unsafe := unsafeRanges(runes)
	ok := func(i int) bool {
		for _, r := range unsafe {
			if i > r[0] && i <= r[1] {
				return false
			}
		}
		return true
	}

	space := func(i int) bool { return i < len(runes) && unicode.IsSpace(runes[i]) }

	// prefer a boundary in the last half of the budget
	floor := budget / 2

	for _, boundary := range []func(i int) bool{
		func(i int) bool { return runes[i-1] == '\n' && i >= 2 && runes[i-2] == '\n' },
		func(i int) bool { return runes[i-1] == '\n' },
		func(i int) bool { return space(i) && strings.ContainsRune(".!?", runes[i-1]) },
		space,
	} {
		for i := budget; i > floor; i-- {
			if boundary(i) && ok(i) {
				return i
			}
		}
	}

	for i := floor; i > 0; i-- {
		if space(i) && ok(i) {
			return i
		}
	}
	for i := budget; i > 0; i-- {
		if ok(i) {
			return i
		}
	}
	return budget
}

// unsafeRanges lists [start, end] rune spans that a cut must not split:
// closed bracket and parenthesis groups within one line, and urls.
func unsafeRanges(runes []rune) [][2]int {
	var out [][2]int

	var stack []int
	for i, r := range runes {
		switch r {
		case '\n':
			stack = stack[:0]
		case '[', '(':
			stack = append(stack, i)
		case ']', ')':
			open := '['
			if r == ')' {
				open = '('
			}
			for j := len(stack) - 1; j >= 0; j-- {
				if runes[stack[j]] != open {
					continue
				}
				start := stack[j]
				stack = stack[:j]
				if i-start <= maxGroupSpan {
					out = append(out, [2]int{start, i})
				}
				break
			}
		}
	}

	text := string(runes)
	for _, prefix := range []string{"http://", "https://"} {
		offset := 0
		for {
			idx := strings.Index(text[offset:], prefix)
			if idx < 0 {
				break
			}
			byteStart := offset + idx
			start := len([]rune(text[:byteStart]))
			stop := start
			for stop < len(runes) && !unicode.IsSpace(runes[stop]) {
				stop++
			}
			out = append(out, [2]int{start, stop - 1})
			offset = byteStart + len(prefix)
		}
	}
	return out
}
