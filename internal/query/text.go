package query

import (
	"strconv"
	"strings"
	"unicode"
)

// text is a query broken into the forms the rules match against.
type text struct {
	raw    string   // trimmed, original case
	lower  string   // raw, lowercased
	fields []string // whitespace tokens of lower
	words  []string // letter/digit runs of lower
	joined string   // words joined by single spaces, padded
}

func parse(q string) text {
	raw := strings.TrimSpace(q)
	lower := strings.ToLower(raw)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return text{
		raw:    raw,
		lower:  lower,
		fields: strings.Fields(lower),
		words:  words,
		joined: " " + strings.Join(words, " ") + " ",
	}
}

// hasWord reports whether any of ws appears as a whole word, or glued to a
// trailing number ("top10"). Multi-word entries match as a phrase on word
// boundaries.
func (t text) hasWord(ws ...string) bool {
	for _, w := range ws {
		if strings.Contains(w, " ") {
			if strings.Contains(t.joined, " "+w+" ") {
				return true
			}
			continue
		}
		for _, have := range t.words {
			if have == w || gluedToNumber(have, w) {
				return true
			}
		}
	}
	return false
}

func gluedToNumber(word, prefix string) bool {
	rest, ok := strings.CutPrefix(word, prefix)
	if !ok || rest == "" {
		return false
	}
	return strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' }) < 0
}

// hasSymbol reports whether any of the given operator symbols appear.
func (t text) hasSymbol(syms ...string) bool {
	for _, s := range syms {
		if strings.Contains(t.lower, s) {
			return true
		}
	}
	return false
}

// mentions reports whether term occurs as a keyword stem: a word starting
// with term, a phrase on word boundaries, or (for terms holding digits or
// punctuation) a plain substring.
func (t text) mentions(term string) bool {
	switch {
	case strings.Contains(term, " "):
		return strings.Contains(t.joined, " "+term+" ")
	case strings.IndexFunc(term, func(r rune) bool { return r < 'a' || r > 'z' }) >= 0:
		return strings.Contains(t.lower, term)
	}
	for _, w := range t.words {
		if strings.HasPrefix(w, term) {
			return true
		}
	}
	return false
}

func (t text) mentionsAny(terms []string) bool {
	for _, term := range terms {
		if t.mentions(term) {
			return true
		}
	}
	return false
}

// literals returns every integer literal in the query, in order.
func (t text) literals() []int {
	var out []int
	for _, f := range t.fields {
		if n, ok := digitLiteral(f); ok {
			out = append(out, n)
		}
	}
	return out
}

// literalAfter returns the first integer literal in or after the first
// whitespace token containing one of the trigger words.
func (t text) literalAfter(triggers ...string) (int, bool) {
	start := -1
	for i, f := range t.fields {
		if parse(f).hasWord(triggers...) {
			start = i
			break
		}
	}
	if start < 0 {
		return 0, false
	}
	for _, f := range t.fields[start:] {
		if n, ok := digitLiteral(f); ok {
			return n, true
		}
	}
	return 0, false
}

// digitLiteral strips every non-digit from tok and parses the rest, so
// "50,000" reads as 50000 and "3.5" as 35. Tokens without digits, or whose
// digits overflow an int, are not literals.
func digitLiteral(tok string) (int, bool) {
	var b strings.Builder
	for _, r := range tok {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(b.String())
	if err != nil {
		return 0, false
	}
	return n, true
}
