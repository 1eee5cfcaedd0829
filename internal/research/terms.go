package research

import (
	"strings"
	"unicode"
)

const minTermLength = 4

var stopwords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "because": true,
	"been": true, "before": true, "being": true, "best": true, "between": true,
	"both": true, "could": true, "does": true, "doing": true, "down": true,
	"during": true, "each": true, "even": true, "every": true, "first": true,
	"from": true, "have": true, "having": true, "here": true, "into": true,
	"just": true, "know": true, "like": true, "make": true, "many": true,
	"more": true, "most": true, "much": true, "need": true, "only": true,
	"other": true, "over": true, "really": true, "same": true, "should": true,
	"some": true, "such": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true,
	"thing": true, "things": true, "this": true, "those": true, "through": true,
	"time": true, "under": true, "until": true, "very": true, "want": true,
	"well": true, "were": true, "what": true, "when": true, "where": true,
	"which": true, "while": true, "will": true, "with": true, "without": true,
	"would": true, "your": true, "yours": true, "year": true, "years": true,
	"read": true, "post": true, "blog": true, "click": true, "share": true,
}

// tokenize lower-cases s and splits it into words of letters and digits.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// contentTerms returns the distinct unigram and bigram terms of text that
// are long enough and not stopwords. Bigrams are only formed from adjacent
// content words.
func contentTerms(text string) map[string]bool {
	terms := make(map[string]bool)
	var prev string
	for _, w := range tokenize(text) {
		if len(w) < minTermLength || stopwords[w] || isNumber(w) {
			prev = ""
			continue
		}
		terms[w] = true
		if prev != "" {
			terms[prev+" "+w] = true
		}
		prev = w
	}
	return terms
}

func isNumber(w string) bool {
	for _, r := range w {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// keywordOverlap scores how well text matches a keyword: 1 when the whole
// phrase appears, otherwise the fraction of the keyword's words present.
func keywordOverlap(text, keyword string) float64 {
	if keyword == "" {
		return 0
	}
	lower := " " + strings.Join(tokenize(text), " ") + " "
	words := tokenize(keyword)
	if len(words) == 0 {
		return 0
	}
	if strings.Contains(lower, " "+strings.Join(words, " ")+" ") {
		return 1
	}
	hits := 0
	for _, w := range words {
		if strings.Contains(lower, " "+w+" ") {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}

// coveredByKeywords reports whether term already appears inside one of the
// blog's keywords.
func coveredByKeywords(term string, keywords []string) bool {
	for _, k := range keywords {
		if keywordOverlap(k, term) == 1 {
			return true
		}
	}
	return false
}

// relatedToKeywords reports whether term shares any word with the blog's
// keywords.
func relatedToKeywords(term string, keywords []string) bool {
	for _, k := range keywords {
		if keywordOverlap(term, k) > 0 {
			return true
		}
	}
	return false
}
