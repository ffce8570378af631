package translator

import "strings"

// artifactPhrases is the curated list of conversational artifacts the
// model is known to emit despite the prompt rules. Ordered, literal,
// case-sensitive substring removal; model output drift will require
// maintenance of this list.
var artifactPhrases = []string{
	"Sure, il testo è stato tradotto da italiano a inglese come segue:",
	"Sure, il testo è stato tradito con alta precisione.",
	"Sure, il testo è stato tradito.",
	"Sure, il testo è già tradotto.",
	"The text is not provided in the context, so I cannot translate it.",
	"Sure, here is the translation:",
	"Here is the translation:",
}

// Sanitize strips known artifact phrases from model output, then trims
// surrounding whitespace and enclosing quote pairs (straight double,
// straight single, backtick). Quote pairs are stripped until the result
// is stable, which makes the function idempotent even for nested
// quoting: Sanitize(Sanitize(x)) == Sanitize(x).
func Sanitize(text string) string {
	for _, phrase := range artifactPhrases {
		text = strings.ReplaceAll(text, phrase, "")
	}

	for {
		trimmed := strings.TrimSpace(text)
		trimmed = trimQuotePair(trimmed)
		if trimmed == text {
			return trimmed
		}
		text = trimmed
	}
}

// trimQuotePair removes one layer of matching enclosing quotes.
func trimQuotePair(s string) string {
	if len(s) < 2 {
		return s
	}
	first, last := s[0], s[len(s)-1]
	if first != last {
		return s
	}
	switch first {
	case '"', '\'', '`':
		return s[1 : len(s)-1]
	}
	return s
}
