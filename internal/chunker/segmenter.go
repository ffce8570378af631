package chunker

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ErrUnsegmentable is returned by SplitSentences when the primary
// sentence-boundary scan cannot be applied to the input.
var ErrUnsegmentable = errors.New("text cannot be segmented into sentences")

// sentence terminators recognized by the primary strategy.
var terminators = map[rune]bool{
	'.': true,
	'!': true,
	'?': true,
	'…': true,
}

// abbreviations that end with a period but do not end a sentence.
// Matched case-sensitively against the last word before the terminator.
var abbreviations = map[string]bool{
	"Mr":   true,
	"Mrs":  true,
	"Ms":   true,
	"Dr":   true,
	"Prof": true,
	"Sig":  true,
	"St":   true,
	"etc":  true,
	"vs":   true,
	"e.g":  true,
	"i.e":  true,
}

// SplitSentences is the primary segmentation strategy: a boundary scan
// over the text that closes a sentence at a terminator followed by
// whitespace, with a guard for common abbreviations. It returns an
// error for input it cannot handle (invalid UTF-8, no visible text);
// callers fall back to Segment's newline strategy in that case.
func SplitSentences(text string) ([]string, error) {
	if !utf8.ValidString(text) {
		return nil, ErrUnsegmentable
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrUnsegmentable
	}

	runes := []rune(text)
	sentences := make([]string, 0, 8)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !terminators[runes[i]] {
			continue
		}

		// Consume a run of terminators ("?!", "...").
		end := i
		for end+1 < len(runes) && terminators[runes[end+1]] {
			end++
		}
		// Allow one closing quote or bracket after the terminator.
		if end+1 < len(runes) && isClosing(runes[end+1]) {
			end++
		}

		// A boundary needs following whitespace (or end of text).
		if end+1 < len(runes) && !unicode.IsSpace(runes[end+1]) {
			i = end
			continue
		}

		if runes[i] == '.' && isAbbreviation(runes[start:i]) {
			i = end
			continue
		}

		sentence := strings.TrimSpace(string(runes[start : end+1]))
		if sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end + 1
		i = end
	}

	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	if len(sentences) == 0 {
		return nil, ErrUnsegmentable
	}
	return sentences, nil
}

// Segment produces sentence-like units for the chunk builder. It tries
// the sentence-boundary scan first and degrades to a newline split when
// that fails. The fallback never fails: at worst it yields the whole
// text as a single unit.
func Segment(text string) []string {
	sentences, err := SplitSentences(text)
	if err == nil {
		return sentences
	}

	lines := strings.Split(text, "\n")
	units := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			units = append(units, trimmed)
		}
	}
	if len(units) == 0 && strings.TrimSpace(text) != "" {
		units = append(units, strings.TrimSpace(text))
	}
	return units
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '»', '”', '’':
		return true
	}
	return false
}

// isAbbreviation checks whether the word immediately before a period is
// a known abbreviation, or a single letter as in initials ("J. Smith").
func isAbbreviation(before []rune) bool {
	text := string(before)
	idx := strings.LastIndexFunc(text, unicode.IsSpace)
	word := text[idx+1:]
	if word == "" {
		return false
	}
	if utf8.RuneCountInString(word) == 1 && word != "I" {
		return true
	}
	return abbreviations[word]
}
