package translator

import (
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectSourceLanguage guesses the source language code of text. It is
// used when a request leaves the source language empty or "auto"; the
// caller still controls the language pair otherwise. Returns an empty
// string when no confident guess exists.
func DetectSourceLanguage(text string) string {
	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return ""
	}
	code := info.Lang.Iso6391()
	if code == "" {
		// Some languages only carry an ISO 639-3 code; normalize
		// through x/text when possible.
		tag, err := language.Parse(info.Lang.Iso6393())
		if err != nil {
			return ""
		}
		return tag.String()
	}
	return code
}
