package translator

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// payloadDelimiter separates the instruction block from the text to
// translate so the model cannot confuse instructions with content.
const payloadDelimiter = "--- TEXT TO TRANSLATE ---"

// languageNames is the fast path for the codes the service sees most;
// anything else goes through the x/text display-name lookup with the
// raw code as the final fallback.
var languageNames = map[string]string{
	"en": "English",
	"it": "Italian",
	"fr": "French",
	"de": "German",
	"es": "Spanish",
}

// LanguageName resolves a language code to a human-readable name.
// Unknown or unparseable codes fall back to the code itself.
func LanguageName(code string) string {
	if name, ok := languageNames[code]; ok {
		return name
	}
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// BuildPrompt renders the instruction block for one chunk. The rules
// force the model to behave as a translation system only, suppressing
// its conversational behavior. Deterministic: identical inputs produce
// a byte-identical prompt.
func BuildPrompt(text, src, dst string) string {
	srcName := LanguageName(src)
	dstName := LanguageName(dst)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("You are a literal, high-fidelity translation system from %s to %s.\n", srcName, dstName))
	sb.WriteString("Follow these rules strictly:\n")
	sb.WriteString(fmt.Sprintf("1. Your only output must be the %s translation of the text after '%s'.\n", strings.ToUpper(dstName), payloadDelimiter))
	sb.WriteString("2. NEVER write introductory phrases such as \"Sure, here is the translation:\" or similar.\n")
	sb.WriteString("3. Do NOT add comments, notes or explanations outside the translation.\n")
	sb.WriteString("4. Your answer must contain the translated text and nothing else.\n")
	sb.WriteString("\n")
	sb.WriteString(payloadDelimiter)
	sb.WriteString("\n")
	sb.WriteString(text)
	return sb.String()
}
