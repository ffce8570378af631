// Package chunker splits long texts into model-sized chunks without
// breaking sentence-like units. Chunk sizes are measured in characters
// (runes); the target is a soft bound, a single unit longer than the
// target becomes an oversized chunk on its own rather than being split.
package chunker

import (
	"strings"
	"unicode/utf8"
)

// BuildChunks packs the segmented units of text into ordered chunks of
// roughly targetSize characters. Units are accumulated in order; when
// appending the next unit would push the buffer past targetSize and the
// buffer is non-empty, the buffer is flushed as a completed chunk. The
// final non-empty buffer is always flushed, so no unit is ever dropped
// or duplicated and chunk order follows text order.
//
// targetSize <= 0 yields a single chunk containing the whole text.
func BuildChunks(text string, targetSize int) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if targetSize <= 0 {
		return []string{trimmed}
	}

	units := Segment(text)
	chunks := make([]string, 0, len(units)/2+1)

	var buf strings.Builder
	bufLen := 0

	for _, unit := range units {
		unitLen := utf8.RuneCountInString(unit)
		if bufLen+unitLen > targetSize && bufLen > 0 {
			chunks = append(chunks, strings.TrimSpace(buf.String()))
			buf.Reset()
			bufLen = 0
		}
		buf.WriteString(unit)
		buf.WriteString(" ")
		bufLen += unitLen + 1
	}

	if bufLen > 0 {
		chunks = append(chunks, strings.TrimSpace(buf.String()))
	}

	return chunks
}
