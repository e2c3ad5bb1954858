package retrieval

import (
	"strings"
	"unicode/utf8"
)

// DefaultChunkSize is the soft chunk bound in characters.
const DefaultChunkSize = 500

// SplitText groups blank-line separated paragraphs into chunks. A paragraph
// joins the current chunk while the combined length stays below size;
// otherwise the current chunk is flushed and the paragraph starts a new one.
// Paragraphs are never split, so a single long paragraph becomes an
// oversized chunk. When nothing usable is produced the text is returned as
// the only chunk.
func SplitText(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}

	var chunks []string
	var cur strings.Builder
	for _, para := range strings.Split(text, "\n\n") {
		if utf8.RuneCountInString(cur.String())+utf8.RuneCountInString(para) < size {
			cur.WriteString(para)
			cur.WriteString("\n\n")
			continue
		}
		if c := strings.TrimSpace(cur.String()); c != "" {
			chunks = append(chunks, c)
		}
		cur.Reset()
		cur.WriteString(para)
		cur.WriteString("\n\n")
	}
	if c := strings.TrimSpace(cur.String()); c != "" {
		chunks = append(chunks, c)
	}

	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}
