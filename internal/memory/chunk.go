package memory

import (
	"regexp"
	"strings"
)

const defaultChunkSize = 800

var sentenceEndRe = regexp.MustCompile(`([.!?\n])\s+`)

// ChunkText splits text into roughly chunkSize-character pieces on
// sentence boundaries, so no memory row starts mid-sentence.
func ChunkText(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}

	marked := sentenceEndRe.ReplaceAllString(text, "$1\x00")
	sentences := strings.Split(marked, "\x00")

	var chunks []string
	current := ""
	for _, sentence := range sentences {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		switch {
		case current == "":
			current = sentence
		case len(current)+1+len(sentence) > chunkSize:
			chunks = append(chunks, current)
			current = sentence
		default:
			current = current + " " + sentence
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}
