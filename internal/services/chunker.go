package services

import (
	"strings"
	"unicode/utf8"
)

type TextChunker interface {
	ChunkText(text string, maxChunkSize int, overlap int) []string
}

type textChunker struct{}

func NewTextChunker() TextChunker {
	return &textChunker{}
}

// ChunkText splits text on paragraph boundaries, falling back to sentences for
// oversized paragraphs. Sizes are counted in runes. Each new chunk starts with
// the last overlap runes of the previous one.
func (tc *textChunker) ChunkText(text string, maxChunkSize int, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}

	var chunks []string
	var current strings.Builder

	flush := func(sep string) {
		if current.Len() == 0 {
			return
		}
		prev := current.String()
		chunks = append(chunks, prev)
		current.Reset()
		if tail := lastRunes(prev, overlap); tail != "" {
			current.WriteString(tail)
			current.WriteString(sep)
		}
	}

	appendPiece := func(piece, sep string) {
		if current.Len() > 0 && utf8.RuneCountInString(current.String())+utf8.RuneCountInString(sep)+utf8.RuneCountInString(piece) > maxChunkSize {
			flush(sep)
		}
		if current.Len() > 0 && !strings.HasSuffix(current.String(), sep) {
			current.WriteString(sep)
		}
		current.WriteString(piece)
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if utf8.RuneCountInString(para) <= maxChunkSize {
			appendPiece(para, "\n\n")
			continue
		}

		for _, sentence := range splitIntoSentences(para) {
			for _, piece := range hardSplit(sentence, maxChunkSize-overlap-1) {
				appendPiece(piece, " ")
			}
		}
	}

	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func splitIntoSentences(text string) []string {
	var result []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+utf8.RuneLen(r)]); s != "" {
				result = append(result, s)
			}
			start = i + utf8.RuneLen(r)
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		result = append(result, s)
	}
	return result
}

// hardSplit cuts s into pieces of at most size runes.
func hardSplit(s string, size int) []string {
	if size < 1 {
		size = 1
	}
	runes := []rune(s)
	if len(runes) <= size {
		return []string{s}
	}
	var out []string
	for len(runes) > 0 {
		n := size
		if len(runes) < n {
			n = len(runes)
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

func lastRunes(text string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[len(runes)-n:])
}
