package domain

import (
	"strings"
	"unicode/utf8"
)

// mergeShort merges consecutive paragraphs shorter than the minimum length.
// Paragraphs at or above the minimum are kept separate; a trailing short
// accumulator is folded into the last chunk rather than emitted alone.
func (c *paragraphChunker) mergeShort(paragraphs []string) []string {
	if len(paragraphs) == 0 {
		return paragraphs
	}

	var merged []string
	var accumulator string

	for _, para := range paragraphs {
		if utf8.RuneCountInString(para) >= c.minLen {
			if accumulator != "" {
				if utf8.RuneCountInString(accumulator) < c.minLen {
					if len(merged) > 0 {
						merged[len(merged)-1] += "\n\n" + accumulator
					} else {
						para = accumulator + "\n\n" + para
					}
				} else {
					merged = append(merged, accumulator)
				}
				accumulator = ""
			}
			merged = append(merged, para)
			continue
		}

		if accumulator == "" {
			accumulator = para
		} else {
			accumulator += "\n\n" + para
		}
	}

	if accumulator != "" {
		if utf8.RuneCountInString(accumulator) < c.minLen && len(merged) > 0 {
			merged[len(merged)-1] += "\n\n" + accumulator
		} else {
			merged = append(merged, accumulator)
		}
	}

	return merged
}

// splitLong splits paragraphs longer than the maximum length at sentence
// boundaries, packing sentences greedily up to the limit. Each split-off
// chunk seeds the next with its trailing sentences, up to the configured
// overlap, so no retrieval-relevant statement is stranded at a chunk edge.
func (c *paragraphChunker) splitLong(paragraphs []string) []string {
	var result []string

	for _, para := range paragraphs {
		if utf8.RuneCountInString(para) <= c.maxLen {
			result = append(result, para)
			continue
		}

		var chunk string
		for _, sentence := range splitIntoSentences(para) {
			chunkLen := utf8.RuneCountInString(chunk)
			sentenceLen := utf8.RuneCountInString(sentence)
			if chunkLen > 0 && chunkLen+1+sentenceLen > c.maxLen {
				result = append(result, chunk)
				chunk = c.overlapTail(chunk)
				if chunk != "" {
					chunk += " "
				}
				chunk += sentence
				continue
			}
			if chunk != "" {
				chunk += " "
			}
			chunk += sentence
		}
		if chunk != "" {
			result = append(result, chunk)
		}
	}

	return result
}

// overlapTail returns the trailing whole sentences of chunk that fit within
// the overlap budget. A sentence longer than the budget yields no overlap
// rather than a mid-sentence cut.
func (c *paragraphChunker) overlapTail(chunk string) string {
	if c.overlap <= 0 {
		return ""
	}

	sentences := splitIntoSentences(chunk)
	total := 0
	start := len(sentences)
	for i := len(sentences) - 1; i >= 0; i-- {
		n := utf8.RuneCountInString(sentences[i])
		if total+n > c.overlap {
			break
		}
		total += n + 1
		start = i
	}
	if start == len(sentences) {
		return ""
	}
	return strings.Join(sentences[start:], " ")
}

// splitIntoSentences splits text at . ! ? followed by whitespace or end of
// text. The trailing fragment is kept even without terminal punctuation.
func splitIntoSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])

		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' {
				if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
					sentences = append(sentences, trimmed)
				}
				current.Reset()
			}
		}
	}

	if trimmed := strings.TrimSpace(current.String()); trimmed != "" {
		sentences = append(sentences, trimmed)
	}

	return sentences
}
