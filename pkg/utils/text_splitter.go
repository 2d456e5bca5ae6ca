package utils

import (
	"strings"
	"unicode"
)

// SplitText cuts text into chunks of at most chunkSize runes, each sharing
// overlap runes with the previous one. A cut is moved back to the nearest
// whitespace when one lies in the second half of the chunk. Blank input
// yields no chunks.
func SplitText(text string, chunkSize int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	runes := []rune(text)
	totalLen := len(runes)
	if chunkSize <= 0 || totalLen <= chunkSize {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < totalLen; {
		end := start + chunkSize
		if end >= totalLen {
			chunks = append(chunks, strings.TrimSpace(string(runes[start:])))
			break
		}

		for cut := end; cut > end-chunkSize/2; cut-- {
			if unicode.IsSpace(runes[cut]) {
				end = cut
				break
			}
		}

		chunks = append(chunks, strings.TrimSpace(string(runes[start:end])))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
