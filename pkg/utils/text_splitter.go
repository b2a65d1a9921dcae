package utils

import "unicode"

// SplitText cuts text into chunks of at most chunkSize runes with overlap
// runes shared between neighbours. A cut moves back to the nearest
// whitespace when one exists in the last quarter of the chunk.
func SplitText(text string, chunkSize int, overlap int) []string {
	runes := []rune(text)
	total := len(runes)
	if chunkSize <= 0 || total <= chunkSize {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	for start := 0; start < total; {
		end := start + chunkSize
		if end >= total {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		cut := end
		for i := end; i > end-chunkSize/4; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[start:cut]))

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}
