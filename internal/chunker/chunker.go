// Package chunker splits text into fixed-size word windows.
package chunker

import "strings"

// Split tokenizes text on whitespace and returns windows of chunkSize tokens
// advancing by chunkSize-overlap tokens, each rejoined with single spaces.
// The last window may be shorter. Empty or whitespace-only text yields nil.
//
// chunkSize below 1 is treated as 1 and overlap is clamped to
// [0, chunkSize-1] so the window always advances.
func Split(text string, chunkSize, overlap int) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}

	if chunkSize < 1 {
		chunkSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize - 1
	}
	stride := chunkSize - overlap

	chunks := make([]string, 0, (len(tokens)+stride-1)/stride)
	for start := 0; start < len(tokens); start += stride {
		end := min(start+chunkSize, len(tokens))
		chunks = append(chunks, strings.Join(tokens[start:end], " "))
	}
	return chunks
}
