package chunker

import "strings"

const fallbackWindowBytes = 500

// fallbackChunks splits text into windows of roughly fallbackWindowBytes,
// always breaking at line boundaries. A single line longer than the window
// becomes its own chunk. Whitespace-only windows are dropped.
func fallbackChunks(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lines := strings.Split(text, "\n")

	var chunks []Chunk
	var window []string
	windowBytes := 0
	startLine := 1

	flush := func(endLine int) {
		content := strings.Join(window, "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, Chunk{
				Kind:      KindBlock,
				StartLine: startLine,
				EndLine:   endLine,
				Content:   content,
			})
		}
		window = window[:0]
		windowBytes = 0
	}

	for i, line := range lines {
		lineNo := i + 1
		if len(window) > 0 && windowBytes+len(line)+1 > fallbackWindowBytes {
			flush(lineNo - 1)
			startLine = lineNo
		}
		window = append(window, line)
		windowBytes += len(line) + 1
	}
	if len(window) > 0 {
		flush(len(lines))
	}
	return chunks
}
