package summarize

import "strings"

// SplitChunks splits text into bounded-size chunks along line boundaries.
// A single line longer than maxChars is hard-split into fixed-size slices.
// Concatenating all chunks (reinserting the original line breaks) reproduces
// the input byte-for-byte.
func SplitChunks(text string, maxChars int) []string {
	if len(text) <= maxChars {
		return []string{text}
	}

	lines := strings.Split(text, "\n")
	var chunks []string

	current := ""
	for _, line := range lines {
		next := line
		if current != "" {
			next = current + "\n" + line
		}

		if len(next) <= maxChars {
			current = next
			continue
		}

		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}

		if len(line) > maxChars {
			for i := 0; i < len(line); i += maxChars {
				end := i + maxChars
				if end > len(line) {
					end = len(line)
				}
				chunks = append(chunks, line[i:end])
			}
			continue
		}

		current = line
	}

	if current != "" {
		chunks = append(chunks, current)
	}

	return chunks
}
