package knowledge

import "strings"

const (
	ChunkSize    = 1000
	ChunkOverlap = 200
)

// Chunk splits text into windows of at most size runes, each sharing
// overlap runes with the previous one. A window prefers to end at a line
// break in its second half. Empty windows are dropped.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = ChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var out []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastBreak(runes[start:end]); cut > size/2 {
			end = start + cut
		}

		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func lastBreak(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == '\n' {
			return i + 1
		}
	}
	return -1
}
