package chunker

import (
	"fmt"
	"strings"
)

const (
	DefaultSize    = 500
	DefaultOverlap = 50
)

// Chunker splits text into fixed windows of Size runes, each starting
// Size-Overlap runes after the previous one.
type Chunker struct {
	size    int
	overlap int
}

func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

func (c *Chunker) Size() int    { return c.size }
func (c *Chunker) Overlap() int { return c.overlap }

// Chunk never returns whitespace-only windows. Empty input gives an empty slice.
func (c *Chunker) Chunk(text string) []string {
	runes := []rune(text)
	chunks := make([]string, 0, len(runes)/(c.size-c.overlap)+1)
	step := c.size - c.overlap
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		window := string(runes[start:end])
		if strings.TrimSpace(window) == "" {
			continue
		}
		chunks = append(chunks, window)
	}
	return chunks
}
