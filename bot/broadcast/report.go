package broadcast

import (
	"fmt"

	"herald/bot/directory"
)

// Chunk is one page of failed recipients. Label is "(i/N)" when the
// list spans more than one chunk, empty otherwise.
type Chunk struct {
	Label   string
	Members []directory.Member
}

// ChunkFailed splits the failed list into fixed-size pages, preserving
// order. size values below 1 fall back to 25.
func ChunkFailed(failed []directory.Member, size int) []Chunk {
	if len(failed) == 0 {
		return nil
	}
	if size < 1 {
		size = 25
	}

	total := (len(failed) + size - 1) / size
	chunks := make([]Chunk, 0, total)
	for i := 0; i < len(failed); i += size {
		end := i + size
		if end > len(failed) {
			end = len(failed)
		}
		c := Chunk{Members: failed[i:end]}
		if total > 1 {
			c.Label = fmt.Sprintf("(%d/%d)", len(chunks)+1, total)
		}
		chunks = append(chunks, c)
	}
	return chunks
}
