package eventlog

import "strings"

const (
	chunkSize    = 320
	chunkOverlap = 64
)

// Chunk is a fixed-size window over an event's content, used for
// chunk-level search and snippet extraction.
type Chunk struct {
	EventID   int64
	ChunkIdx  int
	ChunkText string
}

// chunksFor splits content into fixed-size overlapping windows.
func chunksFor(eventID int64, content string) []Chunk {
	if content == "" {
		return nil
	}
	var chunks []Chunk
	step := chunkSize - chunkOverlap
	for start, idx := 0, 0; start < len(content); start, idx = start+step, idx+1 {
		end := start + chunkSize
		if end > len(content) {
			end = len(content)
		}
		chunks = append(chunks, Chunk{
			EventID:   eventID,
			ChunkIdx:  idx,
			ChunkText: content[start:end],
		})
		if end == len(content) {
			break
		}
	}
	return chunks
}

// ChunkHit is a chunk-level search result with a snippet centered on the
// query match.
type ChunkHit struct {
	EventID  int64
	Kind     Kind
	ChunkIdx int
	Snippet  string
}

// snippetAround extracts a window of maxChars around the first
// case-insensitive occurrence of query in text, with the match offset from
// the left edge at roughly maxChars/3.
func snippetAround(text, query string, maxChars int) string {
	if maxChars <= 0 {
		maxChars = 80
	}
	lowerText := strings.ToLower(text)
	lowerQuery := strings.ToLower(query)
	pos := strings.Index(lowerText, lowerQuery)
	if pos < 0 {
		if len(text) <= maxChars {
			return text
		}
		return text[:maxChars]
	}
	leftMargin := maxChars / 3
	start := pos - leftMargin
	if start < 0 {
		start = 0
	}
	end := start + maxChars
	if end > len(text) {
		end = len(text)
		start = end - maxChars
		if start < 0 {
			start = 0
		}
	}
	return text[start:end]
}
