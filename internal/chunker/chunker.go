// Package chunker splits document text into token-bounded, sentence-aligned
// chunks for model-guided navigation.
package chunker

import (
	"strings"

	"github.com/DJ-Manjaray/longdoc/internal/tokenizer"
)

// MaxChunks is the default hard upper bound on chunks per split. It bounds
// the branching factor of the recursive routing and keeps each routing
// prompt within model context limits.
const MaxChunks = 20

// Chunk is a contiguous, sentence-aligned span of text at one hierarchy
// level. ID is the 0-based position in document order, dense within one
// Split call and not stable across recursion levels. DisplayID is the dotted
// hierarchical path, assigned only when a chunk is finally selected.
type Chunk struct {
	ID        int    `json:"id"`
	Text      string `json:"text"`
	DisplayID string `json:"display_id,omitempty"`
}

// Splitter groups sentences into at most maxChunks chunks.
type Splitter struct {
	tok       tokenizer.Tokenizer
	seg       Segmenter
	maxChunks int
}

func NewSplitter(tok tokenizer.Tokenizer, seg Segmenter, maxChunks int) *Splitter {
	if maxChunks <= 0 {
		maxChunks = MaxChunks
	}
	return &Splitter{tok: tok, seg: seg, maxChunks: maxChunks}
}

// Split segments text into sentences and accumulates them into chunks. A
// chunk is closed when appending the next sentence would push it above
// 2×minTokens AND it already holds at least minTokens; otherwise the
// sentence is appended regardless of size, so a single oversized sentence
// stays whole rather than being split mid-sentence. The trailing partial
// chunk is always emitted. If more than maxChunks chunks result, the
// chunking is rebuilt by partitioning the sentence stream into consecutive
// groups of ceil(n/maxChunks) sentences, ignoring token minimums.
func (s *Splitter) Split(text string, minTokens int) []Chunk {
	sentences := s.seg.Segment(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []Chunk
	var current []string
	currentTokens := 0

	for _, sentence := range sentences {
		sentenceTokens := tokenizer.Count(s.tok, sentence)
		if currentTokens+sentenceTokens > minTokens*2 && currentTokens >= minTokens {
			chunks = append(chunks, Chunk{ID: len(chunks), Text: strings.Join(current, " ")})
			current = []string{sentence}
			currentTokens = sentenceTokens
		} else {
			current = append(current, sentence)
			currentTokens += sentenceTokens
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, Chunk{ID: len(chunks), Text: strings.Join(current, " ")})
	}

	if len(chunks) > s.maxChunks {
		chunks = s.rebuild(sentences)
	}
	return chunks
}

// rebuild partitions sentences into equal consecutive groups. The last group
// may be smaller. Guarantees at most maxChunks chunks.
func (s *Splitter) rebuild(sentences []string) []Chunk {
	perChunk := (len(sentences) + s.maxChunks - 1) / s.maxChunks
	var chunks []Chunk
	for i := 0; i < len(sentences); i += perChunk {
		end := min(i+perChunk, len(sentences))
		chunks = append(chunks, Chunk{ID: len(chunks), Text: strings.Join(sentences[i:end], " ")})
	}
	return chunks
}
