package chunker

import (
	"strings"

	"github.com/DJ-Manjaray/longdoc/internal/tokenizer"
)

// DefaultPreviewTokens is the routing preview budget per chunk.
const DefaultPreviewTokens = 900

// Preview returns a token-bounded sample of text for cheap relevance
// screening. Text at or under maxTokens passes through unchanged. Longer
// text is sampled from the start, the token-wise midpoint, and the end, so
// the router gets spatially-distributed visibility into a long chunk
// without the cost of the full text.
func Preview(tok tokenizer.Tokenizer, text string, maxTokens int) string {
	tokens := tok.Encode(text)
	if len(tokens) <= maxTokens {
		return text
	}

	segment := maxTokens / 3
	if segment < 1 {
		segment = 1
	}

	head := tokens[:segment]
	midStart := len(tokens)/2 - segment/2
	if midStart < 0 {
		midStart = 0
	}
	middle := tokens[midStart : midStart+segment]
	tail := tokens[len(tokens)-segment:]

	return strings.TrimSpace(tok.Decode(head)) +
		"\n...\n" + strings.TrimSpace(tok.Decode(middle)) +
		"\n...\n" + strings.TrimSpace(tok.Decode(tail))
}
