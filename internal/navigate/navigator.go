// Package navigate implements the model-guided recursive descent over
// chunked document text: split, route, descend into the selected chunks,
// repeat up to a maximum depth.
package navigate

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/DJ-Manjaray/longdoc/internal/chunker"
)

// Default token floors for chunking. Descent levels use a smaller floor
// since sub-chunks are expected to be finer-grained.
const (
	DefaultTopMinTokens = 500
	DefaultSubMinTokens = 200
)

// Result is the terminal output of one navigation. Paragraphs carry their
// dotted DisplayID; the scratchpad holds the reasoning accumulated across
// every depth that ran.
type Result struct {
	Paragraphs []chunker.Chunk
	Scratchpad Scratchpad
}

// Navigator drives the descent from chunks into sub-chunks.
type Navigator struct {
	splitter     *chunker.Splitter
	router       Router
	topMinTokens int
	subMinTokens int
	log          *slog.Logger
}

func NewNavigator(splitter *chunker.Splitter, router Router, topMinTokens, subMinTokens int, log *slog.Logger) *Navigator {
	if topMinTokens <= 0 {
		topMinTokens = DefaultTopMinTokens
	}
	if subMinTokens <= 0 {
		subMinTokens = DefaultSubMinTokens
	}
	return &Navigator{
		splitter:     splitter,
		router:       router,
		topMinTokens: topMinTokens,
		subMinTokens: subMinTokens,
		log:          log,
	}
}

// Navigate locates the passages most likely to answer question, descending
// at most maxDepth levels below the top-level chunking. It returns an empty
// paragraph list as soon as a routing round selects nothing. The path table
// and scratchpad are request-scoped; nothing survives the call.
func (n *Navigator) Navigate(ctx context.Context, documentText, question string, maxDepth int) (Result, error) {
	if maxDepth < 0 {
		maxDepth = 0
	}

	var pad Scratchpad
	chunks := n.splitter.Split(documentText, n.topMinTokens)

	// Top-level paths are the stringified ids; each descent level appends
	// ".{sub id}" to the parent's path before ids are reassigned.
	paths := make(map[int]string, len(chunks))
	for _, c := range chunks {
		paths[c.ID] = strconv.Itoa(c.ID)
	}

	for depth := 0; depth <= maxDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		sel, err := n.router.Route(ctx, question, chunks, depth, pad)
		if err != nil {
			return Result{}, fmt.Errorf("route depth %d: %w", depth, err)
		}
		pad = sel.Scratchpad

		selected := materialize(chunks, sel.SelectedIDs)
		if len(selected) == 0 {
			n.log.Info("no relevant chunks found", "depth", depth)
			return Result{Scratchpad: pad}, nil
		}

		if depth == maxDepth {
			for i := range selected {
				selected[i].DisplayID = paths[selected[i].ID]
			}
			n.log.Info("returning relevant chunks", "depth", depth, "count", len(selected))
			return Result{Paragraphs: selected, Scratchpad: pad}, nil
		}

		// Descend: re-chunk every selected chunk and allocate a fresh,
		// contiguous id space across all sub-chunks combined.
		var next []chunker.Chunk
		nextPaths := make(map[int]string)
		nextID := 0
		for _, parent := range selected {
			for _, sub := range n.splitter.Split(parent.Text, n.subMinTokens) {
				nextPaths[nextID] = paths[parent.ID] + "." + strconv.Itoa(sub.ID)
				sub.ID = nextID
				next = append(next, sub)
				nextID++
			}
		}
		chunks = next
		paths = nextPaths
	}

	return Result{Scratchpad: pad}, nil
}

// materialize filters chunks to the selected ids, preserving document
// order. Ids not present in chunks are silently dropped.
func materialize(chunks []chunker.Chunk, ids []int) []chunker.Chunk {
	if len(ids) == 0 {
		return nil
	}
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []chunker.Chunk
	for _, c := range chunks {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	return out
}
