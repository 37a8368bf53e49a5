package navigate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"

	"github.com/DJ-Manjaray/longdoc/internal/chunker"
	"github.com/DJ-Manjaray/longdoc/internal/llm"
	"github.com/DJ-Manjaray/longdoc/internal/tokenizer"
)

// Selection is the outcome of one routing call. SelectedIDs is whatever the
// model returned; the Navigator drops ids outside the presented range.
type Selection struct {
	SelectedIDs []int
	Scratchpad  Scratchpad
}

// Router decides which chunks are worth descending into or returning as
// final passages. The Navigator depends on this interface so the recursive
// algorithm can be tested against a deterministic stub.
type Router interface {
	Route(ctx context.Context, question string, chunks []chunker.Chunk, depth int, pad Scratchpad) (Selection, error)
}

const routerSystemPrompt = `You are an expert document navigator. Your task is to:
1. Identify which text chunks might contain information to answer the user's question
2. Record your reasoning in a scratchpad for later reference
3. Choose chunks that are most likely relevant. Be selective, but thorough. Choose as many chunks as you need to answer the question, but avoid selecting too many.

First think carefully about what information would help answer the question, then evaluate each chunk.`

const scratchpadToolName = "update_scratchpad"

var scratchpadTool = openai.Tool{
	Type: openai.ToolTypeFunction,
	Function: &openai.FunctionDefinition{
		Name:        scratchpadToolName,
		Description: "Record your reasoning about why certain chunks were selected",
		Strict:      true,
		Parameters: jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"text": {
					Type:        jsonschema.String,
					Description: "Your reasoning about the chunk(s) selection",
				},
			},
			Required:             []string{"text"},
			AdditionalProperties: false,
		},
	},
}

var selectionFormat = &openai.ChatCompletionResponseFormat{
	Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
	JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
		Name:   "selected_chunks",
		Strict: true,
		Schema: &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"chunk_ids": {
					Type:        jsonschema.Array,
					Items:       &jsonschema.Definition{Type: jsonschema.Integer},
					Description: "IDs of the selected chunks that contain information to answer the question",
				},
			},
			Required:             []string{"chunk_ids"},
			AdditionalProperties: false,
		},
	},
}

// RouterConfig holds the model identifiers and preview budget for routing.
type RouterConfig struct {
	ReasoningModel string // call 1: forced scratchpad tool call
	SelectionModel string // call 2: structured chunk-id output
	PreviewTokens  int
}

// ModelRouter drives the two-call routing protocol against a language model:
// first a reasoning call with a required scratchpad tool, then a selection
// call on the same conversation constrained to a chunk-id schema.
type ModelRouter struct {
	client llm.ChatClient
	tok    tokenizer.Tokenizer
	cfg    RouterConfig
	log    *slog.Logger
}

func NewModelRouter(client llm.ChatClient, tok tokenizer.Tokenizer, cfg RouterConfig, log *slog.Logger) *ModelRouter {
	if cfg.PreviewTokens <= 0 {
		cfg.PreviewTokens = chunker.DefaultPreviewTokens
	}
	return &ModelRouter{client: client, tok: tok, cfg: cfg, log: log}
}

func (r *ModelRouter) Route(ctx context.Context, question string, chunks []chunker.Chunk, depth int, pad Scratchpad) (Selection, error) {
	log := r.log.With("depth", depth, "chunks", len(chunks))
	log.Info("routing")

	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: routerSystemPrompt},
		{Role: openai.ChatMessageRoleUser, Content: r.buildUserMessage(question, chunks, pad)},
	}

	// Call 1: the model must record its reasoning via the scratchpad tool.
	resp, err := r.client.Chat(ctx, openai.ChatCompletionRequest{
		Model:      r.cfg.ReasoningModel,
		Messages:   messages,
		Tools:      []openai.Tool{scratchpadTool},
		ToolChoice: "required",
	})
	if err != nil {
		return Selection{}, fmt.Errorf("reasoning call: %w", err)
	}

	assistant := resp.Choices[0].Message
	recorded := 0
	for _, tc := range assistant.ToolCalls {
		if tc.Function.Name != scratchpadToolName {
			continue
		}
		var args struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			log.Warn("scratchpad arguments not parseable", "error", err)
			continue
		}
		pad = pad.WithEntry(depth, args.Text)
		recorded++
	}
	if recorded == 0 {
		// Treat a response with no tool invocation as a no-op.
		log.Warn("model made no scratchpad call")
	}

	messages = append(messages, assistant)
	for _, tc := range assistant.ToolCalls {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			ToolCallID: tc.ID,
			Content:    "Scratchpad updated successfully.",
		})
	}

	// Call 2: continue the conversation, constrained to the chunk-id schema.
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: "Now, select the chunks that could contain information to answer the question. Return a JSON object with the list of chunk IDs.",
	})
	resp, err = r.client.Chat(ctx, openai.ChatCompletionRequest{
		Model:          r.cfg.SelectionModel,
		Messages:       messages,
		ResponseFormat: selectionFormat,
	})
	if err != nil {
		return Selection{}, fmt.Errorf("selection call: %w", err)
	}

	var selected struct {
		ChunkIDs []int `json:"chunk_ids"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &selected); err != nil {
		// Recoverable: navigation proceeds as "no chunks selected".
		log.Warn("could not parse structured selection output", "error", err)
		return Selection{Scratchpad: pad}, nil
	}

	log.Info("chunks selected", "selected_ids", selected.ChunkIDs)
	return Selection{SelectedIDs: selected.ChunkIDs, Scratchpad: pad}, nil
}

func (r *ModelRouter) buildUserMessage(question string, chunks []chunker.Chunk, pad Scratchpad) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "QUESTION: %s\n\n", question)
	if !pad.IsEmpty() {
		fmt.Fprintf(&sb, "CURRENT SCRATCHPAD:\n%s\n\n", pad.String())
	}
	sb.WriteString("TEXT CHUNKS:\n\n")
	for _, c := range chunks {
		preview := chunker.Preview(r.tok, c.Text, r.cfg.PreviewTokens)
		fmt.Fprintf(&sb, "CHUNK %d (preview):\n%s\n\n", c.ID, preview)
	}
	sb.WriteString("\nFirst, you must use the update_scratchpad function to record your reasoning.")
	return sb.String()
}
