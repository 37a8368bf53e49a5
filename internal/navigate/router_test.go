package navigate

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DJ-Manjaray/longdoc/internal/chunker"
)

// scriptedChat replays canned responses and records the requests it saw.
type scriptedChat struct {
	responses []openai.ChatCompletionResponse
	requests  []openai.ChatCompletionRequest
}

func (c *scriptedChat) Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.requests = append(c.requests, req)
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func toolCallResponse(args string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role: openai.ChatMessageRoleAssistant,
				ToolCalls: []openai.ToolCall{{
					ID:   "call_1",
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      scratchpadToolName,
						Arguments: args,
					},
				}},
			},
		}},
	}
}

func contentResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	}
}

func testRouter(chat *scriptedChat) *ModelRouter {
	return NewModelRouter(chat, newWordTok(), RouterConfig{
		ReasoningModel: "reason-model",
		SelectionModel: "select-model",
		PreviewTokens:  50,
	}, slog.New(slog.DiscardHandler))
}

func testChunks() []chunker.Chunk {
	return []chunker.Chunk{
		{ID: 0, Text: "Chapter one talks about whales."},
		{ID: 1, Text: "Chapter two talks about ships."},
	}
}

func TestRoute_TwoCallProtocol(t *testing.T) {
	chat := &scriptedChat{responses: []openai.ChatCompletionResponse{
		toolCallResponse(`{"text": "chunk 1 mentions ships"}`),
		contentResponse(`{"chunk_ids": [1]}`),
	}}
	router := testRouter(chat)

	sel, err := router.Route(context.Background(), "what about ships?", testChunks(), 0, Scratchpad{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sel.SelectedIDs) != 1 || sel.SelectedIDs[0] != 1 {
		t.Errorf("expected selection [1], got %v", sel.SelectedIDs)
	}
	if sel.Scratchpad.Len() != 1 {
		t.Fatalf("expected 1 scratchpad entry, got %d", sel.Scratchpad.Len())
	}
	if !strings.Contains(sel.Scratchpad.String(), "chunk 1 mentions ships") {
		t.Errorf("scratchpad missing recorded reasoning: %q", sel.Scratchpad.String())
	}

	if len(chat.requests) != 2 {
		t.Fatalf("expected 2 model calls, got %d", len(chat.requests))
	}
	first, second := chat.requests[0], chat.requests[1]
	if first.Model != "reason-model" {
		t.Errorf("reasoning call used model %q", first.Model)
	}
	if first.ToolChoice != "required" {
		t.Errorf("reasoning call must force the scratchpad tool, got %v", first.ToolChoice)
	}
	if second.Model != "select-model" {
		t.Errorf("selection call used model %q", second.Model)
	}
	if second.ResponseFormat == nil || second.ResponseFormat.JSONSchema == nil {
		t.Fatal("selection call must constrain output to a JSON schema")
	}
	if second.ResponseFormat.JSONSchema.Name != "selected_chunks" {
		t.Errorf("unexpected schema name %q", second.ResponseFormat.JSONSchema.Name)
	}

	// The selection call continues the same conversation: tool result plus
	// the follow-up user instruction.
	var sawToolResult, sawFollowUp bool
	for _, m := range second.Messages {
		if m.Role == openai.ChatMessageRoleTool && m.ToolCallID == "call_1" {
			sawToolResult = true
		}
		if m.Role == openai.ChatMessageRoleUser && strings.Contains(m.Content, "select the chunks") {
			sawFollowUp = true
		}
	}
	if !sawToolResult {
		t.Error("selection call missing tool result message")
	}
	if !sawFollowUp {
		t.Error("selection call missing follow-up user instruction")
	}
}

func TestRoute_PromptContainsQuestionAndPreviews(t *testing.T) {
	chat := &scriptedChat{responses: []openai.ChatCompletionResponse{
		toolCallResponse(`{"text": "reasoning"}`),
		contentResponse(`{"chunk_ids": []}`),
	}}
	router := testRouter(chat)

	pad := Scratchpad{}.WithEntry(0, "earlier reasoning")
	_, err := router.Route(context.Background(), "what about whales?", testChunks(), 1, pad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	user := chat.requests[0].Messages[1].Content
	if !strings.Contains(user, "QUESTION: what about whales?") {
		t.Error("prompt missing question")
	}
	if !strings.Contains(user, "CHUNK 0 (preview):") || !strings.Contains(user, "CHUNK 1 (preview):") {
		t.Error("prompt missing chunk previews")
	}
	if !strings.Contains(user, "CURRENT SCRATCHPAD:") || !strings.Contains(user, "earlier reasoning") {
		t.Error("prompt missing prior scratchpad")
	}
}

func TestRoute_UnparseableSelectionIsEmptyNotFatal(t *testing.T) {
	chat := &scriptedChat{responses: []openai.ChatCompletionResponse{
		toolCallResponse(`{"text": "reasoning"}`),
		contentResponse(`not json at all`),
	}}
	router := testRouter(chat)

	sel, err := router.Route(context.Background(), "q", testChunks(), 0, Scratchpad{})
	if err != nil {
		t.Fatalf("parse failure must not be fatal, got %v", err)
	}
	if len(sel.SelectedIDs) != 0 {
		t.Errorf("expected empty selection, got %v", sel.SelectedIDs)
	}
	if sel.Scratchpad.Len() != 1 {
		t.Errorf("scratchpad from call 1 should survive a parse failure, got %d entries", sel.Scratchpad.Len())
	}
}

func TestRoute_NoToolCallLeavesScratchpadUnchanged(t *testing.T) {
	chat := &scriptedChat{responses: []openai.ChatCompletionResponse{
		contentResponse("I decline to use tools."),
		contentResponse(`{"chunk_ids": [0]}`),
	}}
	router := testRouter(chat)

	sel, err := router.Route(context.Background(), "q", testChunks(), 0, Scratchpad{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sel.Scratchpad.IsEmpty() {
		t.Errorf("expected empty scratchpad, got %q", sel.Scratchpad.String())
	}
	if len(sel.SelectedIDs) != 1 || sel.SelectedIDs[0] != 0 {
		t.Errorf("expected selection [0], got %v", sel.SelectedIDs)
	}
}

func TestRoute_MalformedToolArgumentsSkipped(t *testing.T) {
	chat := &scriptedChat{responses: []openai.ChatCompletionResponse{
		toolCallResponse(`{{bad json`),
		contentResponse(`{"chunk_ids": [1]}`),
	}}
	router := testRouter(chat)

	sel, err := router.Route(context.Background(), "q", testChunks(), 0, Scratchpad{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !sel.Scratchpad.IsEmpty() {
		t.Errorf("malformed tool arguments must not write to the scratchpad, got %q", sel.Scratchpad.String())
	}
	if len(sel.SelectedIDs) != 1 {
		t.Errorf("selection should still proceed, got %v", sel.SelectedIDs)
	}
}
