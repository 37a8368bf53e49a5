package answer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/DJ-Manjaray/longdoc/internal/chunker"
	"github.com/DJ-Manjaray/longdoc/internal/navigate"
)

type stubChat struct {
	response openai.ChatCompletionResponse
	err      error
	calls    int
	lastReq  openai.ChatCompletionRequest
}

func (c *stubChat) Chat(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.calls++
	c.lastReq = req
	return c.response, c.err
}

func answerResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			},
		}},
	}
}

func testParagraphs() []chunker.Chunk {
	return []chunker.Chunk{
		{ID: 0, DisplayID: "1.0", Text: "The whale was white."},
		{ID: 1, DisplayID: "1.2", Text: "The ship sailed from Nantucket."},
	}
}

func testSynthesizer(chat *stubChat) *Synthesizer {
	return NewSynthesizer(chat, "answer-model", 0.3, slog.New(slog.DiscardHandler))
}

func TestSynthesize_EmptyParagraphsReturnsFallbackWithoutModelCall(t *testing.T) {
	chat := &stubChat{}
	s := testSynthesizer(chat)

	ans, err := s.Synthesize(context.Background(), "what color?", nil, navigate.Scratchpad{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != Fallback {
		t.Errorf("expected fallback answer, got %q", ans.Answer)
	}
	if len(ans.Citations) != 0 {
		t.Errorf("expected no citations, got %v", ans.Citations)
	}
	if chat.calls != 0 {
		t.Errorf("expected no model calls, got %d", chat.calls)
	}
}

func TestSynthesize_ValidCitedAnswer(t *testing.T) {
	chat := &stubChat{response: answerResponse(`{"answer": "The whale was white.", "citations": ["1.0"]}`)}
	s := testSynthesizer(chat)

	ans, err := s.Synthesize(context.Background(), "what color?", testParagraphs(), navigate.Scratchpad{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Answer != "The whale was white." {
		t.Errorf("unexpected answer %q", ans.Answer)
	}
	if len(ans.Citations) != 1 || ans.Citations[0] != "1.0" {
		t.Errorf("expected citations [1.0], got %v", ans.Citations)
	}
}

func TestSynthesize_PromptCarriesParagraphsAndScratchpad(t *testing.T) {
	chat := &stubChat{response: answerResponse(`{"answer": "ok", "citations": []}`)}
	s := testSynthesizer(chat)

	pad := navigate.Scratchpad{}.WithEntry(0, "looked for color references")
	_, err := s.Synthesize(context.Background(), "what color?", testParagraphs(), pad)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	system := chat.lastReq.Messages[0].Content
	if !strings.Contains(system, "1.0, 1.2") {
		t.Errorf("system prompt missing valid citation ids: %q", system)
	}
	user := chat.lastReq.Messages[1].Content
	if !strings.Contains(user, "QUESTION: what color?") {
		t.Error("user prompt missing question")
	}
	if !strings.Contains(user, "PARAGRAPH 1.0:\nThe whale was white.") {
		t.Error("user prompt missing paragraph text")
	}
	if !strings.Contains(user, "looked for color references") {
		t.Error("user prompt missing scratchpad")
	}
	if chat.lastReq.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", chat.lastReq.Temperature)
	}
	if chat.lastReq.ResponseFormat == nil || chat.lastReq.ResponseFormat.JSONSchema == nil ||
		chat.lastReq.ResponseFormat.JSONSchema.Name != "cited_answer" {
		t.Error("request missing cited_answer response format")
	}
}

func TestSynthesize_InvalidCitationIsRejected(t *testing.T) {
	chat := &stubChat{response: answerResponse(`{"answer": "made up", "citations": ["7.7"]}`)}
	s := testSynthesizer(chat)

	_, err := s.Synthesize(context.Background(), "q", testParagraphs(), navigate.Scratchpad{})
	var citErr *CitationError
	if !errors.As(err, &citErr) {
		t.Fatalf("expected CitationError, got %v", err)
	}
	if citErr.Citation != "7.7" {
		t.Errorf("expected offending citation 7.7, got %q", citErr.Citation)
	}
	if len(citErr.Valid) != 2 {
		t.Errorf("expected 2 valid ids in error, got %v", citErr.Valid)
	}
}

func TestSynthesize_UnparseableOutputKeepsRawText(t *testing.T) {
	chat := &stubChat{response: answerResponse("plain prose, not JSON")}
	s := testSynthesizer(chat)

	ans, err := s.Synthesize(context.Background(), "q", testParagraphs(), navigate.Scratchpad{})
	if err != nil {
		t.Fatalf("parse failure must not be fatal, got %v", err)
	}
	if ans.Answer != "plain prose, not JSON" {
		t.Errorf("expected raw content kept, got %q", ans.Answer)
	}
	if len(ans.Citations) != 0 {
		t.Errorf("expected no citations, got %v", ans.Citations)
	}
}

func TestSynthesize_ModelErrorPropagates(t *testing.T) {
	chat := &stubChat{err: errors.New("boom")}
	s := testSynthesizer(chat)

	_, err := s.Synthesize(context.Background(), "q", testParagraphs(), navigate.Scratchpad{})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected wrapped model error, got %v", err)
	}
}

func TestSynthesize_AnyCitationSubsetAccepted(t *testing.T) {
	paragraphs := []chunker.Chunk{
		{ID: 0, DisplayID: "0", Text: "a"},
		{ID: 1, DisplayID: "2.1", Text: "b"},
		{ID: 2, DisplayID: "2.4", Text: "c"},
		{ID: 3, DisplayID: "5.0.3", Text: "d"},
	}
	valid := []string{"0", "2.1", "2.4", "5.0.3"}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 50; trial++ {
		var subset []string
		for _, id := range valid {
			if rng.Intn(2) == 0 {
				subset = append(subset, id)
			}
		}
		body, _ := json.Marshal(Answer{Answer: "ok", Citations: subset})
		chat := &stubChat{response: answerResponse(string(body))}
		s := testSynthesizer(chat)

		ans, err := s.Synthesize(context.Background(), "q", paragraphs, navigate.Scratchpad{})
		if err != nil {
			t.Fatalf("trial %d: subset %v rejected: %v", trial, subset, err)
		}
		if len(ans.Citations) != len(subset) {
			t.Fatalf("trial %d: citations mangled: got %v want %v", trial, ans.Citations, subset)
		}
	}
}

func TestSynthesize_NullCitationsNormalizedToEmpty(t *testing.T) {
	chat := &stubChat{response: answerResponse(`{"answer": "ok", "citations": null}`)}
	s := testSynthesizer(chat)

	ans, err := s.Synthesize(context.Background(), "q", testParagraphs(), navigate.Scratchpad{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ans.Citations == nil || len(ans.Citations) != 0 {
		t.Errorf("expected empty non-nil citations, got %#v", ans.Citations)
	}
}
