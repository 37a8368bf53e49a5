// Package answer synthesizes a cited answer from the passages the navigator
// selected, and enforces that every citation points at one of them.
package answer

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
	"github.com/DJ-Manjaray/longdoc/internal/navigate"
)

// Fallback is returned when navigation selected no passages. No model call
// is made in that case.
const Fallback = "I couldn't find relevant information to answer this question in the document."

// Answer is a synthesized response with citations to paragraph display ids.
type Answer struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

// CitationError reports a citation outside the valid display-id set. The
// answer is rejected rather than silently filtered: a silently dropped
// citation would mask the model pointing at text the user cannot verify.
type CitationError struct {
	Citation string
	Valid    []string
}

func (e *CitationError) Error() string {
	return fmt.Sprintf("invalid citation %q, must be one of: %s", e.Citation, strings.Join(e.Valid, ", "))
}

const synthesisSystemPrompt = `You are a research assistant answering questions about a document.

Answer questions based ONLY on the provided paragraphs. Do not rely on any foundation knowledge or external information or extrapolate from the paragraphs.
Cite phrases of the paragraphs that are relevant to the answer. This will help you be more specific and accurate.
Include citations to paragraph IDs for every statement in your answer. Valid citation IDs are: %s
Keep your answer clear, precise, and professional.`

var answerFormat = &openai.ChatCompletionResponseFormat{
	Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
	JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
		Name:   "cited_answer",
		Strict: true,
		Schema: &jsonschema.Definition{
			Type: jsonschema.Object,
			Properties: map[string]jsonschema.Definition{
				"answer": {
					Type:        jsonschema.String,
					Description: "The answer to the question, grounded in the paragraphs",
				},
				"citations": {
					Type:        jsonschema.Array,
					Items:       &jsonschema.Definition{Type: jsonschema.String},
					Description: "Paragraph IDs cited by the answer",
				},
			},
			Required:             []string{"answer", "citations"},
			AdditionalProperties: false,
		},
	},
}

// Synthesizer produces the final cited answer with one model call.
type Synthesizer struct {
	client      llm.ChatClient
	model       string
	temperature float32
	log         *slog.Logger
}

func NewSynthesizer(client llm.ChatClient, model string, temperature float32, log *slog.Logger) *Synthesizer {
	return &Synthesizer{client: client, model: model, temperature: temperature, log: log}
}

// Synthesize answers question strictly from paragraphs, validating every
// returned citation against the paragraph display ids. An empty paragraph
// set short-circuits to the fallback answer without calling the model.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, paragraphs []chunker.Chunk, pad navigate.Scratchpad) (Answer, error) {
	if len(paragraphs) == 0 {
		return Answer{Answer: Fallback, Citations: []string{}}, nil
	}

	validCitations := make([]string, len(paragraphs))
	var contextBlock strings.Builder
	for i, p := range paragraphs {
		validCitations[i] = p.DisplayID
		fmt.Fprintf(&contextBlock, "PARAGRAPH %s:\n%s\n\n", p.DisplayID, p.Text)
	}

	userPrompt := fmt.Sprintf("QUESTION: %s\n\nSCRATCHPAD (Navigation reasoning):\n%s\n\nPARAGRAPHS:\n%s",
		question, pad.String(), contextBlock.String())

	resp, err := s.client.Chat(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(synthesisSystemPrompt, strings.Join(validCitations, ", "))},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		ResponseFormat: answerFormat,
		Temperature:    s.temperature,
	})
	if err != nil {
		return Answer{}, fmt.Errorf("synthesis call: %w", err)
	}

	content := resp.Choices[0].Message.Content
	var ans Answer
	if err := json.Unmarshal([]byte(content), &ans); err != nil {
		// Recoverable: keep the raw text, drop citations.
		s.log.Warn("could not parse structured answer output", "error", err)
		return Answer{Answer: content, Citations: []string{}}, nil
	}

	if err := validateCitations(ans.Citations, validCitations); err != nil {
		return Answer{}, err
	}
	if ans.Citations == nil {
		ans.Citations = []string{}
	}
	return ans, nil
}

// validateCitations enforces the allow-list synchronously after synthesis.
func validateCitations(citations, valid []string) error {
	allowed := make(map[string]bool, len(valid))
	for _, v := range valid {
		allowed[v] = true
	}
	for _, c := range citations {
		if !allowed[c] {
			return &CitationError{Citation: c, Valid: valid}
		}
	}
	return nil
}
