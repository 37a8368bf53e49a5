package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"

	"github.com/DJ-Manjaray/longdoc/internal/answer"
	"github.com/DJ-Manjaray/longdoc/internal/llm"
	"github.com/DJ-Manjaray/longdoc/internal/store"
)

// maxAskDepth caps the per-request descent depth to bound model-call fanout.
const maxAskDepth = 5

type askRequest struct {
	DocumentID string `json:"document_id"`
	Question   string `json:"question"`
	MaxDepth   *int   `json:"max_depth,omitempty"`
}

type askResponse struct {
	Answer     string   `json:"answer"`
	Citations  []string `json:"citations"`
	Scratchpad string   `json:"scratchpad"`
}

// handleAsk answers a question against a stored document by navigating to
// the relevant paragraphs and synthesizing a cited answer.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.DocumentID == "" {
		jsonError(w, "document_id is required", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		jsonError(w, "question is required", http.StatusBadRequest)
		return
	}
	maxDepth := s.cfg.DefaultMaxDepth
	if req.MaxDepth != nil {
		maxDepth = *req.MaxDepth
	}
	if maxDepth < 0 {
		maxDepth = 0
	}
	if maxDepth > maxAskDepth {
		maxDepth = maxAskDepth
	}

	ctx := r.Context()
	doc, err := s.docs.Get(ctx, req.DocumentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			jsonError(w, "document not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	text, err := os.ReadFile(doc.TextPath)
	if err != nil {
		s.log.Error("cached text unreadable", "doc_id", doc.ID, "path", doc.TextPath, "error", err)
		jsonError(w, "document text unavailable", http.StatusInternalServerError)
		return
	}

	result, err := s.navigator.Navigate(ctx, string(text), req.Question, maxDepth)
	if err != nil {
		s.writeLLMError(w, err, "navigation failed")
		return
	}

	ans, err := s.synthesizer.Synthesize(ctx, req.Question, result.Paragraphs, result.Scratchpad)
	if err != nil {
		s.writeLLMError(w, err, "answer synthesis failed")
		return
	}

	citations := ans.Citations
	if citations == nil {
		citations = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(askResponse{
		Answer:     ans.Answer,
		Citations:  citations,
		Scratchpad: result.Scratchpad.String(),
	})
}

func (s *Server) writeLLMError(w http.ResponseWriter, err error, prefix string) {
	var citErr *answer.CitationError
	switch {
	case errors.Is(err, llm.ErrNotConfigured):
		jsonError(w, "LLM is not configured: set OPENAI_API_KEY", http.StatusInternalServerError)
	case errors.As(err, &citErr):
		jsonError(w, prefix+": "+citErr.Error(), http.StatusBadGateway)
	default:
		jsonError(w, prefix+": "+err.Error(), http.StatusBadGateway)
	}
}
