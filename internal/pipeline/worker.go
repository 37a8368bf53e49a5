package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/DJ-Manjaray/longdoc/internal/parser"
	"github.com/DJ-Manjaray/longdoc/internal/store"
	"github.com/DJ-Manjaray/longdoc/internal/tokenizer"
)

var wordPattern = regexp.MustCompile(`\w+`)

// Worker processes a single document ingestion job.
type Worker struct {
	docs      *store.Store
	tok       tokenizer.Tokenizer
	uploadDir string
	log       *slog.Logger
}

func NewWorker(docs *store.Store, tok tokenizer.Tokenizer, uploadDir string, log *slog.Logger) *Worker {
	return &Worker{docs: docs, tok: tok, uploadDir: uploadDir, log: log}
}

// Process runs the full ingest pipeline for a job: parse, count, store.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Parse.
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	result, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if result.Text == "" {
		job.AddError("no extractable content")
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	title := job.SetTitleIfEmpty(result.Title)

	// Dedup check on the extracted text.
	contentHash := ContentHashHex([]byte(result.Text))
	job.SetContentHash(contentHash)
	if existing, err := w.docs.FindByHash(ctx, contentHash); err != nil {
		log.Warn("dedup check failed, proceeding", "error", err)
	} else if existing != nil {
		log.Info("duplicate document, skipping", "existing_doc_id", existing.ID)
		job.SetDocID(existing.ID)
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}

	// Phase 2: Count pages, words, and tokens.
	job.SetStatus(StatusCounting, "counting")
	words := len(wordPattern.FindAllString(result.Text, -1))
	tokens := tokenizer.Count(w.tok, result.Text)
	job.SetCounts(result.Pages, words, tokens)
	log.Info("document counted", "pages", result.Pages, "words", words, "tokens", tokens)

	// Phase 3: Cache the extracted text and record metadata.
	job.SetStatus(StatusStoring, "storing")
	docID := uuid.NewString()
	textPath := filepath.Join(w.uploadDir, docID+".txt")
	if err := os.WriteFile(textPath, []byte(result.Text), 0o644); err != nil {
		log.Error("text cache write failed", "error", err)
		job.AddError(fmt.Sprintf("write text: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	doc := store.Document{
		ID:          docID,
		Filename:    job.Filename,
		Title:       title,
		TextPath:    textPath,
		PageCount:   result.Pages,
		WordCount:   words,
		TokenCount:  tokens,
		ContentHash: contentHash,
		CreatedAt:   time.Now().UTC(),
	}
	if err := w.docs.Insert(ctx, doc); err != nil {
		os.Remove(textPath)
		log.Error("metadata insert failed", "error", err)
		job.AddError(fmt.Sprintf("store: %s", err))
		job.SetStatus(StatusFailed, "storing")
		return
	}

	job.SetDocID(docID)
	job.SetStatus(StatusCompleted, "done")
	log.Info("ingestion complete", "doc_id", docID)
}
