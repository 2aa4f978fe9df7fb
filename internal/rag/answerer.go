package rag

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/notesrag/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	DefaultTopK = 5

	NotFoundAnswer = "I couldn't find relevant information in your notes to answer this question. Try uploading more notes on this topic."
	ApologyAnswer  = "Sorry, I couldn't generate an answer right now. Please try again."

	contextSeparator = "\n\n---\n\n"
	sourceSeparator  = " — "
)

type Searcher interface {
	Search(ctx context.Context, studentID, query string, k int, filter map[string]string) []vectorstore.Result
}

type Generator interface {
	AnswerGrounded(ctx context.Context, question string, contextText string) (string, error)
}

type Answer struct {
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Sources  []string `json:"sources"`
}

type Answerer struct {
	searcher Searcher
	gen      Generator
	topK     int
}

func New(searcher Searcher, gen Generator, topK int) *Answerer {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &Answerer{searcher: searcher, gen: gen, topK: topK}
}

// Answer always returns a usable answer. With no matching chunks the model
// is not called at all.
func (a *Answerer) Answer(ctx context.Context, studentID, question, subject string) *Answer {
	ctx, span := otel.Tracer("notesrag/rag").Start(ctx, "rag.answer")
	defer span.End()

	logger := logutil.GetLogger(ctx).With(zap.String("student_id", studentID))
	var filter map[string]string
	if subject = strings.TrimSpace(subject); subject != "" {
		filter = map[string]string{vectorstore.MetaSubject: subject}
	}
	hits := a.searcher.Search(ctx, studentID, question, a.topK, filter)
	span.SetAttributes(attribute.Int("rag.hits", len(hits)), attribute.Bool("rag.subject_filter", filter != nil))
	if len(hits) == 0 {
		logger.Info("no chunks matched question")
		return &Answer{Question: question, Answer: NotFoundAnswer, Sources: []string{}}
	}

	texts := make([]string, 0, len(hits))
	for _, hit := range hits {
		texts = append(texts, hit.Text)
	}
	sources := collectSources(hits)

	text, err := a.gen.AnswerGrounded(ctx, question, strings.Join(texts, contextSeparator))
	if err != nil {
		logger.Error("generate answer failed", zap.Int("hits", len(hits)), zap.Error(err))
		span.SetAttributes(attribute.Bool("rag.generation_failed", true))
		return &Answer{Question: question, Answer: ApologyAnswer, Sources: sources}
	}
	return &Answer{Question: question, Answer: text, Sources: sources}
}

// collectSources returns one label per distinct subject and file pair, in first-seen order.
func collectSources(hits []vectorstore.Result) []string {
	seen := make(map[string]struct{}, len(hits))
	out := make([]string, 0, len(hits))
	for _, hit := range hits {
		src := hit.Metadata[vectorstore.MetaSubject] + sourceSeparator + hit.Metadata[vectorstore.MetaFileName]
		if _, ok := seen[src]; ok {
			continue
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	return out
}
