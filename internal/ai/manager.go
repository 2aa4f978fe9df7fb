package ai

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const (
	classifyInputRunes  = 1000
	summarizeInputRunes = 3000

	// NotInNotesReply is what the grounded prompt tells the model to say
	// when the context does not cover the question.
	NotInNotesReply = "This topic doesn't appear in your uploaded notes."
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Classification is the parsed result of a classify call. Nil fields mean
// the model could not tell.
type Classification struct {
	Subject *string
	Topic   *string
	Chapter *string
}

type Manager struct {
	classifier IGenerator
	summarizer IGenerator
	answerer   IGenerator
	embedder   IEmbedder
	cfg        ManagerConfig
}

func NewManager(
	classifier IGenerator,
	summarizer IGenerator,
	answerer IGenerator,
	embedder IEmbedder,
	cfg ManagerConfig,
) *Manager {
	return &Manager{
		classifier: classifier,
		summarizer: summarizer,
		answerer:   answerer,
		embedder:   embedder,
		cfg:        cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured: %w", ErrUnavailable)
	}
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	return m.embedder.Embed(ctx, m.clip(text), taskType)
}

func (m *Manager) Classify(ctx context.Context, text string) (*Classification, error) {
	if m.classifier == nil {
		return nil, fmt.Errorf("classifier not configured: %w", ErrUnavailable)
	}
	prompt := fmt.Sprintf(`Analyze this academic text and identify:
1. Subject (e.g., DBMS, Operating Systems, Machine Learning, Mathematics, Physics, etc.)
2. Topic (specific topic within the subject)
3. Chapter (chapter name if identifiable, else null)

Text:
%s

Respond in this exact format (no extra text):
SUBJECT: <subject name>
TOPIC: <topic name>
CHAPTER: <chapter name or null>`, headRunes(text, classifyInputRunes))
	result, err := m.generateText(ctx, m.classifier, prompt)
	if err != nil {
		return nil, err
	}
	return parseClassification(result), nil
}

func (m *Manager) Summarize(ctx context.Context, text string) (string, error) {
	if m.summarizer == nil {
		return "", fmt.Errorf("summarizer not configured: %w", ErrUnavailable)
	}
	prompt := fmt.Sprintf(`Create a concise summary (3-5 bullet points) of this academic content.
Focus on key concepts and important points.
Output ONLY the bullet points.

Content:
%s

Format:
• Point 1
• Point 2
• Point 3`, headRunes(text, summarizeInputRunes))
	return m.generateText(ctx, m.summarizer, prompt)
}

// AnswerGrounded asks the model to answer question using only contextText.
func (m *Manager) AnswerGrounded(ctx context.Context, question string, contextText string) (string, error) {
	if m.answerer == nil {
		return "", fmt.Errorf("answerer not configured: %w", ErrUnavailable)
	}
	prompt := fmt.Sprintf(`You are a helpful study assistant. Answer the student's question
using ONLY the provided context from their notes.

If the answer is not in the context, say:
"%s"

Be clear, concise, and educational in your response.

CONTEXT FROM STUDENT'S NOTES:
%s

STUDENT'S QUESTION:
%s

ANSWER:`, NotInNotesReply, m.clip(contextText), question)
	return m.generateText(ctx, m.answerer, prompt)
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) generateText(ctx context.Context, gen IGenerator, prompt string) (string, error) {
	ctx, cancel := m.withTimeout(ctx)
	defer cancel()
	resp, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.cfg.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
}

func (m *Manager) clip(text string) string {
	if m.cfg.MaxInputChars <= 0 {
		return text
	}
	return headRunes(text, m.cfg.MaxInputChars)
}

func headRunes(text string, n int) string {
	if n <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
