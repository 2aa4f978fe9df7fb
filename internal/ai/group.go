package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// GeneratorEntry is one configured chat backend, in fallback order.
type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

// EmbedderEntry is one configured embedding backend, in fallback order.
type EmbedderEntry struct {
	Name     string
	Embedder IEmbedder
}

// fallback runs call against each backend in turn until one succeeds. A
// cancelled ctx stops the walk; the caller's deadline covers the whole chain.
func fallback[B any, R any](ctx context.Context, kind string, names []string, backends []B, call func(B) (R, error)) (R, error) {
	var zero R
	var lastErr error
	for i, backend := range backends {
		res, err := call(backend)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		logutil.GetLogger(ctx).Warn("ai backend failed, trying next",
			zap.String("kind", kind),
			zap.String("name", names[i]),
			zap.Int("remaining", len(backends)-i-1),
			zap.Error(err),
		)
	}
	if lastErr == nil {
		return zero, ErrUnavailable
	}
	return zero, lastErr
}

type groupGenerator struct {
	names []string
	gens  []IGenerator
}

// NewGroupGenerator returns nil when no entry carries a generator, which
// the manager treats as "summaries and classification unavailable".
func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	g := &groupGenerator{}
	for _, item := range items {
		if item.Generator == nil {
			continue
		}
		g.names = append(g.names, item.Name)
		g.gens = append(g.gens, item.Generator)
	}
	if len(g.gens) == 0 {
		return nil
	}
	return g
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return fallback(ctx, "generator", g.names, g.gens, func(gen IGenerator) (string, error) {
		return gen.Generate(ctx, prompt)
	})
}

type groupEmbedder struct {
	names []string
	embs  []IEmbedder
}

func NewGroupEmbedder(items []EmbedderEntry) IEmbedder {
	g := &groupEmbedder{}
	for _, item := range items {
		if item.Embedder == nil {
			continue
		}
		g.names = append(g.names, item.Name)
		g.embs = append(g.embs, item.Embedder)
	}
	if len(g.embs) == 0 {
		return nil
	}
	return g
}

func (g *groupEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return fallback(ctx, "embedder", g.names, g.embs, func(e IEmbedder) ([]float32, error) {
		return e.Embed(ctx, text, taskType)
	})
}

// ModelName joins the member model names. Cached vectors are keyed by it, so
// reordering or swapping embedders starts a fresh cache namespace instead of
// mixing dimensions in one student collection.
func (g *groupEmbedder) ModelName() string {
	names := make([]string, 0, len(g.embs))
	for _, e := range g.embs {
		names = append(names, e.ModelName())
	}
	return strings.Join(names, "|")
}
