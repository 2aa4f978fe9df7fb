package ai

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const defaultLocalDimension = 256

var localTokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+`)

type localConfig struct {
	Dimension int `json:"dimension"`
}

// localEmbedProvider hashes word tokens into a fixed number of buckets and
// L2-normalizes the counts. It needs no network and is deterministic, which
// makes it usable offline and in tests.
type localEmbedProvider struct {
	dimension int
}

func NewLocalEmbedProvider(dimension int) IEmbedProvider {
	if dimension <= 0 {
		dimension = defaultLocalDimension
	}
	return &localEmbedProvider{dimension: dimension}
}

func (p *localEmbedProvider) Name() string {
	return "local"
}

func (p *localEmbedProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make([]float64, p.dimension)
	for _, tok := range localTokenPattern.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[int(h.Sum32()%uint32(p.dimension))]++
	}
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, p.dimension)
	if norm == 0 {
		return out, nil
	}
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func createLocalEmbedFactory(args interface{}) (IEmbedProvider, error) {
	cfg := &localConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	return NewLocalEmbedProvider(cfg.Dimension), nil
}

func init() {
	RegisterEmbed("local", createLocalEmbedFactory)
}
