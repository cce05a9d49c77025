package semantic

import (
	"context"

	"go.uber.org/zap"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
	"github.com/adscope/explorer-cli/pkg/openai"
)

// PassOptions tunes the semantic clustering pass.
type PassOptions struct {
	Model             string
	BatchSize         int
	DistanceThreshold float64
}

// Pass runs semantic clustering for one run: embed every distinct
// product-name guess, cluster the vectors, elect canonical names, and persist
// the name -> cluster mapping.
type Pass struct {
	store  store.Store
	client openai.Client
	opts   PassOptions
}

// Summary reports what a semantic pass did.
type Summary struct {
	RunID    string `json:"run_id"`
	Names    int    `json:"names"`
	Clusters int    `json:"clusters"`
}

// NewPass creates a semantic pass.
func NewPass(st store.Store, client openai.Client, opts PassOptions) *Pass {
	if opts.Model == "" {
		opts.Model = "text-embedding-3-small"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.DistanceThreshold <= 0 {
		opts.DistanceThreshold = 0.45
	}
	return &Pass{store: st, client: client, opts: opts}
}

// Run executes the pass. The semantic map is written in one transaction after
// every name has an embedding, so a failed embedding call leaves no partial
// mapping behind.
func (p *Pass) Run(ctx context.Context, runID string) (Summary, error) {
	logger := zap.L().With(zap.String("run_id", runID))
	summary := Summary{RunID: runID}

	names, err := p.store.DistinctNames(ctx, runID)
	if err != nil {
		return summary, err
	}
	summary.Names = len(names)
	if len(names) == 0 {
		logger.Info("semantic pass: no names to cluster")
		return summary, nil
	}

	vectors := make([][]float64, 0, len(names))
	for start := 0; start < len(names); start += p.opts.BatchSize {
		end := min(start+p.opts.BatchSize, len(names))
		batch, err := p.client.Embeddings(ctx, p.opts.Model, names[start:end])
		if err != nil {
			return summary, err
		}
		vectors = append(vectors, batch...)
	}
	for i := range vectors {
		vectors[i] = L2Normalize(vectors[i])
	}

	labels := Agglomerative(vectors, p.opts.DistanceThreshold)

	members := make(map[int][]string)
	for i, name := range names {
		members[labels[i]] = append(members[labels[i]], name)
	}
	summary.Clusters = len(members)

	adCounts, err := p.store.NameCounts(ctx, runID)
	if err != nil {
		return summary, err
	}

	canonical := make(map[int]string, len(members))
	for id, names := range members {
		canonical[id] = ElectCanonical(names, adCounts)
	}

	entries := make([]model.SemanticEntry, 0, len(names))
	for i, name := range names {
		entries = append(entries, model.SemanticEntry{
			RunID:         runID,
			OriginalName:  name,
			ClusterID:     labels[i],
			CanonicalName: canonical[labels[i]],
		})
	}
	if err := p.store.UpsertSemanticEntries(ctx, entries); err != nil {
		return summary, err
	}

	logger.Info("semantic pass done",
		zap.Int("names", summary.Names),
		zap.Int("clusters", summary.Clusters),
	)
	return summary, nil
}
