package imagehash

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
)

// Target is one ad/image pair queued for fingerprinting.
type Target struct {
	AdID     string
	ImageURL string
}

// Summary reports what a hash pass did.
type Summary struct {
	RunID   string `json:"run_id"`
	Targets int    `json:"targets"`
	Cached  int    `json:"cached"`
	Fetched int    `json:"fetched"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}

// PassOptions tunes the concurrent hash pass.
type PassOptions struct {
	Workers    int
	FlushEvery int
}

// Pass runs the image fingerprinting stage for one run: it resolves each
// target against the URL cache, downloads and hashes the misses with a worker
// pool, and links every resolved hash to its ad.
type Pass struct {
	store   store.Store
	fetcher *Fetcher
	opts    PassOptions
}

// NewPass creates a hash pass over the given store and fetcher.
func NewPass(st store.Store, fetcher *Fetcher, opts PassOptions) *Pass {
	if opts.Workers <= 0 {
		opts.Workers = 12
	}
	if opts.FlushEvery <= 0 {
		opts.FlushEvery = 50
	}
	return &Pass{store: st, fetcher: fetcher, opts: opts}
}

// Run fingerprints all targets for runID. Individual image failures are
// logged and counted, never fatal; newly computed hashes are flushed to the
// cache in batches so an interrupted pass keeps its progress.
func (p *Pass) Run(ctx context.Context, runID string, targets []Target) (Summary, error) {
	logger := zap.L().With(zap.String("run_id", runID))
	summary := Summary{RunID: runID, Targets: len(targets)}

	cache, err := p.store.ImageCache(ctx)
	if err != nil {
		return summary, err
	}
	seen, err := p.store.AdMediaSeen(ctx, runID)
	if err != nil {
		return summary, err
	}

	// Work units are unique URLs, not targets: many ads share a creative and
	// one fetch covers all of them.
	pendingURLs := make([]string, 0, len(targets))
	inQueue := make(map[string]struct{})
	for _, t := range targets {
		if _, done := seen[store.MediaKey(t.AdID, t.ImageURL)]; done {
			summary.Skipped++
			continue
		}
		if _, ok := cache[t.ImageURL]; ok {
			summary.Cached++
			continue
		}
		if _, queued := inQueue[t.ImageURL]; queued {
			continue
		}
		inQueue[t.ImageURL] = struct{}{}
		pendingURLs = append(pendingURLs, t.ImageURL)
	}

	logger.Info("hash pass starting",
		zap.Int("targets", len(targets)),
		zap.Int("cached_urls", len(cache)),
		zap.Int("to_fetch", len(pendingURLs)),
	)

	var mu sync.Mutex
	var batch []model.ImageFingerprint

	flush := func() error {
		mu.Lock()
		toFlush := batch
		batch = nil
		mu.Unlock()
		if len(toFlush) == 0 {
			return nil
		}
		return p.store.UpsertFingerprints(ctx, toFlush)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for _, rawURL := range pendingURLs {
		g.Go(func() error {
			hash, err := p.fetcher.FetchHash(gctx, rawURL)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logger.Warn("image hash failed",
					zap.String("url", rawURL),
					zap.Bool("undecodable", errors.Is(err, ErrUnhashable)),
					zap.Error(err),
				)
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			cache[rawURL] = hash
			summary.Fetched++
			batch = append(batch, model.ImageFingerprint{
				ImageURL:  rawURL,
				DHash64:   hash,
				FetchedAt: time.Now().UTC().Format(time.RFC3339),
			})
			full := len(batch) >= p.opts.FlushEvery
			mu.Unlock()

			if full {
				return flush()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Persist whatever finished before the failure.
		if ferr := flush(); ferr != nil {
			logger.Warn("flush after failure", zap.Error(ferr))
		}
		return summary, eris.Wrap(err, "imagehash: pass")
	}
	if err := flush(); err != nil {
		return summary, err
	}

	// Link every target whose URL now has a hash.
	var media []model.AdMedia
	for _, t := range targets {
		if _, done := seen[store.MediaKey(t.AdID, t.ImageURL)]; done {
			continue
		}
		hash, ok := cache[t.ImageURL]
		if !ok {
			continue
		}
		media = append(media, model.AdMedia{
			RunID:    runID,
			AdID:     t.AdID,
			ImageURL: t.ImageURL,
			DHash64:  hash,
		})
	}
	if err := p.store.InsertAdMedia(ctx, media); err != nil {
		return summary, err
	}

	logger.Info("hash pass done",
		zap.Int("fetched", summary.Fetched),
		zap.Int("cached", summary.Cached),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}
