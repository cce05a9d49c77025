package grouper

import (
	"context"
	"errors"
	"slices"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
)

// ErrNoExtractions is returned when a run has no extraction rows to group.
// Nothing is written in that case.
var ErrNoExtractions = errors.New("grouper: no extractions for run")

// PassOptions tunes the grouping pass.
type PassOptions struct {
	SignalWeights     map[string]float64
	EvidencePerSignal int
}

// Summary is the JSON object the group command prints: distinct products and
// upsert counts per table.
type Summary struct {
	RunID              string `json:"run_id"`
	Ads                int    `json:"ads"`
	Products           int    `json:"products"`
	UnknownAds         int    `json:"unknown_ads"`
	ConceptUpserts     int    `json:"product_concept_upserts"`
	ObservationUpserts int    `json:"product_observation_upserts"`
	AssignmentUpserts  int    `json:"ad_to_product_upserts"`
	RelationUpserts    int    `json:"advertiser_product_upserts"`
}

// Pass aggregates one run's extractions into product concepts.
type Pass struct {
	store store.Store
	opts  PassOptions
}

// NewPass creates a grouping pass.
func NewPass(st store.Store, opts PassOptions) *Pass {
	if opts.EvidencePerSignal <= 0 {
		opts.EvidencePerSignal = 2
	}
	return &Pass{store: st, opts: opts}
}

type adRef struct {
	adID         string
	advertiserID string
	confidence   float64
}

type bucket struct {
	basis       model.MatchBasis
	names       map[string]int
	categories  map[string]int
	subcats     map[string]int
	signals     model.SignalMap
	evidence    map[string][]string
	confSum     float64
	ads         []adRef
	advertisers map[string]struct{}
	firstSeen   string
	lastSeen    string
	canonical   string
}

func newBucket(basis model.MatchBasis) *bucket {
	return &bucket{
		basis:       basis,
		names:       make(map[string]int),
		categories:  make(map[string]int),
		subcats:     make(map[string]int),
		signals:     make(model.SignalMap),
		evidence:    make(map[string][]string),
		advertisers: make(map[string]struct{}),
	}
}

// Run groups all extractions for runID and upserts product concepts, per-run
// rollups, ad assignments, and advertiser relationships. Re-running with
// unchanged upstream data converges to identical rows.
func (p *Pass) Run(ctx context.Context, runID string) (Summary, error) {
	logger := zap.L().With(zap.String("run_id", runID))
	summary := Summary{RunID: runID}

	extractions, err := p.store.ListExtractions(ctx, runID)
	if err != nil {
		return summary, err
	}
	if len(extractions) == 0 {
		return summary, ErrNoExtractions
	}
	summary.Ads = len(extractions)

	snapshots, err := p.store.ListSnapshots(ctx, runID)
	if err != nil {
		return summary, err
	}
	snapByAd := make(map[string]model.Snapshot, len(snapshots))
	for _, s := range snapshots {
		snapByAd[s.AdID] = s
	}

	adHashes, err := p.store.AdHashes(ctx, runID)
	if err != nil {
		return summary, err
	}
	semMap, err := p.store.SemanticMap(ctx, runID)
	if err != nil {
		return summary, err
	}

	buckets := make(map[string]*bucket)
	assignments := make([]model.AdAssignment, 0, len(extractions))
	now := time.Now().UTC().Format(time.RFC3339)

	for _, ex := range extractions {
		productID, basis := Resolve(ex, adHashes[ex.AdID], semMap)
		if productID == model.UnknownCluster {
			summary.UnknownAds++
		}

		snap := snapByAd[ex.AdID]
		observedAt := snap.ObservedAt
		if observedAt == "" {
			observedAt = now
		}

		b, ok := buckets[productID]
		if !ok {
			b = newBucket(basis)
			if basis == model.BasisSemantic {
				b.canonical = semMap[ex.NameGuess].CanonicalName
			}
			buckets[productID] = b
		}

		if ex.NameGuess != "" {
			b.names[ex.NameGuess]++
		}
		if ex.Category != "" {
			b.categories[ex.Category]++
		}
		if ex.Subcategory != "" {
			b.subcats[ex.Subcategory]++
		}
		for sig, on := range ex.Signals {
			if !on {
				continue
			}
			b.signals[sig] = true
			for _, span := range ex.Evidence[sig] {
				if len(b.evidence[sig]) >= p.opts.EvidencePerSignal {
					break
				}
				// Many ads quote the same phrase; keep each span once.
				if slices.Contains(b.evidence[sig], span) {
					continue
				}
				b.evidence[sig] = append(b.evidence[sig], span)
			}
		}
		b.confSum += ex.Confidence
		b.ads = append(b.ads, adRef{adID: ex.AdID, advertiserID: snap.AdvertiserID, confidence: ex.Confidence})
		if snap.AdvertiserID != "" {
			b.advertisers[snap.AdvertiserID] = struct{}{}
		}
		if b.firstSeen == "" || observedAt < b.firstSeen {
			b.firstSeen = observedAt
		}
		if observedAt > b.lastSeen {
			b.lastSeen = observedAt
		}

		assignments = append(assignments, model.AdAssignment{
			RunID:        runID,
			AdID:         ex.AdID,
			ProductID:    productID,
			AdvertiserID: snap.AdvertiserID,
			MatchBasis:   basis,
			Confidence:   ex.Confidence,
			CreatedAt:    now,
		})
	}
	summary.Products = len(buckets)

	productIDs := make([]string, 0, len(buckets))
	for id := range buckets {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	for _, productID := range productIDs {
		b := buckets[productID]
		avgConf := b.confSum / float64(len(b.ads))
		score, reasons := Score(avgConf, b.signals, p.opts.SignalWeights)

		name := b.canonical
		if name == "" {
			name = mode(b.names)
		}

		concept := model.ProductConcept{
			ProductID:     productID,
			CanonicalName: name,
			Category:      mode(b.categories),
			Subcategory:   mode(b.subcats),
			Signals:       b.signals,
			Rationale: model.Rationale{
				Reasons:          reasons,
				Evidence:         b.evidence,
				AvgConfidence:    avgConf,
				AdsCount:         len(b.ads),
				AdvertisersCount: len(b.advertisers),
			},
			CandidateScore: score,
			FirstSeenAt:    b.firstSeen,
			LastSeenAt:     b.lastSeen,
		}
		if err := p.store.UpsertProductConcept(ctx, concept); err != nil {
			return summary, err
		}
		summary.ConceptUpserts++

		if err := p.store.UpsertObservation(ctx, model.Observation{
			RunID:            runID,
			ProductID:        productID,
			AdsCount:         len(b.ads),
			AdvertisersCount: len(b.advertisers),
			AvgConfidence:    avgConf,
			CreatedAt:        now,
		}); err != nil {
			return summary, err
		}
		summary.ObservationUpserts++

		advertiserIDs := make([]string, 0, len(b.advertisers))
		for id := range b.advertisers {
			advertiserIDs = append(advertiserIDs, id)
		}
		sort.Strings(advertiserIDs)
		for _, advertiserID := range advertiserIDs {
			if err := p.store.UpsertAdvertiserProduct(ctx, model.AdvertiserProduct{
				AdvertiserID: advertiserID,
				ProductID:    productID,
				FirstSeenAt:  b.firstSeen,
				LastSeenAt:   b.lastSeen,
				LastRunID:    runID,
				Status:       "active",
			}); err != nil {
				return summary, err
			}
			summary.RelationUpserts++
		}
	}

	for _, a := range assignments {
		if err := p.store.UpsertAdAssignment(ctx, a); err != nil {
			return summary, err
		}
		summary.AssignmentUpserts++
	}

	logger.Info("group pass done",
		zap.Int("ads", summary.Ads),
		zap.Int("products", summary.Products),
		zap.Int("unknown_ads", summary.UnknownAds),
	)
	return summary, nil
}

// mode returns the most frequent key, ties broken by shortest then
// lexicographically smallest.
func mode(counts map[string]int) string {
	best := ""
	bestCount := -1
	for k, c := range counts {
		switch {
		case c > bestCount:
			best, bestCount = k, c
		case c == bestCount && len(k) < len(best):
			best = k
		case c == bestCount && len(k) == len(best) && k < best:
			best = k
		}
	}
	if bestCount <= 0 {
		return ""
	}
	return best
}
