// Package extract runs the LLM product extractor over ad snapshots that have
// no extraction row yet. Each ad's creative text is analyzed into a product
// name guess, a closed-taxonomy category, boolean commercial signals with
// verbatim evidence spans, and a confidence.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adscope/explorer-cli/internal/ingest"
	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
	"github.com/adscope/explorer-cli/internal/taxonomy"
	"github.com/adscope/explorer-cli/pkg/anthropic"
)

// maxConcurrency limits concurrent CreateMessage calls.
const maxConcurrency = 8

// maxBodyChars truncates very long creative bodies before prompting.
const maxBodyChars = 4000

const systemText = `You are an ads analyst for Latin American e-commerce. You receive the text of one Facebook ad and extract what product or service it sells.

Return ONLY a valid JSON object with exactly these keys:
{
  "product_name_guess": <short generic product name in Spanish, lowercase, or null>,
  "category": <one category name from the taxonomy below, or null>,
  "subcategory": <one subcategory of that category, or null>,
  "signals": {"cod": bool, "free_shipping": bool, "nationwide_shipping": bool, "whatsapp_cta": bool, "discount_offer": bool, "urgency": bool, "guarantee_trust": bool, "cash_price": bool},
  "evidence": {<signal name>: [<verbatim phrases from the ad that support it>]},
  "confidence": <0.0-1.0>
}

Mark a signal true only when the ad text supports it, and quote the supporting phrase verbatim in evidence. Use null for anything you cannot determine.

Taxonomy:
%s`

const userPrompt = `Ad title: %s
Call to action: %s
Link: %s

Ad text:
%s`

// Options tunes the extraction pass.
type Options struct {
	Model     string
	MaxTokens int64
}

// Summary reports one extraction pass.
type Summary struct {
	RunID     string `json:"run_id"`
	Snapshots int    `json:"snapshots"`
	Extracted int    `json:"extracted"`
	Invalid   int    `json:"invalid"`
	Failed    int    `json:"failed"`
}

// Pass extracts product structure from pending snapshots.
type Pass struct {
	store     store.Store
	client    anthropic.Client
	tax       *taxonomy.Taxonomy
	validator *ingest.ExtractionValidator
	opts      Options
}

// NewPass wires an extraction pass. The validator enforces the same row
// schema used for file-based extraction ingest, so both paths admit
// identical rows.
func NewPass(st store.Store, client anthropic.Client, tax *taxonomy.Taxonomy, opts Options) (*Pass, error) {
	if tax == nil {
		tax = taxonomy.Default()
	}
	if opts.Model == "" {
		opts.Model = "claude-haiku-4-5-20251001"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 1024
	}
	validator, err := ingest.NewExtractionValidator(tax)
	if err != nil {
		return nil, err
	}
	return &Pass{store: st, client: client, tax: tax, validator: validator, opts: opts}, nil
}

// Run extracts every snapshot of the run that has no extraction row yet.
// Individual ad failures are counted, never fatal; a run with nothing
// pending is a no-op.
func (p *Pass) Run(ctx context.Context, runID string) (Summary, error) {
	logger := zap.L().With(zap.String("run_id", runID))
	summary := Summary{RunID: runID}

	snaps, err := p.store.ListUnextractedSnapshots(ctx, runID)
	if err != nil {
		return summary, err
	}
	summary.Snapshots = len(snaps)
	if len(snaps) == 0 {
		logger.Info("no snapshots pending extraction")
		return summary, nil
	}

	system := anthropic.BuildCachedSystemBlocks(fmt.Sprintf(systemText, p.tax.PromptText()))

	var mu sync.Mutex
	var usage anthropic.TokenUsage

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for _, snap := range snaps {
		g.Go(func() error {
			resp, err := p.client.CreateMessage(gCtx, anthropic.MessageRequest{
				Model:     p.opts.Model,
				MaxTokens: p.opts.MaxTokens,
				System:    system,
				Messages: []anthropic.Message{
					{Role: "user", Content: buildPrompt(snap)},
				},
			})
			if err != nil {
				logger.Warn("ad extraction failed",
					zap.String("ad_id", snap.AdID),
					zap.Error(err),
				)
				mu.Lock()
				summary.Failed++
				mu.Unlock()
				return nil
			}

			mu.Lock()
			usage.InputTokens += resp.Usage.InputTokens
			usage.OutputTokens += resp.Usage.OutputTokens
			usage.CacheCreationInputTokens += resp.Usage.CacheCreationInputTokens
			usage.CacheReadInputTokens += resp.Usage.CacheReadInputTokens
			mu.Unlock()

			ex, err := p.parseResponse(runID, snap.AdID, responseText(resp))
			if err != nil {
				logger.Warn("ad extraction rejected",
					zap.String("ad_id", snap.AdID),
					zap.Error(err),
				)
				mu.Lock()
				summary.Invalid++
				mu.Unlock()
				return nil
			}

			if err := p.store.UpsertExtraction(gCtx, ex); err != nil {
				return err
			}
			mu.Lock()
			summary.Extracted++
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}

	usage.LogCost(p.opts.Model, "extract")
	logger.Info("extraction pass done",
		zap.Int("snapshots", summary.Snapshots),
		zap.Int("extracted", summary.Extracted),
		zap.Int("invalid", summary.Invalid),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

func buildPrompt(snap model.Snapshot) string {
	body := snap.BodyText
	if len(body) > maxBodyChars {
		body = body[:maxBodyChars]
	}
	return fmt.Sprintf(userPrompt, snap.Title, snap.CTAType, snap.LinkURL, body)
}

// parseResponse decodes the model output, validates it against the row
// schema, and drops taxonomy-inconsistent category pairs rather than
// rejecting the whole row.
func (p *Pass) parseResponse(runID, adID, text string) (model.Extraction, error) {
	cleaned := stripFences(text)

	var row map[string]any
	if err := json.Unmarshal([]byte(cleaned), &row); err != nil {
		return model.Extraction{}, eris.Wrap(err, "extract: parse response")
	}
	if err := p.validator.Validate(row); err != nil {
		return model.Extraction{}, eris.Wrap(err, "extract: validate response")
	}

	ex := model.Extraction{
		RunID:       runID,
		AdID:        adID,
		NameGuess:   stringValue(row["product_name_guess"]),
		Category:    stringValue(row["category"]),
		Subcategory: stringValue(row["subcategory"]),
		Signals:     make(model.SignalMap),
		Evidence:    make(model.EvidenceMap),
	}
	ex.Confidence, _ = row["confidence"].(float64)

	if ex.Category != "" && !p.tax.Valid(ex.Category, ex.Subcategory) {
		if p.tax.Valid(ex.Category, "") {
			ex.Subcategory = ""
		} else {
			ex.Category = ""
			ex.Subcategory = ""
		}
	}

	if signals, ok := row["signals"].(map[string]any); ok {
		for k, v := range signals {
			if b, ok := v.(bool); ok {
				ex.Signals[k] = b
			}
		}
	}
	if evidence, ok := row["evidence"].(map[string]any); ok {
		for k, v := range evidence {
			spans, _ := v.([]any)
			for _, s := range spans {
				if str, ok := s.(string); ok {
					ex.Evidence[k] = append(ex.Evidence[k], str)
				}
			}
		}
	}
	return ex, nil
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

// stripFences removes a markdown code fence around a JSON payload.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func responseText(resp *anthropic.MessageResponse) string {
	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
