package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/store"
	"github.com/adscope/explorer-cli/internal/taxonomy"
)

// extractionSchema validates one enriched-ad row before it reaches the store.
// The category enum is injected from the taxonomy at compile time.
const extractionSchemaTemplate = `{
	"type": "object",
	"required": ["confidence"],
	"properties": {
		"product_name_guess": {"type": ["string", "null"]},
		"category": {"type": ["string", "null"]%s},
		"subcategory": {"type": ["string", "null"]},
		"signals": {
			"type": "object",
			"additionalProperties": {"type": "boolean"}
		},
		"evidence": {
			"type": "object",
			"additionalProperties": {
				"type": "array",
				"items": {"type": "string"}
			}
		},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1}
	}
}`

// ExtractionValidator checks enriched-ad rows against the schema and the
// closed taxonomy.
type ExtractionValidator struct {
	schema *jsonschema.Schema
}

// NewExtractionValidator compiles the row schema, restricting categories to
// the taxonomy's names when one is given.
func NewExtractionValidator(tax *taxonomy.Taxonomy) (*ExtractionValidator, error) {
	enum := ""
	if tax != nil {
		names, err := json.Marshal(tax.CategoryNames())
		if err != nil {
			return nil, eris.Wrap(err, "ingest: marshal taxonomy names")
		}
		enum = `, "enum": ` + string(appendNull(names))
	}
	raw := strings.Replace(extractionSchemaTemplate, "%s", enum, 1)

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("extraction.json", strings.NewReader(raw)); err != nil {
		return nil, eris.Wrap(err, "ingest: add extraction schema")
	}
	schema, err := compiler.Compile("extraction.json")
	if err != nil {
		return nil, eris.Wrap(err, "ingest: compile extraction schema")
	}
	return &ExtractionValidator{schema: schema}, nil
}

// appendNull adds null to a JSON string array so rows may omit the category.
func appendNull(arr []byte) []byte {
	trimmed := strings.TrimSuffix(string(arr), "]")
	if trimmed == "[" {
		return []byte("[null]")
	}
	return []byte(trimmed + ",null]")
}

// Validate checks one decoded row.
func (v *ExtractionValidator) Validate(row map[string]any) error {
	return v.schema.Validate(row)
}

// ExtractionsReport summarizes an extractions-file ingest.
type ExtractionsReport struct {
	RunID    string `json:"run_id"`
	Upserted int    `json:"upserted"`
	Invalid  int    `json:"invalid"`
	Skipped  int    `json:"skipped"`
}

// IngestExtractions loads precomputed extraction rows (ads_enriched.jsonl)
// for a run. Rows failing schema validation or missing an ad id are counted
// and skipped, never fatal.
func IngestExtractions(ctx context.Context, st store.Store, runID, path string, v *ExtractionValidator) (ExtractionsReport, error) {
	logger := zap.L().With(zap.String("run_id", runID))
	report := ExtractionsReport{RunID: runID}

	f, err := os.Open(path)
	if err != nil {
		return report, eris.Wrapf(err, "ingest: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row map[string]any
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			report.Skipped++
			continue
		}

		adID := stringField(row, "ad_archive_id", "adArchiveId", "ad_id")
		if adID == "" {
			report.Skipped++
			continue
		}

		if err := v.Validate(row); err != nil {
			logger.Warn("extraction row failed validation",
				zap.String("ad_id", adID),
				zap.Error(err),
			)
			report.Invalid++
			continue
		}

		ex := model.Extraction{
			RunID:       runID,
			AdID:        adID,
			NameGuess:   stringField(row, "product_name_guess"),
			Category:    stringField(row, "category"),
			Subcategory: stringField(row, "subcategory"),
			Signals:     signalField(row),
			Evidence:    evidenceField(row),
			Confidence:  floatField(row, "confidence"),
		}
		if err := st.UpsertExtraction(ctx, ex); err != nil {
			return report, err
		}
		report.Upserted++
	}
	if err := scanner.Err(); err != nil {
		return report, eris.Wrapf(err, "ingest: read %s", path)
	}

	logger.Info("extractions ingested",
		zap.Int("upserted", report.Upserted),
		zap.Int("invalid", report.Invalid),
		zap.Int("skipped", report.Skipped),
	)
	return report, nil
}

func stringField(row map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := row[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case json.Number:
			return v.String()
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

func floatField(row map[string]any, key string) float64 {
	v, _ := row[key].(float64)
	return v
}

func signalField(row map[string]any) model.SignalMap {
	signals := make(model.SignalMap)
	raw, _ := row["signals"].(map[string]any)
	for k, v := range raw {
		if b, ok := v.(bool); ok {
			signals[k] = b
		}
	}
	return signals
}

func evidenceField(row map[string]any) model.EvidenceMap {
	evidence := make(model.EvidenceMap)
	raw, _ := row["evidence"].(map[string]any)
	for k, v := range raw {
		spans, _ := v.([]any)
		for _, s := range spans {
			if str, ok := s.(string); ok {
				evidence[k] = append(evidence[k], str)
			}
		}
	}
	return evidence
}
