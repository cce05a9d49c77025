package grouper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adscope/explorer-cli/internal/model"
)

func TestResolvePrecedence(t *testing.T) {
	semMap := map[string]model.SemanticEntry{
		"crema facial": {RunID: "run-1", OriginalName: "crema facial", ClusterID: 7, CanonicalName: "crema facial"},
	}

	tests := []struct {
		name       string
		ex         model.Extraction
		visualHash string
		wantID     string
		wantBasis  model.MatchBasis
	}{
		{
			name:       "visual hash wins over everything",
			ex:         model.Extraction{AdID: "ad-1", NameGuess: "crema facial"},
			visualHash: "00ff00ff00ff00ff",
			wantID:     "vhash:00ff00ff00ff00ff",
			wantBasis:  model.BasisVisual,
		},
		{
			name:      "semantic cluster beats text",
			ex:        model.Extraction{AdID: "ad-2", NameGuess: "crema facial"},
			wantID:    "sem:7",
			wantBasis: model.BasisSemantic,
		},
		{
			name:      "text hash when not in semantic map",
			ex:        model.Extraction{AdID: "ad-3", NameGuess: "Reloj Inteligente"},
			wantBasis: model.BasisText,
		},
		{
			name:      "empty name falls to unknown",
			ex:        model.Extraction{AdID: "ad-4", NameGuess: ""},
			wantID:    model.UnknownCluster,
			wantBasis: model.BasisUnknown,
		},
		{
			name:      "stopword-only name falls to unknown",
			ex:        model.Extraction{AdID: "ad-5", NameGuess: "de la el"},
			wantID:    model.UnknownCluster,
			wantBasis: model.BasisUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, basis := Resolve(tt.ex, tt.visualHash, semMap)
			assert.Equal(t, tt.wantBasis, basis)
			if tt.wantID != "" {
				assert.Equal(t, tt.wantID, id)
			}
		})
	}
}

func TestResolveTextIdentityIsStable(t *testing.T) {
	ex1 := model.Extraction{AdID: "a", NameGuess: "Zapatillas Running Azules"}
	ex2 := model.Extraction{AdID: "b", NameGuess: "zapatillas running azules!!"}

	id1, basis1 := Resolve(ex1, "", nil)
	id2, basis2 := Resolve(ex2, "", nil)

	assert.Equal(t, model.BasisText, basis1)
	assert.Equal(t, model.BasisText, basis2)
	assert.Equal(t, id1, id2)
}
