package grouper

import (
	"strconv"

	"github.com/adscope/explorer-cli/internal/model"
	"github.com/adscope/explorer-cli/internal/textnorm"
)

// Resolve maps one extraction to its product identity using the fixed
// precedence: visual hash, then semantic cluster, then normalized text, then
// the unknown sentinel. Pixel-identical creatives are the strongest signal,
// paraphrase-tolerant clusters the next, exact normalized text the weakest.
func Resolve(ex model.Extraction, visualHash string, semMap map[string]model.SemanticEntry) (string, model.MatchBasis) {
	if visualHash != "" {
		return "vhash:" + visualHash, model.BasisVisual
	}
	if entry, ok := semMap[ex.NameGuess]; ok && ex.NameGuess != "" {
		return "sem:" + strconv.Itoa(entry.ClusterID), model.BasisSemantic
	}
	if tokens := textnorm.Normalize(ex.NameGuess); tokens != nil {
		return "text:" + textnorm.IdentityHash(tokens), model.BasisText
	}
	return model.UnknownCluster, model.BasisUnknown
}
