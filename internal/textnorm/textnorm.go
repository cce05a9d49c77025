// Package textnorm derives stable textual identities from noisy product-name
// guesses. Normalization is deterministic: same input, same token sequence.
package textnorm

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopwords are high-frequency Spanish function words that carry no product
// identity. Tokens of two runes or fewer are dropped independently of this set.
var stopwords = map[string]struct{}{
	"de": {}, "la": {}, "el": {}, "los": {}, "las": {}, "para": {},
	"con": {}, "sin": {}, "y": {}, "o": {}, "a": {}, "en": {}, "por": {},
	"un": {}, "una": {}, "unos": {}, "unas": {}, "del": {}, "al": {},
}

// accentStripper decomposes to NFD, removes combining marks, recomposes.
var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips accents, blanks every non-letter rune, and
// drops stopwords and tokens of two runes or fewer. An empty result means the
// name carries no usable identity.
func Normalize(name string) []string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return nil
	}

	stripped, _, err := transform.String(accentStripper, s)
	if err == nil {
		s = stripped
	}

	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) {
			return r
		}
		return ' '
	}, s)

	var toks []string
	for _, t := range strings.Fields(s) {
		if len([]rune(t)) <= 2 {
			continue
		}
		if _, stop := stopwords[t]; stop {
			continue
		}
		toks = append(toks, t)
	}
	return toks
}

// IdentityHash returns the stable hash of a normalized token sequence.
func IdentityHash(tokens []string) string {
	sum := sha1.Sum([]byte(strings.Join(tokens, " ")))
	return hex.EncodeToString(sum[:])
}
