package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"whitespace only", "   ", nil},
		{"simple name", "Zapatillas Running Azules", []string{"zapatillas", "running", "azules"}},
		{"punctuation and case", "zapatillas running azules!!", []string{"zapatillas", "running", "azules"}},
		{"accents stripped", "Cinturón Lumbar Ergonómico", []string{"cinturon", "lumbar", "ergonomico"}},
		{"stopwords removed", "Crema para la Cara", []string{"crema", "cara"}},
		{"short tokens removed", "TV 4K de 55", nil},
		{"digits and symbols blanked", "Oferta 50% $999 Reloj", []string{"oferta", "reloj"}},
		{"only stopwords", "de la el", nil},
		{"enye preserved as letter", "Pañales Premium", []string{"panales", "premium"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsDeterministic(t *testing.T) {
	a := Normalize("Zapatillas Running Azules")
	b := Normalize("Zapatillas Running Azules")
	assert.Equal(t, a, b)
}

func TestIdentityHash(t *testing.T) {
	h1 := IdentityHash([]string{"zapatillas", "running", "azules"})
	h2 := IdentityHash(Normalize("zapatillas running azules!!"))
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 40)

	// Different token sequences must not collide trivially.
	assert.NotEqual(t, h1, IdentityHash([]string{"crema", "cara"}))
}
