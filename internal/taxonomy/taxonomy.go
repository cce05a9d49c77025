// Package taxonomy holds the closed category tree ad extractions must land
// in. The tree ships with a built-in default and can be overridden from a
// YAML file.
package taxonomy

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Taxonomy maps category names to their allowed subcategories.
type Taxonomy struct {
	Categories map[string][]string `yaml:"categories"`
}

// Default returns the built-in category tree.
func Default() *Taxonomy {
	return &Taxonomy{Categories: map[string][]string{
		"Moda":                {"Jeans/Denim", "Calzado", "Ropa interior", "Deportiva", "Accesorios", "Otros"},
		"Belleza":             {"Skincare", "Maquillaje", "Cabello", "Perfumes", "Uñas", "Otros"},
		"Hogar":               {"Cocina", "Organización", "Decoración", "Limpieza", "Iluminación", "Otros"},
		"Tecnología":          {"Audio", "Celulares", "Accesorios", "Computación", "Smartwatch", "Otros"},
		"Salud y Bienestar":   {"Suplementos", "Fitness", "Ortopedia", "Bienestar íntimo", "Otros"},
		"Mascotas":            {"Perros", "Gatos", "Accesorios", "Higiene", "Otros"},
		"Bebés y Niños":       {"Juguetes", "Ropa", "Cuidado", "Otros"},
		"Deportes y Fitness":  {"Ropa deportiva", "Equipos", "Accesorios", "Otros"},
		"Automotriz y Moto":   {"Accesorios auto", "Accesorios moto", "Herramientas", "Otros"},
		"Educación":           {"Cursos", "Tareas/Academia", "Idiomas", "Otros"},
		"Servicios":           {"Servicios digitales", "Servicios profesionales", "Otros"},
		"Alimentos y Bebidas": {"Snacks", "Bebidas", "Suplementos alimenticios", "Otros"},
		"Otros":               {"Otros"},
	}}
}

// Load reads a taxonomy from a YAML file. A missing path falls back to the
// built-in default.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, eris.Wrapf(err, "taxonomy: read %s", path)
	}
	var t Taxonomy
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, eris.Wrapf(err, "taxonomy: parse %s", path)
	}
	if len(t.Categories) == 0 {
		return nil, eris.Errorf("taxonomy: %s defines no categories", path)
	}
	return &t, nil
}

// CategoryNames returns the sorted category names.
func (t *Taxonomy) CategoryNames() []string {
	names := make([]string, 0, len(t.Categories))
	for name := range t.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Valid reports whether the pair is in the tree. An empty subcategory is
// accepted for any known category; an empty category is always invalid.
func (t *Taxonomy) Valid(category, subcategory string) bool {
	subs, ok := t.Categories[category]
	if !ok {
		return false
	}
	if subcategory == "" {
		return true
	}
	for _, s := range subs {
		if s == subcategory {
			return true
		}
	}
	return false
}

// PromptText renders the tree one category per line for inclusion in an
// extraction prompt.
func (t *Taxonomy) PromptText() string {
	var b strings.Builder
	for _, name := range t.CategoryNames() {
		b.WriteString("- ")
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(strings.Join(t.Categories[name], ", "))
		b.WriteString("\n")
	}
	return b.String()
}
