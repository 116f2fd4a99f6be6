// Package category defines the fixed document taxonomy for property folders
// and the year validation used by the upload flows.
package category

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Category is one of the 8 fixed document classifications.
type Category string

const (
	Contratos          Category = "Contratos"
	InquilinosSensible Category = "Inquilinos_Sensible"
	Seguros            Category = "Seguros"
	Suministros        Category = "Suministros"
	ComunidadImpuestos Category = "Comunidad_Impuestos"
	FacturasReformas   Category = "Facturas_Reformas"
	FotosEstado        Category = "Fotos_Estado"
	Otros              Category = "Otros"
)

// All lists every category in presentation order.
var All = []Category{
	Contratos,
	InquilinosSensible,
	Seguros,
	Suministros,
	ComunidadImpuestos,
	FacturasReformas,
	FotosEstado,
	Otros,
}

// Labels shown on the inline keyboard.
var labels = map[Category]string{
	Contratos:          "📄 Contratos",
	InquilinosSensible: "🔒 Inquilinos (sensible)",
	Seguros:            "🛡 Seguros",
	Suministros:        "💡 Suministros",
	ComunidadImpuestos: "🏛 Comunidad e impuestos",
	FacturasReformas:   "🔧 Facturas y reformas",
	FotosEstado:        "📷 Fotos de estado",
	Otros:              "📦 Otros",
}

// Label returns the display label for a category.
func (c Category) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return string(c)
}

// Parse returns the category matching value, or an error for unknown values.
func Parse(value string) (Category, error) {
	for _, c := range All {
		if string(c) == value {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category: %s", value)
}

// folder definitions. Categories with a year branch nest a folder named after
// the year under the numbered category folder.
var folders = map[Category]struct {
	path      []string
	needsYear bool
}{
	Contratos:          {path: []string{"01_Contratos"}, needsYear: true},
	InquilinosSensible: {path: []string{"02_Inquilinos_Sensible"}},
	Seguros:            {path: []string{"03_Seguros"}, needsYear: true},
	Suministros:        {path: []string{"04_Suministros"}, needsYear: true},
	ComunidadImpuestos: {path: []string{"05_Comunidad_Impuestos"}, needsYear: true},
	FacturasReformas:   {path: []string{"06_Incidencias_Reformas", "Facturas"}, needsYear: true},
	FotosEstado:        {path: []string{"07_Fotos_Estado"}},
	Otros:              {path: []string{"99_Otros"}},
}

// NeedsYear reports whether the category's folder path is year-scoped.
func (c Category) NeedsYear() bool {
	return folders[c].needsYear
}

// FolderPath returns the folder path for a category under a property folder.
// Year-scoped categories require a non-empty year and append it as the final
// segment; the rest ignore the year argument entirely.
func FolderPath(c Category, year string) ([]string, error) {
	def, ok := folders[c]
	if !ok {
		return nil, fmt.Errorf("unknown category: %s", c)
	}
	if !def.needsYear {
		return append([]string(nil), def.path...), nil
	}
	if year == "" {
		return nil, fmt.Errorf("category %s requires a year", c)
	}
	return append(append([]string(nil), def.path...), year), nil
}

var yearRe = regexp.MustCompile(`^\d{4}$`)

// Year bounds: nothing before 1900, nothing more than 10 years ahead.
const minYear = 1900

// ValidateYear accepts exactly 4-digit year strings within
// [1900, currentYear+10]. Format and range violations get distinct errors so
// the flow can re-prompt with a precise message.
func ValidateYear(s string) error {
	if !yearRe.MatchString(s) {
		return fmt.Errorf("el año debe tener exactamente 4 dígitos (por ejemplo 2024)")
	}
	y, _ := strconv.Atoi(s)
	max := time.Now().Year() + 10
	if y < minYear || y > max {
		return fmt.Errorf("el año debe estar entre %d y %d", minYear, max)
	}
	return nil
}

// CurrentYear returns the current calendar year as a 4-digit string.
func CurrentYear() string {
	return strconv.Itoa(time.Now().Year())
}
