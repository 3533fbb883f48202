package ml

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var lowerCaser = cases.Lower(language.Und)

// NormalizeLabel maps the spellings found in iris exports ("Iris-setosa",
// " Setosa ") onto the bare lower-case species name.
func NormalizeLabel(label string) string {
	label = lowerCaser.String(strings.TrimSpace(label))
	return strings.TrimPrefix(label, "iris-")
}
