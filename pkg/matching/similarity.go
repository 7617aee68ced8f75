// Package matching scores concept labels against each other and finds the
// existing node a new concept most likely refers to.
package matching

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/soundprediction/notegraph/pkg/normalize"
)

const (
	// DefaultThreshold is the minimum score for automatic merges during
	// extraction. Exploratory lookups may pass a lower one.
	DefaultThreshold = 0.9

	// SubstringFloor is the lowest score given to a pair where one
	// normalized label contains the other.
	SubstringFloor = 0.85
)

// Score returns the similarity of two labels in [0, 1].
//
// Identical normalized labels score 1. Otherwise the score is the
// Ratcliff/Obershelp ratio over the runes of the normalized labels, raised
// to SubstringFloor when one label contains the other.
func Score(a, b string) float64 {
	na, nb := normalize.Label(a), normalize.Label(b)
	if na == nb {
		if na == "" {
			return 0
		}
		return 1.0
	}
	if na == "" || nb == "" {
		return 0
	}
	return scoreNormalized(na, nb)
}

func scoreNormalized(na, nb string) float64 {
	ratio := difflib.NewMatcher(strings.Split(na, ""), strings.Split(nb, "")).Ratio()
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		if ratio < SubstringFloor {
			ratio = SubstringFloor
		}
	}
	return ratio
}
