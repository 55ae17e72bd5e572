// Package valueparse turns hand-entered activity figures such as "3億" or
// "1,200万" into plain numbers.
package valueparse

import (
	"math"
	"strconv"
	"strings"
)

const (
	MarkerTenThousand    = "万"
	MarkerHundredMillion = "億"

	TenThousand    = 10_000
	HundredMillion = 100_000_000
)

// Parse never fails: anything that does not reduce to a decimal number after
// the markers are stripped counts as 0.
func Parse(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	s = strings.ReplaceAll(s, ",", "")

	factor := 1.0
	if strings.Contains(s, MarkerHundredMillion) {
		s = strings.ReplaceAll(s, MarkerHundredMillion, "")
		factor *= HundredMillion
	}
	if strings.Contains(s, MarkerTenThousand) {
		s = strings.ReplaceAll(s, MarkerTenThousand, "")
		factor *= TenThousand
	}

	base, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(base) || math.IsInf(base, 0) {
		return 0
	}
	v := base * factor
	if math.IsInf(v, 0) {
		return 0
	}
	return v
}
