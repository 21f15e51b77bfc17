package profile

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ApplyConversion applies a "|" separated chain of conversions to v, left
// to right. Known steps: round1..round4, million, billion, int, percent.
// An empty chain returns v unchanged.
func ApplyConversion(chain string, v float64) (float64, error) {
	if strings.TrimSpace(chain) == "" {
		return v, nil
	}
	for _, step := range strings.Split(chain, "|") {
		switch step = strings.TrimSpace(step); step {
		case "round1", "round2", "round3", "round4":
			places := int32(step[len(step)-1] - '0')
			v = decimal.NewFromFloat(v).Round(places).InexactFloat64()
		case "million":
			v /= 1e6
		case "billion":
			v /= 1e9
		case "int":
			v = math.Trunc(v)
		case "percent":
			v *= 100
		default:
			return 0, fmt.Errorf("unknown conversion %q", step)
		}
	}
	return v, nil
}
