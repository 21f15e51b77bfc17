package ranking

import (
	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
)

// YearRanks is one year of a row, shaped for the exports.
// Rank holds only the scopes that covered the area.
type YearRanks struct {
	Year  facts.Year                 `json:"year"`
	Value facts.Value                `json:"value"`
	Rank  map[facts.Scope]facts.Rank `json:"rank,omitempty"`
}

// Series returns the (iso, id) row across every loaded year, oldest
// first. Years without data appear with a null value.
func Series(t *facts.Table, iso meta.ISO, id meta.IndicatorID) []YearRanks {
	recs := t.Slice(facts.Filter{ISOs: []meta.ISO{iso}, Indicators: []meta.IndicatorID{id}})
	out := make([]YearRanks, 0, len(recs))
	for _, r := range recs {
		out = append(out, YearRanks{Year: r.Year, Value: r.Value, Rank: r.Ranks})
	}
	return out
}

// RankDict maps year → scope → rank for one row.
func RankDict(t *facts.Table, iso meta.ISO, id meta.IndicatorID) map[facts.Year]map[facts.Scope]facts.Rank {
	out := make(map[facts.Year]map[facts.Scope]facts.Rank)
	for _, yr := range Series(t, iso, id) {
		if len(yr.Rank) > 0 {
			out[yr.Year] = yr.Rank
		}
	}
	return out
}
