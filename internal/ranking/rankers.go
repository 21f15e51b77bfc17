// Package ranking computes competition ranks of administrative areas per
// indicator and year, over the global, regional and in-country scopes.
package ranking

import (
	"math"
	"sort"

	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
)

// Policy decides which values take part in ranking.
type Policy struct {
	// ZeroIsMissing excludes exact zeros: for the core indices zero means
	// "no data", not a value of zero.
	ZeroIsMissing bool
	// GenuineZero lists indicators where zero is a real value and stays
	// eligible even when ZeroIsMissing is set.
	GenuineZero map[meta.IndicatorID]bool
}

// DefaultPolicy excludes nulls and zeros.
func DefaultPolicy() Policy {
	return Policy{ZeroIsMissing: true}
}

// Eligible reports whether v of indicator id is ranked.
func (p Policy) Eligible(id meta.IndicatorID, v facts.Value) bool {
	if !v.Valid || math.IsNaN(v.Float64) {
		return false
	}
	if v.Float64 == 0 && p.ZeroIsMissing && !p.GenuineZero[id] {
		return false
	}
	return true
}

// scored is an area with an eligible value.
type scored struct {
	iso   meta.ISO
	value float64
}

// CompetitionRanks assigns standard competition ("min") ranks by
// descending value: 1,2,2,2,5. Equal values share the lowest rank of
// their group; the next distinct value is ranked one past the number of
// areas strictly above it. Ties are listed by iso so output order is
// stable, which never affects the ranks themselves.
func CompetitionRanks(values map[meta.ISO]float64) map[meta.ISO]int {
	pairs := make([]scored, 0, len(values))
	for iso, v := range values {
		pairs = append(pairs, scored{iso: iso, value: v})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].value != pairs[j].value {
			return pairs[i].value > pairs[j].value
		}
		return pairs[i].iso < pairs[j].iso
	})

	ranks := make(map[meta.ISO]int, len(pairs))
	for i, p := range pairs {
		if i > 0 && p.value == pairs[i-1].value {
			ranks[p.iso] = ranks[pairs[i-1].iso]
			continue
		}
		ranks[p.iso] = i + 1
	}
	return ranks
}

// RankScope ranks the areas of one scope for indicator id in year y.
// Every area in areas gets an entry: its rank, or a null rank when its
// value is not eligible under policy. Ineligible areas do not shift the
// ranks of the others. An empty scope yields nil.
func RankScope(areas []meta.ISO, id meta.IndicatorID, y facts.Year, t *facts.Table, policy Policy) map[meta.ISO]facts.Rank {
	if len(areas) == 0 {
		return nil
	}

	values := make(map[meta.ISO]float64, len(areas))
	for _, iso := range areas {
		v := t.Value(iso, id, y)
		if policy.Eligible(id, v) {
			values[iso] = v.Float64
		}
	}

	ranks := CompetitionRanks(values)
	out := make(map[meta.ISO]facts.Rank, len(areas))
	for _, iso := range areas {
		if n, ok := ranks[iso]; ok {
			out[iso] = facts.RankOf(n)
		} else {
			out[iso] = facts.NoRank
		}
	}
	return out
}
