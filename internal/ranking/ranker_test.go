package ranking

import (
	"math/rand"
	"reflect"
	"testing"

	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
)

func fixtureMeta(t *testing.T) *meta.Metadata {
	t.Helper()
	areas := []meta.AdminArea{
		{ISO: "LAC", Type: meta.Region},
		{ISO: "ASIA", Type: meta.Region},
		{ISO: "AR", Type: meta.Country, Region: "LAC"},
		{ISO: "BR", Type: meta.Country, Region: "LAC"},
		{ISO: "CL", Type: meta.Country, Region: "LAC"},
		{ISO: "PE", Type: meta.Country, Region: "LAC"},
		{ISO: "IN", Type: meta.Country, Region: "ASIA"},
		{ISO: "AR-A", Type: meta.State, ParentCountry: "AR"},
		{ISO: "AR-B", Type: meta.State, ParentCountry: "AR"},
		{ISO: "IN-X", Type: meta.State, ParentCountry: "IN"},
	}
	score := meta.IndicatorID(0)
	inds := []meta.Indicator{
		{ID: 0, Kind: meta.KindScore},
		{ID: 1, Kind: meta.KindParam, ParentID: &score},
	}
	m, err := meta.New(areas, inds)
	if err != nil {
		t.Fatalf("meta.New: %v", err)
	}
	return m
}

func fixtureTable() *facts.Table {
	tbl := facts.NewTable()
	tbl.AddYear(2014, []facts.Fact{
		{ISO: "AR", Indicator: 0, Value: facts.Some(10)},
		{ISO: "BR", Indicator: 0, Value: facts.Some(10)},
		{ISO: "CL", Indicator: 0, Value: facts.Some(5)},
		{ISO: "PE", Indicator: 0, Value: facts.Null},
		{ISO: "IN", Indicator: 0, Value: facts.Some(12)},
		{ISO: "AR-A", Indicator: 0, Value: facts.Some(4)},
		{ISO: "AR-B", Indicator: 0, Value: facts.Some(4)},
		{ISO: "IN-X", Indicator: 0, Value: facts.Some(99)},
		{ISO: "AR", Indicator: 1, Value: facts.Some(0)},
		{ISO: "BR", Indicator: 1, Value: facts.Some(3)},
	})
	tbl.AddYear(2015, []facts.Fact{
		{ISO: "AR", Indicator: 0, Value: facts.Some(1)},
		{ISO: "BR", Indicator: 0, Value: facts.Some(2)},
	})
	return tbl
}

func rankOf(t *testing.T, tbl *facts.Table, iso meta.ISO, id meta.IndicatorID, y facts.Year, s facts.Scope) (facts.Rank, bool) {
	t.Helper()
	c, ok := tbl.Get(facts.Key{ISO: iso, Indicator: id}, y)
	if !ok {
		return facts.NoRank, false
	}
	return c.Rank(s)
}

func TestCompetitionRanks(t *testing.T) {
	got := CompetitionRanks(map[meta.ISO]float64{
		"A": 9, "B": 7, "C": 7, "D": 7, "E": 3, "F": 2, "G": 1,
	})
	want := map[meta.ISO]int{"A": 1, "B": 2, "C": 2, "D": 2, "E": 5, "F": 6, "G": 7}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CompetitionRanks = %v, want %v", got, want)
	}
}

func TestRankScopeExample(t *testing.T) {
	tbl := fixtureTable()
	got := RankScope([]meta.ISO{"AR", "BR", "CL", "PE"}, 0, 2014, tbl, DefaultPolicy())
	want := map[meta.ISO]facts.Rank{
		"AR": facts.RankOf(1),
		"BR": facts.RankOf(1),
		"CL": facts.RankOf(3),
		"PE": facts.NoRank,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("RankScope = %v, want %v", got, want)
	}
}

func TestRankScopeZeroExclusion(t *testing.T) {
	tbl := fixtureTable()

	got := RankScope([]meta.ISO{"AR", "BR"}, 1, 2014, tbl, DefaultPolicy())
	if got["AR"].Valid {
		t.Errorf("zero value ranked: %+v", got["AR"])
	}
	if got["BR"] != facts.RankOf(1) {
		t.Errorf("BR = %+v, want 1 (zero must not shift ranks)", got["BR"])
	}

	genuine := Policy{ZeroIsMissing: true, GenuineZero: map[meta.IndicatorID]bool{1: true}}
	got = RankScope([]meta.ISO{"AR", "BR"}, 1, 2014, tbl, genuine)
	if got["AR"] != facts.RankOf(2) || got["BR"] != facts.RankOf(1) {
		t.Errorf("genuine zero ranks = %v", got)
	}

	got = RankScope([]meta.ISO{"AR", "BR"}, 1, 2014, tbl, Policy{})
	if got["AR"] != facts.RankOf(2) {
		t.Errorf("policy without zero exclusion: AR = %+v", got["AR"])
	}
}

func TestRankScopeEdgeCases(t *testing.T) {
	tbl := fixtureTable()

	if got := RankScope(nil, 0, 2014, tbl, DefaultPolicy()); got != nil {
		t.Errorf("empty scope = %v, want nil", got)
	}

	got := RankScope([]meta.ISO{"CL"}, 0, 2014, tbl, DefaultPolicy())
	if got["CL"] != facts.RankOf(1) {
		t.Errorf("singleton scope = %+v, want 1", got["CL"])
	}

	// Nothing eligible: every area null, no error
	got = RankScope([]meta.ISO{"PE", "ZZ"}, 0, 2014, tbl, DefaultPolicy())
	if got["PE"].Valid || got["ZZ"].Valid || len(got) != 2 {
		t.Errorf("all-null scope = %v", got)
	}
}

func TestComputeAllScopes(t *testing.T) {
	m := fixtureMeta(t)
	tbl := fixtureTable()
	ctx, err := NewContext(m, tbl, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	if ctx.CurrentYear != 2015 {
		t.Errorf("CurrentYear = %d", ctx.CurrentYear)
	}

	out := ComputeAllScopes(ctx, tbl)

	tests := []struct {
		iso   meta.ISO
		scope facts.Scope
		want  facts.Rank
		has   bool
	}{
		{"IN", facts.Global, facts.RankOf(1), true},
		{"AR", facts.Global, facts.RankOf(2), true},
		{"BR", facts.Global, facts.RankOf(2), true},
		{"CL", facts.Global, facts.RankOf(4), true},
		{"PE", facts.Global, facts.NoRank, true},
		{"AR", facts.Regional, facts.RankOf(1), true},
		{"CL", facts.Regional, facts.RankOf(3), true},
		{"IN", facts.Regional, facts.RankOf(1), true},
		{"AR-A", facts.InCountry, facts.RankOf(1), true},
		{"AR-B", facts.InCountry, facts.RankOf(1), true},
		{"IN-X", facts.InCountry, facts.RankOf(1), true},
		// states never rank globally or regionally
		{"AR-A", facts.Global, facts.NoRank, false},
		{"AR-A", facts.Regional, facts.NoRank, false},
		// countries have no in-country rank at all
		{"AR", facts.InCountry, facts.NoRank, false},
	}
	for _, tt := range tests {
		got, has := rankOf(t, out, tt.iso, 0, 2014, tt.scope)
		if has != tt.has || got != tt.want {
			t.Errorf("%s %s = %+v (written %v), want %+v (written %v)", tt.iso, tt.scope, got, has, tt.want, tt.has)
		}
	}

	// 2015: AR and BR only
	if r, _ := rankOf(t, out, "BR", 0, 2015, facts.Global); r != facts.RankOf(1) {
		t.Errorf("BR 2015 global = %+v", r)
	}
	if r, _ := rankOf(t, out, "CL", 0, 2015, facts.Global); r.Valid {
		t.Errorf("CL 2015 global = %+v, want null (no data)", r)
	}

	// Input table untouched
	if _, has := rankOf(t, tbl, "AR", 0, 2014, facts.Global); has {
		t.Error("ComputeAllScopes mutated its input")
	}
}

func TestComputeAllScopesIdempotent(t *testing.T) {
	m := fixtureMeta(t)
	tbl := fixtureTable()
	ctx, err := NewContext(m, tbl, DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}

	once := ComputeAllScopes(ctx, tbl)
	twice := ComputeAllScopes(ctx, once)

	a := once.Slice(facts.Filter{})
	b := twice.Slice(facts.Filter{})
	if !reflect.DeepEqual(a, b) {
		t.Error("second run over ranked table produced different ranks")
	}
}

func TestNewContextNoYears(t *testing.T) {
	if _, err := NewContext(fixtureMeta(t), facts.NewTable(), DefaultPolicy()); err == nil {
		t.Error("expected error for empty table")
	}
}

// TestCompetitionRankLaw checks the rank laws on random inputs with many
// ties.
func TestCompetitionRankLaw(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		values := map[meta.ISO]float64{}
		n := 1 + rng.Intn(25)
		for i := 0; i < n; i++ {
			values[meta.ISO(string(rune('A'+i)))] = float64(rng.Intn(6))
		}
		ranks := CompetitionRanks(values)

		assigned := map[int]bool{}
		for a, va := range values {
			ra := ranks[a]
			assigned[ra] = true
			if ra < 1 {
				t.Fatalf("rank %d < 1", ra)
			}
			above := 0
			for b, vb := range values {
				rb := ranks[b]
				if va == vb && ra != rb {
					t.Fatalf("tie %v=%v got ranks %d,%d", a, b, ra, rb)
				}
				if va > vb && ra >= rb {
					t.Fatalf("%v(%v) rank %d not better than %v(%v) rank %d", a, va, ra, b, vb, rb)
				}
				if vb > va {
					above++
				}
			}
			if ra != above+1 {
				t.Fatalf("%v rank %d, want %d (areas strictly above + 1)", a, ra, above+1)
			}
		}
		for r := range assigned {
			if r == 1 {
				continue
			}
			gap := true
			for other := range assigned {
				if other < r {
					gap = false
					break
				}
			}
			if gap {
				t.Fatalf("rank %d assigned with nothing below it", r)
			}
		}
	}
}

func TestSeriesAndRankDict(t *testing.T) {
	m := fixtureMeta(t)
	tbl := fixtureTable()
	ctx, _ := NewContext(m, tbl, DefaultPolicy())
	out := ComputeAllScopes(ctx, tbl)

	s := Series(out, "AR", 0)
	if len(s) != 2 || s[0].Year != 2014 || s[1].Year != 2015 {
		t.Fatalf("Series = %+v", s)
	}
	if _, ok := s[0].Rank[facts.InCountry]; ok {
		t.Error("country series carries an in-country rank")
	}

	d := RankDict(out, "AR-A", 0)
	if len(d) != 1 || d[2014][facts.InCountry] != facts.RankOf(1) {
		t.Errorf("RankDict(AR-A) = %v", d)
	}
}
