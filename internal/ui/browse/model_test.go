package browse

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
	"github.com/developmentseed/climatescope-data/internal/ranking"
)

type tableSource struct{ t *facts.Table }

func (s tableSource) Query(f facts.Filter) ([]facts.Record, error) { return s.t.Slice(f), nil }

type failingSource struct{}

func (failingSource) Query(facts.Filter) ([]facts.Record, error) {
	return nil, errors.New("database is locked")
}

func fixture(t *testing.T) (*meta.Metadata, *facts.Table) {
	t.Helper()
	m, err := meta.New(
		[]meta.AdminArea{
			{ISO: "LAC", Type: meta.Region},
			{ISO: "AR", Type: meta.Country, Region: "LAC", Name: meta.Names{"en": "Argentina"}},
			{ISO: "BR", Type: meta.Country, Region: "LAC", Name: meta.Names{"en": "Brazil", "es": "Brasil"}},
			{ISO: "CL", Type: meta.Country, Region: "LAC", Name: meta.Names{"en": "Chile"}},
			{ISO: "AR-A", Type: meta.State, ParentCountry: "AR"},
		},
		[]meta.Indicator{
			{ID: 0, Kind: meta.KindScore, Name: meta.Names{"en": "Score"}},
			{ID: 1, Kind: meta.KindParam, Name: meta.Names{"en": "Enabling"}},
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	tbl := facts.NewTable()
	tbl.AddYear(2014, []facts.Fact{
		{ISO: "AR", Indicator: 0, Value: facts.Some(1.23456)},
		{ISO: "BR", Indicator: 0, Value: facts.Some(2)},
	})
	tbl.AddYear(2015, []facts.Fact{
		{ISO: "AR", Indicator: 0, Value: facts.Some(10)},
		{ISO: "BR", Indicator: 0, Value: facts.Some(0)},
		{ISO: "CL", Indicator: 0, Value: facts.Some(5)},
		{ISO: "AR", Indicator: 1, Value: facts.Some(3.5)},
		{ISO: "AR-A", Indicator: 0, Value: facts.Some(7)},
	})

	ctx, err := ranking.NewContext(m, tbl, ranking.DefaultPolicy())
	if err != nil {
		t.Fatal(err)
	}
	return m, ranking.ComputeAllScopes(ctx, tbl)
}

func newModel(t *testing.T) Model {
	t.Helper()
	m, tbl := fixture(t)
	return New(m, tableSource{tbl}, tbl.Years(), "es")
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "tab":
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		msg = tea.KeyMsg{Type: tea.KeyShiftTab}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func isos(m Model) []string {
	var out []string
	for _, r := range m.Rows() {
		out = append(out, r[0])
	}
	return out
}

func TestNewStartsOnCurrentYear(t *testing.T) {
	m := newModel(t)

	if y, _ := m.Year(); y != 2015 {
		t.Errorf("year = %v, want 2015", y)
	}
	if id, _ := m.Indicator(); id != 0 {
		t.Errorf("indicator = %v, want 0", id)
	}

	rows := m.Rows()
	if got := strings.Join(isos(m), ","); got != "AR,CL,BR" {
		t.Fatalf("order = %s", got)
	}
	// AR: value 10, first globally and in its region, no in-country scope
	want := []string{"AR", "Argentina", "10", "1", "1", ""}
	for i, cell := range want {
		if rows[0][i] != cell {
			t.Errorf("AR column %d = %q, want %q", i, rows[0][i], cell)
		}
	}
	// BR: zero is missing, so a null rank
	if rows[2][1] != "Brasil" || rows[2][3] != "-" {
		t.Errorf("BR row = %v", rows[2])
	}
}

func TestYearKeys(t *testing.T) {
	m := newModel(t)

	m = press(m, "]") // already last
	if y, _ := m.Year(); y != 2015 {
		t.Errorf("year = %v, want 2015", y)
	}

	m = press(m, "[")
	if y, _ := m.Year(); y != 2014 {
		t.Fatalf("year = %v, want 2014", y)
	}
	if got := strings.Join(isos(m), ","); got != "BR,AR,CL" {
		t.Errorf("2014 order = %s", got)
	}
	if cl := m.Rows()[2]; cl[2] != "" || cl[3] != "-" {
		t.Errorf("CL in 2014 = %v", cl)
	}
	if ar := m.Rows()[1]; ar[2] != "1.23" {
		t.Errorf("AR value = %q, want 1.23", ar[2])
	}
}

func TestIndicatorKeys(t *testing.T) {
	m := newModel(t)

	m = press(m, "tab")
	if id, _ := m.Indicator(); id != 1 {
		t.Fatalf("indicator = %v, want 1", id)
	}
	if got := strings.Join(isos(m), ","); got != "AR" {
		t.Errorf("indicator 1 rows = %s", got)
	}

	m = press(m, "tab")
	if id, _ := m.Indicator(); id != 0 {
		t.Errorf("tab did not wrap: %v", id)
	}
	m = press(m, "shift+tab")
	if id, _ := m.Indicator(); id != 1 {
		t.Errorf("shift+tab did not wrap: %v", id)
	}
}

func TestStatesAndSort(t *testing.T) {
	m := newModel(t)

	m = press(m, "a")
	if got := strings.Join(isos(m), ","); got != "AR,AR-A,CL,BR" {
		t.Fatalf("with states = %s", got)
	}

	m = press(m, "s")
	if m.SortBy() != ByGlobal {
		t.Fatalf("sort = %v", m.SortBy())
	}
	// states are not ranked globally, so they come last
	if got := strings.Join(isos(m), ","); got != "AR,CL,BR,AR-A" {
		t.Errorf("by global = %s", got)
	}

	m = press(m, "s")
	m = press(m, "s")
	if m.SortBy() != ByInCountry {
		t.Fatalf("sort = %v", m.SortBy())
	}
	if got := strings.Join(isos(m), ","); got != "AR-A,AR,BR,CL" {
		t.Errorf("by in-country = %s", got)
	}

	m = press(m, "s")
	if m.SortBy() != ByValue {
		t.Errorf("sort did not cycle back: %v", m.SortBy())
	}
}

func TestQueryError(t *testing.T) {
	m, tbl := fixture(t)
	b := New(m, failingSource{}, tbl.Years(), "en")

	if b.Err() == nil {
		t.Fatal("expected error")
	}
	if len(b.Rows()) != 0 {
		t.Errorf("rows = %v", b.Rows())
	}
	if !strings.Contains(b.View(), "database is locked") {
		t.Error("error not shown")
	}
}

func TestQuit(t *testing.T) {
	m := newModel(t)

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if !next.(Model).IsQuitting() {
		t.Error("expected quitting")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}
}

func TestView(t *testing.T) {
	m := newModel(t)
	m.SetSize(100, 30)

	v := m.View()
	for _, want := range []string{"Score", "2015", "Argentina", "sorted by value"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q", want)
		}
	}
}
