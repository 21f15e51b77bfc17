// Package browse is the terminal view over a ranked build: one indicator
// and year at a time, every area with its value and its three ranks.
package browse

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/developmentseed/climatescope-data/internal/export"
	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
)

var (
	colorPrimary   = lipgloss.Color("62")
	colorSecondary = lipgloss.Color("241")
	colorHighlight = lipgloss.Color("212")
	colorError     = lipgloss.Color("196")

	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(colorHighlight).Padding(0, 1)
	infoStyle  = lipgloss.NewStyle().Foreground(colorSecondary).Padding(0, 1)
	errStyle   = lipgloss.NewStyle().Foreground(colorError).Padding(0, 1)
)

type keyMap struct {
	PrevYear      key.Binding
	NextYear      key.Binding
	NextIndicator key.Binding
	PrevIndicator key.Binding
	Sort          key.Binding
	States        key.Binding
	Quit          key.Binding
}

var keys = keyMap{
	PrevYear:      key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev year")),
	NextYear:      key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next year")),
	NextIndicator: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "indicator")),
	PrevIndicator: key.NewBinding(key.WithKeys("shift+tab")),
	Sort:          key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort")),
	States:        key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "states")),
	Quit:          key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.PrevYear, k.NextYear, k.NextIndicator, k.Sort, k.States, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding { return [][]key.Binding{k.ShortHelp()} }

// Source answers record queries. *store.Store satisfies it.
type Source interface {
	Query(f facts.Filter) ([]facts.Record, error)
}

// SortKey orders the rows.
type SortKey int

const (
	ByValue SortKey = iota
	ByGlobal
	ByRegional
	ByInCountry
)

var sortNames = [...]string{"value", "global rank", "regional rank", "in-country rank"}

func (k SortKey) String() string { return sortNames[k] }

func (k SortKey) scope() facts.Scope {
	switch k {
	case ByGlobal:
		return facts.Global
	case ByRegional:
		return facts.Regional
	case ByInCountry:
		return facts.InCountry
	}
	return ""
}

// valuePrecision is the number of decimals shown.
const valuePrecision = 2

// Model is the browse view.
type Model struct {
	meta       *meta.Metadata
	src        Source
	lang       string
	years      []facts.Year
	indicators []meta.IndicatorID

	year      int // index into years
	indicator int // index into indicators
	sortBy    SortKey
	states    bool // include states

	records       []facts.Record
	table         table.Model
	help          help.Model
	err           error
	width, height int
	quitting      bool
}

// New creates a browse view starting on the current year and the first
// ranked indicator.
func New(m *meta.Metadata, src Source, years []facts.Year, lang string) Model {
	cols := []table.Column{
		{Title: "iso", Width: 8},
		{Title: "name", Width: 28},
		{Title: "value", Width: 10},
		{Title: "global", Width: 7},
		{Title: "regional", Width: 9},
		{Title: "in-country", Width: 11},
	}
	t := table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(20))

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorSecondary).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("255")).
		Background(colorPrimary)
	t.SetStyles(s)

	mdl := Model{
		meta:       m,
		src:        src,
		lang:       lang,
		years:      years,
		indicators: m.RankedIndicators(),
		year:       len(years) - 1,
		table:      t,
		help:       help.New(),
	}
	mdl.reload()
	return mdl
}

// Year is the year on screen.
func (m Model) Year() (facts.Year, bool) {
	if m.year < 0 || m.year >= len(m.years) {
		return 0, false
	}
	return m.years[m.year], true
}

// Indicator is the indicator on screen.
func (m Model) Indicator() (meta.IndicatorID, bool) {
	if len(m.indicators) == 0 {
		return 0, false
	}
	return m.indicators[m.indicator], true
}

// SortBy is the current row order.
func (m Model) SortBy() SortKey { return m.sortBy }

// Rows returns the rows on screen.
func (m Model) Rows() []table.Row { return m.table.Rows() }

// Err is the last query error, if any.
func (m Model) Err() error { return m.err }

func (m Model) IsQuitting() bool { return m.quitting }

// SetSize fits the table to the terminal.
func (m *Model) SetSize(w, h int) {
	m.width, m.height = w, h
	if h > 6 {
		m.table.SetHeight(h - 6)
	}
	m.table.SetWidth(w)
	m.help.Width = w
}

func (m *Model) reload() {
	m.records = nil
	m.err = nil
	y, ok := m.Year()
	id, ok2 := m.Indicator()
	if !ok || !ok2 {
		m.table.SetRows(nil)
		return
	}

	recs, err := m.src.Query(facts.Filter{Indicators: []meta.IndicatorID{id}, Years: []facts.Year{y}})
	if err != nil {
		m.err = err
		m.table.SetRows(nil)
		return
	}
	for _, r := range recs {
		a, ok := m.meta.Area(r.ISO)
		if !ok || (a.Type == meta.State && !m.states) {
			continue
		}
		m.records = append(m.records, r)
	}
	m.sortRecords()
	m.table.SetRows(m.rows())
	m.table.GotoTop()
}

func (m *Model) sortRecords() {
	recs := m.records
	scope := m.sortBy.scope()
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if scope == "" {
			// descending, nulls last
			if a.Value.Valid != b.Value.Valid {
				return a.Value.Valid
			}
			if a.Value.Valid && a.Value.Float64 != b.Value.Float64 {
				return a.Value.Float64 > b.Value.Float64
			}
			return a.ISO < b.ISO
		}
		ra, oka := a.Ranks[scope]
		rb, okb := b.Ranks[scope]
		if oa, ob := rankOrder(ra, oka), rankOrder(rb, okb); oa != ob {
			return oa < ob
		}
		if ra.Valid && ra.N != rb.N {
			return ra.N < rb.N
		}
		return a.ISO < b.ISO
	})
}

// rankOrder puts ranked areas first, then null ranks, then areas the
// scope never covered.
func rankOrder(r facts.Rank, ok bool) int {
	switch {
	case ok && r.Valid:
		return 0
	case ok:
		return 1
	}
	return 2
}

func (m Model) rows() []table.Row {
	rows := make([]table.Row, 0, len(m.records))
	for _, r := range m.records {
		name := string(r.ISO)
		if a, ok := m.meta.Area(r.ISO); ok {
			name = a.DisplayName(m.lang)
		}
		rows = append(rows, table.Row{
			string(r.ISO),
			name,
			export.FormatValue(r.Value, valuePrecision),
			formatRank(r, facts.Global),
			formatRank(r, facts.Regional),
			formatRank(r, facts.InCountry),
		})
	}
	return rows
}

// formatRank shows "-" for a null rank and nothing when the scope does
// not apply.
func formatRank(r facts.Record, s facts.Scope) string {
	rk, ok := r.Ranks[s]
	switch {
	case !ok:
		return ""
	case !rk.Valid:
		return "-"
	}
	return strconv.Itoa(rk.N)
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.NextYear):
			if m.year < len(m.years)-1 {
				m.year++
				m.reload()
			}
			return m, nil
		case key.Matches(msg, keys.PrevYear):
			if m.year > 0 {
				m.year--
				m.reload()
			}
			return m, nil
		case key.Matches(msg, keys.NextIndicator):
			if n := len(m.indicators); n > 0 {
				m.indicator = (m.indicator + 1) % n
				m.reload()
			}
			return m, nil
		case key.Matches(msg, keys.PrevIndicator):
			if n := len(m.indicators); n > 0 {
				m.indicator = (m.indicator + n - 1) % n
				m.reload()
			}
			return m, nil
		case key.Matches(msg, keys.Sort):
			m.sortBy = (m.sortBy + 1) % SortKey(len(sortNames))
			m.sortRecords()
			m.table.SetRows(m.rows())
			return m, nil
		case key.Matches(msg, keys.States):
			m.states = !m.states
			m.reload()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	title := "no data"
	if id, ok := m.Indicator(); ok {
		ind, _ := m.meta.Indicator(id)
		y, _ := m.Year()
		title = fmt.Sprintf("%d  %s  %s", id, ind.DisplayName(m.lang), y)
	}

	areas := "countries"
	if m.states {
		areas = "countries + states"
	}
	info := fmt.Sprintf("%d areas (%s)  sorted by %s", len(m.records), areas, m.sortBy)

	parts := []string{titleStyle.Render(title), infoStyle.Render(info), m.table.View()}
	if m.err != nil {
		parts = append(parts, errStyle.Render("error: "+m.err.Error()))
	}
	parts = append(parts, " "+m.help.View(keys))
	return strings.Join(parts, "\n")
}
