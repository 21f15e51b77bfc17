// Package store provides SQLite persistence for the ranked fact table.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/developmentseed/climatescope-data/internal/facts"
	"github.com/developmentseed/climatescope-data/internal/meta"
)

// ErrNoBuild is returned when the database holds no build yet.
var ErrNoBuild = errors.New("no build in database")

// Store handles SQLite persistence. NOT an interface - concrete type.
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Build describes one pipeline run.
type Build struct {
	ID          string
	Created     time.Time
	Years       []facts.Year
	CurrentYear facts.Year
	Facts       int // rows × years written
	Skipped     int // source files skipped
}

// Open creates a new Store with the given database path.
// Creates tables if they don't exist.
// Uses WAL mode for file-based databases.
func Open(dbPath string) (*Store, error) {
	connStr := dbPath
	if dbPath == ":memory:" {
		// shared cache so every pooled connection sees the same database
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return s, nil
}

// createTables creates the required tables and indexes if they don't exist.
//
// Rank columns are NULL when the scope never covered the area, 0 when the
// area was covered but excluded (null rank), and the rank otherwise.
func (s *Store) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS builds (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		years TEXT NOT NULL,
		current_year INTEGER NOT NULL,
		facts INTEGER NOT NULL,
		skipped INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS areas (
		iso TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		parent_country TEXT,
		region TEXT,
		grid TEXT,
		names TEXT
	);

	CREATE TABLE IF NOT EXISTS indicators (
		id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		parent_id INTEGER,
		grid TEXT,
		weight REAL,
		names TEXT,
		descriptions TEXT
	);

	CREATE TABLE IF NOT EXISTS facts (
		iso TEXT NOT NULL,
		indicator_id INTEGER NOT NULL,
		year INTEGER NOT NULL,
		value REAL,
		global_rank INTEGER,
		regional_rank INTEGER,
		in_country_rank INTEGER,
		PRIMARY KEY (iso, indicator_id, year)
	);

	CREATE INDEX IF NOT EXISTS idx_facts_indicator_year ON facts(indicator_id, year);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

var rankColumns = map[facts.Scope]string{
	facts.Global:    "global_rank",
	facts.Regional:  "regional_rank",
	facts.InCountry: "in_country_rank",
}

// SaveBuild replaces the stored metadata and facts with t and records b,
// all in one transaction. round, when set, is applied to every value
// before it is written.
func (s *Store) SaveBuild(b Build, m *meta.Metadata, t *facts.Table, round func(facts.Value) facts.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"facts", "areas", "indicators"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertAreas(tx, m); err != nil {
		return err
	}
	if err := insertIndicators(tx, m); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO facts (iso, indicator_id, year, value, global_rank, regional_rank, in_country_rank)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	n := 0
	for _, rec := range t.Slice(facts.Filter{}) {
		v := rec.Value
		if round != nil {
			v = round(v)
		}
		_, err := stmt.Exec(
			string(rec.ISO),
			int(rec.Indicator),
			int(rec.Year),
			nullFloat(v),
			rankArg(rec, facts.Global),
			rankArg(rec, facts.Regional),
			rankArg(rec, facts.InCountry),
		)
		if err != nil {
			return fmt.Errorf("insert fact %s/%d/%d: %w", rec.ISO, rec.Indicator, rec.Year, err)
		}
		n++
	}

	if b.Created.IsZero() {
		b.Created = time.Now()
	}
	_, err = tx.Exec(`
		INSERT INTO builds (id, created_at, years, current_year, facts, skipped)
		VALUES (?, ?, ?, ?, ?, ?)
	`, b.ID, b.Created.UTC().Format(time.RFC3339Nano), joinYears(b.Years), int(b.CurrentYear), n, b.Skipped)
	if err != nil {
		return fmt.Errorf("insert build: %w", err)
	}

	return tx.Commit()
}

func insertAreas(tx *sql.Tx, m *meta.Metadata) error {
	isos := append(append([]meta.ISO{}, m.Regions()...), m.AdminAreas()...)
	for _, iso := range isos {
		a, _ := m.Area(iso)
		names, err := json.Marshal(a.Name)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO areas (iso, type, parent_country, region, grid, names)
			VALUES (?, ?, ?, ?, ?, ?)
		`, string(a.ISO), string(a.Type), nullString(string(a.ParentCountry)), nullString(string(a.Region)), nullString(string(a.Grid)), string(names))
		if err != nil {
			return fmt.Errorf("insert area %s: %w", iso, err)
		}
	}
	return nil
}

func insertIndicators(tx *sql.Tx, m *meta.Metadata) error {
	for _, id := range m.RankedIndicators() {
		ind, _ := m.Indicator(id)
		names, err := json.Marshal(ind.Name)
		if err != nil {
			return err
		}
		desc, err := json.Marshal(ind.Description)
		if err != nil {
			return err
		}
		var parent, weight interface{}
		if ind.ParentID != nil {
			parent = int(*ind.ParentID)
		}
		if ind.Weight != nil {
			weight = *ind.Weight
		}
		_, err = tx.Exec(`
			INSERT INTO indicators (id, kind, parent_id, grid, weight, names, descriptions)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, int(ind.ID), string(ind.Kind), parent, nullString(string(ind.Grid)), weight, string(names), string(desc))
		if err != nil {
			return fmt.Errorf("insert indicator %d: %w", id, err)
		}
	}
	return nil
}

// Query returns the stored records matching f, ordered by iso, indicator
// and year. It answers the same questions as facts.Table.Slice.
func (s *Store) Query(f facts.Filter) ([]facts.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var where []string
	var args []any
	if len(f.ISOs) > 0 {
		where = append(where, "iso IN ("+placeholders(len(f.ISOs))+")")
		for _, iso := range f.ISOs {
			args = append(args, string(iso))
		}
	}
	if len(f.Indicators) > 0 {
		where = append(where, "indicator_id IN ("+placeholders(len(f.Indicators))+")")
		for _, id := range f.Indicators {
			args = append(args, int(id))
		}
	}
	if len(f.Years) > 0 {
		where = append(where, "year IN ("+placeholders(len(f.Years))+")")
		for _, y := range f.Years {
			args = append(args, int(y))
		}
	}
	if f.Scope != "" {
		col, ok := rankColumns[f.Scope]
		if !ok {
			return nil, fmt.Errorf("unknown scope %q", f.Scope)
		}
		where = append(where, col+" IS NOT NULL")
	}

	query := `SELECT iso, indicator_id, year, value, global_rank, regional_rank, in_country_rank FROM facts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY iso, indicator_id, year"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []facts.Record
	for rows.Next() {
		var (
			iso            string
			id, year       int
			value          sql.NullFloat64
			global, region sql.NullInt64
			country        sql.NullInt64
		)
		if err := rows.Scan(&iso, &id, &year, &value, &global, &region, &country); err != nil {
			return nil, err
		}
		rec := facts.Record{
			ISO:       meta.ISO(iso),
			Indicator: meta.IndicatorID(id),
			Year:      facts.Year(year),
		}
		if value.Valid {
			rec.Value = facts.Some(value.Float64)
		}
		for _, r := range []struct {
			scope facts.Scope
			col   sql.NullInt64
		}{{facts.Global, global}, {facts.Regional, region}, {facts.InCountry, country}} {
			if !r.col.Valid {
				continue
			}
			if rec.Ranks == nil {
				rec.Ranks = make(map[facts.Scope]facts.Rank, len(facts.Scopes))
			}
			if r.col.Int64 > 0 {
				rec.Ranks[r.scope] = facts.RankOf(int(r.col.Int64))
			} else {
				rec.Ranks[r.scope] = facts.NoRank
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Years returns the stored years, oldest first.
func (s *Store) Years() ([]facts.Year, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT DISTINCT year FROM facts ORDER BY year")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var years []facts.Year
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, facts.Year(y))
	}
	return years, rows.Err()
}

// LatestBuild returns the most recent build.
func (s *Store) LatestBuild() (Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		b       Build
		created string
		years   string
		current int
	)
	err := s.db.QueryRow(`
		SELECT id, created_at, years, current_year, facts, skipped
		FROM builds ORDER BY created_at DESC LIMIT 1
	`).Scan(&b.ID, &created, &years, &current, &b.Facts, &b.Skipped)
	if errors.Is(err, sql.ErrNoRows) {
		return Build{}, ErrNoBuild
	}
	if err != nil {
		return Build{}, err
	}

	if b.Created, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Build{}, fmt.Errorf("build %s: created_at: %w", b.ID, err)
	}
	if b.Years, err = splitYears(years); err != nil {
		return Build{}, fmt.Errorf("build %s: %w", b.ID, err)
	}
	b.CurrentYear = facts.Year(current)
	return b, nil
}

// Indicators returns the stored indicator taxonomy ordered by id.
func (s *Store) Indicators() ([]meta.Indicator, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id, kind, parent_id, grid, weight, names, descriptions FROM indicators ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []meta.Indicator
	for rows.Next() {
		var (
			ind          meta.Indicator
			id           int
			kind         string
			parent       sql.NullInt64
			grid         sql.NullString
			weight       sql.NullFloat64
			names, descs sql.NullString
		)
		if err := rows.Scan(&id, &kind, &parent, &grid, &weight, &names, &descs); err != nil {
			return nil, err
		}
		ind.ID = meta.IndicatorID(id)
		ind.Kind = meta.IndicatorKind(kind)
		ind.Grid = meta.Grid(grid.String)
		if parent.Valid {
			p := meta.IndicatorID(parent.Int64)
			ind.ParentID = &p
		}
		if weight.Valid {
			w := weight.Float64
			ind.Weight = &w
		}
		if err := decodeNames(names, &ind.Name); err != nil {
			return nil, err
		}
		if err := decodeNames(descs, &ind.Description); err != nil {
			return nil, err
		}
		out = append(out, ind)
	}
	return out, rows.Err()
}

// Areas returns the stored admin areas, regions included.
func (s *Store) Areas() ([]meta.AdminArea, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT iso, type, parent_country, region, grid, names FROM areas ORDER BY iso`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []meta.AdminArea
	for rows.Next() {
		var (
			iso, typ              string
			country, region, grid sql.NullString
			names                 sql.NullString
		)
		if err := rows.Scan(&iso, &typ, &country, &region, &grid, &names); err != nil {
			return nil, err
		}
		a := meta.AdminArea{
			ISO:           meta.ISO(iso),
			Type:          meta.AreaType(typ),
			ParentCountry: meta.ISO(country.String),
			Region:        meta.ISO(region.String),
			Grid:          meta.Grid(grid.String),
		}
		if err := decodeNames(names, &a.Name); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Metadata rebuilds the validated metadata of the stored build.
func (s *Store) Metadata() (*meta.Metadata, error) {
	areas, err := s.Areas()
	if err != nil {
		return nil, fmt.Errorf("load areas: %w", err)
	}
	inds, err := s.Indicators()
	if err != nil {
		return nil, fmt.Errorf("load indicators: %w", err)
	}
	return meta.New(areas, inds)
}

func decodeNames(s sql.NullString, dst *meta.Names) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), dst)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullFloat(v facts.Value) any {
	if !v.Valid {
		return nil
	}
	return v.Float64
}

// rankArg encodes a record's rank for scope: NULL when unwritten, 0 when
// null.
func rankArg(rec facts.Record, scope facts.Scope) any {
	r, ok := rec.Ranks[scope]
	if !ok {
		return nil
	}
	if !r.Valid {
		return 0
	}
	return r.N
}

func joinYears(years []facts.Year) string {
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = y.String()
	}
	return strings.Join(parts, ",")
}

func splitYears(s string) ([]facts.Year, error) {
	if s == "" {
		return nil, nil
	}
	var out []facts.Year
	for _, p := range strings.Split(s, ",") {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("years: %w", err)
		}
		out = append(out, facts.Year(n))
	}
	return out, nil
}
