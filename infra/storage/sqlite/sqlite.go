// Package sqlite provides a file-backed storage adapter on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"staffplan/core/calendar"
	"staffplan/core/model"
	"staffplan/core/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS members (
	name TEXT PRIMARY KEY,
	pool TEXT NOT NULL,
	contracted_hours INTEGER NOT NULL,
	squad_label TEXT NOT NULL DEFAULT '',
	active INTEGER NOT NULL DEFAULT 1,
	notes TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS initiatives (
	name TEXT PRIMARY KEY,
	phase TEXT NOT NULL,
	state TEXT NOT NULL,
	priority INTEGER NOT NULL,
	budget TEXT NOT NULL DEFAULT '',
	owner_pools TEXT NOT NULL DEFAULT '[]',
	required_by TEXT,
	start_after TEXT,
	rom_pw REAL,
	granular_pw REAL,
	depends_on TEXT NOT NULL DEFAULT '[]',
	pref_squad TEXT NOT NULL DEFAULT '',
	ssot TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS pto (
	member_name TEXT NOT NULL,
	week_start TEXT NOT NULL,
	type TEXT NOT NULL,
	comment TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (member_name, week_start)
);
CREATE TABLE IF NOT EXISTS assignments (
	member_name TEXT NOT NULL,
	week_start TEXT NOT NULL,
	initiative_name TEXT NOT NULL,
	capacity_pw REAL,
	source TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (member_name, week_start)
);`

// Adapter persists planning entities in a SQLite database file.
type Adapter struct {
	db *sql.DB
}

var _ storage.Adapter = (*Adapter)(nil)

// Open opens (and creates if needed) the database at path and ensures the
// schema exists.
func Open(path string) (*Adapter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// Concurrent writers are not a use case; a single connection avoids
	// SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Adapter{db: db}, nil
}

// Close releases the underlying database handle.
func (a *Adapter) Close() error { return a.db.Close() }

func (a *Adapter) ListMembers(ctx context.Context) ([]model.Member, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT name, pool, contracted_hours, squad_label, active, notes FROM members ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	defer rows.Close()
	var out []model.Member
	for rows.Next() {
		var m model.Member
		var active int
		if err := rows.Scan(&m.Name, &m.Pool, &m.ContractedHours, &m.SquadLabel, &active, &m.Notes); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		m.Active = active != 0
		out = append(out, m)
	}
	return out, rows.Err()
}

func (a *Adapter) UpsertMembers(ctx context.Context, members []model.Member) error {
	for _, m := range members {
		_, err := a.db.ExecContext(ctx,
			`INSERT INTO members (name, pool, contracted_hours, squad_label, active, notes)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				pool=excluded.pool, contracted_hours=excluded.contracted_hours,
				squad_label=excluded.squad_label, active=excluded.active, notes=excluded.notes`,
			m.Name, string(m.Pool), m.ContractedHours, m.SquadLabel, boolToInt(m.Active), m.Notes)
		if err != nil {
			return fmt.Errorf("upserting member %s: %w", m.Name, err)
		}
	}
	return nil
}

func (a *Adapter) DeleteMembers(ctx context.Context, names []string) error {
	for _, n := range names {
		if _, err := a.db.ExecContext(ctx, `DELETE FROM members WHERE name = ?`, n); err != nil {
			return fmt.Errorf("deleting member %s: %w", n, err)
		}
	}
	return nil
}

func (a *Adapter) ListInitiatives(ctx context.Context) ([]model.Initiative, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT name, phase, state, priority, budget, owner_pools, required_by, start_after,
			rom_pw, granular_pw, depends_on, pref_squad, ssot
		FROM initiatives ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing initiatives: %w", err)
	}
	defer rows.Close()
	var out []model.Initiative
	for rows.Next() {
		i, err := scanInitiative(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *i)
	}
	return out, rows.Err()
}

func (a *Adapter) UpsertInitiatives(ctx context.Context, initiatives []model.Initiative) error {
	for _, i := range initiatives {
		pools, err := json.Marshal(i.OwnerPools)
		if err != nil {
			return fmt.Errorf("encoding owner_pools for %s: %w", i.Name, err)
		}
		deps, err := json.Marshal(i.DependsOn)
		if err != nil {
			return fmt.Errorf("encoding depends_on for %s: %w", i.Name, err)
		}
		_, err = a.db.ExecContext(ctx,
			`INSERT INTO initiatives (name, phase, state, priority, budget, owner_pools,
				required_by, start_after, rom_pw, granular_pw, depends_on, pref_squad, ssot)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(name) DO UPDATE SET
				phase=excluded.phase, state=excluded.state, priority=excluded.priority,
				budget=excluded.budget, owner_pools=excluded.owner_pools,
				required_by=excluded.required_by, start_after=excluded.start_after,
				rom_pw=excluded.rom_pw, granular_pw=excluded.granular_pw,
				depends_on=excluded.depends_on, pref_squad=excluded.pref_squad, ssot=excluded.ssot`,
			i.Name, string(i.Phase), string(i.State), i.Priority, string(i.Budget), string(pools),
			dateToNullString(i.RequiredBy), dateToNullString(i.StartAfter),
			i.RomPW, i.GranularPW, string(deps), i.PrefSquad, i.SSOT)
		if err != nil {
			return fmt.Errorf("upserting initiative %s: %w", i.Name, err)
		}
	}
	return nil
}

func (a *Adapter) DeleteInitiatives(ctx context.Context, names []string) error {
	for _, n := range names {
		if _, err := a.db.ExecContext(ctx, `DELETE FROM initiatives WHERE name = ?`, n); err != nil {
			return fmt.Errorf("deleting initiative %s: %w", n, err)
		}
	}
	return nil
}

func (a *Adapter) ListPTO(ctx context.Context) ([]model.PTORecord, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT member_name, week_start, type, comment FROM pto ORDER BY member_name, week_start`)
	if err != nil {
		return nil, fmt.Errorf("listing pto: %w", err)
	}
	defer rows.Close()
	var out []model.PTORecord
	for rows.Next() {
		var p model.PTORecord
		var week string
		if err := rows.Scan(&p.MemberName, &week, &p.Type, &p.Comment); err != nil {
			return nil, fmt.Errorf("scanning pto: %w", err)
		}
		p.WeekStart, err = calendar.ParseDate(week)
		if err != nil {
			return nil, fmt.Errorf("parsing pto week_start: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (a *Adapter) UpsertPTO(ctx context.Context, records []model.PTORecord) error {
	for _, p := range records {
		_, err := a.db.ExecContext(ctx,
			`INSERT INTO pto (member_name, week_start, type, comment)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(member_name, week_start) DO UPDATE SET
				type=excluded.type, comment=excluded.comment`,
			p.MemberName, calendar.FormatDate(p.WeekStart), string(p.Type), p.Comment)
		if err != nil {
			return fmt.Errorf("upserting pto for %s: %w", p.MemberName, err)
		}
	}
	return nil
}

func (a *Adapter) DeletePTO(ctx context.Context, keys []storage.MemberWeekKey) error {
	for _, k := range keys {
		_, err := a.db.ExecContext(ctx,
			`DELETE FROM pto WHERE member_name = ? AND week_start = ?`,
			k.MemberName, calendar.FormatDate(k.WeekStart))
		if err != nil {
			return fmt.Errorf("deleting pto for %s: %w", k.MemberName, err)
		}
	}
	return nil
}

func (a *Adapter) ListAssignments(ctx context.Context) ([]model.Assignment, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT member_name, week_start, initiative_name, capacity_pw, source
		FROM assignments ORDER BY member_name, week_start`)
	if err != nil {
		return nil, fmt.Errorf("listing assignments: %w", err)
	}
	defer rows.Close()
	var out []model.Assignment
	for rows.Next() {
		var as model.Assignment
		var week string
		var capacity sql.NullFloat64
		if err := rows.Scan(&as.MemberName, &week, &as.InitiativeName, &capacity, &as.Source); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}
		as.WeekStart, err = calendar.ParseDate(week)
		if err != nil {
			return nil, fmt.Errorf("parsing assignment week_start: %w", err)
		}
		if capacity.Valid {
			as.CapacityPW = model.Ptr(capacity.Float64)
		}
		out = append(out, as)
	}
	return out, rows.Err()
}

func (a *Adapter) UpsertAssignments(ctx context.Context, assignments []model.Assignment) error {
	for _, as := range assignments {
		_, err := a.db.ExecContext(ctx,
			`INSERT INTO assignments (member_name, week_start, initiative_name, capacity_pw, source)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(member_name, week_start) DO UPDATE SET
				initiative_name=excluded.initiative_name,
				capacity_pw=excluded.capacity_pw, source=excluded.source`,
			as.MemberName, calendar.FormatDate(as.WeekStart), as.InitiativeName, as.CapacityPW, as.Source)
		if err != nil {
			return fmt.Errorf("upserting assignment for %s: %w", as.MemberName, err)
		}
	}
	return nil
}

func (a *Adapter) DeleteAssignments(ctx context.Context, keys []storage.MemberWeekKey) error {
	for _, k := range keys {
		_, err := a.db.ExecContext(ctx,
			`DELETE FROM assignments WHERE member_name = ? AND week_start = ?`,
			k.MemberName, calendar.FormatDate(k.WeekStart))
		if err != nil {
			return fmt.Errorf("deleting assignment for %s: %w", k.MemberName, err)
		}
	}
	return nil
}

func (a *Adapter) MemberByName(ctx context.Context, name string) (*model.Member, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT name, pool, contracted_hours, squad_label, active, notes FROM members WHERE name = ?`, name)
	var m model.Member
	var active int
	err := row.Scan(&m.Name, &m.Pool, &m.ContractedHours, &m.SquadLabel, &active, &m.Notes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning member: %w", err)
	}
	m.Active = active != 0
	return &m, nil
}

func (a *Adapter) InitiativeByName(ctx context.Context, name string) (*model.Initiative, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT name, phase, state, priority, budget, owner_pools, required_by, start_after,
			rom_pw, granular_pw, depends_on, pref_squad, ssot
		FROM initiatives WHERE name = ?`, name)
	i, err := scanInitiative(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return i, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInitiative(row rowScanner) (*model.Initiative, error) {
	var i model.Initiative
	var pools, deps string
	var requiredBy, startAfter sql.NullString
	var rom, granular sql.NullFloat64
	err := row.Scan(&i.Name, &i.Phase, &i.State, &i.Priority, &i.Budget, &pools,
		&requiredBy, &startAfter, &rom, &granular, &deps, &i.PrefSquad, &i.SSOT)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scanning initiative: %w", err)
	}
	if err := json.Unmarshal([]byte(pools), &i.OwnerPools); err != nil {
		return nil, fmt.Errorf("decoding owner_pools for %s: %w", i.Name, err)
	}
	if err := json.Unmarshal([]byte(deps), &i.DependsOn); err != nil {
		return nil, fmt.Errorf("decoding depends_on for %s: %w", i.Name, err)
	}
	if i.RequiredBy, err = nullStringToDate(requiredBy); err != nil {
		return nil, fmt.Errorf("parsing required_by for %s: %w", i.Name, err)
	}
	if i.StartAfter, err = nullStringToDate(startAfter); err != nil {
		return nil, fmt.Errorf("parsing start_after for %s: %w", i.Name, err)
	}
	if rom.Valid {
		i.RomPW = model.Ptr(rom.Float64)
	}
	if granular.Valid {
		i.GranularPW = model.Ptr(granular.Float64)
	}
	return &i, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func dateToNullString(t *time.Time) any {
	if t == nil {
		return nil
	}
	return calendar.FormatDate(*t)
}

func nullStringToDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	d, err := calendar.ParseDate(s.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
