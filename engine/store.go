package engine

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS nodes (
	name  TEXT NOT NULL,
	key   BLOB NOT NULL,
	value BLOB NOT NULL,
	PRIMARY KEY (name, key)
) WITHOUT ROWID`

// store keeps the nodes of one variable space. Only nodes holding a value are
// rows; a node with children but no value exists implicitly. All access goes
// through one dedicated connection so in-memory databases and savepoints
// survive between calls.
type store struct {
	db   *sql.DB
	conn *sql.Conn
	path string
}

type row struct {
	key   []byte
	value []byte
}

// openStore opens path, or a private in-memory database when path is empty.
func openStore(ctx context.Context, path string) (*store, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect sqlite %s: %w", dsn, err)
	}
	s := &store{db: db, conn: conn, path: path}

	pragmas := []string{"PRAGMA busy_timeout=5000"}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range append(pragmas, schema) {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			_ = s.close()
			return nil, fmt.Errorf("prepare sqlite %s: %w", dsn, err)
		}
	}
	return s, nil
}

func (s *store) close() error {
	err := s.conn.Close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *store) get(ctx context.Context, name string, key []byte) ([]byte, bool, error) {
	var value []byte
	err := s.conn.QueryRowContext(ctx,
		`SELECT value FROM nodes WHERE name = ? AND key = ?`, name, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (s *store) put(ctx context.Context, name string, key, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO nodes (name, key, value) VALUES (?, ?, ?)
		 ON CONFLICT (name, key) DO UPDATE SET value = excluded.value`, name, key, value)
	return err
}

func (s *store) delete(ctx context.Context, name string, key []byte) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM nodes WHERE name = ? AND key = ?`, name, key)
	return err
}

// deleteRange removes keys in [lo, hi).
func (s *store) deleteRange(ctx context.Context, name string, lo, hi []byte) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM nodes WHERE name = ? AND key >= ? AND key < ?`, name, lo, hi)
	return err
}

func (s *store) deleteName(ctx context.Context, name string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM nodes WHERE name = ?`, name)
	return err
}

func (s *store) deleteAll(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM nodes`)
	return err
}

func (s *store) exists(ctx context.Context, name string, lo, hi []byte) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx,
		`SELECT 1 FROM nodes WHERE name = ? AND key >= ? AND key < ? LIMIT 1`, name, lo, hi).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// first returns the lowest key in [lo, hi), or the highest when last is set.
func (s *store) first(ctx context.Context, name string, lo, hi []byte, last bool) (row, bool, error) {
	q := `SELECT key, value FROM nodes WHERE name = ? AND key >= ? AND key < ? ORDER BY key LIMIT 1`
	if last {
		q = `SELECT key, value FROM nodes WHERE name = ? AND key >= ? AND key < ? ORDER BY key DESC LIMIT 1`
	}
	var r row
	err := s.conn.QueryRowContext(ctx, q, name, lo, hi).Scan(&r.key, &r.value)
	if err == sql.ErrNoRows {
		return row{}, false, nil
	}
	if err != nil {
		return row{}, false, err
	}
	return r, true, nil
}

// after returns the first key strictly greater than key.
func (s *store) after(ctx context.Context, name string, key []byte) (row, bool, error) {
	var r row
	err := s.conn.QueryRowContext(ctx,
		`SELECT key, value FROM nodes WHERE name = ? AND key > ? ORDER BY key LIMIT 1`, name, key).Scan(&r.key, &r.value)
	if err == sql.ErrNoRows {
		return row{}, false, nil
	}
	if err != nil {
		return row{}, false, err
	}
	return r, true, nil
}

// before returns the last subscripted key strictly less than key.
func (s *store) before(ctx context.Context, name string, key []byte) (row, bool, error) {
	var r row
	err := s.conn.QueryRowContext(ctx,
		`SELECT key, value FROM nodes WHERE name = ? AND key > ? AND key < ? ORDER BY key DESC LIMIT 1`,
		name, rootKey, key).Scan(&r.key, &r.value)
	if err == sql.ErrNoRows {
		return row{}, false, nil
	}
	if err != nil {
		return row{}, false, err
	}
	return r, true, nil
}

func (s *store) rows(ctx context.Context, name string, lo, hi []byte) ([]row, error) {
	rs, err := s.conn.QueryContext(ctx,
		`SELECT key, value FROM nodes WHERE name = ? AND key >= ? AND key < ? ORDER BY key`, name, lo, hi)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []row
	for rs.Next() {
		var r row
		if err := rs.Scan(&r.key, &r.value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rs.Err()
}

// nextName returns the variable name following name, or preceding it when
// reverse is set. An empty name starts from the respective end.
func (s *store) nextName(ctx context.Context, name string, reverse bool) (string, bool, error) {
	var q string
	var args []any
	switch {
	case reverse && name == "":
		q = `SELECT name FROM nodes ORDER BY name DESC LIMIT 1`
	case reverse:
		q = `SELECT name FROM nodes WHERE name < ? ORDER BY name DESC LIMIT 1`
		args = append(args, name)
	default:
		q = `SELECT name FROM nodes WHERE name > ? ORDER BY name LIMIT 1`
		args = append(args, name)
	}
	var out string
	err := s.conn.QueryRowContext(ctx, q, args...).Scan(&out)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return out, true, nil
}

// names lists distinct variable names in [lo, hi], either bound optional.
func (s *store) names(ctx context.Context, lo, hi string, limit int) ([]string, error) {
	q := `SELECT DISTINCT name FROM nodes WHERE 1 = 1`
	var args []any
	if lo != "" {
		q += ` AND name >= ?`
		args = append(args, lo)
	}
	if hi != "" {
		q += ` AND name <= ?`
		args = append(args, hi)
	}
	q += ` ORDER BY name`
	if limit > 0 {
		q += fmt.Sprintf(` LIMIT %d`, limit)
	}
	rs, err := s.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rs.Close()
	out := []string{}
	for rs.Next() {
		var n string
		if err := rs.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rs.Err()
}

func (s *store) savepoint(ctx context.Context, level int) error {
	_, err := s.conn.ExecContext(ctx, fmt.Sprintf("SAVEPOINT tp%d", level))
	return err
}

func (s *store) release(ctx context.Context, level int) error {
	_, err := s.conn.ExecContext(ctx, fmt.Sprintf("RELEASE SAVEPOINT tp%d", level))
	return err
}

func (s *store) rollback(ctx context.Context, level int) error {
	if _, err := s.conn.ExecContext(ctx, fmt.Sprintf("ROLLBACK TO SAVEPOINT tp%d", level)); err != nil {
		return err
	}
	return s.release(ctx, level)
}

func (s *store) version(ctx context.Context) (string, error) {
	var v string
	err := s.conn.QueryRowContext(ctx, `SELECT sqlite_version()`).Scan(&v)
	return v, err
}
