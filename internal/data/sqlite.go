package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	// register sqlite3 for database/sql
	_ "github.com/mattn/go-sqlite3"
	"hawx.me/code/dashboard/internal/backend"
)

// SQLite keeps the session of dashctl in a single row table, so that signing in
// survives between runs.
type SQLite struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLite, error) {
	sqlite, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db := &SQLite{db: sqlite}

	return db, db.migrate()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS session (
		ID           INTEGER PRIMARY KEY CHECK (ID = 1),
		AccessToken  TEXT,
		RefreshToken TEXT,
		ExpiresAt    DATETIME,
		User         TEXT,
		UpdatedAt    DATETIME
	);`,
}

func (d *SQLite) migrate() error {
	version, err := d.schemaVersion()
	if err != nil {
		return err
	}

	if version > len(migrations) {
		return fmt.Errorf("data: database schema version %d is newer than this build supports (%d)", version, len(migrations))
	}

	for _, stmt := range migrations[version:] {
		_, err := d.db.Exec(stmt)
		if err != nil {
			return err
		}
	}

	return d.setSchemaVersion(len(migrations))
}

func (d *SQLite) schemaVersion() (int, error) {
	row := d.db.QueryRow("PRAGMA user_version")

	var version int
	err := row.Scan(&version)
	return version, err
}

func (d *SQLite) setSchemaVersion(version int) error {
	_, err := d.db.Exec("PRAGMA user_version = " + strconv.Itoa(version))
	return err
}

func (d *SQLite) Load(ctx context.Context) (*backend.Session, error) {
	row := d.db.QueryRowContext(ctx, `SELECT AccessToken, RefreshToken, ExpiresAt, User FROM session WHERE ID = 1`)

	var (
		session backend.Session
		user    string
	)
	err := row.Scan(&session.AccessToken, &session.RefreshToken, &session.ExpiresAt, &user)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(user), &session.User); err != nil {
		return nil, err
	}

	return &session, nil
}

func (d *SQLite) Save(ctx context.Context, session *backend.Session) error {
	user, err := json.Marshal(session.User)
	if err != nil {
		return err
	}

	_, err = d.db.ExecContext(ctx, `INSERT OR REPLACE INTO session(ID, AccessToken, RefreshToken, ExpiresAt, User, UpdatedAt) VALUES (1, ?, ?, ?, ?, ?)`,
		session.AccessToken,
		session.RefreshToken,
		session.ExpiresAt,
		string(user),
		time.Now())

	return err
}

func (d *SQLite) Remove(ctx context.Context) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM session`)
	return err
}

func (d *SQLite) Close() error {
	return d.db.Close()
}
