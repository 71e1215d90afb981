package db

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"agentchat/internal/models"
	_ "modernc.org/sqlite"
)

// History stores the chat locations the user has opened.
type History struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS visits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			path TEXT NOT NULL UNIQUE,
			agent_name TEXT NOT NULL DEFAULT '',
			session_title TEXT NOT NULL DEFAULT '',
			visited_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_visits_visited_at ON visits(visited_at DESC, id DESC);`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &History{db: db}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

// RecordVisit stores v, moving an existing entry for the same path to the top.
func (h *History) RecordVisit(ctx context.Context, v models.Visit) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO visits(path, agent_name, session_title, visited_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			agent_name = CASE WHEN excluded.agent_name != '' THEN excluded.agent_name ELSE visits.agent_name END,
			session_title = CASE WHEN excluded.session_title != '' THEN excluded.session_title ELSE visits.session_title END,
			visited_at = excluded.visited_at`,
		v.Path,
		v.AgentName,
		v.SessionTitle,
		v.VisitedUnix,
	)
	return err
}

// RecentVisits returns the total number of stored visits and the newest
// limit of them.
func (h *History) RecentVisits(ctx context.Context, limit int) (int, []models.Visit, error) {
	var count int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM visits").Scan(&count); err != nil {
		return 0, nil, err
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, path, agent_name, session_title, visited_at FROM visits ORDER BY visited_at DESC, id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	items := make([]models.Visit, 0, limit)
	for rows.Next() {
		var v models.Visit
		if err := rows.Scan(&v.ID, &v.Path, &v.AgentName, &v.SessionTitle, &v.VisitedUnix); err != nil {
			return 0, nil, err
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	return count, items, nil
}

// LastVisit returns the most recent visit; ok is false when none is stored.
func (h *History) LastVisit(ctx context.Context) (v models.Visit, ok bool, err error) {
	err = h.db.QueryRowContext(ctx,
		"SELECT id, path, agent_name, session_title, visited_at FROM visits ORDER BY visited_at DESC, id DESC LIMIT 1",
	).Scan(&v.ID, &v.Path, &v.AgentName, &v.SessionTitle, &v.VisitedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Visit{}, false, nil
	}
	if err != nil {
		return models.Visit{}, false, err
	}
	return v, true, nil
}

// Forget removes path and every location below it.
func (h *History) Forget(ctx context.Context, path string) error {
	_, err := h.db.ExecContext(ctx,
		"DELETE FROM visits WHERE path = ? OR path LIKE ? ESCAPE '\\'",
		path,
		escapeLike(path)+"/%",
	)
	return err
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '%' || r == '_' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(out)
}
