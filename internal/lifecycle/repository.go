package lifecycle

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Repository interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSessionState(ctx context.Context, id string, from, to State, lastError string, at time.Time) error
	UpdateSessionDimensions(ctx context.Context, id string, width, height int, at time.Time) error
	ListSessionsBefore(ctx context.Context, states []State, before time.Time) ([]*Session, error)

	CreateArtifact(ctx context.Context, a *Artifact) error
	ListArtifacts(ctx context.Context, sessionID string, roles ...Role) ([]*Artifact, error)
	FindArtifactByName(ctx context.Context, name string, roles ...Role) (*Artifact, error)
	HasArtifactPath(ctx context.Context, path string) (bool, error)
	DeleteArtifact(ctx context.Context, token string) error
}

// ErrStateConflict means the session was not in the expected state when
// an update was attempted.
var ErrStateConflict = errors.New("session state changed concurrently")

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s *Session) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, original_name, width, height, state, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.OriginalName, s.Width, s.Height, string(s.State), nullString(s.LastError),
		s.CreatedAt.UTC().Format(timeLayout), s.UpdatedAt.UTC().Format(timeLayout))
	return err
}

func (r *SQLiteRepository) GetSession(ctx context.Context, id string) (*Session, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, original_name, width, height, state, last_error, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)
	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// UpdateSessionState moves id from one state to another. It fails with
// ErrStateConflict when the row is no longer in from.
func (r *SQLiteRepository) UpdateSessionState(ctx context.Context, id string, from, to State, lastError string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET state = ?, last_error = ?, updated_at = ?
		WHERE id = ? AND state = ?
	`, string(to), nullString(lastError), at.UTC().Format(timeLayout), id, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStateConflict
	}
	return nil
}

func (r *SQLiteRepository) UpdateSessionDimensions(ctx context.Context, id string, width, height int, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sessions SET width = ?, height = ?, updated_at = ? WHERE id = ?
	`, width, height, at.UTC().Format(timeLayout), id)
	return err
}

// ListSessionsBefore returns sessions in one of states last updated before
// the given time, oldest first.
func (r *SQLiteRepository) ListSessionsBefore(ctx context.Context, states []State, before time.Time) ([]*Session, error) {
	if len(states) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(states)+1)
	for _, s := range states {
		args = append(args, string(s))
	}
	args = append(args, before.UTC().Format(timeLayout))

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, original_name, width, height, state, last_error, created_at, updated_at
		FROM sessions WHERE state IN (`+placeholders(len(states))+`) AND updated_at < ?
		ORDER BY updated_at
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateArtifact(ctx context.Context, a *Artifact) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO artifacts (token, session_id, role, name, path, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.Token, a.SessionID, string(a.Role), a.Name, a.Path, a.CreatedAt.UTC().Format(timeLayout))
	return err
}

// ListArtifacts returns the session's artifacts, restricted to roles when
// any are given.
func (r *SQLiteRepository) ListArtifacts(ctx context.Context, sessionID string, roles ...Role) ([]*Artifact, error) {
	query := `SELECT token, session_id, role, name, path, created_at FROM artifacts WHERE session_id = ?`
	args := []any{sessionID}
	if len(roles) > 0 {
		query += ` AND role IN (` + placeholders(len(roles)) + `)`
		for _, role := range roles {
			args = append(args, string(role))
		}
	}
	query += ` ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindArtifactByName returns the first artifact named name, trying roles in
// the order given.
func (r *SQLiteRepository) FindArtifactByName(ctx context.Context, name string, roles ...Role) (*Artifact, error) {
	for _, role := range roles {
		row := r.db.QueryRowContext(ctx, `
			SELECT token, session_id, role, name, path, created_at
			FROM artifacts WHERE name = ? AND role = ? LIMIT 1
		`, name, string(role))
		a, err := scanArtifact(row)
		if err == sql.ErrNoRows {
			continue
		}
		return a, err
	}
	return nil, nil
}

func (r *SQLiteRepository) HasArtifactPath(ctx context.Context, path string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM artifacts WHERE path = ?`, path).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (r *SQLiteRepository) DeleteArtifact(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM artifacts WHERE token = ?`, token)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var state string
	var lastError sql.NullString
	var createdAt, updatedAt string

	if err := row.Scan(&s.ID, &s.OriginalName, &s.Width, &s.Height, &state, &lastError, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.State = State(state)
	s.LastError = lastError.String
	s.CreatedAt = parseTime(createdAt)
	s.UpdatedAt = parseTime(updatedAt)
	return &s, nil
}

func scanArtifact(row scanner) (*Artifact, error) {
	var a Artifact
	var role, createdAt string
	if err := row.Scan(&a.Token, &a.SessionID, &role, &a.Name, &a.Path, &createdAt); err != nil {
		return nil, err
	}
	a.Role = Role(role)
	a.CreatedAt = parseTime(createdAt)
	return &a, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
