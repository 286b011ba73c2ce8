package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/slidewise/deckd/internal/core"
	_ "modernc.org/sqlite"
)

//go:embed migrations/001_initial_schema.sql
var migrationV1 string

// SQLiteStore implements SessionStore and PresentationStore on SQLite.
type SQLiteStore struct {
	dbPath string
	db     *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and runs
// pending migrations. WAL mode keeps concurrent reads cheap.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLiteStore{dbPath: dbPath, db: db}
	if err := s.migrate(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("running migrations: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		// Table doesn't exist yet, run initial migration
		version = 0
	}
	if version < 1 {
		if _, err := s.db.Exec(migrationV1); err != nil {
			return fmt.Errorf("applying migration v1: %w", err)
		}
	}
	return nil
}

// GetSession returns the session or a not_found error when missing or
// expired. Expired rows are deleted on read.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*core.Session, error) {
	var data, expires string
	err := s.db.QueryRowContext(ctx,
		"SELECT data, expires_at FROM sessions WHERE session_id = ?", id,
	).Scan(&data, &expires)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound("session", id)
	}
	if err != nil {
		return nil, core.ErrStorage(core.CodeStoreUnavailable, "querying session").WithCause(err)
	}

	expiresAt, err := time.Parse(time.RFC3339, expires)
	if err == nil && time.Now().After(expiresAt) {
		_, _ = s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id)
		return nil, core.ErrNotFound("session", id)
	}

	var session core.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return nil, core.ErrStorage(core.CodeParseFailed, "decoding session").WithCause(err)
	}
	return &session, nil
}

// SetSession stores or refreshes a session with the given TTL.
func (s *SQLiteStore) SetSession(ctx context.Context, session *core.Session, ttl time.Duration) error {
	if session == nil || session.SessionID == "" {
		return core.ErrValidation(core.CodeSessionError, "session must have an id")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return core.ErrStorage(core.CodeParseFailed, "encoding session").WithCause(err)
	}
	expiresAt := time.Now().Add(ttl).Format(time.RFC3339)

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, user_id, data, expires_at, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(session_id) DO UPDATE SET
			user_id = excluded.user_id,
			data = excluded.data,
			expires_at = excluded.expires_at,
			updated_at = datetime('now')`,
		session.SessionID, session.UserID, string(data), expiresAt)
	if err != nil {
		return core.ErrStorage(core.CodeStoreUnavailable, "saving session").WithCause(err)
	}
	return nil
}

// DeleteSession removes a session. Deleting a missing session is not an
// error.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE session_id = ?", id); err != nil {
		return core.ErrStorage(core.CodeStoreUnavailable, "deleting session").WithCause(err)
	}
	return nil
}

// SavePresentation stores a finished presentation.
func (s *SQLiteStore) SavePresentation(ctx context.Context, sessionID string, p *core.Presentation) error {
	if p == nil || p.PresentationID == "" {
		return core.ErrValidation(core.CodeInvalidState, "presentation must have an id")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return core.ErrStorage(core.CodeParseFailed, "encoding presentation").WithCause(err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO presentations (presentation_id, session_id, data)
		VALUES (?, ?, ?)
		ON CONFLICT(presentation_id) DO UPDATE SET data = excluded.data`,
		p.PresentationID, sessionID, string(data))
	if err != nil {
		return core.ErrStorage(core.CodeStoreUnavailable, "saving presentation").WithCause(err)
	}
	return nil
}

// GetPresentation returns a stored presentation by id.
func (s *SQLiteStore) GetPresentation(ctx context.Context, id string) (*core.Presentation, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM presentations WHERE presentation_id = ?", id,
	).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound("presentation", id)
	}
	if err != nil {
		return nil, core.ErrStorage(core.CodeStoreUnavailable, "querying presentation").WithCause(err)
	}
	var p core.Presentation
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, core.ErrStorage(core.CodeParseFailed, "decoding presentation").WithCause(err)
	}
	return &p, nil
}

// SaveStructure records a structure draft with its embedding.
func (s *SQLiteStore) SaveStructure(ctx context.Context, sessionID, presentationID string, structure *core.Structure, embedding []float32) error {
	if structure == nil {
		return core.ErrValidation(core.CodeInvalidState, "structure must not be nil")
	}
	data, err := json.Marshal(structure)
	if err != nil {
		return core.ErrStorage(core.CodeParseFailed, "encoding structure").WithCause(err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO structures (presentation_id, session_id, data, embedding)
		VALUES (?, ?, ?, ?)`,
		presentationID, sessionID, string(data), encodeEmbedding(embedding))
	if err != nil {
		return core.ErrStorage(core.CodeStoreUnavailable, "saving structure").WithCause(err)
	}
	return nil
}

// FindSimilar scans stored structures and ranks them by cosine
// similarity. The corpus is per-deployment sized, a full scan is fine.
func (s *SQLiteStore) FindSimilar(ctx context.Context, embedding []float32, limit int) ([]core.StoredStructure, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT presentation_id, session_id, data, embedding, created_at FROM structures")
	if err != nil {
		return nil, core.ErrStorage(core.CodeStoreUnavailable, "querying structures").WithCause(err)
	}
	defer func() { _ = rows.Close() }()

	type scored struct {
		entry core.StoredStructure
		score float64
	}
	var results []scored
	for rows.Next() {
		var (
			presID, sessID, data, created string
			blob                          []byte
		)
		if err := rows.Scan(&presID, &sessID, &data, &blob, &created); err != nil {
			return nil, core.ErrStorage(core.CodeStoreUnavailable, "scanning structure row").WithCause(err)
		}
		var structure core.Structure
		if err := json.Unmarshal([]byte(data), &structure); err != nil {
			continue // skip unreadable rows
		}
		entry := core.StoredStructure{
			PresentationID: presID,
			SessionID:      sessID,
			Structure:      &structure,
			Embedding:      decodeEmbedding(blob),
		}
		if t, err := time.Parse("2006-01-02 15:04:05", created); err == nil {
			entry.CreatedAt = t
		}
		results = append(results, scored{entry: entry, score: cosineSimilarity(embedding, entry.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, core.ErrStorage(core.CodeStoreUnavailable, "iterating structures").WithCause(err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].score > results[j].score })
	if len(results) > limit {
		results = results[:limit]
	}
	out := make([]core.StoredStructure, 0, len(results))
	for _, r := range results {
		out = append(out, r.entry)
	}
	return out, nil
}

// encodeEmbedding packs a float32 vector as little-endian bytes.
func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}
