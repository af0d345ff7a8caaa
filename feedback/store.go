// Package feedback persists user feedback on tutor responses and
// post-session survey submissions.
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one piece of feedback on a single tutor response.
type Record struct {
	MessageID    string `json:"message_id"`
	FeedbackType string `json:"feedback_type"` // "helpful" or "flag"
	UserQuery    string `json:"user_query"`
	AIResponse   string `json:"ai_response"`
	SessionID    string `json:"session_id"`
	UserProfile  string `json:"user_profile"`
	Timestamp    string `json:"timestamp"`
}

// Survey is a post-session survey submission. Answers is stored as the
// raw JSON the client sent.
type Survey struct {
	SessionID   string `json:"session_id"`
	UserProfile string `json:"user_profile"`
	Answers     string `json:"answers"`
}

// Store is a SQLite-backed feedback repository.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the feedback database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		message_id TEXT NOT NULL,
		feedback_type TEXT NOT NULL,
		user_query TEXT NOT NULL,
		ai_response TEXT NOT NULL,
		session_id TEXT NOT NULL,
		user_profile TEXT NOT NULL DEFAULT 'general',
		timestamp TEXT NOT NULL,
		collected_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_feedback_session ON feedback(session_id);

	CREATE TABLE IF NOT EXISTS surveys (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		user_profile TEXT NOT NULL DEFAULT 'general',
		answers_json TEXT NOT NULL,
		submitted_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_surveys_session ON surveys(session_id);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// SaveFeedback stores one feedback record. Required fields must be
// validated by the caller; a missing timestamp is stamped here.
func (s *Store) SaveFeedback(ctx context.Context, rec Record) error {
	if rec.UserProfile == "" {
		rec.UserProfile = "general"
	}
	if rec.Timestamp == "" {
		rec.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (message_id, feedback_type, user_query, ai_response, session_id, user_profile, timestamp, collected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.MessageID, rec.FeedbackType, rec.UserQuery, rec.AIResponse,
		rec.SessionID, rec.UserProfile, rec.Timestamp, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save feedback: %w", err)
	}
	return nil
}

// SaveSurvey stores one survey submission.
func (s *Store) SaveSurvey(ctx context.Context, sv Survey) error {
	if sv.UserProfile == "" {
		sv.UserProfile = "general"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO surveys (session_id, user_profile, answers_json, submitted_at)
		VALUES (?, ?, ?, ?)`,
		sv.SessionID, sv.UserProfile, sv.Answers, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save survey: %w", err)
	}
	return nil
}

// CountFeedback returns the number of stored feedback records, for the
// status endpoint.
func (s *Store) CountFeedback(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count feedback: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
