package feedback

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "feedback.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveFeedback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveFeedback(ctx, Record{
		MessageID:    "m1",
		FeedbackType: "helpful",
		UserQuery:    "what is phishing",
		AIResponse:   "Phishing is a social engineering attack.",
		SessionID:    "s1",
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := s.CountFeedback(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestStore_SaveFeedbackDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Missing profile and timestamp are filled server-side.
	err := s.SaveFeedback(ctx, Record{
		MessageID:    "m2",
		FeedbackType: "flag",
		UserQuery:    "q",
		AIResponse:   "r",
		SessionID:    "s1",
	})
	if err != nil {
		t.Fatal(err)
	}

	var profile, timestamp string
	row := s.db.QueryRowContext(ctx,
		`SELECT user_profile, timestamp FROM feedback WHERE message_id = ?`, "m2")
	if err := row.Scan(&profile, &timestamp); err != nil {
		t.Fatal(err)
	}
	if profile != "general" {
		t.Errorf("user_profile = %q, want general", profile)
	}
	if timestamp == "" {
		t.Error("timestamp not stamped")
	}
}

func TestStore_SaveSurvey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.SaveSurvey(ctx, Survey{
		SessionID: "s1",
		Answers:   `{"helpfulness": 5}`,
	})
	if err != nil {
		t.Fatal(err)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM surveys`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("survey count = %d, want 1", n)
	}
}
