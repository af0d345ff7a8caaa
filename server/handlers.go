package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/wbq321/CyberCJ-multiagent/admission"
	"github.com/wbq321/CyberCJ-multiagent/feedback"
	"github.com/wbq321/CyberCJ-multiagent/tutor"
)

type askRequest struct {
	Question    string `json:"question"`
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	UserProfile string `json:"user_profile"`
}

// handleAsk runs one tutoring turn. Admission control short-circuits
// before any session state is touched.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	input := strings.TrimSpace(req.Question)
	if input == "" {
		input = strings.TrimSpace(req.Message)
	}
	if input == "" {
		writeError(w, http.StatusBadRequest, "No question provided")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	release, err := s.admission.Admit(clientKey(r))
	if err != nil {
		s.rejectAdmission(w, err)
		return
	}
	defer release()

	start := time.Now()
	resp, err := s.engine.Respond(r.Context(), tutor.TurnRequest{
		SessionID:   sessionID,
		Input:       input,
		ProfileHint: req.UserProfile,
	})
	if s.metrics != nil {
		s.metrics.TurnDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		var timeoutErr *tutor.TimeoutError
		if errors.As(err, &timeoutErr) {
			s.countTurn("timeout")
			writeJSON(w, http.StatusGatewayTimeout, map[string]string{
				"error":    "The tutor took too long to respond. Please try again.",
				"response": "I'm sorry, that took longer than expected. Could you ask again?",
			})
			return
		}
		s.countTurn("error")
		s.logger.Error("Turn failed", "session_id", sessionID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":    "internal error",
			"response": "I apologize, something went wrong on my end. Please try again.",
		})
		return
	}

	s.countTurn("ok")
	writeJSON(w, http.StatusOK, resp)
}

// rejectAdmission maps admission errors to their distinct statuses.
func (s *Server) rejectAdmission(w http.ResponseWriter, err error) {
	var rateErr *admission.RateLimitError
	if errors.As(err, &rateErr) {
		if s.metrics != nil {
			s.metrics.RateLimitedTotal.Inc()
		}
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":               "Too many requests. Please slow down.",
			"retry_after_seconds": int(rateErr.RetryAfter.Seconds()),
		})
		return
	}

	var busyErr *admission.BusyError
	if errors.As(err, &busyErr) {
		if s.metrics != nil {
			s.metrics.BusyTotal.Inc()
		}
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error":                  "The tutor is helping other students right now. Please try again shortly.",
			"in_flight_count":        busyErr.Status.InFlight,
			"queue_length":           busyErr.Status.QueueLength,
			"estimated_wait_seconds": busyErr.Status.EstimatedWaitSeconds,
		})
		return
	}

	writeError(w, http.StatusServiceUnavailable, "service unavailable")
}

func (s *Server) countTurn(outcome string) {
	if s.metrics != nil {
		s.metrics.TurnsTotal.WithLabelValues(outcome).Inc()
	}
}

type newTopicRequest struct {
	SessionID string `json:"session_id"`
	Topic     string `json:"topic"`
}

// handleNewTopic resets learning progress for a session while keeping
// its profile and conversation history.
func (s *Server) handleNewTopic(w http.ResponseWriter, r *http.Request) {
	var req newTopicRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	if !s.store.Reset(req.SessionID, req.Topic) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":    "Session not found, will start fresh",
			"session_id": req.SessionID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Started new topic: " + req.Topic,
		"session_id": req.SessionID,
	})
}

type setProfileRequest struct {
	SessionID   string `json:"session_id"`
	UserProfile string `json:"user_profile"`
}

// handleSetProfile validates and applies a profile to a session.
func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req setProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.SessionID == "" {
		req.SessionID = "default"
	}

	profile, ok := tutor.ParseProfile(req.UserProfile)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid profile. Must be one of: cj_student, police_officer, general")
		return
	}

	if !s.store.SetProfile(req.SessionID, profile) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message":    "Profile will apply when the session starts",
			"session_id": req.SessionID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":      "Profile updated",
		"session_id":   req.SessionID,
		"user_profile": string(profile),
	})
}

// handleFeedback stores user feedback on a tutor response.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		writeError(w, http.StatusServiceUnavailable, "Feedback collection is not enabled")
		return
	}

	var rec feedback.Record
	if err := decodeJSON(w, r, &rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if rec.MessageID == "" || rec.FeedbackType == "" || rec.UserQuery == "" || rec.AIResponse == "" || rec.SessionID == "" {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	if err := s.feedback.SaveFeedback(r.Context(), rec); err != nil {
		s.logger.Error("Failed to save feedback", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save feedback")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback recorded"})
}

type surveyRequest struct {
	SessionID   string         `json:"session_id"`
	UserProfile string         `json:"user_profile"`
	Answers     map[string]any `json:"answers"`
}

// encodeAnswers serializes survey answers for storage.
func encodeAnswers(answers map[string]any) (string, error) {
	raw, err := json.Marshal(answers)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// handleSurvey stores a post-session survey submission.
func (s *Server) handleSurvey(w http.ResponseWriter, r *http.Request) {
	if s.feedback == nil {
		writeError(w, http.StatusServiceUnavailable, "Survey collection is not enabled")
		return
	}

	var req surveyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.SessionID == "" || len(req.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "Missing session_id or answers")
		return
	}

	answers, err := encodeAnswers(req.Answers)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid answers payload")
		return
	}
	if err := s.feedback.SaveSurvey(r.Context(), feedback.Survey{
		SessionID:   req.SessionID,
		UserProfile: req.UserProfile,
		Answers:     answers,
	}); err != nil {
		s.logger.Error("Failed to save survey", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to save survey")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Survey recorded"})
}

// handleStatus reports session state and admission load.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		sessionID = "default"
	}

	payload := map[string]any{
		"active_sessions": s.store.Count(),
		"admission":       s.admission.Gate().Status(),
	}
	if s.feedback != nil {
		if n, err := s.feedback.CountFeedback(r.Context()); err == nil {
			payload["feedback_count"] = n
		} else {
			s.logger.Error("Failed to count feedback", "error", err)
		}
	}
	if snap, ok := s.store.Snapshot(sessionID); ok {
		payload["session"] = snap
	} else {
		payload["message"] = "No active conversation found"
		payload["session_id"] = sessionID
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleHealth reports whether the tutoring subsystem initialized.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":      "unavailable",
			"initialized": false,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"initialized": true,
	})
}
