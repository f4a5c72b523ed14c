package app

import (
	"context"
	"errors"
	"strings"
	"time"

	"recruitment-portal/internal/domain"
	"recruitment-portal/internal/logging"

	"go.uber.org/zap"
)

// Submission is one attempt's answers handed to the Recorder.
type Submission struct {
	UserID        string
	Domain        domain.Domain
	Responses     map[string]string
	QuestionCount int
	Expired       bool
}

// Recorder durably records completed or expired attempts.
type Recorder struct {
	responses ResponseRepository
	now       func() time.Time
	log       *zap.Logger
}

func NewRecorder(responses ResponseRepository, log *zap.Logger) *Recorder {
	return &Recorder{responses: responses, now: time.Now, log: logging.OrNop(log)}
}

// WithClock replaces the recorder's time source.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Submit validates and stores s. A manual submission needs a non-empty answer
// for every question and is rejected before any write otherwise; an expired one
// is stored as-is. On failure the attempted flag is left untouched.
func (r *Recorder) Submit(ctx context.Context, s Submission) (domain.QuizResponse, error) {
	if s.UserID == "" {
		return domain.QuizResponse{}, domain.AuthError("submit", domain.ErrUnauthenticated)
	}
	if _, ok := domain.ParseDomain(string(s.Domain)); !ok {
		return domain.QuizResponse{}, domain.Invalid("submit", domain.ErrUnknownDomain)
	}
	if !s.Expired {
		if missing := missingAnswers(s.Responses, s.QuestionCount); len(missing) > 0 {
			return domain.QuizResponse{}, domain.Invalid("submit", domain.ErrIncompleteAnswers)
		}
	}

	resp := domain.QuizResponse{
		UserID:      s.UserID,
		Domain:      s.Domain,
		Responses:   normalizeAnswers(s.Responses, s.QuestionCount),
		Timestamp:   r.now().UTC(),
		TimeExpired: s.Expired,
	}

	if err := r.responses.RecordSubmission(ctx, resp); err != nil {
		if errors.Is(err, domain.ErrAlreadyAttempted) || errors.Is(err, domain.ErrUserNotFound) {
			return domain.QuizResponse{}, domain.AccessDenied("submit", err)
		}
		r.log.Error("record submission failed",
			zap.String("uid", s.UserID),
			zap.String("domain", string(s.Domain)),
			zap.Error(err),
		)
		return domain.QuizResponse{}, domain.WriteFailure("submit", err)
	}

	r.log.Info("submission recorded",
		zap.String("uid", s.UserID),
		zap.String("domain", string(s.Domain)),
		zap.Bool("expired", s.Expired),
		zap.Int("answered", len(resp.Responses)),
	)
	return resp, nil
}

// missingAnswers returns the keys among q1..qN that are absent or blank.
func missingAnswers(responses map[string]string, count int) []string {
	var missing []string
	for i := 0; i < count; i++ {
		key := domain.AnswerKey(i)
		if strings.TrimSpace(responses[key]) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// normalizeAnswers copies the answers, keeping only q1..qN keys when count is known.
func normalizeAnswers(responses map[string]string, count int) map[string]string {
	out := make(map[string]string, len(responses))
	for key, answer := range responses {
		if count > 0 {
			idx, ok := domain.ParseAnswerKey(key)
			if !ok || idx >= count {
				continue
			}
		}
		out[key] = answer
	}
	return out
}
