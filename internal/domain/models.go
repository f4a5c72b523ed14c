package domain

import (
	"strconv"
	"strings"
	"time"
)

// Domain is one of the fixed interest tracks a user may choose.
type Domain string

const (
	Technical  Domain = "Technical"
	Design     Domain = "Design"
	Editorial  Domain = "Editorial"
	Management Domain = "Management"
)

// MaxSelectedDomains caps how many domains a user may pick.
const MaxSelectedDomains = 2

// AllDomains lists every domain in display order.
var AllDomains = []Domain{Technical, Design, Editorial, Management}

// ParseDomain resolves a domain name, ignoring case.
func ParseDomain(raw string) (Domain, bool) {
	raw = strings.TrimSpace(raw)
	for _, d := range AllDomains {
		if strings.EqualFold(string(d), raw) {
			return d, true
		}
	}
	return "", false
}

// UserProfile is created on first sign-in and owned by the user.
type UserProfile struct {
	UID             string          `json:"uid"`
	Email           string          `json:"email"`
	DisplayName     string          `json:"displayName"`
	PhotoURL        string          `json:"photoURL,omitempty"`
	SelectedDomains []Domain        `json:"selectedDomains"`
	Attempted       map[Domain]bool `json:"quizzesAttempted"`
	LastLogin       time.Time       `json:"lastLogin"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// HasSelected reports whether d is among the user's selected domains.
func (u UserProfile) HasSelected(d Domain) bool {
	for _, s := range u.SelectedDomains {
		if s == d {
			return true
		}
	}
	return false
}

// HasAttempted reports whether the questionnaire for d was already recorded.
func (u UserProfile) HasAttempted(d Domain) bool {
	return u.Attempted[d]
}

// AnyAttempted reports whether at least one domain was attempted.
func (u UserProfile) AnyAttempted() bool {
	for _, attempted := range u.Attempted {
		if attempted {
			return true
		}
	}
	return false
}

// QuestionType selects how a question is answered.
type QuestionType string

const (
	QuestionText         QuestionType = "text"
	QuestionSingleChoice QuestionType = "radio"
	QuestionMultiChoice  QuestionType = "checkbox"
)

// ParseQuestionType accepts the stored names and their descriptive aliases.
func ParseQuestionType(raw string) (QuestionType, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "text":
		return QuestionText, true
	case "radio", "single-choice", "single":
		return QuestionSingleChoice, true
	case "checkbox", "multi-choice", "multi":
		return QuestionMultiChoice, true
	}
	return "", false
}

// IsChoice reports whether the question type carries options.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultiChoice
}

// Question is a single questionnaire entry.
type Question struct {
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
}

// Questionnaire is the ordered question list for one domain.
type Questionnaire struct {
	Domain    Domain     `json:"domain"`
	Questions []Question `json:"questions"`
}

// QuizResponse is the recorded outcome of one attempt.
type QuizResponse struct {
	UserID      string            `json:"userId"`
	Domain      Domain            `json:"domain"`
	Responses   map[string]string `json:"responses"`
	Timestamp   time.Time         `json:"timestamp"`
	TimeExpired bool              `json:"timeExpired"`
}

// AnswerKey returns the response key for a zero-based question index ("q1" for 0).
func AnswerKey(index int) string {
	return "q" + strconv.Itoa(index+1)
}

// ParseAnswerKey is the inverse of AnswerKey.
func ParseAnswerKey(key string) (int, bool) {
	if !strings.HasPrefix(key, "q") {
		return 0, false
	}
	n, err := strconv.Atoi(key[1:])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// TimerKind names an admin-managed deadline.
type TimerKind string

const (
	TimerRegistration TimerKind = "registration"
	TimerResults      TimerKind = "quiz"
)

// TimerKinds lists every timer kind.
var TimerKinds = []TimerKind{TimerRegistration, TimerResults}

// ParseTimerKind accepts "registration", "quiz" and "results".
func ParseTimerKind(raw string) (TimerKind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "registration":
		return TimerRegistration, true
	case "quiz", "results", "quiz-results":
		return TimerResults, true
	}
	return "", false
}

// TimerConfig holds the absolute deadline of one timer kind.
type TimerConfig struct {
	Kind      TimerKind `json:"kind"`
	EndTime   time.Time `json:"endTime"`
	UpdatedBy string    `json:"updatedBy,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Notice is an admin-authored announcement.
type Notice struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Date      time.Time `json:"date"`
	Important bool      `json:"important"`
}

// Event is a scheduled happening shown on the dashboard.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"startsAt"`
}
