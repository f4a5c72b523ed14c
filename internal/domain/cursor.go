package domain

import "strings"

// MoveKind enumerates question navigation transitions.
type MoveKind string

const (
	MoveNext MoveKind = "NEXT"
	MovePrev MoveKind = "PREV"
	MoveJump MoveKind = "JUMP"
)

// Move is one navigation transition; Target is only read for MoveJump.
type Move struct {
	Kind   MoveKind `json:"kind"`
	Target int      `json:"target,omitempty"`
}

// ParseMoveKind accepts the transition names in any case.
func ParseMoveKind(raw string) (MoveKind, bool) {
	switch MoveKind(strings.ToUpper(strings.TrimSpace(raw))) {
	case MoveNext:
		return MoveNext, true
	case MovePrev:
		return MovePrev, true
	case MoveJump:
		return MoveJump, true
	}
	return "", false
}

// Cursor tracks the current question of an attempt, bounded to [0, count-1].
type Cursor struct {
	index int
	count int
}

// NewCursor starts at the first of count questions.
func NewCursor(count int) Cursor {
	if count < 0 {
		count = 0
	}
	return Cursor{count: count}
}

// Index is the zero-based current question.
func (c Cursor) Index() int { return c.index }

// Count is the number of questions.
func (c Cursor) Count() int { return c.count }

// IsLast reports whether the cursor sits on the final question.
func (c Cursor) IsLast() bool { return c.count == 0 || c.index == c.count-1 }

// Apply returns the cursor after m; out-of-range targets are clamped.
func (c Cursor) Apply(m Move) Cursor {
	switch m.Kind {
	case MoveNext:
		c.index++
	case MovePrev:
		c.index--
	case MoveJump:
		c.index = m.Target
	}
	return c.clamp()
}

func (c Cursor) clamp() Cursor {
	if c.count == 0 || c.index < 0 {
		c.index = 0
		return c
	}
	if c.index > c.count-1 {
		c.index = c.count - 1
	}
	return c
}

// Section is a view of the admin panel.
type Section string

const (
	SectionUsers     Section = "users"
	SectionQuestions Section = "questions"
	SectionTimers    Section = "timers"
	SectionNotices   Section = "notices"
	SectionEvents    Section = "events"
)

// Sections lists the admin panel views in tab order.
var Sections = []Section{SectionUsers, SectionQuestions, SectionTimers, SectionNotices, SectionEvents}

// ParseSection validates an admin section name.
func ParseSection(raw string) (Section, error) {
	for _, s := range Sections {
		if strings.EqualFold(string(s), strings.TrimSpace(raw)) {
			return s, nil
		}
	}
	return "", ErrInvalidSectionName
}
