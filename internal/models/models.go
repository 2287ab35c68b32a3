// Package models holds the entities exchanged between the config layer,
// the scheduler and the ActivityWatch store.
package models

import (
	"fmt"
	"strings"
	"time"
)

// DialogKind is the presentation style of the external dialog mechanism.
type DialogKind string

const (
	KindCalendar       DialogKind = "calendar"
	KindEntry          DialogKind = "entry"
	KindError          DialogKind = "error"
	KindInfo           DialogKind = "info"
	KindFileSelection  DialogKind = "file-selection"
	KindList           DialogKind = "list"
	KindNotification   DialogKind = "notification"
	KindProgress       DialogKind = "progress"
	KindWarning        DialogKind = "warning"
	KindScale          DialogKind = "scale"
	KindTextInfo       DialogKind = "text-info"
	KindColorSelection DialogKind = "color-selection"
	KindQuestion       DialogKind = "question"
	KindPassword       DialogKind = "password"
	KindForms          DialogKind = "forms"
)

// DialogKinds lists every kind accepted on the wire, in a stable order.
var DialogKinds = []DialogKind{
	KindCalendar, KindEntry, KindError, KindInfo, KindFileSelection,
	KindList, KindNotification, KindProgress, KindWarning, KindScale,
	KindTextInfo, KindColorSelection, KindQuestion, KindPassword, KindForms,
}

// ParseDialogKind validates a raw dialog kind string.
func ParseDialogKind(s string) (DialogKind, error) {
	for _, k := range DialogKinds {
		if s == string(k) {
			return k, nil
		}
	}
	return "", fmt.Errorf("invalid question type %q. Must be one of: %s", s, joinKinds())
}

func joinKinds() string {
	parts := make([]string, len(DialogKinds))
	for i, k := range DialogKinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

// FieldKind is the shape of one form field.
type FieldKind string

const (
	FieldEntry FieldKind = "entry" // free-text entry
	FieldCombo FieldKind = "combo" // dropdown with predefined values
)

// ParseFieldKind validates a raw field kind string.
func ParseFieldKind(s string) (FieldKind, error) {
	switch FieldKind(s) {
	case FieldEntry, FieldCombo:
		return FieldKind(s), nil
	}
	return "", fmt.Errorf("invalid field_type %q. Must be one of: %s, %s", s, FieldEntry, FieldCombo)
}

// Question is one promptable field inside a group.
type Question struct {
	ID       string
	Kind     FieldKind
	Label    string
	Values   []string // required and non-empty when Kind == FieldCombo
	Reason   bool     // append a free-text "reason" field after this one
	MinValue *int
	MaxValue *int
}

// QuestionGroup is a schedulable unit: questions sharing one schedule,
// one timeout and one expiry. Immutable after validation.
type QuestionGroup struct {
	ID        string
	Title     string
	Text      string
	Schedule  string
	Timeout   int // seconds
	Until     time.Time
	Questions []Question
}

// SingleQuestion is the legacy single-prompt unit: one dialog of a fixed
// kind on its own schedule, recorded without a group id.
type SingleQuestion struct {
	ID       string
	Kind     DialogKind
	Title    string
	Text     string
	Schedule string
	Timeout  int // seconds
	Until    time.Time

	// Scale bounds; nil unless Kind == KindScale options were given.
	MinValue *int
	MaxValue *int
	Value    *int

	// Extras are unrecognized dialog options forwarded verbatim.
	Extras map[string]string
}

// FarFuture is the expiry sentinel applied when `until` is unspecified.
func FarFuture() time.Time {
	return time.Date(2100, time.December, 31, 23, 59, 59, 0, time.Local)
}

// AnswerRecord is the event payload stored per question per firing. The
// JSON field names are the bucket's raw data keys and must stay stable.
type AnswerRecord struct {
	Success    bool    `json:"success"`
	QuestionID string  `json:"question_id"`
	GroupID    string  `json:"group_id,omitempty"`
	Title      string  `json:"title"`
	Value      string  `json:"value"`
	FieldKind  string  `json:"field_type,omitempty"`
	Reason     *string `json:"reason,omitempty"`
	MinValue   *int    `json:"min-value,omitempty"`
	MaxValue   *int    `json:"max-value,omitempty"`
}

// IsValidID reports whether id contains only lowercase letters, digits
// and dots, the character set allowed for question and bucket ids.
func IsValidID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if !isIDRune(r) {
			return false
		}
	}
	return true
}

func isIDRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.'
}

// FixID rewrites an arbitrary string into a valid id: lower-cased, every
// run of forbidden characters collapsed to a single dot, outer dots
// trimmed.
func FixID(id string) string {
	var b strings.Builder
	pendingDot := false
	for _, r := range strings.ToLower(id) {
		if isIDRune(r) && r != '.' {
			if pendingDot && b.Len() > 0 {
				b.WriteByte('.')
			}
			pendingDot = false
			b.WriteRune(r)
			continue
		}
		pendingDot = true
	}
	return b.String()
}
