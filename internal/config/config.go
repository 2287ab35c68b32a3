// Package config loads and validates the watcher's TOML configuration,
// turning it into the typed entities the scheduler runs on. It is a pure
// transform: every decision is made from the input and surfaced either in
// the result or as an Error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/mactep/aw-watcher-ask/internal/models"
	"github.com/mactep/aw-watcher-ask/internal/trigger"
)

// Defaults applied when the corresponding field is entirely absent.
const (
	DefaultSchedule = "R * * * *"
	DefaultTimeout  = 60
)

// Error is a configuration failure. It is fatal to the process and maps
// to exit code 1 in main.
type Error string

func (e Error) Error() string { return string(e) }

func errorf(format string, args ...interface{}) Error {
	return Error(fmt.Sprintf(format, args...))
}

// Config is the validated configuration. Exactly one of Single and Groups
// drives the scheduler: when Groups is non-empty the watcher runs in
// multi-group mode and Single has already been folded into Groups.
type Config struct {
	Single  *models.SingleQuestion
	Groups  []models.QuestionGroup
	Testing bool
}

// DefaultPath returns the XDG location of the config file,
// $XDG_CONFIG_HOME/activitywatch/aw-watcher-ask/config.toml.
func DefaultPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "activitywatch", "aw-watcher-ask", "config.toml")
}

type rawQuestion struct {
	ID       string      `toml:"id"`
	Type     string      `toml:"type"`
	Title    string      `toml:"title"`
	Text     string      `toml:"text"`
	Schedule string      `toml:"schedule"`
	Timeout  *int        `toml:"timeout"`
	Until    interface{} `toml:"until"` // quoted string or native TOML datetime
	Testing  *bool       `toml:"testing"`
	MinValue *int        `toml:"min-value"`
	MaxValue *int        `toml:"max-value"`
	Value    *int        `toml:"value"`
}

type rawGroupQuestion struct {
	ID        string   `toml:"id"`
	FieldType string   `toml:"field_type,omitempty"`
	Label     string   `toml:"label"`
	Values    []string `toml:"values,omitempty"`
	Reason    *bool    `toml:"reason,omitempty"`
	MinValue  *int     `toml:"min_value,omitempty"`
	MaxValue  *int     `toml:"max_value,omitempty"`
}

type rawGroup struct {
	ID        string             `toml:"id"`
	Title     string             `toml:"title"`
	Text      string             `toml:"text,omitempty"`
	Schedule  string             `toml:"schedule,omitempty"`
	Timeout   *int               `toml:"timeout,omitempty"`
	Until     interface{}        `toml:"until,omitempty"` // quoted string or native TOML datetime
	Questions []rawGroupQuestion `toml:"questions"`
}

type rawConfig struct {
	Question       *rawQuestion      `toml:"question,omitempty"`
	QuestionGroups []rawGroup        `toml:"question_groups,omitempty"`
	Testing        *bool             `toml:"testing,omitempty"`
	Zenity         map[string]string `toml:"zenity,omitempty"`
}

// Load reads, parses and validates the config file at path (the default
// path when empty).
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errorf("config file not found at %s\n\n"+
			"Create it with a [question] section or a [[question_groups]] array,\n"+
			"or point at one with: aw-watcher-ask --config /path/to/config.toml", path)
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse validates raw TOML config bytes.
func Parse(data []byte) (*Config, error) {
	// Presence probe: an empty question_groups array is a different
	// failure than a missing one.
	var probe map[string]interface{}
	if err := toml.Unmarshal(data, &probe); err != nil {
		return nil, errorf("failed to parse TOML config file: %v", err)
	}
	_, hasQuestion := probe["question"]
	_, hasGroups := probe["question_groups"]

	var raw rawConfig
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, errorf("failed to parse TOML config file: %v", err)
	}

	switch {
	case hasGroups:
		return validateGroups(&raw)
	case hasQuestion:
		return validateSingle(&raw)
	default:
		return nil, Error("missing config: need [question] or [[question_groups]]")
	}
}

func validateGroups(raw *rawConfig) (*Config, error) {
	if len(raw.QuestionGroups) == 0 {
		return nil, Error("question_groups array is empty")
	}

	groups := make([]models.QuestionGroup, 0, len(raw.QuestionGroups)+1)
	for i, g := range raw.QuestionGroups {
		group, err := validateGroup(i, g)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}

	// A [question] section alongside groups becomes one more group,
	// appended after the explicit ones.
	if raw.Question != nil {
		single, err := singleAsGroup(raw.Question)
		if err != nil {
			return nil, err
		}
		groups = append(groups, single)
	}

	cfg := &Config{Groups: groups}
	if raw.Testing != nil {
		cfg.Testing = *raw.Testing
	}
	return cfg, nil
}

func validateGroup(i int, g rawGroup) (models.QuestionGroup, error) {
	var zero models.QuestionGroup

	if g.ID == "" {
		return zero, errorf("question_groups[%d]: missing required field 'id'", i)
	}
	if g.Title == "" {
		return zero, errorf("question_groups[%d]: missing required field 'title'", i)
	}
	if len(g.Questions) == 0 {
		return zero, errorf("question_groups[%d]: missing required 'questions' array", i)
	}

	schedule := g.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if err := trigger.Validate(schedule); err != nil {
		return zero, errorf("question_groups[%d]: %v", i, err)
	}

	timeout := DefaultTimeout
	if g.Timeout != nil {
		timeout = *g.Timeout
	}

	until, err := untilFromTOML(g.Until)
	if err != nil {
		return zero, errorf("question_groups[%d]: %v", i, err)
	}

	questions := make([]models.Question, 0, len(g.Questions))
	for j, q := range g.Questions {
		question, err := validateQuestion(i, j, q)
		if err != nil {
			return zero, err
		}
		questions = append(questions, question)
	}

	return models.QuestionGroup{
		ID:        g.ID,
		Title:     g.Title,
		Text:      g.Text,
		Schedule:  schedule,
		Timeout:   timeout,
		Until:     until,
		Questions: questions,
	}, nil
}

func validateQuestion(i, j int, q rawGroupQuestion) (models.Question, error) {
	var zero models.Question

	if q.ID == "" {
		return zero, errorf("question_groups[%d].questions[%d]: missing required field 'id'", i, j)
	}

	fieldType := q.FieldType
	if fieldType == "" {
		fieldType = string(models.FieldEntry)
	}
	kind, err := models.ParseFieldKind(fieldType)
	if err != nil {
		return zero, errorf("question_groups[%d].questions[%d]: %v", i, j, err)
	}

	if q.Label == "" {
		return zero, errorf("question_groups[%d].questions[%d]: missing required field 'label'", i, j)
	}
	if kind == models.FieldCombo && len(q.Values) == 0 {
		return zero, errorf("question_groups[%d].questions[%d]: field_type 'combo' requires 'values' array", i, j)
	}

	reason := false
	if q.Reason != nil {
		reason = *q.Reason
	}

	minValue, maxValue := q.MinValue, q.MaxValue
	if kind == models.FieldCombo && (minValue == nil || maxValue == nil) {
		lo, hi, ok := numericBounds(q.Values)
		if ok {
			if minValue == nil {
				minValue = &lo
			}
			if maxValue == nil {
				maxValue = &hi
			}
		}
	}

	return models.Question{
		ID:       q.ID,
		Kind:     kind,
		Label:    q.Label,
		Values:   q.Values,
		Reason:   reason,
		MinValue: minValue,
		MaxValue: maxValue,
	}, nil
}

// numericBounds infers scale bounds from combo values, silently skipping
// entries that are not integers.
func numericBounds(values []string) (lo, hi int, ok bool) {
	for _, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			continue
		}
		if !ok || n < lo {
			lo = n
		}
		if !ok || n > hi {
			hi = n
		}
		ok = true
	}
	return lo, hi, ok
}

// unsupportedSingleKinds are accepted by the kind parser but have no
// single-field dispatch path; they are rejected here instead of failing
// obscurely at prompt time.
var unsupportedSingleKinds = map[models.DialogKind]bool{
	models.KindForms:         true,
	models.KindFileSelection: true,
	models.KindList:          true,
}

// ParseSingleKind parses a dialog kind for the single-question path,
// rejecting the kinds that only exist for forms-shaped dispatch.
func ParseSingleKind(s string) (models.DialogKind, error) {
	kind, err := models.ParseDialogKind(s)
	if err != nil {
		return "", Error(err.Error())
	}
	if unsupportedSingleKinds[kind] {
		return "", errorf("question type %q is not supported for the single [question] form; use [[question_groups]] for multi-field prompts", kind)
	}
	return kind, nil
}

func validateSingle(raw *rawConfig) (*Config, error) {
	q := raw.Question

	if q.ID == "" {
		return nil, Error("missing required field 'question.id' in config")
	}
	if q.Type == "" {
		return nil, Error("missing required field 'question.type' in config")
	}
	kind, err := ParseSingleKind(q.Type)
	if err != nil {
		return nil, err
	}

	schedule := q.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if err := trigger.Validate(schedule); err != nil {
		return nil, Error(err.Error())
	}

	timeout := DefaultTimeout
	if q.Timeout != nil {
		timeout = *q.Timeout
	}

	until, err := untilFromTOML(q.Until)
	if err != nil {
		return nil, Error(err.Error())
	}

	title := q.Title
	if title == "" {
		title = q.ID
	}

	single := &models.SingleQuestion{
		ID:       q.ID,
		Kind:     kind,
		Title:    title,
		Text:     q.Text,
		Schedule: schedule,
		Timeout:  timeout,
		Until:    until,
		MinValue: q.MinValue,
		MaxValue: q.MaxValue,
		Value:    q.Value,
		Extras:   raw.Zenity,
	}

	cfg := &Config{Single: single}
	if q.Testing != nil {
		cfg.Testing = *q.Testing
	} else if raw.Testing != nil {
		cfg.Testing = *raw.Testing
	}
	return cfg, nil
}

// singleAsGroup folds the legacy [question] section into an equivalent
// one-question group when explicit groups are also configured.
func singleAsGroup(q *rawQuestion) (models.QuestionGroup, error) {
	var zero models.QuestionGroup

	if q.ID == "" {
		return zero, Error("missing required field 'question.id' in config")
	}

	schedule := q.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if err := trigger.Validate(schedule); err != nil {
		return zero, Error(err.Error())
	}

	timeout := DefaultTimeout
	if q.Timeout != nil {
		timeout = *q.Timeout
	}

	until, err := untilFromTOML(q.Until)
	if err != nil {
		return zero, Error(err.Error())
	}

	title := q.Title
	if title == "" {
		title = q.ID
	}

	return models.QuestionGroup{
		ID:       "single-" + q.ID,
		Title:    title,
		Text:     q.Text,
		Schedule: schedule,
		Timeout:  timeout,
		Until:    until,
		Questions: []models.Question{{
			ID:    q.ID,
			Kind:  models.FieldEntry,
			Label: title,
		}},
	}, nil
}

// untilLayouts are tried in order; naive forms are anchored to the host's
// local offset.
var untilLayouts = []struct {
	layout string
	local  bool
}{
	{time.RFC3339, false},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05", true},
	{"2006-01-02", true},
}

// untilFromTOML normalizes the decoded `until` value. TOML allows both a
// quoted string and a native datetime literal; go-toml yields time.Time
// for offset datetimes and its local types for naive ones, which are
// anchored to the host's local offset like their string counterparts.
func untilFromTOML(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case nil:
		return models.FarFuture(), nil
	case string:
		return ParseUntil(t)
	case time.Time:
		return t, nil
	case toml.LocalDateTime:
		return t.AsTime(time.Local), nil
	case toml.LocalDate:
		return t.AsTime(time.Local), nil
	}
	return time.Time{}, fmt.Errorf("invalid datetime format for 'until': unsupported value %v", v)
}

// ParseUntil parses an `until` timestamp, defaulting to the far-future
// sentinel when empty.
func ParseUntil(s string) (time.Time, error) {
	if s == "" {
		return models.FarFuture(), nil
	}
	var firstErr error
	for _, l := range untilLayouts {
		var t time.Time
		var err error
		if l.local {
			t, err = time.ParseInLocation(l.layout, s, time.Local)
		} else {
			t, err = time.Parse(l.layout, s)
		}
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime format for 'until': %v", firstErr)
}
