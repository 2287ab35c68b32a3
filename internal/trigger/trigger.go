// Package trigger computes prompt trigger times from extended cron
// expressions. On top of plain cron it accepts the literal token `R` in
// the second, minute and hour positions, meaning "a uniformly random
// valid value, fixed once per engine instance" — this is what gives the
// watcher its random-times semantics.
package trigger

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// parser accepts classic 5-field expressions and 6-field expressions
// with a leading seconds field.
var parser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Engine produces successive trigger times for one schedule expression.
type Engine struct {
	expr     string // with R tokens resolved
	schedule cron.Schedule
}

// New resolves the expression's R tokens and compiles it. Malformed
// expressions fail here, at validation time, never mid-run.
func New(expr string) (*Engine, error) {
	resolved, err := resolveRandom(expr)
	if err != nil {
		return nil, err
	}
	schedule, err := parser.Parse(resolved)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return &Engine{expr: resolved, schedule: schedule}, nil
}

// Expr returns the expression with its random fields pinned.
func (e *Engine) Expr() string { return e.expr }

// NextAfter returns the next trigger time strictly after t.
func (e *Engine) NextAfter(t time.Time) time.Time {
	return e.schedule.Next(t)
}

// HasSeconds reports whether the expression carries a seconds field.
func (e *Engine) HasSeconds() bool {
	return len(strings.Fields(e.expr)) == 6
}

// Validate compiles the expression and throws the engine away. Used by
// config validation to fail fast on bad schedules.
func Validate(expr string) error {
	_, err := New(expr)
	return err
}

// resolveRandom substitutes each R token with a fixed random value valid
// for its position. Only the time-of-day fields may be randomized.
func resolveRandom(expr string) (string, error) {
	fields := strings.Fields(strings.TrimSpace(expr))
	if len(fields) != 5 && len(fields) != 6 {
		return "", fmt.Errorf("invalid schedule %q: expected 5 or 6 fields, got %d", expr, len(fields))
	}

	// Positions of second/minute/hour depend on whether the optional
	// leading seconds field is present.
	offset := 0
	if len(fields) == 6 {
		offset = 1
		if fields[0] == "R" {
			fields[0] = strconv.Itoa(rand.Intn(60))
		}
	}
	limits := [...]int{60, 24} // minute, hour
	for i, limit := range limits {
		pos := offset + i
		if fields[pos] == "R" {
			fields[pos] = strconv.Itoa(rand.Intn(limit))
		}
	}
	for _, f := range fields {
		if f == "R" {
			return "", fmt.Errorf("invalid schedule %q: R is only allowed in the second, minute and hour fields", expr)
		}
	}
	return strings.Join(fields, " "), nil
}
