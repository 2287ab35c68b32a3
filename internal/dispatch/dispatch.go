// Package dispatch turns questions into dialog requests and dialog output
// back into answer records. It owns the forms slot accounting: the slot
// range of every question is fixed when the request is built and reused
// when the pipe-delimited output is decoded, so encode and decode cannot
// drift apart.
package dispatch

import (
	"strings"

	"go.uber.org/zap"

	"github.com/mactep/aw-watcher-ask/internal/models"
	"github.com/mactep/aw-watcher-ask/internal/zenity"
)

// Presenter is the external dialog capability.
type Presenter interface {
	Present(kind models.DialogKind, opts zenity.Options) (accepted bool, rawOutput string)
}

// Dispatcher builds prompts and normalizes their outcomes. Every firing
// produces exactly one record per question, answered or not.
type Dispatcher struct {
	presenter Presenter
	log       *zap.SugaredLogger
}

func New(p Presenter, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{presenter: p, log: log}
}

// AskOne presents a single-field dialog of the configured kind.
func (d *Dispatcher) AskOne(q models.SingleQuestion) models.AnswerRecord {
	opts := zenity.Options{
		Title:    q.Title,
		Text:     q.Text,
		Timeout:  q.Timeout,
		MinValue: q.MinValue,
		MaxValue: q.MaxValue,
		Value:    q.Value,
		Extras:   q.Extras,
	}
	accepted, raw := d.presenter.Present(q.Kind, opts)

	rec := models.AnswerRecord{
		Success:    accepted,
		QuestionID: q.ID,
		Title:      q.Title,
		Value:      raw,
	}
	if q.Kind == models.KindScale {
		// The slider bounds are known from the request, not the output.
		rec.MinValue = q.MinValue
		rec.MaxValue = q.MaxValue
	}
	return rec
}

// slot is one question's position in the forms output: the index of its
// value in the pipe-delimited string, and whether a reason value follows.
type slot struct {
	start     int
	hasReason bool
}

// AskGroup presents all of a group's questions as one forms dialog and
// returns one record per question, in the group's declared order.
func (d *Dispatcher) AskGroup(g models.QuestionGroup) []models.AnswerRecord {
	fields := make([]zenity.FormField, 0, len(g.Questions))
	slots := make([]slot, len(g.Questions))
	next := 0
	for i, q := range g.Questions {
		fields = append(fields, zenity.FormField{Kind: q.Kind, Label: q.Label, Values: q.Values})
		slots[i] = slot{start: next, hasReason: q.Reason}
		next++
		if q.Reason {
			fields = append(fields, zenity.FormField{Kind: models.FieldEntry, Label: "Reason"})
			next++
		}
	}

	accepted, raw := d.presenter.Present(models.KindForms, zenity.Options{
		Title:   g.Title,
		Text:    g.Text,
		Timeout: g.Timeout,
		Fields:  fields,
	})

	var values []string
	if accepted && raw != "" {
		values = strings.Split(raw, "|")
	}

	records := make([]models.AnswerRecord, 0, len(g.Questions))
	for i, q := range g.Questions {
		records = append(records, d.decode(g.ID, q, slots[i], values))
	}
	return records
}

// decode resolves one question's slot range against the split output. A
// missing slot (cancelled dialog, timeout, truncated output) yields an
// explicit non-response record, never a dropped question.
func (d *Dispatcher) decode(groupID string, q models.Question, s slot, values []string) models.AnswerRecord {
	rec := models.AnswerRecord{
		QuestionID: q.ID,
		GroupID:    groupID,
		Title:      q.Label,
		FieldKind:  string(q.Kind),
	}
	if q.Reason {
		empty := ""
		rec.Reason = &empty
	}

	if s.start >= len(values) {
		d.log.Infow("no response from user", "question_id", q.ID)
		return rec
	}

	rec.Success = true
	rec.Value = values[s.start]
	if s.hasReason && s.start+1 < len(values) {
		reason := values[s.start+1]
		rec.Reason = &reason
	}
	return rec
}
