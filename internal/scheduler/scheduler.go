// Package scheduler runs the watcher's control loop: it computes trigger
// times, sleeps until the earliest one, fires the due prompts and records
// the outcome. Everything is strictly sequential; only one dialog is ever
// outstanding.
package scheduler

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mactep/aw-watcher-ask/internal/models"
	"github.com/mactep/aw-watcher-ask/internal/trigger"
)

// Asker is the prompt dispatcher capability.
type Asker interface {
	AskOne(q models.SingleQuestion) models.AnswerRecord
	AskGroup(g models.QuestionGroup) []models.AnswerRecord
}

// Sink receives one record per question per firing. Implementations must
// swallow store failures; losing an event never stops the schedule.
type Sink interface {
	Record(rec models.AnswerRecord)
}

// GroupState is the live scheduling state of one group. The group itself
// is read-only; Next is re-armed after every firing.
type GroupState struct {
	Group  models.QuestionGroup
	Next   time.Time
	engine *trigger.Engine
}

// Scheduler owns the loop state, so independent instances can run side
// by side in tests.
type Scheduler struct {
	asker Asker
	sink  Sink
	clock clockwork.Clock
	log   *zap.SugaredLogger
}

func New(asker Asker, sink Sink, clock clockwork.Clock, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{asker: asker, sink: sink, clock: clock, log: log}
}

// RunSingle drives the legacy single-question mode: one cron job firing
// the dialog until the question's expiry passes, then a clean shutdown.
func (s *Scheduler) RunSingle(q models.SingleQuestion) error {
	log := s.log.With("question_id", q.ID)

	eng, err := trigger.New(q.Schedule)
	if err != nil {
		return err
	}

	if !s.clock.Now().Before(q.Until) {
		log.Info("'until' has already passed, nothing to do")
		return nil
	}
	log.Infow("starting watcher", "schedule", eng.Expr(), "until", q.Until)

	sched, err := gocron.NewScheduler(gocron.WithClock(s.clock))
	if err != nil {
		return err
	}
	_, err = sched.NewJob(
		gocron.CronJob(eng.Expr(), eng.HasSeconds()),
		gocron.NewTask(func() {
			log.Info("new prompt fired, waiting for user input")
			rec := s.asker.AskOne(q)
			if rec.Success {
				log.Infow("user provided response", "value", rec.Value)
			} else {
				log.Info("prompt closed or timed out with no response")
			}
			s.sink.Record(rec)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return err
	}

	sched.Start()
	s.clock.Sleep(q.Until.Sub(s.clock.Now()))
	return sched.Shutdown()
}

// RunGroups drives the multi-group mode until every group has expired.
func (s *Scheduler) RunGroups(groups []models.QuestionGroup) error {
	now := s.clock.Now()
	states := make([]*GroupState, 0, len(groups))
	for _, g := range groups {
		eng, err := trigger.New(g.Schedule)
		if err != nil {
			// Schedules were validated at load time; reaching this is a
			// programming defect.
			return fmt.Errorf("group %s: %w", g.ID, err)
		}
		st := &GroupState{Group: g, Next: eng.NextAfter(now), engine: eng}
		states = append(states, st)
		s.log.Infow("group scheduled",
			"group_id", g.ID, "schedule", eng.Expr(), "next_execution", st.Next)
	}
	s.log.Infow("starting watcher", "groups", len(states))

	for {
		now = s.clock.Now()

		next, ok := earliest(states, now)
		if !ok {
			s.log.Info("all question groups have expired, stopping watcher")
			return nil
		}
		s.log.Debugw("sleeping until next execution", "next_execution", next)
		if d := next.Sub(now); d > 0 {
			s.clock.Sleep(d)
		}

		// Re-check activity after the sleep: a group may have expired
		// while another one was being prompted.
		now = s.clock.Now()
		for _, st := range states {
			if !active(st, now) || !st.Next.Equal(next) {
				continue
			}
			s.fire(st)
			st.Next = st.engine.NextAfter(st.Next)
			s.log.Debugw("group re-armed", "group_id", st.Group.ID, "next_execution", st.Next)
		}
	}
}

// active applies the strict expiry boundary: a group whose expiry equals
// the current instant no longer fires.
func active(st *GroupState, now time.Time) bool {
	return now.Before(st.Group.Until)
}

// earliest selects the minimum pending trigger among active groups.
func earliest(states []*GroupState, now time.Time) (time.Time, bool) {
	var min time.Time
	found := false
	for _, st := range states {
		if !active(st, now) {
			continue
		}
		if !found || st.Next.Before(min) {
			min = st.Next
			found = true
		}
	}
	return min, found
}

func (s *Scheduler) fire(st *GroupState) {
	log := s.log.With("group_id", st.Group.ID)
	log.Info("new prompt fired, waiting for user input")

	for _, rec := range s.asker.AskGroup(st.Group) {
		if rec.Success {
			log.Infow("user provided response", "question_id", rec.QuestionID, "value", rec.Value)
		} else {
			log.Infow("no response from user", "question_id", rec.QuestionID)
		}
		s.sink.Record(rec)
	}
}
