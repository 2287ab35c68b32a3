package storage

import (
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/mactep/aw-watcher-ask/internal/models"
)

// Appender is the slice of Client the recorder needs.
type Appender interface {
	InsertEvent(bucketID string, e Event) error
}

// Recorder stamps answer records and appends them to one bucket. A failed
// append is logged and dropped: the watcher has no durability of its own
// and one lost event must never stop the schedule.
type Recorder struct {
	appender Appender
	bucketID string
	clock    clockwork.Clock
	log      *zap.SugaredLogger
}

func NewRecorder(a Appender, bucketID string, clock clockwork.Clock, log *zap.SugaredLogger) *Recorder {
	return &Recorder{appender: a, bucketID: bucketID, clock: clock, log: log}
}

// Record emits one answer record as a timestamped event.
func (r *Recorder) Record(rec models.AnswerRecord) {
	event := Event{
		Timestamp: r.clock.Now().UTC(),
		Data:      rec,
	}
	if err := r.appender.InsertEvent(r.bucketID, event); err != nil {
		r.log.Errorw("failed to store event",
			"bucket", r.bucketID, "question_id", rec.QuestionID, "error", err)
		return
	}
	r.log.Infow("event stored", "bucket", r.bucketID, "question_id", rec.QuestionID)
}
