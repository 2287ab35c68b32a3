package storage

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mactep/aw-watcher-ask/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(false, WithBaseURL(server.URL), WithHostname("testhost"))
}

func TestBucketID(t *testing.T) {
	c := New(false, WithHostname("myhost"))
	assert.Equal(t, "aw-watcher-ask_myhost", c.BucketID())

	c = New(true, WithHostname("myhost"))
	assert.Equal(t, "test-aw-watcher-ask_myhost", c.BucketID())
}

func TestEnsureBucket(t *testing.T) {
	var gotPath string
	var gotPayload map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
	})

	err := c.EnsureBucket(c.BucketID(), "happiness.level")
	require.NoError(t, err)
	assert.Equal(t, "/api/0/buckets/aw-watcher-ask_testhost", gotPath)
	assert.Equal(t, map[string]string{
		"client":   "aw-watcher-ask",
		"type":     "happiness.level",
		"hostname": "testhost",
	}, gotPayload)
}

func TestEnsureBucketAlreadyExists(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	})
	assert.NoError(t, c.EnsureBucket(c.BucketID(), "t"), "304 means the bucket is already there")
}

func TestEnsureBucketServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	assert.Error(t, c.EnsureBucket(c.BucketID(), "t"))
}

func TestInsertEvent(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := c.InsertEvent("aw-watcher-ask_testhost", Event{
		Timestamp: ts,
		Data: models.AnswerRecord{
			Success:    true,
			QuestionID: "mood",
			GroupID:    "wellbeing",
			Title:      "Mood",
			Value:      "3",
			FieldKind:  "combo",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "/api/0/buckets/aw-watcher-ask_testhost/events", gotPath)
	assert.Equal(t, "2025-06-01T12:00:00Z", gotBody["timestamp"])

	data, ok := gotBody["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["success"])
	assert.Equal(t, "mood", data["question_id"])
	assert.Equal(t, "wellbeing", data["group_id"])
	assert.Equal(t, "3", data["value"])
	assert.Equal(t, "combo", data["field_type"])
	_, hasReason := data["reason"]
	assert.False(t, hasReason, "reason key only appears when the question collects one")
}

func TestAnswerRecordJSONShape(t *testing.T) {
	reason := ""
	blob, err := json.Marshal(models.AnswerRecord{
		QuestionID: "mood",
		GroupID:    "wellbeing",
		Title:      "Mood",
		FieldKind:  "combo",
		Reason:     &reason,
	})
	require.NoError(t, err)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal(blob, &data))
	assert.Equal(t, false, data["success"])
	assert.Equal(t, "", data["value"])
	reasonVal, hasReason := data["reason"]
	assert.True(t, hasReason, "empty reason is kept for non-responses")
	assert.Equal(t, "", reasonVal)
}

func TestBucketsAndEvents(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/0/buckets/":
			_, _ = w.Write([]byte(`{"aw-watcher-ask_testhost": {"id": "aw-watcher-ask_testhost", "type": "ask.question"}}`))
		case "/api/0/buckets/aw-watcher-ask_testhost/events":
			_, _ = w.Write([]byte(`[{"id": 1, "timestamp": "2025-06-01T12:00:00Z", "duration": 0, "data": {"success": true, "value": "5"}}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	buckets, err := c.Buckets()
	require.NoError(t, err)
	require.Contains(t, buckets, "aw-watcher-ask_testhost")
	assert.Equal(t, "ask.question", buckets["aw-watcher-ask_testhost"].Type)

	events, err := c.Events("aw-watcher-ask_testhost")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "5", events[0].Data["value"])
}

// failingAppender always refuses the event.
type failingAppender struct{ calls int }

func (f *failingAppender) InsertEvent(string, Event) error {
	f.calls++
	return assert.AnError
}

type capturingAppender struct {
	bucketID string
	events   []Event
}

func (c *capturingAppender) InsertEvent(bucketID string, e Event) error {
	c.bucketID = bucketID
	c.events = append(c.events, e)
	return nil
}

func TestRecorderStampsEvents(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	appender := &capturingAppender{}
	r := NewRecorder(appender, "bucket", clock, zap.NewNop().Sugar())

	r.Record(models.AnswerRecord{QuestionID: "mood", Value: "3", Success: true})

	require.Len(t, appender.events, 1)
	assert.Equal(t, "bucket", appender.bucketID)
	assert.Equal(t, clock.Now().UTC(), appender.events[0].Timestamp)
	assert.Equal(t, "mood", appender.events[0].Data.QuestionID)
}

func TestRecorderSwallowsStoreFailures(t *testing.T) {
	clock := clockwork.NewFakeClock()
	appender := &failingAppender{}
	r := NewRecorder(appender, "bucket", clock, zap.NewNop().Sugar())

	// Must not panic or abort; the loss is logged and life goes on.
	r.Record(models.AnswerRecord{QuestionID: "a"})
	r.Record(models.AnswerRecord{QuestionID: "b"})
	assert.Equal(t, 2, appender.calls)
}
