package services

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Ayash-Bera/felicity/internal/feedback"
	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/Ayash-Bera/felicity/internal/felicity/felicitytest"
	"github.com/Ayash-Bera/felicity/internal/metrics"
	"github.com/Ayash-Bera/felicity/internal/models"
	"github.com/Ayash-Bera/felicity/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryQueryRecords struct {
	mu      sync.Mutex
	records []models.QueryRecord
}

func (m *memoryQueryRecords) Create(record *models.QueryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *record)
	return nil
}

func (m *memoryQueryRecords) GetRecent(limit int) ([]models.QueryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.QueryRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *memoryQueryRecords) GetBySession(sessionID string) ([]models.QueryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.QueryRecord
	for _, r := range m.records {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryQueryRecords) GetByAnswerID(id string) (*models.QueryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.AnswerFeedbackID == id {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memoryQueryRecords) all() []models.QueryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.QueryRecord(nil), m.records...)
}

type memoryFeedbackRecords struct {
	mu      sync.Mutex
	records []models.FeedbackRecord
}

func (m *memoryFeedbackRecords) Create(record *models.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, *record)
	return nil
}

func (m *memoryFeedbackRecords) GetByAnswerID(id string) ([]models.FeedbackRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FeedbackRecord
	for _, r := range m.records {
		if r.AnswerFeedbackID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

type fixture struct {
	fake     *felicitytest.Server
	client   *felicity.Client
	metrics  *metrics.Metrics
	queries  *memoryQueryRecords
	feedback *memoryFeedbackRecords
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := felicitytest.NewServer("test-key")
	server := httptest.NewServer(fake.Handler())
	t.Cleanup(server.Close)

	client, err := felicity.Configure(felicity.Config{APIKey: "test-key", BaseURL: server.URL}, logrus.New())
	require.NoError(t, err)

	return &fixture{
		fake:     fake,
		client:   client,
		metrics:  metrics.NewMetrics(prometheus.NewRegistry()),
		queries:  &memoryQueryRecords{},
		feedback: &memoryFeedbackRecords{},
	}
}

func (f *fixture) sessions() *SessionService {
	return NewSessionService(f.client, f.queries, f.metrics, logrus.New())
}

func (f *fixture) feedbackService() *FeedbackService {
	registry := feedback.NewRegistry(f.client, nil, logrus.New())
	return NewFeedbackService(registry, f.feedback, f.metrics, logrus.New())
}

func satisfied(v bool) *bool { return &v }

func timecardAnswer() *felicity.SearchResponse {
	return &felicity.SearchResponse{
		Success:       felicity.Bool(true),
		TriageType:    felicity.TriageUsage,
		GoalSatisfied: satisfied(true),
		Steps: []felicity.TutorialStep{
			{ID: "1", Action: "Open Timecards", Screenshot: "a.png"},
			{ID: "2", Action: "Click New", Screenshot: "b.png"},
		},
		AnswerFeedbackID: "fb-timecard",
	}
}

// awaitSettled reads states until one is Success or Failed.
func awaitSettled(t *testing.T, states <-chan session.State) session.State {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case st, ok := <-states:
			require.True(t, ok, "subscription closed before settling")
			if st.Status() == session.StatusSuccess || st.Status() == session.StatusError {
				return st
			}
		case <-timeout:
			t.Fatal("session did not settle")
		}
	}
}

func TestSessionService_SearchRecordsHistoryAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.fake.On("How do I create a timecard?", felicitytest.Script{
		Progress: []string{"Reading help center"},
		Response: timecardAnswer(),
	})
	svc := f.sessions()
	defer svc.Shutdown()

	id := svc.Create(felicity.QueryContext{UserID: "u-1"})
	states, cancel, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	first := <-states
	assert.Equal(t, session.StatusIdle, first.Status())

	_, err = svc.Search(id, "How do I create a timecard?", nil)
	require.NoError(t, err)

	success, ok := awaitSettled(t, states).(session.Success)
	require.True(t, ok)
	assert.Equal(t, "fb-timecard", success.Response.AnswerFeedbackID)

	require.Eventually(t, func() bool { return len(f.queries.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	rec := f.queries.all()[0]
	assert.Equal(t, id, rec.SessionID)
	assert.Equal(t, "u-1", rec.UserID)
	assert.Equal(t, "success", rec.Status)
	assert.Equal(t, "answered", rec.OutcomeKind)
	assert.Equal(t, "usage", rec.TriageType)
	assert.Equal(t, 2, rec.StepCount)
	assert.Equal(t, "fb-timecard", rec.AnswerFeedbackID)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Searches.WithLabelValues("answered")))
	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.SearchDuration))

	searches := f.fake.Searches()
	require.Len(t, searches, 1)
	assert.Equal(t, "u-1", searches[0].Context.UserID)
}

func TestSessionService_SupersededSearchIsNotRecorded(t *testing.T) {
	f := newFixture(t)
	f.fake.On("slow", felicitytest.Script{Response: timecardAnswer(), Delay: time.Second})
	f.fake.On("fast", felicitytest.Script{
		Response: &felicity.SearchResponse{Success: felicity.Bool(true), TriageType: felicity.TriageData},
	})
	svc := f.sessions()
	defer svc.Shutdown()

	id := svc.Create(felicity.QueryContext{})
	states, cancel, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Search(id, "slow", nil)
	require.NoError(t, err)
	_, err = svc.Search(id, "fast", nil)
	require.NoError(t, err)

	success, ok := awaitSettled(t, states).(session.Success)
	require.True(t, ok)
	assert.Equal(t, "fast", success.Query)

	require.Eventually(t, func() bool { return len(f.queries.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, f.queries.all(), 1)
	assert.Equal(t, "fast", f.queries.all()[0].QueryText)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Superseded))
}

func TestSessionService_FailedSearch(t *testing.T) {
	f := newFixture(t)
	f.fake.On("broken", felicitytest.Script{Status: http.StatusInternalServerError})
	svc := f.sessions()
	defer svc.Shutdown()

	id := svc.Create(felicity.QueryContext{})
	states, cancel, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Search(id, "broken", nil)
	require.NoError(t, err)

	failed, ok := awaitSettled(t, states).(session.Failed)
	require.True(t, ok)
	var svcErr *felicity.ServiceError
	assert.True(t, errors.As(failed.Err, &svcErr))

	require.Eventually(t, func() bool { return len(f.queries.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "error", f.queries.all()[0].Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Searches.WithLabelValues("error")))
}

func TestSessionService_SearchOverridesContext(t *testing.T) {
	f := newFixture(t)
	svc := f.sessions()
	defer svc.Shutdown()

	id := svc.Create(felicity.QueryContext{UserID: "default"})
	states, cancel, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	override := felicity.QueryContext{UserID: "u-9", Annotations: map[string]interface{}{"page": "/billing"}}
	_, err = svc.Search(id, "anything", &override)
	require.NoError(t, err)
	awaitSettled(t, states)

	searches := f.fake.Searches()
	require.Len(t, searches, 1)
	assert.Equal(t, "u-9", searches[0].Context.UserID)
	assert.Equal(t, "/billing", searches[0].Context.Annotations["page"])
}

func TestSessionService_UnknownSession(t *testing.T) {
	f := newFixture(t)
	svc := f.sessions()

	_, err := svc.State("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Search("nope", "q", nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, _, err = svc.Subscribe("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Close("nope"), ErrSessionNotFound)
}

func TestSessionService_EmptyQuery(t *testing.T) {
	f := newFixture(t)
	svc := f.sessions()
	defer svc.Shutdown()

	id := svc.Create(felicity.QueryContext{})
	_, err := svc.Search(id, "   ", nil)
	assert.ErrorIs(t, err, session.ErrEmptyQuery)

	st, err := svc.State(id)
	require.NoError(t, err)
	assert.Equal(t, session.StatusIdle, st.Status())
}

func TestSessionService_CloseEndsSubscriptions(t *testing.T) {
	f := newFixture(t)
	f.fake.On("slow", felicitytest.Script{Response: timecardAnswer(), Delay: time.Second})
	svc := f.sessions()

	id := svc.Create(felicity.QueryContext{})
	states, cancel, err := svc.Subscribe(id)
	require.NoError(t, err)
	defer cancel()

	_, err = svc.Search(id, "slow", nil)
	require.NoError(t, err)
	require.NoError(t, svc.Close(id))

	var last session.State
	for st := range states {
		last = st
	}
	require.NotNil(t, last)
	failed, ok := last.(session.Failed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, session.ErrSessionClosed)

	_, err = svc.State(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, f.queries.all())
}

func TestSessionService_Sweep(t *testing.T) {
	f := newFixture(t)
	svc := f.sessions()
	defer svc.Shutdown()

	idle := svc.Create(felicity.QueryContext{})
	watched := svc.Create(felicity.QueryContext{})
	_, cancel, err := svc.Subscribe(watched)
	require.NoError(t, err)
	defer cancel()

	assert.Equal(t, 0, svc.Sweep(time.Hour))
	assert.Equal(t, 1, svc.Sweep(-time.Minute))

	_, err = svc.State(idle)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.State(watched)
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ActiveSessions))
}

func TestFeedbackService_VoteAndComment(t *testing.T) {
	f := newFixture(t)
	svc := f.feedbackService()
	ctx := context.Background()

	stage, err := svc.Stage(ctx, "fb-1")
	require.NoError(t, err)
	assert.Equal(t, feedback.AwaitingVote, stage)

	stage, err = svc.Vote(ctx, "fb-1", true)
	require.NoError(t, err)
	assert.Equal(t, feedback.AwaitingComment, stage)

	stage, err = svc.Comment(ctx, "fb-1", " great ")
	require.NoError(t, err)
	assert.Equal(t, feedback.Done, stage)

	received := f.fake.Feedback()
	require.Len(t, received, 2)
	assert.Equal(t, felicity.Vote{IsCorrect: true}, received[0].Payload)
	assert.Equal(t, felicity.Comment{Text: "great"}, received[1].Payload)

	records, err := f.feedback.GetByAnswerID("fb-1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "vote", records[0].Kind)
	assert.True(t, *records[0].IsCorrect)
	assert.Equal(t, "great", records[1].Comment)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Feedback.WithLabelValues("vote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Feedback.WithLabelValues("comment")))
}

func TestFeedbackService_SkipRecordsOnlyVote(t *testing.T) {
	f := newFixture(t)
	svc := f.feedbackService()
	ctx := context.Background()

	_, err := svc.Vote(ctx, "fb-1", false)
	require.NoError(t, err)
	stage, err := svc.Skip(ctx, "fb-1")
	require.NoError(t, err)
	assert.Equal(t, feedback.Done, stage)

	assert.Len(t, f.fake.Feedback(), 1)
	records, _ := f.feedback.GetByAnswerID("fb-1")
	assert.Len(t, records, 1)
}

func TestFeedbackService_Failures(t *testing.T) {
	f := newFixture(t)
	svc := f.feedbackService()
	ctx := context.Background()

	_, err := svc.Comment(ctx, "fb-1", "too early")
	var invalid *feedback.InvalidStateError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.FeedbackErrors.WithLabelValues("comment")))

	f.fake.FailFeedback(http.StatusBadGateway)
	stage, err := svc.Vote(ctx, "fb-1", true)
	var svcErr *felicity.ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, feedback.AwaitingVote, stage)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.FeedbackErrors.WithLabelValues("vote")))

	_, err = svc.Vote(ctx, "", true)
	assert.ErrorIs(t, err, feedback.ErrNoAnswerID)
}
