package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Ayash-Bera/felicity/internal/classify"
	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	resp *felicity.SearchResponse
	err  error
}

// searchCall is one in-flight call the test resolves by hand.
type searchCall struct {
	ctx      context.Context
	query    string
	qctx     felicity.QueryContext
	progress func(string)
	done     chan result
}

func (c *searchCall) resolve(resp *felicity.SearchResponse, err error) {
	c.done <- result{resp: resp, err: err}
}

type fakeSearcher struct {
	calls chan *searchCall
}

func newFakeSearcher() *fakeSearcher {
	return &fakeSearcher{calls: make(chan *searchCall, 8)}
}

// Search ignores ctx on purpose so tests can deliver results after a
// supersede.
func (f *fakeSearcher) Search(ctx context.Context, query string, qctx felicity.QueryContext, onProgress func(string)) (*felicity.SearchResponse, error) {
	call := &searchCall{ctx: ctx, query: query, qctx: qctx, progress: onProgress, done: make(chan result, 1)}
	f.calls <- call
	r := <-call.done
	return r.resp, r.err
}

func (f *fakeSearcher) next(t *testing.T) *searchCall {
	t.Helper()
	select {
	case call := <-f.calls:
		return call
	case <-time.After(2 * time.Second):
		t.Fatal("no search call issued")
		return nil
	}
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) listen(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) statuses() []Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Status, len(r.states))
	for i, s := range r.states {
		out[i] = s.Status()
	}
	return out
}

func usageAnswer(id string) *felicity.SearchResponse {
	satisfied := true
	return &felicity.SearchResponse{
		Success:          felicity.Bool(true),
		TriageType:       felicity.TriageUsage,
		GoalSatisfied:    &satisfied,
		Steps:            []felicity.TutorialStep{{ID: "s1", Action: "Open Timecards", Screenshot: "img1.png"}},
		AnswerFeedbackID: id,
	}
}

func waitSettled(t *testing.T, q *Query) State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state, err := q.Wait(ctx)
	require.NoError(t, err)
	return state
}

func newQuery(searcher Searcher) *Query {
	return NewQuery(searcher, felicity.QueryContext{UserID: "u-1"}, logrus.New())
}

func TestQuery_SearchGoesThroughPending(t *testing.T) {
	searcher := newFakeSearcher()
	q := newQuery(searcher)
	defer q.Close()

	rec := &recorder{}
	q.Subscribe(rec.listen)

	assert.Equal(t, Idle{}, q.State())
	require.NoError(t, q.Search("  How do I create a timecard?  "))

	pending, ok := q.State().(Pending)
	require.True(t, ok)
	assert.Equal(t, "How do I create a timecard?", pending.Query)

	call := searcher.next(t)
	assert.Equal(t, "How do I create a timecard?", call.query)
	assert.Equal(t, "u-1", call.qctx.UserID)
	call.resolve(usageAnswer("fb-1"), nil)

	state := waitSettled(t, q)
	success, ok := state.(Success)
	require.True(t, ok, "expected Success, got %T", state)
	assert.Equal(t, "fb-1", success.Response.AnswerFeedbackID)
	assert.Equal(t, classify.KindAnswered, success.Outcome.Kind())

	assert.Equal(t, []Status{StatusPending, StatusSuccess}, rec.statuses())
}

func TestQuery_ProgressUpdatesPendingOnly(t *testing.T) {
	searcher := newFakeSearcher()
	q := newQuery(searcher)
	defer q.Close()

	require.NoError(t, q.Search("reset password"))
	call := searcher.next(t)

	call.progress("Reading help center")
	pending := q.State().(Pending)
	assert.Equal(t, "Reading help center", pending.Progress)
	assert.Equal(t, "reset password", pending.Query)

	call.resolve(usageAnswer("fb-2"), nil)
	waitSettled(t, q)

	call.progress("late label")
	assert.Equal(t, StatusSuccess, q.State().Status())
}

func TestQuery_SupersededResultIsDiscarded(t *testing.T) {
	searcher := newFakeSearcher()
	q := newQuery(searcher)
	defer q.Close()

	rec := &recorder{}
	q.Subscribe(rec.listen)

	require.NoError(t, q.Search("A"))
	callA := searcher.next(t)
	callA.progress("working on A")

	require.NoError(t, q.Search("B"))
	callB := searcher.next(t)

	pending := q.State().(Pending)
	assert.Equal(t, "B", pending.Query)
	assert.Empty(t, pending.Progress, "progress resets on a new search")
	assert.Error(t, callA.ctx.Err(), "superseded request is cancelled")

	callA.progress("stale label for A")
	assert.Empty(t, q.State().(Pending).Progress)

	callB.resolve(&felicity.SearchResponse{Success: felicity.Bool(true), TriageType: felicity.TriageData}, nil)
	state := waitSettled(t, q)

	callA.resolve(usageAnswer("fb-A"), nil)
	// A's late result must not replace B's.
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, state, q.State())
	success := q.State().(Success)
	assert.Equal(t, "B", success.Query)
	assert.Equal(t, classify.OffTopic{Triage: felicity.TriageData}, success.Outcome)
	assert.Equal(t, []Status{StatusPending, StatusPending, StatusSuccess}, rec.statuses())
}

func TestQuery_LateSupersededFailureIsDiscarded(t *testing.T) {
	searcher := newFakeSearcher()
	q := newQuery(searcher)
	defer q.Close()

	require.NoError(t, q.Search("A"))
	callA := searcher.next(t)
	require.NoError(t, q.Search("B"))
	callB := searcher.next(t)

	callA.resolve(nil, &felicity.TransportError{Op: "search", Err: context.Canceled})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatusPending, q.State().Status())

	callB.resolve(usageAnswer("fb-B"), nil)
	assert.Equal(t, StatusSuccess, waitSettled(t, q).Status())
}

func TestQuery_Failures(t *testing.T) {
	cases := map[string]error{
		"transport": &felicity.TransportError{Op: "search", Err: errors.New("connection refused")},
		"service":   &felicity.ServiceError{Op: "search", StatusCode: 503, Message: "overloaded"},
	}

	for name, searchErr := range cases {
		t.Run(name, func(t *testing.T) {
			searcher := newFakeSearcher()
			q := newQuery(searcher)
			defer q.Close()

			require.NoError(t, q.Search("anything"))
			searcher.next(t).resolve(nil, searchErr)

			failed, ok := waitSettled(t, q).(Failed)
			require.True(t, ok)
			assert.Equal(t, "anything", failed.Query)
			assert.Equal(t, searchErr.Error(), failed.Reason)
			assert.ErrorIs(t, failed.Err, searchErr)
		})
	}
}

func TestQuery_EmptyQueryIsRejected(t *testing.T) {
	searcher := newFakeSearcher()
	q := newQuery(searcher)
	defer q.Close()

	assert.ErrorIs(t, q.Search("   "), ErrEmptyQuery)
	assert.Equal(t, Idle{}, q.State())
	assert.Empty(t, searcher.calls)
}

func TestQuery_SameTextSearchesAgain(t *testing.T) {
	searcher := newFakeSearcher()
	q := newQuery(searcher)
	defer q.Close()

	for i := 0; i < 2; i++ {
		require.NoError(t, q.Search("same"))
		assert.Equal(t, StatusPending, q.State().Status())
		searcher.next(t).resolve(usageAnswer("fb"), nil)
		assert.Equal(t, StatusSuccess, waitSettled(t, q).Status())
	}
}

func TestQuery_SearchWithOverridesContext(t *testing.T) {
	searcher := newFakeSearcher()
	q := newQuery(searcher)
	defer q.Close()

	qctx := felicity.QueryContext{UserID: "u-2", Annotations: map[string]interface{}{"page": "/timecards"}}
	require.NoError(t, q.SearchWith("q", qctx))

	call := searcher.next(t)
	assert.Equal(t, qctx, call.qctx)
	call.resolve(usageAnswer("fb"), nil)
	waitSettled(t, q)
}

func TestQuery_Close(t *testing.T) {
	searcher := newFakeSearcher()
	q := newQuery(searcher)

	require.NoError(t, q.Search("q"))
	call := searcher.next(t)

	q.Close()
	failed, ok := q.State().(Failed)
	require.True(t, ok)
	assert.ErrorIs(t, failed.Err, ErrSessionClosed)
	assert.Error(t, call.ctx.Err())

	call.resolve(usageAnswer("fb"), nil)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StatusError, q.State().Status())

	assert.ErrorIs(t, q.Search("again"), ErrSessionClosed)
}

func TestQuery_Unsubscribe(t *testing.T) {
	searcher := newFakeSearcher()
	q := newQuery(searcher)
	defer q.Close()

	rec := &recorder{}
	unsubscribe := q.Subscribe(rec.listen)
	unsubscribe()

	require.NoError(t, q.Search("q"))
	searcher.next(t).resolve(usageAnswer("fb"), nil)
	waitSettled(t, q)

	assert.Empty(t, rec.statuses())
}

type panickingSearcher struct{}

func (panickingSearcher) Search(context.Context, string, felicity.QueryContext, func(string)) (*felicity.SearchResponse, error) {
	panic("boom")
}

func TestQuery_PanickingSearcherBecomesFailure(t *testing.T) {
	q := newQuery(panickingSearcher{})
	defer q.Close()

	require.NoError(t, q.Search("q"))
	failed, ok := waitSettled(t, q).(Failed)
	require.True(t, ok)
	assert.Contains(t, failed.Reason, "boom")
}
