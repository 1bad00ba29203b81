package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Ayash-Bera/felicity/internal/classify"
	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/Ayash-Bera/felicity/internal/metrics"
	"github.com/Ayash-Bera/felicity/internal/models"
	"github.com/Ayash-Bera/felicity/internal/session"
	"github.com/Ayash-Bera/felicity/pkg/utils"
	"github.com/sirupsen/logrus"
)

var ErrSessionNotFound = errors.New("query session not found")

const subscriberBuffer = 16

// SessionService hosts query sessions for remote front ends and records
// every settled search.
type SessionService struct {
	searcher session.Searcher
	records  models.QueryRecordRepository
	metrics  *metrics.Metrics
	logger   *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*hostedSession
}

// NewSessionService returns a service with no sessions. records may be nil
// to disable history.
func NewSessionService(
	searcher session.Searcher,
	records models.QueryRecordRepository,
	m *metrics.Metrics,
	logger *logrus.Logger,
) *SessionService {
	return &SessionService{
		searcher: searcher,
		records:  records,
		metrics:  m,
		logger:   logger,
		sessions: make(map[string]*hostedSession),
	}
}

type hostedSession struct {
	id    string
	query *session.Query

	mu          sync.Mutex
	current     session.State
	userID      string
	lastUsed    time.Time
	subscribers map[int]chan session.State
	nextSub     int
	closed      bool
}

// Create starts an idle session whose searches carry qctx by default.
func (s *SessionService) Create(qctx felicity.QueryContext) string {
	h := &hostedSession{
		id:          utils.GenerateSessionID(),
		current:     session.Idle{},
		userID:      qctx.UserID,
		lastUsed:    time.Now(),
		subscribers: make(map[int]chan session.State),
	}
	h.query = session.NewQuery(s.searcher, qctx, s.logger)
	h.query.Subscribe(func(st session.State) { s.onState(h, st) })

	s.mu.Lock()
	s.sessions[h.id] = h
	count := len(s.sessions)
	s.mu.Unlock()

	s.metrics.ActiveSessions.Set(float64(count))
	s.logger.WithFields(logrus.Fields{
		"session_id": h.id,
		"user_id":    qctx.UserID,
	}).Info("Query session created")
	return h.id
}

// State returns the current state of a session.
func (s *SessionService) State(id string) (session.State, error) {
	h, err := s.get(id)
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current, nil
}

// Search starts a search, superseding any in flight. qctx overrides the
// session's default context when non-nil.
func (s *SessionService) Search(id, text string, qctx *felicity.QueryContext) (session.State, error) {
	h, err := s.get(id)
	if err != nil {
		return nil, err
	}

	if qctx != nil {
		h.mu.Lock()
		h.userID = qctx.UserID
		h.mu.Unlock()
		err = h.query.SearchWith(text, *qctx)
	} else {
		err = h.query.Search(text)
	}
	if err != nil {
		return nil, err
	}
	return h.query.State(), nil
}

// Subscribe returns a channel that receives the current state followed by
// every later transition. When the subscriber falls behind, intermediate
// states are dropped and the newest one is kept. The channel is closed by the
// returned cancel func or when the session closes.
func (s *SessionService) Subscribe(id string) (<-chan session.State, func(), error) {
	h, err := s.get(id)
	if err != nil {
		return nil, nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, nil, ErrSessionNotFound
	}

	ch := make(chan session.State, subscriberBuffer)
	subID := h.nextSub
	h.nextSub++
	h.subscribers[subID] = ch
	ch <- h.current

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subscribers[subID]; ok {
			delete(h.subscribers, subID)
			close(sub)
		}
	}
	return ch, cancel, nil
}

// Close cancels the session's search and forgets it.
func (s *SessionService) Close(id string) error {
	s.mu.Lock()
	h, ok := s.sessions[id]
	delete(s.sessions, id)
	count := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	s.metrics.ActiveSessions.Set(float64(count))
	s.closeHosted(h)
	s.logger.WithField("session_id", id).Info("Query session closed")
	return nil
}

// Sweep closes sessions unused for longer than maxIdle that have no
// subscribers and returns how many it closed.
func (s *SessionService) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	var stale []*hostedSession
	s.mu.Lock()
	for id, h := range s.sessions {
		h.mu.Lock()
		idle := h.lastUsed.Before(cutoff) && len(h.subscribers) == 0
		h.mu.Unlock()
		if idle {
			stale = append(stale, h)
			delete(s.sessions, id)
		}
	}
	count := len(s.sessions)
	s.mu.Unlock()

	for _, h := range stale {
		s.closeHosted(h)
	}
	if len(stale) > 0 {
		s.metrics.ActiveSessions.Set(float64(count))
		s.logger.WithField("closed", len(stale)).Debug("Swept idle query sessions")
	}
	return len(stale)
}

// RunJanitor sweeps idle sessions every interval until ctx is done.
func (s *SessionService) RunJanitor(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(maxIdle)
		}
	}
}

// Shutdown closes every session.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	hosted := make([]*hostedSession, 0, len(s.sessions))
	for id, h := range s.sessions {
		hosted = append(hosted, h)
		delete(s.sessions, id)
	}
	s.mu.Unlock()

	for _, h := range hosted {
		s.closeHosted(h)
	}
	s.metrics.ActiveSessions.Set(0)
}

func (s *SessionService) get(id string) (*hostedSession, error) {
	s.mu.Lock()
	h, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}

	h.mu.Lock()
	h.lastUsed = time.Now()
	h.mu.Unlock()
	return h, nil
}

func (s *SessionService) closeHosted(h *hostedSession) {
	h.query.Close()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

// onState runs under the query's lock for every transition.
func (s *SessionService) onState(h *hostedSession, st session.State) {
	h.mu.Lock()
	prev := h.current
	h.current = st
	userID := h.userID
	if !h.closed {
		for _, ch := range h.subscribers {
			deliverLatest(ch, st)
		}
	}
	h.mu.Unlock()

	s.observe(h.id, userID, prev, st)
}

func deliverLatest(ch chan session.State, st session.State) {
	select {
	case ch <- st:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}

func (s *SessionService) observe(sessionID, userID string, prev, st session.State) {
	switch cur := st.(type) {
	case session.Pending:
		if p, ok := prev.(session.Pending); ok && p.Generation != cur.Generation {
			s.metrics.Superseded.Inc()
		}
	case session.Success:
		s.metrics.Searches.WithLabelValues(string(cur.Outcome.Kind())).Inc()
		s.metrics.SearchDuration.Observe(cur.Elapsed.Seconds())
		s.record(newSuccessRecord(sessionID, userID, cur))
	case session.Failed:
		if errors.Is(cur.Err, session.ErrSessionClosed) {
			return
		}
		s.metrics.Searches.WithLabelValues("error").Inc()
		s.metrics.SearchDuration.Observe(cur.Elapsed.Seconds())
		s.record(&models.QueryRecord{
			SessionID:      sessionID,
			QueryText:      cur.Query,
			UserID:         userID,
			Status:         "error",
			Reason:         cur.Reason,
			ResponseTimeMs: cur.Elapsed.Milliseconds(),
		})
	}
}

func newSuccessRecord(sessionID, userID string, st session.Success) *models.QueryRecord {
	record := &models.QueryRecord{
		SessionID:      sessionID,
		QueryText:      st.Query,
		UserID:         userID,
		Status:         "success",
		OutcomeKind:    string(st.Outcome.Kind()),
		ResponseTimeMs: st.Elapsed.Milliseconds(),
	}
	if st.Response != nil {
		record.TriageType = string(st.Response.TriageType)
		record.AnswerFeedbackID = st.Response.AnswerFeedbackID
	}
	switch o := st.Outcome.(type) {
	case classify.Answered:
		record.StepCount = len(o.Steps)
	case classify.Malformed:
		record.Reason = o.Reason
	}
	return record
}

// record writes in the background; the caller holds the query lock.
func (s *SessionService) record(rec *models.QueryRecord) {
	if s.records == nil {
		return
	}
	go func() {
		if err := s.records.Create(rec); err != nil {
			s.logger.WithError(err).WithField("session_id", rec.SessionID).Error("Failed to record query")
		}
	}()
}
