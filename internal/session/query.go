// Package session holds the per-query state machine a front end drives:
// idle, pending with progress, then success or error.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Ayash-Bera/felicity/internal/classify"
	"github.com/Ayash-Bera/felicity/internal/felicity"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyQuery    = errors.New("query text is empty")
	ErrSessionClosed = errors.New("query session is closed")
)

// Searcher is the part of the service client a Query needs.
type Searcher interface {
	Search(ctx context.Context, query string, qctx felicity.QueryContext, onProgress func(label string)) (*felicity.SearchResponse, error)
}

// Listener receives every state transition in order. Listeners run while the
// session lock is held and must not call back into the Query.
type Listener func(State)

// Query tracks one search at a time. A new Search supersedes the one in
// flight; callbacks carry the generation they were issued under and are
// dropped once it is no longer current.
type Query struct {
	searcher Searcher
	qctx     felicity.QueryContext
	logger   *logrus.Logger

	base context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	settled    chan struct{}
	listeners  map[int]Listener
	nextID     int
	closed     bool
}

// NewQuery returns an idle session. qctx is sent with every Search that does
// not supply its own.
func NewQuery(searcher Searcher, qctx felicity.QueryContext, logger *logrus.Logger) *Query {
	if logger == nil {
		logger = logrus.New()
	}
	base, stop := context.WithCancel(context.Background())
	return &Query{
		searcher:  searcher,
		qctx:      qctx,
		logger:    logger,
		base:      base,
		stop:      stop,
		state:     Idle{},
		listeners: make(map[int]Listener),
	}
}

// State returns the current state.
func (q *Query) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Subscribe registers l and returns a function that removes it.
func (q *Query) Subscribe(l Listener) func() {
	q.mu.Lock()
	defer q.mu.Unlock()

	id := q.nextID
	q.nextID++
	q.listeners[id] = l

	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.listeners, id)
	}
}

// Search starts resolving text with the session's default context.
func (q *Query) Search(text string) error {
	return q.SearchWith(text, q.qctx)
}

// SearchWith starts resolving text with qctx. The session is Pending when it
// returns; the result arrives asynchronously.
func (q *Query) SearchWith(text string, qctx felicity.QueryContext) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyQuery
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrSessionClosed
	}

	if prev, ok := q.state.(Pending); ok {
		q.cancel()
		close(q.settled)
		q.logger.WithFields(logrus.Fields{
			"superseded_query": prev.Query,
			"generation":       prev.Generation,
		}).Debug("Search superseded")
	}

	q.generation++
	gen := q.generation
	ctx, cancel := context.WithCancel(q.base)
	q.cancel = cancel
	q.settled = make(chan struct{})

	q.setLocked(Pending{Query: text, Generation: gen})

	go q.run(ctx, gen, text, qctx, time.Now())
	return nil
}

// Wait blocks until the latest search settles and returns the terminal state.
// An idle session returns immediately.
func (q *Query) Wait(ctx context.Context) (State, error) {
	for {
		q.mu.Lock()
		state, settled := q.state, q.settled
		q.mu.Unlock()

		if _, pending := state.(Pending); !pending {
			return state, nil
		}
		select {
		case <-settled:
		case <-ctx.Done():
			return state, ctx.Err()
		}
	}
}

// Close cancels the search in flight. A pending search ends in Failed with
// ErrSessionClosed.
func (q *Query) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.stop()

	if p, ok := q.state.(Pending); ok {
		q.generation++
		close(q.settled)
		q.setLocked(Failed{
			Query:      p.Query,
			Reason:     ErrSessionClosed.Error(),
			Err:        ErrSessionClosed,
			Generation: p.Generation,
		})
	}
}

func (q *Query) run(ctx context.Context, gen uint64, text string, qctx felicity.QueryContext, started time.Time) {
	var (
		resp *felicity.SearchResponse
		err  error
	)
	defer func() {
		if r := recover(); r != nil {
			resp, err = nil, fmt.Errorf("search panicked: %v", r)
		}
		q.onSettled(gen, resp, err, time.Since(started))
	}()

	resp, err = q.searcher.Search(ctx, text, qctx, func(label string) {
		q.onProgress(gen, label)
	})
}

func (q *Query) onProgress(gen uint64, label string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.state.(Pending)
	if gen != q.generation || !ok {
		q.logger.WithFields(logrus.Fields{
			"generation": gen,
			"current":    q.generation,
		}).Debug("Ignoring stale progress")
		return
	}
	p.Progress = label
	q.setLocked(p)
}

func (q *Query) onSettled(gen uint64, resp *felicity.SearchResponse, err error, elapsed time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()

	p, ok := q.state.(Pending)
	if gen != q.generation || !ok {
		q.logger.WithFields(logrus.Fields{
			"generation": gen,
			"current":    q.generation,
		}).Debug("Ignoring superseded result")
		return
	}
	q.cancel()
	close(q.settled)

	if err != nil {
		q.logger.WithError(err).WithField("query", p.Query).Warn("Search failed")
		q.setLocked(Failed{
			Query:      p.Query,
			Reason:     err.Error(),
			Err:        err,
			Generation: gen,
			Elapsed:    elapsed,
		})
		return
	}

	outcome := classify.Classify(resp)
	q.logger.WithFields(logrus.Fields{
		"query":      p.Query,
		"outcome":    outcome.Kind(),
		"elapsed_ms": elapsed.Milliseconds(),
	}).Info("Search settled")

	q.setLocked(Success{
		Query:      p.Query,
		Response:   resp,
		Outcome:    outcome,
		Generation: gen,
		Elapsed:    elapsed,
	})
}

func (q *Query) setLocked(s State) {
	q.state = s
	for _, l := range q.listeners {
		l(s)
	}
}
