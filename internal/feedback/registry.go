package feedback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

var ErrNoAnswerID = errors.New("answer feedback id is required")

// Store remembers the stage reached by each answer so a restarted process
// does not accept a second vote.
type Store interface {
	Load(ctx context.Context, answerFeedbackID string) (Stage, bool, error)
	Save(ctx context.Context, answerFeedbackID string, stage Stage) error
}

// Registry hands out exactly one live Session per answer feedback id.
type Registry struct {
	sender Sender
	store  Store
	logger *logrus.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(sender Sender, store Store, logger *logrus.Logger) *Registry {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Registry{
		sender:   sender,
		store:    store,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Open returns the session for answerFeedbackID, creating it at the stage the
// store last saw. Finished sessions are dropped from memory; reopening one
// yields a session in Done.
func (r *Registry) Open(ctx context.Context, answerFeedbackID string) (*Session, error) {
	if answerFeedbackID == "" {
		return nil, ErrNoAnswerID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.sessions[answerFeedbackID]; ok {
		return s, nil
	}

	stage, found, err := r.store.Load(ctx, answerFeedbackID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback stage: %w", err)
	}
	if !found {
		stage = AwaitingVote
	}

	s := newSession(answerFeedbackID, stage, r.sender, r.store, r.logger)
	if stage == Done {
		return s, nil
	}
	s.onDone = func() { r.forget(answerFeedbackID) }
	r.sessions[answerFeedbackID] = s
	return s, nil
}

// Peek reports the stage of answerFeedbackID without creating a session.
func (r *Registry) Peek(ctx context.Context, answerFeedbackID string) (Stage, error) {
	if answerFeedbackID == "" {
		return 0, ErrNoAnswerID
	}
	r.mu.Lock()
	s, ok := r.sessions[answerFeedbackID]
	r.mu.Unlock()
	if ok {
		return s.Stage(), nil
	}

	stage, found, err := r.store.Load(ctx, answerFeedbackID)
	if err != nil {
		return 0, fmt.Errorf("failed to load feedback stage: %w", err)
	}
	if !found {
		return AwaitingVote, nil
	}
	return stage, nil
}

func (r *Registry) forget(answerFeedbackID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, answerFeedbackID)
}

// MemoryStore keeps stages for the life of the process.
type MemoryStore struct {
	mu     sync.RWMutex
	stages map[string]Stage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stages: make(map[string]Stage)}
}

func (m *MemoryStore) Load(_ context.Context, answerFeedbackID string) (Stage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stage, ok := m.stages[answerFeedbackID]
	return stage, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, answerFeedbackID string, stage Stage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[answerFeedbackID] = stage
	return nil
}
