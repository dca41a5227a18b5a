package attempt

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrStepExists = errors.New("attempt step already recorded")
)

type Store interface {
	PutQuestion(ctx context.Context, q Question) error
	GetQuestion(ctx context.Context, id string) (Question, error)
	NewAttempt(ctx context.Context, a Attempt) error
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	// AppendStep fails with ErrStepExists if the attempt already has a
	// step with the same Seq.
	AppendStep(ctx context.Context, s Step) error
	LatestStep(ctx context.Context, attemptID string) (Step, error)
	ListSteps(ctx context.Context, attemptID string) ([]Step, error)
}

type memoryStore struct {
	mu        sync.RWMutex
	questions map[string]Question
	attempts  map[string]Attempt
	steps     map[string][]Step
}

func NewMemoryStore() Store {
	return &memoryStore{
		questions: map[string]Question{},
		attempts:  map[string]Attempt{},
		steps:     map[string][]Step{},
	}
}

func (m *memoryStore) PutQuestion(_ context.Context, q Question) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.questions[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, ErrNotFound
	}
	return q, nil
}

func (m *memoryStore) NewAttempt(_ context.Context, a Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[a.QuestionID]; !ok {
		return ErrNotFound
	}
	m.attempts[a.ID] = a
	return nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrNotFound
	}
	return a, nil
}

func (m *memoryStore) AppendStep(_ context.Context, s Step) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attempts[s.AttemptID]; !ok {
		return ErrNotFound
	}
	for _, existing := range m.steps[s.AttemptID] {
		if existing.Seq == s.Seq {
			return ErrStepExists
		}
	}
	steps := append(m.steps[s.AttemptID], s)
	sort.Slice(steps, func(i, j int) bool { return steps[i].Seq < steps[j].Seq })
	m.steps[s.AttemptID] = steps
	return nil
}

func (m *memoryStore) LatestStep(_ context.Context, attemptID string) (Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	steps := m.steps[attemptID]
	if len(steps) == 0 {
		return Step{}, ErrNotFound
	}
	return steps[len(steps)-1], nil
}

func (m *memoryStore) ListSteps(_ context.Context, attemptID string) ([]Step, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.attempts[attemptID]; !ok {
		return nil, ErrNotFound
	}
	return append([]Step(nil), m.steps[attemptID]...), nil
}
