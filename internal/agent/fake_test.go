package agent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/care-assistant/data"
	"github.com/ashureev/care-assistant/internal/dataset"
	"github.com/ashureev/care-assistant/internal/domain"
	"github.com/ashureev/care-assistant/internal/session"
	"github.com/ashureev/care-assistant/internal/tools"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeModel answers name extraction, tool selection and generation calls
// from canned values.
type fakeModel struct {
	mu sync.Mutex

	name       nameExtraction
	extractErr error

	selection string
	selectErr error

	reply    string
	replyErr error

	extractCalls  int
	selectCalls   int
	generateCalls int
	lastSystem    string

	// blockGenerate makes generation wait for ctx to end.
	blockGenerate bool
}

func (m *fakeModel) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	m.mu.Lock()
	if len(messages) > 0 && messages[0].Role == domain.RoleSystem {
		m.generateCalls++
		m.lastSystem = messages[0].Content
		block, reply, err := m.blockGenerate, m.reply, m.replyErr
		m.mu.Unlock()
		if block {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return reply, err
	}
	defer m.mu.Unlock()
	m.selectCalls++
	return m.selection, m.selectErr
}

func (m *fakeModel) Extract(_ context.Context, _ string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extractCalls++
	if m.extractErr != nil {
		return m.extractErr
	}
	*out.(*nameExtraction) = m.name
	return nil
}

func (m *fakeModel) set(fn func(m *fakeModel)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m)
}

func loadDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	d, err := dataset.Load(data.FS)
	if err != nil {
		t.Fatalf("load dataset: %v", err)
	}
	return d
}

func newTestEngine(t *testing.T, m *fakeModel) *Engine {
	t.Helper()
	d := loadDataset(t)
	return NewEngine(m, d, tools.NewRegistry(d), WithEngineClock(func() time.Time { return fixedNow }))
}

func newTestService(t *testing.T, m *fakeModel, archive Archive) (*Service, *session.Store) {
	t.Helper()
	store := session.NewStore()
	return NewService(newTestEngine(t, m), store, archive, time.Minute), store
}

// memArchive is an in-memory Archive.
type memArchive struct {
	mu    sync.Mutex
	turns []*domain.TurnRecord
}

func (a *memArchive) RecordTurn(_ context.Context, turn *domain.TurnRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	turn.Seq = int64(len(a.turns) + 1)
	a.turns = append(a.turns, turn)
	return nil
}

func (a *memArchive) ListTurns(_ context.Context, sessionID string) ([]*domain.TurnRecord, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []*domain.TurnRecord
	for _, t := range a.turns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (a *memArchive) DeleteSession(_ context.Context, sessionID string) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.turns[:0]
	var n int64
	for _, t := range a.turns {
		if t.SessionID == sessionID {
			n++
			continue
		}
		kept = append(kept, t)
	}
	a.turns = kept
	return n, nil
}
